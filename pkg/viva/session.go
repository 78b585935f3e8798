package viva

// Role identifies who produced a turn.
type Role string

const (
	RoleExaminer Role = "examiner"
	RoleStudent  Role = "student"
)

// Turn is one utterance in a session's conversational history. Turns are
// immutable once appended.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`

	// Confidence is set only on student turns.
	Confidence *int `json:"confidence,omitempty"`
}

// Session holds the complete state of one oral examination. Turns are stored
// in conversational order; Scores carries one entry per completed exchange.
type Session struct {
	ID              string `json:"id"`
	Subject         string `json:"subject"`
	OriginalSubject string `json:"originalSubject"`
	Difficulty      string `json:"difficulty"`
	StudentName     string `json:"studentName"`
	SyllabusContext string `json:"syllabusContext,omitempty"`
	Turns           []Turn `json:"history"`
	Scores          []int  `json:"scores"`
}

// Evaluation is one graded exchange: how the examiner reacts, the score for
// the answer, and the question that follows.
type Evaluation struct {
	Reaction     string `json:"reaction"`
	Score        int    `json:"score"`
	NextQuestion string `json:"nextQuestion"`
}

// EndOfContext is the marker the evaluator service returns when a provided
// syllabus has no more material worth examining. It is translated to a
// closing statement before it reaches any turn or caller.
const EndOfContext = "END_OF_CONTEXT"
