package httpapi

import "github.com/vivasim/vivasim/pkg/analysis"

// startRequest is the JSON body of POST /api/viva/start. The endpoint also
// accepts multipart form data with the same fields plus a "syllabus" PDF part.
type startRequest struct {
	Subject      string `json:"subject"`
	Difficulty   string `json:"difficulty"`
	StudentName  string `json:"studentName"`
	SyllabusText string `json:"syllabusText"`
}

type startResponse struct {
	SessionID string  `json:"sessionId"`
	Question  string  `json:"question"`
	AudioURL  *string `json:"audioUrl"`
}

type respondRequest struct {
	SessionID       string  `json:"sessionId"`
	AnswerText      string  `json:"answerText"`
	AudioConfidence float64 `json:"audioConfidence"`
}

type respondResponse struct {
	Reaction     string          `json:"reaction"`
	NextQuestion string          `json:"nextQuestion"`
	AudioURL     *string         `json:"audioUrl"`
	Analysis     analysis.Result `json:"analysis"`
}

type errorResponse struct {
	Error string `json:"error"`
}
