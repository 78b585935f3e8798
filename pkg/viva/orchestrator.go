package viva

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vivasim/vivasim/pkg/analysis"
)

// ErrSessionNotFound is returned when an operation names a session identifier
// the store does not know. It is the only failure surfaced to callers as a
// hard error; everything else degrades to a text-only or neutral turn.
var ErrSessionNotFound = errors.New("session not found")

// Evaluator produces examiner questions and grades student answers.
type Evaluator interface {
	NextQuestion(ctx context.Context, subject, difficulty string, priorQuestions []string, syllabusContext string, phase Phase) (string, error)
	Evaluate(ctx context.Context, subject, difficulty, question, answer, syllabusContext string, completedRounds int) (Evaluation, error)
}

// Synthesizer renders examiner utterances as playable audio. An error means
// "no audio this turn", never a failed turn.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

const (
	// subjectCustomSyllabus replaces the caller's subject label whenever a
	// syllabus grounds the examination.
	subjectCustomSyllabus = "Custom Syllabus"

	closingStartExhausted    = "I have examined all relevant areas of your provided notes. The viva is concluded."
	closingNoFurtherMaterial = "I have no further questions from this material. We are done."

	fallbackQuestion = "Explain the basic principles of this subject."
)

// fallbackEvaluation stands in for the evaluator when it is unreachable, so a
// turn always completes.
func fallbackEvaluation() Evaluation {
	return Evaluation{
		Reaction:     "I didn't quite catch that. Moving on.",
		Score:        0,
		NextQuestion: "Let's try something else. Define the core concept.",
	}
}

// Orchestrator drives the examination state machine: it sequences analysis,
// evaluation, and speech synthesis per turn and is the only writer of session
// state.
type Orchestrator struct {
	store  *Store
	eval   Evaluator
	speech Synthesizer
	logger zerolog.Logger
}

// NewOrchestrator wires the orchestrator to its collaborators.
func NewOrchestrator(store *Store, eval Evaluator, speech Synthesizer, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:  store,
		eval:   eval,
		speech: speech,
		logger: logger,
	}
}

// StartParams describes a new examination.
type StartParams struct {
	Subject         string
	Difficulty      string
	StudentName     string
	SyllabusContext string
}

// StartResult is what a caller needs to begin answering: the new session's
// identifier, the opening question, and its audio when synthesis succeeded.
type StartResult struct {
	SessionID string
	Question  string
	AudioURL  string
}

// TurnResult is the externally visible outcome of one answered question.
type TurnResult struct {
	Reaction     string
	NextQuestion string
	AudioURL     string
	Analysis     analysis.Result
}

// Report is a read-only session snapshot with derived aggregates.
type Report struct {
	Session
	AvgScore      string `json:"avgScore"`
	AvgConfidence int    `json:"avgConfidence"`
}

// Start creates a session, obtains the opening ice-breaker from the evaluator,
// and appends it as the seed examiner turn. Question generation and speech
// synthesis both degrade rather than fail the call.
func (o *Orchestrator) Start(ctx context.Context, p StartParams) (StartResult, error) {
	subject := p.Subject
	if p.SyllabusContext != "" {
		subject = subjectCustomSyllabus
	}

	sess := &Session{
		ID:              uuid.NewString(),
		Subject:         subject,
		OriginalSubject: p.Subject,
		Difficulty:      p.Difficulty,
		StudentName:     p.StudentName,
		SyllabusContext: p.SyllabusContext,
	}

	// The opening question is always an ice-breaker, whatever the subject.
	question, err := o.eval.NextQuestion(ctx, subject, p.Difficulty, nil, p.SyllabusContext, PhaseIntro)
	if err != nil {
		o.logger.Error().Err(err).Str("subject", subject).Msg("Evaluator unavailable, using fallback opening question")
		question = fallbackQuestion
	}
	if question == EndOfContext {
		question = closingStartExhausted
	}

	sess.Turns = append(sess.Turns, Turn{Role: RoleExaminer, Text: question})
	o.store.Put(sess)

	audioURL := o.synthesize(ctx, sess.ID, question)

	o.logger.Info().
		Str("session_id", sess.ID).
		Str("subject", subject).
		Str("difficulty", p.Difficulty).
		Bool("syllabus", p.SyllabusContext != "").
		Msg("Session started")

	return StartResult{SessionID: sess.ID, Question: question, AudioURL: audioURL}, nil
}

// Respond processes one student answer: lexical analysis, phase-aware
// evaluation, best-effort speech, then the history mutation. Concurrent calls
// for the same session serialize on a per-session lock; calls for distinct
// sessions run independently.
func (o *Orchestrator) Respond(ctx context.Context, sessionID, answerText string, audioConfidence float64) (TurnResult, error) {
	sess, ok := o.store.Get(sessionID)
	if !ok {
		return TurnResult{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	lock := o.store.lock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	result := analysis.Analyze(answerText, audioConfidence)

	// Completed exchanges before this answer, counted from the turn total
	// before this round's turns are appended.
	completedRounds := (len(sess.Turns) + 1) / 2
	priorQuestion := sess.Turns[len(sess.Turns)-1].Text
	annotated := fmt.Sprintf("%s [System Note: Confidence Score: %d%%]", answerText, result.Confidence)

	eval, err := o.eval.Evaluate(ctx, sess.Subject, sess.Difficulty, priorQuestion, annotated, sess.SyllabusContext, completedRounds)
	if err != nil {
		o.logger.Error().Err(err).Str("session_id", sessionID).Msg("Evaluator unavailable, substituting neutral evaluation")
		eval = fallbackEvaluation()
	}
	if eval.NextQuestion == EndOfContext {
		eval.NextQuestion = closingNoFurtherMaterial
	}

	spoken := eval.Reaction + " " + eval.NextQuestion
	audioURL := o.synthesize(ctx, sessionID, spoken)

	confidence := result.Confidence
	sess.Turns = append(sess.Turns, Turn{Role: RoleStudent, Text: answerText, Confidence: &confidence})
	sess.Turns = append(sess.Turns, Turn{Role: RoleExaminer, Text: spoken})
	sess.Scores = append(sess.Scores, eval.Score)

	o.logger.Debug().
		Str("session_id", sessionID).
		Int("round", completedRounds).
		Int("score", eval.Score).
		Int("confidence", confidence).
		Msg("Turn completed")

	return TurnResult{
		Reaction:     eval.Reaction,
		NextQuestion: eval.NextQuestion,
		AudioURL:     audioURL,
		Analysis:     result,
	}, nil
}

// Report returns a snapshot of the session plus the average score (one
// decimal place) and average student confidence (nearest integer). It never
// mutates the session.
func (o *Orchestrator) Report(sessionID string) (Report, error) {
	sess, ok := o.store.Get(sessionID)
	if !ok {
		return Report{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	lock := o.store.lock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	snapshot := *sess
	snapshot.Turns = append([]Turn{}, sess.Turns...)
	snapshot.Scores = append([]int{}, sess.Scores...)

	avgScore := "0.0"
	if len(snapshot.Scores) > 0 {
		total := 0
		for _, score := range snapshot.Scores {
			total += score
		}
		avgScore = fmt.Sprintf("%.1f", float64(total)/float64(len(snapshot.Scores)))
	}

	confidenceTotal, confidenceCount := 0, 0
	for _, turn := range snapshot.Turns {
		if turn.Role == RoleStudent && turn.Confidence != nil {
			confidenceTotal += *turn.Confidence
			confidenceCount++
		}
	}
	avgConfidence := 0
	if confidenceCount > 0 {
		avgConfidence = int(math.Round(float64(confidenceTotal) / float64(confidenceCount)))
	}

	return Report{Session: snapshot, AvgScore: avgScore, AvgConfidence: avgConfidence}, nil
}

// synthesize is the best-effort speech call: any failure is logged and the
// turn proceeds without audio.
func (o *Orchestrator) synthesize(ctx context.Context, sessionID, text string) string {
	audioURL, err := o.speech.Synthesize(ctx, text)
	if err != nil {
		o.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Speech synthesis unavailable, continuing without audio")
		return ""
	}
	return audioURL
}
