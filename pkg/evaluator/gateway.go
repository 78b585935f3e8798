// Package evaluator wraps the external generative-text service behind
// phase-aware prompt construction, bounded rate-limit retries, and tolerant
// response normalization. It produces the next examiner question and grades
// the previous answer; it never stores session state.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vivasim/vivasim/pkg/viva"
)

const (
	// maxAttempts bounds how often one request hits the service: the first
	// call plus two retries, rate-limit signals only.
	maxAttempts = 3

	defaultRetryDelay = 3 * time.Second
)

// Defaults substituted per missing or unreadable field of an evaluation
// payload.
const (
	defaultReaction     = "I heard you."
	defaultNextQuestion = "Proceed."
)

// Gateway is the evaluator-facing boundary of the orchestrator.
type Gateway struct {
	provider   Provider
	retryDelay time.Duration
	logger     zerolog.Logger
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithRetryDelay overrides the pause between rate-limited attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(g *Gateway) {
		g.retryDelay = d
	}
}

// NewGateway creates a gateway over the given provider.
func NewGateway(provider Provider, logger zerolog.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		provider:   provider,
		retryDelay: defaultRetryDelay,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NextQuestion asks the service for the next examiner question. In the intro
// phase the question is a generic ice-breaker whatever the subject; in the
// technical phase it targets the syllabus when one is present (where the
// service may answer viva.EndOfContext) or the free-form subject otherwise.
// Errors surface so the caller can pick its fallback.
func (g *Gateway) NextQuestion(ctx context.Context, subject, difficulty string, priorQuestions []string, syllabusContext string, phase viva.Phase) (string, error) {
	prompt := questionPrompt(subject, difficulty, priorQuestions, syllabusContext, phase)

	g.logger.Debug().
		Str("provider", g.provider.Name()).
		Str("subject", subject).
		Str("phase", string(phase)).
		Msg("Requesting next question")

	text, err := g.generate(ctx, prompt, false)
	if err != nil {
		return "", fmt.Errorf("next question: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Evaluate grades the previous answer and produces the question after it.
// The phase is derived from completedRounds; the first intro rounds score
// leniently and keep the follow-up an ice-breaker. A transport failure
// returns an error alongside a zero evaluation; malformed payloads are
// normalized per field and never error.
func (g *Gateway) Evaluate(ctx context.Context, subject, difficulty, question, answer, syllabusContext string, completedRounds int) (viva.Evaluation, error) {
	phase := viva.PhaseFor(completedRounds)
	prompt := evaluationPrompt(subject, difficulty, question, answer, syllabusContext, phase)

	g.logger.Debug().
		Str("provider", g.provider.Name()).
		Str("subject", subject).
		Int("completed_rounds", completedRounds).
		Str("phase", string(phase)).
		Msg("Requesting evaluation")

	text, err := g.generate(ctx, prompt, true)
	if err != nil {
		return viva.Evaluation{}, fmt.Errorf("evaluate answer: %w", err)
	}
	return parseEvaluation(g.logger, text), nil
}

// generate runs one prompt with the retry policy: rate-limit signals are
// retried after a fixed delay, anything else surfaces immediately.
func (g *Gateway) generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		text, err := g.provider.Generate(ctx, prompt, jsonMode)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !IsRateLimit(err) || attempt == maxAttempts {
			return "", err
		}

		g.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("delay", g.retryDelay).
			Msg("Rate limited, retrying")

		select {
		case <-time.After(g.retryDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

// questionPrompt builds the phase-appropriate question request.
func questionPrompt(subject, difficulty string, priorQuestions []string, syllabusContext string, phase viva.Phase) string {
	prior := jsonList(priorQuestions)

	if phase == viva.PhaseIntro {
		return fmt.Sprintf(`You are an oral examiner opening a viva for a student. The examination has not reached technical material yet.
Subject of the upcoming viva: %q. Difficulty Level: %s.
Previous questions asked: %s.

Ask ONE light, friendly ice-breaker question to settle the student in (their preparation, their interest in the field, how they are feeling). It must not be technical and must not test subject knowledge.
Generate a single short question. Output ONLY the question text.`, subject, difficulty, prior)
	}

	if syllabusContext != "" {
		return fmt.Sprintf(`You are a RUTHLESS oral examiner conducting a viva based on a specific syllabus/context provided below.

SYLLABUS CONTEXT:
"""
%s
"""

Difficulty Level: %s.
Previous questions asked: %s.

Your Goal:
1. Ask a question strictly based on the provided SYLLABUS CONTEXT.
2. Test depth of understanding of this specific material.
3. Do not ask generic questions outside this scope.

CRITICAL INSTRUCTION:
If you have exhausted all meaningful questions from the context or if the context is too short to generate more unique questions, respond with EXACTLY: "%s".

Generate a single, sharp, specific question. Output ONLY the question text.`, syllabusContext, difficulty, prior, viva.EndOfContext)
	}

	return fmt.Sprintf(`You are a RUTHLESS oral examiner conducting a viva on the subject: %q.
Difficulty Level: %s.

Your goal is to test the student's depth of knowledge. Do not accept shallow definitions.
The warm-up is over: do not ask ice-breaker or getting-to-know-you questions.

Previous questions asked: %s.

Generate a single, sharp, specific question to continue the viva.
Output ONLY the question text. Do not add "Here is the question" or quotes.`, subject, difficulty, prior)
}

// evaluationPrompt builds the phase-appropriate grading request. All variants
// demand the same JSON shape so normalization stays uniform.
func evaluationPrompt(subject, difficulty, question, answer, syllabusContext string, phase viva.Phase) string {
	if phase == viva.PhaseIntro {
		return fmt.Sprintf(`Context: Warm-up phase of a viva on %q (%s). The student is settling in; no technical material has been examined yet.
Examiner Question: %q
Student Answer: %q

You are a welcoming examiner during the warm-up.

1. "reaction" (string): a brief, encouraging comment on how the student comes across. Focus on delivery, never on technical correctness.
2. "score" (0-10): award 10 regardless of content; the warm-up is not graded on substance.
3. "nextQuestion" (string): another light, non-technical ice-breaker question. Do not start technical questioning yet.

Return JSON format:
{
    "reaction": "...",
    "score": number,
    "nextQuestion": "..."
}`, subject, difficulty, question, answer)
	}

	if syllabusContext != "" {
		return fmt.Sprintf(`Context: Viva based on provided Syllabus.
Syllabus Content: """%s"""

Examiner Question: %q
Student Answer: %q

You are a ruthless examiner. Evaluate the answer based strictly on the syllabus content provided.

1. Reaction: If the answer contradicts the syllabus, correct them harshly.
2. Score: 0-10 based on accuracy to the detailed syllabus.
3. Next Question: Ask another question from the syllabus. If exhausted, return "%s" as the nextQuestion.

Return JSON format:
{
    "reaction": "...",
    "score": number,
    "nextQuestion": "..."
}`, syllabusContext, question, answer, viva.EndOfContext)
	}

	return fmt.Sprintf(`Context: Viva on %q (%s).
Examiner Question: %q
Student Answer: %q

You are a ruthless examiner. Evaluate the answer.

1. Give a "reaction" (string): Interrupt the student or comment on their answer. Be strict. If the answer is wrong, roast them slightly (professional but harsh).
2. detailed "score" (0-10) based on correctness and depth.
3. Generate the "nextQuestion" (string) valid follow-up or a new topic.

Return JSON format:
{
    "reaction": "...",
    "score": number,
    "nextQuestion": "..."
}`, subject, difficulty, question, answer)
}

// parseEvaluation normalizes the service's structured reply. Markdown fences
// are stripped, capitalized key variants are accepted (encoding/json matches
// field names case-insensitively), and each absent or unreadable field falls
// back to its fixed default. It never fails: an unparsable payload yields the
// all-default evaluation.
func parseEvaluation(logger zerolog.Logger, raw string) viva.Evaluation {
	text := strings.ReplaceAll(raw, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	var payload struct {
		Reaction     string   `json:"reaction"`
		Score        *float64 `json:"score"`
		NextQuestion string   `json:"nextQuestion"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		logger.Warn().Err(err).Msg("Unparsable evaluation payload, using defaults")
		return viva.Evaluation{
			Reaction:     defaultReaction,
			Score:        0,
			NextQuestion: defaultNextQuestion,
		}
	}

	eval := viva.Evaluation{
		Reaction:     strings.TrimSpace(payload.Reaction),
		NextQuestion: strings.TrimSpace(payload.NextQuestion),
	}
	if eval.Reaction == "" {
		eval.Reaction = defaultReaction
	}
	if payload.Score != nil {
		eval.Score = int(*payload.Score)
	}
	if eval.NextQuestion == "" {
		eval.NextQuestion = defaultNextQuestion
	}
	return eval
}

// jsonList renders prior questions the way prompts expect them.
func jsonList(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}
