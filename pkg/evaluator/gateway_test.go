package evaluator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivasim/vivasim/pkg/viva"
)

type fakeProvider struct {
	responses []string
	errs      []error
	calls     int

	lastPrompt   string
	lastJSONMode bool
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	f.lastPrompt = prompt
	f.lastJSONMode = jsonMode

	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", errors.New("no response scripted")
}

func rateLimitErr() error {
	return &Error{Provider: "fake", Status: 429, Message: "too many requests", RateLimited: true}
}

func newTestGateway(p Provider) *Gateway {
	return NewGateway(p, zerolog.Nop(), WithRetryDelay(time.Millisecond))
}

func TestGatewayRetry(t *testing.T) {
	t.Run("retries rate limit then succeeds", func(t *testing.T) {
		provider := &fakeProvider{
			errs:      []error{rateLimitErr(), rateLimitErr(), nil},
			responses: []string{"", "", "What is a monad?"},
		}
		gw := newTestGateway(provider)

		question, err := gw.NextQuestion(context.Background(), "FP", "hard", nil, "", viva.PhaseTechnical)
		require.NoError(t, err)

		assert.Equal(t, "What is a monad?", question)
		assert.Equal(t, 3, provider.calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		provider := &fakeProvider{
			errs: []error{rateLimitErr(), rateLimitErr(), rateLimitErr(), rateLimitErr()},
		}
		gw := newTestGateway(provider)

		_, err := gw.NextQuestion(context.Background(), "FP", "hard", nil, "", viva.PhaseTechnical)
		require.Error(t, err)

		assert.True(t, IsRateLimit(err))
		assert.Equal(t, 3, provider.calls)
	})

	t.Run("non rate-limit errors are not retried", func(t *testing.T) {
		provider := &fakeProvider{
			errs: []error{&Error{Provider: "fake", Status: 500, Message: "server error"}},
		}
		gw := newTestGateway(provider)

		_, err := gw.NextQuestion(context.Background(), "FP", "hard", nil, "", viva.PhaseTechnical)
		require.Error(t, err)

		assert.Equal(t, 1, provider.calls)
	})

	t.Run("cancelled context aborts the retry wait", func(t *testing.T) {
		provider := &fakeProvider{
			errs: []error{rateLimitErr(), rateLimitErr(), rateLimitErr()},
		}
		gw := NewGateway(provider, zerolog.Nop(), WithRetryDelay(time.Minute))

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		_, err := gw.NextQuestion(ctx, "FP", "hard", nil, "", viva.PhaseTechnical)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGatewayPrompts(t *testing.T) {
	t.Run("intro question ignores syllabus", func(t *testing.T) {
		provider := &fakeProvider{responses: []string{"How are you?"}}
		gw := newTestGateway(provider)

		_, err := gw.NextQuestion(context.Background(), "Physics", "easy", nil, "Dense notes.", viva.PhaseIntro)
		require.NoError(t, err)

		assert.Contains(t, provider.lastPrompt, "ice-breaker")
		assert.NotContains(t, provider.lastPrompt, "Dense notes.")
		assert.False(t, provider.lastJSONMode)
	})

	t.Run("technical question with syllabus instructs the sentinel", func(t *testing.T) {
		provider := &fakeProvider{responses: []string{"Explain section two."}}
		gw := newTestGateway(provider)

		_, err := gw.NextQuestion(context.Background(), "Custom Syllabus", "hard", []string{"Q1"}, "Dense notes.", viva.PhaseTechnical)
		require.NoError(t, err)

		assert.Contains(t, provider.lastPrompt, "Dense notes.")
		assert.Contains(t, provider.lastPrompt, viva.EndOfContext)
		assert.Contains(t, provider.lastPrompt, `["Q1"]`)
	})

	t.Run("technical question without syllabus ends the warm-up", func(t *testing.T) {
		provider := &fakeProvider{responses: []string{"Define entropy."}}
		gw := newTestGateway(provider)

		_, err := gw.NextQuestion(context.Background(), "Physics", "hard", nil, "", viva.PhaseTechnical)
		require.NoError(t, err)

		assert.Contains(t, provider.lastPrompt, "The warm-up is over")
		assert.NotContains(t, provider.lastPrompt, viva.EndOfContext)
	})

	t.Run("intro evaluation is lenient and uses json mode", func(t *testing.T) {
		provider := &fakeProvider{responses: []string{`{"reaction":"Nice.","score":10,"nextQuestion":"And you?"}`}}
		gw := newTestGateway(provider)

		eval, err := gw.Evaluate(context.Background(), "Physics", "easy", "How are you?", "Good.", "", 1)
		require.NoError(t, err)

		assert.Contains(t, provider.lastPrompt, "award 10")
		assert.True(t, provider.lastJSONMode)
		assert.Equal(t, 10, eval.Score)
	})

	t.Run("technical evaluation after intro rounds", func(t *testing.T) {
		provider := &fakeProvider{responses: []string{`{"reaction":"Weak.","score":3,"nextQuestion":"Try again."}`}}
		gw := newTestGateway(provider)

		_, err := gw.Evaluate(context.Background(), "Physics", "hard", "Define entropy.", "Something.", "", 4)
		require.NoError(t, err)

		assert.Contains(t, provider.lastPrompt, "ruthless examiner")
		assert.NotContains(t, provider.lastPrompt, "award 10")
	})
}

func TestParseEvaluation(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("plain payload", func(t *testing.T) {
		eval := parseEvaluation(logger, `{"reaction":"Good.","score":8,"nextQuestion":"Next?"}`)

		assert.Equal(t, viva.Evaluation{Reaction: "Good.", Score: 8, NextQuestion: "Next?"}, eval)
	})

	t.Run("markdown fences are stripped", func(t *testing.T) {
		eval := parseEvaluation(logger, "```json\n{\"reaction\":\"Ok.\",\"score\":5,\"nextQuestion\":\"Go on.\"}\n```")

		assert.Equal(t, 5, eval.Score)
		assert.Equal(t, "Ok.", eval.Reaction)
	})

	t.Run("capitalized keys are accepted", func(t *testing.T) {
		eval := parseEvaluation(logger, `{"Reaction":"Hm.","Score":6,"NextQuestion":"Why?"}`)

		assert.Equal(t, viva.Evaluation{Reaction: "Hm.", Score: 6, NextQuestion: "Why?"}, eval)
	})

	t.Run("fractional score truncates", func(t *testing.T) {
		eval := parseEvaluation(logger, `{"reaction":"Ok.","score":7.8,"nextQuestion":"Next."}`)

		assert.Equal(t, 7, eval.Score)
	})

	t.Run("missing fields take defaults", func(t *testing.T) {
		eval := parseEvaluation(logger, `{}`)

		assert.Equal(t, "I heard you.", eval.Reaction)
		assert.Equal(t, 0, eval.Score)
		assert.Equal(t, "Proceed.", eval.NextQuestion)
	})

	t.Run("unparsable payload yields full defaults", func(t *testing.T) {
		eval := parseEvaluation(logger, "I refuse to answer in JSON.")

		assert.Equal(t, "I heard you.", eval.Reaction)
		assert.Equal(t, 0, eval.Score)
		assert.Equal(t, "Proceed.", eval.NextQuestion)
	})

	t.Run("whitespace-only fields take defaults", func(t *testing.T) {
		eval := parseEvaluation(logger, `{"reaction":"  ","score":4,"nextQuestion":""}`)

		assert.Equal(t, "I heard you.", eval.Reaction)
		assert.Equal(t, 4, eval.Score)
		assert.Equal(t, "Proceed.", eval.NextQuestion)
	})
}
