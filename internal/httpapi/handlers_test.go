package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivasim/vivasim/pkg/viva"
)

type stubEvaluator struct {
	question   string
	evaluation viva.Evaluation
}

func (s *stubEvaluator) NextQuestion(ctx context.Context, subject, difficulty string, priorQuestions []string, syllabusContext string, phase viva.Phase) (string, error) {
	return s.question, nil
}

func (s *stubEvaluator) Evaluate(ctx context.Context, subject, difficulty, question, answer, syllabusContext string, completedRounds int) (viva.Evaluation, error) {
	return s.evaluation, nil
}

type stubSynthesizer struct {
	url string
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	return s.url, nil
}

func newTestServer(t *testing.T) (*Server, *viva.Store) {
	t.Helper()

	eval := &stubEvaluator{
		question: "How did your preparation go?",
		evaluation: viva.Evaluation{
			Reaction:     "Fine.",
			Score:        7,
			NextQuestion: "Define entropy.",
		},
	}
	store := viva.NewStore()
	orch := viva.NewOrchestrator(store, eval, &stubSynthesizer{url: "data:audio/mpeg;base64,AAAA"}, zerolog.Nop())

	srv, err := NewServer(ServerOptions{}, orch, store, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { srv.rateLimiter.Stop() })

	return srv, store
}

func newTestRequest(t *testing.T, method, path string, body io.Reader) *http.Request {
	t.Helper()
	r := httptest.NewRequest(method, path, body)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	return r
}

func newMultipartWriter(t *testing.T, buf *bytes.Buffer, fields map[string]string) string {
	t.Helper()

	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return mw.FormDataContentType()
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func startSession(t *testing.T, srv *Server) string {
	t.Helper()

	body := bytes.NewBufferString(`{"subject":"Physics","difficulty":"medium","studentName":"Sam"}`)
	rec := httptest.NewRecorder()
	srv.handleStart(rec, newTestRequest(t, "POST", "/api/viva/start", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp startResponse
	decodeJSON(t, rec, &resp)
	return resp.SessionID
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, newTestRequest(t, "GET", "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "ok", resp["status"])

	t.Run("rejects non-get", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.handleHealth(rec, newTestRequest(t, "POST", "/health", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestHandleStart(t *testing.T) {
	t.Run("json body", func(t *testing.T) {
		srv, store := newTestServer(t)

		body := bytes.NewBufferString(`{"subject":"Physics","difficulty":"hard","studentName":"Sam"}`)
		rec := httptest.NewRecorder()
		srv.handleStart(rec, newTestRequest(t, "POST", "/api/viva/start", body))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp startResponse
		decodeJSON(t, rec, &resp)
		assert.NotEmpty(t, resp.SessionID)
		assert.Equal(t, "How did your preparation go?", resp.Question)
		require.NotNil(t, resp.AudioURL)
		assert.Equal(t, "data:audio/mpeg;base64,AAAA", *resp.AudioURL)

		sess, ok := store.Get(resp.SessionID)
		require.True(t, ok)
		assert.Equal(t, "Physics", sess.Subject)
		assert.Equal(t, "Sam", sess.StudentName)
	})

	t.Run("pasted syllabus switches subject", func(t *testing.T) {
		srv, store := newTestServer(t)

		body := bytes.NewBufferString(`{"subject":"Biology","syllabusText":"Chapter 1: cells."}`)
		rec := httptest.NewRecorder()
		srv.handleStart(rec, newTestRequest(t, "POST", "/api/viva/start", body))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp startResponse
		decodeJSON(t, rec, &resp)

		sess, _ := store.Get(resp.SessionID)
		assert.Equal(t, "Custom Syllabus", sess.Subject)
		assert.Equal(t, "Biology", sess.OriginalSubject)
		assert.Equal(t, "Chapter 1: cells.", sess.SyllabusContext)
	})

	t.Run("multipart form without file", func(t *testing.T) {
		srv, store := newTestServer(t)

		var buf bytes.Buffer
		mw := newMultipartWriter(t, &buf, map[string]string{
			"subject":      "Chemistry",
			"difficulty":   "easy",
			"studentName":  "Alex",
			"syllabusText": "Periodic table basics.",
		})

		r := httptest.NewRequest("POST", "/api/viva/start", &buf)
		r.Header.Set("Content-Type", mw)
		rec := httptest.NewRecorder()
		srv.handleStart(rec, r)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp startResponse
		decodeJSON(t, rec, &resp)

		sess, _ := store.Get(resp.SessionID)
		assert.Equal(t, "Custom Syllabus", sess.Subject)
		assert.Equal(t, "Periodic table basics.", sess.SyllabusContext)
	})

	t.Run("invalid json", func(t *testing.T) {
		srv, _ := newTestServer(t)

		rec := httptest.NewRecorder()
		srv.handleStart(rec, newTestRequest(t, "POST", "/api/viva/start", bytes.NewBufferString("{")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects non-post", func(t *testing.T) {
		srv, _ := newTestServer(t)

		rec := httptest.NewRecorder()
		srv.handleStart(rec, newTestRequest(t, "GET", "/api/viva/start", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestHandleRespond(t *testing.T) {
	t.Run("full round trip", func(t *testing.T) {
		srv, store := newTestServer(t)
		id := startSession(t, srv)

		body := bytes.NewBufferString(`{"sessionId":"` + id + `","answerText":"I am ready.","audioConfidence":0.9}`)
		rec := httptest.NewRecorder()
		srv.handleRespond(rec, newTestRequest(t, "POST", "/api/viva/respond", body))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp respondResponse
		decodeJSON(t, rec, &resp)
		assert.Equal(t, "Fine.", resp.Reaction)
		assert.Equal(t, "Define entropy.", resp.NextQuestion)
		assert.Equal(t, 96, resp.Analysis.Confidence)

		sess, _ := store.Get(id)
		assert.Len(t, sess.Turns, 3)
		assert.Equal(t, []int{7}, sess.Scores)
	})

	t.Run("missing audio confidence defaults to full", func(t *testing.T) {
		srv, _ := newTestServer(t)
		id := startSession(t, srv)

		body := bytes.NewBufferString(`{"sessionId":"` + id + `","answerText":"I am ready."}`)
		rec := httptest.NewRecorder()
		srv.handleRespond(rec, newTestRequest(t, "POST", "/api/viva/respond", body))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp respondResponse
		decodeJSON(t, rec, &resp)
		assert.Equal(t, 100, resp.Analysis.Confidence)
	})

	t.Run("explicit zero audio confidence defaults to full", func(t *testing.T) {
		srv, _ := newTestServer(t)
		id := startSession(t, srv)

		body := bytes.NewBufferString(`{"sessionId":"` + id + `","answerText":"I am ready.","audioConfidence":0}`)
		rec := httptest.NewRecorder()
		srv.handleRespond(rec, newTestRequest(t, "POST", "/api/viva/respond", body))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp respondResponse
		decodeJSON(t, rec, &resp)
		assert.Equal(t, 100, resp.Analysis.Confidence)
	})

	t.Run("unknown session", func(t *testing.T) {
		srv, _ := newTestServer(t)

		body := bytes.NewBufferString(`{"sessionId":"nope","answerText":"hello"}`)
		rec := httptest.NewRecorder()
		srv.handleRespond(rec, newTestRequest(t, "POST", "/api/viva/respond", body))

		require.Equal(t, http.StatusNotFound, rec.Code)

		var resp errorResponse
		decodeJSON(t, rec, &resp)
		assert.Equal(t, "Session not found. Please restart.", resp.Error)
	})
}

func TestHandleSession(t *testing.T) {
	t.Run("report includes averages", func(t *testing.T) {
		srv, _ := newTestServer(t)
		id := startSession(t, srv)

		body := bytes.NewBufferString(`{"sessionId":"` + id + `","answerText":"I am ready."}`)
		rec := httptest.NewRecorder()
		srv.handleRespond(rec, newTestRequest(t, "POST", "/api/viva/respond", body))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		srv.handleSession(rec, newTestRequest(t, "GET", "/api/viva/session/"+id, nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]interface{}
		decodeJSON(t, rec, &resp)
		assert.Equal(t, "7.0", resp["avgScore"])
		assert.Equal(t, float64(100), resp["avgConfidence"])
		assert.Len(t, resp["history"], 3)
	})

	t.Run("unknown session", func(t *testing.T) {
		srv, _ := newTestServer(t)

		rec := httptest.NewRecorder()
		srv.handleSession(rec, newTestRequest(t, "GET", "/api/viva/session/missing", nil))

		require.Equal(t, http.StatusNotFound, rec.Code)

		var resp errorResponse
		decodeJSON(t, rec, &resp)
		assert.Equal(t, "Session not found", resp.Error)
	})

	t.Run("empty id", func(t *testing.T) {
		srv, _ := newTestServer(t)

		rec := httptest.NewRecorder()
		srv.handleSession(rec, newTestRequest(t, "GET", "/api/viva/session/", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGuard(t *testing.T) {
	t.Run("rate limit returns 429 with retry-after", func(t *testing.T) {
		srv, _ := newTestServer(t)
		srv.rateLimiter.Stop()
		srv.rateLimiter = NewRateLimiter(1)
		t.Cleanup(srv.rateLimiter.Stop)

		handler := srv.guard(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		first := httptest.NewRecorder()
		handler(first, newTestRequest(t, "GET", "/health", nil))
		assert.Equal(t, http.StatusOK, first.Code)

		second := httptest.NewRecorder()
		handler(second, newTestRequest(t, "GET", "/health", nil))
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.NotEmpty(t, second.Header().Get("Retry-After"))
	})

	t.Run("shutting down returns 503", func(t *testing.T) {
		srv, _ := newTestServer(t)
		srv.shutdownMu.Lock()
		srv.isShuttingDown = true
		srv.shutdownMu.Unlock()

		handler := srv.guard(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		rec := httptest.NewRecorder()
		handler(rec, newTestRequest(t, "GET", "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
