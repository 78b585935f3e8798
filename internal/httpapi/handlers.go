package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vivasim/vivasim/internal/ingest"
	"github.com/vivasim/vivasim/pkg/viva"
)

const maxUploadBytes = 10 << 20 // 10 MiB

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).Seconds(),
		"sessions":  s.store.Len(),
		"timestamp": time.Now().UnixMilli(),
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleStart creates a new session and returns the opening question.
// It accepts either a JSON body or multipart form data with an optional
// "syllabus" PDF file.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req startRequest
	var syllabusContext string

	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid multipart form")
			return
		}
		req.Subject = r.FormValue("subject")
		req.Difficulty = r.FormValue("difficulty")
		req.StudentName = r.FormValue("studentName")
		req.SyllabusText = r.FormValue("syllabusText")

		if file, header, err := r.FormFile("syllabus"); err == nil {
			defer file.Close()

			data, readErr := io.ReadAll(io.LimitReader(file, maxUploadBytes))
			if readErr != nil {
				s.writeError(w, http.StatusBadRequest, "Failed to read syllabus file")
				return
			}

			text, parseErr := ingest.FromPDF(bytes.NewReader(data), int64(len(data)))
			if parseErr != nil {
				// Matches the lenient upload handling: a broken PDF falls back
				// to a subject-only session rather than failing the start.
				s.logger.Error().
					Err(parseErr).
					Str("filename", header.Filename).
					Msg("Failed to parse syllabus PDF")
			} else {
				syllabusContext = text
				s.logger.Info().
					Str("filename", header.Filename).
					Int("contextLength", len(text)).
					Msg("Syllabus PDF ingested")
			}
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
	}

	if syllabusContext == "" && req.SyllabusText != "" {
		syllabusContext = ingest.FromText(req.SyllabusText)
	}

	result, err := s.orchestrator.Start(r.Context(), viva.StartParams{
		Subject:         req.Subject,
		Difficulty:      req.Difficulty,
		StudentName:     req.StudentName,
		SyllabusContext: syllabusContext,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to start viva")
		s.writeError(w, http.StatusInternalServerError, "Failed to start viva")
		return
	}

	s.writeJSON(w, http.StatusOK, startResponse{
		SessionID: result.SessionID,
		Question:  result.Question,
		AudioURL:  nullableString(result.AudioURL),
	})
}

// handleRespond evaluates a student answer and returns the examiner's turn
func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// A missing audioConfidence and an explicit 0 both fall back to 1.0,
	// matching the falsy default clients already rely on.
	var req respondRequest
	req.AudioConfidence = 1.0
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.AudioConfidence == 0 {
		req.AudioConfidence = 1.0
	}

	result, err := s.orchestrator.Respond(r.Context(), req.SessionID, req.AnswerText, req.AudioConfidence)
	if err != nil {
		if errors.Is(err, viva.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "Session not found. Please restart.")
			return
		}
		s.logger.Error().Err(err).Str("sessionId", req.SessionID).Msg("Failed to process response")
		s.writeError(w, http.StatusInternalServerError, "Failed to process response")
		return
	}

	s.writeJSON(w, http.StatusOK, respondResponse{
		Reaction:     result.Reaction,
		NextQuestion: result.NextQuestion,
		AudioURL:     nullableString(result.AudioURL),
		Analysis:     result.Analysis,
	})
}

// handleSession returns a session report with derived averages
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/api/viva/session/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		s.writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	report, err := s.orchestrator.Report(sessionID)
	if err != nil {
		if errors.Is(err, viva.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		s.logger.Error().Err(err).Str("sessionId", sessionID).Msg("Failed to build session report")
		s.writeError(w, http.StatusInternalServerError, "Failed to build session report")
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

// writeJSON writes a JSON response with the given status
func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

// nullableString maps the empty string to JSON null
func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
