package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/goodtune/brainbites/internal/balance"
	"github.com/goodtune/brainbites/internal/quiz"
	"github.com/goodtune/brainbites/internal/usage"
)

const maxRequestBody = 64 << 10

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// BalanceResponse reports the spendable time.
type BalanceResponse struct {
	AvailableSeconds int64  `json:"availableSeconds"`
	SettledSeconds   int64  `json:"settledSeconds"`
	Formatted        string `json:"formatted"`
}

// SessionResponse reports the current session, if any.
type SessionResponse struct {
	Session          *usage.SessionView `json:"session"`
	AvailableSeconds int64              `json:"availableSeconds"`
}

// StopResponse reports a settled session.
type StopResponse struct {
	TimeSpent        int64 `json:"timeSpent"`
	AvailableSeconds int64 `json:"availableSeconds"`
}

type creditRequest struct {
	Seconds int64 `json:"seconds"`
}

type startRequest struct {
	AppID string `json:"appId"`
}

type lifecycleRequest struct {
	State string `json:"state"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// readJSON decodes a request body. An empty body leaves v untouched.
func readJSON(r *http.Request, v interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"session_active": s.deps.Sessions.CurrentSession() != nil,
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	available := s.deps.Sessions.AvailableTime()
	writeJSON(w, http.StatusOK, BalanceResponse{
		AvailableSeconds: available,
		SettledSeconds:   s.deps.Balance.Get(),
		Formatted:        balance.Format(available),
	})
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Seconds <= 0 {
		writeError(w, http.StatusBadRequest, "seconds must be positive")
		return
	}

	s.deps.Balance.Credit(req.Seconds)
	s.handleBalance(w, r)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SessionResponse{
		Session:          s.deps.Sessions.CurrentSession(),
		AvailableSeconds: s.deps.Sessions.AvailableTime(),
	})
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.AppID = strings.TrimSpace(req.AppID)
	if req.AppID == "" {
		writeError(w, http.StatusBadRequest, "appId is required")
		return
	}

	if !s.deps.Sessions.Start(req.AppID) {
		writeError(w, http.StatusConflict, usage.ErrNoTimeAvailable.Error())
		return
	}

	s.handleSession(w, r)
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	spent := s.deps.Sessions.Stop()
	writeJSON(w, http.StatusOK, StopResponse{
		TimeSpent:        spent,
		AvailableSeconds: s.deps.Sessions.AvailableTime(),
	})
}

func (s *Server) handleLifecycle(w http.ResponseWriter, r *http.Request) {
	var req lifecycleRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.deps.Lifecycle.Transition(req.State); err != nil {
		if errors.Is(err, usage.ErrUnknownLifecycleState) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("Lifecycle transition failed")
		writeError(w, http.StatusInternalServerError, "Lifecycle transition failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"state": req.State})
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	q := s.deps.Quiz.Next(r.Context(), r.URL.Query().Get("category"))
	writeJSON(w, http.StatusOK, q.Public())
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := s.deps.Quiz.Answer(req.Answer)
	switch {
	case errors.Is(err, quiz.ErrNoQuestion):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, quiz.ErrUnknownOption):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("Failed to score answer")
		writeError(w, http.StatusInternalServerError, "Failed to score answer")
		return
	}

	writeJSON(w, http.StatusOK, res)
}
