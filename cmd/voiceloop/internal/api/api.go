// Package api exposes the voice loop over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/almosthuman-ai/voiceloop/pkg/loop"
	"github.com/almosthuman-ai/voiceloop/pkg/session"
)

// maxAudioBytes caps the process request body.
const maxAudioBytes = 25 << 20

// NewHandler returns the HTTP API for a voice loop.
func NewHandler(l *loop.Loop) http.Handler {
	s := &server{loop: l}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/voice-loop/sessions/start", s.startSession)
	mux.HandleFunc("POST /api/v1/voice-loop/process", s.process)
	mux.HandleFunc("GET /api/v1/voice-loop/sessions/{id}", s.getSession)
	mux.HandleFunc("GET /api/v1/voice-loop/demo", s.demo)
	return mux
}

type server struct {
	loop *loop.Loop
}

func (s *server) startSession(w http.ResponseWriter, r *http.Request) {
	res, err := s.loop.StartSession(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) process(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioBytes))
	if err != nil {
		writeError(w, err)
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	res, err := s.loop.Process(r.Context(), body, contentType, r.URL.Query().Get("session_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) getSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.loop.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var stageErr *loop.StageError
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, loop.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.As(err, &maxBytesErr):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &stageErr):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *server) demo(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, demoPage)
}
