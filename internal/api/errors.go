package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/readingpartner/scriptpipe/internal/doccheck"
	"github.com/readingpartner/scriptpipe/internal/pipeline"
	"github.com/readingpartner/scriptpipe/internal/store"
	"github.com/readingpartner/scriptpipe/pkg/provider/extract"
)

// errorResponse is the JSON envelope for every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}

// writeError maps err onto an HTTP status and a user-facing message.
// Validation and extraction failures carry the distinct messages from
// [doccheck.UserMessage]; everything else gets a generic body so internal
// details never leak to clients.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := messageFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrNoLines), errors.Is(err, pipeline.ErrNoAudio):
		return http.StatusConflict
	case errors.Is(err, doccheck.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, doccheck.ErrTooManyPages),
		errors.Is(err, doccheck.ErrEmptyDocument),
		errors.Is(err, extract.ErrUnreadable),
		errors.Is(err, extract.ErrEmptyResult):
		return http.StatusUnprocessableEntity
	case errors.Is(err, doccheck.ErrUnsupportedType), errors.Is(err, extract.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, extract.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, extract.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, extract.ErrInvalidCredential):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "Project not found."
	case errors.Is(err, pipeline.ErrBusy):
		return "All processing slots are busy. Please try again shortly."
	case errors.Is(err, pipeline.ErrNoLines):
		return "This project has no dialogue lines yet. Submit a script first."
	case errors.Is(err, pipeline.ErrNoAudio):
		return "This project has no audio yet. Generate audio first."
	case errors.Is(err, doccheck.ErrTooLarge),
		errors.Is(err, doccheck.ErrTooManyPages),
		errors.Is(err, doccheck.ErrUnsupportedType),
		errors.Is(err, doccheck.ErrEmptyDocument),
		errors.Is(err, extract.ErrUnsupportedFormat),
		errors.Is(err, extract.ErrInvalidCredential),
		errors.Is(err, extract.ErrTimeout),
		errors.Is(err, extract.ErrRateLimited),
		errors.Is(err, extract.ErrUnreadable),
		errors.Is(err, extract.ErrEmptyResult):
		return doccheck.UserMessage(err)
	default:
		return "Something went wrong. Please try again."
	}
}

// badRequest writes a 400 with the given message.
func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
