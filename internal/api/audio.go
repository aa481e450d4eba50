package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/readingpartner/scriptpipe/internal/blob"
)

// handleGetAudio streams a stored audio artifact. Objects are immutable, so
// clients may cache them indefinitely.
func (s *Server) handleGetAudio(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "object")
	rc, err := s.blobs.Open(r.Context(), name)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "Audio not found."})
			return
		}
		s.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := io.Copy(w, rc); err != nil {
		s.log.Warn("audio stream interrupted", "object", name, "error", err)
	}
}
