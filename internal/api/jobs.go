package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/readingpartner/scriptpipe/internal/doccheck"
	"github.com/readingpartner/scriptpipe/internal/pipeline"
	"github.com/readingpartner/scriptpipe/pkg/provider/extract"
)

// jobAccepted is the 202 response for every asynchronous submission.
type jobAccepted struct {
	JobID     string `json:"jobId"`
	ProjectID string `json:"projectId"`
	Status    string `json:"status"`
}

// startJob launches fn on the runner and writes the 202 envelope, or the
// busy error when no worker slot is free.
func (s *Server) startJob(w http.ResponseWriter, r *http.Request, projectID string, fn pipeline.RunFunc) {
	job, err := s.runner.Start(projectID, fn)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobAccepted{
		JobID:     job.ID,
		ProjectID: projectID,
		Status:    string(pipeline.JobRunning),
	})
}

// requireProject resolves the path's project and writes a 404 when absent.
// Returns false when the response has already been written.
func (s *Server) requireProject(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "projectID")
	if _, err := s.store.GetProject(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return "", false
	}
	return id, true
}

func (s *Server) handleSubmitScript(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.requireProject(w, r)
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, s.maxUpload)).Decode(&req); err != nil {
		badRequest(w, "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(w, "Script text is required.")
		return
	}

	s.startJob(w, r, projectID, func(ctx context.Context) (*pipeline.Result, error) {
		return s.pipeline.SubmitText(ctx, projectID, req.Text)
	})
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.requireProject(w, r)
	if !ok {
		return
	}

	if r.ContentLength > s.maxUpload {
		s.writeError(w, r, doccheck.ErrTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, doccheck.ErrTooLarge)
			return
		}
		badRequest(w, "A multipart \"file\" field is required.")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	doc := extract.Document{
		Data:     data,
		MIME:     doccheck.SniffMIME(header.Filename, header.Header.Get("Content-Type")),
		Filename: header.Filename,
	}

	// Reject oversize and unsupported uploads synchronously so the client
	// gets the actionable message instead of a failed job.
	if err := s.pipeline.Validate(doc); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.startJob(w, r, projectID, func(ctx context.Context) (*pipeline.Result, error) {
		return s.pipeline.SubmitDocument(ctx, projectID, doc)
	})
}

func (s *Server) handleRetrySynthesis(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	project, err := s.store.GetProject(r.Context(), projectID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(project.Lines) == 0 {
		s.writeError(w, r, pipeline.ErrNoLines)
		return
	}

	s.startJob(w, r, projectID, func(ctx context.Context) (*pipeline.Result, error) {
		return s.pipeline.RetrySynthesis(ctx, projectID)
	})
}

func (s *Server) handleRetryAlignment(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	project, err := s.store.GetProject(r.Context(), projectID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(project.Lines) == 0 {
		s.writeError(w, r, pipeline.ErrNoLines)
		return
	}
	if project.AudioObject == "" {
		s.writeError(w, r, pipeline.ErrNoAudio)
		return
	}

	s.startJob(w, r, projectID, func(ctx context.Context) (*pipeline.Result, error) {
		return s.pipeline.RetryAlignment(ctx, projectID)
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job := s.runner.Job(chi.URLParam(r, "jobID"))
	if job == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Job not found."})
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleJobEvents upgrades to a websocket and streams the job's progress
// events as JSON text messages, replaying history for late subscribers. The
// connection closes normally once the job finishes.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	job := s.runner.Job(chi.URLParam(r, "jobID"))
	if job == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Job not found."})
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "job_id", job.ID, "error", err)
		return
	}
	defer conn.CloseNow()

	events, cancel := job.Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "job finished")
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				s.log.Error("event encode failed", "job_id", job.ID, "error", err)
				return
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}
}
