package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/readingpartner/scriptpipe/internal/store"
	"github.com/readingpartner/scriptpipe/pkg/script"
)

// projectSummary is the list-view shape of a project.
type projectSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	HasScript    bool      `json:"hasScript"`
	HasAudio     bool      `json:"hasAudio"`
	HasAlignment bool      `json:"hasAlignment"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// projectDetail is the full project shape, including derived artifacts.
type projectDetail struct {
	projectSummary
	ScriptText   string                `json:"scriptText,omitempty"`
	Lines        []script.DialogueLine `json:"lines,omitempty"`
	Scenes       []script.Scene        `json:"scenes,omitempty"`
	AudioURL     string                `json:"audioUrl,omitempty"`
	Alignment    *script.Alignment     `json:"alignment,omitempty"`
	OwnCharacter string                `json:"ownCharacter,omitempty"`
	Characters   []characterView       `json:"characters"`
}

type characterView struct {
	Name          string `json:"name"`
	CounterReader bool   `json:"counterReader"`
}

func summarize(p *store.Project) projectSummary {
	return projectSummary{
		ID:           p.ID,
		Name:         p.Name,
		HasScript:    p.ScriptText != "",
		HasAudio:     p.AudioObject != "",
		HasAlignment: p.Alignment != nil,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body.")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		badRequest(w, "A project name is required.")
		return
	}

	p := &store.Project{Name: req.Name}
	if err := s.store.CreateProject(r.Context(), p); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, summarize(p))
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]projectSummary, 0, len(projects))
	for i := range projects {
		out = append(out, summarize(&projects[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	p, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	chars, err := s.store.ListCharacters(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	detail := projectDetail{
		projectSummary: summarize(p),
		ScriptText:     p.ScriptText,
		Lines:          p.Lines,
		Scenes:         p.Scenes,
		AudioURL:       p.AudioURL,
		Alignment:      p.Alignment,
		OwnCharacter:   p.OwnCharacter,
		Characters:     make([]characterView, 0, len(chars)),
	}
	for _, c := range chars {
		detail.Characters = append(detail.Characters, characterView{Name: c.Name, CounterReader: c.CounterReader})
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleRenameProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body.")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		badRequest(w, "A project name is required.")
		return
	}
	if err := s.store.RenameProject(r.Context(), chi.URLParam(r, "projectID"), req.Name); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProject(r.Context(), chi.URLParam(r, "projectID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCharacters(w http.ResponseWriter, r *http.Request) {
	chars, err := s.store.ListCharacters(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]characterView, 0, len(chars))
	for _, c := range chars {
		out = append(out, characterView{Name: c.Name, CounterReader: c.CounterReader})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetCounterReader(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CounterReader bool `json:"counterReader"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body.")
		return
	}
	projectID := chi.URLParam(r, "projectID")
	name := chi.URLParam(r, "name")
	if err := s.store.SetCounterReader(r.Context(), projectID, name, req.CounterReader); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetOwnCharacter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Character string `json:"character"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body.")
		return
	}
	// An empty character clears the selection.
	if err := s.store.SetOwnCharacter(r.Context(), chi.URLParam(r, "projectID"), strings.TrimSpace(req.Character)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
