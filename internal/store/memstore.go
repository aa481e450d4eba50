package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/readingpartner/scriptpipe/pkg/script"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// It is suitable for development and testing.
type MemStore struct {
	mu         sync.RWMutex
	projects   map[string]Project
	characters map[string]map[string]Character // projectID → name → Character
	now        func() time.Time
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		projects:   make(map[string]Project),
		characters: make(map[string]map[string]Character),
		now:        time.Now,
	}
}

// CreateProject implements [Store.CreateProject].
func (s *MemStore) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.projects[p.ID]; exists {
		return ErrDuplicateID
	}

	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	s.projects[p.ID] = cloneProject(*p)
	s.characters[p.ID] = make(map[string]Character)
	return nil
}

// GetProject implements [Store.GetProject].
func (s *MemStore) GetProject(ctx context.Context, id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneProject(p)
	return &out, nil
}

// ListProjects implements [Store.ListProjects].
func (s *MemStore) ListProjects(ctx context.Context) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, cloneProject(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// RenameProject implements [Store.RenameProject].
func (s *MemStore) RenameProject(ctx context.Context, id, name string) error {
	return s.update(id, func(p *Project) { p.Name = name })
}

// DeleteProject implements [Store.DeleteProject].
func (s *MemStore) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.projects, id)
	delete(s.characters, id)
	return nil
}

// SaveScript implements [Store.SaveScript]. Audio and alignment artifacts
// derived from a previous script are cleared.
func (s *MemStore) SaveScript(ctx context.Context, projectID, text, sourceSHA256 string, lines []script.DialogueLine, scenes []script.Scene) error {
	return s.update(projectID, func(p *Project) {
		p.ScriptText = text
		p.SourceSHA256 = sourceSHA256
		p.Lines = append([]script.DialogueLine(nil), lines...)
		p.Scenes = append([]script.Scene(nil), scenes...)
		p.AudioObject = ""
		p.AudioURL = ""
		p.AudioTranscript = ""
		p.Alignment = nil
	})
}

// SaveAudio implements [Store.SaveAudio].
func (s *MemStore) SaveAudio(ctx context.Context, projectID, objectName, url, transcript string) error {
	return s.update(projectID, func(p *Project) {
		p.AudioObject = objectName
		p.AudioURL = url
		p.AudioTranscript = transcript
		p.Alignment = nil
	})
}

// SaveAlignment implements [Store.SaveAlignment].
func (s *MemStore) SaveAlignment(ctx context.Context, projectID string, a *script.Alignment) error {
	return s.update(projectID, func(p *Project) {
		if a == nil {
			p.Alignment = nil
			return
		}
		cp := *a
		cp.Characters = append([]script.Span(nil), a.Characters...)
		cp.Words = append([]script.Span(nil), a.Words...)
		p.Alignment = &cp
	})
}

// SetOwnCharacter implements [Store.SetOwnCharacter].
func (s *MemStore) SetOwnCharacter(ctx context.Context, projectID, name string) error {
	return s.update(projectID, func(p *Project) { p.OwnCharacter = name })
}

// ReplaceCharacters implements [Store.ReplaceCharacters].
func (s *MemStore) ReplaceCharacters(ctx context.Context, projectID string, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return ErrNotFound
	}

	prev := s.characters[projectID]
	next := make(map[string]Character, len(names))
	for _, name := range names {
		if c, ok := prev[name]; ok {
			next[name] = c
			continue
		}
		next[name] = Character{
			ID:        uuid.NewString(),
			ProjectID: projectID,
			Name:      name,
			CreatedAt: s.now(),
		}
	}
	s.characters[projectID] = next
	return nil
}

// ListCharacters implements [Store.ListCharacters].
func (s *MemStore) ListCharacters(ctx context.Context, projectID string) ([]Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chars, ok := s.characters[projectID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Character, 0, len(chars))
	for _, c := range chars {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SetCounterReader implements [Store.SetCounterReader].
func (s *MemStore) SetCounterReader(ctx context.Context, projectID, name string, counterReader bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chars, ok := s.characters[projectID]
	if !ok {
		return ErrNotFound
	}
	c, ok := chars[name]
	if !ok {
		return ErrNotFound
	}
	c.CounterReader = counterReader
	chars[name] = c
	return nil
}

func (s *MemStore) update(id string, fn func(*Project)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return ErrNotFound
	}
	fn(&p)
	p.UpdatedAt = s.now()
	s.projects[id] = p
	return nil
}

// cloneProject deep-copies slice and pointer fields so callers cannot
// mutate stored state.
func cloneProject(p Project) Project {
	p.Lines = append([]script.DialogueLine(nil), p.Lines...)
	p.Scenes = append([]script.Scene(nil), p.Scenes...)
	if p.Alignment != nil {
		cp := *p.Alignment
		cp.Characters = append([]script.Span(nil), p.Alignment.Characters...)
		cp.Words = append([]script.Span(nil), p.Alignment.Words...)
		p.Alignment = &cp
	}
	return p
}
