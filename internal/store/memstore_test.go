package store

import (
	"context"
	"errors"
	"testing"

	"github.com/readingpartner/scriptpipe/pkg/script"
)

func newProject(t *testing.T, s *MemStore, name string) *Project {
	t.Helper()
	p := &Project{Name: name}
	if err := s.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	return p
}

func TestMemStore_CreateAssignsID(t *testing.T) {
	s := NewMemStore()
	p := newProject(t, s, "Hamlet")
	if p.ID == "" {
		t.Fatal("CreateProject() left ID empty")
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Error("CreateProject() left timestamps zero")
	}
}

func TestMemStore_CreateDuplicateID(t *testing.T) {
	s := NewMemStore()
	p := newProject(t, s, "Hamlet")
	err := s.CreateProject(context.Background(), &Project{ID: p.ID, Name: "Copy"})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("CreateProject() error = %v, want ErrDuplicateID", err)
	}
}

func TestMemStore_GetMissing(t *testing.T) {
	s := NewMemStore()
	if _, err := s.GetProject(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetProject() error = %v, want ErrNotFound", err)
	}
}

func TestMemStore_SaveScriptClearsDerivedArtifacts(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newProject(t, s, "Hamlet")

	lines := []script.DialogueLine{
		{LineID: "L1", Order: 1, Character: "HAMLET", Text: "To be, or not to be."},
	}
	if err := s.SaveScript(ctx, p.ID, "raw text", "abc123", lines, nil); err != nil {
		t.Fatalf("SaveScript() error = %v", err)
	}
	if err := s.SaveAudio(ctx, p.ID, "project-x-1.mp3", "/audio/project-x-1.mp3", "To be, or not to be."); err != nil {
		t.Fatalf("SaveAudio() error = %v", err)
	}
	if err := s.SaveAlignment(ctx, p.ID, &script.Alignment{Words: []script.Span{{Text: "To"}}}); err != nil {
		t.Fatalf("SaveAlignment() error = %v", err)
	}

	// Resubmitting the script invalidates audio and alignment together.
	if err := s.SaveScript(ctx, p.ID, "new text", "def456", lines, nil); err != nil {
		t.Fatalf("SaveScript() error = %v", err)
	}
	got, err := s.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if got.ScriptText != "new text" || got.SourceSHA256 != "def456" {
		t.Errorf("script fields not updated: %+v", got)
	}
	if got.AudioObject != "" || got.AudioURL != "" || got.AudioTranscript != "" || got.Alignment != nil {
		t.Error("SaveScript() did not clear audio/alignment artifacts")
	}
}

func TestMemStore_SaveAudioClearsAlignment(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newProject(t, s, "Hamlet")

	if err := s.SaveAlignment(ctx, p.ID, &script.Alignment{Loss: 0.1}); err != nil {
		t.Fatalf("SaveAlignment() error = %v", err)
	}
	if err := s.SaveAudio(ctx, p.ID, "a.mp3", "/audio/a.mp3", "some words"); err != nil {
		t.Fatalf("SaveAudio() error = %v", err)
	}
	got, _ := s.GetProject(ctx, p.ID)
	if got.Alignment != nil {
		t.Error("SaveAudio() kept an alignment computed against earlier audio")
	}
	if got.AudioTranscript != "some words" {
		t.Errorf("AudioTranscript = %q, want %q", got.AudioTranscript, "some words")
	}
}

func TestMemStore_GetReturnsCopy(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newProject(t, s, "Hamlet")
	lines := []script.DialogueLine{{LineID: "L1", Order: 1, Character: "A", Text: "x"}}
	if err := s.SaveScript(ctx, p.ID, "t", "", lines, nil); err != nil {
		t.Fatalf("SaveScript() error = %v", err)
	}

	first, _ := s.GetProject(ctx, p.ID)
	first.Lines[0].Text = "mutated"
	second, _ := s.GetProject(ctx, p.ID)
	if second.Lines[0].Text != "x" {
		t.Error("GetProject() exposes shared mutable state")
	}
}

func TestMemStore_ReplaceCharactersPreservesFlags(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newProject(t, s, "Hamlet")

	if err := s.ReplaceCharacters(ctx, p.ID, []string{"HAMLET", "OPHELIA"}); err != nil {
		t.Fatalf("ReplaceCharacters() error = %v", err)
	}
	if err := s.SetCounterReader(ctx, p.ID, "OPHELIA", true); err != nil {
		t.Fatalf("SetCounterReader() error = %v", err)
	}

	// OPHELIA survives the replacement and keeps her flag; HORATIO is new.
	if err := s.ReplaceCharacters(ctx, p.ID, []string{"OPHELIA", "HORATIO"}); err != nil {
		t.Fatalf("ReplaceCharacters() error = %v", err)
	}
	chars, err := s.ListCharacters(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListCharacters() error = %v", err)
	}
	if len(chars) != 2 {
		t.Fatalf("ListCharacters() returned %d characters, want 2", len(chars))
	}
	if chars[0].Name != "HORATIO" || chars[1].Name != "OPHELIA" {
		t.Errorf("characters = %v, want name order HORATIO, OPHELIA", chars)
	}
	if chars[0].CounterReader || !chars[1].CounterReader {
		t.Errorf("counter-reader flags = %v/%v, want false/true", chars[0].CounterReader, chars[1].CounterReader)
	}
}

func TestMemStore_SetCounterReaderMissing(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newProject(t, s, "Hamlet")
	if err := s.SetCounterReader(ctx, p.ID, "NOBODY", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetCounterReader() error = %v, want ErrNotFound", err)
	}
}

func TestMemStore_DeleteIdempotent(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	p := newProject(t, s, "Hamlet")
	if err := s.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if err := s.DeleteProject(ctx, p.ID); err != nil {
		t.Errorf("second DeleteProject() error = %v, want nil", err)
	}
	if _, err := s.GetProject(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProject() after delete error = %v, want ErrNotFound", err)
	}
}

func TestMemStore_ListNewestFirst(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	newProject(t, s, "first")
	newProject(t, s, "second")
	projects, err := s.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("ListProjects() returned %d, want 2", len(projects))
	}
	if projects[0].CreatedAt.Before(projects[1].CreatedAt) {
		t.Error("ListProjects() not in newest-first order")
	}
}
