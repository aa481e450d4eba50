// Package store persists rehearsal projects: script text, the reconciled
// dialogue line sequence, synthesized audio references, alignment cue
// sheets, and per-character flags.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/readingpartner/scriptpipe/pkg/script"
)

// Errors returned by Store implementations.
var (
	ErrNotFound    = errors.New("store: not found")
	ErrDuplicateID = errors.New("store: duplicate id")
)

// Project is the durable record for one rehearsal project. Line, scene, and
// alignment data are derived artifacts of the script text: regenerating the
// script replaces all of them together.
type Project struct {
	ID           string
	Name         string
	ScriptText   string
	SourceSHA256 string
	Lines        []script.DialogueLine
	Scenes       []script.Scene
	AudioObject  string
	AudioURL     string

	// AudioTranscript is the exact transcript the audio was synthesized
	// from. Alignment retries must submit it unchanged even if character
	// flags moved since synthesis.
	AudioTranscript string

	Alignment *script.Alignment
	OwnCharacter string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Character is a speaker identity derived from a project's line sequence.
// CounterReader marks characters voiced by the synthesized audio rather
// than by the user.
type Character struct {
	ID            string
	ProjectID     string
	Name          string
	CounterReader bool
	CreatedAt     time.Time
}

// Store provides CRUD operations for projects and their characters.
// Implementations must be safe for concurrent use. Updates are
// last-writer-wins; partial pipeline progress (script saved without audio,
// audio saved without alignment) is a valid stored state.
type Store interface {
	// CreateProject inserts a new project, assigning an ID when empty.
	// Returns ErrDuplicateID if the ID is already taken.
	CreateProject(ctx context.Context, p *Project) error

	// GetProject retrieves a project by ID. Returns ErrNotFound if absent.
	GetProject(ctx context.Context, id string) (*Project, error)

	// ListProjects returns all projects, newest first.
	ListProjects(ctx context.Context) ([]Project, error)

	// RenameProject changes a project's display name.
	RenameProject(ctx context.Context, id, name string) error

	// DeleteProject removes a project and its characters. Deleting an
	// absent project is not an error.
	DeleteProject(ctx context.Context, id string) error

	// SaveScript stores the verbatim text and its derived line/scene data,
	// clearing any previous audio and alignment artifacts.
	SaveScript(ctx context.Context, projectID, text, sourceSHA256 string, lines []script.DialogueLine, scenes []script.Scene) error

	// SaveAudio records the synthesized audio artifact and the transcript
	// it was rendered from, clearing any alignment computed against
	// earlier audio.
	SaveAudio(ctx context.Context, projectID, objectName, url, transcript string) error

	// SaveAlignment records the cue sheet for the current audio artifact.
	SaveAlignment(ctx context.Context, projectID string, a *script.Alignment) error

	// SetOwnCharacter designates which character the user reads themselves.
	SetOwnCharacter(ctx context.Context, projectID, name string) error

	// ReplaceCharacters replaces a project's character set with names,
	// preserving CounterReader flags for names that survive.
	ReplaceCharacters(ctx context.Context, projectID string, names []string) error

	// ListCharacters returns a project's characters in name order.
	ListCharacters(ctx context.Context, projectID string) ([]Character, error)

	// SetCounterReader flags whether a character is voiced by the system.
	SetCounterReader(ctx context.Context, projectID, name string, counterReader bool) error
}
