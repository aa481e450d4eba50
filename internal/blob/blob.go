// Package blob stores synthesized audio artifacts. Objects are immutable:
// a name is written at most once and never overwritten, so every synthesis
// run must mint a fresh object name.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Errors returned by Store implementations.
var (
	ErrExists   = errors.New("blob: object already exists")
	ErrNotFound = errors.New("blob: object not found")
)

// Store is an immutable write-once object store for audio artifacts.
type Store interface {
	// Put writes a new object under name. It fails with ErrExists if the
	// name is already taken.
	Put(ctx context.Context, name string, r io.Reader) (string, error)
	// Open returns a reader over the named object.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Delete removes the named object. Deleting an absent object is not
	// an error.
	Delete(ctx context.Context, name string) error
	// URL returns the public path the object is served under.
	URL(name string) string
}

// AudioObjectName builds the canonical object name for a project's
// synthesized audio. The timestamp keeps names unique across retries so an
// earlier artifact is never overwritten.
func AudioObjectName(projectID string, at time.Time) string {
	return fmt.Sprintf("project-%s-%d.mp3", projectID, at.UnixMilli())
}
