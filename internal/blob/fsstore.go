package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FSStore keeps objects as flat files under a root directory and serves
// them under a URL prefix.
type FSStore struct {
	root   string
	prefix string
}

// Option configures an FSStore.
type Option func(*FSStore)

// WithURLPrefix overrides the path prefix objects are served under.
func WithURLPrefix(prefix string) Option {
	return func(s *FSStore) { s.prefix = prefix }
}

// NewFSStore returns a store rooted at dir, creating it if needed.
func NewFSStore(dir string, opts ...Option) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create root: %w", err)
	}
	s := &FSStore{root: dir, prefix: "/audio/"}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *FSStore) path(name string) (string, error) {
	// Object names are flat; anything that walks the tree is rejected.
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("blob: invalid object name %q", name)
	}
	return filepath.Join(s.root, name), nil
}

// Put writes a new object. O_EXCL guarantees an existing artifact is never
// clobbered, even under concurrent retries.
func (s *FSStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	p, err := s.path(name)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("blob: put %s: %w", name, ErrExists)
		}
		return "", fmt.Errorf("blob: put %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p)
		return "", fmt.Errorf("blob: put %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return "", fmt.Errorf("blob: put %s: %w", name, err)
	}
	return s.URL(name), nil
}

// Open returns a reader over the named object.
func (s *FSStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("blob: open %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("blob: open %s: %w", name, err)
	}
	return f, nil
}

// Delete removes the named object if present.
func (s *FSStore) Delete(ctx context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blob: delete %s: %w", name, err)
	}
	return nil
}

// URL returns the serving path for name.
func (s *FSStore) URL(name string) string {
	return path.Join(s.prefix, name)
}
