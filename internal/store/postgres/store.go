package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/readingpartner/scriptpipe/internal/store"
	"github.com/readingpartner/scriptpipe/pkg/script"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is the PostgreSQL-backed project store. It holds a single
// [pgxpool.Pool]; all operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store, establishes a connection pool to the PostgreSQL
// database at dsn, and runs [Migrate] to ensure all required tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("project store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("project store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("project store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("project store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

const projectColumns = `
	id, name, script_text, source_sha256, lines, scenes,
	audio_object, audio_url, audio_transcript, alignment, own_character, created_at, updated_at`

// CreateProject implements [store.Store].
func (s *Store) CreateProject(ctx context.Context, p *store.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	const q = `
		INSERT INTO projects (id, name, script_text, source_sha256, lines, scenes, own_character)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	lines := p.Lines
	if lines == nil {
		lines = []script.DialogueLine{}
	}
	scenes := p.Scenes
	if scenes == nil {
		scenes = []script.Scene{}
	}

	err := s.pool.QueryRow(ctx, q,
		p.ID, p.Name, p.ScriptText, p.SourceSHA256, lines, scenes, p.OwnCharacter,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateID
		}
		return fmt.Errorf("project store: create: %w", err)
	}
	return nil
}

// GetProject implements [store.Store].
func (s *Store) GetProject(ctx context.Context, id string) (*store.Project, error) {
	q := "SELECT" + projectColumns + " FROM projects WHERE id = $1"

	row := s.pool.QueryRow(ctx, q, id)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("project store: get: %w", err)
	}
	return &p, nil
}

// ListProjects implements [store.Store].
func (s *Store) ListProjects(ctx context.Context) ([]store.Project, error) {
	q := "SELECT" + projectColumns + " FROM projects ORDER BY created_at DESC, id"

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("project store: list: %w", err)
	}
	projects, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Project, error) {
		return scanProject(row)
	})
	if err != nil {
		return nil, fmt.Errorf("project store: list: %w", err)
	}
	return projects, nil
}

// RenameProject implements [store.Store].
func (s *Store) RenameProject(ctx context.Context, id, name string) error {
	const q = `UPDATE projects SET name = $2, updated_at = now() WHERE id = $1`
	return s.exec(ctx, "rename", q, id, name)
}

// DeleteProject implements [store.Store]. Characters cascade.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("project store: delete: %w", err)
	}
	return nil
}

// SaveScript implements [store.Store]. Audio and alignment artifacts derived
// from a previous script are cleared in the same statement.
func (s *Store) SaveScript(ctx context.Context, projectID, text, sourceSHA256 string, lines []script.DialogueLine, scenes []script.Scene) error {
	const q = `
		UPDATE projects
		SET    script_text = $2, source_sha256 = $3, lines = $4, scenes = $5,
		       audio_object = '', audio_url = '', audio_transcript = '',
		       alignment = NULL, updated_at = now()
		WHERE  id = $1`

	if lines == nil {
		lines = []script.DialogueLine{}
	}
	if scenes == nil {
		scenes = []script.Scene{}
	}
	return s.exec(ctx, "save script", q, projectID, text, sourceSHA256, lines, scenes)
}

// SaveAudio implements [store.Store].
func (s *Store) SaveAudio(ctx context.Context, projectID, objectName, url, transcript string) error {
	const q = `
		UPDATE projects
		SET    audio_object = $2, audio_url = $3, audio_transcript = $4,
		       alignment = NULL, updated_at = now()
		WHERE  id = $1`
	return s.exec(ctx, "save audio", q, projectID, objectName, url, transcript)
}

// SaveAlignment implements [store.Store].
func (s *Store) SaveAlignment(ctx context.Context, projectID string, a *script.Alignment) error {
	const q = `UPDATE projects SET alignment = $2, updated_at = now() WHERE id = $1`
	return s.exec(ctx, "save alignment", q, projectID, a)
}

// SetOwnCharacter implements [store.Store].
func (s *Store) SetOwnCharacter(ctx context.Context, projectID, name string) error {
	const q = `UPDATE projects SET own_character = $2, updated_at = now() WHERE id = $1`
	return s.exec(ctx, "set own character", q, projectID, name)
}

// ReplaceCharacters implements [store.Store]. Names that survive the
// replacement keep their CounterReader flag; the rest are removed.
func (s *Store) ReplaceCharacters(ctx context.Context, projectID string, names []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("project store: replace characters: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, projectID).Scan(&exists); err != nil {
		return fmt.Errorf("project store: replace characters: %w", err)
	}
	if !exists {
		return store.ErrNotFound
	}

	if len(names) == 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM characters WHERE project_id = $1`, projectID); err != nil {
			return fmt.Errorf("project store: replace characters: %w", err)
		}
		return tx.Commit(ctx)
	}

	const del = `DELETE FROM characters WHERE project_id = $1 AND NOT (name = ANY($2))`
	if _, err := tx.Exec(ctx, del, projectID, names); err != nil {
		return fmt.Errorf("project store: replace characters: %w", err)
	}

	const ins = `
		INSERT INTO characters (id, project_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, name) DO NOTHING`
	for _, name := range names {
		if _, err := tx.Exec(ctx, ins, uuid.NewString(), projectID, name); err != nil {
			return fmt.Errorf("project store: replace characters: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// ListCharacters implements [store.Store].
func (s *Store) ListCharacters(ctx context.Context, projectID string) ([]store.Character, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, projectID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("project store: list characters: %w", err)
	}
	if !exists {
		return nil, store.ErrNotFound
	}

	const q = `
		SELECT id, project_id, name, counter_reader, created_at
		FROM   characters
		WHERE  project_id = $1
		ORDER  BY name`

	rows, err := s.pool.Query(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("project store: list characters: %w", err)
	}
	chars, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Character, error) {
		var c store.Character
		err := row.Scan(&c.ID, &c.ProjectID, &c.Name, &c.CounterReader, &c.CreatedAt)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("project store: list characters: %w", err)
	}
	return chars, nil
}

// SetCounterReader implements [store.Store].
func (s *Store) SetCounterReader(ctx context.Context, projectID, name string, counterReader bool) error {
	const q = `UPDATE characters SET counter_reader = $3 WHERE project_id = $1 AND name = $2`

	tag, err := s.pool.Exec(ctx, q, projectID, name, counterReader)
	if err != nil {
		return fmt.Errorf("project store: set counter reader: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// exec runs an UPDATE that must touch exactly one project row.
func (s *Store) exec(ctx context.Context, action, q string, args ...any) error {
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("project store: %s: %w", action, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// scanProject scans one project row. JSONB columns decode directly into the
// derived-artifact types.
func scanProject(row pgx.Row) (store.Project, error) {
	var p store.Project
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.ScriptText,
		&p.SourceSHA256,
		&p.Lines,
		&p.Scenes,
		&p.AudioObject,
		&p.AudioURL,
		&p.AudioTranscript,
		&p.Alignment,
		&p.OwnCharacter,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
