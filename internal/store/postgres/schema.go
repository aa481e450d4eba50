// Package postgres provides the PostgreSQL-backed implementation of the
// project store.
//
// Line, scene, and alignment data are stored as JSONB alongside the project
// row: they are derived artifacts replaced wholesale on each submission, so
// relational decomposition would buy nothing but join overhead.
//
// Usage:
//
//	st, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer st.Close()
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlProjects = `
CREATE TABLE IF NOT EXISTS projects (
    id               TEXT         PRIMARY KEY,
    name             TEXT         NOT NULL,
    script_text      TEXT         NOT NULL DEFAULT '',
    source_sha256    TEXT         NOT NULL DEFAULT '',
    lines            JSONB        NOT NULL DEFAULT '[]',
    scenes           JSONB        NOT NULL DEFAULT '[]',
    audio_object     TEXT         NOT NULL DEFAULT '',
    audio_url        TEXT         NOT NULL DEFAULT '',
    audio_transcript TEXT         NOT NULL DEFAULT '',
    alignment        JSONB,
    own_character    TEXT         NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_projects_created_at
    ON projects (created_at DESC);
`

const ddlCharacters = `
CREATE TABLE IF NOT EXISTS characters (
    id             TEXT         PRIMARY KEY,
    project_id     TEXT         NOT NULL REFERENCES projects (id) ON DELETE CASCADE,
    name           TEXT         NOT NULL,
    counter_reader BOOLEAN      NOT NULL DEFAULT FALSE,
    created_at     TIMESTAMPTZ  NOT NULL DEFAULT now(),
    UNIQUE (project_id, name)
);

CREATE INDEX IF NOT EXISTS idx_characters_project_id
    ON characters (project_id);
`

// Migrate creates or ensures all required database tables exist. It is
// idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlProjects,
		ddlCharacters,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
