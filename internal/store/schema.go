package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS campaign (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    program_name TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    parameters TEXT NOT NULL,  -- JSON array of declared names, in order
    seed_arg TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    combo_key TEXT NOT NULL,
    parameters TEXT NOT NULL,  -- JSON object: name -> {kind, value}
    seed INTEGER NOT NULL,
    exit_code INTEGER NOT NULL,
    failed INTEGER NOT NULL,
    failure_kind TEXT NOT NULL DEFAULT '',
    stdout TEXT NOT NULL,
    stderr TEXT NOT NULL,
    duration_ms INTEGER NOT NULL,
    output_files TEXT NOT NULL,  -- JSON array of relative paths
    created_at TEXT NOT NULL,
    UNIQUE (combo_key, seed)
);
CREATE INDEX IF NOT EXISTS idx_runs_combo ON runs(combo_key);

CREATE TABLE IF NOT EXISTS schema_meta (
    version INTEGER NOT NULL
);
`

// InitSchema creates the schema if needed and records the version.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	var version int
	err := db.QueryRowContext(ctx, `SELECT version FROM schema_meta LIMIT 1`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_meta (version) VALUES (?)`, SchemaVersion); err != nil {
			return fmt.Errorf("recording schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("reading schema version: %w", err)
	case version > SchemaVersion:
		return fmt.Errorf("store schema version %d is newer than supported %d", version, SchemaVersion)
	}
	return nil
}
