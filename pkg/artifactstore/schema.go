package artifactstore

import (
	"database/sql"
	"fmt"
)

// currentSchemaVersion tracks the artifactstore schema for future migrations,
// mirroring the teacher's schema_version bookkeeping even though this module
// has only ever shipped one version so far.
const currentSchemaVersion = 1

// createSchema creates every table artifactstore needs. Safe to call on an
// already-initialized database: every statement is idempotent.
func createSchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("artifactstore: pragma %s: %w", pragma, err)
		}
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		// Generic artifact store: every ports.Artifacts.Save call lands a row
		// here, keyed by (run_id, artifact_type), body as a JSON blob.
		`CREATE TABLE IF NOT EXISTS artifacts (
			run_id        TEXT NOT NULL,
			artifact_type TEXT NOT NULL,
			body          TEXT NOT NULL,
			updated_at    DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			PRIMARY KEY (run_id, artifact_type)
		)`,

		// Typed projection of the "characters" artifact, one row per
		// character per run, queryable independent of the JSON blob.
		`CREATE TABLE IF NOT EXISTS characters (
			run_id     TEXT NOT NULL,
			name       TEXT NOT NULL,
			role       TEXT NOT NULL,
			psychology TEXT,
			backstory  TEXT,
			updated_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			PRIMARY KEY (run_id, name)
		)`,

		// Typed projection of per-scene drafts.
		`CREATE TABLE IF NOT EXISTS drafts (
			run_id          TEXT NOT NULL,
			scene_number    INTEGER NOT NULL,
			title           TEXT NOT NULL,
			content         TEXT NOT NULL,
			word_count      INTEGER NOT NULL,
			revision_number INTEGER NOT NULL,
			status          TEXT NOT NULL CHECK (status IN ('drafting','revising','approved','final')),
			created_at      DATETIME NOT NULL,
			updated_at      DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			PRIMARY KEY (run_id, scene_number)
		)`,

		// Typed projection of per-scene critique passes. A scene accumulates
		// one row per critique/revision cycle, ordered by sequence.
		`CREATE TABLE IF NOT EXISTS critiques (
			run_id                TEXT NOT NULL,
			scene_number          INTEGER NOT NULL,
			sequence              INTEGER NOT NULL,
			score                 INTEGER NOT NULL,
			approved              INTEGER NOT NULL CHECK (approved IN (0, 1)),
			revision_needed       INTEGER NOT NULL CHECK (revision_needed IN (0, 1)),
			issues                TEXT,
			revision_requests     TEXT,
			strengths             TEXT,
			word_count_compliance INTEGER,
			scope_adherence       INTEGER,
			created_at            DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			PRIMARY KEY (run_id, scene_number, sequence)
		)`,
	}
	for _, ddl := range tables {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("artifactstore: create table: %w", err)
		}
	}

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id)",
		"CREATE INDEX IF NOT EXISTS idx_artifacts_type ON artifacts(artifact_type)",
		"CREATE INDEX IF NOT EXISTS idx_characters_run ON characters(run_id)",
		"CREATE INDEX IF NOT EXISTS idx_drafts_run ON drafts(run_id)",
		"CREATE INDEX IF NOT EXISTS idx_drafts_status ON drafts(status)",
		"CREATE INDEX IF NOT EXISTS idx_critiques_run_scene ON critiques(run_id, scene_number)",
	}
	for _, ddl := range indices {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("artifactstore: create index: %w", err)
		}
	}

	return setSchemaVersion(db, currentSchemaVersion)
}

func setSchemaVersion(db *sql.DB, version int) error {
	_, err := db.Exec(`INSERT OR REPLACE INTO schema_version (version) VALUES (?)`, version)
	if err != nil {
		return fmt.Errorf("artifactstore: set schema version: %w", err)
	}
	return nil
}
