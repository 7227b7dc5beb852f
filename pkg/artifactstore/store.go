// Package artifactstore implements ports.Artifacts against SQLite, following
// the teacher's single-writer, WAL-mode database-handle pattern. The generic
// JSON-blob table satisfies the ports.Artifacts contract for every artifact
// type; typed upsert helpers additionally project characters, drafts, and
// critiques into their own queryable tables as they are saved.
package artifactstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"narrator/internal/ports"
	"narrator/pkg/logx"
	"narrator/pkg/proto"
)

// Store is a SQLite-backed ports.Artifacts. Unlike the teacher's
// package-level singleton, Store is instance-scoped: internal/orchestrator
// takes it by interface, and tests want one throwaway database per case.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

var _ ports.Artifacts = (*Store)(nil)

// Open opens (and if necessary creates) the SQLite database at dbPath,
// enabling WAL mode and foreign keys and configuring SQLite's single-writer
// connection pool, then runs the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000", dbPath,
	))
	if err != nil {
		return nil, fmt.Errorf("artifactstore: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("artifactstore: ping database: %w", err)
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("artifactstore: initialize schema: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite supports exactly one writer at a time
	db.SetMaxIdleConns(1)

	return &Store{db: db, logger: logx.NewLogger("artifactstore")}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("artifactstore: close: %w", err)
	}
	return nil
}

// Save implements ports.Artifacts: marshals body to JSON and upserts it into
// the generic artifacts table keyed by (runId, artifactType). It additionally
// fans out to a typed projection when artifactType names one (§3, §6).
func (s *Store) Save(ctx context.Context, runID, artifactType string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("artifactstore: marshal %s/%s: %w", runID, artifactType, err)
	}

	query := `
		INSERT INTO artifacts (run_id, artifact_type, body, updated_at)
		VALUES (?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		ON CONFLICT(run_id, artifact_type) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, runID, artifactType, string(raw)); err != nil {
		return fmt.Errorf("artifactstore: save %s/%s: %w", runID, artifactType, err)
	}

	if err := s.projectTyped(ctx, runID, artifactType, body, raw); err != nil {
		// The generic row is already committed; a failed typed projection is
		// logged, not surfaced, since Load always reads the generic row back.
		s.logger.Warn("typed projection for %s/%s: %v", runID, artifactType, err)
	}
	return nil
}

// Load implements ports.Artifacts: looks up (runId, artifactType) in the
// generic artifacts table and unmarshals its body into out. Returns
// (false, nil) when no row exists, matching the interface's "not found"
// contract.
func (s *Store) Load(ctx context.Context, runID, artifactType string, out any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM artifacts WHERE run_id = ? AND artifact_type = ?`,
		runID, artifactType,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("artifactstore: load %s/%s: %w", runID, artifactType, err)
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("artifactstore: unmarshal %s/%s: %w", runID, artifactType, err)
	}
	return true, nil
}

// projectTyped fans a saved artifact out into its typed table, when
// artifactType names one this adapter knows how to project.
func (s *Store) projectTyped(ctx context.Context, runID, artifactType string, body any, raw []byte) error {
	switch {
	case artifactType == string(proto.ArtifactCharacters):
		var characters []proto.Character
		if err := json.Unmarshal(raw, &characters); err != nil {
			return err
		}
		return s.upsertCharacters(ctx, runID, characters)

	case isDraftArtifact(artifactType):
		draft, ok := body.(proto.Draft)
		if !ok {
			var d proto.Draft
			if err := json.Unmarshal(raw, &d); err != nil {
				return err
			}
			draft = d
		}
		sceneNumber, err := sceneNumberFromKey(artifactType, proto.ArtifactDraftScenePrefix)
		if err != nil {
			return err
		}
		return s.UpsertDraft(ctx, runID, sceneNumber, draft)

	case isCritiqueArtifact(artifactType):
		var critiques []proto.Critique
		if err := json.Unmarshal(raw, &critiques); err != nil {
			return err
		}
		sceneNumber, err := sceneNumberFromKey(artifactType, proto.ArtifactCritiqueScenePrefix)
		if err != nil {
			return err
		}
		return s.UpsertCritiques(ctx, runID, sceneNumber, critiques)
	}
	return nil
}

// RunIDsWithSnapshot returns every run_id holding a run_state_snapshot
// artifact. cmd/narratived calls this at startup and feeds each id to
// Service.RestoreRun, since ports.Artifacts has no enumeration method of its
// own (§1, §9).
func (s *Store) RunIDsWithSnapshot(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id FROM artifacts WHERE artifact_type = ?`,
		string(proto.ArtifactRunStateSnapshot),
	)
	if err != nil {
		return nil, fmt.Errorf("artifactstore: list snapshot run ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("artifactstore: scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
