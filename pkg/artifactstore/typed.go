package artifactstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"narrator/pkg/proto"
)

func isDraftArtifact(artifactType string) bool {
	return strings.HasPrefix(artifactType, proto.ArtifactDraftScenePrefix) ||
		strings.HasPrefix(artifactType, proto.ArtifactFinalScenePrefix)
}

func isCritiqueArtifact(artifactType string) bool {
	return strings.HasPrefix(artifactType, proto.ArtifactCritiqueScenePrefix)
}

func sceneNumberFromKey(artifactType, prefix string) (int, error) {
	suffix := strings.TrimPrefix(artifactType, prefix)
	// final_scene_N and draft_scene_N share one drafts table; fall back to
	// the final prefix when the draft prefix didn't match.
	if suffix == artifactType {
		suffix = strings.TrimPrefix(artifactType, proto.ArtifactFinalScenePrefix)
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, fmt.Errorf("artifactstore: malformed scene artifact type %q: %w", artifactType, err)
	}
	return n, nil
}

// upsertCharacters replaces every character row for runID with characters,
// matching the generic artifact's "full replace" semantics (the characters
// artifact is always saved whole, never merged).
func (s *Store) upsertCharacters(ctx context.Context, runID string, characters []proto.Character) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("artifactstore: begin characters upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM characters WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("artifactstore: clear characters for run %s: %w", runID, err)
	}

	query := `
		INSERT INTO characters (run_id, name, role, psychology, backstory, updated_at)
		VALUES (?, ?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		ON CONFLICT(run_id, name) DO UPDATE SET
			role = excluded.role,
			psychology = excluded.psychology,
			backstory = excluded.backstory,
			updated_at = excluded.updated_at
	`
	for _, c := range characters {
		if _, err := tx.ExecContext(ctx, query, runID, c.Name, c.Role, c.Psychology, c.Backstory); err != nil {
			return fmt.Errorf("artifactstore: upsert character %q for run %s: %w", c.Name, runID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("artifactstore: commit characters upsert: %w", err)
	}
	return nil
}

// Characters returns the typed projection of runID's characters, ordered by
// name, independent of the generic artifacts blob.
func (s *Store) Characters(ctx context.Context, runID string) ([]proto.Character, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, role, psychology, backstory FROM characters WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("artifactstore: query characters for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []proto.Character
	for rows.Next() {
		var c proto.Character
		if err := rows.Scan(&c.Name, &c.Role, &c.Psychology, &c.Backstory); err != nil {
			return nil, fmt.Errorf("artifactstore: scan character for run %s: %w", runID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertDraft projects one scene's Draft into the typed drafts table.
func (s *Store) UpsertDraft(ctx context.Context, runID string, sceneNumber int, d proto.Draft) error {
	query := `
		INSERT INTO drafts (
			run_id, scene_number, title, content, word_count, revision_number, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		ON CONFLICT(run_id, scene_number) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			word_count = excluded.word_count,
			revision_number = excluded.revision_number,
			status = excluded.status,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		runID, sceneNumber, d.Title, d.Content, d.WordCount, d.RevisionNumber, string(d.Status), d.CreatedAt)
	if err != nil {
		return fmt.Errorf("artifactstore: upsert draft for run %s scene %d: %w", runID, sceneNumber, err)
	}
	return nil
}

// Draft returns the typed projection of one scene's draft for runID.
func (s *Store) Draft(ctx context.Context, runID string, sceneNumber int) (proto.Draft, bool, error) {
	var d proto.Draft
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT title, content, word_count, revision_number, status, created_at
		 FROM drafts WHERE run_id = ? AND scene_number = ?`,
		runID, sceneNumber,
	).Scan(&d.Title, &d.Content, &d.WordCount, &d.RevisionNumber, &status, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return proto.Draft{}, false, nil
	}
	if err != nil {
		return proto.Draft{}, false, fmt.Errorf("artifactstore: load draft for run %s scene %d: %w", runID, sceneNumber, err)
	}
	d.Status = proto.DraftStatus(status)
	return d, true, nil
}

// UpsertCritiques replaces the typed critique rows for (runID, sceneNumber)
// with the ordered slice critiques, one row per critique/revision cycle.
func (s *Store) UpsertCritiques(ctx context.Context, runID string, sceneNumber int, critiques []proto.Critique) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("artifactstore: begin critiques upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM critiques WHERE run_id = ? AND scene_number = ?`, runID, sceneNumber); err != nil {
		return fmt.Errorf("artifactstore: clear critiques for run %s scene %d: %w", runID, sceneNumber, err)
	}

	query := `
		INSERT INTO critiques (
			run_id, scene_number, sequence, score, approved, revision_needed,
			issues, revision_requests, strengths, word_count_compliance, scope_adherence
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, c := range critiques {
		if _, err := tx.ExecContext(ctx, query,
			runID, sceneNumber, i, c.Score, boolToInt(c.Approved), boolToInt(c.RevisionNeeded),
			joinStrings(c.Issues), joinStrings(c.RevisionRequests), joinStrings(c.Strengths),
			nullableBoolToInt(c.WordCountCompliance), nullableBoolToInt(c.ScopeAdherence),
		); err != nil {
			return fmt.Errorf("artifactstore: insert critique %d for run %s scene %d: %w", i, runID, sceneNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("artifactstore: commit critiques upsert: %w", err)
	}
	return nil
}

// Critiques returns the typed projection of runID's critique sequence for
// sceneNumber, ordered by their original sequence.
func (s *Store) Critiques(ctx context.Context, runID string, sceneNumber int) ([]proto.Critique, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT score, approved, revision_needed, issues, revision_requests, strengths,
		       word_count_compliance, scope_adherence
		FROM critiques WHERE run_id = ? AND scene_number = ? ORDER BY sequence`,
		runID, sceneNumber)
	if err != nil {
		return nil, fmt.Errorf("artifactstore: query critiques for run %s scene %d: %w", runID, sceneNumber, err)
	}
	defer rows.Close()

	var out []proto.Critique
	for rows.Next() {
		var c proto.Critique
		var approved, revisionNeeded int
		var issues, revisionRequests, strengths string
		var wordCountCompliance, scopeAdherence sql.NullInt64
		if err := rows.Scan(&c.Score, &approved, &revisionNeeded, &issues, &revisionRequests, &strengths,
			&wordCountCompliance, &scopeAdherence); err != nil {
			return nil, fmt.Errorf("artifactstore: scan critique for run %s scene %d: %w", runID, sceneNumber, err)
		}
		c.Approved = approved == 1
		c.RevisionNeeded = revisionNeeded == 1
		c.Issues = splitStrings(issues)
		c.RevisionRequests = splitStrings(revisionRequests)
		c.Strengths = splitStrings(strengths)
		c.WordCountCompliance = nullIntToBoolPtr(wordCountCompliance)
		c.ScopeAdherence = nullIntToBoolPtr(scopeAdherence)
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullIntToBoolPtr(n sql.NullInt64) *bool {
	if !n.Valid {
		return nil
	}
	b := n.Int64 == 1
	return &b
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableBoolToInt(b *bool) any {
	if b == nil {
		return nil
	}
	return boolToInt(*b)
}

func joinStrings(ss []string) string {
	return strings.Join(ss, "\x1f") // unit separator: issues/strengths text never contains it
}

func splitStrings(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\x1f")
}
