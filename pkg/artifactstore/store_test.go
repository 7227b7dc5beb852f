package artifactstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"narrator/pkg/proto"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "artifacts.db")
	s, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndLoad_RoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	outline := proto.Outline{Scenes: []proto.OutlineScene{{SceneNumber: 1, Title: "The Arrival"}}}
	require.NoError(t, s.Save(ctx, "run-1", string(proto.ArtifactOutline), outline))

	var loaded proto.Outline
	found, err := s.Load(ctx, "run-1", string(proto.ArtifactOutline), &loaded)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, outline, loaded)
}

func TestLoad_MissingArtifactReturnsFalse(t *testing.T) {
	s := openTestStore(t)
	var out proto.Outline
	found, err := s.Load(context.Background(), "nonexistent-run", string(proto.ArtifactOutline), &out)
	require.NoError(t, err)
	require.False(t, found)
}

func TestSave_UpsertOverwritesPreviousBody(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "run-1", string(proto.ArtifactNarrative), proto.Narrative{Genre: "noir"}))
	require.NoError(t, s.Save(ctx, "run-1", string(proto.ArtifactNarrative), proto.Narrative{Genre: "comedy"}))

	var loaded proto.Narrative
	found, err := s.Load(ctx, "run-1", string(proto.ArtifactNarrative), &loaded)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "comedy", loaded.Genre)
}

func TestSave_CharactersProjectsIntoTypedTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	characters := []proto.Character{
		{Name: "Mara", Role: "protagonist", Psychology: "guarded"},
		{Name: "Oren", Role: "antagonist"},
	}
	require.NoError(t, s.Save(ctx, "run-1", string(proto.ArtifactCharacters), characters))

	rows, err := s.Characters(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Mara", rows[0].Name)
	require.Equal(t, "guarded", rows[0].Psychology)

	// A second save with a pared-down roster must fully replace, not merge.
	require.NoError(t, s.Save(ctx, "run-1", string(proto.ArtifactCharacters), []proto.Character{
		{Name: "Mara", Role: "protagonist"},
	}))
	rows, err = s.Characters(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestSave_DraftScenePrefixProjectsIntoTypedTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	draft := proto.Draft{
		Title: "Scene One", Content: "It began at dawn.", WordCount: 4,
		Status: proto.DraftStatusFinal, CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.Save(ctx, "run-1", "draft_scene_3", draft))

	got, found, err := s.Draft(ctx, "run-1", 3)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, draft.Title, got.Title)
	require.Equal(t, draft.Status, got.Status)
}

func TestSave_CritiqueScenePrefixProjectsIntoTypedTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	compliance := true
	critiques := []proto.Critique{
		{Score: 60, Approved: false, RevisionNeeded: true, Issues: []string{"pacing", "dialogue"}},
		{Score: 85, Approved: true, WordCountCompliance: &compliance},
	}
	require.NoError(t, s.Save(ctx, "run-1", "critique_scene_2", critiques))

	rows, err := s.Critiques(ctx, "run-1", 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, []string{"pacing", "dialogue"}, rows[0].Issues)
	require.False(t, rows[0].Approved)
	require.True(t, rows[1].Approved)
	require.NotNil(t, rows[1].WordCountCompliance)
	require.True(t, *rows[1].WordCountCompliance)
}

func TestRunIDsWithSnapshot_OnlyListsRunsWithASnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "run-a", string(proto.ArtifactRunStateSnapshot), map[string]any{"phase": "drafting"}))
	require.NoError(t, s.Save(ctx, "run-b", string(proto.ArtifactOutline), proto.Outline{}))

	ids, err := s.RunIDsWithSnapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"run-a"}, ids)
}

func TestUpsertDraft_OverwritesSameScene(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertDraft(ctx, "run-1", 1, proto.Draft{Title: "v1", Status: proto.DraftStatusDrafting}))
	require.NoError(t, s.UpsertDraft(ctx, "run-1", 1, proto.Draft{Title: "v2", Status: proto.DraftStatusFinal}))

	got, found, err := s.Draft(ctx, "run-1", 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v2", got.Title)
	require.Equal(t, proto.DraftStatusFinal, got.Status)
}
