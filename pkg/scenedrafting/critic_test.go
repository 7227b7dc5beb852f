package scenedrafting

import (
	"testing"

	"github.com/stretchr/testify/require"

	"narrator/pkg/proto"
)

func boolPtr(b bool) *bool { return &b }

func TestIsApproved(t *testing.T) {
	require.True(t, IsApproved(proto.Critique{RevisionNeeded: false, Score: 3}))
	require.True(t, IsApproved(proto.Critique{RevisionNeeded: true, Approved: true, Score: 3}))
	require.True(t, IsApproved(proto.Critique{RevisionNeeded: true, Score: 8}))
	require.False(t, IsApproved(proto.Critique{RevisionNeeded: true, Score: 5}))
}

func TestRequiresRevision(t *testing.T) {
	require.True(t, RequiresRevision(proto.Critique{WordCountCompliance: boolPtr(false)}))
	require.True(t, RequiresRevision(proto.Critique{ScopeAdherence: boolPtr(false)}))
	require.True(t, RequiresRevision(proto.Critique{Score: 5}))
	require.True(t, RequiresRevision(proto.Critique{Score: 7, Issues: []string{"pacing"}}))
	require.True(t, RequiresRevision(proto.Critique{Score: 9, RevisionRequests: []string{"tighten dialogue"}}))
	require.False(t, RequiresRevision(proto.Critique{Score: 9}))
}

func TestWordCountCompliant(t *testing.T) {
	require.True(t, WordCountCompliant(1400, 2000))
	require.False(t, WordCountCompliant(1000, 2000))
}

func TestScopeAdherent(t *testing.T) {
	content := "Filler content goes here. " + words(100, "padding") + " She finally reached the lighthouse at dusk."
	require.True(t, ScopeAdherent(content, "the lighthouse at dusk", nil))
	require.False(t, ScopeAdherent(content, "the lighthouse at dusk", []string{"the lighthouse"}))
}
