package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStore_SlidingWindowExpiry(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	admitted, remaining, _, err := store.Admit(ctx, "k", 1000, 1, base)
	require.NoError(t, err)
	require.True(t, admitted)
	require.Equal(t, 0, remaining)

	admitted, _, _, err = store.Admit(ctx, "k", 1000, 1, base.Add(500*time.Millisecond))
	require.NoError(t, err)
	require.False(t, admitted)

	admitted, _, _, err = store.Admit(ctx, "k", 1000, 1, base.Add(1500*time.Millisecond))
	require.NoError(t, err)
	require.True(t, admitted, "entry older than the window must have been dropped")
}

func TestStore_IndependentKeys(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	admitted, _, _, err := store.Admit(ctx, "a", 1000, 1, now)
	require.NoError(t, err)
	require.True(t, admitted)

	admitted, _, _, err = store.Admit(ctx, "b", 1000, 1, now)
	require.NoError(t, err)
	require.True(t, admitted, "separate keys must not share a window")
}
