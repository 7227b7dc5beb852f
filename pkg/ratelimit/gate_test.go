package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"narrator/pkg/config"
	"narrator/pkg/ratelimit/local"
)

func TestResolveIdentity(t *testing.T) {
	cases := []struct {
		name string
		in   IdentityInputs
		want string
	}{
		{"bearer wins", IdentityInputs{BearerSubject: "user-1", APIKey: "abcdefghij", ClientIP: "1.2.3.4"}, "user-1"},
		{"api key prefix", IdentityInputs{APIKey: "abcdefghij", ClientIP: "1.2.3.4"}, "abcdefgh"},
		{"short api key kept whole", IdentityInputs{APIKey: "abc"}, "abc"},
		{"client ip fallback", IdentityInputs{ClientIP: "1.2.3.4"}, "1.2.3.4"},
		{"unknown fallback", IdentityInputs{}, "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ResolveIdentity(tc.in))
		})
	}
}

func TestGate_AdmitWithinLimit(t *testing.T) {
	store := local.New()
	cfg := config.RateLimitConfig{
		Default:           config.WindowLimit{WindowSec: 60, Max: 2},
		Expensive:         config.WindowLimit{WindowSec: 60, Max: 1},
		ExpensivePrefixes: []string{"/generate"},
	}
	gate := NewGate(store, cfg)
	ctx := context.Background()

	remaining, _, err := gate.Admit(ctx, "identityA", "/status")
	require.NoError(t, err)
	require.Equal(t, 1, remaining)

	remaining, _, err = gate.Admit(ctx, "identityA", "/status")
	require.NoError(t, err)
	require.Equal(t, 0, remaining)

	_, _, err = gate.Admit(ctx, "identityA", "/status")
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestGate_ExpensivePrefixUsesSeparateWindow(t *testing.T) {
	store := local.New()
	cfg := config.RateLimitConfig{
		Default:           config.WindowLimit{WindowSec: 60, Max: 100},
		Expensive:         config.WindowLimit{WindowSec: 60, Max: 1},
		ExpensivePrefixes: []string{"/generate"},
	}
	gate := NewGate(store, cfg)
	ctx := context.Background()

	_, _, err := gate.Admit(ctx, "identityA", "/generate/start")
	require.NoError(t, err)

	_, _, err = gate.Admit(ctx, "identityA", "/generate/start")
	require.ErrorIs(t, err, ErrRateLimited)

	// Default path for the same identity is an independent window.
	_, _, err = gate.Admit(ctx, "identityA", "/status")
	require.NoError(t, err)
}

type unavailableStore struct{}

func (unavailableStore) Admit(context.Context, string, int64, int, time.Time) (bool, int, int64, error) {
	return false, 0, 0, errors.New("connection refused")
}

func TestGate_UnavailableStoreFailsSecure(t *testing.T) {
	gate := NewGate(unavailableStore{}, config.DefaultRateLimitConfig())
	_, _, err := gate.Admit(context.Background(), "identityA", "/status")
	require.ErrorIs(t, err, ErrUnavailable)
}
