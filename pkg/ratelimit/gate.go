// Package ratelimit implements the RateLimitGate described in the design
// notes: a sliding-window admission check in front of ingress operations,
// fail-secure on backing-store errors.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"narrator/pkg/config"
	"narrator/pkg/logx"
)

// ErrRateLimited is returned when the identity has exhausted its window quota.
var ErrRateLimited = errors.New("rate limited")

// ErrUnavailable is returned when the backing store could not be reached.
// Callers MUST treat this as fail-secure and reject the request.
var ErrUnavailable = errors.New("rate limit store unavailable")

// Store performs the atomic sliding-window admission check for one key.
// Implementations MUST, in one atomic operation: drop entries older than
// now-windowMs, count remaining entries, admit iff count < limit (recording
// the attempt), and report how many admissions remain in the window.
type Store interface {
	Admit(ctx context.Context, key string, windowMs int64, limit int, now time.Time) (admitted bool, remaining int, resetEpochSec int64, err error)
}

// IdentityInputs carries the three candidate identifiers a transport layer
// might supply; ResolveIdentity applies the precedence order from §4.1.
// The core never parses HTTP headers or JWTs itself — a transport adapter
// (out of this module's scope) is responsible for populating these fields.
type IdentityInputs struct {
	BearerSubject string
	APIKey        string
	ClientIP      string
}

// ResolveIdentity implements the identity resolution order: bearer-token
// subject claim → API-key prefix (first 8 chars) → client IP → "unknown".
func ResolveIdentity(in IdentityInputs) string {
	if in.BearerSubject != "" {
		return in.BearerSubject
	}
	if in.APIKey != "" {
		if len(in.APIKey) > 8 {
			return in.APIKey[:8]
		}
		return in.APIKey
	}
	if in.ClientIP != "" {
		return in.ClientIP
	}
	return "unknown"
}

// Gate is the RateLimitGate: two named window configurations (default,
// expensive), selected by a path-prefix allowlist.
type Gate struct {
	store             Store
	defaultWindow     config.WindowLimit
	expensiveWindow   config.WindowLimit
	expensivePrefixes []string
	logger            *logx.Logger
}

// NewGate builds a Gate over store using the RateLimitConfig knobs.
func NewGate(store Store, cfg config.RateLimitConfig) *Gate {
	return &Gate{
		store:             store,
		defaultWindow:     cfg.Default,
		expensiveWindow:   cfg.Expensive,
		expensivePrefixes: cfg.ExpensivePrefixes,
		logger:            logx.NewLogger("ratelimit"),
	}
}

// selectWindow returns the window configuration and a config-name tag for
// the given ingress path, per the expensive-prefix allowlist.
func (g *Gate) selectWindow(path string) (config.WindowLimit, string) {
	for _, prefix := range g.expensivePrefixes {
		if strings.HasPrefix(path, prefix) {
			return g.expensiveWindow, "expensive"
		}
	}
	return g.defaultWindow, "default"
}

// Admit checks whether identity may proceed against path's selected window.
// On success it returns the number of admissions remaining in the window and
// the window's reset epoch (seconds). On rejection it returns ErrRateLimited.
// If the backing store is unreachable it returns ErrUnavailable — callers
// MUST fail the request closed (spec §4.1, "fail-secure").
func (g *Gate) Admit(ctx context.Context, identity, path string) (remaining int, resetEpochSec int64, err error) {
	window, configName := g.selectWindow(path)
	key := fmt.Sprintf("%s:%s", configName, identity)
	windowMs := int64(window.WindowSec) * 1000

	admitted, remaining, resetEpochSec, err := g.store.Admit(ctx, key, windowMs, window.Max, time.Now())
	if err != nil {
		g.logger.Warn("rate limit store unavailable for %s: %v", key, err)
		return 0, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !admitted {
		return remaining, resetEpochSec, ErrRateLimited
	}
	return remaining, resetEpochSec, nil
}
