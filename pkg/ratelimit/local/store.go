// Package local provides an in-process sliding-window ratelimit.Store,
// suitable for single-process deployments and tests.
package local

import (
	"context"
	"sync"
	"time"
)

// Store is a sliding window per key, held as a slice of admitted timestamps
// (ms since epoch). Entries older than the window are dropped on every call.
type Store struct {
	mu   sync.Mutex
	hits map[string][]int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{hits: make(map[string][]int64)}
}

// Admit implements ratelimit.Store: drop expired, count, conditionally
// admit, all under a single mutex — the in-process equivalent of the
// documented four-op atomic script.
func (s *Store) Admit(_ context.Context, key string, windowMs int64, limit int, now time.Time) (bool, int, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := now.UnixMilli()
	cutoff := nowMs - windowMs

	entries := s.hits[key]
	live := entries[:0]
	for _, ts := range entries {
		if ts >= cutoff {
			live = append(live, ts)
		}
	}

	resetEpochSec := now.Add(time.Duration(windowMs) * time.Millisecond).Unix()

	if len(live) >= limit {
		s.hits[key] = live
		return false, 0, resetEpochSec, nil
	}

	live = append(live, nowMs)
	s.hits[key] = live

	return true, limit - len(live), resetEpochSec, nil
}
