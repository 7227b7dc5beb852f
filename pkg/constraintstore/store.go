// Package constraintstore implements the append-only ConstraintStore: seed
// constraints installed once at the end of Genesis, mutable constraints
// merged with last-writer-wins semantics per key, and deterministic
// rendering for prompt injection.
package constraintstore

import (
	"fmt"
	"strings"
	"sync"

	"narrator/pkg/proto"
)

// Store holds one run's constraints, in insertion order.
type Store struct {
	mu          sync.Mutex
	constraints []proto.KeyConstraint
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// Restore rebuilds a Store from a previously taken Snapshot, preserving
// insertion order and every entry's Immutable flag exactly as recorded.
// Used when resuming a run from a run_state_snapshot artifact (§6, §9).
func Restore(constraints []proto.KeyConstraint) *Store {
	s := &Store{constraints: append([]proto.KeyConstraint(nil), constraints...)}
	return s
}

// AddSeed installs the seed (immutable) constraints. Idempotent: if any
// immutable constraint already exists for this run, the call is a no-op.
func (s *Store) AddSeed(constraints []proto.KeyConstraint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.constraints {
		if c.Immutable {
			return
		}
	}

	for _, c := range constraints {
		c.Immutable = true
		s.constraints = append(s.constraints, c)
	}
}

// activeIndex returns the index of the entry currently active for key: the
// immutable entry if one exists, otherwise the mutable entry with the
// highest timestamp. Returns -1 if key has no entry.
func (s *Store) activeIndex(key string) int {
	active := -1
	for i, c := range s.constraints {
		if c.Key != key {
			continue
		}
		if c.Immutable {
			return i
		}
		if active == -1 || c.Timestamp.After(s.constraints[active].Timestamp) {
			active = i
		}
	}
	return active
}

// Merge applies proposed constraints: an entry colliding on key with an
// existing immutable entry is dropped; an entry whose timestamp is strictly
// newer than the currently active mutable entry for that key replaces it in
// place; otherwise it is appended as a new (inactive) history entry.
func (s *Store) Merge(proposed []proto.KeyConstraint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range proposed {
		idx := s.activeIndex(p.Key)
		switch {
		case idx == -1:
			s.constraints = append(s.constraints, p)
		case s.constraints[idx].Immutable:
			// dropped — immutable entries are permanent.
		case p.Timestamp.After(s.constraints[idx].Timestamp):
			s.constraints[idx] = p
		default:
			s.constraints = append(s.constraints, p)
		}
	}
}

// Snapshot returns all stored constraints in insertion order. A mutable entry
// replaced by a newer proposal was overwritten in place and is not included;
// proposals that were not newer than the active entry are included as
// inactive entries.
func (s *Store) Snapshot() []proto.KeyConstraint {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]proto.KeyConstraint, len(s.constraints))
	copy(out, s.constraints)
	return out
}

// Active returns one entry per key: the immutable entry where one exists,
// otherwise the mutable entry with the highest timestamp — the set that
// should actually be rendered into prompts via RenderBlock.
func (s *Store) Active() []proto.KeyConstraint {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	var keys []string
	for _, c := range s.constraints {
		if !seen[c.Key] {
			seen[c.Key] = true
			keys = append(keys, c.Key)
		}
	}

	out := make([]proto.KeyConstraint, 0, len(keys))
	for _, k := range keys {
		idx := s.activeIndex(k)
		if idx >= 0 {
			out = append(out, s.constraints[idx])
		}
	}
	return out
}

// RenderBlock deterministically serializes constraints for prompt
// injection: one "- key: value [IMMUTABLE]" line per entry, in the order
// given.
func RenderBlock(constraints []proto.KeyConstraint) string {
	lines := make([]string, 0, len(constraints))
	for _, c := range constraints {
		if c.Immutable {
			lines = append(lines, fmt.Sprintf("- %s: %s [IMMUTABLE]", c.Key, c.Value))
		} else {
			lines = append(lines, fmt.Sprintf("- %s: %s", c.Key, c.Value))
		}
	}
	return strings.Join(lines, "\n")
}
