// Package local provides an in-process eventlog.Store: a per-run slice of
// events plus a broadcast channel that Tail subscribers wait on, woken by
// every Publish (the channel-close broadcast idiom, since append-only
// history is read under the same lock that swaps the channel).
package local

import (
	"context"
	"sync"
	"time"

	"narrator/pkg/eventlog"
	"narrator/pkg/proto"
)

type runLog struct {
	mu     sync.Mutex
	events []proto.Event
	nextID int64
	notify chan struct{}
}

// Store is an in-process, per-run eventlog.Store. It is the default and
// what package tests exercise; pkg/eventlog/redisstore is for multi-process
// deployments.
type Store struct {
	mu   sync.Mutex
	runs map[string]*runLog
}

// New returns an empty Store.
func New() *Store {
	return &Store{runs: make(map[string]*runLog)}
}

func (s *Store) getOrCreate(runID string) *runLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	rl, ok := s.runs[runID]
	if !ok {
		rl = &runLog{notify: make(chan struct{}), nextID: 1}
		s.runs[runID] = rl
	}
	return rl
}

// Publish implements eventlog.Store.
func (s *Store) Publish(_ context.Context, runID string, eventType proto.EventType, data any) (proto.Event, error) {
	rl := s.getOrCreate(runID)

	rl.mu.Lock()
	e := proto.Event{
		ID:        rl.nextID,
		RunID:     runID,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	rl.nextID++
	rl.events = append(rl.events, e)

	// Broadcast: close the current notify channel (waking every Tail
	// goroutine blocked on it) and install a fresh one for the next wait.
	close(rl.notify)
	rl.notify = make(chan struct{})
	rl.mu.Unlock()

	return e, nil
}

// Range implements eventlog.Store.
func (s *Store) Range(_ context.Context, runID string, fromID int64, max int) ([]proto.Event, error) {
	rl := s.getOrCreate(runID)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	out := make([]proto.Event, 0, max)
	for _, e := range rl.events {
		if e.ID > fromID {
			out = append(out, e)
			if len(out) >= max {
				break
			}
		}
	}
	return out, nil
}

// Tail implements eventlog.Store.
func (s *Store) Tail(ctx context.Context, runID string, fromID int64) (<-chan proto.Event, error) {
	rl := s.getOrCreate(runID)

	if fromID == eventlog.Latest {
		rl.mu.Lock()
		if len(rl.events) > 0 {
			fromID = rl.events[len(rl.events)-1].ID
		} else {
			fromID = 0
		}
		rl.mu.Unlock()
	}

	out := make(chan proto.Event)
	go func() {
		defer close(out)
		last := fromID

		for {
			rl.mu.Lock()
			var pending []proto.Event
			for _, e := range rl.events {
				if e.ID > last {
					pending = append(pending, e)
				}
			}
			notifyCh := rl.notify
			rl.mu.Unlock()

			for _, e := range pending {
				select {
				case out <- e:
					last = e.ID
					if proto.TerminalEventTypes[e.Type] {
						return
					}
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-notifyCh:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Reset drops all history for runID. The orchestrator does not call it; a
// cancelled run's history stays in the store.
func (s *Store) Reset(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
}
