// Package eventlog implements the append-only, per-run Event stream:
// Publish/Range/Tail with the two-step late-join protocol (catch up via
// Range, then switch to Tail) and injected heartbeats to defeat idle
// transport timeouts.
package eventlog

import (
	"context"
	"errors"
	"time"

	"narrator/pkg/proto"
)

// Latest is the fromID sentinel meaning "$" — only events strictly after
// the current head at the moment Tail is called.
const Latest int64 = -1

// ErrUnknownRun names an unknown run id. Neither bundled Store returns it: a
// run with no events yields an empty Range and a Tail that waits for the
// first event.
var ErrUnknownRun = errors.New("eventlog: unknown run")

// Store is the backing implementation behind the EventLog. Two stores are
// provided: pkg/eventlog/local (in-process, default and what tests use) and
// pkg/eventlog/redisstore (Redis Streams, for multi-process deployments).
type Store interface {
	// Publish appends an event and returns its assigned id. Events are
	// immediately visible to subsequent Range/Tail calls.
	Publish(ctx context.Context, runID string, eventType proto.EventType, data any) (proto.Event, error)

	// Range returns events for runID with id > fromID, up to max entries.
	// fromID == 0 means "from the beginning".
	Range(ctx context.Context, runID string, fromID int64, max int) ([]proto.Event, error)

	// Tail returns a channel of events for runID strictly after fromID
	// (fromID == Latest resolves to the current head at call time). The
	// channel closes when the context is cancelled or a terminal event
	// (ERROR / generation_completed) has been delivered.
	Tail(ctx context.Context, runID string, fromID int64) (<-chan proto.Event, error)
}

// Heartbeat wraps an event channel, interleaving a heartbeat event (with a
// zero-value Event.ID, since heartbeats must not occupy event ids) whenever
// no real event has arrived within interval. It closes its output when in
// closes. This implements the transport-layer keepalive from §4.2/§6; the
// core EventLog itself never emits heartbeats.
func Heartbeat(ctx context.Context, runID string, in <-chan proto.Event, interval time.Duration) <-chan proto.Event {
	out := make(chan proto.Event)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
				ticker.Reset(interval)
			case <-ticker.C:
				select {
				case out <- proto.Event{RunID: runID, Type: proto.EventHeartbeat, Timestamp: time.Now().UTC()}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Join performs the documented two-step late-join protocol: Range(0,
// historyMax) to catch up, then Tail from the id of the last history event
// (0 if there was none) for live events. The returned channel yields the
// history first, then live events; because Tail starts strictly after the
// last delivered id, no event at the boundary is skipped or duplicated.
func Join(ctx context.Context, store Store, runID string, historyMax int) (<-chan proto.Event, error) {
	history, err := store.Range(ctx, runID, 0, historyMax)
	if err != nil {
		return nil, err
	}

	// Tail from the last id actually delivered in history, not from "Latest"
	// resolved now — an event published between the Range call and this one
	// would otherwise be skipped entirely.
	fromID := int64(0)
	if len(history) > 0 {
		fromID = history[len(history)-1].ID
	}

	live, err := store.Tail(ctx, runID, fromID)
	if err != nil {
		return nil, err
	}

	out := make(chan proto.Event)
	go func() {
		defer close(out)
		for _, e := range history {
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
		for e := range live {
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
