// Package redisstore implements eventlog.Store against Redis Streams
// (XADD/XRANGE/XREAD BLOCK), for multi-process deployments where the
// in-process pkg/eventlog/local store cannot be shared across producers
// and subscribers.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"narrator/pkg/eventlog"
	"narrator/pkg/proto"
)

// Store is an eventlog.Store backed by one Redis stream per run.
type Store struct {
	client redis.UniversalClient
}

// New wraps an existing Redis client. The caller owns its lifecycle.
func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func streamKey(runID string) string {
	return "narrator:events:" + runID
}

// wireEvent is the JSON payload stored in the stream's single "data" field;
// Redis Streams only supports flat field/value pairs, so the Event is
// serialized as one JSON blob rather than spread across stream fields.
type wireEvent struct {
	RunID     string          `json:"runId"`
	Type      proto.EventType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      any             `json:"data"`
}

// Publish implements eventlog.Store. The event's id is derived from the
// stream entry id XADD assigns ("<ms>-<seq>", monotonic per key), encoded as
// ms*10000+seq by streamIDToEventID, which gives the strictly-increasing
// per-run ordering the contract requires.
func (s *Store) Publish(ctx context.Context, runID string, eventType proto.EventType, data any) (proto.Event, error) {
	payload, err := json.Marshal(wireEvent{RunID: runID, Type: eventType, Timestamp: time.Now().UTC(), Data: data})
	if err != nil {
		return proto.Event{}, fmt.Errorf("eventlog redisstore: marshal event: %w", err)
	}

	key := streamKey(runID)
	streamID, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		Values: map[string]any{"data": payload},
	}).Result()
	if err != nil {
		return proto.Event{}, fmt.Errorf("eventlog redisstore: XADD: %w", err)
	}

	id, err := streamIDToEventID(streamID)
	if err != nil {
		return proto.Event{}, err
	}

	return proto.Event{ID: id, RunID: runID, Type: eventType, Timestamp: time.Now().UTC(), Data: data}, nil
}

// Range implements eventlog.Store.
func (s *Store) Range(ctx context.Context, runID string, fromID int64, max int) ([]proto.Event, error) {
	key := streamKey(runID)
	start := "-"
	if fromID > 0 {
		start = fmt.Sprintf("(%s", eventIDToStreamID(fromID))
	}

	msgs, err := s.client.XRangeN(ctx, key, start, "+", int64(max)).Result()
	if err != nil {
		return nil, fmt.Errorf("eventlog redisstore: XRANGE: %w", err)
	}

	out := make([]proto.Event, 0, len(msgs))
	for _, m := range msgs {
		e, err := decodeMessage(m)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Tail implements eventlog.Store via XREAD BLOCK, polled in a loop so the
// context can be observed between blocking calls.
func (s *Store) Tail(ctx context.Context, runID string, fromID int64) (<-chan proto.Event, error) {
	key := streamKey(runID)

	lastID := "$"
	if fromID != eventlog.Latest {
		lastID = eventIDToStreamID(fromID)
	}

	out := make(chan proto.Event)
	go func() {
		defer close(out)
		cursor := lastID
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			res, err := s.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{key, cursor},
				Block:   5 * time.Second,
				Count:   100,
			}).Result()
			if err != nil {
				if err == redis.Nil || ctx.Err() != nil {
					continue
				}
				return
			}

			for _, stream := range res {
				for _, m := range stream.Messages {
					e, err := decodeMessage(m)
					if err != nil {
						return
					}
					select {
					case out <- e:
						cursor = m.ID
						if proto.TerminalEventTypes[e.Type] {
							return
						}
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out, nil
}

func decodeMessage(m redis.XMessage) (proto.Event, error) {
	raw, ok := m.Values["data"].(string)
	if !ok {
		return proto.Event{}, fmt.Errorf("eventlog redisstore: message %s missing data field", m.ID)
	}
	var we wireEvent
	if err := json.Unmarshal([]byte(raw), &we); err != nil {
		return proto.Event{}, fmt.Errorf("eventlog redisstore: unmarshal message %s: %w", m.ID, err)
	}
	id, err := streamIDToEventID(m.ID)
	if err != nil {
		return proto.Event{}, err
	}
	return proto.Event{ID: id, RunID: we.RunID, Type: we.Type, Timestamp: we.Timestamp, Data: we.Data}, nil
}

// streamIDToEventID encodes a Redis stream id ("<ms>-<seq>") as the int64
// ms*10000+seq. The result is monotonic and collision-free as long as no
// single millisecond holds 10000 or more entries of one stream.
func streamIDToEventID(streamID string) (int64, error) {
	parts := strings.SplitN(streamID, "-", 2)
	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("eventlog redisstore: bad stream id %q: %w", streamID, err)
	}
	seq := int64(0)
	if len(parts) == 2 {
		seq, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("eventlog redisstore: bad stream id %q: %w", streamID, err)
		}
	}
	return ms*10000 + seq, nil
}

// eventIDToStreamID reverses streamIDToEventID well enough to seek XRANGE/
// XREAD from a previously observed event id.
func eventIDToStreamID(eventID int64) string {
	ms := eventID / 10000
	seq := eventID % 10000
	return fmt.Sprintf("%d-%d", ms, seq)
}
