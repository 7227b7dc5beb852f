package vectoradapter

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"narrator/internal/ports"
)

// RedisConfig configures RedisStore's connection. RediSearch's vector KNN
// commands require the RediSearch module, which is not guaranteed present on
// a plain Redis deployment; RedisStore instead keeps every record as a
// JSON-encoded string value whose id is listed in a per-(project,kind) set,
// and does the cosine ranking client-side after SMEMBERS plus a pipelined
// GET per id, so it runs against stock Redis.
type RedisConfig struct {
	Addr                  string
	Password              string
	DB                    int
	TLSInsecureSkipVerify bool
}

// RedisStore is a Redis-backed ports.VectorStore.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore builds a RedisStore and verifies connectivity with a PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLSInsecureSkipVerify {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("vectoradapter: redis ping failed: %w", err)
	}
	return &RedisStore{client: client}, nil
}

var _ ports.VectorStore = (*RedisStore)(nil)

func setKey(projectID, kind string) string {
	return "vector:" + projectID + ":" + kind + ":ids"
}

func recordKey(projectID, kind, id string) string {
	return "vector:" + projectID + ":" + kind + ":" + id
}

type redisRecord struct {
	Payload   map[string]any `json:"payload"`
	Embedding []float32      `json:"embedding"`
}

// Store implements ports.VectorStore: embeds payload's text fields, writes
// the record as a JSON-encoded string value, and adds its id to the
// (projectID, kind) set.
func (r *RedisStore) Store(ctx context.Context, projectID, kind string, payload map[string]any) error {
	id := uuid.NewString()
	rec := redisRecord{Payload: payload, Embedding: embed(payloadText(payload))}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("vectoradapter: marshal record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, recordKey(projectID, kind, id), raw, 0)
	pipe.SAdd(ctx, setKey(projectID, kind), id)
	_, err = pipe.Exec(ctx)
	return err
}

// loadBucket fetches every record id's JSON value for a (projectID, kind)
// bucket in one pipeline.
func (r *RedisStore) loadBucket(ctx context.Context, projectID, kind string) ([]string, []redisRecord, error) {
	ids, err := r.client.SMembers(ctx, setKey(projectID, kind)).Result()
	if err != nil {
		return nil, nil, err
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, recordKey(projectID, kind, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, nil, err
	}

	liveIDs := make([]string, 0, len(ids))
	records := make([]redisRecord, 0, len(ids))
	for i, cmd := range cmds {
		raw, err := cmd.Result()
		if err != nil {
			continue // id in the set but its key expired/was evicted
		}
		var rec redisRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		liveIDs = append(liveIDs, ids[i])
		records = append(records, rec)
	}
	return liveIDs, records, nil
}

// Search implements ports.VectorStore: loads the (projectID, kind) bucket
// and ranks it by cosine similarity to query.
func (r *RedisStore) Search(ctx context.Context, projectID, kind, query string, limit int) ([]ports.VectorRecord, error) {
	ids, records, err := r.loadBucket(ctx, projectID, kind)
	if err != nil {
		return nil, fmt.Errorf("vectoradapter: search %s/%s: %w", projectID, kind, err)
	}

	q := embed(query)
	out := make([]ports.VectorRecord, len(records))
	for i, rec := range records {
		out[i] = ports.VectorRecord{ID: ids[i], Kind: kind, Payload: rec.Payload, Score: cosine(q, rec.Embedding)}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Scroll implements ports.VectorStore: returns up to limit records from the
// bucket with no ranking (Score left at zero).
func (r *RedisStore) Scroll(ctx context.Context, projectID, kind string, limit int) ([]ports.VectorRecord, error) {
	ids, records, err := r.loadBucket(ctx, projectID, kind)
	if err != nil {
		return nil, fmt.Errorf("vectoradapter: scroll %s/%s: %w", projectID, kind, err)
	}

	n := len(records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]ports.VectorRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, ports.VectorRecord{ID: ids[i], Kind: kind, Payload: records[i].Payload})
	}
	return out, nil
}
