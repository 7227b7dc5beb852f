package vectoradapter

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"narrator/internal/ports"
)

type memoryEntry struct {
	id        string
	kind      string
	payload   map[string]any
	embedding []float32
}

// MemoryStore is an in-process ports.VectorStore, partitioned by
// (projectID, kind), used as the Redis adapter's fallback and by tests that
// want a real VectorStore without a Redis dependency.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]memoryEntry // keyed by projectID+"/"+kind
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]memoryEntry)}
}

var _ ports.VectorStore = (*MemoryStore)(nil)

func bucketKey(projectID, kind string) string { return projectID + "/" + kind }

// Store implements ports.VectorStore, embedding payload's text fields and
// appending it to its (projectID, kind) bucket.
func (m *MemoryStore) Store(_ context.Context, projectID, kind string, payload map[string]any) error {
	entry := memoryEntry{
		id:        uuid.NewString(),
		kind:      kind,
		payload:   payload,
		embedding: embed(payloadText(payload)),
	}
	key := bucketKey(projectID, kind)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = append(m.entries[key], entry)
	return nil
}

// Search implements ports.VectorStore, ranking a (projectID, kind) bucket by
// cosine similarity to query and returning the top limit records.
func (m *MemoryStore) Search(_ context.Context, projectID, kind, query string, limit int) ([]ports.VectorRecord, error) {
	q := embed(query)

	m.mu.RLock()
	bucket := m.entries[bucketKey(projectID, kind)]
	scored := make([]ports.VectorRecord, 0, len(bucket))
	for _, e := range bucket {
		scored = append(scored, ports.VectorRecord{
			ID:      e.id,
			Kind:    e.kind,
			Payload: e.payload,
			Score:   cosine(q, e.embedding),
		})
	}
	m.mu.RUnlock()

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// Scroll implements ports.VectorStore, returning up to limit records from a
// (projectID, kind) bucket in insertion order with Score left at zero (no
// query to rank against).
func (m *MemoryStore) Scroll(_ context.Context, projectID, kind string, limit int) ([]ports.VectorRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket := m.entries[bucketKey(projectID, kind)]
	n := len(bucket)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]ports.VectorRecord, 0, n)
	for _, e := range bucket[:n] {
		out = append(out, ports.VectorRecord{ID: e.id, Kind: e.kind, Payload: e.payload})
	}
	return out, nil
}
