// Package index provides VectorIndex implementations: an exact in-process
// index for single-node deployments and a Qdrant-backed index for
// deployments with an external vector database.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ctxgen/ragserve-go/internal/rag"
)

// Memory is an exact brute-force cosine similarity index. Vectors are
// L2-normalized at insert time so similarity reduces to a dot product.
// Safe for concurrent use; removals are visible to subsequent queries
// immediately.
type Memory struct {
	mu sync.RWMutex

	// dim is the fixed vector dimension. 0 until the first insert when the
	// index was constructed without an explicit dimension.
	dim int

	// entries maps document id to its normalized vector and insertion sequence.
	entries map[string]memEntry

	// seq is a monotonic counter assigning insertion order for tie-breaks.
	seq uint64
}

type memEntry struct {
	vec []float32
	seq uint64
}

// NewMemory constructs an in-process index. dim fixes the vector dimension;
// pass 0 to adopt the dimension of the first inserted vector.
func NewMemory(dim int) *Memory {
	return &Memory{
		dim:     dim,
		entries: make(map[string]memEntry),
	}
}

// Insert adds or replaces the vector for id. A replaced entry keeps its
// original insertion sequence so re-ingestion does not reshuffle tie-breaks.
func (m *Memory) Insert(_ context.Context, id string, vec []float32) error {
	if id == "" {
		return fmt.Errorf("index: id must not be empty")
	}
	if len(vec) == 0 {
		return fmt.Errorf("index: vector must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dim == 0 {
		m.dim = len(vec)
	}
	if len(vec) != m.dim {
		return fmt.Errorf("index: vector dimension %d does not match index dimension %d", len(vec), m.dim)
	}

	normalized := normalize(vec)
	if prev, ok := m.entries[id]; ok {
		m.entries[id] = memEntry{vec: normalized, seq: prev.seq}
		return nil
	}
	m.seq++
	m.entries[id] = memEntry{vec: normalized, seq: m.seq}
	return nil
}

// Remove deletes the vector for id. Absent ids are a no-op.
func (m *Memory) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// Query returns up to k hits ordered by descending cosine similarity.
// Equal scores are broken by insertion order, earlier entries first.
func (m *Memory) Query(_ context.Context, vec []float32, k int) ([]rag.Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return nil, nil
	}
	if len(vec) != m.dim {
		return nil, fmt.Errorf("index: query dimension %d does not match index dimension %d", len(vec), m.dim)
	}

	q := normalize(vec)

	type scored struct {
		id    string
		score float32
		seq   uint64
	}
	all := make([]scored, 0, len(m.entries))
	for id, e := range m.entries {
		all = append(all, scored{id: id, score: dot(q, e.vec), seq: e.seq})
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].seq < all[j].seq
	})

	if k > len(all) {
		k = len(all)
	}
	hits := make([]rag.Hit, k)
	for i := 0; i < k; i++ {
		hits[i] = rag.Hit{ID: all[i].id, Score: all[i].score}
	}
	return hits, nil
}

// Len returns the number of indexed vectors.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op for the in-process index.
func (m *Memory) Close() error { return nil }

// normalize returns the L2-normalized copy of vec. A zero vector is returned
// unchanged; its similarity to everything is 0.
func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) * inv)
	}
	return out
}

// dot returns the inner product of two equal-length vectors.
func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
