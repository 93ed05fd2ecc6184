package index

import (
	"context"
	"math"
	"strings"
	"testing"
)

// TestMemory_QueryOrdersByScore verifies descending-similarity ordering.
func TestMemory_QueryOrdersByScore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory(2)

	// Unit vectors at increasing angles from the query direction (1, 0).
	mustInsert(t, m, "exact", []float32{1, 0})
	mustInsert(t, m, "close", []float32{1, 0.2})
	mustInsert(t, m, "far", []float32{0, 1})

	hits, err := m.Query(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].ID != "exact" || hits[1].ID != "close" || hits[2].ID != "far" {
		t.Errorf("order wrong: %v", hits)
	}
	if math.Abs(float64(hits[0].Score)-1) > 1e-5 {
		t.Errorf("exact match score should be ~1, got %f", hits[0].Score)
	}
}

// TestMemory_TieBreakByInsertionOrder verifies that equal scores rank the
// earlier-inserted entry first.
func TestMemory_TieBreakByInsertionOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory(2)

	mustInsert(t, m, "first", []float32{1, 0})
	mustInsert(t, m, "second", []float32{2, 0}) // same direction, same cosine

	hits, err := m.Query(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if hits[0].ID != "first" || hits[1].ID != "second" {
		t.Errorf("tie-break wrong: %v", hits)
	}
}

// TestMemory_ReplaceKeepsSeq verifies that re-inserting an id keeps its
// original insertion order for tie-breaks.
func TestMemory_ReplaceKeepsSeq(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory(2)

	mustInsert(t, m, "a", []float32{1, 0})
	mustInsert(t, m, "b", []float32{1, 0})
	mustInsert(t, m, "a", []float32{3, 0}) // replace, same direction

	hits, err := m.Query(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if hits[0].ID != "a" {
		t.Errorf("replaced entry lost its insertion rank: %v", hits)
	}
	if m.Len() != 2 {
		t.Errorf("replace must not grow the index, len=%d", m.Len())
	}
}

// TestMemory_RemoveImmediatelyVisible verifies removal semantics.
func TestMemory_RemoveImmediatelyVisible(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory(2)

	mustInsert(t, m, "a", []float32{1, 0})
	mustInsert(t, m, "b", []float32{0, 1})

	if err := m.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	hits, err := m.Query(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, h := range hits {
		if h.ID == "a" {
			t.Error("removed entry still returned")
		}
	}

	// Removing an absent id is a no-op.
	if err := m.Remove(ctx, "never-existed"); err != nil {
		t.Errorf("absent remove should be nil, got %v", err)
	}
}

// TestMemory_DimensionMismatch verifies the fixed-dimension contract.
func TestMemory_DimensionMismatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory(3)

	err := m.Insert(ctx, "a", []float32{1, 0})
	if err == nil || !strings.Contains(err.Error(), "dimension") {
		t.Errorf("expected dimension error, got %v", err)
	}

	// Zero-dim index adopts the first vector's dimension.
	adopt := NewMemory(0)
	mustInsert(t, adopt, "a", []float32{1, 0})
	if err := adopt.Insert(ctx, "b", []float32{1, 0, 0}); err == nil {
		t.Error("expected mismatch after adopting dimension 2")
	}
}

// TestMemory_QueryLimits verifies k handling on edge values.
func TestMemory_QueryLimits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory(2)
	mustInsert(t, m, "a", []float32{1, 0})

	if hits, _ := m.Query(ctx, []float32{1, 0}, 0); hits != nil {
		t.Errorf("k=0 should return nothing, got %v", hits)
	}
	hits, err := m.Query(ctx, []float32{1, 0}, 100)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("k beyond size should return all entries, got %d", len(hits))
	}

	// Empty index returns no hits regardless of query dimension.
	empty := NewMemory(2)
	if hits, err := empty.Query(ctx, []float32{1, 0, 0}, 5); err != nil || hits != nil {
		t.Errorf("empty index: expected (nil, nil), got (%v, %v)", hits, err)
	}
}

func mustInsert(t *testing.T, m *Memory, id string, vec []float32) {
	t.Helper()
	if err := m.Insert(context.Background(), id, vec); err != nil {
		t.Fatalf("Insert(%s): %v", id, err)
	}
}
