// Package docstore provides DocumentStore implementations: an in-memory
// store for tests and ephemeral deployments, and a SQLite-backed store that
// persists the corpus across restarts.
package docstore

import (
	"context"
	"sync"

	"github.com/ctxgen/ragserve-go/internal/rag"
)

// Memory is an in-process DocumentStore. Safe for concurrent use.
type Memory struct {
	mu sync.RWMutex

	// docs maps id to the stored record.
	docs map[string]rag.Document

	// order holds ids in first-insertion order for List.
	order []string
}

// NewMemory constructs an empty in-memory document store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]rag.Document)}
}

// Put stores doc under doc.ID, overwriting any existing record. An
// overwritten document keeps its position in insertion order.
func (m *Memory) Put(_ context.Context, doc rag.Document) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.docs[doc.ID]
	m.docs[doc.ID] = doc
	if !exists {
		m.order = append(m.order, doc.ID)
	}
	return !exists, nil
}

// Get returns the document for id.
func (m *Memory) Get(_ context.Context, id string) (rag.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	return doc, ok, nil
}

// List returns all documents in insertion order.
func (m *Memory) List(_ context.Context) ([]rag.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]rag.Document, 0, len(m.order))
	for _, id := range m.order {
		if doc, ok := m.docs[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Remove deletes the document for id. Absent ids are a no-op.
func (m *Memory) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return nil
	}
	delete(m.docs, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Count returns the number of stored documents.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error { return nil }
