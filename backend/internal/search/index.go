// Package search publishes ingested documents to a full-text index.
package search

import (
	"context"
	"sync"
)

// Document is the searchable copy of one ingested file. Content is sent as
// an attachment field and turned into text by the index server.
type Document struct {
	SourceLocation string
	Content        []byte
}

// Index is a search backend keyed by the graph node id of each document
type Index interface {
	// UpsertDocument creates or replaces the entry with the given id
	UpsertDocument(ctx context.Context, id string, doc Document) error
}

// MemoryIndex is an in-process Index used for dry runs and tests
type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemoryIndex creates an empty index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: make(map[string]Document)}
}

// UpsertDocument stores a copy of doc under id
func (m *MemoryIndex) UpsertDocument(ctx context.Context, id string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = Document{
		SourceLocation: doc.SourceLocation,
		Content:        append([]byte(nil), doc.Content...),
	}
	return nil
}

// Get returns the entry stored under id
func (m *MemoryIndex) Get(id string) (Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	return doc, ok
}

// IDs returns every stored key
func (m *MemoryIndex) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of entries
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
