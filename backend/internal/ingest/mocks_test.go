package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"docgraph/backend/internal/graph"
	"docgraph/backend/internal/search"
)

var errStoreDown = errors.New("connection refused")

// failingStore fails the operations whose flag is set and delegates the rest
type failingStore struct {
	*graph.MemoryStore
	failFind   bool
	failCreate bool
	failTx     bool
}

func (s *failingStore) FindNodeByProperty(ctx context.Context, label, property, value string) (graph.NodeID, bool, error) {
	if s.failFind {
		return "", false, errStoreDown
	}
	return s.MemoryStore.FindNodeByProperty(ctx, label, property, value)
}

func (s *failingStore) CreateNode(ctx context.Context, labels []string, properties map[string]string) (graph.NodeID, error) {
	if s.failCreate {
		return "", errStoreDown
	}
	return s.MemoryStore.CreateNode(ctx, labels, properties)
}

func (s *failingStore) WriteTx(ctx context.Context, fn func(w graph.Writer) error) error {
	if s.failTx {
		return errStoreDown
	}
	return s.MemoryStore.WriteTx(ctx, fn)
}

// racingStore lets another writer win the first create, as a second process would
type racingStore struct {
	*graph.MemoryStore
	raced atomic.Bool
}

func (s *racingStore) CreateNode(ctx context.Context, labels []string, properties map[string]string) (graph.NodeID, error) {
	if s.raced.CompareAndSwap(false, true) {
		if _, err := s.MemoryStore.CreateNode(ctx, labels, properties); err != nil {
			return "", err
		}
		return "", graph.ErrConstraintViolation
	}
	return s.MemoryStore.CreateNode(ctx, labels, properties)
}

// countingStore counts creates and slows lookups down so concurrent calls overlap
type countingStore struct {
	*graph.MemoryStore
	creates atomic.Int32
	finds   atomic.Int32
	delay   time.Duration
}

func (s *countingStore) FindNodeByProperty(ctx context.Context, label, property, value string) (graph.NodeID, bool, error) {
	s.finds.Add(1)
	time.Sleep(s.delay)
	return s.MemoryStore.FindNodeByProperty(ctx, label, property, value)
}

func (s *countingStore) CreateNode(ctx context.Context, labels []string, properties map[string]string) (graph.NodeID, error) {
	s.creates.Add(1)
	return s.MemoryStore.CreateNode(ctx, labels, properties)
}

// blockingStore holds every lookup until its context ends
type blockingStore struct {
	*graph.MemoryStore
}

func (s *blockingStore) FindNodeByProperty(ctx context.Context, label, property, value string) (graph.NodeID, bool, error) {
	<-ctx.Done()
	return "", false, ctx.Err()
}

type failingIndex struct {
	mu    sync.Mutex
	calls int
}

func (f *failingIndex) UpsertDocument(ctx context.Context, id string, doc search.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("cluster_block_exception")
}
