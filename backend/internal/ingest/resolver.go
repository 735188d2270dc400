// Package ingest turns extracted documents into graph nodes and index entries.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"docgraph/backend/internal/constants"
	"docgraph/backend/internal/graph"
	"docgraph/backend/internal/metrics"
	apperrors "docgraph/backend/pkg/errors"
	"docgraph/backend/pkg/logger"
)

// Kind selects the entity label a name resolves to
type Kind string

const (
	KindAuthor  Kind = constants.AuthorLabel
	KindKeyword Kind = constants.KeywordLabel
)

func (k Kind) valid() bool {
	return k == KindAuthor || k == KindKeyword
}

// Resolver returns the single node for an (kind, name) pair, creating it on
// first use. Overlapping calls for the same pair share one lookup-then-create;
// across processes the store's uniqueness constraint decides the winner.
type Resolver struct {
	store   graph.Writer
	group   singleflight.Group
	cache   *lru.Cache[string, graph.NodeID]
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewResolver creates a resolver over store. cacheSize <= 0 disables the
// id cache; timeout <= 0 leaves store calls bounded only by the caller.
func NewResolver(store graph.Writer, cacheSize int, timeout time.Duration, m *metrics.Metrics) (*Resolver, error) {
	r := &Resolver{
		store:   store,
		timeout: timeout,
		metrics: m,
		logger:  logger.With("resolver"),
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, graph.NodeID](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create entity cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// ResolveOrCreate returns the id of the kind node named name. The name is
// matched exactly and must already be normalized by the caller.
func (r *Resolver) ResolveOrCreate(ctx context.Context, kind Kind, name string) (graph.NodeID, error) {
	if !kind.valid() {
		return "", fmt.Errorf("%w: unknown entity kind %q", apperrors.ErrInvalidInput, kind)
	}
	if name == "" {
		return "", fmt.Errorf("%w: empty %s name", apperrors.ErrInvalidInput, kind)
	}

	key := string(kind) + "\x00" + name
	if id, ok := r.cached(key); ok {
		r.metrics.EntityResolved(string(kind), "cache")
		return id, nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		return r.resolve(ctx, key, kind, name)
	})
	if err != nil {
		return "", err
	}
	return v.(graph.NodeID), nil
}

func (r *Resolver) resolve(ctx context.Context, key string, kind Kind, name string) (graph.NodeID, error) {
	// A previous flight for this key may have finished since the caller's check
	if id, ok := r.cached(key); ok {
		r.metrics.EntityResolved(string(kind), "cache")
		return id, nil
	}

	opCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	label := string(kind)
	id, found, err := r.store.FindNodeByProperty(opCtx, label, constants.NameProperty, name)
	if err != nil {
		return "", r.storeError(opCtx, "find "+label, err)
	}
	if found {
		r.remember(key, id)
		r.metrics.EntityResolved(label, "lookup")
		return id, nil
	}

	id, err = r.store.CreateNode(opCtx, []string{label}, map[string]string{constants.NameProperty: name})
	switch {
	case errors.Is(err, graph.ErrConstraintViolation):
		// Another writer created it between our lookup and create
		r.logger.Debug("Entity created concurrently, retrying lookup",
			zap.String("kind", label),
			zap.String("name", name),
		)
		id, found, err = r.store.FindNodeByProperty(opCtx, label, constants.NameProperty, name)
		if err != nil {
			return "", r.storeError(opCtx, "find "+label, err)
		}
		if !found {
			return "", apperrors.NewStoreUnavailable("find "+label+" after constraint violation", graph.ErrConstraintViolation)
		}
		r.metrics.EntityResolved(label, "lookup")
	case err != nil:
		return "", r.storeError(opCtx, "create "+label, err)
	default:
		r.metrics.EntityResolved(label, "created")
		r.logger.Debug("Entity created",
			zap.String("kind", label),
			zap.String("name", name),
			zap.String("id", string(id)),
		)
	}

	r.remember(key, id)
	return id, nil
}

func (r *Resolver) cached(key string) (graph.NodeID, bool) {
	if r.cache == nil {
		return "", false
	}
	return r.cache.Get(key)
}

func (r *Resolver) remember(key string, id graph.NodeID) {
	if r.cache != nil {
		r.cache.Add(key, id)
	}
}

func (r *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Resolver) storeError(opCtx context.Context, operation string, err error) error {
	if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		err = apperrors.NewContextTimeout(operation, r.timeout, err)
	}
	return apperrors.NewStoreUnavailable(operation, err)
}
