package ingest

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"docgraph/backend/internal/metrics"
	"docgraph/backend/internal/search"
	apperrors "docgraph/backend/pkg/errors"
	"docgraph/backend/pkg/logger"
)

// IndexWriter publishes document content to the search index under the
// graph id of its Document node.
type IndexWriter struct {
	index   search.Index
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewIndexWriter creates a writer; timeout <= 0 means no per-call deadline
func NewIndexWriter(index search.Index, timeout time.Duration, m *metrics.Metrics) *IndexWriter {
	return &IndexWriter{
		index:   index,
		timeout: timeout,
		metrics: m,
		logger:  logger.With("index_writer"),
	}
}

// Publish upserts one entry keyed by documentID. Failures are *apperrors.ErrIndexUnavailable.
func (w *IndexWriter) Publish(ctx context.Context, documentID, sourceLocation string, content []byte) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	start := time.Now()
	err := w.index.UpsertDocument(ctx, documentID, search.Document{
		SourceLocation: sourceLocation,
		Content:        content,
	})
	w.metrics.ObserveStage("index", time.Since(start).Seconds())
	w.metrics.IndexWrite(err == nil)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = apperrors.NewContextTimeout("index document", w.timeout, err)
		}
		w.logger.Warn("Failed to publish document",
			zap.String("document_id", documentID),
			zap.String("url", sourceLocation),
			zap.Error(err),
		)
		return apperrors.NewIndexUnavailable(documentID, err)
	}
	return nil
}
