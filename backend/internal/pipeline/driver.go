// Package pipeline runs one batch: discover links, then fetch, extract and
// ingest every document with a bounded worker pool.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docgraph/backend/internal/document"
	"docgraph/backend/internal/fetch"
	"docgraph/backend/internal/ingest"
	"docgraph/backend/internal/metrics"
	apperrors "docgraph/backend/pkg/errors"
	"docgraph/backend/pkg/logger"
)

// LinkCollector discovers document links on a seed page
type LinkCollector interface {
	Collect(ctx context.Context, seedURL string) ([]string, error)
}

// Fetcher retrieves one document
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Extractor reads a document's metadata
type Extractor interface {
	Extract(data []byte) (*document.Extracted, error)
}

// Ingestor writes one document to the graph and the index
type Ingestor interface {
	Ingest(ctx context.Context, doc document.Document) (*ingest.Result, error)
}

// Config tunes a Driver
type Config struct {
	// RunID identifies the run in logs and on stored documents; generated when empty
	RunID   string
	Workers int
	// FetchTimeout bounds each document download; 0 leaves it to the fetcher
	FetchTimeout time.Duration
	// MaxConsecutiveInfraFailures aborts the run after that many graph or
	// index failures in a row; 0 never aborts
	MaxConsecutiveInfraFailures int
	Metrics                     *metrics.Metrics
}

// Driver wires the pipeline stages together
type Driver struct {
	collector LinkCollector
	fetcher   Fetcher
	extractor Extractor
	ingestor  Ingestor
	cfg       Config
	logger    *zap.Logger
}

// NewDriver creates a driver
func NewDriver(collector LinkCollector, fetcher Fetcher, extractor Extractor, ingestor Ingestor, cfg Config) *Driver {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	return &Driver{
		collector: collector,
		fetcher:   fetcher,
		extractor: extractor,
		ingestor:  ingestor,
		cfg:       cfg,
		logger:    logger.With("pipeline").With(zap.String("run_id", cfg.RunID)),
	}
}

// RunID returns the id of runs started by this driver
func (d *Driver) RunID() string {
	return d.cfg.RunID
}

// runState is shared by the workers of one run
type runState struct {
	mu          sync.Mutex
	summary     *Summary
	consecutive int
	lastInfra   error
	abort       context.CancelFunc
}

// Run processes every document linked from seedURL. Per-document failures
// are recorded in the summary and do not fail the run.
//
// Cancelling ctx stops dispatching new documents; documents already in
// flight finish under their own timeouts. The returned error is non-nil
// when discovery fails, when the run is aborted (*apperrors.ErrBatchAborted)
// or when ctx was cancelled.
func (d *Driver) Run(ctx context.Context, seedURL string) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: d.cfg.RunID}
	defer func() {
		summary.Skipped = summary.Discovered - summary.Attempted
		summary.Duration = time.Since(start)
		summary.log(d.logger)
	}()

	d.logger.Info("Run started", zap.String("seed", seedURL), zap.Int("workers", d.cfg.Workers))

	links, err := d.collector.Collect(ctx, seedURL)
	if err != nil {
		return summary, fmt.Errorf("failed to discover documents: %w", err)
	}
	summary.Discovered = len(links)
	d.cfg.Metrics.DocumentsDiscovered(len(links))

	dispatchCtx, abort := context.WithCancel(ctx)
	defer abort()
	state := &runState{summary: summary, abort: abort}

	// In-flight documents are not interrupted by ctx
	workCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(d.cfg.Workers)
	for _, link := range links {
		if dispatchCtx.Err() != nil {
			break
		}
		link := link
		g.Go(func() error {
			// Dispatch may have stopped while this slot was waiting
			if dispatchCtx.Err() != nil {
				return nil
			}
			d.process(workCtx, link, state)
			return nil
		})
	}
	_ = g.Wait()

	state.mu.Lock()
	defer state.mu.Unlock()

	switch {
	case summary.Aborted:
		d.cfg.Metrics.RunAborted()
		return summary, apperrors.NewBatchAborted(state.consecutive, state.lastInfra)
	case ctx.Err() != nil:
		summary.Stopped = summary.Attempted < summary.Discovered
		return summary, fmt.Errorf("run interrupted: %w", ctx.Err())
	}
	return summary, nil
}

func (d *Driver) process(ctx context.Context, url string, state *runState) {
	state.mu.Lock()
	state.summary.Attempted++
	state.mu.Unlock()

	log := d.logger.With(zap.String("url", url))
	err := d.processDocument(ctx, url, log)

	state.mu.Lock()
	defer state.mu.Unlock()

	if err == nil {
		state.summary.Succeeded++
		state.consecutive = 0
		d.cfg.Metrics.DocumentProcessed("success")
		return
	}

	kind := apperrors.ErrorTypeOf(err)
	if kind == "" {
		kind = apperrors.ErrorTypePipeline
	}
	state.summary.Failures = append(state.summary.Failures, Failure{
		SourceLocation: url,
		Kind:           kind,
		Reason:         err.Error(),
		Retryable:      apperrors.IsRetryable(err),
	})
	d.cfg.Metrics.DocumentProcessed(string(kind))
	log.Warn("Document failed", zap.String("kind", string(kind)), zap.Error(err))

	if !apperrors.IsInfrastructure(err) {
		return
	}
	state.consecutive++
	state.lastInfra = err
	if limit := d.cfg.MaxConsecutiveInfraFailures; limit > 0 && state.consecutive >= limit && !state.summary.Aborted {
		state.summary.Aborted = true
		log.Error("Aborting run after consecutive infrastructure failures",
			zap.Int("consecutive", state.consecutive),
			zap.Error(err),
		)
		state.abort()
	}
}

func (d *Driver) processDocument(ctx context.Context, url string, log *zap.Logger) error {
	fetchCtx, cancel := ctx, context.CancelFunc(func() {})
	if d.cfg.FetchTimeout > 0 {
		fetchCtx, cancel = context.WithTimeout(ctx, d.cfg.FetchTimeout)
	}
	start := time.Now()
	res, err := d.fetcher.Fetch(fetchCtx, url)
	cancel()
	d.cfg.Metrics.ObserveStage("fetch", time.Since(start).Seconds())
	if err != nil {
		return err
	}

	start = time.Now()
	extracted, err := d.extractor.Extract(res.Body)
	d.cfg.Metrics.ObserveStage("extract", time.Since(start).Seconds())
	if err != nil {
		return err
	}

	result, err := d.ingestor.Ingest(ctx, document.Document{
		SourceLocation: url,
		Info:           extracted.Info,
		Metadata:       extracted.Metadata,
		Content:        res.Body,
	})
	if err != nil {
		return err
	}

	log.Debug("Document ingested",
		zap.String("document_id", string(result.DocumentID)),
		zap.Int("keywords", len(result.KeywordIDs)),
	)
	return nil
}
