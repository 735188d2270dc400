package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"docgraph/backend/internal/constants"
	"docgraph/backend/internal/document"
	"docgraph/backend/internal/graph"
	"docgraph/backend/internal/metrics"
	apperrors "docgraph/backend/pkg/errors"
	"docgraph/backend/pkg/logger"
)

// Result describes what one Ingest call wrote. AuthorID is empty for
// documents without an author.
type Result struct {
	DocumentID graph.NodeID
	AuthorID   graph.NodeID
	KeywordIDs []graph.NodeID
	Indexed    bool
}

// Ingestor writes one document into the graph and then the search index
type Ingestor struct {
	store        graph.Store
	resolver     *Resolver
	index        *IndexWriter
	runID        string
	storeTimeout time.Duration
	metrics      *metrics.Metrics
	now          func() time.Time
	logger       *zap.Logger
}

// IngestorConfig carries the optional settings of an Ingestor
type IngestorConfig struct {
	// RunID is stored on every Document node written by this ingestor
	RunID        string
	StoreTimeout time.Duration
	Metrics      *metrics.Metrics
}

// NewIngestor wires an ingestor. A nil index skips publishing.
func NewIngestor(store graph.Store, resolver *Resolver, index *IndexWriter, cfg IngestorConfig) *Ingestor {
	return &Ingestor{
		store:        store,
		resolver:     resolver,
		index:        index,
		runID:        cfg.RunID,
		storeTimeout: cfg.StoreTimeout,
		metrics:      cfg.Metrics,
		now:          time.Now,
		logger:       logger.With("ingestor"),
	}
}

// Ingest resolves the document's author and keywords, writes the Document
// node with its relationships in one transaction and publishes the content.
//
// Graph failures return *apperrors.ErrIngestionFailed and a nil result. Author
// and Keyword nodes resolved before the failure stay in the graph. When only
// publishing fails, the populated result is returned together with an
// *apperrors.ErrIndexUnavailable and the graph write is kept.
func (i *Ingestor) Ingest(ctx context.Context, doc document.Document) (*Result, error) {
	log := i.logger.With(zap.String("url", doc.SourceLocation))
	result := &Result{}

	author := doc.Info.Author()
	keywords := NormalizeKeywords(doc.Metadata.Keywords())

	start := time.Now()
	if author != "" {
		id, err := i.resolver.ResolveOrCreate(ctx, KindAuthor, author)
		if err != nil {
			return nil, apperrors.NewIngestionFailed(doc.SourceLocation, err)
		}
		result.AuthorID = id
	}

	for _, keyword := range keywords {
		id, err := i.resolver.ResolveOrCreate(ctx, KindKeyword, keyword)
		if err != nil {
			return nil, apperrors.NewIngestionFailed(doc.SourceLocation, err)
		}
		result.KeywordIDs = append(result.KeywordIDs, id)
	}

	props, err := i.documentProperties(doc)
	if err != nil {
		return nil, apperrors.NewIngestionFailed(doc.SourceLocation, err)
	}

	docID, err := i.writeDocument(ctx, props, result)
	if err != nil {
		return nil, apperrors.NewIngestionFailed(doc.SourceLocation, err)
	}
	result.DocumentID = docID
	i.metrics.ObserveStage("store", time.Since(start).Seconds())

	log.Info("Document stored",
		zap.String("document_id", string(docID)),
		zap.Bool("has_author", author != ""),
		zap.Int("keywords", len(keywords)),
	)

	if i.index == nil {
		return result, nil
	}
	if err := i.index.Publish(ctx, string(docID), doc.SourceLocation, doc.Content); err != nil {
		return result, err
	}
	result.Indexed = true
	return result, nil
}

func (i *Ingestor) writeDocument(ctx context.Context, props map[string]string, result *Result) (graph.NodeID, error) {
	if i.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.storeTimeout)
		defer cancel()
	}

	var docID graph.NodeID
	err := i.store.WriteTx(ctx, func(w graph.Writer) error {
		id, err := w.CreateNode(ctx, []string{constants.DocumentLabel}, props)
		if err != nil {
			return err
		}
		if result.AuthorID != "" {
			if err := w.CreateRelationship(ctx, id, constants.RelAuthoredBy, result.AuthorID); err != nil {
				return err
			}
		}
		for _, keywordID := range result.KeywordIDs {
			if err := w.CreateRelationship(ctx, id, constants.RelHasKeyword, keywordID); err != nil {
				return err
			}
		}
		docID = id
		return nil
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = apperrors.NewContextTimeout("write document", i.storeTimeout, err)
		}
		return "", apperrors.NewStoreUnavailable("write document", err)
	}
	return docID, nil
}

func (i *Ingestor) documentProperties(doc document.Document) (map[string]string, error) {
	info := doc.Info
	if info == nil {
		info = document.Info{}
	}
	metadata := doc.Metadata
	if metadata == nil {
		metadata = document.Metadata{}
	}

	infoJSON, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to encode info: %w", err)
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	props := map[string]string{
		constants.DocURLProperty:        doc.SourceLocation,
		constants.DocInfoProperty:       string(infoJSON),
		constants.DocMetadataProperty:   string(metadataJSON),
		constants.DocTitleProperty:      doc.Info.Title(),
		constants.DocIngestedAtProperty: i.now().UTC().Format(time.RFC3339),
	}
	if i.runID != "" {
		props[constants.DocRunIDProperty] = i.runID
	}
	return props, nil
}
