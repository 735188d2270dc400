package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"docgraph/backend/pkg/logger"
)

// dataField holds the base64 payload the attachment processor reads;
// attachmentField receives the extracted text and file metadata.
const (
	dataField       = "data"
	attachmentField = "attachment"
)

// ElasticIndex writes documents to Elasticsearch through an ingest pipeline
// running the attachment processor.
type ElasticIndex struct {
	client   *elasticsearch.Client
	index    string
	pipeline string
	logger   *zap.Logger
}

// NewElasticIndex creates an index writer. An empty pipeline sends the raw
// payload without server-side extraction.
func NewElasticIndex(client *elasticsearch.Client, index, pipeline string) *ElasticIndex {
	return &ElasticIndex{
		client:   client,
		index:    index,
		pipeline: pipeline,
		logger:   logger.With("search"),
	}
}

type indexBody struct {
	URL  string `json:"url"`
	Data []byte `json:"data"` // encoding/json emits []byte as base64
}

// UpsertDocument indexes doc under id, replacing any previous version
func (e *ElasticIndex) UpsertDocument(ctx context.Context, id string, doc Document) error {
	body, err := json.Marshal(indexBody{URL: doc.SourceLocation, Data: doc.Content})
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	opts := []func(*esapi.IndexRequest){
		e.client.Index.WithContext(ctx),
		e.client.Index.WithDocumentID(id),
	}
	if e.pipeline != "" {
		opts = append(opts, e.client.Index.WithPipeline(e.pipeline))
	}

	res, err := e.client.Index(e.index, bytes.NewReader(body), opts...)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("index document", res)
	}

	e.logger.Debug("Document indexed",
		zap.String("id", id),
		zap.String("url", doc.SourceLocation),
		zap.Int("status", res.StatusCode),
	)
	return nil
}

// EnsureIndex installs the attachment pipeline and creates the index with
// its mapping when missing. Safe to call on every start.
func (e *ElasticIndex) EnsureIndex(ctx context.Context) error {
	if e.pipeline != "" {
		if err := e.putPipeline(ctx); err != nil {
			return err
		}
	}

	res, err := e.client.Indices.Exists([]string{e.index}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("failed to check index %s: HTTP %d", e.index, res.StatusCode)
	}

	mapping, _ := json.Marshal(map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"url": map[string]interface{}{"type": "keyword"},
				attachmentField: map[string]interface{}{
					"properties": map[string]interface{}{
						"content":      map[string]interface{}{"type": "text"},
						"title":        map[string]interface{}{"type": "text"},
						"author":       map[string]interface{}{"type": "text"},
						"keywords":     map[string]interface{}{"type": "text"},
						"content_type": map[string]interface{}{"type": "keyword"},
					},
				},
			},
		},
	})

	res, err = e.client.Indices.Create(e.index,
		e.client.Indices.Create.WithContext(ctx),
		e.client.Indices.Create.WithBody(bytes.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		detail := readDetail(res)
		// Another process may have created it between the check and the create
		if res.StatusCode != http.StatusBadRequest || errorType(detail) != "resource_already_exists_exception" {
			return fmt.Errorf("failed to create index: HTTP %d: %s", res.StatusCode, detail)
		}
		e.logger.Info("Search index created concurrently", zap.String("index", e.index))
		return nil
	}

	e.logger.Info("Search index ready", zap.String("index", e.index))
	return nil
}

func (e *ElasticIndex) putPipeline(ctx context.Context) error {
	body, _ := json.Marshal(map[string]interface{}{
		"description": "Extract text from document attachments",
		"processors": []interface{}{
			map[string]interface{}{
				"attachment": map[string]interface{}{
					"field":         dataField,
					"target_field":  attachmentField,
					"remove_binary": true,
				},
			},
		},
	})

	res, err := e.client.Ingest.PutPipeline(e.pipeline, bytes.NewReader(body),
		e.client.Ingest.PutPipeline.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to install ingest pipeline: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("install ingest pipeline", res)
	}
	return nil
}

func responseError(operation string, res *esapi.Response) error {
	return fmt.Errorf("failed to %s: HTTP %d: %s", operation, res.StatusCode, readDetail(res))
}

func readDetail(res *esapi.Response) []byte {
	detail, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return bytes.TrimSpace(detail)
}

// errorType extracts error.type from an Elasticsearch error body
func errorType(detail []byte) string {
	var body struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(detail, &body); err != nil {
		return ""
	}
	return body.Error.Type
}
