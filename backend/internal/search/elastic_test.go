package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

type fakeElastic struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func newFakeElastic(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*fakeElastic, *elasticsearch.Client) {
	t.Helper()
	fake := &fakeElastic{handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fake.mu.Lock()
		fake.requests = append(fake.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   body,
		})
		fake.mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		fake.handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{srv.URL},
		DisableRetry: true,
	})
	require.NoError(t, err)
	return fake, client
}

func (f *fakeElastic) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func TestElasticIndex_UpsertDocument(t *testing.T) {
	fake, client := newFakeElastic(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	idx := NewElasticIndex(client, "pdf_documents", "attachment")
	content := []byte("%PDF-1.4 fake")
	err := idx.UpsertDocument(context.Background(), "doc-1", Document{
		SourceLocation: "https://example.com/a.pdf",
		Content:        content,
	})
	require.NoError(t, err)

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, "/pdf_documents/_doc/doc-1", reqs[0].Path)
	assert.Contains(t, reqs[0].Query, "pipeline=attachment")

	var body struct {
		URL  string `json:"url"`
		Data []byte `json:"data"`
	}
	require.NoError(t, json.Unmarshal(reqs[0].Body, &body))
	assert.Equal(t, "https://example.com/a.pdf", body.URL)
	assert.Equal(t, content, body.Data)
}

func TestElasticIndex_UpsertWithoutPipeline(t *testing.T) {
	fake, client := newFakeElastic(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"updated"}`))
	})

	idx := NewElasticIndex(client, "docs", "")
	require.NoError(t, idx.UpsertDocument(context.Background(), "1", Document{SourceLocation: "u"}))

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.NotContains(t, reqs[0].Query, "pipeline")
}

func TestElasticIndex_UpsertReportsServerError(t *testing.T) {
	_, client := newFakeElastic(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"pipeline missing"}`))
	})

	idx := NewElasticIndex(client, "docs", "attachment")
	err := idx.UpsertDocument(context.Background(), "1", Document{SourceLocation: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "pipeline missing")
}

func TestElasticIndex_EnsureIndexCreatesMissing(t *testing.T) {
	fake, client := newFakeElastic(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/_ingest/pipeline/"):
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut:
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	idx := NewElasticIndex(client, "pdf_documents", "attachment")
	require.NoError(t, idx.EnsureIndex(context.Background()))

	reqs := fake.recorded()
	require.Len(t, reqs, 3)

	assert.Equal(t, "/_ingest/pipeline/attachment", reqs[0].Path)
	var pipeline map[string]interface{}
	require.NoError(t, json.Unmarshal(reqs[0].Body, &pipeline))
	processors := pipeline["processors"].([]interface{})
	attachment := processors[0].(map[string]interface{})["attachment"].(map[string]interface{})
	assert.Equal(t, "data", attachment["field"])
	assert.Equal(t, true, attachment["remove_binary"])

	assert.Equal(t, http.MethodHead, reqs[1].Method)
	assert.Equal(t, http.MethodPut, reqs[2].Method)
	assert.Equal(t, "/pdf_documents", reqs[2].Path)
	assert.Contains(t, string(reqs[2].Body), `"url":{"type":"keyword"}`)
}

func TestElasticIndex_EnsureIndexCreateResponses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:   "created by another process",
			status: http.StatusBadRequest,
			body:   `{"error":{"type":"resource_already_exists_exception","reason":"index [pdf_documents/abc] already exists"},"status":400}`,
		},
		{
			name:    "rejected mapping",
			status:  http.StatusBadRequest,
			body:    `{"error":{"type":"mapper_parsing_exception","reason":"No handler for type [txt]"},"status":400}`,
			wantErr: "mapper_parsing_exception",
		},
		{
			name:    "unparsable 400",
			status:  http.StatusBadRequest,
			body:    `bad request`,
			wantErr: "HTTP 400",
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `{"error":{"type":"resource_already_exists_exception"}}`,
			wantErr: "HTTP 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newFakeElastic(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodHead {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			idx := NewElasticIndex(client, "pdf_documents", "")
			err := idx.EnsureIndex(context.Background())
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestElasticIndex_EnsureIndexSkipsExisting(t *testing.T) {
	fake, client := newFakeElastic(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	idx := NewElasticIndex(client, "pdf_documents", "")
	require.NoError(t, idx.EnsureIndex(context.Background()))

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodHead, reqs[0].Method)
}

func TestMemoryIndex_Upsert(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	content := []byte("v1")
	require.NoError(t, idx.UpsertDocument(ctx, "a", Document{SourceLocation: "u", Content: content}))
	content[0] = 'x'

	doc, ok := idx.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), doc.Content, "stored content is a copy")

	require.NoError(t, idx.UpsertDocument(ctx, "a", Document{SourceLocation: "u", Content: []byte("v2")}))
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, []string{"a"}, idx.IDs())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, idx.UpsertDocument(cancelled, "b", Document{}), context.Canceled)
}
