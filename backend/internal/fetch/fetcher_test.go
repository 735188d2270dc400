package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "docgraph/backend/pkg/errors"
)

func TestFetcher_Success(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	f := NewFetcher(Options{Timeout: time.Second, UserAgent: "test-agent"})
	res, err := f.Fetch(context.Background(), srv.URL+"/a.pdf")
	require.NoError(t, err)

	assert.Equal(t, []byte("%PDF-1.4"), res.Body)
	assert.Equal(t, "application/pdf", res.ContentType)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "test-agent", gotAgent)
}

func TestFetcher_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.pdf":
			http.NotFound(w, r)
		case "/broken.pdf":
			w.WriteHeader(http.StatusBadGateway)
		case "/huge.pdf":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		case "/slow.pdf":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte("late"))
		}
	}))
	defer srv.Close()

	f := NewFetcher(Options{Timeout: 50 * time.Millisecond, MaxBytes: 16})

	tests := []struct {
		name      string
		url       string
		status    int
		retryable bool
	}{
		{name: "not found", url: srv.URL + "/missing.pdf", status: http.StatusNotFound, retryable: false},
		{name: "server error", url: srv.URL + "/broken.pdf", status: http.StatusBadGateway, retryable: true},
		{name: "too large", url: srv.URL + "/huge.pdf", status: http.StatusOK, retryable: true},
		{name: "timeout", url: srv.URL + "/slow.pdf", status: 0, retryable: true},
		{name: "bad url", url: "://nope", status: 0, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.Fetch(context.Background(), tt.url)
			require.Error(t, err)
			assert.Nil(t, res)

			var fetchErr *apperrors.ErrFetchFailed
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, tt.url, fetchErr.URL)
			assert.Equal(t, tt.status, fetchErr.StatusCode)
			assert.Equal(t, tt.retryable, apperrors.IsRetryable(err))
			assert.False(t, apperrors.IsInfrastructure(err))
		})
	}
}

func TestFetcher_RateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewFetcher(Options{RateLimit: 20, Burst: 1})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestFetcher_RateLimitHonorsContext(t *testing.T) {
	f := NewFetcher(Options{RateLimit: 0.001, Burst: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "http://127.0.0.1:1/")
	var fetchErr *apperrors.ErrFetchFailed
	assert.ErrorAs(t, err, &fetchErr)
}
