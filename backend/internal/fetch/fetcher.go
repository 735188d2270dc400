// Package fetch retrieves seed pages and documents over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "docgraph/backend/pkg/errors"
	"docgraph/backend/pkg/logger"
)

const maxRedirects = 5

// Result is a successful response
type Result struct {
	Body        []byte
	ContentType string
	StatusCode  int
}

// Options configures a Fetcher. Zero values fall back to defaults.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// MaxBytes caps the body size; larger responses fail
	MaxBytes int64
	// RateLimit is requests per second across all callers; 0 disables throttling
	RateLimit float64
	Burst     int
}

// Fetcher performs GET requests with a timeout, a body size cap and an
// optional shared rate limit. It is safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewFetcher creates a fetcher
func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "docgraph/1.0"
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 50 << 20
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}

	f := &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects (max %d)", maxRedirects)
				}
				return nil
			},
		},
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBytes,
		logger:    logger.With("fetch"),
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return f
}

// Fetch retrieves url. Any failure, including a non-2xx status, is returned
// as *apperrors.ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, apperrors.NewFetchFailed(url, 0, fmt.Errorf("rate limiter: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewFetchFailed(url, 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.NewFetchFailed(url, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.NewFetchFailed(url, resp.StatusCode, fmt.Errorf("%s", http.StatusText(resp.StatusCode)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, apperrors.NewFetchFailed(url, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > f.maxBytes {
		return nil, apperrors.NewFetchFailed(url, resp.StatusCode, fmt.Errorf("content too large (exceeds %d bytes)", f.maxBytes))
	}

	f.logger.Debug("Fetched",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Result{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, nil
}
