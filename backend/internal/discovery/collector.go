// Package discovery finds document links on a seed page.
package discovery

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"docgraph/backend/internal/fetch"
	"docgraph/backend/pkg/logger"
)

// PageFetcher retrieves the seed page
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// LinkCollector extracts anchors whose path ends in a suffix
type LinkCollector struct {
	fetcher PageFetcher
	suffix  string
	logger  *zap.Logger
}

// NewLinkCollector creates a collector matching suffix case-insensitively
func NewLinkCollector(fetcher PageFetcher, suffix string) *LinkCollector {
	return &LinkCollector{
		fetcher: fetcher,
		suffix:  strings.ToLower(suffix),
		logger:  logger.With("discovery"),
	}
}

// Collect fetches seedURL and returns the absolute document links found on it,
// in page order without duplicates.
func (c *LinkCollector) Collect(ctx context.Context, seedURL string) ([]string, error) {
	base, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid seed url %q: %w", seedURL, err)
	}

	page, err := c.fetcher.Fetch(ctx, seedURL)
	if err != nil {
		return nil, err
	}

	links, err := c.Extract(base, page.Body)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Links discovered",
		zap.String("seed", seedURL),
		zap.Int("count", len(links)),
	)
	return links, nil
}

// Extract parses html and resolves matching hrefs against base
func (c *LinkCollector) Extract(base *url.URL, html []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed page: %w", err)
	}

	// <base href> changes how relative links resolve
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}

	var links []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			c.logger.Debug("Skipping unparsable href", zap.String("href", href), zap.Error(err))
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if !strings.HasSuffix(strings.ToLower(abs.Path), c.suffix) {
			return
		}

		abs.Fragment = ""
		link := abs.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links, nil
}
