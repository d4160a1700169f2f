// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/olegiv/ocms-nav/internal/model"
)

var (
	// ErrStale means a newer SetSlug superseded this one.
	ErrStale = errors.New("preview superseded by a newer slug")
	// ErrNotFound means the content does not exist.
	ErrNotFound = errors.New("content not found")
)

// Fetcher loads stored content by slug.
type Fetcher interface {
	FetchContent(ctx context.Context, slug string) (model.PreviewContent, error)
}

// Loader fetches content for the current slug and composes it. Changing
// the slug cancels the fetch for the previous one; a response that arrives
// after a newer SetSlug is discarded.
type Loader struct {
	fetcher    Fetcher
	compositor *Compositor

	mu     sync.Mutex
	gen    uint64
	slug   string
	cancel context.CancelFunc
}

// NewLoader creates a Loader.
func NewLoader(fetcher Fetcher, compositor *Compositor) *Loader {
	return &Loader{fetcher: fetcher, compositor: compositor}
}

// Slug returns the current slug.
func (l *Loader) Slug() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slug
}

// SetSlug makes slug current, fetches its content and composes it. It
// returns ErrStale when another SetSlug happened before the fetch
// finished.
func (l *Loader) SetSlug(ctx context.Context, slug string) (*Handle, error) {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.slug = slug
	if l.cancel != nil {
		l.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()

	content, err := l.fetcher.FetchContent(fetchCtx, slug)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return nil, ErrStale
	}
	cancel()
	l.cancel = nil
	if err != nil {
		return nil, err
	}
	return l.compositor.Compose(ctx, content)
}

// Close cancels any in-flight fetch.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// HTTPFetcher reads content from GET /content/{slug}.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher for the server at baseURL.
func NewHTTPFetcher(baseURL string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPFetcher{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// FetchContent implements Fetcher.
func (f *HTTPFetcher) FetchContent(ctx context.Context, slug string) (model.PreviewContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/content/"+url.PathEscape(slug), nil)
	if err != nil {
		return model.PreviewContent{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return model.PreviewContent{}, fmt.Errorf("fetching content %s: %w", slug, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return model.PreviewContent{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return model.PreviewContent{}, fmt.Errorf("fetching content %s: HTTP %d", slug, resp.StatusCode)
	}

	var content model.PreviewContent
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&content); err != nil {
		return model.PreviewContent{}, fmt.Errorf("decoding content %s: %w", slug, err)
	}
	if content.Slug == "" {
		content.Slug = slug
	}
	return content, nil
}
