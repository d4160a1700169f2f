// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/ocms-nav/internal/cache"
	"github.com/olegiv/ocms-nav/internal/model"
	"github.com/olegiv/ocms-nav/internal/store"
	"github.com/olegiv/ocms-nav/internal/util"
)

// Content service errors.
var (
	ErrContentNotFound = errors.New("content not found")
	ErrInvalidContent  = errors.New("invalid content")
)

// maxContentSize bounds each of the three content blobs.
const maxContentSize = 1 << 20

// ContentService stores the markup/style/behavior triples shown in previews.
type ContentService struct {
	db      *sql.DB
	queries *store.Queries
	nav     *cache.NavCache
	logger  *slog.Logger
	now     func() time.Time
}

// NewContentService creates a new ContentService. nav may be nil.
func NewContentService(db *sql.DB, nav *cache.NavCache, logger *slog.Logger) *ContentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentService{
		db:      db,
		queries: store.New(db),
		nav:     nav,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the content of slug.
func (s *ContentService) Get(ctx context.Context, slug string) (model.PreviewContent, error) {
	if !util.IsValidSlug(slug) {
		return model.PreviewContent{}, ErrContentNotFound
	}

	load := func(ctx context.Context) (model.PreviewContent, error) {
		c, err := s.queries.GetContent(ctx, slug)
		if errors.Is(err, sql.ErrNoRows) {
			return c, ErrContentNotFound
		}
		return c, err
	}

	if s.nav != nil {
		return s.nav.Content(ctx, slug, load)
	}
	return load(ctx)
}

// Put replaces the triple stored for slug. The three blobs are written in
// one transaction, so readers never see a mix of old and new parts.
func (s *ContentService) Put(ctx context.Context, slug string, c model.PreviewContent) (model.PreviewContent, error) {
	if !util.IsValidSlug(slug) {
		return model.PreviewContent{}, fmt.Errorf("%w: %s", ErrInvalidContent, slugProblem(slug))
	}
	if !model.IsValidFormat(c.Format) {
		return model.PreviewContent{}, fmt.Errorf("%w: unknown format %q", ErrInvalidContent, c.Format)
	}
	for name, blob := range map[string]string{"markup": c.Markup, "style": c.Style, "behavior": c.Behavior} {
		if len(blob) > maxContentSize {
			return model.PreviewContent{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidContent, name, maxContentSize)
		}
	}

	var stored model.PreviewContent
	err := store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		err := q.PutContent(ctx, store.PutContentParams{
			Slug:      slug,
			Markup:    c.Markup,
			Style:     c.Style,
			Behavior:  c.Behavior,
			Format:    c.Format,
			UpdatedAt: s.now(),
		})
		if err != nil {
			return err
		}
		stored, err = q.GetContent(ctx, slug)
		return err
	})
	if err != nil {
		return model.PreviewContent{}, fmt.Errorf("storing content %s: %w", slug, err)
	}

	if s.nav != nil {
		s.nav.InvalidateContent(ctx, slug)
	}
	s.logger.Info("content updated", "category", model.EventCategoryContent, "slug", slug)
	return stored, nil
}

// Delete removes the content of slug.
func (s *ContentService) Delete(ctx context.Context, slug string) error {
	err := s.queries.DeleteContent(ctx, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrContentNotFound
	}
	if err != nil {
		return err
	}
	if s.nav != nil {
		s.nav.InvalidateContent(ctx, slug)
	}
	return nil
}

// Warm loads every stored content triple into the cache.
func (s *ContentService) Warm(ctx context.Context) (int, error) {
	slugs, err := s.queries.ListContentSlugs(ctx)
	if err != nil {
		return 0, err
	}
	for _, slug := range slugs {
		if _, err := s.Get(ctx, slug); err != nil && !errors.Is(err, ErrContentNotFound) {
			return 0, err
		}
	}
	return len(slugs), nil
}
