// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/olegiv/ocms-nav/internal/model"
)

const (
	menuKeyPrefix    = "menus:"
	contentKeyPrefix = "content:"
)

// NavCache caches flat menu records per placement and preview content per
// slug. Entries are dropped on every write rather than updated in place.
type NavCache struct {
	menus    *Namespace[[]model.FlatNode]
	contents *Namespace[model.PreviewContent]
	logger   *slog.Logger
}

// NewNavCache creates a NavCache over backend.
func NewNavCache(backend Cacher, ttl time.Duration, logger *slog.Logger) *NavCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &NavCache{
		menus:    NewNamespace[[]model.FlatNode](backend, menuKeyPrefix, ttl),
		contents: NewNamespace[model.PreviewContent](backend, contentKeyPrefix, ttl),
		logger:   logger,
	}
}

// MenuKey returns the cache key of a placement's records.
func MenuKey(p model.Placement) string {
	return menuKeyPrefix + string(p)
}

// ContentKey returns the cache key of a content slug.
func ContentKey(slug string) string {
	return contentKeyPrefix + slug
}

// Menus returns the records of placement, loading them on a miss.
func (c *NavCache) Menus(ctx context.Context, p model.Placement, load func(context.Context) ([]model.FlatNode, error)) ([]model.FlatNode, error) {
	return c.menus.Load(ctx, string(p), load)
}

// InvalidateMenus drops the cached records of the given placements and of
// the combined "all" view. With no placements every menu entry is dropped.
func (c *NavCache) InvalidateMenus(ctx context.Context, placements ...model.Placement) {
	if len(placements) == 0 {
		c.logError(c.menus.Clear(ctx), menuKeyPrefix+"*")
		return
	}
	for _, p := range placements {
		c.logError(c.menus.Delete(ctx, string(p)), MenuKey(p))
	}
	c.logError(c.menus.Delete(ctx, string(model.PlacementAll)), MenuKey(model.PlacementAll))
}

// Content returns the content of slug, loading it on a miss.
func (c *NavCache) Content(ctx context.Context, slug string, load func(context.Context) (model.PreviewContent, error)) (model.PreviewContent, error) {
	return c.contents.Load(ctx, slug, load)
}

// InvalidateContent drops the cached content of slug.
func (c *NavCache) InvalidateContent(ctx context.Context, slug string) {
	c.logError(c.contents.Delete(ctx, slug), ContentKey(slug))
}

func (c *NavCache) logError(err error, key string) {
	if err != nil {
		c.logger.Warn("cache invalidation failed", "category", model.EventCategoryCache,
			"key", key, "error", err)
	}
}
