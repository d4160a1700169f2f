// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package preview renders stored page content (markup, style and behavior)
// inside an isolated surface and reports the rendered height back to the
// host layout.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/olegiv/ocms-nav/internal/model"
)

// ErrClosed is returned by Compose after Close.
var ErrClosed = errors.New("compositor closed")

// Compositor composes content into its Surface. Only one Handle is active
// at a time; composing again tears the previous one down first.
type Compositor struct {
	surface  Surface
	clock    FrameClock
	renderer *Renderer
	logger   *slog.Logger

	mu      sync.Mutex
	current *Handle
	closed  bool
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithClock replaces the default 16ms frame clock.
func WithClock(c FrameClock) Option {
	return func(comp *Compositor) { comp.clock = c }
}

// WithRenderer replaces the default markup renderer.
func WithRenderer(r *Renderer) Option {
	return func(comp *Compositor) { comp.renderer = r }
}

// NewCompositor creates a Compositor drawing into surface.
func NewCompositor(surface Surface, logger *slog.Logger, opts ...Option) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Compositor{
		surface: surface,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = NewTickerClock(DefaultFrameInterval)
	}
	if c.renderer == nil {
		c.renderer = NewRenderer()
	}
	return c
}

// Compose tears down the previous handle, resets the surface and injects
// style, markup and behavior in that order. A failing behavior script does
// not fail Compose; it is available from Handle.Err.
//
// Compose must not be called from a height callback.
func (c *Compositor) Compose(ctx context.Context, content model.PreviewContent) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.current != nil {
		c.current.Close()
		c.current = nil
	}

	markup, err := c.renderer.Markup(content)
	if err != nil {
		return nil, err
	}

	if err := c.surface.Reset(ctx); err != nil {
		return nil, fmt.Errorf("resetting surface: %w", err)
	}
	if err := c.surface.InjectStyle(ctx, content.Style); err != nil {
		return nil, fmt.Errorf("injecting style: %w", err)
	}
	if err := c.surface.InjectMarkup(ctx, markup); err != nil {
		return nil, fmt.Errorf("injecting markup: %w", err)
	}

	h := newHandle(c.surface, c.logger, content.Slug)
	// Watch before behavior runs so its mutations are seen.
	h.stopWatch = c.surface.Watch(h.markDirty)

	if content.Behavior != "" {
		if err := c.surface.RunBehavior(ctx, content.Behavior); err != nil {
			var serr *SandboxError
			if !errors.As(err, &serr) {
				h.stopWatch()
				return nil, fmt.Errorf("running behavior: %w", err)
			}
			h.sandboxErr = serr
			c.logger.Warn("preview behavior failed", "category", model.EventCategoryPreview,
				"slug", content.Slug, "error", serr.Message)
		}
	}

	h.markDirty()
	h.start(c.clock)
	c.current = h
	return h, nil
}

// Current returns the active handle, or nil.
func (c *Compositor) Current() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Close tears down the active handle and the surface.
func (c *Compositor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.current != nil {
		c.current.Close()
		c.current = nil
	}
	return c.surface.Close()
}
