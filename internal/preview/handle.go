// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package preview

import (
	"context"
	"iter"
	"log/slog"
	"slices"
	"sync"

	"github.com/olegiv/ocms-nav/internal/model"
)

// Handle is one composition. It owns the height loop and the watch
// subscription on the surface until Close.
type Handle struct {
	surface Surface
	logger  *slog.Logger
	slug    string

	stopWatch  func()
	sandboxErr *SandboxError

	mu     sync.Mutex
	dirty  bool
	last   int
	subs   map[int]func(int)
	nextID int
	closed bool

	cancel context.CancelFunc
	done   chan struct{}
}

func newHandle(surface Surface, logger *slog.Logger, slug string) *Handle {
	return &Handle{
		surface:   surface,
		logger:    logger,
		slug:      slug,
		stopWatch: func() {},
		last:      -1,
		subs:      make(map[int]func(int)),
		done:      make(chan struct{}),
	}
}

// Err returns the behavior failure, if any.
func (h *Handle) Err() error {
	if h.sandboxErr == nil {
		return nil
	}
	return h.sandboxErr
}

// Height returns the last reported height.
func (h *Handle) Height() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, h.last >= 0
}

// Done is closed when the handle is torn down.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// OnHeightChange registers cb for height changes. Callbacks run on the
// handle's loop goroutine; at most one fires per frame and only when the
// height differs from the previous report.
func (h *Handle) OnHeightChange(cb func(height int)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = cb

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Heights returns a lazy sequence of height changes, starting with the
// current height when one is known. Every range over the sequence opens a
// fresh subscription, so it can be restarted. It ends when ctx is done or
// the handle is closed. Intermediate values may be dropped; the latest
// height is always delivered.
func (h *Handle) Heights(ctx context.Context) iter.Seq[int] {
	return func(yield func(int) bool) {
		ch := make(chan int, 1)
		unsubscribe := h.OnHeightChange(func(v int) {
			for {
				select {
				case ch <- v:
					return
				default:
				}
				select {
				case <-ch:
				default:
				}
			}
		})
		defer unsubscribe()

		if v, ok := h.Height(); ok {
			if !yield(v) {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-h.done:
				return
			case v := <-ch:
				if !yield(v) {
					return
				}
			}
		}
	}
}

// Close stops the height loop and drops all subscriptions. No callback
// runs after Close returns. Close must not be called from a height
// callback.
func (h *Handle) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.subs = nil
	cancel := h.cancel
	h.mu.Unlock()

	h.stopWatch()
	if cancel != nil {
		cancel()
		<-h.done
	} else {
		close(h.done)
	}
}

func (h *Handle) markDirty() {
	h.mu.Lock()
	h.dirty = true
	h.mu.Unlock()
}

func (h *Handle) start(clock FrameClock) {
	ctx, cancel := context.WithCancel(context.Background())
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	go h.loop(ctx, clock)
}

func (h *Handle) loop(ctx context.Context, clock FrameClock) {
	defer close(h.done)

	ticks, stop := clock.Frames()
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			h.frame(ctx)
		}
	}
}

// frame measures the surface when something changed since the last frame
// and notifies subscribers when the height moved.
func (h *Handle) frame(ctx context.Context) {
	h.mu.Lock()
	if !h.dirty || h.closed {
		h.mu.Unlock()
		return
	}
	h.dirty = false
	h.mu.Unlock()

	height, err := h.surface.Height(ctx)
	if err != nil {
		if ctx.Err() == nil {
			h.logger.Debug("preview height measurement failed", "category", model.EventCategoryPreview,
				"slug", h.slug, "error", err)
		}
		return
	}

	h.mu.Lock()
	if h.closed || height == h.last {
		h.mu.Unlock()
		return
	}
	h.last = height
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	subs := make([]func(int), len(ids))
	for i, id := range ids {
		subs[i] = h.subs[id]
	}
	h.mu.Unlock()

	for _, cb := range subs {
		if ctx.Err() != nil {
			return
		}
		cb(height)
	}
}
