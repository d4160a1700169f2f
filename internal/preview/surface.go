// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package preview

import (
	"context"
	"fmt"
	"time"
)

// Surface is an isolated rendering context. A Compositor owns exactly one
// Surface and is the only caller of its methods.
type Surface interface {
	// Reset discards everything injected so far and starts a fresh,
	// isolated document.
	Reset(ctx context.Context) error
	InjectStyle(ctx context.Context, css string) error
	InjectMarkup(ctx context.Context, html string) error
	// RunBehavior executes script inside the sandbox. A script failure is
	// reported as *SandboxError.
	RunBehavior(ctx context.Context, script string) error
	// Height returns the intrinsic content height in CSS pixels.
	Height(ctx context.Context) (int, error)
	// Watch registers notify to be called on every structural or size
	// change of the rendered document. notify must not block.
	Watch(notify func()) (stop func())
	Close() error
}

// SandboxError is a failure of the behavior script. It never escapes the
// sandbox as a fatal error; the compositor records it on the handle.
type SandboxError struct {
	Message string
	Line    int
	Column  int
}

func (e *SandboxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("behavior script error at %d:%d: %s", e.Line, e.Column, e.Message)
	}
	return "behavior script error: " + e.Message
}

// FrameClock paces the height loop. Each tick is one rendering frame.
type FrameClock interface {
	Frames() (ticks <-chan time.Time, stop func())
}

// DefaultFrameInterval approximates one frame at 60Hz.
const DefaultFrameInterval = 16 * time.Millisecond

type tickerClock struct {
	interval time.Duration
}

// NewTickerClock returns a FrameClock backed by time.Ticker.
func NewTickerClock(interval time.Duration) FrameClock {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return tickerClock{interval: interval}
}

func (c tickerClock) Frames() (<-chan time.Time, func()) {
	t := time.NewTicker(c.interval)
	return t.C, t.Stop
}
