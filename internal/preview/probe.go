// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package preview

import (
	"context"
	"sync"
	"time"

	"github.com/olegiv/ocms-nav/internal/model"
)

// DefaultSettle is how long a height must stay unchanged before Measure
// accepts it.
const DefaultSettle = 100 * time.Millisecond

// Measurement is the outcome of a Probe run.
type Measurement struct {
	Height   int
	Behavior error // *SandboxError when the behavior script failed
}

// Probe measures content heights on a shared Compositor. Requests are
// serialised because the compositor holds a single active handle.
type Probe struct {
	mu     sync.Mutex
	comp   *Compositor
	settle time.Duration
}

// NewProbe creates a Probe. A non-positive settle uses DefaultSettle.
func NewProbe(comp *Compositor, settle time.Duration) *Probe {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Probe{comp: comp, settle: settle}
}

// Measure composes content and waits until its height has been stable for
// the settle period. When ctx ends first, the last height seen is returned
// if there is one.
func (p *Probe) Measure(ctx context.Context, content model.PreviewContent) (Measurement, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, err := p.comp.Compose(ctx, content)
	if err != nil {
		return Measurement{}, err
	}
	defer h.Close()

	latest := make(chan int, 1)
	unsubscribe := h.OnHeightChange(func(height int) {
		select {
		case <-latest:
		default:
		}
		latest <- height
	})
	defer unsubscribe()

	m := Measurement{Behavior: h.Err()}
	seen := false
	timer := time.NewTimer(p.settle)
	defer timer.Stop()

	for {
		select {
		case height := <-latest:
			m.Height, seen = height, true
			timer.Reset(p.settle)
		case <-timer.C:
			if seen {
				return m, nil
			}
			timer.Reset(p.settle)
		case <-h.Done():
			if seen {
				return m, nil
			}
			return m, ErrClosed
		case <-ctx.Done():
			if seen {
				return m, nil
			}
			return m, ctx.Err()
		}
	}
}
