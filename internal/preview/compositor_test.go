// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package preview

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/olegiv/ocms-nav/internal/model"
	"github.com/olegiv/ocms-nav/internal/testutil"
)

// fakeSurface records injections and lets tests drive height and
// mutation notifications.
type fakeSurface struct {
	mu          sync.Mutex
	ops         []string
	markup      string
	height      int
	watchers    map[int]func()
	nextID      int
	behaviorErr error
	closed      bool
}

func newFakeSurface(height int) *fakeSurface {
	return &fakeSurface{height: height, watchers: make(map[int]func())}
}

func (s *fakeSurface) record(op string) {
	s.mu.Lock()
	s.ops = append(s.ops, op)
	s.mu.Unlock()
}

func (s *fakeSurface) Reset(context.Context) error { s.record("reset"); return nil }

func (s *fakeSurface) InjectStyle(context.Context, string) error { s.record("style"); return nil }

func (s *fakeSurface) InjectMarkup(_ context.Context, html string) error {
	s.mu.Lock()
	s.markup = html
	s.mu.Unlock()
	s.record("markup")
	return nil
}

func (s *fakeSurface) RunBehavior(context.Context, string) error {
	s.record("behavior")
	s.mutate()
	return s.behaviorErr
}

func (s *fakeSurface) Height(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height, nil
}

func (s *fakeSurface) Watch(notify func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = notify
	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

func (s *fakeSurface) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSurface) setHeight(h int) {
	s.mu.Lock()
	s.height = h
	s.mu.Unlock()
}

func (s *fakeSurface) mutate() {
	s.mu.Lock()
	ws := make([]func(), 0, len(s.watchers))
	for _, w := range s.watchers {
		ws = append(ws, w)
	}
	s.mu.Unlock()
	for _, w := range ws {
		w()
	}
}

func (s *fakeSurface) watcherCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

// manualClock delivers a frame per tick call. The channel is unbuffered,
// so a tick returns only once the loop has finished the previous frame.
type manualClock struct {
	ch chan time.Time
}

func newManualClock() *manualClock {
	return &manualClock{ch: make(chan time.Time)}
}

func (c *manualClock) Frames() (<-chan time.Time, func()) {
	return c.ch, func() {}
}

func (c *manualClock) tick(t *testing.T) {
	t.Helper()
	select {
	case c.ch <- time.Now():
	case <-time.After(5 * time.Second):
		t.Fatal("frame loop not receiving ticks")
	}
}

// settle ticks once more; it returns only after the previous frame ran.
func (c *manualClock) settle(t *testing.T) {
	t.Helper()
	c.tick(t)
}

type heightLog struct {
	mu sync.Mutex
	hs []int
}

func (l *heightLog) add(h int) {
	l.mu.Lock()
	l.hs = append(l.hs, h)
	l.mu.Unlock()
}

func (l *heightLog) get() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.hs)
}

func newTestCompositor(s Surface, c FrameClock) *Compositor {
	return NewCompositor(s, testutil.TestLoggerSilent(), WithClock(c))
}

func TestCompose_InjectionOrder(t *testing.T) {
	s := newFakeSurface(100)
	comp := newTestCompositor(s, newManualClock())
	defer func() { _ = comp.Close() }()

	_, err := comp.Compose(context.Background(), model.PreviewContent{
		Markup:   `<p>hi</p><script>alert(1)</script>`,
		Style:    "p{color:red}",
		Behavior: "document.body.dataset.x=1",
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	want := []string{"reset", "style", "markup", "behavior"}
	if !slices.Equal(s.ops, want) {
		t.Errorf("ops = %v, want %v", s.ops, want)
	}
	if s.markup != "<p>hi</p>" {
		t.Errorf("markup = %q, script should be stripped", s.markup)
	}
}

func TestCompose_BurstCoalescedToOneCallback(t *testing.T) {
	s := newFakeSurface(100)
	clock := newManualClock()
	comp := newTestCompositor(s, clock)
	defer func() { _ = comp.Close() }()

	h, err := comp.Compose(context.Background(), model.PreviewContent{Markup: "<p>x</p>"})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	var log heightLog
	h.OnHeightChange(log.add)

	clock.tick(t)
	clock.settle(t)
	if got := log.get(); !slices.Equal(got, []int{100}) {
		t.Fatalf("initial heights = %v, want [100]", got)
	}

	// K mutations inside one frame.
	for i := range 25 {
		s.setHeight(200 + i)
		s.mutate()
	}
	clock.tick(t)
	clock.settle(t)

	if got := log.get(); !slices.Equal(got, []int{100, 224}) {
		t.Errorf("heights = %v, want [100 224]", got)
	}
}

func TestCompose_UnchangedHeightNotReported(t *testing.T) {
	s := newFakeSurface(80)
	clock := newManualClock()
	comp := newTestCompositor(s, clock)
	defer func() { _ = comp.Close() }()

	h, _ := comp.Compose(context.Background(), model.PreviewContent{})
	var log heightLog
	h.OnHeightChange(log.add)

	clock.tick(t)
	s.mutate()
	clock.tick(t)
	s.mutate()
	clock.tick(t)
	clock.settle(t)

	if got := log.get(); len(got) != 1 {
		t.Errorf("heights = %v, want a single report", got)
	}
}

func TestCompose_SandboxErrorContained(t *testing.T) {
	s := newFakeSurface(50)
	s.behaviorErr = &SandboxError{Message: "ReferenceError: foo is not defined", Line: 1, Column: 1}
	clock := newManualClock()
	comp := newTestCompositor(s, clock)
	defer func() { _ = comp.Close() }()

	h, err := comp.Compose(context.Background(), model.PreviewContent{Behavior: "foo()"})
	if err != nil {
		t.Fatalf("Compose returned %v; sandbox errors must stay on the handle", err)
	}

	var serr *SandboxError
	if !errors.As(h.Err(), &serr) {
		t.Fatalf("Handle.Err() = %v, want *SandboxError", h.Err())
	}

	var log heightLog
	h.OnHeightChange(log.add)
	clock.tick(t)
	clock.settle(t)
	if got := log.get(); !slices.Equal(got, []int{50}) {
		t.Errorf("height loop stopped after sandbox error: %v", got)
	}
}

func TestCompose_SurfaceFailureIsReturned(t *testing.T) {
	s := newFakeSurface(50)
	s.behaviorErr = errors.New("target closed")
	comp := newTestCompositor(s, newManualClock())
	defer func() { _ = comp.Close() }()

	if _, err := comp.Compose(context.Background(), model.PreviewContent{Behavior: "x"}); err == nil {
		t.Fatal("expected error from broken surface")
	}
	if n := s.watcherCount(); n != 0 {
		t.Errorf("watchers = %d after failed compose, want 0", n)
	}
}

func TestCompose_RecomposeTearsDownPrevious(t *testing.T) {
	s := newFakeSurface(10)
	clock := newManualClock()
	comp := newTestCompositor(s, clock)
	defer func() { _ = comp.Close() }()

	first, _ := comp.Compose(context.Background(), model.PreviewContent{Markup: "a"})
	var firstLog heightLog
	first.OnHeightChange(firstLog.add)

	second, _ := comp.Compose(context.Background(), model.PreviewContent{Markup: "b"})
	var secondLog heightLog
	second.OnHeightChange(secondLog.add)

	select {
	case <-first.Done():
	default:
		t.Fatal("first handle still running after recompose")
	}
	if n := s.watcherCount(); n != 1 {
		t.Errorf("watchers = %d, want 1", n)
	}

	s.setHeight(99)
	s.mutate()
	clock.tick(t)
	clock.settle(t)

	if got := firstLog.get(); len(got) != 0 {
		t.Errorf("torn-down handle received %v", got)
	}
	if got := secondLog.get(); !slices.Equal(got, []int{99}) {
		t.Errorf("second handle heights = %v, want [99]", got)
	}
	if comp.Current() != second {
		t.Error("Current() is not the latest handle")
	}
}

func TestHandle_CloseStopsCallbacks(t *testing.T) {
	s := newFakeSurface(10)
	clock := newManualClock()
	comp := newTestCompositor(s, clock)

	h, _ := comp.Compose(context.Background(), model.PreviewContent{})
	var log heightLog
	h.OnHeightChange(log.add)
	h.Close()

	if n := s.watcherCount(); n != 0 {
		t.Errorf("watchers = %d after Close, want 0", n)
	}
	// The loop is gone; nobody receives the tick.
	select {
	case clock.ch <- time.Now():
		t.Error("frame loop still running after Close")
	case <-time.After(20 * time.Millisecond):
	}
	if got := log.get(); len(got) != 0 {
		t.Errorf("callbacks after Close: %v", got)
	}

	if err := comp.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !s.closed {
		t.Error("surface not closed")
	}
	if _, err := comp.Compose(context.Background(), model.PreviewContent{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Compose after Close = %v, want ErrClosed", err)
	}
}

func TestHandle_HeightsIsRestartable(t *testing.T) {
	s := newFakeSurface(40)
	clock := newManualClock()
	comp := newTestCompositor(s, clock)
	defer func() { _ = comp.Close() }()

	h, _ := comp.Compose(context.Background(), model.PreviewContent{})
	clock.tick(t)
	clock.settle(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// First pass: take the current height and stop.
	for v := range h.Heights(ctx) {
		if v != 40 {
			t.Errorf("first value = %d, want 40", v)
		}
		break
	}

	// Second pass: current height, then a change.
	got := make(chan []int, 1)
	go func() {
		var seen []int
		for v := range h.Heights(ctx) {
			seen = append(seen, v)
			if len(seen) == 2 {
				break
			}
		}
		got <- seen
	}()

	// Wait until the second subscription is registered.
	deadline := time.Now().Add(5 * time.Second)
	for {
		h.mu.Lock()
		n := len(h.subs)
		h.mu.Unlock()
		if n == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	s.setHeight(120)
	s.mutate()
	clock.tick(t)
	clock.settle(t)

	select {
	case seen := <-got:
		if !slices.Equal(seen, []int{40, 120}) {
			t.Errorf("second pass = %v, want [40 120]", seen)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for heights")
	}
}

func TestHandle_HeightsEndsOnClose(t *testing.T) {
	s := newFakeSurface(40)
	comp := newTestCompositor(s, newManualClock())
	defer func() { _ = comp.Close() }()

	h, _ := comp.Compose(context.Background(), model.PreviewContent{})

	done := make(chan struct{})
	go func() {
		for range h.Heights(context.Background()) {
		}
		close(done)
	}()

	h.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Heights did not end after Close")
	}
}
