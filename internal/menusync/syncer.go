// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package menusync keeps a client-side menu scope in step with the server.
// Reorders are applied locally at once and sent in the background; the
// server's answer either commits them or rolls the scope back.
package menusync

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/olegiv/ocms-nav/internal/model"
	"github.com/olegiv/ocms-nav/internal/ordering"
)

// State of a Syncer.
type State int

const (
	Idle State = iota
	Pending
	Committed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners on every state or local order change.
type Event struct {
	Scope ordering.Scope
	State State
	Local []model.MenuNode
	Err   error
}

// Config controls retry behaviour.
type Config struct {
	// MaxRetries is the number of retries after the first failed attempt.
	MaxRetries uint64
	// BaseBackoff is the first retry delay; later delays double.
	BaseBackoff time.Duration
	// MaxBackoff caps a single delay.
	MaxBackoff time.Duration
}

// DefaultConfig returns the retry settings used by the admin UI.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		BaseBackoff: 200 * time.Millisecond,
		MaxBackoff:  2 * time.Second,
	}
}

// Syncer owns the local copy of one scope. At most one request for the
// scope is in flight; reorders made meanwhile coalesce into one queued
// target, and only the latest target is sent.
type Syncer struct {
	scope     ordering.Scope
	transport Transport
	config    Config
	logger    *slog.Logger

	mu        sync.Mutex
	state     State
	local     []model.MenuNode
	snapshot  []model.MenuNode
	queued    []string
	inflight  bool
	idle      chan struct{}
	listeners map[int]func(Event)
	nextID    int
	events    []Event
	notify    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup // dispatcher
	runs   sync.WaitGroup // request goroutines
}

// New creates a Syncer for scope. Call Load before the first Reorder.
func New(scope ordering.Scope, transport Transport, cfg Config, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	s := &Syncer{
		scope:     scope,
		transport: transport,
		config:    cfg,
		logger:    logger,
		idle:      idle,
		listeners: make(map[int]func(Event)),
		notify:    make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}

	s.wg.Add(1)
	go s.dispatchEvents()
	return s
}

// Scope returns the scope this Syncer tracks.
func (s *Syncer) Scope() ordering.Scope {
	return s.scope
}

// State returns the current state.
func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Local returns a copy of the local order.
func (s *Syncer) Local() []model.MenuNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.local)
}

// Snapshot returns a copy of the last authoritative order.
func (s *Syncer) Snapshot() []model.MenuNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.snapshot)
}

// OnChange registers a listener and returns a function removing it.
// Listeners run on a single goroutine, in event order.
func (s *Syncer) OnChange(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Load fetches the authoritative order and makes it both the local order
// and the snapshot. It fails with ErrBusy while a request is in flight.
func (s *Syncer) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.inflight {
		s.mu.Unlock()
		return ErrBusy
	}
	s.mu.Unlock()

	nodes, err := s.transport.Fetch(ctx, s.scope)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight {
		return ErrBusy
	}
	s.snapshot = slices.Clone(nodes)
	s.local = slices.Clone(nodes)
	s.state = Idle
	s.emitLocked(nil)
	return nil
}

// Reorder moves movingID to targetIndex in the local order and returns the
// new local order. The change is sent to the server in the background.
func (s *Syncer) Reorder(movingID string, targetIndex int) ([]model.MenuNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return nil, ErrClosed
	}

	next, err := ordering.Reorder(s.local, movingID, targetIndex)
	if err != nil {
		return nil, err
	}
	s.local = next
	target := ordering.IDs(next)

	if s.inflight {
		s.queued = target
		s.emitLocked(nil)
		return slices.Clone(next), nil
	}

	s.inflight = true
	s.idle = make(chan struct{})
	s.state = Pending
	s.emitLocked(nil)

	s.runs.Add(1)
	go s.run(target)
	return slices.Clone(next), nil
}

// Wait blocks until no request is in flight or ctx is done.
func (s *Syncer) Wait(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the in-flight request and stops event delivery once the
// request has rolled back. Listeners see its final transitions.
func (s *Syncer) Close() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}

// run sends target and every target queued behind it, one at a time.
func (s *Syncer) run(target []string) {
	defer s.runs.Done()

	for {
		committed, err := s.send(target)

		s.mu.Lock()
		switch {
		case err == nil:
			s.snapshot = slices.Clone(committed)
			s.state = Committed
			if s.queued != nil {
				s.emitLocked(nil)
				target = s.queued
				s.queued = nil
				s.state = Pending
				s.emitLocked(nil)
				s.mu.Unlock()
				continue
			}
			s.local = slices.Clone(committed)
			s.emitLocked(nil)
			s.settleLocked()
			s.mu.Unlock()
			return

		case s.ctx.Err() != nil:
			s.rollbackLocked(s.snapshot, err)
			s.mu.Unlock()
			return

		default:
			s.mu.Unlock()
			// A rejection usually means the scope changed on the server, so
			// the snapshot is stale too. Both cases resync from a fresh fetch.
			if errors.Is(err, ErrRejected) {
				s.logger.Warn("menu reorder rejected, refetching", "category", model.EventCategoryMenu,
					"scope", s.scope.Key(), "error", err)
			} else {
				s.logger.Warn("menu reorder failed, refetching", "category", model.EventCategoryMenu,
					"scope", s.scope.Key(), "error", err)
			}

			fresh, ferr := s.transport.Fetch(s.ctx, s.scope)

			s.mu.Lock()
			restore := s.snapshot
			if ferr == nil {
				s.snapshot = slices.Clone(fresh)
				restore = fresh
			} else {
				s.logger.Debug("menu refetch failed", "scope", s.scope.Key(), "error", ferr)
			}
			s.rollbackLocked(restore, err)
			s.mu.Unlock()
			return
		}
	}
}

// send delivers one target, retrying transport failures with exponential
// backoff. Rejections are never retried.
func (s *Syncer) send(target []string) ([]model.MenuNode, error) {
	base := s.config.BaseBackoff
	if base <= 0 {
		base = time.Millisecond
	}
	b := retry.NewExponential(base)
	if s.config.MaxBackoff > 0 {
		b = retry.WithCappedDuration(s.config.MaxBackoff, b)
	}
	b = retry.WithMaxRetries(s.config.MaxRetries, b)

	var committed []model.MenuNode
	err := retry.Do(s.ctx, b, func(ctx context.Context) error {
		nodes, err := s.transport.Reorder(ctx, s.scope, target)
		if err != nil {
			if errors.Is(err, ErrRejected) {
				return err
			}
			s.logger.Debug("menu reorder attempt failed", "scope", s.scope.Key(), "error", err)
			return retry.RetryableError(err)
		}
		committed = nodes
		return nil
	})
	return committed, err
}

// rollbackLocked restores local to order, drops the queued target and
// settles to Idle. Must be called with the lock held.
func (s *Syncer) rollbackLocked(order []model.MenuNode, err error) {
	s.local = slices.Clone(order)
	s.queued = nil
	s.state = RolledBack
	s.emitLocked(err)
	s.settleLocked()
}

// settleLocked returns to Idle and releases waiters. Must be called with
// the lock held.
func (s *Syncer) settleLocked() {
	s.state = Idle
	s.inflight = false
	s.emitLocked(nil)
	close(s.idle)
}

// emitLocked queues an event for the dispatch goroutine. Must be called
// with the lock held.
func (s *Syncer) emitLocked(err error) {
	s.events = append(s.events, Event{
		Scope: s.scope,
		State: s.state,
		Local: slices.Clone(s.local),
		Err:   err,
	})
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// dispatchEvents delivers queued events until the Syncer is closed. Events
// queued before Close returns are delivered on the way out.
func (s *Syncer) dispatchEvents() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.runs.Wait()
			s.deliver()
			return
		case <-s.notify:
		}
		s.deliver()
	}
}

func (s *Syncer) deliver() {
	s.mu.Lock()
	events := s.events
	s.events = nil
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	listeners := make([]func(Event), len(ids))
	for i, id := range ids {
		listeners[i] = s.listeners[id]
	}
	s.mu.Unlock()

	for _, ev := range events {
		for _, fn := range listeners {
			fn(ev)
		}
	}
}
