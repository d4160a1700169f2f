// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Namespace stores JSON-encoded values of type T under a shared key prefix,
// so a whole family of entries can be dropped at once.
type Namespace[T any] struct {
	backend Cacher
	prefix  string
	ttl     time.Duration
}

// NewNamespace creates a Namespace. A zero ttl uses the backend default.
func NewNamespace[T any](backend Cacher, prefix string, ttl time.Duration) *Namespace[T] {
	return &Namespace[T]{backend: backend, prefix: prefix, ttl: ttl}
}

// Key returns the backend key of id.
func (n *Namespace[T]) Key(id string) string {
	return n.prefix + id
}

// Get returns the value stored under id. Entries that no longer decode
// into T count as misses.
func (n *Namespace[T]) Get(ctx context.Context, id string) (T, bool) {
	var value T
	data, err := n.backend.Get(ctx, n.Key(id))
	if err != nil {
		return value, false
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, false
	}
	return value, true
}

// Set stores value under id.
func (n *Namespace[T]) Set(ctx context.Context, id string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return n.backend.Set(ctx, n.Key(id), data, n.ttl)
}

// Delete drops the entry of id.
func (n *Namespace[T]) Delete(ctx context.Context, id string) error {
	return n.backend.Delete(ctx, n.Key(id))
}

// Clear drops every entry of the namespace.
func (n *Namespace[T]) Clear(ctx context.Context) error {
	return n.backend.DeleteByPrefix(ctx, n.prefix)
}

// Load returns the cached value of id, or calls load and caches its result.
// Load errors are returned and nothing is stored. A failed store is ignored.
func (n *Namespace[T]) Load(ctx context.Context, id string, load func(context.Context) (T, error)) (T, error) {
	if value, ok := n.Get(ctx, id); ok {
		return value, nil
	}
	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	_ = n.Set(ctx, id, value)
	return value, nil
}
