// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"log/slog"

	"github.com/olegiv/ocms-nav/internal/model"
)

// Manager owns the cache backend and the caches built on it.
type Manager struct {
	Backend Cacher
	Nav     *NavCache
	logger  *slog.Logger
}

// NewManager creates the backend from cfg. A Redis URL that cannot be
// reached falls back to memory with a warning so the server still starts.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	backend, err := New(cfg)
	if err != nil {
		logger.Warn("redis cache unavailable, using memory", "category", model.EventCategoryCache,
			"url", SanitizeRedisURL(cfg.RedisURL), "error", err)
		cfg.RedisURL = ""
		backend, _ = New(cfg)
	}

	return NewManagerWithBackend(backend, cfg, logger)
}

// NewManagerWithBackend wraps an existing backend.
func NewManagerWithBackend(backend Cacher, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		Backend: backend,
		Nav:     NewNavCache(backend, cfg.DefaultTTL, logger),
		logger:  logger,
	}
}

// Stats returns backend statistics, or zero Stats when the backend does
// not count.
func (m *Manager) Stats() Stats {
	if sp, ok := m.Backend.(StatsProvider); ok {
		return sp.Stats()
	}
	return Stats{}
}

// Ping checks the backend. Memory caches are always healthy.
func (m *Manager) Ping(ctx context.Context) error {
	if r, ok := m.Backend.(*RedisCache); ok {
		return r.Ping(ctx)
	}
	return nil
}

// ClearAll drops every entry and resets statistics.
func (m *Manager) ClearAll(ctx context.Context) error {
	if err := m.Backend.Clear(ctx); err != nil {
		return err
	}
	if sp, ok := m.Backend.(StatsProvider); ok {
		sp.ResetStats()
	}
	m.logger.Info("cache cleared", "category", model.EventCategoryCache)
	return nil
}

// Close releases the backend.
func (m *Manager) Close() error {
	return m.Backend.Close()
}
