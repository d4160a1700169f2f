// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/ocms-nav/internal/service"
)

// Job names.
const (
	JobCacheWarm      = "cache_warm"
	JobMenuIntegrity  = "menu_integrity"
	JobEventRetention = "event_retention"
)

// MenuWarmer fills the menu cache. *service.MenuService implements it.
type MenuWarmer interface {
	Warm(ctx context.Context) error
}

// ContentWarmer fills the content cache. *service.ContentService
// implements it.
type ContentWarmer interface {
	Warm(ctx context.Context) (int, error)
}

// IntegrityChecker rebuilds the stored menu forest and reports problems.
type IntegrityChecker interface {
	CheckIntegrity(ctx context.Context) (service.IntegrityReport, error)
}

// EventPruner deletes old event log entries.
type EventPruner interface {
	DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CacheWarmJob preloads every placement's menu and all preview content.
func CacheWarmJob(schedule string, menus MenuWarmer, contents ContentWarmer, logger *slog.Logger) Job {
	return Job{
		Name:        JobCacheWarm,
		Description: "Preload menus and preview content into the cache",
		Schedule:    schedule,
		Run: func(ctx context.Context) error {
			if err := menus.Warm(ctx); err != nil {
				return fmt.Errorf("warming menus: %w", err)
			}
			n, err := contents.Warm(ctx)
			if err != nil {
				return fmt.Errorf("warming content: %w", err)
			}
			logger.Debug("cache warmed", "category", "cache", "contents", n)
			return nil
		},
	}
}

// IntegrityJob rebuilds the forest from the database. The checker logs a
// problem set at WARN when it changes, which lands it in the event log.
func IntegrityJob(schedule string, menus IntegrityChecker, logger *slog.Logger) Job {
	return Job{
		Name:        JobMenuIntegrity,
		Description: "Check stored menus for dangling parents and cycles",
		Schedule:    schedule,
		Run: func(ctx context.Context) error {
			report, err := menus.CheckIntegrity(ctx)
			if err != nil {
				return fmt.Errorf("checking menu integrity: %w", err)
			}
			logger.Info("menu integrity checked", "category", "menu",
				"nodes", report.Nodes, "reachable", report.Reachable,
				"problems", len(report.Diagnostics))
			return nil
		},
	}
}

// EventRetentionJob deletes events older than retention. It runs daily.
func EventRetentionJob(retention time.Duration, events EventPruner, logger *slog.Logger) Job {
	schedule := "@daily"
	if retention <= 0 {
		schedule = "off"
	}
	return Job{
		Name:        JobEventRetention,
		Description: "Delete event log entries past the retention period",
		Schedule:    schedule,
		Run: func(ctx context.Context) error {
			if retention <= 0 {
				return nil
			}
			n, err := events.DeleteOldEvents(ctx, retention)
			if err != nil {
				return fmt.Errorf("pruning events: %w", err)
			}
			if n > 0 {
				logger.Info("old events deleted", "category", "system", "count", n, "retention", retention)
			}
			return nil
		},
	}
}
