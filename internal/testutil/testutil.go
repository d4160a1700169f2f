// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers for the oCMS project.
package testutil

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/olegiv/ocms-nav/internal/model"
	"github.com/olegiv/ocms-nav/internal/store"
)

// TestLogger creates a silent test logger that only outputs warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// TestLoggerSilent creates a completely silent test logger (error level only).
func TestLoggerSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// TestDB creates a temporary test database with migrations applied.
// The database is closed when the test finishes.
func TestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "ocms-test.db")

	db, err := store.NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}

	if err := store.Migrate(db); err != nil {
		_ = db.Close()
		t.Fatalf("Migrate: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// SeedNode inserts a menu node with a URL target derived from its id.
// parent may be empty for a root node.
func SeedNode(t *testing.T, db *sql.DB, id, parent string, placement model.Placement, position int) model.FlatNode {
	t.Helper()

	n, err := store.New(db).CreateMenuNode(context.Background(), store.CreateMenuNodeParams{
		ID:        id,
		ParentID:  model.StringPtr(parent),
		Placement: placement,
		Position:  position,
		Title:     id,
		Target:    model.Target{URL: "/" + id},
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateMenuNode(%s): %v", id, err)
	}
	return n
}
