// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/olegiv/ocms-nav/internal/cache"
	"github.com/olegiv/ocms-nav/internal/service"
	"github.com/olegiv/ocms-nav/internal/version"
)

// Check statuses, from best to worst.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// IntegrityChecker reports structural problems of the stored menus.
type IntegrityChecker interface {
	CheckIntegrity(ctx context.Context) (service.IntegrityReport, error)
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	db        *sql.DB
	cache     *cache.Manager
	menus     IntegrityChecker
	version   version.Info
	startTime time.Time
}

// NewHealthHandler creates a new health handler. cm and menus may be nil.
func NewHealthHandler(db *sql.DB, cm *cache.Manager, menus IntegrityChecker, info version.Info) *HealthHandler {
	return &HealthHandler{
		db:        db,
		cache:     cm,
		menus:     menus,
		version:   info,
		startTime: time.Now(),
	}
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Commit    string           `json:"commit,omitempty"`
	Checks    map[string]Check `json:"checks"`
	System    *SystemInfo      `json:"system,omitempty"`
}

// Check is a single health check result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// SystemInfo is included with ?verbose=true.
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutines"`
	HeapAllocMB  uint64 `json:"heap_alloc_mb"`
}

// Health handles GET /health. A failing database makes the service
// unhealthy (503). Cache failures and stored menu problems only degrade it.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]Check{
		"database": h.checkDatabase(ctx),
		"cache":    h.checkCache(ctx),
	}
	if checks["database"].Status == statusHealthy {
		checks["menus"] = h.checkMenus(ctx)
	}

	overall, code := statusHealthy, http.StatusOK
	for name, c := range checks {
		switch {
		case name == "database" && c.Status != statusHealthy:
			overall, code = statusUnhealthy, http.StatusServiceUnavailable
		case c.Status != statusHealthy && overall == statusHealthy:
			overall = statusDegraded
		}
	}

	status := HealthStatus{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version.Release(),
		Commit:    h.version.GitCommit,
		Checks:    checks,
	}
	if r.URL.Query().Get("verbose") == "true" {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		status.System = &SystemInfo{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			HeapAllocMB:  m.HeapAlloc >> 20,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

// Liveness handles GET /health/live.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) Check {
	return timed(func() (string, error) {
		return "connected", h.db.PingContext(ctx)
	})
}

// checkCache pings the cache backend and reports its hit rate.
func (h *HealthHandler) checkCache(ctx context.Context) Check {
	if h.cache == nil {
		return Check{Status: statusHealthy, Message: "disabled"}
	}
	return timed(func() (string, error) {
		if err := h.cache.Ping(ctx); err != nil {
			return "", err
		}
		stats := h.cache.Stats()
		return fmt.Sprintf("%s, %d items, %.1f%% hit rate", stats.Backend, stats.Items, stats.HitRate), nil
	})
}

// checkMenus rebuilds the stored forest. Dangling parents and cycles are
// repaired on read, so they degrade the status instead of failing it.
func (h *HealthHandler) checkMenus(ctx context.Context) Check {
	if h.menus == nil {
		return Check{Status: statusHealthy, Message: "not checked"}
	}
	var problems int
	c := timed(func() (string, error) {
		report, err := h.menus.CheckIntegrity(ctx)
		if err != nil {
			return "", err
		}
		problems = len(report.Diagnostics)
		return fmt.Sprintf("%d nodes, %d reachable, %d problems", report.Nodes, report.Reachable, problems), nil
	})
	if c.Status == statusHealthy && problems > 0 {
		c.Status = statusDegraded
	}
	return c
}

func timed(fn func() (string, error)) Check {
	start := time.Now()
	msg, err := fn()
	latency := time.Since(start).String()
	if err != nil {
		return Check{Status: statusUnhealthy, Message: err.Error(), Latency: latency}
	}
	return Check{Status: statusHealthy, Message: msg, Latency: latency}
}
