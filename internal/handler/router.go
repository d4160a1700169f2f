// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/ocms-nav/internal/cache"
	"github.com/olegiv/ocms-nav/internal/middleware"
	"github.com/olegiv/ocms-nav/internal/preview"
	"github.com/olegiv/ocms-nav/internal/service"
	"github.com/olegiv/ocms-nav/internal/version"
)

// Deps bundles what the router needs. Cache, Probe and Renderer may be nil.
type Deps struct {
	DB       *sql.DB
	Cache    *cache.Manager
	Version  version.Info
	Menus    *service.MenuService
	Contents *service.ContentService
	Events   *service.EventService
	Renderer *preview.Renderer
	Probe    HeightProbe
	Logger   *slog.Logger

	MenuRender     MenuRenderOptions
	IsDevelopment  bool
	RequestTimeout time.Duration

	// ReorderRate and ReorderBurst throttle reorder and move requests per
	// client. A zero rate disables throttling.
	ReorderRate  float64
	ReorderBurst int
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	health := NewHealthHandler(d.DB, d.Cache, d.Menus, d.Version)
	menus := NewMenusHandler(d.Menus, d.MenuRender, logger)
	contents := NewContentHandler(d.Contents, logger)
	previews := NewPreviewHandler(d.Contents, d.Renderer, d.Probe, logger)
	events := NewEventsHandler(d.Events, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.StripTrailingSlash)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(d.IsDevelopment)))
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(middleware.Timeout(timeout))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/health", health.Health)
	r.Get("/health/live", health.Liveness)

	throttle := func(next http.Handler) http.Handler { return next }
	if d.ReorderRate > 0 {
		throttle = middleware.NewRateLimiter(d.ReorderRate, max(d.ReorderBurst, 1), logger).Middleware()
	}

	r.Route("/menus", func(r chi.Router) {
		r.Get("/", menus.List)
		r.Post("/", menus.Create)
		r.Get("/tree", menus.Tree)
		r.Get("/render", menus.Render)
		r.With(throttle).Put("/reorder", menus.Reorder)
		r.With(throttle).Put("/move", menus.Move)
		r.Patch("/{id}", menus.Update)
		r.Delete("/{id}", menus.Delete)
	})

	r.Route("/content/{slug}", func(r chi.Router) {
		r.Get("/", contents.Get)
		r.Put("/", contents.Put)
		r.Delete("/", contents.Delete)
	})

	r.Get("/preview/{slug}", previews.Preview)
	r.Get("/events", events.List)

	return r
}
