// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-nav/internal/model"
	"github.com/olegiv/ocms-nav/internal/preview"
	"github.com/olegiv/ocms-nav/internal/service"
)

// HeaderPreviewHeight carries the measured content height when a
// measuring probe is configured.
const HeaderPreviewHeight = "X-Preview-Height"

// HeightProbe measures rendered content. *preview.Probe implements it.
type HeightProbe interface {
	Measure(ctx context.Context, content model.PreviewContent) (preview.Measurement, error)
}

// PreviewHandler serves sandboxed preview documents.
type PreviewHandler struct {
	contents     *service.ContentService
	renderer     *preview.Renderer
	probe        HeightProbe
	probeTimeout time.Duration
	logger       *slog.Logger
}

// NewPreviewHandler creates a new PreviewHandler. probe may be nil.
func NewPreviewHandler(contents *service.ContentService, renderer *preview.Renderer, probe HeightProbe, logger *slog.Logger) *PreviewHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if renderer == nil {
		renderer = preview.NewRenderer()
	}
	return &PreviewHandler{
		contents:     contents,
		renderer:     renderer,
		probe:        probe,
		probeTimeout: 5 * time.Second,
		logger:       logger,
	}
}

// Preview handles GET /preview/{slug}. The bare document is served with a
// CSP sandbox so it never shares the host origin; ?frame=1 returns a host
// page embedding it in a sandboxed iframe instead.
func (h *PreviewHandler) Preview(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	content, err := h.contents.Get(r.Context(), slug)
	if err != nil {
		if errors.Is(err, service.ErrContentNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load preview content", "category", model.EventCategoryPreview,
			"slug", slug, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	content.Slug = slug

	doc, err := h.renderer.Document(content)
	if err != nil {
		h.logger.Error("failed to render preview", "category", model.EventCategoryPreview,
			"slug", slug, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	height := h.measure(r.Context(), content)
	if height > 0 {
		w.Header().Set(HeaderPreviewHeight, strconv.Itoa(height))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	if r.URL.Query().Get("frame") == "1" {
		w.Header().Set("Content-Security-Policy", preview.ContentSecurityPolicy)
		_, _ = w.Write([]byte(preview.HostPage(doc, slug, height)))
		return
	}

	w.Header().Set("Content-Security-Policy", preview.ContentSecurityPolicy+"; sandbox "+preview.SandboxAttr)
	_, _ = w.Write([]byte(doc))
}

// measure returns the probed height, or 0 when no probe is configured or
// the probe fails.
func (h *PreviewHandler) measure(ctx context.Context, content model.PreviewContent) int {
	if h.probe == nil {
		return 0
	}

	ctx, cancel := context.WithTimeout(ctx, h.probeTimeout)
	defer cancel()

	m, err := h.probe.Measure(ctx, content)
	if err != nil {
		h.logger.Warn("preview height probe failed", "category", model.EventCategoryPreview,
			"slug", content.Slug, "error", err)
		return 0
	}
	if m.Behavior != nil {
		h.logger.Info("preview behavior reported an error", "category", model.EventCategoryPreview,
			"slug", content.Slug, "error", m.Behavior)
	}
	return m.Height
}
