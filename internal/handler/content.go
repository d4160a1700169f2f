// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-nav/internal/model"
	"github.com/olegiv/ocms-nav/internal/service"
)

// ContentHandler handles preview content routes.
type ContentHandler struct {
	contents *service.ContentService
	logger   *slog.Logger
}

// NewContentHandler creates a new ContentHandler.
func NewContentHandler(contents *service.ContentService, logger *slog.Logger) *ContentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentHandler{contents: contents, logger: logger}
}

// contentResponse is the wire form of a content triple.
type contentResponse struct {
	Markup   string `json:"markup"`
	Style    string `json:"style"`
	Behavior string `json:"behavior"`
	Format   string `json:"format"`
}

func toContentResponse(c model.PreviewContent) contentResponse {
	return contentResponse{Markup: c.Markup, Style: c.Style, Behavior: c.Behavior, Format: c.Format}
}

// Get handles GET /content/{slug}.
func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.contents.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to load content")
		return
	}
	writeJSON(w, http.StatusOK, toContentResponse(c))
}

// Put handles PUT /content/{slug} - replaces the whole triple.
func (h *ContentHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req contentResponse
	if !decodeJSON(w, r, &req) {
		return
	}

	stored, err := h.contents.Put(r.Context(), chi.URLParam(r, "slug"), model.PreviewContent{
		Markup:   req.Markup,
		Style:    req.Style,
		Behavior: req.Behavior,
		Format:   req.Format,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to store content")
		return
	}
	writeJSON(w, http.StatusOK, toContentResponse(stored))
}

// Delete handles DELETE /content/{slug}.
func (h *ContentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.contents.Delete(r.Context(), chi.URLParam(r, "slug")); err != nil {
		writeServiceError(w, h.logger, err, "failed to delete content")
		return
	}
	writeJSONSuccess(w, nil)
}
