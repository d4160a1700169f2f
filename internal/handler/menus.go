// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-nav/internal/menusync"
	"github.com/olegiv/ocms-nav/internal/model"
	"github.com/olegiv/ocms-nav/internal/navtree"
	"github.com/olegiv/ocms-nav/internal/ordering"
	"github.com/olegiv/ocms-nav/internal/service"
)

// MenuRenderOptions carries the UI preferences applied to rendered menus.
type MenuRenderOptions struct {
	LogoURL  string
	LogoAlt  string
	CSSClass string
	Limits   navtree.Limits
}

// MenusHandler handles menu routes.
type MenusHandler struct {
	menus  *service.MenuService
	render MenuRenderOptions
	logger *slog.Logger
}

// NewMenusHandler creates a new MenusHandler.
func NewMenusHandler(menus *service.MenuService, render MenuRenderOptions, logger *slog.Logger) *MenusHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MenusHandler{menus: menus, render: render, logger: logger}
}

// placementParam parses the placement query parameter. It writes a 400
// response and returns false when the value is unknown.
func placementParam(w http.ResponseWriter, r *http.Request) (model.Placement, bool) {
	p, err := model.ParsePlacement(r.URL.Query().Get("placement"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return p, true
}

// List handles GET /menus - returns the flat records of a placement.
func (h *MenusHandler) List(w http.ResponseWriter, r *http.Request) {
	placement, ok := placementParam(w, r)
	if !ok {
		return
	}

	items, err := h.menus.List(r.Context(), placement)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list menus")
		return
	}
	writeJSONSuccess(w, map[string]any{"items": items})
}

// Tree handles GET /menus/tree - returns the nested forest of a placement
// together with the structural problems found while building it.
func (h *MenusHandler) Tree(w http.ResponseWriter, r *http.Request) {
	placement, ok := placementParam(w, r)
	if !ok {
		return
	}

	tree, err := h.menus.Tree(r.Context(), placement)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to build menu tree")
		return
	}
	writeJSONSuccess(w, map[string]any{
		"items":       tree.Items,
		"diagnostics": tree.Diagnostics,
	})
}

// Render handles GET /menus/render - returns the menu as an HTML fragment.
func (h *MenusHandler) Render(w http.ResponseWriter, r *http.Request) {
	placement, ok := placementParam(w, r)
	if !ok {
		return
	}

	opts := navtree.RenderOptions{
		Placement:  placement,
		ActivePath: r.URL.Query().Get("active"),
		LogoURL:    h.render.LogoURL,
		LogoAlt:    h.render.LogoAlt,
		CSSClass:   h.render.CSSClass,
		Limits:     h.render.Limits,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.menus.Render(r.Context(), w, opts); err != nil {
		h.logger.Error("failed to render menu", "category", model.EventCategoryMenu, "error", err)
	}
}

// Reorder handles PUT /menus/reorder - persists a full ordering of one
// scope. Validation failures are reported as 409.
func (h *MenusHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req menusync.ReorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	scope := ordering.Scope{ParentID: req.ParentID, Placement: req.Placement}
	items, err := h.menus.Reorder(r.Context(), scope, req.OrderedNodeList)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to reorder menu")
		return
	}
	writeJSONSuccess(w, map[string]any{"items": items})
}

// Move handles PUT /menus/move - relocates a node into another scope.
func (h *MenusHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req ordering.MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	items, err := h.menus.Move(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to move menu node")
		return
	}
	writeJSONSuccess(w, map[string]any{"items": items})
}

// Create handles POST /menus - appends a node to its scope.
func (h *MenusHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateNodeInput
	if !decodeJSON(w, r, &req) {
		return
	}

	node, err := h.menus.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to create menu node")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "item": node})
}

// updateNodeRequest keeps parentId raw so an explicit null (move to root)
// can be told apart from an absent field.
type updateNodeRequest struct {
	Title     *string          `json:"title"`
	Target    *model.Target    `json:"target"`
	Placement *model.Placement `json:"placement"`
	ParentID  json.RawMessage  `json:"parentId"`
}

// Update handles PATCH /menus/{id} - applies a partial edit.
func (h *MenusHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateNodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := service.UpdateNodeInput{
		Title:     req.Title,
		Target:    req.Target,
		Placement: req.Placement,
	}
	if len(req.ParentID) > 0 {
		in.ParentSet = true
		if string(req.ParentID) != "null" {
			var parent string
			if err := json.Unmarshal(req.ParentID, &parent); err != nil {
				writeJSONError(w, http.StatusBadRequest, "parentId must be a string or null")
				return
			}
			in.ParentID = model.StringPtr(parent)
		}
	}

	node, err := h.menus.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to update menu node")
		return
	}
	writeJSONSuccess(w, map[string]any{"item": node})
}

// Delete handles DELETE /menus/{id} - removes a node, lifting its children
// into its scope.
func (h *MenusHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.menus.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.logger, err, "failed to delete menu node")
		return
	}
	writeJSONSuccess(w, nil)
}
