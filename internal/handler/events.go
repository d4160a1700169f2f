// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/olegiv/ocms-nav/internal/service"
)

// EventsPerPage is the default number of events returned per page.
const EventsPerPage = 25

// maxEventsPerPage caps the limit query parameter.
const maxEventsPerPage = 200

// EventsHandler handles event log routes.
type EventsHandler struct {
	events *service.EventService
	logger *slog.Logger
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(events *service.EventService, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{events: events, logger: logger}
}

// List handles GET /events - returns a page of the event log, newest first.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", EventsPerPage)
	if limit <= 0 || limit > maxEventsPerPage {
		limit = EventsPerPage
	}
	offset := max(queryInt(r, "offset", 0), 0)

	events, err := h.events.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list events")
		return
	}
	writeJSONSuccess(w, map[string]any{"items": events, "limit": limit, "offset": offset})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
