// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the HTTP handlers of the navigation API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/olegiv/ocms-nav/internal/ordering"
	"github.com/olegiv/ocms-nav/internal/service"
)

// maxBodySize bounds JSON request bodies. Content triples carry up to three
// 1 MiB blobs.
const maxBodySize = 4 << 20

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}

// writeJSONSuccess writes a JSON success response.
func writeJSONSuccess(w http.ResponseWriter, data map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	if data == nil {
		data = make(map[string]any)
	}
	data["success"] = true
	_ = json.NewEncoder(w).Encode(data)
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded JSON body into dst. It writes a 400 response
// and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// writeServiceError maps service and ordering errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error, logMsg string) {
	var verr *ordering.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSONError(w, http.StatusConflict, verr.Error())
	case errors.Is(err, service.ErrNodeNotFound), errors.Is(err, service.ErrContentNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidNode), errors.Is(err, service.ErrInvalidContent):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error(logMsg, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}
