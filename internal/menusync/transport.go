// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package menusync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/olegiv/ocms-nav/internal/model"
	"github.com/olegiv/ocms-nav/internal/ordering"
)

var (
	// ErrRejected means the server refused the ordering (HTTP 409).
	ErrRejected = errors.New("reorder rejected by server")
	// ErrBusy is returned by Load while a request is in flight.
	ErrBusy = errors.New("request in flight")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("syncer closed")
)

// TransportError is a network or server failure. It is retried.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transport talks to the menu endpoints.
type Transport interface {
	// Fetch returns the authoritative order of scope.
	Fetch(ctx context.Context, scope ordering.Scope) ([]model.MenuNode, error)
	// Reorder submits a full ordering of scope and returns the committed
	// order. A refused ordering yields an error wrapping ErrRejected.
	Reorder(ctx context.Context, scope ordering.Scope, orderedIDs []string) ([]model.MenuNode, error)
}

// HTTP client configuration.
const (
	RequestTimeout = 10 * time.Second
	MaxResponseLen = 1 << 20
	UserAgent      = "oCMS-nav/1.0"
)

// HTTPClient implements Transport against GET /menus and PUT /menus/reorder.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the server at baseURL. A nil client
// gets a default with RequestTimeout.
func NewHTTPClient(baseURL string, client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: RequestTimeout}
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type listResponse struct {
	Items []model.FlatNode `json:"items"`
	Error string           `json:"error,omitempty"`
}

// ReorderRequest is the body of PUT /menus/reorder.
type ReorderRequest struct {
	Placement       model.Placement `json:"placement"`
	ParentID        *string         `json:"parentId,omitempty"`
	OrderedNodeList []string        `json:"orderedNodeList"`
}

// Fetch implements Transport.
func (c *HTTPClient) Fetch(ctx context.Context, scope ordering.Scope) ([]model.MenuNode, error) {
	u := c.baseURL + "/menus?placement=" + url.QueryEscape(string(scope.Placement))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	var resp listResponse
	if err := c.do(req, "fetch", &resp); err != nil {
		return nil, err
	}

	var out []model.MenuNode
	for _, f := range resp.Items {
		if scope.Contains(f) {
			out = append(out, model.NodeFromFlat(f))
		}
	}
	slices.SortStableFunc(out, func(a, b model.MenuNode) int { return a.Order - b.Order })
	return out, nil
}

// Reorder implements Transport.
func (c *HTTPClient) Reorder(ctx context.Context, scope ordering.Scope, orderedIDs []string) ([]model.MenuNode, error) {
	body, err := json.Marshal(ReorderRequest{
		Placement:       scope.Placement,
		ParentID:        scope.ParentID,
		OrderedNodeList: orderedIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/menus/reorder", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp listResponse
	if err := c.do(req, "reorder", &resp); err != nil {
		return nil, err
	}

	out := make([]model.MenuNode, len(resp.Items))
	for i, f := range resp.Items {
		out[i] = model.NodeFromFlat(f)
	}
	return out, nil
}

func (c *HTTPClient) do(req *http.Request, op string, dst *listResponse) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseLen))
	if err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode == http.StatusConflict {
		var env listResponse
		_ = json.Unmarshal(body, &env)
		if env.Error != "" {
			return fmt.Errorf("%w: %s", ErrRejected, env.Error)
		}
		return ErrRejected
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
