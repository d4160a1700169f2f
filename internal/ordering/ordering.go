// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package ordering computes and persists sibling order for menu nodes.
// Insertions append after the current maximum so existing nodes are never
// touched; reorders resequence only the scope being reordered.
package ordering

import (
	"errors"
	"fmt"
	"slices"

	"github.com/olegiv/ocms-nav/internal/model"
)

// Validation failures. They are wrapped in *ValidationError.
var (
	ErrUnknownNode     = errors.New("unknown node")
	ErrDuplicateNode   = errors.New("duplicate node in ordered list")
	ErrScopeMismatch   = errors.New("node belongs to a different scope")
	ErrIncompleteScope = errors.New("ordered list does not cover the scope")
	ErrCycle           = errors.New("move would make a node its own descendant")
	ErrInvalidScope    = errors.New("invalid scope")
)

// ValidationError reports a rejected reorder or move.
type ValidationError struct {
	Scope  Scope
	NodeID string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("scope %s: %s: %v", e.Scope.Key(), e.NodeID, e.Err)
	}
	return fmt.Sprintf("scope %s: %v", e.Scope.Key(), e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Scope identifies a sibling group: the nodes sharing a parent and a
// placement.
type Scope struct {
	ParentID  *string         `json:"parentId"`
	Placement model.Placement `json:"placement"`
}

// RootScope returns the root-level scope of a placement.
func RootScope(p model.Placement) Scope {
	return Scope{Placement: p}
}

// ScopeOf returns the scope a record belongs to.
func ScopeOf(n model.FlatNode) Scope {
	return Scope{ParentID: n.ParentID, Placement: n.Placement}
}

// Key returns a stable string form, usable as a map or cache key.
func (s Scope) Key() string {
	if s.ParentID == nil {
		return string(s.Placement) + ":"
	}
	return string(s.Placement) + ":" + *s.ParentID
}

// Contains reports whether n is a member of the scope.
func (s Scope) Contains(n model.FlatNode) bool {
	return n.Placement == s.Placement && model.SameParent(n.ParentID, s.ParentID)
}

// Validate checks the scope can hold nodes.
func (s Scope) Validate() error {
	if !s.Placement.IsValid() {
		return &ValidationError{Scope: s, Err: ErrInvalidScope}
	}
	return nil
}

// NextOrder returns an order value strictly greater than every existing
// sibling order, or 0 for an empty scope.
func NextOrder(existing []int) int {
	if len(existing) == 0 {
		return 0
	}
	return slices.Max(existing) + 1
}

// Orders extracts the order values of nodes.
func Orders(nodes []model.MenuNode) []int {
	out := make([]int, len(nodes))
	for i, n := range nodes {
		out[i] = n.Order
	}
	return out
}

// IDs extracts the ids of nodes, in order.
func IDs(nodes []model.MenuNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

// Resequence returns a copy of nodes with order values 0..len-1.
func Resequence(nodes []model.MenuNode) []model.MenuNode {
	out := slices.Clone(nodes)
	for i := range out {
		out[i].Order = i
	}
	return out
}

// Reorder returns a new sibling list with movingID relocated to
// targetIndex (clamped into range) and every order rewritten as 0..len-1.
// siblings is not modified. Applying the same move twice yields the same
// list as applying it once.
func Reorder(siblings []model.MenuNode, movingID string, targetIndex int) ([]model.MenuNode, error) {
	from := slices.IndexFunc(siblings, func(n model.MenuNode) bool { return n.ID == movingID })
	if from < 0 {
		return nil, &ValidationError{NodeID: movingID, Err: ErrUnknownNode}
	}

	out := slices.Clone(siblings)
	moving := out[from]
	out = slices.Delete(out, from, from+1)
	out = slices.Insert(out, clamp(targetIndex, len(out)), moving)

	return Resequence(out), nil
}

// ApplyOrder arranges siblings to follow orderedIDs and resequences them.
// orderedIDs must be a permutation of the sibling ids.
func ApplyOrder(scope Scope, siblings []model.MenuNode, orderedIDs []string) ([]model.MenuNode, error) {
	byID := make(map[string]model.MenuNode, len(siblings))
	for _, n := range siblings {
		byID[n.ID] = n
	}

	seen := make(map[string]bool, len(orderedIDs))
	out := make([]model.MenuNode, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		if seen[id] {
			return nil, &ValidationError{Scope: scope, NodeID: id, Err: ErrDuplicateNode}
		}
		seen[id] = true
		n, ok := byID[id]
		if !ok {
			return nil, &ValidationError{Scope: scope, NodeID: id, Err: ErrUnknownNode}
		}
		out = append(out, n)
	}
	if len(out) != len(siblings) {
		return nil, &ValidationError{Scope: scope, Err: ErrIncompleteScope}
	}
	return Resequence(out), nil
}

// MoveRequest relocates a node into another scope. The parent and placement
// change is explicit; it is never inferred from the position.
type MoveRequest struct {
	NodeID      string          `json:"nodeId"`
	ParentID    *string         `json:"parentId"`
	Placement   model.Placement `json:"placement"`
	TargetIndex int             `json:"targetIndex"`
}

// Destination returns the scope the node moves into.
func (r MoveRequest) Destination() Scope {
	return Scope{ParentID: r.ParentID, Placement: r.Placement}
}

// Move removes the node from source and inserts it into dest at the target
// index. Both returned scopes are resequenced. When source and destination
// are the same scope Move behaves like Reorder and dest is returned for both.
func Move(source, dest []model.MenuNode, req MoveRequest) (newSource, newDest []model.MenuNode, err error) {
	from := slices.IndexFunc(source, func(n model.MenuNode) bool { return n.ID == req.NodeID })
	if from < 0 {
		return nil, nil, &ValidationError{NodeID: req.NodeID, Err: ErrUnknownNode}
	}

	moving := source[from]
	if moving.Placement == req.Placement && model.SameParent(moving.ParentID, req.ParentID) {
		out, err := Reorder(source, req.NodeID, req.TargetIndex)
		return out, out, err
	}

	if slices.ContainsFunc(dest, func(n model.MenuNode) bool { return n.ID == req.NodeID }) {
		return nil, nil, &ValidationError{Scope: req.Destination(), NodeID: req.NodeID, Err: ErrDuplicateNode}
	}

	newSource = Resequence(slices.Delete(slices.Clone(source), from, from+1))

	moving.ParentID = req.ParentID
	moving.Placement = req.Placement
	moving.Children = nil
	newDest = slices.Insert(slices.Clone(dest), clamp(req.TargetIndex, len(dest)), moving)

	return newSource, Resequence(newDest), nil
}

func clamp(i, n int) int {
	return max(0, min(i, n))
}
