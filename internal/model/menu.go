// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the domain types shared by the navigation and
// preview packages.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Placement selects the rendered surface a root-level menu entry belongs to.
type Placement string

// Menu placements
const (
	PlacementNavbar Placement = "navbar"
	PlacementFooter Placement = "footer"
	PlacementNone   Placement = "none"
)

// PlacementAll is accepted by list endpoints to select every placement.
// It is never stored on a node.
const PlacementAll Placement = "all"

// ValidPlacements contains all placements a node may carry.
var ValidPlacements = []Placement{PlacementNavbar, PlacementFooter, PlacementNone}

// IsValid reports whether p is a storable placement.
func (p Placement) IsValid() bool {
	for _, v := range ValidPlacements {
		if v == p {
			return true
		}
	}
	return false
}

// ParsePlacement converts a query or form value into a Placement.
// An empty value defaults to PlacementNavbar.
func ParsePlacement(s string) (Placement, error) {
	p := Placement(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return PlacementNavbar, nil
	}
	if p == PlacementAll || p.IsValid() {
		return p, nil
	}
	return "", fmt.Errorf("unknown placement %q", s)
}

// Target is where a menu entry points: an internal page or a raw URL.
// When both are set the page reference wins.
type Target struct {
	PageSlug string `json:"pageSlug,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Href returns the link destination for rendering.
func (t Target) Href() string {
	if t.PageSlug != "" {
		return "/" + strings.TrimPrefix(t.PageSlug, "/")
	}
	return t.URL
}

// IsPage reports whether the target references a page.
func (t Target) IsPage() bool {
	return t.PageSlug != ""
}

// FlatNode is the persisted and wire representation of a menu entry.
// Records arrive in no particular order; ParentID may dangle.
type FlatNode struct {
	ID        string    `json:"id"`
	ParentID  *string   `json:"parentId"`
	Order     int       `json:"order"`
	Placement Placement `json:"placement"`
	Title     string    `json:"title"`
	Target    Target    `json:"target"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// MenuNode is a menu entry with its resolved children.
// Children is populated by the tree builder only and never persisted.
type MenuNode struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Target    Target     `json:"target"`
	ParentID  *string    `json:"parentId"`
	Order     int        `json:"order"`
	Placement Placement  `json:"placement"`
	Children  []MenuNode `json:"children,omitempty"`
}

// Flat returns the persisted form of the node without children.
func (n MenuNode) Flat() FlatNode {
	return FlatNode{
		ID:        n.ID,
		ParentID:  n.ParentID,
		Order:     n.Order,
		Placement: n.Placement,
		Title:     n.Title,
		Target:    n.Target,
	}
}

// NodeFromFlat returns a childless MenuNode for the record.
func NodeFromFlat(f FlatNode) MenuNode {
	return MenuNode{
		ID:        f.ID,
		Title:     f.Title,
		Target:    f.Target,
		ParentID:  f.ParentID,
		Order:     f.Order,
		Placement: f.Placement,
	}
}

// SameParent reports whether two optional parent ids reference the same node.
func SameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
