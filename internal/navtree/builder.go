// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package navtree turns flat menu records into a forest of menu nodes and
// renders it. Nodes live in an arena indexed by input position; links are
// indices, so the structure has no pointer cycles.
package navtree

import (
	"cmp"
	"slices"

	"github.com/olegiv/ocms-nav/internal/model"
)

// noParent marks a root in Node.Parent.
const noParent = -1

// Diagnostic kinds. Each describes why a record was demoted to root or
// shadowed; none of them is fatal.
const (
	DiagDanglingParent = "dangling_parent"
	DiagSelfParent     = "self_parent"
	DiagCycle          = "cycle"
	DiagDuplicateID    = "duplicate_id"
)

// Diagnostic records a structural problem found while building the forest.
type Diagnostic struct {
	NodeID   string `json:"nodeId"`
	Index    int    `json:"index"`
	Kind     string `json:"kind"`
	ParentID string `json:"parentId,omitempty"`
}

// Node is one arena slot.
type Node struct {
	Record   model.FlatNode
	Index    int   // position in the input
	Parent   int   // arena index of the parent, or -1 for roots
	Children []int // arena indices, sorted by (Order, Index)
}

// IsRoot reports whether the node has no parent in the forest.
func (n *Node) IsRoot() bool {
	return n.Parent == noParent
}

// Forest is the result of BuildForest.
type Forest struct {
	Nodes       []Node
	Roots       []int
	Diagnostics []Diagnostic

	byID map[string]int
}

// BuildForest converts records into a forest. It never fails: unresolved,
// self-referencing and cycle-closing parent links demote the record to a
// root and add a Diagnostic. Every record appears exactly once.
//
// Duplicate ids: the last record wins id lookups (children attach to it);
// earlier records with the same id are kept as nodes and reported.
func BuildForest(records []model.FlatNode) *Forest {
	f := &Forest{
		Nodes: make([]Node, len(records)),
		byID:  make(map[string]int, len(records)),
	}

	for i, r := range records {
		f.Nodes[i] = Node{Record: r, Index: i, Parent: noParent}
		if prev, ok := f.byID[r.ID]; ok {
			f.Diagnostics = append(f.Diagnostics, Diagnostic{NodeID: r.ID, Index: prev, Kind: DiagDuplicateID})
		}
		f.byID[r.ID] = i
	}

	for i := range f.Nodes {
		p, diag := f.resolveParent(i)
		if diag != "" {
			d := Diagnostic{NodeID: f.Nodes[i].Record.ID, Index: i, Kind: diag}
			if pid := f.Nodes[i].Record.ParentID; pid != nil {
				d.ParentID = *pid
			}
			f.Diagnostics = append(f.Diagnostics, d)
		}
		if p == noParent {
			f.Roots = append(f.Roots, i)
			continue
		}
		f.Nodes[i].Parent = p
		f.Nodes[p].Children = append(f.Nodes[p].Children, i)
	}

	for i := range f.Nodes {
		f.sortIndices(f.Nodes[i].Children)
	}
	f.sortIndices(f.Roots)

	return f
}

// candidateParent returns the arena index a record's ParentID points at,
// ignoring cycles.
func (f *Forest) candidateParent(i int) (int, string) {
	r := f.Nodes[i].Record
	if r.ParentID == nil {
		return noParent, ""
	}
	if *r.ParentID == r.ID {
		return noParent, DiagSelfParent
	}
	p, ok := f.byID[*r.ParentID]
	if !ok {
		return noParent, DiagDanglingParent
	}
	if p == i {
		return noParent, DiagSelfParent
	}
	return p, ""
}

// resolveParent picks the parent for node i. Nodes are resolved in input
// order; the ancestor walk follows resolved links for earlier nodes and raw
// candidate links for later ones. Only the record that would close a loop
// is demoted, and the final parent graph is acyclic.
func (f *Forest) resolveParent(i int) (int, string) {
	p, diag := f.candidateParent(i)
	if p == noParent {
		return noParent, diag
	}

	cur := p
	for steps := 0; steps <= len(f.Nodes) && cur != noParent; steps++ {
		if cur == i {
			return noParent, DiagCycle
		}
		if cur < i {
			cur = f.Nodes[cur].Parent
		} else {
			cur, _ = f.candidateParent(cur)
		}
	}
	return p, ""
}

func (f *Forest) sortIndices(idx []int) {
	slices.SortStableFunc(idx, func(a, b int) int {
		if c := cmp.Compare(f.Nodes[a].Record.Order, f.Nodes[b].Record.Order); c != 0 {
			return c
		}
		return cmp.Compare(f.Nodes[a].Index, f.Nodes[b].Index)
	})
}

// Len returns the number of nodes in the forest.
func (f *Forest) Len() int {
	return len(f.Nodes)
}

// Lookup returns the arena index for id. For duplicate ids the last record
// is returned.
func (f *Forest) Lookup(id string) (int, bool) {
	i, ok := f.byID[id]
	return i, ok
}

// Node returns the node at arena index i.
func (f *Forest) Node(i int) *Node {
	return &f.Nodes[i]
}

// RootsFor returns root indices carrying placement. PlacementAll and an
// empty placement return every root.
func (f *Forest) RootsFor(placement model.Placement) []int {
	if placement == "" || placement == model.PlacementAll {
		return slices.Clone(f.Roots)
	}
	var out []int
	for _, r := range f.Roots {
		if f.Nodes[r].Record.Placement == placement {
			out = append(out, r)
		}
	}
	return out
}

// Scope returns the ordered siblings under parentID (nil for roots) that
// carry placement, as childless nodes.
func (f *Forest) Scope(parentID *string, placement model.Placement) []model.MenuNode {
	var idx []int
	if parentID == nil {
		idx = f.RootsFor(placement)
	} else if p, ok := f.byID[*parentID]; ok {
		for _, c := range f.Nodes[p].Children {
			if f.Nodes[c].Record.Placement == placement {
				idx = append(idx, c)
			}
		}
	}

	out := make([]model.MenuNode, 0, len(idx))
	for _, i := range idx {
		out = append(out, model.NodeFromFlat(f.Nodes[i].Record))
	}
	return out
}

// IsAncestor reports whether ancestorID is a proper ancestor of id.
func (f *Forest) IsAncestor(ancestorID, id string) bool {
	a, ok := f.byID[ancestorID]
	if !ok {
		return false
	}
	n, ok := f.byID[id]
	if !ok {
		return false
	}
	for steps, cur := 0, f.Nodes[n].Parent; cur != noParent && steps <= len(f.Nodes); steps++ {
		if cur == a {
			return true
		}
		cur = f.Nodes[cur].Parent
	}
	return false
}
