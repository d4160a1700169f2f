// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package navtree

import (
	"slices"

	"github.com/olegiv/ocms-nav/internal/model"
)

// Limits bound traversal of a forest. Zero fields fall back to defaults.
type Limits struct {
	MaxDepth int // deepest level visited; roots are depth 0
	MaxNodes int // total nodes visited
}

// DefaultLimits are used for zero Limits fields.
var DefaultLimits = Limits{MaxDepth: 16, MaxNodes: 5000}

func (l Limits) withDefaults() Limits {
	if l.MaxDepth <= 0 {
		l.MaxDepth = DefaultLimits.MaxDepth
	}
	if l.MaxNodes <= 0 {
		l.MaxNodes = DefaultLimits.MaxNodes
	}
	return l
}

// Visit describes a node reached during Walk.
type Visit struct {
	Index int
	Node  *Node
	Depth int
}

// Walk visits the subtrees of roots depth-first in sibling order, using an
// explicit stack. fn returning false stops the walk. Walk reports whether
// the limits cut the traversal short.
func (f *Forest) Walk(roots []int, lim Limits, fn func(Visit) bool) (truncated bool) {
	lim = lim.withDefaults()

	type frame struct {
		index int
		depth int
	}

	stack := make([]frame, 0, len(roots))
	for _, r := range slices.Backward(roots) {
		stack = append(stack, frame{index: r})
	}

	visited := 0
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited >= lim.MaxNodes {
			return true
		}
		visited++

		n := &f.Nodes[top.index]
		if !fn(Visit{Index: top.index, Node: n, Depth: top.depth}) {
			return false
		}

		if len(n.Children) == 0 {
			continue
		}
		if top.depth+1 >= lim.MaxDepth {
			truncated = true
			continue
		}
		for _, c := range slices.Backward(n.Children) {
			stack = append(stack, frame{index: c, depth: top.depth + 1})
		}
	}
	return truncated
}

// Count returns how many nodes are reachable from the roots. For a forest
// produced by BuildForest this always equals Len.
func (f *Forest) Count() int {
	n := 0
	f.Walk(f.Roots, Limits{MaxDepth: len(f.Nodes) + 1, MaxNodes: len(f.Nodes) + 1}, func(Visit) bool {
		n++
		return true
	})
	return n
}

// Tree materialises the forest as nested MenuNodes. Only roots carrying
// placement are included (PlacementAll or "" for all). Children are built
// before their parents, iteratively.
func (f *Forest) Tree(placement model.Placement) []model.MenuNode {
	roots := f.RootsFor(placement)

	var order []int
	f.Walk(roots, Limits{MaxDepth: len(f.Nodes) + 1, MaxNodes: len(f.Nodes) + 1}, func(v Visit) bool {
		order = append(order, v.Index)
		return true
	})

	built := make(map[int]model.MenuNode, len(order))
	for _, i := range slices.Backward(order) {
		n := &f.Nodes[i]
		mn := model.NodeFromFlat(n.Record)
		if len(n.Children) > 0 {
			mn.Children = make([]model.MenuNode, 0, len(n.Children))
			for _, c := range n.Children {
				mn.Children = append(mn.Children, built[c])
			}
		}
		built[i] = mn
	}

	out := make([]model.MenuNode, 0, len(roots))
	for _, r := range roots {
		out = append(out, built[r])
	}
	return out
}
