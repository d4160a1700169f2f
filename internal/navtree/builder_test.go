// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package navtree

import (
	"reflect"
	"strconv"
	"testing"

	"pgregory.net/rapid"

	"github.com/olegiv/ocms-nav/internal/model"
)

func rec(id string, parent string, order int) model.FlatNode {
	return model.FlatNode{
		ID:        id,
		ParentID:  model.StringPtr(parent),
		Order:     order,
		Placement: model.PlacementNavbar,
		Title:     "Item " + id,
	}
}

func rootIDs(f *Forest) []string {
	out := make([]string, len(f.Roots))
	for i, r := range f.Roots {
		out[i] = f.Nodes[r].Record.ID
	}
	return out
}

func childIDs(f *Forest, id string) []string {
	i, ok := f.Lookup(id)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(f.Nodes[i].Children))
	for _, c := range f.Nodes[i].Children {
		out = append(out, f.Nodes[c].Record.ID)
	}
	return out
}

func TestBuildForest_Empty(t *testing.T) {
	f := BuildForest(nil)
	if f.Len() != 0 || len(f.Roots) != 0 || len(f.Diagnostics) != 0 {
		t.Errorf("empty input produced %d nodes, %d roots, %d diagnostics", f.Len(), len(f.Roots), len(f.Diagnostics))
	}
	if got := f.Tree(model.PlacementAll); len(got) != 0 {
		t.Errorf("Tree() = %v, want empty", got)
	}
}

func TestBuildForest_DanglingParentBecomesRoot(t *testing.T) {
	f := BuildForest([]model.FlatNode{
		rec("1", "", 0),
		rec("2", "1", 0),
		rec("3", "99", 1),
	})

	if got, want := rootIDs(f), []string{"1", "3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("roots = %v, want %v", got, want)
	}
	if got, want := childIDs(f, "1"), []string{"2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("children of 1 = %v, want %v", got, want)
	}
	if f.Count() != 3 {
		t.Errorf("Count() = %d, want 3", f.Count())
	}
	if len(f.Diagnostics) != 1 || f.Diagnostics[0].Kind != DiagDanglingParent || f.Diagnostics[0].ParentID != "99" {
		t.Errorf("Diagnostics = %+v, want one dangling_parent for 99", f.Diagnostics)
	}
}

func TestBuildForest_SelfParent(t *testing.T) {
	f := BuildForest([]model.FlatNode{rec("a", "a", 0)})

	if got := rootIDs(f); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("roots = %v, want [a]", got)
	}
	if len(f.Diagnostics) != 1 || f.Diagnostics[0].Kind != DiagSelfParent {
		t.Errorf("Diagnostics = %+v, want self_parent", f.Diagnostics)
	}
}

func TestBuildForest_CycleDemotesOneNode(t *testing.T) {
	// a -> b -> c -> a
	f := BuildForest([]model.FlatNode{
		rec("a", "c", 0),
		rec("b", "a", 0),
		rec("c", "b", 0),
	})

	if got := rootIDs(f); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("roots = %v, want [a]", got)
	}
	if got := childIDs(f, "a"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("children of a = %v, want [b]", got)
	}
	if got := childIDs(f, "b"); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("children of b = %v, want [c]", got)
	}
	if len(f.Diagnostics) != 1 || f.Diagnostics[0].Kind != DiagCycle || f.Diagnostics[0].NodeID != "a" {
		t.Errorf("Diagnostics = %+v, want one cycle on a", f.Diagnostics)
	}
	assertForestInvariants(t, f, 3)
}

func TestBuildForest_DuplicateIDsKeepBothNodes(t *testing.T) {
	f := BuildForest([]model.FlatNode{
		rec("x", "", 0),
		rec("x", "", 1),
		rec("y", "x", 0),
	})

	if f.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", f.Count())
	}
	// Last writer wins lookups, so y hangs under the second x.
	if f.Nodes[2].Parent != 1 {
		t.Errorf("y attached to index %d, want 1", f.Nodes[2].Parent)
	}
	if len(f.Diagnostics) != 1 || f.Diagnostics[0].Kind != DiagDuplicateID || f.Diagnostics[0].Index != 0 {
		t.Errorf("Diagnostics = %+v, want duplicate_id for index 0", f.Diagnostics)
	}
}

func TestBuildForest_SortByOrderThenInputIndex(t *testing.T) {
	f := BuildForest([]model.FlatNode{
		rec("c", "", 2),
		rec("b2", "", 1),
		rec("a", "", 0),
		rec("b1", "", 1),
	})

	if got, want := rootIDs(f), []string{"a", "b2", "b1", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("roots = %v, want %v", got, want)
	}
}

func TestBuildForest_ChildrenSortedIndependentOfInputOrder(t *testing.T) {
	f := BuildForest([]model.FlatNode{
		rec("k3", "p", 30),
		rec("k1", "p", 10),
		rec("p", "", 0),
		rec("k2", "p", 20),
	})

	if got, want := childIDs(f, "p"), []string{"k1", "k2", "k3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("children = %v, want %v", got, want)
	}
}

func TestBuildForest_Deterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		records := recordsGen().Draw(rt, "records")

		first := BuildForest(records).Tree(model.PlacementAll)
		second := BuildForest(records).Tree(model.PlacementAll)

		if !reflect.DeepEqual(first, second) {
			rt.Fatalf("two builds from the same input differ")
		}
	})
}

func TestBuildForest_RandomInputsAreLossless(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		records := recordsGen().Draw(rt, "records")
		assertForestInvariants(rt, BuildForest(records), len(records))
	})
}

func TestForestScope(t *testing.T) {
	footer := rec("f", "", 0)
	footer.Placement = model.PlacementFooter
	f := BuildForest([]model.FlatNode{
		rec("a", "", 1),
		rec("b", "", 0),
		footer,
		rec("a1", "a", 0),
	})

	navRoots := f.Scope(nil, model.PlacementNavbar)
	if len(navRoots) != 2 || navRoots[0].ID != "b" || navRoots[1].ID != "a" {
		t.Errorf("navbar roots = %+v, want [b a]", navRoots)
	}

	parent := "a"
	kids := f.Scope(&parent, model.PlacementNavbar)
	if len(kids) != 1 || kids[0].ID != "a1" {
		t.Errorf("scope of a = %+v, want [a1]", kids)
	}

	if !f.IsAncestor("a", "a1") || f.IsAncestor("a1", "a") {
		t.Error("IsAncestor mismatch")
	}
}

func TestForestTreeNesting(t *testing.T) {
	f := BuildForest([]model.FlatNode{
		rec("leaf", "mid", 0),
		rec("mid", "top", 0),
		rec("top", "", 0),
	})

	tree := f.Tree(model.PlacementNavbar)
	if len(tree) != 1 || tree[0].ID != "top" {
		t.Fatalf("tree roots = %+v", tree)
	}
	if len(tree[0].Children) != 1 || tree[0].Children[0].ID != "mid" {
		t.Fatalf("top children = %+v", tree[0].Children)
	}
	if len(tree[0].Children[0].Children) != 1 || tree[0].Children[0].Children[0].ID != "leaf" {
		t.Errorf("mid children = %+v", tree[0].Children[0].Children)
	}
}

func TestWalkLimits(t *testing.T) {
	// A chain 0 <- 1 <- 2 <- ... <- 9.
	records := make([]model.FlatNode, 10)
	for i := range records {
		parent := ""
		if i > 0 {
			parent = strconv.Itoa(i - 1)
		}
		records[i] = rec(strconv.Itoa(i), parent, 0)
	}
	f := BuildForest(records)

	var seen int
	truncated := f.Walk(f.Roots, Limits{MaxDepth: 3}, func(Visit) bool {
		seen++
		return true
	})
	if seen != 3 || !truncated {
		t.Errorf("depth-limited walk saw %d nodes (truncated=%v), want 3 (true)", seen, truncated)
	}

	seen = 0
	truncated = f.Walk(f.Roots, Limits{MaxDepth: 100, MaxNodes: 4}, func(Visit) bool {
		seen++
		return true
	})
	if seen != 4 || !truncated {
		t.Errorf("node-limited walk saw %d nodes (truncated=%v), want 4 (true)", seen, truncated)
	}
}

// recordsGen draws records with arbitrary parents, including dangling,
// self and cyclic references, duplicate ids and mixed placements.
func recordsGen() *rapid.Generator[[]model.FlatNode] {
	placements := []model.Placement{model.PlacementNavbar, model.PlacementFooter, model.PlacementNone}
	return rapid.Custom(func(t *rapid.T) []model.FlatNode {
		n := rapid.IntRange(0, 40).Draw(t, "n")
		records := make([]model.FlatNode, n)
		for i := range records {
			var parent *string
			switch rapid.IntRange(0, 3).Draw(t, "link") {
			case 0:
			case 1:
				p := strconv.Itoa(rapid.IntRange(0, 2*n).Draw(t, "dangling")) // may dangle
				parent = &p
			default:
				p := strconv.Itoa(rapid.IntRange(0, n).Draw(t, "parent"))
				parent = &p
			}
			records[i] = model.FlatNode{
				ID:        strconv.Itoa(rapid.IntRange(0, n).Draw(t, "id")),
				ParentID:  parent,
				Order:     rapid.IntRange(0, 4).Draw(t, "order"),
				Placement: rapid.SampledFrom(placements).Draw(t, "placement"),
			}
		}
		return records
	})
}

// errorReporter is satisfied by *testing.T and *rapid.T.
type errorReporter interface {
	Errorf(format string, args ...any)
}

func assertForestInvariants(t errorReporter, f *Forest, n int) {
	if f.Len() != n {
		t.Errorf("Len() = %d, want %d", f.Len(), n)
	}

	seen := make(map[int]int, n)
	f.Walk(f.Roots, Limits{MaxDepth: n + 1, MaxNodes: n + 1}, func(v Visit) bool {
		seen[v.Index]++
		return true
	})
	if len(seen) != n {
		t.Errorf("reachable nodes = %d, want %d", len(seen), n)
	}
	for i, c := range seen {
		if c != 1 {
			t.Errorf("node %d visited %d times", i, c)
		}
	}

	// No node is its own ancestor.
	for i := range f.Nodes {
		cur := f.Nodes[i].Parent
		for steps := 0; cur != noParent; steps++ {
			if cur == i || steps > n {
				t.Errorf("node %d is its own descendant", i)
				break
			}
			cur = f.Nodes[cur].Parent
		}
	}
}
