// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/olegiv/ocms-nav/internal/cache"
	"github.com/olegiv/ocms-nav/internal/model"
	"github.com/olegiv/ocms-nav/internal/navtree"
	"github.com/olegiv/ocms-nav/internal/ordering"
	"github.com/olegiv/ocms-nav/internal/testutil"
)

func newTestMenuService(t *testing.T) (*MenuService, *cache.NavCache) {
	t.Helper()
	db := testutil.TestDB(t)

	backend := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = backend.Close() })
	nav := cache.NewNavCache(backend, time.Minute, testutil.TestLoggerSilent())

	svc := NewMenuService(db, nav, testutil.TestLoggerSilent())
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("n%d", n)
	}
	return svc, nav
}

func mustCreate(t *testing.T, svc *MenuService, title string, parent *string, placement model.Placement) model.FlatNode {
	t.Helper()
	n, err := svc.Create(context.Background(), CreateNodeInput{
		Title:     title,
		Target:    model.Target{URL: "/" + strings.ToLower(title)},
		ParentID:  parent,
		Placement: placement,
	})
	if err != nil {
		t.Fatalf("Create(%s): %v", title, err)
	}
	return n
}

func TestMenuService_CreateAppends(t *testing.T) {
	svc, _ := newTestMenuService(t)
	ctx := context.Background()

	home := mustCreate(t, svc, "Home", nil, model.PlacementNavbar)
	about := mustCreate(t, svc, "About", nil, model.PlacementNavbar)
	team := mustCreate(t, svc, "Team", &about.ID, "")
	legal := mustCreate(t, svc, "Legal", nil, model.PlacementFooter)

	if home.Order != 0 || about.Order != 1 {
		t.Errorf("root orders = %d, %d, want 0, 1", home.Order, about.Order)
	}
	if team.Order != 0 || team.Placement != model.PlacementNavbar {
		t.Errorf("child = order %d placement %s, want 0 navbar", team.Order, team.Placement)
	}
	if legal.Order != 0 {
		t.Errorf("footer order = %d, want 0", legal.Order)
	}

	navbar, err := svc.List(ctx, model.PlacementNavbar)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(navbar) != 3 {
		t.Errorf("navbar has %d records, want 3", len(navbar))
	}

	none, err := svc.List(ctx, model.PlacementNone)
	if err != nil {
		t.Fatalf("List(none): %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("List(none) = %#v, want empty non-nil slice", none)
	}
}

func TestMenuService_CreateValidation(t *testing.T) {
	svc, _ := newTestMenuService(t)
	footer := mustCreate(t, svc, "Legal", nil, model.PlacementFooter)
	missing := "missing"

	tests := []struct {
		name string
		in   CreateNodeInput
	}{
		{"empty title", CreateNodeInput{Title: "  ", Target: model.Target{URL: "/x"}}},
		{"no target", CreateNodeInput{Title: "X"}},
		{"script url", CreateNodeInput{Title: "X", Target: model.Target{URL: "javascript:alert(1)"}}},
		{"bad page slug", CreateNodeInput{Title: "X", Target: model.Target{PageSlug: "Not A Slug"}}},
		{"unknown placement", CreateNodeInput{Title: "X", Target: model.Target{URL: "/x"}, Placement: "sidebar"}},
		{"unknown parent", CreateNodeInput{Title: "X", Target: model.Target{URL: "/x"}, ParentID: &missing}},
		{"placement differs from parent", CreateNodeInput{Title: "X", Target: model.Target{URL: "/x"},
			ParentID: &footer.ID, Placement: model.PlacementNavbar}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tt.in); !errors.Is(err, ErrInvalidNode) {
				t.Errorf("Create error = %v, want ErrInvalidNode", err)
			}
		})
	}
}

func TestMenuService_CreateSuggestsSlug(t *testing.T) {
	svc, _ := newTestMenuService(t)
	_, err := svc.Create(context.Background(), CreateNodeInput{
		Title:  "Pricing",
		Target: model.Target{PageSlug: "/Pricing & Plans"},
	})
	if err == nil || !strings.Contains(err.Error(), `try "pricing-plans"`) {
		t.Errorf("Create error = %v, want slug suggestion", err)
	}

	_, err = svc.Create(context.Background(), CreateNodeInput{
		Title:  "Nothing",
		Target: model.Target{PageSlug: "!!!"},
	})
	if err == nil || strings.Contains(err.Error(), "try") {
		t.Errorf("Create error = %v, want no suggestion", err)
	}
}

func TestMenuService_ListUsesCache(t *testing.T) {
	svc, nav := newTestMenuService(t)
	ctx := context.Background()
	mustCreate(t, svc, "Home", nil, model.PlacementNavbar)

	if _, err := svc.List(ctx, model.PlacementNavbar); err != nil {
		t.Fatalf("List: %v", err)
	}

	// A write that bypasses the service is invisible until invalidation.
	testutil.SeedNode(t, svc.db, "raw", "", model.PlacementNavbar, 5)
	got, _ := svc.List(ctx, model.PlacementNavbar)
	if len(got) != 1 {
		t.Fatalf("cached List = %d records, want 1", len(got))
	}

	nav.InvalidateMenus(ctx, model.PlacementNavbar)
	got, _ = svc.List(ctx, model.PlacementNavbar)
	if len(got) != 2 {
		t.Errorf("List after invalidate = %d records, want 2", len(got))
	}

	// Service writes invalidate on their own.
	mustCreate(t, svc, "Blog", nil, model.PlacementNavbar)
	got, _ = svc.List(ctx, model.PlacementNavbar)
	if len(got) != 3 {
		t.Errorf("List after Create = %d records, want 3", len(got))
	}
}

func TestMenuService_Tree(t *testing.T) {
	svc, _ := newTestMenuService(t)
	db := svc.db
	testutil.SeedNode(t, db, "1", "", model.PlacementNavbar, 0)
	testutil.SeedNode(t, db, "2", "1", model.PlacementNavbar, 0)
	testutil.SeedNode(t, db, "3", "99", model.PlacementNavbar, 1)

	res, err := svc.Tree(context.Background(), model.PlacementNavbar)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("roots = %d, want 2", len(res.Items))
	}
	if res.Items[0].ID != "1" || len(res.Items[0].Children) != 1 || res.Items[0].Children[0].ID != "2" {
		t.Errorf("first root = %+v, want 1 with child 2", res.Items[0])
	}
	if res.Items[1].ID != "3" {
		t.Errorf("second root = %s, want 3", res.Items[1].ID)
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != navtree.DiagDanglingParent {
		t.Errorf("diagnostics = %+v, want one dangling parent", res.Diagnostics)
	}
}

func TestMenuService_Render(t *testing.T) {
	svc, _ := newTestMenuService(t)
	mustCreate(t, svc, "Home", nil, model.PlacementNavbar)
	mustCreate(t, svc, "Legal", nil, model.PlacementFooter)

	var buf bytes.Buffer
	err := svc.Render(context.Background(), &buf, navtree.RenderOptions{
		Placement:  model.PlacementNavbar,
		ActivePath: "/home",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `<li class="active"><a href="/home">Home</a>`) {
		t.Errorf("missing active Home link in %s", out)
	}
	if strings.Contains(out, "Legal") {
		t.Errorf("footer entry rendered in navbar: %s", out)
	}
}

func TestMenuService_Update(t *testing.T) {
	svc, _ := newTestMenuService(t)
	ctx := context.Background()

	a := mustCreate(t, svc, "A", nil, model.PlacementNavbar)
	b := mustCreate(t, svc, "B", nil, model.PlacementNavbar)
	b1 := mustCreate(t, svc, "B1", &b.ID, "")
	f := mustCreate(t, svc, "F", nil, model.PlacementFooter)

	title := "Renamed"
	got, err := svc.Update(ctx, a.ID, UpdateNodeInput{Title: &title})
	if err != nil {
		t.Fatalf("Update title: %v", err)
	}
	if got.Title != "Renamed" || got.Order != 0 {
		t.Errorf("after rename = %+v", got)
	}

	// Moving B to the footer appends it after F and takes B1 along.
	footer := model.PlacementFooter
	got, err = svc.Update(ctx, b.ID, UpdateNodeInput{Placement: &footer})
	if err != nil {
		t.Fatalf("Update placement: %v", err)
	}
	if got.Placement != model.PlacementFooter || got.Order != 1 {
		t.Errorf("moved node = %s order %d, want footer order 1", got.Placement, got.Order)
	}
	child, _ := svc.Get(ctx, b1.ID)
	if child.Placement != model.PlacementFooter {
		t.Errorf("child placement = %s, want footer", child.Placement)
	}

	// Re-parenting under F inherits F's placement.
	got, err = svc.Update(ctx, a.ID, UpdateNodeInput{ParentSet: true, ParentID: &f.ID})
	if err != nil {
		t.Fatalf("Update parent: %v", err)
	}
	if got.ParentID == nil || *got.ParentID != f.ID || got.Placement != model.PlacementFooter {
		t.Errorf("re-parented node = %+v", got)
	}

	// A node cannot become its own descendant.
	_, err = svc.Update(ctx, b.ID, UpdateNodeInput{ParentSet: true, ParentID: &b1.ID})
	if !errors.Is(err, ordering.ErrCycle) {
		t.Errorf("cycle error = %v, want ErrCycle", err)
	}

	if _, err := svc.Update(ctx, "nope", UpdateNodeInput{Title: &title}); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("unknown node error = %v, want ErrNodeNotFound", err)
	}
}

func TestMenuService_DeleteLiftsChildren(t *testing.T) {
	svc, _ := newTestMenuService(t)
	ctx := context.Background()

	a := mustCreate(t, svc, "A", nil, model.PlacementNavbar)
	b := mustCreate(t, svc, "B", nil, model.PlacementNavbar)
	mustCreate(t, svc, "A1", &a.ID, "")

	if err := svc.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	res, err := svc.Tree(ctx, model.PlacementNavbar)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if len(res.Items) != 2 || res.Items[0].ID != b.ID || res.Items[1].Title != "A1" {
		t.Errorf("roots after delete = %+v, want [B A1]", res.Items)
	}

	if err := svc.Delete(ctx, a.ID); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("second Delete error = %v, want ErrNodeNotFound", err)
	}
}

func TestMenuService_ReorderAndMove(t *testing.T) {
	svc, _ := newTestMenuService(t)
	ctx := context.Background()

	a := mustCreate(t, svc, "A", nil, model.PlacementNavbar)
	b := mustCreate(t, svc, "B", nil, model.PlacementNavbar)
	c := mustCreate(t, svc, "C", nil, model.PlacementNavbar)

	got, err := svc.Reorder(ctx, ordering.RootScope(model.PlacementNavbar), []string{c.ID, a.ID, b.ID})
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if got[0].ID != c.ID || got[0].Order != 0 || got[2].ID != b.ID || got[2].Order != 2 {
		t.Errorf("Reorder = %+v", got)
	}

	listed, _ := svc.List(ctx, model.PlacementNavbar)
	orders := map[string]int{}
	for _, n := range listed {
		orders[n.ID] = n.Order
	}
	if orders[c.ID] != 0 || orders[a.ID] != 1 || orders[b.ID] != 2 {
		t.Errorf("List after reorder = %v", orders)
	}

	_, err = svc.Reorder(ctx, ordering.RootScope(model.PlacementNavbar), []string{a.ID, b.ID})
	var ve *ordering.ValidationError
	if !errors.As(err, &ve) || !errors.Is(err, ordering.ErrIncompleteScope) {
		t.Errorf("incomplete Reorder error = %v", err)
	}

	dest, err := svc.Move(ctx, ordering.MoveRequest{
		NodeID:      a.ID,
		ParentID:    &c.ID,
		Placement:   model.PlacementNavbar,
		TargetIndex: 0,
	})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if len(dest) != 1 || dest[0].ID != a.ID || dest[0].ParentID == nil || *dest[0].ParentID != c.ID {
		t.Errorf("Move dest = %+v", dest)
	}

	if _, err := svc.Move(ctx, ordering.MoveRequest{NodeID: "nope", Placement: model.PlacementNavbar}); !errors.Is(err, ordering.ErrUnknownNode) {
		t.Errorf("Move(unknown) error = %v, want ErrUnknownNode", err)
	}
}

func TestMenuService_CheckIntegrity(t *testing.T) {
	svc, _ := newTestMenuService(t)
	db := svc.db
	testutil.SeedNode(t, db, "x", "y", model.PlacementNavbar, 0)
	testutil.SeedNode(t, db, "y", "x", model.PlacementNavbar, 1)
	testutil.SeedNode(t, db, "z", "", model.PlacementNavbar, 2)

	report, err := svc.CheckIntegrity(context.Background())
	if err != nil {
		t.Fatalf("CheckIntegrity: %v", err)
	}
	if report.Nodes != 3 || report.Reachable != 3 {
		t.Errorf("report = %+v, want 3 nodes all reachable", report)
	}
	if len(report.Diagnostics) != 1 || report.Diagnostics[0].Kind != navtree.DiagCycle {
		t.Errorf("diagnostics = %+v, want one cycle", report.Diagnostics)
	}
}

func TestMenuService_ProblemsLoggedOncePerChange(t *testing.T) {
	svc, _ := newTestMenuService(t)
	var logs bytes.Buffer
	svc.logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.Background()

	testutil.SeedNode(t, svc.db, "orphan", "gone", model.PlacementNavbar, 0)

	for range 3 {
		if _, err := svc.Tree(ctx, model.PlacementNavbar); err != nil {
			t.Fatalf("Tree: %v", err)
		}
		if _, err := svc.CheckIntegrity(ctx); err != nil {
			t.Fatalf("CheckIntegrity: %v", err)
		}
	}
	if n := strings.Count(logs.String(), "menu node demoted to root"); n != 1 {
		t.Errorf("unchanged problem logged %d times, want 1:\n%s", n, logs.String())
	}

	testutil.SeedNode(t, svc.db, "orphan2", "gone", model.PlacementNavbar, 1)
	if _, err := svc.CheckIntegrity(ctx); err != nil {
		t.Fatalf("CheckIntegrity: %v", err)
	}
	if n := strings.Count(logs.String(), "menu node demoted to root"); n != 3 {
		t.Errorf("changed problem set not reported again: %d lines\n%s", n, logs.String())
	}
	if strings.Contains(logs.String(), "duplicated") {
		t.Errorf("dangling parents reported as duplicates:\n%s", logs.String())
	}

	svc.reportProblems([]navtree.Diagnostic{{NodeID: "d", Index: 0, Kind: navtree.DiagDuplicateID}})
	if !strings.Contains(logs.String(), "menu node id is duplicated") {
		t.Errorf("duplicate id not reported as such:\n%s", logs.String())
	}
}
