// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/ocms-nav/internal/cache"
	"github.com/olegiv/ocms-nav/internal/model"
	"github.com/olegiv/ocms-nav/internal/navtree"
	"github.com/olegiv/ocms-nav/internal/ordering"
	"github.com/olegiv/ocms-nav/internal/store"
	"github.com/olegiv/ocms-nav/internal/util"
)

// Menu service errors.
var (
	ErrNodeNotFound = errors.New("menu node not found")
	ErrInvalidNode  = errors.New("invalid menu node")
)

// maxTitleLength matches the title column.
const maxTitleLength = 255

// CreateNodeInput holds the fields of a new menu node. When ParentID is set
// the placement is inherited from the parent and Placement may be empty.
type CreateNodeInput struct {
	Title     string          `json:"title"`
	Target    model.Target    `json:"target"`
	ParentID  *string         `json:"parentId"`
	Placement model.Placement `json:"placement"`
}

// UpdateNodeInput is a partial edit. Nil fields are left unchanged.
// ParentSet distinguishes "move to root" (ParentSet with nil ParentID) from
// leaving the parent alone.
type UpdateNodeInput struct {
	Title     *string
	Target    *model.Target
	Placement *model.Placement
	ParentSet bool
	ParentID  *string
}

// TreeResult is a materialised forest with the structural problems found
// while building it.
type TreeResult struct {
	Items       []model.MenuNode     `json:"items"`
	Diagnostics []navtree.Diagnostic `json:"diagnostics"`
}

// MenuService provides menu loading, editing and ordering.
type MenuService struct {
	db      *sql.DB
	queries *store.Queries
	engine  *ordering.Engine
	nav     *cache.NavCache
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	// problems is the last diagnostic set written to the log.
	problemsMu sync.Mutex
	problems   string
}

// NewMenuService creates a new MenuService.
// If nav is nil, menus are read from the database on every call.
func NewMenuService(db *sql.DB, nav *cache.NavCache, logger *slog.Logger) *MenuService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MenuService{
		db:      db,
		queries: store.New(db),
		engine:  ordering.NewEngine(db, logger),
		nav:     nav,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// List returns the flat records of a placement, or of every placement for
// model.PlacementAll. The result is never nil.
func (s *MenuService) List(ctx context.Context, placement model.Placement) ([]model.FlatNode, error) {
	load := func(ctx context.Context) ([]model.FlatNode, error) {
		if placement == model.PlacementAll {
			return s.queries.ListMenuNodes(ctx)
		}
		return s.queries.ListMenuNodesByPlacement(ctx, placement)
	}

	var (
		nodes []model.FlatNode
		err   error
	)
	if s.nav != nil {
		nodes, err = s.nav.Menus(ctx, placement, load)
	} else {
		nodes, err = load(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("listing menus for %s: %w", placement, err)
	}
	if nodes == nil {
		nodes = []model.FlatNode{}
	}
	return nodes, nil
}

// Forest builds the navigation forest from every stored record.
// Structural problems are returned on the forest and never fail the call.
func (s *MenuService) Forest(ctx context.Context) (*navtree.Forest, error) {
	records, err := s.List(ctx, model.PlacementAll)
	if err != nil {
		return nil, err
	}

	f := navtree.BuildForest(records)
	s.reportProblems(f.Diagnostics)
	return f, nil
}

// reportProblems logs diagnostics at WARN when they differ from the last
// reported set, so rebuilding an unchanged menu adds no event rows.
func (s *MenuService) reportProblems(diags []navtree.Diagnostic) {
	var key strings.Builder
	for _, d := range diags {
		fmt.Fprintf(&key, "%s|%s|%d|%s;", d.Kind, d.NodeID, d.Index, d.ParentID)
	}

	s.problemsMu.Lock()
	changed := key.String() != s.problems
	s.problems = key.String()
	s.problemsMu.Unlock()
	if !changed {
		return
	}

	if len(diags) == 0 {
		s.logger.Info("menu structure problems resolved", "category", model.EventCategoryMenu)
		return
	}
	for _, d := range diags {
		msg := "menu node demoted to root"
		if d.Kind == navtree.DiagDuplicateID {
			msg = "menu node id is duplicated"
		}
		s.logger.Warn(msg, "category", model.EventCategoryMenu,
			"node_id", d.NodeID, "kind", d.Kind, "parent_id", d.ParentID)
	}
}

// Tree returns the nested menu of a placement.
func (s *MenuService) Tree(ctx context.Context, placement model.Placement) (TreeResult, error) {
	f, err := s.Forest(ctx)
	if err != nil {
		return TreeResult{}, err
	}

	diags := f.Diagnostics
	if diags == nil {
		diags = []navtree.Diagnostic{}
	}
	return TreeResult{Items: f.Tree(placement), Diagnostics: diags}, nil
}

// Render writes the menu of opts.Placement as HTML.
func (s *MenuService) Render(ctx context.Context, w io.Writer, opts navtree.RenderOptions) error {
	f, err := s.Forest(ctx)
	if err != nil {
		return err
	}
	return navtree.Render(w, f, opts)
}

// Get returns a single record.
func (s *MenuService) Get(ctx context.Context, id string) (model.FlatNode, error) {
	n, err := s.queries.GetMenuNode(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FlatNode{}, ErrNodeNotFound
	}
	return n, err
}

// Create inserts a node at the end of its scope.
func (s *MenuService) Create(ctx context.Context, in CreateNodeInput) (model.FlatNode, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateTitle(in.Title); err != nil {
		return model.FlatNode{}, err
	}
	if err := validateTarget(in.Target); err != nil {
		return model.FlatNode{}, err
	}

	var created model.FlatNode
	err := store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		placement, err := s.resolvePlacement(ctx, q, in.ParentID, in.Placement)
		if err != nil {
			return err
		}

		siblings, err := q.ListScopeNodes(ctx, placement, in.ParentID)
		if err != nil {
			return err
		}
		orders := make([]int, len(siblings))
		for i, n := range siblings {
			orders[i] = n.Order
		}

		created, err = q.CreateMenuNode(ctx, store.CreateMenuNodeParams{
			ID:        s.newID(),
			ParentID:  in.ParentID,
			Placement: placement,
			Position:  ordering.NextOrder(orders),
			Title:     in.Title,
			Target:    in.Target,
			CreatedAt: s.now(),
		})
		return err
	})
	if err != nil {
		return model.FlatNode{}, err
	}

	s.invalidate(ctx, created.Placement)
	s.logger.Info("menu node created", "category", model.EventCategoryMenu,
		"node_id", created.ID, "placement", created.Placement)
	return created, nil
}

// resolvePlacement returns the placement a node under parentID must carry.
// A child always shares its parent's placement.
func (s *MenuService) resolvePlacement(ctx context.Context, q *store.Queries, parentID *string, requested model.Placement) (model.Placement, error) {
	if parentID == nil {
		if requested == "" {
			return model.PlacementNavbar, nil
		}
		if !requested.IsValid() {
			return "", fmt.Errorf("%w: unknown placement %q", ErrInvalidNode, requested)
		}
		return requested, nil
	}

	parent, err := q.GetMenuNode(ctx, *parentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: parent %s does not exist", ErrInvalidNode, *parentID)
		}
		return "", err
	}
	if requested != "" && requested != parent.Placement {
		return "", fmt.Errorf("%w: placement %s differs from parent placement %s",
			ErrInvalidNode, requested, parent.Placement)
	}
	return parent.Placement, nil
}

// Update applies a partial edit. A parent or placement change appends the
// node at the end of the destination scope; descendants follow a placement
// change.
func (s *MenuService) Update(ctx context.Context, id string, in UpdateNodeInput) (model.FlatNode, error) {
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if err := validateTitle(t); err != nil {
			return model.FlatNode{}, err
		}
		in.Title = &t
	}
	if in.Target != nil {
		if err := validateTarget(*in.Target); err != nil {
			return model.FlatNode{}, err
		}
	}

	var before, after model.FlatNode
	err := store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		var err error
		before, err = q.GetMenuNode(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNodeNotFound
			}
			return err
		}

		parentID := before.ParentID
		if in.ParentSet {
			parentID = in.ParentID
		}
		var requested model.Placement
		if in.Placement != nil {
			requested = *in.Placement
		} else if parentID == nil {
			requested = before.Placement
		}
		placement, err := s.resolvePlacement(ctx, q, parentID, requested)
		if err != nil {
			return err
		}

		if placement != before.Placement || !model.SameParent(parentID, before.ParentID) {
			_, _, err := s.engine.MoveTx(ctx, q, ordering.MoveRequest{
				NodeID:      id,
				ParentID:    parentID,
				Placement:   placement,
				TargetIndex: math.MaxInt32,
			})
			if err != nil {
				return err
			}
		}

		if in.Title != nil || in.Target != nil {
			cur, err := q.GetMenuNode(ctx, id)
			if err != nil {
				return err
			}
			if in.Title != nil {
				cur.Title = *in.Title
			}
			if in.Target != nil {
				cur.Target = *in.Target
			}
			err = q.UpdateMenuNode(ctx, store.UpdateMenuNodeParams{
				ID:        cur.ID,
				ParentID:  cur.ParentID,
				Placement: cur.Placement,
				Position:  cur.Order,
				Title:     cur.Title,
				Target:    cur.Target,
				UpdatedAt: s.now(),
			})
			if err != nil {
				return err
			}
		}

		after, err = q.GetMenuNode(ctx, id)
		return err
	})
	if err != nil {
		return model.FlatNode{}, err
	}

	s.invalidate(ctx, before.Placement, after.Placement)
	s.logger.Info("menu node updated", "category", model.EventCategoryMenu, "node_id", id)
	return after, nil
}

// Delete removes a node and lifts its children into its scope.
func (s *MenuService) Delete(ctx context.Context, id string) error {
	removed, _, err := s.engine.Remove(ctx, id)
	if err != nil {
		if errors.Is(err, ordering.ErrUnknownNode) {
			return ErrNodeNotFound
		}
		return err
	}
	s.invalidate(ctx, removed.Placement)
	return nil
}

// Reorder persists a full ordering of one scope and returns the scope's
// records in their new order.
func (s *MenuService) Reorder(ctx context.Context, scope ordering.Scope, orderedIDs []string) ([]model.FlatNode, error) {
	nodes, err := s.engine.Persist(ctx, scope, orderedIDs)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, scope.Placement)
	return flatten(nodes), nil
}

// Move relocates a node into another scope at a target index.
func (s *MenuService) Move(ctx context.Context, req ordering.MoveRequest) ([]model.FlatNode, error) {
	before, err := s.Get(ctx, req.NodeID)
	if err != nil {
		if errors.Is(err, ErrNodeNotFound) {
			return nil, &ordering.ValidationError{Scope: req.Destination(), NodeID: req.NodeID, Err: ordering.ErrUnknownNode}
		}
		return nil, err
	}

	_, dest, err := s.engine.PersistMove(ctx, req)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, before.Placement, req.Placement)
	return flatten(dest), nil
}

// IntegrityReport summarises a sweep over the stored menu.
type IntegrityReport struct {
	Nodes       int
	Reachable   int
	Diagnostics []navtree.Diagnostic
}

// CheckIntegrity rebuilds the forest from the database, bypassing the
// cache, and reports structural problems.
func (s *MenuService) CheckIntegrity(ctx context.Context) (IntegrityReport, error) {
	records, err := s.queries.ListMenuNodes(ctx)
	if err != nil {
		return IntegrityReport{}, err
	}
	f := navtree.BuildForest(records)
	report := IntegrityReport{
		Nodes:       f.Len(),
		Reachable:   f.Count(),
		Diagnostics: f.Diagnostics,
	}
	s.reportProblems(report.Diagnostics)
	return report, nil
}

// Warm loads every placement into the cache.
func (s *MenuService) Warm(ctx context.Context) error {
	for _, p := range append([]model.Placement{model.PlacementAll}, model.ValidPlacements...) {
		if _, err := s.List(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *MenuService) invalidate(ctx context.Context, placements ...model.Placement) {
	if s.nav != nil {
		s.nav.InvalidateMenus(ctx, placements...)
	}
}

func flatten(nodes []model.MenuNode) []model.FlatNode {
	out := make([]model.FlatNode, len(nodes))
	for i, n := range nodes {
		out[i] = n.Flat()
	}
	return out
}

func validateTitle(title string) error {
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidNode)
	}
	if len(title) > maxTitleLength {
		return fmt.Errorf("%w: title must be at most %d characters", ErrInvalidNode, maxTitleLength)
	}
	return nil
}

func validateTarget(t model.Target) error {
	if t.PageSlug != "" {
		if !util.IsValidSlug(strings.TrimPrefix(t.PageSlug, "/")) {
			return fmt.Errorf("%w: %s", ErrInvalidNode, slugProblem(t.PageSlug))
		}
		return nil
	}
	if t.URL == "" {
		return fmt.Errorf("%w: a page or URL target is required", ErrInvalidNode)
	}
	if err := util.ValidateLinkURL(t.URL); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNode, err)
	}
	return nil
}

// slugProblem describes an invalid slug and offers the normalized form
// when there is one.
func slugProblem(slug string) string {
	if suggested := util.Slugify(slug); suggested != "" {
		return fmt.Sprintf("invalid slug %q (try %q)", slug, suggested)
	}
	return fmt.Sprintf("invalid slug %q", slug)
}
