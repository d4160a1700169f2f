// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package ordering

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/ocms-nav/internal/model"
	"github.com/olegiv/ocms-nav/internal/store"
)

// maxAncestorWalk bounds parent-chain walks against corrupted data.
const maxAncestorWalk = 10000

// Engine persists scope orderings. Every write happens in one transaction,
// so a concurrent reader sees either the old or the new ordering.
type Engine struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates an Engine writing through db.
func NewEngine(db *sql.DB, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{db: db, logger: logger, now: time.Now}
}

// Persist validates orderedIDs against the stored scope and writes order
// values 0..len-1. The ordered list must name every member of the scope
// exactly once; unknown ids, duplicates and members of other scopes are
// rejected with a *ValidationError.
func (e *Engine) Persist(ctx context.Context, scope Scope, orderedIDs []string) ([]model.MenuNode, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var result []model.MenuNode
	err := store.RunInTx(ctx, e.db, func(q *store.Queries) error {
		current, err := q.ListScopeNodes(ctx, scope.Placement, scope.ParentID)
		if err != nil {
			return fmt.Errorf("loading scope %s: %w", scope.Key(), err)
		}

		if err := e.classifyStrangers(ctx, q, scope, current, orderedIDs); err != nil {
			return err
		}

		ordered, err := ApplyOrder(scope, toMenuNodes(current), orderedIDs)
		if err != nil {
			return err
		}

		if err := q.ReplaceScopeOrder(ctx, positionUpdates(ordered, e.now())); err != nil {
			return err
		}
		result = ordered
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("menu scope reordered", "category", model.EventCategoryMenu,
		"scope", scope.Key(), "count", len(result))
	return result, nil
}

// classifyStrangers distinguishes ids that exist elsewhere from ids that do
// not exist at all, so the error names the actual problem.
func (e *Engine) classifyStrangers(ctx context.Context, q *store.Queries, scope Scope, current []model.FlatNode, orderedIDs []string) error {
	members := make(map[string]bool, len(current))
	for _, n := range current {
		members[n.ID] = true
	}
	for _, id := range orderedIDs {
		if members[id] {
			continue
		}
		if _, err := q.GetMenuNode(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &ValidationError{Scope: scope, NodeID: id, Err: ErrUnknownNode}
			}
			return err
		}
		return &ValidationError{Scope: scope, NodeID: id, Err: ErrScopeMismatch}
	}
	return nil
}

// PersistMove moves a node into another scope and writes both affected
// scopes in one transaction. When the placement changes, descendants take
// the new placement too so the subtree stays in one placement.
func (e *Engine) PersistMove(ctx context.Context, req MoveRequest) (source, dest []model.MenuNode, err error) {
	err = store.RunInTx(ctx, e.db, func(q *store.Queries) error {
		source, dest, err = e.MoveTx(ctx, q, req)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	e.logger.Info("menu node moved", "category", model.EventCategoryMenu,
		"node_id", req.NodeID, "scope", req.Destination().Key())
	return source, dest, nil
}

// MoveTx performs a move through q, which the caller has opened inside a
// transaction. It lets callers combine a move with other writes.
func (e *Engine) MoveTx(ctx context.Context, q *store.Queries, req MoveRequest) (source, dest []model.MenuNode, err error) {
	destScope := req.Destination()
	if err := destScope.Validate(); err != nil {
		return nil, nil, err
	}

	node, err := q.GetMenuNode(ctx, req.NodeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, &ValidationError{Scope: destScope, NodeID: req.NodeID, Err: ErrUnknownNode}
		}
		return nil, nil, err
	}

	if req.ParentID != nil {
		if err := e.checkNewParent(ctx, q, node.ID, *req.ParentID, destScope); err != nil {
			return nil, nil, err
		}
	}

	srcScope := ScopeOf(node)
	srcNodes, err := q.ListScopeNodes(ctx, srcScope.Placement, srcScope.ParentID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading scope %s: %w", srcScope.Key(), err)
	}
	destNodes, err := q.ListScopeNodes(ctx, destScope.Placement, destScope.ParentID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading scope %s: %w", destScope.Key(), err)
	}

	source, dest, err = Move(toMenuNodes(srcNodes), toMenuNodes(destNodes), req)
	if err != nil {
		return nil, nil, err
	}

	now := e.now()
	if err := q.ReplaceScopeOrder(ctx, positionUpdates(source, now)); err != nil {
		return nil, nil, err
	}
	if srcScope.Key() != destScope.Key() {
		if err := q.ReplaceScopeOrder(ctx, positionUpdates(dest, now)); err != nil {
			return nil, nil, err
		}
	}
	if node.Placement != req.Placement {
		if err := CascadePlacement(ctx, q, node.ID, req.Placement, now); err != nil {
			return nil, nil, err
		}
	}
	return source, dest, nil
}

// Remove deletes a node. Its children are lifted into the node's own scope
// and appended after the remaining siblings in their existing order; the
// remaining siblings keep their order values.
func (e *Engine) Remove(ctx context.Context, id string) (removed model.FlatNode, lifted []model.MenuNode, err error) {
	err = store.RunInTx(ctx, e.db, func(q *store.Queries) error {
		node, err := q.GetMenuNode(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &ValidationError{NodeID: id, Err: ErrUnknownNode}
			}
			return err
		}
		scope := ScopeOf(node)

		siblings, err := q.ListScopeNodes(ctx, scope.Placement, scope.ParentID)
		if err != nil {
			return fmt.Errorf("loading scope %s: %w", scope.Key(), err)
		}
		children, err := q.ListChildren(ctx, id)
		if err != nil {
			return fmt.Errorf("listing children of %s: %w", id, err)
		}

		var orders []int
		for _, s := range siblings {
			if s.ID != id {
				orders = append(orders, s.Order)
			}
		}
		next := NextOrder(orders)

		if err := q.DeleteMenuNode(ctx, id); err != nil {
			return err
		}

		now := e.now()
		lifted = make([]model.MenuNode, 0, len(children))
		for i, c := range children {
			n := model.NodeFromFlat(c)
			n.ParentID = node.ParentID
			n.Placement = node.Placement
			n.Order = next + i
			lifted = append(lifted, n)
		}
		if err := q.ReplaceScopeOrder(ctx, positionUpdates(lifted, now)); err != nil {
			return err
		}
		for _, c := range children {
			if c.Placement != node.Placement {
				if err := CascadePlacement(ctx, q, c.ID, node.Placement, now); err != nil {
					return err
				}
			}
		}
		removed = node
		return nil
	})
	if err != nil {
		return model.FlatNode{}, nil, err
	}

	e.logger.Info("menu node removed", "category", model.EventCategoryMenu,
		"node_id", id, "lifted", len(lifted))
	return removed, lifted, nil
}

// checkNewParent rejects a parent that does not exist or that lies inside
// the moving node's subtree.
func (e *Engine) checkNewParent(ctx context.Context, q *store.Queries, nodeID, parentID string, scope Scope) error {
	cur := parentID
	for range maxAncestorWalk {
		if cur == nodeID {
			return &ValidationError{Scope: scope, NodeID: nodeID, Err: ErrCycle}
		}
		n, err := q.GetMenuNode(ctx, cur)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				if cur == parentID {
					return &ValidationError{Scope: scope, NodeID: parentID, Err: ErrUnknownNode}
				}
				return nil // dangling ancestor: chain ends here
			}
			return err
		}
		if n.ParentID == nil {
			return nil
		}
		cur = *n.ParentID
	}
	return &ValidationError{Scope: scope, NodeID: nodeID, Err: ErrCycle}
}

// CascadePlacement sets placement on every descendant of rootID. The walk
// is breadth-first with a visited set, so stored cycles cannot loop it.
func CascadePlacement(ctx context.Context, q *store.Queries, rootID string, placement model.Placement, now time.Time) error {
	visited := map[string]bool{rootID: true}
	queue := []string{rootID}

	for len(queue) > 0 && len(visited) <= maxAncestorWalk {
		id := queue[0]
		queue = queue[1:]

		children, err := q.ListChildren(ctx, id)
		if err != nil {
			return fmt.Errorf("listing children of %s: %w", id, err)
		}
		for _, c := range children {
			if visited[c.ID] {
				continue
			}
			visited[c.ID] = true
			queue = append(queue, c.ID)
			if c.Placement == placement {
				continue
			}
			err := q.UpdateMenuNodePosition(ctx, store.UpdateMenuNodePositionParams{
				ID:        c.ID,
				ParentID:  c.ParentID,
				Placement: placement,
				Position:  c.Order,
				UpdatedAt: now,
			})
			if err != nil {
				return fmt.Errorf("updating placement of %s: %w", c.ID, err)
			}
		}
	}
	return nil
}

func toMenuNodes(flat []model.FlatNode) []model.MenuNode {
	out := make([]model.MenuNode, len(flat))
	for i, f := range flat {
		out[i] = model.NodeFromFlat(f)
	}
	return out
}

func positionUpdates(nodes []model.MenuNode, now time.Time) []store.UpdateMenuNodePositionParams {
	out := make([]store.UpdateMenuNodePositionParams, len(nodes))
	for i, n := range nodes {
		out[i] = store.UpdateMenuNodePositionParams{
			ID:        n.ID,
			ParentID:  n.ParentID,
			Placement: n.Placement,
			Position:  n.Order,
			UpdatedAt: now,
		}
	}
	return out
}
