// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/olegiv/ocms-nav/internal/model"
	"github.com/olegiv/ocms-nav/internal/util"
)

const menuNodeColumns = `id, parent_id, placement, position, title, page_slug, url, created_at, updated_at`

// Rows come back in insertion order so the tree builder's input-index
// tie-break is stable across reads.
const listMenuNodes = `SELECT ` + menuNodeColumns + ` FROM menu_nodes
ORDER BY created_at, id`

// ListMenuNodes returns every stored menu node.
func (q *Queries) ListMenuNodes(ctx context.Context) ([]model.FlatNode, error) {
	return q.queryMenuNodes(ctx, listMenuNodes)
}

const listMenuNodesByPlacement = `SELECT ` + menuNodeColumns + ` FROM menu_nodes
WHERE placement = ?
ORDER BY created_at, id`

// ListMenuNodesByPlacement returns the nodes carrying the given placement.
func (q *Queries) ListMenuNodesByPlacement(ctx context.Context, placement model.Placement) ([]model.FlatNode, error) {
	return q.queryMenuNodes(ctx, listMenuNodesByPlacement, string(placement))
}

const listRootScope = `SELECT ` + menuNodeColumns + ` FROM menu_nodes
WHERE placement = ? AND parent_id IS NULL
ORDER BY position, created_at, id`

const listChildScope = `SELECT ` + menuNodeColumns + ` FROM menu_nodes
WHERE placement = ? AND parent_id = ?
ORDER BY position, created_at, id`

// ListScopeNodes returns the siblings sharing parentID and placement,
// ordered by position.
func (q *Queries) ListScopeNodes(ctx context.Context, placement model.Placement, parentID *string) ([]model.FlatNode, error) {
	if parentID == nil {
		return q.queryMenuNodes(ctx, listRootScope, string(placement))
	}
	return q.queryMenuNodes(ctx, listChildScope, string(placement), *parentID)
}

const listChildren = `SELECT ` + menuNodeColumns + ` FROM menu_nodes
WHERE parent_id = ?
ORDER BY position, created_at, id`

// ListChildren returns the direct children of a node in any placement.
func (q *Queries) ListChildren(ctx context.Context, parentID string) ([]model.FlatNode, error) {
	return q.queryMenuNodes(ctx, listChildren, parentID)
}

const getMenuNode = `SELECT ` + menuNodeColumns + ` FROM menu_nodes WHERE id = ?`

// GetMenuNode fetches a node by id. Returns sql.ErrNoRows when absent.
func (q *Queries) GetMenuNode(ctx context.Context, id string) (model.FlatNode, error) {
	row := q.db.QueryRowContext(ctx, getMenuNode, id)
	return scanMenuNode(row)
}

const createMenuNode = `INSERT INTO menu_nodes (` + menuNodeColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateMenuNodeParams holds the fields of a new node.
type CreateMenuNodeParams struct {
	ID        string
	ParentID  *string
	Placement model.Placement
	Position  int
	Title     string
	Target    model.Target
	CreatedAt time.Time
}

// CreateMenuNode inserts a node and returns the stored record.
func (q *Queries) CreateMenuNode(ctx context.Context, arg CreateMenuNodeParams) (model.FlatNode, error) {
	_, err := q.db.ExecContext(ctx, createMenuNode,
		arg.ID,
		util.NullStringFromPtr(arg.ParentID),
		string(arg.Placement),
		arg.Position,
		arg.Title,
		arg.Target.PageSlug,
		arg.Target.URL,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	if err != nil {
		return model.FlatNode{}, err
	}
	return q.GetMenuNode(ctx, arg.ID)
}

const updateMenuNode = `UPDATE menu_nodes
SET parent_id = ?, placement = ?, position = ?, title = ?, page_slug = ?, url = ?, updated_at = ?
WHERE id = ?`

// UpdateMenuNodeParams holds every mutable field of a node.
type UpdateMenuNodeParams struct {
	ID        string
	ParentID  *string
	Placement model.Placement
	Position  int
	Title     string
	Target    model.Target
	UpdatedAt time.Time
}

// UpdateMenuNode rewrites a node's mutable fields.
func (q *Queries) UpdateMenuNode(ctx context.Context, arg UpdateMenuNodeParams) error {
	res, err := q.db.ExecContext(ctx, updateMenuNode,
		util.NullStringFromPtr(arg.ParentID),
		string(arg.Placement),
		arg.Position,
		arg.Title,
		arg.Target.PageSlug,
		arg.Target.URL,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

const updateMenuNodePosition = `UPDATE menu_nodes
SET parent_id = ?, placement = ?, position = ?, updated_at = ?
WHERE id = ?`

// UpdateMenuNodePositionParams places a node in a scope at a position.
type UpdateMenuNodePositionParams struct {
	ID        string
	ParentID  *string
	Placement model.Placement
	Position  int
	UpdatedAt time.Time
}

// UpdateMenuNodePosition moves a node within or between scopes.
func (q *Queries) UpdateMenuNodePosition(ctx context.Context, arg UpdateMenuNodePositionParams) error {
	res, err := q.db.ExecContext(ctx, updateMenuNodePosition,
		util.NullStringFromPtr(arg.ParentID),
		string(arg.Placement),
		arg.Position,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// ReplaceScopeOrder writes the positions of a whole scope. Call it through
// RunInTx so the batch is applied atomically.
func (q *Queries) ReplaceScopeOrder(ctx context.Context, updates []UpdateMenuNodePositionParams) error {
	for _, u := range updates {
		if err := q.UpdateMenuNodePosition(ctx, u); err != nil {
			return fmt.Errorf("updating position of %s: %w", u.ID, err)
		}
	}
	return nil
}

const deleteMenuNode = `DELETE FROM menu_nodes WHERE id = ?`

// DeleteMenuNode removes a node. Children are left in place; callers
// re-parent them first.
func (q *Queries) DeleteMenuNode(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, deleteMenuNode, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

const countMenuNodes = `SELECT COUNT(*) FROM menu_nodes`

// CountMenuNodes returns the number of stored nodes.
func (q *Queries) CountMenuNodes(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countMenuNodes).Scan(&n)
	return n, err
}

func (q *Queries) queryMenuNodes(ctx context.Context, query string, args ...any) ([]model.FlatNode, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.FlatNode
	for rows.Next() {
		item, err := scanMenuNode(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMenuNode(row rowScanner) (model.FlatNode, error) {
	var (
		n         model.FlatNode
		parentID  sql.NullString
		placement string
	)
	err := row.Scan(
		&n.ID,
		&parentID,
		&placement,
		&n.Order,
		&n.Title,
		&n.Target.PageSlug,
		&n.Target.URL,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return model.FlatNode{}, err
	}
	n.ParentID = util.PtrFromNullString(parentID)
	n.Placement = model.Placement(placement)
	return n, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
