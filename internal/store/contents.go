// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/olegiv/ocms-nav/internal/model"
)

const getContent = `SELECT slug, markup, style, behavior, format, updated_at
FROM contents WHERE slug = ?`

// GetContent fetches the preview content for a slug.
// Returns sql.ErrNoRows when absent.
func (q *Queries) GetContent(ctx context.Context, slug string) (model.PreviewContent, error) {
	var c model.PreviewContent
	err := q.db.QueryRowContext(ctx, getContent, slug).Scan(
		&c.Slug,
		&c.Markup,
		&c.Style,
		&c.Behavior,
		&c.Format,
		&c.UpdatedAt,
	)
	return c, err
}

const updateContent = `UPDATE contents
SET markup = ?, style = ?, behavior = ?, format = ?, updated_at = ?
WHERE slug = ?`

const insertContent = `INSERT INTO contents (slug, markup, style, behavior, format, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`

// PutContentParams holds a full content triple for a slug.
type PutContentParams struct {
	Slug      string
	Markup    string
	Style     string
	Behavior  string
	Format    string
	UpdatedAt time.Time
}

// PutContent replaces the stored triple for a slug, creating it if needed.
// Run it through RunInTx so readers never see a half-written triple.
func (q *Queries) PutContent(ctx context.Context, arg PutContentParams) error {
	format := arg.Format
	if format == "" {
		format = model.FormatHTML
	}

	res, err := q.db.ExecContext(ctx, updateContent,
		arg.Markup, arg.Style, arg.Behavior, format, arg.UpdatedAt, arg.Slug)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	_, err = q.db.ExecContext(ctx, insertContent,
		arg.Slug, arg.Markup, arg.Style, arg.Behavior, format, arg.UpdatedAt)
	return err
}

const deleteContent = `DELETE FROM contents WHERE slug = ?`

// DeleteContent removes the content for a slug.
func (q *Queries) DeleteContent(ctx context.Context, slug string) error {
	res, err := q.db.ExecContext(ctx, deleteContent, slug)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

const listContentSlugs = `SELECT slug FROM contents ORDER BY slug`

// ListContentSlugs returns every stored content slug.
func (q *Queries) ListContentSlugs(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listContentSlugs)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var slugs []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		slugs = append(slugs, s)
	}
	return slugs, rows.Err()
}
