// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Content formats
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// PreviewContent is the markup/style/behavior triple owned by a page or
// section. The three blobs are stored and replaced together.
type PreviewContent struct {
	Slug      string    `json:"slug,omitempty"`
	Markup    string    `json:"markup"`
	Style     string    `json:"style"`
	Behavior  string    `json:"behavior"`
	Format    string    `json:"format,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// IsMarkdown reports whether Markup must be rendered from Markdown first.
func (c PreviewContent) IsMarkdown() bool {
	return c.Format == FormatMarkdown
}

// IsValidFormat checks if a content format value is valid.
// An empty format is treated as HTML.
func IsValidFormat(format string) bool {
	return format == "" || format == FormatHTML || format == FormatMarkdown
}
