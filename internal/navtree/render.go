// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package navtree

import (
	"bufio"
	"html/template"
	"io"
	"slices"

	"github.com/olegiv/ocms-nav/internal/model"
	"github.com/olegiv/ocms-nav/internal/util"
)

// RenderOptions carries everything the renderer needs. UI preferences such
// as the logo are passed in here rather than read from ambient state.
type RenderOptions struct {
	Placement  model.Placement
	ActivePath string
	LogoURL    string
	LogoAlt    string
	CSSClass   string
	Limits     Limits
}

// Render writes the forest as nested <ul> lists. The traversal is iterative
// and bounded by opts.Limits; nodes beyond the limits are omitted.
func Render(w io.Writer, f *Forest, opts RenderOptions) error {
	lim := opts.Limits.withDefaults()
	bw := bufio.NewWriter(w)

	class := "menu"
	if opts.Placement != "" && opts.Placement != model.PlacementAll {
		class += " menu-" + string(opts.Placement)
	}
	if opts.CSSClass != "" {
		class += " " + opts.CSSClass
	}

	bw.WriteString(`<nav class="` + template.HTMLEscapeString(class) + `">`)
	if opts.LogoURL != "" {
		bw.WriteString(`<a class="menu-logo" href="/"><img src="` + template.HTMLEscapeString(safeHref(opts.LogoURL)) +
			`" alt="` + template.HTMLEscapeString(opts.LogoAlt) + `"></a>`)
	}

	type item struct {
		index int
		depth int
		close bool // emits the closing tags of an expanded node
	}

	roots := f.RootsFor(opts.Placement)
	stack := make([]item, 0, len(roots))
	for _, r := range slices.Backward(roots) {
		stack = append(stack, item{index: r})
	}

	bw.WriteString("<ul>")
	rendered := 0
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if it.close {
			bw.WriteString("</ul></li>")
			continue
		}
		if rendered >= lim.MaxNodes {
			continue
		}
		rendered++

		n := &f.Nodes[it.index]
		href := safeHref(n.Record.Target.Href())
		if opts.ActivePath != "" && href == opts.ActivePath {
			bw.WriteString(`<li class="active">`)
		} else {
			bw.WriteString("<li>")
		}
		bw.WriteString(`<a href="` + template.HTMLEscapeString(href) + `">` +
			template.HTMLEscapeString(n.Record.Title) + "</a>")

		if len(n.Children) == 0 || it.depth+1 >= lim.MaxDepth {
			bw.WriteString("</li>")
			continue
		}

		bw.WriteString("<ul>")
		stack = append(stack, item{close: true})
		for _, c := range slices.Backward(n.Children) {
			stack = append(stack, item{index: c, depth: it.depth + 1})
		}
	}
	bw.WriteString("</ul></nav>")

	return bw.Flush()
}

// safeHref replaces links with disallowed schemes by "#".
func safeHref(href string) string {
	if href == "" || util.ValidateLinkURL(href) != nil {
		return "#"
	}
	return href
}
