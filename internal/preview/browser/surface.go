// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package browser implements preview.Surface on headless Chrome. Every
// Reset opens a fresh browser context on an opaque data: origin, so
// behavior scripts see no cookies, storage or network of the host.
package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/olegiv/ocms-nav/internal/preview"
)

const mutationBinding = "__ocmsMutation"

// ErrNotReset is returned when the surface is used before Reset.
var ErrNotReset = errors.New("browser surface not reset")

// ErrNoBrowser is returned by New when no Chrome binary is installed.
var ErrNoBrowser = errors.New("chrome or chromium not installed")

// skeleton is the empty sandbox document every Reset starts from.
var skeleton = `<!DOCTYPE html><html><head><meta charset="utf-8">` +
	`<meta http-equiv="Content-Security-Policy" content="` + preview.ContentSecurityPolicy + `">` +
	`</head><body></body></html>`

const observerScript = `(function(){
function notify(){` + mutationBinding + `("");}
new MutationObserver(notify).observe(document.documentElement,{subtree:true,childList:true,attributes:true,characterData:true});
if(window.ResizeObserver){new ResizeObserver(notify).observe(document.documentElement);}
window.addEventListener("load",notify);
})();`

var browserBinaries = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable", "headless-shell"}

// Available reports whether a Chrome binary can be found on PATH.
func Available() bool {
	for _, name := range browserBinaries {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

// Surface drives one headless Chrome instance.
type Surface struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu        sync.Mutex
	tabCtx    context.Context
	tabCancel context.CancelFunc
	watchers  map[int]func()
	nextID    int
}

// Option configures New.
type Option func(*[]chromedp.ExecAllocatorOption)

// WithExecPath runs the Chrome binary at path instead of searching PATH.
func WithExecPath(path string) Option {
	return func(opts *[]chromedp.ExecAllocatorOption) {
		*opts = append(*opts, chromedp.ExecPath(path))
	}
}

// New starts headless Chrome. The browser lives until Close or until ctx
// is cancelled.
func New(ctx context.Context, options ...Option) (*Surface, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
	)
	for _, o := range options {
		o(&opts)
	}
	if len(options) == 0 && !Available() {
		return nil, ErrNoBrowser
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// First Run launches the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}

	return &Surface{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		watchers:      make(map[int]func()),
	}, nil
}

// Reset implements preview.Surface. The previous tab and its browser
// context are discarded.
func (s *Surface) Reset(ctx context.Context) error {
	s.mu.Lock()
	if s.tabCancel != nil {
		s.tabCancel()
	}
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx, chromedp.WithNewBrowserContext())
	s.tabCtx = tabCtx
	s.tabCancel = tabCancel
	s.mu.Unlock()

	chromedp.ListenTarget(tabCtx, func(ev any) {
		if b, ok := ev.(*runtime.EventBindingCalled); ok && b.Name == mutationBinding {
			s.notify()
		}
	})

	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(skeleton))
	return s.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return runtime.AddBinding(mutationBinding).Do(ctx)
		}),
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body"),
		chromedp.Evaluate(observerScript, nil),
	)
}

// InjectStyle implements preview.Surface.
func (s *Surface) InjectStyle(ctx context.Context, css string) error {
	if css == "" {
		return nil
	}
	return s.run(ctx, chromedp.Evaluate(call(
		`function(css){var el=document.createElement("style");el.textContent=css;document.head.appendChild(el);}`, css), nil))
}

// InjectMarkup implements preview.Surface.
func (s *Surface) InjectMarkup(ctx context.Context, html string) error {
	return s.run(ctx, chromedp.Evaluate(call(`function(html){document.body.innerHTML=html;}`, html), nil))
}

// RunBehavior implements preview.Surface. Uncaught exceptions come back
// as *preview.SandboxError.
func (s *Surface) RunBehavior(ctx context.Context, script string) error {
	err := s.run(ctx, chromedp.Evaluate(script, nil))
	var exc *runtime.ExceptionDetails
	if errors.As(err, &exc) {
		msg := exc.Text
		if exc.Exception != nil && exc.Exception.Description != "" {
			msg = exc.Exception.Description
		}
		return &preview.SandboxError{
			Message: msg,
			Line:    int(exc.LineNumber) + 1,
			Column:  int(exc.ColumnNumber) + 1,
		}
	}
	return err
}

// Height implements preview.Surface.
func (s *Surface) Height(ctx context.Context) (int, error) {
	var h float64
	if err := s.run(ctx, chromedp.Evaluate(`document.documentElement.scrollHeight`, &h)); err != nil {
		return 0, err
	}
	return int(math.Ceil(h)), nil
}

// Evaluate runs expr in the sandbox and decodes its result into res.
func (s *Surface) Evaluate(ctx context.Context, expr string, res any) error {
	return s.run(ctx, chromedp.Evaluate(expr, res))
}

// Watch implements preview.Surface.
func (s *Surface) Watch(notify func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = notify
	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// Close shuts the browser down.
func (s *Surface) Close() error {
	s.mu.Lock()
	if s.tabCancel != nil {
		s.tabCancel()
		s.tabCancel = nil
	}
	s.tabCtx = nil
	s.mu.Unlock()

	s.browserCancel()
	s.allocCancel()
	return nil
}

func (s *Surface) notify() {
	s.mu.Lock()
	ws := make([]func(), 0, len(s.watchers))
	for _, w := range s.watchers {
		ws = append(ws, w)
	}
	s.mu.Unlock()
	for _, w := range ws {
		w()
	}
}

// run executes actions in the current tab, aborting when ctx is done
// without closing the tab.
func (s *Surface) run(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	tab := s.tabCtx
	s.mu.Unlock()
	if tab == nil {
		return ErrNotReset
	}

	runCtx, cancel := context.WithCancel(tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// call builds an immediately invoked function expression with arg passed
// as a JSON literal.
func call(fn, arg string) string {
	b, _ := json.Marshal(arg)
	return "(" + fn + ")(" + string(b) + ")"
}
