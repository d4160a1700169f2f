// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package preview

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/olegiv/ocms-nav/internal/model"
)

// ContentSecurityPolicy is applied to every preview document. The sandbox
// may run inline script and style but cannot reach the network.
const ContentSecurityPolicy = "default-src 'none'; script-src 'unsafe-inline'; " +
	"style-src 'unsafe-inline'; img-src data:; font-src data:; media-src data:; " +
	"connect-src 'none'; form-action 'none'; base-uri 'none'"

// SandboxAttr is the iframe sandbox attribute for embedding a preview.
// Without allow-same-origin the document gets an opaque origin and cannot
// touch host cookies or storage.
const SandboxAttr = "allow-scripts"

// Message types posted from the preview document to its parent.
const (
	MessageHeight = "ocms-preview-height"
	MessageError  = "ocms-preview-error"
)

// heightReporter coalesces mutations and resizes into one report per
// animation frame and posts the height to the parent only when it changed.
const heightReporter = `(function(){
var last=-1,queued=false;
function report(){queued=false;var h=Math.ceil(document.documentElement.scrollHeight);
if(h!==last){last=h;parent.postMessage({type:"` + MessageHeight + `",height:h},"*");}}
function schedule(){if(!queued){queued=true;requestAnimationFrame(report);}}
new MutationObserver(schedule).observe(document.documentElement,{subtree:true,childList:true,attributes:true,characterData:true});
if(window.ResizeObserver){new ResizeObserver(schedule).observe(document.documentElement);}
window.addEventListener("load",schedule);
window.addEventListener("error",function(e){parent.postMessage({type:"` + MessageError + `",message:String(e.message)},"*");e.preventDefault();});
schedule();
})();`

var closingTag = regexp.MustCompile(`(?i)</(script|style)`)

// Renderer turns stored content into preview markup and documents.
type Renderer struct {
	policy   *bluemonday.Policy
	markdown goldmark.Markdown
}

var elementName = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// markupAttrs are kept on every element. Event handler attributes are not
// listed, so inline handlers are dropped along with script elements.
var markupAttrs = []string{
	"id", "class", "style", "title", "lang", "dir", "hidden", "tabindex", "role",
	"href", "src", "srcset", "sizes", "alt", "width", "height", "loading", "target", "rel",
	"name", "type", "value", "placeholder", "checked", "selected", "disabled", "readonly",
	"required", "multiple", "min", "max", "step", "pattern", "maxlength", "minlength",
	"for", "form", "action", "method", "label", "rows", "cols", "wrap", "autocomplete",
	"open", "colspan", "rowspan", "headers", "scope", "span", "start", "reversed",
	"datetime", "cite", "controls", "autoplay", "loop", "muted", "poster", "playsinline",
	"aria-label", "aria-labelledby", "aria-describedby", "aria-hidden", "aria-expanded",
	"aria-controls", "aria-current", "aria-live", "aria-selected", "aria-checked",
	"viewbox", "xmlns", "fill", "stroke", "stroke-width", "stroke-linecap", "stroke-linejoin",
	"d", "cx", "cy", "r", "rx", "ry", "x", "y", "x1", "y1", "x2", "y2", "points",
	"transform", "opacity", "fill-rule", "clip-rule", "preserveaspectratio",
}

// NewRenderer creates a Renderer. Markup keeps every element and its
// presentational attributes; only script elements and inline handlers are
// removed, since behavior is the single script of a preview. Style
// elements are dropped too: page CSS is injected from the content style.
func NewRenderer() *Renderer {
	policy := bluemonday.NewPolicy()
	policy.AllowNoAttrs().OnElementsMatching(elementName)
	policy.AllowAttrs(markupAttrs...).Globally()
	policy.AllowDataAttributes()
	policy.AllowComments()
	policy.AllowURLSchemes("http", "https", "mailto", "tel")
	policy.AllowRelativeURLs(true)
	policy.RequireParseableURLs(true)
	policy.AllowDataURIImages()

	return &Renderer{
		policy: policy,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
	}
}

// Markup returns the HTML body of content without scripts, rendering
// markdown first when the content format asks for it. Raw HTML inside
// markdown is kept.
func (r *Renderer) Markup(content model.PreviewContent) (string, error) {
	src := content.Markup
	if content.IsMarkdown() {
		var buf bytes.Buffer
		if err := r.markdown.Convert([]byte(src), &buf); err != nil {
			return "", fmt.Errorf("rendering markdown: %w", err)
		}
		src = buf.String()
	}
	return r.policy.Sanitize(src), nil
}

// Document builds the standalone preview document: CSP meta, style, then
// markup, then the height reporter, then behavior.
func (r *Renderer) Document(content model.PreviewContent) (string, error) {
	markup, err := r.Markup(content)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">")
	b.WriteString(`<meta http-equiv="Content-Security-Policy" content="`)
	b.WriteString(html.EscapeString(ContentSecurityPolicy))
	b.WriteString(`">`)
	b.WriteString(`<meta name="referrer" content="no-referrer">`)
	if content.Style != "" {
		b.WriteString("<style>")
		b.WriteString(escapeRawText(content.Style))
		b.WriteString("</style>")
	}
	b.WriteString("</head><body>")
	b.WriteString(markup)
	b.WriteString("<script>")
	b.WriteString(heightReporter)
	b.WriteString("</script>")
	if content.Behavior != "" {
		b.WriteString("<script>")
		b.WriteString(wrapBehavior(content.Behavior))
		b.WriteString("</script>")
	}
	b.WriteString("</body></html>")
	return b.String(), nil
}

// Frame wraps a preview document in a sandboxed iframe using srcdoc.
func Frame(document, title string) string {
	return fmt.Sprintf(`<iframe data-ocms-preview sandbox="%s" referrerpolicy="no-referrer" title="%s" srcdoc="%s"></iframe>`,
		SandboxAttr, html.EscapeString(title), html.EscapeString(document))
}

// hostListener resizes the preview iframe to the heights it reports. Only
// messages from that frame's window are accepted.
const hostListener = `(function(){
var f=document.querySelector("iframe[data-ocms-preview]");
window.addEventListener("message",function(e){
if(!f||e.source!==f.contentWindow||!e.data)return;
if(e.data.type==="` + MessageHeight + `"&&typeof e.data.height==="number"){f.style.height=e.data.height+"px";}
});
})();`

// HostPage returns a minimal page embedding document in a sandboxed frame
// that grows with the reported content height. initialHeight, when
// positive, sizes the frame before the first report arrives.
func HostPage(document, title string, initialHeight int) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title><style>iframe[data-ocms-preview]{border:0;width:100%;display:block")
	if initialHeight > 0 {
		fmt.Fprintf(&b, ";height:%dpx", initialHeight)
	}
	b.WriteString("}</style></head><body>")
	b.WriteString(Frame(document, title))
	b.WriteString("<script>")
	b.WriteString(hostListener)
	b.WriteString("</script></body></html>")
	return b.String()
}

// wrapBehavior runs behavior inside try/catch and posts a thrown error to
// the parent. Syntax errors never reach the catch; the reporter's window
// error listener covers those.
func wrapBehavior(behavior string) string {
	return "try{\n" + escapeRawText(behavior) + "\n}catch(e){parent.postMessage({type:\"" +
		MessageError + "\",message:String(e&&e.message||e)},\"*\");}"
}

// escapeRawText keeps raw text from closing its script or style element.
func escapeRawText(s string) string {
	return closingTag.ReplaceAllString(s, `<\/$1`)
}
