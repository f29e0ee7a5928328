package crucible

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// RenderOptions configures a single Render call.
type RenderOptions struct {
	Framework Framework // explicit override; FrameworkUnknown means "auto"
	Props     map[string]any
	Slots     map[string]any
	Cache     *bool // nil means "use renderer default" (true)
	CacheKey  string
}

func (o RenderOptions) cacheEnabled() bool {
	return o.Cache == nil || *o.Cache
}

// RenderResult is the renderer's public return shape.
type RenderResult struct {
	HTML       string
	CSS        string
	Head       string
	Framework  Framework
	Cached     bool
	RenderTime time.Duration
	Error      string
}

// wellKnownComponentNames is the lookup order used to pick the user's
// component out of evaluated code. componentPickSource generates the
// in-sandbox lookup from this list so the two cannot drift.
var wellKnownComponentNames = []string{"component", "default_1", "exports.default", "App", "$$Component"}

// componentPickSource builds the JS that walks wellKnownComponentNames in
// order and binds the first match to __crucible_component. Bare names are
// probed via typeof so an undeclared identifier never throws a
// ReferenceError; dotted names are probed as an object member.
func componentPickSource() string {
	var sb strings.Builder
	sb.WriteString("\n\t\tvar __crucible_component = null;\n")
	for i, name := range wellKnownComponentNames {
		keyword := "if"
		if i > 0 {
			keyword = "else if"
		}
		if obj, member, dotted := strings.Cut(name, "."); dotted {
			fmt.Fprintf(&sb, "\t\t%s (%s && %s.%s !== undefined) { __crucible_component = %s; }\n",
				keyword, obj, obj, member, name)
		} else {
			fmt.Fprintf(&sb, "\t\t%s (typeof %s !== \"undefined\") { __crucible_component = %s; }\n",
				keyword, name, name)
		}
	}
	fmt.Fprintf(&sb, `		if (__crucible_component === null) {
			throw new Error("no component export found (looked for %s)");
		}
`, strings.Join(wellKnownComponentNames, ", "))
	return sb.String()
}

// Renderer is the multi-framework SSR pipeline: framework detection,
// shim injection, render-wrapped submission to the Sandbox Host, error
// shielding, and cache integration.
type Renderer struct {
	host   *Host
	cache  *Cache
	logger *Logger

	mu           sync.Mutex
	shimsApplied map[Framework]bool
}

// NewRenderer wires a Renderer to its Host, Cache and Logger. logger
// may be nil, in which case shielded render errors are not narrated
// anywhere; a nil Logger degrades to silence rather than a panic.
func NewRenderer(host *Host, cache *Cache, logger *Logger) *Renderer {
	return &Renderer{host: host, cache: cache, logger: logger, shimsApplied: make(map[Framework]bool)}
}

// ensureShim evaluates the shared base shim once, then the requested
// framework's shim once, idempotently.
func (rr *Renderer) ensureShim(fw Framework) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if !rr.shimsApplied[FrameworkUnknown] {
		if _, err := rr.host.Eval(sharedShimSource, "/crucible/shims/base.js"); err != nil {
			return fmt.Errorf("🔴 install shared SSR shim: %w", err)
		}
		rr.shimsApplied[FrameworkUnknown] = true
	}
	if rr.shimsApplied[fw] {
		return nil
	}
	src, ok := shimSources[fw]
	if !ok {
		return &RendererError{Kind: RendererFrameworkGuess, Message: fmt.Sprintf("no shim registered for framework %q", fw)}
	}
	if _, err := rr.host.Eval(src, fmt.Sprintf("/crucible/shims/%s.js", fw)); err != nil {
		return fmt.Errorf("🔴 install %s SSR shim: %w", fw, err)
	}
	rr.shimsApplied[fw] = true
	return nil
}

// Render renders code to HTML, consulting the cache first.
func (rr *Renderer) Render(code, filename string, opts RenderOptions) RenderResult {
	start := time.Now()

	fw := opts.Framework
	if fw == FrameworkUnknown {
		fw = DetectFramework(filename, code)
	}

	var cacheKey string
	if rr.cache != nil && opts.cacheEnabled() {
		cacheKey = opts.CacheKey
		if cacheKey == "" {
			cacheKey = rr.cache.GenerateKey(filename, opts.Props, code)
		}
		if entry, ok := rr.cache.Get(cacheKey); ok {
			return RenderResult{
				HTML:       entry.HTML,
				CSS:        entry.CSS,
				Head:       entry.Head,
				Framework:  fw,
				Cached:     true,
				RenderTime: time.Since(start),
			}
		}
	}

	if err := rr.ensureShim(fw); err != nil {
		return rr.errorResult(fw, start, err)
	}

	wrapped, err := wrapRenderInvocation(fw, code, filename, opts.Props, opts.Slots)
	if err != nil {
		return rr.errorResult(fw, start, err)
	}

	evalResult, err := rr.host.Eval(wrapped, filename)
	if err != nil {
		return rr.errorResult(fw, start, err)
	}
	if !evalResult.Success {
		return rr.errorResult(fw, start, &RendererError{Kind: RendererRenderFailure, Message: evalResult.Error})
	}

	html, css, head, err := parseRenderOutput(evalResult.Value)
	if err != nil {
		return rr.errorResult(fw, start, err)
	}

	result := RenderResult{HTML: html, CSS: css, Head: head, Framework: fw, RenderTime: time.Since(start)}

	if rr.cache != nil && opts.cacheEnabled() {
		rr.cache.Set(cacheKey, CacheEntry{HTML: html, CSS: css, Head: head, ContentHash: simpleHash(code)})
	}
	return result
}

// errorResult shields failures: Sandbox and
// Renderer failures never escape Render; they come back as a styled
// error page plus a non-empty Error field. It also narrates the
// underlying typed error through the Renderer's Logger, if any, so an
// embedder can see why a render was shielded without that error ever
// leaving Render itself.
func (rr *Renderer) errorResult(fw Framework, start time.Time, err error) RenderResult {
	if rr.logger != nil {
		rr.logger.LogErr("renderer", err)
	}
	return RenderResult{
		HTML:       errorPageHTML(err),
		Framework:  fw,
		RenderTime: time.Since(start),
		Error:      err.Error(),
	}
}

// errorPageHTML renders the error markup returned whenever a component
// cannot be rendered: a single dark-themed <div> holding the escaped
// message, not a full HTML document.
func errorPageHTML(err error) string {
	return fmt.Sprintf(`<div style="color:red;background:#1a1a1a;padding:1rem;font-family:monospace;">SSR render failed: %s</div>`, escapeHTMLGo(err.Error()))
}

func escapeHTMLGo(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '&':
			out = append(out, []rune("&amp;")...)
		case '<':
			out = append(out, []rune("&lt;")...)
		case '>':
			out = append(out, []rune("&gt;")...)
		case '"':
			out = append(out, []rune("&quot;")...)
		case '\'':
			out = append(out, []rune("&#39;")...)
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// parseRenderOutput parses the sandbox's {html, css, head} result from
// JSON text; input that is not valid JSON is a render failure. gjson is used
// because the shims are free to omit fields or emit them in any order.
func parseRenderOutput(raw string) (html, css, head string, err error) {
	if !gjson.Valid(raw) {
		return "", "", "", &RendererError{Kind: RendererRenderFailure, Message: "render output is not valid JSON"}
	}
	result := gjson.Parse(raw)
	return result.Get("html").String(), result.Get("css").String(), result.Get("head").String(), nil
}

// wrapRenderInvocation builds a framework-
// specific async IIFE that inlines props/slots, defines the component,
// picks it by well-known name, renders it, and returns JSON.
func wrapRenderInvocation(fw Framework, code, filename string, props, slots map[string]any) (string, error) {
	propsJSON, err := marshalOrEmptyObject(props)
	if err != nil {
		return "", err
	}
	slotsJSON, err := marshalOrEmptyObject(slots)
	if err != nil {
		return "", err
	}

	pick := componentPickSource()

	var invoke string
	switch fw {
	case FrameworkAstro:
		invoke = `
		var __result = $$createAstroResult();
		var __rendered = $$renderComponent(__result, "Component", __crucible_component, __props, __slots);
		if (__rendered && typeof __rendered.then === "function") { __rendered = await __rendered; }
		return JSON.stringify({ html: __rendered, css: __result.styles.join("\n"), head: $$renderHead(__result) });
		`
	case FrameworkVue:
		invoke = `
		var __html = await renderToString(__crucible_component, { props: __props, slots: __slots });
		return JSON.stringify({ html: __html, css: "", head: "" });
		`
	case FrameworkSvelte:
		invoke = `
		var __rendered = svelteRender(__crucible_component, __props);
		return JSON.stringify({ html: __rendered.html, css: (__rendered.css && __rendered.css.code) || "", head: __rendered.head || "" });
		`
	default: // react
		invoke = `
		var __vnode = typeof __crucible_component === "function"
			? createElement(__crucible_component, __props)
			: __crucible_component;
		var __html = renderVNode(__vnode);
		return JSON.stringify({ html: __html, css: "", head: "" });
		`
	}

	return fmt.Sprintf(`(async function() {
	var __props = %s;
	var __slots = %s;
	var exports = {};
	var module = { exports: exports };
%s
%s
%s
})()`, propsJSON, slotsJSON, code, pick, invoke), nil
}

func marshalOrEmptyObject(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("🔴 marshal render input: %w", err)
	}
	return string(raw), nil
}
