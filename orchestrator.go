package crucible

import (
	"fmt"
	"strings"
	"sync"
)

// SSRDecision is the outcome of should_use_ssr.
type SSRDecision struct {
	Use    bool
	Reason string
}

// PageOptions configures render_page.
type PageOptions struct {
	Props   map[string]any
	Title   string
	Lang    string
	BaseURL string
}

// Orchestrator is the public façade: mode-gated SSR, file sync into the
// VFS, cache stats, full-document assembly. It is an injectable struct
// rather than a package-level singleton so embedders can run more than
// one; GetSharedOrchestrator/ResetSharedOrchestrator below provide the
// singleton convenience for callers who want it.
type Orchestrator struct {
	cfg OrchestratorConfig

	vfs       *VFS
	host      *Host
	resolver  *Resolver
	cjsLoader *CommonJSLoader
	esmLoader *ESMLoader
	renderer  *Renderer
	cache     *Cache
	streaming *StreamingRenderer

	mu          sync.Mutex
	initialized bool
	initErr     error
	enabled     bool
}

// New builds an Orchestrator from options without performing any
// sandbox work; call Init before Render.
func New(opts ...OrchestratorOption) *Orchestrator {
	cfg := defaultOrchestratorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Orchestrator{cfg: cfg, enabled: cfg.Mode != ModeDisabled}
}

// Init lazily initializes the Sandbox Host and the Renderer shims.
// Safe to call more than once; only the first call does
// work. A failed Init disables SSR rather than panicking.
func (o *Orchestrator) Init() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.initialized {
		return o.initErr
	}
	o.initialized = true

	if o.cfg.Mode == ModeDisabled {
		o.enabled = false
		return nil
	}

	o.vfs = NewVFS()
	o.host = NewHost(o.vfs, o.cfg.Sandbox)
	if err := o.host.Init(); err != nil {
		o.enabled = false
		o.initErr = fmt.Errorf("🔴 orchestrator init: sandbox host: %w", err)
		o.cfg.Logger.LogErr("orchestrator init", err)
		return o.initErr
	}

	o.resolver = NewResolver(o.vfs, o.cfg.Resolver)
	o.cjsLoader = NewCommonJSLoader(o.host, o.resolver, o.vfs, o.host.builtins)
	o.esmLoader = NewESMLoader(o.host, o.vfs, o.resolver)
	o.cache = NewCache(o.cfg.Cache)
	o.renderer = NewRenderer(o.host, o.cache, o.cfg.Logger)
	o.streaming = NewStreamingRenderer(o.cfg.Stream)

	o.enabled = true
	return nil
}

// shouldUseSSR decides whether a file gets server-side rendered.
func (o *Orchestrator) shouldUseSSR(filename, code string) SSRDecision {
	if !o.enabled || o.cfg.Mode == ModeDisabled {
		return SSRDecision{Use: false, Reason: "ssr disabled"}
	}
	if o.cfg.Mode == ModeAlways {
		return SSRDecision{Use: true, Reason: "mode=always"}
	}

	fw := DetectFramework(filename, code)
	if len(o.cfg.EnabledFrameworks) > 0 && !o.cfg.EnabledFrameworks[fw] {
		return SSRDecision{Use: false, Reason: fmt.Sprintf("framework %q disabled", fw)}
	}

	for _, suffix := range []string{".astro", ".vue", ".svelte"} {
		if strings.HasSuffix(filename, suffix) {
			return SSRDecision{Use: true, Reason: "mode=auto, matched " + suffix}
		}
	}
	return SSRDecision{Use: false, Reason: "mode=auto, filename does not match a framework suffix"}
}

// ShouldUseSSR is the public form of should_use_ssr.
func (o *Orchestrator) ShouldUseSSR(filename, code string) SSRDecision {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.shouldUseSSR(filename, code)
}

// Render renders a component, returning nil when SSR is not
// applicable or disabled, never an error.
func (o *Orchestrator) Render(code, filename string, props map[string]any) *RenderResult {
	o.mu.Lock()
	enabled := o.enabled
	renderer := o.renderer
	o.mu.Unlock()
	if !enabled || renderer == nil {
		return nil
	}
	if decision := o.shouldUseSSR(filename, code); !decision.Use {
		return nil
	}

	cacheEnabled := o.cfg.CacheEnabled
	result := renderer.Render(code, filename, RenderOptions{Props: props, Cache: &cacheEnabled})
	return &result
}

// RenderPage produces a full HTML document
// with <head> injection, or nil when SSR does not apply.
func (o *Orchestrator) RenderPage(code, filename string, opts PageOptions) *string {
	result := o.Render(code, filename, opts.Props)
	if result == nil {
		return nil
	}

	title := opts.Title
	if title == "" {
		title = o.cfg.DefaultTitle
	}
	lang := opts.Lang
	if lang == "" {
		lang = "en"
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = o.cfg.BaseURL
	}

	var headExtra strings.Builder
	if baseURL != "" {
		fmt.Fprintf(&headExtra, `<base href=%q>`, baseURL)
	}
	headExtra.WriteString(result.Head)
	if result.CSS != "" {
		fmt.Fprintf(&headExtra, `<style>%s</style>`, result.CSS)
	}

	doc := fmt.Sprintf(`<!DOCTYPE html>
<html lang=%q>
<head>
<meta charset="utf-8">
<title>%s</title>
%s
</head>
<body>
%s
</body>
</html>`, lang, escapeHTMLGo(title), headExtra.String(), result.HTML)
	return &doc
}

// PrerenderPageInput is one page passed to PrerenderPages.
type PrerenderPageInput struct {
	Code     string
	Filename string
	Props    map[string]any
}

// PrerenderPages renders a batch of pages; only
// successful renders are included in the result.
func (o *Orchestrator) PrerenderPages(pages []PrerenderPageInput) map[string]string {
	out := make(map[string]string)
	for _, page := range pages {
		doc := o.RenderPage(page.Code, page.Filename, PageOptions{Props: page.Props})
		if doc == nil {
			continue
		}
		out[page.Filename] = *doc
	}
	return out
}

// SyncFiles copies build artifacts
// into the shared VFS so resolver/loaders can see them.
func (o *Orchestrator) SyncFiles(files map[string]string) error {
	o.mu.Lock()
	vfs := o.vfs
	o.mu.Unlock()
	if vfs == nil {
		return fmt.Errorf("🔴 sync_files: orchestrator not initialized")
	}
	return vfs.FromJSON(files)
}

// GetCacheStats reports render-cache counters, nil when the
// cache is not initialized or disabled.
func (o *Orchestrator) GetCacheStats() *CacheStats {
	o.mu.Lock()
	cache := o.cache
	o.mu.Unlock()
	if cache == nil {
		return nil
	}
	stats := cache.Stats()
	return &stats
}

// ClearCache empties the render cache.
func (o *Orchestrator) ClearCache() {
	o.mu.Lock()
	cache := o.cache
	o.mu.Unlock()
	if cache != nil {
		cache.Clear()
	}
}

// InvalidateCache evicts everything derived from filename:
// drops every cache entry whose key belongs to that component.
func (o *Orchestrator) InvalidateCache(filename string) {
	o.mu.Lock()
	cache := o.cache
	cjs := o.cjsLoader
	o.mu.Unlock()
	if cache != nil {
		cache.InvalidateComponent(filename)
	}
	if cjs != nil {
		cjs.Invalidate(filename)
	}
}

// Streaming exposes the StreamingRenderer for callers that need
// render_to_stream / render_to_stream_with_suspense directly.
func (o *Orchestrator) Streaming() *StreamingRenderer {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.streaming
}

// VFS exposes the shared filesystem, e.g. for embedders that want to
// inspect synced files directly.
func (o *Orchestrator) VFS() *VFS {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.vfs
}

// Destroy tears down the sandbox and cancels live streams; idempotent.
func (o *Orchestrator) Destroy() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.host != nil {
		o.host.Destroy()
	}
	if o.streaming != nil {
		o.streaming.CancelAllStreams()
	}
	o.enabled = false
}

// sharedOrchestrator backs GetSharedOrchestrator/ResetSharedOrchestrator,
// the optional process-wide convenience singleton. The injectable
// Orchestrator struct stays the primary API; this exists for embedders
// that want exactly one.
var (
	sharedMu           sync.Mutex
	sharedOrchestrator *Orchestrator
)

// GetSharedOrchestrator returns (creating if necessary) a process-wide
// Orchestrator built from opts. Subsequent calls ignore opts and return
// the existing instance until ResetSharedOrchestrator is called.
func GetSharedOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedOrchestrator == nil {
		sharedOrchestrator = New(opts...)
	}
	return sharedOrchestrator
}

// ResetSharedOrchestrator destroys and clears the process-wide instance,
// if any.
func ResetSharedOrchestrator() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedOrchestrator != nil {
		sharedOrchestrator.Destroy()
	}
	sharedOrchestrator = nil
}
