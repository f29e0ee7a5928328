package crucible

import (
	"strings"
	"testing"
)

func TestOrchestratorShouldUseSSRAutoMode(t *testing.T) {
	o := New(WithMode(ModeAuto))
	if err := o.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer o.Destroy()

	if d := o.ShouldUseSSR("page.astro", ""); !d.Use {
		t.Fatalf("expected .astro to be used in auto mode, got %+v", d)
	}
	if d := o.ShouldUseSSR("script.go", ""); d.Use {
		t.Fatalf("expected non-framework filename to be skipped in auto mode, got %+v", d)
	}
}

func TestOrchestratorDisabledModeNeverRenders(t *testing.T) {
	o := New(WithMode(ModeDisabled))
	if err := o.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer o.Destroy()

	result := o.Render(`function component() { return createElement("p", null, "x"); }`, "page.jsx", nil)
	if result != nil {
		t.Fatalf("expected disabled mode to never render, got %+v", result)
	}
}

func TestOrchestratorAlwaysModeRendersAnyFile(t *testing.T) {
	o := New(WithMode(ModeAlways))
	if err := o.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer o.Destroy()

	code := `function component() { return createElement("p", null, "hi"); }`
	result := o.Render(code, "weird-name.txt", nil)
	if result == nil {
		t.Fatalf("expected mode=always to render regardless of filename")
	}
	if result.Error != "" {
		t.Fatalf("unexpected render error: %s", result.Error)
	}
}

func TestOrchestratorRenderPageWrapsDocument(t *testing.T) {
	o := New(WithMode(ModeAlways), WithDefaultTitle("My Site"))
	if err := o.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer o.Destroy()

	code := `function component() { return createElement("p", null, "hi"); }`
	doc := o.RenderPage(code, "page.jsx", PageOptions{})
	if doc == nil {
		t.Fatalf("expected a rendered document")
	}
	if !strings.Contains(*doc, "<!DOCTYPE html>") || !strings.Contains(*doc, "My Site") {
		t.Fatalf("expected full document with title, got %s", *doc)
	}
}

func TestOrchestratorPrerenderPagesSkipsNonSSR(t *testing.T) {
	o := New(WithMode(ModeAuto))
	if err := o.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer o.Destroy()

	pages := []PrerenderPageInput{
		{Code: `function component() { return createElement("p", null, "hi"); }`, Filename: "page.astro"},
		{Code: "not ssr eligible", Filename: "script.go"},
	}
	out := o.PrerenderPages(pages)
	if _, ok := out["page.astro"]; !ok {
		t.Fatalf("expected page.astro to be prerendered")
	}
	if _, ok := out["script.go"]; ok {
		t.Fatalf("expected script.go to be skipped")
	}
}

func TestOrchestratorCacheStatsAndInvalidate(t *testing.T) {
	o := New(WithMode(ModeAlways))
	if err := o.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer o.Destroy()

	code := `function component() { return createElement("p", null, "hi"); }`
	o.Render(code, "page.jsx", nil)
	o.Render(code, "page.jsx", nil)

	stats := o.GetCacheStats()
	if stats == nil || stats.Hits == 0 {
		t.Fatalf("expected at least one cache hit, got %+v", stats)
	}

	o.InvalidateCache("page.jsx")
	o.ClearCache()
	stats2 := o.GetCacheStats()
	if stats2 == nil || stats2.Size != 0 {
		t.Fatalf("expected empty cache after ClearCache, got %+v", stats2)
	}
}

func TestOrchestratorSyncFiles(t *testing.T) {
	o := New(WithMode(ModeAuto))
	if err := o.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer o.Destroy()

	if err := o.SyncFiles(map[string]string{"/pages/index.astro": "<h1>hi</h1>"}); err != nil {
		t.Fatalf("sync files: %v", err)
	}
	if !o.VFS().Exists("/pages/index.astro") {
		t.Fatalf("expected synced file to be present in VFS")
	}
}

func TestOrchestratorDestroyIdempotent(t *testing.T) {
	o := New(WithMode(ModeAuto))
	if err := o.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	o.Destroy()
	o.Destroy()
}
