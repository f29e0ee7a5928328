package crucible

import "testing"

func BenchmarkGenerateKey(b *testing.B) {
	props := map[string]any{"title": "bench", "items": []string{"First", "Second"}, "count": 3}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		GenerateKey("/pages/index.astro", props, "function component() {}")
	}
}

func BenchmarkCacheGetHit(b *testing.B) {
	c := NewCache(defaultCacheConfig())
	c.Set("hot", CacheEntry{HTML: "<p>hi</p>"})
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c.Get("hot")
	}
}

func BenchmarkRenderCached(b *testing.B) {
	h := NewHost(NewVFS(), defaultSandboxConfig())
	if err := h.Init(); err != nil {
		b.Fatalf("init host: %v", err)
	}
	b.Cleanup(h.Destroy)

	rr := NewRenderer(h, NewCache(defaultRendererCacheConfig()), nil)
	code := `function component() { return createElement("p", null, "bench"); }`
	first := rr.Render(code, "bench.jsx", RenderOptions{})
	if first.Error != "" {
		b.Fatalf("warm-up render failed: %s", first.Error)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result := rr.Render(code, "bench.jsx", RenderOptions{})
		if !result.Cached {
			b.Fatalf("expected cached render on iteration %d", i)
		}
	}
}

func BenchmarkParseHTMLChunks(b *testing.B) {
	html := `<html><head><title>t</title></head><body>A<!-- SUSPENSE:x -->B<!-- /SUSPENSE:x -->C</body></html>`
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		parseHTMLChunks(html)
	}
}
