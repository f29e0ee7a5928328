package crucible

import "testing"

func newTestResolver(t *testing.T, files map[string]string) (*Resolver, *VFS) {
	t.Helper()
	vfs := NewVFS()
	if err := vfs.FromJSON(files); err != nil {
		t.Fatalf("seed vfs: %v", err)
	}
	return NewResolver(vfs, defaultResolverConfig()), vfs
}

func TestResolverBuiltin(t *testing.T) {
	r, _ := newTestResolver(t, nil)
	res, err := r.Resolve("path", "/src/index.js")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Kind != ResolutionBuiltin || res.Builtin != "path" {
		t.Fatalf("expected builtin path, got %+v", res)
	}

	res2, err := r.Resolve("node:fs", "/src/index.js")
	if err != nil {
		t.Fatalf("resolve node:fs: %v", err)
	}
	if res2.Kind != ResolutionBuiltin || res2.Builtin != "fs" {
		t.Fatalf("expected builtin fs via node: prefix, got %+v", res2)
	}
}

func TestResolverRelativeFileExactAndExtension(t *testing.T) {
	r, _ := newTestResolver(t, map[string]string{
		"/src/index.js": "require('./util')",
		"/src/util.js":  "module.exports = {}",
	})

	res, err := r.Resolve("./util", "/src/index.js")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Kind != ResolutionFile || res.Path != "/src/util.js" {
		t.Fatalf("expected /src/util.js, got %+v", res)
	}
}

func TestResolverDirectoryIndex(t *testing.T) {
	r, _ := newTestResolver(t, map[string]string{
		"/src/lib/index.js": "module.exports = {}",
	})
	res, err := r.Resolve("./lib", "/src/app.js")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Path != "/src/lib/index.js" {
		t.Fatalf("expected index.js resolution, got %+v", res)
	}
}

func TestResolverPackageMain(t *testing.T) {
	r, _ := newTestResolver(t, map[string]string{
		"/node_modules/leftpad/package.json": `{"name":"leftpad","main":"dist/index.js"}`,
		"/node_modules/leftpad/dist/index.js": "module.exports = function() {}",
	})
	res, err := r.Resolve("leftpad", "/src/index.js")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Path != "/node_modules/leftpad/dist/index.js" {
		t.Fatalf("expected main field resolution, got %+v", res)
	}
}

func TestResolverPackageExportsPattern(t *testing.T) {
	r, _ := newTestResolver(t, map[string]string{
		"/node_modules/acme/package.json": `{"name":"acme","exports":{".":"./index.js","./*":"./lib/*.js"}}`,
		"/node_modules/acme/index.js":     "module.exports = {}",
		"/node_modules/acme/lib/widget.js": "module.exports = {}",
	})

	res, err := r.Resolve("acme/widget", "/src/index.js")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Path != "/node_modules/acme/lib/widget.js" {
		t.Fatalf("expected pattern-resolved widget.js, got %+v", res)
	}
}

func TestResolverPackageUpwardWalk(t *testing.T) {
	r, _ := newTestResolver(t, map[string]string{
		"/node_modules/shared/package.json": `{"name":"shared","main":"index.js"}`,
		"/node_modules/shared/index.js":     "module.exports = {}",
	})
	res, err := r.Resolve("shared", "/a/b/c/deep.js")
	if err != nil {
		t.Fatalf("resolve from nested dir: %v", err)
	}
	if res.Path != "/node_modules/shared/index.js" {
		t.Fatalf("expected upward walk to find shared, got %+v", res)
	}
}

func TestResolverTypescriptExtensions(t *testing.T) {
	r, _ := newTestResolver(t, map[string]string{
		"/src/index.js":                "require('./utils')",
		"/src/utils.ts":                "export const x = 1;",
		"/src/components/Button.tsx":   "export default 1;",
	})

	res, err := r.Resolve("./utils", "/src/index.js")
	if err != nil {
		t.Fatalf("resolve ./utils: %v", err)
	}
	if res.Path != "/src/utils.ts" {
		t.Fatalf("expected .ts probe to win, got %+v", res)
	}

	res2, err := r.Resolve("../utils", "/src/components/Button.tsx")
	if err != nil {
		t.Fatalf("resolve ../utils: %v", err)
	}
	if res2.Path != "/src/utils.ts" {
		t.Fatalf("expected parent-relative .ts probe, got %+v", res2)
	}
}

func TestResolverScopedPackageModuleField(t *testing.T) {
	r, _ := newTestResolver(t, map[string]string{
		"/node_modules/@scope/lib/package.json": `{"name":"@scope/lib","module":"index.mjs"}`,
		"/node_modules/@scope/lib/index.mjs":    "export default 1;",
	})

	res, err := r.Resolve("@scope/lib", "/src/index.js")
	if err != nil {
		t.Fatalf("resolve scoped package: %v", err)
	}
	if res.Path != "/node_modules/@scope/lib/index.mjs" {
		t.Fatalf("expected module field resolution, got %+v", res)
	}
}

func TestResolverExternalFallback(t *testing.T) {
	r, _ := newTestResolver(t, nil)
	res, err := r.Resolve("react-dom", "/src/index.js")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Kind != ResolutionExternal {
		t.Fatalf("expected external resolution, got %+v", res)
	}
	if res.URL != "https://esm.sh/react-dom" {
		t.Fatalf("unexpected CDN url: %s", res.URL)
	}
}

func TestResolverNotFound(t *testing.T) {
	r, _ := newTestResolver(t, nil)
	_, err := r.Resolve("./missing", "/src/index.js")
	if err == nil {
		t.Fatalf("expected not found error")
	}
	if re, ok := err.(*ResolverError); !ok || re.Kind != ResolverModuleNotFound {
		t.Fatalf("expected ResolverModuleNotFound, got %v", err)
	}
}

func TestResolverFormatInference(t *testing.T) {
	r, _ := newTestResolver(t, map[string]string{
		"/src/package.json": `{"type":"module"}`,
		"/src/index.js":     "export default 1;",
		"/src/legacy.cjs":   "module.exports = 1;",
	})

	res, err := r.Resolve("./index.js", "/src/app.js")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Format != formatModule {
		t.Fatalf("expected module format from package.json type, got %v", res.Format)
	}

	res2, err := r.Resolve("./legacy.cjs", "/src/app.js")
	if err != nil {
		t.Fatalf("resolve cjs: %v", err)
	}
	if res2.Format != formatCommonJS {
		t.Fatalf("expected commonjs format from .cjs extension, got %v", res2.Format)
	}
}
