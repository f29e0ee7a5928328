package crucible

import (
	"strings"
	"testing"
)

func newTestESMEnv(t *testing.T) (*VFS, *ESMLoader) {
	t.Helper()
	vfs := NewVFS()
	h := newTestHost(t)
	resolver := NewResolver(vfs, defaultResolverConfig())
	loader := NewESMLoader(h, vfs, resolver)
	return vfs, loader
}

func TestESMImportDefaultExport(t *testing.T) {
	vfs, loader := newTestESMEnv(t)
	if err := vfs.WriteFileRecursive("/src/greet.js", []byte(`export default "hello";`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	ns, err := loader.Import("file:///src/greet.js")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if ns["default"] != `"hello"` {
		t.Fatalf("expected default export to be JSON-encoded string, got %q", ns["default"])
	}
}

func TestESMImportResolvesDependency(t *testing.T) {
	vfs, loader := newTestESMEnv(t)
	if err := vfs.WriteFileRecursive("/src/util.js", []byte(`export default 42;`)); err != nil {
		t.Fatalf("write util: %v", err)
	}
	if err := vfs.WriteFileRecursive("/src/main.js", []byte(`import answer from "./util.js";
export default answer;`)); err != nil {
		t.Fatalf("write main: %v", err)
	}

	ns, err := loader.Import("file:///src/main.js")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if ns["default"] != "42" {
		t.Fatalf("expected default export 42, got %q", ns["default"])
	}
}

func TestESMImportCyclicDependencyDoesNotHang(t *testing.T) {
	vfs, loader := newTestESMEnv(t)
	if err := vfs.WriteFileRecursive("/src/a.js", []byte(`import "./b.js";
export default "a";`)); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := vfs.WriteFileRecursive("/src/b.js", []byte(`import "./a.js";
export default "b";`)); err != nil {
		t.Fatalf("write b: %v", err)
	}

	if _, err := loader.Import("file:///src/a.js"); err != nil {
		t.Fatalf("expected cyclic import to resolve without error, got %v", err)
	}
}

func TestParseImportSpecifiers(t *testing.T) {
	source := `
		import Foo from "./foo.js";
		import { bar } from "bar-pkg";
		export * from "./reexport.js";
		const p = import("./dynamic.js");
	`
	specs := parseImportSpecifiers(source)
	want := []string{"./foo.js", "bar-pkg", "./reexport.js", "./dynamic.js"}
	if len(specs) != len(want) {
		t.Fatalf("expected %d specifiers, got %d: %v", len(want), len(specs), specs)
	}
	for i, w := range want {
		if specs[i] != w {
			t.Errorf("specifier %d = %q, want %q", i, specs[i], w)
		}
	}
}

func TestRewriteESMToCJS(t *testing.T) {
	out := rewriteESMToCJS(`export default function() { return import.meta.url; }`)
	if strings.Contains(out, "export default") {
		t.Fatalf("expected export default to be rewritten, got %q", out)
	}
	if strings.Contains(out, "import.meta") {
		t.Fatalf("expected import.meta to be rewritten, got %q", out)
	}
	if !strings.Contains(out, "module.exports.default") {
		t.Fatalf("expected module.exports.default assignment, got %q", out)
	}
}
