package crucible

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// moduleDescriptor is one entry in the CommonJS module arena. It is
// inserted into the cache *before* evaluation so a cyclic require()
// sees the (possibly still-empty) exports object instead of recursing
// forever.
type moduleDescriptor struct {
	filename string
	exports  string // JSON-serialized exports, set once evaluation completes
	loaded   bool
}

// CommonJSLoader implements require(id) bound to a resolver/VFS pair.
type CommonJSLoader struct {
	resolver *Resolver
	vfs      *VFS
	builtins *BuiltinRegistry
	host     *Host

	mu    sync.Mutex
	cache map[string]*moduleDescriptor
}

// NewCommonJSLoader wires a loader to its Resolver and Sandbox Host, and
// installs itself as the host's require() implementation.
func NewCommonJSLoader(host *Host, resolver *Resolver, vfs *VFS, builtins *BuiltinRegistry) *CommonJSLoader {
	l := &CommonJSLoader{
		resolver: resolver,
		vfs:      vfs,
		builtins: builtins,
		host:     host,
		cache:    make(map[string]*moduleDescriptor),
	}
	host.SetRequireFunc(l.require)
	return l
}

// require resolves, loads and evaluates a specifier. It is called from the
// sandbox's native __crucible_require bridge; builtins are handled
// there directly, so by the time control reaches here specifier always
// names user code or an external module.
func (l *CommonJSLoader) require(specifier, fromFile string) (string, string, error) {
	res, err := l.resolver.Resolve(specifier, fromFile)
	if err != nil {
		return "", "", err
	}

	switch res.Kind {
	case ResolutionExternal:
		return "", "", &LoaderError{Kind: LoaderRequireOfExternal, Filename: specifier, Message: "requires async import"}
	case ResolutionBuiltin:
		return "", "", fmt.Errorf("🔴 require(%q): builtin resolution should not reach the CommonJS loader", specifier)
	}

	return l.loadFile(res.Path)
}

func (l *CommonJSLoader) loadFile(filename string) (string, string, error) {
	l.mu.Lock()
	if desc, ok := l.cache[filename]; ok {
		l.mu.Unlock()
		return filename, desc.exports, nil
	}
	desc := &moduleDescriptor{filename: filename, exports: "{}"}
	l.cache[filename] = desc
	l.mu.Unlock()

	exportsJSON, err := l.evaluate(desc)
	if err != nil {
		l.mu.Lock()
		delete(l.cache, filename)
		l.mu.Unlock()
		return "", "", err
	}

	l.mu.Lock()
	desc.loaded = true
	desc.exports = exportsJSON
	l.mu.Unlock()
	return filename, exportsJSON, nil
}

func (l *CommonJSLoader) evaluate(desc *moduleDescriptor) (string, error) {
	if strings.HasSuffix(desc.filename, ".json") {
		raw, err := l.vfs.ReadFileString(desc.filename)
		if err != nil {
			return "", err
		}
		var probe interface{}
		if err := json.Unmarshal([]byte(raw), &probe); err != nil {
			return "", &LoaderError{Kind: LoaderCompilationFailure, Filename: desc.filename, Message: err.Error()}
		}
		return raw, nil
	}
	if strings.HasSuffix(desc.filename, ".node") {
		return "", &LoaderError{Kind: LoaderNativeUnsupported, Filename: desc.filename, Message: "native modules unsupported"}
	}

	source, err := l.vfs.ReadFileString(desc.filename)
	if err != nil {
		return "", err
	}

	// ESM-shaped source reached through require() is run through the same
	// lexical CJS rewrite the ESM loader uses; on plain CommonJS source
	// the rewrite is a no-op (no import/export statements to touch).
	source = rewriteESMToCJS(source)

	// require() runs synchronously from inside the sandboxed code of
	// whichever module is already mid-evaluation (the __crucible_require
	// bridge in sandbox_globals.go), so this module's body must be
	// evaluated on the Host's non-locking nested path rather than
	// EvalModule: re-entering the host's single-outstanding-eval mutex
	// here would deadlock on the very first non-builtin require (see
	// sandbox.go's evalModuleNested for the full rationale).
	result, err := l.host.evalModuleNested(source, desc.filename)
	if err != nil {
		return "", &LoaderError{Kind: LoaderCompilationFailure, Filename: desc.filename, Message: err.Error()}
	}
	return result.Value, nil
}

// Invalidate drops a file from the module cache, forcing re-evaluation
// on next require (used when the VFS content for filename changes).
func (l *CommonJSLoader) Invalidate(filename string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, filename)
}
