package crucible

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// esmState tracks a module record through
// unlinked, linking, linked, evaluating, evaluated,
// plus a terminal error state.
type esmState int

const (
	esmUnlinked esmState = iota
	esmLinking
	esmLinked
	esmEvaluating
	esmEvaluated
	esmError
)

// esmModuleRecord tracks one ESM module through link and evaluate.
// Re-entry during linking or evaluating returns the
// record as-is, the same cycle-tolerance contract CommonJS uses.
type esmModuleRecord struct {
	url          string
	source       string
	state        esmState
	dependencies []string
	namespace    map[string]string // exported name -> JSON-encoded value
	evalErr      error
}

// esmSourceFetcher retrieves an ESM module's source by URL. file: URLs
// are served from the VFS; http(s): URLs are optional and only present
// when the embedder wires one in.
type esmSourceFetcher func(url string) (string, error)

// ESMLoader is the two-phase link/evaluate module pipeline.
// It executes linked modules through the Sandbox Host's CommonJS wrapper
// path.
type ESMLoader struct {
	host     *Host
	vfs      *VFS
	resolver *Resolver
	fetchExt esmSourceFetcher

	mu      sync.Mutex
	records map[string]*esmModuleRecord
}

// NewESMLoader wires an ESMLoader to its Host, VFS and Resolver, and
// installs itself as the host's import.meta.resolve implementation.
func NewESMLoader(host *Host, vfs *VFS, resolver *Resolver) *ESMLoader {
	l := &ESMLoader{
		host:     host,
		vfs:      vfs,
		resolver: resolver,
		records:  make(map[string]*esmModuleRecord),
	}
	host.SetResolveFunc(func(specifier, fromFile string) (string, error) {
		return l.resolveModuleURL(specifier, fromFile)
	})
	return l
}

// SetHTTPFetcher wires the optional http(s): source fetcher.
func (l *ESMLoader) SetHTTPFetcher(fn esmSourceFetcher) { l.fetchExt = fn }

// importSpecifierPattern pattern-matches import/export-from/dynamic
// import() forms. This is intentionally a lexical scan rather than
// a full parser; the inputs here are component bundles with
// conventional import syntax, not arbitrary user JS.
var importSpecifierPattern = regexp.MustCompile(
	`(?:import\s+(?:[^'"]*?\s+from\s+)?|export\s+(?:\*|\{[^}]*\})\s+from\s+|import\()\s*['"]([^'"]+)['"]`,
)

func parseImportSpecifiers(source string) []string {
	matches := importSpecifierPattern.FindAllStringSubmatch(source, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		spec := m[1]
		if seen[spec] {
			continue
		}
		seen[spec] = true
		out = append(out, spec)
	}
	return out
}

// Import links then evaluates url, returning the
// module's namespace as name -> JSON-encoded-value.
func (l *ESMLoader) Import(url string) (map[string]string, error) {
	rec, err := l.link(url, "")
	if err != nil {
		return nil, err
	}
	if err := l.evaluate(rec); err != nil {
		return nil, err
	}
	return rec.namespace, nil
}

// link implements the Link phase, recursing into each dependency
// specifier. fromURL is used to resolve relative specifiers; empty for
// the entry module.
func (l *ESMLoader) link(urlOrSpecifier, fromURL string) (*esmModuleRecord, error) {
	url := urlOrSpecifier
	if fromURL != "" {
		resolved, err := l.resolveModuleURL(urlOrSpecifier, fromURL)
		if err != nil {
			return nil, err
		}
		url = resolved
	}

	l.mu.Lock()
	if rec, ok := l.records[url]; ok {
		l.mu.Unlock()
		// Cycle: re-entry during linking returns the in-progress record
		// untouched.
		return rec, nil
	}
	rec := &esmModuleRecord{url: url, state: esmLinking}
	l.records[url] = rec
	l.mu.Unlock()

	source, err := l.fetchSource(url)
	if err != nil {
		rec.state = esmError
		rec.evalErr = err
		return nil, err
	}
	rec.source = source
	rec.dependencies = parseImportSpecifiers(source)

	for _, dep := range rec.dependencies {
		if IsBuiltin(dep) {
			continue
		}
		if _, err := l.link(dep, url); err != nil {
			rec.state = esmError
			rec.evalErr = err
			return nil, err
		}
	}

	rec.state = esmLinked
	return rec, nil
}

func (l *ESMLoader) resolveModuleURL(specifier, fromURL string) (string, error) {
	fromFile := strings.TrimPrefix(fromURL, "file://")
	res, err := l.resolver.Resolve(specifier, fromFile)
	if err != nil {
		return "", err
	}
	switch res.Kind {
	case ResolutionFile:
		return "file://" + res.Path, nil
	case ResolutionExternal:
		return res.URL, nil
	case ResolutionBuiltin:
		return "node:" + res.Builtin, nil
	default:
		return "", &ResolverError{Kind: ResolverModuleNotFound, Specifier: specifier, FromFile: fromFile}
	}
}

func (l *ESMLoader) fetchSource(url string) (string, error) {
	if strings.HasPrefix(url, "file://") {
		return l.vfs.ReadFileString(strings.TrimPrefix(url, "file://"))
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		if l.fetchExt != nil {
			return l.fetchExt(url)
		}
		return l.resolver.FetchExternal(url)
	}
	return "", fmt.Errorf("🔴 unsupported module URL scheme: %s", url)
}

// evaluate implements the Evaluate phase: depth-first over linked
// dependencies. Re-entry during evaluating returns the
// module's current (possibly empty) namespace rather than recursing.
func (l *ESMLoader) evaluate(rec *esmModuleRecord) error {
	switch rec.state {
	case esmEvaluated:
		return nil
	case esmEvaluating:
		return nil // cycle: caller sees the partial namespace already on rec
	case esmError:
		return rec.evalErr
	}

	rec.state = esmEvaluating
	rec.namespace = make(map[string]string)

	// Register this module's (still empty) exports object before touching
	// dependencies, so a cyclic import back into this module observes the
	// live partial exports instead of failing to resolve.
	filename := strings.TrimPrefix(rec.url, "file://")
	placeholder := fmt.Sprintf(`__crucible_module_registry[%q] = __crucible_module_registry[%q] || {};`, filename, filename)
	if _, err := l.host.Eval(placeholder, filename); err != nil {
		rec.state = esmError
		rec.evalErr = err
		return err
	}

	for _, dep := range rec.dependencies {
		if IsBuiltin(dep) {
			continue
		}
		depURL, err := l.resolveModuleURL(dep, rec.url)
		if err != nil {
			rec.state = esmError
			rec.evalErr = err
			return err
		}
		l.mu.Lock()
		depRec := l.records[depURL]
		l.mu.Unlock()
		if depRec == nil {
			continue
		}
		if err := l.evaluate(depRec); err != nil {
			rec.state = esmError
			rec.evalErr = err
			return err
		}
	}

	exportsJSON, err := l.evalAsModule(rec.source, filename)
	if err != nil {
		rec.state = esmError
		rec.evalErr = err
		return err
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(exportsJSON), &decoded); err == nil {
		for name, value := range decoded {
			rec.namespace[name] = string(value)
		}
	} else {
		rec.namespace["default"] = exportsJSON
	}
	rec.state = esmEvaluated
	return nil
}

// evalAsModule submits ESM source through the Sandbox Host's CommonJS
// wrapper, additionally injecting import.meta.
func (l *ESMLoader) evalAsModule(source, filename string) (string, error) {
	// Dependencies evaluated earlier in this import have already placed
	// their live exports in the in-context registry, so require() prefers
	// that before falling back to the host's CommonJS bridge; the
	// fallback still serves builtins and files loaded outside this
	// import graph.
	wrapped := fmt.Sprintf(`
(function() {
	var __cjsModule = { exports: (__crucible_module_registry[%q] || {}) };
	__crucible_module_registry[%q] = __cjsModule.exports;
	var importMeta = { url: %q, resolve: function(spec) { return __crucible_require_resolve(spec, %q); } };
	var __require = function(spec) {
		try {
			var resolved = __crucible_require_resolve(spec, %q);
			var file = resolved.indexOf("file://") === 0 ? resolved.slice(7) : resolved;
			if (__crucible_module_registry[file] !== undefined) return __crucible_module_registry[file];
		} catch (e) {}
		return __crucible_require(spec, %q);
	};
	(function(exports, module, require, __filename, __dirname) {
		var importmeta = importMeta;
%s
	})(__cjsModule.exports, __cjsModule, __require, %q, %q);
	__crucible_module_registry[%q] = __cjsModule.exports;
	return JSON.stringify(__cjsModule.exports);
})()`,
		filename, filename, "file://"+filename, filename, filename, filename,
		rewriteESMToCJS(source), filename, dirOf(filename), filename)

	result, err := l.host.Eval(wrapped, filename)
	if err != nil {
		return "", &LoaderError{Kind: LoaderCompilationFailure, Filename: filename, Message: err.Error()}
	}
	return result.Value, nil
}

// rewriteESMToCJS performs the minimal textual substitution needed to run
// ESM source through the CommonJS enclosure: import declarations become
// require() calls, `export default X` becomes `module.exports.default = X`,
// named export declarations are mirrored onto module.exports, and
// `import.meta` becomes the injected local. Aliased named imports
// (`{ a as b }`) and re-export forms stay out of scope; this rewriter only needs
// enough fidelity to evaluate component modules and their dependencies.
func rewriteESMToCJS(source string) string {
	out := importNamespacePattern.ReplaceAllString(source, `var $1 = require($2);`)
	out = importNamedPattern.ReplaceAllString(out, `var $1 = require($2);`)
	out = importDefaultPattern.ReplaceAllString(out, `var $1 = __crucible_interop(require($2));`)
	out = importBarePattern.ReplaceAllString(out, `require($1);`)
	out = exportDefaultPattern.ReplaceAllString(out, "module.exports.default = ")

	var exported []string
	for _, m := range exportNamedDeclPattern.FindAllStringSubmatch(out, -1) {
		exported = append(exported, m[2])
	}
	out = exportNamedDeclPattern.ReplaceAllString(out, "$1 $2")
	for _, m := range exportListPattern.FindAllStringSubmatch(out, -1) {
		for _, name := range strings.Split(m[1], ",") {
			name = strings.TrimSpace(name)
			if name != "" && !strings.Contains(name, " ") {
				exported = append(exported, name)
			}
		}
	}
	out = exportListPattern.ReplaceAllString(out, "")

	out = importMetaPattern.ReplaceAllString(out, "importmeta")
	for _, name := range exported {
		out += "\nmodule.exports." + name + " = " + name + ";"
	}
	return out
}

var (
	importDefaultPattern   = regexp.MustCompile(`(?m)^\s*import\s+([A-Za-z_$][\w$]*)\s+from\s+(['"][^'"]+['"])\s*;?`)
	importNamedPattern     = regexp.MustCompile(`(?m)^\s*import\s*(\{[^}]*\})\s*from\s+(['"][^'"]+['"])\s*;?`)
	importNamespacePattern = regexp.MustCompile(`(?m)^\s*import\s*\*\s*as\s+([A-Za-z_$][\w$]*)\s+from\s+(['"][^'"]+['"])\s*;?`)
	importBarePattern      = regexp.MustCompile(`(?m)^\s*import\s+(['"][^'"]+['"])\s*;?`)
	exportDefaultPattern   = regexp.MustCompile(`export\s+default\s+`)
	exportNamedDeclPattern = regexp.MustCompile(`(?m)^\s*export\s+(const|let|var|function|class)\s+([A-Za-z_$][\w$]*)`)
	exportListPattern      = regexp.MustCompile(`(?m)^\s*export\s*\{([^}]*)\}\s*;?\s*$`)
	importMetaPattern      = regexp.MustCompile(`import\.meta`)
)

func dirOf(filename string) string {
	dir, _ := splitPath(filename)
	return dir
}
