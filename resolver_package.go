package crucible

import (
	"encoding/json"
	"strings"
	"sync"
)

// packageJSON is the subset of package.json fields resolution cares
// about.
type packageJSON struct {
	Name    string          `json:"name"`
	Main    string          `json:"main"`
	Module  string          `json:"module"`
	Type    string          `json:"type"`
	Exports json.RawMessage `json:"exports"`
}

// packageCache memoizes parsed package.json files keyed by absolute
// path, including negative (not-found/invalid) entries.
type packageCache struct {
	mu      sync.Mutex
	entries map[string]*packageJSON // nil value = cached negative
}

func newPackageCache() *packageCache {
	return &packageCache{entries: make(map[string]*packageJSON)}
}

// load reads and parses path's package.json via the VFS, caching both
// positive and negative results.
func (pc *packageCache) load(vfs *VFS, path string) *packageJSON {
	pc.mu.Lock()
	if pkg, ok := pc.entries[path]; ok {
		pc.mu.Unlock()
		return pkg
	}
	pc.mu.Unlock()

	raw, err := vfs.ReadFile(path)
	var pkg *packageJSON
	if err == nil {
		var parsed packageJSON
		if jsonErr := json.Unmarshal(raw, &parsed); jsonErr == nil {
			pkg = &parsed
		}
	}

	pc.mu.Lock()
	pc.entries[path] = pkg
	pc.mu.Unlock()
	return pkg
}

// moduleFormat is the ESM-vs-CommonJS classification of a resolved file.
type moduleFormat string

const (
	formatCommonJS moduleFormat = "commonjs"
	formatModule   moduleFormat = "module"
	formatJSON     moduleFormat = "json"
)

// inferFormat classifies filename: extension first,
// falling back to the nearest ancestor package.json's "type" field.
func inferFormat(vfs *VFS, pc *packageCache, filename string) moduleFormat {
	switch {
	case strings.HasSuffix(filename, ".json"):
		return formatJSON
	case strings.HasSuffix(filename, ".mjs"):
		return formatModule
	case strings.HasSuffix(filename, ".cjs"):
		return formatCommonJS
	}

	dir, _ := splitPath(filename)
	for {
		pkgPath := joinPOSIX(dir, "package.json")
		if pkg := pc.load(vfs, pkgPath); pkg != nil {
			if pkg.Type == "module" {
				return formatModule
			}
			return formatCommonJS
		}
		if dir == "/" || dir == "" {
			break
		}
		parent, _ := splitPath(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return formatCommonJS
}

func joinPOSIX(dir, name string) string {
	if dir == "" || dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// resolveExports applies package.json exports
// semantics: string exports apply only to ".", object exports are
// matched by exact subpath then by single-"*" pattern, and nested
// condition objects are resolved via import/require/node/default order.
func resolveExports(exportsField json.RawMessage, subpath string) (string, bool) {
	if len(exportsField) == 0 {
		return "", false
	}

	var asString string
	if err := json.Unmarshal(exportsField, &asString); err == nil {
		if subpath == "." {
			return asString, true
		}
		return "", false
	}

	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(exportsField, &asMap); err != nil {
		return "", false
	}

	if target, ok := asMap[subpath]; ok {
		return resolveCondition(target)
	}

	var bestPattern string
	var bestCapture string
	for pattern := range asMap {
		idx := strings.Index(pattern, "*")
		if idx == -1 {
			continue
		}
		prefix, suffix := pattern[:idx], pattern[idx+1:]
		if strings.HasPrefix(subpath, prefix) && strings.HasSuffix(subpath, suffix) &&
			len(subpath) >= len(prefix)+len(suffix) {
			capture := subpath[len(prefix) : len(subpath)-len(suffix)]
			if len(pattern) > len(bestPattern) {
				bestPattern = pattern
				bestCapture = capture
			}
		}
	}
	if bestPattern == "" {
		return "", false
	}
	target, ok := resolveCondition(asMap[bestPattern])
	if !ok {
		return "", false
	}
	return strings.Replace(target, "*", bestCapture, 1), true
}

var conditionOrder = []string{"import", "require", "node", "default"}

func resolveCondition(raw json.RawMessage) (string, bool) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, true
	}

	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return "", false
	}
	for _, cond := range conditionOrder {
		if inner, ok := asMap[cond]; ok {
			return resolveCondition(inner)
		}
	}
	return "", false
}
