package crucible

import (
	"fmt"

	"github.com/buke/quickjs-go"
)

// builtinModuleNames is the full trusted set exposed to sandboxed code.
// Anything not in this set is resolved as user code or an
// external CDN module, never as a built-in.
var builtinModuleNames = map[string]bool{
	"path":            true,
	"events":          true,
	"buffer":          true,
	"fs":              true,
	"crypto":          true,
	"stream":          true,
	"util":            true,
	"process":         true,
	"timers":          true,
	"timers/promises": true,
	"url":             true,
	"os":              true,
}

var builtinSources = map[string]string{
	"path":            pathBuiltinSource,
	"events":          eventsBuiltinSource,
	"buffer":          bufferBuiltinSource,
	"fs":              fsBuiltinSource,
	"crypto":          cryptoBuiltinSource,
	"stream":          streamBuiltinSource,
	"util":            utilBuiltinSource,
	"timers":          timersBuiltinSource,
	"timers/promises": timersPromisesBuiltinSource,
	"url":             urlBuiltinSource,
	"os":              osBuiltinSource,
}

// IsBuiltin reports whether specifier names a trusted built-in module
//, after stripping an optional "node:" prefix.
func IsBuiltin(specifier string) bool {
	return builtinModuleNames[stripNodePrefix(specifier)]
}

func stripNodePrefix(specifier string) string {
	const prefix = "node:"
	if len(specifier) > len(prefix) && specifier[:len(prefix)] == prefix {
		return specifier[len(prefix):]
	}
	return specifier
}

// BuiltinRegistry evaluates each built-in's JS namespace exactly once and
// keeps the live quickjs.Value around so repeat requires for the same
// built-in see the same object identity, matching Node's own module
// cache behavior for built-ins.
type BuiltinRegistry struct {
	host   *Host
	values map[string]quickjs.Value
}

func newBuiltinRegistry(h *Host) *BuiltinRegistry {
	return &BuiltinRegistry{
		host:   h,
		values: make(map[string]quickjs.Value),
	}
}

// AttachVFS wires the fs built-in's native bridge to a live filesystem.
// Until this is called, any fs method throws FilesystemNotInitialized.
func (r *BuiltinRegistry) AttachVFS(vfs *VFS) {
	r.host.vfs = vfs
}

// Resolve evaluates (once) and returns the namespace object for a
// built-in specifier. Called both by the native __crucible_builtin
// bridge and by the __crucible_require bridge when require() names a
// built-in.
func (r *BuiltinRegistry) Resolve(name string) (quickjs.Value, error) {
	name = stripNodePrefix(name)
	if !builtinModuleNames[name] {
		return quickjs.Value{}, fmt.Errorf("🔴 %s is not a built-in module", name)
	}
	if v, ok := r.values[name]; ok {
		return v, nil
	}

	if name == "process" {
		v := r.host.ctx.Globals().Get("process")
		r.values[name] = v
		return v, nil
	}

	src, ok := builtinSources[name]
	if !ok {
		return quickjs.Value{}, fmt.Errorf("🔴 %s has no registered source", name)
	}

	result := r.host.ctx.Eval(src)
	if result.IsException() {
		return quickjs.Value{}, fmt.Errorf("🔴 evaluate built-in %s: %s", name, r.host.ctx.Exception())
	}
	r.values[name] = result
	return result, nil
}

// installBuiltinBridge wires the __crucible_builtin native function that
// built-in JS sources use to depend on one another (e.g. `stream` on
// `events`) without going through the full CommonJS resolve/require path.
func installBuiltinBridge(h *Host) {
	globals := h.ctx.Globals()
	globals.Set("__crucible_builtin", h.ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if len(args) == 0 {
			return c.ThrowError(fmt.Errorf("🔴 __crucible_builtin: name required"))
		}
		v, err := h.builtins.Resolve(args[0].String())
		if err != nil {
			return c.ThrowError(err)
		}
		return v
	}))
}
