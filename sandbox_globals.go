package crucible

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/buke/quickjs-go"
)

// RequireFunc resolves and evaluates a CommonJS specifier from inside the
// sandbox. It returns the resolved filename (used to look up the module's
// live exports object in the in-context registry; JSON serialization
// would drop function exports, and components are functions) plus the
// exports serialized as JSON, the fallback for modules that never touch
// the registry (.json files). The CommonJS Loader installs
// this once it is constructed; until then require() fails closed.
type RequireFunc func(specifier, fromFile string) (filename, exportsJSON string, err error)

// SetRequireFunc wires the CommonJS Loader's require implementation into
// this Host's sandbox global. Safe to call after Init.
func (h *Host) SetRequireFunc(fn RequireFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requireFn = fn
}

// ResolveFunc resolves a specifier to an absolute module URL without
// loading it, backing import.meta.resolve.
type ResolveFunc func(specifier, fromFile string) (resolved string, err error)

// SetResolveFunc wires the ESM Loader's resolver into this Host's sandbox
// global, used by import.meta.resolve.
func (h *Host) SetResolveFunc(fn ResolveFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resolveFn = fn
}

// injectGlobals installs console, process, timers, Buffer, __dirname-style
// globals and the require() bridge into a freshly created context.
func injectGlobals(h *Host) error {
	ctx := h.ctx
	globals := ctx.Globals()

	consoleObj := ctx.Object()
	for _, level := range []string{"log", "info", "debug", "warn", "error"} {
		lvl := level
		fn := ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
			line := formatConsoleArgs(args) + "\n"
			if lvl == "warn" || lvl == "error" {
				h.stderr.write(line)
			} else {
				h.stdout.write(line)
			}
			return c.Undefined()
		})
		consoleObj.Set(lvl, fn)
	}
	globals.Set("console", consoleObj)

	globals.Set("setTimeout", ctx.Function(h.jsSetTimeout))
	globals.Set("setInterval", ctx.Function(h.jsSetTimeout))
	globals.Set("clearTimeout", ctx.Function(h.jsClearTimeout))
	globals.Set("clearInterval", ctx.Function(h.jsClearTimeout))

	processObj := ctx.Object()
	processObj.Set("platform", ctx.String(runtime.GOOS))
	processObj.Set("arch", ctx.String(runtime.GOARCH))
	processObj.Set("version", ctx.String("v18.0.0-crucible"))

	envObj := ctx.Object()
	processObj.Set("env", envObj)

	processObj.Set("cwd", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		return c.String("/")
	}))
	processObj.Set("exit", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		code := 0
		if len(args) > 0 {
			code = int(args[0].Int32())
		}
		h.stderr.write(fmt.Sprintf("process.exit(%d)\n", code))
		return c.ThrowError(fmt.Errorf("__crucible_exit:%d", code))
	}))
	processObj.Set("nextTick", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if len(args) == 0 {
			return c.Undefined()
		}
		h.enqueueNextTick(args[0])
		return c.Undefined()
	}))
	globals.Set("process", processObj)

	globals.Set("global", globals)
	globals.Set("globalThis", globals)
	globals.Set("__dirname", ctx.String("/"))
	globals.Set("__filename", ctx.String("/index.js"))

	interopResult := ctx.Eval(`globalThis.__crucible_module_registry = {};
globalThis.__crucible_interop = function(m) {
	return m && m.default !== undefined ? m.default : m;
};`)
	if interopResult.IsException() {
		exc := ctx.Exception()
		interopResult.Free()
		return fmt.Errorf("🔴 install interop helper: %s", exc)
	}
	interopResult.Free()

	injectBufferCodecs(h)
	injectCryptoBridge(h)
	injectFSBridge(h)
	installBuiltinBridge(h)

	bufferResult := ctx.Eval(bufferBuiltinSource + ".Buffer")
	if bufferResult.IsException() {
		exc := ctx.Exception()
		bufferResult.Free()
		return fmt.Errorf("🔴 install Buffer global: %s", exc)
	}
	globals.Set("Buffer", bufferResult)

	globals.Set("__crucible_require", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if len(args) == 0 {
			return c.ThrowError(fmt.Errorf("require: missing specifier"))
		}
		from := "/index.js"
		if len(args) > 1 {
			from = args[1].String()
		}
		spec := args[0].String()

		if IsBuiltin(spec) {
			v, err := h.builtins.Resolve(spec)
			if err != nil {
				return c.ThrowError(err)
			}
			return v
		}

		if h.requireFn == nil {
			return c.ThrowError(fmt.Errorf("🔴 require(%q): loader not attached", spec))
		}
		filename, exportsJSON, err := h.requireFn(spec, from)
		if err != nil {
			return c.ThrowError(err)
		}
		if filename != "" {
			live := c.Globals().Get("__crucible_module_registry").Get(filename)
			if !live.IsUndefined() {
				return live
			}
		}
		return c.ParseJSON(exportsJSON)
	}))

	globals.Set("__crucible_require_resolve", ctx.Function(func(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if len(args) == 0 {
			return c.ThrowError(fmt.Errorf("import.meta.resolve: missing specifier"))
		}
		from := "/index.js"
		if len(args) > 1 {
			from = args[1].String()
		}
		if h.resolveFn == nil {
			return c.ThrowError(fmt.Errorf("🔴 import.meta.resolve(%q): resolver not attached", args[0].String()))
		}
		resolved, err := h.resolveFn(args[0].String(), from)
		if err != nil {
			return c.ThrowError(err)
		}
		return c.String(resolved)
	}))

	return nil
}

// formatConsoleArgs renders console.* arguments the way Node's util.format
// roughly does: strings pass through, everything else is stringified.
func formatConsoleArgs(args []quickjs.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}

// jsSetTimeout implements a best-effort macrotask: the callback is queued
// and run on the next ExecutePendingJobs drain rather than on a real
// wall-clock timer, since the sandbox has no independent event loop.
func (h *Host) jsSetTimeout(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
	if len(args) == 0 {
		return c.Int32(0)
	}
	h.enqueueNextTick(args[0])
	h.nextTickSeq++
	return c.Int32(int32(h.nextTickSeq))
}

func (h *Host) jsClearTimeout(c *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
	return c.Undefined()
}

// enqueueNextTick records a callback value for later invocation. The
// queue is a bounded FIFO: once full, incoming callbacks are dropped
// with a stderr warning and the queued entries are left untouched.
func (h *Host) enqueueNextTick(cb quickjs.Value) {
	if len(h.nextTick) >= maxNextTickQueue {
		h.stderr.write("nextTick queue overflow, dropping callback\n")
		return
	}
	h.nextTickSeq++
	h.nextTick = append(h.nextTick, nextTickEntry{id: h.nextTickSeq, cb: cb})
}

// drainNextTick invokes and clears every queued callback. Called from
// ExecutePendingJobs after the interpreter's own microtask queue is empty.
func (h *Host) drainNextTick() int {
	count := 0
	pending := h.nextTick
	h.nextTick = nil
	for _, entry := range pending {
		result := entry.cb.Execute(h.ctx.Null())
		result.Free()
		count++
	}
	return count
}
