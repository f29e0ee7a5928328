package crucible

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/buke/quickjs-go"
)

// EvalResult is what Sandbox Host's Eval returns.
type EvalResult struct {
	Success   bool
	Value     string
	Error     string
	Stdout    string
	Stderr    string
	ElapsedMS int64
}

const (
	maxBufferEntries = 10000
	bufferTrimRatio  = 0.2
)

// ringBuffer is the append-only stdout/stderr buffer, capped at a soft
// maximum; on overflow the oldest 20% is dropped.
type ringBuffer struct {
	entries []string
}

func (b *ringBuffer) write(s string) {
	b.entries = append(b.entries, s)
	if len(b.entries) > maxBufferEntries {
		drop := int(float64(len(b.entries)) * bufferTrimRatio)
		b.entries = b.entries[drop:]
	}
}

func (b *ringBuffer) drain() string {
	out := ""
	for _, e := range b.entries {
		out += e
	}
	b.entries = b.entries[:0]
	return out
}

// nextTickEntry is one queued process.nextTick/setTimeout callback.
type nextTickEntry struct {
	id int64
	cb quickjs.Value
}

const maxNextTickQueue = 1000

// Host owns exactly one quickjs interpreter runtime and one evaluation
// context. All sandboxed execution is
// serialized through it: at most one Eval is in flight.
type Host struct {
	cfg SandboxConfig

	initOnce sync.Once
	initErr  error

	mu  sync.Mutex // serializes Eval/EvalModule (single outstanding eval)
	rt  *quickjs.Runtime
	ctx *quickjs.Context

	stdout ringBuffer
	stderr ringBuffer

	nextTick    []nextTickEntry
	nextTickSeq int64
	vfs         *VFS
	builtins    *BuiltinRegistry
	requireFn   RequireFunc
	resolveFn   ResolveFunc

	evalStart   time.Time
	evalStartMu sync.Mutex

	// activeDeadline is the interrupt deadline context of whichever
	// top-level Eval/EvalModule call currently holds mu. Nested module
	// loads triggered by a require() call from sandboxed code (see
	// evalModuleNested) read it to classify a timeout without installing
	// a deadline or interrupt handler of their own. Only ever touched
	// while mu is held, so no separate lock is needed.
	activeDeadline context.Context

	destroyed bool
}

// NewHost creates an uninitialized Sandbox Host bound to the given VFS
// (the shared source of truth for code resident in the sandbox).
// Call Init before Eval.
func NewHost(vfs *VFS, cfg SandboxConfig) *Host {
	return &Host{cfg: cfg, vfs: vfs}
}

// Init creates the quickjs runtime/context and installs globals. It is
// idempotent; concurrent callers share one initialization.
func (h *Host) Init() error {
	h.initOnce.Do(func() {
		rt := quickjs.NewRuntime()
		if h.cfg.StackLimitBytes > 0 {
			rt.SetMaxStackSize(h.cfg.StackLimitBytes)
		}
		if h.cfg.MemoryLimitBytes > 0 {
			rt.SetMemoryLimit(h.cfg.MemoryLimitBytes)
		}

		ctx := rt.NewContext()
		h.rt = rt
		h.ctx = ctx

		h.builtins = newBuiltinRegistry(h)
		if err := injectGlobals(h); err != nil {
			h.initErr = fmt.Errorf("🔴 install sandbox globals: %w", err)
			ctx.Close()
			rt.Close()
			h.rt, h.ctx = nil, nil
			return
		}
	})
	return h.initErr
}

func (h *Host) mustBeReady() error {
	if h.ctx == nil {
		return newSandboxError(SandboxNotInitialized, "host not initialized")
	}
	if h.destroyed {
		return newSandboxError(SandboxNotInitialized, "host destroyed")
	}
	return nil
}

// Eval compiles and runs code as a top-level script.
func (h *Host) Eval(code, filename string) (EvalResult, error) {
	return h.evalInternal(code, filename, false)
}

// EvalModule wraps code in a CommonJS-style enclosure providing
// exports/require/module/__filename/__dirname before evaluating it.
func (h *Host) EvalModule(code, filename string) (EvalResult, error) {
	return h.evalInternal(code, filename, true)
}

func (h *Host) evalInternal(code, filename string, asModule bool) (EvalResult, error) {
	if err := h.mustBeReady(); err != nil {
		return EvalResult{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.stdout.entries = h.stdout.entries[:0]
	h.stderr.entries = h.stderr.entries[:0]

	h.evalStartMu.Lock()
	h.evalStart = time.Now()
	h.evalStartMu.Unlock()
	defer func() {
		h.evalStartMu.Lock()
		h.evalStart = time.Time{}
		h.evalStartMu.Unlock()
	}()

	deadline := time.Duration(0)
	if h.cfg.InterruptAfter > 0 {
		deadline = h.cfg.InterruptAfter
	}

	ctxWithTimeout, cancel := context.WithCancel(context.Background())
	defer cancel()
	if deadline > 0 {
		timer := time.AfterFunc(deadline, cancel)
		defer timer.Stop()
	}

	h.rt.SetInterruptHandler(func() int {
		select {
		case <-ctxWithTimeout.Done():
			return 1
		default:
			return 0
		}
	})
	defer h.rt.ClearInterruptHandler()

	h.activeDeadline = ctxWithTimeout
	defer func() { h.activeDeadline = nil }()

	source := code
	if asModule {
		source = wrapCommonJS(code, filename)
	}

	result, err := h.runSource(source)
	result.Stdout = h.stdout.drain()
	result.Stderr = h.stderr.drain()
	return result, err
}

// evalModuleNested runs a CommonJS module body on behalf of a require()
// call made from sandboxed code that is already executing inside a
// top-level Eval/EvalModule call on this same goroutine (the
// __crucible_require bridge in sandbox_globals.go). It must not acquire
// h.mu: that mutex is held for the whole duration of the enclosing
// Eval/EvalModule call, is not reentrant, and require() of a non-builtin
// module is invoked synchronously from inside the running evaluation;
// calling back into EvalModule here would self-deadlock on the very
// first such require, not just a cyclic one. It also leaves the output
// buffers and interrupt deadline alone, since those belong to the
// enclosing call, not this nested one.
func (h *Host) evalModuleNested(code, filename string) (EvalResult, error) {
	if err := h.mustBeReady(); err != nil {
		return EvalResult{}, err
	}
	return h.runSource(wrapCommonJS(code, filename))
}

// runSource evaluates already-wrapped source against the live context,
// awaiting a returned promise, and classifies any exception as a timeout
// or a plain eval failure against whichever deadline the enclosing
// top-level call installed (nil outside of one, which just means "not a
// timeout"). Callers are responsible for holding h.mu when required.
func (h *Host) runSource(source string) (EvalResult, error) {
	start := time.Now()
	result := h.ctx.Eval(source)
	if !result.IsException() && result.IsPromise() {
		// Render wrappers submit async IIFEs; resolve
		// the promise by draining the microtask queue the way the host's
		// own ExecutePendingJobs does, then unwrap the settled value.
		result = h.ctx.Await(result)
	}
	elapsed := time.Since(start)
	defer result.Free()

	if result.IsException() {
		exc := h.ctx.Exception()
		msg := ""
		if exc != nil {
			msg = exc.Error()
		}
		kind := SandboxEvalFailure
		if h.activeDeadline != nil {
			select {
			case <-h.activeDeadline.Done():
				kind = SandboxTimeout
				msg = "evaluation exceeded interrupt_after_ms"
			default:
			}
		}
		return EvalResult{
			Success:   false,
			Error:     msg,
			ElapsedMS: elapsed.Milliseconds(),
		}, newSandboxError(kind, msg)
	}

	return EvalResult{
		Success:   true,
		Value:     result.String(),
		ElapsedMS: elapsed.Milliseconds(),
	}, nil
}

// wrapCommonJS wraps source in the module enclosure:
// a module-local require bound to this file's own name, and a fresh
// module/exports pair whose final value becomes the eval result. The
// exports object is entered into the in-context module registry before
// the body runs, so a cyclic require observes the live partial exports,
// and re-entered after it in case the body reassigned module.exports.
func wrapCommonJS(code, filename string) string {
	dir, _ := splitPath(NormalizePath(filename, "/"))
	return fmt.Sprintf(
		`(function() {
	var module = { exports: {} };
	__crucible_module_registry[%q] = module.exports;
	var require = function(specifier) { return __crucible_require(specifier, %q); };
	(function(exports, require, module, __filename, __dirname) {
	var importmeta = { url: "file://" + __filename };
%s
	})(module.exports, require, module, %q, %q);
	__crucible_module_registry[%q] = module.exports;
	return JSON.stringify(module.exports);
})()`,
		filename, filename, code, filename, dir, filename,
	)
}

// ExecutePendingJobs drains the interpreter's microtask queue until idle
// or an error occurs; errors from pending jobs are logged (to the stderr
// ring buffer) and the loop terminates.
func (h *Host) ExecutePendingJobs() int {
	if err := h.mustBeReady(); err != nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	count := 0
	for {
		_, err := h.rt.ExecutePendingJob()
		if err == io.EOF {
			break
		}
		if err != nil {
			h.stderr.write(fmt.Sprintf("pending job error: %s\n", err))
			break
		}
		count++
	}
	count += h.drainNextTick()
	return count
}

// Destroy disposes context then runtime; safe to call multiple times.
func (h *Host) Destroy() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return
	}
	h.destroyed = true
	if h.ctx != nil {
		h.ctx.Close()
	}
	if h.rt != nil {
		h.rt.Close()
	}
}

// currentEvalElapsed reports how long the in-flight Eval has been
// running, for diagnostics. The interrupt handler does not use it; it
// watches the deadline context that evalInternal cancels on timeout.
func (h *Host) currentEvalElapsed() (time.Duration, bool) {
	h.evalStartMu.Lock()
	defer h.evalStartMu.Unlock()
	if h.evalStart.IsZero() {
		return 0, false
	}
	return time.Since(h.evalStart), true
}
