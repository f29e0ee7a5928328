package crucible

import (
	"strings"
	"testing"
	"time"
)

func newTestHost(t *testing.T) *Host {
	t.Helper()
	h := NewHost(NewVFS(), defaultSandboxConfig())
	if err := h.Init(); err != nil {
		t.Fatalf("init host: %v", err)
	}
	t.Cleanup(h.Destroy)
	return h
}

func TestHostEvalBasic(t *testing.T) {
	h := newTestHost(t)

	res, err := h.Eval("1 + 2", "test.js")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
}

func TestHostConsoleRouting(t *testing.T) {
	h := newTestHost(t)

	res, err := h.Eval(`console.log("hello"); console.error("boom");`, "test.js")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !strings.Contains(res.Stdout, "hello") {
		t.Fatalf("expected stdout to contain hello, got %q", res.Stdout)
	}
	if !strings.Contains(res.Stderr, "boom") {
		t.Fatalf("expected stderr to contain boom, got %q", res.Stderr)
	}
}

func TestHostBuffersClearBetweenEvals(t *testing.T) {
	h := newTestHost(t)

	if _, err := h.Eval(`console.log("first")`, "a.js"); err != nil {
		t.Fatalf("eval 1: %v", err)
	}
	res, err := h.Eval(`1`, "b.js")
	if err != nil {
		t.Fatalf("eval 2: %v", err)
	}
	if strings.Contains(res.Stdout, "first") {
		t.Fatalf("stdout leaked across evals: %q", res.Stdout)
	}
}

func TestHostEvalException(t *testing.T) {
	h := newTestHost(t)

	res, err := h.Eval(`throw new Error("kaboom")`, "test.js")
	if err == nil {
		t.Fatalf("expected error")
	}
	if res.Success {
		t.Fatalf("expected failure result")
	}
	if !strings.Contains(res.Error, "kaboom") {
		t.Fatalf("expected error message to mention kaboom, got %q", res.Error)
	}
}

func TestHostTimeout(t *testing.T) {
	h := NewHost(NewVFS(), SandboxConfig{
		MemoryLimitBytes: 64 * 1024 * 1024,
		StackLimitBytes:  1024 * 1024,
		InterruptAfter:   50 * time.Millisecond,
	})
	if err := h.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer h.Destroy()

	_, err := h.Eval(`while (true) {}`, "loop.js")
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	se, ok := err.(*SandboxError)
	if !ok || se.Kind != SandboxTimeout {
		t.Fatalf("expected SandboxTimeout, got %v", err)
	}
}

func TestHostDestroyIdempotent(t *testing.T) {
	h := NewHost(NewVFS(), defaultSandboxConfig())
	if err := h.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	h.Destroy()
	h.Destroy()

	if _, err := h.Eval("1", "x.js"); err == nil {
		t.Fatalf("expected error evaluating on destroyed host")
	}
}

func TestHostNextTickOverflowDropsIncoming(t *testing.T) {
	h := newTestHost(t)

	res, err := h.Eval(`
		globalThis.__ran = 0;
		globalThis.__firstRan = false;
		for (var i = 0; i < 1100; i++) {
			(function(n) {
				process.nextTick(function() {
					if (n === 0) globalThis.__firstRan = true;
					globalThis.__ran++;
				});
			})(i);
		}
	`, "overflow.js")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !strings.Contains(res.Stderr, "nextTick queue overflow") {
		t.Fatalf("expected overflow warning on stderr, got %q", res.Stderr)
	}

	h.ExecutePendingJobs()

	check, err := h.Eval(`globalThis.__ran + ":" + globalThis.__firstRan`, "overflow_check.js")
	if err != nil {
		t.Fatalf("eval check: %v", err)
	}
	// The queue is FIFO-bounded: the first 1000 callbacks survive and the
	// overflowing 100 are dropped, so the earliest callback still runs.
	if check.Value != "1000:true" {
		t.Fatalf("expected first 1000 callbacks kept and incoming dropped, got %q", check.Value)
	}
}

func TestHostNextTickDrain(t *testing.T) {
	h := newTestHost(t)

	if _, err := h.Eval(`
		globalThis.__ticked = false;
		process.nextTick(function() { globalThis.__ticked = true; });
	`, "tick.js"); err != nil {
		t.Fatalf("eval: %v", err)
	}
	h.ExecutePendingJobs()

	res, err := h.Eval(`globalThis.__ticked`, "check.js")
	if err != nil {
		t.Fatalf("eval check: %v", err)
	}
	if res.Value != "true" {
		t.Fatalf("expected nextTick callback to run, got %q", res.Value)
	}
}
