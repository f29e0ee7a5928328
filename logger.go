package crucible

import (
	"fmt"
	"io"
	"os"
	"strings"
)

var defaultIsDebug = os.Getenv("DEBUG") != ""

// Logger is the ambient diagnostics sink for crucible's components.
// Unlike a bare
// package-level debug switch, the gate is a field: each Logger owns its
// own verbosity, so an embedder running more than one Orchestrator (each
// with an injected Logger) can have one verbose and one quiet.
type Logger struct {
	out   io.Writer
	debug bool
}

// LoggerOption configures a Logger built by NewLogger.
type LoggerOption func(*Logger)

// WithDebug overrides the DEBUG-env-var default for this Logger.
func WithDebug(enabled bool) LoggerOption {
	return func(l *Logger) { l.debug = enabled }
}

// WithOutput overrides the default os.Stdout writer.
func WithOutput(w io.Writer) LoggerOption {
	return func(l *Logger) { l.out = w }
}

// NewLogger builds a Logger defaulting to os.Stdout and the DEBUG
// environment variable, overridable via options.
func NewLogger(opts ...LoggerOption) *Logger {
	l := &Logger{out: os.Stdout, debug: defaultIsDebug}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Logger) Info(msg string) {
	fmt.Fprintf(l.out, "%s\n", msg)
}

func (l *Logger) Success(msg string) {
	fmt.Fprintf(l.out, "%s\n", msg)
}

func (l *Logger) Start(msg string) {
	fmt.Fprintf(l.out, "%s\n", msg)
}

func (l *Logger) Debug(msg string) {
	if l.debug {
		fmt.Fprintf(l.out, "%s\n", msg)
	}
}

func (l *Logger) Error(msg string) {
	fmt.Fprintf(os.Stderr, "%s\n", msg)
}

func (l *Logger) Banner(title string, items []string) {
	fmt.Fprintf(l.out, "\n%s\n", title)
	for _, item := range items {
		fmt.Fprintf(l.out, "%s\n", item)
	}
	fmt.Fprintln(l.out)
}

// LogErr narrates one of crucible's typed errors (errors.go) at the
// level matching how far it propagates: sandbox/resolver/
// loader failures that bubble out of an operation are real errors,
// while a RendererError is logged at Debug because Render already
// shields it into RenderResult.Error instead of letting it escalate; the
// operator only needs this on request, not on every shielded render.
func (l *Logger) LogErr(op string, err error) {
	if err == nil {
		return
	}
	switch e := err.(type) {
	case *RendererError:
		l.Debug(fmt.Sprintf("%s: %s", op, e.Error()))
	case *SandboxError:
		l.Error(fmt.Sprintf("%s: %s", op, e.Error()))
	case *ResolverError:
		l.Error(fmt.Sprintf("%s: %s", op, e.Error()))
	case *LoaderError:
		l.Error(fmt.Sprintf("%s: %s", op, e.Error()))
	case *VFSError:
		l.Error(fmt.Sprintf("%s: %s", op, e.Error()))
	case *StreamError:
		l.Error(fmt.Sprintf("%s: %s", op, e.Error()))
	default:
		l.Error(fmt.Sprintf("%s: %s", op, err.Error()))
	}
}

// IsDebug reports the package default verbosity (DEBUG env var),
// matching the zero-value Logger every NewLogger() call starts from.
func IsDebug() bool {
	return defaultIsDebug
}

func QuietWriter() io.Writer {
	if defaultIsDebug {
		return os.Stdout
	}
	return io.Discard
}

func FormatPath(path string) string {
	cwd, _ := os.Getwd()
	rel := strings.TrimPrefix(path, cwd+"/")
	return rel
}
