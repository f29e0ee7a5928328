package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/3-lines-studio/crucible"
	"github.com/gorilla/websocket"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]
	args := os.Args[2:]

	switch subcommand {
	case "render":
		runRender(args)
	case "serve":
		runServe(args)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: crucible <command> [flags]

Commands:
  render   Render one component file to a standalone HTML document
  serve    Serve a directory of components over HTTP, with live streaming

Flags:
  -file string
        Component file to render (render) or directory to serve (serve)
  -props string
        JSON-encoded props object
  -addr string
        Listen address for serve (default ":8080")
  -mode string
        Orchestrator mode: auto, always, disabled (default "auto")

Examples:
  crucible render -file pages/product.astro -props '{"name":"world"}'
  crucible serve -file pages -addr :8080
`)
}

func newOrchestrator(mode string) *crucible.Orchestrator {
	m := crucible.ModeAuto
	switch mode {
	case "always":
		m = crucible.ModeAlways
	case "disabled":
		m = crucible.ModeDisabled
	}
	return crucible.New(crucible.WithMode(m))
}

func runRender(args []string) {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	var file, propsJSON, mode string
	fs.StringVar(&file, "file", "", "component file to render")
	fs.StringVar(&propsJSON, "props", "{}", "JSON-encoded props object")
	fs.StringVar(&mode, "mode", "auto", "orchestrator mode: auto, always, disabled")
	fs.Parse(args)

	if file == "" {
		log.Fatal("file required")
	}

	code, err := os.ReadFile(file)
	if err != nil {
		log.Fatalf("read %s: %v", file, err)
	}

	var props map[string]any
	if err := json.Unmarshal([]byte(propsJSON), &props); err != nil {
		log.Fatalf("parse -props: %v", err)
	}

	logger := crucible.NewLogger()
	orch := newOrchestrator(mode)
	logger.Start(fmt.Sprintf("rendering %s", crucible.FormatPath(file)))
	if err := orch.Init(); err != nil {
		log.Fatalf("init: %v", err)
	}
	defer orch.Destroy()

	doc := orch.RenderPage(string(code), file, crucible.PageOptions{Props: props})
	if doc == nil {
		logger.Error(fmt.Sprintf("%s did not match any SSR framework for mode %q", file, mode))
		os.Exit(1)
	}

	fmt.Println(*doc)
	logger.Success("render complete")
}

// pageServer serves a directory of framework components as SSR'd pages and
// exposes a companion websocket that live-streams chunked renders, the
// dev-mode counterpart to the one-shot render subcommand.
type pageServer struct {
	dir    string
	orch   *crucible.Orchestrator
	logger *crucible.Logger
	upg    websocket.Upgrader
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var dir, addr, mode string
	fs.StringVar(&dir, "file", "pages", "directory of component files to serve")
	fs.StringVar(&addr, "addr", ":8080", "listen address")
	fs.StringVar(&mode, "mode", "auto", "orchestrator mode: auto, always, disabled")
	fs.Parse(args)

	logger := crucible.NewLogger()
	orch := newOrchestrator(mode)
	if err := orch.Init(); err != nil {
		log.Fatalf("init: %v", err)
	}
	defer orch.Destroy()

	ps := &pageServer{
		dir:    dir,
		orch:   orch,
		logger: logger,
		upg:    websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", ps.handlePage)
	mux.HandleFunc("/__crucible/stream", ps.handleStream)
	mux.HandleFunc("/__crucible/status", ps.handleStatus)

	srv := &http.Server{Addr: addr, Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var g errgroup.Group

	g.Go(func() error {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return nil
		}
		logger.Info("shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		printBanner(logger, addr, dir)
		err := srv.ListenAndServe()
		cancel()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}

// printBanner prints the startup summary, but skips the multi-line banner
// for a single log line when stdout isn't a terminal (e.g. piped into a log collector).
func printBanner(logger *crucible.Logger, addr, dir string) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		logger.Info(fmt.Sprintf("crucible serving %s on %s", dir, addr))
		return
	}
	logger.Banner("crucible", []string{
		fmt.Sprintf("serving:  %s", dir),
		fmt.Sprintf("address:  http://localhost%s", addr),
		fmt.Sprintf("stream:   ws://localhost%s/__crucible/stream", addr),
	})
}

func (ps *pageServer) componentPath(urlPath string) (string, bool) {
	urlPath = strings.TrimPrefix(urlPath, "/")
	if urlPath == "" {
		urlPath = "index"
	}
	for _, ext := range []string{".astro", ".vue", ".svelte", ".jsx", ".tsx", ".js"} {
		candidate := filepath.Join(ps.dir, urlPath+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

func (ps *pageServer) handlePage(w http.ResponseWriter, r *http.Request) {
	path, ok := ps.componentPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	code, err := os.ReadFile(path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	props := map[string]any{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			props[key] = values[0]
		}
	}

	doc := ps.orch.RenderPage(string(code), path, crucible.PageOptions{Props: props})
	if doc == nil {
		http.Error(w, fmt.Sprintf("%s is not an SSR-eligible component", path), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, *doc)
}

// handleStream upgrades to a websocket and pushes one render's chunks as
// they're produced, letting a browser client progressively paint instead of
// waiting for the full document.
func (ps *pageServer) handleStream(w http.ResponseWriter, r *http.Request) {
	path, ok := ps.componentPath(r.URL.Query().Get("page"))
	if !ok {
		http.Error(w, "unknown page", http.StatusNotFound)
		return
	}
	code, err := os.ReadFile(path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := ps.upg.Upgrade(w, r, nil)
	if err != nil {
		ps.logger.Error(fmt.Sprintf("websocket upgrade: %v", err))
		return
	}
	defer conn.Close()

	result := ps.orch.Render(string(code), path, nil)
	if result == nil {
		conn.WriteJSON(map[string]string{"type": "error", "content": "not ssr-eligible"})
		return
	}

	streaming := ps.orch.Streaming()
	chunks := streaming.RenderToStream(result.HTML, crucible.StreamOptions{})
	for chunk := range chunks {
		if err := conn.WriteJSON(map[string]string{
			"type":    string(chunk.Type),
			"content": chunk.Content,
			"id":      chunk.ID,
		}); err != nil {
			return
		}
	}
}

// handleStatus reports cache and stream health as ad hoc JSON, built with
// sjson rather than a fixed struct since the field set grows opportunistically
// (active_streams is appended only when the streaming subsystem is up).
func (ps *pageServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := "{}"
	status, _ = sjson.Set(status, "mode", "running")

	if stats := ps.orch.GetCacheStats(); stats != nil {
		status, _ = sjson.Set(status, "cache.size", stats.Size)
		status, _ = sjson.Set(status, "cache.hits", stats.Hits)
		status, _ = sjson.Set(status, "cache.misses", stats.Misses)
		status, _ = sjson.Set(status, "cache.hit_rate", stats.HitRate)
	}
	if streaming := ps.orch.Streaming(); streaming != nil {
		status, _ = sjson.Set(status, "active_streams", streaming.ActiveStreamCount())
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, status)
}
