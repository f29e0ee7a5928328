package crucible

import (
	"context"
	"sync"
	"time"
)

// StreamOptions configures one streaming render.
type StreamOptions struct {
	ProgressiveHydration *bool // nil means "use StreamConfig default"
	Timeout              time.Duration // zero means "use StreamConfig default"
	OnChunk              func(Chunk)
	OnComplete           func(StreamStats)
	OnError              func(error)
}

func (o StreamOptions) progressive(cfg StreamConfig) bool {
	if o.ProgressiveHydration != nil {
		return *o.ProgressiveHydration
	}
	return cfg.ProgressiveHydration
}

func (o StreamOptions) timeout(cfg StreamConfig) time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return cfg.Timeout
}

// StreamingRenderer produces an ordered sequence of typed Chunks with
// suspense-boundary, timeout and cancellation support.
type StreamingRenderer struct {
	cfg StreamConfig

	mu      sync.Mutex
	active  map[int64]context.CancelFunc
	nextID  int64
	nowFunc func() time.Time
}

// NewStreamingRenderer builds a StreamingRenderer from cfg.
func NewStreamingRenderer(cfg StreamConfig) *StreamingRenderer {
	return &StreamingRenderer{cfg: cfg, active: make(map[int64]context.CancelFunc), nowFunc: time.Now}
}

// ActiveStreamCount reports how many streams are currently live.
func (s *StreamingRenderer) ActiveStreamCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// CancelAllStreams cancels every active stream's context, which causes
// its producer
// goroutine to close its channel and decrement the active count.
func (s *StreamingRenderer) CancelAllStreams() {
	s.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(s.active))
	for _, cancel := range s.active {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

func (s *StreamingRenderer) register(cancel context.CancelFunc) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.active[id] = cancel
	return id
}

func (s *StreamingRenderer) unregister(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, id)
}

// streamProducer accumulates stats and fans emitted chunks out to the
// channel, the OnChunk callback, and the running totals used for the
// final OnComplete/StreamStats report. A single mutex serializes access
// since RenderToStreamWithSuspense emits from multiple goroutines.
type streamProducer struct {
	out   chan Chunk
	opts  StreamOptions
	start time.Time
	now   func() time.Time

	mu             sync.Mutex
	totalChunks    int
	totalBytes     int
	suspenseCount  int
	firstChunkTime time.Duration
	sawFirst       bool
}

// emit returns false once the stream's context has been cancelled, at
// which point the caller must stop producing further chunks.
func (p *streamProducer) emit(ctx context.Context, c Chunk) bool {
	c.Timestamp = p.now()

	select {
	case <-ctx.Done():
		return false
	case p.out <- c:
	}

	p.mu.Lock()
	if !p.sawFirst {
		p.firstChunkTime = p.now().Sub(p.start)
		p.sawFirst = true
	}
	p.totalChunks++
	p.totalBytes += len(c.Content)
	if c.Type == ChunkSuspense {
		p.suspenseCount++
	}
	p.mu.Unlock()

	if p.opts.OnChunk != nil {
		p.opts.OnChunk(c)
	}
	return true
}

func (p *streamProducer) stats() StreamStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return StreamStats{
		TotalChunks:    p.totalChunks,
		TotalBytes:     p.totalBytes,
		RenderTime:     p.now().Sub(p.start),
		FirstChunkTime: p.firstChunkTime,
		SuspenseCount:  p.suspenseCount,
	}
}

// RenderToStream parses html into head/shell/suspense/content chunks
// and emits them in order, followed by a single end chunk.
func (s *StreamingRenderer) RenderToStream(htmlInput string, opts StreamOptions) <-chan Chunk {
	out := make(chan Chunk, max1(s.cfg.ChunkBufferSize))
	ctx, cancel := context.WithCancel(context.Background())
	id := s.register(cancel)

	p := &streamProducer{out: out, opts: opts, start: s.nowFunc(), now: s.nowFunc}
	progressive := opts.progressive(s.cfg)
	timeout := opts.timeout(s.cfg)

	go func() {
		defer close(out)
		defer cancel()
		defer s.unregister(id)

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		segs := parseHTMLChunks(htmlInput)
		for _, seg := range segs {
			select {
			case <-timer.C:
				s.failTimeout(ctx, p, opts)
				p.emit(ctx, Chunk{Type: ChunkEnd})
				return
			case <-ctx.Done():
				return
			default:
			}

			content := seg.content
			if seg.kind == ChunkSuspense {
				content = wrapSuspenseBoundary(seg.id, content, progressive)
			}
			if !p.emit(ctx, Chunk{Type: seg.kind, Content: content, ID: seg.id}) {
				return
			}
		}

		p.emit(ctx, Chunk{Type: ChunkEnd})
		if opts.OnComplete != nil {
			opts.OnComplete(p.stats())
		}
	}()

	return out
}

// RenderToStreamWithSuspense emits the shell, then resolves every
// provided future in parallel, emitting a suspense chunk per success and
// an error chunk per rejection in whatever order they settle, before the
// final end chunk.
func (s *StreamingRenderer) RenderToStreamWithSuspense(shellHTML string, asyncContent map[string]<-chan FutureResult, opts StreamOptions) <-chan Chunk {
	out := make(chan Chunk, max1(s.cfg.ChunkBufferSize))
	ctx, cancel := context.WithCancel(context.Background())
	id := s.register(cancel)

	p := &streamProducer{out: out, opts: opts, start: s.nowFunc(), now: s.nowFunc}
	progressive := opts.progressive(s.cfg)
	timeout := opts.timeout(s.cfg)

	go func() {
		defer s.unregister(id)
		defer cancel()
		defer close(out)

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		for _, seg := range parseHTMLChunks(shellHTML) {
			if !p.emit(ctx, Chunk{Type: seg.kind, Content: seg.content, ID: seg.id}) {
				return
			}
		}

		// A time.Timer channel delivers to exactly one receiver. Every
		// per-future worker below, plus the completion select, used to
		// read timer.C directly; with two or more outstanding futures,
		// whichever goroutine won that race left the rest permanently
		// parked (future not ready, timer.C already drained, ctx not
		// done) and the stream never closed. A single dedicated goroutine
		// now owns timer.C and fans expiry out via closing timedOut,
		// which every select below observes instead.
		timedOut := make(chan struct{})
		go func() {
			select {
			case <-timer.C:
				close(timedOut)
			case <-ctx.Done():
			}
		}()

		var wg sync.WaitGroup
		for boundaryID, future := range asyncContent {
			wg.Add(1)
			go func(boundaryID string, future <-chan FutureResult) {
				defer wg.Done()
				select {
				case res, ok := <-future:
					if !ok {
						return
					}
					if res.Err != nil {
						// A rejected boundary only yields its error chunk;
						// OnError stays reserved for the single-shot
						// whole-stream timeout so it fires at most once.
						p.emit(ctx, Chunk{Type: ChunkError, Content: sanitizeGenericStreamError(boundaryID), ID: boundaryID})
						return
					}
					p.emit(ctx, Chunk{Type: ChunkSuspense, Content: wrapSuspenseBoundary(boundaryID, res.Value, progressive), ID: boundaryID})
				case <-timedOut:
					p.emit(ctx, Chunk{Type: ChunkError, Content: sanitizeGenericStreamError(boundaryID), ID: boundaryID})
				case <-ctx.Done():
				}
			}(boundaryID, future)
		}

		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()

		select {
		case <-done:
		case <-timedOut:
			if opts.OnError != nil {
				opts.OnError(&StreamError{Kind: StreamTimeout, Message: "stream timed out waiting on suspense boundaries"})
			}
			<-done
		case <-ctx.Done():
			return
		}

		p.emit(ctx, Chunk{Type: ChunkEnd})
		if opts.OnComplete != nil {
			opts.OnComplete(p.stats())
		}
	}()

	return out
}

func (s *StreamingRenderer) failTimeout(ctx context.Context, p *streamProducer, opts StreamOptions) {
	p.emit(ctx, Chunk{Type: ChunkError, Content: "<!-- stream timed out -->"})
	if opts.OnError != nil {
		opts.OnError(&StreamError{Kind: StreamTimeout, Message: "stream timed out"})
	}
}

// StreamToString implements stream_to_string: drain a Chunk stream and
// concatenate every chunk's content.
func StreamToString(ch <-chan Chunk) string {
	var sb []byte
	for c := range ch {
		sb = append(sb, c.Content...)
	}
	return string(sb)
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
