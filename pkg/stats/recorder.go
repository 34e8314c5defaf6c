package stats

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jingkaihe/pkgveil/pkg/decision"
)

// EventSink persists a filter event.
type EventSink interface {
	Record(ctx context.Context, ev decision.FilterEvent) error
}

// Recorder moves filter events off the decision path. Record never blocks:
// when the queue is full the event is dropped and counted.
type Recorder struct {
	sink   EventSink
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	queue   chan decision.FilterEvent
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
	written atomic.Int64
}

func NewRecorder(sink EventSink, size int, logger *slog.Logger) *Recorder {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		sink:   sink,
		logger: logger.With("component", "stats"),
		queue:  make(chan decision.FilterEvent, size),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues ev. It matches the signature of hook.Installer's event
// func.
func (r *Recorder) Record(ev decision.FilterEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.queue <- ev:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Written returns how many events reached the sink.
func (r *Recorder) Written() int64 { return r.written.Load() }

// Close stops accepting events and waits for queued ones to be written.
func (r *Recorder) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
		<-r.done
	})
}

func (r *Recorder) run() {
	defer close(r.done)

	for ev := range r.queue {
		if err := r.sink.Record(context.Background(), ev); err != nil {
			r.logger.Warn("failed to record filter event", "caller", ev.Caller, "target", ev.Target, "error", err)
			continue
		}
		r.written.Add(1)
	}
}
