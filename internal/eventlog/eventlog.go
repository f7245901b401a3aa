// Package eventlog provides the append-only chat event log.
//
// The chat core only sees the Recorder contract. Sinks queue records in a
// bounded buffer and persist them from a single background goroutine, so a
// slow disk never stalls a connection task. A full buffer drops the record
// and reports it on the diagnostic logger instead of blocking.
package eventlog

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Tyrowin/linechat/internal/config"
)

// Recorder accepts one event line per call. Implementations must not block
// the caller for unbounded time and must not panic on write failure.
type Recorder interface {
	Record(event string)
}

// Sink is a Recorder that owns resources and must be closed on shutdown.
type Sink interface {
	Recorder
	Close() error
}

// Open builds the sink selected by cfg.
func Open(cfg config.EventLogConfig, logger *slog.Logger) (Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Type {
	case config.SinkFile, "":
		return NewFileSink(cfg.Path, cfg.Buffer, logger)
	case config.SinkSQLite:
		return NewSQLiteSink(cfg.Path, cfg.Buffer, logger)
	case config.SinkNone:
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("unsupported event log type: %s", cfg.Type)
	}
}

// Discard drops every record.
type Discard struct{}

// Record implements Recorder.
func (Discard) Record(string) {}

// Close implements Sink.
func (Discard) Close() error { return nil }

// batchWriter persists a batch of records. It is only ever called from the
// queue's drain goroutine.
type batchWriter interface {
	writeBatch(events []string) error
	close() error
}

// queue is the bounded asynchronous front shared by all persistent sinks.
type queue struct {
	name   string
	logger *slog.Logger
	w      batchWriter

	mu     sync.RWMutex
	closed bool
	events chan string
	done   chan struct{}
}

func newQueue(name string, size int, w batchWriter, logger *slog.Logger) *queue {
	if size <= 0 {
		size = 1024
	}
	q := &queue{
		name:   name,
		logger: logger.With("sink", name),
		w:      w,
		events: make(chan string, size),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Record enqueues event without blocking.
func (q *queue) Record(event string) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.logger.Warn("event dropped, sink closed", "event", event)
		return
	}

	select {
	case q.events <- event:
	default:
		q.logger.Warn("event dropped, sink buffer full", "event", event)
	}
}

func (q *queue) run() {
	defer close(q.done)

	batch := make([]string, 0, 64)
	for event := range q.events {
		batch = append(batch[:0], event)
		// Drain whatever else is already queued into the same batch.
		for n := len(q.events); n > 0; n-- {
			batch = append(batch, <-q.events)
		}
		if err := q.w.writeBatch(batch); err != nil {
			q.logger.Error("failed to write event batch", "events", len(batch), "error", err)
		}
	}
}

// Close stops accepting records, flushes the queue and releases the writer.
func (q *queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.events)
	q.mu.Unlock()

	<-q.done
	if err := q.w.close(); err != nil {
		return fmt.Errorf("close %s sink: %w", q.name, err)
	}
	return nil
}

// Memory keeps records in memory. It is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	events []string
}

// Record implements Recorder.
func (m *Memory) Record(event string) {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (m *Memory) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

// Close implements Sink.
func (m *Memory) Close() error { return nil }
