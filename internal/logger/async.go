package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer flushes buffered records on shutdown.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// asyncState is shared by an AsyncHandler and every handler derived from it
// through WithAttrs or WithGroup.
type asyncState struct {
	mu      sync.RWMutex // write-held only while closing
	closed  bool
	ch      chan pending
	wg      sync.WaitGroup
	dropped atomic.Int64
}

type pending struct {
	inner slog.Handler
	rec   slog.Record
}

// AsyncHandler hands records to background workers through a bounded buffer.
// When the buffer is full, records below keepLevel are dropped and counted;
// records at or above it are written on the caller's goroutine so warnings
// and errors are never lost. After Close every record is written inline.
type AsyncHandler struct {
	inner     slog.Handler
	keepLevel slog.Level
	state     *asyncState
}

// NewAsyncHandler starts workers draining a buffer of chanSize records.
// Warn and above are never dropped.
func NewAsyncHandler(inner slog.Handler, chanSize, workers int) *AsyncHandler {
	st := &asyncState{ch: make(chan pending, chanSize)}
	for range workers {
		st.wg.Add(1)
		go st.drain()
	}
	return &AsyncHandler{inner: inner, keepLevel: slog.LevelWarn, state: st}
}

func (st *asyncState) drain() {
	defer st.wg.Done()
	for p := range st.ch {
		_ = p.inner.Handle(context.Background(), p.rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record, or writes it inline as described on AsyncHandler.
func (h *AsyncHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	st := h.state
	st.mu.RLock()
	defer st.mu.RUnlock()

	if st.closed {
		return h.inner.Handle(ctx, rec)
	}
	select {
	case st.ch <- pending{inner: h.inner, rec: rec}:
		return nil
	default:
	}
	if rec.Level >= h.keepLevel {
		return h.inner.Handle(ctx, rec)
	}
	st.dropped.Add(1)
	return nil
}

// WithAttrs returns a handler sharing the same buffer and workers.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), keepLevel: h.keepLevel, state: h.state}
}

// WithGroup returns a handler sharing the same buffer and workers.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), keepLevel: h.keepLevel, state: h.state}
}

// DroppedCount returns the number of records dropped on a full buffer.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.state.dropped.Load()
}

// Close drains the buffer and waits for the workers. It is safe to call more
// than once.
func (h *AsyncHandler) Close() {
	st := h.state
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return
	}
	st.closed = true
	close(st.ch)
	st.mu.Unlock()
	st.wg.Wait()
}
