package trace

import (
	"io"
	"sync"
)

// streamTracer writes each event to w as it arrives. The sequence
// number is assigned under the lock so numbering and output order
// always agree.
type streamTracer struct {
	mu     sync.Mutex
	w      io.Writer
	seq    uint64
	level  Level
	format Format
}

func newStreamTracer(w io.Writer, level Level, format Format) *streamTracer {
	return &streamTracer{w: w, level: level, format: format}
}

// Emit renders and writes one event. Write errors are dropped: tracing
// must never disturb the analysis it observes.
func (t *streamTracer) Emit(ev *Event) {
	if ev.Kind != KindError && !t.level.ShouldEmit(ev.Scope) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	ev.Seq = t.seq
	if data := render(ev, t.format); len(data) > 0 {
		_, _ = t.w.Write(data)
	}
}

// Flush forwards to the writer when it buffers.
func (t *streamTracer) Flush() error {
	type flusher interface{ Flush() error }
	if f, ok := t.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// Close flushes and closes the writer if it owns one.
func (t *streamTracer) Close() error {
	if err := t.Flush(); err != nil {
		return err
	}
	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *streamTracer) Level() Level  { return t.level }
func (t *streamTracer) Enabled() bool { return t.level > LevelOff }
