package trace

import (
	"runtime"
	"strconv"
	"sync/atomic"
	"time"
)

// spanIDs hands out the identifiers that tie begin and end events
// together. IDs are process-wide so spans from concurrent passes never
// collide.
var spanIDs atomic.Uint64

// goid reports the current goroutine ID by parsing the stack header
// ("goroutine N [running]:"). Slow, but it only runs when an event is
// actually emitted.
func goid() uint64 {
	var buf [48]byte
	n := runtime.Stack(buf[:], false)
	head := string(buf[:n])

	const prefix = "goroutine "
	if len(head) <= len(prefix) {
		return 0
	}
	head = head[len(prefix):]
	for i := 0; i < len(head); i++ {
		if head[i] == ' ' {
			id, err := strconv.ParseUint(head[:i], 10, 64)
			if err != nil {
				return 0
			}
			return id
		}
	}
	return 0
}

// Span tracks one timed operation between a begin and an end event.
// A nil Span is valid and does nothing, so callers never guard.
type Span struct {
	t     Tracer
	scope Scope
	id    uint64
	gid   uint64
	name  string
	start time.Time
}

// Begin emits a begin event and returns the span to close. It returns
// nil when the tracer is off or the scope is filtered out at the
// current level.
func Begin(t Tracer, scope Scope, name string) *Span {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return nil
	}

	s := &Span{
		t:     t,
		scope: scope,
		id:    spanIDs.Add(1),
		gid:   goid(),
		name:  name,
		start: time.Now(),
	}
	t.Emit(&Event{
		Time:   s.start,
		Kind:   KindSpanBegin,
		Scope:  s.scope,
		SpanID: s.id,
		GID:    s.gid,
		Name:   s.name,
	})
	return s
}

// End emits the matching end event carrying the elapsed time. detail
// is a short free-form summary such as "files=12 parsed=11".
func (s *Span) End(detail string) {
	if s == nil {
		return
	}
	now := time.Now()
	s.t.Emit(&Event{
		Time:   now,
		Kind:   KindSpanEnd,
		Scope:  s.scope,
		SpanID: s.id,
		GID:    s.gid,
		Name:   s.name,
		Detail: detail,
		Dur:    now.Sub(s.start),
	})
}
