package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindSpanBegin marks the start of a logical operation.
	KindSpanBegin Kind = iota + 1 // span start
	// KindSpanEnd marks the end of a logical operation.
	KindSpanEnd // span end
	// KindPoint represents an instant event.
	KindPoint // instant event
	// KindError represents an error event; emitted at any level above off.
	KindError // error event
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity level of the event.
// Lower numeric values represent higher-level/coarser events.
type Scope uint8

const (
	// ScopeDriver represents the highest level of CLI operations.
	ScopeDriver Scope = iota + 1 // top-level driver operations (highest level)
	// ScopePass represents analysis passes (parse, process, wildcard, check).
	ScopePass // analysis passes
	// ScopeModule represents per-module processing (most detailed).
	ScopeModule // per-module processing
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeDriver:
		return "driver"
	case ScopePass:
		return "pass"
	case ScopeModule:
		return "module"
	default:
		return "unknown"
	}
}

// Event represents a single trace event.
type Event struct {
	Time   time.Time     // wall-clock timestamp
	Seq    uint64        // per-writer sequence number
	Kind   Kind          // event kind
	Scope  Scope         // granularity level
	SpanID uint64        // links begin and end events (0 for points)
	GID    uint64        // goroutine ID (parallel passes interleave)
	Name   string        // e.g., "parse", "module:a.b"
	Detail string        // optional detail message
	Dur    time.Duration // elapsed time, set on span end events
}

// Point emits an instant event.
func Point(t Tracer, scope Scope, name, detail string) {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	t.Emit(&Event{
		Time:   time.Now(),
		Kind:   KindPoint,
		Scope:  scope,
		GID:    goid(),
		Name:   name,
		Detail: detail,
	})
}

// Error emits an error event. Error events ignore the scope filter and go
// out whenever tracing is on at all.
func Error(t Tracer, name, detail string) {
	if t == nil || !t.Enabled() {
		return
	}
	t.Emit(&Event{
		Time:   time.Now(),
		Kind:   KindError,
		Scope:  ScopeDriver,
		GID:    goid(),
		Name:   name,
		Detail: detail,
	})
}
