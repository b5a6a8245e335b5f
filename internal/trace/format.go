package trace

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Format selects the encoding for trace output.
type Format uint8

const (
	FormatAuto   Format = iota // pick from the output path
	FormatText                 // human-readable text
	FormatNDJSON               // newline-delimited JSON
)

var formatNames = [...]string{"auto", "text", "ndjson"}

// String returns the string representation of Format.
func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "unknown"
}

// ParseFormat converts a string to a Format. The empty string means auto.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(s)
	if name == "" {
		return FormatAuto, nil
	}
	for i, n := range formatNames {
		if n == name {
			return Format(i), nil
		}
	}
	return FormatAuto, fmt.Errorf("invalid trace format: %q (expected: auto|text|ndjson)", s)
}

// render encodes one event in the given format, newline-terminated.
func render(ev *Event, f Format) []byte {
	if f == FormatNDJSON {
		return renderJSON(ev)
	}
	return renderText(ev)
}

// wireEvent is the NDJSON shape. Zero-valued fields are omitted so
// point events stay one short line.
type wireEvent struct {
	Time   string `json:"time"`
	Seq    uint64 `json:"seq"`
	Kind   string `json:"kind"`
	Scope  string `json:"scope"`
	Span   uint64 `json:"span,omitempty"`
	GID    uint64 `json:"gid,omitempty"`
	Name   string `json:"name"`
	Detail string `json:"detail,omitempty"`
	DurUS  int64  `json:"dur_us,omitempty"`
}

func renderJSON(ev *Event) []byte {
	data, err := json.Marshal(wireEvent{
		Time:   ev.Time.UTC().Format(time.RFC3339Nano),
		Seq:    ev.Seq,
		Kind:   ev.Kind.String(),
		Scope:  ev.Scope.String(),
		Span:   ev.SpanID,
		GID:    ev.GID,
		Name:   ev.Name,
		Detail: ev.Detail,
		DurUS:  ev.Dur.Microseconds(),
	})
	if err != nil {
		return nil
	}
	return append(data, '\n')
}

// renderText lays out one event per line: "[seq] marker name (detail) dur".
func renderText(ev *Event) []byte {
	buf := fmt.Appendf(nil, "[%6d] %s %s", ev.Seq, marker(ev.Kind), ev.Name)
	if ev.Detail != "" {
		buf = fmt.Appendf(buf, " (%s)", ev.Detail)
	}
	if ev.Kind == KindSpanEnd {
		buf = fmt.Appendf(buf, " %s", ev.Dur.Round(time.Microsecond))
	}
	return append(buf, '\n')
}

func marker(k Kind) string {
	switch k {
	case KindSpanBegin:
		return "→"
	case KindSpanEnd:
		return "←"
	case KindError:
		return "!"
	default:
		return "•"
	}
}
