package pysrc

import "fmt"

// SyntaxError is a grammar rejection. It is expected and recoverable: the
// file is excluded from the cache, reported in batch summary counts, and
// analysis continues for every other file.
type SyntaxError struct {
	Path    string
	Line    int // 1-based
	Col     int // 1-based byte column within the physical line
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Col, e.Message)
}

// SkipReason says why a file is deliberately excluded from checking.
type SkipReason uint8

const (
	// SkipGenerated marks machine-generated sources.
	SkipGenerated SkipReason = iota + 1
	// SkipLegacy marks sources written for a pre-3 interpreter.
	SkipLegacy
)

// String returns the reason name.
func (r SkipReason) String() string {
	switch r {
	case SkipGenerated:
		return "generated"
	case SkipLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// SkipError marks a file excluded from checking by policy rather than by
// failure: it is not counted as an error.
type SkipError struct {
	Path   string
	Line   int
	Reason SkipReason
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("%s: skipped (%s)", e.Path, e.Reason)
}
