package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	LevelOff    Level = iota // no tracing
	LevelError               // only error events
	LevelPhase               // driver + pass boundaries
	LevelDetail              // module-level events
	LevelDebug               // everything
)

var levelNames = [...]string{"off", "error", "phase", "detail", "debug"}

// String returns the string representation of Level.
func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel converts a string to a Level. Matching is case-insensitive.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(s)
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|error|phase|detail|debug)", s)
}

// ShouldEmit reports whether events of the given scope pass the level
// filter. Error events bypass this check and emit at any level above
// LevelOff.
func (l Level) ShouldEmit(scope Scope) bool {
	if l <= LevelError {
		// LevelError only lets the KindError path through
		return false
	}
	if l >= LevelDebug {
		return true
	}
	switch scope {
	case ScopeDriver, ScopePass:
		return true // LevelPhase and up
	case ScopeModule:
		return l >= LevelDetail
	}
	return false
}
