// Package modtrack maps a tree of Python source files onto module
// qualifiers: which file owns each qualifier, which qualifiers exist only
// as namespace packages, and how two states of the tree differ.
package modtrack

import (
	"pyrite/internal/pysrc"
)

// SourceLocation is one tracked file. Owned by the tracker; lookups hand
// out copies.
type SourceLocation struct {
	Path      string // absolute path
	RelPath   string // slash-separated, relative to Root
	Root      string // the search root that owns the file
	RootIndex int    // position of Root in the configured order
	Qualifier pysrc.Qualifier
	IsStub    bool
	IsInit    bool
}

// betterThan orders two candidate files for the same qualifier: a stub
// shadows its implementation, an earlier search root shadows a later one,
// a package beats a plain module, and the path breaks remaining ties.
func (l SourceLocation) betterThan(other SourceLocation) bool {
	if l.IsStub != other.IsStub {
		return l.IsStub
	}
	if l.RootIndex != other.RootIndex {
		return l.RootIndex < other.RootIndex
	}
	if l.IsInit != other.IsInit {
		return l.IsInit
	}
	return l.Path < other.Path
}
