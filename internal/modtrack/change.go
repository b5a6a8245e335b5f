package modtrack

import (
	"fmt"

	"pyrite/internal/pysrc"
)

// ChangeKind classifies one module-level filesystem event.
type ChangeKind uint8

const (
	// ChangeNewExplicit: a file now owns the qualifier (created, modified,
	// or a different file won the shadowing).
	ChangeNewExplicit ChangeKind = iota + 1
	// ChangeNewImplicit: the qualifier appeared as a namespace package.
	ChangeNewImplicit
	// ChangeDelete: the qualifier no longer has a file of its own.
	ChangeDelete
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeNewExplicit:
		return "new-explicit"
	case ChangeNewImplicit:
		return "new-implicit"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change is one unit of work for an incremental update. Location is set
// only for ChangeNewExplicit.
type Change struct {
	Kind      ChangeKind
	Qualifier pysrc.Qualifier
	Location  SourceLocation
}

func NewExplicit(loc SourceLocation) Change {
	return Change{Kind: ChangeNewExplicit, Qualifier: loc.Qualifier, Location: loc}
}

func NewImplicit(q pysrc.Qualifier) Change {
	return Change{Kind: ChangeNewImplicit, Qualifier: q}
}

func Delete(q pysrc.Qualifier) Change {
	return Change{Kind: ChangeDelete, Qualifier: q}
}

func (c Change) String() string {
	return fmt.Sprintf("%s(%s)", c.Kind, c.Qualifier)
}
