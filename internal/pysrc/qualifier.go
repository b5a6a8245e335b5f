package pysrc

import (
	"path/filepath"
	"sort"
	"strings"
)

// Qualifier is the dotted-name identity of a module ("os.path", "a.b.c").
// It is the primary key of every cache table and doubles as the consumer
// identity for dependency tracking, which is what lets a module depend on
// its own raw form as well as on the modules it imports from.
type Qualifier string

const (
	// None is the zero qualifier: no module, or an untracked read.
	None Qualifier = ""
	// Builtins is the implicit root module every module depends on.
	Builtins Qualifier = "builtins"
	// LegacyBuiltins is the pre-3 spelling of Builtins.
	LegacyBuiltins Qualifier = "__builtin__"
)

// Quali builds a Qualifier from a dotted name.
func Quali(name string) Qualifier { return Qualifier(name) }

func (q Qualifier) String() string { return string(q) }

// IsNone reports whether q denotes no module.
func (q Qualifier) IsNone() bool { return q == None }

// IsBuiltins reports whether q names the implicit root module under either
// of its spellings. Such qualifiers are never stored in the cache tables;
// metadata lookups synthesize an implicit empty module for them instead.
func (q Qualifier) IsBuiltins() bool { return q == Builtins || q == LegacyBuiltins }

// Parent returns the enclosing package qualifier ("a.b.c" -> "a.b") or None
// for a top-level module.
func (q Qualifier) Parent() Qualifier {
	idx := strings.LastIndexByte(string(q), '.')
	if idx < 0 {
		return None
	}
	return q[:idx]
}

// Child appends one component to q.
func (q Qualifier) Child(name string) Qualifier {
	if q.IsNone() {
		return Qualifier(name)
	}
	return q + "." + Qualifier(name)
}

// QualifierFromRelPath derives the module qualifier from a path relative to
// its search root: "a/b/c.py" -> "a.b.c", "a/__init__.pyi" -> "a". None is
// returned for paths that do not name a module.
func QualifierFromRelPath(rel string) Qualifier {
	rel = filepath.ToSlash(rel)
	stem, ok := strings.CutSuffix(rel, ".pyi")
	if !ok {
		if stem, ok = strings.CutSuffix(rel, ".py"); !ok {
			return None
		}
	}
	parts := strings.Split(stem, "/")
	if last := len(parts) - 1; parts[last] == "__init__" {
		parts = parts[:last]
	}
	if len(parts) == 0 {
		return None
	}
	for _, p := range parts {
		if p == "" {
			return None
		}
	}
	return Qualifier(strings.Join(parts, "."))
}

// Set is an unordered collection of qualifiers.
type Set map[Qualifier]struct{}

// NewSet builds a Set holding the given qualifiers.
func NewSet(qs ...Qualifier) Set {
	s := make(Set, len(qs))
	for _, q := range qs {
		s[q] = struct{}{}
	}
	return s
}

// Add inserts q.
func (s Set) Add(q Qualifier) { s[q] = struct{}{} }

// AddAll inserts every qualifier from other.
func (s Set) AddAll(other Set) {
	for q := range other {
		s[q] = struct{}{}
	}
}

// Contains reports membership.
func (s Set) Contains(q Qualifier) bool {
	_, ok := s[q]
	return ok
}

// Sorted returns the contents in lexicographic order; outputs derived from
// sets must be deterministic.
func (s Set) Sorted() []Qualifier {
	out := make([]Qualifier, 0, len(s))
	for q := range s {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
