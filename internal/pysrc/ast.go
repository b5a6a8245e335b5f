package pysrc

import (
	"path/filepath"
	"strings"
)

// StmtKind discriminates the statement variants below. A single struct with
// a kind tag keeps trees serializable without interface indirection.
type StmtKind uint8

const (
	StmtImport     StmtKind = iota + 1 // import a.b as c, d
	StmtFromImport                     // from a.b import x as y / from a.b import *
	StmtDef                            // def f(...) -> T: ...  (async included)
	StmtClass                          // class C(bases): ...
	StmtAssign                         // x = v / x: T = v / x: T
)

// String returns the statement kind name.
func (k StmtKind) String() string {
	switch k {
	case StmtImport:
		return "import"
	case StmtFromImport:
		return "from-import"
	case StmtDef:
		return "def"
	case StmtClass:
		return "class"
	case StmtAssign:
		return "assign"
	default:
		return "unknown"
	}
}

// Alias is one imported binding: "x as y" or a bare "x". For StmtImport the
// Name is the full dotted module path.
type Alias struct {
	Name string
	As   string
}

// Binding returns the local name the alias introduces: the explicit "as"
// name if present, otherwise the first dotted component of Name.
func (a Alias) Binding() string {
	if a.As != "" {
		return a.As
	}
	head, _, _ := strings.Cut(a.Name, ".")
	return head
}

// Param is a single def parameter.
type Param struct {
	Name      string
	Annotated bool
}

// Statement is one node of the statement tree. Only the fields matching
// Kind are meaningful; the rest stay zero. Def and class bodies nest via
// Body.
type Statement struct {
	Kind StmtKind
	Line int // 1-based

	// StmtImport, StmtFromImport
	Module   Qualifier // from-import target, absolute after preprocessing
	Names    []Alias
	Wildcard bool // from X import *
	Dots     int  // leading dots of a relative import, zero once expanded

	// StmtDef, StmtClass
	Name       string
	Params     []Param
	ReturnsAnn bool
	Async      bool
	Bases      []string
	Body       []Statement

	// StmtAssign
	Targets   []string
	Annotated bool     // at least one target carries an annotation
	Strings   []string // value when the RHS is a literal list/tuple of strings
}

// TypedMode is the per-file checking mode derived from header comments.
type TypedMode uint8

const (
	ModeDefault   TypedMode = iota // no marker: project default applies
	ModeStrict                     // "# pyre-strict"
	ModeUnsafe                     // "# pyre-unsafe"
	ModeDeclare                    // "# pyre-do-not-check"
	ModeIgnoreAll                  // "# pyre-ignore-all-errors"
)

// String returns the mode marker name.
func (m TypedMode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeStrict:
		return "strict"
	case ModeUnsafe:
		return "unsafe"
	case ModeDeclare:
		return "declare"
	case ModeIgnoreAll:
		return "ignore-all"
	default:
		return "unknown"
	}
}

// Source is one module's statement tree together with the per-line comment
// markers the checker and the statistics collectors consume. Stored trees
// are owned by the cache: callers receive shared read-only views and must
// not mutate them.
type Source struct {
	Qualifier   Qualifier
	Path        string
	Statements  []Statement
	TypedMode   TypedMode
	IgnoreLines []int       // lines carrying "# type: ignore"
	FixmeCodes  map[int]int // fixme line -> suppressed error code (0 = any)
}

// IsStub reports whether the source is backed by a .pyi file.
func (s *Source) IsStub() bool { return strings.HasSuffix(s.Path, ".pyi") }

// IsInit reports whether the source is a package __init__ file.
func (s *Source) IsInit() bool {
	base := filepath.Base(s.Path)
	return base == "__init__.py" || base == "__init__.pyi"
}

// Module is the derived metadata record stored alongside a processed
// source.
type Module struct {
	Qualifier  Qualifier
	IsStub     bool
	IsInit     bool
	IsImplicit bool // namespace package without a backing file
	Empty      bool // no statements
}

// ModuleOf derives metadata from a processed source.
func ModuleOf(src *Source) *Module {
	return &Module{
		Qualifier: src.Qualifier,
		IsStub:    src.IsStub(),
		IsInit:    src.IsInit(),
		Empty:     len(src.Statements) == 0,
	}
}

// ImplicitModule synthesizes the record for a namespace package or for the
// builtins aliases, which are never stored.
func ImplicitModule(q Qualifier) *Module {
	return &Module{Qualifier: q, IsImplicit: true, Empty: true}
}
