package testkit

import (
	"fmt"

	"pyrite/internal/pysrc"
)

// Trees deeper than this are rejected; real Python nests nowhere near it
// and the walkers downstream are recursive.
const maxNesting = 200

// CheckTreeInvariants runs structural invariants on a freshly parsed
// (unexpanded) source tree:
// 1) every statement sits on a positive line, and sibling lines never
// decrease
// 2) each statement kind carries the fields it requires: imports have
// bindings with non-empty names, defs and classes have names, assigns
// have targets
// 3) bodies hang only off defs and classes
func CheckTreeInvariants(src *pysrc.Source) error {
	if src == nil {
		return fmt.Errorf("nil source")
	}
	if src.Path == "" {
		return fmt.Errorf("source without a path")
	}
	return checkStmts(src.Statements, 0)
}

func checkStmts(stmts []pysrc.Statement, depth int) error {
	if depth > maxNesting {
		return fmt.Errorf("statement nesting deeper than %d", maxNesting)
	}
	prev := 0
	for i := range stmts {
		st := &stmts[i]
		if st.Line < 1 {
			return fmt.Errorf("%v statement on non-positive line %d", st.Kind, st.Line)
		}
		if st.Line < prev {
			return fmt.Errorf("line %d: %v statement before its sibling on line %d", st.Line, st.Kind, prev)
		}
		prev = st.Line

		switch st.Kind {
		case pysrc.StmtImport:
			if len(st.Names) == 0 {
				return fmt.Errorf("line %d: import without bindings", st.Line)
			}
			if err := checkAliases(st); err != nil {
				return err
			}
		case pysrc.StmtFromImport:
			// `from x import ()` is the one legal empty-binding form
			if st.Dots == 0 && st.Module.IsNone() {
				return fmt.Errorf("line %d: from-import with no module and no dots", st.Line)
			}
			if err := checkAliases(st); err != nil {
				return err
			}
		case pysrc.StmtDef:
			if st.Name == "" {
				return fmt.Errorf("line %d: def without a name", st.Line)
			}
			for _, p := range st.Params {
				if p.Name == "" {
					return fmt.Errorf("line %d: def %s has an unnamed parameter", st.Line, st.Name)
				}
			}
		case pysrc.StmtClass:
			if st.Name == "" {
				return fmt.Errorf("line %d: class without a name", st.Line)
			}
		case pysrc.StmtAssign:
			if len(st.Targets) == 0 {
				return fmt.Errorf("line %d: assign without targets", st.Line)
			}
			for _, t := range st.Targets {
				if t == "" {
					return fmt.Errorf("line %d: assign with an empty target", st.Line)
				}
			}
		default:
			return fmt.Errorf("line %d: unknown statement kind %d", st.Line, int(st.Kind))
		}

		if len(st.Body) > 0 && st.Kind != pysrc.StmtDef && st.Kind != pysrc.StmtClass {
			return fmt.Errorf("line %d: %v statement carries a body", st.Line, st.Kind)
		}
		if err := checkStmts(st.Body, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func checkAliases(st *pysrc.Statement) error {
	for _, a := range st.Names {
		if a.Name == "" {
			return fmt.Errorf("line %d: %v with an empty binding name", st.Line, st.Kind)
		}
	}
	return nil
}
