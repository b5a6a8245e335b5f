package pysrc

import "strings"

// WildcardSentinel stands in an export list for "everything the wildcard
// target exports"; it is resolved transitively when the module is
// processed.
const WildcardSentinel = "*"

// WildcardExportsOf derives the names `from m import *` would bind, in
// first-occurrence order without duplicates. A top-level `__all__` assigned
// a literal string list wins outright (last assignment counts, underscore
// names included). Otherwise every top-level binding not starting with an
// underscore is exported, and each top-level `from X import *` contributes
// the sentinel for later resolution.
func WildcardExportsOf(src *Source) []string {
	var names []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if name == "" || strings.HasPrefix(name, "_") {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	var dunderAll []string
	for i := range src.Statements {
		st := &src.Statements[i]
		switch st.Kind {
		case StmtAssign:
			if len(st.Targets) == 1 && st.Targets[0] == "__all__" && st.Strings != nil {
				dunderAll = st.Strings
				continue
			}
			for _, t := range st.Targets {
				add(t)
			}
		case StmtDef, StmtClass:
			add(st.Name)
		case StmtImport, StmtFromImport:
			if st.Wildcard {
				if _, dup := seen[WildcardSentinel]; !dup {
					seen[WildcardSentinel] = struct{}{}
					names = append(names, WildcardSentinel)
				}
			}
			for _, a := range st.Names {
				add(a.Binding())
			}
		}
	}

	if dunderAll != nil {
		out := make([]string, 0, len(dunderAll))
		dup := make(map[string]struct{}, len(dunderAll))
		for _, n := range dunderAll {
			if n == "" {
				continue
			}
			if _, ok := dup[n]; ok {
				continue
			}
			dup[n] = struct{}{}
			out = append(out, n)
		}
		return out
	}
	return names
}
