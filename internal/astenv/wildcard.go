package astenv

import (
	"sort"

	"pyrite/internal/pysrc"
)

// expandWildcardImports rewrites every top-level `from X import *` into
// an explicit list of the names X transitively exports. The rewrite
// copies on write: sources without a wildcard come back unchanged.
func (e *Environment) expandWildcardImports(src *pysrc.Source) *pysrc.Source {
	dirty := -1
	for i := range src.Statements {
		st := &src.Statements[i]
		if st.Kind == pysrc.StmtFromImport && st.Wildcard {
			dirty = i
			break
		}
	}
	if dirty < 0 {
		return src
	}

	out := *src
	out.Statements = append([]pysrc.Statement(nil), src.Statements...)
	for i := dirty; i < len(out.Statements); i++ {
		st := &out.Statements[i]
		if st.Kind != pysrc.StmtFromImport || !st.Wildcard {
			continue
		}
		names := e.wildcardClosure(st.Module, src.Qualifier)
		st.Wildcard = false
		st.Names = make([]pysrc.Alias, len(names))
		for j, n := range names {
			st.Names[j] = pysrc.Alias{Name: n}
		}
	}
	return &out
}

// wildcardClosure collects the names `from start import *` binds,
// following chained wildcards breadth-first. Every visited module's raw
// export list and raw tree are read on behalf of importer, the module the
// statement lives in, so a change anywhere along the chain invalidates
// it. The visited set bounds the queue, which is what terminates cycles;
// the sentinel marking an unresolved nested wildcard never reaches the
// result.
func (e *Environment) wildcardClosure(start, importer pysrc.Qualifier) []string {
	names := make(map[string]struct{})
	visited := pysrc.NewSet()
	queue := []pysrc.Qualifier{start}

	for len(queue) > 0 {
		q := queue[0]
		queue = queue[1:]
		if visited.Contains(q) {
			continue
		}
		visited.Add(q)

		exports, ok := e.rawExports.GetTracked(q, importer)
		if ok {
			for _, n := range exports {
				if n != pysrc.WildcardSentinel {
					names[n] = struct{}{}
				}
			}
		}
		// The raw tree names the targets of nested wildcards; reading it
		// here also keeps importer subscribed to the module itself.
		raw, ok := e.rawSources.GetTracked(q, importer)
		if !ok {
			continue
		}
		for i := range raw.Statements {
			st := &raw.Statements[i]
			if st.Kind == pysrc.StmtFromImport && st.Wildcard {
				queue = append(queue, st.Module)
			}
		}
	}

	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
