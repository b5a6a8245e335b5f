package astenv

import "pyrite/internal/pysrc"

// DefaultPreprocessor implements the two standard rewrite phases. Phase
// zero makes relative imports absolute so the stored raw tree is
// position-independent; phase one is currently the identity and marks the
// seam where post-wildcard rewrites belong.
type DefaultPreprocessor struct{}

func (DefaultPreprocessor) Phase0(src *pysrc.Source) *pysrc.Source {
	return expandRelativeImports(src)
}

func (DefaultPreprocessor) Phase1(src *pysrc.Source) *pysrc.Source { return src }

// expandRelativeImports resolves `from . import x` forms against the
// module's own package: one leading dot names the current package, each
// extra dot one package further up. Only top-level statements are
// rewritten; nested imports bind at call time and stay out of the module
// surface. Sources without a relative import come back unchanged.
func expandRelativeImports(src *pysrc.Source) *pysrc.Source {
	dirty := -1
	for i := range src.Statements {
		st := &src.Statements[i]
		if st.Kind == pysrc.StmtFromImport && st.Dots > 0 {
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
		if st.Kind != pysrc.StmtFromImport || st.Dots == 0 {
			continue
		}
		st.Module = resolveRelative(src, st.Dots, st.Module)
		st.Dots = 0
	}
	return &out
}

// resolveRelative maps a relative reference onto an absolute qualifier.
// The current package is the module itself for a package __init__ and the
// parent otherwise. Dots climbing past the top level leave the written
// suffix resolved against the root, which the checker then reports as
// unresolvable unless a top-level module happens to match.
func resolveRelative(src *pysrc.Source, dots int, module pysrc.Qualifier) pysrc.Qualifier {
	base := src.Qualifier
	if !src.IsInit() {
		base = base.Parent()
	}
	for i := 1; i < dots; i++ {
		base = base.Parent()
	}
	if module.IsNone() {
		return base
	}
	return base.Child(string(module))
}
