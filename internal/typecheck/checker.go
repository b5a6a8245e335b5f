// Package typecheck is the default check engine: import resolution over
// the processed module cache, comment-driven suppression, and per-mode
// coverage accounting. Every environment read it performs is attributed
// to the module under check, so cache invalidation reaches the modules
// whose findings depend on what changed.
package typecheck

import (
	"context"
	"errors"
	"fmt"

	"pyrite/internal/analysis"
	"pyrite/internal/astenv"
	"pyrite/internal/pysrc"
)

// CodeUndefinedImport flags imports of modules or names that do not
// resolve.
const CodeUndefinedImport = 21

// Options configures an Engine. View is required.
type Options struct {
	View *astenv.View
	// CollectLookups records a per-module table of resolved references.
	CollectLookups bool
	// StrictDefault treats files without a mode marker as strict.
	StrictDefault bool
}

// Engine checks modules one at a time. Safe for concurrent use: shared
// state is limited to the memo, which locks internally.
type Engine struct {
	view    *astenv.View
	memo    *LookupMemo
	lookups bool
	strict  bool
}

// NewEngine builds an engine over the read-only environment view.
func NewEngine(opts Options) (*Engine, error) {
	if opts.View == nil {
		return nil, errors.New("typecheck: view required")
	}
	return &Engine{
		view:    opts.View,
		memo:    NewLookupMemo(),
		lookups: opts.CollectLookups,
		strict:  opts.StrictDefault,
	}, nil
}

// Memo exposes the binding cache for chunk-boundary clearing.
func (e *Engine) Memo() *LookupMemo { return e.memo }

// Check resolves every top-level import of the module and reports the
// ones that do not bind. Nested imports inside function and class bodies
// execute at call time and are not part of the module surface, so only
// top-level statements are walked. Modules in declare or ignore-all mode
// are still walked (the reads keep dependency edges alive) but their
// findings are dropped.
func (e *Engine) Check(_ context.Context, q pysrc.Qualifier, src *pysrc.Source) analysis.CheckResult {
	var res analysis.CheckResult
	var lookup *analysis.Lookup
	if e.lookups {
		lookup = &analysis.Lookup{Qualifier: q}
	}

	var found []analysis.Error
	for i := range src.Statements {
		st := &src.Statements[i]
		switch st.Kind {
		case pysrc.StmtImport:
			found = e.checkImport(q, src, st, lookup, found)
		case pysrc.StmtFromImport:
			found = e.checkFromImport(q, src, st, lookup, found)
		}
	}

	mode := src.TypedMode
	switch {
	case mode == pysrc.ModeStrict || (mode == pysrc.ModeDefault && e.strict):
		res.Coverage.Full = 1
	case mode == pysrc.ModeDefault || mode == pysrc.ModeUnsafe:
		res.Coverage.Partial = 1
	case mode == pysrc.ModeDeclare:
		res.Coverage.Untyped = 1
	default:
		res.Coverage.Ignored = 1
	}

	if mode != pysrc.ModeDeclare && mode != pysrc.ModeIgnoreAll {
		for _, err := range found {
			if !suppressed(src, err) {
				res.Errors = append(res.Errors, err)
			}
		}
	}
	res.Lookup = lookup
	return res
}

func (e *Engine) checkImport(q pysrc.Qualifier, src *pysrc.Source, st *pysrc.Statement, lookup *analysis.Lookup, found []analysis.Error) []analysis.Error {
	for _, a := range st.Names {
		target := pysrc.Quali(a.Name)
		if _, ok := e.view.GetModuleMetadata(target, q); !ok {
			found = append(found, e.undefined(q, src, st.Line, fmt.Sprintf("cannot find module `%s`", target)))
			continue
		}
		if lookup != nil {
			lookup.Entries = append(lookup.Entries, analysis.LookupEntry{Line: st.Line, Name: a.Binding(), Target: target})
		}
	}
	return found
}

func (e *Engine) checkFromImport(q pysrc.Qualifier, src *pysrc.Source, st *pysrc.Statement, lookup *analysis.Lookup, found []analysis.Error) []analysis.Error {
	target := st.Module
	if target.IsNone() {
		return append(found, e.undefined(q, src, st.Line, "relative import reaches past the top-level package"))
	}
	if _, ok := e.view.GetModuleMetadata(target, q); !ok {
		return append(found, e.undefined(q, src, st.Line, fmt.Sprintf("cannot find module `%s`", target)))
	}

	// The target's own top-level bindings; nil when the target has no
	// processed tree (namespace package or unparsable file).
	var bindings map[string]struct{}
	if targetSrc, ok := e.view.GetSource(target, q); ok {
		bindings = e.memo.Bindings(targetSrc)
	}

	for _, a := range st.Names {
		if _, bound := bindings[a.Name]; bound {
			if lookup != nil {
				lookup.Entries = append(lookup.Entries, analysis.LookupEntry{Line: st.Line, Name: a.Binding(), Target: target})
			}
			continue
		}
		sub := target.Child(a.Name)
		if _, ok := e.view.GetModuleMetadata(sub, q); ok {
			if lookup != nil {
				lookup.Entries = append(lookup.Entries, analysis.LookupEntry{Line: st.Line, Name: a.Binding(), Target: sub})
			}
			continue
		}
		found = append(found, e.undefined(q, src, st.Line, fmt.Sprintf("module `%s` has no name `%s`", target, a.Name)))
	}
	return found
}

func (e *Engine) undefined(q pysrc.Qualifier, src *pysrc.Source, line int, msg string) analysis.Error {
	return analysis.Error{
		Qualifier: q,
		Path:      src.Path,
		Line:      line,
		Col:       1,
		Code:      CodeUndefinedImport,
		Message:   msg,
	}
}

// suppressed reports whether a comment marker covers the error: a fixme
// with a matching code (or no code) on the error line or the line above,
// or a bare type-ignore on either line.
func suppressed(src *pysrc.Source, err analysis.Error) bool {
	for _, line := range []int{err.Line, err.Line - 1} {
		if code, ok := src.FixmeCodes[line]; ok && (code == 0 || code == err.Code) {
			return true
		}
	}
	for _, ignored := range src.IgnoreLines {
		if ignored == err.Line || ignored == err.Line-1 {
			return true
		}
	}
	return false
}
