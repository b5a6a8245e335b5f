// Package pyparse turns Python source text into the statement-level tree
// the rest of the analysis works on: imports, definitions and module-level
// assignments. Expression grammar is scanned for bracket balance only and
// never represented.
package pyparse

import (
	"bytes"
	"sort"

	"pyrite/internal/pysrc"
)

// Options configures parsing.
type Options struct {
	// MaxErrors bounds how many syntax errors are collected before the
	// parser gives up on a file. Zero means stop at the first one.
	MaxErrors uint
}

// Grammar parses Python sources.
type Grammar struct {
	opts Options
}

func New(opts Options) *Grammar {
	return &Grammar{opts: opts}
}

// generatedHeaderLines is how deep into a file the generated marker is
// looked for.
const generatedHeaderLines = 50

// Marker text assembled in parts so this file is not itself flagged.
var generatedMarker = []byte("@" + "generated")

// Parse reads one module. On failure the error is either a
// *pysrc.SyntaxError (the first one in the file) or a *pysrc.SkipError,
// and no source is returned.
func (g *Grammar) Parse(path string, content []byte) (*pysrc.Source, error) {
	src, errs, err := g.run(path, content)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return src, nil
}

// ParseAll is the recovering form: alongside the partial source it returns
// every syntax error found, up to Options.MaxErrors. Skips still abort.
func (g *Grammar) ParseAll(path string, content []byte) (*pysrc.Source, []*pysrc.SyntaxError, error) {
	return g.run(path, content)
}

func (g *Grammar) run(path string, content []byte) (*pysrc.Source, []*pysrc.SyntaxError, error) {
	if line, ok := generatedAt(content); ok {
		return nil, nil, &pysrc.SkipError{Path: path, Line: line, Reason: pysrc.SkipGenerated}
	}
	marks := &markers{}
	toks, scanErrs := newScanner(path, content, marks).scan()
	p := newParser(path, toks, g.opts.MaxErrors)
	stmts := p.parseModule()
	if p.legacy != nil {
		return nil, nil, p.legacy
	}
	errs := append(scanErrs, p.errs...)
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Line != errs[j].Line {
			return errs[i].Line < errs[j].Line
		}
		return errs[i].Col < errs[j].Col
	})
	if len(errs) > p.maxErr {
		errs = errs[:p.maxErr]
	}
	src := &pysrc.Source{
		Path:        path,
		Statements:  stmts,
		TypedMode:   marks.mode,
		IgnoreLines: marks.ignores,
		FixmeCodes:  marks.fixmes,
	}
	return src, errs, nil
}

func generatedAt(src []byte) (int, bool) {
	for line := 1; line <= generatedHeaderLines; line++ {
		head, rest, more := bytes.Cut(src, []byte{'\n'})
		if bytes.Contains(head, generatedMarker) {
			return line, true
		}
		if !more {
			break
		}
		src = rest
	}
	return 0, false
}
