package astenv

import (
	"context"
	"errors"
	"fmt"
	"os"

	"pyrite/internal/modtrack"
	"pyrite/internal/pysrc"
	"pyrite/internal/sched"
	"pyrite/internal/trace"
)

// SystemFailure is an unexpected parse-side failure: an unreadable file
// or a grammar crash. Unlike a syntax error it points at the environment
// rather than the source text.
type SystemFailure struct {
	Path string
	Err  error
}

func (f SystemFailure) Error() string { return fmt.Sprintf("%s: %v", f.Path, f.Err) }

// Batch summarizes one parse pass. Failures are data: the pass itself
// never returns an error, and one bad file never blocks the rest.
type Batch struct {
	Parsed       []pysrc.Qualifier
	SyntaxErrors []*pysrc.SyntaxError
	Skipped      []*pysrc.SkipError
	SystemErrors []SystemFailure
}

// merge folds other into b; partial batches combine in chunk order.
func (b Batch) merge(other Batch) Batch {
	b.Parsed = append(b.Parsed, other.Parsed...)
	b.SyntaxErrors = append(b.SyntaxErrors, other.SyntaxErrors...)
	b.Skipped = append(b.Skipped, other.Skipped...)
	b.SystemErrors = append(b.SystemErrors, other.SystemErrors...)
	return b
}

// ParseAll cold-starts the environment from the tracker: parse every
// tracked file, then process every tracked module. Modules whose parse
// failed have no raw tree, so processing skips them.
func (e *Environment) ParseAll(ctx context.Context) Batch {
	batch := e.ParseRawSources(ctx, e.tracker.SourcePaths())
	e.ProcessSources(ctx, e.tracker.TrackedExplicitModules())
	return batch
}

// ParseRawSources parses the given locations, storing each raw tree and
// its raw export list. Chunks run in parallel; partial batches fold in
// chunk order so the summary is deterministic.
func (e *Environment) ParseRawSources(ctx context.Context, locations []modtrack.SourceLocation) Batch {
	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "parse_raw_sources")
	batch := sched.MapReduce(ctx, e.sched, locations, e.parseChunk, Batch.merge, Batch{})
	span.End(fmt.Sprintf("files=%d parsed=%d", len(locations), len(batch.Parsed)))
	return batch
}

func (e *Environment) parseChunk(ctx context.Context, chunk []modtrack.SourceLocation) Batch {
	var b Batch
	tracer := trace.FromContext(ctx)
	for i := range chunk {
		e.parseOne(tracer, chunk[i], &b)
	}
	return b
}

// parseOne reads and parses a single file. On success the first
// preprocessing phase runs before anything is stored, so the raw tables
// only ever hold position-independent trees. On failure nothing is
// written: previously stored artifacts for the qualifier, if any, stay
// until an explicit removal.
func (e *Environment) parseOne(tracer trace.Tracer, loc modtrack.SourceLocation, b *Batch) {
	content, err := os.ReadFile(loc.Path)
	if err != nil {
		b.SystemErrors = append(b.SystemErrors, SystemFailure{Path: loc.Path, Err: err})
		trace.Error(tracer, "read_source", err.Error())
		return
	}

	src, err := e.safeParse(loc.Path, content)
	if err != nil {
		var skip *pysrc.SkipError
		var syn *pysrc.SyntaxError
		switch {
		case errors.As(err, &skip):
			b.Skipped = append(b.Skipped, skip)
		case errors.As(err, &syn):
			b.SyntaxErrors = append(b.SyntaxErrors, syn)
			trace.Point(tracer, trace.ScopeModule, "syntax_error", syn.Error())
		default:
			b.SystemErrors = append(b.SystemErrors, SystemFailure{Path: loc.Path, Err: err})
			trace.Error(tracer, "parse_source", fmt.Sprintf("%s: %v", loc.Path, err))
		}
		return
	}

	src.Qualifier = loc.Qualifier
	src = e.pre.Phase0(src)
	e.rawSources.Add(loc.Qualifier, src)
	e.rawExports.Add(loc.Qualifier, pysrc.WildcardExportsOf(src))
	b.Parsed = append(b.Parsed, loc.Qualifier)
}

// safeParse guards against grammar panics: a crash on one file becomes a
// system failure for that file and the batch carries on.
func (e *Environment) safeParse(path string, content []byte) (src *pysrc.Source, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()
	return e.grammar.Parse(path, content)
}

// ProcessSources runs the post-parse pipeline over the given qualifiers
// via parallel iteration. Processing communicates only through the
// tables, so no results are collected.
func (e *Environment) ProcessSources(ctx context.Context, qualifiers []pysrc.Qualifier) {
	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "process_sources")
	sched.Iter(ctx, e.sched, qualifiers, func(_ context.Context, q pysrc.Qualifier) {
		e.processOne(q)
	})
	span.End(fmt.Sprintf("modules=%d", len(qualifiers)))
}

// processOne derives the processed artifacts for one module: fetch the
// raw tree on behalf of the module itself (the self-dependency that makes
// reparses reach their own processed records), apply the optional
// rewriter, expand wildcard imports, run the second preprocessing phase,
// and store the tree, its export list, and its metadata record.
func (e *Environment) processOne(q pysrc.Qualifier) {
	raw, ok := e.rawSources.GetTracked(q, q)
	if !ok {
		// Removed or never parsed: skipping silently is what lets the
		// update protocol reprocess deletions without special cases.
		return
	}

	src := raw
	if e.rewriter != nil {
		src = e.rewriter.Rewrite(src)
	}
	src = e.expandWildcardImports(src)
	src = e.pre.Phase1(src)

	e.sources.Add(q, src)
	e.exports.Add(q, pysrc.WildcardExportsOf(src))
	e.modules.Add(q, pysrc.ModuleOf(src))
}
