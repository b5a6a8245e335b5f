// Package astenv is the incremental analysis environment: the
// dependency-tracked tables holding raw and processed module sources, the
// parse/process pipeline that fills them, and the update protocol that
// keeps them consistent as files change on disk.
//
// Every tracked read is attributed to a consumer qualifier. The
// environment never diffs values to decide what went stale; invalidation
// is derived from who read what, snapshotted by transactions around each
// update.
package astenv

import (
	"errors"

	"pyrite/internal/depcache"
	"pyrite/internal/modtrack"
	"pyrite/internal/pysrc"
	"pyrite/internal/sched"
)

// DefaultCacheSize bounds the fast-path caches of the read-heavy tables.
const DefaultCacheSize = 4096

// Tracker answers which file owns a qualifier. The filesystem-backed
// implementation lives in modtrack; tests substitute fixed maps.
type Tracker interface {
	SourcePaths() []modtrack.SourceLocation
	LookupSourcePath(q pysrc.Qualifier) (modtrack.SourceLocation, bool)
	IsModuleTracked(q pysrc.Qualifier) bool
	ExplicitModuleCount() int
	TrackedExplicitModules() []pysrc.Qualifier
}

// Grammar parses one file into a statement tree. The pipeline assigns the
// qualifier on the returned source.
type Grammar interface {
	Parse(path string, content []byte) (*pysrc.Source, error)
}

// Preprocessor rewrites trees around caching. Phase0 runs at parse time,
// before the raw tree is stored; Phase1 runs at processing time, after
// wildcard expansion. Both must treat their input as read-only and copy
// on write.
type Preprocessor interface {
	Phase0(src *pysrc.Source) *pysrc.Source
	Phase1(src *pysrc.Source) *pysrc.Source
}

// Rewriter is an optional project-specific tree rewrite, applied during
// processing after the raw tree is fetched and before wildcard expansion.
type Rewriter interface {
	Rewrite(src *pysrc.Source) *pysrc.Source
}

// Options configures a new Environment. Tracker and Grammar are required.
type Options struct {
	Tracker  Tracker
	Grammar  Grammar
	Pre      Preprocessor // nil means DefaultPreprocessor
	Rewriter Rewriter     // optional
	Sched    *sched.Scheduler
	// CacheSize bounds the LRU front of the export and metadata tables;
	// zero or negative means DefaultCacheSize.
	CacheSize int
}

// Environment owns the five cache tables and the collaborators that fill
// them. Stored trees belong to the environment: callers receive shared
// read-only views and must not mutate them.
type Environment struct {
	tracker  Tracker
	grammar  Grammar
	pre      Preprocessor
	rewriter Rewriter
	sched    *sched.Scheduler

	rawSources *depcache.Table[pysrc.Qualifier, *pysrc.Source]
	rawExports *depcache.CachedTable[pysrc.Qualifier, []string]
	sources    *depcache.Table[pysrc.Qualifier, *pysrc.Source]
	exports    *depcache.CachedTable[pysrc.Qualifier, []string]
	modules    *depcache.CachedTable[pysrc.Qualifier, *pysrc.Module]
}

// New creates an empty environment over the given collaborators.
func New(opts Options) (*Environment, error) {
	if opts.Tracker == nil {
		return nil, errors.New("astenv: tracker required")
	}
	if opts.Grammar == nil {
		return nil, errors.New("astenv: grammar required")
	}
	pre := opts.Pre
	if pre == nil {
		pre = DefaultPreprocessor{}
	}
	sc := opts.Sched
	if sc == nil {
		sc = sched.New(sched.Options{})
	}
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}

	rawExports, err := depcache.NewCachedTable[pysrc.Qualifier, []string]("raw_exports", size)
	if err != nil {
		return nil, err
	}
	exports, err := depcache.NewCachedTable[pysrc.Qualifier, []string]("exports", size)
	if err != nil {
		return nil, err
	}
	modules, err := depcache.NewCachedTable[pysrc.Qualifier, *pysrc.Module]("modules", size)
	if err != nil {
		return nil, err
	}

	return &Environment{
		tracker:    opts.Tracker,
		grammar:    opts.Grammar,
		pre:        pre,
		rewriter:   opts.Rewriter,
		sched:      sc,
		rawSources: depcache.NewTable[pysrc.Qualifier, *pysrc.Source]("raw_sources"),
		rawExports: rawExports,
		sources:    depcache.NewTable[pysrc.Qualifier, *pysrc.Source]("sources"),
		exports:    exports,
		modules:    modules,
	}, nil
}

// GetRawSource returns the stored raw tree for q. A None consumer reads
// without recording a dependency.
func (e *Environment) GetRawSource(q, consumer pysrc.Qualifier) (*pysrc.Source, bool) {
	if consumer.IsNone() {
		return e.rawSources.Get(q)
	}
	return e.rawSources.GetTracked(q, consumer)
}

// GetSource returns the processed tree for q.
func (e *Environment) GetSource(q, consumer pysrc.Qualifier) (*pysrc.Source, bool) {
	if consumer.IsNone() {
		return e.sources.Get(q)
	}
	return e.sources.GetTracked(q, consumer)
}

// GetWildcardExports returns the processed export list for q: the names
// `from q import *` binds, fully resolved.
func (e *Environment) GetWildcardExports(q, consumer pysrc.Qualifier) ([]string, bool) {
	if consumer.IsNone() {
		return e.exports.Get(q)
	}
	return e.exports.GetTracked(q, consumer)
}

// GetModuleMetadata returns the metadata record for q. The builtins
// aliases always resolve to a synthesized implicit module and are never
// stored. For tracked qualifiers without a file of their own (namespace
// packages) an implicit record is synthesized after the table read; the
// absent read is still recorded, so consumers that saw the implicit
// module are invalidated the moment a real one appears.
func (e *Environment) GetModuleMetadata(q, consumer pysrc.Qualifier) (*pysrc.Module, bool) {
	if q.IsBuiltins() {
		return pysrc.ImplicitModule(q), true
	}
	var (
		m  *pysrc.Module
		ok bool
	)
	if consumer.IsNone() {
		m, ok = e.modules.Get(q)
	} else {
		m, ok = e.modules.GetTracked(q, consumer)
	}
	if ok {
		return m, true
	}
	if e.tracker.IsModuleTracked(q) {
		return pysrc.ImplicitModule(q), true
	}
	return nil, false
}

// GetSourcePath returns the file owning q. Lookups are untracked: a path
// change always arrives as a tracker change event, and those invalidate
// through the tables.
func (e *Environment) GetSourcePath(q pysrc.Qualifier) (modtrack.SourceLocation, bool) {
	return e.tracker.LookupSourcePath(q)
}

// Tracker returns the current module tracker, typically to diff it
// against a fresh walk.
func (e *Environment) Tracker() Tracker { return e.tracker }

// ReplaceTracker swaps in the tracker from a fresh filesystem walk. The
// caller follows up with Update carrying that same walk's change events;
// swapping outside that sequence leaves path lookups answering for the
// wrong tree.
func (e *Environment) ReplaceTracker(t Tracker) { e.tracker = t }

// IsModule reports whether q is importable: the builtins aliases, a
// file-backed module, or a namespace package.
func (e *Environment) IsModule(q pysrc.Qualifier) bool {
	if q.IsBuiltins() {
		return true
	}
	return e.tracker.IsModuleTracked(q)
}

// AllExplicitModules returns every file-backed qualifier in order.
func (e *Environment) AllExplicitModules() []pysrc.Qualifier {
	return e.tracker.TrackedExplicitModules()
}

// RemoveSources drops every table entry for the given qualifiers. Read
// history deliberately survives removal, so a transaction staged on the
// same keys still sees the consumers that read them before.
func (e *Environment) RemoveSources(qualifiers []pysrc.Qualifier) {
	e.rawSources.RemoveBatch(qualifiers)
	e.rawExports.RemoveBatch(qualifiers)
	e.sources.RemoveBatch(qualifiers)
	e.exports.RemoveBatch(qualifiers)
	e.modules.RemoveBatch(qualifiers)
}

// View is the read-only face of the environment handed to analysis
// workers: query methods only, no pipeline or update entry points.
type View struct {
	env *Environment
}

// ReadOnly returns the query-only view.
func (e *Environment) ReadOnly() *View { return &View{env: e} }

func (v *View) GetSource(q, consumer pysrc.Qualifier) (*pysrc.Source, bool) {
	return v.env.GetSource(q, consumer)
}

func (v *View) GetWildcardExports(q, consumer pysrc.Qualifier) ([]string, bool) {
	return v.env.GetWildcardExports(q, consumer)
}

func (v *View) GetModuleMetadata(q, consumer pysrc.Qualifier) (*pysrc.Module, bool) {
	return v.env.GetModuleMetadata(q, consumer)
}

func (v *View) GetSourcePath(q pysrc.Qualifier) (modtrack.SourceLocation, bool) {
	return v.env.GetSourcePath(q)
}

func (v *View) IsModule(q pysrc.Qualifier) bool { return v.env.IsModule(q) }

func (v *View) AllExplicitModules() []pysrc.Qualifier { return v.env.AllExplicitModules() }
