package analysis

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"pyrite/internal/astenv"
	"pyrite/internal/pysrc"
	"pyrite/internal/sched"
	"pyrite/internal/trace"
)

// Checker checks one processed module. Implementations read further
// environment state on behalf of the checked qualifier so the caches can
// invalidate them later.
type Checker interface {
	Check(ctx context.Context, q pysrc.Qualifier, src *pysrc.Source) CheckResult
}

// ChunkCache is a memoization cache cleared before each chunk of work,
// bounding cross-chunk growth and dropping entries from a previous
// incremental run. Clear must be safe to call concurrently with use.
type ChunkCache interface {
	Clear()
}

// Options configures a Driver. View and Checker are required.
type Options struct {
	View    *astenv.View
	Checker Checker
	// Caches are cleared at every chunk boundary.
	Caches []ChunkCache
	// ProjectRoot, when set, excludes modules whose resolved path lies
	// outside it; external stubs stay cached but are not analyzed.
	ProjectRoot string
	Sched       *sched.Scheduler
}

// Driver runs check passes over module lists.
type Driver struct {
	view    *astenv.View
	checker Checker
	caches  []ChunkCache
	root    string
	sched   *sched.Scheduler
}

// NewDriver validates the options and resolves the project root through
// symlinks, so containment checks compare like with like.
func NewDriver(opts Options) (*Driver, error) {
	if opts.View == nil {
		return nil, errors.New("analysis: view required")
	}
	if opts.Checker == nil {
		return nil, errors.New("analysis: checker required")
	}
	root := opts.ProjectRoot
	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve project root: %w", err)
		}
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return nil, fmt.Errorf("resolve project root: %w", err)
		}
		root = resolved
	}
	sc := opts.Sched
	if sc == nil {
		sc = sched.New(sched.Options{})
	}
	return &Driver{
		view:    opts.View,
		checker: opts.Checker,
		caches:  opts.Caches,
		root:    root,
		sched:   sc,
	}, nil
}

// Run checks every given module that lies under the project root and
// merges the per-chunk results in chunk order, so parallel and
// sequential schedulers produce identical aggregates.
func (d *Driver) Run(ctx context.Context, qualifiers []pysrc.Qualifier) Result {
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeDriver, "analysis")

	work := append([]pysrc.Qualifier(nil), qualifiers...)
	sort.Slice(work, func(i, j int) bool { return work[i] < work[j] })
	work = d.filterToRoot(work)

	res := sched.MapReduce(ctx, d.sched, work, d.checkChunk, Result.Merge, Result{})
	span.End(fmt.Sprintf("files=%d errors=%d", res.FileCount, len(res.Errors)))
	return res
}

func (d *Driver) checkChunk(ctx context.Context, chunk []pysrc.Qualifier) Result {
	for _, c := range d.caches {
		c.Clear()
	}
	tracer := trace.FromContext(ctx)

	var out Result
	for _, q := range chunk {
		// The tracked read makes the checked module a consumer of its own
		// processed tree.
		src, ok := d.view.GetSource(q, q)
		if !ok {
			continue
		}
		out.FileCount++

		r, err := d.safeCheck(ctx, q, src)
		if err != nil {
			out.Coverage.Crashes++
			trace.Error(tracer, "check_crash", fmt.Sprintf("%s: %v", q, err))
			continue
		}
		out.Errors = append(out.Errors, r.Errors...)
		if r.Lookup != nil {
			if out.Lookups == nil {
				out.Lookups = make(map[pysrc.Qualifier]*Lookup)
			}
			out.Lookups[q] = r.Lookup
		}
		out.Coverage = out.Coverage.Add(r.Coverage)
	}
	return out
}

// safeCheck converts a checker panic on one module into a per-module
// failure; the chunk carries on.
func (d *Driver) safeCheck(ctx context.Context, q pysrc.Qualifier, src *pysrc.Source) (res CheckResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("checker panic: %v", r)
		}
	}()
	return d.checker.Check(ctx, q, src), nil
}

// filterToRoot keeps the modules whose symlink-resolved file path lies
// under the project root. Modules without a path (implicit packages that
// slipped in) are dropped alongside external ones.
func (d *Driver) filterToRoot(qualifiers []pysrc.Qualifier) []pysrc.Qualifier {
	if d.root == "" {
		return qualifiers
	}
	out := make([]pysrc.Qualifier, 0, len(qualifiers))
	for _, q := range qualifiers {
		loc, ok := d.view.GetSourcePath(q)
		if !ok {
			continue
		}
		p := loc.Path
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			p = resolved
		}
		if within(d.root, p) {
			out = append(out, q)
		}
	}
	return out
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
