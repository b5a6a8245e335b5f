package modtrack

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"pyrite/internal/pysrc"
)

// FSTracker is the filesystem-backed module tracker: it walks the search
// roots once at construction and answers qualifier lookups from the
// resulting maps. It is immutable after construction; an updated view is a
// new walk plus DiffTrackers.
type FSTracker struct {
	roots    []string
	excludes []string
	explicit map[pysrc.Qualifier]SourceLocation
	implicit map[pysrc.Qualifier]struct{}
}

// NewFSTracker walks the given search roots in priority order. Exclude
// patterns are path.Match globs tested against each entry's root-relative
// path and against its base name; matching directories are pruned whole.
func NewFSTracker(roots []string, excludes []string) (*FSTracker, error) {
	t := &FSTracker{
		excludes: excludes,
		explicit: make(map[pysrc.Qualifier]SourceLocation),
		implicit: make(map[pysrc.Qualifier]struct{}),
	}
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve search root %s: %w", root, err)
		}
		t.roots = append(t.roots, abs)
	}
	for i, root := range t.roots {
		if err := t.walkRoot(root, i); err != nil {
			return nil, err
		}
	}
	t.fillImplicit()
	return t, nil
}

func (t *FSTracker) walkRoot(root string, rootIndex int) error {
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, ".") || t.excluded(rel, name) {
				return filepath.SkipDir
			}
			return nil
		}
		if t.excluded(rel, d.Name()) {
			return nil
		}
		q := pysrc.QualifierFromRelPath(rel)
		if q.IsNone() || q.IsBuiltins() {
			return nil
		}
		loc := SourceLocation{
			Path:      p,
			RelPath:   rel,
			Root:      root,
			RootIndex: rootIndex,
			Qualifier: q,
			IsStub:    strings.HasSuffix(rel, ".pyi"),
			IsInit:    strings.HasSuffix(rel, "/__init__.py") || strings.HasSuffix(rel, "/__init__.pyi"),
		}
		if prev, ok := t.explicit[q]; !ok || loc.betterThan(prev) {
			t.explicit[q] = loc
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk search root %s: %w", root, err)
	}
	return nil
}

func (t *FSTracker) excluded(rel, base string) bool {
	for _, pattern := range t.excludes {
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// fillImplicit records every package ancestor that has no file of its own:
// a namespace package is importable even though nothing defines it.
func (t *FSTracker) fillImplicit() {
	for q := range t.explicit {
		for p := q.Parent(); !p.IsNone(); p = p.Parent() {
			if _, ok := t.explicit[p]; ok {
				continue
			}
			t.implicit[p] = struct{}{}
		}
	}
}

// LookupSourcePath returns the file owning q, if any.
func (t *FSTracker) LookupSourcePath(q pysrc.Qualifier) (SourceLocation, bool) {
	loc, ok := t.explicit[q]
	return loc, ok
}

// IsModuleTracked reports whether q is importable: owned by a file or
// present as a namespace package.
func (t *FSTracker) IsModuleTracked(q pysrc.Qualifier) bool {
	if _, ok := t.explicit[q]; ok {
		return true
	}
	_, ok := t.implicit[q]
	return ok
}

// IsImplicitModule reports whether q is tracked without a file of its own.
func (t *FSTracker) IsImplicitModule(q pysrc.Qualifier) bool {
	_, ok := t.implicit[q]
	return ok
}

func (t *FSTracker) ExplicitModuleCount() int { return len(t.explicit) }

// TrackedExplicitModules returns every file-owned qualifier in order.
func (t *FSTracker) TrackedExplicitModules() []pysrc.Qualifier {
	out := make([]pysrc.Qualifier, 0, len(t.explicit))
	for q := range t.explicit {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SourcePaths returns every tracked location, ordered by qualifier.
func (t *FSTracker) SourcePaths() []SourceLocation {
	out := make([]SourceLocation, 0, len(t.explicit))
	for _, loc := range t.explicit {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Qualifier < out[j].Qualifier })
	return out
}

// Index is the serializable form of a tracker, used by saved state.
type Index struct {
	Roots    []string
	Excludes []string
	Explicit []SourceLocation
	Implicit []pysrc.Qualifier
}

// Index captures the tracker state for persistence.
func (t *FSTracker) Index() *Index {
	idx := &Index{Roots: t.roots, Excludes: t.excludes, Explicit: t.SourcePaths()}
	for q := range t.implicit {
		idx.Implicit = append(idx.Implicit, q)
	}
	sort.Slice(idx.Implicit, func(i, j int) bool { return idx.Implicit[i] < idx.Implicit[j] })
	return idx
}

// FromIndex rebuilds a tracker from its serialized form without touching
// the filesystem.
func FromIndex(idx *Index) *FSTracker {
	t := &FSTracker{
		roots:    idx.Roots,
		excludes: idx.Excludes,
		explicit: make(map[pysrc.Qualifier]SourceLocation, len(idx.Explicit)),
		implicit: make(map[pysrc.Qualifier]struct{}, len(idx.Implicit)),
	}
	for _, loc := range idx.Explicit {
		t.explicit[loc.Qualifier] = loc
	}
	for _, q := range idx.Implicit {
		t.implicit[q] = struct{}{}
	}
	return t
}

// DiffTrackers translates the difference between two tracker states into
// update changes. touched lists absolute file paths whose content changed
// in place; paths that no longer own a module are covered by the
// structural diff and are ignored here.
func DiffTrackers(old, next *FSTracker, touched []string) []Change {
	var changes []Change
	seen := make(map[pysrc.Qualifier]ChangeKind)
	add := func(c Change) {
		if k, ok := seen[c.Qualifier]; ok && k == c.Kind {
			return
		}
		seen[c.Qualifier] = c.Kind
		changes = append(changes, c)
	}

	byPath := make(map[string]SourceLocation, len(next.explicit))
	for _, loc := range next.explicit {
		byPath[loc.Path] = loc
	}

	for q, loc := range next.explicit {
		prev, had := old.explicit[q]
		if !had || prev.Path != loc.Path {
			add(NewExplicit(loc))
		}
	}
	for _, p := range touched {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		if loc, ok := byPath[p]; ok {
			add(NewExplicit(loc))
		}
	}
	for q := range old.explicit {
		if _, ok := next.explicit[q]; !ok {
			add(Delete(q))
		}
	}
	for q := range next.implicit {
		if _, wasImplicit := old.implicit[q]; wasImplicit {
			continue
		}
		if _, wasExplicit := old.explicit[q]; wasExplicit {
			// demoted package: the Delete above already queues it, and the
			// tracker answers implicit lookups from its own maps
			continue
		}
		add(NewImplicit(q))
	}
	for q := range old.implicit {
		if _, ok := next.implicit[q]; ok {
			continue
		}
		if _, ok := next.explicit[q]; ok {
			continue // promoted: NewExplicit already queued
		}
		add(Delete(q))
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Qualifier != changes[j].Qualifier {
			return changes[i].Qualifier < changes[j].Qualifier
		}
		return changes[i].Kind < changes[j].Kind
	})
	return changes
}
