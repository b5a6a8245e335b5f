package astenv_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pyrite/internal/modtrack"
	"pyrite/internal/pysrc"
)

func TestUpdateInvalidatesDependents(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.py": "X = 1\n",
		"c.py": "from b import *\n",
		"d.py": "D = 1\n",
	})
	env, _ := newTestEnv(t, root)
	ctx := context.Background()
	env.ParseAll(ctx)
	namesEqual(t, importNames(t, env, "c"), []string{"X"})

	// b's export list grows; c resolved its wildcard against the old one.
	writeTree(t, root, map[string]string{"b.py": "X = 1\nY = 2\n"})
	loc, ok := env.GetSourcePath("b")
	if !ok {
		t.Fatal("source path for b missing")
	}

	res := env.Update(ctx, []modtrack.Change{modtrack.NewExplicit(loc)})
	qualifiersEqual(t, res.Invalidated, []pysrc.Qualifier{"b", "c"})
	qualifiersEqual(t, res.Batch.Parsed, []pysrc.Qualifier{"b"})
	namesEqual(t, importNames(t, env, "c"), []string{"X", "Y"})

	// Reprocessing re-registered the reads in a fresh generation, so the
	// same change set invalidates the same consumers again.
	res = env.Update(ctx, []modtrack.Change{modtrack.NewExplicit(loc)})
	qualifiersEqual(t, res.Invalidated, []pysrc.Qualifier{"b", "c"})
}

func TestUpdateContentOnlyChange(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.py": "X = 1\n"})
	env, _ := newTestEnv(t, root)
	ctx := context.Background()
	env.ParseAll(ctx)

	writeTree(t, root, map[string]string{"a.py": "X = 2\n"})
	loc, _ := env.GetSourcePath("a")
	res := env.Update(ctx, []modtrack.Change{modtrack.NewExplicit(loc)})

	// No importers: the self-dependency alone carries the invalidation.
	qualifiersEqual(t, res.Invalidated, []pysrc.Qualifier{"a"})
}

func TestUpdateDeleteModule(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.py": "X = 1\n",
		"c.py": "from b import *\n",
	})
	env, old := newTestEnv(t, root)
	ctx := context.Background()
	env.ParseAll(ctx)

	if err := os.Remove(filepath.Join(root, "b.py")); err != nil {
		t.Fatal(err)
	}
	next, err := modtrack.NewFSTracker([]string{root}, nil)
	if err != nil {
		t.Fatal(err)
	}
	changes := modtrack.DiffTrackers(old, next, nil)
	if len(changes) != 1 || changes[0].Kind != modtrack.ChangeDelete || changes[0].Qualifier != "b" {
		t.Fatalf("changes = %v", changes)
	}

	env.ReplaceTracker(next)
	res := env.Update(ctx, changes)
	qualifiersEqual(t, res.Invalidated, []pysrc.Qualifier{"b", "c"})

	if _, ok := env.GetSource("b", pysrc.None); ok {
		t.Fatal("deleted module still has a processed source")
	}
	if _, ok := env.GetModuleMetadata("b", pysrc.None); ok {
		t.Fatal("deleted module still has metadata")
	}
	if env.IsModule("b") {
		t.Fatal("deleted module still importable")
	}
	namesEqual(t, importNames(t, env, "c"), []string{})
}

func TestUpdateNewModule(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.py": "A = 1\n"})
	env, old := newTestEnv(t, root)
	ctx := context.Background()
	env.ParseAll(ctx)

	writeTree(t, root, map[string]string{"e.py": "E = 1\n"})
	next, err := modtrack.NewFSTracker([]string{root}, nil)
	if err != nil {
		t.Fatal(err)
	}
	changes := modtrack.DiffTrackers(old, next, nil)
	env.ReplaceTracker(next)

	// A first-seen module has no recorded read history; it must still be
	// parsed and processed.
	res := env.Update(ctx, changes)
	qualifiersEqual(t, res.Invalidated, []pysrc.Qualifier{"e"})
	src, ok := env.GetSource("e", pysrc.None)
	if !ok || len(src.Statements) != 1 {
		t.Fatalf("new module not processed: %+v, ok=%v", src, ok)
	}
}

func TestUpdateImplicitAppearance(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.py": "A = 1\n"})
	env, old := newTestEnv(t, root)
	ctx := context.Background()
	env.ParseAll(ctx)

	// a looked for ns and saw nothing; that absent read is tracked.
	if _, ok := env.GetModuleMetadata("ns", "a"); ok {
		t.Fatal("ns must not exist yet")
	}

	writeTree(t, root, map[string]string{"ns/mod.py": "M = 1\n"})
	next, err := modtrack.NewFSTracker([]string{root}, nil)
	if err != nil {
		t.Fatal(err)
	}
	changes := modtrack.DiffTrackers(old, next, nil)
	env.ReplaceTracker(next)
	res := env.Update(ctx, changes)

	want := pysrc.NewSet("a", "ns", "ns.mod")
	for _, q := range res.Invalidated {
		if !want.Contains(q) {
			t.Fatalf("unexpected invalidation %s in %v", q, res.Invalidated)
		}
	}
	if len(res.Invalidated) != len(want) {
		t.Fatalf("invalidated = %v, want %v", res.Invalidated, want.Sorted())
	}

	meta, ok := env.GetModuleMetadata("ns", pysrc.None)
	if !ok || !meta.IsImplicit {
		t.Fatalf("metadata for ns = %+v, ok=%v", meta, ok)
	}
}

func TestUpdateReparseFailureKeepsOldArtifacts(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.py": "X = 1\n",
		"c.py": "from b import *\n",
	})
	env, _ := newTestEnv(t, root)
	ctx := context.Background()
	env.ParseAll(ctx)

	writeTree(t, root, map[string]string{"b.py": "def broken(:\n"})
	loc, _ := env.GetSourcePath("b")
	res := env.Update(ctx, []modtrack.Change{modtrack.NewExplicit(loc)})

	if len(res.Batch.SyntaxErrors) != 1 {
		t.Fatalf("syntax errors = %v", res.Batch.SyntaxErrors)
	}
	// Consumers are still told to re-check, but the cache keeps the last
	// good tree: entries are replaced wholesale or not at all.
	qualifiersEqual(t, res.Invalidated, []pysrc.Qualifier{"b", "c"})
	raw, ok := env.GetRawSource("b", pysrc.None)
	if !ok || len(raw.Statements) != 1 || raw.Statements[0].Kind != pysrc.StmtAssign {
		t.Fatalf("raw tree for b = %+v, ok=%v", raw, ok)
	}
	namesEqual(t, importNames(t, env, "c"), []string{"X"})
}

func TestUpdateEmptyChangeSet(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.py": "A = 1\n"})
	env, _ := newTestEnv(t, root)
	ctx := context.Background()
	env.ParseAll(ctx)

	res := env.Update(ctx, nil)
	if len(res.Invalidated) != 0 || len(res.Batch.Parsed) != 0 {
		t.Fatalf("empty update produced work: %+v", res)
	}
}
