package astenv_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pyrite/internal/astenv"
	"pyrite/internal/modtrack"
	"pyrite/internal/pyparse"
	"pyrite/internal/pysrc"
	"pyrite/internal/sched"
)

func TestSnapshotRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.py": "X = 1\n",
		"c.py": "from b import *\n",
	})
	env, _ := newTestEnv(t, root)
	ctx := context.Background()
	env.ParseAll(ctx)

	snap := filepath.Join(t.TempDir(), "state", "pyrite.state")
	if err := env.SaveSnapshot(snap); err != nil {
		t.Fatal(err)
	}

	// The snapshot carries its own tracker index; no walk happens here.
	loaded, err := astenv.LoadSnapshot(snap, astenv.Options{
		Grammar: pyparse.New(pyparse.Options{}),
		Sched:   sched.New(sched.Options{Jobs: 1, Sequential: true}),
	})
	if err != nil {
		t.Fatal(err)
	}

	qualifiersEqual(t, loaded.AllExplicitModules(), []pysrc.Qualifier{"b", "c"})
	namesEqual(t, importNames(t, loaded, "c"), []string{"X"})
	meta, ok := loaded.GetModuleMetadata("b", pysrc.None)
	if !ok || meta.IsImplicit {
		t.Fatalf("metadata for b = %+v, ok=%v", meta, ok)
	}
	raw, ok := loaded.GetRawSource("c", pysrc.None)
	if !ok || !raw.Statements[0].Wildcard {
		t.Fatalf("raw tree for c = %+v, ok=%v", raw, ok)
	}
}

func TestSnapshotThenIncrementalUpdate(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.py": "X = 1\n",
		"c.py": "from b import *\n",
	})
	env, _ := newTestEnv(t, root)
	ctx := context.Background()
	env.ParseAll(ctx)

	snap := filepath.Join(t.TempDir(), "pyrite.state")
	if err := env.SaveSnapshot(snap); err != nil {
		t.Fatal(err)
	}
	loaded, err := astenv.LoadSnapshot(snap, astenv.Options{
		Grammar: pyparse.New(pyparse.Options{}),
		Sched:   sched.New(sched.Options{Jobs: 1, Sequential: true}),
	})
	if err != nil {
		t.Fatal(err)
	}

	// Content-only edit: the structural diff is empty, the touched path
	// carries the change.
	writeTree(t, root, map[string]string{"b.py": "X = 1\nY = 2\n"})
	old, ok := loaded.Tracker().(*modtrack.FSTracker)
	if !ok {
		t.Fatalf("restored tracker has type %T", loaded.Tracker())
	}
	next, err := modtrack.NewFSTracker([]string{root}, nil)
	if err != nil {
		t.Fatal(err)
	}
	changes := modtrack.DiffTrackers(old, next, []string{filepath.Join(root, "b.py")})
	if len(changes) != 1 || changes[0].Kind != modtrack.ChangeNewExplicit || changes[0].Qualifier != "b" {
		t.Fatalf("changes = %v", changes)
	}

	loaded.ReplaceTracker(next)
	res := loaded.Update(ctx, changes)
	qualifiersEqual(t, res.Invalidated, []pysrc.Qualifier{"b", "c"})
	namesEqual(t, importNames(t, loaded, "c"), []string{"X", "Y"})
}

func TestSnapshotLoadErrors(t *testing.T) {
	opts := astenv.Options{
		Grammar: pyparse.New(pyparse.Options{}),
		Sched:   sched.New(sched.Options{Jobs: 1, Sequential: true}),
	}

	if _, err := astenv.LoadSnapshot(filepath.Join(t.TempDir(), "absent.state"), opts); err == nil {
		t.Fatal("missing file must fail")
	}

	garbage := filepath.Join(t.TempDir(), "garbage.state")
	if err := os.WriteFile(garbage, []byte("not a snapshot"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := astenv.LoadSnapshot(garbage, opts); err == nil {
		t.Fatal("corrupt file must fail")
	}
}
