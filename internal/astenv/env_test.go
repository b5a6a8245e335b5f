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

// writeTree materializes files under dir; keys are slash-relative paths.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// newTestEnv builds an environment over a single search root with a
// sequential scheduler, so table contents are easy to reason about.
func newTestEnv(t *testing.T, root string) (*astenv.Environment, *modtrack.FSTracker) {
	t.Helper()
	tracker, err := modtrack.NewFSTracker([]string{root}, nil)
	if err != nil {
		t.Fatal(err)
	}
	env, err := astenv.New(astenv.Options{
		Tracker: tracker,
		Grammar: pyparse.New(pyparse.Options{}),
		Sched:   sched.New(sched.Options{Jobs: 1, Sequential: true}),
	})
	if err != nil {
		t.Fatal(err)
	}
	return env, tracker
}

func qualifiersEqual(t *testing.T, got, want []pysrc.Qualifier) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("qualifiers = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("qualifiers = %v, want %v", got, want)
		}
	}
}

func TestParseAllStoresSources(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.py":            "X = 1\n",
		"pkg/__init__.py": "",
		"pkg/b.py":        "def f():\n    pass\n",
	})
	env, _ := newTestEnv(t, root)

	batch := env.ParseAll(context.Background())
	qualifiersEqual(t, batch.Parsed, []pysrc.Qualifier{"a", "pkg", "pkg.b"})
	if len(batch.SyntaxErrors) != 0 || len(batch.SystemErrors) != 0 || len(batch.Skipped) != 0 {
		t.Fatalf("unexpected failures: %+v", batch)
	}

	view := env.ReadOnly()
	src, ok := view.GetSource("a", pysrc.None)
	if !ok {
		t.Fatal("source for a missing")
	}
	if len(src.Statements) != 1 || src.Statements[0].Kind != pysrc.StmtAssign {
		t.Fatalf("unexpected statements for a: %+v", src.Statements)
	}
	if raw, ok := env.GetRawSource("a", pysrc.None); !ok || raw.Qualifier != "a" {
		t.Fatalf("raw source for a: ok=%v raw=%+v", ok, raw)
	}

	exports, ok := view.GetWildcardExports("a", pysrc.None)
	if !ok || len(exports) != 1 || exports[0] != "X" {
		t.Fatalf("exports for a = %v, ok=%v", exports, ok)
	}

	meta, ok := view.GetModuleMetadata("pkg", pysrc.None)
	if !ok || !meta.IsInit || meta.IsImplicit || !meta.Empty {
		t.Fatalf("metadata for pkg = %+v, ok=%v", meta, ok)
	}
	if !view.IsModule("pkg.b") || view.IsModule("pkg.c") {
		t.Fatal("IsModule answers wrong")
	}
	qualifiersEqual(t, view.AllExplicitModules(), []pysrc.Qualifier{"a", "pkg", "pkg.b"})
}

func TestModuleMetadataBuiltins(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.py": "X = 1\n"})
	env, _ := newTestEnv(t, root)
	env.ParseAll(context.Background())

	for _, q := range []pysrc.Qualifier{pysrc.Builtins, pysrc.LegacyBuiltins} {
		meta, ok := env.GetModuleMetadata(q, "a")
		if !ok || !meta.IsImplicit {
			t.Fatalf("metadata for %s = %+v, ok=%v", q, meta, ok)
		}
		if _, stored := env.GetSource(q, pysrc.None); stored {
			t.Fatalf("%s must never be stored", q)
		}
		if !env.IsModule(q) {
			t.Fatalf("%s must be importable", q)
		}
	}
}

func TestModuleMetadataNamespacePackage(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"ns/sub/mod.py": "Y = 2\n"})
	env, _ := newTestEnv(t, root)
	env.ParseAll(context.Background())

	for _, q := range []pysrc.Qualifier{"ns", "ns.sub"} {
		meta, ok := env.GetModuleMetadata(q, pysrc.None)
		if !ok || !meta.IsImplicit {
			t.Fatalf("metadata for %s = %+v, ok=%v", q, meta, ok)
		}
		if _, stored := env.GetSource(q, pysrc.None); stored {
			t.Fatalf("namespace package %s has no source", q)
		}
		if !env.IsModule(q) {
			t.Fatalf("%s must be importable", q)
		}
	}

	meta, ok := env.GetModuleMetadata("ns.sub.mod", pysrc.None)
	if !ok || meta.IsImplicit || meta.Empty {
		t.Fatalf("metadata for ns.sub.mod = %+v, ok=%v", meta, ok)
	}
	if _, ok := env.GetModuleMetadata("nowhere", pysrc.None); ok {
		t.Fatal("untracked qualifier must have no metadata")
	}
}

func TestRemoveSources(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.py": "X = 1\n", "b.py": "Y = 2\n"})
	env, _ := newTestEnv(t, root)
	env.ParseAll(context.Background())

	env.RemoveSources([]pysrc.Qualifier{"a"})

	if _, ok := env.GetSource("a", pysrc.None); ok {
		t.Fatal("processed source for a survived removal")
	}
	if _, ok := env.GetRawSource("a", pysrc.None); ok {
		t.Fatal("raw source for a survived removal")
	}
	if _, ok := env.GetWildcardExports("a", pysrc.None); ok {
		t.Fatal("export list for a survived removal")
	}
	if _, ok := env.GetSource("b", pysrc.None); !ok {
		t.Fatal("removal of a must not touch b")
	}
	// The tracker still lists the file, so metadata degrades to an
	// implicit record until the module is reprocessed.
	meta, ok := env.GetModuleMetadata("a", pysrc.None)
	if !ok || !meta.IsImplicit {
		t.Fatalf("metadata for removed a = %+v, ok=%v", meta, ok)
	}
}

func TestParseSyntaxErrorExcluded(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"bad.py":  "def broken(:\n",
		"good.py": "X = 1\n",
	})
	env, _ := newTestEnv(t, root)

	batch := env.ParseAll(context.Background())
	qualifiersEqual(t, batch.Parsed, []pysrc.Qualifier{"good"})
	if len(batch.SyntaxErrors) != 1 {
		t.Fatalf("syntax errors = %v", batch.SyntaxErrors)
	}
	if _, ok := env.GetRawSource("bad", pysrc.None); ok {
		t.Fatal("rejected file must not be stored")
	}
	if _, ok := env.GetSource("good", pysrc.None); !ok {
		t.Fatal("good file must still be processed")
	}
}

func TestParseSkipsGeneratedAndLegacy(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"gen.py":    "# " + "@" + "generated" + "\nX = 1\n",
		"legacy.py": "print 1\n",
		"plain.py":  "Y = 2\n",
	})
	env, _ := newTestEnv(t, root)

	batch := env.ParseAll(context.Background())
	qualifiersEqual(t, batch.Parsed, []pysrc.Qualifier{"plain"})
	if len(batch.Skipped) != 2 {
		t.Fatalf("skipped = %v", batch.Skipped)
	}
	reasons := map[pysrc.SkipReason]bool{}
	for _, s := range batch.Skipped {
		reasons[s.Reason] = true
	}
	if !reasons[pysrc.SkipGenerated] || !reasons[pysrc.SkipLegacy] {
		t.Fatalf("skip reasons = %v", batch.Skipped)
	}
	if len(batch.SyntaxErrors) != 0 {
		t.Fatalf("skips must not count as errors: %v", batch.SyntaxErrors)
	}
}

func TestParseUnreadableFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.py": "X = 1\n", "b.py": "Y = 2\n"})
	env, _ := newTestEnv(t, root)

	// The tracker saw the file; removing it behind the tracker's back
	// turns the read into a system failure.
	if err := os.Remove(filepath.Join(root, "a.py")); err != nil {
		t.Fatal(err)
	}

	batch := env.ParseAll(context.Background())
	qualifiersEqual(t, batch.Parsed, []pysrc.Qualifier{"b"})
	if len(batch.SystemErrors) != 1 {
		t.Fatalf("system errors = %v", batch.SystemErrors)
	}
	if batch.SystemErrors[0].Path != filepath.Join(root, "a.py") {
		t.Fatalf("failure path = %s", batch.SystemErrors[0].Path)
	}
}

func TestRelativeImportsExpandAtParse(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"pkg/__init__.py": "from . import helper\n",
		"pkg/sub.py":      "from .helper import f\n",
		"pkg/deep/mod.py": "from ..helper import g\n",
		"pkg/helper.py":   "def f():\n    pass\n",
	})
	env, _ := newTestEnv(t, root)
	env.ParseAll(context.Background())

	cases := []struct {
		q    pysrc.Qualifier
		want pysrc.Qualifier
	}{
		{"pkg", "pkg"},
		{"pkg.sub", "pkg.helper"},
		{"pkg.deep.mod", "pkg.helper"},
	}
	for _, tc := range cases {
		raw, ok := env.GetRawSource(tc.q, pysrc.None)
		if !ok {
			t.Fatalf("raw source for %s missing", tc.q)
		}
		st := raw.Statements[0]
		if st.Kind != pysrc.StmtFromImport || st.Dots != 0 || st.Module != tc.want {
			t.Errorf("%s: statement = %+v, want absolute module %s", tc.q, st, tc.want)
		}
	}
}
