package typecheck_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pyrite/internal/analysis"
	"pyrite/internal/astenv"
	"pyrite/internal/modtrack"
	"pyrite/internal/pyparse"
	"pyrite/internal/pysrc"
	"pyrite/internal/sched"
	"pyrite/internal/typecheck"
)

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

func buildEnv(t *testing.T, root string) *astenv.Environment {
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
	env.ParseAll(context.Background())
	return env
}

func newEngine(t *testing.T, env *astenv.Environment, opts typecheck.Options) *typecheck.Engine {
	t.Helper()
	opts.View = env.ReadOnly()
	eng, err := typecheck.NewEngine(opts)
	if err != nil {
		t.Fatal(err)
	}
	return eng
}

func checkOne(t *testing.T, env *astenv.Environment, eng *typecheck.Engine, q pysrc.Qualifier) analysis.CheckResult {
	t.Helper()
	src, ok := env.ReadOnly().GetSource(q, q)
	if !ok {
		t.Fatalf("no processed source for %s", q)
	}
	return eng.Check(context.Background(), q, src)
}

func TestImportResolution(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.py": "import b\nimport missing\n",
		"b.py": "X = 1\n",
	})
	env := buildEnv(t, root)
	eng := newEngine(t, env, typecheck.Options{})

	res := checkOne(t, env, eng, "a")
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want one", res.Errors)
	}
	err := res.Errors[0]
	if err.Code != typecheck.CodeUndefinedImport || err.Line != 2 {
		t.Errorf("got code=%d line=%d, want code=21 line=2", err.Code, err.Line)
	}
	if !strings.Contains(err.Message, "missing") {
		t.Errorf("message %q does not name the module", err.Message)
	}
	if res.Lookup != nil {
		t.Error("lookup collected without CollectLookups")
	}
}

func TestFromImportNames(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.py": "X = 1\n_hidden = 2\n",
		"c.py": "from b import X, _hidden, Missing\n",
	})
	env := buildEnv(t, root)
	eng := newEngine(t, env, typecheck.Options{})

	res := checkOne(t, env, eng, "c")
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want one", res.Errors)
	}
	if got := res.Errors[0].Message; !strings.Contains(got, "Missing") {
		t.Errorf("message %q does not name the missing binding", got)
	}
}

func TestFromImportSubmodule(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"pkg/__init__.py": "",
		"pkg/mod.py":      "",
		"main.py":         "from pkg import mod\n",
	})
	env := buildEnv(t, root)
	eng := newEngine(t, env, typecheck.Options{})

	if res := checkOne(t, env, eng, "main"); len(res.Errors) != 0 {
		t.Fatalf("errors = %v, want none", res.Errors)
	}
}

func TestWildcardImportChecksClean(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.py": "X = 1\nY = 2\n",
		"c.py": "from b import *\n",
	})
	env := buildEnv(t, root)
	eng := newEngine(t, env, typecheck.Options{})

	// The pipeline already rewrote the wildcard to explicit names; every
	// one of them is a top-level binding of b.
	if res := checkOne(t, env, eng, "c"); len(res.Errors) != 0 {
		t.Fatalf("errors = %v, want none", res.Errors)
	}
}

func TestRelativeImportEscape(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.py": "from . import x\n",
	})
	env := buildEnv(t, root)
	eng := newEngine(t, env, typecheck.Options{})

	res := checkOne(t, env, eng, "a")
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want one", res.Errors)
	}
	if got := res.Errors[0].Message; !strings.Contains(got, "relative import") {
		t.Errorf("message = %q", got)
	}
}

func TestSuppression(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"matching.py": "# pyre-fixme[21]\nimport missing\n",
		"wrong.py":    "# pyre-fixme[7]\nimport missing\n",
		"inline.py":   "import missing  # type: ignore\n",
		"bare.py":     "# pyre-fixme\nimport missing\n",
	})
	env := buildEnv(t, root)
	eng := newEngine(t, env, typecheck.Options{})

	for q, want := range map[pysrc.Qualifier]int{
		"matching": 0,
		"wrong":    1,
		"inline":   0,
		"bare":     0,
	} {
		if res := checkOne(t, env, eng, q); len(res.Errors) != want {
			t.Errorf("%s: errors = %v, want %d", q, res.Errors, want)
		}
	}
}

func TestModeCoverage(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"strict.py":  "# pyre-strict\n",
		"unsafe.py":  "# pyre-unsafe\n",
		"declare.py": "# pyre-do-not-check\nimport missing\n",
		"silent.py":  "# pyre-ignore-all-errors\nimport missing\n",
		"plain.py":   "",
	})
	env := buildEnv(t, root)
	eng := newEngine(t, env, typecheck.Options{})

	cases := []struct {
		q      pysrc.Qualifier
		want   analysis.Coverage
		errors int
	}{
		{"strict", analysis.Coverage{Full: 1}, 0},
		{"unsafe", analysis.Coverage{Partial: 1}, 0},
		{"declare", analysis.Coverage{Untyped: 1}, 0},
		{"silent", analysis.Coverage{Ignored: 1}, 0},
		{"plain", analysis.Coverage{Partial: 1}, 0},
	}
	for _, tc := range cases {
		res := checkOne(t, env, eng, tc.q)
		if res.Coverage != tc.want {
			t.Errorf("%s: coverage = %+v, want %+v", tc.q, res.Coverage, tc.want)
		}
		if len(res.Errors) != tc.errors {
			t.Errorf("%s: errors = %v, want %d", tc.q, res.Errors, tc.errors)
		}
	}

	strictEng := newEngine(t, env, typecheck.Options{StrictDefault: true})
	if res := checkOne(t, env, strictEng, "plain"); (res.Coverage != analysis.Coverage{Full: 1}) {
		t.Errorf("strict default: coverage = %+v, want full", res.Coverage)
	}
}

func TestLookupCollection(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.py":            "",
		"pkg/__init__.py": "X = 1\n",
		"pkg/mod.py":      "",
		"main.py":         "import b as bee\nfrom pkg import mod, X\n",
	})
	env := buildEnv(t, root)
	eng := newEngine(t, env, typecheck.Options{CollectLookups: true})

	res := checkOne(t, env, eng, "main")
	if len(res.Errors) != 0 {
		t.Fatalf("errors = %v, want none", res.Errors)
	}
	if res.Lookup == nil {
		t.Fatal("no lookup collected")
	}
	want := []analysis.LookupEntry{
		{Line: 1, Name: "bee", Target: "b"},
		{Line: 2, Name: "mod", Target: "pkg.mod"},
		{Line: 2, Name: "X", Target: "pkg"},
	}
	got := res.Lookup.Entries
	if len(got) != len(want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
