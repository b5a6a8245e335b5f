package astenv_test

import (
	"context"
	"testing"

	"pyrite/internal/astenv"
	"pyrite/internal/pysrc"
)

// importNames extracts the bound names of the first from-import in the
// processed tree of q.
func importNames(t *testing.T, env *astenv.Environment, q pysrc.Qualifier) []string {
	t.Helper()
	src, ok := env.GetSource(q, pysrc.None)
	if !ok {
		t.Fatalf("processed source for %s missing", q)
	}
	if len(src.Statements) == 0 || src.Statements[0].Kind != pysrc.StmtFromImport {
		t.Fatalf("%s: first statement is not a from-import: %+v", q, src.Statements)
	}
	st := src.Statements[0]
	if st.Wildcard {
		t.Fatalf("%s: wildcard survived processing", q)
	}
	names := make([]string, len(st.Names))
	for i, a := range st.Names {
		names[i] = a.Name
	}
	return names
}

func namesEqual(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("names = %v, want %v", got, want)
		}
	}
}

func TestWildcardRewritesToExplicitNames(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.py": "def broken(:\n",
		"b.py": "X = 1\n",
		"c.py": "from b import *\n",
	})
	env, _ := newTestEnv(t, root)

	batch := env.ParseAll(context.Background())
	if len(batch.SyntaxErrors) != 1 {
		t.Fatalf("syntax errors = %v", batch.SyntaxErrors)
	}
	qualifiersEqual(t, batch.Parsed, []pysrc.Qualifier{"b", "c"})

	namesEqual(t, importNames(t, env, "c"), []string{"X"})

	// The raw tree keeps the wildcard; only processing resolves it.
	raw, ok := env.GetRawSource("c", pysrc.None)
	if !ok || !raw.Statements[0].Wildcard {
		t.Fatalf("raw tree for c = %+v, ok=%v", raw, ok)
	}

	exports, ok := env.GetWildcardExports("c", pysrc.None)
	if !ok || len(exports) != 1 || exports[0] != "X" {
		t.Fatalf("processed exports for c = %v, ok=%v", exports, ok)
	}
}

func TestWildcardChain(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.py":    "A = 1\nfrom b import *\n",
		"b.py":    "B = 1\nfrom c import *\n",
		"c.py":    "C = 1\n",
		"main.py": "from a import *\n",
	})
	env, _ := newTestEnv(t, root)
	env.ParseAll(context.Background())

	namesEqual(t, importNames(t, env, "main"), []string{"A", "B", "C"})
}

func TestWildcardCycle(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.py":    "from b import *\nA = 1\n",
		"b.py":    "from a import *\nB = 1\n",
		"main.py": "from a import *\n",
	})
	env, _ := newTestEnv(t, root)
	env.ParseAll(context.Background())

	namesEqual(t, importNames(t, env, "main"), []string{"A", "B"})
}

func TestWildcardHonorsDunderAll(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.py": "__all__ = [\"X\", \"_hidden\"]\nX = 1\n_hidden = 2\nZ = 3\n",
		"c.py": "from b import *\n",
	})
	env, _ := newTestEnv(t, root)
	env.ParseAll(context.Background())

	namesEqual(t, importNames(t, env, "c"), []string{"X", "_hidden"})
}

func TestWildcardMissingTarget(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"c.py": "from missing import *\n",
	})
	env, _ := newTestEnv(t, root)
	env.ParseAll(context.Background())

	namesEqual(t, importNames(t, env, "c"), []string{})
}
