package typecheck

import (
	"testing"

	"pyrite/internal/pysrc"
)

func TestMemoCachesBindings(t *testing.T) {
	src := &pysrc.Source{
		Qualifier: "m",
		Statements: []pysrc.Statement{
			{Kind: pysrc.StmtDef, Name: "f"},
			{Kind: pysrc.StmtClass, Name: "C"},
			{Kind: pysrc.StmtAssign, Targets: []string{"x", "y"}},
			{Kind: pysrc.StmtImport, Names: []pysrc.Alias{{Name: "os.path"}}},
			{Kind: pysrc.StmtFromImport, Module: "a", Names: []pysrc.Alias{{Name: "g", As: "h"}}},
		},
	}
	m := NewLookupMemo()
	b := m.Bindings(src)
	for _, name := range []string{"f", "C", "x", "y", "os", "h"} {
		if _, ok := b[name]; !ok {
			t.Errorf("missing binding %q", name)
		}
	}
	if len(b) != 6 {
		t.Errorf("bindings = %v, want 6 names", b)
	}

	// Reused, not recomputed: mutating the source in place must not be
	// visible until the memo is cleared.
	src.Statements = nil
	if again := m.Bindings(src); len(again) != 6 {
		t.Error("second lookup recomputed instead of reusing the cache")
	}

	m.Clear()
	if fresh := m.Bindings(src); len(fresh) != 0 {
		t.Errorf("post-clear bindings = %v, want none", fresh)
	}
}
