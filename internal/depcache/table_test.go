package depcache

// Coverage:
//   - tracked/untracked reads and read history on absent keys
//   - transaction consumer sets: soundness, chaining, generation reset
//   - removal keeping read history alive until a transaction drains it
//   - the cached variant honoring the exact same contract

import (
	"errors"
	"sort"
	"testing"
)

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestTableGetAdd(t *testing.T) {
	tbl := NewTable[string, int]("t")
	if _, ok := tbl.Get("a"); ok {
		t.Fatal("empty table returned a value")
	}
	tbl.Add("a", 1)
	tbl.Add("a", 2) // unconditional overwrite
	if v, ok := tbl.Get("a"); !ok || v != 2 {
		t.Fatalf("Get(a) = %d, %v; want 2, true", v, ok)
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len = %d, want 1", tbl.Len())
	}
}

func TestTransactionInvalidationSoundness(t *testing.T) {
	tbl := NewTable[string, int]("t")
	tbl.Add("k", 1)
	tbl.Add("other", 1)

	// C reads k, D reads only an unstaged key.
	tbl.GetTracked("k", "C")
	tbl.GetTracked("other", "D")

	tx := NewTransaction[string]()
	tbl.AddToTransaction(tx, []string{"k"})
	consumers, err := tx.Execute(func() error {
		tbl.Add("k", 2)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	got := sortedKeys(consumers)
	if len(got) != 1 || got[0] != "C" {
		t.Fatalf("consumers = %v, want [C]", got)
	}
}

func TestTransactionAbsentKeyRead(t *testing.T) {
	tbl := NewTable[string, int]("t")

	// A consumer that observed "missing" must be invalidated when the key
	// appears.
	if _, ok := tbl.GetTracked("ghost", "C"); ok {
		t.Fatal("ghost should be absent")
	}
	tx := NewTransaction[string]()
	tbl.AddToTransaction(tx, []string{"ghost"})
	consumers, _ := tx.Execute(func() error {
		tbl.Add("ghost", 7)
		return nil
	})
	if _, ok := consumers["C"]; !ok {
		t.Fatalf("consumers = %v, want C present", sortedKeys(consumers))
	}
}

func TestTransactionFreshGeneration(t *testing.T) {
	tbl := NewTable[string, int]("t")
	tbl.Add("k", 1)
	tbl.GetTracked("k", "old")

	tx := NewTransaction[string]()
	tbl.AddToTransaction(tx, []string{"k"})
	if _, err := tx.Execute(func() error {
		tbl.Add("k", 2)
		tbl.GetTracked("k", "new") // registers in the new generation
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	// Second transaction over the same key sees only the new reader.
	tx2 := NewTransaction[string]()
	tbl.AddToTransaction(tx2, []string{"k"})
	consumers, _ := tx2.Execute(func() error { return nil })
	got := sortedKeys(consumers)
	if len(got) != 1 || got[0] != "new" {
		t.Fatalf("second-generation consumers = %v, want [new]", got)
	}
}

func TestTransactionChainsTables(t *testing.T) {
	a := NewTable[string, int]("a")
	b := NewTable[string, string]("b")
	a.Add("k", 1)
	b.Add("k", "x")
	a.GetTracked("k", "readerA")
	b.GetTracked("k", "readerB")

	tx := NewTransaction[string]()
	a.AddToTransaction(tx, []string{"k"})
	b.AddToTransaction(tx, []string{"k"})
	consumers, _ := tx.Execute(func() error { return nil })
	got := sortedKeys(consumers)
	want := []string{"readerA", "readerB"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("consumers = %v, want %v", got, want)
	}
}

func TestTransactionErrorStillYieldsConsumers(t *testing.T) {
	tbl := NewTable[string, int]("t")
	tbl.Add("k", 1)
	tbl.GetTracked("k", "C")

	tx := NewTransaction[string]()
	tbl.AddToTransaction(tx, []string{"k"})
	wantErr := errors.New("boom")
	consumers, err := tx.Execute(func() error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if _, ok := consumers["C"]; !ok {
		t.Fatal("consumer set must survive a failing update")
	}
}

func TestRemoveBatchKeepsHistory(t *testing.T) {
	tbl := NewTable[string, int]("t")
	tbl.Add("k", 1)
	tbl.GetTracked("k", "C")
	tbl.RemoveBatch([]string{"k"})

	if _, ok := tbl.Get("k"); ok {
		t.Fatal("entry must be gone after RemoveBatch")
	}
	tx := NewTransaction[string]()
	tbl.AddToTransaction(tx, []string{"k"})
	consumers, _ := tx.Execute(func() error { return nil })
	if _, ok := consumers["C"]; !ok {
		t.Fatal("removal must not erase read history")
	}
}

func TestCachedTableContract(t *testing.T) {
	tbl, err := NewCachedTable[string, int]("c", 2)
	if err != nil {
		t.Fatal(err)
	}
	tbl.Add("k", 1)

	// Warm the cache, then make sure the hit path still records readers.
	if v, ok := tbl.Get("k"); !ok || v != 1 {
		t.Fatalf("Get = %d, %v", v, ok)
	}
	tbl.GetTracked("k", "C")

	tx := NewTransaction[string]()
	tbl.AddToTransaction(tx, []string{"k"})
	consumers, _ := tx.Execute(func() error {
		tbl.Add("k", 2)
		return nil
	})
	if _, ok := consumers["C"]; !ok {
		t.Fatal("cache hit lost the dependency edge")
	}

	// The write inside the transaction must be visible through the cache.
	if v, _ := tbl.Get("k"); v != 2 {
		t.Fatalf("Get after write = %d, want 2", v)
	}

	tbl.RemoveBatch([]string{"k"})
	if _, ok := tbl.Get("k"); ok {
		t.Fatal("cached entry survived RemoveBatch")
	}
}

func TestCachedTableEviction(t *testing.T) {
	tbl, err := NewCachedTable[string, int]("c", 1)
	if err != nil {
		t.Fatal(err)
	}
	tbl.Add("a", 1)
	tbl.Add("b", 2) // evicts a from the fast path
	if v, ok := tbl.Get("a"); !ok || v != 1 {
		t.Fatalf("evicted entry must reload from the backing table, got %d, %v", v, ok)
	}
	if tbl.Len() != 2 {
		t.Fatalf("Len = %d, want 2", tbl.Len())
	}
}
