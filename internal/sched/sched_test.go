package sched_test

import (
	"context"
	"sync/atomic"
	"testing"

	"pyrite/internal/sched"
)

func intRange(n int) []int {
	items := make([]int, n)
	for i := range items {
		items[i] = i + 1
	}
	return items
}

func TestMapReduceSum(t *testing.T) {
	items := intRange(100)
	sum := func(_ context.Context, chunk []int) int {
		total := 0
		for _, v := range chunk {
			total += v
		}
		return total
	}
	add := func(a, b int) int { return a + b }

	for _, opts := range []sched.Options{
		{Jobs: 4},
		{Jobs: 1},
		{Jobs: 4, Sequential: true},
		{Jobs: 200}, // more workers than items
	} {
		s := sched.New(opts)
		got := sched.MapReduce(context.Background(), s, items, sum, add, 0)
		if got != 5050 {
			t.Errorf("%+v: got %d, want 5050", opts, got)
		}
	}
}

func TestMapReduceKeepsChunkOrder(t *testing.T) {
	items := intRange(57)
	identity := func(_ context.Context, chunk []int) []int { return chunk }
	concat := func(a, b []int) []int { return append(a, b...) }

	for _, opts := range []sched.Options{{Jobs: 8}, {Jobs: 3, Sequential: true}} {
		s := sched.New(opts)
		got := sched.MapReduce(context.Background(), s, items, identity, concat, nil)
		if len(got) != len(items) {
			t.Fatalf("%+v: got %d items", opts, len(got))
		}
		for i := range items {
			if got[i] != items[i] {
				t.Fatalf("%+v: position %d holds %d, chunks reduced out of order", opts, i, got[i])
			}
		}
	}
}

func TestMapReduceEmpty(t *testing.T) {
	s := sched.New(sched.Options{Jobs: 4})
	got := sched.MapReduce(context.Background(), s, nil,
		func(_ context.Context, chunk []int) int { return 1 },
		func(a, b int) int { return a + b }, 42)
	if got != 42 {
		t.Errorf("got %d, want the seed back", got)
	}
}

func TestIterVisitsEveryItemOnce(t *testing.T) {
	const n = 203
	items := intRange(n)
	for _, opts := range []sched.Options{{Jobs: 7}, {Sequential: true}} {
		s := sched.New(opts)
		var visits [n + 1]atomic.Int32
		sched.Iter(context.Background(), s, items, func(_ context.Context, v int) {
			visits[v].Add(1)
		})
		for i := 1; i <= n; i++ {
			if got := visits[i].Load(); got != 1 {
				t.Fatalf("%+v: item %d visited %d times", opts, i, got)
			}
		}
	}
}

func TestSequentialRunsInOrder(t *testing.T) {
	s := sched.New(sched.Options{Jobs: 16, Sequential: true})
	var seen []int
	sched.Iter(context.Background(), s, intRange(30), func(_ context.Context, v int) {
		seen = append(seen, v) // no lock: sequential mode stays on one goroutine
	})
	for i, v := range seen {
		if v != i+1 {
			t.Fatalf("order broken at %d: %v", i, seen)
		}
	}
}

func TestChunkCount(t *testing.T) {
	s := sched.New(sched.Options{Jobs: 4})
	cases := []struct{ n, want int }{
		{0, 0},
		{1, 1},
		{10, 10},
		{16, 16},
		{17, 16},
		{1000, 16},
	}
	for _, tc := range cases {
		if got := s.ChunkCount(tc.n); got != tc.want {
			t.Errorf("ChunkCount(%d): got %d, want %d", tc.n, got, tc.want)
		}
	}
	if !s.IsParallel() {
		t.Errorf("jobs=4 must be parallel")
	}
	if sched.New(sched.Options{Jobs: 1}).IsParallel() {
		t.Errorf("jobs=1 must not be parallel")
	}
	if sched.New(sched.Options{Jobs: 8, Sequential: true}).IsParallel() {
		t.Errorf("sequential must not be parallel")
	}
}
