// Package sched runs chunked map-reduce passes over module lists. A batch
// that starts is drained to the end: failures inside a chunk are carried in
// the partial results, not surfaced as errors, so one bad module can never
// cancel the analysis of the rest.
package sched

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// chunksPerJob oversubscribes chunks to workers so uneven module sizes
// still balance.
const chunksPerJob = 4

// Options configures a Scheduler.
type Options struct {
	// Jobs is the worker count; zero or negative means GOMAXPROCS.
	Jobs int
	// Sequential runs every chunk in order on the calling goroutine.
	// Aggregates must come out identical to the parallel mode.
	Sequential bool
}

type Scheduler struct {
	jobs       int
	sequential bool
}

func New(opts Options) *Scheduler {
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	return &Scheduler{jobs: jobs, sequential: opts.Sequential}
}

// IsParallel reports whether chunks may run concurrently.
func (s *Scheduler) IsParallel() bool { return !s.sequential && s.jobs > 1 }

// Jobs returns the configured worker count.
func (s *Scheduler) Jobs() int { return s.jobs }

// ChunkCount returns how many chunks a batch of n items is split into.
func (s *Scheduler) ChunkCount(n int) int {
	if n <= 0 {
		return 0
	}
	count := s.jobs * chunksPerJob
	if count > n {
		count = n
	}
	return count
}

// chunkBounds splits n items into count contiguous [lo, hi) spans of
// near-equal size.
func chunkBounds(n, count int) [][2]int {
	bounds := make([][2]int, 0, count)
	base := n / count
	rem := n % count
	lo := 0
	for i := 0; i < count; i++ {
		size := base
		if i < rem {
			size++
		}
		bounds = append(bounds, [2]int{lo, lo + size})
		lo += size
	}
	return bounds
}

// MapReduce maps every chunk of items and folds the partial results in
// chunk order, so the outcome does not depend on scheduling. init seeds
// the fold.
func MapReduce[T, R any](ctx context.Context, s *Scheduler, items []T, mapChunk func(context.Context, []T) R, merge func(R, R) R, init R) R {
	acc := init
	if len(items) == 0 {
		return acc
	}
	count := s.ChunkCount(len(items))
	bounds := chunkBounds(len(items), count)

	if !s.IsParallel() {
		for _, b := range bounds {
			acc = merge(acc, mapChunk(ctx, items[b[0]:b[1]]))
		}
		return acc
	}

	// индексы уникальны — мьютекс не нужен
	partials := make([]R, count)
	var g errgroup.Group
	g.SetLimit(min(s.jobs, count))
	for i, b := range bounds {
		g.Go(func(i int, lo, hi int) func() error {
			return func() error {
				partials[i] = mapChunk(ctx, items[lo:hi])
				return nil
			}
		}(i, b[0], b[1]))
	}
	_ = g.Wait() // workers never return errors; failures travel as data

	for _, p := range partials {
		acc = merge(acc, p)
	}
	return acc
}

// Iter applies fn to every item, chunked the same way MapReduce chunks.
// fn communicates through its own side effects and must be safe for
// concurrent calls when the scheduler is parallel.
func Iter[T any](ctx context.Context, s *Scheduler, items []T, fn func(context.Context, T)) {
	if len(items) == 0 {
		return
	}
	count := s.ChunkCount(len(items))
	bounds := chunkBounds(len(items), count)

	if !s.IsParallel() {
		for _, item := range items {
			fn(ctx, item)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(min(s.jobs, count))
	for _, b := range bounds {
		g.Go(func(lo, hi int) func() error {
			return func() error {
				for i := lo; i < hi; i++ {
					fn(ctx, items[i])
				}
				return nil
			}
		}(b[0], b[1]))
	}
	_ = g.Wait()
}
