// Package analysis runs the parallel check pass over processed modules
// and folds per-module findings into one aggregate result. The driver
// owns the result vocabulary; check engines implement Checker against it.
package analysis

import (
	"fmt"

	"pyrite/internal/pysrc"
)

// Error is one reported finding in a checked module.
type Error struct {
	Qualifier pysrc.Qualifier
	Path      string
	Line      int
	Col       int
	Code      int
	Message   string
}

func (e Error) String() string {
	return fmt.Sprintf("%s:%d:%d: [%d] %s", e.Path, e.Line, e.Col, e.Code, e.Message)
}

// LookupEntry records one resolved reference inside a module: the
// imported name and the qualifier it resolved to.
type LookupEntry struct {
	Line   int
	Name   string
	Target pysrc.Qualifier
}

// Lookup is the per-module reference table, collected only when lookup
// recording is enabled on the engine.
type Lookup struct {
	Qualifier pysrc.Qualifier
	Entries   []LookupEntry
}

// Coverage counts modules by checking depth. Fields sum independently,
// so Add is commutative and associative and chunk boundaries cannot
// change the totals.
type Coverage struct {
	Full    int // strict mode, checked in full
	Partial int // default/unsafe mode
	Untyped int // declare mode: signatures only
	Ignored int // ignore-all mode or skipped
	Crashes int // checker panics, recovered
}

// Add returns the field-wise sum.
func (c Coverage) Add(other Coverage) Coverage {
	c.Full += other.Full
	c.Partial += other.Partial
	c.Untyped += other.Untyped
	c.Ignored += other.Ignored
	c.Crashes += other.Crashes
	return c
}

// CheckResult is the outcome of checking a single module.
type CheckResult struct {
	Errors   []Error
	Lookup   *Lookup
	Coverage Coverage
}

// Result is the aggregate over a whole pass.
type Result struct {
	Errors    []Error
	Lookups   map[pysrc.Qualifier]*Lookup
	FileCount int
	Coverage  Coverage
}

// Merge folds other into r. Errors concatenate; lookups union with the
// left side winning on conflict (conflicts do not occur in practice since
// each module is checked by exactly one worker); counts sum.
func (r Result) Merge(other Result) Result {
	r.Errors = append(r.Errors, other.Errors...)
	if len(other.Lookups) > 0 {
		if r.Lookups == nil {
			r.Lookups = make(map[pysrc.Qualifier]*Lookup, len(other.Lookups))
		}
		for q, l := range other.Lookups {
			if _, taken := r.Lookups[q]; !taken {
				r.Lookups[q] = l
			}
		}
	}
	r.FileCount += other.FileCount
	r.Coverage = r.Coverage.Add(other.Coverage)
	return r
}
