package astenv

import (
	"context"
	"fmt"

	"pyrite/internal/depcache"
	"pyrite/internal/modtrack"
	"pyrite/internal/pysrc"
	"pyrite/internal/trace"
)

// UpdateResult reports one incremental update: the parse outcome of the
// reparsed files and every qualifier whose derived artifacts changed or
// may have gone stale. Callers holding per-module analysis results drop
// the invalidated ones and re-check.
type UpdateResult struct {
	Invalidated []pysrc.Qualifier
	Batch       Batch
}

// Update applies a batch of module-level change events:
//
//  1. partition the events into files to reparse, deleted qualifiers,
//     and qualifiers whose implicit status flipped;
//  2. drop the stale table entries, so a deleted module's old artifacts
//     are not readable during the reparse;
//  3. reparse the changed files inside a transaction staged on the raw
//     tables for every changed qualifier, yielding the modules that had
//     read any changed raw form;
//  4. reprocess the changed modules together with those raw-level
//     consumers, inside a transaction staged on the processed tables,
//     yielding the consumers of the processed forms.
//
// Changed modules reprocess even without recorded read history: a module
// seen for the first time has none yet. The invalidated set is the union
// of everything reprocessed and everything the second transaction
// yielded. Reparse failures are carried in the batch like any other
// parse failure and leave the module's previous artifacts in place.
//
// Updates must not overlap: the caller runs one at a time.
func (e *Environment) Update(ctx context.Context, changes []modtrack.Change) UpdateResult {
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeDriver, "update")

	var locations []modtrack.SourceLocation
	reparse := pysrc.NewSet()
	changed := pysrc.NewSet()
	stale := pysrc.NewSet()
	for _, c := range changes {
		changed.Add(c.Qualifier)
		switch c.Kind {
		case modtrack.ChangeNewExplicit:
			if !reparse.Contains(c.Qualifier) {
				reparse.Add(c.Qualifier)
				locations = append(locations, c.Location)
			}
		case modtrack.ChangeNewImplicit, modtrack.ChangeDelete:
			stale.Add(c.Qualifier)
		}
	}
	if len(changed) == 0 {
		span.End("empty")
		return UpdateResult{}
	}

	if len(stale) > 0 {
		e.RemoveSources(stale.Sorted())
	}

	changedKeys := changed.Sorted()
	txRaw := depcache.NewTransaction[pysrc.Qualifier]()
	e.rawSources.AddToTransaction(txRaw, changedKeys)
	e.rawExports.AddToTransaction(txRaw, changedKeys)
	var batch Batch
	rawDeps, _ := txRaw.Execute(func() error {
		batch = e.ParseRawSources(ctx, locations)
		return nil
	})

	reprocess := pysrc.NewSet()
	reprocess.AddAll(changed)
	reprocess.AddAll(pysrc.Set(rawDeps))
	reprocessKeys := reprocess.Sorted()

	txProcessed := depcache.NewTransaction[pysrc.Qualifier]()
	e.sources.AddToTransaction(txProcessed, reprocessKeys)
	e.exports.AddToTransaction(txProcessed, reprocessKeys)
	e.modules.AddToTransaction(txProcessed, reprocessKeys)
	processedDeps, _ := txProcessed.Execute(func() error {
		e.ProcessSources(ctx, reprocessKeys)
		return nil
	})

	invalidated := pysrc.NewSet()
	invalidated.AddAll(reprocess)
	invalidated.AddAll(pysrc.Set(processedDeps))

	result := UpdateResult{Invalidated: invalidated.Sorted(), Batch: batch}
	span.End(fmt.Sprintf("changed=%d invalidated=%d", len(changedKeys), len(result.Invalidated)))
	return result
}
