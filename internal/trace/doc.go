// Package trace records what the analysis is doing and how long it
// takes: spans around the driver and each pass, per-module points, and
// error events for failures that must surface regardless of verbosity.
//
// A Tracer travels through the pipeline on the context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "parse")
//	defer span.End("")
//
// Verbosity is a Level (off, error, phase, detail, debug) matched
// against each event's Scope (driver, pass, module): phase shows driver
// and pass boundaries, detail adds per-module events, debug shows
// everything. Error events pass the filter at any level above off.
//
// Output goes to stderr or a file, as text or NDJSON; see New. The CLI
// exposes all of it through --trace, --trace-level and --trace-format.
package trace
