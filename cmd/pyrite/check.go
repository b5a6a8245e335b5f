package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pyrite/internal/analysis"
	"pyrite/internal/astenv"
	"pyrite/internal/config"
	"pyrite/internal/modtrack"
	"pyrite/internal/pyparse"
	"pyrite/internal/pysrc"
	"pyrite/internal/sched"
	"pyrite/internal/typecheck"
	"pyrite/internal/ui"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] [dir]",
	Short: "Check a Python project",
	Long:  "Check a Python project for unresolved imports, using pyrite.toml found from dir (or the working directory) upward.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	checkCmd.Flags().String("ui", "auto", "progress display (auto|on|off)")
	checkCmd.Flags().String("save-state", "", "write analysis state to this file after the run")
	checkCmd.Flags().String("load-state", "", "start from analysis state written by --save-state")
	checkCmd.Flags().StringSlice("changed", nil, "path changed since the loaded state (repeatable)")
	checkCmd.Flags().Int("jobs", 0, "max parallel workers (0=auto, overrides the manifest)")
	checkCmd.Flags().Bool("sequential", false, "run single-threaded in deterministic order")
	checkCmd.Flags().Bool("lookups", false, "collect per-module reference tables (json output)")
	checkCmd.Flags().Bool("strict", false, "check files without a mode marker as strict")
}

// checkOutcome carries everything a finished run needs to report.
type checkOutcome struct {
	result      analysis.Result
	batch       astenv.Batch
	invalidated int // modules invalidated by an incremental update, -1 on a full run
	err         error
}

func runCheck(cmd *cobra.Command, args []string) error {
	formatValue, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	saveState, err := cmd.Flags().GetString("save-state")
	if err != nil {
		return fmt.Errorf("failed to get save-state flag: %w", err)
	}
	loadState, err := cmd.Flags().GetString("load-state")
	if err != nil {
		return fmt.Errorf("failed to get load-state flag: %w", err)
	}
	changedPaths, err := cmd.Flags().GetStringSlice("changed")
	if err != nil {
		return fmt.Errorf("failed to get changed flag: %w", err)
	}
	jobsFlag, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	sequential, err := cmd.Flags().GetBool("sequential")
	if err != nil {
		return fmt.Errorf("failed to get sequential flag: %w", err)
	}
	lookups, err := cmd.Flags().GetBool("lookups")
	if err != nil {
		return fmt.Errorf("failed to get lookups flag: %w", err)
	}
	strictFlag, err := cmd.Flags().GetBool("strict")
	if err != nil {
		return fmt.Errorf("failed to get strict flag: %w", err)
	}
	colorValue, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}

	if formatValue != "pretty" && formatValue != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", formatValue)
	}
	useTUI, err := wantTUI(uiValue)
	if err != nil {
		return err
	}
	if err := applyColorMode(colorValue); err != nil {
		return err
	}
	if len(changedPaths) > 0 && loadState == "" {
		return fmt.Errorf("--changed requires --load-state")
	}

	startDir := "."
	if len(args) == 1 {
		startDir = args[0]
	}
	cfg, err := config.LoadOrDefault(startDir)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("jobs") {
		cfg.Check.Jobs = jobsFlag
	}
	if sequential {
		cfg.Check.Sequential = true
	}
	if lookups {
		cfg.Check.Lookups = true
	}
	if strictFlag {
		cfg.Project.Strict = true
	}

	cleanup, err := setupTracing(cmd, &cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	profCleanup, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer profCleanup()

	ctx := cmd.Context()
	s := sched.New(sched.Options{Jobs: cfg.Check.Jobs, Sequential: cfg.Check.Sequential})

	phases := []ui.Phase{ui.PhaseParse, ui.PhaseProcess, ui.PhaseCheck}
	if loadState != "" {
		phases = []ui.Phase{ui.PhaseLoad, ui.PhaseParse, ui.PhaseCheck}
	}
	if saveState != "" {
		phases = append(phases, ui.PhaseSave)
	}

	work := func(sink ui.ProgressSink) checkOutcome {
		return executeCheck(ctx, &cfg, s, loadState, saveState, changedPaths, sink)
	}

	var outcome checkOutcome
	if formatValue == "pretty" && useTUI {
		outcome = runWithUI("pyrite check", phases, work)
	} else {
		outcome = work(ui.NopSink{})
	}
	if outcome.err != nil {
		return outcome.err
	}

	if formatValue == "json" {
		if err := renderCheckJSON(cmd.OutOrStdout(), &outcome, cfg.Check.Lookups); err != nil {
			return err
		}
	} else {
		renderCheckPretty(cmd.OutOrStdout(), cmd.ErrOrStderr(), &outcome, quiet)
	}

	if len(outcome.result.Errors) > 0 {
		// Suppress cobra usage output on findings
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return fmt.Errorf("") // Silent error - findings already printed
	}
	return nil
}

// executeCheck runs the phases of one check: build or restore the
// environment, parse and process, check, optionally save state.
func executeCheck(ctx context.Context, cfg *config.Config, s *sched.Scheduler, loadState, saveState string, changedPaths []string, sink ui.ProgressSink) checkOutcome {
	out := checkOutcome{invalidated: -1}
	grammar := pyparse.New(pyparse.Options{})

	var env *astenv.Environment
	if loadState != "" {
		sink.OnEvent(ui.Event{Phase: ui.PhaseLoad, Status: ui.StatusWorking})
		loaded, err := astenv.LoadSnapshot(loadState, astenv.Options{Grammar: grammar, Sched: s})
		if err != nil {
			sink.OnEvent(ui.Event{Phase: ui.PhaseLoad, Status: ui.StatusError})
			out.err = err
			return out
		}
		env = loaded
		sink.OnEvent(ui.Event{Phase: ui.PhaseLoad, Status: ui.StatusDone,
			Detail: fmt.Sprintf("%d modules", len(env.AllExplicitModules()))})

		sink.OnEvent(ui.Event{Phase: ui.PhaseParse, Status: ui.StatusWorking})
		old, ok := env.Tracker().(*modtrack.FSTracker)
		if !ok {
			out.err = fmt.Errorf("loaded state carries no filesystem tracker")
			return out
		}
		next, err := modtrack.NewFSTracker(cfg.Project.Roots, cfg.Project.Excludes)
		if err != nil {
			sink.OnEvent(ui.Event{Phase: ui.PhaseParse, Status: ui.StatusError})
			out.err = err
			return out
		}
		changes := modtrack.DiffTrackers(old, next, changedPaths)
		env.ReplaceTracker(next)
		res := env.Update(ctx, changes)
		out.batch = res.Batch
		out.invalidated = len(res.Invalidated)
		sink.OnEvent(ui.Event{Phase: ui.PhaseParse, Status: ui.StatusDone,
			Detail: fmt.Sprintf("%d changed, %d invalidated", len(changes), len(res.Invalidated))})
	} else {
		tracker, err := modtrack.NewFSTracker(cfg.Project.Roots, cfg.Project.Excludes)
		if err != nil {
			out.err = err
			return out
		}
		built, err := astenv.New(astenv.Options{Tracker: tracker, Grammar: grammar, Sched: s})
		if err != nil {
			out.err = err
			return out
		}
		env = built

		sink.OnEvent(ui.Event{Phase: ui.PhaseParse, Status: ui.StatusWorking})
		out.batch = env.ParseRawSources(ctx, tracker.SourcePaths())
		sink.OnEvent(ui.Event{Phase: ui.PhaseParse, Status: ui.StatusDone, Detail: batchDetail(&out.batch)})

		sink.OnEvent(ui.Event{Phase: ui.PhaseProcess, Status: ui.StatusWorking})
		env.ProcessSources(ctx, tracker.TrackedExplicitModules())
		sink.OnEvent(ui.Event{Phase: ui.PhaseProcess, Status: ui.StatusDone})
	}

	sink.OnEvent(ui.Event{Phase: ui.PhaseCheck, Status: ui.StatusWorking})
	view := env.ReadOnly()
	engine, err := typecheck.NewEngine(typecheck.Options{
		View:           view,
		CollectLookups: cfg.Check.Lookups,
		StrictDefault:  cfg.Project.Strict,
	})
	if err != nil {
		out.err = err
		return out
	}
	driver, err := analysis.NewDriver(analysis.Options{
		View:        view,
		Checker:     engine,
		Caches:      []analysis.ChunkCache{engine.Memo()},
		ProjectRoot: cfg.RootDir(),
		Sched:       s,
	})
	if err != nil {
		out.err = err
		return out
	}
	out.result = driver.Run(ctx, env.AllExplicitModules())
	sink.OnEvent(ui.Event{Phase: ui.PhaseCheck, Status: ui.StatusDone,
		Detail: fmt.Sprintf("%d files, %d errors", out.result.FileCount, len(out.result.Errors))})

	if saveState != "" {
		sink.OnEvent(ui.Event{Phase: ui.PhaseSave, Status: ui.StatusWorking})
		if err := env.SaveSnapshot(saveState); err != nil {
			sink.OnEvent(ui.Event{Phase: ui.PhaseSave, Status: ui.StatusError})
			out.err = fmt.Errorf("save state: %w", err)
			return out
		}
		sink.OnEvent(ui.Event{Phase: ui.PhaseSave, Status: ui.StatusDone, Detail: saveState})
	}
	return out
}

func batchDetail(b *astenv.Batch) string {
	detail := fmt.Sprintf("%d modules", len(b.Parsed))
	if n := len(b.SyntaxErrors); n > 0 {
		detail += fmt.Sprintf(", %d syntax errors", n)
	}
	return detail
}

func renderCheckPretty(out, errOut io.Writer, outcome *checkOutcome, quiet bool) {
	pathColor := color.New(color.FgCyan)
	codeColor := color.New(color.FgRed, color.Bold)
	for _, e := range outcome.result.Errors {
		fmt.Fprintf(out, "%s:%d:%d: %s %s\n",
			pathColor.Sprint(e.Path), e.Line, e.Col, codeColor.Sprintf("[%d]", e.Code), e.Message)
	}

	warnParseFailures(errOut, &outcome.batch)
	if cov := outcome.result.Coverage; cov.Crashes > 0 {
		fmt.Fprintln(errOut, color.New(color.FgRed).Sprintf("warning: checker crashed on %d modules", cov.Crashes))
	}

	if quiet {
		return
	}
	if outcome.invalidated >= 0 {
		fmt.Fprintf(out, "incremental: %d modules invalidated\n", outcome.invalidated)
	}
	cov := outcome.result.Coverage
	fmt.Fprintf(out, "checked %d modules: %d full, %d partial, %d untyped, %d ignored\n",
		outcome.result.FileCount, cov.Full, cov.Partial, cov.Untyped, cov.Ignored)
	if n := len(outcome.result.Errors); n > 0 {
		fmt.Fprintln(out, color.New(color.FgRed, color.Bold).Sprintf("found %d errors", n))
	} else {
		fmt.Fprintln(out, color.New(color.FgGreen).Sprint("no errors found"))
	}
}

// warnParseFailures reports files excluded from this run. Paths are kept
// out of the summary on purpose; detail-level tracing carries them.
func warnParseFailures(errOut io.Writer, batch *astenv.Batch) {
	warn := color.New(color.FgYellow)
	if n := len(batch.SyntaxErrors); n > 0 {
		fmt.Fprintln(errOut, warn.Sprintf("warning: %d files with syntax errors were not checked (re-run with --trace-level detail to list them)", n))
	}
	if n := len(batch.Skipped); n > 0 {
		fmt.Fprintln(errOut, warn.Sprintf("note: skipped %d generated or legacy files", n))
	}
	for _, f := range batch.SystemErrors {
		fmt.Fprintln(errOut, warn.Sprintf("warning: %s", f.Error()))
	}
}

type checkPayload struct {
	Errors       []errorPayload  `json:"errors"`
	FileCount    int             `json:"file_count"`
	Coverage     coveragePayload `json:"coverage"`
	SyntaxErrors []string        `json:"syntax_errors,omitempty"`
	Skipped      []string        `json:"skipped,omitempty"`
	SystemErrors []string        `json:"system_errors,omitempty"`
	Invalidated  *int            `json:"invalidated,omitempty"`
	Lookups      []lookupPayload `json:"lookups,omitempty"`
}

type errorPayload struct {
	Qualifier string `json:"qualifier"`
	Path      string `json:"path"`
	Line      int    `json:"line"`
	Col       int    `json:"col"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
}

type coveragePayload struct {
	Full    int `json:"full"`
	Partial int `json:"partial"`
	Untyped int `json:"untyped"`
	Ignored int `json:"ignored"`
	Crashes int `json:"crashes"`
}

type lookupPayload struct {
	Qualifier string               `json:"qualifier"`
	Entries   []lookupEntryPayload `json:"entries"`
}

type lookupEntryPayload struct {
	Line   int    `json:"line"`
	Name   string `json:"name"`
	Target string `json:"target"`
}

func renderCheckJSON(out io.Writer, outcome *checkOutcome, includeLookups bool) error {
	cov := outcome.result.Coverage
	payload := checkPayload{
		Errors:    make([]errorPayload, 0, len(outcome.result.Errors)),
		FileCount: outcome.result.FileCount,
		Coverage: coveragePayload{
			Full:    cov.Full,
			Partial: cov.Partial,
			Untyped: cov.Untyped,
			Ignored: cov.Ignored,
			Crashes: cov.Crashes,
		},
	}
	for _, e := range outcome.result.Errors {
		payload.Errors = append(payload.Errors, errorPayload{
			Qualifier: e.Qualifier.String(),
			Path:      e.Path,
			Line:      e.Line,
			Col:       e.Col,
			Code:      e.Code,
			Message:   e.Message,
		})
	}
	for _, se := range outcome.batch.SyntaxErrors {
		payload.SyntaxErrors = append(payload.SyntaxErrors, se.Error())
	}
	for _, sk := range outcome.batch.Skipped {
		payload.Skipped = append(payload.Skipped, sk.Error())
	}
	for _, f := range outcome.batch.SystemErrors {
		payload.SystemErrors = append(payload.SystemErrors, f.Error())
	}
	if outcome.invalidated >= 0 {
		payload.Invalidated = &outcome.invalidated
	}
	if includeLookups {
		quals := make([]string, 0, len(outcome.result.Lookups))
		for q := range outcome.result.Lookups {
			quals = append(quals, q.String())
		}
		sort.Strings(quals)
		for _, qs := range quals {
			lookup := outcome.result.Lookups[pysrc.Qualifier(qs)]
			lp := lookupPayload{Qualifier: qs}
			for _, entry := range lookup.Entries {
				lp.Entries = append(lp.Entries, lookupEntryPayload{
					Line:   entry.Line,
					Name:   entry.Name,
					Target: entry.Target.String(),
				})
			}
			payload.Lookups = append(payload.Lookups, lp)
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
