package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pyrite/internal/astenv"
	"pyrite/internal/config"
	"pyrite/internal/modtrack"
	"pyrite/internal/pyparse"
	"pyrite/internal/pysrc"
	"pyrite/internal/sched"
	"pyrite/internal/typecheck"
)

var statsCmd = &cobra.Command{
	Use:   "stats [flags] [dir]",
	Short: "Collect annotation statistics for a Python project",
	Long:  "Collect annotation coverage, suppression and mode statistics over every tracked module.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	statsCmd.Flags().Bool("per-module", false, "include a per-module breakdown (json output)")
}

func runStats(cmd *cobra.Command, args []string) error {
	formatValue, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	perModule, err := cmd.Flags().GetBool("per-module")
	if err != nil {
		return fmt.Errorf("failed to get per-module flag: %w", err)
	}
	colorValue, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	if formatValue != "pretty" && formatValue != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", formatValue)
	}
	if err := applyColorMode(colorValue); err != nil {
		return err
	}

	startDir := "."
	if len(args) == 1 {
		startDir = args[0]
	}
	cfg, err := config.LoadOrDefault(startDir)
	if err != nil {
		return err
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

	tracker, err := modtrack.NewFSTracker(cfg.Project.Roots, cfg.Project.Excludes)
	if err != nil {
		return err
	}
	env, err := astenv.New(astenv.Options{
		Tracker: tracker,
		Grammar: pyparse.New(pyparse.Options{}),
		Sched:   sched.New(sched.Options{Jobs: cfg.Check.Jobs, Sequential: cfg.Check.Sequential}),
	})
	if err != nil {
		return err
	}
	env.ParseAll(cmd.Context())

	view := env.ReadOnly()
	var agg typecheck.Aggregate
	var modules []typecheck.ModuleStats
	for _, q := range env.AllExplicitModules() {
		src, ok := view.GetSource(q, pysrc.None)
		if !ok {
			continue
		}
		ms := typecheck.CollectStats(src)
		agg.Add(ms)
		if perModule {
			modules = append(modules, ms)
		}
	}

	if formatValue == "json" {
		return renderStatsJSON(cmd.OutOrStdout(), &agg, modules)
	}
	renderStatsPretty(cmd.OutOrStdout(), &agg)
	return nil
}

type statsPayload struct {
	Aggregate *typecheck.Aggregate    `json:"aggregate"`
	Modules   []typecheck.ModuleStats `json:"modules,omitempty"`
}

func renderStatsJSON(out io.Writer, agg *typecheck.Aggregate, modules []typecheck.ModuleStats) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(statsPayload{Aggregate: agg, Modules: modules})
}

func renderStatsPretty(out io.Writer, agg *typecheck.Aggregate) {
	header := color.New(color.Bold)
	a := agg.Annotations

	fmt.Fprintln(out, header.Sprint("annotation coverage"))
	fmt.Fprintf(out, "  modules:     %d\n", agg.ModuleCount)
	fmt.Fprintf(out, "  functions:   %d (%d fully annotated, %d partially)\n",
		a.FunctionCount, a.FullyAnnotated, a.PartiallyAnnotated)
	fmt.Fprintf(out, "  returns:     %s\n", ratio(a.AnnotatedReturnCount, a.ReturnCount))
	fmt.Fprintf(out, "  parameters:  %s\n", ratio(a.AnnotatedParamCount, a.ParamCount))
	fmt.Fprintf(out, "  globals:     %s\n", ratio(a.AnnotatedGlobalCount, a.GlobalCount))
	fmt.Fprintf(out, "  attributes:  %s\n", ratio(a.AnnotatedAttributeCount, a.AttributeCount))

	fmt.Fprintln(out, header.Sprint("suppressions"))
	fixmeTotal := 0
	for _, n := range agg.Fixmes {
		fixmeTotal += n
	}
	fmt.Fprintf(out, "  fixmes:      %d\n", fixmeTotal)
	fmt.Fprintf(out, "  ignores:     %d\n", agg.Ignores)

	fmt.Fprintln(out, header.Sprint("modes"))
	modes := make([]string, 0, len(agg.Modes))
	for mode := range agg.Modes {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	for _, mode := range modes {
		fmt.Fprintf(out, "  %-12s %d\n", mode+":", agg.Modes[mode])
	}
}

func ratio(annotated, total int) string {
	if total == 0 {
		return "0/0"
	}
	return fmt.Sprintf("%d/%d (%.0f%%)", annotated, total, 100*float64(annotated)/float64(total))
}
