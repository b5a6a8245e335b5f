package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"fortio.org/safecast"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"pyrite/internal/config"
	"pyrite/internal/pyparse"
	"pyrite/internal/pysrc"
)

var parseCmd = &cobra.Command{
	Use:   "parse [flags] <file.py...>",
	Short: "Parse Python files and print their statement trees",
	Long:  "Parse is a debugging aid: it prints the statement-level tree pyrite extracts from each file, with syntax errors rendered in place.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runParse,
}

func init() {
	parseCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	parseCmd.Flags().Int("max-errors", 0, "syntax errors collected per file before giving up (0 uses the manifest value)")
}

func runParse(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	maxErrorsFlag, err := cmd.Flags().GetInt("max-errors")
	if err != nil {
		return fmt.Errorf("failed to get max-errors flag: %w", err)
	}
	colorValue, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	if err := applyColorMode(colorValue); err != nil {
		return err
	}

	maxErrorsValue := maxErrorsFlag
	if maxErrorsValue <= 0 {
		cfg, cfgErr := config.LoadOrDefault(".")
		if cfgErr != nil {
			return cfgErr
		}
		maxErrorsValue = cfg.Check.MaxParseErrors
	}
	maxErrors, err := safecast.Conv[uint](maxErrorsValue)
	if err != nil {
		return fmt.Errorf("invalid max-errors value: %w", err)
	}
	grammar := pyparse.New(pyparse.Options{MaxErrors: maxErrors})

	out := cmd.OutOrStdout()
	hadErrors := false
	for _, path := range args {
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("failed to read %s: %w", path, readErr)
		}
		src, syntaxErrs, parseErr := grammar.ParseAll(path, content)
		if parseErr != nil {
			var skip *pysrc.SkipError
			if errors.As(parseErr, &skip) {
				fmt.Fprintf(out, "== %s skipped (%s)\n", path, skip.Reason)
				continue
			}
			return parseErr
		}
		if len(syntaxErrs) > 0 {
			hadErrors = true
		}
		if format == "json" {
			if err := renderParseJSON(out, path, src, syntaxErrs); err != nil {
				return err
			}
			continue
		}
		renderParsePretty(out, path, content, src, syntaxErrs)
	}

	if hadErrors {
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return fmt.Errorf("") // Silent error - syntax errors already printed
	}
	return nil
}

func renderParsePretty(out io.Writer, path string, content []byte, src *pysrc.Source, syntaxErrs []*pysrc.SyntaxError) {
	header := color.New(color.Bold)
	mode := "unparsed"
	count := 0
	if src != nil {
		mode = src.TypedMode.String()
		count = len(src.Statements)
	}
	fmt.Fprintln(out, header.Sprintf("== %s (%s, %d statements)", path, mode, count))
	if src != nil {
		for i := range src.Statements {
			renderStatement(out, &src.Statements[i], 1)
		}
	}

	lines := strings.Split(string(content), "\n")
	for _, serr := range syntaxErrs {
		renderSyntaxError(out, lines, serr)
	}
}

func renderStatement(out io.Writer, st *pysrc.Statement, depth int) {
	indent := strings.Repeat("    ", depth-1)
	fmt.Fprintf(out, "%4d %s%s\n", st.Line, indent, statementText(st))
	for i := range st.Body {
		renderStatement(out, &st.Body[i], depth+1)
	}
}

// statementText renders one statement the way it was written, with "..."
// standing in for expression text the tree does not keep.
func statementText(st *pysrc.Statement) string {
	switch st.Kind {
	case pysrc.StmtImport:
		return "import " + aliasText(st.Names)
	case pysrc.StmtFromImport:
		target := strings.Repeat(".", st.Dots) + st.Module.String()
		if st.Wildcard {
			return fmt.Sprintf("from %s import *", target)
		}
		return fmt.Sprintf("from %s import %s", target, aliasText(st.Names))
	case pysrc.StmtDef:
		params := make([]string, 0, len(st.Params))
		for _, p := range st.Params {
			if p.Annotated {
				params = append(params, p.Name+": ...")
			} else {
				params = append(params, p.Name)
			}
		}
		text := fmt.Sprintf("def %s(%s)", st.Name, strings.Join(params, ", "))
		if st.Async {
			text = "async " + text
		}
		if st.ReturnsAnn {
			text += " -> ..."
		}
		return text
	case pysrc.StmtClass:
		if len(st.Bases) == 0 {
			return "class " + st.Name
		}
		return fmt.Sprintf("class %s(%s)", st.Name, strings.Join(st.Bases, ", "))
	case pysrc.StmtAssign:
		text := strings.Join(st.Targets, " = ")
		if st.Annotated {
			text += ": ..."
		}
		if len(st.Strings) > 0 {
			return fmt.Sprintf("%s = [%s]", text, strings.Join(st.Strings, ", "))
		}
		return text + " = ..."
	default:
		return st.Kind.String()
	}
}

func aliasText(names []pysrc.Alias) string {
	parts := make([]string, 0, len(names))
	for _, a := range names {
		if a.As != "" {
			parts = append(parts, a.Name+" as "+a.As)
		} else {
			parts = append(parts, a.Name)
		}
	}
	return strings.Join(parts, ", ")
}

func renderSyntaxError(out io.Writer, lines []string, serr *pysrc.SyntaxError) {
	errColor := color.New(color.FgRed, color.Bold)
	fmt.Fprintf(out, "%s %s\n", errColor.Sprintf("%s:%d:%d:", serr.Path, serr.Line, serr.Col), serr.Message)
	if serr.Line < 1 || serr.Line > len(lines) {
		return
	}
	line := strings.TrimRight(lines[serr.Line-1], "\r")
	fmt.Fprintf(out, "  %s\n", line)
	col := serr.Col
	if col < 1 {
		col = 1
	}
	if col > len(line)+1 {
		col = len(line) + 1
	}
	// Column is a byte offset; the caret lands at its display width.
	pad := runewidth.StringWidth(line[:col-1])
	fmt.Fprintf(out, "  %s%s\n", strings.Repeat(" ", pad), errColor.Sprint("^"))
}

type parsePayload struct {
	Path         string        `json:"path"`
	Mode         string        `json:"mode"`
	Statements   []stmtPayload `json:"statements"`
	SyntaxErrors []string      `json:"syntax_errors,omitempty"`
}

type stmtPayload struct {
	Line int           `json:"line"`
	Kind string        `json:"kind"`
	Text string        `json:"text"`
	Body []stmtPayload `json:"body,omitempty"`
}

func renderParseJSON(out io.Writer, path string, src *pysrc.Source, syntaxErrs []*pysrc.SyntaxError) error {
	payload := parsePayload{Path: path, Mode: "unparsed"}
	if src != nil {
		payload.Mode = src.TypedMode.String()
		payload.Statements = stmtPayloads(src.Statements)
	}
	for _, serr := range syntaxErrs {
		payload.SyntaxErrors = append(payload.SyntaxErrors, serr.Error())
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func stmtPayloads(stmts []pysrc.Statement) []stmtPayload {
	if len(stmts) == 0 {
		return nil
	}
	out := make([]stmtPayload, 0, len(stmts))
	for i := range stmts {
		st := &stmts[i]
		out = append(out, stmtPayload{
			Line: st.Line,
			Kind: st.Kind.String(),
			Text: statementText(st),
			Body: stmtPayloads(st.Body),
		})
	}
	return out
}
