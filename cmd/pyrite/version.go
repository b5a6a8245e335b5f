package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pyrite/internal/version"
)

const versionTagline = "all that glitters is not typed"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show pyrite build fingerprints",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	versionCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	versionCmd.Flags().Bool("full", false, "include commit, message and build date")
}

// buildInfo is the flat view of the -ldflags metadata, with blanks
// normalized away.
type buildInfo struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	Tagline   string `json:"tagline"`
	Commit    string `json:"commit,omitempty"`
	Message   string `json:"message,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
}

func runVersion(cmd *cobra.Command, args []string) error {
	formatValue, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	full, err := cmd.Flags().GetBool("full")
	if err != nil {
		return fmt.Errorf("failed to get full flag: %w", err)
	}

	info := buildInfo{
		Tool:    "pyrite",
		Version: strings.TrimSpace(version.Version),
		Tagline: versionTagline,
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	if full {
		info.Commit = strings.TrimSpace(version.GitCommit)
		info.Message = strings.TrimSpace(version.GitMessage)
		info.BuildDate = strings.TrimSpace(version.BuildDate)
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(formatValue) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "pretty":
		fmt.Fprintf(out, "pyrite %s - %s\n", info.Version, info.Tagline)
		if full {
			fmt.Fprintf(out, "commit:  %s\n", orUnknown(info.Commit))
			fmt.Fprintf(out, "message: %s\n", orUnknown(info.Message))
			fmt.Fprintf(out, "built:   %s\n", orUnknown(info.BuildDate))
		}
		return nil
	default:
		return fmt.Errorf("unsupported format %q (must be pretty or json)", formatValue)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
