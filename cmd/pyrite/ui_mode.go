package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// wantTUI resolves the --ui flag to a final decision. "auto" turns the
// progress display on only when stdout is a terminal.
func wantTUI(value string) (bool, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "", "auto":
		return isTerminal(os.Stdout), nil
	default:
		return false, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

// applyColorMode sets the global color switch from the --color flag.
func applyColorMode(value string) error {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		if os.Getenv("NO_COLOR") != "" || !isTerminal(os.Stdout) {
			color.NoColor = true
		}
	case "on", "always":
		color.NoColor = false
	case "off", "never":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
	return nil
}
