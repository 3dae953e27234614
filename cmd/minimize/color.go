package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// applyColor sets the global color switch from an auto|on|off flag value.
// Auto colors only when both output streams are terminals.
func applyColor(mode string) error {
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto", "":
		color.NoColor = !isTerminal(os.Stdout) || !isTerminal(os.Stderr)
	default:
		return fmt.Errorf("invalid color mode %q (expected: auto|on|off)", mode)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
