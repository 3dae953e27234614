package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"minimize/internal/version"
)

// newRootCmd builds the command with fresh flag state.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "minimize [flags] <crate.mp>",
		Short: "Lower a compiled crate to the minimal core IR and run it",
		Long: `minimize translates the MIR of a compiled crate into the minimal core IR,
checks it, and executes it on the reference machine. With --dump it prints
the core program instead.

Exit status: 0 on a normal stop or dump, 1 on an ill-formed program,
undefined behavior, deadlock or leak, 2 on a construct that cannot be
translated.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCrate,
	}
	cmd.Version = version.String()
	cmd.SetVersionTemplate("{{.Version}}\n")

	flags := cmd.Flags()
	flags.Bool("dump", false, "print the core program instead of running it")
	flags.String("entry", "", "start function (default: the crate's entry)")
	flags.String("config", "", "path to minimize.toml (default: nearest one above the crate)")
	flags.Uint64("step-limit", 0, "maximum machine steps (0: machine default)")
	flags.Bool("cache", false, "reuse lowered programs from the disk cache")
	flags.String("cache-dir", "", "disk cache directory (default: user cache dir)")
	flags.Bool("cache-clear", false, "remove cached translations before running")
	flags.Bool("timings", false, "print phase timings to stderr")
	flags.String("color", "auto", "colorize output (auto|on|off)")

	flags.String("trace", "", "trace output file (- for stderr)")
	flags.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-format", "auto", "trace format (auto|text|ndjson|zap)")
	flags.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	flags.Int("trace-ring-size", 4096, "events kept in ring mode")
	flags.Duration("trace-heartbeat", 0, "heartbeat interval (0 disables)")

	flags.String("cpu-profile", "", "write a CPU profile to this file")
	flags.String("mem-profile", "", "write a heap profile to this file")
	flags.String("runtime-trace", "", "write a Go runtime trace to this file")
	return cmd
}

// exitCode carries a non-zero process status out of RunE.
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

func main() {
	err := newRootCmd().ExecuteContext(context.Background())
	if err == nil {
		return
	}
	var code exitCode
	if errors.As(err, &code) {
		os.Exit(int(code))
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
