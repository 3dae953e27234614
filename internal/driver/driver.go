// Package driver ties the pipeline together: it lowers a crate, then either
// dumps the core program or runs it, and turns the result into a report and
// an exit code.
package driver

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"

	"minimize/internal/core"
	"minimize/internal/lower"
	"minimize/internal/machine"
	"minimize/internal/mir"
	"minimize/internal/observ"
	"minimize/internal/project"
	"minimize/internal/trace"
)

// Options configures one invocation.
type Options struct {
	// Entry overrides the crate's entry function.
	Entry string
	// Dump prints the lowered program instead of running it.
	Dump      bool
	StepLimit uint64

	Stdout io.Writer
	Stderr io.Writer

	// Cache, when set, stores lowered programs keyed by CrateDigest.
	Cache       *DiskCache
	CrateDigest project.Digest

	// Timer, when set, records the lower, dump and run phases.
	Timer *observ.Timer
	// Progress, when set, is updated while lowering and running.
	Progress *observ.Progress
}

// Outcome is what one invocation produced. Exactly one of Unsupported,
// Dumped or Info describes it.
type Outcome struct {
	Info        machine.TerminationInfo
	Unsupported *lower.UnsupportedError
	Dumped      bool
	CacheHit    bool
}

// Exit codes of the binary.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUnsupported = 2
)

// ExitCode maps the outcome to the process status.
func (o Outcome) ExitCode() int {
	switch {
	case o.Unsupported != nil:
		return ExitUnsupported
	case o.Dumped:
		return ExitOK
	case o.Info.Kind == machine.MachineStop:
		return ExitOK
	default:
		return ExitFailure
	}
}

// Run lowers crate and dumps or executes the result. Well-formedness and
// capability failures are part of the Outcome; the error is reserved for
// problems outside the program, such as a missing entry or a failed write.
func Run(ctx context.Context, crate *mir.Crate, opts Options) (Outcome, error) {
	ctx, span := trace.Start(ctx, trace.ScopeDriver, "driver")
	out, err := run(ctx, crate, opts)
	switch {
	case err != nil:
		span.Fail(err)
	case out.Unsupported != nil:
		span.End("unsupported")
	case out.Dumped:
		span.End("dumped")
	default:
		span.WithExtra("cache_hit", strconv.FormatBool(out.CacheHit)).End(out.Info.Kind.String())
	}
	return out, err
}

func run(ctx context.Context, crate *mir.Crate, opts Options) (Outcome, error) {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	entry := opts.Entry
	if entry == "" && crate != nil {
		entry = crate.Entry
	}

	phase := opts.Timer.Begin("lower")
	prog, hit, err := lowerCached(ctx, crate, entry, opts)
	opts.Timer.End(phase, cacheNote(opts.Cache, hit))
	if err != nil {
		var unsupported *lower.UnsupportedError
		if errors.As(err, &unsupported) {
			return Outcome{Unsupported: unsupported}, nil
		}
		var ill *core.IllFormedError
		if errors.As(err, &ill) {
			return Outcome{Info: machine.TerminationInfo{Kind: machine.IllFormed, Detail: err.Error(), Err: err}}, nil
		}
		return Outcome{}, err
	}

	if opts.Dump {
		phase := opts.Timer.Begin("dump")
		err := core.Dump(stdout, prog)
		opts.Timer.End(phase, "")
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Dumped: true, CacheHit: hit}, nil
	}

	phase = opts.Timer.Begin("run")
	info := machine.Run(ctx, prog, machine.Options{
		Stdout:    stdout,
		Stderr:    stderr,
		StepLimit: opts.StepLimit,
		Progress:  opts.Progress,
	})
	opts.Timer.End(phase, info.Kind.String())
	return Outcome{Info: info, CacheHit: hit}, nil
}

// lowerCached lowers crate, going through opts.Cache when one is set. Only
// successful translations are cached.
func lowerCached(ctx context.Context, crate *mir.Crate, entry string, opts Options) (*core.Program, bool, error) {
	lopts := lower.Options{Entry: entry, Progress: opts.Progress}
	if opts.Cache != nil {
		key := cacheKey(opts.CrateDigest, entry)
		var payload CachePayload
		if ok, err := opts.Cache.Get(key, &payload); err == nil && ok && payload.Entry == entry {
			if prog, err := core.Parse(payload.Dump); err == nil {
				return prog, true, nil
			}
		}
		prog, err := lower.Program(ctx, crate, lopts)
		if err != nil {
			return nil, false, err
		}
		// A failed write only costs the next run a translation.
		_ = opts.Cache.Put(key, &CachePayload{Schema: diskCacheSchemaVersion, Entry: entry, Dump: core.DumpString(prog)})
		return prog, false, nil
	}
	prog, err := lower.Program(ctx, crate, lopts)
	return prog, false, err
}

func cacheNote(c *DiskCache, hit bool) string {
	switch {
	case c == nil:
		return ""
	case hit:
		return "cached"
	default:
		return "translated"
	}
}
