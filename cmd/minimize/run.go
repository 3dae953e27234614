package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"minimize/internal/driver"
	"minimize/internal/observ"
	"minimize/internal/project"
)

func runCrate(cmd *cobra.Command, args []string) error {
	cratePath := args[0]
	flags := cmd.Flags()

	colorMode, err := flags.GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	if err := applyColor(colorMode); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, cratePath)
	if err != nil {
		return err
	}

	progress := &observ.Progress{}
	session, err := setupTracing(cmd, cfg.Trace, progress)
	if err != nil {
		return err
	}
	defer session.close(cmd.ErrOrStderr())

	profiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := profiling.Stop(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "profiling: %v\n", err)
		}
	}()

	opts, err := driverOptions(cmd, cfg)
	if err != nil {
		return err
	}

	timings, err := flags.GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	if timings {
		opts.Timer = observ.NewTimer()
	}
	opts.Progress = progress

	phase := opts.Timer.Begin("load")
	crate, digest, err := driver.LoadCrate(cratePath)
	opts.Timer.End(phase, filepath.Base(cratePath))
	if err != nil {
		return err
	}
	opts.CrateDigest = digest

	out, err := driver.Run(cmd.Context(), crate, opts)
	if err != nil {
		return err
	}
	driver.Report(cmd.ErrOrStderr(), out)
	if opts.Timer != nil {
		fmt.Fprint(cmd.ErrOrStderr(), opts.Timer.Summary())
	}

	if code := out.ExitCode(); code != driver.ExitOK {
		if code == driver.ExitFailure {
			session.dumpRing(cmd.ErrOrStderr())
		}
		return exitCode(code)
	}
	return nil
}

// loadConfig reads --config, or the nearest minimize.toml above the crate.
func loadConfig(cmd *cobra.Command, cratePath string) (project.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return project.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		return project.LoadConfig(path)
	}
	cfg, _, _, err := project.LoadNearestConfig(filepath.Dir(cratePath))
	return cfg, err
}

// driverOptions merges flags over the configuration file.
func driverOptions(cmd *cobra.Command, cfg project.Config) (driver.Options, error) {
	flags := cmd.Flags()
	opts := driver.Options{
		Entry:     cfg.Entry,
		StepLimit: cfg.StepLimit,
		Stdout:    cmd.OutOrStdout(),
		Stderr:    cmd.ErrOrStderr(),
	}

	dump, err := flags.GetBool("dump")
	if err != nil {
		return opts, fmt.Errorf("failed to get dump flag: %w", err)
	}
	opts.Dump = dump

	if flags.Changed("entry") {
		if opts.Entry, err = flags.GetString("entry"); err != nil {
			return opts, fmt.Errorf("failed to get entry flag: %w", err)
		}
	}
	if flags.Changed("step-limit") {
		if opts.StepLimit, err = flags.GetUint64("step-limit"); err != nil {
			return opts, fmt.Errorf("failed to get step-limit flag: %w", err)
		}
	}

	useCache, err := flags.GetBool("cache")
	if err != nil {
		return opts, fmt.Errorf("failed to get cache flag: %w", err)
	}
	cacheDir, err := flags.GetString("cache-dir")
	if err != nil {
		return opts, fmt.Errorf("failed to get cache-dir flag: %w", err)
	}
	if !flags.Changed("cache") {
		// An explicit --cache-dir turns the cache on.
		useCache = cfg.Cache.Enabled || flags.Changed("cache-dir")
	}
	if cacheDir == "" {
		cacheDir = cfg.Cache.Dir
	}
	clearCache, err := flags.GetBool("cache-clear")
	if err != nil {
		return opts, fmt.Errorf("failed to get cache-clear flag: %w", err)
	}
	if !useCache && !clearCache {
		return opts, nil
	}
	cache, err := driver.OpenDiskCache(cacheDir, "minimize")
	if err != nil {
		return opts, fmt.Errorf("failed to open cache: %w", err)
	}
	if clearCache {
		if err := cache.DropAll(); err != nil {
			return opts, fmt.Errorf("failed to clear cache: %w", err)
		}
	}
	if useCache {
		opts.Cache = cache
	}
	return opts, nil
}
