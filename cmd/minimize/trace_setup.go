package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"minimize/internal/observ"
	"minimize/internal/project"
	"minimize/internal/trace"
)

// traceSession is the tracer attached to the command context.
type traceSession struct {
	tracer    trace.Tracer
	heartbeat *trace.Heartbeat
}

// dumpRing writes the events kept in memory after a failed run.
func (s *traceSession) dumpRing(w io.Writer) {
	if ring := trace.RingOf(s.tracer); ring != nil {
		if err := ring.Dump(w, trace.FormatText); err != nil {
			fmt.Fprintf(w, "trace: dump error: %v\n", err)
		}
	}
}

func (s *traceSession) close(w io.Writer) {
	if s.heartbeat != nil {
		s.heartbeat.Stop()
	}
	if err := s.tracer.Flush(); err != nil {
		fmt.Fprintf(w, "trace: flush error: %v\n", err)
	}
	if err := s.tracer.Close(); err != nil {
		fmt.Fprintf(w, "trace: close error: %v\n", err)
	}
}

// setupTracing builds the tracer from flags, falling back to the [trace]
// section of the configuration for flags left unset. Heartbeats report
// progress.
func setupTracing(cmd *cobra.Command, cfg project.TraceConfig, progress *observ.Progress) (*traceSession, error) {
	flags := cmd.Flags()
	pick := func(name, fromConfig string) (string, error) {
		v, err := flags.GetString(name)
		if err != nil {
			return "", fmt.Errorf("failed to get %s flag: %w", name, err)
		}
		if !flags.Changed(name) && fromConfig != "" {
			return fromConfig, nil
		}
		return v, nil
	}

	output, err := pick("trace", cfg.Output)
	if err != nil {
		return nil, err
	}
	levelStr, err := pick("trace-level", cfg.Level)
	if err != nil {
		return nil, err
	}
	formatStr, err := pick("trace-format", cfg.Format)
	if err != nil {
		return nil, err
	}
	modeStr, err := flags.GetString("trace-mode")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
	}
	ringSize, err := flags.GetInt("trace-ring-size")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	heartbeatInterval, err := flags.GetDuration("trace-heartbeat")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace level: %w", err)
	}
	// An output without a level traces phases.
	if level == trace.LevelOff && output != "" {
		level = trace.LevelPhase
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return &traceSession{tracer: trace.Nop}, nil
	}
	if output == "" {
		output = "-"
	}
	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace mode: %w", err)
	}
	format, err := trace.ParseFormat(formatStr)
	if err != nil {
		return nil, err
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: output,
		RingSize:   ringSize,
		Heartbeat:  heartbeatInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))

	s := &traceSession{tracer: tracer}
	if heartbeatInterval > 0 {
		s.heartbeat = trace.StartHeartbeat(tracer, heartbeatInterval, progress.String)
	}
	return s, nil
}
