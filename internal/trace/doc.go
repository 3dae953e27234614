// Package trace records what minimize does with a crate: loading, lowering
// each function, running the machine. It is the logging layer of the
// repository.
//
// Tracing is enabled from the command line:
//
//	minimize --trace=- --trace-level=detail crate.mp
//	minimize --trace=run.ndjson --trace-format=ndjson crate.mp
//	minimize --trace-mode=ring --trace-level=debug crate.mp
//
// Tracers: Nop discards, StreamTracer writes text or NDJSON as events
// happen, ZapTracer writes JSON records through go.uber.org/zap,
// RingTracer keeps the latest events in memory for a dump after a failed
// run, and MultiTracer fans out to several of them.
//
// LevelPhase emits ScopeDriver and ScopePass events, LevelDetail adds
// ScopeFunction and LevelDebug adds ScopeBlock.
//
// The tracer and the innermost span travel in a context.Context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.Start(ctx, trace.ScopePass, "lower")
//	defer span.End("")
//
// Begin takes the tracer and parent explicitly, for spans opened on worker
// goroutines that share one parent.
package trace
