package trace

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapTracer forwards events to a zap logger as structured JSON records.
type ZapTracer struct {
	logger *zap.Logger
	closer io.Closer
	level  Level
}

// NewZapTracer creates a tracer that writes one JSON record per event to w.
func NewZapTracer(w io.Writer, level Level) *ZapTracer {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), zapcore.DebugLevel)
	t := &ZapTracer{logger: zap.New(core), level: level}
	if c, ok := w.(io.Closer); ok && !isStdStream(w) {
		t.closer = c
	}
	return t
}

// Emit logs the event. Span ends and points log at info, heartbeats at debug.
func (t *ZapTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat {
		return
	}
	ev.Seq = NextSeq()

	fields := make([]zap.Field, 0, 8+len(ev.Extra))
	fields = append(fields,
		zap.Uint64("seq", ev.Seq),
		zap.String("kind", ev.Kind.String()),
		zap.String("scope", ev.Scope.String()),
		zap.Uint64("span_id", ev.SpanID),
	)
	if ev.ParentID != 0 {
		fields = append(fields, zap.Uint64("parent_id", ev.ParentID))
	}
	if ev.GID != 0 {
		fields = append(fields, zap.Uint64("gid", ev.GID))
	}
	if ev.Detail != "" {
		fields = append(fields, zap.String("detail", ev.Detail))
	}
	for k, v := range ev.Extra {
		fields = append(fields, zap.String(k, v))
	}

	if ev.Kind == KindHeartbeat {
		t.logger.Debug(ev.Name, fields...)
		return
	}
	t.logger.Info(ev.Name, fields...)
}

// Flush syncs the underlying logger.
func (t *ZapTracer) Flush() error {
	// Sync on a terminal or pipe reports EINVAL; nothing is lost then.
	_ = t.logger.Sync() //nolint:errcheck
	return nil
}

// Close flushes and closes the output file, if any.
func (t *ZapTracer) Close() error {
	if err := t.Flush(); err != nil {
		return err
	}
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// Level returns the current tracing level.
func (t *ZapTracer) Level() Level {
	return t.level
}

// Enabled returns true if tracing is active.
func (t *ZapTracer) Enabled() bool {
	return t.level > LevelOff
}
