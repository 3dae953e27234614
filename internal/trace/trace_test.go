package trace_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"minimize/internal/trace"
)

func TestStartNestsSpansThroughContext(t *testing.T) {
	ring := trace.NewRingTracer(16, trace.LevelDetail)
	ctx := trace.WithTracer(context.Background(), ring)

	ctx, outer := trace.Start(ctx, trace.ScopeDriver, "driver")
	_, inner := trace.Start(ctx, trace.ScopeFunction, "main")
	inner.Fail(errors.New("boom"))
	outer.End("ok")

	events := ring.Snapshot()
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[1].ParentID != outer.ID() || events[1].Name != "main" {
		t.Fatalf("inner begin = %+v, want parent %d", events[1], outer.ID())
	}
	end := events[2]
	if end.Kind != trace.KindSpanEnd || end.Detail != "failed" || end.Extra["error"] != "boom" {
		t.Fatalf("inner end = %+v", end)
	}
	if events[3].Detail != "ok" || events[3].ParentID != 0 {
		t.Fatalf("outer end = %+v", events[3])
	}
}

func TestLevelFiltersScopes(t *testing.T) {
	tests := []struct {
		level trace.Level
		want  int
	}{
		{trace.LevelOff, 0},
		{trace.LevelError, 0},
		{trace.LevelPhase, 2},
		{trace.LevelDetail, 3},
		{trace.LevelDebug, 4},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			ring := trace.NewRingTracer(16, tt.level)
			for _, s := range []trace.Scope{trace.ScopeDriver, trace.ScopePass, trace.ScopeFunction, trace.ScopeBlock} {
				trace.Point(ring, s, s.String(), "")
			}
			if got := len(ring.Snapshot()); got != tt.want {
				t.Fatalf("got %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestDisabledSpanIsInert(t *testing.T) {
	ctx := trace.WithTracer(context.Background(), trace.Nop)
	ctx2, span := trace.Start(ctx, trace.ScopeDriver, "driver")
	if span.ID() != 0 || ctx2 != ctx {
		t.Fatalf("span id = %d, context replaced = %v", span.ID(), ctx2 != ctx)
	}
	span.WithExtra("k", "v").Fail(errors.New("ignored"))
	if trace.ParentID(ctx2) != 0 {
		t.Fatal("disabled span became a parent")
	}
}

func TestRingEvictsOldest(t *testing.T) {
	ring := trace.NewRingTracer(3, trace.LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		trace.Point(ring, trace.ScopeDriver, name, "")
	}
	var names []string
	for _, ev := range ring.Snapshot() {
		names = append(names, ev.Name)
	}
	if got := strings.Join(names, ""); got != "cde" {
		t.Fatalf("snapshot = %q, want cde", got)
	}
	if ring.Dropped() != 2 {
		t.Fatalf("dropped = %d, want 2", ring.Dropped())
	}

	var buf bytes.Buffer
	if err := ring.Dump(&buf, trace.FormatText); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "... 2 earlier events dropped\n") || strings.Count(out, "\n") != 4 {
		t.Fatalf("dump = %q", out)
	}
}

func TestRingOfFindsRingBehindMulti(t *testing.T) {
	var buf bytes.Buffer
	tr, err := trace.New(trace.Config{Level: trace.LevelPhase, Mode: trace.ModeBoth, Output: &buf, Format: trace.FormatNDJSON})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	trace.Point(tr, trace.ScopePass, "lower", "")

	ring := trace.RingOf(tr)
	if ring == nil || len(ring.Snapshot()) != 1 {
		t.Fatalf("ring = %v", ring)
	}
	if !strings.Contains(buf.String(), `"name":"lower"`) {
		t.Fatalf("stream output = %q", buf.String())
	}
	if trace.RingOf(trace.Nop) != nil {
		t.Fatal("Nop has no ring")
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]trace.Level{"": trace.LevelOff, "PHASE": trace.LevelPhase, "debug": trace.LevelDebug} {
		got, err := trace.ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := trace.ParseLevel("loud"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestHeartbeatReportsProbe(t *testing.T) {
	ring := trace.NewRingTracer(64, trace.LevelPhase)
	hb := trace.StartHeartbeat(ring, time.Millisecond, func() string { return "steps=42" })
	deadline := time.Now().Add(5 * time.Second)
	for len(ring.Snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	hb.Stop()
	hb.Stop()

	events := ring.Snapshot()
	if len(events) == 0 {
		t.Fatal("no heartbeat emitted")
	}
	if ev := events[0]; ev.Kind != trace.KindHeartbeat || ev.Detail != "#1 steps=42" {
		t.Fatalf("heartbeat = %+v", ev)
	}
	if trace.StartHeartbeat(trace.Nop, time.Millisecond, nil) != nil {
		t.Fatal("heartbeat started with tracing off")
	}
}

func TestZapTracerWritesJSONRecords(t *testing.T) {
	var buf bytes.Buffer
	zt := trace.NewZapTracer(&buf, trace.LevelPhase)
	span := trace.Begin(zt, trace.ScopePass, "lower", 0)
	span.WithExtra("functions", "2").End("")
	trace.Point(zt, trace.ScopeFunction, "filtered", "")
	if err := zt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d records, want 2: %q", len(lines), buf.String())
	}
	var rec struct {
		Msg       string `json:"msg"`
		Kind      string `json:"kind"`
		Scope     string `json:"scope"`
		SpanID    uint64 `json:"span_id"`
		Functions string `json:"functions"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("decode %q: %v", lines[1], err)
	}
	if rec.Msg != "lower" || rec.Kind != "end" || rec.Scope != "pass" || rec.SpanID != span.ID() || rec.Functions != "2" {
		t.Fatalf("record = %+v, span %d", rec, span.ID())
	}
}
