package observ_test

import (
	"strings"
	"testing"

	"minimize/internal/observ"
)

func TestTimerReportsPhasesInOrder(t *testing.T) {
	timer := observ.NewTimer()
	lower := timer.Begin("lower")
	timer.End(lower, "translated")
	run := timer.Begin("run")
	timer.End(run, "machine-stop")
	timer.End(7, "ignored")

	report := timer.Report()
	if len(report.Phases) != 2 {
		t.Fatalf("phases = %+v", report.Phases)
	}
	if report.Phases[0].Name != "lower" || report.Phases[0].Note != "translated" || report.Phases[1].Name != "run" {
		t.Fatalf("phases = %+v", report.Phases)
	}
	if report.TotalMS < report.Phases[0].DurationMS {
		t.Fatalf("total %.3f below a phase %.3f", report.TotalMS, report.Phases[0].DurationMS)
	}

	summary := timer.Summary()
	for _, want := range []string{"timings:", "lower", "// translated", "total"} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary %q lacks %q", summary, want)
		}
	}
}
