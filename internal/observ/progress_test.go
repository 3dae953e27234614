package observ_test

import (
	"sync"
	"testing"

	"minimize/internal/observ"
)

func TestProgressCountsConcurrently(t *testing.T) {
	var p observ.Progress
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.FunctionLowered()
		}()
	}
	wg.Wait()
	p.Steps(4096)

	if fns, steps := p.Snapshot(); fns != 8 || steps != 4096 {
		t.Fatalf("snapshot = %d, %d", fns, steps)
	}
	if got := p.String(); got != "lowered=8 steps=4096" {
		t.Fatalf("String() = %q", got)
	}
}

func TestNilProgressAndTimerAreInert(t *testing.T) {
	var p *observ.Progress
	p.FunctionLowered()
	p.Steps(1)
	if got := p.String(); got != "lowered=0 steps=0" {
		t.Fatalf("String() = %q", got)
	}

	var timer *observ.Timer
	idx := timer.Begin("lower")
	timer.End(idx, "")
	if idx != -1 || len(timer.Report().Phases) != 0 {
		t.Fatalf("nil timer recorded phase %d", idx)
	}
}
