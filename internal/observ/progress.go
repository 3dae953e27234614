package observ

import (
	"fmt"
	"sync/atomic"
)

// Progress counts work while it happens so that another goroutine (the
// trace heartbeat) can report it. A nil *Progress ignores updates.
type Progress struct {
	functions atomic.Int64
	steps     atomic.Uint64
}

// FunctionLowered records one translated function.
func (p *Progress) FunctionLowered() {
	if p != nil {
		p.functions.Add(1)
	}
}

// Steps records the machine's step counter.
func (p *Progress) Steps(n uint64) {
	if p != nil {
		p.steps.Store(n)
	}
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() (functions int64, steps uint64) {
	if p == nil {
		return 0, 0
	}
	return p.functions.Load(), p.steps.Load()
}

func (p *Progress) String() string {
	fns, steps := p.Snapshot()
	return fmt.Sprintf("lowered=%d steps=%d", fns, steps)
}
