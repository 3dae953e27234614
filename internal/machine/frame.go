package machine

import "minimize/internal/core"

// place is a typed location in memory.
type place struct {
	ptr Pointer
	ty  core.Type
}

// frame is one function activation.
type frame struct {
	name   core.FnName
	fn     *core.Function
	locals map[core.LocalName]Pointer // live locals only
	block  core.BbName
	stmt   int // index of the next statement; len(Statements) means the terminator

	// Where the caller wants the return value and where it continues.
	retPlace *place
	next     *core.BbName
}

func newFrame(name core.FnName, fn *core.Function) *frame {
	return &frame{
		name:   name,
		fn:     fn,
		locals: make(map[core.LocalName]Pointer, len(fn.Locals)),
		block:  fn.Start,
	}
}

func (f *frame) jump(b core.BbName) {
	f.block = b
	f.stmt = 0
}

type threadState uint8

const (
	threadRunnable threadState = iota
	threadBlocked
	threadDone
)

// thread is a stack of frames plus its scheduling state.
type thread struct {
	id      int
	frames  []*frame
	state   threadState
	joining int          // threadBlocked: the awaited thread
	resume  *core.BbName // threadBlocked: where to continue once woken
}

func (t *thread) top() *frame {
	return t.frames[len(t.frames)-1]
}
