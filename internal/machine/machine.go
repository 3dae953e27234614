package machine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"minimize/internal/core"
	"minimize/internal/observ"
	"minimize/internal/trace"
)

// DefaultStepLimit bounds runs when Options.StepLimit is zero.
const DefaultStepLimit = 1 << 24

// Options configures execution.
type Options struct {
	Stdout    io.Writer // print target (default os.Stdout)
	Stderr    io.Writer // eprint target (default os.Stderr)
	StepLimit uint64    // statements plus terminators; 0 means DefaultStepLimit

	// Progress, when set, receives the step count as the run goes.
	Progress *observ.Progress
}

// Machine executes one core program.
type Machine struct {
	prog     *core.Program
	mem      *memory
	threads  []*thread
	current  *thread
	fnPtrs   []Pointer
	fnByPtr  map[Provenance]core.FnName
	stdout   *bufio.Writer
	stderr   *bufio.Writer
	steps    uint64
	limit    uint64
	progress *observ.Progress
	tracer   trace.Tracer
	eb       errorBuilder
}

// halt is how execution leaves the step loop.
type halt struct {
	info TerminationInfo
}

// Run checks prog and executes it from its start function. It always
// returns exactly one outcome.
func Run(ctx context.Context, prog *core.Program, opts Options) TerminationInfo {
	ctx, span := trace.Start(ctx, trace.ScopePass, "run")

	if err := core.Check(prog); err != nil {
		span.End("ill-formed")
		return illFormed(err)
	}

	m := newMachine(prog, opts, trace.FromContext(ctx))
	info := m.run(ctx)
	m.flush()
	m.progress.Steps(m.steps)
	span.WithExtra("steps", strconv.FormatUint(m.steps, 10)).End(info.Kind.String())
	return info
}

func newMachine(prog *core.Program, opts Options, tr trace.Tracer) *Machine {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	limit := opts.StepLimit
	if limit == 0 {
		limit = DefaultStepLimit
	}
	m := &Machine{
		prog:     prog,
		mem:      newMemory(),
		fnByPtr:  make(map[Provenance]core.FnName, len(prog.Functions)),
		stdout:   bufio.NewWriter(stdout),
		stderr:   bufio.NewWriter(stderr),
		limit:    limit,
		progress: opts.Progress,
		tracer:   tr,
	}
	m.eb = errorBuilder{m: m}
	return m
}

func (m *Machine) flush() {
	// Output errors do not change the outcome of the program.
	_ = m.stdout.Flush() //nolint:errcheck
	_ = m.stderr.Flush() //nolint:errcheck
}

func (m *Machine) run(ctx context.Context) TerminationInfo {
	for i := range m.prog.Functions {
		ptr, err := m.alloc(allocFn, 0, 1)
		if err != nil {
			return ub(err)
		}
		m.fnPtrs = append(m.fnPtrs, ptr)
		m.fnByPtr[ptr.Prov] = core.FnName(i)
	}

	first := &thread{id: 0}
	m.threads = append(m.threads, first)
	m.current = first
	if err := m.pushFrame(first, m.prog.Start, nil, nil, nil); err != nil {
		return ub(err)
	}

	next := 0
	for {
		th := m.pick(next)
		if th == nil {
			return TerminationInfo{Kind: Deadlock}
		}
		m.current = th
		next = th.id + 1

		m.steps++
		if m.steps > m.limit {
			return ub(m.eb.stepLimit(m.limit))
		}
		if m.steps%4096 == 0 {
			m.progress.Steps(m.steps)
			if err := ctx.Err(); err != nil {
				return ub(m.eb.makeError(UbStepLimit, "execution interrupted: %v", err))
			}
		}

		h, err := m.step(th)
		if err != nil {
			trace.Point(m.tracer, trace.ScopeFunction, "ub", err.Message)
			return ub(err)
		}
		if h != nil {
			return h.info
		}
	}
}

// pick returns the first runnable thread at or after index from, wrapping
// around, or nil if none can run.
func (m *Machine) pick(from int) *thread {
	n := len(m.threads)
	for i := range n {
		th := m.threads[(from+i)%n]
		if th.state == threadRunnable {
			return th
		}
	}
	return nil
}

// finish ends the whole program normally.
func (m *Machine) finish() *halt {
	if n := m.mem.liveHeap(); n > 0 {
		trace.Point(m.tracer, trace.ScopePass, "leak", fmt.Sprintf("%d heap allocations live", n))
		return &halt{info: TerminationInfo{Kind: MemoryLeak}}
	}
	return &halt{info: stop()}
}

// pushFrame starts fn on th, storing args into its parameters.
func (m *Machine) pushFrame(th *thread, name core.FnName, args []Value, ret *place, next *core.BbName) *UbError {
	fn := &m.prog.Functions[name]
	f := newFrame(name, fn)
	f.retPlace = ret
	f.next = next
	th.frames = append(th.frames, f)
	trace.Point(m.tracer, trace.ScopeFunction, fmt.Sprintf("call f%d", name), "")

	for i, a := range fn.Args {
		ptr, err := m.storageLive(f, a)
		if err != nil {
			return err
		}
		ty := fn.Locals[a]
		if err := m.store(ptr, encode(ty, args[i]), ty.Align()); err != nil {
			return err
		}
	}
	if fn.Ret != nil {
		if _, err := m.storageLive(f, *fn.Ret); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) storageLive(f *frame, l core.LocalName) (Pointer, *UbError) {
	if err := m.storageDead(f, l); err != nil {
		return Pointer{}, err
	}
	ty := f.fn.Locals[l]
	ptr, err := m.alloc(allocStack, ty.Size(), ty.Align())
	if err != nil {
		return Pointer{}, err
	}
	f.locals[l] = ptr
	return ptr, nil
}

func (m *Machine) storageDead(f *frame, l core.LocalName) *UbError {
	ptr, ok := f.locals[l]
	if !ok {
		return nil
	}
	ty := f.fn.Locals[l]
	delete(f.locals, l)
	return m.free(allocStack, ptr, ty.Size(), ty.Align())
}

// popFrame returns from the top frame of th.
func (m *Machine) popFrame(th *thread) (*halt, *UbError) {
	f := th.top()
	var ret *Value
	if f.fn.Ret != nil && f.retPlace != nil {
		ptr, ok := f.locals[*f.fn.Ret]
		if !ok {
			return nil, m.eb.deadLocal(*f.fn.Ret)
		}
		v, err := m.loadValue(place{ptr: ptr, ty: f.fn.Locals[*f.fn.Ret]})
		if err != nil {
			return nil, err
		}
		ret = &v
	}
	for l := range f.fn.Locals {
		if err := m.storageDead(f, core.LocalName(l)); err != nil {
			return nil, err
		}
	}
	th.frames = th.frames[:len(th.frames)-1]

	if len(th.frames) == 0 {
		if th.id == 0 {
			return m.finish(), nil
		}
		m.endThread(th)
		return nil, nil
	}
	if f.next == nil {
		return nil, m.eb.makeError(UbBadReturn, "return from f%d, which was called without a return block", f.name)
	}
	if ret != nil {
		if err := m.storeValue(*f.retPlace, *ret); err != nil {
			return nil, err
		}
	}
	th.top().jump(*f.next)
	return nil, nil
}

func (m *Machine) endThread(th *thread) {
	th.state = threadDone
	for _, other := range m.threads {
		if other.state == threadBlocked && other.joining == th.id {
			other.state = threadRunnable
			other.top().jump(*other.resume)
			other.resume = nil
		}
	}
}
