package machine

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"minimize/internal/core"
	"minimize/internal/trace"
)

// step executes the next statement or terminator of th.
func (m *Machine) step(th *thread) (*halt, *UbError) {
	f := th.top()
	bb := &f.fn.Blocks[f.block]
	if f.stmt == 0 {
		trace.Point(m.tracer, trace.ScopeBlock, fmt.Sprintf("f%d bb%d", f.name, f.block), "")
	}
	if f.stmt < len(bb.Statements) {
		s := &bb.Statements[f.stmt]
		f.stmt++
		return nil, m.statement(f, s)
	}
	return m.terminator(th, f, &bb.Terminator)
}

func (m *Machine) statement(f *frame, s *core.Statement) *UbError {
	switch s.Kind {
	case core.StmtAssign:
		v, _, err := m.evalValue(f, &s.Assign.Source)
		if err != nil {
			return err
		}
		dest, err := m.evalPlace(f, &s.Assign.Dest)
		if err != nil {
			return err
		}
		return m.storeValue(dest, v)

	case core.StmtStorageLive:
		_, err := m.storageLive(f, s.Local)
		return err

	case core.StmtStorageDead:
		return m.storageDead(f, s.Local)

	case core.StmtSetDiscriminant:
		dest, err := m.evalPlace(f, &s.SetDiscriminant.Dest)
		if err != nil {
			return err
		}
		variant, ok := dest.ty.Enum.Variant(s.SetDiscriminant.Value)
		if !ok {
			return m.eb.invalidDiscriminant()
		}
		bytes, err := m.access(dest.ptr, dest.ty.Size(), dest.ty.Align())
		if err != nil {
			return err
		}
		writeTags(bytes, variant.Tagger)
		return nil
	}
	return m.eb.makeError(UbUnreachable, "unknown statement kind %d", s.Kind)
}

func (m *Machine) terminator(th *thread, f *frame, t *core.Terminator) (*halt, *UbError) {
	switch t.Kind {
	case core.TermGoto:
		f.jump(t.Goto)
		return nil, nil

	case core.TermIf:
		v, _, err := m.evalValue(f, &t.If.Cond)
		if err != nil {
			return nil, err
		}
		if v.Bool {
			f.jump(t.If.Then)
		} else {
			f.jump(t.If.Else)
		}
		return nil, nil

	case core.TermSwitchInt:
		v, _, err := m.evalValue(f, &t.SwitchInt.Value)
		if err != nil {
			return nil, err
		}
		target := t.SwitchInt.Otherwise
		for _, c := range t.SwitchInt.Cases {
			if c.Value == v.Int {
				target = c.Target
				break
			}
		}
		f.jump(target)
		return nil, nil

	case core.TermCall:
		return nil, m.call(th, f, &t.Call)

	case core.TermIntrinsic:
		return m.intrinsic(th, f, &t.Intrinsic)

	case core.TermReturn:
		return m.popFrame(th)

	case core.TermExit:
		return m.finish(), nil

	case core.TermUnreachable:
		return nil, m.eb.unreachable()
	}
	return nil, m.eb.makeError(UbUnreachable, "unknown terminator kind %d", t.Kind)
}

// fnOf resolves a function pointer value.
func (m *Machine) fnOf(p Pointer) (core.FnName, bool) {
	name, ok := m.fnByPtr[p.Prov]
	if !ok || m.fnPtrs[name].Addr != p.Addr {
		return 0, false
	}
	return name, true
}

func (m *Machine) call(th *thread, f *frame, c *core.CallTerm) *UbError {
	callee, _, err := m.evalValue(f, &c.Callee)
	if err != nil {
		return err
	}
	name, ok := m.fnOf(callee.Ptr)
	if !ok {
		return m.eb.makeError(UbBadCall, "call through pointer %#x that is not a function", callee.Ptr.Addr)
	}
	args := make([]Value, len(c.Args))
	argTypes := make([]core.Type, len(c.Args))
	for i := range c.Args {
		if args[i], argTypes[i], err = m.evalValue(f, &c.Args[i]); err != nil {
			return err
		}
	}
	var ret *place
	var retType *core.Type
	if c.Ret != nil {
		p, err := m.evalPlace(f, c.Ret)
		if err != nil {
			return err
		}
		ret, retType = &p, &p.ty
	}
	if sigErr := core.CheckSignature(&m.prog.Functions[name], argTypes, retType); sigErr != nil {
		return m.eb.makeError(UbBadCall, "call to f%d with wrong signature: %v", name, sigErr)
	}
	return m.pushFrame(th, name, args, ret, c.Next)
}

func (m *Machine) intrinsic(th *thread, f *frame, in *core.IntrinsicTerm) (*halt, *UbError) {
	args := make([]Value, len(in.Args))
	for i := range in.Args {
		var err *UbError
		if args[i], _, err = m.evalValue(f, &in.Args[i]); err != nil {
			return nil, err
		}
	}
	var ret *place
	if in.Ret != nil {
		p, err := m.evalPlace(f, in.Ret)
		if err != nil {
			return nil, err
		}
		ret = &p
	}
	var result *Value

	switch in.Intrinsic {
	case core.IntrinsicPrint, core.IntrinsicEPrint:
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.String()
		}
		w := m.stdout
		if in.Intrinsic == core.IntrinsicEPrint {
			w = m.stderr
		}
		// Output errors do not change the outcome of the program.
		_, _ = w.WriteString(strings.Join(parts, " ") + "\n") //nolint:errcheck

	case core.IntrinsicAllocate:
		size, align, err := m.heapLayout(args[0], args[1])
		if err != nil {
			return nil, err
		}
		ptr, err := m.alloc(allocHeap, size, align)
		if err != nil {
			return nil, err
		}
		v := ptrVal(ptr)
		result = &v

	case core.IntrinsicDeallocate:
		size, align, err := m.heapLayout(args[1], args[2])
		if err != nil {
			return nil, err
		}
		if err := m.free(allocHeap, args[0].Ptr, size, align); err != nil {
			return nil, err
		}

	case core.IntrinsicSpawn:
		name, ok := m.fnOf(args[0].Ptr)
		if !ok {
			return nil, m.eb.makeError(UbBadThread, "spawn of pointer %#x that is not a function", args[0].Ptr.Addr)
		}
		fn := &m.prog.Functions[name]
		if sigErr := core.CheckSignature(fn, []core.Type{core.PtrTy(core.PtrRaw, core.PointeeInfo{})}, nil); sigErr != nil {
			return nil, m.eb.makeError(UbBadThread, "spawn of f%d with wrong signature: %v", name, sigErr)
		}
		child := &thread{id: len(m.threads)}
		m.threads = append(m.threads, child)
		if err := m.pushFrame(child, name, args[1:2], nil, nil); err != nil {
			return nil, err
		}
		v := intVal(core.IntFromInt64(int64(child.id)))
		result = &v

	case core.IntrinsicJoin:
		id, ok := args[0].Int.Uint64()
		if !ok || id >= uint64(len(m.threads)) {
			return nil, m.eb.makeError(UbBadThread, "join of nonexistent thread %s", args[0].Int)
		}
		target := m.threads[id]
		if target.state != threadDone {
			if in.Next == nil {
				return nil, m.eb.makeError(UbBadReturn, "join without a return block")
			}
			th.state = threadBlocked
			th.joining = target.id
			th.resume = in.Next
			trace.Point(m.tracer, trace.ScopeFunction, "block", fmt.Sprintf("thread %d joins thread %d", th.id, target.id))
			return nil, nil
		}
	}

	if result != nil && ret != nil {
		if err := m.storeValue(*ret, *result); err != nil {
			return nil, err
		}
	}
	if in.Next == nil {
		return nil, m.eb.makeError(UbBadReturn, "%s returned, but has no return block", in.Intrinsic)
	}
	f.jump(*in.Next)
	return nil, nil
}

// maxHeapObject bounds heap requests; larger ones are reported as UB.
const maxHeapObject = 1 << 47

func (m *Machine) heapLayout(sizeV, alignV Value) (int, int, *UbError) {
	size, sizeErr := safecast.Conv[int](sizeV.Int.Abs)
	align, alignErr := safecast.Conv[int](alignV.Int.Abs)
	if sizeErr != nil || alignErr != nil || size > maxHeapObject || align == 0 || align&(align-1) != 0 {
		return 0, 0, m.eb.makeError(UbBadDealloc, "invalid heap layout: size %s, align %s", sizeV.Int, alignV.Int)
	}
	return size, align, nil
}
