package lower

import (
	"errors"
	"fmt"

	"minimize/internal/core"
	"minimize/internal/core/build"
	"minimize/internal/mir"
	"minimize/internal/types"
)

type fnLowerer struct {
	pl   *programLowerer
	id   core.FnName
	name string
	body *mir.Body

	locals []core.Type
	// offset is added to source block numbers; it is 1 when a storage
	// prologue block is prepended.
	offset int
	block  core.BbName
}

func (l *programLowerer) function(id core.FnName, decl *mir.FuncDecl) (core.Function, error) {
	f := &fnLowerer{pl: l, id: id, name: decl.Name, body: decl.Body, block: -1}
	fn, err := f.lower()
	if err != nil {
		return core.Function{}, f.wrap(err)
	}
	return fn, nil
}

// wrap attributes err to the function and block being translated.
func (f *fnLowerer) wrap(err error) error {
	var u *UnsupportedError
	if errors.As(err, &u) {
		return &UnsupportedError{Func: f.name, What: u.What}
	}
	var ill *core.IllFormedError
	if errors.As(err, &ill) {
		return err
	}
	return illFormed(f.id, f.block, "fn %s: %w", f.name, err)
}

func (f *fnLowerer) lower() (core.Function, error) {
	body := f.body
	f.locals = make([]core.Type, len(body.Locals))
	for i, l := range body.Locals {
		ty, err := f.pl.types.Translate(l.Type)
		if err != nil {
			return core.Function{}, fmt.Errorf("local _%d: %w", i, err)
		}
		f.locals[i] = ty
	}

	args := make([]core.LocalName, 0, body.ArgCount)
	for _, a := range body.Args() {
		args = append(args, core.LocalName(a))
	}
	ret := core.LocalName(mir.ReturnLocal)

	var blocks []core.BasicBlock
	if prologue := f.prologue(); len(prologue) > 0 {
		f.offset = 1
		blocks = append(blocks, build.Block(build.Goto(1), prologue...))
	}
	for i := range body.Blocks {
		f.block = f.bb(mir.BlockID(i))
		bb, err := f.basicBlock(&body.Blocks[i])
		if err != nil {
			return core.Function{}, err
		}
		blocks = append(blocks, bb)
	}
	f.block = -1

	return core.Function{
		Locals: f.locals,
		Args:   args,
		Ret:    &ret,
		Blocks: blocks,
		Start:  0,
	}, nil
}

// prologue makes live every local that the body never marks itself. The
// return place and the arguments are made live by the call.
func (f *fnLowerer) prologue() []core.Statement {
	marked := make(map[mir.LocalID]bool)
	for _, bb := range f.body.Blocks {
		for _, s := range bb.Stmts {
			if s.Kind == mir.StmtStorageLive || s.Kind == mir.StmtStorageDead {
				marked[s.Local] = true
			}
		}
	}
	var out []core.Statement
	for i := f.body.ArgCount + 1; i < len(f.body.Locals); i++ {
		if !marked[mir.LocalID(i)] {
			out = append(out, build.StorageLive(core.LocalName(i)))
		}
	}
	return out
}

func (f *fnLowerer) bb(b mir.BlockID) core.BbName {
	return core.BbName(int(b) + f.offset)
}

func (f *fnLowerer) basicBlock(bb *mir.Block) (core.BasicBlock, error) {
	stmts := make([]core.Statement, 0, len(bb.Stmts))
	for i := range bb.Stmts {
		s, ok, err := f.statement(&bb.Stmts[i])
		if err != nil {
			return core.BasicBlock{}, fmt.Errorf("statement %d: %w", i, err)
		}
		if ok {
			stmts = append(stmts, s)
		}
	}
	term, err := f.terminator(&bb.Term)
	if err != nil {
		return core.BasicBlock{}, err
	}
	return build.Block(term, stmts...), nil
}

// statement translates s; ok is false for statements with no effect.
func (f *fnLowerer) statement(s *mir.Statement) (core.Statement, bool, error) {
	switch s.Kind {
	case mir.StmtNop:
		return core.Statement{}, false, nil

	case mir.StmtAssign:
		dst, dt, err := f.place(s.Assign.Dst)
		if err != nil {
			return core.Statement{}, false, err
		}
		dstTy, err := f.pl.types.Translate(dt.ty)
		if err != nil {
			return core.Statement{}, false, err
		}
		v, err := f.rvalue(&s.Assign.Src, dstTy)
		if err != nil {
			return core.Statement{}, false, err
		}
		return build.Assign(dst, v), true, nil

	case mir.StmtStorageLive:
		return build.StorageLive(core.LocalName(s.Local)), true, nil

	case mir.StmtStorageDead:
		return build.StorageDead(core.LocalName(s.Local)), true, nil

	case mir.StmtSetDiscriminant:
		sd := &s.SetDiscriminant
		p, pt, err := f.place(sd.Place)
		if err != nil {
			return core.Statement{}, false, err
		}
		info, ok := f.pl.crate.Types.AdtInfo(pt.ty)
		if !ok || info.Kind != types.AdtEnum {
			return core.Statement{}, false, fmt.Errorf("set discriminant of %s", f.pl.crate.Types.Display(pt.ty))
		}
		if sd.Variant < 0 || sd.Variant >= len(info.Variants) {
			return core.Statement{}, false, fmt.Errorf("variant %d of %s does not exist", sd.Variant, info.Name)
		}
		return build.SetDiscriminant(p, info.Variants[sd.Variant].Discr), true, nil
	}
	return core.Statement{}, false, fmt.Errorf("unknown statement kind %d", s.Kind)
}

func (f *fnLowerer) terminator(t *mir.Terminator) (core.Terminator, error) {
	switch t.Kind {
	case mir.TermGoto:
		return build.Goto(f.bb(t.Goto.Target)), nil
	case mir.TermSwitchInt:
		return f.switchInt(&t.SwitchInt)
	case mir.TermReturn:
		return build.Return(), nil
	case mir.TermUnreachable:
		return build.Unreachable(), nil
	case mir.TermCall:
		return f.call(&t.Call)
	case mir.TermAssert:
		return core.Terminator{}, unsupported("assert terminator")
	case mir.TermDrop:
		return core.Terminator{}, unsupported("drop terminator")
	}
	return core.Terminator{}, fmt.Errorf("unknown terminator kind %d", t.Kind)
}

// switchInt turns a one-armed switch on a bool into an if; any other switch
// on a bool switches on the bool cast to u8.
func (f *fnLowerer) switchInt(sw *mir.SwitchIntTerm) (core.Terminator, error) {
	v, vt, err := f.operand(sw.Discr)
	if err != nil {
		return core.Terminator{}, err
	}
	otherwise := f.bb(sw.Otherwise)

	var it core.IntType
	if f.kindOf(vt) == types.KindBool {
		if len(sw.Targets) == 1 && sw.Targets[0].Value <= 1 {
			arm := f.bb(sw.Targets[0].Target)
			if sw.Targets[0].Value == 1 {
				return build.If(v, arm, otherwise), nil
			}
			return build.If(v, otherwise, arm), nil
		}
		v = build.BoolToInt(core.U8, v)
		it = core.U8
	} else {
		ty, err := f.pl.types.Translate(vt)
		if err != nil {
			return core.Terminator{}, err
		}
		if ty.Kind != core.TyInt {
			return core.Terminator{}, fmt.Errorf("switch on %s", ty)
		}
		it = ty.Int
	}

	cases := make([]core.SwitchCase, len(sw.Targets))
	for i, arm := range sw.Targets {
		value := it.FromBits(arm.Value)
		if it.ToBits(value) != arm.Value {
			return core.Terminator{}, fmt.Errorf("switch arm %d value %#x does not fit %s", i, arm.Value, it)
		}
		cases[i] = core.SwitchCase{Value: value, Target: f.bb(arm.Target)}
	}
	return build.SwitchInt(v, cases, otherwise), nil
}

// calleeOf resolves the function a call operand names: either a function
// constant or any operand whose type is a function item.
func (f *fnLowerer) calleeOf(op mir.Operand) (mir.FuncID, bool) {
	if op.Kind == mir.OperandConst && op.Const.Kind == mir.ConstFn {
		return op.Const.Fn, true
	}
	var ty types.TypeID
	if op.Kind == mir.OperandConst {
		ty = op.Const.Type
	} else {
		_, pt, err := f.place(op.Place)
		if err != nil {
			return mir.NoFuncID, false
		}
		ty = pt.ty
	}
	tt, ok := f.pl.crate.Types.Lookup(ty)
	if !ok || tt.Kind != types.KindFnDef {
		return mir.NoFuncID, false
	}
	return mir.FuncID(tt.Payload), true
}

func (f *fnLowerer) call(c *mir.CallTerm) (core.Terminator, error) {
	callee, ok := f.calleeOf(c.Func)
	if !ok {
		return core.Terminator{}, unsupported("call through a function pointer")
	}
	if callee < 0 || int(callee) >= len(f.pl.crate.Funcs) {
		return core.Terminator{}, fmt.Errorf("call of unknown function #%d", callee)
	}
	decl := &f.pl.crate.Funcs[callee]

	var next *core.BbName
	if c.Target != mir.NoBlockID {
		next = build.Next(f.bb(c.Target))
	}
	dst, dt, err := f.place(c.Dst)
	if err != nil {
		return core.Terminator{}, err
	}

	if decl.Kind == mir.FuncIntrinsic {
		return f.intrinsic(decl.Intrinsic, c.Args, dst, dt, next)
	}

	args := make([]core.ValueExpr, len(c.Args))
	for i := range c.Args {
		if args[i], _, err = f.operand(c.Args[i]); err != nil {
			return core.Terminator{}, fmt.Errorf("argument %d: %w", i, err)
		}
	}
	name, ok := f.pl.fnNames[callee]
	if !ok {
		return core.Terminator{}, fmt.Errorf("call of %s, which was not translated", decl.Name)
	}
	return build.Call(build.FnPtr(name), args, build.RetPlace(dst), next), nil
}

func (f *fnLowerer) intrinsic(name string, argOps []mir.Operand, dst core.PlaceExpr, dt placeTy, next *core.BbName) (core.Terminator, error) {
	if name == "exit" {
		return build.Exit(), nil
	}
	in, ok := core.IntrinsicByName(name)
	if !ok {
		return core.Terminator{}, unsupported("intrinsic %s", name)
	}

	args := make([]core.ValueExpr, len(argOps))
	for i := range argOps {
		// spawn receives the function to run as a pointer.
		if in == core.IntrinsicSpawn && i == 0 {
			fnID, ok := f.calleeOf(argOps[0])
			if !ok {
				return core.Terminator{}, unsupported("spawn of a function pointer")
			}
			fnName, ok := f.pl.fnNames[fnID]
			if !ok {
				return core.Terminator{}, unsupported("spawn of intrinsic %s", f.pl.crate.Funcs[fnID].Name)
			}
			args[i] = build.FnPtr(fnName)
			continue
		}
		var err error
		if args[i], _, err = f.operand(argOps[i]); err != nil {
			return core.Terminator{}, fmt.Errorf("%s argument %d: %w", name, i, err)
		}
	}

	var ret *core.PlaceExpr
	dstTy, err := f.pl.types.Translate(dt.ty)
	if err != nil {
		return core.Terminator{}, err
	}
	if dstTy.Size() != 0 {
		ret = build.RetPlace(dst)
	}
	return build.Intrinsic(in, args, ret, next), nil
}
