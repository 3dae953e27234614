package mir

import (
	"errors"
	"fmt"
)

// Validate checks crate invariants that do not depend on types: every block
// is terminated, every block, local, function and constant index resolves,
// and declarations are consistent. All violations are returned joined.
func Validate(c *Crate) error {
	if c == nil {
		return errors.New("nil crate")
	}
	var errs []error
	if c.Types == nil {
		errs = append(errs, errors.New("crate has no type table"))
	}
	if c.Entry != "" {
		if id, ok := c.Lookup(c.Entry); !ok {
			errs = append(errs, fmt.Errorf("entry function %q not found", c.Entry))
		} else if c.Funcs[id].Kind != FuncBody {
			errs = append(errs, fmt.Errorf("entry function %q has no body", c.Entry))
		}
	}
	for i := range c.Funcs {
		if err := validateFunc(c, &c.Funcs[i]); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", c.Funcs[i].Name, err))
		}
	}
	for i := range c.Consts {
		v := &validator{c: c}
		v.constant(&c.Consts[i].Value)
		if err := errors.Join(v.errs...); err != nil {
			errs = append(errs, fmt.Errorf("const %s: %w", c.Consts[i].Name, err))
		}
	}
	return errors.Join(errs...)
}

func validateFunc(c *Crate, f *FuncDecl) error {
	switch f.Kind {
	case FuncIntrinsic:
		if !IsIntrinsic(f.Intrinsic) {
			return fmt.Errorf("unknown intrinsic %q", f.Intrinsic)
		}
		if f.Body != nil {
			return errors.New("intrinsic with a body")
		}
		return nil
	case FuncBody:
		if f.Body == nil {
			return errors.New("missing body")
		}
	default:
		return fmt.Errorf("unknown function kind %d", f.Kind)
	}

	b := f.Body
	v := &validator{c: c, body: b}
	if len(b.Locals) == 0 {
		v.fail("no return local")
	}
	if b.ArgCount < 0 || b.ArgCount >= len(b.Locals) {
		v.fail("%d arguments but %d locals", b.ArgCount, len(b.Locals))
	}
	if len(b.Blocks) == 0 {
		v.fail("no blocks")
	}
	for i, l := range b.Locals {
		if c.Types != nil {
			if _, ok := c.Types.Lookup(l.Type); !ok {
				v.fail("_%d: unknown type#%d", i, l.Type)
			}
		}
	}
	for i := range b.Blocks {
		v.block(BlockID(i), &b.Blocks[i])
	}
	return errors.Join(v.errs...)
}

type validator struct {
	c    *Crate
	body *Body
	errs []error
}

func (v *validator) fail(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) block(id BlockID, bb *Block) {
	if !bb.Terminated() {
		v.fail("bb%d: unterminated block", id)
	}
	for i := range bb.Stmts {
		v.statement(id, &bb.Stmts[i])
	}
	for _, succ := range bb.Term.Successors() {
		if succ < 0 || int(succ) >= len(v.body.Blocks) {
			v.fail("bb%d: target bb%d does not exist", id, succ)
		}
	}
	switch bb.Term.Kind {
	case TermSwitchInt:
		v.operand(&bb.Term.SwitchInt.Discr)
	case TermCall:
		v.operand(&bb.Term.Call.Func)
		for i := range bb.Term.Call.Args {
			v.operand(&bb.Term.Call.Args[i])
		}
		v.place(bb.Term.Call.Dst)
	case TermAssert:
		v.operand(&bb.Term.Assert.Cond)
	case TermDrop:
		v.place(bb.Term.Drop.Place)
	}
}

func (v *validator) statement(id BlockID, s *Statement) {
	switch s.Kind {
	case StmtNop:
	case StmtAssign:
		v.place(s.Assign.Dst)
		v.rvalue(&s.Assign.Src)
	case StmtStorageLive, StmtStorageDead:
		if !v.localOK(s.Local) {
			v.fail("bb%d: storage marker for unknown local _%d", id, s.Local)
		}
	case StmtSetDiscriminant:
		v.place(s.SetDiscriminant.Place)
	default:
		v.fail("bb%d: unknown statement kind %d", id, s.Kind)
	}
}

func (v *validator) localOK(l LocalID) bool {
	return l >= 0 && int(l) < len(v.body.Locals)
}

func (v *validator) place(p Place) {
	if !v.localOK(p.Local) {
		v.fail("unknown local _%d", p.Local)
	}
	for _, proj := range p.Proj {
		if proj.Kind == PlaceProjIndex && !v.localOK(proj.IndexLocal) {
			v.fail("index by unknown local _%d", proj.IndexLocal)
		}
	}
}

func (v *validator) operand(op *Operand) {
	switch op.Kind {
	case OperandCopy, OperandMove:
		v.place(op.Place)
	case OperandConst:
		v.constant(&op.Const)
	default:
		v.fail("unknown operand kind %d", op.Kind)
	}
}

func (v *validator) constant(c *Const) {
	switch c.Kind {
	case ConstFn:
		if c.Fn < 0 || int(c.Fn) >= len(v.c.Funcs) {
			v.fail("constant refers to unknown function #%d", c.Fn)
		}
	case ConstUnevaluated:
		if c.Item < 0 || int(c.Item) >= len(v.c.Consts) {
			v.fail("constant refers to unknown item #%d", c.Item)
		}
	case ConstAggregate:
		for i := range c.Fields {
			v.constant(&c.Fields[i])
		}
	}
}

func (v *validator) rvalue(rv *RValue) {
	switch rv.Kind {
	case RValueUse:
		v.operand(&rv.Use)
	case RValueBinaryOp:
		v.operand(&rv.Binary.Left)
		v.operand(&rv.Binary.Right)
	case RValueUnaryOp:
		v.operand(&rv.Unary.Operand)
	case RValueCast:
		v.operand(&rv.Cast.Operand)
	case RValueAggregate:
		for i := range rv.Aggregate.Ops {
			v.operand(&rv.Aggregate.Ops[i])
		}
	case RValueDiscriminant, RValueRef, RValueAddressOf:
		v.place(rv.Place)
	default:
		v.fail("unknown rvalue kind %d", rv.Kind)
	}
}
