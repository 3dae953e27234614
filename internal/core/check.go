package core

import (
	"errors"
	"fmt"
	"math/bits"
)

// IllFormedError reports a structural or typing violation in a program.
// Func and Block are -1 when the violation is not tied to one.
type IllFormedError struct {
	Func  FnName
	Block BbName
	Err   error
}

func (e *IllFormedError) Error() string {
	switch {
	case e.Func < 0:
		return fmt.Sprintf("ill-formed program: %v", e.Err)
	case e.Block < 0:
		return fmt.Sprintf("ill-formed f%d: %v", e.Func, e.Err)
	default:
		return fmt.Sprintf("ill-formed f%d bb%d: %v", e.Func, e.Block, e.Err)
	}
}

func (e *IllFormedError) Unwrap() error { return e.Err }

// Check verifies every invariant the machine relies on: indices resolve,
// types are well-formed, and operators, assignments, calls and branches are
// applied to values of the right types. All violations are returned joined.
func Check(p *Program) error {
	if p == nil {
		return &IllFormedError{Func: -1, Block: -1, Err: errors.New("nil program")}
	}
	var errs []error
	if p.Start < 0 || int(p.Start) >= len(p.Functions) {
		errs = append(errs, &IllFormedError{Func: -1, Block: -1, Err: fmt.Errorf("start function f%d does not exist", p.Start)})
	} else if len(p.Functions[p.Start].Args) != 0 {
		errs = append(errs, &IllFormedError{Func: p.Start, Block: -1, Err: errors.New("start function takes arguments")})
	}
	for i := range p.Functions {
		errs = append(errs, checkFunc(p, FnName(i))...)
	}
	return errors.Join(errs...)
}

func checkFunc(p *Program, name FnName) []error {
	fn := &p.Functions[name]
	var errs []error
	fail := func(block BbName, format string, args ...any) {
		errs = append(errs, &IllFormedError{Func: name, Block: block, Err: fmt.Errorf(format, args...)})
	}

	for i, ty := range fn.Locals {
		if err := CheckType(ty); err != nil {
			fail(-1, "local _%d: %v", i, err)
		}
	}
	localExists := func(l LocalName) bool {
		return l >= 0 && int(l) < len(fn.Locals)
	}
	seen := make(map[LocalName]bool, len(fn.Args)+1)
	for _, a := range fn.Args {
		if !localExists(a) {
			fail(-1, "argument local _%d does not exist", a)
		} else if seen[a] {
			fail(-1, "local _%d used for two parameters", a)
		}
		seen[a] = true
	}
	if fn.Ret != nil {
		if !localExists(*fn.Ret) {
			fail(-1, "return local _%d does not exist", *fn.Ret)
		} else if seen[*fn.Ret] {
			fail(-1, "return local _%d is also a parameter", *fn.Ret)
		}
	}
	if len(fn.Blocks) == 0 {
		fail(-1, "function has no blocks")
		return errs
	}
	blockExists := func(b BbName) bool {
		return b >= 0 && int(b) < len(fn.Blocks)
	}
	if !blockExists(fn.Start) {
		fail(-1, "start block bb%d does not exist", fn.Start)
	}
	if len(errs) > 0 {
		// Later checks index locals by the declared types.
		return errs
	}

	ty := typer{p: p, fn: fn}
	for b := range fn.Blocks {
		bb := &fn.Blocks[b]
		block := BbName(b)
		for s := range bb.Statements {
			if err := ty.statement(&bb.Statements[s]); err != nil {
				fail(block, "statement %d: %v", s, err)
			}
		}
		if err := ty.terminator(&bb.Terminator, blockExists); err != nil {
			fail(block, "terminator: %v", err)
		}
	}
	return errs
}

func (t typer) statement(s *Statement) error {
	switch s.Kind {
	case StmtAssign:
		dest, err := t.place(&s.Assign.Dest)
		if err != nil {
			return err
		}
		return t.expect(&s.Assign.Source, dest, "assignment")
	case StmtStorageLive, StmtStorageDead:
		if s.Local < 0 || int(s.Local) >= len(t.fn.Locals) {
			return fmt.Errorf("storage marker for missing local _%d", s.Local)
		}
		return nil
	case StmtSetDiscriminant:
		dest, err := t.place(&s.SetDiscriminant.Dest)
		if err != nil {
			return err
		}
		if dest.Kind != TyEnum {
			return fmt.Errorf("set_discriminant on %s", dest)
		}
		if _, ok := dest.Enum.Variant(s.SetDiscriminant.Value); !ok {
			return fmt.Errorf("set_discriminant to missing variant %s", s.SetDiscriminant.Value)
		}
		return nil
	}
	return fmt.Errorf("unknown statement kind %d", s.Kind)
}

func (t typer) terminator(term *Terminator, blockExists func(BbName) bool) error {
	target := func(what string, b BbName) error {
		if !blockExists(b) {
			return fmt.Errorf("%s target bb%d does not exist", what, b)
		}
		return nil
	}
	next := func(b *BbName) error {
		if b == nil {
			return nil
		}
		return target("return", *b)
	}
	switch term.Kind {
	case TermGoto:
		return target("goto", term.Goto)

	case TermIf:
		if err := t.expect(&term.If.Cond, BoolTy(), "if condition"); err != nil {
			return err
		}
		return errors.Join(target("then", term.If.Then), target("else", term.If.Else))

	case TermSwitchInt:
		sw := &term.SwitchInt
		vt, err := t.value(&sw.Value)
		if err != nil {
			return err
		}
		if vt.Kind != TyInt {
			return fmt.Errorf("switch on %s", vt)
		}
		var errs []error
		for i, c := range sw.Cases {
			if !vt.Int.Contains(c.Value) {
				errs = append(errs, fmt.Errorf("switch arm %d value %s out of range for %s", i, c.Value, vt.Int))
			}
			errs = append(errs, target(fmt.Sprintf("switch arm %d", i), c.Target))
		}
		errs = append(errs, target("switch otherwise", sw.Otherwise))
		return errors.Join(errs...)

	case TermCall:
		return errors.Join(t.call(&term.Call), next(term.Call.Next))

	case TermIntrinsic:
		return errors.Join(t.intrinsic(&term.Intrinsic), next(term.Intrinsic.Next))

	case TermReturn, TermExit, TermUnreachable:
		return nil
	}
	return fmt.Errorf("unknown terminator kind %d", term.Kind)
}

func (t typer) call(c *CallTerm) error {
	ct, err := t.value(&c.Callee)
	if err != nil {
		return err
	}
	if ct.Kind != TyPtr || ct.Ptr.Kind != PtrFn {
		return fmt.Errorf("call of non-function %s", ct)
	}
	argTypes := make([]Type, len(c.Args))
	for i := range c.Args {
		if argTypes[i], err = t.value(&c.Args[i]); err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
	}
	var retType *Type
	if c.Ret != nil {
		rt, err := t.place(c.Ret)
		if err != nil {
			return fmt.Errorf("return place: %w", err)
		}
		retType = &rt
	}
	if c.Callee.Kind != ValConstant {
		// Signature is checked by the machine once the pointer is known.
		return nil
	}
	callee := &t.p.Functions[c.Callee.Constant.Value.Fn]
	return CheckSignature(callee, argTypes, retType)
}

// CheckSignature verifies that a call passing argTypes and storing into a
// place of type ret (nil when discarded) matches fn.
func CheckSignature(fn *Function, argTypes []Type, ret *Type) error {
	if len(argTypes) != len(fn.Args) {
		return fmt.Errorf("call with %d arguments to function taking %d", len(argTypes), len(fn.Args))
	}
	for i, a := range fn.Args {
		if int(a) >= len(fn.Locals) {
			return fmt.Errorf("callee parameter _%d does not exist", a)
		}
		if want := fn.Locals[a]; !argTypes[i].Equal(want) {
			return fmt.Errorf("argument %d: expected %s, found %s", i, want, argTypes[i])
		}
	}
	if ret != nil && fn.Ret != nil && int(*fn.Ret) < len(fn.Locals) {
		if want := fn.Locals[*fn.Ret]; !ret.Equal(want) {
			return fmt.Errorf("return place: expected %s, found %s", want, *ret)
		}
	}
	return nil
}

func (t typer) intrinsic(in *IntrinsicTerm) error {
	args := make([]Type, len(in.Args))
	for i := range in.Args {
		at, err := t.value(&in.Args[i])
		if err != nil {
			return fmt.Errorf("%s argument %d: %w", in.Intrinsic, i, err)
		}
		args[i] = at
	}
	var ret *Type
	if in.Ret != nil {
		rt, err := t.place(in.Ret)
		if err != nil {
			return fmt.Errorf("%s return place: %w", in.Intrinsic, err)
		}
		ret = &rt
	}
	arity := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s takes %d arguments, got %d", in.Intrinsic, n, len(args))
		}
		return nil
	}
	isUsize := func(ty Type) bool { return ty.Kind == TyInt && ty.Int == Usize }
	isRaw := func(ty Type) bool { return ty.Kind == TyPtr && ty.Ptr.Kind == PtrRaw }
	unitRet := func() error {
		if ret != nil && ret.Size() != 0 {
			return fmt.Errorf("%s returns nothing but stores into %s", in.Intrinsic, *ret)
		}
		return nil
	}

	switch in.Intrinsic {
	case IntrinsicPrint, IntrinsicEPrint:
		for i, a := range args {
			if a.Kind != TyInt && a.Kind != TyBool {
				return fmt.Errorf("%s argument %d of type %s", in.Intrinsic, i, a)
			}
		}
		return unitRet()
	case IntrinsicAllocate:
		if err := arity(2); err != nil {
			return err
		}
		if !isUsize(args[0]) || !isUsize(args[1]) {
			return fmt.Errorf("allocate takes (usize, usize), got (%s, %s)", args[0], args[1])
		}
		if ret != nil && !isRaw(*ret) {
			return fmt.Errorf("allocate returns a raw pointer, stored into %s", *ret)
		}
		return nil
	case IntrinsicDeallocate:
		if err := arity(3); err != nil {
			return err
		}
		if !isRaw(args[0]) || !isUsize(args[1]) || !isUsize(args[2]) {
			return fmt.Errorf("deallocate takes (raw pointer, usize, usize), got (%s, %s, %s)", args[0], args[1], args[2])
		}
		return unitRet()
	case IntrinsicSpawn:
		if err := arity(2); err != nil {
			return err
		}
		if args[0].Kind != TyPtr || args[0].Ptr.Kind != PtrFn || !isRaw(args[1]) {
			return fmt.Errorf("spawn takes (fn pointer, raw pointer), got (%s, %s)", args[0], args[1])
		}
		if ret != nil && !(ret.Kind == TyInt && ret.Int == U32) {
			return fmt.Errorf("spawn returns u32, stored into %s", *ret)
		}
		return nil
	case IntrinsicJoin:
		if err := arity(1); err != nil {
			return err
		}
		if args[0].Kind != TyInt || args[0].Int != U32 {
			return fmt.Errorf("join takes u32, got %s", args[0])
		}
		return unitRet()
	}
	return fmt.Errorf("unknown intrinsic %d", in.Intrinsic)
}

// CheckType verifies that a type's layout is self-consistent.
func CheckType(t Type) error {
	switch t.Kind {
	case TyInt:
		if !t.Int.Valid() {
			return fmt.Errorf("integer type of %d bytes", t.Int.Size)
		}
	case TyBool:
	case TyFloat:
		if t.Float != 4 && t.Float != 8 {
			return fmt.Errorf("float type of %d bytes", t.Float)
		}
	case TyPtr:
		if t.Ptr == nil {
			return errors.New("pointer type without pointer info")
		}
		if t.Ptr.Kind.Safe() {
			if err := checkSizeAlign(t.Ptr.Pointee.Size, t.Ptr.Pointee.Align); err != nil {
				return fmt.Errorf("pointee: %w", err)
			}
		}
	case TyTuple:
		if t.Tuple == nil {
			return errors.New("tuple type without fields")
		}
		if err := checkSizeAlign(t.Tuple.Size, t.Tuple.Align); err != nil {
			return err
		}
		return checkFields(t.Tuple.Fields, t.Tuple.Size)
	case TyArray:
		if t.Array == nil || t.Array.Count < 0 {
			return errors.New("array type with invalid count")
		}
		return CheckType(t.Array.Elem)
	case TyUnion:
		u := t.Union
		if u == nil {
			return errors.New("union type without fields")
		}
		if err := checkSizeAlign(u.Size, u.Align); err != nil {
			return err
		}
		if err := checkFields(u.Fields, u.Size); err != nil {
			return err
		}
		end := 0
		for i, c := range u.Chunks {
			if c.Offset < end || c.Size <= 0 || c.Offset+c.Size > u.Size {
				return fmt.Errorf("union chunk %d [%d, +%d) misplaced", i, c.Offset, c.Size)
			}
			end = c.Offset + c.Size
		}
	case TyEnum:
		if t.Enum == nil {
			return errors.New("enum type without variants")
		}
		return checkEnum(t.Enum)
	default:
		return fmt.Errorf("unknown type kind %d", t.Kind)
	}
	return nil
}

func checkSizeAlign(size, align int) error {
	if align <= 0 || bits.OnesCount(uint(align)) != 1 {
		return fmt.Errorf("alignment %d is not a power of two", align)
	}
	if size < 0 || size%align != 0 {
		return fmt.Errorf("size %d is not a multiple of alignment %d", size, align)
	}
	return nil
}

func checkFields(fields []Field, size int) error {
	for i, f := range fields {
		if err := CheckType(f.Type); err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
		if f.Offset < 0 || f.Offset+f.Type.Size() > size {
			return fmt.Errorf("field %d at offset %d does not fit in %d bytes", i, f.Offset, size)
		}
	}
	return nil
}

func checkEnum(e *EnumType) error {
	if err := checkSizeAlign(e.Size, e.Align); err != nil {
		return err
	}
	if !e.DiscriminantType.Valid() {
		return fmt.Errorf("discriminant type of %d bytes", e.DiscriminantType.Size)
	}
	seen := make(map[Int]bool, len(e.Variants))
	for i, v := range e.Variants {
		if !e.DiscriminantType.Contains(v.Discriminant) {
			return fmt.Errorf("variant %d discriminant %s out of range for %s", i, v.Discriminant, e.DiscriminantType)
		}
		if seen[v.Discriminant] {
			return fmt.Errorf("duplicate discriminant %s", v.Discriminant)
		}
		seen[v.Discriminant] = true
		if v.Data.Kind != TyTuple || v.Data.Size() != e.Size {
			return fmt.Errorf("variant %d data must be a tuple of %d bytes, found %s", i, e.Size, v.Data)
		}
		if err := CheckType(v.Data); err != nil {
			return fmt.Errorf("variant %d: %w", i, err)
		}
		for j, w := range v.Tagger {
			if !w.Int.Valid() || w.Offset < 0 || w.Offset+w.Int.Size > e.Size {
				return fmt.Errorf("variant %d tag write %d does not fit", i, j)
			}
			if !w.Int.Contains(w.Value) {
				return fmt.Errorf("variant %d tag value %s out of range for %s", i, w.Value, w.Int)
			}
		}
	}
	return checkDiscriminator(&e.Discriminator, e, seen)
}

func checkDiscriminator(d *Discriminator, e *EnumType, variants map[Int]bool) error {
	switch d.Kind {
	case DiscKnown:
		if !variants[d.Known] {
			return fmt.Errorf("discriminator names missing variant %s", d.Known)
		}
		return nil
	case DiscInvalid:
		return nil
	case DiscBranch:
		if !d.Int.Valid() || d.Offset < 0 || d.Offset+d.Int.Size > e.Size {
			return fmt.Errorf("discriminator read of %s at %d does not fit", d.Int, d.Offset)
		}
		for i := range d.Cases {
			c := &d.Cases[i]
			if c.Lo.Cmp(c.Hi) > 0 || !d.Int.Contains(c.Lo) || !d.Int.Contains(c.Hi) {
				return fmt.Errorf("discriminator case [%s, %s] invalid for %s", c.Lo, c.Hi, d.Int)
			}
			if err := checkDiscriminator(&c.Child, e, variants); err != nil {
				return err
			}
		}
		if d.Fallback == nil {
			return errors.New("discriminator branch without fallback")
		}
		return checkDiscriminator(d.Fallback, e, variants)
	}
	return fmt.Errorf("unknown discriminator kind %d", d.Kind)
}
