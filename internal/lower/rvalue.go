package lower

import (
	"fmt"

	"minimize/internal/core"
	"minimize/internal/core/build"
	"minimize/internal/mir"
	"minimize/internal/types"
)

// rvalue translates rv, which is assigned to a place of core type dst.
// Operator families are chosen from the operand's source type; whether the
// operands actually fit the operator is left to core.Check.
func (f *fnLowerer) rvalue(rv *mir.RValue, dst core.Type) (core.ValueExpr, error) {
	switch rv.Kind {
	case mir.RValueUse:
		v, _, err := f.operand(rv.Use)
		return v, err

	case mir.RValueBinaryOp:
		return f.binary(&rv.Binary)

	case mir.RValueUnaryOp:
		v, vt, err := f.operand(rv.Unary.Operand)
		if err != nil {
			return core.ValueExpr{}, err
		}
		kind := f.kindOf(vt)
		switch rv.Unary.Op {
		case mir.UnNot:
			if kind == types.KindBool {
				return build.Not(v), nil
			}
			return build.BitNot(v), nil
		case mir.UnNeg:
			if kind == types.KindFloat {
				return build.FloatNeg(v), nil
			}
			return build.Neg(v), nil
		}
		return core.ValueExpr{}, fmt.Errorf("unknown unary operator %d", rv.Unary.Op)

	case mir.RValueCast:
		return f.cast(&rv.Cast)

	case mir.RValueAggregate:
		agg := &rv.Aggregate
		ty, err := f.pl.types.Translate(agg.Type)
		if err != nil {
			return core.ValueExpr{}, err
		}
		elems := make([]core.ValueExpr, len(agg.Ops))
		for i := range agg.Ops {
			if elems[i], _, err = f.operand(agg.Ops[i]); err != nil {
				return core.ValueExpr{}, err
			}
		}
		return aggregate(ty, agg.Variant, elems)

	case mir.RValueDiscriminant:
		p, pt, err := f.place(rv.Place)
		if err != nil {
			return core.ValueExpr{}, err
		}
		et, err := f.pl.types.Translate(pt.ty)
		if err != nil {
			return core.ValueExpr{}, err
		}
		if et.Kind != core.TyEnum {
			return core.ValueExpr{}, fmt.Errorf("discriminant of %s", et)
		}
		v := build.Discriminant(p)
		if dst.Kind == core.TyInt && dst.Int != et.Enum.DiscriminantType {
			v = build.IntToInt(dst.Int, v)
		}
		return v, nil

	case mir.RValueRef, mir.RValueAddressOf:
		p, _, err := f.place(rv.Place)
		if err != nil {
			return core.ValueExpr{}, err
		}
		return build.AddrOf(p, dst), nil
	}
	return core.ValueExpr{}, fmt.Errorf("unknown rvalue kind %d", rv.Kind)
}

func (f *fnLowerer) kindOf(id types.TypeID) types.Kind {
	tt, _ := f.pl.crate.Types.Lookup(id)
	return tt.Kind
}

var intOps = map[mir.BinOp]core.IntBinOp{
	mir.BinAdd:          core.IntAdd,
	mir.BinAddUnchecked: core.IntAddUnchecked,
	mir.BinSub:          core.IntSub,
	mir.BinSubUnchecked: core.IntSubUnchecked,
	mir.BinMul:          core.IntMul,
	mir.BinMulUnchecked: core.IntMulUnchecked,
	mir.BinDiv:          core.IntDiv,
	mir.BinRem:          core.IntRem,
	mir.BinBitAnd:       core.IntBitAnd,
	mir.BinBitOr:        core.IntBitOr,
	mir.BinBitXor:       core.IntBitXor,
	mir.BinShl:          core.IntShl,
	mir.BinShr:          core.IntShr,
}

var relOps = map[mir.BinOp]core.RelOp{
	mir.BinEq: core.RelEq,
	mir.BinNe: core.RelNe,
	mir.BinLt: core.RelLt,
	mir.BinLe: core.RelLe,
	mir.BinGt: core.RelGt,
	mir.BinGe: core.RelGe,
}

var boolOps = map[mir.BinOp]func(l, r core.ValueExpr) core.ValueExpr{
	mir.BinBitAnd: build.BoolAnd,
	mir.BinBitOr:  build.BoolOr,
	mir.BinBitXor: build.BoolXor,
	mir.BinEq:     build.BoolEq,
	mir.BinNe:     build.BoolNe,
}

var floatOps = map[mir.BinOp]core.FloatBinOp{
	mir.BinAdd: core.FloatAdd,
	mir.BinSub: core.FloatSub,
	mir.BinMul: core.FloatMul,
	mir.BinDiv: core.FloatDiv,
	mir.BinRem: core.FloatRem,
}

func (f *fnLowerer) binary(b *mir.BinaryOp) (core.ValueExpr, error) {
	l, lt, err := f.operand(b.Left)
	if err != nil {
		return core.ValueExpr{}, err
	}
	r, _, err := f.operand(b.Right)
	if err != nil {
		return core.ValueExpr{}, err
	}

	switch src, _ := f.pl.crate.Types.Lookup(lt); {
	case src.Kind == types.KindBool:
		if op, ok := boolOps[b.Op]; ok {
			return op(l, r), nil
		}
		if rel, ok := relOps[b.Op]; ok {
			// false < true, as 0 < 1.
			return build.IntCompare(rel, build.BoolToInt(core.U8, l), build.BoolToInt(core.U8, r)), nil
		}

	case src.Kind == types.KindFloat:
		if op, ok := floatOps[b.Op]; ok {
			return build.FloatBinary(op, l, r), nil
		}
		if rel, ok := relOps[b.Op]; ok {
			return build.FloatCompare(rel, l, r), nil
		}

	case src.IsPointer():
		if b.Op != mir.BinOffset {
			return core.ValueExpr{}, unsupported("pointer operator %s", b.Op)
		}
		size, err := f.pl.types.engine.SizeOf(src.Elem)
		if err != nil {
			return core.ValueExpr{}, err
		}
		bytes := build.Mul(build.IntToInt(core.Isize, r), build.ConstInt(core.Isize, int64(size)))
		return build.PtrOffset(l, bytes, true), nil

	default:
		if rel, ok := relOps[b.Op]; ok {
			return build.IntCompare(rel, l, r), nil
		}
	}
	if op, ok := intOps[b.Op]; ok {
		return build.IntBinary(op, l, r), nil
	}
	return core.ValueExpr{}, fmt.Errorf("operator %s applied to %s", b.Op, f.pl.crate.Types.Display(lt))
}

func (f *fnLowerer) cast(c *mir.CastOp) (core.ValueExpr, error) {
	v, vt, err := f.operand(c.Operand)
	if err != nil {
		return core.ValueExpr{}, err
	}
	to, err := f.pl.types.Translate(c.Type)
	if err != nil {
		return core.ValueExpr{}, err
	}
	switch c.Kind {
	case mir.CastIntToInt:
		if to.Kind != core.TyInt {
			return core.ValueExpr{}, fmt.Errorf("int-to-int cast to %s", to)
		}
		if f.kindOf(vt) == types.KindBool {
			return build.BoolToInt(to.Int, v), nil
		}
		return build.IntToInt(to.Int, v), nil

	case mir.CastPtrToPtr:
		target, _ := f.pl.crate.Types.Lookup(c.Type)
		if !target.IsPointer() {
			return core.ValueExpr{}, fmt.Errorf("pointer cast to %s", f.pl.crate.Types.Display(c.Type))
		}
		pointee, err := f.pl.types.Translate(target.Elem)
		if err != nil {
			return core.ValueExpr{}, err
		}
		return build.AddrOf(build.Deref(v, pointee), to), nil
	}
	return core.ValueExpr{}, fmt.Errorf("unknown cast kind %d", c.Kind)
}
