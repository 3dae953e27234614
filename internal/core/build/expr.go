package build

import "minimize/internal/core"

// ConstBool is a boolean literal.
func ConstBool(b bool) core.ValueExpr {
	return constant(core.Constant{Kind: core.ConstBool, Bool: b}, core.BoolTy())
}

// ConstInt is an integer literal of type it.
func ConstInt(it core.IntType, v int64) core.ValueExpr {
	return constant(core.Constant{Kind: core.ConstInt, Int: core.IntFromInt64(v)}, core.IntTy(it))
}

// ConstUint is an unsigned literal of type it, for values above MaxInt64.
func ConstUint(it core.IntType, v uint64) core.ValueExpr {
	return constant(core.Constant{Kind: core.ConstInt, Int: core.IntFromUint64(v)}, core.IntTy(it))
}

// IntConst is an integer literal given as a core.Int.
func IntConst(it core.IntType, v core.Int) core.ValueExpr {
	return constant(core.Constant{Kind: core.ConstInt, Int: v}, core.IntTy(it))
}

// ConstFloat is a float literal of size bytes given by its IEEE-754 bits.
func ConstFloat(size int, bits uint64) core.ValueExpr {
	return constant(core.Constant{Kind: core.ConstFloat, Float: bits}, core.FloatTy(size))
}

// FnPtr is a pointer to function f.
func FnPtr(f core.FnName) core.ValueExpr {
	return constant(core.Constant{Kind: core.ConstFnPointer, Fn: f}, FnPtrType())
}

func constant(c core.Constant, ty core.Type) core.ValueExpr {
	return core.ValueExpr{Kind: core.ValConstant, Constant: core.ConstantExpr{Value: c, Type: ty}}
}

// Tuple builds a tuple of type ty.
func Tuple(ty core.Type, elems ...core.ValueExpr) core.ValueExpr {
	return core.ValueExpr{Kind: core.ValTuple, Tuple: core.TupleExpr{Elems: nilIfEmpty(elems), Type: ty}}
}

// Array builds an array of the given element type.
func Array(elem core.Type, elems ...core.ValueExpr) core.ValueExpr {
	return Tuple(core.ArrayTy(elem, len(elems)), elems...)
}

// Union builds a union of type ty with field initialized to v.
func Union(ty core.Type, field int, v core.ValueExpr) core.ValueExpr {
	return core.ValueExpr{Kind: core.ValUnion, Union: core.UnionExpr{Field: field, Value: &v, Type: ty}}
}

// Variant builds the enum value of ty with the given discriminant.
func Variant(ty core.Type, discriminant int64, data core.ValueExpr) core.ValueExpr {
	return core.ValueExpr{Kind: core.ValVariant, Variant: core.VariantExpr{
		Discriminant: core.IntFromInt64(discriminant),
		Data:         &data,
		Type:         ty,
	}}
}

// Discriminant reads the discriminant of an enum place.
func Discriminant(p core.PlaceExpr) core.ValueExpr {
	return core.ValueExpr{Kind: core.ValGetDiscriminant, GetDiscriminant: core.GetDiscriminantExpr{Place: &p}}
}

// Load copies the value out of a place.
func Load(p core.PlaceExpr) core.ValueExpr {
	return core.ValueExpr{Kind: core.ValLoad, Load: core.LoadExpr{Place: &p}}
}

// Move moves the value out of a place.
func Move(p core.PlaceExpr) core.ValueExpr {
	return core.ValueExpr{Kind: core.ValLoad, Load: core.LoadExpr{Place: &p, Move: true}}
}

// AddrOf takes the address of p as a pointer of type ptrTy.
func AddrOf(p core.PlaceExpr, ptrTy core.Type) core.ValueExpr {
	return core.ValueExpr{Kind: core.ValAddrOf, AddrOf: core.AddrOfExpr{Place: &p, Type: ptrTy}}
}

// Local names a local variable.
func Local(l core.LocalName) core.PlaceExpr {
	return core.PlaceExpr{Kind: core.PlaceLocal, Local: l}
}

// Deref is the place a pointer points to, viewed at type ty.
func Deref(ptr core.ValueExpr, ty core.Type) core.PlaceExpr {
	return core.PlaceExpr{Kind: core.PlaceDeref, Deref: core.DerefPlace{Operand: &ptr, Type: ty}}
}

// Field projects to field i of a tuple or union place.
func Field(root core.PlaceExpr, i int) core.PlaceExpr {
	return core.PlaceExpr{Kind: core.PlaceField, Field: core.FieldPlace{Root: &root, Field: i}}
}

// Index projects to an array element.
func Index(root core.PlaceExpr, idx core.ValueExpr) core.PlaceExpr {
	return core.PlaceExpr{Kind: core.PlaceIndex, Index: core.IndexPlace{Root: &root, Index: &idx}}
}

// Downcast views an enum place as the data of one variant.
func Downcast(root core.PlaceExpr, discriminant int64) core.PlaceExpr {
	return core.PlaceExpr{Kind: core.PlaceDowncast, Downcast: core.DowncastPlace{Root: &root, Discriminant: core.IntFromInt64(discriminant)}}
}

func unop(op core.UnOp, v core.ValueExpr) core.ValueExpr {
	return core.ValueExpr{Kind: core.ValUnOp, UnOp: core.UnOpExpr{Op: op, Operand: &v}}
}

func binop(op core.BinOp, l, r core.ValueExpr) core.ValueExpr {
	return core.ValueExpr{Kind: core.ValBinOp, BinOp: core.BinOpExpr{Op: op, Left: &l, Right: &r}}
}

// Not is boolean negation.
func Not(v core.ValueExpr) core.ValueExpr {
	return unop(core.UnOp{Kind: core.UnOpBool, Bool: core.BoolNot}, v)
}

// Neg is integer negation.
func Neg(v core.ValueExpr) core.ValueExpr {
	return unop(core.UnOp{Kind: core.UnOpInt, Int: core.IntNeg}, v)
}

// BitNot is integer bitwise complement.
func BitNot(v core.ValueExpr) core.ValueExpr {
	return unop(core.UnOp{Kind: core.UnOpInt, Int: core.IntBitNot}, v)
}

// BoolToInt converts false/true to 0/1 of type it.
func BoolToInt(it core.IntType, v core.ValueExpr) core.ValueExpr {
	return unop(core.UnOp{Kind: core.UnOpCast, Cast: core.CastOp{Kind: core.CastBoolToInt, To: it}}, v)
}

// IntToInt converts between integer types, wrapping.
func IntToInt(it core.IntType, v core.ValueExpr) core.ValueExpr {
	return unop(core.UnOp{Kind: core.UnOpCast, Cast: core.CastOp{Kind: core.CastIntToInt, To: it}}, v)
}

// FloatNeg is float negation.
func FloatNeg(v core.ValueExpr) core.ValueExpr {
	return unop(core.UnOp{Kind: core.UnOpFloat, Float: core.FloatNeg}, v)
}

// IntBinary applies any integer operator.
func IntBinary(op core.IntBinOp, l, r core.ValueExpr) core.ValueExpr {
	return intOp(op)(l, r)
}

// IntCompare applies any integer comparison.
func IntCompare(op core.RelOp, l, r core.ValueExpr) core.ValueExpr {
	return relOp(op)(l, r)
}

// FloatBinary applies a float arithmetic operator.
func FloatBinary(op core.FloatBinOp, l, r core.ValueExpr) core.ValueExpr {
	return binop(core.BinOp{Kind: core.BinOpFloat, Float: op}, l, r)
}

// FloatCompare applies a float comparison.
func FloatCompare(op core.RelOp, l, r core.ValueExpr) core.ValueExpr {
	return binop(core.BinOp{Kind: core.BinOpFloatRel, Rel: op}, l, r)
}

func boolOp(op core.BoolBinOp) func(l, r core.ValueExpr) core.ValueExpr {
	return func(l, r core.ValueExpr) core.ValueExpr {
		return binop(core.BinOp{Kind: core.BinOpBool, Bool: op}, l, r)
	}
}

func intOp(op core.IntBinOp) func(l, r core.ValueExpr) core.ValueExpr {
	return func(l, r core.ValueExpr) core.ValueExpr {
		return binop(core.BinOp{Kind: core.BinOpInt, Int: op}, l, r)
	}
}

func relOp(op core.RelOp) func(l, r core.ValueExpr) core.ValueExpr {
	return func(l, r core.ValueExpr) core.ValueExpr {
		return binop(core.BinOp{Kind: core.BinOpIntRel, Rel: op}, l, r)
	}
}

// Boolean operators.
var (
	BoolAnd = boolOp(core.BoolBitAnd)
	BoolOr  = boolOp(core.BoolBitOr)
	BoolXor = boolOp(core.BoolBitXor)
	BoolEq  = boolOp(core.BoolEq)
	BoolNe  = boolOp(core.BoolNe)
)

// Integer arithmetic; the checked forms wrap, the unchecked ones make
// overflow undefined.
var (
	Add          = intOp(core.IntAdd)
	AddUnchecked = intOp(core.IntAddUnchecked)
	Sub          = intOp(core.IntSub)
	SubUnchecked = intOp(core.IntSubUnchecked)
	Mul          = intOp(core.IntMul)
	MulUnchecked = intOp(core.IntMulUnchecked)
	Div          = intOp(core.IntDiv)
	Rem          = intOp(core.IntRem)
	Shl          = intOp(core.IntShl)
	Shr          = intOp(core.IntShr)
	BitAnd       = intOp(core.IntBitAnd)
	BitOr        = intOp(core.IntBitOr)
	BitXor       = intOp(core.IntBitXor)
)

// Integer comparisons.
var (
	Lt = relOp(core.RelLt)
	Le = relOp(core.RelLe)
	Gt = relOp(core.RelGt)
	Ge = relOp(core.RelGe)
	Eq = relOp(core.RelEq)
	Ne = relOp(core.RelNe)
)

// PtrOffset moves a pointer by a byte offset of type isize.
func PtrOffset(ptr, offset core.ValueExpr, inBounds bool) core.ValueExpr {
	return binop(core.BinOp{Kind: core.BinOpPtrOffset, InBounds: inBounds}, ptr, offset)
}
