package core

import (
	"errors"
	"fmt"
)

// TypeOfValue computes the type of v evaluated inside fn. It fails when the
// expression is not well-typed.
func TypeOfValue(p *Program, fn *Function, v *ValueExpr) (Type, error) {
	return typer{p: p, fn: fn}.value(v)
}

// TypeOfPlace computes the type of the location denoted by pl.
func TypeOfPlace(p *Program, fn *Function, pl *PlaceExpr) (Type, error) {
	return typer{p: p, fn: fn}.place(pl)
}

type typer struct {
	p  *Program
	fn *Function
}

func (t typer) value(v *ValueExpr) (Type, error) {
	if v == nil {
		return Type{}, errors.New("missing value expression")
	}
	switch v.Kind {
	case ValConstant:
		c := v.Constant
		if err := CheckType(c.Type); err != nil {
			return Type{}, err
		}
		if err := checkConstant(t.p, c.Value, c.Type); err != nil {
			return Type{}, err
		}
		return c.Type, nil

	case ValTuple:
		e := v.Tuple
		if err := CheckType(e.Type); err != nil {
			return Type{}, err
		}
		switch e.Type.Kind {
		case TyTuple:
			fields := e.Type.Tuple.Fields
			if len(fields) != len(e.Elems) {
				return Type{}, fmt.Errorf("tuple of %d fields built from %d values", len(fields), len(e.Elems))
			}
			for i := range e.Elems {
				if err := t.expect(&e.Elems[i], fields[i].Type, fmt.Sprintf("tuple field %d", i)); err != nil {
					return Type{}, err
				}
			}
		case TyArray:
			if e.Type.Array.Count != len(e.Elems) {
				return Type{}, fmt.Errorf("array of %d elements built from %d values", e.Type.Array.Count, len(e.Elems))
			}
			for i := range e.Elems {
				if err := t.expect(&e.Elems[i], e.Type.Array.Elem, fmt.Sprintf("array element %d", i)); err != nil {
					return Type{}, err
				}
			}
		default:
			return Type{}, fmt.Errorf("tuple expression of type %s", e.Type)
		}
		return e.Type, nil

	case ValUnion:
		e := v.Union
		if e.Type.Kind != TyUnion {
			return Type{}, fmt.Errorf("union expression of type %s", e.Type)
		}
		if err := CheckType(e.Type); err != nil {
			return Type{}, err
		}
		if e.Field < 0 || e.Field >= len(e.Type.Union.Fields) {
			return Type{}, fmt.Errorf("union field %d out of range", e.Field)
		}
		if err := t.expect(e.Value, e.Type.Union.Fields[e.Field].Type, "union field"); err != nil {
			return Type{}, err
		}
		return e.Type, nil

	case ValVariant:
		e := v.Variant
		if e.Type.Kind != TyEnum {
			return Type{}, fmt.Errorf("variant expression of type %s", e.Type)
		}
		if err := CheckType(e.Type); err != nil {
			return Type{}, err
		}
		variant, ok := e.Type.Enum.Variant(e.Discriminant)
		if !ok {
			return Type{}, fmt.Errorf("enum has no variant with discriminant %s", e.Discriminant)
		}
		if err := t.expect(e.Data, variant.Data, "variant data"); err != nil {
			return Type{}, err
		}
		return e.Type, nil

	case ValGetDiscriminant:
		pt, err := t.place(v.GetDiscriminant.Place)
		if err != nil {
			return Type{}, err
		}
		if pt.Kind != TyEnum {
			return Type{}, fmt.Errorf("discriminant of non-enum %s", pt)
		}
		return IntTy(pt.Enum.DiscriminantType), nil

	case ValLoad:
		return t.place(v.Load.Place)

	case ValAddrOf:
		e := v.AddrOf
		pt, err := t.place(e.Place)
		if err != nil {
			return Type{}, err
		}
		if e.Type.Kind != TyPtr || e.Type.Ptr == nil || e.Type.Ptr.Kind == PtrFn {
			return Type{}, fmt.Errorf("address-of producing %s", e.Type)
		}
		if err := CheckType(e.Type); err != nil {
			return Type{}, err
		}
		if e.Type.Ptr.Kind.Safe() {
			info := e.Type.Ptr.Pointee
			if info.Size != pt.Size() || info.Align != pt.Align() {
				return Type{}, fmt.Errorf("pointer to %d/%d bytes taken of %s", info.Size, info.Align, pt)
			}
		}
		return e.Type, nil

	case ValUnOp:
		return t.unOp(v.UnOp)

	case ValBinOp:
		return t.binOp(v.BinOp)
	}
	return Type{}, fmt.Errorf("unknown value kind %d", v.Kind)
}

func (t typer) expect(v *ValueExpr, want Type, what string) error {
	got, err := t.value(v)
	if err != nil {
		return err
	}
	if !got.Equal(want) {
		return fmt.Errorf("%s: expected %s, found %s", what, want, got)
	}
	return nil
}

func (t typer) unOp(e UnOpExpr) (Type, error) {
	operand, err := t.value(e.Operand)
	if err != nil {
		return Type{}, err
	}
	switch e.Op.Kind {
	case UnOpInt:
		if operand.Kind != TyInt {
			return Type{}, fmt.Errorf("integer unary operator applied to %s", operand)
		}
		return operand, nil
	case UnOpBool:
		if operand.Kind != TyBool {
			return Type{}, fmt.Errorf("boolean unary operator applied to %s", operand)
		}
		return operand, nil
	case UnOpFloat:
		if operand.Kind != TyFloat {
			return Type{}, fmt.Errorf("float unary operator applied to %s", operand)
		}
		return operand, nil
	case UnOpCast:
		if !e.Op.Cast.To.Valid() {
			return Type{}, fmt.Errorf("cast to invalid integer type %s", e.Op.Cast.To)
		}
		switch e.Op.Cast.Kind {
		case CastIntToInt:
			if operand.Kind != TyInt {
				return Type{}, fmt.Errorf("int-to-int cast applied to %s", operand)
			}
		case CastBoolToInt:
			if operand.Kind != TyBool {
				return Type{}, fmt.Errorf("bool-to-int cast applied to %s", operand)
			}
		default:
			return Type{}, fmt.Errorf("unknown cast kind %d", e.Op.Cast.Kind)
		}
		return IntTy(e.Op.Cast.To), nil
	}
	return Type{}, fmt.Errorf("unknown unary operator kind %d", e.Op.Kind)
}

func (t typer) binOp(e BinOpExpr) (Type, error) {
	left, err := t.value(e.Left)
	if err != nil {
		return Type{}, err
	}
	right, err := t.value(e.Right)
	if err != nil {
		return Type{}, err
	}
	switch e.Op.Kind {
	case BinOpInt:
		if left.Kind != TyInt || right.Kind != TyInt {
			return Type{}, fmt.Errorf("integer operator applied to %s and %s", left, right)
		}
		shift := e.Op.Int == IntShl || e.Op.Int == IntShr
		if !shift && left.Int != right.Int {
			return Type{}, fmt.Errorf("integer operator applied to mismatched %s and %s", left, right)
		}
		return left, nil
	case BinOpIntRel:
		if left.Kind != TyInt || right.Kind != TyInt || left.Int != right.Int {
			return Type{}, fmt.Errorf("integer comparison of %s and %s", left, right)
		}
		return BoolTy(), nil
	case BinOpBool:
		if left.Kind != TyBool || right.Kind != TyBool {
			return Type{}, fmt.Errorf("boolean operator applied to %s and %s", left, right)
		}
		return BoolTy(), nil
	case BinOpFloat:
		if left.Kind != TyFloat || !left.Equal(right) {
			return Type{}, fmt.Errorf("float operator applied to %s and %s", left, right)
		}
		return left, nil
	case BinOpFloatRel:
		if left.Kind != TyFloat || !left.Equal(right) {
			return Type{}, fmt.Errorf("float comparison of %s and %s", left, right)
		}
		return BoolTy(), nil
	case BinOpPtrOffset:
		if left.Kind != TyPtr || left.Ptr.Kind == PtrFn {
			return Type{}, fmt.Errorf("pointer offset applied to %s", left)
		}
		if right.Kind != TyInt || right.Int != Isize {
			return Type{}, fmt.Errorf("pointer offset by %s, want isize", right)
		}
		return left, nil
	}
	return Type{}, fmt.Errorf("unknown binary operator kind %d", e.Op.Kind)
}

func (t typer) place(pl *PlaceExpr) (Type, error) {
	if pl == nil {
		return Type{}, errors.New("missing place expression")
	}
	switch pl.Kind {
	case PlaceLocal:
		if pl.Local < 0 || int(pl.Local) >= len(t.fn.Locals) {
			return Type{}, fmt.Errorf("local _%d out of range (%d locals)", pl.Local, len(t.fn.Locals))
		}
		return t.fn.Locals[pl.Local], nil

	case PlaceDeref:
		pt, err := t.value(pl.Deref.Operand)
		if err != nil {
			return Type{}, err
		}
		if pt.Kind != TyPtr || pt.Ptr.Kind == PtrFn {
			return Type{}, fmt.Errorf("dereference of %s", pt)
		}
		target := pl.Deref.Type
		if err := CheckType(target); err != nil {
			return Type{}, err
		}
		if pt.Ptr.Kind.Safe() {
			info := pt.Ptr.Pointee
			if info.Size != target.Size() || info.Align != target.Align() {
				return Type{}, fmt.Errorf("dereference of %d/%d-byte pointee at %s", info.Size, info.Align, target)
			}
		}
		return target, nil

	case PlaceField:
		root, err := t.place(pl.Field.Root)
		if err != nil {
			return Type{}, err
		}
		var fields []Field
		switch root.Kind {
		case TyTuple:
			fields = root.Tuple.Fields
		case TyUnion:
			fields = root.Union.Fields
		default:
			return Type{}, fmt.Errorf("field projection on %s", root)
		}
		if pl.Field.Field < 0 || pl.Field.Field >= len(fields) {
			return Type{}, fmt.Errorf("field %d out of range for %s", pl.Field.Field, root)
		}
		return fields[pl.Field.Field].Type, nil

	case PlaceIndex:
		root, err := t.place(pl.Index.Root)
		if err != nil {
			return Type{}, err
		}
		if root.Kind != TyArray {
			return Type{}, fmt.Errorf("index projection on %s", root)
		}
		idx, err := t.value(pl.Index.Index)
		if err != nil {
			return Type{}, err
		}
		if idx.Kind != TyInt || idx.Int != Usize {
			return Type{}, fmt.Errorf("index of type %s, want usize", idx)
		}
		return root.Array.Elem, nil

	case PlaceDowncast:
		root, err := t.place(pl.Downcast.Root)
		if err != nil {
			return Type{}, err
		}
		if root.Kind != TyEnum {
			return Type{}, fmt.Errorf("downcast of %s", root)
		}
		variant, ok := root.Enum.Variant(pl.Downcast.Discriminant)
		if !ok {
			return Type{}, fmt.Errorf("downcast to missing variant %s", pl.Downcast.Discriminant)
		}
		return variant.Data, nil
	}
	return Type{}, fmt.Errorf("unknown place kind %d", pl.Kind)
}

func checkConstant(p *Program, c Constant, ty Type) error {
	switch c.Kind {
	case ConstInt:
		if ty.Kind != TyInt {
			return fmt.Errorf("integer constant of type %s", ty)
		}
		if !ty.Int.Contains(c.Int) {
			return fmt.Errorf("constant %s out of range for %s", c.Int, ty.Int)
		}
	case ConstBool:
		if ty.Kind != TyBool {
			return fmt.Errorf("boolean constant of type %s", ty)
		}
	case ConstFloat:
		if ty.Kind != TyFloat {
			return fmt.Errorf("float constant of type %s", ty)
		}
		if ty.Float == 4 && c.Float>>32 != 0 {
			return fmt.Errorf("f32 constant with bits %#x", c.Float)
		}
	case ConstFnPointer:
		if ty.Kind != TyPtr || ty.Ptr.Kind != PtrFn {
			return fmt.Errorf("function pointer constant of type %s", ty)
		}
		if c.Fn < 0 || int(c.Fn) >= len(p.Functions) {
			return fmt.Errorf("function f%d out of range (%d functions)", c.Fn, len(p.Functions))
		}
	default:
		return fmt.Errorf("unknown constant kind %d", c.Kind)
	}
	return nil
}
