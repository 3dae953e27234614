package machine

import (
	"math"
	"math/big"

	"minimize/internal/core"
)

// loadValue performs a typed copy out of memory.
func (m *Machine) loadValue(p place) (Value, *UbError) {
	bytes, err := m.load(p.ptr, p.ty.Size(), p.ty.Align())
	if err != nil {
		return Value{}, err
	}
	v, ok := decode(p.ty, bytes)
	if !ok {
		return Value{}, m.eb.invalidValue(p.ty)
	}
	return v, nil
}

// storeValue performs a typed copy into memory.
func (m *Machine) storeValue(p place, v Value) *UbError {
	return m.store(p.ptr, encode(p.ty, v), p.ty.Align())
}

func (m *Machine) evalValue(f *frame, v *core.ValueExpr) (Value, core.Type, *UbError) {
	switch v.Kind {
	case core.ValConstant:
		c := v.Constant
		return m.constant(c.Value), c.Type, nil

	case core.ValTuple:
		e := v.Tuple
		elems := make([]Value, len(e.Elems))
		for i := range e.Elems {
			ev, _, err := m.evalValue(f, &e.Elems[i])
			if err != nil {
				return Value{}, core.Type{}, err
			}
			elems[i] = ev
		}
		return Value{Kind: ValTuple, Elems: elems}, e.Type, nil

	case core.ValUnion:
		e := v.Union
		fv, fty, err := m.evalValue(f, e.Value)
		if err != nil {
			return Value{}, core.Type{}, err
		}
		u := e.Type.Union
		buf := make([]AbsByte, u.Size)
		off := u.Fields[e.Field].Offset
		encodeInto(buf[off:off+fty.Size()], fty, fv)
		chunks := make([][]AbsByte, len(u.Chunks))
		for i, c := range u.Chunks {
			chunks[i] = buf[c.Offset : c.Offset+c.Size]
		}
		return Value{Kind: ValUnion, Chunks: chunks}, e.Type, nil

	case core.ValVariant:
		e := v.Variant
		data, _, err := m.evalValue(f, e.Data)
		if err != nil {
			return Value{}, core.Type{}, err
		}
		return Value{Kind: ValVariant, Discriminant: e.Discriminant, Data: &data}, e.Type, nil

	case core.ValGetDiscriminant:
		p, err := m.evalPlace(f, v.GetDiscriminant.Place)
		if err != nil {
			return Value{}, core.Type{}, err
		}
		bytes, err := m.load(p.ptr, p.ty.Size(), p.ty.Align())
		if err != nil {
			return Value{}, core.Type{}, err
		}
		d, ok := discriminate(&p.ty.Enum.Discriminator, bytes)
		if !ok {
			return Value{}, core.Type{}, m.eb.invalidDiscriminant()
		}
		if _, ok := p.ty.Enum.Variant(d); !ok {
			return Value{}, core.Type{}, m.eb.invalidDiscriminant()
		}
		return intVal(d), core.IntTy(p.ty.Enum.DiscriminantType), nil

	case core.ValLoad:
		p, err := m.evalPlace(f, v.Load.Place)
		if err != nil {
			return Value{}, core.Type{}, err
		}
		val, err := m.loadValue(p)
		if err != nil {
			return Value{}, core.Type{}, err
		}
		if v.Load.Move {
			if err := m.store(p.ptr, make([]AbsByte, p.ty.Size()), p.ty.Align()); err != nil {
				return Value{}, core.Type{}, err
			}
		}
		return val, p.ty, nil

	case core.ValAddrOf:
		p, err := m.evalPlace(f, v.AddrOf.Place)
		if err != nil {
			return Value{}, core.Type{}, err
		}
		return ptrVal(p.ptr), v.AddrOf.Type, nil

	case core.ValUnOp:
		return m.unOp(f, v.UnOp)

	case core.ValBinOp:
		return m.binOp(f, v.BinOp)
	}
	return Value{}, core.Type{}, m.eb.makeError(UbUnreachable, "unknown value kind %d", v.Kind)
}

func (m *Machine) constant(c core.Constant) Value {
	switch c.Kind {
	case core.ConstInt:
		return intVal(c.Int)
	case core.ConstBool:
		return boolVal(c.Bool)
	case core.ConstFloat:
		return Value{Kind: ValFloat, Float: c.Float}
	default:
		return ptrVal(m.fnPtrs[c.Fn])
	}
}

func (m *Machine) evalPlace(f *frame, pl *core.PlaceExpr) (place, *UbError) {
	switch pl.Kind {
	case core.PlaceLocal:
		ptr, ok := f.locals[pl.Local]
		if !ok {
			return place{}, m.eb.deadLocal(pl.Local)
		}
		return place{ptr: ptr, ty: f.fn.Locals[pl.Local]}, nil

	case core.PlaceDeref:
		v, _, err := m.evalValue(f, pl.Deref.Operand)
		if err != nil {
			return place{}, err
		}
		return place{ptr: v.Ptr, ty: pl.Deref.Type}, nil

	case core.PlaceField:
		root, err := m.evalPlace(f, pl.Field.Root)
		if err != nil {
			return place{}, err
		}
		var field core.Field
		if root.ty.Kind == core.TyTuple {
			field = root.ty.Tuple.Fields[pl.Field.Field]
		} else {
			field = root.ty.Union.Fields[pl.Field.Field]
		}
		return place{ptr: offsetPtr(root.ptr, field.Offset), ty: field.Type}, nil

	case core.PlaceIndex:
		root, err := m.evalPlace(f, pl.Index.Root)
		if err != nil {
			return place{}, err
		}
		idx, _, err := m.evalValue(f, pl.Index.Index)
		if err != nil {
			return place{}, err
		}
		arr := root.ty.Array
		if idx.Int.Neg || idx.Int.Abs >= uint64(arr.Count) {
			return place{}, m.eb.indexOutOfBounds(idx.Int, arr.Count)
		}
		stride := arr.Elem.Size()
		return place{ptr: offsetPtr(root.ptr, int(idx.Int.Abs)*stride), ty: arr.Elem}, nil

	case core.PlaceDowncast:
		root, err := m.evalPlace(f, pl.Downcast.Root)
		if err != nil {
			return place{}, err
		}
		variant, ok := root.ty.Enum.Variant(pl.Downcast.Discriminant)
		if !ok {
			return place{}, m.eb.invalidDiscriminant()
		}
		return place{ptr: root.ptr, ty: variant.Data}, nil
	}
	return place{}, m.eb.makeError(UbUnreachable, "unknown place kind %d", pl.Kind)
}

func offsetPtr(p Pointer, off int) Pointer {
	return Pointer{Addr: p.Addr + uint64(off), Prov: p.Prov}
}

func (m *Machine) unOp(f *frame, e core.UnOpExpr) (Value, core.Type, *UbError) {
	v, ty, err := m.evalValue(f, e.Operand)
	if err != nil {
		return Value{}, core.Type{}, err
	}
	switch e.Op.Kind {
	case core.UnOpInt:
		it := ty.Int
		if e.Op.Int == core.IntNeg {
			return intVal(it.Wrap(new(big.Int).Neg(v.Int.Big()))), ty, nil
		}
		return intVal(it.FromBits(^it.ToBits(v.Int))), ty, nil
	case core.UnOpBool:
		return boolVal(!v.Bool), ty, nil
	case core.UnOpFloat:
		return Value{Kind: ValFloat, Float: v.Float ^ (uint64(1) << (ty.Float*8 - 1))}, ty, nil
	case core.UnOpCast:
		to := e.Op.Cast.To
		if e.Op.Cast.Kind == core.CastBoolToInt {
			if v.Bool {
				return intVal(core.IntFromInt64(1)), core.IntTy(to), nil
			}
			return intVal(core.Int{}), core.IntTy(to), nil
		}
		return intVal(to.Wrap(v.Int.Big())), core.IntTy(to), nil
	}
	return Value{}, core.Type{}, m.eb.makeError(UbUnreachable, "unknown unary operator kind %d", e.Op.Kind)
}

func (m *Machine) binOp(f *frame, e core.BinOpExpr) (Value, core.Type, *UbError) {
	l, lty, err := m.evalValue(f, e.Left)
	if err != nil {
		return Value{}, core.Type{}, err
	}
	r, rty, err := m.evalValue(f, e.Right)
	if err != nil {
		return Value{}, core.Type{}, err
	}
	switch e.Op.Kind {
	case core.BinOpInt:
		res, err := m.intBinOp(e.Op.Int, lty.Int, l.Int, rty.Int, r.Int)
		if err != nil {
			return Value{}, core.Type{}, err
		}
		return intVal(res), lty, nil

	case core.BinOpIntRel:
		return boolVal(relHolds(e.Op.Rel, l.Int.Cmp(r.Int))), core.BoolTy(), nil

	case core.BinOpBool:
		var res bool
		switch e.Op.Bool {
		case core.BoolBitAnd:
			res = l.Bool && r.Bool
		case core.BoolBitOr:
			res = l.Bool || r.Bool
		case core.BoolBitXor, core.BoolNe:
			res = l.Bool != r.Bool
		case core.BoolEq:
			res = l.Bool == r.Bool
		}
		return boolVal(res), core.BoolTy(), nil

	case core.BinOpFloat:
		x, y := floatOf(l.Float, lty.Float), floatOf(r.Float, lty.Float)
		var res float64
		switch e.Op.Float {
		case core.FloatAdd:
			res = x + y
		case core.FloatSub:
			res = x - y
		case core.FloatMul:
			res = x * y
		case core.FloatDiv:
			res = x / y
		case core.FloatRem:
			res = math.Mod(x, y)
		}
		return Value{Kind: ValFloat, Float: floatBits(res, lty.Float)}, lty, nil

	case core.BinOpFloatRel:
		x, y := floatOf(l.Float, lty.Float), floatOf(r.Float, lty.Float)
		var res bool
		switch e.Op.Rel {
		case core.RelLt:
			res = x < y
		case core.RelLe:
			res = x <= y
		case core.RelGt:
			res = x > y
		case core.RelGe:
			res = x >= y
		case core.RelEq:
			res = x == y
		case core.RelNe:
			res = x != y
		}
		return boolVal(res), core.BoolTy(), nil

	case core.BinOpPtrOffset:
		off := core.Isize.ToBits(r.Int)
		p := Pointer{Addr: l.Ptr.Addr + off, Prov: l.Ptr.Prov}
		if e.Op.InBounds {
			wrapped := (r.Int.Neg && p.Addr > l.Ptr.Addr) || (!r.Int.Neg && p.Addr < l.Ptr.Addr)
			if wrapped || !m.inBounds(l.Ptr.Prov, l.Ptr.Addr) || !m.inBounds(l.Ptr.Prov, p.Addr) {
				return Value{}, core.Type{}, m.eb.makeError(UbDangling, "in-bounds offset by %s leaves the allocation", r.Int)
			}
		}
		return ptrVal(p), lty, nil
	}
	return Value{}, core.Type{}, m.eb.makeError(UbUnreachable, "unknown binary operator kind %d", e.Op.Kind)
}

func relHolds(op core.RelOp, cmp int) bool {
	switch op {
	case core.RelLt:
		return cmp < 0
	case core.RelLe:
		return cmp <= 0
	case core.RelGt:
		return cmp > 0
	case core.RelGe:
		return cmp >= 0
	case core.RelEq:
		return cmp == 0
	default:
		return cmp != 0
	}
}

func (m *Machine) intBinOp(op core.IntBinOp, it core.IntType, l core.Int, rt core.IntType, r core.Int) (core.Int, *UbError) {
	a, b := l.Big(), r.Big()
	exact := new(big.Int)
	checked := func(name string) (core.Int, *UbError) {
		res, ok := core.IntFromBig(exact)
		if !ok || !it.Contains(res) {
			return core.Int{}, m.eb.overflow(name)
		}
		return res, nil
	}
	switch op {
	case core.IntAdd:
		return it.Wrap(exact.Add(a, b)), nil
	case core.IntAddUnchecked:
		exact.Add(a, b)
		return checked("unchecked add")
	case core.IntSub:
		return it.Wrap(exact.Sub(a, b)), nil
	case core.IntSubUnchecked:
		exact.Sub(a, b)
		return checked("unchecked sub")
	case core.IntMul:
		return it.Wrap(exact.Mul(a, b)), nil
	case core.IntMulUnchecked:
		exact.Mul(a, b)
		return checked("unchecked mul")
	case core.IntDiv, core.IntRem:
		if r.IsZero() {
			return core.Int{}, m.eb.divByZero()
		}
		if op == core.IntDiv {
			exact.Quo(a, b)
			return checked("division")
		}
		exact.Rem(a, b)
		quo := new(big.Int).Quo(a, b)
		if res, ok := core.IntFromBig(quo); !ok || !it.Contains(res) {
			return core.Int{}, m.eb.overflow("remainder")
		}
		return checked("remainder")
	case core.IntShl, core.IntShr:
		shift := uint(rt.ToBits(r) % uint64(it.Bits()))
		bits := it.ToBits(l)
		if op == core.IntShl {
			return it.FromBits(bits << shift), nil
		}
		if it.Signed {
			signed := int64(bits << (64 - it.Bits()))
			return it.FromBits(uint64(signed >> (64 - it.Bits()) >> shift)), nil
		}
		return it.FromBits(bits >> shift), nil
	case core.IntBitAnd:
		return it.FromBits(it.ToBits(l) & it.ToBits(r)), nil
	case core.IntBitOr:
		return it.FromBits(it.ToBits(l) | it.ToBits(r)), nil
	case core.IntBitXor:
		return it.FromBits(it.ToBits(l) ^ it.ToBits(r)), nil
	}
	return core.Int{}, m.eb.makeError(UbUnreachable, "unknown integer operator %d", op)
}

func floatOf(bits uint64, size int) float64 {
	if size == 4 {
		return float64(math.Float32frombits(uint32(bits)))
	}
	return math.Float64frombits(bits)
}

func floatBits(f float64, size int) uint64 {
	if size == 4 {
		return uint64(math.Float32bits(float32(f)))
	}
	return math.Float64bits(f)
}
