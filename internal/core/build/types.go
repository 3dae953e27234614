package build

import "minimize/internal/core"

func Bool() core.Type  { return core.BoolTy() }
func U8() core.Type    { return core.IntTy(core.U8) }
func U16() core.Type   { return core.IntTy(core.U16) }
func U32() core.Type   { return core.IntTy(core.U32) }
func U64() core.Type   { return core.IntTy(core.U64) }
func I8() core.Type    { return core.IntTy(core.I8) }
func I16() core.Type   { return core.IntTy(core.I16) }
func I32() core.Type   { return core.IntTy(core.I32) }
func I64() core.Type   { return core.IntTy(core.I64) }
func Usize() core.Type { return core.IntTy(core.Usize) }
func Isize() core.Type { return core.IntTy(core.Isize) }

// ArrayOf is [elem; count].
func ArrayOf(elem core.Type, count int) core.Type {
	return core.ArrayTy(elem, count)
}

// TupleOf lays the field types out in order, each at its alignment.
func TupleOf(types ...core.Type) core.Type {
	var fields []core.Field
	size, align := 0, 1
	for _, ty := range types {
		a := ty.Align()
		size = (size + a - 1) / a * a
		fields = append(fields, core.Field{Offset: size, Type: ty})
		size += ty.Size()
		align = max(align, a)
	}
	size = (size + align - 1) / align * align
	return core.TupleTy(fields, size, align)
}

// RefTo is a shared reference to values of ty.
func RefTo(ty core.Type) core.Type {
	return core.PtrTy(core.PtrRef, pointee(ty))
}

// RefMutTo is a mutable reference to values of ty.
func RefMutTo(ty core.Type) core.Type {
	return core.PtrTy(core.PtrRefMut, pointee(ty))
}

// BoxOf is an owning heap pointer to values of ty.
func BoxOf(ty core.Type) core.Type {
	return core.PtrTy(core.PtrBox, pointee(ty))
}

// RawPtr is an untyped raw pointer.
func RawPtr() core.Type {
	return core.PtrTy(core.PtrRaw, core.PointeeInfo{})
}

// FnPtrType is the type of function pointers.
func FnPtrType() core.Type {
	return core.PtrTy(core.PtrFn, core.PointeeInfo{})
}

func pointee(ty core.Type) core.PointeeInfo {
	return core.PointeeInfo{Size: ty.Size(), Align: ty.Align(), Inhabited: ty.Inhabited()}
}
