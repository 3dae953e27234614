package machine

import (
	"encoding/binary"
	"fmt"
	"strings"

	"minimize/internal/core"
)

// ValueKind enumerates the shapes of abstract values.
type ValueKind uint8

const (
	ValInt ValueKind = iota
	ValBool
	ValFloat
	ValPtr
	ValTuple   // tuples and arrays
	ValUnion   // raw chunk bytes
	ValVariant // enum values
)

// Value is an abstract value: what a typed load produces and a typed store
// consumes. Exactly one payload field is meaningful, selected by Kind.
type Value struct {
	Kind         ValueKind
	Int          core.Int
	Bool         bool
	Float        uint64 // bit pattern
	Ptr          Pointer
	Elems        []Value
	Chunks       [][]AbsByte
	Discriminant core.Int
	Data         *Value
}

func intVal(i core.Int) Value { return Value{Kind: ValInt, Int: i} }
func boolVal(b bool) Value    { return Value{Kind: ValBool, Bool: b} }
func ptrVal(p Pointer) Value  { return Value{Kind: ValPtr, Ptr: p} }

func (v Value) String() string {
	switch v.Kind {
	case ValInt:
		return v.Int.String()
	case ValBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case ValFloat:
		return fmt.Sprintf("float(%#x)", v.Float)
	case ValPtr:
		return fmt.Sprintf("ptr(%#x)", v.Ptr.Addr)
	case ValTuple:
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case ValUnion:
		return "union"
	case ValVariant:
		return fmt.Sprintf("variant(%s, %s)", v.Discriminant, v.Data)
	}
	return "?"
}

// encode lays v out as ty.Size() bytes. Bytes not covered by any field,
// chunk or tag stay uninitialized.
func encode(ty core.Type, v Value) []AbsByte {
	out := make([]AbsByte, ty.Size())
	encodeInto(out, ty, v)
	return out
}

func encodeInto(out []AbsByte, ty core.Type, v Value) {
	switch ty.Kind {
	case core.TyInt:
		putUint(out, ty.Int.ToBits(v.Int), ty.Int.Size)
	case core.TyBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		out[0] = AbsByte{Init: true, Val: b}
	case core.TyFloat:
		putUint(out, v.Float, ty.Float)
	case core.TyPtr:
		putUint(out, v.Ptr.Addr, core.PtrSize)
		for i := range core.PtrSize {
			out[i].Prov = v.Ptr.Prov
		}
	case core.TyTuple:
		for i, f := range ty.Tuple.Fields {
			encodeInto(out[f.Offset:f.Offset+f.Type.Size()], f.Type, v.Elems[i])
		}
	case core.TyArray:
		stride := ty.Array.Elem.Size()
		for i := range ty.Array.Count {
			encodeInto(out[i*stride:(i+1)*stride], ty.Array.Elem, v.Elems[i])
		}
	case core.TyUnion:
		for i, c := range ty.Union.Chunks {
			copy(out[c.Offset:c.Offset+c.Size], v.Chunks[i])
		}
	case core.TyEnum:
		variant, ok := ty.Enum.Variant(v.Discriminant)
		if !ok {
			return
		}
		encodeInto(out, variant.Data, *v.Data)
		writeTags(out, variant.Tagger)
	}
}

func writeTags(out []AbsByte, tagger []core.TagWrite) {
	for _, tw := range tagger {
		putUint(out[tw.Offset:], tw.Int.ToBits(tw.Value), tw.Int.Size)
	}
}

func putUint(out []AbsByte, raw uint64, size int) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], raw)
	for i := range size {
		out[i] = AbsByte{Init: true, Val: buf[i]}
	}
}

// readUint reads a little-endian integer; ok is false if any byte is
// uninitialized.
func readUint(in []AbsByte, size int) (uint64, bool) {
	var buf [8]byte
	for i := range size {
		if !in[i].Init {
			return 0, false
		}
		buf[i] = in[i].Val
	}
	return binary.LittleEndian.Uint64(buf[:]), true
}

// decode reads a value of type ty; ok is false when the bytes are not a
// valid value of the type.
func decode(ty core.Type, in []AbsByte) (Value, bool) {
	switch ty.Kind {
	case core.TyInt:
		raw, ok := readUint(in, ty.Int.Size)
		if !ok {
			return Value{}, false
		}
		return intVal(ty.Int.FromBits(raw)), true

	case core.TyBool:
		if !in[0].Init || in[0].Val > 1 {
			return Value{}, false
		}
		return boolVal(in[0].Val == 1), true

	case core.TyFloat:
		raw, ok := readUint(in, ty.Float)
		if !ok {
			return Value{}, false
		}
		return Value{Kind: ValFloat, Float: raw}, true

	case core.TyPtr:
		addr, ok := readUint(in, core.PtrSize)
		if !ok {
			return Value{}, false
		}
		prov := in[0].Prov
		for i := 1; i < core.PtrSize; i++ {
			if in[i].Prov != prov {
				prov = 0
				break
			}
		}
		if ty.Ptr.Kind.Safe() {
			if addr == 0 || addr%uint64(ty.Ptr.Pointee.Align) != 0 {
				return Value{}, false
			}
		}
		return ptrVal(Pointer{Addr: addr, Prov: prov}), true

	case core.TyTuple:
		elems := make([]Value, len(ty.Tuple.Fields))
		for i, f := range ty.Tuple.Fields {
			v, ok := decode(f.Type, in[f.Offset:f.Offset+f.Type.Size()])
			if !ok {
				return Value{}, false
			}
			elems[i] = v
		}
		return Value{Kind: ValTuple, Elems: elems}, true

	case core.TyArray:
		stride := ty.Array.Elem.Size()
		elems := make([]Value, ty.Array.Count)
		for i := range elems {
			v, ok := decode(ty.Array.Elem, in[i*stride:(i+1)*stride])
			if !ok {
				return Value{}, false
			}
			elems[i] = v
		}
		return Value{Kind: ValTuple, Elems: elems}, true

	case core.TyUnion:
		chunks := make([][]AbsByte, len(ty.Union.Chunks))
		for i, c := range ty.Union.Chunks {
			chunks[i] = append([]AbsByte(nil), in[c.Offset:c.Offset+c.Size]...)
		}
		return Value{Kind: ValUnion, Chunks: chunks}, true

	case core.TyEnum:
		d, ok := discriminate(&ty.Enum.Discriminator, in)
		if !ok {
			return Value{}, false
		}
		variant, ok := ty.Enum.Variant(d)
		if !ok {
			return Value{}, false
		}
		data, ok := decode(variant.Data, in)
		if !ok {
			return Value{}, false
		}
		return Value{Kind: ValVariant, Discriminant: d, Data: &data}, true
	}
	return Value{}, false
}

// discriminate walks the discriminator tree over the bytes of an enum.
func discriminate(d *core.Discriminator, in []AbsByte) (core.Int, bool) {
	for {
		switch d.Kind {
		case core.DiscKnown:
			return d.Known, true
		case core.DiscInvalid:
			return core.Int{}, false
		case core.DiscBranch:
			raw, ok := readUint(in[d.Offset:], d.Int.Size)
			if !ok {
				return core.Int{}, false
			}
			v := d.Int.FromBits(raw)
			next := d.Fallback
			for i := range d.Cases {
				c := &d.Cases[i]
				if c.Lo.Cmp(v) <= 0 && v.Cmp(c.Hi) <= 0 {
					next = &c.Child
					break
				}
			}
			if next == nil {
				return core.Int{}, false
			}
			d = next
		default:
			return core.Int{}, false
		}
	}
}
