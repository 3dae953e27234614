package layout

import (
	"fortio.org/safecast"

	"minimize/internal/types"
)

func (e *LayoutEngine) computeLayout(id types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	typesIn := e.Types
	if typesIn == nil {
		return zeroLayout(), &LayoutError{Kind: LayoutErrInvalidType, Type: id}
	}
	tt, ok := typesIn.Lookup(id)
	if !ok {
		return zeroLayout(), &LayoutError{Kind: LayoutErrInvalidType, Type: id}
	}

	switch tt.Kind {
	case types.KindUnit, types.KindFnDef:
		return zeroLayout(), nil

	case types.KindNever:
		return TypeLayout{Size: 0, Align: 1, Inhabited: false}, nil

	case types.KindBool:
		l := scalarLayoutBytes(1)
		l.Niche = &Niche{Int: IntSpec{Size: 1}, ValidStart: 0, ValidEnd: 1}
		return l, nil

	case types.KindChar:
		l := scalarLayoutBytes(4)
		l.Niche = &Niche{Int: IntSpec{Size: 4}, ValidStart: 0, ValidEnd: 0x10FFFF}
		return l, nil

	case types.KindInt, types.KindUint, types.KindFloat:
		if tt.Width == types.WidthPtr {
			return e.ptrLayout(), nil
		}
		return scalarLayoutBytes(int(tt.Width) / 8), nil

	case types.KindRef, types.KindBox:
		l, err := e.pointerLayout(tt.Elem)
		if err != nil {
			return l, err
		}
		if l.Size == e.ptrLayout().Size {
			l.Niche = &Niche{Int: IntSpec{Size: l.Size}, ValidStart: 1, ValidEnd: bitMask(IntSpec{Size: l.Size}.Bits())}
		}
		return l, nil

	case types.KindPtr:
		return e.pointerLayout(tt.Elem)

	case types.KindStr, types.KindSlice, types.KindDyn:
		return zeroLayout(), &LayoutError{Kind: LayoutErrUnsized, Type: id}

	case types.KindArray:
		return e.arrayLayout(id, tt.Elem, tt.Count, state)

	case types.KindTuple, types.KindStruct:
		fields, _ := typesIn.FieldTypes(id, 0)
		return e.structLayout(fields, state)

	case types.KindUnion:
		fields, _ := typesIn.FieldTypes(id, 0)
		return e.unionLayout(fields, state)

	case types.KindEnum:
		return e.enumLayout(id, state)

	default:
		return zeroLayout(), &LayoutError{Kind: LayoutErrInvalidType, Type: id}
	}
}

func (e *LayoutEngine) ptrLayout() TypeLayout {
	ptrSize := e.Target.PtrSize
	ptrAlign := e.Target.PtrAlign
	if ptrSize <= 0 {
		ptrSize = 8
	}
	if ptrAlign <= 0 {
		ptrAlign = ptrSize
	}
	return TypeLayout{Size: ptrSize, Align: ptrAlign, Inhabited: true}
}

// pointerLayout is thin for sized pointees and a (data, metadata) pair for
// dynamically sized ones. The pointee itself is never laid out here, which
// is what lets recursive types through pointers terminate.
func (e *LayoutEngine) pointerLayout(elem types.TypeID) (TypeLayout, *LayoutError) {
	l := e.ptrLayout()
	if e.unsizedTail(elem) {
		l.Size *= 2
	}
	return l, nil
}

// unsizedTail reports whether t is str, a slice, a trait object, or a struct
// or tuple whose last field is one of those, following the type graph only.
func (e *LayoutEngine) unsizedTail(t types.TypeID) bool {
	seen := make(map[types.TypeID]bool)
	for !seen[t] {
		seen[t] = true
		tt, ok := e.Types.Lookup(t)
		if !ok {
			return false
		}
		switch tt.Kind {
		case types.KindStr, types.KindSlice, types.KindDyn:
			return true
		case types.KindStruct, types.KindTuple:
			fields, ok := e.Types.FieldTypes(t, 0)
			if !ok || len(fields) == 0 {
				return false
			}
			t = fields[len(fields)-1]
		default:
			return false
		}
	}
	return false
}

func scalarLayoutBytes(size int) TypeLayout {
	if size <= 0 {
		return zeroLayout()
	}
	return TypeLayout{Size: size, Align: size, Inhabited: true}
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

func (e *LayoutEngine) arrayLayout(id, elem types.TypeID, count uint64, state *layoutState) (TypeLayout, *LayoutError) {
	el, err := e.layoutOf(elem, state)
	if err != nil {
		return zeroLayout(), err
	}
	n, convErr := safecast.Conv[int](count)
	if convErr != nil {
		return zeroLayout(), &LayoutError{Kind: LayoutErrOverflow, Type: id, Err: convErr}
	}
	stride := roundUp(el.Size, el.Align)
	if n > 0 && stride > 0 && stride > maxObjectSize/n {
		return zeroLayout(), &LayoutError{Kind: LayoutErrOverflow, Type: id}
	}
	out := TypeLayout{
		Size:      stride * n,
		Align:     el.Align,
		Inhabited: el.Inhabited || n == 0,
	}
	if n > 0 && el.Niche != nil {
		nc := *el.Niche
		out.Niche = &nc
	}
	return out, nil
}

// maxObjectSize bounds type sizes to what the reference machine can address.
const maxObjectSize = 1 << 47

// structLayout places fields in declaration order.
func (e *LayoutEngine) structLayout(fields []types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	out, niche, err := e.placeFields(fields, 0, state)
	if err != nil {
		return zeroLayout(), err
	}
	return TypeLayout{
		Size:         roundUp(out.Size, out.Align),
		Align:        out.Align,
		Inhabited:    out.Inhabited,
		FieldOffsets: out.FieldOffsets,
		Niche:        niche,
	}, nil
}

// placeFields lays fields out sequentially starting at start. The returned
// size is the unrounded end of the last field; the niche is the field niche
// with the most spare values.
func (e *LayoutEngine) placeFields(fields []types.TypeID, start int, state *layoutState) (VariantLayout, *Niche, *LayoutError) {
	offsets := make([]int, len(fields))
	size := start
	align := 1
	inhabited := true
	var best *Niche
	for i, f := range fields {
		fl, err := e.layoutOf(f, state)
		if err != nil {
			return VariantLayout{}, nil, err
		}
		size = roundUp(size, fl.Align)
		offsets[i] = size
		if fl.Niche != nil {
			cand := *fl.Niche
			cand.Offset += size
			if best == nil || cand.Available() > best.Available() {
				best = &cand
			}
		}
		size += fl.Size
		if size > maxObjectSize {
			return VariantLayout{}, nil, &LayoutError{Kind: LayoutErrOverflow, Type: f}
		}
		align = max(align, fl.Align)
		inhabited = inhabited && fl.Inhabited
	}
	return VariantLayout{FieldOffsets: offsets, Size: size, Align: align, Inhabited: inhabited}, best, nil
}

func (e *LayoutEngine) unionLayout(fields []types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	size := 0
	align := 1
	offsets := make([]int, len(fields))
	for _, f := range fields {
		fl, err := e.layoutOf(f, state)
		if err != nil {
			return zeroLayout(), err
		}
		size = max(size, fl.Size)
		align = max(align, fl.Align)
	}
	return TypeLayout{
		Size:         roundUp(size, align),
		Align:        align,
		Inhabited:    true,
		FieldOffsets: offsets,
	}, nil
}
