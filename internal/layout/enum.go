package layout

import (
	"math"

	"minimize/internal/types"
)

func (e *LayoutEngine) enumLayout(id types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	info, ok := e.Types.AdtInfo(id)
	if !ok {
		return zeroLayout(), &LayoutError{Kind: LayoutErrInvalidType, Type: id}
	}
	n := len(info.Variants)
	if n == 0 {
		return TypeLayout{Size: 0, Align: 1, Inhabited: false}, nil
	}

	vls := make([]VariantLayout, n)
	niches := make([]*Niche, n)
	for i := range info.Variants {
		fields, _ := e.Types.FieldTypes(id, i)
		vl, niche, err := e.placeFields(fields, 0, state)
		if err != nil {
			return zeroLayout(), err
		}
		vls[i] = vl
		niches[i] = niche
	}

	if n == 1 {
		v := vls[0]
		return TypeLayout{
			Size:      roundUp(v.Size, v.Align),
			Align:     v.Align,
			Inhabited: v.Inhabited,
			Variants:  vls,
			Tag:       TagStrategy{Encoding: TagNone},
			Niche:     niches[0],
		}, nil
	}

	if l, ok := nicheLayout(vls, niches); ok {
		return l, nil
	}
	return e.directLayout(id, info, state)
}

// nicheLayout applies when exactly one variant carries data and that data
// has enough invalid bit patterns to name every other variant.
func nicheLayout(vls []VariantLayout, niches []*Niche) (TypeLayout, bool) {
	dataful := -1
	for i, v := range vls {
		if v.Size == 0 {
			continue
		}
		if dataful >= 0 {
			return TypeLayout{}, false
		}
		dataful = i
	}
	if dataful < 0 || niches[dataful] == nil {
		return TypeLayout{}, false
	}
	niche := *niches[dataful]

	start, end := -1, -1
	for i := range vls {
		if i == dataful {
			continue
		}
		if start < 0 {
			start = i
		}
		end = i
	}
	count := uint64(end - start + 1)
	if count > niche.Available() {
		return TypeLayout{}, false
	}

	mask := bitMask(niche.Int.Bits())
	nicheStart := (niche.ValidEnd + 1) & mask
	align := 1
	inhabited := false
	for _, v := range vls {
		align = max(align, v.Align)
		inhabited = inhabited || v.Inhabited
	}
	return TypeLayout{
		Size:      roundUp(vls[dataful].Size, align),
		Align:     align,
		Inhabited: inhabited,
		Variants:  vls,
		Tag: TagStrategy{
			Encoding:           TagNiche,
			Offset:             niche.Offset,
			Int:                niche.Int,
			UntaggedVariant:    dataful,
			NicheVariantsStart: start,
			NicheVariantsEnd:   end,
			NicheStart:         nicheStart,
			NicheValidStart:    niche.ValidStart,
			NicheValidEnd:      niche.ValidEnd,
		},
		Niche: &Niche{
			Offset:     niche.Offset,
			Int:        niche.Int,
			ValidStart: niche.ValidStart,
			ValidEnd:   (nicheStart + count - 1) & mask,
		},
	}, true
}

// directLayout stores the discriminant in the smallest integer that fits all
// declared discriminants, at offset 0, with variant fields after it.
func (e *LayoutEngine) directLayout(id types.TypeID, info *types.AdtInfo, state *layoutState) (TypeLayout, *LayoutError) {
	lo, hi := int64(math.MaxInt64), int64(math.MinInt64)
	for _, v := range info.Variants {
		lo = min(lo, v.Discr)
		hi = max(hi, v.Discr)
	}
	tag := DiscriminantInt(lo, hi)

	vls := make([]VariantLayout, len(info.Variants))
	size := tag.Size
	align := tag.Size
	inhabited := false
	for i := range info.Variants {
		fields, _ := e.Types.FieldTypes(id, i)
		vl, _, err := e.placeFields(fields, tag.Size, state)
		if err != nil {
			return zeroLayout(), err
		}
		vls[i] = vl
		size = max(size, vl.Size)
		align = max(align, vl.Align)
		inhabited = inhabited || vl.Inhabited
	}
	mask := bitMask(tag.Bits())
	out := TypeLayout{
		Size:      roundUp(size, align),
		Align:     align,
		Inhabited: inhabited,
		Variants:  vls,
		Tag:       TagStrategy{Encoding: TagDirect, Offset: 0, Int: tag},
	}
	tagNiche := Niche{Offset: 0, Int: tag, ValidStart: uint64(lo) & mask, ValidEnd: uint64(hi) & mask}
	if tagNiche.Available() > 0 {
		out.Niche = &tagNiche
	}
	return out, nil
}

// DiscriminantInt picks the smallest integer able to hold every value in
// [lo, hi]; unsigned unless a discriminant is negative.
func DiscriminantInt(lo, hi int64) IntSpec {
	if lo >= 0 {
		switch {
		case hi <= math.MaxUint8:
			return IntSpec{Size: 1}
		case hi <= math.MaxUint16:
			return IntSpec{Size: 2}
		case hi <= math.MaxUint32:
			return IntSpec{Size: 4}
		default:
			return IntSpec{Size: 8}
		}
	}
	switch {
	case lo >= math.MinInt8 && hi <= math.MaxInt8:
		return IntSpec{Size: 1, Signed: true}
	case lo >= math.MinInt16 && hi <= math.MaxInt16:
		return IntSpec{Size: 2, Signed: true}
	case lo >= math.MinInt32 && hi <= math.MaxInt32:
		return IntSpec{Size: 4, Signed: true}
	default:
		return IntSpec{Size: 8, Signed: true}
	}
}
