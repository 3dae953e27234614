package layout

import (
	"fmt"
	"slices"
)

// TagWrite is the integer stored into a value to mark its variant. Raw holds
// the bit pattern, truncated to Int.
type TagWrite struct {
	Offset int
	Int    IntSpec
	Raw    uint64
}

// TagRange maps the raw values [Lo, Hi] of the tag integer to a variant.
type TagRange struct {
	Lo, Hi  uint64
	Variant int
}

// TagMap is the derived per-variant encoding of an enum and its inverse.
type TagMap struct {
	Strategy TagStrategy
	// Writes[v] is nil when variant v is identified without storing a tag.
	Writes []*TagWrite

	byRaw    map[uint64]int
	fallback int // -1 when unmatched raw values are invalid
}

// EncodeTags derives, for every variant, the tag write that identifies it and
// the reverse mapping from an observed raw tag to a variant index. discrs
// holds the declared discriminant of each variant in index order.
func EncodeTags(st TagStrategy, discrs []int64) (*TagMap, error) {
	m := &TagMap{
		Strategy: st,
		Writes:   make([]*TagWrite, len(discrs)),
		byRaw:    make(map[uint64]int, len(discrs)),
		fallback: -1,
	}
	switch st.Encoding {
	case TagNone:
		if len(discrs) > 1 {
			return nil, &NicheError{Kind: NicheErrBadVariantRange, Detail: fmt.Sprintf("%d variants without a tag", len(discrs))}
		}
		if len(discrs) == 1 {
			m.fallback = 0
		}
		return m, nil
	case TagDirect:
		return m, m.encodeDirect(discrs)
	case TagNiche:
		return m, m.encodeNiche(len(discrs))
	default:
		return nil, &NicheError{Kind: NicheErrBadVariantRange, Detail: "unknown tag encoding"}
	}
}

func (m *TagMap) encodeDirect(discrs []int64) error {
	spec := m.Strategy.Int
	if spec.Size <= 0 || spec.Size > 8 {
		return &NicheError{Kind: NicheErrTagTooNarrow, Detail: fmt.Sprintf("tag size %d", spec.Size)}
	}
	mask := bitMask(spec.Bits())
	for v, d := range discrs {
		if !fitsInt(d, spec) {
			return &NicheError{Kind: NicheErrTagTooNarrow, Detail: fmt.Sprintf("variant %d discriminant %d in %d-byte tag", v, d, spec.Size)}
		}
		raw := uint64(d) & mask
		if prev, dup := m.byRaw[raw]; dup {
			return &NicheError{Kind: NicheErrDuplicateTag, Detail: fmt.Sprintf("variants %d and %d both use %d", prev, v, d)}
		}
		m.byRaw[raw] = v
		m.Writes[v] = &TagWrite{Offset: m.Strategy.Offset, Int: spec, Raw: raw}
	}
	return nil
}

func (m *TagMap) encodeNiche(n int) error {
	st := m.Strategy
	if st.NicheVariantsStart < 0 || st.NicheVariantsEnd >= n || st.NicheVariantsStart > st.NicheVariantsEnd {
		return &NicheError{Kind: NicheErrBadVariantRange, Detail: fmt.Sprintf("[%d, %d] of %d variants", st.NicheVariantsStart, st.NicheVariantsEnd, n)}
	}
	if st.UntaggedVariant < 0 || st.UntaggedVariant >= n {
		return &NicheError{Kind: NicheErrBadVariantRange, Detail: fmt.Sprintf("untagged variant %d of %d", st.UntaggedVariant, n)}
	}
	for v := range n {
		if v != st.UntaggedVariant && (v < st.NicheVariantsStart || v > st.NicheVariantsEnd) {
			return &NicheError{Kind: NicheErrBadVariantRange, Detail: fmt.Sprintf("variant %d is neither untagged nor in the niche range", v)}
		}
	}

	valid := Niche{Int: st.Int, ValidStart: st.NicheValidStart, ValidEnd: st.NicheValidEnd}
	mask := bitMask(st.Int.Bits())
	count := uint64(st.NicheVariantsEnd - st.NicheVariantsStart + 1)
	gap := (st.NicheStart - (valid.ValidEnd + 1)) & mask
	if valid.Available() < count || gap > valid.Available()-count {
		if valid.Contains(st.NicheStart) {
			return &NicheError{Kind: NicheErrStartInValidRange, Detail: fmt.Sprintf("start %d, valid [%d, %d]", st.NicheStart, valid.ValidStart, valid.ValidEnd)}
		}
		return &NicheError{Kind: NicheErrTooManyVariants, Detail: fmt.Sprintf("%d niche variants, %d spare values", count, valid.Available())}
	}

	m.fallback = st.UntaggedVariant
	for v := st.NicheVariantsStart; v <= st.NicheVariantsEnd; v++ {
		if v == st.UntaggedVariant {
			continue
		}
		raw := (st.NicheStart + uint64(v-st.NicheVariantsStart)) & mask
		m.byRaw[raw] = v
		m.Writes[v] = &TagWrite{Offset: st.Offset, Int: st.Int, Raw: raw}
	}
	return nil
}

// Decode maps an observed raw tag to its variant. For niche encodings this is
// variant = niche_variants.start + (raw - niche_start) when that difference
// falls within the niche variant range, and the untagged variant otherwise.
func (m *TagMap) Decode(raw uint64) (int, bool) {
	if m.Strategy.Encoding == TagNone {
		return m.fallback, m.fallback >= 0
	}
	raw &= bitMask(m.Strategy.Int.Bits())
	if v, ok := m.byRaw[raw]; ok {
		return v, true
	}
	if m.fallback >= 0 {
		return m.fallback, true
	}
	return -1, false
}

// Ranges lists the raw tag values that name a variant, sorted by value.
func (m *TagMap) Ranges() []TagRange {
	out := make([]TagRange, 0, len(m.byRaw))
	for raw, v := range m.byRaw {
		out = append(out, TagRange{Lo: raw, Hi: raw, Variant: v})
	}
	slices.SortFunc(out, func(a, b TagRange) int {
		switch {
		case a.Lo < b.Lo:
			return -1
		case a.Lo > b.Lo:
			return 1
		}
		return 0
	})
	return out
}

// Fallback returns the variant chosen for raw values not listed by Ranges.
func (m *TagMap) Fallback() (int, bool) {
	return m.fallback, m.fallback >= 0
}

func fitsInt(v int64, spec IntSpec) bool {
	bits := spec.Bits()
	if spec.Signed {
		if bits >= 64 {
			return true
		}
		lim := int64(1) << (bits - 1)
		return v >= -lim && v < lim
	}
	if v < 0 {
		return false
	}
	return uint64(v) <= bitMask(bits)
}
