package layout

import (
	"minimize/internal/types"
)

// IntSpec is the integer shape of a scalar stored in memory.
type IntSpec struct {
	Size   int
	Signed bool
}

// Bits returns the width in bits.
func (s IntSpec) Bits() uint {
	return uint(s.Size) * 8
}

// Niche is a scalar inside a type whose valid values do not cover every bit
// pattern. Valid values form the wrapping range [ValidStart, ValidEnd] over
// the raw (unsigned) bits of the scalar.
type Niche struct {
	Offset     int
	Int        IntSpec
	ValidStart uint64
	ValidEnd   uint64
}

// Available returns how many bit patterns lie outside the valid range.
func (n Niche) Available() uint64 {
	mask := bitMask(n.Int.Bits())
	return (n.ValidStart - n.ValidEnd - 1) & mask
}

// Contains reports whether raw lies in the valid range.
func (n Niche) Contains(raw uint64) bool {
	mask := bitMask(n.Int.Bits())
	raw &= mask
	return ((raw - n.ValidStart) & mask) <= ((n.ValidEnd - n.ValidStart) & mask)
}

func bitMask(bits uint) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bits) - 1
}

// TagEncoding describes how the host compiler encodes an enum's variant.
type TagEncoding uint8

const (
	// TagNone: single-variant or uninhabited enum, nothing stored.
	TagNone TagEncoding = iota
	// TagDirect: an explicit tag integer holds the discriminant.
	TagDirect
	// TagNiche: invalid values of a field in the untagged variant
	// identify the other variants.
	TagNiche
)

func (e TagEncoding) String() string {
	switch e {
	case TagNone:
		return "none"
	case TagDirect:
		return "direct"
	case TagNiche:
		return "niche"
	default:
		return "unknown"
	}
}

// TagStrategy is the discriminant strategy selected for an enum.
type TagStrategy struct {
	Encoding TagEncoding
	Offset   int
	Int      IntSpec

	// TagNiche only.
	UntaggedVariant    int
	NicheVariantsStart int
	NicheVariantsEnd   int // inclusive
	NicheStart         uint64
	// NicheValid is the valid range of the niche field in the untagged variant.
	NicheValidStart uint64
	NicheValidEnd   uint64
}

// VariantLayout is the placement of one enum variant's fields.
type VariantLayout struct {
	FieldOffsets []int
	Size         int
	Align        int
	Inhabited    bool
}

// TypeLayout is the layout of a type as reported by the host compiler.
type TypeLayout struct {
	Size      int
	Align     int
	Inhabited bool

	// Struct, tuple, union and array (element offsets are not listed).
	FieldOffsets []int

	// Enum only.
	Variants []VariantLayout
	Tag      TagStrategy

	// Largest niche of the type, if any.
	Niche *Niche
}

// LayoutEngine computes memory layout for types.
type LayoutEngine struct {
	Target Target
	Types  *types.Interner

	cache *cache
}

// New creates a new LayoutEngine for the specified target.
func New(target Target, typesIn *types.Interner) *LayoutEngine {
	return &LayoutEngine{
		Target: target,
		Types:  typesIn,
		cache:  newCache(),
	}
}

type layoutState struct {
	stack []types.TypeID
	index map[types.TypeID]int
}

func newLayoutState() *layoutState {
	return &layoutState{
		index: make(map[types.TypeID]int, 32),
	}
}

// LayoutOf computes and caches the layout of a type. It is safe for
// concurrent use.
func (e *LayoutEngine) LayoutOf(t types.TypeID) (TypeLayout, error) {
	if e == nil {
		return TypeLayout{Size: 0, Align: 1, Inhabited: true}, nil
	}
	if e.cache == nil {
		e.cache = newCache()
	}
	layout, err := e.layoutOf(t, newLayoutState())
	if err != nil {
		return layout, err
	}
	return layout, nil
}

func (e *LayoutEngine) layoutOf(t types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	if cached, ok := e.cache.get(t); ok {
		return cached.Layout, cached.Err
	}

	if idx, ok := state.index[t]; ok {
		cycle := append([]types.TypeID(nil), state.stack[idx:]...)
		cycle = append(cycle, t)
		err := &LayoutError{
			Kind:  LayoutErrRecursiveUnsized,
			Type:  t,
			Cycle: cycle,
		}
		return zeroLayout(), err
	}

	state.index[t] = len(state.stack)
	state.stack = append(state.stack, t)
	layout, err := e.computeLayout(t, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, t)

	// Errors found while a cycle is still open are only cached at the root
	// of the cycle so that every member reports the same cycle.
	if err == nil || len(state.stack) == 0 {
		e.cache.put(t, &cacheEntry{Layout: layout, Err: err})
	}
	return layout, err
}

// SizeOf returns the size of a type in bytes.
func (e *LayoutEngine) SizeOf(t types.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Size, err
}

func zeroLayout() TypeLayout {
	return TypeLayout{Size: 0, Align: 1, Inhabited: true}
}
