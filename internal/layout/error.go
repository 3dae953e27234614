package layout

import (
	"fmt"
	"strings"

	"minimize/internal/types"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrRecursiveUnsized indicates a recursive type with no indirection.
	LayoutErrRecursiveUnsized LayoutErrorKind = iota + 1
	// LayoutErrUnsized indicates a dynamically sized type (str, slice, dyn).
	LayoutErrUnsized
	// LayoutErrOverflow indicates a size that does not fit the target.
	LayoutErrOverflow
	// LayoutErrInvalidType indicates a TypeID unknown to the interner.
	LayoutErrInvalidType
	// LayoutErrOverlap indicates overlapping fields where the policy forbids it.
	LayoutErrOverlap
	// LayoutErrOutOfBounds indicates a field span outside [0, size).
	LayoutErrOutOfBounds
)

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind   LayoutErrorKind
	Type   types.TypeID
	Cycle  []types.TypeID // for LayoutErrRecursiveUnsized
	Field  int            // for LayoutErrOverlap and LayoutErrOutOfBounds
	Detail string
	Err    error // for LayoutErrOverflow
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrRecursiveUnsized:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive type has infinite size (type#%d)", e.Type)
		}
		parts := make([]string, 0, len(e.Cycle))
		for _, id := range e.Cycle {
			parts = append(parts, fmt.Sprintf("type#%d", id))
		}
		return fmt.Sprintf("recursive type has infinite size (cycle: %s)", strings.Join(parts, " -> "))
	case LayoutErrUnsized:
		return fmt.Sprintf("type#%d is dynamically sized", e.Type)
	case LayoutErrOverflow:
		if e.Err != nil {
			return fmt.Sprintf("size overflow (type#%d): %v", e.Type, e.Err)
		}
		return fmt.Sprintf("size overflow (type#%d)", e.Type)
	case LayoutErrInvalidType:
		return fmt.Sprintf("unknown type#%d", e.Type)
	case LayoutErrOverlap:
		return fmt.Sprintf("field %d overlaps a previous field: %s", e.Field, e.Detail)
	case LayoutErrOutOfBounds:
		return fmt.Sprintf("field %d lies outside the type: %s", e.Field, e.Detail)
	default:
		return fmt.Sprintf("layout error kind=%d type#%d", e.Kind, e.Type)
	}
}

func (e *LayoutError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NicheErrorKind enumerates reasons a discriminant encoding is rejected.
type NicheErrorKind uint8

const (
	// NicheErrTooManyVariants: the niche cannot represent all niche variants.
	NicheErrTooManyVariants NicheErrorKind = iota + 1
	// NicheErrStartInValidRange: the niche start collides with valid values.
	NicheErrStartInValidRange
	// NicheErrBadVariantRange: the niche variant range is empty or out of range.
	NicheErrBadVariantRange
	// NicheErrTagTooNarrow: a discriminant does not fit the tag integer.
	NicheErrTagTooNarrow
	// NicheErrDuplicateTag: two variants map to the same tag value.
	NicheErrDuplicateTag
)

// NicheError reports a discriminant encoding that cannot injectively
// represent the variants of a sum type.
type NicheError struct {
	Kind   NicheErrorKind
	Detail string
}

func (e *NicheError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case NicheErrTooManyVariants:
		return "niche too small for variants: " + e.Detail
	case NicheErrStartInValidRange:
		return "niche start inside valid range: " + e.Detail
	case NicheErrBadVariantRange:
		return "bad niche variant range: " + e.Detail
	case NicheErrTagTooNarrow:
		return "discriminant does not fit tag: " + e.Detail
	case NicheErrDuplicateTag:
		return "duplicate tag value: " + e.Detail
	default:
		return "bad discriminant encoding: " + e.Detail
	}
}
