package mir

import "minimize/internal/types"

type FuncID int32
type BlockID int32
type LocalID int32
type ConstID int32

const (
	NoFuncID  FuncID  = -1
	NoBlockID BlockID = -1
	NoLocalID LocalID = -1
)

// ReturnLocal holds a function's result. Arguments follow it.
const ReturnLocal LocalID = 0

type Local struct {
	Type types.TypeID
	Name string `msgpack:",omitempty"`
}

type PlaceProjKind uint8

const (
	// PlaceProjDeref follows a reference, box or raw pointer.
	PlaceProjDeref PlaceProjKind = iota
	// PlaceProjField selects a field of a tuple, struct, union or downcast enum.
	PlaceProjField
	// PlaceProjIndex selects an array element by the value of a usize local.
	PlaceProjIndex
	// PlaceProjConstantIndex selects an array element at a fixed position.
	PlaceProjConstantIndex
	// PlaceProjDowncast views an enum as one of its variants.
	PlaceProjDowncast
)

type PlaceProj struct {
	Kind PlaceProjKind

	FieldIdx   int     `msgpack:",omitempty"`
	IndexLocal LocalID `msgpack:",omitempty"`
	Offset     uint64  `msgpack:",omitempty"`
	FromEnd    bool    `msgpack:",omitempty"`
	Variant    int     `msgpack:",omitempty"`
}

// Place is a local followed by projections applied left to right.
type Place struct {
	Local LocalID
	Proj  []PlaceProj `msgpack:",omitempty"`
}

func (p Place) with(proj PlaceProj) Place {
	out := Place{Local: p.Local, Proj: make([]PlaceProj, 0, len(p.Proj)+1)}
	out.Proj = append(out.Proj, p.Proj...)
	out.Proj = append(out.Proj, proj)
	return out
}

func (p Place) Deref() Place {
	return p.with(PlaceProj{Kind: PlaceProjDeref})
}

func (p Place) Field(i int) Place {
	return p.with(PlaceProj{Kind: PlaceProjField, FieldIdx: i})
}

func (p Place) Index(l LocalID) Place {
	return p.with(PlaceProj{Kind: PlaceProjIndex, IndexLocal: l})
}

func (p Place) ConstantIndex(offset uint64, fromEnd bool) Place {
	return p.with(PlaceProj{Kind: PlaceProjConstantIndex, Offset: offset, FromEnd: fromEnd})
}

func (p Place) Downcast(variant int) Place {
	return p.with(PlaceProj{Kind: PlaceProjDowncast, Variant: variant})
}

// LocalPlace is the place naming l itself.
func LocalPlace(l LocalID) Place {
	return Place{Local: l}
}
