package types

import (
	"fmt"

	"fortio.org/safecast"
)

// AdtKind distinguishes nominal aggregate flavours.
type AdtKind uint8

const (
	AdtStruct AdtKind = iota + 1
	AdtUnion
	AdtEnum
)

// FieldInfo stores one named field of a struct, union or enum variant.
type FieldInfo struct {
	Name string `msgpack:"name"`
	Type TypeID `msgpack:"type"`
}

// VariantInfo stores one enum variant. Structs and unions have exactly one.
type VariantInfo struct {
	Name   string      `msgpack:"name"`
	Discr  int64       `msgpack:"discr"`
	Fields []FieldInfo `msgpack:"fields"`
}

// AdtInfo stores metadata for a struct, union or enum type.
type AdtInfo struct {
	Name     string        `msgpack:"name"`
	Kind     AdtKind       `msgpack:"kind"`
	Variants []VariantInfo `msgpack:"variants"`
}

// TupleInfo stores the element types for a tuple type.
type TupleInfo struct {
	Elems []TypeID `msgpack:"elems"`
}

// RegisterStruct allocates a nominal struct slot. Fields are attached with
// SetFields so that self-referential types can refer to their own ID.
func (in *Interner) RegisterStruct(name string) TypeID {
	slot := in.appendAdt(AdtInfo{Name: name, Kind: AdtStruct, Variants: []VariantInfo{{Name: name}}})
	return in.internRaw(Type{Kind: KindStruct, Payload: slot})
}

// RegisterUnion allocates a nominal union slot.
func (in *Interner) RegisterUnion(name string) TypeID {
	slot := in.appendAdt(AdtInfo{Name: name, Kind: AdtUnion, Variants: []VariantInfo{{Name: name}}})
	return in.internRaw(Type{Kind: KindUnion, Payload: slot})
}

// RegisterEnum allocates a nominal enum slot. Variants are attached with
// SetVariants.
func (in *Interner) RegisterEnum(name string) TypeID {
	slot := in.appendAdt(AdtInfo{Name: name, Kind: AdtEnum})
	return in.internRaw(Type{Kind: KindEnum, Payload: slot})
}

// SetFields stores the fields of a struct or union.
func (in *Interner) SetFields(id TypeID, fields []FieldInfo) {
	info := in.adtInfo(id)
	if info == nil || info.Kind == AdtEnum {
		return
	}
	info.Variants[0].Fields = append([]FieldInfo(nil), fields...)
}

// SetVariants stores the variants of an enum.
func (in *Interner) SetVariants(id TypeID, variants []VariantInfo) {
	info := in.adtInfo(id)
	if info == nil || info.Kind != AdtEnum {
		return
	}
	out := make([]VariantInfo, len(variants))
	for i, v := range variants {
		out[i] = VariantInfo{Name: v.Name, Discr: v.Discr, Fields: append([]FieldInfo(nil), v.Fields...)}
	}
	info.Variants = out
}

// AdtInfo returns metadata for the provided struct, union or enum TypeID.
func (in *Interner) AdtInfo(id TypeID) (*AdtInfo, bool) {
	info := in.adtInfo(id)
	return info, info != nil
}

// FieldTypes returns the field types of variant v of an aggregate. Tuples and
// structs only have variant 0.
func (in *Interner) FieldTypes(id TypeID, v int) ([]TypeID, bool) {
	tt, ok := in.Lookup(id)
	if !ok {
		return nil, false
	}
	switch tt.Kind {
	case KindUnit:
		return nil, v == 0
	case KindTuple:
		info, ok := in.TupleInfo(id)
		if !ok || v != 0 {
			return nil, false
		}
		return info.Elems, true
	case KindStruct, KindUnion, KindEnum:
		info := in.adtInfo(id)
		if info == nil || v < 0 || v >= len(info.Variants) {
			return nil, false
		}
		out := make([]TypeID, len(info.Variants[v].Fields))
		for i, f := range info.Variants[v].Fields {
			out[i] = f.Type
		}
		return out, true
	default:
		return nil, false
	}
}

// RegisterTuple creates or finds an existing tuple type with the given elements.
func (in *Interner) RegisterTuple(elems []TypeID) TypeID {
	if len(elems) == 0 {
		return in.builtins.Unit
	}
	key := tupleKey(elems)
	if id, ok := in.tupleIndex[key]; ok {
		return id
	}
	in.tuples = append(in.tuples, TupleInfo{Elems: append([]TypeID(nil), elems...)})
	slot, err := safecast.Conv[uint32](len(in.tuples) - 1)
	if err != nil {
		panic(fmt.Errorf("tuple info overflow: %w", err))
	}
	id := in.internRaw(Type{Kind: KindTuple, Payload: slot})
	in.tupleIndex[key] = id
	return id
}

// TupleInfo returns the element types for a tuple TypeID.
func (in *Interner) TupleInfo(id TypeID) (*TupleInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindTuple {
		return nil, false
	}
	if int(tt.Payload) >= len(in.tuples) {
		return nil, false
	}
	return &in.tuples[tt.Payload], true
}

func (in *Interner) adtInfo(id TypeID) *AdtInfo {
	tt, ok := in.Lookup(id)
	if !ok {
		return nil
	}
	switch tt.Kind {
	case KindStruct, KindUnion, KindEnum:
	default:
		return nil
	}
	if int(tt.Payload) >= len(in.adts) {
		return nil
	}
	return &in.adts[tt.Payload]
}

func (in *Interner) appendAdt(info AdtInfo) uint32 {
	in.adts = append(in.adts, info)
	slot, err := safecast.Conv[uint32](len(in.adts) - 1)
	if err != nil {
		panic(fmt.Errorf("adt info overflow: %w", err))
	}
	return slot
}

func tupleKey(elems []TypeID) string {
	buf := make([]byte, 0, len(elems)*4)
	for _, e := range elems {
		buf = append(buf, byte(e), byte(e>>8), byte(e>>16), byte(e>>24))
	}
	return string(buf)
}
