package types

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Invalid TypeID
	Unit    TypeID
	Bool    TypeID
	Char    TypeID
	Never   TypeID
	I8      TypeID
	I16     TypeID
	I32     TypeID
	I64     TypeID
	Isize   TypeID
	U8      TypeID
	U16     TypeID
	U32     TypeID
	U64     TypeID
	Usize   TypeID
	F32     TypeID
	F64     TypeID
}

// Interner provides stable TypeIDs. Structural types are deduplicated by
// descriptor; structs, unions and enums are nominal and always get a fresh ID.
type Interner struct {
	types      []Type
	index      map[Type]TypeID
	tuples     []TupleInfo
	tupleIndex map[string]TypeID
	adts       []AdtInfo
	builtins   Builtins
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index:      make(map[Type]TypeID, 64),
		tupleIndex: make(map[string]TypeID, 16),
	}
	in.tuples = append(in.tuples, TupleInfo{}) // reserve 0 as invalid sentinel
	in.adts = append(in.adts, AdtInfo{})
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.seedBuiltins()
	return in
}

func (in *Interner) seedBuiltins() {
	in.builtins.Unit = in.Intern(Type{Kind: KindUnit})
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.Char = in.Intern(Type{Kind: KindChar})
	in.builtins.Never = in.Intern(Type{Kind: KindNever})
	in.builtins.I8 = in.Intern(MakeInt(Width8))
	in.builtins.I16 = in.Intern(MakeInt(Width16))
	in.builtins.I32 = in.Intern(MakeInt(Width32))
	in.builtins.I64 = in.Intern(MakeInt(Width64))
	in.builtins.Isize = in.Intern(MakeInt(WidthPtr))
	in.builtins.U8 = in.Intern(MakeUint(Width8))
	in.builtins.U16 = in.Intern(MakeUint(Width16))
	in.builtins.U32 = in.Intern(MakeUint(Width32))
	in.builtins.U64 = in.Intern(MakeUint(Width64))
	in.builtins.Usize = in.Intern(MakeUint(WidthPtr))
	in.builtins.F32 = in.Intern(MakeFloat(Width32))
	in.builtins.F64 = in.Intern(MakeFloat(Width64))
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided structural descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	if id, ok := in.index[t]; ok {
		return id
	}
	return in.internRaw(t)
}

// internRaw adds the descriptor to the storage without consulting the map.
func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	switch t.Kind {
	case KindStruct, KindUnion, KindEnum, KindTuple:
	default:
		in.index[t] = id
	}
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if in == nil || id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// Len reports the number of interned types including the invalid sentinel.
func (in *Interner) Len() int {
	return len(in.types)
}

// Table is the serializable form of an Interner.
type Table struct {
	Types  []Type      `msgpack:"types"`
	Tuples []TupleInfo `msgpack:"tuples"`
	Adts   []AdtInfo   `msgpack:"adts"`
}

// Table exports the interner contents.
func (in *Interner) Table() Table {
	return Table{
		Types:  append([]Type(nil), in.types...),
		Tuples: append([]TupleInfo(nil), in.tuples...),
		Adts:   append([]AdtInfo(nil), in.adts...),
	}
}

// FromTable rebuilds an interner from an exported table. IDs are preserved.
func FromTable(t Table) (*Interner, error) {
	if len(t.Types) == 0 || t.Types[0].Kind != KindInvalid {
		return nil, fmt.Errorf("type table: missing invalid sentinel")
	}
	in := &Interner{
		types:      append([]Type(nil), t.Types...),
		index:      make(map[Type]TypeID, len(t.Types)),
		tuples:     append([]TupleInfo(nil), t.Tuples...),
		tupleIndex: make(map[string]TypeID, len(t.Tuples)),
		adts:       append([]AdtInfo(nil), t.Adts...),
	}
	if len(in.tuples) == 0 {
		in.tuples = append(in.tuples, TupleInfo{})
	}
	if len(in.adts) == 0 {
		in.adts = append(in.adts, AdtInfo{})
	}
	for i, tt := range in.types {
		id, err := safecast.Conv[uint32](i)
		if err != nil {
			return nil, fmt.Errorf("type table: %w", err)
		}
		switch tt.Kind {
		case KindStruct, KindUnion, KindEnum:
			if int(tt.Payload) >= len(in.adts) {
				return nil, fmt.Errorf("type table: type#%d refers to missing adt slot %d", i, tt.Payload)
			}
		case KindTuple:
			if int(tt.Payload) >= len(in.tuples) {
				return nil, fmt.Errorf("type table: type#%d refers to missing tuple slot %d", i, tt.Payload)
			}
			in.tupleIndex[tupleKey(in.tuples[tt.Payload].Elems)] = TypeID(id)
		case KindInvalid:
		default:
			if _, dup := in.index[tt]; !dup {
				in.index[tt] = TypeID(id)
			}
		}
	}
	in.seedBuiltins()
	return in, nil
}

// Display renders a type for diagnostics.
func (in *Interner) Display(id TypeID) string {
	var sb strings.Builder
	in.display(&sb, id, 0)
	return sb.String()
}

func (in *Interner) display(sb *strings.Builder, id TypeID, depth int) {
	tt, ok := in.Lookup(id)
	if !ok {
		fmt.Fprintf(sb, "type#%d", id)
		return
	}
	if depth > 8 {
		sb.WriteString("...")
		return
	}
	switch tt.Kind {
	case KindUnit:
		sb.WriteString("()")
	case KindBool, KindChar, KindStr:
		sb.WriteString(tt.Kind.String())
	case KindNever:
		sb.WriteString("!")
	case KindInt, KindUint, KindFloat:
		prefix := map[Kind]string{KindInt: "i", KindUint: "u", KindFloat: "f"}[tt.Kind]
		if tt.Width == WidthPtr {
			sb.WriteString(prefix + "size")
		} else {
			fmt.Fprintf(sb, "%s%d", prefix, tt.Width)
		}
	case KindRef:
		sb.WriteString("&")
		if tt.Mutable {
			sb.WriteString("mut ")
		}
		in.display(sb, tt.Elem, depth+1)
	case KindPtr:
		if tt.Mutable {
			sb.WriteString("*mut ")
		} else {
			sb.WriteString("*const ")
		}
		in.display(sb, tt.Elem, depth+1)
	case KindBox:
		sb.WriteString("Box<")
		in.display(sb, tt.Elem, depth+1)
		sb.WriteString(">")
	case KindSlice:
		sb.WriteString("[")
		in.display(sb, tt.Elem, depth+1)
		sb.WriteString("]")
	case KindArray:
		sb.WriteString("[")
		in.display(sb, tt.Elem, depth+1)
		fmt.Fprintf(sb, "; %d]", tt.Count)
	case KindTuple:
		sb.WriteString("(")
		if info, ok := in.TupleInfo(id); ok {
			for i, e := range info.Elems {
				if i > 0 {
					sb.WriteString(", ")
				}
				in.display(sb, e, depth+1)
			}
		}
		sb.WriteString(")")
	case KindStruct, KindUnion, KindEnum:
		if info := in.adtInfo(id); info != nil {
			sb.WriteString(info.Name)
		}
	case KindFnDef:
		fmt.Fprintf(sb, "fn#%d", tt.Payload)
	case KindDyn:
		sb.WriteString("dyn")
	default:
		sb.WriteString(tt.Kind.String())
	}
}
