package lower

import (
	"errors"
	"fmt"
	"sync"

	"fortio.org/safecast"

	"minimize/internal/core"
	"minimize/internal/layout"
	"minimize/internal/types"
)

// TypeCache translates source types to core types. Each source type is
// translated once per session; the cache is safe for concurrent use.
type TypeCache struct {
	in     *types.Interner
	engine *layout.LayoutEngine

	mu   sync.Mutex
	byID map[types.TypeID]core.Type
}

func NewTypeCache(in *types.Interner, engine *layout.LayoutEngine) *TypeCache {
	return &TypeCache{
		in:     in,
		engine: engine,
		byID:   make(map[types.TypeID]core.Type, 64),
	}
}

// Translate returns the core type of id.
func (c *TypeCache) Translate(id types.TypeID) (core.Type, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.translate(id)
}

// Layout returns the host layout of id.
func (c *TypeCache) Layout(id types.TypeID) (layout.TypeLayout, error) {
	return c.engine.LayoutOf(id)
}

func (c *TypeCache) translate(id types.TypeID) (core.Type, error) {
	if ty, ok := c.byID[id]; ok {
		return ty, nil
	}
	tt, ok := c.in.Lookup(id)
	if !ok {
		return core.Type{}, fmt.Errorf("unknown type#%d", id)
	}
	switch tt.Kind {
	case types.KindNever:
		return core.Type{}, unsupported("the never type")
	case types.KindStr, types.KindSlice, types.KindDyn:
		return core.Type{}, unsupported("unsized type %s", c.in.Display(id))
	case types.KindInt, types.KindUint:
		if tt.Width == types.Width128 {
			return core.Type{}, unsupported("128-bit integer %s", c.in.Display(id))
		}
	case types.KindFloat:
		if tt.Width != types.Width32 && tt.Width != types.Width64 {
			return core.Type{}, unsupported("float type %s", c.in.Display(id))
		}
	}

	l, err := c.engine.LayoutOf(id)
	if err != nil {
		return core.Type{}, c.layoutError("layout of", id, err)
	}
	ty, err := c.build(id, tt, l)
	if err != nil {
		return core.Type{}, err
	}
	c.byID[id] = ty
	return ty, nil
}

func (c *TypeCache) build(id types.TypeID, tt types.Type, l layout.TypeLayout) (core.Type, error) {
	switch tt.Kind {
	case types.KindUnit, types.KindFnDef:
		return core.UnitTy(), nil
	case types.KindBool:
		return core.BoolTy(), nil
	case types.KindChar:
		return core.IntTy(core.U32), nil
	case types.KindInt, types.KindUint:
		return core.IntTy(core.IntType{Signed: tt.Kind == types.KindInt, Size: l.Size}), nil
	case types.KindFloat:
		return core.FloatTy(l.Size), nil
	case types.KindRef:
		kind := core.PtrRef
		if tt.Mutable {
			kind = core.PtrRefMut
		}
		return c.pointer(id, kind, tt.Elem, l)
	case types.KindBox:
		return c.pointer(id, core.PtrBox, tt.Elem, l)
	case types.KindPtr:
		return c.pointer(id, core.PtrRaw, tt.Elem, l)
	case types.KindTuple, types.KindStruct:
		fields, spans, err := c.fields(id, 0, l.FieldOffsets)
		if err != nil {
			return core.Type{}, err
		}
		if _, err := layout.CalcChunks(l.Size, spans, layout.ChunkDisjoint); err != nil {
			return core.Type{}, fmt.Errorf("%s: %w", c.in.Display(id), err)
		}
		return core.TupleTy(fields, l.Size, l.Align), nil
	case types.KindArray:
		elem, err := c.translate(tt.Elem)
		if err != nil {
			return core.Type{}, err
		}
		count, err := safecast.Conv[int](tt.Count)
		if err != nil {
			return core.Type{}, fmt.Errorf("%s: %w", c.in.Display(id), err)
		}
		return core.ArrayTy(elem, count), nil
	case types.KindUnion:
		fields, spans, err := c.fields(id, 0, l.FieldOffsets)
		if err != nil {
			return core.Type{}, err
		}
		chunks, err := layout.CalcChunks(l.Size, spans, layout.ChunkOverlap)
		if err != nil {
			return core.Type{}, fmt.Errorf("%s: %w", c.in.Display(id), err)
		}
		out := make([]core.Chunk, len(chunks))
		for i, ch := range chunks {
			out[i] = core.Chunk{Offset: ch.Offset, Size: ch.Size}
		}
		return core.Type{Kind: core.TyUnion, Union: &core.UnionType{
			Fields: fields,
			Chunks: out,
			Size:   l.Size,
			Align:  l.Align,
		}}, nil
	case types.KindEnum:
		return c.enum(id, l)
	}
	return core.Type{}, unsupported("type %s", c.in.Display(id))
}

// pointer keeps only the pointee's layout, so recursive types terminate.
func (c *TypeCache) pointer(id types.TypeID, kind core.PtrKind, elem types.TypeID, l layout.TypeLayout) (core.Type, error) {
	if l.Size != core.PtrSize {
		return core.Type{}, unsupported("wide pointer %s", c.in.Display(id))
	}
	if kind == core.PtrRaw {
		return core.PtrTy(kind, core.PointeeInfo{}), nil
	}
	pl, err := c.engine.LayoutOf(elem)
	if err != nil {
		return core.Type{}, c.layoutError("pointee of", id, err)
	}
	return core.PtrTy(kind, core.PointeeInfo{Size: pl.Size, Align: pl.Align, Inhabited: pl.Inhabited}), nil
}

// layoutError reports a dynamically sized type as a translation limit and
// wraps every other layout failure.
func (c *TypeCache) layoutError(what string, id types.TypeID, err error) error {
	var le *layout.LayoutError
	if errors.As(err, &le) && le.Kind == layout.LayoutErrUnsized {
		return unsupported("unsized type %s", c.in.Display(id))
	}
	return fmt.Errorf("%s %s: %w", what, c.in.Display(id), err)
}

// fields translates the fields of variant v placed at offsets.
func (c *TypeCache) fields(id types.TypeID, v int, offsets []int) ([]core.Field, []layout.FieldSpan, error) {
	fieldTys, ok := c.in.FieldTypes(id, v)
	if !ok || len(fieldTys) != len(offsets) {
		return nil, nil, fmt.Errorf("%s: variant %d has %d field offsets for %d fields", c.in.Display(id), v, len(offsets), len(fieldTys))
	}
	fields := make([]core.Field, len(fieldTys))
	spans := make([]layout.FieldSpan, len(fieldTys))
	for i, fid := range fieldTys {
		ft, err := c.translate(fid)
		if err != nil {
			return nil, nil, err
		}
		fields[i] = core.Field{Offset: offsets[i], Type: ft}
		spans[i] = layout.FieldSpan{Offset: offsets[i], Size: ft.Size()}
	}
	return fields, spans, nil
}

func coreInt(spec layout.IntSpec) core.IntType {
	return core.IntType{Signed: spec.Signed, Size: spec.Size}
}
