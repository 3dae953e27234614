package lower

import (
	"fmt"

	"minimize/internal/core"
	"minimize/internal/core/build"
	"minimize/internal/mir"
)

// constant translates c. visiting holds the constant items being expanded,
// so that items referring to themselves are rejected instead of looping.
func (l *programLowerer) constant(c *mir.Const, visiting map[mir.ConstID]bool) (core.ValueExpr, error) {
	ty, err := l.types.Translate(c.Type)
	if err != nil {
		return core.ValueExpr{}, err
	}
	switch c.Kind {
	case mir.ConstScalar:
		return scalar(ty, c.Bits)

	case mir.ConstZeroSized, mir.ConstFn:
		return zeroSized(ty)

	case mir.ConstAggregate:
		elems := make([]core.ValueExpr, len(c.Fields))
		for i := range c.Fields {
			if elems[i], err = l.constant(&c.Fields[i], visiting); err != nil {
				return core.ValueExpr{}, err
			}
		}
		return aggregate(ty, c.Variant, elems)

	case mir.ConstUnevaluated:
		if visiting[c.Item] {
			return core.ValueExpr{}, fmt.Errorf("constant item %s refers to itself", l.crate.Consts[c.Item].Name)
		}
		item := &l.crate.Consts[c.Item]
		if item.Value.Type != c.Type {
			return core.ValueExpr{}, fmt.Errorf("constant item %s has type %s, used as %s",
				item.Name, l.crate.Types.Display(item.Value.Type), l.crate.Types.Display(c.Type))
		}
		visiting[c.Item] = true
		defer delete(visiting, c.Item)
		return l.constant(&item.Value, visiting)
	}
	return core.ValueExpr{}, fmt.Errorf("unknown constant kind %d", c.Kind)
}

func scalar(ty core.Type, bits uint64) (core.ValueExpr, error) {
	switch ty.Kind {
	case core.TyInt:
		v := ty.Int.FromBits(bits)
		if ty.Int.ToBits(v) != bits {
			return core.ValueExpr{}, fmt.Errorf("constant bits %#x do not fit %s", bits, ty.Int)
		}
		return build.IntConst(ty.Int, v), nil
	case core.TyBool:
		if bits > 1 {
			return core.ValueExpr{}, fmt.Errorf("boolean constant with bits %#x", bits)
		}
		return build.ConstBool(bits == 1), nil
	case core.TyFloat:
		if ty.Float == 4 && bits>>32 != 0 {
			return core.ValueExpr{}, fmt.Errorf("f32 constant with bits %#x", bits)
		}
		return build.ConstFloat(ty.Float, bits), nil
	}
	return core.ValueExpr{}, unsupported("scalar constant of type %s", ty)
}

// zeroSized builds the only value of a zero-sized type.
func zeroSized(ty core.Type) (core.ValueExpr, error) {
	if ty.Size() != 0 {
		return core.ValueExpr{}, fmt.Errorf("zero-sized constant of %d-byte type %s", ty.Size(), ty)
	}
	switch ty.Kind {
	case core.TyTuple:
		elems := make([]core.ValueExpr, len(ty.Tuple.Fields))
		for i, f := range ty.Tuple.Fields {
			v, err := zeroSized(f.Type)
			if err != nil {
				return core.ValueExpr{}, err
			}
			elems[i] = v
		}
		return build.Tuple(ty, elems...), nil
	case core.TyArray:
		elems := make([]core.ValueExpr, ty.Array.Count)
		for i := range elems {
			v, err := zeroSized(ty.Array.Elem)
			if err != nil {
				return core.ValueExpr{}, err
			}
			elems[i] = v
		}
		return build.Tuple(ty, elems...), nil
	case core.TyEnum:
		if len(ty.Enum.Variants) != 1 {
			return core.ValueExpr{}, fmt.Errorf("zero-sized constant of enum with %d variants", len(ty.Enum.Variants))
		}
		return zeroSizedVariant(ty, 0)
	}
	return core.ValueExpr{}, fmt.Errorf("zero-sized constant of type %s", ty)
}

func zeroSizedVariant(ty core.Type, v int) (core.ValueExpr, error) {
	data, err := zeroSized(ty.Enum.Variants[v].Data)
	if err != nil {
		return core.ValueExpr{}, err
	}
	d, _ := ty.Enum.Variants[v].Discriminant.Int64()
	return build.Variant(ty, d, data), nil
}

// aggregate builds a value of ty from its fields. For enums variant picks
// the variant, for unions the active field.
func aggregate(ty core.Type, variant int, elems []core.ValueExpr) (core.ValueExpr, error) {
	switch ty.Kind {
	case core.TyTuple, core.TyArray:
		return build.Tuple(ty, elems...), nil
	case core.TyEnum:
		if variant < 0 || variant >= len(ty.Enum.Variants) {
			return core.ValueExpr{}, fmt.Errorf("variant %d of %s does not exist", variant, ty)
		}
		v := ty.Enum.Variants[variant]
		d, _ := v.Discriminant.Int64()
		return build.Variant(ty, d, build.Tuple(v.Data, elems...)), nil
	case core.TyUnion:
		if len(elems) != 1 {
			return core.ValueExpr{}, fmt.Errorf("union built from %d values", len(elems))
		}
		return build.Union(ty, variant, elems[0]), nil
	}
	return core.ValueExpr{}, fmt.Errorf("aggregate of type %s", ty)
}
