package lower

import (
	"fmt"

	"minimize/internal/core"
	"minimize/internal/core/build"
	"minimize/internal/mir"
	"minimize/internal/types"
)

// placeTy is the source type of a place. After a downcast the type is still
// the enum and variant says which variant's fields are visible.
type placeTy struct {
	ty      types.TypeID
	variant int
}

func (f *fnLowerer) place(p mir.Place) (core.PlaceExpr, placeTy, error) {
	in := f.pl.crate.Types
	out := build.Local(core.LocalName(p.Local))
	cur := placeTy{ty: f.body.Locals[p.Local].Type, variant: -1}
	for _, proj := range p.Proj {
		tt, ok := in.Lookup(cur.ty)
		if !ok {
			return core.PlaceExpr{}, placeTy{}, fmt.Errorf("unknown type#%d", cur.ty)
		}
		switch proj.Kind {
		case mir.PlaceProjDeref:
			if !tt.IsPointer() {
				return core.PlaceExpr{}, placeTy{}, fmt.Errorf("dereference of %s", in.Display(cur.ty))
			}
			pointee, err := f.pl.types.Translate(tt.Elem)
			if err != nil {
				return core.PlaceExpr{}, placeTy{}, err
			}
			out = build.Deref(build.Load(out), pointee)
			cur = placeTy{ty: tt.Elem, variant: -1}

		case mir.PlaceProjField:
			if tt.Kind == types.KindEnum && cur.variant < 0 {
				return core.PlaceExpr{}, placeTy{}, fmt.Errorf("field of enum %s without a downcast", in.Display(cur.ty))
			}
			fields, ok := in.FieldTypes(cur.ty, max(cur.variant, 0))
			if !ok || proj.FieldIdx < 0 || proj.FieldIdx >= len(fields) {
				return core.PlaceExpr{}, placeTy{}, fmt.Errorf("field %d of %s does not exist", proj.FieldIdx, in.Display(cur.ty))
			}
			out = build.Field(out, proj.FieldIdx)
			cur = placeTy{ty: fields[proj.FieldIdx], variant: -1}

		case mir.PlaceProjIndex:
			if tt.Kind != types.KindArray {
				return core.PlaceExpr{}, placeTy{}, fmt.Errorf("index into %s", in.Display(cur.ty))
			}
			out = build.Index(out, build.Load(build.Local(core.LocalName(proj.IndexLocal))))
			cur = placeTy{ty: tt.Elem, variant: -1}

		case mir.PlaceProjConstantIndex:
			if tt.Kind != types.KindArray {
				return core.PlaceExpr{}, placeTy{}, fmt.Errorf("index into %s", in.Display(cur.ty))
			}
			idx := proj.Offset
			if proj.FromEnd {
				if idx == 0 || idx > tt.Count {
					return core.PlaceExpr{}, placeTy{}, fmt.Errorf("index %d from the end of %s", idx, in.Display(cur.ty))
				}
				idx = tt.Count - idx
			}
			out = build.Index(out, build.ConstUint(core.Usize, idx))
			cur = placeTy{ty: tt.Elem, variant: -1}

		case mir.PlaceProjDowncast:
			info, ok := in.AdtInfo(cur.ty)
			if tt.Kind != types.KindEnum || !ok {
				return core.PlaceExpr{}, placeTy{}, fmt.Errorf("downcast of %s", in.Display(cur.ty))
			}
			if proj.Variant < 0 || proj.Variant >= len(info.Variants) {
				return core.PlaceExpr{}, placeTy{}, fmt.Errorf("variant %d of %s does not exist", proj.Variant, in.Display(cur.ty))
			}
			out = build.Downcast(out, info.Variants[proj.Variant].Discr)
			cur = placeTy{ty: cur.ty, variant: proj.Variant}

		default:
			return core.PlaceExpr{}, placeTy{}, fmt.Errorf("unknown projection kind %d", proj.Kind)
		}
	}
	return out, cur, nil
}

// operand translates op and returns its source type.
func (f *fnLowerer) operand(op mir.Operand) (core.ValueExpr, types.TypeID, error) {
	switch op.Kind {
	case mir.OperandCopy, mir.OperandMove:
		p, pt, err := f.place(op.Place)
		if err != nil {
			return core.ValueExpr{}, 0, err
		}
		if pt.variant >= 0 {
			return core.ValueExpr{}, 0, fmt.Errorf("read of a downcast place")
		}
		if op.Kind == mir.OperandMove {
			return build.Move(p), pt.ty, nil
		}
		return build.Load(p), pt.ty, nil
	case mir.OperandConst:
		v, err := f.pl.constant(&op.Const, map[mir.ConstID]bool{})
		return v, op.Const.Type, err
	}
	return core.ValueExpr{}, 0, fmt.Errorf("unknown operand kind %d", op.Kind)
}
