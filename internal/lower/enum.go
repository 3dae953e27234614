package lower

import (
	"fmt"

	"minimize/internal/core"
	"minimize/internal/layout"
	"minimize/internal/types"
)

// enum spells out the host compiler's tag strategy: each variant gets the
// tag writes that identify it, and the discriminator reads the tag back.
func (c *TypeCache) enum(id types.TypeID, l layout.TypeLayout) (core.Type, error) {
	info, ok := c.in.AdtInfo(id)
	if !ok {
		return core.Type{}, fmt.Errorf("enum type#%d has no definition", id)
	}
	discrs := make([]int64, len(info.Variants))
	var lo, hi int64
	for i, v := range info.Variants {
		discrs[i] = v.Discr
		if i == 0 || v.Discr < lo {
			lo = v.Discr
		}
		if i == 0 || v.Discr > hi {
			hi = v.Discr
		}
	}
	tags, err := layout.EncodeTags(l.Tag, discrs)
	if err != nil {
		return core.Type{}, fmt.Errorf("enum %s: %w", info.Name, err)
	}
	if len(l.Variants) != len(info.Variants) {
		return core.Type{}, fmt.Errorf("enum %s: layout has %d variants, type has %d", info.Name, len(l.Variants), len(info.Variants))
	}

	variants := make([]core.Variant, len(info.Variants))
	for v := range info.Variants {
		fields, spans, err := c.fields(id, v, l.Variants[v].FieldOffsets)
		if err != nil {
			return core.Type{}, err
		}
		var tagger []core.TagWrite
		if w := tags.Writes[v]; w != nil {
			it := coreInt(w.Int)
			tagger = []core.TagWrite{{Offset: w.Offset, Int: it, Value: it.FromBits(w.Raw)}}
			spans = append(spans, layout.FieldSpan{Offset: w.Offset, Size: w.Int.Size})
		}
		if _, err := layout.CalcChunks(l.Size, spans, layout.ChunkDisjoint); err != nil {
			return core.Type{}, fmt.Errorf("enum %s variant %s: %w", info.Name, info.Variants[v].Name, err)
		}
		variants[v] = core.Variant{
			Discriminant: core.IntFromInt64(discrs[v]),
			Data:         core.TupleTy(fields, l.Size, l.Align),
			Tagger:       tagger,
		}
	}

	return core.Type{Kind: core.TyEnum, Enum: &core.EnumType{
		Variants:         variants,
		Discriminator:    discriminator(tags, discrs),
		DiscriminantType: coreInt(layout.DiscriminantInt(lo, hi)),
		Size:             l.Size,
		Align:            l.Align,
	}}, nil
}

// discriminator turns the tag map into a one-level decision tree: every
// listed raw value names its variant, everything else falls back to the
// untagged variant or is invalid.
func discriminator(tags *layout.TagMap, discrs []int64) core.Discriminator {
	known := func(v int) core.Discriminator {
		return core.Discriminator{Kind: core.DiscKnown, Known: core.IntFromInt64(discrs[v])}
	}
	fallback := core.Discriminator{Kind: core.DiscInvalid}
	if v, ok := tags.Fallback(); ok {
		fallback = known(v)
	}
	if tags.Strategy.Encoding == layout.TagNone {
		return fallback
	}

	it := coreInt(tags.Strategy.Int)
	d := core.Discriminator{Kind: core.DiscBranch, Offset: tags.Strategy.Offset, Int: it}
	for _, r := range tags.Ranges() {
		d.Cases = append(d.Cases, core.DiscriminatorCase{
			Lo:    it.FromBits(r.Lo),
			Hi:    it.FromBits(r.Hi),
			Child: known(r.Variant),
		})
	}
	d.Fallback = &fallback
	return d
}
