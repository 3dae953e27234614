package layout_test

import (
	"errors"
	"testing"

	"minimize/internal/layout"
	"minimize/internal/types"
)

func TestEncodeTagsDirectIsIdentity(t *testing.T) {
	st := layout.TagStrategy{Encoding: layout.TagDirect, Int: layout.IntSpec{Size: 1, Signed: true}}
	discrs := []int64{-1, 0, 5}
	m, err := layout.EncodeTags(st, discrs)
	if err != nil {
		t.Fatalf("EncodeTags: %v", err)
	}
	wantRaw := []uint64{0xFF, 0, 5}
	for v := range discrs {
		w := m.Writes[v]
		if w == nil || w.Raw != wantRaw[v] {
			t.Fatalf("variant %d write = %+v, want raw %d", v, w, wantRaw[v])
		}
		if got, ok := m.Decode(w.Raw); !ok || got != v {
			t.Fatalf("Decode(%d) = %d,%v want %d", w.Raw, got, ok, v)
		}
	}
	if _, ok := m.Decode(7); ok {
		t.Fatal("undeclared tag must not decode")
	}
	if _, ok := m.Fallback(); ok {
		t.Fatal("direct tags have no fallback")
	}
}

func TestEncodeTagsNicheFollowsNicheRule(t *testing.T) {
	// enum E { A, B(bool), C, D }: B untagged, niche variants A..=D start at 2.
	st := layout.TagStrategy{
		Encoding:           layout.TagNiche,
		Offset:             0,
		Int:                layout.IntSpec{Size: 1},
		UntaggedVariant:    1,
		NicheVariantsStart: 0,
		NicheVariantsEnd:   3,
		NicheStart:         2,
		NicheValidStart:    0,
		NicheValidEnd:      1,
	}
	m, err := layout.EncodeTags(st, []int64{0, 1, 2, 3})
	if err != nil {
		t.Fatalf("EncodeTags: %v", err)
	}
	if m.Writes[1] != nil {
		t.Fatal("untagged variant must not write a tag")
	}
	tests := []struct {
		raw  uint64
		want int
	}{
		{0, 1}, // valid bool: untagged
		{1, 1},
		{2, 0},
		{3, 1}, // slot of the untagged variant inside the niche range
		{4, 2},
		{5, 3},
		{200, 1},
	}
	for _, tt := range tests {
		if got, ok := m.Decode(tt.raw); !ok || got != tt.want {
			t.Errorf("Decode(%d) = %d, want %d", tt.raw, got, tt.want)
		}
	}
	for v, w := range m.Writes {
		if w == nil {
			continue
		}
		if got, _ := m.Decode(w.Raw); got != v {
			t.Errorf("variant %d: decode(encode) = %d", v, got)
		}
	}
}

func TestEncodeTagsRejectsTooSmallNiche(t *testing.T) {
	// &T has one spare value (null); two niche variants cannot fit.
	st := layout.TagStrategy{
		Encoding:           layout.TagNiche,
		Int:                layout.IntSpec{Size: 8},
		UntaggedVariant:    0,
		NicheVariantsStart: 1,
		NicheVariantsEnd:   2,
		NicheStart:         0,
		NicheValidStart:    1,
		NicheValidEnd:      ^uint64(0),
	}
	_, err := layout.EncodeTags(st, []int64{0, 1, 2})
	var nerr *layout.NicheError
	if !errors.As(err, &nerr) || nerr.Kind != layout.NicheErrTooManyVariants {
		t.Fatalf("expected too-many-variants, got %v", err)
	}

	st.NicheVariantsEnd = 1
	st.NicheStart = 5
	_, err = layout.EncodeTags(st, []int64{0, 1})
	if !errors.As(err, &nerr) || nerr.Kind != layout.NicheErrStartInValidRange {
		t.Fatalf("expected start-in-valid-range, got %v", err)
	}
}

func TestEncodeTagsRejectsNarrowTag(t *testing.T) {
	st := layout.TagStrategy{Encoding: layout.TagDirect, Int: layout.IntSpec{Size: 1}}
	_, err := layout.EncodeTags(st, []int64{0, 256})
	var nerr *layout.NicheError
	if !errors.As(err, &nerr) || nerr.Kind != layout.NicheErrTagTooNarrow {
		t.Fatalf("expected tag-too-narrow, got %v", err)
	}
	_, err = layout.EncodeTags(st, []int64{3, 3})
	if !errors.As(err, &nerr) || nerr.Kind != layout.NicheErrDuplicateTag {
		t.Fatalf("expected duplicate tag, got %v", err)
	}
}

func TestEngineStrategiesRoundTrip(t *testing.T) {
	e, in := newEngine()
	b := in.Builtins()
	en := in.RegisterEnum("E")
	in.SetVariants(en, []types.VariantInfo{
		{Name: "A", Discr: 0},
		{Name: "B", Discr: 1, Fields: []types.FieldInfo{{Name: "0", Type: b.Char}}},
		{Name: "C", Discr: 2},
	})
	l := mustLayout(t, e, en)
	if l.Tag.Encoding != layout.TagNiche {
		t.Fatalf("encoding = %s", l.Tag.Encoding)
	}
	m, err := layout.EncodeTags(l.Tag, []int64{0, 1, 2})
	if err != nil {
		t.Fatalf("EncodeTags: %v", err)
	}
	if m.Writes[0].Raw != 0x110000 || m.Writes[2].Raw != 0x110002 {
		t.Fatalf("writes = %+v %+v", m.Writes[0], m.Writes[2])
	}
	if got, _ := m.Decode('x'); got != 1 {
		t.Fatalf("a valid char must decode to B, got %d", got)
	}
	ranges := m.Ranges()
	if len(ranges) != 2 || ranges[0].Variant != 0 || ranges[1].Variant != 2 {
		t.Fatalf("ranges = %+v", ranges)
	}
}
