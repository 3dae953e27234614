package layout

import "fmt"

// Chunk is a maximal contiguous byte range holding field data.
type Chunk struct {
	Offset int
	Size   int
}

// End returns the first byte past the chunk.
func (c Chunk) End() int {
	return c.Offset + c.Size
}

// FieldSpan is the byte range occupied by one field.
type FieldSpan struct {
	Offset int
	Size   int
}

// OverlapPolicy says whether field spans may share bytes.
type OverlapPolicy uint8

const (
	// ChunkDisjoint rejects overlapping fields (structs, tuples).
	ChunkDisjoint OverlapPolicy = iota
	// ChunkOverlap merges overlapping fields (unions, shared variant storage).
	ChunkOverlap
)

// CalcChunks partitions [0, size) into the sorted, non-overlapping runs of
// bytes covered by at least one field. Padding bytes belong to no chunk.
func CalcChunks(size int, fields []FieldSpan, policy OverlapPolicy) ([]Chunk, error) {
	if size < 0 {
		return nil, &LayoutError{Kind: LayoutErrOutOfBounds, Field: -1, Detail: fmt.Sprintf("negative size %d", size)}
	}
	markers := make([]bool, size)
	for i, f := range fields {
		if f.Offset < 0 || f.Size < 0 || f.Offset+f.Size > size {
			return nil, &LayoutError{
				Kind:   LayoutErrOutOfBounds,
				Field:  i,
				Detail: fmt.Sprintf("span [%d, %d) not within [0, %d)", f.Offset, f.Offset+f.Size, size),
			}
		}
		for b := f.Offset; b < f.Offset+f.Size; b++ {
			if markers[b] && policy == ChunkDisjoint {
				return nil, &LayoutError{
					Kind:   LayoutErrOverlap,
					Field:  i,
					Detail: fmt.Sprintf("byte %d of span [%d, %d)", b, f.Offset, f.Offset+f.Size),
				}
			}
			markers[b] = true
		}
	}

	var chunks []Chunk
	start := -1
	// one past size so the trailing run is closed
	for b := 0; b <= size; b++ {
		used := b < size && markers[b]
		switch {
		case used && start < 0:
			start = b
		case !used && start >= 0:
			chunks = append(chunks, Chunk{Offset: start, Size: b - start})
			start = -1
		}
	}
	return chunks, nil
}
