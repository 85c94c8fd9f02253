package internal

import (
	"sort"

	"github.com/pasqal-io/godasse-tree/deserialize/tree"
)

// An index of line starts in a source buffer, used to convert byte
// offsets into (line, column) positions.
type LineIndex struct {
	starts []int64
}

func NewLineIndex(source []byte) LineIndex {
	starts := []int64{0}
	for i, b := range source {
		if b == '\n' {
			starts = append(starts, int64(i+1))
		}
	}
	return LineIndex{starts: starts}
}

// Convert a byte offset into a position.
//
// Columns are counted in bytes, starting at 1.
func (index LineIndex) Position(offset int64) tree.Position {
	// The last line starting at or before `offset`.
	line := sort.Search(len(index.starts), func(i int) bool {
		return index.starts[i] > offset
	}) - 1
	if line < 0 {
		line = 0
	}
	return tree.Position{
		Line:   line + 1,
		Column: int(offset-index.starts[line]) + 1,
	}
}
