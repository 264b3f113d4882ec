package tiny

import "fmt"

// Pos is a byte offset into a single compilation unit's source text.
// Mirrors the original's TokenPos (tiny/src/lexer.c), a plain byte cursor.
type Pos int

// Location is a human-facing position: 1-based line and column plus the
// underlying byte cursor it was derived from.
type Location struct {
	Line   int
	Column int
	Cursor int
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// LineIndex converts byte offsets to Locations in O(log lines) after an
// O(n) build, the way the teacher's pos.go LineIndex does for its parser
// diagnostics.
type LineIndex struct {
	src       []byte
	lineStart []int
}

func NewLineIndex(src []byte) *LineIndex {
	lineStart := make([]int, 1, 64)
	lineStart[0] = 0
	for i, b := range src {
		if b == '\n' {
			lineStart = append(lineStart, i+1)
		}
	}
	return &LineIndex{src: src, lineStart: lineStart}
}

func (li *LineIndex) At(pos Pos) Location {
	cursor := int(pos)
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(li.src) {
		cursor = len(li.src)
	}
	lo, hi := 0, len(li.lineStart)
	for lo < hi {
		mid := (lo + hi) / 2
		if li.lineStart[mid] > cursor {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	lineIdx := lo - 1
	if lineIdx < 0 {
		lineIdx = 0
	}
	lineStart := li.lineStart[lineIdx]
	col := 1
	for i := lineStart; i < cursor; i++ {
		col++
	}
	return Location{Line: lineIdx + 1, Column: col, Cursor: cursor}
}
