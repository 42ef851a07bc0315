package sourcemap

import (
	"sort"
	"unicode/utf8"
)

// TextIndex converts between byte offsets and zero based line/column pairs
// of one text. Columns count UTF-16 code units, as source maps do.
type TextIndex struct {
	text       string
	lineStarts []int
}

// NewTextIndex indexes the line starts of text.
func NewTextIndex(text string) *TextIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &TextIndex{text: text, lineStarts: starts}
}

// Position returns the line and column of a byte offset.
func (x *TextIndex) Position(offset int) (line, column int) {
	if offset > len(x.text) {
		offset = len(x.text)
	}
	line = sort.Search(len(x.lineStarts), func(i int) bool { return x.lineStarts[i] > offset }) - 1
	for i := x.lineStarts[line]; i < offset; {
		r, size := utf8.DecodeRuneInString(x.text[i:])
		column += utf16Len(r)
		i += size
	}
	return line, column
}

// Offset returns the byte offset of a line and column. Columns past the end
// of the line clamp to the line end.
func (x *TextIndex) Offset(line, column int) (int, bool) {
	if line < 0 || line >= len(x.lineStarts) || column < 0 {
		return 0, false
	}
	end := len(x.text)
	if line+1 < len(x.lineStarts) {
		end = x.lineStarts[line+1] - 1
	}
	i := x.lineStarts[line]
	for units := 0; units < column && i < end; {
		r, size := utf8.DecodeRuneInString(x.text[i:])
		units += utf16Len(r)
		i += size
	}
	return i, true
}

func utf16Len(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}
