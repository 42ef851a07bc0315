package sourcemap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVLQ(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value int
		want  string
	}{
		{0, "A"},
		{1, "C"},
		{-1, "D"},
		{15, "e"},
		{16, "gB"},
		{-16, "hB"},
		{1000, "w+B"},
	}
	for _, tt := range tests {
		var b strings.Builder
		encodeVLQ(&b, tt.value)
		assert.Equal(t, tt.want, b.String(), "encode %d", tt.value)

		got, err := decodeVLQ(tt.want)
		require.NoError(t, err)
		assert.Equal(t, []int{tt.value}, got, "decode %q", tt.want)
	}
}

func TestDecodeVLQErrors(t *testing.T) {
	t.Parallel()

	_, err := decodeVLQ("g")
	assert.Error(t, err, "truncated continuation")
	_, err = decodeVLQ("A!")
	assert.Error(t, err, "invalid character")
}

func TestDecodeMappings(t *testing.T) {
	t.Parallel()

	lines, err := DecodeMappings("AAAA,IAAI;;AACA,EAAEA")
	require.NoError(t, err)
	require.Len(t, lines, 3)

	assert.Equal(t, []Segment{
		{GenColumn: 0, Source: 0, OrigLine: 0, OrigColumn: 0, Name: -1},
		{GenColumn: 4, Source: 0, OrigLine: 0, OrigColumn: 4, Name: -1},
	}, lines[0])
	assert.Empty(t, lines[1])
	assert.Equal(t, []Segment{
		{GenColumn: 0, Source: 0, OrigLine: 1, OrigColumn: 4, Name: -1},
		{GenColumn: 2, Source: 0, OrigLine: 1, OrigColumn: 6, Name: 0},
	}, lines[2])
}

func TestEncodeMappingsRoundTrip(t *testing.T) {
	t.Parallel()

	const mappings = "AAAA,IAAI;;AACA,EAAEA;C"
	lines, err := DecodeMappings(mappings)
	require.NoError(t, err)
	assert.Equal(t, mappings, EncodeMappings(lines))
}

func TestOriginalPosition(t *testing.T) {
	t.Parallel()

	m := &Map{
		Version:  3,
		Sources:  []string{"a.ts"},
		Names:    []string{"foo"},
		Mappings: "AAAA,IAAIA;AACA",
	}

	pos, ok := m.OriginalPosition(0, 6)
	require.True(t, ok)
	assert.Equal(t, Position{Source: "a.ts", Line: 0, Column: 4, Name: "foo"}, pos)

	pos, ok = m.OriginalPosition(1, 0)
	require.True(t, ok)
	assert.Equal(t, 1, pos.Line)

	_, ok = m.OriginalPosition(5, 0)
	assert.False(t, ok)
}

type shiftMapper struct{ lines int }

func (s shiftMapper) Original(line, column int) (int, int, bool) {
	if line < s.lines {
		return 0, 0, false
	}
	return line - s.lines, column, true
}

func TestCompose(t *testing.T) {
	t.Parallel()

	outer := &Map{
		Version:  3,
		File:     "main.js",
		Sources:  []string{"main.ts"},
		Names:    []string{},
		Mappings: "AAAA;AACA,EAAE",
	}
	composed, err := Compose(outer, shiftMapper{lines: 1}, "/src/main.ts", "original text")
	require.NoError(t, err)

	assert.Equal(t, []string{"/src/main.ts"}, composed.Sources)
	assert.Equal(t, []string{"original text"}, composed.SourcesContent)
	assert.Equal(t, "main.js", composed.File)

	lines, err := composed.Decode()
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Empty(t, lines[0], "segment on intermediate line 0 has no original")
	require.Len(t, lines[1], 2)
	assert.Equal(t, 0, lines[1][0].OrigLine)
	assert.Equal(t, 2, lines[1][1].OrigColumn)
}

func TestParse(t *testing.T) {
	t.Parallel()

	m, err := Parse([]byte(`{"version":3,"sources":["a.ts"],"names":[],"mappings":"AAAA"}`))
	require.NoError(t, err)
	assert.Equal(t, "AAAA", m.Mappings)

	_, err = Parse([]byte(`{"version":2,"sources":[],"names":[],"mappings":""}`))
	assert.Error(t, err)
}

func TestTextIndex(t *testing.T) {
	t.Parallel()

	x := NewTextIndex("ab\n😀c\n")
	line, col := x.Position(3 + 4)
	assert.Equal(t, 1, line)
	assert.Equal(t, 2, col, "astral rune counts as two UTF-16 units")

	off, ok := x.Offset(1, 2)
	require.True(t, ok)
	assert.Equal(t, 7, off)

	off, ok = x.Offset(0, 99)
	require.True(t, ok)
	assert.Equal(t, 2, off, "clamped to end of line")
}
