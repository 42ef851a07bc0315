// Package sourcemap reads, writes and composes version 3 source maps.
package sourcemap

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Map is a version 3 source map document.
type Map struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	SourceRoot     string   `json:"sourceRoot,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// Segment is one decoded mapping. Source and Name are -1 when absent.
// Lines and columns are zero based; columns count UTF-16 code units.
type Segment struct {
	GenColumn  int
	Source     int
	OrigLine   int
	OrigColumn int
	Name       int
}

// Lines holds decoded segments indexed by generated line.
type Lines [][]Segment

// Position is a location in an original source.
type Position struct {
	Source string
	Line   int
	Column int
	Name   string
}

// Mapper maps a position of an intermediate text back to the text it was
// derived from.
type Mapper interface {
	Original(line, column int) (origLine, origColumn int, ok bool)
}

// Parse decodes a JSON source map.
func Parse(data []byte) (*Map, error) {
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding source map: %w", err)
	}
	if m.Version != 3 {
		return nil, fmt.Errorf("unsupported source map version %d", m.Version)
	}
	return &m, nil
}

// Marshal encodes the map as JSON.
func (m *Map) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Decode expands the mappings string.
func (m *Map) Decode() (Lines, error) {
	return DecodeMappings(m.Mappings)
}

// OriginalPosition returns the original location for a generated line and
// column, using the closest segment at or before column on that line.
func (m *Map) OriginalPosition(line, column int) (Position, bool) {
	lines, err := m.Decode()
	if err != nil || line < 0 || line >= len(lines) {
		return Position{}, false
	}
	segs := lines[line]
	i := sort.Search(len(segs), func(i int) bool { return segs[i].GenColumn > column }) - 1
	for ; i >= 0; i-- {
		if segs[i].Source >= 0 {
			break
		}
	}
	if i < 0 {
		return Position{}, false
	}
	s := segs[i]
	pos := Position{Line: s.OrigLine, Column: s.OrigColumn}
	if s.Source < len(m.Sources) {
		pos.Source = m.Sources[s.Source]
	}
	if s.Name >= 0 && s.Name < len(m.Names) {
		pos.Name = m.Names[s.Name]
	}
	return pos, true
}

// Compose maps outer, which points into an intermediate text, through inner
// back to the original text. The result names source as its only source and
// embeds content as that source's text. Segments that inner cannot map are
// dropped.
func Compose(outer *Map, inner Mapper, source, content string) (*Map, error) {
	if outer == nil {
		return nil, errors.New("compose: nil outer map")
	}
	lines, err := outer.Decode()
	if err != nil {
		return nil, err
	}

	composed := make(Lines, len(lines))
	for gl, segs := range lines {
		for _, s := range segs {
			if s.Source < 0 {
				continue
			}
			ol, oc, ok := inner.Original(s.OrigLine, s.OrigColumn)
			if !ok {
				continue
			}
			composed[gl] = append(composed[gl], Segment{
				GenColumn:  s.GenColumn,
				Source:     0,
				OrigLine:   ol,
				OrigColumn: oc,
				Name:       s.Name,
			})
		}
	}

	names := outer.Names
	if names == nil {
		names = []string{}
	}
	return &Map{
		Version:        3,
		File:           outer.File,
		SourceRoot:     outer.SourceRoot,
		Sources:        []string{source},
		SourcesContent: []string{content},
		Names:          names,
		Mappings:       EncodeMappings(composed),
	}, nil
}

// DecodeMappings expands a VLQ mappings string.
func DecodeMappings(mappings string) (Lines, error) {
	var lines Lines
	var source, origLine, origColumn, nameIdx int
	for _, line := range strings.Split(mappings, ";") {
		var segs []Segment
		genColumn := 0
		for _, raw := range strings.Split(line, ",") {
			if raw == "" {
				continue
			}
			fields, err := decodeVLQ(raw)
			if err != nil {
				return nil, err
			}
			seg := Segment{Source: -1, Name: -1}
			switch len(fields) {
			case 1, 4, 5:
			default:
				return nil, fmt.Errorf("invalid mapping segment %q", raw)
			}
			genColumn += fields[0]
			seg.GenColumn = genColumn
			if len(fields) >= 4 {
				source += fields[1]
				origLine += fields[2]
				origColumn += fields[3]
				seg.Source, seg.OrigLine, seg.OrigColumn = source, origLine, origColumn
			}
			if len(fields) == 5 {
				nameIdx += fields[4]
				seg.Name = nameIdx
			}
			segs = append(segs, seg)
		}
		lines = append(lines, segs)
	}
	return lines, nil
}

// EncodeMappings produces the VLQ mappings string for lines. Segments within
// a line are emitted in ascending column order.
func EncodeMappings(lines Lines) string {
	var b strings.Builder
	var source, origLine, origColumn, nameIdx int
	for i, segs := range lines {
		if i > 0 {
			b.WriteByte(';')
		}
		sorted := append([]Segment(nil), segs...)
		sort.SliceStable(sorted, func(a, c int) bool { return sorted[a].GenColumn < sorted[c].GenColumn })

		genColumn := 0
		for j, s := range sorted {
			if j > 0 {
				b.WriteByte(',')
			}
			encodeVLQ(&b, s.GenColumn-genColumn)
			genColumn = s.GenColumn
			if s.Source < 0 {
				continue
			}
			encodeVLQ(&b, s.Source-source)
			encodeVLQ(&b, s.OrigLine-origLine)
			encodeVLQ(&b, s.OrigColumn-origColumn)
			source, origLine, origColumn = s.Source, s.OrigLine, s.OrigColumn
			if s.Name >= 0 {
				encodeVLQ(&b, s.Name-nameIdx)
				nameIdx = s.Name
			}
		}
	}
	return b.String()
}
