// Package textedit applies non-overlapping replacements to an immutable
// source string and keeps the offset bookkeeping needed to map the edited
// text back to the original.
package textedit

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phobologic/ngaot/internal/sourcemap"
)

// ErrOverlap is returned when an edit intersects an edit already recorded.
var ErrOverlap = errors.New("overlapping edit")

type edit struct {
	start, end int
	text       string
	seq        int
}

func (e edit) insertion() bool { return e.start == e.end }

// Editor records edits against an original string. Offsets always refer to
// the original, regardless of how many edits were recorded before.
type Editor struct {
	original string
	edits    []edit
}

// New returns an editor over original.
func New(original string) *Editor {
	return &Editor{original: original}
}

// Original returns the unedited text.
func (e *Editor) Original() string {
	return e.original
}

// Edited reports whether any edit has been recorded.
func (e *Editor) Edited() bool {
	return len(e.edits) > 0
}

// Overwrite replaces original[start:end] with text. The range must be
// non-empty; use Insert for pure insertions.
func (e *Editor) Overwrite(start, end int, text string) error {
	if start >= end {
		return fmt.Errorf("overwrite [%d,%d): empty range", start, end)
	}
	return e.add(edit{start: start, end: end, text: text})
}

// Remove deletes original[start:end].
func (e *Editor) Remove(start, end int) error {
	return e.Overwrite(start, end, "")
}

// Insert places text at pos without disturbing the characters around it.
// Several insertions at one position keep their call order, and they land
// before any overwrite that starts at pos.
func (e *Editor) Insert(pos int, text string) error {
	return e.add(edit{start: pos, end: pos, text: text})
}

func (e *Editor) add(n edit) error {
	if n.start < 0 || n.end > len(e.original) {
		return fmt.Errorf("edit [%d,%d) out of range [0,%d)", n.start, n.end, len(e.original))
	}
	for _, o := range e.edits {
		if conflicts(o, n) {
			return fmt.Errorf("%w: [%d,%d) intersects [%d,%d)", ErrOverlap, n.start, n.end, o.start, o.end)
		}
	}
	n.seq = len(e.edits)
	e.edits = append(e.edits, n)
	return nil
}

func conflicts(a, b edit) bool {
	switch {
	case a.insertion() && b.insertion():
		return false
	case a.insertion():
		return b.start < a.start && a.start < b.end
	case b.insertion():
		return a.start < b.start && b.start < a.end
	default:
		return a.start < b.end && b.start < a.end
	}
}

func (e *Editor) sorted() []edit {
	edits := append([]edit(nil), e.edits...)
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].start != edits[j].start {
			return edits[i].start < edits[j].start
		}
		if edits[i].insertion() != edits[j].insertion() {
			return edits[i].insertion()
		}
		return edits[i].seq < edits[j].seq
	})
	return edits
}

// span is a run of the edited text. Verbatim spans copy the original
// starting at orig; other spans are replacement text anchored at orig.
type span struct {
	genStart, genEnd int
	orig             int
	verbatim         bool
}

// Result is the edited text plus the span table mapping it back.
type Result struct {
	Text     string
	original string
	spans    []span
	genIdx   *sourcemap.TextIndex
	origIdx  *sourcemap.TextIndex
}

// Apply produces the edited text.
func (e *Editor) Apply() *Result {
	var b strings.Builder
	var spans []span
	cursor := 0
	emit := func(text string, orig int, verbatim bool) {
		if text == "" {
			return
		}
		start := b.Len()
		b.WriteString(text)
		spans = append(spans, span{genStart: start, genEnd: b.Len(), orig: orig, verbatim: verbatim})
	}
	for _, ed := range e.sorted() {
		emit(e.original[cursor:ed.start], cursor, true)
		emit(ed.text, ed.start, false)
		cursor = ed.end
	}
	emit(e.original[cursor:], cursor, true)

	text := b.String()
	return &Result{
		Text:     text,
		original: e.original,
		spans:    spans,
		genIdx:   sourcemap.NewTextIndex(text),
		origIdx:  sourcemap.NewTextIndex(e.original),
	}
}

// String returns the edited text.
func (e *Editor) String() string {
	return e.Apply().Text
}

// OriginalOffset maps a byte offset of the edited text to the original.
// Offsets inside replacement text map to the start of the replaced range.
func (r *Result) OriginalOffset(offset int) (int, bool) {
	if offset < 0 || offset > len(r.Text) {
		return 0, false
	}
	if len(r.spans) == 0 {
		return offset, true
	}
	i := sort.Search(len(r.spans), func(i int) bool { return r.spans[i].genEnd > offset })
	if i == len(r.spans) {
		last := r.spans[len(r.spans)-1]
		if last.verbatim {
			return last.orig + (last.genEnd - last.genStart), true
		}
		return len(r.original), true
	}
	s := r.spans[i]
	if s.verbatim {
		return s.orig + (offset - s.genStart), true
	}
	return s.orig, true
}

// Original implements sourcemap.Mapper over line/column positions.
func (r *Result) Original(line, column int) (int, int, bool) {
	off, ok := r.genIdx.Offset(line, column)
	if !ok {
		return 0, 0, false
	}
	orig, ok := r.OriginalOffset(off)
	if !ok {
		return 0, 0, false
	}
	ol, oc := r.origIdx.Position(orig)
	return ol, oc, true
}

// GenerateMap builds a source map from the edited text back to source. Each
// span start is mapped, and verbatim spans also map every line start they
// contain.
func (r *Result) GenerateMap(source string, includeContent bool) *sourcemap.Map {
	lines := make(sourcemap.Lines, len(strings.Split(r.Text, "\n")))
	add := func(genOff, origOff int) {
		gl, gc := r.genIdx.Position(genOff)
		ol, oc := r.origIdx.Position(origOff)
		lines[gl] = append(lines[gl], sourcemap.Segment{
			GenColumn: gc, Source: 0, OrigLine: ol, OrigColumn: oc, Name: -1,
		})
	}
	for _, s := range r.spans {
		add(s.genStart, s.orig)
		if !s.verbatim {
			continue
		}
		for off := s.genStart; off < s.genEnd; off++ {
			if r.Text[off] == '\n' && off+1 < s.genEnd {
				add(off+1, s.orig+(off+1-s.genStart))
			}
		}
	}

	m := &sourcemap.Map{
		Version:  3,
		File:     strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)) + ".js",
		Sources:  []string{source},
		Names:    []string{},
		Mappings: sourcemap.EncodeMappings(lines),
	}
	if includeContent {
		m.SourcesContent = []string{r.original}
	}
	return m
}
