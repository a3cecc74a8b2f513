// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/pii-masker/pkg/types"
)

// Page is one page of a document with its geometry and text layer. The
// text layer is in reading order: lines top to bottom, glyphs left to
// right, lines joined by "\n".
type Page struct {
	Index  int
	Width  float64
	Height float64

	cells []cell
}

type cell struct {
	r         rune
	box       types.Rect
	line      int
	synthetic bool
}

// Span is a match in a page's text layer, in rune offsets [Start, End).
type Span struct {
	Start int
	End   int
}

// Bounds returns the page rectangle in top-left page space.
func (p *Page) Bounds() types.Rect {
	return types.Rect{X1: p.Width, Y1: p.Height}
}

// Text returns the page's text layer.
func (p *Page) Text() string {
	var b strings.Builder
	for _, c := range p.cells {
		b.WriteRune(c.r)
	}
	return b.String()
}

// Find returns every exact, case-sensitive match of needle in reading
// order. Overlapping matches are reported: the search resumes one rune
// after each match start.
func (p *Page) Find(needle string) []Span {
	want := []rune(needle)
	if len(want) == 0 {
		return nil
	}
	var out []Span
	for i := 0; i+len(want) <= len(p.cells); i++ {
		ok := true
		for j, r := range want {
			if p.cells[i+j].r != r {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, Span{Start: i, End: i + len(want)})
		}
	}
	return out
}

// Boxes returns one rectangle per text line covered by sp: the union of
// the glyph boxes of that line. Synthetic separators contribute nothing.
func (p *Page) Boxes(sp Span) []types.Rect {
	var (
		out  []types.Rect
		line = -1
	)
	for i := sp.Start; i < sp.End && i < len(p.cells); i++ {
		c := p.cells[i]
		if c.synthetic {
			continue
		}
		if c.line != line || len(out) == 0 {
			out = append(out, c.box)
			line = c.line
			continue
		}
		out[len(out)-1] = out[len(out)-1].Union(c.box)
	}
	return out
}

// Words splits the text layer at whitespace and returns each word with the
// union of its glyph boxes.
func (p *Page) Words() []types.OCRToken {
	var (
		out []types.OCRToken
		cur []cell
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		var b strings.Builder
		box := cur[0].box
		for _, c := range cur {
			b.WriteRune(c.r)
			box = box.Union(c.box)
		}
		out = append(out, types.OCRToken{PageIndex: p.Index, BBox: box, Text: b.String(), Conf: 1})
		cur = cur[:0]
	}
	for _, c := range p.cells {
		if c.synthetic || c.r == ' ' || c.r == '\t' || c.r == '\n' {
			flush()
			continue
		}
		cur = append(cur, c)
	}
	flush()
	return out
}

// textItem is one positioned piece of text fed to the line builder.
type textItem struct {
	text     string
	box      types.Rect
	baseline float64
	size     float64
}

// buildCells orders items into lines by baseline, sorts each line left to
// right and inserts separators. When spaceAll is set every pair of
// neighbouring items on a line is separated by a space (OCR words);
// otherwise a space is inserted only where the horizontal gap exceeds a
// fifth of the font size.
func buildCells(items []textItem, spaceAll bool) []cell {
	if len(items) == 0 {
		return nil
	}
	sorted := make([]textItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].baseline < sorted[j].baseline })

	var lines [][]textItem
	var base float64
	for _, it := range sorted {
		tol := math.Max(1, 0.5*it.size)
		if n := len(lines); n > 0 && math.Abs(it.baseline-base) <= tol {
			lines[n-1] = append(lines[n-1], it)
			continue
		}
		lines = append(lines, []textItem{it})
		base = it.baseline
	}

	var cells []cell
	for ln, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].box.X0 < line[j].box.X0 })
		if ln > 0 {
			cells = append(cells, cell{r: '\n', line: ln - 1, synthetic: true})
		}
		for i, it := range line {
			if i > 0 {
				prev := line[i-1]
				gap := it.box.X0 - prev.box.X1
				lastSpace := strings.HasSuffix(prev.text, " ")
				firstSpace := strings.HasPrefix(it.text, " ")
				if !lastSpace && !firstSpace && (spaceAll || gap > 0.2*it.size) {
					cells = append(cells, cell{r: ' ', line: ln, synthetic: true})
				}
			}
			cells = appendItem(cells, it, ln)
		}
	}
	return cells
}

// appendItem splits the item's box evenly across its runes.
func appendItem(cells []cell, it textItem, line int) []cell {
	n := utf8.RuneCountInString(it.text)
	if n == 0 {
		return cells
	}
	w := it.box.Width() / float64(n)
	i := 0
	for _, r := range it.text {
		box := it.box
		box.X0 = it.box.X0 + float64(i)*w
		box.X1 = box.X0 + w
		cells = append(cells, cell{r: r, box: box, line: line})
		i++
	}
	return cells
}

// newPDFPage builds the text layer of a scanned PDF page. Lines are laid
// out in content space, where text runs left to right, and the glyph
// boxes are then turned into display space.
func newPDFPage(index int, scan *PageScan) *Page {
	p := &Page{Index: index, Width: scan.Page.Width(), Height: scan.Page.Height()}
	var items []textItem
	for _, run := range scan.Runs {
		for _, g := range run.Glyphs {
			if g.Text == "" {
				continue
			}
			items = append(items, textItem{text: g.Text, box: g.Box, baseline: g.Baseline, size: g.Size})
		}
	}
	p.cells = buildCells(items, false)
	for i := range p.cells {
		p.cells[i].box = scan.Page.Display(p.cells[i].box)
	}
	return p
}

// newOCRPage builds the text layer of a raster page from OCR words.
func newOCRPage(index int, width, height float64, tokens []types.OCRToken) *Page {
	p := &Page{Index: index, Width: width, Height: height}
	var items []textItem
	for _, t := range tokens {
		if t.PageIndex != index || strings.TrimSpace(t.Text) == "" {
			continue
		}
		box := t.BBox.Normalize()
		items = append(items, textItem{
			text:     t.Text,
			box:      box,
			baseline: box.Y1,
			size:     box.Height(),
		})
	}
	p.cells = buildCells(items, true)
	return p
}
