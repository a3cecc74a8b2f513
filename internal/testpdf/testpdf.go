// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package testpdf writes small, well-formed PDFs for tests. Text is set
// in Courier (600 units per glyph) so glyph positions are predictable:
// a line at (x, y) with size s puts glyph i at x+0.6*s*i.
package testpdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// PageWidth and PageHeight are the MediaBox of every generated page.
const (
	PageWidth  = 612
	PageHeight = 792
)

// Line is one line of text in default user space (origin bottom-left).
type Line struct {
	X, Y float64
	Size float64
	Text string
}

// Image is a gray image drawn at the given user-space rectangle.
type Image struct {
	X, Y, W, H    float64
	Width, Height int

	// Gray is the value of every pixel.
	Gray byte
}

// Page describes one page.
type Page struct {
	Lines  []Line
	Images []Image

	// Raw is appended to the generated content verbatim.
	Raw string

	// Rotate and CropBox are written to the page dictionary when set.
	Rotate  int
	CropBox [4]float64
}

// Build returns the bytes of a PDF with the given pages.
func Build(pages ...Page) []byte {
	w := &writer{}
	w.buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	// 1 catalog, 2 page tree, 3 font, then per page: page, content, images.
	next := 4
	var kids []string
	type pageObjs struct {
		page, content int
		images        []int
	}
	layout := make([]pageObjs, len(pages))
	for i, p := range pages {
		layout[i].page = next
		layout[i].content = next + 1
		next += 2
		for range p.Images {
			layout[i].images = append(layout[i].images, next)
			next++
		}
		kids = append(kids, fmt.Sprintf("%d 0 R", layout[i].page))
	}

	w.object(1, "<< /Type /Catalog /Pages 2 0 R >>")
	w.object(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 %d %d] >>",
		strings.Join(kids, " "), len(pages), PageWidth, PageHeight))
	w.object(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Courier >>")

	for i, p := range pages {
		l := layout[i]
		var xobj []string
		for k, ref := range l.images {
			xobj = append(xobj, fmt.Sprintf("/Im%d %d 0 R", k+1, ref))
		}
		res := "<< /Font << /F1 3 0 R >>"
		if len(xobj) > 0 {
			res += " /XObject << " + strings.Join(xobj, " ") + " >>"
		}
		res += " >>"
		extra := ""
		if p.Rotate != 0 {
			extra += fmt.Sprintf(" /Rotate %d", p.Rotate)
		}
		if p.CropBox != [4]float64{} {
			extra += fmt.Sprintf(" /CropBox [%g %g %g %g]", p.CropBox[0], p.CropBox[1], p.CropBox[2], p.CropBox[3])
		}
		w.object(l.page, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Resources %s /Contents %d 0 R%s >>", res, l.content, extra))

		var c strings.Builder
		for _, ln := range p.Lines {
			fmt.Fprintf(&c, "BT /F1 %g Tf %g %g Td (%s) Tj ET\n", ln.Size, ln.X, ln.Y, escape(ln.Text))
		}
		for k, img := range p.Images {
			fmt.Fprintf(&c, "q %g 0 0 %g %g %g cm /Im%d Do Q\n", img.W, img.H, img.X, img.Y, k+1)
		}
		c.WriteString(p.Raw)
		w.stream(l.content, "", []byte(c.String()))

		for k, img := range p.Images {
			pix := bytes.Repeat([]byte{img.Gray}, img.Width*img.Height)
			var z bytes.Buffer
			zw := zlib.NewWriter(&z)
			zw.Write(pix)
			zw.Close()
			dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8 /Filter /FlateDecode",
				img.Width, img.Height)
			w.stream(l.images[k], dict, z.Bytes())
		}
	}
	return w.finish(next)
}

// Write builds the PDF and writes it to path.
func Write(path string, pages ...Page) error {
	return os.WriteFile(path, Build(pages...), 0o644)
}

type writer struct {
	buf     bytes.Buffer
	offsets map[int]int
}

func (w *writer) object(num int, body string) {
	if w.offsets == nil {
		w.offsets = map[int]int{}
	}
	w.offsets[num] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

func (w *writer) stream(num int, dict string, data []byte) {
	if w.offsets == nil {
		w.offsets = map[int]int{}
	}
	w.offsets[num] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", num, dict, len(data))
	w.buf.Write(data)
	w.buf.WriteString("\nendstream\nendobj\n")
}

func (w *writer) finish(size int) []byte {
	xref := w.buf.Len()
	fmt.Fprintf(&w.buf, "xref\n0 %d\n0000000000 65535 f \n", size)
	for n := 1; n < size; n++ {
		fmt.Fprintf(&w.buf, "%010d 00000 n \n", w.offsets[n])
	}
	fmt.Fprintf(&w.buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", size, xref)
	return w.buf.Bytes()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
