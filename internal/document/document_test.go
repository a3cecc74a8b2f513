// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document_test

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pii-masker/internal/document"
	"github.com/pdiddy/pii-masker/internal/testpdf"
	"github.com/pdiddy/pii-masker/pkg/types"
)

func writePDF(t *testing.T, pages ...testpdf.Page) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, testpdf.Write(path, pages...))
	return path
}

func TestLoadPDFTextLayer(t *testing.T) {
	path := writePDF(t,
		testpdf.Page{Lines: []testpdf.Line{
			{X: 72, Y: 680, Size: 12, Text: "Call 010-1234-5678"},
			{X: 72, Y: 700, Size: 12, Text: "Hello World"},
		}},
		testpdf.Page{Lines: []testpdf.Line{{X: 72, Y: 700, Size: 12, Text: "Second page"}}},
	)

	doc, err := document.Load(path)
	require.NoError(t, err)
	assert.Equal(t, document.KindPDF, doc.Kind)
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, "Hello World\nCall 010-1234-5678", doc.Page(0).Text())
	assert.Equal(t, "Second page", doc.Page(1).Text())
	assert.Nil(t, doc.Page(2))
	assert.Equal(t, types.Rect{X1: 612, Y1: 792}, doc.Page(0).Bounds())
}

func TestFindAndBoxes(t *testing.T) {
	path := writePDF(t, testpdf.Page{Lines: []testpdf.Line{
		{X: 72, Y: 700, Size: 10, Text: "Hello World"},
		{X: 72, Y: 680, Size: 10, Text: "Call now"},
	}})
	doc, err := document.Load(path)
	require.NoError(t, err)
	page := doc.Page(0)

	spans := page.Find("World")
	require.Len(t, spans, 1)
	boxes := page.Boxes(spans[0])
	require.Len(t, boxes, 1)
	// Courier at 10pt advances 6pt per glyph; baseline y=792-700.
	assert.InDelta(t, 72+6*6, boxes[0].X0, 0.01)
	assert.InDelta(t, 72+11*6, boxes[0].X1, 0.01)
	assert.InDelta(t, 92-9.5, boxes[0].Y0, 0.01)
	assert.InDelta(t, 92+2.5, boxes[0].Y1, 0.01)

	spans = page.Find("World\nCall")
	require.Len(t, spans, 1)
	assert.Len(t, page.Boxes(spans[0]), 2)

	assert.Empty(t, page.Find("world"))
	assert.Empty(t, page.Find(""))
}

func TestFindCountsOverlappingMatches(t *testing.T) {
	path := writePDF(t, testpdf.Page{Lines: []testpdf.Line{{X: 72, Y: 700, Size: 10, Text: "aaaa"}}})
	doc, err := document.Load(path)
	require.NoError(t, err)

	spans := doc.Page(0).Find("aa")
	require.Len(t, spans, 3)
	assert.Equal(t, document.Span{Start: 1, End: 3}, spans[1])
}

func TestWords(t *testing.T) {
	path := writePDF(t, testpdf.Page{Lines: []testpdf.Line{{X: 72, Y: 700, Size: 10, Text: "Jane Doe"}}})
	doc, err := document.Load(path)
	require.NoError(t, err)

	words := doc.Page(0).Words()
	require.Len(t, words, 2)
	assert.Equal(t, "Jane", words[0].Text)
	assert.Equal(t, "Doe", words[1].Text)
	assert.InDelta(t, 72+5*6, words[1].BBox.X0, 0.01)
}

func TestLoadImageAndAttachOCR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.png")
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for x := 0; x < 200; x++ {
		for y := 0; y < 100; y++ {
			img.Set(x, y, color.White)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	doc, err := document.Load(path)
	require.NoError(t, err)
	assert.Equal(t, document.KindImage, doc.Kind)
	assert.Equal(t, "png", doc.Format)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, 200.0, doc.Page(0).Width)
	assert.Empty(t, doc.Page(0).Text())

	doc.AttachOCR([]types.OCRToken{
		{PageIndex: 0, BBox: types.Rect{X0: 60, Y0: 10, X1: 100, Y1: 30}, Text: "Doe"},
		{PageIndex: 0, BBox: types.Rect{X0: 10, Y0: 10, X1: 50, Y1: 30}, Text: "Jane"},
		{PageIndex: 0, BBox: types.Rect{X0: 10, Y0: 50, X1: 90, Y1: 70}, Text: "010-1234"},
		{PageIndex: 3, BBox: types.Rect{X0: 10, Y0: 50, X1: 90, Y1: 70}, Text: "ignored"},
	})
	page := doc.Page(0)
	assert.Equal(t, "Jane Doe\n010-1234", page.Text())

	spans := page.Find("Jane Doe")
	require.Len(t, spans, 1)
	boxes := page.Boxes(spans[0])
	require.Len(t, boxes, 1)
	assert.Equal(t, types.Rect{X0: 10, Y0: 10, X1: 100, Y1: 30}, boxes[0])
}

func TestLoadRejectsUnknownContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))
	_, err := document.Load(path)
	assert.Error(t, err)

	_, err = document.Load(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestScanRecordsImagePlacement(t *testing.T) {
	path := writePDF(t, testpdf.Page{Images: []testpdf.Image{
		{X: 100, Y: 500, W: 200, H: 100, Width: 4, Height: 2, Gray: 200},
	}})
	f, err := document.OpenPDF(path)
	require.NoError(t, err)
	defer f.Close()

	scan, err := f.Scan(0)
	require.NoError(t, err)
	require.Len(t, scan.XObjects, 1)
	p := scan.XObjects[0]
	assert.Equal(t, "Image", p.Subtype)
	assert.Equal(t, "Im1", p.Name)
	assert.NotNil(t, p.Stream)
	assert.InDelta(t, 100, p.Box.X0, 0.01)
	assert.InDelta(t, 792-600, p.Box.Y0, 0.01)
	assert.InDelta(t, 300, p.Box.X1, 0.01)
	assert.InDelta(t, 792-500, p.Box.Y1, 0.01)

	_, err = f.Scan(1)
	assert.Error(t, err)
}

func TestLoadPDFBlankPage(t *testing.T) {
	path := writePDF(t,
		testpdf.Page{Lines: []testpdf.Line{{X: 72, Y: 700, Size: 12, Text: "Call 010-1234-5678"}}},
		testpdf.Page{},
	)

	doc, err := document.Load(path)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, "Call 010-1234-5678", doc.Page(0).Text())
	assert.Empty(t, doc.Page(1).Text())
	assert.Equal(t, types.Rect{X1: 612, Y1: 792}, doc.Page(1).Bounds())
}

func TestPageGeometry(t *testing.T) {
	line := []testpdf.Line{{X: 72, Y: 700, Size: 10, Text: "Call 010-1234-5678"}}
	tests := []struct {
		name   string
		page   testpdf.Page
		bounds types.Rect
		want   types.Rect
	}{
		{
			name:   "upright",
			page:   testpdf.Page{Lines: line},
			bounds: types.Rect{X1: 612, Y1: 792},
			want:   types.Rect{X0: 102, Y0: 82.5, X1: 120, Y1: 94.5},
		},
		{
			name:   "rotated 90",
			page:   testpdf.Page{Lines: line, Rotate: 90},
			bounds: types.Rect{X1: 792, Y1: 612},
			want:   types.Rect{X0: 697.5, Y0: 102, X1: 709.5, Y1: 120},
		},
		{
			name:   "rotated 180",
			page:   testpdf.Page{Lines: line, Rotate: 180},
			bounds: types.Rect{X1: 612, Y1: 792},
			want:   types.Rect{X0: 492, Y0: 697.5, X1: 510, Y1: 709.5},
		},
		{
			name:   "rotated 270",
			page:   testpdf.Page{Lines: line, Rotate: 270},
			bounds: types.Rect{X1: 792, Y1: 612},
			want:   types.Rect{X0: 82.5, Y0: 492, X1: 94.5, Y1: 510},
		},
		{
			name:   "cropped",
			page:   testpdf.Page{Lines: line, CropBox: [4]float64{50, 100, 562, 742}},
			bounds: types.Rect{X1: 512, Y1: 642},
			want:   types.Rect{X0: 52, Y0: 32.5, X1: 70, Y1: 44.5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := document.Load(writePDF(t, tt.page))
			require.NoError(t, err)
			page := doc.Page(0)
			assert.Equal(t, tt.bounds, page.Bounds())

			spans := page.Find("010")
			require.Len(t, spans, 1)
			boxes := page.Boxes(spans[0])
			require.Len(t, boxes, 1)
			assert.InDelta(t, tt.want.X0, boxes[0].X0, 0.01)
			assert.InDelta(t, tt.want.Y0, boxes[0].Y0, 0.01)
			assert.InDelta(t, tt.want.X1, boxes[0].X1, 0.01)
			assert.InDelta(t, tt.want.Y1, boxes[0].Y1, 0.01)
		})
	}
}

func TestDisplayRoundTrip(t *testing.T) {
	r := types.Rect{X0: 10, Y0: 20, X1: 100, Y1: 40}
	for _, rot := range []int{0, 90, 180, 270} {
		p := &document.PDFPage{Box: [4]float64{0, 0, 612, 792}, Rotate: rot}
		d := p.Display(r)
		assert.True(t, d.X0 >= 0 && d.X1 <= p.Width(), "rotate %d: %v", rot, d)
		assert.True(t, d.Y0 >= 0 && d.Y1 <= p.Height(), "rotate %d: %v", rot, d)
		u := p.Undisplay(d)
		assert.InDelta(t, r.X0, u.X0, 1e-9, "rotate %d", rot)
		assert.InDelta(t, r.Y0, u.Y0, 1e-9, "rotate %d", rot)
		assert.InDelta(t, r.X1, u.X1, 1e-9, "rotate %d", rot)
		assert.InDelta(t, r.Y1, u.Y1, 1e-9, "rotate %d", rot)
	}
}

func TestLoadPDFRejectsBadRotation(t *testing.T) {
	_, err := document.Load(writePDF(t, testpdf.Page{Rotate: 45}))
	assert.ErrorContains(t, err, "/Rotate 45")
}
