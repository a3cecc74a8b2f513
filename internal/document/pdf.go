// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/font"
	"github.com/tsawler/tabula/reader"

	"github.com/pdiddy/pii-masker/pkg/types"
)

// PDFFile is an open PDF with its page tree flattened in page order.
// It is not safe for concurrent use; open one per goroutine.
type PDFFile struct {
	R     *reader.Reader
	Pages []PDFPage

	path  string
	empty map[int]*core.Stream
}

// PDFPage is one leaf of the page tree with inherited attributes resolved.
//
// Two page spaces are used. Content space has its origin at the top-left
// corner of the visible box and ignores /Rotate; the scanner reports
// glyph and image boxes in it. Display space is content space turned by
// /Rotate, the page as a viewer renders it; document pages, OCR boxes and
// regions are in display space.
type PDFPage struct {
	Ref       core.IndirectRef
	Dict      core.Dict
	Resources core.Dict

	// MediaBox is [llx lly urx ury] in default user space.
	MediaBox [4]float64

	// Box is the visible area: the CropBox clipped to the MediaBox.
	Box [4]float64

	// Rotate is the clockwise display rotation: 0, 90, 180 or 270.
	Rotate int
}

func (p PDFPage) contentSize() (float64, float64) {
	return p.Box[2] - p.Box[0], p.Box[3] - p.Box[1]
}

// Width returns the displayed page width in points.
func (p PDFPage) Width() float64 {
	w, h := p.contentSize()
	if p.Rotate%180 != 0 {
		return h
	}
	return w
}

// Height returns the displayed page height in points.
func (p PDFPage) Height() float64 {
	w, h := p.contentSize()
	if p.Rotate%180 != 0 {
		return w
	}
	return h
}

// ToTopLeft converts a point in default user space to content space.
func (p PDFPage) ToTopLeft(x, y float64) (float64, float64) {
	return x - p.Box[0], p.Box[3] - y
}

// ToUser converts a point in content space to default user space.
func (p PDFPage) ToUser(x, y float64) (float64, float64) {
	return x + p.Box[0], p.Box[3] - y
}

// Display maps a content-space rect into display space.
func (p PDFPage) Display(r types.Rect) types.Rect {
	w, h := p.contentSize()
	pt := func(x, y float64) (float64, float64) {
		switch p.Rotate {
		case 90:
			return h - y, x
		case 180:
			return w - x, h - y
		case 270:
			return y, w - x
		}
		return x, y
	}
	x0, y0 := pt(r.X0, r.Y0)
	x1, y1 := pt(r.X1, r.Y1)
	return types.Rect{X0: x0, Y0: y0, X1: x1, Y1: y1}.Normalize()
}

// Undisplay maps a display-space rect back into content space.
func (p PDFPage) Undisplay(r types.Rect) types.Rect {
	w, h := p.contentSize()
	pt := func(x, y float64) (float64, float64) {
		switch p.Rotate {
		case 90:
			return y, h - x
		case 180:
			return w - x, h - y
		case 270:
			return w - y, x
		}
		return x, y
	}
	x0, y0 := pt(r.X0, r.Y0)
	x1, y1 := pt(r.X1, r.Y1)
	return types.Rect{X0: x0, Y0: y0, X1: x1, Y1: y1}.Normalize()
}

// OpenPDF opens path read-only and flattens its page tree. Encrypted
// documents are rejected.
func OpenPDF(path string) (*PDFFile, error) {
	r, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	f := &PDFFile{R: r, path: path, empty: map[int]*core.Stream{}}
	if r.Trailer().Get("Encrypt") != nil {
		r.Close()
		return nil, fmt.Errorf("encrypted pdf is not supported")
	}
	if err := f.loadPages(); err != nil {
		r.Close()
		return nil, err
	}
	return f, nil
}

// Close releases the underlying file.
func (f *PDFFile) Close() error {
	return f.R.Close()
}

// Object returns object n. The reader cannot parse a stream whose body
// is empty, which is how blank pages are usually written, so a stream
// declaring /Length 0 is rebuilt from its dictionary.
func (f *PDFFile) Object(n int) (core.Object, error) {
	if st, ok := f.empty[n]; ok {
		return st, nil
	}
	obj, err := f.R.GetObject(n)
	if err == nil {
		return obj, nil
	}
	st, ok := f.emptyStream(n)
	if !ok {
		return nil, err
	}
	f.empty[n] = st
	return st, nil
}

func (f *PDFFile) emptyStream(n int) (*core.Stream, bool) {
	e, ok := f.R.XRefTable().Get(n)
	if !ok || e == nil || !e.InUse {
		return nil, false
	}
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, false
	}
	defer fh.Close()
	buf := make([]byte, 4096)
	k, err := fh.ReadAt(buf, e.Offset)
	if k == 0 && err != nil {
		return nil, false
	}
	buf = buf[:k]
	i := bytes.Index(buf, []byte("stream"))
	if i < 0 {
		return nil, false
	}
	head := append(append([]byte{}, buf[:i]...), "\nendobj\n"...)
	ind, err := core.NewParser(bytes.NewReader(head)).ParseIndirectObject()
	if err != nil || ind.Ref.Number != n {
		return nil, false
	}
	dict, ok := ind.Object.(core.Dict)
	if !ok {
		return nil, false
	}
	length := dict.Get("Length")
	if ref, ok := length.(core.IndirectRef); ok {
		if length, err = f.R.GetObject(ref.Number); err != nil {
			return nil, false
		}
	}
	if l, ok := length.(core.Int); !ok || l != 0 {
		return nil, false
	}
	return &core.Stream{Dict: dict}, true
}

// Resolve follows indirect references until a direct object is reached.
func (f *PDFFile) Resolve(obj core.Object) (core.Object, error) {
	for depth := 0; depth < 32; depth++ {
		ref, ok := obj.(core.IndirectRef)
		if !ok {
			return obj, nil
		}
		next, err := f.Object(ref.Number)
		if err != nil {
			return nil, err
		}
		obj = next
	}
	return nil, fmt.Errorf("reference chain too deep")
}

// ResolveDict resolves obj and asserts it is a dictionary. A nil object
// yields a nil dictionary.
func (f *PDFFile) ResolveDict(obj core.Object) (core.Dict, error) {
	if obj == nil {
		return nil, nil
	}
	v, err := f.Resolve(obj)
	if err != nil {
		return nil, err
	}
	switch d := v.(type) {
	case core.Dict:
		return d, nil
	case core.Null:
		return nil, nil
	}
	return nil, fmt.Errorf("expected dictionary, got %T", v)
}

// ObjectNumbers returns the in-use object numbers in ascending order.
func (f *PDFFile) ObjectNumbers() []int {
	var nums []int
	for n, e := range f.R.XRefTable().Entries {
		if e != nil && e.InUse && n > 0 {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	return nums
}

// Generation returns the generation number recorded for object n.
func (f *PDFFile) Generation(n int) int {
	if e := f.R.XRefTable().Entries[n]; e != nil {
		return e.Generation
	}
	return 0
}

type inherited struct {
	resources core.Object
	mediaBox  core.Object
	cropBox   core.Object
	rotate    core.Object
}

func (f *PDFFile) loadPages() error {
	catalog, err := f.R.GetCatalog()
	if err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}
	root, ok := catalog.Get("Pages").(core.IndirectRef)
	if !ok {
		return fmt.Errorf("catalog /Pages is not a reference")
	}
	seen := map[int]bool{}
	if err := f.walkPages(root, inherited{}, seen); err != nil {
		return err
	}
	if len(f.Pages) == 0 {
		return fmt.Errorf("pdf has no pages")
	}
	return nil
}

func (f *PDFFile) walkPages(ref core.IndirectRef, inh inherited, seen map[int]bool) error {
	if seen[ref.Number] {
		return fmt.Errorf("page tree cycle at object %d", ref.Number)
	}
	seen[ref.Number] = true

	obj, err := f.Object(ref.Number)
	if err != nil {
		return fmt.Errorf("reading page node %d: %w", ref.Number, err)
	}
	node, ok := obj.(core.Dict)
	if !ok {
		return fmt.Errorf("page node %d is %T", ref.Number, obj)
	}
	if v := node.Get("Resources"); v != nil {
		inh.resources = v
	}
	if v := node.Get("MediaBox"); v != nil {
		inh.mediaBox = v
	}
	if v := node.Get("CropBox"); v != nil {
		inh.cropBox = v
	}
	if v := node.Get("Rotate"); v != nil {
		inh.rotate = v
	}

	kids, hasKids := node.Get("Kids").(core.Array)
	if typ, _ := node.GetName("Type"); typ == "Pages" || (typ == "" && hasKids) {
		if !hasKids {
			kidsObj, err := f.Resolve(node.Get("Kids"))
			if err != nil {
				return fmt.Errorf("resolving /Kids of %d: %w", ref.Number, err)
			}
			kids, _ = kidsObj.(core.Array)
		}
		for _, k := range kids {
			kref, ok := k.(core.IndirectRef)
			if !ok {
				return fmt.Errorf("page tree kid is %T, want reference", k)
			}
			if err := f.walkPages(kref, inh, seen); err != nil {
				return err
			}
		}
		return nil
	}

	res, err := f.ResolveDict(inh.resources)
	if err != nil {
		return fmt.Errorf("page %d resources: %w", len(f.Pages), err)
	}
	box, err := f.rect(inh.mediaBox)
	if err != nil {
		return fmt.Errorf("page %d mediabox: %w", len(f.Pages), err)
	}
	visible := box
	if inh.cropBox != nil {
		crop, err := f.rect(inh.cropBox)
		if err != nil {
			return fmt.Errorf("page %d cropbox: %w", len(f.Pages), err)
		}
		visible = [4]float64{
			math.Max(box[0], crop[0]), math.Max(box[1], crop[1]),
			math.Min(box[2], crop[2]), math.Min(box[3], crop[3]),
		}
		if visible[0] >= visible[2] || visible[1] >= visible[3] {
			return fmt.Errorf("page %d: cropbox lies outside the mediabox", len(f.Pages))
		}
	}
	rot, err := f.rotation(inh.rotate)
	if err != nil {
		return fmt.Errorf("page %d: %w", len(f.Pages), err)
	}
	f.Pages = append(f.Pages, PDFPage{Ref: ref, Dict: node, Resources: res, MediaBox: box, Box: visible, Rotate: rot})
	return nil
}

// rotation normalizes /Rotate to 0, 90, 180 or 270.
func (f *PDFFile) rotation(obj core.Object) (int, error) {
	if obj == nil {
		return 0, nil
	}
	v, err := f.Resolve(obj)
	if err != nil {
		return 0, err
	}
	n, ok := number(v)
	if !ok || n != math.Trunc(n) || int(n)%90 != 0 {
		return 0, fmt.Errorf("/Rotate %v is not a multiple of 90", v)
	}
	return (int(n)%360 + 360) % 360, nil
}

func (f *PDFFile) rect(obj core.Object) ([4]float64, error) {
	var out [4]float64
	if obj == nil {
		return [4]float64{0, 0, 612, 792}, nil
	}
	v, err := f.Resolve(obj)
	if err != nil {
		return out, err
	}
	arr, ok := v.(core.Array)
	if !ok || len(arr) != 4 {
		return out, fmt.Errorf("rectangle is %T", v)
	}
	for i, e := range arr {
		n, ok := number(e)
		if !ok {
			return out, fmt.Errorf("rectangle element %d is %T", i, e)
		}
		out[i] = n
	}
	if out[0] > out[2] {
		out[0], out[2] = out[2], out[0]
	}
	if out[1] > out[3] {
		out[1], out[3] = out[3], out[1]
	}
	return out, nil
}

// ContentStreams returns the page's content stream objects in order.
func (f *PDFFile) ContentStreams(p PDFPage) ([]*core.Stream, error) {
	obj, err := f.Resolve(p.Dict.Get("Contents"))
	if err != nil {
		return nil, fmt.Errorf("resolving /Contents: %w", err)
	}
	var out []*core.Stream
	switch v := obj.(type) {
	case nil, core.Null:
	case *core.Stream:
		out = append(out, v)
	case core.Array:
		for _, e := range v {
			s, err := f.Resolve(e)
			if err != nil {
				return nil, fmt.Errorf("resolving content part: %w", err)
			}
			st, ok := s.(*core.Stream)
			if !ok {
				return nil, fmt.Errorf("content part is %T", s)
			}
			out = append(out, st)
		}
	default:
		return nil, fmt.Errorf("/Contents is %T", obj)
	}
	return out, nil
}

// ContentOps decodes and parses the page's content streams.
func (f *PDFFile) ContentOps(p PDFPage) ([]Operation, error) {
	streams, err := f.ContentStreams(p)
	if err != nil {
		return nil, err
	}
	var data []byte
	for _, s := range streams {
		if len(s.Data) == 0 {
			continue
		}
		d, err := s.Decode()
		if err != nil {
			return nil, fmt.Errorf("decoding content stream: %w", err)
		}
		data = append(data, d...)
		data = append(data, '\n')
	}
	return ParseContent(data)
}

// pdfFont wraps the tabula font models with code splitting and widths.
type pdfFont struct {
	simple *font.Font
	t0     *font.Type0Font
}

func (pf *pdfFont) codeLen() int {
	if pf.t0 != nil {
		return 2
	}
	return 1
}

// width returns the glyph advance in thousandths of text space.
func (pf *pdfFont) width(code []byte) float64 {
	if pf.t0 != nil {
		cid := 0
		for _, c := range code {
			cid = cid<<8 | int(c)
		}
		return pf.t0.GetWidth(rune(cid))
	}
	return pf.simple.GetWidth(rune(code[0]))
}

func (pf *pdfFont) decode(code []byte) string {
	if pf.t0 != nil {
		return pf.t0.DecodeString(code)
	}
	return pf.simple.DecodeString(code)
}

// loadFonts builds fonts from a resource dictionary. Font dictionaries may
// be direct or indirect. Fonts that fail to parse fall back to Helvetica
// metrics so that geometry stays approximately right.
func (f *PDFFile) loadFonts(res core.Dict) map[string]*pdfFont {
	fonts := map[string]*pdfFont{}
	if res == nil {
		return fonts
	}
	fd, err := f.ResolveDict(res.Get("Font"))
	if err != nil || fd == nil {
		return fonts
	}
	resolver := func(ref core.IndirectRef) (core.Object, error) {
		return f.Object(ref.Number)
	}
	for name, obj := range fd {
		d, err := f.ResolveDict(obj)
		if err != nil || d == nil {
			fonts[name] = &pdfFont{simple: font.NewFont(name, "Helvetica", "Type1")}
			continue
		}
		subtype, _ := d.GetName("Subtype")
		var pf *pdfFont
		switch subtype {
		case "Type0":
			if t0, err := font.NewType0Font(d, resolver); err == nil {
				pf = &pdfFont{t0: t0}
			}
		case "TrueType":
			if tt, err := font.NewTrueTypeFont(d, resolver); err == nil {
				pf = &pdfFont{simple: tt.Font}
			}
		case "Type1", "MMType1":
			if t1, err := font.NewType1Font(d, resolver); err == nil {
				pf = &pdfFont{simple: t1.Font}
			}
		}
		if pf == nil {
			base, _ := d.GetName("BaseFont")
			if base == "" {
				base = "Helvetica"
			}
			pf = &pdfFont{simple: font.NewFont(name, string(base), "Type1")}
		}
		fonts[name] = pf
	}
	return fonts
}

func number(o core.Object) (float64, bool) {
	switch v := o.(type) {
	case core.Int:
		return float64(v), true
	case core.Real:
		return float64(v), true
	}
	return 0, false
}
