// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"fmt"
	"math"

	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/font"
	"github.com/tsawler/tabula/model"

	"github.com/pdiddy/pii-masker/pkg/types"
)

// Glyph is one shown character code with its box in content space.
type Glyph struct {
	Code []byte
	Text string
	Box  types.Rect

	// Adjust is the horizontal advance of the glyph in thousandths of text
	// space, including character and word spacing. A TJ displacement of
	// -Adjust moves the text position exactly as showing the glyph did.
	Adjust float64

	Baseline float64
	Size     float64
}

// TextRun is the glyphs of one string operand of a show-text operator.
// Elem is the index of the string inside a TJ array, or -1 for Tj, ' and ".
type TextRun struct {
	Op     int
	Elem   int
	Glyphs []Glyph
}

// Placement is one XObject drawn by a Do operator.
type Placement struct {
	Op      int
	Name    string
	Ref     core.IndirectRef
	Stream  *core.Stream
	Subtype string

	// Box is the unit square mapped through the CTM, in content space.
	Box types.Rect
	CTM model.Matrix
}

// PageScan is the result of walking one page's content stream.
type PageScan struct {
	Page         PDFPage
	Ops          []Operation
	Runs         []TextRun
	XObjects     []Placement
	InlineImages []Placement
}

type textState struct {
	ctm  model.Matrix
	tc   float64
	tw   float64
	th   float64
	tl   float64
	tfs  float64
	rise float64
	font *pdfFont
}

// Scan walks the content stream of page i and records every glyph and
// every image placement with its geometry. Text inside form XObjects is
// not visited.
func (f *PDFFile) Scan(i int) (*PageScan, error) {
	if i < 0 || i >= len(f.Pages) {
		return nil, fmt.Errorf("page %d out of range", i)
	}
	page := f.Pages[i]
	ops, err := f.ContentOps(page)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", i, err)
	}
	s := &scanner{
		file:  f,
		page:  page,
		fonts: f.loadFonts(page.Resources),
		out:   &PageScan{Page: page, Ops: ops},
	}
	s.gs = textState{ctm: model.Identity(), th: 1}
	if err := s.run(); err != nil {
		return nil, fmt.Errorf("page %d: %w", i, err)
	}
	return s.out, nil
}

type scanner struct {
	file  *PDFFile
	page  PDFPage
	fonts map[string]*pdfFont
	out   *PageScan

	gs    textState
	stack []textState
	tm    model.Matrix
	tlm   model.Matrix
}

func (s *scanner) run() error {
	for idx, op := range s.out.Ops {
		args := op.Operands
		switch op.Operator {
		case "q":
			s.stack = append(s.stack, s.gs)
		case "Q":
			if n := len(s.stack); n > 0 {
				s.gs = s.stack[n-1]
				s.stack = s.stack[:n-1]
			}
		case "cm":
			if m, ok := matrixOperands(args); ok {
				s.gs.ctm = m.Multiply(s.gs.ctm)
			}
		case "BT":
			s.tm, s.tlm = model.Identity(), model.Identity()
		case "Tc":
			s.gs.tc = operand(args, 0)
		case "Tw":
			s.gs.tw = operand(args, 0)
		case "Tz":
			s.gs.th = operand(args, 0) / 100
		case "TL":
			s.gs.tl = operand(args, 0)
		case "Ts":
			s.gs.rise = operand(args, 0)
		case "Tf":
			if len(args) == 2 {
				name, _ := args[0].(core.Name)
				s.gs.font = s.font(string(name))
				s.gs.tfs, _ = number(args[1])
			}
		case "Td":
			s.moveLine(operand(args, 0), operand(args, 1))
		case "TD":
			s.gs.tl = -operand(args, 1)
			s.moveLine(operand(args, 0), operand(args, 1))
		case "Tm":
			if m, ok := matrixOperands(args); ok {
				s.tm, s.tlm = m, m
			}
		case "T*":
			s.moveLine(0, -s.gs.tl)
		case "Tj":
			if len(args) == 1 {
				s.show(args[0], idx, -1)
			}
		case "'":
			s.moveLine(0, -s.gs.tl)
			if len(args) == 1 {
				s.show(args[0], idx, -1)
			}
		case "\"":
			if len(args) == 3 {
				s.gs.tw = operand(args, 0)
				s.gs.tc = operand(args, 1)
				s.moveLine(0, -s.gs.tl)
				s.show(args[2], idx, -1)
			}
		case "TJ":
			if len(args) != 1 {
				continue
			}
			arr, _ := args[0].(core.Array)
			for e, el := range arr {
				if n, ok := number(el); ok {
					s.tm = model.Translate(-n/1000*s.gs.tfs*s.gs.th, 0).Multiply(s.tm)
					continue
				}
				s.show(el, idx, e)
			}
		case "Do":
			if err := s.place(idx, args); err != nil {
				return err
			}
		case "BI":
			s.out.InlineImages = append(s.out.InlineImages, Placement{
				Op: idx, Subtype: "Image", Box: s.unitBox(), CTM: s.gs.ctm,
			})
		}
	}
	return nil
}

func (s *scanner) font(name string) *pdfFont {
	if pf, ok := s.fonts[name]; ok {
		return pf
	}
	pf := &pdfFont{simple: font.NewFont(name, "Helvetica", "Type1")}
	s.fonts[name] = pf
	return pf
}

func (s *scanner) moveLine(tx, ty float64) {
	s.tlm = model.Translate(tx, ty).Multiply(s.tlm)
	s.tm = s.tlm
}

func (s *scanner) show(obj core.Object, op, elem int) {
	str, ok := obj.(core.String)
	if !ok {
		return
	}
	pf := s.gs.font
	if pf == nil {
		pf = s.font("")
	}
	data := []byte(str)
	n := pf.codeLen()
	run := TextRun{Op: op, Elem: elem}
	for i := 0; i+n <= len(data); i += n {
		code := data[i : i+n]
		w0 := pf.width(code) / 1000
		advance := w0*s.gs.tfs + s.gs.tc
		if n == 1 && code[0] == ' ' {
			advance += s.gs.tw
		}

		rm := model.Matrix{s.gs.tfs * s.gs.th, 0, 0, s.gs.tfs, 0, s.gs.rise}.Multiply(s.tm).Multiply(s.gs.ctm)
		box := s.box(rm, []model.Point{{X: 0, Y: -0.25}, {X: w0, Y: -0.25}, {X: 0, Y: 0.95}, {X: w0, Y: 0.95}})
		origin := rm.Transform(model.Point{})
		_, baseline := s.page.ToTopLeft(origin.X, origin.Y)

		g := Glyph{
			Code:     append([]byte(nil), code...),
			Text:     pf.decode(code),
			Box:      box,
			Baseline: baseline,
			Size:     math.Hypot(rm[2], rm[3]),
		}
		if s.gs.tfs != 0 {
			g.Adjust = advance * 1000 / s.gs.tfs
		}
		run.Glyphs = append(run.Glyphs, g)
		s.tm = model.Translate(advance*s.gs.th, 0).Multiply(s.tm)
	}
	s.out.Runs = append(s.out.Runs, run)
}

func (s *scanner) place(idx int, args []core.Object) error {
	if len(args) != 1 {
		return nil
	}
	name, ok := args[0].(core.Name)
	if !ok {
		return nil
	}
	xobjs, err := s.file.ResolveDict(s.page.Resources.Get("XObject"))
	if err != nil {
		return fmt.Errorf("resolving /XObject: %w", err)
	}
	p := Placement{Op: idx, Name: string(name), Box: s.unitBox(), CTM: s.gs.ctm}
	raw := xobjs.Get(string(name))
	if ref, ok := raw.(core.IndirectRef); ok {
		p.Ref = ref
	}
	obj, err := s.file.Resolve(raw)
	if err != nil {
		return fmt.Errorf("resolving xobject %s: %w", name, err)
	}
	if st, ok := obj.(*core.Stream); ok {
		p.Stream = st
		sub, _ := st.Dict.GetName("Subtype")
		p.Subtype = string(sub)
	}
	s.out.XObjects = append(s.out.XObjects, p)
	return nil
}

func (s *scanner) unitBox() types.Rect {
	return s.box(s.gs.ctm, []model.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}})
}

// box maps the points through m and returns their bounds in top-left
// page space.
func (s *scanner) box(m model.Matrix, pts []model.Point) types.Rect {
	r := types.Rect{X0: math.Inf(1), Y0: math.Inf(1), X1: math.Inf(-1), Y1: math.Inf(-1)}
	for _, p := range pts {
		q := m.Transform(p)
		x, y := s.page.ToTopLeft(q.X, q.Y)
		r.X0, r.X1 = math.Min(r.X0, x), math.Max(r.X1, x)
		r.Y0, r.Y1 = math.Min(r.Y0, y), math.Max(r.Y1, y)
	}
	return r
}

func matrixOperands(args []core.Object) (model.Matrix, bool) {
	var m model.Matrix
	if len(args) != 6 {
		return m, false
	}
	for i, a := range args {
		v, ok := number(a)
		if !ok {
			return m, false
		}
		m[i] = v
	}
	return m, true
}

func operand(args []core.Object, i int) float64 {
	if i >= len(args) {
		return 0
	}
	v, _ := number(args[i])
	return v
}
