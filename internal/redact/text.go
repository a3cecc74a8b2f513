// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package redact

import (
	"github.com/tsawler/tabula/core"

	"github.com/pdiddy/pii-masker/internal/document"
	"github.com/pdiddy/pii-masker/pkg/types"
)

// rewriteText removes every glyph whose box meets a rect. Each removed
// glyph becomes a TJ displacement equal to its advance, so the glyphs
// that remain are drawn where they were. Show-text operators without a
// hit are copied as they are.
func rewriteText(ops []document.Operation, runs []document.TextRun, rects []types.Rect) []document.Operation {
	hit := map[int]map[int]document.TextRun{}
	for _, run := range runs {
		for _, g := range run.Glyphs {
			if glyphHit(g.Box, rects) {
				if hit[run.Op] == nil {
					hit[run.Op] = map[int]document.TextRun{}
				}
				hit[run.Op][run.Elem] = run
				break
			}
		}
	}
	if len(hit) == 0 {
		return ops
	}

	out := make([]document.Operation, 0, len(ops)+len(hit))
	for i, op := range ops {
		elems, ok := hit[i]
		if !ok {
			out = append(out, op)
			continue
		}
		switch op.Operator {
		case "Tj":
			out = append(out, tj(segments(elems[-1], rects)))
		case "'":
			out = append(out, document.Operation{Operator: "T*"}, tj(segments(elems[-1], rects)))
		case "\"":
			out = append(out,
				document.Operation{Operator: "Tw", Operands: op.Operands[:1]},
				document.Operation{Operator: "Tc", Operands: op.Operands[1:2]},
				document.Operation{Operator: "T*"},
				tj(segments(elems[-1], rects)))
		case "TJ":
			arr, _ := op.Operands[0].(core.Array)
			var b tjBuilder
			for e, el := range arr {
				if run, ok := elems[e]; ok {
					b.extend(segments(run, rects))
					continue
				}
				if n, ok := numberOf(el); ok {
					b.shift(n)
					continue
				}
				b.add(el)
			}
			out = append(out, tj(b.arr))
		default:
			out = append(out, op)
		}
	}
	return out
}

// segments turns a run into TJ elements: kept glyphs are grouped into
// strings and removed glyphs into negative displacements.
func segments(run document.TextRun, rects []types.Rect) core.Array {
	var b tjBuilder
	var kept []byte
	flush := func() {
		if len(kept) > 0 {
			b.add(core.String(kept))
			kept = nil
		}
	}
	for _, g := range run.Glyphs {
		if glyphHit(g.Box, rects) {
			flush()
			b.shift(-g.Adjust)
			continue
		}
		kept = append(kept, g.Code...)
	}
	flush()
	return b.arr
}

// glyphEpsilon keeps a glyph that only touches a rect, within rounding,
// out of the redaction.
const glyphEpsilon = 0.01

func glyphHit(box types.Rect, rects []types.Rect) bool {
	for _, r := range rects {
		if box.X0 < r.X1-glyphEpsilon && r.X0 < box.X1-glyphEpsilon &&
			box.Y0 < r.Y1-glyphEpsilon && r.Y0 < box.Y1-glyphEpsilon {
			return true
		}
	}
	return false
}

// tjBuilder accumulates TJ array elements, merging adjacent numbers.
type tjBuilder struct {
	arr     core.Array
	pending bool
}

func (b *tjBuilder) add(o core.Object) {
	b.arr = append(b.arr, o)
	b.pending = false
}

func (b *tjBuilder) shift(n float64) {
	if b.pending {
		prev, _ := numberOf(b.arr[len(b.arr)-1])
		b.arr[len(b.arr)-1] = core.Real(prev + n)
		return
	}
	b.arr = append(b.arr, core.Real(n))
	b.pending = true
}

func (b *tjBuilder) extend(a core.Array) {
	for _, o := range a {
		if n, ok := numberOf(o); ok {
			b.shift(n)
			continue
		}
		b.add(o)
	}
}

func tj(arr core.Array) document.Operation {
	if arr == nil {
		arr = core.Array{}
	}
	return document.Operation{Operator: "TJ", Operands: []core.Object{arr}}
}

func numberOf(o core.Object) (float64, bool) {
	switch v := o.(type) {
	case core.Int:
		return float64(v), true
	case core.Real:
		return float64(v), true
	}
	return 0, false
}
