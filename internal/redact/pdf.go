// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package redact

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/klauspost/compress/zlib"
	"github.com/tsawler/tabula/core"

	"github.com/pdiddy/pii-masker/internal/document"
	"github.com/pdiddy/pii-masker/pkg/types"
)

// redactPDF rewrites every in-use object of the file at path into a new
// file with a fresh cross-reference table. Pages listed in byPage get a
// new content stream; their old streams are dropped unless a page
// without regions still uses them. Regions are in display space and are
// turned back into content space before glyphs are matched.
func redactPDF(ctx context.Context, path string, byPage map[int][]types.Rect) ([]byte, error) {
	f, err := document.OpenPDF(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	nums := f.ObjectNumbers()
	next := 1
	if len(nums) > 0 {
		next = nums[len(nums)-1] + 1
	}

	firstNew := next
	replaced := map[int]core.Object{}
	dropped := map[int]bool{}
	added := map[int]core.Object{}

	for _, pi := range sortedPages(byPage) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scan, err := f.Scan(pi)
		if err != nil {
			return nil, err
		}
		page := scan.Page
		rects := make([]types.Rect, len(byPage[pi]))
		for i, r := range byPage[pi] {
			rects[i] = page.Undisplay(r)
		}

		if len(scan.InlineImages) > 0 {
			return nil, fmt.Errorf("page %d: inline images cannot be redacted", pi)
		}
		for _, x := range scan.XObjects {
			if !hitsAny(x.Box, rects) {
				continue
			}
			switch x.Subtype {
			case "Image":
				if x.Ref.Number == 0 || x.Stream == nil {
					return nil, fmt.Errorf("page %d: image %s is not an indirect stream", pi, x.Name)
				}
				cur := x.Stream
				if prev, ok := replaced[x.Ref.Number].(*core.Stream); ok {
					cur = prev
				}
				st, err := redactImage(f, cur, x, page, rects)
				if err != nil {
					return nil, fmt.Errorf("page %d: image %s: %w", pi, x.Name, err)
				}
				replaced[x.Ref.Number] = st
			case "Form":
				return nil, fmt.Errorf("page %d: form xobject %s overlaps a region", pi, x.Name)
			default:
				return nil, fmt.Errorf("page %d: xobject %s of subtype %q overlaps a region", pi, x.Name, x.Subtype)
			}
		}

		content := []byte("q\n")
		content = document.AppendContent(content, rewriteText(scan.Ops, scan.Runs, rects))
		content = append(content, "Q\n"...)
		content = appendBlackout(content, page, rects)

		st, err := flateStream(core.Dict{}, content)
		if err != nil {
			return nil, err
		}
		added[next] = st

		pd := copyDict(page.Dict)
		pd["Contents"] = core.IndirectRef{Number: next}
		replaced[page.Ref.Number] = pd
		next++

		for _, ref := range contentRefs(page.Dict) {
			dropped[ref] = true
		}
	}

	// A content stream shared with an unredacted page must survive.
	for pi, p := range f.Pages {
		if _, ok := byPage[pi]; ok {
			continue
		}
		for _, ref := range contentRefs(p.Dict) {
			delete(dropped, ref)
		}
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := map[int]int{}
	gens := map[int]int{}
	write := func(num, gen int, obj core.Object) {
		offsets[num] = out.Len()
		gens[num] = gen
		b := strconv.AppendInt(nil, int64(num), 10)
		b = append(b, ' ')
		b = strconv.AppendInt(b, int64(gen), 10)
		b = append(b, " obj\n"...)
		b = document.AppendObject(b, obj)
		b = append(b, "\nendobj\n"...)
		out.Write(b)
	}

	for _, n := range nums {
		if dropped[n] {
			continue
		}
		obj, ok := replaced[n]
		if !ok {
			if obj, err = f.Object(n); err != nil {
				return nil, fmt.Errorf("reading object %d: %w", n, err)
			}
		}
		write(n, f.Generation(n), obj)
	}
	for n := firstNew; n < next; n++ {
		write(n, 0, added[n])
	}

	appendXRef(&out, next, offsets, gens, f.R.Trailer())
	return out.Bytes(), nil
}

func appendXRef(out *bytes.Buffer, size int, offsets, gens map[int]int, trailer core.Dict) {
	start := out.Len()
	fmt.Fprintf(out, "xref\n0 %d\n0000000000 65535 f \n", size)
	for n := 1; n < size; n++ {
		off, ok := offsets[n]
		if !ok {
			out.WriteString("0000000000 65535 f \n")
			continue
		}
		fmt.Fprintf(out, "%010d %05d n \n", off, gens[n])
	}

	t := core.Dict{"Size": core.Int(size)}
	for _, k := range []string{"Root", "Info", "ID"} {
		if v := trailer.Get(k); v != nil {
			t[k] = v
		}
	}
	out.WriteString("trailer\n")
	out.Write(document.AppendObject(nil, t))
	fmt.Fprintf(out, "\nstartxref\n%d\n%%%%EOF\n", start)
}

// appendBlackout paints every rect, rounded outward, as an opaque black
// fill in default user space.
func appendBlackout(b []byte, page document.PDFPage, rects []types.Rect) []byte {
	b = append(b, "q\n0 g\n"...)
	for _, r := range rects {
		r = r.Outward()
		x, y := page.ToUser(r.X0, r.Y1)
		for _, v := range []float64{x, y, r.Width(), r.Height()} {
			b = document.AppendReal(b, v)
			b = append(b, ' ')
		}
		b = append(b, "re\nf\n"...)
	}
	return append(b, "Q\n"...)
}

func hitsAny(box types.Rect, rects []types.Rect) bool {
	for _, r := range rects {
		if box.Intersects(r) {
			return true
		}
	}
	return false
}

// contentRefs returns the object numbers behind a page's /Contents.
func contentRefs(page core.Dict) []int {
	switch v := page.Get("Contents").(type) {
	case core.IndirectRef:
		return []int{v.Number}
	case core.Array:
		var out []int
		for _, e := range v {
			if ref, ok := e.(core.IndirectRef); ok {
				out = append(out, ref.Number)
			}
		}
		return out
	}
	return nil
}

// copyDict returns a shallow copy; objects handed out by the reader are
// cached and shared.
func copyDict(d core.Dict) core.Dict {
	out := make(core.Dict, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// flateStream compresses data into a stream with dict's entries plus
// /Filter /FlateDecode.
func flateStream(dict core.Dict, data []byte) (*core.Stream, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	d := copyDict(dict)
	delete(d, "DecodeParms")
	d["Filter"] = core.Name("FlateDecode")
	return &core.Stream{Dict: d, Data: buf.Bytes()}, nil
}
