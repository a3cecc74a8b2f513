// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package redact

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/model"
	"golang.org/x/image/draw"

	"github.com/pdiddy/pii-masker/internal/document"
	"github.com/pdiddy/pii-masker/pkg/types"
)

// redactImage blacks out the samples of an image XObject that fall under
// rects. Only 8-bit Gray, RGB and CMYK images stored raw, Flate-encoded or
// as baseline JPEG are handled; anything else is an error.
func redactImage(f *document.PDFFile, st *core.Stream, x document.Placement, page document.PDFPage, rects []types.Rect) (*core.Stream, error) {
	d := st.Dict
	if mask, _ := d.GetBool("ImageMask"); mask {
		return nil, fmt.Errorf("stencil masks are not supported")
	}
	w, _ := d.GetInt("Width")
	h, _ := d.GetInt("Height")
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid size %dx%d", w, h)
	}
	if bpc, ok := d.GetInt("BitsPerComponent"); ok && bpc != 8 {
		return nil, fmt.Errorf("%d bits per component is not supported", bpc)
	}
	comps, err := components(f, d.Get("ColorSpace"))
	if err != nil {
		return nil, err
	}

	inv, ok := invert(x.CTM)
	if !ok {
		return nil, fmt.Errorf("degenerate placement matrix")
	}
	var boxes []image.Rectangle
	for _, r := range rects {
		if !x.Box.Intersects(r) {
			continue
		}
		if pr := pixelRect(inv, page, r, int(w), int(h)); !pr.Empty() {
			boxes = append(boxes, pr)
		}
	}
	if len(boxes) == 0 {
		return st, nil
	}

	switch filter := filterName(d.Get("Filter")); filter {
	case "", "FlateDecode", "Fl":
		data, err := st.Decode()
		if err != nil {
			return nil, fmt.Errorf("decoding samples: %w", err)
		}
		if len(data) < int(w)*int(h)*comps {
			return nil, fmt.Errorf("short sample data: %d bytes for %dx%dx%d", len(data), w, h, comps)
		}
		data = append([]byte(nil), data...)
		black := blackSamples(comps, d.Get("Decode"))
		for _, b := range boxes {
			for row := b.Min.Y; row < b.Max.Y; row++ {
				for col := b.Min.X; col < b.Max.X; col++ {
					copy(data[(row*int(w)+col)*comps:], black)
				}
			}
		}
		return flateStream(d, data)
	case "DCTDecode", "DCT":
		if comps == 4 {
			return nil, fmt.Errorf("CMYK JPEG images are not supported")
		}
		return redactJPEG(st, boxes)
	default:
		return nil, fmt.Errorf("filter %s is not supported", filter)
	}
}

func redactJPEG(st *core.Stream, boxes []image.Rectangle) (*core.Stream, error) {
	src, err := jpeg.Decode(bytes.NewReader(st.Data))
	if err != nil {
		return nil, fmt.Errorf("decoding jpeg: %w", err)
	}
	var dst draw.Image
	if g, ok := src.(*image.Gray); ok {
		dst = g
	} else {
		rgba := image.NewRGBA(src.Bounds())
		draw.Draw(rgba, rgba.Bounds(), src, src.Bounds().Min, draw.Src)
		dst = rgba
	}
	origin := dst.Bounds().Min
	for _, b := range boxes {
		draw.Draw(dst, b.Add(origin), image.Black, image.Point{}, draw.Src)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	nd := copyDict(st.Dict)
	delete(nd, "DecodeParms")
	return &core.Stream{Dict: nd, Data: buf.Bytes()}, nil
}

// components returns the number of color components of a color space.
func components(f *document.PDFFile, cs core.Object) (int, error) {
	obj, err := f.Resolve(cs)
	if err != nil {
		return 0, fmt.Errorf("resolving color space: %w", err)
	}
	switch v := obj.(type) {
	case core.Name:
		switch v {
		case "DeviceGray", "CalGray", "G":
			return 1, nil
		case "DeviceRGB", "CalRGB", "RGB":
			return 3, nil
		case "DeviceCMYK", "CMYK":
			return 4, nil
		}
	case core.Array:
		if len(v) == 0 {
			break
		}
		name, _ := v[0].(core.Name)
		switch name {
		case "ICCBased":
			if len(v) < 2 {
				break
			}
			s, err := f.Resolve(v[1])
			if err != nil {
				return 0, err
			}
			if st, ok := s.(*core.Stream); ok {
				if n, ok := st.Dict.GetInt("N"); ok && (n == 1 || n == 3 || n == 4) {
					return int(n), nil
				}
			}
		case "CalGray":
			return 1, nil
		case "CalRGB":
			return 3, nil
		}
	}
	return 0, fmt.Errorf("color space %v is not supported", obj)
}

// blackSamples returns the sample bytes that render as black, honoring an
// inverted /Decode array.
func blackSamples(comps int, decode core.Object) []byte {
	out := make([]byte, comps)
	if comps == 4 {
		out[3] = 255
	}
	arr, _ := decode.(core.Array)
	for i := 0; i < comps && 2*i+1 < len(arr); i++ {
		lo, _ := numberOf(arr[2*i])
		hi, _ := numberOf(arr[2*i+1])
		if lo > hi {
			out[i] = 255 - out[i]
		}
	}
	return out
}

func filterName(o core.Object) string {
	switch v := o.(type) {
	case core.Name:
		return string(v)
	case core.Array:
		if len(v) == 1 {
			if n, ok := v[0].(core.Name); ok {
				return string(n)
			}
		}
		if len(v) > 1 {
			return "chain"
		}
	}
	return ""
}

// pixelRect maps a top-left page rect into image sample coordinates. The
// image occupies the unit square of its placement matrix with row 0 at
// the top.
func pixelRect(inv model.Matrix, page document.PDFPage, r types.Rect, w, h int) image.Rectangle {
	minU, minV := math.Inf(1), math.Inf(1)
	maxU, maxV := math.Inf(-1), math.Inf(-1)
	for _, c := range [][2]float64{{r.X0, r.Y0}, {r.X1, r.Y0}, {r.X0, r.Y1}, {r.X1, r.Y1}} {
		ux, uy := page.ToUser(c[0], c[1])
		p := inv.Transform(model.Point{X: ux, Y: uy})
		minU, maxU = math.Min(minU, p.X), math.Max(maxU, p.X)
		minV, maxV = math.Min(minV, p.Y), math.Max(maxV, p.Y)
	}
	pr := image.Rect(
		int(math.Floor(minU*float64(w))),
		int(math.Floor((1-maxV)*float64(h))),
		int(math.Ceil(maxU*float64(w))),
		int(math.Ceil((1-minV)*float64(h))),
	)
	return pr.Intersect(image.Rect(0, 0, w, h))
}

func invert(m model.Matrix) (model.Matrix, bool) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-12 {
		return model.Matrix{}, false
	}
	a, b, c, d := m[3]/det, -m[1]/det, -m[2]/det, m[0]/det
	return model.Matrix{a, b, c, d, -(m[4]*a + m[5]*c), -(m[4]*b + m[5]*d)}, true
}
