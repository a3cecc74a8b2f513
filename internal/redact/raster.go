// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package redact

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"github.com/pdiddy/pii-masker/internal/document"
	"github.com/pdiddy/pii-masker/pkg/types"
)

// redactRaster fills each rect with opaque black and re-encodes the image
// in its source format. Raster documents have a single page.
func redactRaster(path string, byPage map[int][]types.Rect) ([]byte, error) {
	for p := range byPage {
		if p != 0 {
			return nil, fmt.Errorf("raster image has no page %d", p)
		}
	}
	src, format, err := document.DecodeRaster(path)
	if err != nil {
		return nil, err
	}
	if format == "webp" {
		return nil, fmt.Errorf("webp images cannot be re-encoded")
	}

	dst := drawable(src)
	b := dst.Bounds()
	for _, r := range byPage[0] {
		r = r.Outward()
		pr := image.Rect(int(r.X0), int(r.Y0), int(r.X1), int(r.Y1)).Add(b.Min).Intersect(b)
		if !pr.Empty() {
			draw.Draw(dst, pr, image.Black, image.Point{}, draw.Src)
		}
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, dst)
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality})
	case "gif":
		err = gif.Encode(&buf, dst, &gif.Options{NumColors: 256, Drawer: draw.Src})
	case "tiff":
		err = tiff.Encode(&buf, dst, &tiff.Options{Compression: tiff.Deflate})
	case "bmp":
		err = bmp.Encode(&buf, dst)
	default:
		return nil, fmt.Errorf("no encoder for %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// drawable returns src when black can be painted into it exactly, and an
// RGBA copy otherwise.
func drawable(src image.Image) draw.Image {
	switch img := src.(type) {
	case *image.RGBA:
		return img
	case *image.NRGBA:
		return img
	case *image.Gray:
		return img
	case *image.Paletted:
		for _, c := range img.Palette {
			if r, g, b, a := c.RGBA(); r == 0 && g == 0 && b == 0 && a == 0xffff {
				return img
			}
		}
	}
	rgba := image.NewRGBA(src.Bounds())
	draw.Draw(rgba, rgba.Bounds(), src, src.Bounds().Min, draw.Src)
	return rgba
}
