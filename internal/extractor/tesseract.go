// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build ocr

package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/pdiddy/pii-masker/pkg/types"
)

// Tesseract runs the tesseract library in process. A client is created
// per call because gosseract clients are not safe for concurrent use.
type Tesseract struct {
	languages []string
}

// NewTesseract returns an in-process OCR backend for the "+"-separated
// language list.
func NewTesseract(languages string) (*Tesseract, error) {
	if languages == "" {
		languages = "eng"
	}
	return &Tesseract{languages: strings.Split(languages, "+")}, nil
}

// Recognize implements OCR.
func (t *Tesseract) Recognize(ctx context.Context, path string) ([]types.OCRToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("setting languages: %w", err)
	}
	if err := client.SetImage(path); err != nil {
		return nil, fmt.Errorf("loading image: %w", err)
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("recognizing words: %w", err)
	}

	out := make([]types.OCRToken, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		out = append(out, types.OCRToken{
			BBox: types.Rect{
				X0: float64(b.Box.Min.X), Y0: float64(b.Box.Min.Y),
				X1: float64(b.Box.Max.X), Y1: float64(b.Box.Max.Y),
			},
			Text: text,
			Conf: clampConf(b.Confidence / 100),
		})
	}
	return out, nil
}
