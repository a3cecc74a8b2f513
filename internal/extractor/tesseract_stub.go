// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build !ocr

package extractor

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/pdiddy/pii-masker/pkg/types"
)

// ErrOCRNotEnabled is returned by the in-process backend when the binary
// was built without the ocr tag.
var ErrOCRNotEnabled = errors.New("in-process OCR not enabled; rebuild with -tags ocr or use the container backend")

// Tesseract is unavailable in this build.
type Tesseract struct{}

// NewTesseract always fails with ErrOCRNotEnabled.
func NewTesseract(string) (*Tesseract, error) {
	return nil, ErrOCRNotEnabled
}

// Recognize always fails with ErrOCRNotEnabled.
func (*Tesseract) Recognize(context.Context, string) ([]types.OCRToken, error) {
	return nil, ErrOCRNotEnabled
}
