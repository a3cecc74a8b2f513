// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extractor turns source documents into text plus positioned
// word tokens. PDFs are read from their text layer; raster images go
// through an OCR backend, either an in-process tesseract or a tesseract
// container run by docker or podman.
package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/pii-masker/internal/container"
	"github.com/pdiddy/pii-masker/internal/document"
	"github.com/pdiddy/pii-masker/pkg/types"
)

// Extraction is the text of a document and the words that make it up.
// Page texts in Text are separated by form feeds, as in the document
// package, so recognizer offsets line up with what the locator searches.
type Extraction struct {
	Text   string           `json:"text"`
	Pages  int              `json:"pages"`
	Tokens []types.OCRToken `json:"tokens,omitempty"`

	// Scanned is set when the tokens came from OCR.
	Scanned bool `json:"scanned"`
}

// Extractor produces an Extraction for the file at path. Implementations
// return the same result for the same bytes.
type Extractor interface {
	Extract(ctx context.Context, path string) (Extraction, error)
}

// OCR recognizes words on a single raster image.
type OCR interface {
	Recognize(ctx context.Context, path string) ([]types.OCRToken, error)
}

// NativeExtractor reads PDF text layers directly and hands raster images
// to its OCR backend. A nil OCR rejects raster input.
type NativeExtractor struct {
	OCR OCR
}

// Extract implements Extractor.
func (n *NativeExtractor) Extract(ctx context.Context, path string) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}
	doc, err := document.Load(path)
	if err != nil {
		return Extraction{}, err
	}
	if doc.Kind == document.KindImage {
		if n.OCR == nil {
			return Extraction{}, fmt.Errorf("%s is a %s image and no OCR backend is configured", doc.Name, doc.Format)
		}
		tokens, err := n.OCR.Recognize(ctx, path)
		if err != nil {
			return Extraction{}, fmt.Errorf("recognizing %s: %w", doc.Name, err)
		}
		doc.AttachOCR(tokens)
		return Extraction{Text: doc.Text(), Pages: len(doc.Pages), Tokens: tokens, Scanned: true}, nil
	}

	ex := Extraction{Text: doc.Text(), Pages: len(doc.Pages)}
	for _, p := range doc.Pages {
		ex.Tokens = append(ex.Tokens, p.Words()...)
	}
	return ex, nil
}

// New builds the extractor selected by cfg. Backend "none" disables OCR;
// "tesseract" needs a binary built with the ocr tag; "container" needs a
// working docker or podman with the configured image pulled.
func New(ctx context.Context, cfg types.OCRConfig) (*NativeExtractor, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "none":
		return &NativeExtractor{}, nil
	case "tesseract":
		t, err := NewTesseract(cfg.Languages)
		if err != nil {
			return nil, err
		}
		return &NativeExtractor{OCR: t}, nil
	case "container":
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			return nil, err
		}
		c, err := NewContainerOCR(ctx, rt, cfg.Image, cfg.Languages)
		if err != nil {
			return nil, err
		}
		return &NativeExtractor{OCR: c}, nil
	default:
		return nil, fmt.Errorf("unknown OCR backend %q", cfg.Backend)
	}
}
