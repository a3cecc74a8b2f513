// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package document parses source files into pages with geometry and a
// text layer. PDFs get their text layer from the content stream; raster
// images get one from OCR tokens attached after loading.
package document

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/pii-masker/pkg/types"
)

// Kind is the broad class of a document.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
)

// Document is a parsed, read-only view of a source file.
type Document struct {
	Path   string
	Name   string
	Kind   Kind
	Format string
	Pages  []*Page
}

// Load parses the file at path. The kind is sniffed from the content,
// not the extension.
func Load(path string) (*Document, error) {
	head, err := readHead(path, 1024)
	if err != nil {
		return nil, err
	}
	doc := &Document{Path: path, Name: filepath.Base(path)}
	if bytes.Contains(head, []byte("%PDF-")) {
		doc.Kind, doc.Format = KindPDF, "pdf"
		if err := doc.loadPDF(); err != nil {
			return nil, err
		}
		return doc, nil
	}

	cfg, format, err := rasterConfig(path)
	if err != nil {
		return nil, fmt.Errorf("unsupported document %s: %w", doc.Name, err)
	}
	doc.Kind, doc.Format = KindImage, format
	doc.Pages = []*Page{{Index: 0, Width: float64(cfg.Width), Height: float64(cfg.Height)}}
	return doc, nil
}

func (d *Document) loadPDF() error {
	f, err := OpenPDF(d.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	for i := range f.Pages {
		scan, err := f.Scan(i)
		if err != nil {
			return err
		}
		d.Pages = append(d.Pages, newPDFPage(i, scan))
	}
	return nil
}

// AttachOCR replaces the text layer of raster pages with one built from
// the OCR tokens. PDF pages are left alone.
func (d *Document) AttachOCR(tokens []types.OCRToken) {
	if d.Kind != KindImage {
		return
	}
	for i, p := range d.Pages {
		d.Pages[i] = newOCRPage(p.Index, p.Width, p.Height, tokens)
	}
}

// Text returns the text layers of all pages separated by form feeds.
func (d *Document) Text() string {
	parts := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		parts[i] = p.Text()
	}
	return strings.Join(parts, "\f")
}

// Page returns page i or nil when out of range.
func (d *Document) Page(i int) *Page {
	if i < 0 || i >= len(d.Pages) {
		return nil
	}
	return d.Pages[i]
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	k, err := f.Read(buf)
	if err != nil && k == 0 {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return buf[:k], nil
}
