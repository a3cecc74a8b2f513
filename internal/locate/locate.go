// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package locate resolves entity occurrences to page regions. A supplied
// OCR bbox is trusted after validation and clamping; otherwise the page
// text layer is searched for the requested instance of the text.
package locate

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/pii-masker/internal/document"
	"github.com/pdiddy/pii-masker/pkg/types"
)

// Result is the outcome for one occurrence: regions on success, a
// failure otherwise.
type Result struct {
	Regions []types.Region
	Failure *types.LocateFailure
}

// OK reports whether the occurrence was resolved.
func (r Result) OK() bool { return r.Failure == nil }

// Locator resolves occurrences against a parsed document. It never
// modifies the document.
type Locator struct {
	// Workers bounds the number of occurrences resolved at once.
	Workers int
}

// New returns a Locator resolving up to workers occurrences concurrently.
func New(workers int) *Locator {
	if workers < 1 {
		workers = 1
	}
	return &Locator{Workers: workers}
}

// Locate resolves every occurrence and returns results in input order.
// Failures are per occurrence. A cancelled context leaves the remaining
// occurrences with a not_found failure naming the cancellation.
func (l *Locator) Locate(ctx context.Context, doc *document.Document, occs []types.Occurrence) []Result {
	out := make([]Result, len(occs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(l.Workers, 1))
	for i, occ := range occs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				out[i] = fail(types.ReasonNotFound, "%v", err)
				return nil
			}
			out[i] = One(doc, occ)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// One resolves a single occurrence.
func One(doc *document.Document, occ types.Occurrence) Result {
	if occ.BBox != nil {
		return byBBox(doc, occ)
	}
	return byText(doc, occ)
}

func byBBox(doc *document.Document, occ types.Occurrence) Result {
	idx := 0
	if occ.PageHint != nil {
		idx = *occ.PageHint
	}
	page := doc.Page(idx)
	if page == nil {
		return fail(types.ReasonPageOutOfRange, "page %d of %d", idx, len(doc.Pages))
	}
	field := occ.FieldText
	if field == "" {
		field = occ.Text
	}
	if field == "" {
		return fail(types.ReasonEmptyFieldText, "")
	}

	want := occ.BBox.Normalize()
	got := want.Clamp(page.Bounds())
	if got.Empty() {
		return fail(types.ReasonOutOfBounds, "bbox %s outside page %d", want, idx)
	}
	return Result{Regions: []types.Region{{
		PageIndex: idx,
		BBox:      got,
		Source:    types.SourceOCR,
		Degraded:  got != want,
	}}}
}

func byText(doc *document.Document, occ types.Occurrence) Result {
	if occ.Text == "" {
		return fail(types.ReasonNotFound, "empty text")
	}
	if occ.InstanceIndex < 0 {
		return fail(types.ReasonNotFound, "negative instance index %d", occ.InstanceIndex)
	}

	pages := doc.Pages
	if occ.PageHint != nil {
		page := doc.Page(*occ.PageHint)
		if page == nil {
			return fail(types.ReasonPageOutOfRange, "page %d of %d", *occ.PageHint, len(doc.Pages))
		}
		pages = []*document.Page{page}
	}

	seen := 0
	for _, page := range pages {
		spans := page.Find(occ.Text)
		if occ.InstanceIndex < seen+len(spans) {
			sp := spans[occ.InstanceIndex-seen]
			var regions []types.Region
			for _, box := range page.Boxes(sp) {
				regions = append(regions, types.Region{
					PageIndex: page.Index,
					BBox:      box.Clamp(page.Bounds()),
					Source:    types.SourceTextSearch,
				})
			}
			return Result{Regions: regions}
		}
		seen += len(spans)
	}
	return fail(types.ReasonNotFound, "instance %d of %d", occ.InstanceIndex, seen)
}

func fail(reason types.LocateReason, format string, args ...any) Result {
	f := &types.LocateFailure{Reason: reason}
	if format != "" {
		f.Detail = fmt.Sprintf(format, args...)
	}
	return Result{Failure: f}
}
