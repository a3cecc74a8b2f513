// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package redact burns regions out of a document and produces the bytes
// of a new file. Redacted content is removed, not just covered: glyphs
// leave the content stream and image samples are overwritten.
package redact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/pdiddy/pii-masker/internal/document"
	"github.com/pdiddy/pii-masker/internal/maskerr"
	"github.com/pdiddy/pii-masker/pkg/types"
)

// JPEGQuality is used when a JPEG image has to be re-encoded.
const JPEGQuality = 92

// lockRetry is how often ApplyFile retries a held artifact lock.
var lockRetry = 25 * time.Millisecond

// Applier redacts documents. The zero value is not usable; call New.
type Applier struct {
	locks *keyedMutex
}

// New returns an Applier.
func New() *Applier {
	return &Applier{locks: newKeyedMutex()}
}

// Apply returns the bytes of doc with every region redacted. Regions are
// in the page space of doc. With no regions the source bytes are returned
// unchanged once the source is known to parse. Errors are marked
// maskerr.ErrRedaction.
func (a *Applier) Apply(ctx context.Context, doc *document.Document, regions []types.Region) ([]byte, error) {
	src, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, maskerr.Redaction(err, "reading %s", doc.Name)
	}

	byPage := map[int][]types.Rect{}
	for _, r := range regions {
		if doc.Page(r.PageIndex) == nil {
			return nil, maskerr.Redactionf("region on page %d of %s: page does not exist", r.PageIndex, doc.Name)
		}
		byPage[r.PageIndex] = append(byPage[r.PageIndex], r.BBox)
	}

	if len(regions) == 0 {
		if err := validate(doc); err != nil {
			return nil, maskerr.Redaction(err, "parsing %s", doc.Name)
		}
		return src, nil
	}

	var out []byte
	switch doc.Kind {
	case document.KindPDF:
		out, err = redactPDF(ctx, doc.Path, byPage)
	case document.KindImage:
		out, err = redactRaster(doc.Path, byPage)
	default:
		return nil, maskerr.Redactionf("unsupported document kind %q", doc.Kind)
	}
	if err != nil {
		return nil, maskerr.Redaction(err, "redacting %s", doc.Name)
	}
	return out, nil
}

func validate(doc *document.Document) error {
	switch doc.Kind {
	case document.KindPDF:
		f, err := document.OpenPDF(doc.Path)
		if err != nil {
			return err
		}
		return f.Close()
	case document.KindImage:
		_, _, err := document.DecodeRaster(doc.Path)
		return err
	}
	return fmt.Errorf("unsupported document kind %q", doc.Kind)
}

// ApplyFile redacts doc and writes the result to outPath through a temp
// file and rename. Writers of the same artifact are serialized within the
// process and across processes.
func (a *Applier) ApplyFile(ctx context.Context, doc *document.Document, regions []types.Region, outPath string) error {
	data, err := a.Apply(ctx, doc, regions)
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(outPath)
	if err != nil {
		return maskerr.Redaction(err, "resolving %s", outPath)
	}
	unlock := a.locks.Lock(abs)
	defer unlock()

	dir, base := filepath.Split(abs)
	fl := flock.New(filepath.Join(dir, "."+base+".lock"))
	locked, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil || !locked {
		if err == nil {
			err = ctx.Err()
		}
		return maskerr.Redaction(err, "locking %s", base)
	}
	defer fl.Unlock()

	if err := writeAtomic(abs, data); err != nil {
		return maskerr.Redaction(err, "writing %s", base)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".masked-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*refMutex{}}
}

// Lock blocks until key is free and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func sortedPages(byPage map[int][]types.Rect) []int {
	pages := make([]int, 0, len(byPage))
	for p := range byPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}
