// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package guidance

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchDebounce is how long Watch waits after the last corpus change
// before re-ingesting.
var WatchDebounce = 500 * time.Millisecond

// Watch ingests once, then re-ingests whenever a corpus file in the
// corpus directory is written, created, renamed or removed. It returns
// when ctx is done. Each ingest reports to w; onIngest, when set, is
// called after every ingest.
func (s *Store) Watch(ctx context.Context, w io.Writer, onIngest func(IngestSummary, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.corpusDir); err != nil {
		return fmt.Errorf("watching %s: %w", s.corpusDir, err)
	}

	ingest := func() {
		sum, err := s.Ingest(ctx, w)
		if onIngest != nil {
			onIngest(sum, err)
		}
	}
	ingest()

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isCorpusFile(filepath.Base(ev.Name)) || ev.Op == fsnotify.Chmod {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(WatchDebounce)
			pending = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "watch error: %v\n", err)
		case <-pending:
			pending = nil
			ingest()
		}
	}
}
