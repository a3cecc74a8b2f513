// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pii-masker/internal/maskerr"
	"github.com/pdiddy/pii-masker/pkg/types"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.StoreConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string, started time.Time) types.RunResult {
	return types.RunResult{
		RunID:      id,
		Actor:      "alice@example.com",
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Files: map[string]types.FileOutcome{
			"a.pdf": {Filename: "a.pdf", Status: types.StatusDone, Stage: types.StageDone, Artifact: "masked_a.pdf", Redacted: 2},
			"b.pdf": {Filename: "b.pdf", Status: types.StatusFailed, Stage: types.StagePending, Reason: "file not found"},
		},
	}
}

func TestRunRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveRun(ctx, sampleRun("run-1", start)))
	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Actor)
	assert.True(t, got.StartedAt.Equal(start))
	assert.Equal(t, "file not found", got.Files["b.pdf"].Reason)
	assert.Equal(t, []string{"masked_a.pdf"}, got.Artifacts())

	// Saving again replaces the record.
	again := sampleRun("run-1", start)
	again.Actor = "bob@example.com"
	require.NoError(t, s.SaveRun(ctx, again))
	got, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", got.Actor)
}

func TestGetRunMissing(t *testing.T) {
	_, err := openStore(t).GetRun(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNoRecord))
}

func TestSaveRunFailures(t *testing.T) {
	s := openStore(t)
	err := s.SaveRun(context.Background(), types.RunResult{})
	assert.True(t, errors.Is(err, maskerr.ErrPersistence))

	require.NoError(t, s.Close())
	err = s.SaveRun(context.Background(), sampleRun("run-2", time.Now()))
	assert.True(t, errors.Is(err, maskerr.ErrPersistence))
}

func TestListRuns(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRun(ctx, sampleRun("old", base)))
	require.NoError(t, s.SaveRun(ctx, sampleRun("new", base.Add(500*time.Millisecond))))
	require.NoError(t, s.SaveRun(ctx, sampleRun("newest", base.Add(time.Hour))))

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newest", runs[0].RunID)
	assert.Equal(t, "new", runs[1].RunID)
	assert.Equal(t, 1, runs[0].Done)
	assert.Equal(t, 1, runs[0].Failed)
}

func TestArtifacts(t *testing.T) {
	a, err := NewArtifacts(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(a.Dir, "scan.png"), []byte("png"), 0o644))

	p, err := a.Source("scan.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(a.Dir, "scan.png"), p)

	_, err = a.Source("missing.pdf")
	assert.True(t, errors.Is(err, maskerr.ErrNotFound))

	for _, bad := range []string{"", ".", "..", "../etc/passwd", "sub/a.pdf", "/abs.pdf", `..\a.pdf`} {
		_, err := a.Source(bad)
		assert.True(t, errors.Is(err, ErrUnsafeName), "name %q", bad)
		_, err = a.Output(bad)
		assert.Error(t, err, "name %q", bad)
	}

	out, err := a.Output("scan.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(a.Dir, "masked_scan.png"), out)

	_, ok := a.Masked("scan.png")
	assert.False(t, ok)
	require.NoError(t, os.WriteFile(out, []byte("masked"), 0o644))
	p, ok = a.Masked("scan.png")
	assert.True(t, ok)
	assert.Equal(t, out, p)
}

func TestMaskedEmail(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	a, err := NewArtifacts(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(a.Dir, "id.pdf"), []byte("original pdf"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(a.Dir, "masked_id.pdf"), []byte("masked pdf"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(a.Dir, "photo.JPG"), []byte("jpeg"), 0o644))

	keep := types.Decision{Action: types.ActionKeep}
	mask := types.Decision{Action: types.ActionMask}
	partial := types.Decision{Action: types.ActionPartialMask}
	draft := types.EmailDraft{
		From:        "hr@example.com",
		To:          []string{"partner@example.org"},
		Subject:     "Onboarding",
		Body:        "Phone 010-****-****",
		Attachments: []string{"id.pdf", "photo.JPG"},
		Entities: []types.AnalyzedEntity{
			{Entity: types.Entity{Type: types.PiiPhone}, Decision: &mask},
			{Entity: types.Entity{Type: types.PiiPhone}, Decision: &partial},
			{Entity: types.Entity{Type: types.PiiEmail}, Decision: &keep},
			{Entity: types.Entity{Type: types.PiiNationalID}},
		},
		RunID: "run-9",
	}

	rec, err := s.SaveMaskedEmail(ctx, a, draft)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, map[types.PiiType]int{types.PiiPhone: 2, types.PiiNationalID: 1}, rec.MaskedByType)

	got, err := s.GetMaskedEmail(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "hr@example.com", got.From)
	assert.Equal(t, []string{"partner@example.org"}, got.To)
	assert.Equal(t, "run-9", got.RunID)
	assert.Equal(t, rec.MaskedByType, got.MaskedByType)
	require.Len(t, got.Attachments, 2)

	pdf := got.Attachments[0]
	assert.True(t, pdf.Masked)
	assert.Equal(t, "application/pdf", pdf.ContentType)
	raw, err := base64.StdEncoding.DecodeString(pdf.Data)
	require.NoError(t, err)
	assert.Equal(t, "masked pdf", string(raw), "masked copy is preferred")

	jpg := got.Attachments[1]
	assert.False(t, jpg.Masked)
	assert.Equal(t, "image/jpeg", jpg.ContentType)
	assert.Equal(t, int64(4), jpg.Size)

	t.Run("missing attachment", func(t *testing.T) {
		d := draft
		d.Attachments = []string{"gone.pdf"}
		_, err := s.SaveMaskedEmail(ctx, a, d)
		assert.True(t, errors.Is(err, maskerr.ErrNotFound))
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := s.GetMaskedEmail(ctx, "nope")
		assert.True(t, errors.Is(err, ErrNoRecord))
	})
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType("a.PNG"))
	assert.Equal(t, "application/octet-stream", ContentType("notes.txt"))
}
