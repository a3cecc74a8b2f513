// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.FileFinished("done")
	m.FileFinished("done")
	m.FileFinished("failed")
	m.Located("ocr")
	m.Unresolved("not_found")
	m.Decided("mask", false)
	m.Decided("mask", true)
	m.Redacted(3)
	m.Redacted(0)
	m.ObserveStage("redacting", 20*time.Millisecond)
	m.AuditDropped()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.files.WithLabelValues("done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.files.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisions.WithLabelValues("mask")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.redacted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.auditDrops))
	assert.Equal(t, 1, testutil.CollectAndCount(m.stages))
}

func TestWriteFile(t *testing.T) {
	m := NewMetrics()
	m.FileFinished("done")
	path := filepath.Join(t.TempDir(), "pii_masker.prom")
	require.NoError(t, m.WriteFile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `pii_masker_files_total{status="done"} 1`)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FileFinished("done")
		m.Located("ocr")
		m.Unresolved("x")
		m.Decided("keep", true)
		m.Redacted(1)
		m.ObserveStage("x", time.Second)
		m.AuditDropped()
	})
	assert.NoError(t, m.WriteFile(filepath.Join(t.TempDir(), "x.prom")))
	assert.Nil(t, m.Registry())
}

func TestStartSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "mask.file", "file", "a.pdf", "dangling")
	defer span.End()
	assert.NotNil(t, ctx)
}
