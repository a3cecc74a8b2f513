// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pii-masker/pkg/types"
)

func TestConsoleRedactsPII(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(types.LoggingConfig{Level: "debug", Format: "text"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	log.With(PII("actor", "alice@example.com")).Debug("entity located",
		"page", 2,
		PII("text", "010-1234-5678"),
		"file", "a.pdf",
	)
	out := buf.String()
	assert.Contains(t, out, "entity located")
	assert.Contains(t, out, "page=2")
	assert.Contains(t, out, "file=a.pdf")
	assert.NotContains(t, out, "010-1234-5678")
	assert.NotContains(t, out, "alice@example.com")
	assert.Contains(t, out, "‹×›")
}

func TestFileKeepsMarkers(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "pii-masker.log")
	log, closer, err := New(types.LoggingConfig{Level: "info", Format: "json", File: path, MaxSizeMB: 1}, &console)
	require.NoError(t, err)

	log.WithGroup("entity").Info("decided", PII("text", "홍길동"), "action", "mask")
	log.Debug("below level")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(raw), []byte("\n"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	entity, ok := rec["entity"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "‹홍길동›", entity["text"])
	assert.Equal(t, "mask", entity["action"])

	assert.NotContains(t, console.String(), "홍길동")
	assert.Contains(t, console.String(), `"action":"mask"`)
}

func TestFileMarkersEveryAttrPath(t *testing.T) {
	tests := []struct {
		name string
		log  func(*slog.Logger)
		key  string
	}{
		{"record attr", func(l *slog.Logger) { l.Info("m", PII("text", "김철수")) }, "text"},
		{"with attrs", func(l *slog.Logger) { l.With(PII("actor", "김철수")).Info("m") }, "actor"},
		{"nested group", func(l *slog.Logger) { l.Info("m", slog.Group("item", PII("text", "김철수"))) }, "item"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var console bytes.Buffer
			path := filepath.Join(t.TempDir(), "pii-masker.log")
			log, closer, err := New(types.LoggingConfig{Level: "info", Format: "text", File: path, MaxSizeMB: 1}, &console)
			require.NoError(t, err)
			tt.log(log)
			require.NoError(t, closer.Close())

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			var rec map[string]any
			require.NoError(t, json.Unmarshal(bytes.TrimSpace(raw), &rec))
			v := rec[tt.key]
			if g, ok := v.(map[string]any); ok {
				v = g["text"]
			}
			assert.Equal(t, "‹김철수›", v)
			assert.NotContains(t, console.String(), "김철수")
			assert.Contains(t, console.String(), "‹×›")
		})
	}
}

func TestNewErrors(t *testing.T) {
	_, _, err := New(types.LoggingConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
	_, _, err = New(types.LoggingConfig{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestFallbackLogValue(t *testing.T) {
	v := sensitive{"secret"}.LogValue()
	assert.Equal(t, "‹×›", v.String())
}
