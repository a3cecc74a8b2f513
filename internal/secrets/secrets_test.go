// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pii-masker/internal/logging"
	"github.com/pdiddy/pii-masker/pkg/types"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T) string
		want   map[string]string
		errMsg string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, AnthropicKey, "  sk-ant-abc123  \n")
				writeFile(t, dir, EmbeddingKey, "emb_xyz789")
				return dir
			},
			want: map[string]string{
				AnthropicKey: "sk-ant-abc123",
				EmbeddingKey: "emb_xyz789",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "ignores dotfiles, blank files and directories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, AnthropicKey, "valid-key")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, "blank-key", "   \n\t  ")
				require.NoError(t, os.Mkdir(filepath.Join(dir, EmbeddingKey), 0o755))
				return dir
			},
			want: map[string]string{AnthropicKey: "valid-key"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.setup(t)
			got, err := Load(dir, logging.Discard())
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	badPath := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	got, err := Load(dir, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, "value123", got["good-key"])
	_, hasBad := got["bad-key"]
	assert.False(t, hasBad, "unreadable file should not appear in result")
}

func TestApply(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.Guidance.EmbeddingAPIKey = "from-config"
	used := Apply(&cfg, map[string]string{AnthropicKey: "sk-ant", EmbeddingKey: "from-file"})
	assert.Equal(t, []string{AnthropicKey}, used)
	assert.Equal(t, "sk-ant", cfg.Policy.APIKey)
	assert.Equal(t, "from-config", cfg.Guidance.EmbeddingAPIKey, "explicit values win")

	assert.Empty(t, Apply(&cfg, nil))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
