// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pii-masker/pkg/types"
)

func TestLoadConfigDefaults(t *testing.T) {
	v := viper.New()
	registerDefaults(v)
	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultConfig(), cfg)
}

func TestLoadConfigLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pii-masker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
masking:
  upload_dir: /srv/uploads
  decision_timeout: 5s
policy:
  reasoner: claude
  model: claude-test
guidance:
  top_k: 3
`), 0o644))

	t.Setenv("PII_MASKER_STORE_DIR", "/var/lib/pii-masker")
	t.Setenv("PII_MASKER_POLICY_API_KEY", "sk-ant-env")

	v := viper.New()
	registerDefaults(v)
	v.SetConfigFile(path)
	bindEnv(v)
	require.NoError(t, v.ReadInConfig())

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "/srv/uploads", cfg.Masking.UploadDir)
	assert.Equal(t, 5*time.Second, cfg.Masking.DecisionTimeout)
	assert.Equal(t, 4, cfg.Masking.FileWorkers, "untouched keys keep defaults")
	assert.Equal(t, "claude", cfg.Policy.Reasoner)
	assert.Equal(t, "claude-test", cfg.Policy.Model)
	assert.Equal(t, 3, cfg.Policy.MaxRetries)
	assert.Equal(t, 3, cfg.Guidance.TopK)
	assert.Equal(t, 30*time.Second, cfg.Guidance.Timeout)
	assert.Equal(t, "/var/lib/pii-masker", cfg.Store.Dir)
	assert.Equal(t, "sk-ant-env", cfg.Policy.APIKey)
}
