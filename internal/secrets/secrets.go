// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets reads credentials from a directory of plain-text files,
// one secret per file named after its key, and applies them to the
// configuration where no value was given.
package secrets

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/pdiddy/pii-masker/pkg/types"
)

// Key files understood by Apply.
const (
	AnthropicKey = "anthropic-api-key"
	EmbeddingKey = "embedding-api-key"
)

// Load reads every regular, non-hidden file in dir. A missing directory
// yields an empty map. Unreadable files are logged and skipped.
func Load(dir string, log *slog.Logger) (map[string]string, error) {
	if log == nil {
		log = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, errors.Wrapf(err, "reading secrets directory %s", dir)
	}

	out := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn("skipping unreadable secret", "name", name, "error", err)
			continue
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			out[name] = v
		}
	}
	return out, nil
}

// Apply fills empty credential fields of cfg from s and returns the keys
// it used, sorted.
func Apply(cfg *types.Config, s map[string]string) []string {
	var used []string
	fill := func(dst *string, key string) {
		if *dst != "" {
			return
		}
		if v, ok := s[key]; ok {
			*dst = v
			used = append(used, key)
		}
	}
	fill(&cfg.Policy.APIKey, AnthropicKey)
	fill(&cfg.Guidance.EmbeddingAPIKey, EmbeddingKey)
	sort.Strings(used)
	return used
}
