// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pii-masker/pkg/types"
)

// registerDefaults makes every key of types.DefaultConfig known to v, so
// that PII_MASKER_* environment variables override them.
func registerDefaults(v *viper.Viper) {
	raw, err := yaml.Marshal(types.DefaultConfig())
	if err != nil {
		panic(fmt.Sprintf("encoding default config: %v", err))
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		panic(fmt.Sprintf("decoding default config: %v", err))
	}
	setDefaults(v, "", tree)
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// bindEnv reads overrides from PII_MASKER_* variables: masking.upload_dir
// comes from PII_MASKER_MASKING_UPLOAD_DIR.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("PII_MASKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Credentials have no default, so they are bound explicitly.
	_ = v.BindEnv("policy.api_key")
	_ = v.BindEnv("guidance.embedding_api_key")
}

// loadConfig decodes the merged defaults, config file, environment and
// bound flags.
func loadConfig(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	return cfg, nil
}
