// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pii-masker CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the pii-masker CLI.
var rootCmd = &cobra.Command{
	Use:   "pii-masker",
	Short: "Detect and redact personal information in outbound documents",
	Long: `pii-masker finds personal information in PDFs and scanned images, decides
per occurrence whether it may leave the organization, and writes redacted
copies named masked_<file> next to the originals.

Decisions consult a local corpus of compliance guides and statutes, and
either default rules or Claude. Every run is recorded in a local store and
in an append-only audit log.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		current = a
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	cobra.OnFinalize(func() {
		if current != nil {
			current.close()
		}
	})

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./pii-masker.yaml or ~/.config/pii-masker/config.yaml)")
	pf.String("upload-dir", "", "artifact directory holding originals and masked_ outputs")
	pf.String("store-dir", "", "directory of the run store")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "console log format: text or json")
	pf.String("audit-log", "", "JSONL audit log path (empty disables the file sink)")
	pf.String("metrics-file", "", "write Prometheus metrics to this file on exit")
	pf.String("actor", "", "who is running the command, recorded on runs and audit events")

	for flag, key := range map[string]string{
		"upload-dir": "masking.upload_dir",
		"store-dir":  "store.dir",
		"log-level":  "logging.level",
		"log-format": "logging.format",
		"audit-log":  "audit.path",
	} {
		_ = viper.BindPFlag(key, pf.Lookup(flag))
	}
}

func initConfig() {
	registerDefaults(viper.GetViper())

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pii-masker")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pii-masker"))
		}
	}

	bindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
