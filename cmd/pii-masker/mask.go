// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pii-masker/internal/mask"
	"github.com/pdiddy/pii-masker/pkg/types"
)

var maskCmd = &cobra.Command{
	Use:   "mask [files...]",
	Short: "Redact personal information and write masked_<file> artifacts",
	Long: `Mask redacts the occurrences listed in --items (YAML or JSON, one entry per
occurrence with filename, pii_type, text, page_index, instance_index and an
optional bbox). With --detect the occurrences are found by running the
recognizer over the named files instead.

Files are resolved inside the upload directory. Each file succeeds or
fails on its own; the run is saved to the run store.`,
	RunE: runMask,
}

func init() {
	f := maskCmd.Flags()
	f.String("items", "", "YAML or JSON file listing the occurrences to mask")
	f.Bool("detect", false, "find occurrences in the named files with the recognizer")
	f.Bool("decide", false, "decide per occurrence instead of masking everything (needs context flags)")
	f.String("run-id", "", "use this run id instead of a generated one")
	f.Bool("json", false, "output the run result as JSON")
	contextFlags(f)

	rootCmd.AddCommand(maskCmd)
}

func runMask(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	itemsFile, _ := cmd.Flags().GetString("items")
	detect, _ := cmd.Flags().GetBool("detect")
	decide, _ := cmd.Flags().GetBool("decide")
	runID, _ := cmd.Flags().GetString("run-id")
	jsonOut, _ := cmd.Flags().GetBool("json")

	orch, err := current.orchestrator(ctx, decide)
	if err != nil {
		return err
	}

	var items []types.PIIItem
	switch {
	case itemsFile != "":
		if items, err = readItems(itemsFile); err != nil {
			return err
		}
	case detect && len(args) > 0:
		ex := current.extractor(ctx)
		for _, name := range args {
			src, err := orch.Artifacts.Source(name)
			if err != nil {
				return err
			}
			out, err := ex.Extract(ctx, src)
			if err != nil {
				return fmt.Errorf("extracting %s: %w", name, err)
			}
			ents := orch.Recognizer.Recognize(out.Text, out.Tokens)
			current.log.Info("detected entities", "file", name, "entities", len(ents), "scanned", out.Scanned)
			items = append(items, mask.ItemsFromEntities(name, out.Text, ents)...)
		}
	default:
		return fmt.Errorf("provide --items, or --detect with file names")
	}
	if len(items) == 0 {
		fmt.Println("Nothing to mask.")
		return nil
	}

	res, err := orch.Run(ctx, mask.Request{
		Items:   items,
		Context: contextFromFlags(cmd),
		Decide:  decide,
		Actor:   current.actor,
		RunID:   runID,
	})
	if jsonOut {
		if jerr := writeJSON(res); jerr != nil {
			return jerr
		}
	} else {
		fmt.Println(renderRun(res))
	}
	if err != nil {
		return err
	}
	if _, failed := res.Counts(); failed > 0 {
		return fmt.Errorf("%d file(s) failed masking", failed)
	}
	return nil
}

// readItems decodes a YAML or JSON list of items.
func readItems(path string) ([]types.PIIItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var items []types.PIIItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	for i, it := range items {
		if it.Filename == "" || it.Text == "" {
			return nil, fmt.Errorf("%s: item %d needs filename and text", path, i)
		}
		items[i].Type = types.ParsePiiType(string(it.Type))
	}
	return items, nil
}
