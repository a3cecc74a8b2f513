// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pii-masker/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text...]",
	Short: "Detect personal information and decide how to treat it",
	Long: `Analyze runs the recognizer over text given as arguments, read from
--text-file, or extracted from a document with --file (PDF text layer, or
OCR for scanned images). With --decide every entity also gets a masking
decision based on the business context flags and the guidance corpus.`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.String("file", "", "extract text from this PDF or image")
	f.String("text-file", "", "read plain text from this file")
	f.String("ocr-json", "", "JSON array of OCR tokens for the text")
	f.Bool("decide", false, "decide mask, partial_mask or keep per entity")
	f.Bool("json", false, "output the analysis as JSON")
	contextFlags(f)

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	file, _ := cmd.Flags().GetString("file")
	textFile, _ := cmd.Flags().GetString("text-file")
	ocrFile, _ := cmd.Flags().GetString("ocr-json")
	decide, _ := cmd.Flags().GetBool("decide")
	jsonOut, _ := cmd.Flags().GetBool("json")

	req := types.AnalysisRequest{EnableRAG: decide, Context: contextFromFlags(cmd)}
	switch {
	case file != "":
		ex, err := current.extractor(ctx).Extract(ctx, file)
		if err != nil {
			return err
		}
		req.Text, req.OCR = ex.Text, ex.Tokens
	case textFile != "":
		data, err := os.ReadFile(textFile)
		if err != nil {
			return fmt.Errorf("reading %s: %w", textFile, err)
		}
		req.Text = string(data)
	case len(args) > 0:
		req.Text = strings.Join(args, " ")
	default:
		return fmt.Errorf("provide text, --text-file or --file")
	}
	if ocrFile != "" {
		data, err := os.ReadFile(ocrFile)
		if err != nil {
			return fmt.Errorf("reading %s: %w", ocrFile, err)
		}
		if err := json.Unmarshal(data, &req.OCR); err != nil {
			return fmt.Errorf("decoding OCR tokens: %w", err)
		}
	}

	orch, err := current.orchestrator(ctx, decide)
	if err != nil {
		return err
	}
	resp, err := orch.Analyze(ctx, req, current.actor)
	if err != nil {
		return err
	}

	if jsonOut {
		return writeJSON(resp)
	}
	fmt.Println(renderEntities(resp.Entities))
	for _, w := range resp.Warnings {
		fmt.Println(warnStyle.Render("warning: " + w))
	}
	return nil
}
