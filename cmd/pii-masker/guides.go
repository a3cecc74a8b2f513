// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pii-masker/internal/guidance"
	"github.com/pdiddy/pii-masker/pkg/types"
)

var guidesCmd = &cobra.Command{
	Use:   "guides",
	Short: "Manage the guidance corpus index (ingest, retrieve, watch)",
	Long: `Guides indexes the compliance guides and statutory passages that masking
decisions cite. Corpus files are YAML or TOML files in the corpus directory,
each holding a list of passages.`,
}

var guidesIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index corpus files; unchanged files are skipped",
	RunE: func(cmd *cobra.Command, args []string) error {
		gs, err := current.guidance()
		if err != nil {
			return err
		}
		sum, err := gs.Ingest(cmd.Context(), os.Stdout)
		if err != nil {
			return err
		}
		if sum.Failed > 0 {
			return fmt.Errorf("%d corpus file(s) failed indexing", sum.Failed)
		}
		return nil
	},
}

var guidesRetrieveCmd = &cobra.Command{
	Use:   "retrieve <query>",
	Short: "Show the passages most similar to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGuidesRetrieve,
}

func runGuidesRetrieve(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("kind")
	tags, _ := cmd.Flags().GetStringSlice("tag")
	topK, _ := cmd.Flags().GetInt("top-k")
	jsonOut, _ := cmd.Flags().GetBool("json")

	if kind != "" && kind != string(types.PassageGuide) && kind != string(types.PassageLaw) {
		return fmt.Errorf("unsupported kind %q: use guide or law", kind)
	}

	gs, err := current.guidance()
	if err != nil {
		return err
	}
	results, err := gs.Search(cmd.Context(), guidance.QueryOptions{
		Query: strings.Join(args, " "),
		Kind:  types.PassageKind(kind),
		Tags:  tags,
		TopK:  topK,
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return writeJSON(results)
	}
	if len(results) == 0 {
		fmt.Println("No passages found.")
		return nil
	}
	t := newTable("Rank", "ID", "Kind", "Title", "Content", "Score")
	for i, p := range results {
		t.Row(fmt.Sprint(i+1), p.ID, string(p.Kind), p.Title, clip(p.Content, 60), fmt.Sprintf("%.3f", p.Score))
	}
	fmt.Println(t.String())
	return nil
}

var guidesWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-index the corpus whenever its files change",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		gs, err := current.guidance()
		if err != nil {
			return err
		}
		current.log.Info("watching guidance corpus", "dir", current.cfg.Guidance.CorpusDir)
		return gs.Watch(ctx, os.Stdout, func(sum guidance.IngestSummary, err error) {
			if err != nil {
				current.log.Error("ingest failed", "error", err)
				return
			}
			current.log.Info("ingested guidance corpus",
				"indexed", sum.Indexed, "updated", sum.Updated, "removed", sum.Removed, "failed", sum.Failed)
		})
	},
}

// clip shortens s to n runes.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	f := guidesRetrieveCmd.Flags()
	f.String("kind", "", "restrict to guide or law passages")
	f.StringSlice("tag", nil, "require this tag (repeatable)")
	f.Int("top-k", 0, "number of passages (default from config)")
	f.Bool("json", false, "output passages as JSON")

	guidesCmd.AddCommand(guidesIngestCmd)
	guidesCmd.AddCommand(guidesRetrieveCmd)
	guidesCmd.AddCommand(guidesWatchCmd)
	rootCmd.AddCommand(guidesCmd)
}
