// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pii-masker/internal/audit"
	"github.com/pdiddy/pii-masker/pkg/types"
)

var emailCmd = &cobra.Command{
	Use:   "email",
	Short: "Store and fetch masked outbound emails",
}

var emailSaveCmd = &cobra.Command{
	Use:   "save <draft.yaml>",
	Short: "Record an outbound email with its masked attachments",
	Long: `Save reads an email draft (from, to, subject, body, attachments and the
analyzed pii_entities of the body) and records it. Attachments name files in
the upload directory; their masked_ copies are stored when they exist.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		var draft types.EmailDraft
		if err := yaml.Unmarshal(data, &draft); err != nil {
			return fmt.Errorf("decoding %s: %w", args[0], err)
		}
		if draft.From == "" || len(draft.To) == 0 {
			return fmt.Errorf("%s: from and to are required", args[0])
		}

		art, err := current.artifacts()
		if err != nil {
			return err
		}
		st, err := current.store()
		if err != nil {
			return err
		}
		rec, err := st.SaveMaskedEmail(cmd.Context(), art, draft)
		if err != nil {
			return err
		}
		current.audit.Emit(audit.Event{
			Type:         audit.EventEmailSaved,
			Actor:        current.actor,
			Action:       fmt.Sprintf("masked email saved: %d attachment(s)", len(rec.Attachments)),
			ResourceType: "email",
			ResourceID:   rec.ID,
			Success:      true,
			Details: map[string]any{
				"attachment_count": len(rec.Attachments),
				"masked_by_type":   rec.MaskedByType,
				"run_id":           rec.RunID,
			},
		})
		fmt.Println(rec.ID)
		return nil
	},
}

var emailGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a stored masked email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := current.store()
		if err != nil {
			return err
		}
		rec, err := st.GetMaskedEmail(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if json, _ := cmd.Flags().GetBool("json"); json {
			return writeJSON(rec)
		}
		fmt.Print(renderEmail(rec))
		return nil
	},
}

func init() {
	emailGetCmd.Flags().Bool("json", false, "output the record, attachments included, as JSON")

	emailCmd.AddCommand(emailSaveCmd)
	emailCmd.AddCommand(emailGetCmd)
	rootCmd.AddCommand(emailCmd)
}
