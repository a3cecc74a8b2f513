// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pdiddy/pii-masker/internal/policy"
	"github.com/pdiddy/pii-masker/internal/store"
	"github.com/pdiddy/pii-masker/pkg/types"
)

var (
	colorMuted = lipgloss.AdaptiveColor{Light: "#6C6C6C", Dark: "#8A8A8A"}
	colorPass  = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#81C784"}
	colorWarn  = lipgloss.AdaptiveColor{Light: "#EF6C00", Dark: "#FFB74D"}
	colorFail  = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#E57373"}

	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	passStyle   = lipgloss.NewStyle().Foreground(colorPass)
	warnStyle   = lipgloss.NewStyle().Foreground(colorWarn)
	failStyle   = lipgloss.NewStyle().Foreground(colorFail)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func actionStyle(a types.Action) lipgloss.Style {
	switch a {
	case types.ActionMask:
		return failStyle
	case types.ActionPartialMask:
		return warnStyle
	case types.ActionKeep:
		return passStyle
	}
	return lipgloss.NewStyle()
}

// renderEntities prints entity values only as masked previews.
func renderEntities(ents []types.AnalyzedEntity) string {
	if len(ents) == 0 {
		return "No personal information found."
	}
	t := newTable("#", "Type", "Value", "Score", "Offset", "Action", "Confidence", "Cites")
	for i, e := range ents {
		action, conf, cites := "-", "-", ""
		if d := e.Decision; d != nil {
			action = actionStyle(d.Action).Render(string(d.Action))
			if d.Fallback {
				action += " " + warnStyle.Render("(fallback)")
			}
			conf = fmt.Sprintf("%.2f", d.Confidence)
			cites = strings.Join(d.Citations(), ", ")
		}
		t.Row(
			fmt.Sprint(i+1),
			string(e.Type),
			policy.Preview(e.Text),
			fmt.Sprintf("%.2f", e.Score),
			fmt.Sprintf("%d-%d", e.StartChar, e.EndChar),
			action,
			conf,
			cites,
		)
	}
	return t.String()
}

func renderRun(res types.RunResult) string {
	names := make([]string, 0, len(res.Files))
	for n := range res.Files {
		names = append(names, n)
	}
	sort.Strings(names)

	t := newTable("File", "Status", "Stage", "Entities", "Unresolved", "Regions", "Artifact / Reason")
	for _, n := range names {
		f := res.Files[n]
		unresolved := 0
		for _, e := range f.Entities {
			if e.Failure != nil {
				unresolved++
			}
		}
		status, detail := passStyle.Render(string(f.Status)), f.Artifact
		if f.Reason != "" {
			detail += " (" + f.Reason + ")"
		}
		if f.Status != types.StatusDone {
			status, detail = failStyle.Render(string(f.Status)), f.Reason
		}
		t.Row(n, status, string(f.Stage), fmt.Sprint(len(f.Entities)), fmt.Sprint(unresolved), fmt.Sprint(f.Redacted), detail)
	}
	done, failed := res.Counts()
	summary := fmt.Sprintf("run %s: %d done, %d failed in %s",
		res.RunID, done, failed, res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	return t.String() + "\n" + summary
}

func renderRunList(runs []store.RunSummary) string {
	if len(runs) == 0 {
		return "No runs recorded."
	}
	t := newTable("Run", "Actor", "Started", "Duration", "Done", "Failed")
	for _, r := range runs {
		failed := fmt.Sprint(r.Failed)
		if r.Failed > 0 {
			failed = failStyle.Render(failed)
		}
		t.Row(r.RunID, r.Actor, humanize.Time(r.StartedAt),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(), fmt.Sprint(r.Done), failed)
	}
	return t.String()
}

func renderEmail(m types.MaskedEmail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("Email"), m.ID)
	fmt.Fprintf(&b, "From:    %s\nTo:      %s\nSubject: %s\nSaved:   %s\n",
		m.From, strings.Join(m.To, ", "), m.Subject, humanize.Time(m.CreatedAt))
	if len(m.Attachments) > 0 {
		t := newTable("Attachment", "Type", "Size", "Masked")
		for _, a := range m.Attachments {
			masked := warnStyle.Render("no")
			if a.Masked {
				masked = passStyle.Render("yes")
			}
			t.Row(a.Filename, a.ContentType, humanize.IBytes(uint64(a.Size)), masked)
		}
		b.WriteString(t.String())
		b.WriteByte('\n')
	}
	if len(m.MaskedByType) > 0 {
		counts := make([]string, 0, len(m.MaskedByType))
		for k, n := range m.MaskedByType {
			counts = append(counts, fmt.Sprintf("%s=%d", k, n))
		}
		sort.Strings(counts)
		fmt.Fprintf(&b, "Masked:  %s\n", strings.Join(counts, " "))
	}
	return b.String()
}

// contextFlags registers the business context flags on f.
func contextFlags(f *pflag.FlagSet) {
	f.String("sender-type", "", "sender kind (default internal)")
	f.String("receiver-type", "", "receiver kind: internal, external_customer, external_partner (default external_customer)")
	f.String("purpose", "", "purpose of sharing")
	f.Bool("consent", false, "the data subject consented to sharing")
}

// contextFromFlags returns nil unless at least one context flag was set.
func contextFromFlags(cmd *cobra.Command) *types.BusinessContext {
	fs := cmd.Flags()
	if !fs.Changed("sender-type") && !fs.Changed("receiver-type") && !fs.Changed("purpose") && !fs.Changed("consent") {
		return nil
	}
	bc := types.BusinessContext{}
	bc.SenderType, _ = fs.GetString("sender-type")
	bc.ReceiverType, _ = fs.GetString("receiver-type")
	bc.Purpose, _ = fs.GetString("purpose")
	bc.HasConsent, _ = fs.GetBool("consent")
	bc = bc.WithDefaults()
	return &bc
}
