// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// EmailAttachment is a file carried by a masked email, base64 encoded.
type EmailAttachment struct {
	Filename    string `json:"filename" yaml:"filename"`
	ContentType string `json:"content_type" yaml:"content_type"`
	Size        int64  `json:"size" yaml:"size"`
	Masked      bool   `json:"masked" yaml:"masked"`
	Data        string `json:"data" yaml:"data"`
}

// MaskedEmail is the persisted record of an outbound email after masking.
type MaskedEmail struct {
	ID           string            `json:"id" yaml:"id"`
	From         string            `json:"from" yaml:"from"`
	To           []string          `json:"to" yaml:"to"`
	Subject      string            `json:"subject" yaml:"subject"`
	Body         string            `json:"body" yaml:"body"`
	Attachments  []EmailAttachment `json:"attachments" yaml:"attachments"`
	MaskedByType map[PiiType]int   `json:"masked_by_type" yaml:"masked_by_type"`
	RunID        string            `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	CreatedAt    time.Time         `json:"created_at" yaml:"created_at"`
}

// EmailDraft is the caller's input to SaveMaskedEmail. Attachments name
// files in the artifact area. Entities are the analyzed body entities;
// an entity without a decision counts as masked.
type EmailDraft struct {
	From        string           `json:"from" yaml:"from"`
	To          []string         `json:"to" yaml:"to"`
	Subject     string           `json:"subject" yaml:"subject"`
	Body        string           `json:"body" yaml:"body"`
	Attachments []string         `json:"attachments" yaml:"attachments"`
	Entities    []AnalyzedEntity `json:"pii_entities,omitempty" yaml:"pii_entities,omitempty"`
	RunID       string           `json:"run_id,omitempty" yaml:"run_id,omitempty"`
}

// MaskedCounts counts the entities whose action redacts, by type.
func (d EmailDraft) MaskedCounts() map[PiiType]int {
	out := map[PiiType]int{}
	for _, e := range d.Entities {
		if e.Decision == nil || e.Decision.Action.Redacts() {
			out[e.Type]++
		}
	}
	return out
}
