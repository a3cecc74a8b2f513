// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"sort"
)

// Action is the masking verdict for one entity occurrence. It is a closed
// set: consumers switch over all three values.
type Action string

const (
	ActionMask        Action = "mask"
	ActionPartialMask Action = "partial_mask"
	ActionKeep        Action = "keep"
)

// ParseAction validates s as an Action.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionMask, ActionPartialMask, ActionKeep:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown masking action %q", s)
}

// Redacts reports whether regions governed by an action are blacked out.
// partial_mask redacts exactly like mask; the distinction is only kept
// for the audit trail.
func (a Action) Redacts() bool {
	switch a {
	case ActionMask, ActionPartialMask:
		return true
	case ActionKeep:
		return false
	}
	panic(fmt.Sprintf("types: unhandled action %q", string(a)))
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	if _, err := ParseAction(string(a)); err != nil {
		return nil, err
	}
	return []byte(a), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(b []byte) error {
	v, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Receiver and sender kinds used by the default policy rules.
const (
	PartyInternal         = "internal"
	PartyExternalCustomer = "external_customer"
	PartyExternalPartner  = "external_partner"
)

// BusinessContext describes who is sending information to whom and why.
type BusinessContext struct {
	SenderType   string `json:"sender_type" yaml:"sender_type" mapstructure:"sender_type"`
	ReceiverType string `json:"receiver_type" yaml:"receiver_type" mapstructure:"receiver_type"`
	Purpose      string `json:"purpose" yaml:"purpose" mapstructure:"purpose"`
	HasConsent   bool   `json:"has_consent" yaml:"has_consent" mapstructure:"has_consent"`
}

// DefaultBusinessContext is the context assumed for outbound mail when
// the caller supplies none of the fields.
func DefaultBusinessContext() BusinessContext {
	return BusinessContext{
		SenderType:   PartyInternal,
		ReceiverType: PartyExternalCustomer,
		Purpose:      "general business",
	}
}

// WithDefaults fills empty fields from DefaultBusinessContext.
func (c BusinessContext) WithDefaults() BusinessContext {
	d := DefaultBusinessContext()
	if c.SenderType == "" {
		c.SenderType = d.SenderType
	}
	if c.ReceiverType == "" {
		c.ReceiverType = d.ReceiverType
	}
	if c.Purpose == "" {
		c.Purpose = d.Purpose
	}
	return c
}

// Decision is the policy output for one entity occurrence.
type Decision struct {
	Action           Action   `json:"action" yaml:"action"`
	Reasoning        string   `json:"reasoning" yaml:"reasoning"`
	ReferencedGuides []string `json:"referenced_guides" yaml:"referenced_guides"`
	ReferencedLaws   []string `json:"referenced_laws" yaml:"referenced_laws"`
	Confidence       float64  `json:"confidence" yaml:"confidence"`

	// Fallback is set when the decision was substituted after the
	// reasoning step failed or timed out.
	Fallback bool `json:"fallback,omitempty" yaml:"fallback,omitempty"`

	// NeedsReview flags low-confidence detections for a human.
	NeedsReview bool `json:"needs_review,omitempty" yaml:"needs_review,omitempty"`
}

// FallbackDecision is the deterministic decision used when the decision
// step fails for an entity.
func FallbackDecision(cause string) Decision {
	return Decision{
		Action:           ActionPartialMask,
		Reasoning:        fmt.Sprintf("fallback decision used (partial_mask): %s", cause),
		ReferencedGuides: []string{},
		ReferencedLaws:   []string{},
		Confidence:       0,
		Fallback:         true,
		NeedsReview:      true,
	}
}

// Citations returns the union of guide and law identifiers.
func (d Decision) Citations() []string {
	return SortedSet(append(append([]string{}, d.ReferencedGuides...), d.ReferencedLaws...))
}

// SortedSet returns the distinct non-empty values of in, sorted.
func SortedSet(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
