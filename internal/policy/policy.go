// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package policy decides whether each detected entity is masked, partially
// masked or kept, given who receives the document and the compliance
// guidance retrieved for it.
package policy

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/pdiddy/pii-masker/internal/maskerr"
	"github.com/pdiddy/pii-masker/pkg/types"
)

// Reasoner produces a decision for one entity. Implementations never see
// the raw entity value, only the masked preview in the request.
type Reasoner interface {
	Reason(ctx context.Context, req Request) (Reply, error)
}

// Request is what a Reasoner is asked about.
type Request struct {
	Type     types.PiiType
	Preview  string
	Score    float64
	Context  types.BusinessContext
	Passages []types.GuidancePassage
}

// Reply is a reasoner's raw answer before validation.
type Reply struct {
	Action           string   `json:"action"`
	Reasoning        string   `json:"reasoning"`
	ReferencedGuides []string `json:"referenced_guides"`
	ReferencedLaws   []string `json:"referenced_laws"`
	Confidence       float64  `json:"confidence"`
}

// Engine applies a Reasoner, or the rule defaults when none is set.
type Engine struct {
	reasoner Reasoner
}

// New returns an Engine. A nil reasoner selects the rule defaults.
func New(r Reasoner) *Engine {
	return &Engine{reasoner: r}
}

// NewFromConfig builds the engine selected by cfg.Reasoner. "claude"
// requires an API key.
func NewFromConfig(cfg types.PolicyConfig) (*Engine, error) {
	switch cfg.Reasoner {
	case "", "rules":
		return New(nil), nil
	case "claude":
		r, err := NewClaudeReasoner(cfg)
		if err != nil {
			return nil, err
		}
		return New(r), nil
	default:
		return nil, fmt.Errorf("unknown reasoner %q", cfg.Reasoner)
	}
}

// Reasoned reports whether decisions go through a Reasoner.
func (e *Engine) Reasoned() bool { return e.reasoner != nil }

// Decide returns the decision for one entity. Any error is marked
// maskerr.ErrDecision; callers substitute Fallback.
func (e *Engine) Decide(ctx context.Context, ent types.Entity, bc *types.BusinessContext, passages []types.GuidancePassage) (types.Decision, error) {
	if err := ent.Validate(); err != nil {
		return types.Decision{}, maskerr.Decision(err, "invalid entity")
	}
	if err := ctx.Err(); err != nil {
		return types.Decision{}, maskerr.Decision(err, "deciding %s", ent.Type)
	}

	if e.reasoner == nil || bc == nil {
		c := types.DefaultBusinessContext()
		if bc != nil {
			c = bc.WithDefaults()
		}
		return finalize(ruleDecision(ent, c), ent, c, passages), nil
	}

	reply, err := e.reasoner.Reason(ctx, Request{
		Type:     ent.Type,
		Preview:  Preview(ent.Text),
		Score:    ent.Score,
		Context:  bc.WithDefaults(),
		Passages: passages,
	})
	if err != nil {
		return types.Decision{}, maskerr.Decision(err, "reasoning about %s", ent.Type)
	}
	action, err := types.ParseAction(strings.TrimSpace(strings.ToLower(reply.Action)))
	if err != nil {
		return types.Decision{}, maskerr.Decision(err, "reasoner reply")
	}

	d := types.Decision{
		Action:           action,
		Reasoning:        strings.TrimSpace(reply.Reasoning),
		ReferencedGuides: reply.ReferencedGuides,
		ReferencedLaws:   reply.ReferencedLaws,
		Confidence:       reply.Confidence,
	}
	return finalize(d, ent, bc.WithDefaults(), passages), nil
}

// Fallback is the decision used when Decide fails or times out.
func Fallback(cause error) types.Decision {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return types.FallbackDecision(msg)
}

// finalize enforces the output invariants shared by both decision paths.
// A high-sensitivity value leaving the organization without consent is
// never kept, whatever the reasoner said.
func finalize(d types.Decision, ent types.Entity, c types.BusinessContext, passages []types.GuidancePassage) types.Decision {
	if d.Action == types.ActionKeep && ent.Type.Sensitivity() == types.SensitivityHigh &&
		c.ReceiverType != types.PartyInternal && !c.HasConsent {
		d.Action = types.ActionMask
		d.Reasoning = fmt.Sprintf("mask: %s sent to %s without consent is never kept (overrides keep: %s)",
			ent.Type.Describe(), c.ReceiverType, strings.TrimPrefix(d.Reasoning, "keep: "))
		d.NeedsReview = true
	}

	switch {
	case d.Confidence < 0:
		d.Confidence = 0
	case d.Confidence > 1:
		d.Confidence = 1
	}

	if d.Reasoning == "" {
		d.Reasoning = fmt.Sprintf("%s: %s", d.Action, ent.Type.Describe())
	} else if !strings.Contains(d.Reasoning, string(d.Action)) {
		d.Reasoning = fmt.Sprintf("%s: %s", d.Action, d.Reasoning)
	}

	kinds := make(map[string]types.PassageKind, len(passages))
	for _, p := range passages {
		kinds[p.ID] = p.Kind
	}
	var guides, laws []string
	for _, id := range append(append([]string{}, d.ReferencedGuides...), d.ReferencedLaws...) {
		switch kinds[id] {
		case types.PassageGuide:
			guides = append(guides, id)
		case types.PassageLaw:
			laws = append(laws, id)
		}
	}
	if len(passages) > 0 && len(guides) == 0 && len(laws) == 0 {
		top := passages[0]
		if top.Kind == types.PassageLaw {
			laws = []string{top.ID}
		} else {
			guides = []string{top.ID}
		}
	}
	d.ReferencedGuides = types.SortedSet(guides)
	d.ReferencedLaws = types.SortedSet(laws)

	if ent.Score < lowScore {
		d.NeedsReview = true
	}
	return d
}

// Preview masks a value for display to a reasoner: digits become 9,
// letters become X, anything else is kept. Length and shape survive.
func Preview(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteByte('9')
		case unicode.IsLetter(r):
			b.WriteByte('X')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
