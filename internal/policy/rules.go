// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package policy

import (
	"fmt"

	"github.com/pdiddy/pii-masker/pkg/types"
)

// lowScore is the detection score below which an entity is only
// partially masked and flagged for review.
const lowScore = 0.5

// ruleDecision applies the default rules, first match wins.
func ruleDecision(ent types.Entity, c types.BusinessContext) types.Decision {
	what := ent.Type.Describe()
	sens := ent.Type.Sensitivity()
	internal := c.ReceiverType == types.PartyInternal

	decide := func(a types.Action, conf float64, format string, args ...any) types.Decision {
		return types.Decision{
			Action:     a,
			Reasoning:  fmt.Sprintf("%s: %s", a, fmt.Sprintf(format, args...)),
			Confidence: conf,
		}
	}

	switch {
	case ent.Score < lowScore:
		d := decide(types.ActionPartialMask, ent.Score*0.5,
			"%s detected with low confidence %.2f", what, ent.Score)
		d.NeedsReview = true
		return d
	case c.HasConsent && internal:
		return decide(types.ActionKeep, 0.9,
			"%s shared internally with consent", what)
	case sens == types.SensitivityHigh && c.ReceiverType == types.PartyExternalCustomer && !c.HasConsent:
		return decide(types.ActionMask, 0.95,
			"%s must not reach an external customer without consent", what)
	case sens == types.SensitivityHigh:
		return decide(types.ActionMask, 0.9,
			"%s is high sensitivity", what)
	case sens == types.SensitivityMedium && !internal && !c.HasConsent:
		return decide(types.ActionMask, 0.8,
			"%s sent to %s without consent", what, c.ReceiverType)
	case sens == types.SensitivityMedium:
		return decide(types.ActionPartialMask, 0.7,
			"%s is medium sensitivity", what)
	case internal:
		return decide(types.ActionKeep, 0.7,
			"%s is low sensitivity and stays internal", what)
	default:
		return decide(types.ActionPartialMask, 0.6,
			"%s is low sensitivity but leaves the organization", what)
	}
}
