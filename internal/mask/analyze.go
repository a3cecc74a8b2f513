// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mask

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/pii-masker/internal/telemetry"
	"github.com/pdiddy/pii-masker/pkg/types"
)

// Warnings attached to analysis responses.
const (
	WarnDecisionsOff = "decision step disabled or no PII detected"
	WarnNoGuidance   = "guidance retriever unavailable; decisions use default rules only"
)

// ErrNoRecognizer is returned by Analyze when no recognizer is wired.
var ErrNoRecognizer = errors.New("no recognizer configured")

// Analyze detects entities in req.Text and, when req.EnableRAG is set
// and something was found, decides each one. Decision failures fall back
// per entity and are reported as warnings.
func (o *Orchestrator) Analyze(ctx context.Context, req types.AnalysisRequest, actor string) (types.AnalysisResponse, error) {
	if o.Recognizer == nil {
		return types.AnalysisResponse{}, ErrNoRecognizer
	}
	if err := ctx.Err(); err != nil {
		return types.AnalysisResponse{}, err
	}
	ctx, span := telemetry.StartSpan(ctx, "mask.analyze")
	defer span.End()

	found := o.Recognizer.Recognize(req.Text, req.OCR)
	ents := make([]types.AnalyzedEntity, len(found))
	for i, e := range found {
		ents[i].Entity = e
	}
	log := o.logger()

	if !req.EnableRAG || len(found) == 0 {
		log.Info("analysis finished", "entities", len(found), "decide", false)
		return types.AnalysisResponse{
			Entities: ents,
			Warnings: []string{WarnDecisionsOff},
		}, nil
	}

	resp := types.AnalysisResponse{Entities: ents, RAGEnabled: o.Retriever != nil}
	if o.Retriever == nil {
		resp.Warnings = append(resp.Warnings, WarnNoGuidance)
	}

	causes := make([]error, len(ents))
	g := new(errgroup.Group)
	g.SetLimit(o.entityWorkers())
	for i := range ents {
		g.Go(func() error {
			d, err := o.decideOne(ctx, ents[i].Entity, req.Context)
			ents[i].Decision = &d
			causes[i] = err
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range causes {
		if err == nil {
			continue
		}
		e := ents[i]
		log.Warn("decision fell back", "type", string(e.Type), "start", e.StartChar, "error", err)
		resp.Warnings = append(resp.Warnings,
			fmt.Sprintf("fallback decision for %s at offset %d: %s", e.Type, e.StartChar, errors.Cause(err)))
	}

	o.emitDecisions(actor, "analysis", "", ents, req.Context, resp.RAGEnabled)
	log.Info("analysis finished", "entities", len(ents), "decide", true, "fallbacks", countErrs(causes))
	return resp, nil
}

func countErrs(errs []error) int {
	n := 0
	for _, err := range errs {
		if err != nil {
			n++
		}
	}
	return n
}
