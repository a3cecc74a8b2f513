// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mask

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/pii-masker/internal/audit"
	"github.com/pdiddy/pii-masker/internal/document"
	"github.com/pdiddy/pii-masker/internal/logging"
	"github.com/pdiddy/pii-masker/internal/maskerr"
	"github.com/pdiddy/pii-masker/internal/store"
	"github.com/pdiddy/pii-masker/internal/telemetry"
	"github.com/pdiddy/pii-masker/pkg/types"
)

// fileRun drives one file through the stage machine.
type fileRun struct {
	o     *Orchestrator
	runID string
	actor string
	name  string
	log   *slog.Logger

	stage   types.Stage
	entered time.Time
}

func (f *fileRun) run(ctx context.Context, items []types.PIIItem, bc *types.BusinessContext, decide bool) types.FileOutcome {
	ctx, span := telemetry.StartSpan(ctx, "mask.file", "run_id", f.runID, "file", f.name)
	defer span.End()

	out := types.FileOutcome{Filename: f.name, Entities: make([]types.EntityOutcome, len(items))}
	for i, it := range items {
		out.Entities[i].Item = it
	}
	f.enter(types.StagePending)

	src, err := f.o.Artifacts.Source(f.name)
	if err != nil {
		return f.fail(out, err)
	}
	f.enter(types.StageLocating)
	doc, err := document.Load(src)
	if err != nil {
		return f.fail(out, maskerr.Redaction(err, "parsing %s", f.name))
	}

	occs := make([]types.Occurrence, len(items))
	for i, it := range items {
		occs[i] = it.Occurrence()
	}
	located := 0
	for i, r := range f.o.Locator.Locate(ctx, doc, occs) {
		if !r.OK() {
			out.Entities[i].Failure = r.Failure
			f.o.Metrics.Unresolved(string(r.Failure.Reason))
			f.log.Warn("occurrence not located",
				"type", string(items[i].Type),
				"instance", items[i].InstanceIndex,
				"reason", string(r.Failure.Reason),
				logging.PII("text", items[i].Text))
			continue
		}
		out.Entities[i].Regions = r.Regions
		f.o.Metrics.Located(string(r.Regions[0].Source))
		located++
	}

	if decide {
		f.enter(types.StageDeciding)
		f.decide(ctx, &out, bc)
	}

	f.enter(types.StageRedacting)
	var regions []types.Region
	for _, e := range out.Entities {
		if e.Decision != nil && !e.Decision.Action.Redacts() {
			continue
		}
		regions = append(regions, e.Regions...)
	}
	dst, err := f.o.Artifacts.Output(f.name)
	if err != nil {
		return f.fail(out, err)
	}
	if err := f.o.Redactor.ApplyFile(ctx, doc, regions, dst); err != nil {
		return f.fail(out, err)
	}
	f.o.Metrics.Redacted(len(regions))

	out.Artifact = store.MaskedName(f.name)
	out.Redacted = len(regions)
	out.Status = types.StatusDone
	out.Stage = types.StageDone
	if located == 0 {
		out.Reason = types.ReasonNothingLocated
		f.log.Warn("artifact masks nothing", "artifact", out.Artifact, "occurrences", len(items))
	}
	f.enter(types.StageDone)
	f.o.Metrics.FileFinished(string(types.StatusDone))
	f.log.Info("file masked", "artifact", out.Artifact, "located", located, "regions", len(regions))
	return out
}

// decide fills in a decision for every located entity. Failures fall
// back per entity and never fail the file.
func (f *fileRun) decide(ctx context.Context, out *types.FileOutcome, bc *types.BusinessContext) {
	g := new(errgroup.Group)
	g.SetLimit(f.o.entityWorkers())
	for i := range out.Entities {
		e := &out.Entities[i]
		if e.Failure != nil {
			continue
		}
		g.Go(func() error {
			d, err := f.o.decideOne(ctx, e.Item.Entity(), bc)
			if err != nil {
				f.log.Warn("decision fell back", "type", string(e.Item.Type), "error", err)
			}
			e.Decision = &d
			return nil
		})
	}
	_ = g.Wait()
}

// enter records a stage transition. It closes the timing of the previous
// stage and emits a stage event.
func (f *fileRun) enter(s types.Stage) {
	now := time.Now()
	if f.stage != "" {
		f.o.Metrics.ObserveStage(string(f.stage), now.Sub(f.entered))
	}
	f.stage, f.entered = s, now
	f.log.Debug("stage", "stage", string(s))
	f.o.emit(stageEvent(f.runID, f.actor, f.name, s, ""))
}

func (f *fileRun) fail(out types.FileOutcome, err error) types.FileOutcome {
	out.Status = types.StatusFailed
	out.Stage = f.stage
	out.Reason = maskerr.Reason(err)
	f.o.Metrics.ObserveStage(string(f.stage), time.Since(f.entered))
	f.o.Metrics.FileFinished(string(types.StatusFailed))
	f.log.Error("file failed", "stage", string(f.stage), "class", maskerr.Class(err), "error", err)
	f.o.emit(stageEvent(f.runID, f.actor, f.name, types.StageFailed, out.Reason))
	return out
}

func stageEvent(runID, actor, file string, s types.Stage, reason string) audit.Event {
	ok := s != types.StageFailed
	details := map[string]any{"run_id": runID, "stage": string(s)}
	if reason != "" {
		details["reason"] = reason
	}
	ev := audit.Event{
		Type:         audit.EventFileStage,
		Actor:        actor,
		Action:       actionf("stage %s", s),
		ResourceType: "attachment",
		ResourceID:   file,
		Success:      ok,
		Severity:     audit.SeverityInfo,
		Details:      details,
	}
	if !ok {
		ev.Severity = audit.SeverityError
	}
	if file == "" {
		ev.ResourceType, ev.ResourceID = "run", runID
	}
	return ev
}

func actionf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
