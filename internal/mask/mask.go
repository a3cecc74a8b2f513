// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mask runs masking batches. A batch is grouped by file and each
// file goes through locating, an optional decision step, and redaction.
// Files fail independently; the run result records every outcome and is
// persisted at the end. This package owns logging, audit events and
// metrics for a run; the components it drives do none of that.
package mask

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/pii-masker/internal/audit"
	"github.com/pdiddy/pii-masker/internal/document"
	"github.com/pdiddy/pii-masker/internal/guidance"
	"github.com/pdiddy/pii-masker/internal/locate"
	"github.com/pdiddy/pii-masker/internal/logging"
	"github.com/pdiddy/pii-masker/internal/maskerr"
	"github.com/pdiddy/pii-masker/internal/policy"
	"github.com/pdiddy/pii-masker/internal/store"
	"github.com/pdiddy/pii-masker/internal/telemetry"
	"github.com/pdiddy/pii-masker/pkg/types"
)

// Decider produces a masking decision for one entity.
type Decider interface {
	Decide(ctx context.Context, ent types.Entity, bc *types.BusinessContext, passages []types.GuidancePassage) (types.Decision, error)
}

// Redactor writes a redacted copy of doc to outPath.
type Redactor interface {
	ApplyFile(ctx context.Context, doc *document.Document, regions []types.Region, outPath string) error
}

// Recognizer finds entities in extracted text.
type Recognizer interface {
	Recognize(text string, ocr []types.OCRToken) []types.Entity
}

// RunStore persists run results.
type RunStore interface {
	SaveRun(ctx context.Context, res types.RunResult) error
}

// Emitter accepts audit events without blocking.
type Emitter interface {
	Emit(ev audit.Event) bool
}

// Orchestrator wires the masking components together. Artifacts, Locator,
// Policy and Redactor are required; the rest may be nil.
type Orchestrator struct {
	Artifacts  *store.Artifacts
	Locator    *locate.Locator
	Retriever  guidance.Retriever
	Policy     Decider
	Redactor   Redactor
	Recognizer Recognizer
	Store      RunStore
	Audit      Emitter
	Metrics    *telemetry.Metrics
	Log        *slog.Logger

	FileWorkers     int
	EntityWorkers   int
	DecisionTimeout time.Duration

	now func() time.Time
}

// Request is one masking batch.
type Request struct {
	Items []types.PIIItem

	// Context enables the decision step together with Decide. Without
	// both, every located entity is masked.
	Context *types.BusinessContext
	Decide  bool

	// Actor is recorded on the run and on audit events.
	Actor string

	// RunID overrides the generated run id.
	RunID string
}

// Default worker counts and timeout, used when the fields are zero.
const (
	defaultFileWorkers     = 4
	defaultEntityWorkers   = 8
	defaultDecisionTimeout = 20 * time.Second
)

// New returns an Orchestrator configured from cfg. Callers fill in the
// optional collaborators.
func New(cfg types.MaskingConfig, art *store.Artifacts, engine Decider, red Redactor) *Orchestrator {
	o := &Orchestrator{
		Artifacts:       art,
		Policy:          engine,
		Redactor:        red,
		FileWorkers:     cfg.FileWorkers,
		EntityWorkers:   cfg.EntityWorkers,
		DecisionTimeout: cfg.DecisionTimeout,
	}
	o.Locator = locate.New(o.entityWorkers())
	return o
}

func (o *Orchestrator) fileWorkers() int {
	if o.FileWorkers > 0 {
		return o.FileWorkers
	}
	return defaultFileWorkers
}

func (o *Orchestrator) entityWorkers() int {
	if o.EntityWorkers > 0 {
		return o.EntityWorkers
	}
	return defaultEntityWorkers
}

func (o *Orchestrator) decisionTimeout() time.Duration {
	if o.DecisionTimeout > 0 {
		return o.DecisionTimeout
	}
	return defaultDecisionTimeout
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Log != nil {
		return o.Log
	}
	return logging.Discard()
}

func (o *Orchestrator) clock() time.Time {
	if o.now != nil {
		return o.now()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) emit(ev audit.Event) {
	if o.Audit == nil {
		return
	}
	o.Audit.Emit(ev)
}

// Run masks every file named by req.Items. The result always describes
// every file. The only error returned is a persistence failure, and the
// result is complete even then.
func (o *Orchestrator) Run(ctx context.Context, req Request) (types.RunResult, error) {
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := o.logger().With("run_id", runID)
	ctx, span := telemetry.StartSpan(ctx, "mask.run", "run_id", runID)
	defer span.End()

	res := types.RunResult{
		RunID:     runID,
		Actor:     req.Actor,
		StartedAt: o.clock(),
		Files:     map[string]types.FileOutcome{},
	}
	names, byFile := groupByFile(req.Items)
	decide := req.Decide && req.Context != nil
	log.Info("masking run started", "files", len(names), "items", len(req.Items), "decide", decide)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(o.fileWorkers())
	for _, name := range names {
		g.Go(func() error {
			fr := &fileRun{o: o, runID: runID, actor: req.Actor, name: name, log: log.With("file", name)}
			out := fr.run(ctx, byFile[name], req.Context, decide)
			mu.Lock()
			res.Files[name] = out
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	res.FinishedAt = o.clock()

	done, failed := res.Counts()
	pii := 0
	for _, f := range res.Files {
		pii += f.Redacted
	}
	o.emit(audit.Event{
		Type:         audit.EventMaskingApply,
		Actor:        req.Actor,
		Action:       actionf("attachment masking: %d PII", len(req.Items)),
		ResourceType: "attachment",
		ResourceID:   runID,
		Success:      failed == 0,
		Severity:     severityFor(failed == 0),
		Details: map[string]any{
			"pii_count":    len(req.Items),
			"files":        names,
			"masked_files": res.Artifacts(),
			"failed_files": failed,
			"regions":      pii,
		},
	})
	if decide {
		o.emitDecisions(req.Actor, "attachment", runID, decidedEntities(res), req.Context, o.Retriever != nil)
	}

	if o.Store != nil {
		o.emit(stageEvent(runID, req.Actor, "", types.StagePersisting, ""))
		if err := o.Store.SaveRun(ctx, res); err != nil {
			if !errors.Is(err, maskerr.ErrPersistence) {
				err = maskerr.Persistence(err, "saving run %s", runID)
			}
			log.Error("saving run failed", "error", err)
			return res, err
		}
	}
	log.Info("masking run finished", "done", done, "failed", failed, "duration", res.FinishedAt.Sub(res.StartedAt))
	return res, nil
}

// groupByFile returns filenames in first-seen order and the items of each.
func groupByFile(items []types.PIIItem) ([]string, map[string][]types.PIIItem) {
	var names []string
	by := map[string][]types.PIIItem{}
	for _, it := range items {
		if _, ok := by[it.Filename]; !ok {
			names = append(names, it.Filename)
		}
		by[it.Filename] = append(by[it.Filename], it)
	}
	return names, by
}

func decidedEntities(res types.RunResult) []types.AnalyzedEntity {
	var out []types.AnalyzedEntity
	for _, f := range res.Files {
		for _, e := range f.Entities {
			if e.Decision != nil {
				out = append(out, types.AnalyzedEntity{Entity: e.Item.Entity(), Decision: e.Decision})
			}
		}
	}
	return out
}

// decideOne runs retrieval and the policy for one entity under the
// decision timeout. Any failure, including the timeout, yields the
// fallback decision and the cause.
func (o *Orchestrator) decideOne(ctx context.Context, ent types.Entity, bc *types.BusinessContext) (types.Decision, error) {
	dctx, cancel := context.WithTimeout(ctx, o.decisionTimeout())
	defer cancel()

	type reply struct {
		d   types.Decision
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		var passages []types.GuidancePassage
		if o.Retriever != nil {
			p, err := o.Retriever.Retrieve(dctx, guidance.QueryFor(ent, bc))
			if err != nil {
				ch <- reply{err: maskerr.Decision(err, "retrieving guidance for %s", ent.Type)}
				return
			}
			passages = p
		}
		d, err := o.Policy.Decide(dctx, ent, bc, passages)
		ch <- reply{d: d, err: err}
	}()

	var r reply
	select {
	case r = <-ch:
	case <-dctx.Done():
		r.err = maskerr.Decision(dctx.Err(), "deciding %s", ent.Type)
	}
	if r.err != nil {
		d := policy.Fallback(errors.Cause(r.err))
		o.Metrics.Decided(string(d.Action), true)
		return d, r.err
	}
	o.Metrics.Decided(string(r.d.Action), false)
	return r.d, nil
}

func (o *Orchestrator) emitDecisions(actor, resource, id string, ents []types.AnalyzedEntity, bc *types.BusinessContext, rag bool) {
	masked := 0
	byType := map[types.PiiType]int{}
	for _, e := range ents {
		if e.Decision != nil && e.Decision.Action.Redacts() {
			masked++
			byType[e.Type]++
		}
	}
	details := map[string]any{
		"total_pii":      len(ents),
		"masked_pii":     masked,
		"masked_by_type": byType,
		"rag_enabled":    rag,
	}
	if bc != nil {
		details["context"] = bc.WithDefaults()
	}
	o.emit(audit.Event{
		Type:         audit.EventMaskingDecision,
		Actor:        actor,
		Action:       actionf("masking decision: %d/%d masked", masked, len(ents)),
		ResourceType: resource,
		ResourceID:   id,
		Success:      true,
		Details:      details,
	})
}

func severityFor(ok bool) audit.Severity {
	if ok {
		return audit.SeverityInfo
	}
	return audit.SeverityWarning
}
