// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pii-masker/internal/audit"
	"github.com/pdiddy/pii-masker/internal/extractor"
	"github.com/pdiddy/pii-masker/internal/guidance"
	"github.com/pdiddy/pii-masker/internal/logging"
	"github.com/pdiddy/pii-masker/internal/mask"
	"github.com/pdiddy/pii-masker/internal/policy"
	"github.com/pdiddy/pii-masker/internal/recognize"
	"github.com/pdiddy/pii-masker/internal/redact"
	"github.com/pdiddy/pii-masker/internal/secrets"
	"github.com/pdiddy/pii-masker/internal/store"
	"github.com/pdiddy/pii-masker/internal/telemetry"
	"github.com/pdiddy/pii-masker/pkg/types"
)

// auditDrainTimeout bounds how long exit waits for queued audit events.
const auditDrainTimeout = 5 * time.Second

// current is the app of the running command; it is closed on exit.
var current *app

// app holds the process-wide collaborators shared by commands.
type app struct {
	cfg         types.Config
	log         *slog.Logger
	logCloser   io.Closer
	metrics     *telemetry.Metrics
	metricsFile string
	actor       string
	audit       *audit.Emitter
	closers     []io.Closer
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	log, logCloser, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, err
	}

	s, err := secrets.Load(".secrets/", log)
	if err != nil {
		logCloser.Close()
		return nil, err
	}
	if used := secrets.Apply(&cfg, s); len(used) > 0 {
		log.Debug("loaded secrets", "keys", used)
	}

	metrics := telemetry.NewMetrics()
	em, err := audit.New(cfg.Audit, log)
	if err != nil {
		logCloser.Close()
		return nil, err
	}
	em.OnDrop = metrics.AuditDropped

	a := &app{
		cfg:       cfg,
		log:       log,
		logCloser: logCloser,
		metrics:   metrics,
		audit:     em,
	}
	a.metricsFile, _ = cmd.Flags().GetString("metrics-file")
	a.actor, _ = cmd.Flags().GetString("actor")
	if a.actor == "" {
		a.actor = os.Getenv("USER")
	}
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn("closing resource", "error", err)
		}
	}
	if err := a.audit.Close(auditDrainTimeout); err != nil {
		a.log.Warn("closing audit log", "error", err, "dropped", a.audit.Dropped())
	}
	if a.metricsFile != "" {
		if err := a.metrics.WriteFile(a.metricsFile); err != nil {
			a.log.Warn("writing metrics", "path", a.metricsFile, "error", err)
		}
	}
	a.logCloser.Close()
}

func (a *app) store() (*store.Store, error) {
	st, err := store.Open(a.cfg.Store)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st)
	return st, nil
}

func (a *app) artifacts() (*store.Artifacts, error) {
	return store.NewArtifacts(a.cfg.Masking.UploadDir)
}

func (a *app) guidance() (*guidance.Store, error) {
	emb, err := guidance.NewEmbedder(a.cfg.Guidance)
	if err != nil {
		return nil, err
	}
	gs, err := guidance.NewStore(a.cfg.Guidance, emb)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, gs)
	return gs, nil
}

// retriever returns the guidance store when it holds passages. An empty
// or unusable index leaves decisions to the policy alone.
func (a *app) retriever(ctx context.Context) guidance.Retriever {
	gs, err := a.guidance()
	if err != nil {
		a.log.Warn("guidance index unavailable", "error", err)
		return nil
	}
	n, err := gs.Count(ctx)
	if err != nil || n == 0 {
		a.log.Warn("guidance index is empty; run pii-masker guides ingest", "error", err)
		return nil
	}
	return gs
}

// orchestrator builds the masking orchestrator from configuration. With
// decide set it also opens the guidance index.
func (a *app) orchestrator(ctx context.Context, decide bool) (*mask.Orchestrator, error) {
	art, err := a.artifacts()
	if err != nil {
		return nil, err
	}
	engine, err := policy.NewFromConfig(a.cfg.Policy)
	if err != nil {
		return nil, err
	}
	st, err := a.store()
	if err != nil {
		return nil, err
	}

	o := mask.New(a.cfg.Masking, art, engine, redact.New())
	o.Recognizer = recognize.New()
	o.Store = st
	o.Audit = a.audit
	o.Metrics = a.metrics
	o.Log = a.log
	if decide {
		if r := a.retriever(ctx); r != nil {
			o.Retriever = r
		}
	}
	return o, nil
}

// extractor returns the configured extractor, or one without OCR when the
// OCR backend cannot be set up.
func (a *app) extractor(ctx context.Context) extractor.Extractor {
	ex, err := extractor.New(ctx, a.cfg.OCR)
	if err != nil {
		a.log.Warn("OCR unavailable; scanned images cannot be read", "backend", a.cfg.OCR.Backend, "error", err)
		return &extractor.NativeExtractor{}
	}
	return ex
}
