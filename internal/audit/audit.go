// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit delivers audit events asynchronously. Emit never blocks
// the caller: events go into a bounded queue drained by worker
// goroutines, and are dropped when the queue is full. Sink failures are
// logged and otherwise ignored.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/pdiddy/pii-masker/pkg/types"
)

// EventType names an audit event.
type EventType string

const (
	EventMaskingApply    EventType = "MASKING_APPLY"
	EventMaskingDecision EventType = "MASKING_DECISION"
	EventFileStage       EventType = "MASKING_STAGE"
	EventEmailSaved      EventType = "MASKED_EMAIL_SAVED"
)

// Severity grades an event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is one audit record.
type Event struct {
	ID           string         `json:"id"`
	Time         time.Time      `json:"time"`
	Type         EventType      `json:"event_type"`
	Actor        string         `json:"actor,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Success      bool           `json:"success"`
	Severity     Severity       `json:"severity"`
	Details      map[string]any `json:"details,omitempty"`
}

// Sink stores events. Write is called from worker goroutines and must be
// safe for concurrent use.
type Sink interface {
	Write(ctx context.Context, ev Event) error
	Close() error
}

// ErrCloseTimeout is returned by Close when workers did not drain the
// queue in time.
var ErrCloseTimeout = errors.New("audit queue not drained before timeout")

// Emitter fans events out to sinks in the background.
type Emitter struct {
	queue chan Event
	sinks []Sink
	log   *slog.Logger
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64

	// OnDrop, when set before the first Emit, is called for every
	// dropped event.
	OnDrop func()
}

// NewEmitter starts cfg.Workers workers over a queue of cfg.QueueSize.
func NewEmitter(cfg types.AuditConfig, log *slog.Logger, sinks ...Sink) *Emitter {
	size, workers := cfg.QueueSize, cfg.Workers
	if size <= 0 {
		size = 256
	}
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	e := &Emitter{queue: make(chan Event, size), sinks: sinks, log: log}
	e.wg.Add(workers)
	for range workers {
		go e.work()
	}
	return e
}

// Emit queues ev and reports whether it was accepted. It fills in the id
// and time when they are unset. Events emitted after Close are dropped.
func (e *Emitter) Emit(ev Event) bool {
	if e == nil {
		return false
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	if ev.Severity == "" {
		ev.Severity = SeverityInfo
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.drop(ev)
		return false
	}
	select {
	case e.queue <- ev:
		return true
	default:
		e.drop(ev)
		return false
	}
}

func (e *Emitter) drop(ev Event) {
	e.dropped.Add(1)
	if e.OnDrop != nil {
		e.OnDrop()
	}
	e.log.Warn("audit event dropped", "event_type", string(ev.Type), "id", ev.ID)
}

// Dropped returns the number of events dropped so far.
func (e *Emitter) Dropped() int64 {
	return e.dropped.Load()
}

func (e *Emitter) work() {
	defer e.wg.Done()
	for ev := range e.queue {
		for _, s := range e.sinks {
			if err := s.Write(context.Background(), ev); err != nil {
				e.log.Error("audit sink failed", "event_type", string(ev.Type), "id", ev.ID, "error", err)
			}
		}
	}
}

// Close stops accepting events, waits up to timeout for the queue to
// drain, and closes the sinks. Sinks are left open on timeout since
// workers may still be writing to them.
func (e *Emitter) Close(timeout time.Duration) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		return ErrCloseTimeout
	}

	var errs error
	for _, s := range e.sinks {
		if err := s.Close(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}
