// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pdiddy/pii-masker/pkg/types"
)

// JSONLSink appends one JSON object per line to a rotating file.
type JSONLSink struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

// NewJSONLSink opens path for appending, rotating after maxSizeMB.
func NewJSONLSink(path string, maxSizeMB int) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating audit directory")
	}
	return &JSONLSink{out: &lumberjack.Logger{Filename: path, MaxSize: maxSizeMB, Compress: true}}, nil
}

// Write implements Sink.
func (s *JSONLSink) Write(_ context.Context, ev Event) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrapf(err, "encoding event %s", ev.ID)
	}
	line = append(line, '\n')
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.out.Write(line)
	return err
}

// Close implements Sink.
func (s *JSONLSink) Close() error {
	return s.out.Close()
}

// SlogSink writes events as structured log records.
type SlogSink struct {
	Log   *slog.Logger
	Level slog.Level
}

// Write implements Sink.
func (s SlogSink) Write(ctx context.Context, ev Event) error {
	s.Log.LogAttrs(ctx, s.Level, "audit",
		slog.String("event_type", string(ev.Type)),
		slog.String("id", ev.ID),
		slog.String("action", ev.Action),
		slog.String("resource_type", ev.ResourceType),
		slog.Bool("success", ev.Success),
		slog.Any("details", ev.Details),
	)
	return nil
}

// Close implements Sink.
func (SlogSink) Close() error { return nil }

// New builds an emitter for cfg: a JSONL sink when cfg.Path is set and a
// debug-level slog sink.
func New(cfg types.AuditConfig, log *slog.Logger) (*Emitter, error) {
	if log == nil {
		log = slog.Default()
	}
	sinks := []Sink{SlogSink{Log: log, Level: slog.LevelDebug}}
	if cfg.Path != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 50
		}
		js, err := NewJSONLSink(cfg.Path, maxSize)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, js)
	}
	return NewEmitter(cfg, log, sinks...), nil
}
