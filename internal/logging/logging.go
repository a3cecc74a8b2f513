// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the process slog.Logger. Console output goes to
// stderr as text or JSON; a rotating file can be teed in with lumberjack.
// Values wrapped with PII are redacted on the console and kept between
// redaction markers in the file, so the file can be scrubbed later with
// the cockroachdb/redact tooling.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/redact"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pdiddy/pii-masker/pkg/types"
)

// New returns a logger for cfg writing to stderr, and a closer for the
// log file. The closer is never nil.
func New(cfg types.LoggingConfig, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	console, err := handler(cfg.Format, stderr, opts)
	if err != nil {
		return nil, nil, err
	}
	var h slog.Handler = &redactHandler{inner: console, markers: false}
	if cfg.File == "" {
		return slog.New(h), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}
	file := slog.NewJSONHandler(lj, opts)
	return slog.New(teeHandler{h, &redactHandler{inner: file, markers: true}}), lj, nil
}

func handler(format string, w io.Writer, opts *slog.HandlerOptions) (slog.Handler, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// sensitive carries a value that must not reach logs in the clear.
type sensitive struct{ v any }

// LogValue is the fallback for handlers built outside this package.
func (s sensitive) LogValue() slog.Value {
	return slog.StringValue(string(redact.Sprint(s.v).Redact()))
}

// PII returns an attribute whose value is redacted on the console.
func PII(key string, v any) slog.Attr {
	return slog.Any(key, sensitive{v})
}

// redactHandler rewrites PII attributes before they reach inner: with
// markers set the value is kept between ‹ › markers, otherwise it is
// replaced by ‹×›.
type redactHandler struct {
	inner   slog.Handler
	markers bool
}

func (h *redactHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l)
}

func (h *redactHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.rewrite(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	rw := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		rw[i] = h.rewrite(a)
	}
	return &redactHandler{inner: h.inner.WithAttrs(rw), markers: h.markers}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{inner: h.inner.WithGroup(name), markers: h.markers}
}

func (h *redactHandler) rewrite(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		rw := make([]any, len(group))
		for i, g := range group {
			rw[i] = h.rewrite(g)
		}
		return slog.Group(a.Key, rw...)
	case slog.KindLogValuer:
		s, ok := a.Value.Any().(sensitive)
		if !ok {
			return a
		}
		marked := redact.Sprint(s.v)
		if !h.markers {
			marked = marked.Redact()
		}
		return slog.String(a.Key, string(marked))
	}
	return a
}

// teeHandler fans records out to several handlers.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
