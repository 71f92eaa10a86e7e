// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package logging configures the process logger: structured slog output
// stamped with service identity and OpenTelemetry trace context, with
// credential material redacted.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/trace"
)

// Redacted replaces the value of credential-bearing attributes.
const Redacted = "[REDACTED]"

// identityHandler stamps every record with the service identity and the
// trace and span of the context it was logged with.
type identityHandler struct {
	next     slog.Handler
	identity []slog.Attr
}

func (h *identityHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(h.identity...)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.next.Handle(ctx, r)
}

func (h *identityHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *identityHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &identityHandler{next: h.next.WithAttrs(attrs), identity: h.identity}
}

func (h *identityHandler) WithGroup(name string) slog.Handler {
	return &identityHandler{next: h.next.WithGroup(name), identity: h.identity}
}

// IsSensitiveKey reports whether an attribute named key may hold a
// password hash, challenge digest, reset token or other secret.
func IsSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	switch {
	case strings.Contains(key, "password"),
		strings.Contains(key, "secret"),
		strings.HasSuffix(key, "token"),
		strings.HasSuffix(key, "digest"):
		return true
	}
	return false
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindGroup && IsSensitiveKey(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// ParseLevel converts a level name (debug, info, warn, error) to a
// slog.Level. An empty name means info.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	name = strings.TrimSpace(name)
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, oops.Code("LOG_LEVEL_INVALID").With("level", name).Wrap(err)
	}
	return level, nil
}

// Setup creates a logger writing to w, or os.Stderr when w is nil.
// format is "json" (the default) or "text". Records below level are
// dropped; a nil level means info.
func Setup(service, version, format string, level slog.Leveler, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if level == nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: redact}
	var base slog.Handler
	if format == "text" {
		base = slog.NewTextHandler(w, opts)
	} else {
		base = slog.NewJSONHandler(w, opts)
	}

	return slog.New(&identityHandler{
		next: base,
		identity: []slog.Attr{
			slog.String("service", service),
			slog.String("version", version),
		},
	})
}

// SetDefault installs a Setup logger writing to stderr as the slog default
// and returns it.
func SetDefault(service, version, format string, level slog.Leveler) *slog.Logger {
	logger := Setup(service, version, format, level, nil)
	slog.SetDefault(logger)
	return logger
}
