// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/gatekeeper/pkg/errutil"
)

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("gatekeeper", "1.0.0", "json", slog.LevelDebug, &buf)

	logger.Info("test message")

	var entry map[string]any
	err := json.Unmarshal(buf.Bytes(), &entry)
	require.NoError(t, err, "Failed to parse JSON: %s", buf.String())

	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "gatekeeper", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Contains(t, entry, "time", "time field missing")
	assert.Contains(t, entry, "level", "level field missing")
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("gatekeeper", "1.0.0", "text", slog.LevelInfo, &buf)

	logger.Info("test message")

	output := buf.String()
	assert.Contains(t, output, "test message", "Output missing message")
	assert.Contains(t, output, "service=gatekeeper", "Output missing service")
}

func TestHandler_TraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("gatekeeper", "1.0.0", "json", slog.LevelDebug, &buf)

	// Create a mock span context
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	logger.InfoContext(ctx, "traced message")

	var entry map[string]any
	err := json.Unmarshal(buf.Bytes(), &entry)
	require.NoError(t, err, "Failed to parse JSON")

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestHandler_NoTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("gatekeeper", "1.0.0", "json", slog.LevelDebug, &buf)

	logger.Info("no trace message")

	var entry map[string]any
	err := json.Unmarshal(buf.Bytes(), &entry)
	require.NoError(t, err, "Failed to parse JSON")

	// trace_id and span_id should be empty strings or missing
	if tid, ok := entry["trace_id"]; ok {
		assert.Empty(t, tid, "trace_id should be empty")
	}
	if sid, ok := entry["span_id"]; ok {
		assert.Empty(t, sid, "span_id should be empty")
	}
}

func TestSetup_DefaultFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("gatekeeper", "1.0.0", "", nil, &buf)

	logger.Info("test message")

	// Default should be JSON
	var entry map[string]any
	err := json.Unmarshal(buf.Bytes(), &entry)
	require.NoError(t, err, "Default format should be JSON")
}

func TestSetDefault(t *testing.T) {
	// Capture original default logger
	original := slog.Default()
	defer slog.SetDefault(original)

	logger := SetDefault("test-service", "2.0.0", "json", slog.LevelWarn)

	assert.Same(t, logger, slog.Default(), "SetDefault did not change the default logger")
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}

func TestSetup_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("gatekeeper", "1.0.0", "json", slog.LevelWarn, &buf)

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{" error ", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	errutil.AssertErrorCode(t, err, "LOG_LEVEL_INVALID")
}

func TestSetup_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("gatekeeper", "1.0.0", "json", slog.LevelDebug, &buf)

	logger.With("smtp_password", "hunter2").
		WithGroup("reset").
		Info("issued", "token", "abcd1234", "password_hash", "H", "member_id", "01J", "token_bytes", 16)

	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "abcd1234")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, Redacted, entry["smtp_password"])
	group, ok := entry["reset"].(map[string]any)
	require.True(t, ok, "reset group missing: %s", out)
	assert.Equal(t, Redacted, group["token"])
	assert.Equal(t, Redacted, group["password_hash"])
	assert.Equal(t, "01J", group["member_id"])
	assert.InDelta(t, 16, group["token_bytes"], 0)
}

func TestIsSensitiveKey(t *testing.T) {
	for key, want := range map[string]bool{
		"password":      true,
		"password_hash": true,
		"SMTP_Password": true,
		"token":         true,
		"reset_token":   true,
		"digest":        true,
		"client_secret": true,
		"token_bytes":   false,
		"member_id":     false,
		"email":         false,
	} {
		assert.Equal(t, want, IsSensitiveKey(key), key)
	}
}
