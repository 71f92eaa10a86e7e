// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package errutil provides logging and test helpers for oops errors.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// Log logs err at level with structured context if it's an oops error.
// For oops errors, the code and context map are added as attributes.
// For standard errors, only the error string is logged.
// Extra attrs are appended after the error attributes.
func Log(ctx context.Context, logger *slog.Logger, level slog.Level, msg string, err error, attrs ...any) {
	fields := []any{"error", err.Error()}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != nil {
			fields = append(fields, "code", code)
		}
		if errCtx := oopsErr.Context(); len(errCtx) > 0 {
			fields = append(fields, "context", errCtx)
		}
	}
	fields = append(fields, attrs...)
	logger.Log(ctx, level, msg, fields...)
}

// LogError logs err at error level. See Log.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	Log(ctx, logger, slog.LevelError, msg, err, attrs...)
}

// LogWarn logs err at warn level. See Log.
func LogWarn(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	Log(ctx, logger, slog.LevelWarn, msg, err, attrs...)
}
