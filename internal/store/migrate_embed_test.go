// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"io"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err, "should read embedded migrations directory")

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	ups, downs := map[string]bool{}, map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		require.True(t, pattern.MatchString(name),
			"file %s should match pattern NNNNNN_name.(up|down).sql", name)
		if base, ok := strings.CutSuffix(name, ".up.sql"); ok {
			ups[base] = true
		} else if base, ok := strings.CutSuffix(name, ".down.sql"); ok {
			downs[base] = true
		}
	}
	assert.Equal(t, ups, downs, "every up migration needs a down migration")
}

func TestMigrationsFS_SeedsBuiltinRoles(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/000001_members.up.sql")
	require.NoError(t, err)
	sql := string(data)
	assert.Contains(t, sql, "'Operator'")
	assert.Contains(t, sql, "'Banned'")
	assert.Contains(t, sql, "lower(email)")
}
