// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/pkg/errutil"
)

// fakeMigrate implements migrateIface for testing.
type fakeMigrate struct {
	err            error
	version        uint
	dirty          bool
	versionErr     error
	steps          []int
	forced         []int
	closeSourceErr error
	closeDbErr     error
}

func (f *fakeMigrate) Up() error   { return f.err }
func (f *fakeMigrate) Down() error { return f.err }
func (f *fakeMigrate) Steps(n int) error {
	f.steps = append(f.steps, n)
	return f.err
}
func (f *fakeMigrate) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeMigrate) Force(v int) error {
	f.forced = append(f.forced, v)
	return f.err
}
func (f *fakeMigrate) Close() (error, error) { return f.closeSourceErr, f.closeDbErr }

func newTestMigrator(f *fakeMigrate) *Migrator {
	return &Migrator{m: f, logger: discardLogger()}
}

func TestNewMigrator_RejectsUnknownScheme(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/testdb", nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestNewMigrator_PostgresqlSchemeIsRewritten(t *testing.T) {
	// Connection fails, but the driver must be recognised.
	_, err := NewMigrator("postgresql://127.0.0.1:1/testdb?connect_timeout=1", nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
	assert.NotContains(t, err.Error(), "unknown driver")
}

func TestDriverURL(t *testing.T) {
	assert.Equal(t, "pgx5://u@h/db", driverURL("postgres://u@h/db"))
	assert.Equal(t, "pgx5://u@h/db", driverURL("postgresql://u@h/db"))
	assert.Equal(t, "pgx5://u@h/db", driverURL("pgx5://u@h/db"))
}

func TestMigrator_Operations(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		err      error
		run      func(m *Migrator) error
		wantCode string
	}{
		{name: "up", run: (*Migrator).Up},
		{name: "up no change", err: migrate.ErrNoChange, run: (*Migrator).Up},
		{name: "up error", err: boom, run: (*Migrator).Up, wantCode: "MIGRATION_UP_FAILED"},
		{name: "down", run: (*Migrator).Down},
		{name: "down no change", err: migrate.ErrNoChange, run: (*Migrator).Down},
		{name: "down error", err: boom, run: (*Migrator).Down, wantCode: "MIGRATION_DOWN_FAILED"},
		{name: "steps", run: func(m *Migrator) error { return m.Steps(-1) }},
		{name: "steps no change", err: migrate.ErrNoChange, run: func(m *Migrator) error { return m.Steps(1) }},
		{name: "steps error", err: boom, run: func(m *Migrator) error { return m.Steps(2) }, wantCode: "MIGRATION_STEPS_FAILED"},
		{name: "force", run: func(m *Migrator) error { return m.Force(1) }},
		{name: "force error", err: boom, run: func(m *Migrator) error { return m.Force(1) }, wantCode: "MIGRATION_FORCE_FAILED"},
		{name: "force negative", run: func(m *Migrator) error { return m.Force(-1) }, wantCode: "INVALID_VERSION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(newTestMigrator(&fakeMigrate{err: tt.err}))
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestMigrator_StepsZeroIsNoOp(t *testing.T) {
	f := &fakeMigrate{}
	require.NoError(t, newTestMigrator(f).Steps(0))
	assert.Empty(t, f.steps)
}

func TestMigrator_Version(t *testing.T) {
	t.Run("reports version and dirty flag", func(t *testing.T) {
		v, dirty, err := newTestMigrator(&fakeMigrate{version: 2, dirty: true}).Version()
		require.NoError(t, err)
		assert.Equal(t, uint(2), v)
		assert.True(t, dirty)
	})

	t.Run("empty database is version zero", func(t *testing.T) {
		v, dirty, err := newTestMigrator(&fakeMigrate{versionErr: migrate.ErrNilVersion}).Version()
		require.NoError(t, err)
		assert.Zero(t, v)
		assert.False(t, dirty)
	})

	t.Run("error", func(t *testing.T) {
		_, _, err := newTestMigrator(&fakeMigrate{versionErr: errors.New("boom")}).Version()
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_Status(t *testing.T) {
	all, err := migrationVersions()
	require.NoError(t, err)
	require.NotEmpty(t, all)
	latest := all[len(all)-1]

	t.Run("fresh database", func(t *testing.T) {
		st, err := newTestMigrator(&fakeMigrate{versionErr: migrate.ErrNilVersion}).Status()
		require.NoError(t, err)
		assert.Empty(t, st.Applied)
		assert.Equal(t, all, st.Pending)
	})

	t.Run("partially migrated", func(t *testing.T) {
		st, err := newTestMigrator(&fakeMigrate{version: 1}).Status()
		require.NoError(t, err)
		assert.Equal(t, []uint{1}, st.Applied)
		assert.NotContains(t, st.Pending, uint(1))
		assert.Len(t, st.Applied, len(all)-len(st.Pending))
	})

	t.Run("at latest", func(t *testing.T) {
		st, err := newTestMigrator(&fakeMigrate{version: latest}).Status()
		require.NoError(t, err)
		assert.Equal(t, all, st.Applied)
		assert.Empty(t, st.Pending)
	})

	t.Run("version error", func(t *testing.T) {
		_, err := newTestMigrator(&fakeMigrate{versionErr: errors.New("boom")}).Status()
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_Close(t *testing.T) {
	tests := []struct {
		name      string
		srcErr    error
		dbErr     error
		component string
	}{
		{name: "clean"},
		{name: "source", srcErr: errors.New("src"), component: "source"},
		{name: "database", dbErr: errors.New("db"), component: "database"},
		{name: "both", srcErr: errors.New("src"), dbErr: errors.New("db"), component: "both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTestMigrator(&fakeMigrate{closeSourceErr: tt.srcErr, closeDbErr: tt.dbErr}).Close()
			if tt.component == "" {
				require.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.component)
		})
	}
}

func TestMigrationName(t *testing.T) {
	name, err := MigrationName(1)
	require.NoError(t, err)
	assert.Equal(t, "000001_members", name)

	name, err = MigrationName(2)
	require.NoError(t, err)
	assert.Equal(t, "000002_password_reset_request", name)

	name, err = MigrationName(999)
	require.NoError(t, err)
	assert.Empty(t, name)
}
