// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/gatekeeper/internal/store"
)

// migrator is the subset of store.Migrator used by the migrate commands.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// newMigrator opens a migrator. Tests replace it.
var newMigrator = func(databaseURL string, logger *slog.Logger) (migrator, error) {
	return store.NewMigrator(databaseURL, logger)
}

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, roll back and inspect the embedded schema migrations.`,
	}
	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateStatusCmd())
	cmd.AddCommand(newMigrateForceCmd())
	return cmd
}

// withMigrator loads config, opens a migrator and runs fn against it.
func withMigrator(cmd *cobra.Command, fn func(m migrator) error) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	url, err := requireDatabaseURL(cfg)
	if err != nil {
		return err
	}
	m, err := newMigrator(url, logger)
	if err != nil {
		return oops.With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("closing migrator failed", "error", closeErr)
		}
	}()
	return fn(m)
}

func newMigrateUpCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				if steps > 0 {
					if err := m.Steps(steps); err != nil {
						return err //nolint:wrapcheck // migrator errors carry codes
					}
				} else if err := m.Up(); err != nil {
					return err //nolint:wrapcheck // migrator errors carry codes
				}
				cmd.Println("Migrations applied")
				return printStatus(cmd, m)
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "apply at most this many migrations (0 = all)")
	return cmd
}

func newMigrateDownCmd() *cobra.Command {
	var (
		steps int
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Long: `Roll back migrations. Either --steps N or --all is required; rolling
back everything drops all member and credential data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateDownFlags(steps, all); err != nil {
				return err
			}
			return withMigrator(cmd, func(m migrator) error {
				var err error
				if all {
					err = m.Down()
				} else {
					err = m.Steps(-steps)
				}
				if err != nil {
					return err //nolint:wrapcheck // migrator errors carry codes
				}
				cmd.Println("Migrations rolled back")
				return printStatus(cmd, m)
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to roll back")
	cmd.Flags().BoolVar(&all, "all", false, "roll back every migration")
	return cmd
}

func validateDownFlags(steps int, all bool) error {
	switch {
	case all && steps != 0:
		return oops.Code("INVALID_ARGS").Errorf("--steps and --all are mutually exclusive")
	case !all && steps <= 0:
		return oops.Code("INVALID_ARGS").Errorf("either --steps N (N > 0) or --all is required")
	}
	return nil
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				return printStatus(cmd, m)
			})
		},
	}
}

func newMigrateForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it",
		Long: `Record VERSION as the current schema version and clear the dirty flag.
Use only after repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, func(m migrator) error {
				if err := m.Force(version); err != nil {
					return err //nolint:wrapcheck // migrator errors carry codes
				}
				cmd.Printf("Forced version %d\n", version)
				return nil
			})
		},
	}
}

// parseForceVersion parses a non-negative migration version.
func parseForceVersion(s string) (int, error) {
	s = strings.TrimSpace(s)
	var version int
	if _, err := fmt.Sscanf(s, "%d", &version); err != nil || s == "" {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer")
	}
	if version < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be non-negative")
	}
	return version, nil
}

func printStatus(cmd *cobra.Command, m migrator) error {
	st, err := m.Status()
	if err != nil {
		return err //nolint:wrapcheck // migrator errors carry codes
	}

	name := "none"
	if st.Version > 0 {
		if n, nameErr := store.MigrationName(st.Version); nameErr == nil && n != "" {
			name = n
		}
	}
	cmd.Printf("Version: %d (%s)\n", st.Version, name)
	if st.Dirty {
		cmd.Println("Dirty: true (repair the schema, then run 'gatekeeper migrate force VERSION')")
	}
	cmd.Printf("Applied: %d, pending: %d\n", len(st.Applied), len(st.Pending))
	return nil
}
