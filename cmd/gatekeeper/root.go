// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/gatekeeper/internal/config"
	"github.com/holomush/gatekeeper/internal/logging"
)

const serviceName = "gatekeeper"

// configFile is the --config flag shared by all subcommands.
var configFile string

// NewRootCmd creates the root command for the gatekeeper CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gatekeeper",
		Short: "Gatekeeper - credential and session authority",
		Long: `Gatekeeper verifies client identity with a challenge-response password
scheme, registers accounts, runs the password reset workflow and enforces
role-based access control.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/gatekeeper/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())

	return cmd
}

// loadConfig loads configuration for cmd and installs the default logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, oops.With("operation", "load config").Wrap(err)
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // already validated by config.Load
	}
	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, level)
	return cfg, logger, nil
}

// requireDatabaseURL returns the configured database URL or an error.
func requireDatabaseURL(cfg *config.Config) (string, error) {
	if cfg.Database.URL == "" {
		return "", oops.Code("CONFIG_INVALID").
			With("field", "database.url").
			Errorf("database url is required (database.url, --database-url or DATABASE_URL)")
	}
	return cfg.Database.URL, nil
}
