// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/auth/postgres"
	"github.com/holomush/gatekeeper/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedFile is the YAML document read by the seed command.
//
//	roles: [Builder, Moderator]
//	operators: [admin@example.com]
type seedFile struct {
	Roles     []string `yaml:"roles"`
	Operators []string `yaml:"operators"`
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	var (
		file    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create roles and grant Operator from a seed file",
		Long: `Reads a YAML seed file listing role names and operator emails. Every
role is created if missing and every listed member is granted Operator.
The command is idempotent and runs in a single transaction.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, file, timeout)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file path (required)")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSeed(cmd *cobra.Command, path string, timeout time.Duration) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return oops.Code("SEED_READ_FAILED").With("path", path).Wrap(err)
	}
	seed, err := parseSeedFile(data)
	if err != nil {
		return oops.With("path", path).Wrap(err)
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// cmd.Context() carries SIGINT/SIGTERM cancellation.
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	pool, err := store.NewPool(ctx, poolConfig(cfg), logger)
	if err != nil {
		return err //nolint:wrapcheck // pool errors carry codes
	}
	defer pool.Close()

	return applySeed(ctx, seed,
		postgres.NewMemberRepository(pool),
		postgres.NewRoleRepository(pool),
		postgres.NewTransactor(pool),
		cmd.OutOrStdout())
}

// parseSeedFile decodes and validates a seed document. Role names are
// trimmed; Operator and Banned are always included.
func parseSeedFile(data []byte) (seedFile, error) {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return seedFile{}, oops.Code("SEED_INVALID").Wrap(err)
	}

	roles := []string{string(auth.RoleOperator), string(auth.RoleBanned)}
	seen := map[string]bool{roles[0]: true, roles[1]: true}
	for i, name := range seed.Roles {
		name = strings.TrimSpace(name)
		if name == "" {
			return seedFile{}, oops.Code("SEED_INVALID").With("index", i).Errorf("role name must not be empty")
		}
		if strings.Contains(name, ",") {
			return seedFile{}, oops.Code("SEED_INVALID").With("role", name).Errorf("role name must not contain a comma")
		}
		if !seen[name] {
			seen[name] = true
			roles = append(roles, name)
		}
	}
	seed.Roles = roles

	operators := seed.Operators[:0]
	for i, email := range seed.Operators {
		email = strings.TrimSpace(email)
		if email == "" {
			return seedFile{}, oops.Code("SEED_INVALID").With("index", i).Errorf("operator email must not be empty")
		}
		operators = append(operators, email)
	}
	seed.Operators = operators
	return seed, nil
}

// applySeed ensures every role exists and grants Operator to every listed
// member, all in one transaction.
func applySeed(
	ctx context.Context,
	seed seedFile,
	members auth.MemberRepository,
	roles auth.RoleRepository,
	tx auth.Transactor,
	out io.Writer,
) error {
	err := tx.InTransaction(ctx, func(ctx context.Context) error {
		for _, name := range seed.Roles {
			if err := roles.Ensure(ctx, auth.Role(name)); err != nil {
				return oops.Code("SEED_FAILED").With("role", name).Wrap(err)
			}
		}
		for _, email := range seed.Operators {
			m, err := members.GetByEmail(ctx, email)
			if err != nil {
				if errors.Is(err, auth.ErrNotFound) {
					return oops.Code("SEED_MEMBER_NOT_FOUND").With("email", email).Wrap(err)
				}
				return oops.Code("SEED_FAILED").With("email", email).Wrap(err)
			}
			if err := roles.Grant(ctx, m.ID, auth.RoleOperator); err != nil {
				return oops.Code("SEED_FAILED").With("email", email).Wrap(err)
			}
		}
		return nil
	})
	if err != nil {
		return err //nolint:wrapcheck // inner errors carry codes
	}

	//nolint:errcheck // progress output is best effort
	io.WriteString(out, seedSummary(seed))
	return nil
}

func seedSummary(seed seedFile) string {
	var b strings.Builder
	b.WriteString("Roles ensured: " + strings.Join(seed.Roles, ", ") + "\n")
	if len(seed.Operators) > 0 {
		b.WriteString("Operator granted: " + strings.Join(seed.Operators, ", ") + "\n")
	}
	return b.String()
}
