// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/gatekeeper/internal/xdg"
)

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"gateway-addr":         "gateway.addr",
	"metrics-addr":         "metrics.addr",
	"log-format":           "log.format",
	"log-level":            "log.level",
	"database-url":         "database.url",
	"throttle-delay":       "auth.throttle_delay",
	"reset-token-bytes":    "reset.token_bytes",
	"reset-token-ttl":      "reset.token_ttl",
	"reset-purge-interval": "reset.purge_interval",
	"mail-transport":       "mail.transport",
	"mail-backlog":         "mail.backlog",
}

// RegisterFlags adds the config override flags to fs. Flag defaults are
// the built-in defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("gateway-addr", d.Gateway.Addr, "gateway listen address")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("database-url", "", "PostgreSQL URL (default: $DATABASE_URL)")
	fs.Duration("throttle-delay", d.Auth.ThrottleDelay, "delay before answering a failed authentication")
	fs.Int("reset-token-bytes", d.Reset.TokenBytes, "random bytes per password reset token")
	fs.Duration("reset-token-ttl", d.Reset.TokenTTL, "password reset token lifetime")
	fs.Duration("reset-purge-interval", d.Reset.PurgeInterval, "interval between expired reset purges (0 = disabled)")
	fs.String("mail-transport", d.Mail.Transport, "mail transport (log or smtp)")
	fs.String("mail-backlog", d.Mail.Backlog, "mail backlog (memory or redis)")
}

// Load reads configuration. Sources, lowest precedence first: built-in
// defaults, the YAML file, then flags the user set explicitly.
//
// An empty path means the XDG default file, which may be absent. An
// explicit path must exist. DATABASE_URL fills database.url when no other
// source sets it.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	filePath, required := path, path != ""
	if filePath == "" {
		if p, err := xdg.ConfigFile(); err == nil {
			filePath = p
		}
	}
	if filePath != "" {
		if err := loadFile(k, filePath, required); err != nil {
			return nil, err
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return oops.Code("CONFIG_FILE_NOT_FOUND").With("path", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
