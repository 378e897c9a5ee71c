// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authgate/internal/auth"
	"github.com/holomush/authgate/internal/config"
	"github.com/holomush/authgate/internal/logging"
	"github.com/holomush/authgate/internal/store"
	"github.com/holomush/authgate/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the authgate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authgate",
		Short: "authgate - a forward-auth gateway",
		Long: `authgate registers users, issues session cookies and answers
forward-auth checks from reverse proxies with a Remote-User header.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML, default $XDG_CONFIG_HOME/authgate/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSessionsCmd())

	return cmd
}

// loadConfig resolves configuration for cmd from the config file,
// environment and flags. Without --config, $XDG_CONFIG_HOME/authgate/config.yaml
// is used when present.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		path = xdg.DefaultConfigFile()
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, oops.With("config_file", path).Wrap(err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Validation already accepted the level.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	return logging.Setup(logging.Options{
		Service: "authgate",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Writer:  w,
	})
}

func storeConfig(cfg *config.Config) store.Config {
	return store.Config{
		Driver:   cfg.Database.Driver,
		Path:     cfg.Database.Path,
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
	}
}

// openStore connects and applies pending migrations.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, storeConfig(cfg))
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("driver", cfg.Database.Driver).Wrap(err)
	}
	if err := st.Migrate(); err != nil {
		_ = st.Close() //nolint:errcheck // migration error takes precedence
		return nil, oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	return st, nil
}

func newSessionManager(cfg *config.Config, st *store.Store) (*auth.SessionManager, error) {
	return auth.NewSessionManager(st.Sessions, auth.WithSessionTTL(cfg.Session.TTL))
}
