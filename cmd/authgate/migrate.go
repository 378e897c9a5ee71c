// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authgate/internal/store"
)

// NewMigrateCmd creates the migrate subcommand with its subcommands.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply or inspect schema migrations for the configured database.
Running migrate without a subcommand applies all pending migrations.`,
		RunE: runMigrateUp,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  runMigrateUp,
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Long:  "Roll back the given number of migrations. --all rolls back everything and drops all users and sessions.",
		RunE:  runMigrateDown,
	}
	down.Flags().Int("steps", 1, "number of migrations to roll back")
	down.Flags().Bool("all", false, "roll back all migrations")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		RunE:  runMigrateStatus,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long:  "Mark VERSION as applied and clear the dirty flag. Use after repairing a failed migration by hand.",
		Args:  cobra.ExactArgs(1),
		RunE:  runMigrateForce,
	})

	return cmd
}

// withMigrator opens the store without migrating and hands fn a Migrator.
func withMigrator(cmd *cobra.Command, fn func(m *store.Migrator) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := store.Open(commandContext(cmd), storeConfig(cfg))
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("driver", cfg.Database.Driver).Wrap(err)
	}
	defer st.Close() //nolint:errcheck // best-effort cleanup

	m, err := st.Migrator()
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	fnErr := fn(m)
	closeErr := m.Close()
	if fnErr != nil {
		return fnErr
	}
	return closeErr
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m *store.Migrator) error {
		pending, err := m.PendingMigrations()
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			cmd.Println("No pending migrations.")
			return nil
		}

		cmd.Printf("Applying %d migration(s)...\n", len(pending))
		if err := m.Up(); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
		}
		version, _, err := m.Version()
		if err != nil {
			return err
		}
		cmd.Printf("Migrations complete. Now at version %d.\n", version)
		return nil
	})
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return oops.Wrap(err)
	}
	steps, err := cmd.Flags().GetInt("steps")
	if err != nil {
		return oops.Wrap(err)
	}
	if !all && steps <= 0 {
		return oops.Code("INVALID_STEPS").With("steps", steps).Errorf("--steps must be positive")
	}

	return withMigrator(cmd, func(m *store.Migrator) error {
		if all {
			if err := m.Down(); err != nil {
				return err
			}
		} else if err := m.Steps(-steps); err != nil {
			return err
		}
		version, _, err := m.Version()
		if err != nil {
			return err
		}
		cmd.Printf("Rolled back. Now at version %d.\n", version)
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m *store.Migrator) error {
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		status := "clean"
		if dirty {
			status = "dirty"
		}
		cmd.Printf("Current version: %d (%s)\n", version, status)

		applied, err := m.AppliedMigrations()
		if err != nil {
			return err
		}
		pending, err := m.PendingMigrations()
		if err != nil {
			return err
		}
		if err := printMigrations(cmd, m, "Applied", applied); err != nil {
			return err
		}
		return printMigrations(cmd, m, "Pending", pending)
	})
}

func printMigrations(cmd *cobra.Command, m *store.Migrator, label string, versions []uint) error {
	cmd.Printf("%s: %d\n", label, len(versions))
	for _, v := range versions {
		name, err := m.MigrationName(v)
		if err != nil {
			return err
		}
		cmd.Printf("  %s\n", name)
	}
	return nil
}

func runMigrateForce(cmd *cobra.Command, args []string) error {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return oops.Code("INVALID_VERSION").With("version", args[0]).Wrap(err)
	}
	return withMigrator(cmd, func(m *store.Migrator) error {
		if err := m.Force(version); err != nil {
			return err
		}
		cmd.Printf("Forced version %d.\n", version)
		return nil
	})
}
