// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"
)

// NewSessionsCmd creates the sessions subcommand.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Administer login sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke USERNAME",
		Short: "Delete every session belonging to a user",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsRevoke,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Delete expired sessions now",
		RunE:  runSessionsSweep,
	})

	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runSessionsRevoke(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck // best-effort cleanup

	sessions, err := newSessionManager(cfg, st)
	if err != nil {
		return err
	}
	n, err := sessions.Revoke(ctx, args[0])
	if err != nil {
		return err
	}
	cmd.Printf("Revoked %d session(s) for %s.\n", n, args[0])
	return nil
}

func runSessionsSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Session.TTL == 0 {
		cmd.Println("Session expiry is disabled; nothing to sweep.")
		return nil
	}
	ctx := commandContext(cmd)
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck // best-effort cleanup

	sessions, err := newSessionManager(cfg, st)
	if err != nil {
		return err
	}
	n, err := sessions.DeleteExpired(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Removed %d expired session(s).\n", n)
	return nil
}
