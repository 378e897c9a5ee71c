// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authgate/internal/auth"
	"github.com/holomush/authgate/internal/config"
	"github.com/holomush/authgate/internal/observability"
	"github.com/holomush/authgate/internal/store"
	"github.com/holomush/authgate/internal/sweep"
	"github.com/holomush/authgate/internal/web"
	"github.com/holomush/authgate/pkg/errutil"
)

const shutdownTimeout = 10 * time.Second

// serveDeps holds the injectable pieces of the serve command.
type serveDeps struct {
	openStore func(ctx context.Context, cfg *config.Config) (*store.Store, error)
	listen    func(network, addr string) (net.Listener, error)
	hasher    auth.PasswordHasher
	// onReady is called with the bound gateway address once it accepts
	// connections.
	onReady func(addr string)
}

func defaultServeDeps() *serveDeps {
	return &serveDeps{
		openStore: openStore,
		listen:    net.Listen,
		hasher:    auth.NewArgon2idHasher(),
	}
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the forward-auth gateway",
		Long: `Run the gateway HTTP server. It applies pending migrations, serves the
login and registration pages and answers /auth/proxy checks until it
receives SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, defaultServeDeps())
		},
	}
}

func runServe(ctx context.Context, cmd *cobra.Command, deps *serveDeps) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	st, err := deps.openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			errutil.LogError(logger, "failed to close store", closeErr)
		}
	}()
	logger.Info("store ready", "driver", st.Driver())

	sessions, err := newSessionManager(cfg, st)
	if err != nil {
		return err
	}
	svc, err := auth.NewService(st.Users, sessions, deps.hasher,
		auth.WithLogger(logger),
		auth.WithOpTimeout(cfg.Database.OpTimeout))
	if err != nil {
		return oops.With("operation", "create auth service").Wrap(err)
	}

	var metrics *observability.Metrics
	var obsServer *observability.Server
	var obsErrCh <-chan error
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, st.Ping, logger)
		obsErrCh, err = obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		metrics = obsServer.Metrics()
	}

	ui, err := web.LoadUI(cfg.UI.SiteName, cfg.UI.CSSPath, cfg.UI.LogoPath)
	if err != nil {
		stopObservability(logger, obsServer)
		return err
	}
	handler, err := web.NewHandler(svc,
		web.WithLogger(logger),
		web.WithMetrics(metrics),
		web.WithUI(ui),
		web.WithSecureCookie(cfg.Cookie.Secure))
	if err != nil {
		stopObservability(logger, obsServer)
		return oops.With("operation", "create web handler").Wrap(err)
	}
	if !cfg.Cookie.Secure {
		logger.Warn("session cookie Secure attribute disabled; use only behind plain HTTP for local testing")
	}

	var sweeper *sweep.Sweeper
	if cfg.Session.TTL > 0 && cfg.Session.SweepSchedule != "" {
		sweeper, err = sweep.New(cfg.Session.SweepSchedule, sessions,
			sweep.WithLogger(logger),
			sweep.WithRecorder(metrics))
		if err != nil {
			stopObservability(logger, obsServer)
			return err
		}
		sweeper.Start()
		logger.Info("session sweeper started", "schedule", cfg.Session.SweepSchedule, "ttl", cfg.Session.TTL)
	}

	listener, err := deps.listen("tcp", cfg.ListenAddr)
	if err != nil {
		stopSweeper(logger, sweeper)
		stopObservability(logger, obsServer)
		return oops.Code("LISTEN_FAILED").With("addr", cfg.ListenAddr).Wrap(err)
	}
	srv := web.NewServer(cfg.ListenAddr, handler)
	srvErrCh := make(chan error, 1)
	go func() {
		defer close(srvErrCh)
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			srvErrCh <- serveErr
		}
	}()

	addr := listener.Addr().String()
	logger.Info("authgate listening", "addr", addr, "session_ttl", cfg.Session.TTL)
	if deps.onReady != nil {
		deps.onReady(addr)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr := <-srvErrCh:
		runErr = oops.Code("SERVE_FAILED").With("addr", addr).Wrap(serveErr)
	case obsErr, ok := <-obsErrCh:
		if ok && obsErr != nil {
			runErr = oops.Code("OBSERVABILITY_FAILED").Wrap(obsErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errutil.LogError(logger, "gateway shutdown error", err)
	}
	stopSweeper(logger, sweeper)
	stopObservability(logger, obsServer)

	logger.Info("authgate stopped")
	return runErr
}

func stopSweeper(logger *slog.Logger, s *sweep.Sweeper) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		errutil.LogError(logger, "sweeper shutdown error", err)
	}
}

func stopObservability(logger *slog.Logger, s *observability.Server) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		errutil.LogError(logger, "observability shutdown error", err)
	}
}
