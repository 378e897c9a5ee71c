// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package sweep periodically deletes expired sessions.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/oops"

	"github.com/holomush/authgate/pkg/errutil"
)

// DefaultRunTimeout bounds a single sweep.
const DefaultRunTimeout = 30 * time.Second

// Expirer deletes expired sessions and reports how many were removed.
// *auth.SessionManager satisfies it.
type Expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Recorder observes sweep outcomes. *observability.Metrics satisfies it.
type Recorder interface {
	Sweep(removed int64, err error)
}

// Sweeper runs an Expirer on a cron schedule.
type Sweeper struct {
	cron       *cron.Cron
	expirer    Expirer
	recorder   Recorder
	logger     *slog.Logger
	runTimeout time.Duration
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Sweeper) { s.recorder = r }
}

// WithRunTimeout bounds each run.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Sweeper) { s.runTimeout = d }
}

// New creates a Sweeper for a standard cron schedule or descriptor such
// as "@every 10m". Overlapping runs are skipped.
func New(schedule string, expirer Expirer, opts ...Option) (*Sweeper, error) {
	if expirer == nil {
		return nil, oops.Code("SWEEP_INVALID").Errorf("expirer is required")
	}
	s := &Sweeper{
		expirer:    expirer,
		logger:     slog.Default(),
		runTimeout: DefaultRunTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Code("SWEEP_INVALID").Errorf("logger is required")
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug))
	s.cron = cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, oops.Code("SWEEP_INVALID").With("schedule", schedule).Wrap(err)
	}
	return s, nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()
	_, _ = s.RunOnce(ctx) //nolint:errcheck // logged and recorded by RunOnce
}

// RunOnce deletes expired sessions immediately.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	n, err := s.expirer.DeleteExpired(ctx)
	if s.recorder != nil {
		s.recorder.Sweep(n, err)
	}
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "session sweep failed", err)
		return 0, oops.Code("SWEEP_FAILED").Wrap(err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired sessions removed", "count", n)
	} else {
		s.logger.DebugContext(ctx, "no expired sessions")
	}
	return n, nil
}

// Start begins running on schedule in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish or for
// ctx to end.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return oops.Code("SWEEP_STOP_TIMEOUT").Wrap(ctx.Err())
	}
}
