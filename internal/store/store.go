// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store opens the backing database, applies migrations and hands
// out the auth repositories bound to it.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	// Register the sqlite3 database/sql driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/authgate/internal/auth"
	"github.com/holomush/authgate/internal/auth/postgres"
	"github.com/holomush/authgate/internal/auth/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// MemoryPath opens a private in-memory SQLite database. The pool is pinned
// to one connection so every query sees the same database.
const MemoryPath = ":memory:"

// Config describes how to reach the database.
type Config struct {
	Driver   string
	Path     string // sqlite file
	URL      string // postgres DSN
	MaxConns int

	// ConnectBackoff controls the startup ping. Nil uses a bounded
	// exponential backoff.
	ConnectBackoff retry.Backoff
}

func defaultBackoff() retry.Backoff {
	return retry.WithMaxRetries(5, retry.NewExponential(250*time.Millisecond))
}

// Store owns the connection pool and the repositories built on it.
type Store struct {
	Users    auth.CredentialStore
	Sessions auth.SessionRepository

	driver string
	url    string
	db     *sql.DB
	pool   *pgxpool.Pool
}

// Open connects to the configured database and waits until it answers a
// ping. It does not migrate; call Migrate for that.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.MaxConns <= 0 {
		return nil, oops.Code("STORE_CONFIG_INVALID").With("max_conns", cfg.MaxConns).Errorf("max_conns must be positive")
	}
	backoff := cfg.ConnectBackoff
	if backoff == nil {
		backoff = defaultBackoff()
	}

	switch cfg.Driver {
	case DriverSQLite:
		return openSQLite(ctx, cfg, backoff)
	case DriverPostgres:
		return openPostgres(ctx, cfg, backoff)
	default:
		return nil, oops.Code("STORE_CONFIG_INVALID").With("driver", cfg.Driver).Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func sqliteDSN(path string) string {
	if path == MemoryPath {
		return MemoryPath
	}
	return "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
}

func openSQLite(ctx context.Context, cfg Config, backoff retry.Backoff) (*Store, error) {
	if cfg.Path == "" {
		return nil, oops.Code("STORE_CONFIG_INVALID").Errorf("sqlite driver requires a database path")
	}
	db, err := sql.Open("sqlite3", sqliteDSN(cfg.Path))
	if err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").With("driver", DriverSQLite).With("path", cfg.Path).Wrap(err)
	}
	maxConns := cfg.MaxConns
	if cfg.Path == MemoryPath {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	if err := pingWithRetry(ctx, backoff, db.PingContext); err != nil {
		_ = db.Close() //nolint:errcheck // ping error takes precedence
		return nil, oops.With("driver", DriverSQLite).With("path", cfg.Path).Wrap(err)
	}

	return &Store{
		Users:    sqlite.NewUserRepository(db),
		Sessions: sqlite.NewSessionRepository(db),
		driver:   DriverSQLite,
		db:       db,
	}, nil
}

func openPostgres(ctx context.Context, cfg Config, backoff retry.Backoff) (*Store, error) {
	if cfg.URL == "" {
		return nil, oops.Code("STORE_CONFIG_INVALID").Errorf("postgres driver requires a database url")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, oops.Code("STORE_CONFIG_INVALID").With("driver", DriverPostgres).Wrap(err)
	}
	poolCfg.MaxConns = int32(min(cfg.MaxConns, 1<<20)) //nolint:gosec // bounded above

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").With("driver", DriverPostgres).Wrap(err)
	}

	if err := pingWithRetry(ctx, backoff, pool.Ping); err != nil {
		pool.Close()
		return nil, oops.With("driver", DriverPostgres).Wrap(err)
	}

	return &Store{
		Users:    postgres.NewUserRepository(pool),
		Sessions: postgres.NewSessionRepository(pool),
		driver:   DriverPostgres,
		url:      cfg.URL,
		pool:     pool,
	}, nil
}

// pingWithRetry calls ping until it succeeds, the backoff gives up or ctx ends.
func pingWithRetry(ctx context.Context, backoff retry.Backoff, ping func(context.Context) error) error {
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("STORE_UNREACHABLE").With("operation", "ping").Wrap(err)
	}
	return nil
}

// Driver returns the driver name the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// Migrator returns a Migrator for the store's database. The caller must
// Close it.
func (s *Store) Migrator() (*Migrator, error) {
	if s.driver == DriverPostgres {
		return NewPostgresMigrator(s.url)
	}
	return NewSQLiteMigrator(s.db)
}

// Migrate applies all pending migrations.
func (s *Store) Migrate() error {
	m, err := s.Migrator()
	if err != nil {
		return err
	}
	upErr := m.Up()
	closeErr := m.Close()
	if upErr != nil {
		return upErr
	}
	return closeErr
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	var err error
	if s.pool != nil {
		err = s.pool.Ping(ctx)
	} else {
		err = s.db.PingContext(ctx)
	}
	if err != nil {
		return oops.Code("STORE_PING_FAILED").With("driver", s.driver).Wrap(err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
		return nil
	}
	if err := s.db.Close(); err != nil {
		return oops.Code("STORE_CLOSE_FAILED").With("driver", s.driver).Wrap(err)
	}
	return nil
}
