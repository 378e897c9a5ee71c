// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authgate/internal/auth"
	"github.com/holomush/authgate/internal/auth/postgres"
)

func newMockSessionRepo(t *testing.T) (*postgres.SessionRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		mock.Close()
	})
	return postgres.NewSessionRepository(mock), mock
}

func TestSessionRepository_Create(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	session := &auth.Session{ID: "abc", Username: "alice", CreatedAt: created}

	t.Run("inserts session with unix created_at", func(t *testing.T) {
		repo, mock := newMockSessionRepo(t)
		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs("abc", "alice", created.Unix()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Create(ctx, session))
	})

	t.Run("id collision is a store error", func(t *testing.T) {
		repo, mock := newMockSessionRepo(t)
		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs("abc", "alice", created.Unix()).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		err := repo.Create(ctx, session)
		require.ErrorIs(t, err, auth.ErrStore)
	})

	t.Run("database error", func(t *testing.T) {
		repo, mock := newMockSessionRepo(t)
		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs("abc", "alice", created.Unix()).
			WillReturnError(errors.New("connection refused"))

		err := repo.Create(ctx, session)
		require.ErrorIs(t, err, auth.ErrStore)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestSessionRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		repo, mock := newMockSessionRepo(t)
		mock.ExpectQuery(`SELECT username, created_at FROM sessions WHERE id`).
			WithArgs("abc").
			WillReturnRows(pgxmock.NewRows([]string{"username", "created_at"}).AddRow("alice", int64(1767261600)))

		s, err := repo.GetByID(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "abc", s.ID)
		assert.Equal(t, "alice", s.Username)
		assert.Equal(t, time.Unix(1767261600, 0).UTC(), s.CreatedAt)
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockSessionRepo(t)
		mock.ExpectQuery(`SELECT username, created_at FROM sessions WHERE id`).
			WithArgs("abc").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByID(ctx, "abc")
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("database error", func(t *testing.T) {
		repo, mock := newMockSessionRepo(t)
		mock.ExpectQuery(`SELECT username, created_at FROM sessions WHERE id`).
			WithArgs("abc").
			WillReturnError(errors.New("timeout"))

		_, err := repo.GetByID(ctx, "abc")
		require.ErrorIs(t, err, auth.ErrStore)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestSessionRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes one row", func(t *testing.T) {
		repo, mock := newMockSessionRepo(t)
		mock.ExpectExec(`DELETE FROM sessions WHERE id`).
			WithArgs("abc").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.Delete(ctx, "abc"))
	})

	t.Run("no rows is not found", func(t *testing.T) {
		repo, mock := newMockSessionRepo(t)
		mock.ExpectExec(`DELETE FROM sessions WHERE id`).
			WithArgs("abc").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		require.ErrorIs(t, repo.Delete(ctx, "abc"), auth.ErrNotFound)
	})

	t.Run("database error", func(t *testing.T) {
		repo, mock := newMockSessionRepo(t)
		mock.ExpectExec(`DELETE FROM sessions WHERE id`).
			WithArgs("abc").
			WillReturnError(errors.New("connection refused"))

		require.ErrorIs(t, repo.Delete(ctx, "abc"), auth.ErrStore)
	})
}

func TestSessionRepository_BulkDeletes(t *testing.T) {
	ctx := context.Background()

	t.Run("delete by username returns count", func(t *testing.T) {
		repo, mock := newMockSessionRepo(t)
		mock.ExpectExec(`DELETE FROM sessions WHERE username`).
			WithArgs("alice").
			WillReturnResult(pgxmock.NewResult("DELETE", 3))

		n, err := repo.DeleteByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("delete by username with no sessions", func(t *testing.T) {
		repo, mock := newMockSessionRepo(t)
		mock.ExpectExec(`DELETE FROM sessions WHERE username`).
			WithArgs("alice").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		n, err := repo.DeleteByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("delete created before uses unix cutoff", func(t *testing.T) {
		repo, mock := newMockSessionRepo(t)
		cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		mock.ExpectExec(`DELETE FROM sessions WHERE created_at`).
			WithArgs(cutoff.Unix()).
			WillReturnResult(pgxmock.NewResult("DELETE", 7))

		n, err := repo.DeleteCreatedBefore(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, int64(7), n)
	})

	t.Run("delete created before database error", func(t *testing.T) {
		repo, mock := newMockSessionRepo(t)
		mock.ExpectExec(`DELETE FROM sessions WHERE created_at`).
			WillReturnError(errors.New("connection refused"))

		_, err := repo.DeleteCreatedBefore(ctx, time.Now())
		require.ErrorIs(t, err, auth.ErrStore)
	})
}
