// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/authgate/internal/auth"
	"github.com/holomush/authgate/internal/store"
)

var _ = Describe("PostgreSQL store", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		s         *store.Store
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("authgate_test"),
			postgres.WithUsername("authgate"),
			postgres.WithPassword("authgate"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		s, err = store.Open(ctx, store.Config{Driver: store.DriverPostgres, URL: connStr, MaxConns: 4})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Migrate()).To(Succeed())
	})

	AfterAll(func() {
		if s != nil {
			Expect(s.Close()).To(Succeed())
		}
		if container != nil {
			Expect(container.Terminate(ctx)).To(Succeed())
		}
	})

	Describe("migrations", func() {
		It("are idempotent and report the latest version", func() {
			Expect(s.Migrate()).To(Succeed())

			m, err := s.Migrator()
			Expect(err).NotTo(HaveOccurred())
			defer m.Close()

			version, dirty, err := m.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(uint(2)))
			Expect(dirty).To(BeFalse())

			pending, err := m.PendingMigrations()
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeEmpty())
		})
	})

	Describe("users", func() {
		It("rejects a duplicate username and keeps the first hash", func() {
			Expect(s.Users.CreateUser(ctx, "alice", "first")).To(Succeed())

			err := s.Users.CreateUser(ctx, "alice", "second")
			Expect(err).To(MatchError(auth.ErrDuplicateUsername))

			hash, err := s.Users.FindPasswordHash(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(hash).To(Equal("first"))
		})

		It("reports unknown users as not found", func() {
			_, err := s.Users.FindPasswordHash(ctx, "nobody")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("sessions", func() {
		It("round-trips, expires and revokes", func() {
			base := time.Unix(1767261600, 0).UTC()
			Expect(s.Sessions.Create(ctx, &auth.Session{ID: "p1", Username: "bob", CreatedAt: base.Add(-time.Hour)})).To(Succeed())
			Expect(s.Sessions.Create(ctx, &auth.Session{ID: "p2", Username: "bob", CreatedAt: base})).To(Succeed())
			Expect(s.Sessions.Create(ctx, &auth.Session{ID: "p3", Username: "carol", CreatedAt: base})).To(Succeed())

			err := s.Sessions.Create(ctx, &auth.Session{ID: "p3", Username: "mallory", CreatedAt: base})
			Expect(err).To(MatchError(auth.ErrStore))

			got, err := s.Sessions.GetByID(ctx, "p2")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Username).To(Equal("bob"))
			Expect(got.CreatedAt.Equal(base)).To(BeTrue())

			n, err := s.Sessions.DeleteCreatedBefore(ctx, base)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))

			n, err = s.Sessions.DeleteByUsername(ctx, "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))

			Expect(s.Sessions.Delete(ctx, "p3")).To(Succeed())
			Expect(s.Sessions.Delete(ctx, "p3")).To(MatchError(auth.ErrNotFound))
		})
	})

	It("answers readiness pings", func() {
		Expect(s.Ping(ctx)).To(Succeed())
	})
})
