// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels.
const (
	ResultAllowed   = "allowed"
	ResultDenied    = "denied"
	ResultSuccess   = "success"
	ResultInvalid   = "invalid"
	ResultDuplicate = "duplicate"
	ResultError     = "error"
)

// Metrics holds the authgate Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	AuthChecks      *prometheus.CounterVec
	Logins          *prometheus.CounterVec
	Registrations   *prometheus.CounterVec
	Logouts         prometheus.Counter
	SessionsSwept   prometheus.Counter
	SweepFailures   prometheus.Counter
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the authgate metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_auth_checks_total",
				Help: "Forward-auth checks by result",
			},
			[]string{"result"},
		),
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_logins_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_registrations_total",
				Help: "Registration attempts by result",
			},
			[]string{"result"},
		),
		Logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_logouts_total",
			Help: "Logout requests",
		}),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_sessions_swept_total",
			Help: "Expired sessions removed by the sweeper",
		}),
		SweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_sweep_failures_total",
			Help: "Sweeper runs that failed",
		}),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authgate_http_request_duration_seconds",
				Help:    "HTTP request latency by route, method and status code",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "code"},
		),
	}

	reg.MustRegister(
		m.AuthChecks,
		m.Logins,
		m.Registrations,
		m.Logouts,
		m.SessionsSwept,
		m.SweepFailures,
		m.RequestDuration,
	)
	return m
}

// AuthCheck records a forward-auth decision.
func (m *Metrics) AuthCheck(result string) {
	if m != nil {
		m.AuthChecks.WithLabelValues(result).Inc()
	}
}

// Login records a login attempt.
func (m *Metrics) Login(result string) {
	if m != nil {
		m.Logins.WithLabelValues(result).Inc()
	}
}

// Registration records a registration attempt.
func (m *Metrics) Registration(result string) {
	if m != nil {
		m.Registrations.WithLabelValues(result).Inc()
	}
}

// Logout records a logout.
func (m *Metrics) Logout() {
	if m != nil {
		m.Logouts.Inc()
	}
}

// Sweep records one sweeper run.
func (m *Metrics) Sweep(removed int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SweepFailures.Inc()
		return
	}
	m.SessionsSwept.Add(float64(removed))
}

// Request records the latency of one HTTP request.
func (m *Metrics) Request(route, method string, code int, d time.Duration) {
	if m != nil {
		m.RequestDuration.WithLabelValues(route, method, strconv.Itoa(code)).Observe(d.Seconds())
	}
}
