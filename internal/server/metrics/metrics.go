// Package metrics holds the Prometheus collectors of the identity server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Outcome label values.
const (
	StatusOK       = "ok"
	StatusRejected = "rejected"
	StatusError    = "error"
	StatusRetried  = "retried"
	StatusDropped  = "dropped"
)

// Metrics contains the custom collectors recorded by services and workers.
type Metrics struct {
	InvitesTotal        *prometheus.CounterVec
	LoginsTotal         *prometheus.CounterVec
	RegistrationsTotal  *prometheus.CounterVec
	MailDeliveriesTotal *prometheus.CounterVec
	PasswordHashSeconds *prometheus.HistogramVec
}

// New creates the custom metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		InvitesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "draftauth_invites_total",
				Help: "Total number of invitations by outcome",
			},
			[]string{"status"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "draftauth_logins_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"status"},
		),
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "draftauth_registrations_total",
				Help: "Total number of registrations by outcome",
			},
			[]string{"status"},
		),
		MailDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "draftauth_mail_deliveries_total",
				Help: "Total number of mail delivery attempts by outcome",
			},
			[]string{"status"},
		),
		PasswordHashSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "draftauth_password_hash_seconds",
				Help:    "Time spent hashing or verifying passwords",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
			},
			[]string{"op"},
		),
	}

	reg.MustRegister(
		m.InvitesTotal,
		m.LoginsTotal,
		m.RegistrationsTotal,
		m.MailDeliveriesTotal,
		m.PasswordHashSeconds,
	)

	return m
}

// NewRegistry returns a private registry carrying the Go runtime and
// process collectors, so the global one stays untouched.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// Discard returns metrics registered nowhere, for tests and tools.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}
