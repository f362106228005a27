// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mailadmin"

var (
	// AuthGateDecisions counts gate outcomes: open, allowed, missing, invalid, forbidden.
	AuthGateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_gate_decisions_total",
		Help:      "Authorization gate decisions by outcome.",
	}, []string{"outcome"})

	// TokensIssued counts bearer tokens handed out per principal kind.
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Bearer tokens issued by principal kind.",
	}, []string{"kind"})

	// AuditEvents counts audit rows written.
	AuditEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_total",
		Help:      "Audit events appended by entity type and status.",
	}, []string{"entity_type", "status"})

	AuditAppendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_append_errors_total",
		Help:      "Audit events that could not be written.",
	})

	AuditPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_publish_errors_total",
		Help:      "Audit events written but not fanned out to the bus.",
	})
)
