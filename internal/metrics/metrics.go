// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics exposes Prometheus instrumentation for the saga
// engine: node attempt counts, retry counts, and terminal saga
// outcomes, scraped via the CLI's optional --metrics-addr.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the engine's Prometheus collectors. A nil
// *Registry is safe to use — every method becomes a no-op — so the
// engine need not special-case "metrics disabled".
type Registry struct {
	nodeAttempts  *prometheus.CounterVec
	nodeDurations *prometheus.HistogramVec
	retryAttempts *prometheus.CounterVec
	sagaOutcomes  *prometheus.CounterVec
	undoAttempts  *prometheus.CounterVec
}

// NewRegistry creates and registers the saga engine's collectors
// against reg. Pass prometheus.NewRegistry() in tests to avoid
// colliding with the global default registry.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		nodeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sagactl",
			Subsystem: "engine",
			Name:      "node_attempts_total",
			Help:      "Number of times a node's forward body was invoked.",
		}, []string{"node", "outcome"}),
		nodeDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sagactl",
			Subsystem: "engine",
			Name:      "node_duration_seconds",
			Help:      "Wall-clock duration of a node's forward invocation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node"}),
		retryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sagactl",
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Number of External-Call Retry attempts, by operation.",
		}, []string{"op"}),
		sagaOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sagactl",
			Subsystem: "engine",
			Name:      "saga_outcomes_total",
			Help:      "Terminal saga outcomes: success, compensated, stuck.",
		}, []string{"outcome"}),
		undoAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sagactl",
			Subsystem: "engine",
			Name:      "undo_attempts_total",
			Help:      "Number of times a node's undo body was invoked.",
		}, []string{"node", "outcome"}),
	}
	reg.MustRegister(r.nodeAttempts, r.nodeDurations, r.retryAttempts, r.sagaOutcomes, r.undoAttempts)
	return r
}

func (r *Registry) ObserveNodeAttempt(node, outcome string) {
	if r == nil {
		return
	}
	r.nodeAttempts.WithLabelValues(node, outcome).Inc()
}

func (r *Registry) ObserveNodeDuration(node string, seconds float64) {
	if r == nil {
		return
	}
	r.nodeDurations.WithLabelValues(node).Observe(seconds)
}

func (r *Registry) ObserveRetryAttempt(op string) {
	if r == nil {
		return
	}
	r.retryAttempts.WithLabelValues(op).Inc()
}

func (r *Registry) ObserveSagaOutcome(outcome string) {
	if r == nil {
		return
	}
	r.sagaOutcomes.WithLabelValues(outcome).Inc()
}

func (r *Registry) ObserveUndoAttempt(node, outcome string) {
	if r == nil {
		return
	}
	r.undoAttempts.WithLabelValues(node, outcome).Inc()
}
