// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

// Package metrics holds the prometheus collectors shared by the simulation
// core. Components take a *Metrics and record observations inline with their
// bookkeeping, the way tractserver_monitor.go updates health counters
// alongside curator state changes in the teacher repo.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the core publishes. It is safe to pass a
// nil *Metrics through the core; every method is a no-op in that case, so
// tests that don't care about observability don't need to wire a registry.
type Metrics struct {
	StepsProcessed      prometheus.Counter
	TokensSpent         *prometheus.CounterVec
	ActionsEmitted      *prometheus.CounterVec
	RequestsCompleted   prometheus.Counter
	RequestLatencySteps prometheus.Histogram
	AllocationTier      *prometheus.CounterVec
	AllocationFailures  prometheus.Counter
}

// New registers a fresh set of collectors on reg and returns the bundle.
// Passing a prometheus.NewRegistry() keeps tests hermetic; passing
// prometheus.DefaultRegisterer wires the process-wide /metrics endpoint.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StepsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blocksim_steps_processed_total",
			Help: "Number of simulation steps fully executed.",
		}),
		TokensSpent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blocksim_head_tokens_spent_total",
			Help: "Tokens spent by each disk's head, labeled by action kind.",
		}, []string{"action"}),
		ActionsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blocksim_head_actions_total",
			Help: "Head actions emitted, labeled by action kind.",
		}, []string{"action"}),
		RequestsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blocksim_requests_completed_total",
			Help: "Read requests that reached total_remaining == 0.",
		}),
		RequestLatencySteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blocksim_request_latency_steps",
			Help:    "Steps between a read request's registration and its completion.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55},
		}),
		AllocationTier: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blocksim_allocation_tier_total",
			Help: "Replica placements, labeled by the fallback tier that succeeded.",
		}, []string{"tier"}),
		AllocationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blocksim_allocation_failures_total",
			Help: "Object writes that failed every placement tier.",
		}),
	}
	reg.MustRegister(m.StepsProcessed, m.TokensSpent, m.ActionsEmitted,
		m.RequestsCompleted, m.RequestLatencySteps, m.AllocationTier, m.AllocationFailures)
	return m
}

func (m *Metrics) step()                              { m.StepsProcessed.Inc() }
func (m *Metrics) tokens(action string, n int)         { m.TokensSpent.WithLabelValues(action).Add(float64(n)) }
func (m *Metrics) action(kind string)                  { m.ActionsEmitted.WithLabelValues(kind).Inc() }
func (m *Metrics) completed(latencySteps int)          { m.RequestsCompleted.Inc(); m.RequestLatencySteps.Observe(float64(latencySteps)) }
func (m *Metrics) tier(name string)                    { m.AllocationTier.WithLabelValues(name).Inc() }
func (m *Metrics) allocationFailed()                   { m.AllocationFailures.Inc() }

// StepProcessed records that one simulation step completed.
func (m *Metrics) StepProcessed() {
	if m == nil {
		return
	}
	m.step()
}

// TokensSpentFor records n tokens spent on the given action kind ("pass",
// "read", "jump").
func (m *Metrics) TokensSpentFor(action string, n int) {
	if m == nil {
		return
	}
	m.tokens(action, n)
}

// ActionEmitted records one emitted head action of the given kind.
func (m *Metrics) ActionEmitted(kind string) {
	if m == nil {
		return
	}
	m.action(kind)
}

// RequestCompleted records a completed read request, latencySteps steps
// after registration.
func (m *Metrics) RequestCompleted(latencySteps int) {
	if m == nil {
		return
	}
	m.completed(latencySteps)
}

// AllocationTierUsed records which placement tier satisfied a replica.
func (m *Metrics) AllocationTierUsed(name string) {
	if m == nil {
		return
	}
	m.tier(name)
}

// AllocationFailed records an object write that exhausted every tier.
func (m *Metrics) AllocationFailed() {
	if m == nil {
		return
	}
	m.allocationFailed()
}
