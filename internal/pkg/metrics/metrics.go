// Package metrics holds the Prometheus collectors for the outreach engine.
// They register against the default registry and are served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_runs_total",
		Help: "Outreach runs by outcome (completed, precondition_failed, error).",
	}, []string{"outcome"})

	SendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_sends_total",
		Help: "Per-coach send attempts by provider and status.",
	}, []string{"provider", "status"})

	SkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_sends_skipped_total",
		Help: "Candidates skipped at send time (quota, dedup).",
	}, []string{"reason"})

	SendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outreach_send_latency_seconds",
		Help:    "Latency of outbound transport calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	InboundTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_inbound_total",
		Help: "Inbound webhook events by result (recorded, ignored, invalid, unresolved, error).",
	}, []string{"result"})

	ForwardsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_forwards_total",
		Help: "Parent/guardian forwards by status.",
	}, []string{"status"})

	RecoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outreach_stale_messages_recovered_total",
		Help: "Queued messages abandoned and marked failed by recovery.",
	})
)

// ObserveSend records one transport attempt.
func ObserveSend(provider string, ok bool, seconds float64) {
	status := "sent"
	if !ok {
		status = "failed"
	}
	SendsTotal.WithLabelValues(provider, status).Inc()
	SendLatency.WithLabelValues(provider).Observe(seconds)
}
