// Package metrics exposes Prometheus instrumentation for the mirror pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesCollected tracks upstream pages fetched, labelled by action.
	PagesCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopmirror_pages_collected_total",
		Help: "Total number of upstream pages fetched",
	}, []string{"action"})

	// ItemsCollected tracks normalised items produced by the collector.
	ItemsCollected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopmirror_items_collected_total",
		Help: "Total number of upstream items collected",
	})

	// CredentialRotations counts rotation steps, labelled by failure kind.
	CredentialRotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopmirror_credential_rotations_total",
		Help: "Total number of credential rotation steps",
	}, []string{"kind"})

	// FlushBatches counts outbox drains by outcome (full/partial/failed).
	FlushBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopmirror_flush_batches_total",
		Help: "Total number of outbox flush batches submitted",
	}, []string{"outcome"})

	// FlushDuration measures how long one outbox drain takes.
	FlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shopmirror_flush_duration_seconds",
		Help:    "Duration of outbox flush batches in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// OutboxBacklog tracks pending queue items after each drain.
	// This is the primary indicator of backend lag.
	OutboxBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shopmirror_outbox_backlog",
		Help: "Current number of pending items in the outbox",
	})

	// BackendHealthy provides a binary 0/1 signal for backend reachability.
	BackendHealthy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shopmirror_backend_healthy",
		Help: "Backend reachability (1 for healthy, 0 for offline)",
	})
)
