// Copyright (c) 2026 ArsipKTP. All rights reserved.
// Author: dev@arsipdigital.id

// Package metrics registers and exposes the Prometheus instruments for the
// capture workflow. All counters are registered once via promauto; the
// /metrics endpoint is mounted by the API server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus instruments for the application.
type Metrics struct {
	CapturesTotal      prometheus.Counter
	ExtractionFailures prometheus.Counter
	ExtractionLatency  prometheus.Histogram
	SavesTotal         prometheus.Counter
	SaveFailures       prometheus.Counter
	HistoryRefreshes   prometheus.Counter
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		CapturesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arsipktp_captures_total",
			Help: "Total number of capture intents accepted by the workflow",
		}),
		ExtractionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arsipktp_extraction_failures_total",
			Help: "Total number of AI field-extraction calls that failed",
		}),
		ExtractionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "arsipktp_extraction_duration_seconds",
			Help:    "Latency of AI field-extraction calls",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		SavesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arsipktp_saves_total",
			Help: "Total number of records appended to the archive",
		}),
		SaveFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arsipktp_save_failures_total",
			Help: "Total number of archive append attempts that failed",
		}),
		HistoryRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arsipktp_history_refreshes_total",
			Help: "Total number of successful archive history refreshes",
		}),
	}
}

// ObserveExtraction records the outcome and latency of one extraction call.
func (m *Metrics) ObserveExtraction(elapsed time.Duration, err error) {
	m.ExtractionLatency.Observe(elapsed.Seconds())
	if err != nil {
		m.ExtractionFailures.Inc()
	}
}
