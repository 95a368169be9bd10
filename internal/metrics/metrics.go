// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

// Package metrics provides Prometheus instrumentation for the ingest
// path, the event store, the broadcast hub, and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	EventsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagepulse_events_ingested_total",
			Help: "Total number of events durably ingested",
		},
	)

	IngestFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagepulse_ingest_failures_total",
			Help: "Total number of failed ingest attempts",
		},
		[]string{"reason"}, // "store_unavailable", "invalid_event"
	)

	// Event store metrics
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagepulse_store_query_duration_seconds",
			Help:    "Duration of event store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "append", "query", "count", "sweep"
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagepulse_store_errors_total",
			Help: "Total number of event store errors",
		},
		[]string{"operation"},
	)

	EventsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagepulse_events_swept_total",
			Help: "Total number of events removed by the retention sweep",
		},
	)

	// Realtime hub metrics
	SubscribersConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pagepulse_realtime_subscribers",
			Help: "Current number of connected realtime subscribers",
		},
	)

	BroadcastsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagepulse_realtime_broadcasts_total",
			Help: "Total number of updates fanned out to subscribers",
		},
	)

	SubscribersDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagepulse_realtime_subscribers_dropped_total",
			Help: "Subscribers disconnected because their delivery queue was full",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagepulse_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagepulse_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ObserveStoreQuery records the duration of a store operation and, when
// it failed, increments the matching error counter.
func ObserveStoreQuery(operation string, start time.Time, err error) {
	StoreQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		StoreErrors.WithLabelValues(operation).Inc()
	}
}
