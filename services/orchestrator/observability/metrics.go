// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the docchat service.
//
// # Description
//
// Metrics cover the answer pipeline (requests, per-stage latency, stage
// fallbacks, refinements), the inbound channel (events by kind and outcome)
// and outbound delivery.
//
// All Record methods are safe to call on a nil *Metrics, which is how
// components run when metrics are disabled.
//
// # Metrics Exposed
//
//   - docchat_pipeline_requests_total{status}
//   - docchat_pipeline_stage_duration_seconds{stage}
//   - docchat_pipeline_stage_fallbacks_total{stage}
//   - docchat_pipeline_refinements_total
//   - docchat_inbound_events_total{kind,outcome}
//   - docchat_delivery_total{status}
package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const metricsNamespace = "docchat"

const (
	pipelineSubsystem = "pipeline"
	inboundSubsystem  = "inbound"
)

// Stage names used as the "stage" label.
const (
	StageAnalyze   = "analyze"
	StageExemplars = "exemplars"
	StageRetrieve  = "retrieve"
	StageGenerate  = "generate"
	StageValidate  = "validate"
)

// Inbound outcomes used as the "outcome" label.
const (
	OutcomeAccepted  = "accepted"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

type Metrics struct {
	RequestsTotal *prometheus.CounterVec

	StageDurationSeconds *prometheus.HistogramVec

	StageFallbacksTotal *prometheus.CounterVec

	RefinementsTotal prometheus.Counter

	InboundEventsTotal *prometheus.CounterVec

	DeliveryTotal *prometheus.CounterVec
}

// DefaultMetrics is the process-wide instance registered by InitMetrics.
var DefaultMetrics *Metrics

var initOnce sync.Once

// InitMetrics registers the metrics with the default Prometheus registry on
// first use and returns the shared instance on every call.
func InitMetrics() *Metrics {
	initOnce.Do(func() {
		DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return DefaultMetrics
}

// NewMetrics creates the metric set registered with reg. Tests pass a fresh
// prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "requests_total",
				Help:      "Total answer pipeline runs by status",
			},
			[]string{"status"},
		),

		StageDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Duration of each pipeline stage in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),

		StageFallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "stage_fallbacks_total",
				Help:      "Stage failures recovered with a fallback value",
			},
			[]string{"stage"},
		),

		RefinementsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "refinements_total",
				Help:      "Drafts replaced by a validator refinement",
			},
		),

		InboundEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: inboundSubsystem,
				Name:      "events_total",
				Help:      "Inbound channel events by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		DeliveryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "delivery_total",
				Help:      "Outbound channel deliveries by status",
			},
			[]string{"status"},
		),
	}
}

// =============================================================================
// Recording Methods
// =============================================================================

// RecordRequest records the end of a pipeline run.
func (m *Metrics) RecordRequest(success bool) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// RecordFallback records a recovered stage failure.
func (m *Metrics) RecordFallback(stage string) {
	if m == nil {
		return
	}
	m.StageFallbacksTotal.WithLabelValues(stage).Inc()
}

// RecordRefinement records a draft replaced by the validator.
func (m *Metrics) RecordRefinement() {
	if m == nil {
		return
	}
	m.RefinementsTotal.Inc()
}

// RecordInbound records one inbound event.
func (m *Metrics) RecordInbound(kind, outcome string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.InboundEventsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordDelivery records one outbound message.
func (m *Metrics) RecordDelivery(success bool) {
	if m == nil {
		return
	}
	m.DeliveryTotal.WithLabelValues(statusLabel(success)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
