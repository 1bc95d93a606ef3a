// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes Prometheus instrumentation for the annotation
// pipeline, its upstream clients and the MCP tool surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

var (
	// Pipeline metrics
	stageCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ontology_annotator_stage_calls_total",
			Help: "Total number of matching stage executions",
		},
		[]string{"stage", "outcome"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ontology_annotator_stage_duration_seconds",
			Help:    "Matching stage latency in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	matchesReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ontology_annotator_matches_returned",
			Help:    "Number of matches returned per annotated text",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	// Upstream metrics
	upstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ontology_annotator_upstream_requests_total",
			Help: "Total number of requests sent to upstream services",
		},
		[]string{"service", "outcome"},
	)

	upstreamRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ontology_annotator_upstream_retries_total",
			Help: "Total number of retried upstream requests",
		},
		[]string{"service"},
	)

	llmTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ontology_annotator_llm_tokens_total",
			Help: "Total language model tokens consumed",
		},
		[]string{"model", "type"},
	)

	// Tool metrics
	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ontology_annotator_tool_calls_total",
			Help: "Total number of MCP tool invocations",
		},
		[]string{"tool", "outcome"},
	)

	toolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ontology_annotator_tool_duration_seconds",
			Help:    "MCP tool latency in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"tool"},
	)
)

// RecordStage records one execution of a matching stage
func RecordStage(stage, outcome string, duration time.Duration) {
	stageCallsTotal.WithLabelValues(stage, outcome).Inc()
	if outcome != OutcomeSkipped {
		stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	}
}

// RecordMatches records the size of a final match list
func RecordMatches(count int) {
	matchesReturned.Observe(float64(count))
}

// RecordUpstreamRequest records the outcome of one upstream attempt
func RecordUpstreamRequest(service, outcome string) {
	upstreamRequestsTotal.WithLabelValues(service, outcome).Inc()
}

// RecordRetry records a scheduled retry against service
func RecordRetry(service string) {
	upstreamRetriesTotal.WithLabelValues(service).Inc()
}

// RecordTokens records language model token usage
func RecordTokens(model, tokenType string, count int) {
	if count > 0 {
		llmTokensTotal.WithLabelValues(model, tokenType).Add(float64(count))
	}
}

// RecordToolCall records an MCP tool invocation
func RecordToolCall(tool, outcome string, duration time.Duration) {
	toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}
