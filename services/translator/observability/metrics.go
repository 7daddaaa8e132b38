// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// translator service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring translation
// pipeline runs. Metrics include:
//   - Run counters (by terminal status)
//   - Per-phase latency histograms and error counters
//   - Security finding counters (by category and severity)
//   - Capability call latency (by capability and backend)
//   - Refinement loop depth
//   - Active run and stream gauges
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "solforge"

// Subsystem for pipeline metrics
const pipelineSubsystem = "pipeline"

// PipelineMetrics holds all Prometheus metrics for translation runs.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring pipeline
// throughput, phase health, and audit output. Initialize once at startup
// via InitMetrics().
//
// # Fields
//
//   - RunsTotal: Counter of completed runs by terminal status
//   - PhaseDurationSeconds: Histogram of per-phase wall time
//   - PhaseErrorsTotal: Counter of phase failures by phase and error code
//   - FindingsTotal: Counter of security findings by category and severity
//   - CapabilityDurationSeconds: Histogram of capability call latency
//   - RefinementIterations: Histogram of refinement loop depth per run
//   - ActiveRuns: Gauge of runs currently executing
//   - KeepAlivesTotal: Counter of stream keepalive pings by endpoint
//   - ClientDisconnectsTotal: Counter of mid-stream client disconnects
//
// # Thread Safety
//
// All operations are thread-safe.
type PipelineMetrics struct {
	// RunsTotal counts completed runs by terminal status.
	// Labels: status (succeeded, partially_failed, failed)
	RunsTotal *prometheus.CounterVec

	// PhaseDurationSeconds measures per-phase wall time.
	// Labels: phase (document_processing .. scaffold_generation)
	PhaseDurationSeconds *prometheus.HistogramVec

	// PhaseErrorsTotal counts phase failures by phase and error code.
	// Labels: phase, error_code (input_error, generation_error, timeout, ...)
	PhaseErrorsTotal *prometheus.CounterVec

	// FindingsTotal counts security findings emitted by the audit phase.
	// Labels: category (reentrancy, tx_origin, ...), severity (low..critical)
	FindingsTotal *prometheus.CounterVec

	// CapabilityDurationSeconds measures capability call latency.
	// Labels: capability (extract, generate, refine), backend (openai, static)
	CapabilityDurationSeconds *prometheus.HistogramVec

	// RefinementIterations records how many refinement passes each run took.
	RefinementIterations prometheus.Histogram

	// ActiveRuns tracks runs currently executing the pipeline.
	ActiveRuns prometheus.Gauge

	// KeepAlivesTotal counts keepalive pings sent on event streams.
	// Labels: endpoint (translate_sse, translate_ws)
	KeepAlivesTotal *prometheus.CounterVec

	// ClientDisconnectsTotal counts client disconnections during streaming.
	// Labels: endpoint
	ClientDisconnectsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of PipelineMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *PipelineMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup, after Prometheus registry is available.
//
// # Outputs
//
//   - *PipelineMetrics: The initialized metrics instance.
//
// # Examples
//
//	func main() {
//	    observability.InitMetrics()
//	    // ... start server ...
//	}
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
//
// # Assumptions
//
//   - Prometheus default registry is available.
func InitMetrics() *PipelineMetrics {
	DefaultMetrics = &PipelineMetrics{
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "runs_total",
				Help:      "Total completed translation runs by terminal status",
			},
			[]string{"status"},
		),

		PhaseDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "phase_duration_seconds",
				Help:      "Wall-clock duration of each pipeline phase in seconds",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1.0, 5.0, 15.0, 60.0, 180.0},
			},
			[]string{"phase"},
		),

		PhaseErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "phase_errors_total",
				Help:      "Total phase failures by phase and error code",
			},
			[]string{"phase", "error_code"},
		),

		FindingsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "findings_total",
				Help:      "Total security findings by category and severity",
			},
			[]string{"category", "severity"},
		),

		CapabilityDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "capability_duration_seconds",
				Help:      "Latency of capability calls by capability and backend",
				Buckets:   []float64{0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 15.0, 60.0, 120.0},
			},
			[]string{"capability", "backend"},
		),

		RefinementIterations: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "refinement_iterations",
				Help:      "Refinement loop iterations per run",
				Buckets:   []float64{0, 1, 2, 3, 4, 5},
			},
		),

		ActiveRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "active_runs",
				Help:      "Number of pipeline runs currently executing",
			},
		),

		KeepAlivesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "keepalives_total",
				Help:      "Total keepalive pings sent on event streams",
			},
			[]string{"endpoint"},
		),

		ClientDisconnectsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "client_disconnects_total",
				Help:      "Total client disconnections during streaming",
			},
			[]string{"endpoint"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode represents a categorized error type for metrics.
type ErrorCode string

const (
	// ErrorCodeInput indicates input validation or normalization failure.
	ErrorCodeInput ErrorCode = "input_error"

	// ErrorCodeExtraction indicates schema extraction failure.
	ErrorCodeExtraction ErrorCode = "extraction_error"

	// ErrorCodeGeneration indicates code generation failure.
	ErrorCodeGeneration ErrorCode = "generation_error"

	// ErrorCodeAudit indicates the security audit could not run.
	ErrorCodeAudit ErrorCode = "audit_error"

	// ErrorCodeInterface indicates interface extraction failure.
	ErrorCodeInterface ErrorCode = "interface_error"

	// ErrorCodeScaffold indicates tool-server scaffold failure.
	ErrorCodeScaffold ErrorCode = "scaffold_error"

	// ErrorCodeStorage indicates artifact persistence failure.
	ErrorCodeStorage ErrorCode = "storage_error"

	// ErrorCodeTimeout indicates operation timeout.
	ErrorCodeTimeout ErrorCode = "timeout"

	// ErrorCodeCanceled indicates caller cancellation.
	ErrorCodeCanceled ErrorCode = "canceled"

	// ErrorCodeInternal indicates internal server error.
	ErrorCodeInternal ErrorCode = "internal"
)

// =============================================================================
// Endpoint Names
// =============================================================================

// Endpoint represents a streaming endpoint for metrics labeling.
type Endpoint string

const (
	// EndpointTranslateSSE is the HTTP SSE translation endpoint.
	EndpointTranslateSSE Endpoint = "translate_sse"

	// EndpointTranslateWS is the WebSocket translation endpoint.
	EndpointTranslateWS Endpoint = "translate_ws"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRun records a completed run.
//
// # Inputs
//
//   - status: The terminal run status string.
func (m *PipelineMetrics) RecordRun(status string) {
	m.RunsTotal.WithLabelValues(status).Inc()
}

// RecordPhase records a completed phase execution.
//
// # Inputs
//
//   - phase: The phase wire name.
//   - seconds: Phase wall time in seconds.
func (m *PipelineMetrics) RecordPhase(phase string, seconds float64) {
	m.PhaseDurationSeconds.WithLabelValues(phase).Observe(seconds)
}

// RecordPhaseError records a phase failure.
//
// # Inputs
//
//   - phase: The phase wire name.
//   - code: The error type code.
func (m *PipelineMetrics) RecordPhaseError(phase string, code ErrorCode) {
	m.PhaseErrorsTotal.WithLabelValues(phase, string(code)).Inc()
}

// RecordFinding records one security finding.
//
// # Inputs
//
//   - category: The finding category ("reentrancy", "tx_origin", ...).
//   - severity: The finding severity ("low".."critical").
func (m *PipelineMetrics) RecordFinding(category, severity string) {
	m.FindingsTotal.WithLabelValues(category, severity).Inc()
}

// RecordCapability records one capability call.
//
// # Inputs
//
//   - capability: The capability name ("extract", "generate", "refine").
//   - backend: The backend that served it ("openai", "static").
//   - seconds: Call latency in seconds.
func (m *PipelineMetrics) RecordCapability(capability, backend string, seconds float64) {
	m.CapabilityDurationSeconds.WithLabelValues(capability, backend).Observe(seconds)
}

// RecordRefinements records the refinement depth of a finished run.
//
// # Inputs
//
//   - iterations: Number of refinement passes the run performed.
func (m *PipelineMetrics) RecordRefinements(iterations int) {
	m.RefinementIterations.Observe(float64(iterations))
}

// RunStarted increments the active runs gauge.
func (m *PipelineMetrics) RunStarted() {
	m.ActiveRuns.Inc()
}

// RunEnded decrements the active runs gauge.
func (m *PipelineMetrics) RunEnded() {
	m.ActiveRuns.Dec()
}

// RecordKeepAlive increments the keepalive counter.
//
// # Inputs
//
//   - endpoint: The endpoint that sent the keepalive.
func (m *PipelineMetrics) RecordKeepAlive(endpoint Endpoint) {
	m.KeepAlivesTotal.WithLabelValues(string(endpoint)).Inc()
}

// RecordClientDisconnect increments the client disconnect counter.
//
// # Inputs
//
//   - endpoint: The endpoint where disconnect occurred.
func (m *PipelineMetrics) RecordClientDisconnect(endpoint Endpoint) {
	m.ClientDisconnectsTotal.WithLabelValues(string(endpoint)).Inc()
}
