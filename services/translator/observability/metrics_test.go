// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ============================================================================
// Test Helper: Create isolated metrics for testing
// ============================================================================

// newTestMetrics creates a PipelineMetrics instance with a custom registry.
// This avoids conflicts with the global Prometheus registry and allows
// parallel testing.
func newTestMetrics(t *testing.T) *PipelineMetrics {
	t.Helper()

	reg := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "runs_total",
			Help:      "Total completed translation runs by terminal status",
		},
		[]string{"status"},
	)

	phaseDurationSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "phase_duration_seconds",
			Help:      "Wall-clock duration of each pipeline phase in seconds",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1.0, 5.0, 15.0, 60.0, 180.0},
		},
		[]string{"phase"},
	)

	phaseErrorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "phase_errors_total",
			Help:      "Total phase failures by phase and error code",
		},
		[]string{"phase", "error_code"},
	)

	findingsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "findings_total",
			Help:      "Total security findings by category and severity",
		},
		[]string{"category", "severity"},
	)

	capabilityDurationSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "capability_duration_seconds",
			Help:      "Latency of capability calls by capability and backend",
			Buckets:   []float64{0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 15.0, 60.0, 120.0},
		},
		[]string{"capability", "backend"},
	)

	refinementIterations := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "refinement_iterations",
			Help:      "Refinement loop iterations per run",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		},
	)

	activeRuns := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "active_runs",
			Help:      "Number of pipeline runs currently executing",
		},
	)

	keepAlivesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "keepalives_total",
			Help:      "Total keepalive pings sent on event streams",
		},
		[]string{"endpoint"},
	)

	clientDisconnectsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "client_disconnects_total",
			Help:      "Total client disconnections during streaming",
		},
		[]string{"endpoint"},
	)

	// Register all metrics with the test registry
	reg.MustRegister(
		runsTotal,
		phaseDurationSeconds,
		phaseErrorsTotal,
		findingsTotal,
		capabilityDurationSeconds,
		refinementIterations,
		activeRuns,
		keepAlivesTotal,
		clientDisconnectsTotal,
	)

	return &PipelineMetrics{
		RunsTotal:                 runsTotal,
		PhaseDurationSeconds:      phaseDurationSeconds,
		PhaseErrorsTotal:          phaseErrorsTotal,
		FindingsTotal:             findingsTotal,
		CapabilityDurationSeconds: capabilityDurationSeconds,
		RefinementIterations:      refinementIterations,
		ActiveRuns:                activeRuns,
		KeepAlivesTotal:           keepAlivesTotal,
		ClientDisconnectsTotal:    clientDisconnectsTotal,
	}
}

// ============================================================================
// InitMetrics Tests
// ============================================================================

// Note: InitMetrics uses promauto which registers with the default Prometheus
// registry. This test must only run once per test binary execution since
// duplicate registration will panic.
var initMetricsTestOnce bool

func TestInitMetrics(t *testing.T) {
	if initMetricsTestOnce {
		t.Skip("InitMetrics can only be called once per test run (promauto restriction)")
	}
	initMetricsTestOnce = true

	result := InitMetrics()

	if result == nil {
		t.Fatal("InitMetrics() returned nil")
	}
	if DefaultMetrics == nil {
		t.Fatal("DefaultMetrics should be set after InitMetrics()")
	}
	if DefaultMetrics != result {
		t.Error("DefaultMetrics should equal the returned value")
	}

	if result.RunsTotal == nil {
		t.Error("RunsTotal should not be nil")
	}
	if result.PhaseDurationSeconds == nil {
		t.Error("PhaseDurationSeconds should not be nil")
	}
	if result.PhaseErrorsTotal == nil {
		t.Error("PhaseErrorsTotal should not be nil")
	}
	if result.FindingsTotal == nil {
		t.Error("FindingsTotal should not be nil")
	}
	if result.CapabilityDurationSeconds == nil {
		t.Error("CapabilityDurationSeconds should not be nil")
	}
	if result.RefinementIterations == nil {
		t.Error("RefinementIterations should not be nil")
	}
	if result.ActiveRuns == nil {
		t.Error("ActiveRuns should not be nil")
	}
	if result.KeepAlivesTotal == nil {
		t.Error("KeepAlivesTotal should not be nil")
	}
	if result.ClientDisconnectsTotal == nil {
		t.Error("ClientDisconnectsTotal should not be nil")
	}

	// Verify metrics can be used
	result.RecordRun("succeeded")
	result.RecordPhase("schema_extraction", 0.4)
	result.RecordPhaseError("security_audit", ErrorCodeAudit)
	result.RunStarted()
	result.RunEnded()
}

// ============================================================================
// Constants Tests
// ============================================================================

func TestConstants(t *testing.T) {
	if metricsNamespace != "solforge" {
		t.Errorf("metricsNamespace = %q, want %q", metricsNamespace, "solforge")
	}
	if pipelineSubsystem != "pipeline" {
		t.Errorf("pipelineSubsystem = %q, want %q", pipelineSubsystem, "pipeline")
	}
}

func TestErrorCodeConstants(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrorCodeInput, "input_error"},
		{ErrorCodeExtraction, "extraction_error"},
		{ErrorCodeGeneration, "generation_error"},
		{ErrorCodeAudit, "audit_error"},
		{ErrorCodeInterface, "interface_error"},
		{ErrorCodeScaffold, "scaffold_error"},
		{ErrorCodeStorage, "storage_error"},
		{ErrorCodeTimeout, "timeout"},
		{ErrorCodeCanceled, "canceled"},
		{ErrorCodeInternal, "internal"},
	}

	for _, tt := range tests {
		if string(tt.code) != tt.want {
			t.Errorf("ErrorCode = %q, want %q", tt.code, tt.want)
		}
	}
}

func TestEndpointConstants(t *testing.T) {
	if EndpointTranslateSSE != "translate_sse" {
		t.Errorf("EndpointTranslateSSE = %q, want %q", EndpointTranslateSSE, "translate_sse")
	}
	if EndpointTranslateWS != "translate_ws" {
		t.Errorf("EndpointTranslateWS = %q, want %q", EndpointTranslateWS, "translate_ws")
	}
}

// ============================================================================
// Counter Tests
// ============================================================================

func TestPipelineMetrics_RecordRun(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRun("succeeded")
	m.RecordRun("succeeded")
	m.RecordRun("partially_failed")
	m.RecordRun("failed")

	succeededVal := testutil.ToFloat64(m.RunsTotal.WithLabelValues("succeeded"))
	if succeededVal != 2 {
		t.Errorf("RunsTotal[succeeded] = %f, want 2", succeededVal)
	}

	partialVal := testutil.ToFloat64(m.RunsTotal.WithLabelValues("partially_failed"))
	if partialVal != 1 {
		t.Errorf("RunsTotal[partially_failed] = %f, want 1", partialVal)
	}

	failedVal := testutil.ToFloat64(m.RunsTotal.WithLabelValues("failed"))
	if failedVal != 1 {
		t.Errorf("RunsTotal[failed] = %f, want 1", failedVal)
	}
}

func TestPipelineMetrics_RecordPhaseError(t *testing.T) {
	m := newTestMetrics(t)

	tests := []struct {
		phase string
		code  ErrorCode
	}{
		{"document_processing", ErrorCodeInput},
		{"schema_extraction", ErrorCodeExtraction},
		{"code_generation", ErrorCodeGeneration},
		{"code_generation", ErrorCodeTimeout},
		{"security_audit", ErrorCodeAudit},
		{"interface_extraction", ErrorCodeInterface},
		{"scaffold_generation", ErrorCodeScaffold},
	}

	for _, tt := range tests {
		m.RecordPhaseError(tt.phase, tt.code)

		val := testutil.ToFloat64(m.PhaseErrorsTotal.WithLabelValues(tt.phase, string(tt.code)))
		if val != 1 {
			t.Errorf("PhaseErrorsTotal[%s,%s] = %f, want 1", tt.phase, tt.code, val)
		}
	}
}

func TestPipelineMetrics_RecordFinding(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordFinding("reentrancy", "high")
	m.RecordFinding("reentrancy", "high")
	m.RecordFinding("tx_origin", "medium")

	reentrancyVal := testutil.ToFloat64(m.FindingsTotal.WithLabelValues("reentrancy", "high"))
	if reentrancyVal != 2 {
		t.Errorf("FindingsTotal[reentrancy,high] = %f, want 2", reentrancyVal)
	}

	txOriginVal := testutil.ToFloat64(m.FindingsTotal.WithLabelValues("tx_origin", "medium"))
	if txOriginVal != 1 {
		t.Errorf("FindingsTotal[tx_origin,medium] = %f, want 1", txOriginVal)
	}
}

// ============================================================================
// Gauge Tests
// ============================================================================

func TestPipelineMetrics_RunLifecycle(t *testing.T) {
	m := newTestMetrics(t)

	m.RunStarted()
	m.RunStarted()
	m.RunStarted()

	val := testutil.ToFloat64(m.ActiveRuns)
	if val != 3 {
		t.Errorf("After 3 starts: ActiveRuns = %f, want 3", val)
	}

	m.RunEnded()

	val = testutil.ToFloat64(m.ActiveRuns)
	if val != 2 {
		t.Errorf("After 1 end: ActiveRuns = %f, want 2", val)
	}

	m.RunEnded()
	m.RunEnded()

	val = testutil.ToFloat64(m.ActiveRuns)
	if val != 0 {
		t.Errorf("After all ends: ActiveRuns = %f, want 0", val)
	}
}

// ============================================================================
// Histogram Tests
// ============================================================================

func TestPipelineMetrics_RecordPhase(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordPhase("document_processing", 0.002)
	m.RecordPhase("code_generation", 12.5)
	m.RecordPhase("security_audit", 0.05)

	count := testutil.CollectAndCount(m.PhaseDurationSeconds)
	if count == 0 {
		t.Error("Expected at least one metric to be collected")
	}
}

func TestPipelineMetrics_RecordCapability(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordCapability("extract", "openai", 2.1)
	m.RecordCapability("generate", "openai", 18.0)
	m.RecordCapability("extract", "static", 0.001)

	count := testutil.CollectAndCount(m.CapabilityDurationSeconds)
	if count == 0 {
		t.Error("Expected at least one metric to be collected")
	}
}

func TestPipelineMetrics_RecordRefinements(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRefinements(0)
	m.RecordRefinements(2)

	count := testutil.CollectAndCount(m.RefinementIterations)
	if count == 0 {
		t.Error("Expected refinement histogram to be collected")
	}
}

// ============================================================================
// Stream Counter Tests
// ============================================================================

func TestPipelineMetrics_RecordKeepAlive(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordKeepAlive(EndpointTranslateSSE)
	m.RecordKeepAlive(EndpointTranslateSSE)
	m.RecordKeepAlive(EndpointTranslateWS)

	sseVal := testutil.ToFloat64(m.KeepAlivesTotal.WithLabelValues("translate_sse"))
	if sseVal != 2 {
		t.Errorf("KeepAlivesTotal[translate_sse] = %f, want 2", sseVal)
	}

	wsVal := testutil.ToFloat64(m.KeepAlivesTotal.WithLabelValues("translate_ws"))
	if wsVal != 1 {
		t.Errorf("KeepAlivesTotal[translate_ws] = %f, want 1", wsVal)
	}
}

func TestPipelineMetrics_RecordClientDisconnect(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordClientDisconnect(EndpointTranslateWS)
	m.RecordClientDisconnect(EndpointTranslateWS)

	val := testutil.ToFloat64(m.ClientDisconnectsTotal.WithLabelValues("translate_ws"))
	if val != 2 {
		t.Errorf("ClientDisconnectsTotal[translate_ws] = %f, want 2", val)
	}
}

// ============================================================================
// Integration / Scenario Tests
// ============================================================================

func TestPipelineMetrics_CompleteRunScenario(t *testing.T) {
	m := newTestMetrics(t)

	// Simulate a complete successful run
	m.RunStarted()
	m.RecordPhase("document_processing", 0.003)
	m.RecordCapability("extract", "static", 0.002)
	m.RecordPhase("schema_extraction", 0.004)
	m.RecordCapability("generate", "static", 0.002)
	m.RecordPhase("code_generation", 0.005)
	m.RecordFinding("timestamp_dependence", "low")
	m.RecordPhase("security_audit", 0.01)
	m.RecordPhase("interface_extraction", 0.002)
	m.RecordPhase("scaffold_generation", 0.02)
	m.RecordRefinements(0)
	m.RunEnded()
	m.RecordRun("succeeded")

	activeVal := testutil.ToFloat64(m.ActiveRuns)
	if activeVal != 0 {
		t.Errorf("ActiveRuns should be 0 after run ended, got %f", activeVal)
	}

	runsVal := testutil.ToFloat64(m.RunsTotal.WithLabelValues("succeeded"))
	if runsVal != 1 {
		t.Errorf("RunsTotal[succeeded] should be 1, got %f", runsVal)
	}

	findingVal := testutil.ToFloat64(m.FindingsTotal.WithLabelValues("timestamp_dependence", "low"))
	if findingVal != 1 {
		t.Errorf("FindingsTotal should be 1, got %f", findingVal)
	}
}

func TestPipelineMetrics_PartialFailureScenario(t *testing.T) {
	m := newTestMetrics(t)

	// Phases 1-3 pass, audit fails, run degrades to partially_failed
	m.RunStarted()
	m.RecordPhase("document_processing", 0.003)
	m.RecordPhase("schema_extraction", 1.2)
	m.RecordPhase("code_generation", 9.8)
	m.RecordPhaseError("security_audit", ErrorCodeAudit)
	m.RecordPhase("interface_extraction", 0.002)
	m.RecordPhase("scaffold_generation", 0.02)
	m.RunEnded()
	m.RecordRun("partially_failed")

	errVal := testutil.ToFloat64(m.PhaseErrorsTotal.WithLabelValues("security_audit", "audit_error"))
	if errVal != 1 {
		t.Errorf("PhaseErrorsTotal[security_audit,audit_error] = %f, want 1", errVal)
	}

	runsVal := testutil.ToFloat64(m.RunsTotal.WithLabelValues("partially_failed"))
	if runsVal != 1 {
		t.Errorf("RunsTotal[partially_failed] = %f, want 1", runsVal)
	}
}

// ============================================================================
// Concurrent Safety Tests
// ============================================================================

func TestPipelineMetrics_ConcurrentSafety(t *testing.T) {
	m := newTestMetrics(t)

	done := make(chan bool, 80)

	for i := 0; i < 20; i++ {
		go func() {
			m.RecordRun("succeeded")
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		go func() {
			m.RecordPhaseError("code_generation", ErrorCodeTimeout)
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		go func() {
			m.RunStarted()
			m.RunEnded()
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		go func() {
			m.RecordPhase("security_audit", 0.01)
			m.RecordFinding("reentrancy", "high")
			m.RecordCapability("refine", "static", 0.002)
			done <- true
		}()
	}

	for i := 0; i < 80; i++ {
		<-done
	}

	runsVal := testutil.ToFloat64(m.RunsTotal.WithLabelValues("succeeded"))
	if runsVal != 20 {
		t.Errorf("RunsTotal[succeeded] = %f, want 20", runsVal)
	}

	errVal := testutil.ToFloat64(m.PhaseErrorsTotal.WithLabelValues("code_generation", "timeout"))
	if errVal != 20 {
		t.Errorf("PhaseErrorsTotal[code_generation,timeout] = %f, want 20", errVal)
	}
}
