// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package translator

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// newTestService constructs an offline service: static backend,
// in-memory store, metrics registration skipped so repeated
// constructions in one test binary do not collide on the Prometheus
// default registry.
func newTestService(t *testing.T, cfg Config) Service {
	t.Helper()

	cfg.Backend = "static"
	cfg.InMemoryStore = true
	cfg.DisableMetrics = true

	svc, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(svc.(*service).cleanup)
	return svc
}

// writeTestCorpus writes a small JSONL corpus and returns its path.
func writeTestCorpus(t *testing.T, n int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	var lines []byte
	for i := 0; i < n; i++ {
		line := fmt.Sprintf(
			`{"user_requirement":"requirement %d","FSM":"{}","version":"0.8.%d","code":"contract C%d {}"}`,
			i, i%3, i)
		lines = append(lines, line...)
		lines = append(lines, '\n')
	}
	require.NoError(t, os.WriteFile(path, lines, 0o600))
	return path
}

// =============================================================================
// Config Tests
// =============================================================================

// TestApplyConfigDefaults_AllDefaults verifies default values are applied.
func TestApplyConfigDefaults_AllDefaults(t *testing.T) {
	// Arrange
	cfg := Config{}

	// Act
	result := applyConfigDefaults(cfg)

	// Assert
	assert.Equal(t, 12220, result.Port, "default port should be 12220")
	assert.Equal(t, "static", result.Backend, "default backend should be static")
	assert.Equal(t, "./data/translator", result.StorePath,
		"default store path should be ./data/translator")
	assert.Equal(t, "solforge-otel-collector:4317", result.OTelEndpoint,
		"default OTel endpoint should be solforge-otel-collector:4317")
}

// TestApplyConfigDefaults_PreservesCustomValues verifies custom values
// are not overwritten.
func TestApplyConfigDefaults_PreservesCustomValues(t *testing.T) {
	// Arrange
	cfg := Config{
		Port:         8080,
		Backend:      "openai",
		StorePath:    "/var/lib/solforge",
		CorpusPath:   "/data/corpus.jsonl",
		WeaviateURL:  "http://weaviate:8080",
		OTelEndpoint: "custom-collector:4317",
	}

	// Act
	result := applyConfigDefaults(cfg)

	// Assert
	assert.Equal(t, 8080, result.Port, "custom port should be preserved")
	assert.Equal(t, "openai", result.Backend, "custom backend should be preserved")
	assert.Equal(t, "/var/lib/solforge", result.StorePath,
		"custom store path should be preserved")
	assert.Equal(t, "/data/corpus.jsonl", result.CorpusPath,
		"corpus path should be preserved")
	assert.Equal(t, "http://weaviate:8080", result.WeaviateURL,
		"custom Weaviate URL should be preserved")
	assert.Equal(t, "custom-collector:4317", result.OTelEndpoint,
		"custom OTel endpoint should be preserved")
}

// TestValidateConfig_TableDriven tests validation across config scenarios.
func TestValidateConfig_TableDriven(t *testing.T) {
	tests := []struct {
		name    string
		input   Config
		wantErr string
	}{
		{
			name:  "static backend valid",
			input: Config{Port: 12220, Backend: "static"},
		},
		{
			name:  "openai backend valid",
			input: Config{Port: 8080, Backend: "openai"},
		},
		{
			name:    "negative port rejected",
			input:   Config{Port: -1, Backend: "static"},
			wantErr: "out of range",
		},
		{
			name:    "port above 65535 rejected",
			input:   Config{Port: 70000, Backend: "static"},
			wantErr: "out of range",
		},
		{
			name:    "unknown backend rejected",
			input:   Config{Port: 12220, Backend: "ollama"},
			wantErr: "unknown backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(tt.input)

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// =============================================================================
// Constructor Tests
// =============================================================================

// TestNew_StaticBackendOffline verifies the full constructor succeeds
// without any external service: the static backend needs no API, the
// in-memory store needs no disk, and the OTLP gRPC connection is lazy.
func TestNew_StaticBackendOffline(t *testing.T) {
	// Act
	svc := newTestService(t, Config{})

	// Assert
	require.NotNil(t, svc)
	require.NotNil(t, svc.Router())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	svc.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "assembled service should answer /health")
}

// TestNew_RejectsUnknownBackend verifies backend validation happens
// before any resource is opened.
func TestNew_RejectsUnknownBackend(t *testing.T) {
	// Arrange
	cfg := Config{Backend: "llama", InMemoryStore: true, DisableMetrics: true}

	// Act
	svc, err := New(cfg)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
	assert.Nil(t, svc)
}

// TestNew_RejectsOutOfRangePort verifies port validation.
func TestNew_RejectsOutOfRangePort(t *testing.T) {
	// Arrange
	cfg := Config{Port: -1, Backend: "static", InMemoryStore: true, DisableMetrics: true}

	// Act
	svc, err := New(cfg)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
	assert.Nil(t, svc)
}

// TestNew_LoadsCorpus verifies a configured corpus reaches the dataset
// endpoints.
func TestNew_LoadsCorpus(t *testing.T) {
	// Arrange
	path := writeTestCorpus(t, 6)

	// Act
	svc := newTestService(t, Config{CorpusPath: path})

	// Assert
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/dataset/stats", nil)
	svc.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"records":6`)
}

// TestNew_CorpusLoadFailureDegrades verifies a bad corpus path does not
// fail construction; the dataset endpoints answer 503 instead.
func TestNew_CorpusLoadFailureDegrades(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "missing.jsonl")

	// Act
	svc := newTestService(t, Config{CorpusPath: path})

	// Assert
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/dataset/stats", nil)
	svc.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "no corpus loaded")
}

// TestCleanup_SafeOnPartialState verifies cleanup tolerates a service
// that never finished construction.
func TestCleanup_SafeOnPartialState(t *testing.T) {
	s := &service{}

	assert.NotPanics(t, func() { s.cleanup() })
}

// =============================================================================
// Benchmark Tests
// =============================================================================

// BenchmarkApplyConfigDefaults measures config default application performance.
func BenchmarkApplyConfigDefaults(b *testing.B) {
	cfg := Config{Port: 8080}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = applyConfigDefaults(cfg)
	}
}
