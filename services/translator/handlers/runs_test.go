// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
	"github.com/AleutianAI/solforge/services/translator/storage"
)

// =============================================================================
// Test Fixtures
// =============================================================================

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	store, err := storage.Open(storage.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedRun(t *testing.T, store *storage.Store, runID string) {
	t.Helper()

	ctx := context.Background()
	rec := datatypes.RunResult{
		RunID:  runID,
		Status: datatypes.RunSucceeded,
	}
	require.NoError(t, store.PutRunRecord(ctx, &rec))
	require.NoError(t, store.Put(ctx, runID, datatypes.ArtifactContract,
		[]byte("contract Seeded {}")))
	require.NoError(t, store.Put(ctx, runID, datatypes.ArtifactSchema,
		[]byte(`{"contract_type":"rental"}`)))
}

func runsRouter(store *storage.Store) *gin.Engine {
	router := gin.New()
	router.GET("/v1/runs", ListRuns(store))
	router.GET("/v1/runs/:id", GetRun(store))
	router.GET("/v1/runs/:id/artifacts", ListArtifacts(store))
	router.GET("/v1/runs/:id/artifacts/:name", GetArtifact(store))
	return router
}

func doGet(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// ListRuns Tests
// =============================================================================

func TestListRuns_Empty(t *testing.T) {
	router := runsRouter(newTestStore(t))

	w := doGet(t, router, "/v1/runs")

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Runs  []datatypes.RunResult `json:"runs"`
		Count int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.Count)
	assert.Empty(t, resp.Runs)
}

func TestListRuns_ReturnsSeededRecords(t *testing.T) {
	store := newTestStore(t)
	seedRun(t, store, "run-a")
	seedRun(t, store, "run-b")
	router := runsRouter(store)

	w := doGet(t, router, "/v1/runs")

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Runs  []datatypes.RunResult `json:"runs"`
		Count int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Runs, 2)

	ids := []string{resp.Runs[0].RunID, resp.Runs[1].RunID}
	assert.ElementsMatch(t, []string{"run-a", "run-b"}, ids)
}

// =============================================================================
// GetRun Tests
// =============================================================================

func TestGetRun_Found(t *testing.T) {
	store := newTestStore(t)
	seedRun(t, store, "run-a")
	router := runsRouter(store)

	w := doGet(t, router, "/v1/runs/run-a")

	require.Equal(t, http.StatusOK, w.Code)

	var rec datatypes.RunResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "run-a", rec.RunID)
	assert.Equal(t, datatypes.RunSucceeded, rec.Status)
}

func TestGetRun_NotFound(t *testing.T) {
	router := runsRouter(newTestStore(t))

	w := doGet(t, router, "/v1/runs/missing")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "run not found")
}

// =============================================================================
// Artifact Tests
// =============================================================================

func TestGetArtifact_ReturnsBytes(t *testing.T) {
	store := newTestStore(t)
	seedRun(t, store, "run-a")
	router := runsRouter(store)

	w := doGet(t, router, "/v1/runs/run-a/artifacts/"+datatypes.ArtifactContract)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "contract Seeded {}", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestGetArtifact_JSONContentType(t *testing.T) {
	store := newTestStore(t)
	seedRun(t, store, "run-a")
	router := runsRouter(store)

	w := doGet(t, router, "/v1/runs/run-a/artifacts/"+datatypes.ArtifactSchema)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestGetArtifact_NotFound(t *testing.T) {
	store := newTestStore(t)
	seedRun(t, store, "run-a")
	router := runsRouter(store)

	w := doGet(t, router, "/v1/runs/run-a/artifacts/nope.txt")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "artifact not found")
}

func TestListArtifacts_ReturnsNames(t *testing.T) {
	store := newTestStore(t)
	seedRun(t, store, "run-a")
	router := runsRouter(store)

	w := doGet(t, router, "/v1/runs/run-a/artifacts")

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		RunID     string   `json:"run_id"`
		Artifacts []string `json:"artifacts"`
		Count     int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "run-a", resp.RunID)
	assert.Equal(t, 2, resp.Count)
	assert.ElementsMatch(t, []string{datatypes.ArtifactContract, datatypes.ArtifactSchema},
		resp.Artifacts)
}

func TestArtifactContentType(t *testing.T) {
	cases := map[string]string{
		"schema.json":    "application/json",
		"toolserver.py":  "text/x-python; charset=utf-8",
		"contract.sol":   "text/plain; charset=utf-8",
		"refined_1.diff": "text/plain; charset=utf-8",
	}
	for name, want := range cases {
		assert.Equal(t, want, artifactContentType(name), name)
	}
}
