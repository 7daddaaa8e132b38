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
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/solforge/services/audit_engine"
	"github.com/AleutianAI/solforge/services/llm"
	"github.com/AleutianAI/solforge/services/translator/datatypes"
	"github.com/AleutianAI/solforge/services/translator/pipeline"
	"github.com/AleutianAI/solforge/services/translator/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// rentalSource is already normalized, so phase 1 passes it through
// unchanged and the stream for it is fully deterministic.
const rentalSource = `Residential lease agreement between Alice and Bob.

The tenant shall pay 1200 USD monthly as rent for the apartment at
12 Harbor Lane. The landlord must return the security deposit within
30 days of termination. Either party may terminate the lease with 60
days of notice.`

// =============================================================================
// Test Fixtures
// =============================================================================

// newTestTranslateHandler wires a handler to a real pipeline backed by the
// static capability set and an in-memory store.
func newTestTranslateHandler(t *testing.T) (*TranslateHandler, *storage.Store) {
	t.Helper()

	caps, err := llm.NewCapabilities("static")
	require.NoError(t, err)

	engine, err := audit_engine.NewEngine()
	require.NoError(t, err)

	store, err := storage.Open(storage.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := pipeline.DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	orch, err := pipeline.New(caps, engine, store, cfg)
	require.NoError(t, err)

	return NewTranslateHandler(orch), store
}

// postTranslate runs one POST /v1/translate request through a fresh router.
func postTranslate(t *testing.T, h *TranslateHandler, body string) *httptest.ResponseRecorder {
	t.Helper()

	router := gin.New()
	router.POST("/v1/translate", h.HandleTranslateSSE)

	req := httptest.NewRequest(http.MethodPost, "/v1/translate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func translateBody(t *testing.T, req datatypes.TranslateRequest) string {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return string(data)
}

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNewTranslateHandler_PanicsOnNilOrchestrator(t *testing.T) {
	assert.Panics(t, func() {
		NewTranslateHandler(nil)
	})
}

// =============================================================================
// HandleTranslateSSE Tests
// =============================================================================

func TestHandleTranslateSSE_InvalidJSON(t *testing.T) {
	h, _ := newTestTranslateHandler(t)

	w := postTranslate(t, h, "{not json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestHandleTranslateSSE_ValidationFailure(t *testing.T) {
	h, _ := newTestTranslateHandler(t)

	// Source is required; an empty request fails validation.
	w := postTranslate(t, h, `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request")
}

func TestHandleTranslateSSE_OversizedSource(t *testing.T) {
	h, _ := newTestTranslateHandler(t)

	body := translateBody(t, datatypes.TranslateRequest{
		Source: strings.Repeat("a", datatypes.MaxSourceBytes+1),
	})
	w := postTranslate(t, h, body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleTranslateSSE_Success(t *testing.T) {
	h, store := newTestTranslateHandler(t)

	body := translateBody(t, datatypes.TranslateRequest{Source: rentalSource})
	w := postTranslate(t, h, body)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	events := parseSSEEvents(t, w.Body.String())
	envelopes := decodeEnvelopes(t, events)
	verifyChain(t, envelopes)

	// Status preamble, the full run stream, and the done marker.
	types := make([]string, len(envelopes))
	for i, env := range envelopes {
		types[i] = env.Type
	}
	assert.Equal(t, []string{
		EnvelopeStatus,
		"phase_started", "phase_complete",
		"phase_started", "phase_complete",
		"phase_started", "phase_complete",
		"phase_started", "phase_complete",
		"refinement",
		"phase_started", "phase_complete",
		"phase_started", "phase_complete",
		"run_complete",
		EnvelopeDone,
	}, types)

	// The terminal run event carries the full result.
	final := envelopes[len(envelopes)-2]
	require.NotNil(t, final.Event)
	require.NotNil(t, final.Event.Result)
	assert.Equal(t, datatypes.RunSucceeded, final.Event.Result.Status)
	assert.Len(t, final.Event.Result.Phases, 6)

	// Every streamed envelope carries the same run id, and it matches
	// the done marker.
	runID := final.RunID
	require.NotEmpty(t, runID)
	for _, env := range envelopes[1:] {
		assert.Equal(t, runID, env.RunID)
	}

	// The run was durably recorded before the stream ended.
	rec, err := store.GetRunRecord(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.RunSucceeded, rec.Status)

	artifacts, err := store.ListArtifacts(context.Background(), runID)
	require.NoError(t, err)
	assert.Len(t, artifacts, 8)
}

func TestHandleTranslateSSE_NoRefinementWhenDisabled(t *testing.T) {
	h, _ := newTestTranslateHandler(t)

	zero := 0
	body := translateBody(t, datatypes.TranslateRequest{
		Source:         rentalSource,
		MaxRefinements: &zero,
	})
	w := postTranslate(t, h, body)

	require.Equal(t, http.StatusOK, w.Code)
	envelopes := decodeEnvelopes(t, parseSSEEvents(t, w.Body.String()))
	verifyChain(t, envelopes)

	for _, env := range envelopes {
		assert.NotEqual(t, "refinement", env.Type)
	}
	// status + 6 phase pairs + run_complete + done
	assert.Len(t, envelopes, 15)
}

func TestHandleTranslateSSE_KeepAliveIgnoredByParser(t *testing.T) {
	// Keepalive comments may interleave with events on slow runs; the
	// parser must skip them without breaking envelope decoding.
	raw := "event: status\ndata: {\"id\":\"a\",\"type\":\"status\",\"created_at\":1,\"hash\":\"h\"}\n\n" +
		": ping\n\n" +
		"event: done\ndata: {\"id\":\"b\",\"type\":\"done\",\"created_at\":2,\"hash\":\"h2\",\"prev_hash\":\"h\"}\n\n"

	events := parseSSEEvents(t, raw)
	require.Len(t, events, 2)
	assert.Equal(t, "status", events[0].Event)
	assert.Equal(t, "done", events[1].Event)
}

// =============================================================================
// streamEvents Tests
// =============================================================================

// failAfterWriter fails every write after the first n, simulating a client
// that disconnected mid-stream.
type failAfterWriter struct {
	n      int
	writes int
	seen   []datatypes.Event
}

func (f *failAfterWriter) WriteRunEvent(ev datatypes.Event) error {
	f.writes++
	if f.writes > f.n {
		return io.ErrClosedPipe
	}
	f.seen = append(f.seen, ev)
	return nil
}

func (f *failAfterWriter) WriteStatus(string) error { return nil }
func (f *failAfterWriter) WriteError(string) error { return nil }
func (f *failAfterWriter) WriteDone(string) error { return nil }
func (f *failAfterWriter) WriteKeepAlive() error { return nil }

func TestStreamEvents_ClientDisconnect(t *testing.T) {
	h, _ := newTestTranslateHandler(t)

	req := datatypes.TranslateRequest{Source: rentalSource}
	req.EnsureDefaults()
	events, err := h.orch.Run(context.Background(), &req)
	require.NoError(t, err)

	writer := &failAfterWriter{n: 3}
	runID, result := h.streamEvents(writer, events, "translate_sse")

	assert.NotEmpty(t, runID)
	assert.Nil(t, result, "no terminal result after a disconnect")
	assert.Len(t, writer.seen, 3)

	// The producer keeps running to completion; draining here guards
	// against the test leaking the run goroutine.
	for range events {
	}
}

func TestStreamEvents_CapturesTerminalResult(t *testing.T) {
	h, _ := newTestTranslateHandler(t)

	req := datatypes.TranslateRequest{Source: rentalSource}
	req.EnsureDefaults()
	events, err := h.orch.Run(context.Background(), &req)
	require.NoError(t, err)

	writer := &failAfterWriter{n: 1 << 30}
	runID, result := h.streamEvents(writer, events, "translate_sse")

	assert.NotEmpty(t, runID)
	require.NotNil(t, result)
	assert.Equal(t, datatypes.RunSucceeded, result.Status)
	assert.Equal(t, runID, result.RunID)
}
