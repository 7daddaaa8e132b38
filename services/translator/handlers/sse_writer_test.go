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
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// sseEvent represents a parsed SSE event from the response stream.
type sseEvent struct {
	Event string
	Data  string
}

// parseSSEEvents parses the raw SSE response body into discrete events.
// Comment lines (keepalives) are ignored, matching client behavior.
func parseSSEEvents(t *testing.T, body string) []sseEvent {
	t.Helper()

	var events []sseEvent
	var current sseEvent

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = strings.TrimPrefix(line, "data: ")
		case line == "" && current.Event != "":
			events = append(events, current)
			current = sseEvent{}
		}
	}
	require.NoError(t, scanner.Err())
	return events
}

// decodeEnvelopes unmarshals the data payload of every parsed SSE event.
func decodeEnvelopes(t *testing.T, events []sseEvent) []StreamEnvelope {
	t.Helper()

	envelopes := make([]StreamEnvelope, 0, len(events))
	for i, ev := range events {
		var env StreamEnvelope
		require.NoError(t, json.Unmarshal([]byte(ev.Data), &env), "event %d data", i)
		envelopes = append(envelopes, env)
	}
	return envelopes
}

// noFlushWriter hides the Flusher implementation of the wrapped recorder.
type noFlushWriter struct {
	header http.Header
	status int
}

func (w *noFlushWriter) Header() http.Header {
	if w.header == nil {
		w.header = make(http.Header)
	}
	return w.header
}

func (w *noFlushWriter) Write(b []byte) (int, error) { return len(b), nil }
func (w *noFlushWriter) WriteHeader(status int)      { w.status = status }

// =============================================================================
// SSE Writer Tests
// =============================================================================

func TestNewSSEWriter_RequiresFlusher(t *testing.T) {
	writer, err := NewSSEWriter(&noFlushWriter{})

	assert.Nil(t, writer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http.Flusher")
}

func TestSetSSEHeaders(t *testing.T) {
	w := httptest.NewRecorder()

	SetSSEHeaders(w)

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", w.Header().Get("Connection"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))
}

func TestSSEWriter_WriteStatus(t *testing.T) {
	w := httptest.NewRecorder()
	writer, err := NewSSEWriter(w)
	require.NoError(t, err)

	require.NoError(t, writer.WriteStatus("Starting translation run..."))

	events := parseSSEEvents(t, w.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, EnvelopeStatus, events[0].Event)

	envelopes := decodeEnvelopes(t, events)
	assert.Equal(t, "Starting translation run...", envelopes[0].Message)
	assert.NotEmpty(t, envelopes[0].Id)
	assert.NotEmpty(t, envelopes[0].Hash)
}

func TestSSEWriter_WriteRunEvent(t *testing.T) {
	w := httptest.NewRecorder()
	writer, err := NewSSEWriter(w)
	require.NoError(t, err)

	ev := datatypes.NewPhaseStartedEvent("run-42", datatypes.PhaseSchemaExtraction)
	require.NoError(t, writer.WriteRunEvent(ev))

	events := parseSSEEvents(t, w.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, string(datatypes.EventPhaseStarted), events[0].Event)

	envelopes := decodeEnvelopes(t, events)
	assert.Equal(t, "run-42", envelopes[0].RunID)
	require.NotNil(t, envelopes[0].Event)
	assert.Equal(t, "schema_extraction", envelopes[0].Event.PhaseName)
}

func TestSSEWriter_ChainsAcrossWrites(t *testing.T) {
	w := httptest.NewRecorder()
	writer, err := NewSSEWriter(w)
	require.NoError(t, err)

	require.NoError(t, writer.WriteStatus("starting"))
	require.NoError(t, writer.WriteRunEvent(
		datatypes.NewPhaseStartedEvent("run-1", datatypes.PhaseDocumentProcessing)))
	require.NoError(t, writer.WriteDone("run-1"))

	envelopes := decodeEnvelopes(t, parseSSEEvents(t, w.Body.String()))
	require.Len(t, envelopes, 3)
	verifyChain(t, envelopes)

	assert.Equal(t, EnvelopeDone, envelopes[2].Type)
	assert.Equal(t, "run-1", envelopes[2].RunID)
}

func TestSSEWriter_KeepAliveOutsideChain(t *testing.T) {
	w := httptest.NewRecorder()
	writer, err := NewSSEWriter(w)
	require.NoError(t, err)

	require.NoError(t, writer.WriteStatus("one"))
	require.NoError(t, writer.WriteKeepAlive())
	require.NoError(t, writer.WriteDone("run-1"))

	body := w.Body.String()
	assert.Contains(t, body, ": ping\n\n")

	// The keepalive is a comment line: parsers skip it and the hash
	// chain is unbroken across it.
	envelopes := decodeEnvelopes(t, parseSSEEvents(t, body))
	require.Len(t, envelopes, 2)
	verifyChain(t, envelopes)
}

func TestSSEWriter_WriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writer, err := NewSSEWriter(w)
	require.NoError(t, err)

	require.NoError(t, writer.WriteError("invalid request: validation failed"))

	events := parseSSEEvents(t, w.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, EnvelopeError, events[0].Event)

	envelopes := decodeEnvelopes(t, events)
	assert.Equal(t, "invalid request: validation failed", envelopes[0].Error)
}
