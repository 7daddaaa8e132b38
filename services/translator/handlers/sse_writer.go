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
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// =============================================================================
// SSE Writer
// =============================================================================

// sseWriter implements EventWriter over an HTTP SSE response.
//
// # Description
//
// Each envelope is written in SSE wire format:
//
//	event: {type}
//	data: {json}
//
// and flushed immediately. The writer maintains the envelope hash chain
// across all items on the stream.
//
// # Thread Safety
//
// Thread-safe via mutex. The streaming loop and the keepalive goroutine
// may write concurrently; chain integrity is preserved across both.
//
// # Limitations
//
//   - Cannot be reused across requests.
//   - Requires http.Flusher support on the ResponseWriter.
type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	chain   envelopeChain
	mu      sync.Mutex
}

// NewSSEWriter creates an EventWriter for the given ResponseWriter.
//
// # Description
//
// The caller must set SSE headers via SetSSEHeaders before the first
// write. Returns an error if the ResponseWriter does not support
// flushing (streaming would silently buffer otherwise).
//
// # Examples
//
//	SetSSEHeaders(c.Writer)
//	writer, err := NewSSEWriter(c.Writer)
//	if err != nil {
//	    c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
//	    return
//	}
//	writer.WriteStatus("Starting translation run...")
func NewSSEWriter(w http.ResponseWriter) (EventWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}

	return &sseWriter{
		writer:  w,
		flusher: flusher,
	}, nil
}

// writeEnvelope seals the envelope into the hash chain, serializes it,
// and writes it in SSE format with an immediate flush.
func (w *sseWriter) writeEnvelope(env StreamEnvelope) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.chain.seal(&env)

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", env.Type, data); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}

	w.flusher.Flush()
	return nil
}

// WriteRunEvent writes one pipeline event.
func (w *sseWriter) WriteRunEvent(ev datatypes.Event) error {
	return w.writeEnvelope(StreamEnvelope{
		Type:  string(ev.Kind),
		RunID: ev.RunID,
		Event: &ev,
	})
}

// WriteStatus writes a status envelope.
func (w *sseWriter) WriteStatus(message string) error {
	return w.writeEnvelope(StreamEnvelope{
		Type:    EnvelopeStatus,
		Message: message,
	})
}

// WriteError writes an error envelope.
func (w *sseWriter) WriteError(errMsg string) error {
	return w.writeEnvelope(StreamEnvelope{
		Type:  EnvelopeError,
		Error: errMsg,
	})
}

// WriteDone writes the terminal envelope.
func (w *sseWriter) WriteDone(runID string) error {
	return w.writeEnvelope(StreamEnvelope{
		Type:  EnvelopeDone,
		RunID: runID,
	})
}

// WriteKeepAlive sends an SSE comment line (": ping").
//
// Comments are ignored by SSE clients but reset load-balancer idle
// timers. They are not part of the hash chain.
func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}

	w.flusher.Flush()
	return nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// SetSSEHeaders configures HTTP response headers for SSE streaming.
//
// Sets Content-Type, disables caching, and disables nginx buffering.
// Must be called before writing any response body.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ EventWriter = (*sseWriter)(nil)
