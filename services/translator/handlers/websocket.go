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
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
	"github.com/AleutianAI/solforge/services/translator/observability"
)

// writeWait bounds a single WebSocket control-frame write.
const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	// Requests cap at 256KB of source text; 1MB covers the request frame
	// and the largest run_complete envelope with room to spare.
	ReadBufferSize:  1024 * 1024,
	WriteBufferSize: 1024 * 1024,
}

// =============================================================================
// WebSocket Writer
// =============================================================================

// wsWriter implements EventWriter over a WebSocket connection.
//
// Envelopes are sent as JSON text frames with the same hash chain as the
// SSE stream; keepalives are WebSocket ping control frames instead of
// comment lines.
//
// # Thread Safety
//
// Thread-safe via mutex. gorilla/websocket permits one concurrent writer,
// so every frame write (data and control) is serialized here.
type wsWriter struct {
	conn  *websocket.Conn
	chain envelopeChain
	mu    sync.Mutex
}

func newWSWriter(conn *websocket.Conn) *wsWriter {
	return &wsWriter{conn: conn}
}

// writeEnvelope seals the envelope into the hash chain and sends it as
// one JSON text frame.
func (w *wsWriter) writeEnvelope(env StreamEnvelope) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.chain.seal(&env)

	if err := w.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}
	return nil
}

// WriteRunEvent writes one pipeline event.
func (w *wsWriter) WriteRunEvent(ev datatypes.Event) error {
	return w.writeEnvelope(StreamEnvelope{
		Type:  string(ev.Kind),
		RunID: ev.RunID,
		Event: &ev,
	})
}

// WriteStatus writes a status envelope.
func (w *wsWriter) WriteStatus(message string) error {
	return w.writeEnvelope(StreamEnvelope{
		Type:    EnvelopeStatus,
		Message: message,
	})
}

// WriteError writes an error envelope.
func (w *wsWriter) WriteError(errMsg string) error {
	return w.writeEnvelope(StreamEnvelope{
		Type:  EnvelopeError,
		Error: errMsg,
	})
}

// WriteDone writes the terminal envelope.
func (w *wsWriter) WriteDone(runID string) error {
	return w.writeEnvelope(StreamEnvelope{
		Type:  EnvelopeDone,
		RunID: runID,
	})
}

// WriteKeepAlive sends a ping control frame. Pings are not part of the
// hash chain.
func (w *wsWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("write ping: %w", err)
	}
	return nil
}

var _ EventWriter = (*wsWriter)(nil)

// =============================================================================
// Handler
// =============================================================================

// HandleTranslateWS processes GET /v1/translate/ws.
//
// # Description
//
// The WebSocket carries one run per connection: the first client frame
// is the TranslateRequest JSON, the server streams every pipeline event
// as a hash-chained envelope, and the connection closes after the done
// envelope. Pings hold the connection open through long phases; clients
// need not respond beyond the protocol-level pong.
//
// Invalid requests are answered with an error envelope before close, so
// clients see the cause instead of a bare disconnect.
func (h *TranslateHandler) HandleTranslateWS(c *gin.Context) {
	endpoint := observability.EndpointTranslateWS

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("Failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()
	slog.Info("WebSocket translate client connected")

	ctx, span := h.tracer.Start(c.Request.Context(), "HandleTranslateWS")
	defer span.End()

	writer := newWSWriter(ws)

	// First client frame is the translate request.
	var req datatypes.TranslateRequest
	if err := ws.ReadJSON(&req); err != nil {
		slog.Info("WebSocket client disconnected before sending a request", "error", err.Error())
		span.SetStatus(codes.Error, "no request frame")
		return
	}

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		slog.Error("WebSocket translate request validation failed",
			"error", err,
			"requestId", req.RequestID,
		)
		_ = writer.WriteError("invalid request: validation failed")
		return
	}

	req.EnsureDefaults()
	span.SetAttributes(
		attribute.String("request.id", req.RequestID),
		attribute.Int("request.source_bytes", len(req.Source)),
		attribute.String("request.type_hint", req.TypeHint),
	)

	events, err := h.orch.Run(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run rejected")
		slog.Error("Pipeline rejected WebSocket translate request",
			"error", err,
			"requestId", req.RequestID,
		)
		_ = writer.WriteError(err.Error())
		return
	}

	if err := writer.WriteStatus("Starting translation run..."); err != nil {
		span.RecordError(err)
		slog.Warn("WebSocket client disconnected before streaming", "error", err)
		return
	}

	heartbeatDone := make(chan struct{})
	go runHeartbeat(ctx, writer, endpoint, heartbeatDone)

	runID, result := h.streamEvents(writer, events, endpoint)

	close(heartbeatDone)

	span.SetAttributes(attribute.String("run.id", runID))

	if result == nil {
		span.SetStatus(codes.Error, "stream ended without terminal result")
		return
	}

	span.SetAttributes(attribute.String("run.status", string(result.Status)))

	if err := writer.WriteDone(runID); err != nil {
		span.RecordError(err)
		slog.Error("Failed to write done envelope",
			"error", err,
			"runId", runID,
		)
		return
	}

	span.SetStatus(codes.Ok, "stream completed")
}
