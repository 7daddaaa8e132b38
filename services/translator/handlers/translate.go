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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
	"github.com/AleutianAI/solforge/services/translator/observability"
	"github.com/AleutianAI/solforge/services/translator/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

// heartbeatInterval is the interval for sending keepalive pings.
// Set to 15s to stay well under typical LB timeouts (60s for ALB/Nginx).
const heartbeatInterval = 15 * time.Second

// =============================================================================
// Translate Handler
// =============================================================================

// TranslateHandler serves the streaming translation endpoints.
//
// # Description
//
// TranslateHandler owns the HTTP side of a pipeline run: request parsing
// and validation, stream setup (SSE or WebSocket), forwarding every
// pipeline event as a hash-chained envelope, and the keepalive heartbeat.
// Run semantics live entirely in the pipeline orchestrator; the handler
// never interprets phase outcomes beyond surfacing them.
//
// # Thread Safety
//
// Thread-safe. All fields are read-only after construction; per-request
// state lives on the stack of each handler invocation.
type TranslateHandler struct {
	orch   *pipeline.Orchestrator
	tracer trace.Tracer
}

// NewTranslateHandler creates a TranslateHandler for the given orchestrator.
//
// Panics on a nil orchestrator (programming error).
func NewTranslateHandler(orch *pipeline.Orchestrator) *TranslateHandler {
	if orch == nil {
		panic("NewTranslateHandler: orchestrator must not be nil")
	}
	return &TranslateHandler{
		orch:   orch,
		tracer: otel.Tracer("translator.handlers"),
	}
}

// HandleTranslateSSE processes POST /v1/translate with SSE streaming.
//
// # Description
//
// The flow is:
//  1. Parse and validate the request body.
//  2. Start the pipeline run.
//  3. Set SSE headers and create the envelope writer.
//  4. Emit a status envelope, then every pipeline event as it arrives.
//  5. Emit the done envelope once the run reaches a terminal state.
//
// A keepalive goroutine pings the connection every 15 seconds while the
// run is executing.
//
// # Outputs
//
// SSE events, one per envelope:
//   - event: status, data: {"type":"status","message":"..."}
//   - event: phase_started / phase_complete / refinement / compile_check /
//     run_complete, data: {"type":"...","event":{...}}
//   - event: done, data: {"type":"done","run_id":"..."}
//
// HTTP status (before streaming starts):
//   - 400 Bad Request: invalid body, validation failure, oversized source
//   - 500 Internal Server Error: SSE setup failure
//
// A client disconnect mid-stream cancels the request context, which winds
// the run down; the run record still persists with status "failed".
func (h *TranslateHandler) HandleTranslateSSE(c *gin.Context) {
	endpoint := observability.EndpointTranslateSSE

	ctx, span := h.tracer.Start(c.Request.Context(), "HandleTranslateSSE")
	defer span.End()

	// Step 1: Parse request body
	var req datatypes.TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request body")
		slog.Error("Failed to parse translate request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	// Step 2: Validate request
	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		slog.Error("Translate request validation failed",
			"error", err,
			"requestId", req.RequestID,
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
		return
	}

	req.EnsureDefaults()
	span.SetAttributes(
		attribute.String("request.id", req.RequestID),
		attribute.Int("request.source_bytes", len(req.Source)),
		attribute.String("request.type_hint", req.TypeHint),
	)

	// Step 3: Start the run. Run rejects only malformed requests
	// synchronously; phase failures surface through the event stream.
	events, err := h.orch.Run(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run rejected")
		slog.Error("Pipeline rejected translate request",
			"error", err,
			"requestId", req.RequestID,
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Step 4: Set SSE headers and create writer. If setup fails the
	// request context cancels on return, which unwinds the producer.
	SetSSEHeaders(c.Writer)
	writer, err := NewSSEWriter(c.Writer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "SSE setup failed")
		slog.Error("Failed to create SSE writer",
			"error", err,
			"requestId", req.RequestID,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
		return
	}

	// Step 5: Emit status envelope
	if err := writer.WriteStatus("Starting translation run..."); err != nil {
		span.RecordError(err)
		slog.Error("Failed to write status envelope",
			"error", err,
			"requestId", req.RequestID,
		)
		return
	}

	// Step 6: Start heartbeat goroutine to prevent connection timeouts
	heartbeatDone := make(chan struct{})
	go runHeartbeat(ctx, writer, endpoint, heartbeatDone)

	// Step 7: Forward every pipeline event until the channel closes
	runID, result := h.streamEvents(writer, events, endpoint)

	close(heartbeatDone)

	span.SetAttributes(attribute.String("run.id", runID))

	// A closed channel without a terminal result means the run was
	// canceled (client disconnect); there is nothing left to write.
	if result == nil {
		span.SetStatus(codes.Error, "stream ended without terminal result")
		return
	}

	span.SetAttributes(attribute.String("run.status", string(result.Status)))

	// Step 8: Emit done envelope
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

// streamEvents forwards pipeline events to the writer until the channel
// closes. Returns the run ID and the terminal result, nil when the run
// never reached one (cancellation).
//
// On a write failure the client is gone: the loop stops consuming, the
// handler returns, and the canceled request context unwinds the producer.
func (h *TranslateHandler) streamEvents(
	writer EventWriter,
	events <-chan datatypes.Event,
	endpoint observability.Endpoint,
) (string, *datatypes.RunResult) {
	var (
		runID  string
		result *datatypes.RunResult
	)

	for ev := range events {
		if runID == "" {
			runID = ev.RunID
		}
		if ev.Kind == datatypes.EventRunComplete {
			result = ev.Result
		}

		if err := writer.WriteRunEvent(ev); err != nil {
			slog.Warn("Client disconnected mid-stream",
				"runId", runID,
				"error", err,
			)
			if m := observability.DefaultMetrics; m != nil {
				m.RecordClientDisconnect(endpoint)
			}
			return runID, nil
		}
	}

	return runID, result
}

// runHeartbeat pings the stream every heartbeatInterval until the run
// finishes or the connection drops.
func runHeartbeat(
	ctx context.Context,
	writer EventWriter,
	endpoint observability.Endpoint,
	done <-chan struct{},
) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writer.WriteKeepAlive(); err != nil {
				slog.Debug("Failed to write keepalive", "error", err)
				return
			}
			if m := observability.DefaultMetrics; m != nil {
				m.RecordKeepAlive(endpoint)
			}
		}
	}
}
