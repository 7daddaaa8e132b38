// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides the HTTP layer of the translator service:
// the SSE and WebSocket run streams, run and artifact retrieval, the
// direct scan endpoint, and corpus inspection.
package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
	"github.com/google/uuid"
)

// =============================================================================
// Envelope Types
// =============================================================================

// Envelope type strings for items that are not pipeline events.
// Pipeline events use their EventKind ("phase_started", "run_complete", ...)
// as the envelope type directly.
const (
	// EnvelopeStatus is a human-readable progress message.
	EnvelopeStatus = "status"

	// EnvelopeError reports a stream failure. The stream closes after it.
	EnvelopeError = "error"

	// EnvelopeDone is the final item on every successful stream.
	EnvelopeDone = "done"
)

// StreamEnvelope is the wire wrapper for one streamed item.
//
// # Description
//
// Every item on the SSE and WebSocket run streams is wrapped in an
// envelope carrying integrity metadata:
//   - Id: UUID v4 for ordering and deduplication
//   - CreatedAt: Unix timestamp in milliseconds
//   - Hash: SHA-256 hash of the envelope content
//   - PrevHash: hash of the previous envelope for chain verification
//
// The chain provides custody over the full run transcript: a client can
// verify no event was dropped or reordered in transit.
//
// # Fields
//
//   - Type: envelope discriminator; an EventKind for pipeline events,
//     or one of "status", "error", "done".
//   - RunID: the run this envelope belongs to, when known.
//   - Message: status text (Type "status" only).
//   - Error: sanitized failure text (Type "error" only).
//   - Event: the wrapped pipeline event (pipeline event types only).
type StreamEnvelope struct {
	Id        string           `json:"id"`
	Type      string           `json:"type"`
	CreatedAt int64            `json:"created_at"`
	Hash      string           `json:"hash"`
	PrevHash  string           `json:"prev_hash,omitempty"`
	RunID     string           `json:"run_id,omitempty"`
	Message   string           `json:"message,omitempty"`
	Error     string           `json:"error,omitempty"`
	Event     *datatypes.Event `json:"event,omitempty"`
}

// =============================================================================
// Hash Chain
// =============================================================================

// envelopeChain tracks the hash of the last sealed envelope.
//
// Not safe for concurrent use on its own; the owning writer serializes
// access under its write mutex.
type envelopeChain struct {
	prevHash string
}

// seal populates the envelope metadata (Id, CreatedAt, PrevHash, Hash)
// and advances the chain.
func (ch *envelopeChain) seal(env *StreamEnvelope) {
	env.Id = uuid.New().String()
	env.CreatedAt = time.Now().UnixMilli()
	env.PrevHash = ch.prevHash
	env.Hash = computeEnvelopeHash(env)
	ch.prevHash = env.Hash
}

// computeEnvelopeHash computes the SHA-256 hash of envelope content.
//
// The hash covers all identifying and payload fields. The wrapped event
// is JSON-serialized so phase results and run summaries are part of the
// chain, not just the envelope headers.
func computeEnvelopeHash(env *StreamEnvelope) string {
	eventJSON := ""
	if env.Event != nil {
		if data, err := json.Marshal(env.Event); err == nil {
			eventJSON = string(data)
		}
	}

	hashInput := fmt.Sprintf("%s|%s|%d|%s|%s|%s|%s|%s",
		env.Id,
		env.Type,
		env.CreatedAt,
		env.PrevHash,
		env.RunID,
		env.Message,
		env.Error,
		eventJSON,
	)

	hash := sha256.Sum256([]byte(hashInput))
	return hex.EncodeToString(hash[:])
}

// =============================================================================
// Writer Contract
// =============================================================================

// EventWriter is the contract for writing run-stream envelopes to a
// client connection.
//
// # Description
//
// EventWriter abstracts the transport (SSE or WebSocket) behind one
// write surface so the translate handlers share a single streaming loop.
// Implementations seal every envelope into the hash chain before writing
// and flush immediately.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use: the streaming loop
// and the keepalive goroutine write from different goroutines.
type EventWriter interface {
	// WriteRunEvent writes one pipeline event. The envelope type is the
	// event's kind and RunID is taken from the event.
	WriteRunEvent(ev datatypes.Event) error

	// WriteStatus writes a status envelope with the given message.
	WriteStatus(message string) error

	// WriteError writes an error envelope. The message must already be
	// sanitized; internal error details never reach the client.
	WriteError(errMsg string) error

	// WriteDone writes the terminal envelope carrying the run ID.
	WriteDone(runID string) error

	// WriteKeepAlive sends a transport-level ping to hold the connection
	// open through load-balancer idle timeouts. Keepalives are not part
	// of the hash chain.
	WriteKeepAlive() error
}
