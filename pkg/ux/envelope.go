// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"time"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// =============================================================================
// Envelope Types
// =============================================================================

// EnvelopeType identifies one streamed envelope kind.
//
// The translator service wraps every streamed item in a hash-chained
// envelope. The type is either a service-level kind (status, error, done)
// or the kind of the wrapped pipeline event.
type EnvelopeType string

const (
	// EnvelopeStatus is a service-level progress message.
	EnvelopeStatus EnvelopeType = "status"

	// EnvelopePhaseStarted announces a pipeline phase is about to run.
	EnvelopePhaseStarted EnvelopeType = "phase_started"

	// EnvelopePhaseComplete carries a finished phase's result.
	EnvelopePhaseComplete EnvelopeType = "phase_complete"

	// EnvelopeRefinement reports one audit-driven refinement iteration.
	EnvelopeRefinement EnvelopeType = "refinement"

	// EnvelopeCompileCheck carries the advisory compile check outcome.
	EnvelopeCompileCheck EnvelopeType = "compile_check"

	// EnvelopeRunComplete wraps the terminal run summary.
	EnvelopeRunComplete EnvelopeType = "run_complete"

	// EnvelopeError reports a stream failure. Terminal.
	EnvelopeError EnvelopeType = "error"

	// EnvelopeDone marks normal end-of-stream. Terminal.
	EnvelopeDone EnvelopeType = "done"
)

// String returns the string representation of the envelope type.
func (t EnvelopeType) String() string {
	return string(t)
}

// IsTerminal returns true if this envelope type ends the stream.
func (t EnvelopeType) IsTerminal() bool {
	return t == EnvelopeDone || t == EnvelopeError
}

// =============================================================================
// Run Envelope
// =============================================================================

// RunEnvelope is one hash-chained item of a translation run stream.
//
// # Description
//
// The JSON layout matches the service's wire envelope exactly so the hash
// chain can be re-verified client-side: Hash covers Id, Type, CreatedAt,
// PrevHash, RunID, Message, Error, and the canonical JSON of Event. The
// parser preserves every wire value as received; nothing is regenerated
// on the client.
//
// # Fields
//
//   - Id: Server-assigned envelope identifier (UUID v4).
//   - Type: Envelope kind; service-level or the wrapped event's kind.
//   - CreatedAt: Server timestamp in Unix milliseconds.
//   - Hash: SHA-256 over the envelope's hashed fields.
//   - PrevHash: Hash of the preceding envelope; empty on the first.
//   - RunID: Run identifier, set once the run is known.
//   - Message: Human-readable text (status envelopes).
//   - Error: Sanitized failure text (error envelopes).
//   - Event: The wrapped pipeline event (event envelopes only).
//   - Index: Zero-based position in the received stream. Assigned
//     client-side by the reader; never on the wire.
type RunEnvelope struct {
	Id        string           `json:"id"`
	Type      EnvelopeType     `json:"type"`
	CreatedAt int64            `json:"created_at"`
	Hash      string           `json:"hash"`
	PrevHash  string           `json:"prev_hash,omitempty"`
	RunID     string           `json:"run_id,omitempty"`
	Message   string           `json:"message,omitempty"`
	Error     string           `json:"error,omitempty"`
	Event     *datatypes.Event `json:"event,omitempty"`

	Index int `json:"-"`
}

// IsTerminal returns true if this envelope ends the stream.
func (e *RunEnvelope) IsTerminal() bool {
	return e.Type.IsTerminal()
}

// CreatedAtTime converts the millisecond timestamp to time.Time.
// Returns the zero time when CreatedAt is unset.
func (e *RunEnvelope) CreatedAtTime() time.Time {
	if e.CreatedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.CreatedAt)
}

// =============================================================================
// Stream Result
// =============================================================================

// RunStreamResult aggregates a fully consumed run stream.
//
// # Description
//
// RunStreamResult accumulates envelope metadata as the stream is read:
// timing, the run identifier, the terminal run summary or error text, and
// the full envelope sequence for integrity verification. It is built by
// StreamReader.ReadAll and by RunStreamProcessor.Process.
type RunStreamResult struct {
	// RunID is the run identifier announced by the stream.
	RunID string `json:"run_id,omitempty"`

	// CreatedAt is the first envelope's timestamp (Unix millis).
	CreatedAt int64 `json:"created_at,omitempty"`

	// CompletedAt is the terminal envelope's timestamp (Unix millis),
	// 0 while the stream is still open.
	CompletedAt int64 `json:"completed_at,omitempty"`

	// FirstEventAt is the first pipeline event's timestamp (Unix millis),
	// 0 when the stream failed before any phase ran.
	FirstEventAt int64 `json:"first_event_at,omitempty"`

	// TotalEnvelopes counts every envelope received, terminal included.
	TotalEnvelopes int `json:"total_envelopes"`

	// Result is the terminal run summary, nil when the stream errored
	// before run completion.
	Result *datatypes.RunResult `json:"result,omitempty"`

	// Error is the sanitized failure text from an error envelope.
	Error string `json:"error,omitempty"`

	// ChainHash is the last received envelope's hash, the stream's
	// integrity anchor.
	ChainHash string `json:"chain_hash,omitempty"`

	// Integrity is the chain verification verdict, nil when verification
	// was not performed.
	Integrity *IntegrityInfo `json:"integrity,omitempty"`

	// Envelopes retains the full received sequence for verification.
	Envelopes []RunEnvelope `json:"-"`
}

// absorb folds one received envelope into the aggregate.
func (r *RunStreamResult) absorb(env *RunEnvelope) {
	r.Envelopes = append(r.Envelopes, *env)
	r.TotalEnvelopes++
	r.ChainHash = env.Hash

	if r.CreatedAt == 0 {
		r.CreatedAt = env.CreatedAt
	}
	if r.RunID == "" && env.RunID != "" {
		r.RunID = env.RunID
	}

	switch {
	case env.Type == EnvelopeError:
		r.Error = env.Error
	case env.Event != nil:
		if r.FirstEventAt == 0 {
			r.FirstEventAt = env.CreatedAt
		}
		if env.Event.Kind == datatypes.EventRunComplete {
			r.Result = env.Event.Result
		}
	}

	if env.IsTerminal() {
		r.CompletedAt = env.CreatedAt
	}
}

// HasError returns true if the stream reported a failure.
func (r *RunStreamResult) HasError() bool {
	return r.Error != ""
}

// Status derives the run status: the terminal summary's status when
// present, failed when the stream errored, pending otherwise.
func (r *RunStreamResult) Status() datatypes.RunStatus {
	switch {
	case r.Result != nil:
		return r.Result.Status
	case r.Error != "":
		return datatypes.RunFailed
	default:
		return datatypes.RunPending
	}
}

// Duration returns the wall-clock stream duration. Returns 0 until both
// the first and the terminal envelope have been seen.
func (r *RunStreamResult) Duration() time.Duration {
	if r.CreatedAt == 0 || r.CompletedAt == 0 {
		return 0
	}
	return time.Duration(r.CompletedAt-r.CreatedAt) * time.Millisecond
}

// TimeToFirstEvent returns the latency from stream start to the first
// pipeline event. Returns 0 when no event arrived.
func (r *RunStreamResult) TimeToFirstEvent() time.Duration {
	if r.CreatedAt == 0 || r.FirstEventAt == 0 {
		return 0
	}
	return time.Duration(r.FirstEventAt-r.CreatedAt) * time.Millisecond
}

// CreatedAtTime converts CreatedAt to time.Time, zero time when unset.
func (r *RunStreamResult) CreatedAtTime() time.Time {
	if r.CreatedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(r.CreatedAt)
}

// CompletedAtTime converts CompletedAt to time.Time, zero time when unset.
func (r *RunStreamResult) CompletedAtTime() time.Time {
	if r.CompletedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(r.CompletedAt)
}
