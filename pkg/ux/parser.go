// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides user experience components for the Solforge CLI.
//
// This file contains parsers for the translate run stream format.
// Parsers are responsible for converting raw bytes/lines into RunEnvelope
// structs.
//
// Single Responsibility:
//
//	Parsers ONLY parse. They do not perform I/O, rendering, or state
//	management. This separation enables easy testing and format
//	extensibility.
//
// Supported Formats:
//
//   - SSE (Server-Sent Events): GET /v1/translate/stream
//   - Raw JSON envelopes: the WebSocket transport delivers these directly
package ux

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// SSE Parser Interface
// =============================================================================

// SSEParser parses Server-Sent Events lines from the translate stream
// endpoint into envelopes.
//
// Wire Format:
//
//	event: phase_complete\n
//	data: {"id":"...","type":"phase_complete","hash":"...",...}\n
//	\n
//
// Each envelope arrives as an "event:" line naming the type followed by a
// "data:" line carrying the JSON envelope, separated by blank lines. The
// type also rides inside the JSON, so the parser keys off data lines and
// treats event lines as framing. Keep-alive pings arrive as ": ping"
// comment lines.
//
// Wire metadata (Id, CreatedAt, Hash, PrevHash) is preserved exactly as
// received. The integrity chain is recomputed from these values during
// verification; regenerating any of them client-side would break it.
//
// Thread Safety:
//
//	SSEParser implementations must be safe for concurrent use.
//	The default implementation is stateless and inherently thread-safe.
//
// Example:
//
//	parser := NewSSEParser()
//	env, err := parser.ParseLine(`data: {"id":"e1","type":"status","hash":"ab"}`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if env != nil {
//	    fmt.Println(env.Type) // "status"
//	}
type SSEParser interface {
	// ParseLine parses a single line of SSE input.
	//
	// Parameters:
	//   - line: A single line from the SSE stream (without trailing newline)
	//
	// Returns:
	//   - *RunEnvelope: The parsed envelope, or nil for framing lines
	//   - error: Non-nil for malformed JSON or protocol violations
	//
	// Line handling:
	//   - Empty lines: Returns nil, nil (event delimiter)
	//   - Comment lines (":"): Returns nil, nil (keep-alive pings)
	//   - Event lines ("event:"): Returns nil, nil (type framing)
	//   - Data lines ("data: "): Parses the JSON envelope
	//   - Other lines: Returns an error (protocol violation)
	ParseLine(line string) (*RunEnvelope, error)

	// ParseRawJSON parses a raw JSON envelope, as delivered by the
	// WebSocket transport or extracted from an SSE data line.
	//
	// Parameters:
	//   - jsonData: Raw JSON bytes
	//
	// Returns:
	//   - *RunEnvelope: The parsed envelope with wire values intact
	//   - error: Non-nil if parsing failed or the type field is missing
	ParseRawJSON(jsonData []byte) (*RunEnvelope, error)
}

// =============================================================================
// SSE Parser Implementation
// =============================================================================

// sseParser implements SSEParser for the translator's envelope stream.
//
// This implementation is stateless and safe for concurrent use.
type sseParser struct{}

// NewSSEParser creates a new SSE envelope parser.
//
// The returned parser is stateless and can be safely shared across
// goroutines.
func NewSSEParser() SSEParser {
	return &sseParser{}
}

// ParseLine parses a single SSE line.
//
// Handles the following line types:
//   - Empty: Returns nil (event boundary)
//   - Comment (starts with ":"): Returns nil (keep-alive)
//   - Event name (starts with "event:"): Returns nil (framing)
//   - Data (starts with "data: "): Parses the JSON envelope
//   - Other: Returns an error; the translate stream never sends bare text
func (p *sseParser) ParseLine(line string) (*RunEnvelope, error) {
	line = strings.TrimSpace(line)

	// Empty lines are event delimiters
	if line == "" {
		return nil, nil
	}

	// Comments start with ":"; the server uses ": ping" as keep-alive
	if strings.HasPrefix(line, ":") {
		return nil, nil
	}

	// Event-name framing; the type is repeated inside the JSON payload
	if strings.HasPrefix(line, "event:") {
		return nil, nil
	}

	// Data lines start with "data: "
	if strings.HasPrefix(line, "data: ") {
		jsonData := strings.TrimPrefix(line, "data: ")
		return p.ParseRawJSON([]byte(jsonData))
	}

	// Also handle "data:" without space (some proxies strip it)
	if strings.HasPrefix(line, "data:") {
		jsonData := strings.TrimPrefix(line, "data:")
		return p.ParseRawJSON([]byte(jsonData))
	}

	return nil, fmt.Errorf("unexpected stream line %q", truncate(line, 64))
}

// ParseRawJSON parses a JSON envelope.
//
// The envelope must carry a "type" field; everything else is optional on
// the wire. Hash-chain fields pass through untouched.
//
// Example JSON:
//
//	{"id":"e1","type":"status","created_at":1700000000000,"hash":"ab","message":"run accepted"}
//	{"id":"e2","type":"phase_complete","hash":"cd","prev_hash":"ab","event":{...}}
//	{"id":"e9","type":"done","hash":"ef","prev_hash":"cd","run_id":"run-1"}
func (p *sseParser) ParseRawJSON(jsonData []byte) (*RunEnvelope, error) {
	var env RunEnvelope
	if err := json.Unmarshal(jsonData, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("envelope missing type")
	}
	return &env, nil
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ SSEParser = (*sseParser)(nil)
