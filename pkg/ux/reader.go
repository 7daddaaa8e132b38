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
// This file contains stream readers that consume io.Reader sources and
// emit parsed envelopes via callbacks.
//
// Single Responsibility:
//
//	Readers handle I/O and envelope sequencing. They use parsers to
//	convert bytes to envelopes, but do not render output. This separation
//	enables flexible composition with different renderers.
//
// Context Support:
//
//	All readers accept context.Context for cancellation and timeout.
//	When context is cancelled, reading stops and the error is returned.
package ux

import (
	"bufio"
	"context"
	"io"
)

// =============================================================================
// Stream Reader Interface
// =============================================================================

// StreamCallback is invoked for each parsed envelope. Returning an error
// stops the read.
type StreamCallback func(env RunEnvelope) error

// maxEnvelopeLine caps one SSE data line. The run_complete envelope carries
// the full phase and refinement list, which can exceed bufio.Scanner's
// default 64KB token limit.
const maxEnvelopeLine = 1024 * 1024

// StreamReader reads translate run streams and invokes callbacks.
//
// This interface abstracts the reading of streamed run envelopes.
// Implementations handle the specific wire format (SSE today) and emit
// parsed RunEnvelope structs in arrival order.
//
// Thread Safety:
//
//	StreamReader implementations must be safe for concurrent use.
//	However, a single Read/ReadAll operation should not be called
//	concurrently on the same reader instance.
//
// Example:
//
//	reader := NewSSEStreamReader(NewSSEParser())
//
//	err := reader.Read(ctx, httpResp.Body, func(env ux.RunEnvelope) error {
//	    switch env.Type {
//	    case ux.EnvelopeStatus:
//	        fmt.Println(env.Message)
//	    case ux.EnvelopeError:
//	        return errors.New(env.Error)
//	    }
//	    return nil
//	})
type StreamReader interface {
	// Read processes a stream, invoking callback for each envelope.
	//
	// Parameters:
	//   - ctx: Context for cancellation. When cancelled, stops reading.
	//   - r: The source to read from. Caller is responsible for closing.
	//   - callback: Invoked per parsed envelope. Return error to stop.
	//
	// Returns:
	//   - error: nil on successful completion, otherwise the error that
	//     stopped reading (context cancellation, parse error, or callback
	//     error)
	//
	// Envelopes are assigned their zero-based stream Index before the
	// callback sees them. The stream is considered complete when:
	//   - EOF is reached
	//   - A terminal envelope (done/error) is received
	//   - Context is cancelled
	//   - Callback returns an error
	Read(ctx context.Context, r io.Reader, callback StreamCallback) error

	// ReadAll reads the entire stream and returns the aggregated result.
	//
	// This is a convenience method that folds every envelope into a
	// RunStreamResult. Use Read() for real-time rendering.
	//
	// Parameters:
	//   - ctx: Context for cancellation.
	//   - r: The source to read from. Caller is responsible for closing.
	//
	// Returns:
	//   - *RunStreamResult: Aggregate with run summary, timing, and the
	//     full envelope sequence. Partially populated when reading stopped
	//     early.
	//   - error: nil on success, otherwise the error that stopped reading.
	//
	// Note: If the stream ends with an error envelope, the failure text is
	// captured in RunStreamResult.Error and this method returns nil (the
	// stream itself completed normally).
	ReadAll(ctx context.Context, r io.Reader) (*RunStreamResult, error)
}

// =============================================================================
// SSE Stream Reader
// =============================================================================

// sseStreamReader implements StreamReader for Server-Sent Events.
//
// This reader uses bufio.Scanner to read lines and an SSEParser to parse
// each line into envelopes.
type sseStreamReader struct {
	parser SSEParser
}

// NewSSEStreamReader creates a new SSE stream reader.
//
// Parameters:
//   - parser: The SSE parser to use for line parsing.
//
// Returns a StreamReader that handles the translator's SSE format.
//
// Example:
//
//	reader := NewSSEStreamReader(NewSSEParser())
func NewSSEStreamReader(parser SSEParser) StreamReader {
	return &sseStreamReader{
		parser: parser,
	}
}

// Read processes an SSE stream, invoking callback for each envelope.
//
// Lines are read using bufio.Scanner. Each line is parsed by the SSE
// parser. Nil envelopes (framing, comments) are skipped.
func (r *sseStreamReader) Read(ctx context.Context, reader io.Reader, callback StreamCallback) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEnvelopeLine)
	index := 0

	for scanner.Scan() {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()

		env, err := r.parser.ParseLine(line)
		if err != nil {
			return err
		}

		// Skip framing lines (blanks, comments, event names)
		if env == nil {
			continue
		}

		env.Index = index
		index++

		if err := callback(*env); err != nil {
			return err
		}

		// Stop on terminal envelopes
		if env.IsTerminal() {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	return nil
}

// ReadAll reads the entire stream and returns the aggregated result.
//
// Folds every envelope into a RunStreamResult: run identifier, timing,
// the terminal run summary or error text, and the envelope sequence.
func (r *sseStreamReader) ReadAll(ctx context.Context, reader io.Reader) (*RunStreamResult, error) {
	result := &RunStreamResult{}

	err := r.Read(ctx, reader, func(env RunEnvelope) error {
		result.absorb(&env)
		return nil
	})

	return result, err
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ StreamReader = (*sseStreamReader)(nil)
