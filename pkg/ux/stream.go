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
// This file contains the stream processor: the high-level entry point
// that consumes a translation run stream end to end. It composes the
// layers defined elsewhere in this package:
//
//	io.Reader --> StreamReader --> dispatch --> RunRenderer
//	                  |
//	                  +--> RunStreamResult.absorb --> ChainVerifier
//
// Callers that need finer control (custom rendering, no verification)
// can assemble the layers themselves; the processor is the common path
// used by the CLI.
package ux

import (
	"context"
	"io"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// =============================================================================
// Run Stream Processor
// =============================================================================

// RunStreamProcessor consumes a run event stream, renders progress as it
// arrives, and returns the aggregated result with integrity information.
//
// Lifecycle:
//
//  1. Create with NewRunStreamProcessor() or NewRunStreamProcessorWith()
//  2. Call Process() once per stream
//  3. Inspect the returned RunStreamResult
//
// Error Handling:
//
//	An error envelope on the stream is NOT a processing error: it is
//	rendered, captured in result.Error, and Process returns nil. Check
//	result.HasError() to distinguish run failure from transport failure.
//	Process returns a non-nil error only for transport problems (context
//	cancellation, read failures, malformed envelopes); the partial result
//	is still returned alongside it.
//
// Example:
//
//	processor := NewRunStreamProcessor()
//	result, err := processor.Process(ctx, resp.Body)
//	if err != nil {
//	    return fmt.Errorf("stream interrupted: %w", err)
//	}
//	if result.HasError() {
//	    return errors.New(result.Error)
//	}
//	fmt.Println(result.Integrity.FormatForDisplay())
type RunStreamProcessor interface {
	// Process reads the stream until the terminal envelope or EOF,
	// rendering each payload and verifying the hash chain at the end.
	Process(ctx context.Context, r io.Reader) (*RunStreamResult, error)
}

// runStreamProcessor is the standard processor implementation.
type runStreamProcessor struct {
	reader   StreamReader
	renderer RunRenderer
	verifier ChainVerifier
}

// NewRunStreamProcessor creates a processor with the default stack:
// SSE parsing, personality-aware rendering, and full chain verification.
func NewRunStreamProcessor() RunStreamProcessor {
	return NewRunStreamProcessorWith(nil, nil, nil)
}

// NewRunStreamProcessorWith creates a processor with explicit components.
// Nil arguments fall back to the defaults, so callers override only what
// they need:
//
//	// Skip verification (--no-verify):
//	NewRunStreamProcessorWith(nil, nil, NewNoopChainVerifier())
//
//	// Capture output in tests:
//	NewRunStreamProcessorWith(nil, NewBufferRunRenderer(), nil)
func NewRunStreamProcessorWith(reader StreamReader, renderer RunRenderer, verifier ChainVerifier) RunStreamProcessor {
	if reader == nil {
		reader = NewSSEStreamReader(NewSSEParser())
	}
	if renderer == nil {
		renderer = NewRunRenderer()
	}
	if verifier == nil {
		verifier = NewFullChainVerifier()
	}
	return &runStreamProcessor{
		reader:   reader,
		renderer: renderer,
		verifier: verifier,
	}
}

// Process implements RunStreamProcessor.
//
// Integrity is attached only when the stream was read to completion;
// on transport errors the partial result carries a nil Integrity.
func (p *runStreamProcessor) Process(ctx context.Context, r io.Reader) (*RunStreamResult, error) {
	defer p.renderer.Finalize()

	result := &RunStreamResult{}
	err := p.reader.Read(ctx, r, func(env RunEnvelope) error {
		result.absorb(&env)
		p.dispatch(ctx, &env)
		return nil
	})
	if err != nil {
		return result, err
	}

	verification := p.verifier.Verify(result.Envelopes)
	result.Integrity = NewIntegrityInfoFromVerification(verification)
	return result, nil
}

// dispatch routes one envelope to the matching renderer method.
//
// Envelopes with unknown types or missing payloads are skipped, so the
// stream format can grow new envelope types without breaking old
// clients. Skipped envelopes still count toward aggregation and the
// hash chain.
func (p *runStreamProcessor) dispatch(ctx context.Context, env *RunEnvelope) {
	switch env.Type {
	case EnvelopeStatus:
		p.renderer.OnStatus(ctx, env.Message)
		return
	case EnvelopeError:
		p.renderer.OnError(ctx, env.Error)
		return
	case EnvelopeDone:
		return
	}

	if env.Event == nil {
		return
	}

	switch env.Event.Kind {
	case datatypes.EventPhaseStarted:
		p.renderer.OnPhaseStarted(ctx, env.Event.PhaseIndex, env.Event.PhaseName)
	case datatypes.EventPhaseComplete:
		if env.Event.Phase != nil {
			p.renderer.OnPhaseComplete(ctx, env.Event.Phase)
		}
	case datatypes.EventRefinement:
		if env.Event.Refinement != nil {
			p.renderer.OnRefinement(ctx, env.Event.Refinement)
		}
	case datatypes.EventCompileCheck:
		if env.Event.CompileCheck != nil {
			p.renderer.OnCompileCheck(ctx, env.Event.CompileCheck)
		}
	case datatypes.EventRunComplete:
		if env.Event.Result != nil {
			p.renderer.OnRunComplete(ctx, env.Event.Result)
		}
	}
}

// ProcessRunStream consumes a stream with the default processor stack.
// Convenience for the common CLI path.
func ProcessRunStream(ctx context.Context, r io.Reader) (*RunStreamResult, error) {
	return NewRunStreamProcessor().Process(ctx, r)
}

// =============================================================================
// Compile-time Interface Checks
// =============================================================================

var _ RunStreamProcessor = (*runStreamProcessor)(nil)
