// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"errors"
	"fmt"
	"strconv"
)

// =============================================================================
// Sentinel Errors
// =============================================================================

var (
	// ErrArtifactNotFound indicates the requested artifact does not exist
	// in the store for the given run.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrRunNotFound indicates no run record exists for the given run ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrNilContext indicates a nil context.Context was passed.
	ErrNilContext = errors.New("context must not be nil")
)

// =============================================================================
// Phase Error Types
// =============================================================================

// InputError indicates the raw document could not be processed in phase 1.
//
// # Description
//
// Raised when the input text is empty, unreadable, or otherwise unusable.
// This is a fatal error: the run aborts with terminal status "failed" and
// no later phase runs.
type InputError struct {
	// Reason is a short human-readable cause ("empty or unreadable input").
	Reason string
}

// Error implements the error interface.
func (e *InputError) Error() string {
	return "input error: " + e.Reason
}

// ExtractionError indicates the schema-extraction capability failed.
//
// Non-fatal: phase 2 records the error and the pipeline continues with a
// best-effort partial schema.
type ExtractionError struct {
	// Backend names the capability implementation that failed.
	Backend string

	// Cause is the underlying error (timeout, malformed output, transport).
	Cause error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return "schema extraction failed (" + e.Backend + "): " + e.Cause.Error()
	}
	return "schema extraction failed (" + e.Backend + ")"
}

// Unwrap returns the underlying error.
func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// GenerationError indicates the code-generation capability failed.
//
// Fatal: without generated code phases 4-6 have nothing to operate on, so
// the run aborts with terminal status "failed".
type GenerationError struct {
	Backend string
	Cause   error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return "code generation failed (" + e.Backend + "): " + e.Cause.Error()
	}
	return "code generation failed (" + e.Backend + ")"
}

// Unwrap returns the underlying error.
func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// AuditUnavailableError indicates the security scanner could not run at all,
// for example when handed empty or whitespace-only code. Distinct from a
// clean scan: a scan that runs and finds nothing is a valid empty report.
type AuditUnavailableError struct {
	Reason string
}

// Error implements the error interface.
func (e *AuditUnavailableError) Error() string {
	return "security audit unavailable: " + e.Reason
}

// InterfaceParseError indicates the Solidity declaration parser could not
// produce an interface: unbalanced braces, no contract declaration, or a
// truncated member list.
type InterfaceParseError struct {
	// Line is the 1-based source line nearest the failure, 0 if unknown.
	Line int

	Reason string
}

// Error implements the error interface.
func (e *InterfaceParseError) Error() string {
	if e.Line > 0 {
		return "interface parse error at line " + strconv.Itoa(e.Line) + ": " + e.Reason
	}
	return "interface parse error: " + e.Reason
}

// =============================================================================
// Dataset Error Types
// =============================================================================

// LoadError indicates the corpus source was missing or unreadable.
type LoadError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load corpus %q: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("failed to load corpus %q", e.Path)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// SampleSizeError indicates a sample request exceeded the corpus size.
// The sampler returns nothing alongside this error, never a short sample.
type SampleSizeError struct {
	Requested int
	Available int
}

// Error implements the error interface.
func (e *SampleSizeError) Error() string {
	return fmt.Sprintf("sample size %d exceeds corpus size %d", e.Requested, e.Available)
}
