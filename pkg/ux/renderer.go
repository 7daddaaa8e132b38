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
// This file contains renderers that display translation run progress.
// Renderers receive decoded event payloads and own all output-related
// state (spinners, pending lines, buffers).
//
// Single Responsibility:
//
//	Renderers ONLY render. Parsing lives in parser.go, I/O sequencing in
//	reader.go, aggregation and verification in stream.go. This separation
//	enables testing each renderer against a fixed event sequence.
package ux

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// =============================================================================
// Run Renderer Interface
// =============================================================================

// RunRenderer renders translation run progress to an output destination.
//
// Each method handles exactly one stream payload kind. Callers should
// invoke methods in the order envelopes are received; phase N's completion
// always precedes phase N+1's start on the wire.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent calls. Multiple goroutines
//	may invoke methods simultaneously when processing events from channels.
//
// Lifecycle:
//
//  1. Create renderer with New*RunRenderer()
//  2. Call On* methods as envelopes arrive
//  3. Call Finalize() when the stream ends (always, even on error)
//
// Example:
//
//	renderer := NewTerminalRunRenderer(os.Stdout, GetPersonality().Level)
//	defer renderer.Finalize()
//
//	for env := range envelopes {
//	    switch env.Type {
//	    case EnvelopeStatus:
//	        renderer.OnStatus(ctx, env.Message)
//	    case EnvelopeError:
//	        renderer.OnError(ctx, env.Error)
//	    }
//	}
type RunRenderer interface {
	// OnStatus renders a service-level status update ("run accepted").
	//
	// In interactive mode, may start or update a spinner.
	// In machine mode, prints "STATUS: message".
	OnStatus(ctx context.Context, message string)

	// OnPhaseStarted renders a phase announcement.
	//
	// In interactive mode, shows a running-phase line that the matching
	// OnPhaseComplete replaces in place.
	OnPhaseStarted(ctx context.Context, phase datatypes.PhaseIndex, name string)

	// OnPhaseComplete renders a finished phase with its outcome.
	OnPhaseComplete(ctx context.Context, result *datatypes.PhaseResult)

	// OnRefinement renders one audit-driven refinement iteration.
	OnRefinement(ctx context.Context, result *datatypes.RefinementResult)

	// OnCompileCheck renders the advisory compile check outcome.
	// Advisory only; renderers must not style it as a failure.
	OnCompileCheck(ctx context.Context, result *datatypes.CompileCheckResult)

	// OnRunComplete renders the terminal run summary.
	// This is typically the last On* method called (unless OnError).
	OnRunComplete(ctx context.Context, result *datatypes.RunResult)

	// OnError renders a stream failure.
	// After OnError, only Finalize() should be called.
	OnError(ctx context.Context, message string)

	// Finalize performs cleanup (stop spinners, clear pending lines).
	//
	// MUST be called when streaming ends, even if abnormally.
	// Safe to call multiple times; subsequent calls are no-ops.
	Finalize()
}

// NewRunRenderer returns the renderer matching the current personality
// level: the machine renderer for scripting contexts, the terminal
// renderer otherwise.
func NewRunRenderer() RunRenderer {
	level := GetPersonality().Level
	if level == PersonalityMachine {
		return NewMachineRunRenderer(os.Stdout)
	}
	return NewTerminalRunRenderer(os.Stdout, level)
}

// =============================================================================
// Terminal Run Renderer
// =============================================================================

// terminalRunRenderer renders run progress to an interactive terminal.
//
// This is the primary renderer for user-facing output.
//
// Features:
//   - Spinner for pre-phase status messages (stops at the first phase)
//   - In-place phase lines: the running "◌ [3/6] code_generation" line is
//     replaced by its completion line
//   - Severity-styled refinement and audit output
//   - Muted styling for the advisory compile check
//
// Personality Modes:
//
//   - PersonalityFull/Standard: icons, colors, and phase summaries
//   - PersonalityMinimal: icons and durations only
//
// Thread Safety:
//
//	All methods are protected by a mutex. Safe for concurrent calls.
type terminalRunRenderer struct {
	writer      io.Writer
	personality PersonalityLevel
	spinner     *Spinner
	mu          sync.Mutex

	// State tracking
	pendingLine bool
	finalized   bool
}

// NewTerminalRunRenderer creates a renderer for interactive terminal
// output.
//
// Parameters:
//   - w: The output writer. If nil, defaults to os.Stdout.
//   - personality: Controls output styling. Use GetPersonality().Level
//     for the user's configured personality.
//
// Example:
//
//	renderer := NewTerminalRunRenderer(os.Stdout, GetPersonality().Level)
//	defer renderer.Finalize()
func NewTerminalRunRenderer(w io.Writer, personality PersonalityLevel) RunRenderer {
	if w == nil {
		w = os.Stdout
	}
	return &terminalRunRenderer{
		writer:      w,
		personality: personality,
	}
}

// stopSpinner halts the pre-phase spinner if one is running.
// Caller must hold the mutex.
func (r *terminalRunRenderer) stopSpinner() {
	if r.spinner != nil {
		r.spinner.Stop()
		r.spinner = nil
	}
}

// clearPending erases the running-phase line so the next write replaces
// it. Caller must hold the mutex.
func (r *terminalRunRenderer) clearPending() {
	if r.pendingLine {
		fmt.Fprint(r.writer, "\r\033[K")
		r.pendingLine = false
	}
}

// OnStatus renders a status update message.
//
// Starts or updates a spinner; the spinner runs until the first phase
// announcement arrives.
func (r *terminalRunRenderer) OnStatus(ctx context.Context, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return
	}

	if r.spinner == nil {
		r.spinner = NewSpinner(message)
		r.spinner.Start()
	} else {
		r.spinner.UpdateMessage(message)
	}
}

// OnPhaseStarted renders the running-phase line.
//
// The line is written without a trailing newline; the matching
// OnPhaseComplete clears and replaces it in place.
func (r *terminalRunRenderer) OnPhaseStarted(ctx context.Context, phase datatypes.PhaseIndex, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return
	}

	r.stopSpinner()
	r.clearPending()

	fmt.Fprintf(r.writer, "%s %s %s",
		IconRunning.Render(),
		Styles.Muted.Render(fmt.Sprintf("[%d/%d]", int(phase), datatypes.PhaseCount)),
		name)
	r.pendingLine = true
}

// OnPhaseComplete replaces the running-phase line with the outcome line.
func (r *terminalRunRenderer) OnPhaseComplete(ctx context.Context, result *datatypes.PhaseResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return
	}

	r.stopSpinner()
	r.clearPending()

	icon := IconSuccess
	detail := result.Summary
	if result.Status == datatypes.PhaseError {
		icon = IconError
		detail = result.ErrorDetail
	}

	// Minimal personality drops the phase summary, keeps the timing.
	if r.personality == PersonalityMinimal {
		detail = ""
	}

	if detail != "" {
		detail = fmt.Sprintf("%s, %dms", detail, result.DurationMs)
	} else {
		detail = fmt.Sprintf("%dms", result.DurationMs)
	}

	fmt.Fprintf(r.writer, "%s %s %s %s\n",
		icon.Render(),
		Styles.Muted.Render(fmt.Sprintf("[%d/%d]", int(result.Phase), datatypes.PhaseCount)),
		result.Name,
		Styles.Muted.Render("("+detail+")"))
}

// OnRefinement renders one refinement iteration between the audit phase
// and interface extraction.
func (r *terminalRunRenderer) OnRefinement(ctx context.Context, result *datatypes.RefinementResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return
	}

	r.stopSpinner()
	r.clearPending()

	stats := fmt.Sprintf("+%d/-%d lines, severity %s",
		result.LinesAdded, result.LinesRemoved, result.SeverityAfter)

	if result.Accepted {
		fmt.Fprintf(r.writer, "%s %s refinement %d accepted %s\n",
			IconSuccess.Render(),
			Styles.Muted.Render("[4/6]"),
			result.Iteration,
			Styles.Muted.Render("("+stats+")"))
		return
	}

	line := fmt.Sprintf("refinement %d rejected", result.Iteration)
	if result.Detail != "" && r.personality != PersonalityMinimal {
		line = fmt.Sprintf("%s: %s", line, result.Detail)
	}
	fmt.Fprintf(r.writer, "%s %s %s %s\n",
		IconWarning.Render(),
		Styles.Muted.Render("[4/6]"),
		line,
		Styles.Muted.Render("("+stats+")"))
}

// OnCompileCheck renders the advisory compile check. An unavailable
// compiler is a muted note, never a failure.
func (r *terminalRunRenderer) OnCompileCheck(ctx context.Context, result *datatypes.CompileCheckResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return
	}

	r.stopSpinner()
	r.clearPending()

	if !result.Available {
		fmt.Fprintln(r.writer, Styles.Muted.Render("solc not found; compile check skipped"))
		return
	}

	compiler := result.Compiler
	if result.CompilerVersion != "" {
		compiler = fmt.Sprintf("%s %s", result.Compiler, result.CompilerVersion)
	}

	if result.Compiles {
		fmt.Fprintf(r.writer, "%s compiles with %s\n", IconSuccess.Render(), compiler)
		return
	}

	fmt.Fprintf(r.writer, "%s %s reports %d error(s) %s\n",
		IconWarning.Render(), compiler, len(result.Errors),
		Styles.Muted.Render("(advisory)"))
}

// OnRunComplete renders the terminal run summary line.
func (r *terminalRunRenderer) OnRunComplete(ctx context.Context, result *datatypes.RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return
	}

	r.stopSpinner()
	r.clearPending()

	var icon Icon
	var verdict string
	switch result.Status {
	case datatypes.RunSucceeded:
		icon = IconSuccess
		verdict = Styles.Success.Render(string(result.Status))
	case datatypes.RunPartiallyFailed:
		icon = IconWarning
		verdict = Styles.Warning.Render(string(result.Status))
	default:
		icon = IconError
		verdict = Styles.Error.Render(string(result.Status))
	}

	fmt.Fprintf(r.writer, "\n%s run %s %s %s\n",
		icon.Render(),
		Styles.Bold.Render(result.RunID),
		verdict,
		Styles.Muted.Render(fmt.Sprintf("(%d artifacts, %dms)",
			len(result.ArtifactNames()), result.DurationMs)))
}

// OnError renders a stream failure.
func (r *terminalRunRenderer) OnError(ctx context.Context, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return
	}

	r.stopSpinner()
	r.clearPending()

	fmt.Fprintf(r.writer, "%s %s\n", IconError.Render(), Styles.Error.Render(message))
}

// Finalize stops the spinner and clears any pending phase line.
// Idempotent.
func (r *terminalRunRenderer) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return
	}
	r.finalized = true

	r.stopSpinner()
	r.clearPending()
}

// =============================================================================
// Machine Run Renderer
// =============================================================================

// machineRunRenderer renders run progress as line-oriented KEY: value
// output for scripts and CI logs. No colors, no cursor movement, one
// line per payload.
//
// Output format:
//
//	STATUS: run accepted
//	PHASE_STARTED	1/6	document_processing
//	PHASE_COMPLETE	1/6	document_processing	ok	142ms	4312 chars normalized
//	REFINEMENT	1	accepted=true	severity=low
//	COMPILE_CHECK	available=false	compiles=false
//	RUN_COMPLETE	run-1	succeeded	2148ms
//	ERROR: capability timeout
//
// Thread Safety:
//
//	All methods are protected by a mutex. Safe for concurrent calls.
type machineRunRenderer struct {
	writer    io.Writer
	mu        sync.Mutex
	finalized bool
}

// NewMachineRunRenderer creates a renderer for machine-readable output.
// If w is nil, defaults to os.Stdout.
func NewMachineRunRenderer(w io.Writer) RunRenderer {
	if w == nil {
		w = os.Stdout
	}
	return &machineRunRenderer{writer: w}
}

func (r *machineRunRenderer) OnStatus(ctx context.Context, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	fmt.Fprintf(r.writer, "STATUS: %s\n", message)
}

func (r *machineRunRenderer) OnPhaseStarted(ctx context.Context, phase datatypes.PhaseIndex, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	fmt.Fprintf(r.writer, "PHASE_STARTED\t%d/%d\t%s\n", int(phase), datatypes.PhaseCount, name)
}

func (r *machineRunRenderer) OnPhaseComplete(ctx context.Context, result *datatypes.PhaseResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	detail := result.Summary
	if result.Status == datatypes.PhaseError {
		detail = result.ErrorDetail
	}
	fmt.Fprintf(r.writer, "PHASE_COMPLETE\t%d/%d\t%s\t%s\t%dms\t%s\n",
		int(result.Phase), datatypes.PhaseCount, result.Name, result.Status,
		result.DurationMs, detail)
}

func (r *machineRunRenderer) OnRefinement(ctx context.Context, result *datatypes.RefinementResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	fmt.Fprintf(r.writer, "REFINEMENT\t%d\taccepted=%t\tseverity=%s\n",
		result.Iteration, result.Accepted, result.SeverityAfter)
}

func (r *machineRunRenderer) OnCompileCheck(ctx context.Context, result *datatypes.CompileCheckResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	fmt.Fprintf(r.writer, "COMPILE_CHECK\tavailable=%t\tcompiles=%t\n",
		result.Available, result.Compiles)
}

func (r *machineRunRenderer) OnRunComplete(ctx context.Context, result *datatypes.RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	fmt.Fprintf(r.writer, "RUN_COMPLETE\t%s\t%s\t%dms\n",
		result.RunID, result.Status, result.DurationMs)
}

func (r *machineRunRenderer) OnError(ctx context.Context, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	fmt.Fprintf(r.writer, "ERROR: %s\n", message)
}

func (r *machineRunRenderer) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalized = true
}

// =============================================================================
// Buffer Run Renderer
// =============================================================================

// BufferRunRenderer captures rendered output in memory.
//
// Primarily used in tests to assert on the rendered sequence without
// touching a terminal. Output uses the machine renderer's line format.
//
// Thread Safety:
//
//	All methods are protected by a mutex. Safe for concurrent calls,
//	including String() while rendering is in progress.
type BufferRunRenderer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	inner RunRenderer
}

// NewBufferRunRenderer creates a renderer that captures output in memory.
//
// Example:
//
//	renderer := NewBufferRunRenderer()
//	renderer.OnStatus(ctx, "run accepted")
//	if !strings.Contains(renderer.String(), "STATUS: run accepted") {
//	    t.Fatal("status not rendered")
//	}
func NewBufferRunRenderer() *BufferRunRenderer {
	b := &BufferRunRenderer{}
	b.inner = &machineRunRenderer{writer: &b.buf}
	return b
}

func (b *BufferRunRenderer) OnStatus(ctx context.Context, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inner.OnStatus(ctx, message)
}

func (b *BufferRunRenderer) OnPhaseStarted(ctx context.Context, phase datatypes.PhaseIndex, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inner.OnPhaseStarted(ctx, phase, name)
}

func (b *BufferRunRenderer) OnPhaseComplete(ctx context.Context, result *datatypes.PhaseResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inner.OnPhaseComplete(ctx, result)
}

func (b *BufferRunRenderer) OnRefinement(ctx context.Context, result *datatypes.RefinementResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inner.OnRefinement(ctx, result)
}

func (b *BufferRunRenderer) OnCompileCheck(ctx context.Context, result *datatypes.CompileCheckResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inner.OnCompileCheck(ctx, result)
}

func (b *BufferRunRenderer) OnRunComplete(ctx context.Context, result *datatypes.RunResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inner.OnRunComplete(ctx, result)
}

func (b *BufferRunRenderer) OnError(ctx context.Context, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inner.OnError(ctx, message)
}

func (b *BufferRunRenderer) Finalize() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inner.Finalize()
}

// String returns everything rendered so far.
func (b *BufferRunRenderer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Reset clears the captured output.
func (b *BufferRunRenderer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// =============================================================================
// Compile-time Interface Checks
// =============================================================================

var (
	_ RunRenderer = (*terminalRunRenderer)(nil)
	_ RunRenderer = (*machineRunRenderer)(nil)
	_ RunRenderer = (*BufferRunRenderer)(nil)
)
