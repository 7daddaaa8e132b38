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

// =============================================================================
// Event Kinds
// =============================================================================

// EventKind discriminates the streamed event payloads.
type EventKind string

const (
	// EventPhaseStarted announces a phase is about to execute.
	EventPhaseStarted EventKind = "phase_started"

	// EventPhaseComplete carries the PhaseResult for a finished phase.
	// Callers observe phase N's completion before phase N+1 starts.
	EventPhaseComplete EventKind = "phase_complete"

	// EventRefinement reports one audit-driven refinement iteration.
	// Refinement events carry phase index 4; the canonical six phase
	// results are unchanged in meaning.
	EventRefinement EventKind = "refinement"

	// EventCompileCheck carries the advisory compile check outcome.
	// Informational only; never affects the run status.
	EventCompileCheck EventKind = "compile_check"

	// EventRunComplete is the terminal event wrapping the RunResult.
	// The event channel is closed immediately after it is sent.
	EventRunComplete EventKind = "run_complete"
)

// =============================================================================
// Event
// =============================================================================

// Event is one streamed progress item for a run.
//
// Exactly one of Phase, Refinement, CompileCheck, or Result is set,
// according to Kind. Events for a run are emitted strictly in execution
// order over a single-consumer channel; channel close is end-of-stream.
type Event struct {
	Kind  EventKind `json:"kind"`
	RunID string    `json:"run_id"`

	// PhaseIndex and PhaseName are set on phase_started, phase_complete,
	// and refinement events.
	PhaseIndex PhaseIndex `json:"phase,omitempty"`
	PhaseName  string     `json:"phase_name,omitempty"`

	Phase        *PhaseResult        `json:"phase_result,omitempty"`
	Refinement   *RefinementResult   `json:"refinement,omitempty"`
	CompileCheck *CompileCheckResult `json:"compile_check,omitempty"`
	Result       *RunResult          `json:"result,omitempty"`
}

// NewPhaseStartedEvent builds the announcement event for a phase.
func NewPhaseStartedEvent(runID string, phase PhaseIndex) Event {
	return Event{
		Kind:       EventPhaseStarted,
		RunID:      runID,
		PhaseIndex: phase,
		PhaseName:  phase.String(),
	}
}

// NewPhaseCompleteEvent wraps a finished phase's result.
func NewPhaseCompleteEvent(runID string, result PhaseResult) Event {
	return Event{
		Kind:       EventPhaseComplete,
		RunID:      runID,
		PhaseIndex: result.Phase,
		PhaseName:  result.Name,
		Phase:      &result,
	}
}

// NewRefinementEvent wraps one refinement iteration outcome.
func NewRefinementEvent(runID string, result RefinementResult) Event {
	return Event{
		Kind:       EventRefinement,
		RunID:      runID,
		PhaseIndex: PhaseSecurityAudit,
		PhaseName:  PhaseSecurityAudit.String(),
		Refinement: &result,
	}
}

// NewCompileCheckEvent wraps the advisory compile check outcome.
func NewCompileCheckEvent(runID string, result CompileCheckResult) Event {
	return Event{
		Kind:         EventCompileCheck,
		RunID:        runID,
		CompileCheck: &result,
	}
}

// NewRunCompleteEvent wraps the terminal RunResult.
func NewRunCompleteEvent(result RunResult) Event {
	return Event{
		Kind:   EventRunComplete,
		RunID:  result.RunID,
		Result: &result,
	}
}
