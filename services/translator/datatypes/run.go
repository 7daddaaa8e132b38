// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides the shared data model for the translator
// service.
//
// This file contains the run lifecycle types: requests, phase results, and
// terminal run summaries. Streamed event types live in events.go; the typed
// error taxonomy lives in errors.go.
package datatypes

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Constants for Input Compliance
// =============================================================================

const (
	// MaxSourceBytes is the maximum size of a raw contract description.
	// Larger payloads are rejected at validation, before any phase runs.
	MaxSourceBytes = 256 * 1024 // 256KB

	// MaxTypeHintLength is the maximum length of a contract-type hint.
	MaxTypeHintLength = 128

	// DefaultMaxRefinements bounds the audit-driven refinement loop.
	// Zero disables refinement entirely.
	DefaultMaxRefinements = 2

	// DefaultCapabilityTimeout is the per-phase timeout applied to the
	// extraction and generation capabilities when the request does not
	// override it.
	DefaultCapabilityTimeout = 120 * time.Second
)

// =============================================================================
// Phase Identifiers
// =============================================================================

// PhaseIndex identifies one of the six pipeline phases, 1-based.
type PhaseIndex int

const (
	PhaseDocumentProcessing  PhaseIndex = 1
	PhaseSchemaExtraction    PhaseIndex = 2
	PhaseCodeGeneration      PhaseIndex = 3
	PhaseSecurityAudit       PhaseIndex = 4
	PhaseInterfaceExtraction PhaseIndex = 5
	PhaseScaffoldGeneration  PhaseIndex = 6

	// PhaseCount is the number of canonical pipeline phases.
	PhaseCount = 6
)

// phaseNames maps phase indices to their wire names.
var phaseNames = map[PhaseIndex]string{
	PhaseDocumentProcessing:  "document_processing",
	PhaseSchemaExtraction:    "schema_extraction",
	PhaseCodeGeneration:      "code_generation",
	PhaseSecurityAudit:       "security_audit",
	PhaseInterfaceExtraction: "interface_extraction",
	PhaseScaffoldGeneration:  "scaffold_generation",
}

// String returns the wire name for the phase ("document_processing" etc),
// or "unknown" for out-of-range values.
func (p PhaseIndex) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// =============================================================================
// Status Enums
// =============================================================================

// RunStatus is the lifecycle status of a translation run.
type RunStatus string

const (
	RunPending         RunStatus = "pending"
	RunRunning         RunStatus = "running"
	RunSucceeded       RunStatus = "succeeded"
	RunPartiallyFailed RunStatus = "partially_failed"
	RunFailed          RunStatus = "failed"
)

// Terminal reports whether the status is one of the three end states.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunSucceeded, RunPartiallyFailed, RunFailed:
		return true
	}
	return false
}

// PhaseStatus is the outcome of a single phase execution.
type PhaseStatus string

const (
	PhaseOK    PhaseStatus = "ok"
	PhaseError PhaseStatus = "error"
)

// =============================================================================
// Artifact Names
// =============================================================================

// Fixed artifact names written by the pipeline. Every artifact lives under a
// run-scoped key in the store; these names are the stable public contract
// for artifact retrieval.
const (
	ArtifactNormalized   = "normalized.txt"
	ArtifactSchema       = "schema.json"
	ArtifactContract     = "contract.sol"
	ArtifactAudit        = "audit.json"
	ArtifactInterface    = "interface.json"
	ArtifactToolServer   = "toolserver.py"
	ArtifactRunRecord    = "run.json"
	ArtifactFinalCode    = "contract_final.sol"
	ArtifactCompileCheck = "compile_check.json"
)

// RefinedCodeArtifact returns the artifact name for refinement iteration i
// ("refined_1.sol"). The paired diff name comes from RefinedDiffArtifact.
func RefinedCodeArtifact(i int) string {
	return "refined_" + strconv.Itoa(i) + ".sol"
}

// RefinedDiffArtifact returns the diff artifact name for iteration i.
func RefinedDiffArtifact(i int) string {
	return "refined_" + strconv.Itoa(i) + ".diff"
}

// =============================================================================
// Shared Validator Instance
// =============================================================================

// runValidate is the validator instance for translator datatypes.
// Initialized in init() with custom validators.
var runValidate *validator.Validate

func init() {
	runValidate = validator.New()

	// Byte-length cap on contract source text. Checks byte length, not rune
	// count, so oversized multi-byte payloads cannot slip past a rune cap.
	_ = runValidate.RegisterValidation("solsource", validateSourceBytes)
}

// validateSourceBytes enforces MaxSourceBytes on a string field.
func validateSourceBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxSourceBytes
}

// =============================================================================
// Translate Request
// =============================================================================

// TranslateRequest is the request body for a translation run.
//
// # Description
//
// TranslateRequest carries the natural-language contract description and the
// optional knobs a caller may turn: a contract-type hint for the extractor,
// per-capability timeouts, and the refinement-loop bound. It is accepted by
// POST /v1/translate, by the WebSocket stream, and by the CLI.
//
// # Fields
//
//   - RequestID: Optional. Unique identifier (UUID v4) for tracing and
//     audit correlation. Generated server-side when absent.
//   - Timestamp: Optional. Unix milliseconds (UTC) at request creation.
//     Generated server-side when absent.
//   - Source: Required. The raw contract description text. Limited to
//     256KB; larger payloads are rejected before phase 1 runs.
//   - TypeHint: Optional. A contract-type hint ("rental", "escrow", ...)
//     passed to the schema extractor. Free-form, max 128 chars.
//   - ExtractTimeoutMs: Optional. Phase-2 capability timeout override in
//     milliseconds. Zero means the service default.
//   - GenerateTimeoutMs: Optional. Phase-3 capability timeout override.
//   - MaxRefinements: Optional. Upper bound on audit-driven refinement
//     iterations. Nil means the service default (2); explicit 0 disables
//     refinement.
//
// # Validation
//
// Uses go-playground/validator:
//   - Source: required, max 256KB (custom "solsource" validator)
//   - TypeHint: max 128 characters
//   - ExtractTimeoutMs/GenerateTimeoutMs: 0..600000
//
// # Examples
//
//	req := TranslateRequest{
//	    Source:   "Alice rents a flat from Bob for 1200 USD per month...",
//	    TypeHint: "rental",
//	}
//	if err := req.Validate(); err != nil { ... }
//
// # Limitations
//
//   - No multi-document input; one description per run.
//   - Refinement beyond 10 iterations is rejected as misconfiguration.
type TranslateRequest struct {
	RequestID         string `json:"request_id,omitempty" validate:"omitempty,uuid4"`
	Timestamp         int64  `json:"timestamp,omitempty" validate:"gte=0"`
	Source            string `json:"source" validate:"required,solsource"`
	TypeHint          string `json:"type_hint,omitempty" validate:"max=128"`
	ExtractTimeoutMs  int    `json:"extract_timeout_ms,omitempty" validate:"gte=0,lte=600000"`
	GenerateTimeoutMs int    `json:"generate_timeout_ms,omitempty" validate:"gte=0,lte=600000"`
	MaxRefinements    *int   `json:"max_refinements,omitempty" validate:"omitempty,gte=0,lte=10"`
}

// Validate validates the TranslateRequest fields.
func (r *TranslateRequest) Validate() error {
	return runValidate.Struct(r)
}

// EnsureDefaults populates RequestID and Timestamp when the client omitted
// them, so every run has identifiers for tracing and storage.
func (r *TranslateRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = uuid.New().String()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
}

// ExtractTimeout returns the phase-2 capability timeout, falling back to
// the supplied service default when the request carries no override.
func (r *TranslateRequest) ExtractTimeout(def time.Duration) time.Duration {
	if r.ExtractTimeoutMs > 0 {
		return time.Duration(r.ExtractTimeoutMs) * time.Millisecond
	}
	return def
}

// GenerateTimeout returns the phase-3 capability timeout with the same
// fallback behavior as ExtractTimeout.
func (r *TranslateRequest) GenerateTimeout(def time.Duration) time.Duration {
	if r.GenerateTimeoutMs > 0 {
		return time.Duration(r.GenerateTimeoutMs) * time.Millisecond
	}
	return def
}

// RefinementBound returns the effective refinement iteration cap.
func (r *TranslateRequest) RefinementBound(def int) int {
	if r.MaxRefinements != nil {
		return *r.MaxRefinements
	}
	return def
}

// =============================================================================
// Run Lifecycle Types
// =============================================================================

// TranslationRun is one end-to-end pipeline execution.
//
// The orchestrator owns the run exclusively for its lifetime. Runs are never
// deleted by the orchestrator; retention is external policy.
type TranslationRun struct {
	// ID is the run identifier (UUID v4).
	ID string `json:"id"`

	// TypeHint is the caller-supplied contract-type hint, may be empty.
	TypeHint string `json:"type_hint,omitempty"`

	// Source is the raw input text as received.
	Source string `json:"source"`

	// CreatedAt is the run creation time (UTC).
	CreatedAt time.Time `json:"created_at"`

	// CurrentPhase is the index of the phase in progress, 0 before start.
	CurrentPhase PhaseIndex `json:"current_phase"`

	// Status is the lifecycle status; terminal once Terminal() is true.
	Status RunStatus `json:"status"`
}

// NewTranslationRun creates a pending run for the given request.
func NewTranslationRun(req *TranslateRequest) *TranslationRun {
	id := req.RequestID
	if id == "" {
		id = uuid.New().String()
	}
	return &TranslationRun{
		ID:        id,
		TypeHint:  req.TypeHint,
		Source:    req.Source,
		CreatedAt: time.Now().UTC(),
		Status:    RunPending,
	}
}

// PhaseResult records the outcome of one executed phase.
//
// Results form an append-only ordered sequence on the run: phase N's result
// is recorded before phase N+1 begins.
type PhaseResult struct {
	// Phase is the 1-based phase index.
	Phase PhaseIndex `json:"phase"`

	// Name is the phase wire name, redundant with Phase for readability.
	Name string `json:"name"`

	// Status is "ok" or "error"; never empty.
	Status PhaseStatus `json:"status"`

	// Summary is a short phase-specific output description
	// ("4312 chars normalized", "3 findings, overall high").
	Summary string `json:"summary"`

	// ErrorDetail carries the failure cause when Status is "error".
	ErrorDetail string `json:"error_detail,omitempty"`

	// DurationMs is the wall-clock phase duration in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// Artifact is the store name of the phase output ("schema.json"),
	// empty when the phase produced nothing durable.
	Artifact string `json:"artifact,omitempty"`
}

// RunResult is the terminal summary of a run.
//
// # Description
//
// RunResult lists every PhaseResult that was attempted, in order, with its
// artifact reference or error detail. A caller can always determine exactly
// which artifacts exist and why any are missing. It is persisted as the
// "run.json" artifact and carried by the terminal run_complete event.
type RunResult struct {
	RunID       string             `json:"run_id"`
	Status      RunStatus          `json:"status"`
	Phases      []PhaseResult      `json:"phases"`
	Refinements []RefinementResult `json:"refinements,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	DurationMs  int64              `json:"duration_ms"`
}

// PhaseByIndex returns the recorded result for a phase, nil if the phase
// never executed (fatal abort earlier in the run).
func (r *RunResult) PhaseByIndex(p PhaseIndex) *PhaseResult {
	for i := range r.Phases {
		if r.Phases[i].Phase == p {
			return &r.Phases[i]
		}
	}
	return nil
}

// ArtifactNames returns the store names of every artifact the run produced,
// in phase order.
func (r *RunResult) ArtifactNames() []string {
	var names []string
	for _, ph := range r.Phases {
		if ph.Artifact != "" {
			names = append(names, ph.Artifact)
		}
	}
	return names
}
