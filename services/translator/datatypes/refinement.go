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
// Refinement
// =============================================================================

// PatchMode discriminates how a refiner response changes the code.
type PatchMode string

const (
	// PatchModeDiff means Content is a unified diff applied hunk by hunk.
	PatchModeDiff PatchMode = "diff"

	// PatchModeFull means Content replaces the source outright. Fallback
	// when the capability did not return a parseable diff.
	PatchModeFull PatchMode = "full"
)

// RefinementPatch is the raw refiner capability output.
type RefinementPatch struct {
	Mode    PatchMode `json:"mode"`
	Content string    `json:"content"`

	// Explanation is the refiner's description of what it changed.
	Explanation string `json:"explanation,omitempty"`
}

// RefinementResult records one audit-driven refinement iteration.
type RefinementResult struct {
	// Iteration is 1-based.
	Iteration int `json:"iteration"`

	// Mode is how the change arrived (diff or full source).
	Mode PatchMode `json:"mode"`

	// LinesAdded and LinesRemoved are diff stats; for full-source
	// responses they are computed against the previous source.
	LinesAdded   int `json:"lines_added"`
	LinesRemoved int `json:"lines_removed"`

	// SeverityAfter is the overall severity of the re-audit.
	SeverityAfter Severity `json:"severity_after"`

	// Accepted is true when the refined code was kept, which requires
	// the re-audit severity not to have increased.
	Accepted bool `json:"accepted"`

	// Detail carries the rejection cause or the refiner explanation.
	Detail string `json:"detail,omitempty"`
}

// =============================================================================
// Advisory Compile Check
// =============================================================================

// CompileCheckResult is the advisory solc outcome. It never affects run
// status; an unavailable compiler is a valid result, not an error.
type CompileCheckResult struct {
	// Available is false when no Solidity compiler was found on the host.
	Available bool `json:"available"`

	// Compiler names what ran ("solc", "solcjs"), empty when unavailable.
	Compiler string `json:"compiler,omitempty"`

	// CompilerVersion is the reported version string.
	CompilerVersion string `json:"compiler_version,omitempty"`

	// Compiles is meaningful only when Available.
	Compiles bool `json:"compiles"`

	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}
