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

// EvalResult is one record's outcome in a batch evaluation run.
type EvalResult struct {
	// EvalRunID identifies the evaluation batch this result belongs to.
	EvalRunID string `json:"eval_run_id,omitempty"`

	// Backend names the capability backend the batch ran against.
	Backend string `json:"backend,omitempty"`

	// RecordIndex is the corpus index of the sampled record.
	RecordIndex int `json:"record_index"`

	// RunID is the pipeline run executed for the record.
	RunID string `json:"run_id"`

	// Status is the terminal run status.
	Status RunStatus `json:"status"`

	// OverallSeverity is the audit outcome, empty if phase 4 never ran.
	OverallSeverity Severity `json:"overall_severity,omitempty"`

	// FindingCounts is the per-category finding tally.
	FindingCounts map[FindingCategory]int `json:"finding_counts,omitempty"`

	// InterfaceFunctions is the extracted function count.
	InterfaceFunctions int `json:"interface_functions"`

	// ScaffoldValid is the tree-sitter syntax outcome for the scaffold.
	ScaffoldValid bool `json:"scaffold_valid"`

	// DurationMs is the end-to-end run duration.
	DurationMs int64 `json:"duration_ms"`

	// Error carries a short failure description for failed runs.
	Error string `json:"error,omitempty"`
}
