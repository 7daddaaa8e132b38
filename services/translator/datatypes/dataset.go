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

// DatasetRecord is one line of the requirement/FSM/code corpus.
// Records are immutable once loaded; the corpus is read-only.
type DatasetRecord struct {
	// UserRequirement is the natural-language contract description.
	UserRequirement string `json:"user_requirement"`

	// FSM is the ground-truth structure as embedded JSON text.
	FSM string `json:"FSM"`

	// Version is the Solidity version the reference code targets.
	Version string `json:"version"`

	// Code is the reference Solidity implementation.
	Code string `json:"code"`
}

// DatasetStats summarizes a loaded corpus.
type DatasetStats struct {
	// Records is the number of usable records.
	Records int `json:"records"`

	// Skipped is the number of malformed lines dropped at load.
	Skipped int `json:"skipped"`

	// Versions is a histogram of declared Solidity versions.
	Versions map[string]int `json:"versions"`
}

// RecordMetadata is the pure projection of a record's non-text fields,
// paired with ExtractText for prompt assembly.
type RecordMetadata struct {
	Version string `json:"version"`
	Code    string `json:"code"`
	FSM     string `json:"fsm"`
}
