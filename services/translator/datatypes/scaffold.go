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

// ToolServerScaffold is the phase-6 output: a self-contained Python tool
// server exposing one tool per contract function.
type ToolServerScaffold struct {
	// Source is the generated Python source text.
	Source string `json:"source"`

	// ToolCount is the number of tool bindings emitted.
	ToolCount int `json:"tool_count"`

	// SyntaxValid reports the tree-sitter parse outcome for Source.
	// False downgrades to a phase-summary warning, never an error.
	SyntaxValid bool `json:"syntax_valid"`

	// SyntaxWarning describes the first syntax problem when SyntaxValid
	// is false.
	SyntaxWarning string `json:"syntax_warning,omitempty"`
}

// Empty reports whether the scaffold contains no tool bindings.
func (s *ToolServerScaffold) Empty() bool {
	return s.ToolCount == 0
}
