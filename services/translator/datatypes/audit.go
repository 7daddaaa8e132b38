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
// Severity
// =============================================================================

// Severity ranks a security finding.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// severityRank orders severities for comparison; higher is worse.
var severityRank = map[Severity]int{
	SeverityLow:    1,
	SeverityMedium: 2,
	SeverityHigh:   3,
}

// Rank returns the numeric order of the severity (low=1..high=3),
// 0 for unknown values.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Valid reports whether s is one of the three known severities.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// MaxSeverity returns the worse of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// =============================================================================
// Finding Categories
// =============================================================================

// FindingCategory is the closed vulnerability taxonomy used by the scanner.
type FindingCategory string

const (
	CategoryReentrancy          FindingCategory = "reentrancy"
	CategoryAccessControl       FindingCategory = "access_control"
	CategoryArithmetic          FindingCategory = "arithmetic"
	CategoryUncheckedCall       FindingCategory = "unchecked_call"
	CategoryTxOrigin            FindingCategory = "tx_origin"
	CategoryTimestampDependence FindingCategory = "timestamp_dependence"
	CategoryDelegatecall        FindingCategory = "delegatecall"
	CategorySelfdestruct        FindingCategory = "selfdestruct"
	CategoryVisibility          FindingCategory = "visibility"
)

// knownCategories is the closed set; rules naming anything else are
// rejected at engine construction.
var knownCategories = map[FindingCategory]bool{
	CategoryReentrancy:          true,
	CategoryAccessControl:       true,
	CategoryArithmetic:          true,
	CategoryUncheckedCall:       true,
	CategoryTxOrigin:            true,
	CategoryTimestampDependence: true,
	CategoryDelegatecall:        true,
	CategorySelfdestruct:        true,
	CategoryVisibility:          true,
}

// Valid reports whether c is in the closed taxonomy.
func (c FindingCategory) Valid() bool {
	return knownCategories[c]
}

// =============================================================================
// Findings and Reports
// =============================================================================

// SecurityFinding is one detector match in scanned source.
type SecurityFinding struct {
	// RuleID identifies the detector that fired ("SOL-REENT-001").
	RuleID string `json:"rule_id"`

	// Category is the vulnerability class from the closed taxonomy.
	Category FindingCategory `json:"category"`

	// Severity ranks the finding.
	Severity Severity `json:"severity"`

	// LineNumber is the 1-based source line of the match.
	LineNumber int `json:"line_number"`

	// Snippet is the matched content, trimmed of surrounding whitespace.
	Snippet string `json:"snippet"`

	// Rationale explains why the pattern matters, for human review.
	Rationale string `json:"rationale"`
}

// SecurityAuditReport is the phase-4 output.
//
// # Description
//
// Findings are ordered by descending severity; within equal severity the
// detector registration order is the stable tie-break. OverallSeverity is
// the maximum finding severity, "low" when the report is empty. An empty
// finding set is a valid report, never an error: NoFindings marks it
// explicitly so an empty list cannot be confused with a scan that never ran.
type SecurityAuditReport struct {
	Findings        []SecurityFinding `json:"findings"`
	OverallSeverity Severity          `json:"overall_severity"`
	NoFindings      bool              `json:"no_findings"`

	// Approved is true when no finding is above "low".
	Approved bool `json:"approved"`

	// Recommendations are human-readable remediation hints, one per
	// distinct finding category, in finding order.
	Recommendations []string `json:"recommendations,omitempty"`
}

// CountByCategory returns finding counts keyed by category.
func (r *SecurityAuditReport) CountByCategory() map[FindingCategory]int {
	counts := make(map[FindingCategory]int, len(r.Findings))
	for _, f := range r.Findings {
		counts[f.Category]++
	}
	return counts
}

// CountBySeverity returns finding counts keyed by severity.
func (r *SecurityAuditReport) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int, 3)
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	return counts
}
