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
// Contract Schema
// =============================================================================

// Party is one contracting party extracted from the description.
type Party struct {
	// Role is the party's role in the agreement ("landlord", "buyer").
	Role string `json:"role" validate:"max=128"`

	// Identifier is how the text names the party ("Alice", "Acme Corp"),
	// or an address if the text carries one. Empty means not found.
	Identifier string `json:"identifier" validate:"max=256"`
}

// FinancialTerms captures the money flow of the agreement. Every field's
// absence means "not found in the text", never an error.
type FinancialTerms struct {
	// Amount is the primary amount as written ("1200", "0.5"). Kept as a
	// string: capability output is untrusted and number formats vary.
	Amount string `json:"amount,omitempty" validate:"max=64"`

	// Currency is the unit of the amount ("USD", "ETH", "wei").
	Currency string `json:"currency,omitempty" validate:"max=32"`

	// PaymentSchedule describes recurrence ("monthly", "on completion").
	PaymentSchedule string `json:"payment_schedule,omitempty" validate:"max=256"`
}

// TemporalTerms captures dates and durations from the description.
type TemporalTerms struct {
	// StartDate is the agreement start as written ("2026-01-01",
	// "first of March"). Not normalized; the generator quotes it.
	StartDate string `json:"start_date,omitempty" validate:"max=128"`

	// EndDate is the agreement end, empty for open-ended agreements.
	EndDate string `json:"end_date,omitempty" validate:"max=128"`

	// Duration is an explicit duration when the text gives one
	// ("12 months", "90 days").
	Duration string `json:"duration,omitempty" validate:"max=128"`
}

// ContractSchema is the structured interpretation of a contract description.
//
// # Description
//
// Produced by phase 2 (schema extraction), consumed by phases 3 and 6.
// Parties is non-empty when extraction fully succeeded, but a partial or
// even empty schema is legal: downstream phases must tolerate every field
// being absent. Capability output is untrusted, so the orchestrator calls
// Validate before using a schema.
//
// # Fields
//
//   - ContractType: Detected agreement kind ("rental", "escrow", "sale",
//     "loan", "employment", "generic").
//   - Parties: Ordered contracting parties; order follows first mention
//     in the text.
//   - Financial: Money terms; zero value when the text names none.
//   - Temporal: Date and duration terms; zero value when the text names none.
//   - Conditions: Ordered obligations and conditions, one clause per
//     entry, in document order.
type ContractSchema struct {
	ContractType string         `json:"contract_type" validate:"max=64"`
	Parties      []Party        `json:"parties" validate:"max=32,dive"`
	Financial    FinancialTerms `json:"financial_terms"`
	Temporal     TemporalTerms  `json:"temporal_terms"`
	Conditions   []string       `json:"conditions" validate:"max=256,dive,max=2048"`
}

// Validate checks the schema against its field constraints. Called on
// capability output before any downstream phase consumes it.
func (s *ContractSchema) Validate() error {
	return runValidate.Struct(s)
}

// Empty reports whether extraction found nothing usable at all.
func (s *ContractSchema) Empty() bool {
	return s.ContractType == "" && len(s.Parties) == 0 && len(s.Conditions) == 0 &&
		s.Financial == (FinancialTerms{}) && s.Temporal == (TemporalTerms{})
}

// =============================================================================
// Generated Code
// =============================================================================

// GeneratedCode is the phase-3 output: Solidity source plus the version the
// generator declared. Consumed by phases 4, 5, 6 and the refinement loop.
type GeneratedCode struct {
	// Source is the full Solidity source text.
	Source string `json:"source"`

	// SolidityVersion is the declared compiler version ("0.8.20").
	SolidityVersion string `json:"solidity_version"`
}
