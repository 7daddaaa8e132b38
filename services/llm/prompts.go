package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

const extractionSystemPrompt = `You are a contract analyst. You read natural-language agreements and
emit a single JSON object describing the deal. Respond with JSON only, no prose.
The object has exactly these keys:
  "contract_type": short snake_case label (e.g. "rental", "escrow", "sale", "loan")
  "parties": array of {"role": string, "identifier": string}
  "financial": {"amount": string, "currency": string, "payment_schedule": string}
  "temporal": {"start_date": string, "end_date": string, "duration": string}
  "conditions": array of strings, one obligation or trigger per entry
Use empty strings or empty arrays for anything the text does not state. Never invent terms.`

const generationSystemPrompt = `You are a senior Solidity engineer. Given a structured description of an
agreement, write one complete, compilable Solidity contract that implements it.
Target Solidity ^0.8.20. Use checks-effects-interactions, explicit visibility,
and require() guards on every state transition. Reply with a single
` + "```solidity code block" + ` and nothing else.`

const refinementSystemPrompt = `You are a Solidity security engineer. You receive a contract and the
findings of a static security audit. Fix every finding without changing the
contract's observable behavior. Prefer answering with a unified diff in a
` + "```diff block" + `; if the changes are too broad for a diff, reply with the full
corrected source in a ` + "```solidity block."

// buildExtractionPrompt frames the normalized document for JSON-mode extraction.
func buildExtractionPrompt(text string, typeHint string) string {
	var b strings.Builder
	if typeHint != "" {
		fmt.Fprintf(&b, "The caller believes this is a %q agreement; confirm or correct that.\n\n", typeHint)
	}
	b.WriteString("Agreement text:\n\n")
	b.WriteString(text)
	return b.String()
}

// buildGenerationPrompt serializes the schema and any few-shot examples.
func buildGenerationPrompt(schema datatypes.ContractSchema, examples []Example) string {
	var b strings.Builder
	for i, ex := range examples {
		fmt.Fprintf(&b, "Example %d requirement:\n%s\n\nExample %d Solidity:\n%s\n\n", i+1, ex.Requirement, i+1, ex.Code)
	}

	// Schema serialization is for the model's eyes only; indent for readability.
	encoded, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		encoded = []byte(fmt.Sprintf("%+v", schema))
	}
	b.WriteString("Structured agreement:\n\n")
	b.Write(encoded)
	b.WriteString("\n\nWrite the contract now.")
	return b.String()
}

// buildRefinementPrompt lists audit findings beneath the offending source.
func buildRefinementPrompt(code datatypes.GeneratedCode, report *datatypes.SecurityAuditReport) string {
	var b strings.Builder
	b.WriteString("Contract source:\n\n```solidity\n")
	b.WriteString(code.Source)
	b.WriteString("\n```\n\nAudit findings:\n")
	for _, f := range report.Findings {
		fmt.Fprintf(&b, "- [%s/%s] line %d (%s): %s\n", f.Severity, f.Category, f.LineNumber, f.RuleID, f.Rationale)
	}
	b.WriteString("\nFix every finding.")
	return b.String()
}
