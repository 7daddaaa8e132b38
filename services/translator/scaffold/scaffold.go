// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scaffold turns an InterfaceDescriptor into a runnable Python tool
// server: one tool per externally callable function, read calls and
// transactions split by mutability. The generated source is syntax-checked
// with tree-sitter; a parse failure downgrades to a warning on the result
// because the scaffold is a research artifact, not a deploy target.
package scaffold

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"unicode"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

var serverTmpl = template.Must(template.New("toolserver").Parse(serverTemplate))

// =============================================================================
// Template Views
// =============================================================================

type paramView struct {
	// JSONName is the argument key in the tool-call arguments object.
	JSONName string

	// ABIType is the canonical ABI type used for marshalling.
	ABIType string
}

type toolView struct {
	// Name is the Solidity function name as called through web3.
	Name string

	// ToolName is the registry key; overloads get a numeric suffix.
	ToolName string

	// PyName is the Python handler identifier.
	PyName string

	Description string
	ReadOnly    bool
	Payable     bool
	Params      []paramView
}

type serverView struct {
	ContractName string
	ContractType string
	HeaderLines  []string
	ABI          string
	Tools        []toolView
}

// =============================================================================
// Generation
// =============================================================================

// Generate renders the tool server for the contract's callable surface.
//
// # Description
//
// Each public or external function becomes one tool. Pure and view functions
// call through eth_call; everything else builds, signs, and sends a
// transaction, with payable functions accepting an extra value_wei argument.
// The contract metadata header is built from the schema. The rendered source
// is parsed with tree-sitter's Python grammar; syntax errors set SyntaxValid
// false and a warning, never an error.
//
// # Inputs
//
//   - ctx: Bounds the syntax check.
//   - iface: The callable surface from interface extraction.
//   - schema: Contract metadata for the generated header.
//
// # Outputs
//
//   - datatypes.ToolServerScaffold: Source, tool count, and syntax verdict.
//     An empty interface yields an empty scaffold with zero tools.
//   - error: Template execution or ABI encoding failure only.
func Generate(ctx context.Context, iface *datatypes.InterfaceDescriptor, schema *datatypes.ContractSchema) (datatypes.ToolServerScaffold, error) {
	if iface == nil || iface.Empty() {
		return datatypes.ToolServerScaffold{SyntaxValid: true}, nil
	}

	abi, err := renderABI(iface)
	if err != nil {
		return datatypes.ToolServerScaffold{}, fmt.Errorf("encoding contract ABI: %w", err)
	}

	view := serverView{
		ContractName: iface.ContractName,
		ContractType: contractTypeLabel(schema),
		HeaderLines:  headerLines(schema),
		ABI:          abi,
		Tools:        buildTools(iface),
	}

	var b strings.Builder
	if err := serverTmpl.Execute(&b, view); err != nil {
		return datatypes.ToolServerScaffold{}, fmt.Errorf("rendering tool server: %w", err)
	}

	scaffold := datatypes.ToolServerScaffold{
		Source:      b.String(),
		ToolCount:   len(view.Tools),
		SyntaxValid: true,
	}

	if warn := checkPythonSyntax(ctx, scaffold.Source); warn != "" {
		scaffold.SyntaxValid = false
		scaffold.SyntaxWarning = warn
	}
	return scaffold, nil
}

// buildTools maps external functions to tool views, deduplicating Solidity
// overloads with a positional suffix.
func buildTools(iface *datatypes.InterfaceDescriptor) []toolView {
	seen := make(map[string]int)
	var tools []toolView

	for _, fn := range iface.ExternalFunctions() {
		toolName := fn.Name
		seen[fn.Name]++
		if n := seen[fn.Name]; n > 1 {
			toolName = fmt.Sprintf("%s_%d", fn.Name, n)
		}

		tool := toolView{
			Name:        fn.Name,
			ToolName:    toolName,
			PyName:      "tool_" + pythonIdent(toolName),
			ReadOnly:    fn.Mutability.ReadOnly(),
			Payable:     fn.Mutability == datatypes.MutabilityPayable,
			Description: describeTool(fn),
		}
		for i, p := range fn.Params {
			name := p.Name
			if name == "" {
				name = fmt.Sprintf("arg%d", i)
			}
			tool.Params = append(tool.Params, paramView{
				JSONName: name,
				ABIType:  abiType(p.Type),
			})
		}
		tools = append(tools, tool)
	}
	return tools
}

func describeTool(fn datatypes.FunctionSignature) string {
	if fn.Mutability.ReadOnly() {
		return fmt.Sprintf("Read %s via eth_call (%s)", fn.Name, fn.Mutability)
	}
	if fn.Mutability == datatypes.MutabilityPayable {
		return fmt.Sprintf("Send a %s transaction with attached value", fn.Name)
	}
	return fmt.Sprintf("Send a %s transaction", fn.Name)
}

// =============================================================================
// Schema Header
// =============================================================================

func contractTypeLabel(schema *datatypes.ContractSchema) string {
	if schema == nil || schema.ContractType == "" {
		return "generic"
	}
	return sanitizeLine(schema.ContractType)
}

// headerLines summarizes the schema for the module docstring. Free-text
// schema fields are sanitized: the capability output is untrusted and must
// not be able to break out of the docstring.
func headerLines(schema *datatypes.ContractSchema) []string {
	if schema == nil {
		return nil
	}

	var lines []string
	for _, p := range schema.Parties {
		entry := sanitizeLine(p.Role)
		if p.Identifier != "" {
			entry += ": " + sanitizeLine(p.Identifier)
		}
		lines = append(lines, "Party - "+entry)
	}
	if schema.Financial.Amount != "" {
		amt := sanitizeLine(schema.Financial.Amount)
		if schema.Financial.Currency != "" {
			amt += " " + sanitizeLine(schema.Financial.Currency)
		}
		lines = append(lines, "Amount - "+amt)
	}
	if schema.Financial.PaymentSchedule != "" {
		lines = append(lines, "Schedule - "+sanitizeLine(schema.Financial.PaymentSchedule))
	}
	if schema.Temporal.StartDate != "" {
		lines = append(lines, "Starts - "+sanitizeLine(schema.Temporal.StartDate))
	}
	if schema.Temporal.EndDate != "" {
		lines = append(lines, "Ends - "+sanitizeLine(schema.Temporal.EndDate))
	}
	if n := len(schema.Conditions); n > 0 {
		lines = append(lines, fmt.Sprintf("Conditions - %d tracked", n))
	}
	return lines
}

// sanitizeLine keeps printable non-quote characters and caps the length so a
// hostile schema value cannot terminate the docstring or smuggle code.
func sanitizeLine(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '"' || r == '\\' || !unicode.IsPrint(r) {
			continue
		}
		b.WriteRune(r)
		if b.Len() >= 120 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

// pythonIdent rewrites a Solidity identifier into a safe Python identifier.
// Solidity allows $, and a few names collide with Python keywords.
func pythonIdent(name string) string {
	cleaned := strings.ReplaceAll(name, "$", "_")
	if cleaned == "" {
		return "_"
	}
	if pythonKeywords[cleaned] {
		return cleaned + "_"
	}
	return cleaned
}

var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}
