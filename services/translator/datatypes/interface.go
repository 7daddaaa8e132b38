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
// Mutability
// =============================================================================

// Mutability is a Solidity function's state mutability class.
type Mutability string

const (
	MutabilityPure       Mutability = "pure"
	MutabilityView       Mutability = "view"
	MutabilityNonpayable Mutability = "nonpayable"
	MutabilityPayable    Mutability = "payable"
)

// ReadOnly reports whether calling the function cannot change chain state.
// Read-only functions map to eth_call in generated tooling; the rest map
// to transactions.
func (m Mutability) ReadOnly() bool {
	return m == MutabilityPure || m == MutabilityView
}

// =============================================================================
// Interface Descriptor
// =============================================================================

// Param is one typed parameter in a function or event signature.
type Param struct {
	// Name is the declared parameter name, may be empty for unnamed
	// return values.
	Name string `json:"name,omitempty"`

	// Type is the Solidity type as written ("uint256", "address payable",
	// "string memory" with the data location stripped).
	Type string `json:"type"`
}

// FunctionSignature describes one function declaration.
type FunctionSignature struct {
	Name       string     `json:"name"`
	Params     []Param    `json:"params"`
	Mutability Mutability `json:"mutability"`
	Returns    []Param    `json:"returns,omitempty"`

	// Visibility is the declared visibility ("public", "external",
	// "internal", "private"); defaults to "public" when unwritten.
	Visibility string `json:"visibility"`
}

// EventSignature describes one event declaration.
type EventSignature struct {
	Name   string  `json:"name"`
	Params []Param `json:"params"`
}

// ConstructorSignature describes the contract constructor, if declared.
type ConstructorSignature struct {
	Params  []Param `json:"params"`
	Payable bool    `json:"payable"`
}

// InterfaceDescriptor is the phase-5 output: the callable surface of the
// generated contract, in declaration order. Produced by structural parsing
// of the source (tokenizer plus brace tracking), never by pattern guessing.
type InterfaceDescriptor struct {
	// ContractName is the name of the first contract declaration.
	ContractName string `json:"contract_name"`

	// Kind is the declaration keyword: "contract", "interface", or
	// "library".
	Kind string `json:"kind"`

	Functions   []FunctionSignature   `json:"functions"`
	Events      []EventSignature      `json:"events,omitempty"`
	Constructor *ConstructorSignature `json:"constructor,omitempty"`
}

// Empty reports whether the descriptor exposes nothing callable.
func (d *InterfaceDescriptor) Empty() bool {
	return len(d.Functions) == 0 && len(d.Events) == 0 && d.Constructor == nil
}

// ExternalFunctions returns the functions callable from outside the
// contract (public or external visibility), in declaration order.
func (d *InterfaceDescriptor) ExternalFunctions() []FunctionSignature {
	var out []FunctionSignature
	for _, fn := range d.Functions {
		if fn.Visibility == "public" || fn.Visibility == "external" {
			out = append(out, fn)
		}
	}
	return out
}
