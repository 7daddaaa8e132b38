// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scaffold

import (
	"encoding/json"
	"strings"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// =============================================================================
// ABI Rendering
// =============================================================================

type abiParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type abiEntry struct {
	Type            string     `json:"type"`
	Name            string     `json:"name,omitempty"`
	Inputs          []abiParam `json:"inputs"`
	Outputs         []abiParam `json:"outputs,omitempty"`
	StateMutability string     `json:"stateMutability,omitempty"`
}

// renderABI builds the JSON ABI for the externally callable surface:
// constructor, public and external functions, and events.
//
// Indexed attributes on event parameters are not preserved; the descriptor
// does not carry them.
func renderABI(iface *datatypes.InterfaceDescriptor) (string, error) {
	entries := make([]abiEntry, 0, len(iface.Functions)+len(iface.Events)+1)

	if iface.Constructor != nil {
		mut := "nonpayable"
		if iface.Constructor.Payable {
			mut = "payable"
		}
		entries = append(entries, abiEntry{
			Type:            "constructor",
			Inputs:          abiParams(iface.Constructor.Params),
			StateMutability: mut,
		})
	}

	for _, fn := range iface.ExternalFunctions() {
		entries = append(entries, abiEntry{
			Type:            "function",
			Name:            fn.Name,
			Inputs:          abiParams(fn.Params),
			Outputs:         abiParams(fn.Returns),
			StateMutability: string(fn.Mutability),
		})
	}

	for _, ev := range iface.Events {
		entries = append(entries, abiEntry{
			Type:   "event",
			Name:   ev.Name,
			Inputs: abiParams(ev.Params),
		})
	}

	encoded, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func abiParams(params []datatypes.Param) []abiParam {
	out := make([]abiParam, len(params))
	for i, p := range params {
		out[i] = abiParam{Name: p.Name, Type: abiType(p.Type)}
	}
	return out
}

// abiType folds a declared Solidity type into its canonical ABI form:
// "address payable" is "address" on the wire, and the unsized "uint"/"int"
// aliases widen to 256 bits. Types the ABI cannot encode (structs, mappings)
// pass through unchanged; the tool server treats them as opaque.
func abiType(solType string) string {
	t := strings.TrimSpace(solType)

	// Arrays canonicalize their element type and keep the suffix.
	if idx := strings.Index(t, "["); idx > 0 {
		return abiType(t[:idx]) + t[idx:]
	}

	t = strings.TrimSuffix(t, " payable")
	switch t {
	case "uint":
		return "uint256"
	case "int":
		return "int256"
	case "byte":
		return "bytes1"
	}
	return t
}
