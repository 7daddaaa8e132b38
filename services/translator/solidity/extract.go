// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package solidity extracts the callable interface of Solidity source by
// structural parsing: tokenize, track brace depth, and read declaration
// members. No compiler and no AST library; the input is generated code that
// may not compile, and the extractor must still recover whatever surface it
// can describe deterministically.
package solidity

import (
	"strings"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// =============================================================================
// Interface Extraction
// =============================================================================

// ExtractInterface parses the first contract, interface, or library
// declaration in the source and returns its callable surface.
//
// # Description
//
// The extractor lexes the source with comments and strings removed, verifies
// brace balance, locates the first top-level declaration, and walks its
// members: function signatures (name, parameters, visibility, mutability,
// returns), event signatures, and the constructor. Member order in the
// result follows declaration order in the source.
//
// # Inputs
//
//   - code: Solidity source text. Need not compile, but must be structurally
//     balanced.
//
// # Outputs
//
//   - datatypes.InterfaceDescriptor: The declaration's surface.
//   - error: *datatypes.InterfaceParseError when the source has unbalanced
//     braces, contains no declaration, or a member list is truncated.
//
// # Limitations
//
//   - Only the first top-level declaration is described. Helper interfaces
//     declared after the primary contract are ignored.
//   - Struct, enum, modifier, receive, and fallback members are skipped;
//     they are not part of the callable surface this descriptor models.
func ExtractInterface(code string) (datatypes.InterfaceDescriptor, error) {
	toks := lex(code)

	if err := checkBraceBalance(toks); err != nil {
		return datatypes.InterfaceDescriptor{}, err
	}

	p := &parser{toks: toks}
	decl := p.findDeclaration()
	if decl < 0 {
		return datatypes.InterfaceDescriptor{}, &datatypes.InterfaceParseError{
			Reason: "no contract, interface, or library declaration",
		}
	}
	return p.parseDeclaration(decl)
}

// checkBraceBalance verifies `{`/`}` pairing across the whole source before
// any member parsing. A stray closer or a missing one both point at the
// offending line.
func checkBraceBalance(toks []token) error {
	depth := 0
	lastOpen := 0
	for _, t := range toks {
		switch t.text {
		case "{":
			depth++
			lastOpen = t.line
		case "}":
			depth--
			if depth < 0 {
				return &datatypes.InterfaceParseError{Line: t.line, Reason: "unexpected closing brace"}
			}
		}
	}
	if depth != 0 {
		return &datatypes.InterfaceParseError{Line: lastOpen, Reason: "unbalanced braces"}
	}
	return nil
}

// =============================================================================
// Parser
// =============================================================================

type parser struct {
	toks []token
	pos  int
}

func (p *parser) next() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	t := p.toks[p.pos]
	p.pos++
	return t, true
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

// lastLine is the line of the final token, used for truncation errors.
func (p *parser) lastLine() int {
	if len(p.toks) == 0 {
		return 0
	}
	return p.toks[len(p.toks)-1].line
}

// findDeclaration returns the index of the first contract, interface, or
// library keyword at brace depth zero, or -1.
func (p *parser) findDeclaration() int {
	depth := 0
	for i, t := range p.toks {
		switch t.text {
		case "{":
			depth++
		case "}":
			depth--
		case "contract", "interface", "library":
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseDeclaration reads one declaration starting at the kind keyword.
func (p *parser) parseDeclaration(start int) (datatypes.InterfaceDescriptor, error) {
	p.pos = start
	kind, _ := p.next()

	desc := datatypes.InterfaceDescriptor{Kind: kind.text}

	name, ok := p.next()
	if !ok || !isIdent(name.text) {
		return desc, &datatypes.InterfaceParseError{Line: kind.line, Reason: "declaration missing a name"}
	}
	desc.ContractName = name.text

	// Skip the inheritance clause ("is Base, Other(arg)") up to the body.
	for {
		t, ok := p.next()
		if !ok {
			return desc, &datatypes.InterfaceParseError{Line: name.line, Reason: "declaration has no body"}
		}
		if t.text == "{" {
			break
		}
	}

	if err := p.parseMembers(&desc); err != nil {
		return desc, err
	}
	return desc, nil
}

// parseMembers walks the declaration body at depth 1 until its closing
// brace, dispatching on the member's leading keyword.
func (p *parser) parseMembers(desc *datatypes.InterfaceDescriptor) error {
	for {
		t, ok := p.next()
		if !ok {
			return &datatypes.InterfaceParseError{Line: p.lastLine(), Reason: "unterminated declaration body"}
		}

		switch t.text {
		case "}":
			return nil

		case "function":
			fn, err := p.parseFunction()
			if err != nil {
				return err
			}
			// Unnamed forms ("function ()" from pre-0.5 fallbacks) are
			// not callable surface.
			if fn.Name != "" {
				desc.Functions = append(desc.Functions, fn)
			}

		case "constructor":
			ctor, err := p.parseConstructor()
			if err != nil {
				return err
			}
			desc.Constructor = ctor

		case "event":
			ev, err := p.parseEvent()
			if err != nil {
				return err
			}
			desc.Events = append(desc.Events, ev)

		case "struct", "enum":
			p.next() // type name
			if err := p.skipBalancedBraces(); err != nil {
				return err
			}

		case "modifier", "receive", "fallback":
			if err := p.skipToBodyOrSemicolon(); err != nil {
				return err
			}

		default:
			// State variable, using-for, pragma leftovers: one statement.
			if err := p.skipStatement(); err != nil {
				return err
			}
		}
	}
}

// parseFunction reads one function signature and skips its body.
func (p *parser) parseFunction() (datatypes.FunctionSignature, error) {
	fn := datatypes.FunctionSignature{
		Visibility: "public",
		Mutability: datatypes.MutabilityNonpayable,
	}

	t, ok := p.next()
	if !ok {
		return fn, &datatypes.InterfaceParseError{Line: p.lastLine(), Reason: "truncated function declaration"}
	}
	if isIdent(t.text) {
		fn.Name = t.text
		t, ok = p.next()
		if !ok {
			return fn, &datatypes.InterfaceParseError{Line: p.lastLine(), Reason: "truncated function declaration"}
		}
	}
	if t.text != "(" {
		return fn, &datatypes.InterfaceParseError{Line: t.line, Reason: "function missing parameter list"}
	}

	params, err := p.parseParamList(false)
	if err != nil {
		return fn, err
	}
	fn.Params = params

	// Modifier region: everything between the parameter list and the body
	// or terminating semicolon.
	for {
		t, ok := p.next()
		if !ok {
			return fn, &datatypes.InterfaceParseError{Line: p.lastLine(), Reason: "truncated function declaration"}
		}
		switch t.text {
		case "{":
			p.pos--
			if err := p.skipBalancedBraces(); err != nil {
				return fn, err
			}
			return fn, nil
		case ";":
			return fn, nil
		case "public", "external", "internal", "private":
			fn.Visibility = t.text
		case "pure":
			fn.Mutability = datatypes.MutabilityPure
		case "view":
			fn.Mutability = datatypes.MutabilityView
		case "payable":
			fn.Mutability = datatypes.MutabilityPayable
		case "returns":
			open, ok := p.next()
			if !ok || open.text != "(" {
				return fn, &datatypes.InterfaceParseError{Line: t.line, Reason: "returns missing parameter list"}
			}
			rets, err := p.parseParamList(false)
			if err != nil {
				return fn, err
			}
			fn.Returns = rets
		default:
			// virtual, override(...), or a custom modifier with optional
			// arguments. Consume an argument list when present.
			if nxt, ok := p.peek(); ok && nxt.text == "(" {
				p.next()
				if err := p.skipBalancedParens(); err != nil {
					return fn, err
				}
			}
		}
	}
}

// parseConstructor reads the constructor signature and skips its body.
func (p *parser) parseConstructor() (*datatypes.ConstructorSignature, error) {
	open, ok := p.next()
	if !ok || open.text != "(" {
		return nil, &datatypes.InterfaceParseError{Line: p.lastLine(), Reason: "constructor missing parameter list"}
	}
	params, err := p.parseParamList(false)
	if err != nil {
		return nil, err
	}

	ctor := &datatypes.ConstructorSignature{Params: params}
	for {
		t, ok := p.next()
		if !ok {
			return ctor, &datatypes.InterfaceParseError{Line: p.lastLine(), Reason: "truncated constructor"}
		}
		switch t.text {
		case "{":
			p.pos--
			if err := p.skipBalancedBraces(); err != nil {
				return ctor, err
			}
			return ctor, nil
		case ";":
			return ctor, nil
		case "payable":
			ctor.Payable = true
		default:
			if nxt, ok := p.peek(); ok && nxt.text == "(" {
				p.next()
				if err := p.skipBalancedParens(); err != nil {
					return ctor, err
				}
			}
		}
	}
}

// parseEvent reads one event signature up to its semicolon.
func (p *parser) parseEvent() (datatypes.EventSignature, error) {
	var ev datatypes.EventSignature

	name, ok := p.next()
	if !ok || !isIdent(name.text) {
		return ev, &datatypes.InterfaceParseError{Line: p.lastLine(), Reason: "event missing a name"}
	}
	ev.Name = name.text

	open, ok := p.next()
	if !ok || open.text != "(" {
		return ev, &datatypes.InterfaceParseError{Line: name.line, Reason: "event missing parameter list"}
	}
	params, err := p.parseParamList(true)
	if err != nil {
		return ev, err
	}
	ev.Params = params

	// Consume "anonymous" and the terminating semicolon.
	for {
		t, ok := p.next()
		if !ok {
			return ev, &datatypes.InterfaceParseError{Line: name.line, Reason: "unterminated event declaration"}
		}
		if t.text == ";" {
			return ev, nil
		}
	}
}

// =============================================================================
// Parameter Lists
// =============================================================================

// dataLocations are parameter annotations that are not part of the type as
// this descriptor reports it.
var dataLocations = map[string]bool{
	"memory":   true,
	"storage":  true,
	"calldata": true,
}

// parseParamList reads tokens after an opening paren up to its matching
// closer and interprets each comma-separated run as one parameter. For
// events, the indexed keyword is dropped like a data location.
func (p *parser) parseParamList(isEvent bool) ([]datatypes.Param, error) {
	var params []datatypes.Param
	var run []token
	depth := 0

	flush := func() {
		if param, ok := interpretParam(run, isEvent); ok {
			params = append(params, param)
		}
		run = run[:0]
	}

	for {
		t, ok := p.next()
		if !ok {
			return nil, &datatypes.InterfaceParseError{Line: p.lastLine(), Reason: "unterminated parameter list"}
		}
		switch t.text {
		case "(":
			depth++
			run = append(run, t)
		case ")":
			if depth == 0 {
				flush()
				return params, nil
			}
			depth--
			run = append(run, t)
		case ",":
			if depth == 0 {
				flush()
			} else {
				run = append(run, t)
			}
		default:
			run = append(run, t)
		}
	}
}

// interpretParam splits one token run into type and optional name.
//
// The last identifier is the parameter name when it is not itself part of
// the type expression: "uint256 amount" names amount, "address payable"
// stays an unnamed typed parameter, "uint256" alone is an unnamed return.
func interpretParam(run []token, isEvent bool) (datatypes.Param, bool) {
	kept := make([]string, 0, len(run))
	for _, t := range run {
		if dataLocations[t.text] {
			continue
		}
		if isEvent && t.text == "indexed" {
			continue
		}
		kept = append(kept, t.text)
	}
	if len(kept) == 0 {
		return datatypes.Param{}, false
	}

	var name string
	if len(kept) >= 2 {
		last := kept[len(kept)-1]
		prev := kept[len(kept)-2]
		if isIdent(last) && last != "payable" && prev != "." && prev != "mapping" {
			name = last
			kept = kept[:len(kept)-1]
		}
	}

	return datatypes.Param{Name: name, Type: joinType(kept)}, true
}

// joinType reassembles a type expression from its tokens: brackets and dots
// attach without spaces, everything else is space-separated.
func joinType(toks []string) string {
	var b strings.Builder
	prev := ""
	for i, t := range toks {
		if i > 0 && needsSpace(prev, t) {
			b.WriteByte(' ')
		}
		b.WriteString(t)
		prev = t
	}
	return b.String()
}

func needsSpace(prev, cur string) bool {
	switch cur {
	case "[", "]", ".", ")", ",":
		return false
	}
	switch prev {
	case "[", ".", "(":
		return false
	}
	// mapping( and function( attach their paren.
	if cur == "(" && isIdent(prev) {
		return false
	}
	return true
}

// =============================================================================
// Skipping
// =============================================================================

// skipBalancedBraces consumes a `{ ... }` block starting at the next token,
// which must be the opening brace.
func (p *parser) skipBalancedBraces() error {
	open, ok := p.next()
	if !ok || open.text != "{" {
		return &datatypes.InterfaceParseError{Line: p.lastLine(), Reason: "expected block"}
	}
	depth := 1
	for depth > 0 {
		t, ok := p.next()
		if !ok {
			return &datatypes.InterfaceParseError{Line: open.line, Reason: "unterminated block"}
		}
		switch t.text {
		case "{":
			depth++
		case "}":
			depth--
		}
	}
	return nil
}

// skipBalancedParens consumes the remainder of a `( ... )` group whose
// opener has already been read.
func (p *parser) skipBalancedParens() error {
	depth := 1
	for depth > 0 {
		t, ok := p.next()
		if !ok {
			return &datatypes.InterfaceParseError{Line: p.lastLine(), Reason: "unterminated parenthesis group"}
		}
		switch t.text {
		case "(":
			depth++
		case ")":
			depth--
		}
	}
	return nil
}

// skipToBodyOrSemicolon consumes a member header and then either its block
// body or its terminating semicolon. Used for modifiers, receive, fallback.
func (p *parser) skipToBodyOrSemicolon() error {
	for {
		t, ok := p.next()
		if !ok {
			return &datatypes.InterfaceParseError{Line: p.lastLine(), Reason: "truncated member"}
		}
		switch t.text {
		case ";":
			return nil
		case "{":
			p.pos--
			return p.skipBalancedBraces()
		}
	}
}

// skipStatement consumes through the next semicolon at the current nesting,
// treating any embedded block as a balanced unit.
func (p *parser) skipStatement() error {
	for {
		t, ok := p.next()
		if !ok {
			return &datatypes.InterfaceParseError{Line: p.lastLine(), Reason: "unterminated statement"}
		}
		switch t.text {
		case ";":
			return nil
		case "{":
			p.pos--
			if err := p.skipBalancedBraces(); err != nil {
				return err
			}
		}
	}
}
