// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package audit_engine

import (
	"regexp"
	"strings"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// =============================================================================
// Structural Detectors
// =============================================================================

// structuralDetector is a windowed scan for compound conditions a single
// line regex cannot express. Structural detectors register after the rule
// file, in the order returned by defaultStructuralDetectors.
type structuralDetector struct {
	id        string
	category  datatypes.FindingCategory
	severity  datatypes.Severity
	rationale string
	detect    func(src *scannedSource) []structMatch
}

// structMatch is one structural hit: a 1-based line and its trimmed content.
type structMatch struct {
	line    int
	snippet string
}

// defaultStructuralDetectors returns the built-in windowed detectors.
func defaultStructuralDetectors() []structuralDetector {
	return []structuralDetector{
		{
			id:       "SOL-STRUCT-REENT",
			category: datatypes.CategoryReentrancy,
			severity: datatypes.SeverityHigh,
			rationale: "An external call runs attacker code before this function updates " +
				"its balances. The callee can re-enter and drain against stale state. " +
				"Update state first or guard the function with nonReentrant.",
			detect: detectReentrancy,
		},
		{
			id:       "SOL-STRUCT-ARITH",
			category: datatypes.CategoryArithmetic,
			severity: datatypes.SeverityMedium,
			rationale: "Balance arithmetic inside an unchecked block wraps silently on " +
				"overflow. Keep value-bearing math under checked semantics.",
			detect: detectUncheckedArithmetic,
		},
		{
			id:       "SOL-STRUCT-ACCESS",
			category: datatypes.CategoryAccessControl,
			severity: datatypes.SeverityMedium,
			rationale: "A state-changing public or external function carries neither a " +
				"modifier nor an msg.sender check. Anyone can call it.",
			detect: detectMissingAccessControl,
		},
	}
}

// =============================================================================
// Source Scanning Model
// =============================================================================

// functionSpan is one function body located in the source. Line indices are
// 0-based into scannedSource.lines.
type functionSpan struct {
	// name is the declared function name; "constructor", "receive", and
	// "fallback" for the special forms.
	name string

	// decl is the declaration text joined from declLine up to (and
	// excluding) the opening brace.
	decl string

	declLine  int
	bodyStart int
	bodyEnd   int
}

// scannedSource is the shared parse of one source text, built once per scan
// and handed to every structural detector.
type scannedSource struct {
	lines []string
	funcs []functionSpan
}

var funcDeclRe = regexp.MustCompile(`^\s*(function\s+([A-Za-z_]\w*)|constructor\s*\(|receive\s*\(|fallback\s*\()`)

// newScannedSource splits the source and locates function bodies by brace
// counting. Declarations ending in ';' (interfaces, abstract members) carry
// no body and are skipped. Formatting is assumed conventional: generated
// and refined code places one statement per line.
func newScannedSource(lines []string) *scannedSource {
	src := &scannedSource{lines: lines}

	for i := 0; i < len(lines); i++ {
		m := funcDeclRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}

		name := m[2]
		if name == "" {
			switch {
			case strings.Contains(m[1], "constructor"):
				name = "constructor"
			case strings.Contains(m[1], "receive"):
				name = "receive"
			default:
				name = "fallback"
			}
		}

		span, end, ok := locateBody(lines, i, name)
		if !ok {
			continue
		}
		src.funcs = append(src.funcs, span)
		i = end
	}

	return src
}

// locateBody walks from the declaration line to the opening brace, then
// counts braces to the matching close. Returns the line index scanning
// should resume from.
func locateBody(lines []string, declLine int, name string) (functionSpan, int, bool) {
	var declParts []string
	bodyStart := -1
	depth := 0

	for i := declLine; i < len(lines); i++ {
		line := lines[i]

		if bodyStart < 0 {
			braceIdx := strings.Index(line, "{")
			semiIdx := strings.Index(line, ";")
			if semiIdx >= 0 && (braceIdx < 0 || semiIdx < braceIdx) {
				// Bodyless declaration; nothing to scan.
				return functionSpan{}, i, false
			}
			if braceIdx < 0 {
				declParts = append(declParts, strings.TrimSpace(line))
				continue
			}
			declParts = append(declParts, strings.TrimSpace(line[:braceIdx]))
			bodyStart = i
			depth = strings.Count(line, "{") - strings.Count(line, "}")
			if depth == 0 {
				// Opened and closed on the same line.
				return functionSpan{
					name:      name,
					decl:      strings.Join(declParts, " "),
					declLine:  declLine,
					bodyStart: bodyStart,
					bodyEnd:   i,
				}, i, true
			}
			continue
		}

		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth <= 0 {
			return functionSpan{
				name:      name,
				decl:      strings.Join(declParts, " "),
				declLine:  declLine,
				bodyStart: bodyStart,
				bodyEnd:   i,
			}, i, true
		}
	}

	// Unterminated body; treat the remainder of the file as the span so
	// detectors still see truncated generations.
	if bodyStart >= 0 {
		return functionSpan{
			name:      name,
			decl:      strings.Join(declParts, " "),
			declLine:  declLine,
			bodyStart: bodyStart,
			bodyEnd:   len(lines) - 1,
		}, len(lines) - 1, true
	}
	return functionSpan{}, len(lines) - 1, false
}

// =============================================================================
// Detector: Reentrancy
// =============================================================================

var (
	externalCallRe = regexp.MustCompile(`\.call\s*\{\s*value\s*:|\.call\.value\s*\(|\.send\s*\(|\.transfer\s*\(`)

	// balanceMutationRe matches an assignment or compound assignment to a
	// balance-like variable. "=[^=]" keeps equality comparisons out.
	balanceMutationRe = regexp.MustCompile(`(?i)\w*(balance|deposit|fund|stake|escrow|owed|debt)\w*(\[[^\]]*\])?\s*(\+=|-=|=[^=])`)
)

// detectReentrancy flags an external call followed, within the same function
// body, by a mutation of a balance-like variable, unless the declaration
// carries a nonReentrant guard. One finding per function, at the mutation.
func detectReentrancy(src *scannedSource) []structMatch {
	var matches []structMatch

	for _, fn := range src.funcs {
		if strings.Contains(fn.decl, "nonReentrant") {
			continue
		}

		callLine := -1
		for i := fn.bodyStart; i <= fn.bodyEnd; i++ {
			if externalCallRe.MatchString(src.lines[i]) {
				callLine = i
				break
			}
		}
		if callLine < 0 {
			continue
		}

		for i := callLine + 1; i <= fn.bodyEnd; i++ {
			if balanceMutationRe.MatchString(src.lines[i]) {
				matches = append(matches, structMatch{
					line:    i + 1,
					snippet: strings.TrimSpace(src.lines[i]),
				})
				break
			}
		}
	}

	return matches
}

// =============================================================================
// Detector: Unchecked Arithmetic
// =============================================================================

var (
	uncheckedOpenRe = regexp.MustCompile(`\bunchecked\b`)
	balanceNameRe   = regexp.MustCompile(`(?i)\w*(balance|deposit|fund|stake|escrow|owed|debt)\w*`)
	arithOpRe       = regexp.MustCompile(`\+\+|--|\+=|-=|[^+]\+[^+=]|[^-]-[^-=>]|\*`)
)

// detectUncheckedArithmetic flags balance-like arithmetic inside
// `unchecked { ... }` blocks.
func detectUncheckedArithmetic(src *scannedSource) []structMatch {
	var matches []structMatch

	for i := 0; i < len(src.lines); i++ {
		if !uncheckedOpenRe.MatchString(src.lines[i]) {
			continue
		}

		// Find the block's opening brace, same line or below.
		start := -1
		for j := i; j < len(src.lines) && j <= i+2; j++ {
			if strings.Contains(src.lines[j], "{") {
				start = j
				break
			}
		}
		if start < 0 {
			continue
		}

		depth := 0
		for j := start; j < len(src.lines); j++ {
			depth += strings.Count(src.lines[j], "{") - strings.Count(src.lines[j], "}")
			if balanceNameRe.MatchString(src.lines[j]) && arithOpRe.MatchString(src.lines[j]) {
				matches = append(matches, structMatch{
					line:    j + 1,
					snippet: strings.TrimSpace(src.lines[j]),
				})
			}
			if depth <= 0 {
				i = j
				break
			}
		}
	}

	return matches
}

// =============================================================================
// Detector: Missing Access Control
// =============================================================================

var (
	msgSenderCheckRe = regexp.MustCompile(`require\s*\(\s*msg\.sender|if\s*\(\s*msg\.sender|msg\.sender\s*[=!]=`)

	// declKeywords are the declaration tokens that are not custom
	// modifiers.
	declKeywords = map[string]bool{
		"public": true, "external": true, "internal": true, "private": true,
		"view": true, "pure": true, "payable": true,
		"virtual": true, "override": true, "returns": true,
	}
)

// detectMissingAccessControl flags state-changing public or external
// functions whose declaration has no custom modifier and whose body never
// inspects msg.sender. Constructors and the receive/fallback forms are
// exempt: they are open entry points by design.
func detectMissingAccessControl(src *scannedSource) []structMatch {
	var matches []structMatch

	for _, fn := range src.funcs {
		if fn.name == "constructor" || fn.name == "receive" || fn.name == "fallback" {
			continue
		}

		tail := declTail(fn.decl)
		if strings.Contains(tail, "internal") || strings.Contains(tail, "private") {
			continue
		}
		if strings.Contains(tail, "view") || strings.Contains(tail, "pure") {
			continue
		}
		if hasCustomModifier(tail) {
			continue
		}

		guarded := false
		for i := fn.bodyStart; i <= fn.bodyEnd; i++ {
			if msgSenderCheckRe.MatchString(src.lines[i]) {
				guarded = true
				break
			}
		}
		if guarded {
			continue
		}

		matches = append(matches, structMatch{
			line:    fn.declLine + 1,
			snippet: strings.TrimSpace(src.lines[fn.declLine]),
		})
	}

	return matches
}

// declTail returns the declaration text after the parameter list, where
// visibility, mutability, and modifiers live.
func declTail(decl string) string {
	open := strings.Index(decl, "(")
	if open < 0 {
		return decl
	}
	depth := 0
	for i := open; i < len(decl); i++ {
		switch decl[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return decl[i+1:]
			}
		}
	}
	return ""
}

// hasCustomModifier reports whether the declaration tail names anything
// beyond the standard keywords: such a token is a user-defined modifier
// (onlyOwner, nonReentrant, ...).
func hasCustomModifier(tail string) bool {
	// Drop return types; identifiers inside returns(...) are not modifiers.
	if idx := strings.Index(tail, "returns"); idx >= 0 {
		tail = tail[:idx]
	}

	for _, tok := range strings.FieldsFunc(tail, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '(' || r == ')' || r == ','
	}) {
		if tok == "" || declKeywords[tok] {
			continue
		}
		return true
	}
	return false
}
