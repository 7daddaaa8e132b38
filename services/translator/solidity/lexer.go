// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package solidity

// =============================================================================
// Lexer
// =============================================================================

// token is one lexical unit with its 1-based source line. Comments and
// string literals never become tokens, so the parser sees only structure.
type token struct {
	text string
	line int
}

// lex splits Solidity source into identifier, number, and punctuation
// tokens. It discards line and block comments and string literals while
// keeping line numbers accurate, which is what lets InterfaceParseError
// point at a real line.
func lex(source string) []token {
	var toks []token
	line := 1
	i := 0
	n := len(source)

	for i < n {
		c := source[i]

		switch {
		case c == '\n':
			line++
			i++

		case c == ' ' || c == '\t' || c == '\r':
			i++

		// Line comment: skip to end of line, newline handled above.
		case c == '/' && i+1 < n && source[i+1] == '/':
			for i < n && source[i] != '\n' {
				i++
			}

		// Block comment: skip to closing marker, counting newlines.
		case c == '/' && i+1 < n && source[i+1] == '*':
			i += 2
			for i < n {
				if source[i] == '\n' {
					line++
				}
				if source[i] == '*' && i+1 < n && source[i+1] == '/' {
					i += 2
					break
				}
				i++
			}

		// String literal: skip to the matching quote, honoring escapes.
		case c == '"' || c == '\'':
			quote := c
			i++
			for i < n && source[i] != quote {
				if source[i] == '\\' && i+1 < n {
					i++
				}
				if source[i] == '\n' {
					line++
				}
				i++
			}
			i++ // closing quote

		case isIdentStart(c):
			start := i
			for i < n && isIdentPart(source[i]) {
				i++
			}
			toks = append(toks, token{text: source[start:i], line: line})

		case c >= '0' && c <= '9':
			start := i
			for i < n && (isIdentPart(source[i]) || source[i] == '.') {
				i++
			}
			toks = append(toks, token{text: source[start:i], line: line})

		// Mapping arrow is one token so type reconstruction stays readable.
		case c == '=' && i+1 < n && source[i+1] == '>':
			toks = append(toks, token{text: "=>", line: line})
			i += 2

		default:
			toks = append(toks, token{text: string(c), line: line})
			i++
		}
	}
	return toks
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// isIdent reports whether the token is an identifier or keyword, as opposed
// to punctuation or a number.
func isIdent(t string) bool {
	return len(t) > 0 && isIdentStart(t[0])
}
