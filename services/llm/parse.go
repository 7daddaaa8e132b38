package llm

import (
	"regexp"
	"strings"
)

var (
	fencedBlockRe = regexp.MustCompile("(?s)```([a-zA-Z]*)[ \t]*\n(.*?)```")
	pragmaRe      = regexp.MustCompile(`pragma\s+solidity\s+([^;]+);`)
)

// extractSolidityBlock pulls Solidity source out of a model reply. It prefers
// a fenced solidity block, falls back to any fenced block that declares a
// contract, and finally accepts a bare reply that looks like Solidity.
func extractSolidityBlock(reply string) string {
	var fallback string
	for _, m := range fencedBlockRe.FindAllStringSubmatch(reply, -1) {
		lang := strings.ToLower(m[1])
		body := strings.TrimSpace(m[2])
		if lang == "solidity" || lang == "sol" {
			return body
		}
		if fallback == "" && looksLikeSolidity(body) {
			fallback = body
		}
	}
	if fallback != "" {
		return fallback
	}
	if trimmed := strings.TrimSpace(reply); looksLikeSolidity(trimmed) {
		return trimmed
	}
	return ""
}

func looksLikeSolidity(s string) bool {
	return strings.Contains(s, "pragma solidity") ||
		strings.Contains(s, "contract ") ||
		strings.Contains(s, "interface ") ||
		strings.Contains(s, "library ")
}

// detectPragmaVersion returns the version expression from the first
// pragma solidity directive, or "" when the source declares none.
func detectPragmaVersion(source string) string {
	m := pragmaRe.FindStringSubmatch(source)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// extractUnifiedDiff pulls a unified diff out of a model reply. It prefers a
// fenced diff block and otherwise accepts a bare reply with diff structure.
func extractUnifiedDiff(reply string) (string, bool) {
	for _, m := range fencedBlockRe.FindAllStringSubmatch(reply, -1) {
		lang := strings.ToLower(m[1])
		body := strings.TrimSpace(m[2])
		if lang == "diff" || lang == "patch" {
			return body, true
		}
		if lang == "" && looksLikeDiff(body) {
			return body, true
		}
	}
	if trimmed := strings.TrimSpace(reply); looksLikeDiff(trimmed) {
		return trimmed, true
	}
	return "", false
}

func looksLikeDiff(s string) bool {
	return strings.Contains(s, "\n@@ ") || strings.HasPrefix(s, "@@ ") ||
		(strings.Contains(s, "--- ") && strings.Contains(s, "+++ "))
}
