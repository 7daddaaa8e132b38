// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// Phase-1 text constants. Sections exist so long documents fit capability
// prompts; the window keeps the joined prompt bounded.
const (
	sectionChunkSize    = 1000
	sectionChunkOverlap = sectionChunkSize / 10
	promptWindowChars   = 24000
)

// sectionSeparators splits on paragraph then clause boundaries, matching
// how contract descriptions are actually written.
var sectionSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// NormalizeText canonicalizes a raw contract description.
//
// # Description
//
// Applied exactly once per run at phase 1:
//   - strips a UTF-8 BOM,
//   - converts CRLF line endings to LF,
//   - trims trailing whitespace from every line,
//   - collapses runs of three or more blank lines to a single blank line.
//
// Normalization is idempotent: NormalizeText(NormalizeText(x)) equals
// NormalizeText(x). The reported character count of phase 1 is the length
// of this function's output.
//
// # Outputs
//
//   - string: The normalized text.
//   - error: *datatypes.InputError when the text is empty or whitespace-only.
func NormalizeText(raw string) (string, error) {
	text := strings.TrimPrefix(raw, "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}

	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		if line == "" {
			blanks++
			continue
		}
		if blanks > 0 {
			if blanks >= 3 {
				blanks = 1
			}
			for ; blanks > 0; blanks-- {
				out = append(out, "")
			}
		}
		out = append(out, line)
	}
	// Trailing blank lines collapse the same way.
	if blanks >= 3 {
		blanks = 1
	}
	for ; blanks > 0; blanks-- {
		out = append(out, "")
	}

	normalized := strings.Join(out, "\n")
	if strings.TrimSpace(normalized) == "" {
		return "", &datatypes.InputError{Reason: "empty or unreadable input"}
	}
	return normalized, nil
}

// SectionText splits normalized text into prompt-sized sections using a
// recursive character splitter. Short documents come back as one section.
func SectionText(normalized string) ([]string, error) {
	if len(normalized) <= sectionChunkSize {
		return []string{normalized}, nil
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(sectionChunkSize),
		textsplitter.WithChunkOverlap(sectionChunkOverlap),
		textsplitter.WithSeparators(sectionSeparators),
	)
	sections, err := splitter.SplitText(normalized)
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		sections = []string{normalized}
	}
	return sections, nil
}

// PromptWindow joins leading sections until the window limit, so capability
// prompts stay bounded on very long documents. The first section is always
// included whole.
func PromptWindow(sections []string, limit int) string {
	if len(sections) == 0 {
		return ""
	}
	if limit <= 0 {
		limit = promptWindowChars
	}

	var b strings.Builder
	for i, section := range sections {
		if i > 0 && b.Len()+len(section)+2 > limit {
			break
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(section)
	}
	return b.String()
}
