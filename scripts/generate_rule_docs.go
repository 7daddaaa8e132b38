// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// generate_rule_docs generates a markdown reference table from the security
// pattern engine's rules file.
//
// Usage:
//
//	go run scripts/generate_rule_docs.go > docs/security_rules.md
//
// The generated documentation includes:
//   - Full rule inventory grouped by vulnerability category
//   - Severity, detection pattern, and rationale per rule
//   - Summary statistics
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const rulesPath = "services/audit_engine/rules/solidity_rules.yaml"

// RulesYAML is the root structure for YAML deserialization.
type RulesYAML struct {
	Rules []RuleEntryYAML `yaml:"rules"`
}

// RuleEntryYAML represents a single rule entry in the YAML file.
type RuleEntryYAML struct {
	ID        string `yaml:"id"`
	Category  string `yaml:"category"`
	Severity  string `yaml:"severity"`
	Pattern   string `yaml:"pattern"`
	Rationale string `yaml:"rationale"`
}

func main() {
	data, err := os.ReadFile(rulesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", rulesPath, err)
		os.Exit(1)
	}

	var doc RulesYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", rulesPath, err)
		os.Exit(1)
	}
	if len(doc.Rules) == 0 {
		fmt.Fprintln(os.Stderr, "No rules found; is the rules file empty?")
		os.Exit(1)
	}

	printHeader(len(doc.Rules))
	printRulesByCategory(doc.Rules)
	printStatistics(doc.Rules)
}

func printHeader(count int) {
	fmt.Println("# Security Rule Reference")
	fmt.Println()
	fmt.Printf("Generated from `%s` on %s.\n", rulesPath, time.Now().Format("2006-01-02"))
	fmt.Println()
	fmt.Printf("The pattern engine ships %d line-detector rules plus the structural\n", count)
	fmt.Println("detectors (reentrancy ordering, unchecked arithmetic, access control),")
	fmt.Println("which are registered in code after the rules below.")
	fmt.Println()
}

func printRulesByCategory(rules []RuleEntryYAML) {
	byCategory := make(map[string][]RuleEntryYAML)
	var order []string
	for _, rule := range rules {
		if _, seen := byCategory[rule.Category]; !seen {
			order = append(order, rule.Category)
		}
		byCategory[rule.Category] = append(byCategory[rule.Category], rule)
	}

	for _, category := range order {
		fmt.Printf("## %s\n\n", strings.ReplaceAll(category, "_", " "))
		fmt.Println("| Rule | Severity | Pattern | Rationale |")
		fmt.Println("|------|----------|---------|-----------|")
		for _, rule := range byCategory[category] {
			fmt.Printf("| `%s` | %s | `%s` | %s |\n",
				rule.ID, rule.Severity, escapeCell(rule.Pattern), escapeCell(oneLine(rule.Rationale)))
		}
		fmt.Println()
	}
}

func printStatistics(rules []RuleEntryYAML) {
	bySeverity := make(map[string]int)
	for _, rule := range rules {
		bySeverity[rule.Severity]++
	}

	severities := make([]string, 0, len(bySeverity))
	for s := range bySeverity {
		severities = append(severities, s)
	}
	sort.Strings(severities)

	fmt.Println("## Statistics")
	fmt.Println()
	fmt.Printf("- Total rules: %d\n", len(rules))
	for _, s := range severities {
		fmt.Printf("- %s: %d\n", s, bySeverity[s])
	}
}

// oneLine collapses a folded YAML scalar into a single line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// escapeCell keeps pipes from breaking the markdown table.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
