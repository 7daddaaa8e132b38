// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package audit_engine scans Solidity source for known vulnerability
// patterns. The engine is deterministic and pure: the same input always
// produces the same report, so pipeline runs are reproducible and tests
// need no fixtures beyond source text.
package audit_engine

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/solforge/services/audit_engine/rules"
	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// categoryAdvice maps each finding category to its remediation hint.
// Reports carry one hint per distinct category, in finding order.
var categoryAdvice = map[datatypes.FindingCategory]string{
	datatypes.CategoryReentrancy:          "Apply checks-effects-interactions: update balances before external calls, or guard with nonReentrant.",
	datatypes.CategoryAccessControl:       "Restrict state-changing functions with a modifier or an explicit msg.sender check.",
	datatypes.CategoryArithmetic:          "Keep value-bearing math under Solidity >=0.8 checked semantics or bound inputs explicitly.",
	datatypes.CategoryUncheckedCall:       "Check the boolean result of every low-level call and handle failure.",
	datatypes.CategoryTxOrigin:            "Authenticate with msg.sender, never tx.origin.",
	datatypes.CategoryTimestampDependence: "Tolerate several seconds of timestamp skew; never derive randomness from block fields.",
	datatypes.CategoryDelegatecall:        "Only delegatecall into audited, immutable implementations.",
	datatypes.CategorySelfdestruct:        "Gate selfdestruct behind strict owner checks, or remove it.",
	datatypes.CategoryVisibility:          "Declare visibility explicitly on every function.",
}

// Engine is the security pattern scanner.
//
// It holds an ordered detector list: the line rules from the embedded YAML
// (or an operator override), then the structural detectors. Registration
// order is the stable tie-break for equal-severity findings. Scanning takes
// a read lock only to snapshot the rule slice, so concurrent scans never
// block each other.
type Engine struct {
	mu         sync.RWMutex
	rules      []Rule
	structural []structuralDetector
}

// NewEngine initializes the scanner from the embedded rule set.
//
// It performs the following operations:
// 1. Unmarshals the embedded YAML data, validating category and severity.
// 2. Compiles all regex patterns.
// 3. Registers the structural detectors after the file rules.
//
// Returns an error if the embedded YAML is malformed, names an unknown
// category or severity, or contains an invalid regex.
func NewEngine() (*Engine, error) {
	ruleSet, err := parseRules(rules.SolidityRules)
	if err != nil {
		return nil, fmt.Errorf("embedded rules: %w", err)
	}

	return &Engine{
		rules:      ruleSet,
		structural: defaultStructuralDetectors(),
	}, nil
}

// parseRules decodes and compiles one rule file.
func parseRules(data []byte) ([]Rule, error) {
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the rule file: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("rule file contains no rules")
	}
	if err := file.CompileRegexes(); err != nil {
		return nil, err
	}
	return file.Rules, nil
}

// LoadRulesFile replaces the line-rule set with the contents of an override
// file. The structural detectors are unaffected. The swap is atomic: scans
// in flight finish against the set they started with.
func (e *Engine) LoadRulesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	ruleSet, err := parseRules(data)
	if err != nil {
		return fmt.Errorf("rules file %s: %w", path, err)
	}

	e.mu.Lock()
	e.rules = ruleSet
	e.mu.Unlock()

	slog.Info("Loaded rule override file", "path", path, "rules", len(ruleSet))
	return nil
}

// RuleCount returns the current number of line rules.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Scan audits Solidity source text.
//
// Every line is checked against every line rule, then the structural
// detectors run over the function spans. Detectors are independent: one
// match never suppresses another. Findings are ordered by descending
// severity with registration order as the stable tie-break. An empty
// finding set is a valid report; empty or whitespace-only source is not
// scannable and returns AuditUnavailableError.
func (e *Engine) Scan(code string) (*datatypes.SecurityAuditReport, error) {
	if strings.TrimSpace(code) == "" {
		return nil, &datatypes.AuditUnavailableError{Reason: "empty or whitespace-only code"}
	}

	e.mu.RLock()
	ruleSet := e.rules
	e.mu.RUnlock()

	lines := strings.Split(code, "\n")
	var findings []datatypes.SecurityFinding

	for _, rule := range ruleSet {
		for lineNum, line := range lines {
			match := rule.compiledPattern.FindString(line)
			if match == "" {
				continue
			}
			findings = append(findings, datatypes.SecurityFinding{
				RuleID:     rule.Id,
				Category:   rule.Category,
				Severity:   rule.Severity,
				LineNumber: lineNum + 1,
				Snippet:    strings.TrimSpace(match),
				Rationale:  rule.Rationale,
			})
		}
	}

	src := newScannedSource(lines)
	for _, det := range e.structural {
		for _, m := range det.detect(src) {
			findings = append(findings, datatypes.SecurityFinding{
				RuleID:     det.id,
				Category:   det.category,
				Severity:   det.severity,
				LineNumber: m.line,
				Snippet:    m.snippet,
				Rationale:  det.rationale,
			})
		}
	}

	// Stable sort keeps registration order within a severity band.
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Rank() > findings[j].Severity.Rank()
	})

	return buildReport(findings), nil
}

// buildReport assembles the report invariants: overall severity is the max
// finding severity ("low" for an empty set), approval means nothing above
// low, and recommendations carry one hint per distinct category.
func buildReport(findings []datatypes.SecurityFinding) *datatypes.SecurityAuditReport {
	report := &datatypes.SecurityAuditReport{
		Findings:        findings,
		OverallSeverity: datatypes.SeverityLow,
		NoFindings:      len(findings) == 0,
		Approved:        true,
	}

	seen := make(map[datatypes.FindingCategory]bool, len(findings))
	for _, f := range findings {
		report.OverallSeverity = datatypes.MaxSeverity(report.OverallSeverity, f.Severity)
		if f.Severity != datatypes.SeverityLow {
			report.Approved = false
		}
		if !seen[f.Category] {
			seen[f.Category] = true
			if advice, ok := categoryAdvice[f.Category]; ok {
				report.Recommendations = append(report.Recommendations, advice)
			}
		}
	}

	return report
}
