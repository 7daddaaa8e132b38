// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"

	"github.com/AleutianAI/solforge/pkg/ux"
	"github.com/AleutianAI/solforge/services/translator/datatypes"
	"github.com/spf13/cobra"
)

// runScan is the entry point for `solforge scan <file.sol>`.
//
// Scans a Solidity source with the local security pattern engine, prints
// the findings, and exits 1 when anything of medium or higher severity
// was found. Exit 0 means the code passed review at the configured bar.
func runScan(cmd *cobra.Command, args []string) {
	source, err := readSource(args[0])
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}

	report, err := scanSource(source, scanRulesPath)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}

	renderScanReport(args[0], report)

	if report.OverallSeverity.Rank() >= datatypes.SeverityMedium.Rank() {
		os.Exit(1)
	}
}

// scanSource runs the pattern engine over one source, with an optional
// rules override file layered on the embedded rule set.
func scanSource(source, rulesPath string) (*datatypes.SecurityAuditReport, error) {
	engine, err := buildAuditEngine(rulesPath)
	if err != nil {
		return nil, err
	}
	return engine.Scan(source)
}

// renderScanReport prints the findings table and the severity summary.
func renderScanReport(path string, report *datatypes.SecurityAuditReport) {
	ux.Title(fmt.Sprintf("Security scan: %s", path))

	if report.NoFindings {
		ux.Success("No findings")
		return
	}

	for _, finding := range report.Findings {
		ux.Finding(string(finding.Severity), finding.RuleID, finding.Snippet, finding.LineNumber)
	}

	counts := report.CountBySeverity()
	ux.AuditSummary(
		counts[datatypes.SeverityHigh],
		counts[datatypes.SeverityMedium],
		counts[datatypes.SeverityLow],
		report.Approved,
	)
	for _, rec := range report.Recommendations {
		ux.Muted("  " + rec)
	}
}
