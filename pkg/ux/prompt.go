// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides user experience components for the Solforge CLI.
//
// This file contains interactive prompts built on the huh form library.
// Every prompt has a non-interactive fallback so scripted and CI runs
// never block: selects resolve to the recommended option, confirms to
// their default, and the audit review gate to saving artifacts.
package ux

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// truncate shortens s to at most maxLen characters, replacing the tail
// with "..." when it does not fit.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}

// solforgeTheme returns the huh theme matching the CLI's teal palette.
func solforgeTheme() *huh.Theme {
	t := huh.ThemeBase()
	t.Focused.Title = t.Focused.Title.Foreground(ColorTealBright).Bold(true)
	t.Focused.Description = t.Focused.Description.Foreground(ColorSlate)
	t.Focused.SelectSelector = t.Focused.SelectSelector.Foreground(ColorTealBright)
	t.Focused.SelectedOption = t.Focused.SelectedOption.Foreground(ColorTealBright)
	t.Focused.FocusedButton = t.Focused.FocusedButton.Background(ColorTealPrimary)
	t.Blurred.Title = t.Blurred.Title.Foreground(ColorTealPrimary)
	return t
}

// =============================================================================
// Generic Prompts
// =============================================================================

// PromptOption is one choice in a selection prompt.
type PromptOption struct {
	Label       string // Display text
	Description string // Optional secondary text shown after the label
	Value       string // Returned when this option is selected
	Recommended bool   // Marks the option chosen in non-interactive mode
}

// SelectOption presents a single-choice prompt and returns the selected
// option's Value.
//
// In non-interactive mode the recommended option wins; when none is
// marked recommended, the first option does. Returns huh.ErrUserAborted
// when the user cancels with Ctrl+C.
func SelectOption(title, description string, options []PromptOption) (string, error) {
	if len(options) == 0 {
		return "", errors.New("no options to select from")
	}
	if !IsInteractive() {
		for _, opt := range options {
			if opt.Recommended {
				return opt.Value, nil
			}
		}
		return options[0].Value, nil
	}

	huhOptions := make([]huh.Option[string], 0, len(options))
	for _, opt := range options {
		label := opt.Label
		if opt.Recommended {
			label += " (recommended)"
		}
		if opt.Description != "" {
			label = fmt.Sprintf("%s - %s", label, opt.Description)
		}
		huhOptions = append(huhOptions, huh.NewOption(label, opt.Value))
	}

	var selected string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(title).
			Description(description).
			Options(huhOptions...).
			Value(&selected),
	)).WithTheme(solforgeTheme())

	if err := form.Run(); err != nil {
		return "", err
	}
	return selected, nil
}

// Confirm presents a yes/no prompt. In non-interactive mode it returns
// defaultYes without blocking.
func Confirm(title, description string, defaultYes bool) (bool, error) {
	if !IsInteractive() {
		return defaultYes, nil
	}

	confirmed := defaultYes
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Yes").
			Negative("No").
			Value(&confirmed),
	)).WithTheme(solforgeTheme())

	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}

// =============================================================================
// Audit Review Gate
// =============================================================================

// AuditAction is the user's decision after reviewing an audit report.
type AuditAction string

const (
	AuditActionSave     AuditAction = "save"    // Keep the generated artifacts
	AuditActionShowMore AuditAction = "show"    // List the findings, then ask again
	AuditActionDiscard  AuditAction = "discard" // Drop the generated artifacts
)

// AuditPromptOptions configures the audit review prompt.
type AuditPromptOptions struct {
	ContractName string                         // Shown in the prompt header
	Report       *datatypes.SecurityAuditReport // The audit outcome to review
	ShowDiscard  bool                           // Offer discarding the artifacts
}

// PromptAuditReview asks the user what to do with a generated contract
// whose audit produced findings.
//
// Selecting "show" prints every finding and re-prompts, so the loop only
// returns save or discard. Non-interactive runs resolve to save; the
// caller owns exit codes and can still fail on severity.
func PromptAuditReview(opts AuditPromptOptions) (AuditAction, error) {
	if opts.Report == nil {
		return "", errors.New("audit review requires a report")
	}
	if !IsInteractive() {
		return AuditActionSave, nil
	}

	counts := opts.Report.CountBySeverity()
	header := fmt.Sprintf("Audit of %s: %d high, %d medium, %d low",
		opts.ContractName,
		counts[datatypes.SeverityHigh],
		counts[datatypes.SeverityMedium],
		counts[datatypes.SeverityLow])
	if opts.Report.Approved {
		Success(header)
	} else {
		Warning(header)
	}

	description := "The audit approved the generated contract."
	if !opts.Report.Approved {
		description = "The audit flagged issues; review before saving."
	}

	options := []PromptOption{
		{
			Label:       "Save artifacts",
			Description: "keep the generated contract and audit report",
			Value:       string(AuditActionSave),
			Recommended: opts.Report.Approved,
		},
		{
			Label:       "Show findings",
			Description: "list every finding before deciding",
			Value:       string(AuditActionShowMore),
		},
	}
	if opts.ShowDiscard {
		options = append(options, PromptOption{
			Label:       "Discard",
			Description: "drop the generated artifacts",
			Value:       string(AuditActionDiscard),
		})
	}

	for {
		value, err := SelectOption("Review generated contract?", description, options)
		if err != nil {
			return "", err
		}
		action := AuditAction(value)
		if action != AuditActionShowMore {
			return action, nil
		}
		printAuditFindings(opts.Report)
	}
}

// printAuditFindings lists every finding followed by the severity
// summary line.
func printAuditFindings(report *datatypes.SecurityAuditReport) {
	for _, f := range report.Findings {
		title := f.Rationale
		if title == "" {
			title = string(f.Category)
		}
		Finding(string(f.Severity), f.RuleID, truncate(title, 96), f.LineNumber)
	}
	counts := report.CountBySeverity()
	AuditSummary(
		counts[datatypes.SeverityHigh],
		counts[datatypes.SeverityMedium],
		counts[datatypes.SeverityLow],
		report.Approved)
}
