// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// SessionConfig contains configuration for displaying the session header.
//
// # Description
//
// SessionConfig groups all optional parameters for the translate session
// header. This allows extending the header with new fields without
// breaking existing callers of the Header() method.
//
// # Fields
//
//   - ServerURL: Remote service URL. Empty when running the local pipeline.
//   - Backend: LLM backend name (e.g., "anthropic", "openai", "ollama").
//   - TypeHint: Agreement type hint forwarded to schema extraction. May be empty.
//   - OutputDir: Directory artifacts are written to.
type SessionConfig struct {
	ServerURL string
	Backend   string
	TypeHint  string
	OutputDir string
}

// SessionStats aggregates metrics from a translate session for display.
//
// # Description
//
// SessionStats captures accumulated metrics across all runs in an
// interactive session. It's designed to be displayed when the session
// ends, giving users visibility into what the session produced.
//
// # Fields
//
//   - RunCount: Number of translation runs started
//   - Succeeded: Runs that finished with status succeeded
//   - Failed: Runs that finished failed or partially failed
//   - Refinements: Total refinement iterations across all runs
//   - ArtifactsSaved: Total artifacts written to the output directory
//   - Duration: Total session duration
//   - FirstRunLatency: Wall time of the first run
//   - AverageRunTime: Average wall time per run
type SessionStats struct {
	RunCount        int
	Succeeded       int
	Failed          int
	Refinements     int
	ArtifactsSaved  int
	Duration        time.Duration
	FirstRunLatency time.Duration
	AverageRunTime  time.Duration
}

// TranslateSessionUI defines the interface for interactive translate
// session rendering. Implementations handle rendering session elements
// to different outputs.
type TranslateSessionUI interface {
	// Header displays the session header with mode and configuration.
	Header(config SessionConfig)

	// Prompt returns the styled input prompt string
	Prompt() string

	// RunStarted displays the start of a translation run
	RunStarted(runID string)

	// RunFinished displays a finished run's outcome
	RunFinished(result *datatypes.RunResult)

	// ArtifactsSaved displays where run artifacts were written
	ArtifactsSaved(dir string, count int)

	// Error displays a session error message
	Error(err error)

	// SessionEnd displays session end information with stats.
	//
	// This is the "maximalist" session end experience, showing:
	//   - Session statistics (runs, refinements, duration)
	//   - Commands for inspecting stored runs
	//
	// A nil stats falls back to a plain goodbye.
	SessionEnd(stats *SessionStats)
}

// terminalSessionUI implements TranslateSessionUI for terminal output
type terminalSessionUI struct {
	writer      io.Writer
	personality PersonalityLevel
}

// write is a helper that writes formatted output and handles errors.
// Errors are silently ignored as there's no meaningful recovery for terminal output.
func (u *terminalSessionUI) write(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(u.writer, format, args...); err != nil {
		// Terminal write errors are non-recoverable; silently ignore
		return
	}
}

// writeln is a helper that writes a line and handles errors.
func (u *terminalSessionUI) writeln(args ...interface{}) {
	if _, err := fmt.Fprintln(u.writer, args...); err != nil {
		// Terminal write errors are non-recoverable; silently ignore
		return
	}
}

// NewTranslateSessionUI creates a new terminal-based TranslateSessionUI
func NewTranslateSessionUI() TranslateSessionUI {
	return &terminalSessionUI{
		writer:      os.Stdout,
		personality: GetPersonality().Level,
	}
}

// NewTranslateSessionUIWithWriter creates a TranslateSessionUI with a custom writer (for testing)
func NewTranslateSessionUIWithWriter(w io.Writer, personality PersonalityLevel) TranslateSessionUI {
	return &terminalSessionUI{
		writer:      w,
		personality: personality,
	}
}

// Header displays the session header.
//
// # Description
//
// Renders the session header box with mode, backend, and optional
// metadata including the type hint and output directory. Adapts output
// based on personality level.
//
// # Inputs
//
//   - config: SessionConfig with server URL, backend, type hint, output dir
//
// # Outputs
//
// None. Writes directly to the configured writer.
func (u *terminalSessionUI) Header(config SessionConfig) {
	if u.personality == PersonalityMachine {
		u.headerMachine(config)
		return
	}

	if u.personality == PersonalityMinimal {
		u.headerMinimal(config)
		return
	}

	u.headerFull(config)
}

// headerMachine renders the header in machine-readable format.
func (u *terminalSessionUI) headerMachine(config SessionConfig) {
	parts := []string{"mode=local"}
	if config.ServerURL != "" {
		parts = []string{fmt.Sprintf("mode=server server=%s", config.ServerURL)}
	}
	if config.Backend != "" {
		parts = append(parts, fmt.Sprintf("backend=%s", config.Backend))
	}
	if config.TypeHint != "" {
		parts = append(parts, fmt.Sprintf("type_hint=%s", config.TypeHint))
	}
	if config.OutputDir != "" {
		parts = append(parts, fmt.Sprintf("output=%s", config.OutputDir))
	}
	u.write("SESSION_START: %s\n", strings.Join(parts, " "))
}

// headerMinimal renders the header in minimal format.
func (u *terminalSessionUI) headerMinimal(config SessionConfig) {
	if config.ServerURL != "" {
		u.write("Translate Session (server: %s)\n", config.ServerURL)
	} else {
		u.writeln("Translate Session (local pipeline)")
	}
	if config.OutputDir != "" {
		u.write("Output: %s\n", config.OutputDir)
	}
	u.writeln("Enter a document path, or 'exit' to end.")
}

// headerFull renders the header with full styling.
func (u *terminalSessionUI) headerFull(config SessionConfig) {
	var content strings.Builder
	content.WriteString(Styles.Highlight.Render("Contract Translation Session"))
	content.WriteString("\n")

	if config.ServerURL != "" {
		content.WriteString(fmt.Sprintf("Server: %s", Styles.Success.Render(config.ServerURL)))
	} else {
		content.WriteString(fmt.Sprintf("Mode: %s", Styles.Success.Render("local pipeline")))
	}

	if config.Backend != "" {
		content.WriteString("\n")
		content.WriteString(fmt.Sprintf("Backend: %s", Styles.Success.Render(config.Backend)))
	}

	// Type hint and output on one line when both present
	if config.TypeHint != "" {
		content.WriteString("\n")
		content.WriteString(fmt.Sprintf("Type hint: %s", Styles.Success.Render(config.TypeHint)))
	}
	if config.OutputDir != "" {
		if config.TypeHint != "" {
			content.WriteString(" | ")
		} else {
			content.WriteString("\n")
		}
		content.WriteString(fmt.Sprintf("Output: %s", Styles.Success.Render(config.OutputDir)))
	}

	boxStyle := Styles.Box.Width(60)
	u.writeln(boxStyle.Render(content.String()))
	u.writeln()
	u.writeln(Styles.Muted.Render("Enter a document path, or 'exit' to end."))
	u.writeln()
}

// Prompt returns the styled input prompt string
func (u *terminalSessionUI) Prompt() string {
	if u.personality == PersonalityMachine {
		return "> "
	}
	return Styles.Highlight.Render("> ")
}

// RunStarted displays the start of a translation run
func (u *terminalSessionUI) RunStarted(runID string) {
	if u.personality == PersonalityMachine {
		u.write("RUN_START: %s\n", runID)
		return
	}
	u.writeln()
	u.write("%s %s\n", IconContract.Render(), Styles.Muted.Render(fmt.Sprintf("run %s", runID)))
}

// RunFinished displays a finished run's outcome
func (u *terminalSessionUI) RunFinished(result *datatypes.RunResult) {
	if u.personality == PersonalityMachine {
		u.write("RUN_END: id=%s status=%s duration=%dms\n",
			result.RunID, result.Status, result.DurationMs)
		return
	}

	icon := IconError
	verdict := Styles.Error.Render(string(result.Status))
	switch result.Status {
	case datatypes.RunSucceeded:
		icon = IconSuccess
		verdict = Styles.Success.Render(string(result.Status))
	case datatypes.RunPartiallyFailed:
		icon = IconWarning
		verdict = Styles.Warning.Render(string(result.Status))
	}

	if u.personality == PersonalityMinimal {
		u.write("%s %s (%dms)\n", result.RunID, result.Status, result.DurationMs)
		return
	}

	u.write("%s %s %s %s\n",
		icon.Render(),
		Styles.Bold.Render(result.RunID),
		verdict,
		Styles.Muted.Render(fmt.Sprintf("(%d artifacts, %dms)",
			len(result.ArtifactNames()), result.DurationMs)))
}

// ArtifactsSaved displays where run artifacts were written
func (u *terminalSessionUI) ArtifactsSaved(dir string, count int) {
	if u.personality == PersonalityMachine {
		u.write("ARTIFACTS: dir=%s count=%d\n", dir, count)
		return
	}
	u.write("%s %s\n", IconSuccess.Render(),
		Styles.Muted.Render(fmt.Sprintf("saved %d artifacts to %s", count, dir)))
}

// Error displays a session error message
func (u *terminalSessionUI) Error(err error) {
	if u.personality == PersonalityMachine {
		u.write("SESSION_ERROR: %v\n", err)
		return
	}
	u.write("%s %s\n", IconError.Render(), Styles.Error.Render(fmt.Sprintf("Session error: %v", err)))
}

// SessionEnd displays session end information with statistics.
//
// # Description
//
// Displays a comprehensive session summary including:
//   - Run statistics (started, succeeded, failed)
//   - Refinement and artifact counts
//   - Session duration and first-run latency
//   - Commands for inspecting stored runs
//
// # Inputs
//
//   - stats: Session statistics. If nil, prints a plain goodbye.
//
// # Outputs
//
// None. Writes directly to the configured writer.
//
// # Examples
//
//	stats := &SessionStats{
//	    RunCount:  3,
//	    Succeeded: 2,
//	    Duration:  5 * time.Minute,
//	}
//	ui.SessionEnd(stats)
//
// # Limitations
//
//   - Box rendering requires terminal width of at least 68 characters
//   - Icons require Unicode support
//
// # Assumptions
//
//   - Writer is available and writable
//   - Terminal supports ANSI colors (for full personality)
func (u *terminalSessionUI) SessionEnd(stats *SessionStats) {
	if stats == nil {
		if u.personality == PersonalityMachine {
			u.writeln("SESSION_END:")
			return
		}
		u.writeln("Goodbye!")
		return
	}

	if u.personality == PersonalityMachine {
		u.sessionEndMachine(stats)
		return
	}

	if u.personality == PersonalityMinimal {
		u.sessionEndMinimal(stats)
		return
	}

	u.sessionEndFull(stats)
}

// sessionEndMachine renders session end in machine-readable format:
// SESSION_END: runs=<n> succeeded=<n> failed=<n> duration=<d>
func (u *terminalSessionUI) sessionEndMachine(stats *SessionStats) {
	u.write("SESSION_END: runs=%d succeeded=%d failed=%d duration=%s\n",
		stats.RunCount, stats.Succeeded, stats.Failed,
		stats.Duration.Round(time.Millisecond))
}

// sessionEndMinimal renders session end with basic formatting.
func (u *terminalSessionUI) sessionEndMinimal(stats *SessionStats) {
	u.writeln()
	u.write("Runs: %d | Succeeded: %d | Failed: %d | Duration: %s\n",
		stats.RunCount, stats.Succeeded, stats.Failed, formatDuration(stats.Duration))
	u.writeln("Goodbye!")
}

// sessionEndFull renders session end with full styling: a bordered box
// with statistics and hints for inspecting stored runs.
func (u *terminalSessionUI) sessionEndFull(stats *SessionStats) {
	u.writeln()

	var content strings.Builder

	content.WriteString(Styles.Subtitle.Render("Session Summary"))
	content.WriteString("\n\n")

	// Core metrics with icons
	content.WriteString(fmt.Sprintf("  %s  %d translation runs\n",
		IconContract.Render(), stats.RunCount))
	content.WriteString(fmt.Sprintf("  %s  %d succeeded\n",
		IconSuccess.Render(), stats.Succeeded))
	if stats.Failed > 0 {
		content.WriteString(fmt.Sprintf("  %s  %d failed\n",
			IconError.Render(), stats.Failed))
	}
	if stats.Refinements > 0 {
		content.WriteString(fmt.Sprintf("  %s  %d refinement iterations\n",
			IconArrow.Render(), stats.Refinements))
	}
	if stats.ArtifactsSaved > 0 {
		content.WriteString(fmt.Sprintf("  %s  %d artifacts saved\n",
			IconBullet.Render(), stats.ArtifactsSaved))
	}

	content.WriteString(fmt.Sprintf("  %s  %s session duration\n",
		IconPending.Render(), formatDuration(stats.Duration)))
	if stats.FirstRunLatency > 0 {
		content.WriteString(fmt.Sprintf("  %s  %s first run\n",
			Styles.Muted.Render("⚡"), formatDuration(stats.FirstRunLatency)))
	}

	if stats.RunCount > 0 {
		content.WriteString("\n")
		content.WriteString(Styles.Subtitle.Render("Inspect Runs"))
		content.WriteString("\n\n")
		content.WriteString(fmt.Sprintf("  %s\n",
			Styles.Muted.Render("Stored runs and artifacts:")))
		content.WriteString(fmt.Sprintf("  %s\n",
			Styles.Success.Render("./solforge runs list")))
	}

	// Width 68 accommodates the command hints with padding
	boxStyle := Styles.Box.Width(68)
	u.writeln(boxStyle.Render(content.String()))
	u.writeln()
	u.writeln(Styles.Highlight.Render("Goodbye! 👋"))
}

// formatDuration formats a duration for human-readable display.
//
// # Examples
//
//	formatDuration(500*time.Millisecond) // "500ms"
//	formatDuration(5*time.Second)        // "5.0s"
//	formatDuration(90*time.Second)       // "1m 30s"
//	formatDuration(2*time.Hour)          // "2h 0m"
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, mins)
}

// Compile-time interface check
var _ TranslateSessionUI = (*terminalSessionUI)(nil)
