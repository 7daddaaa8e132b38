// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// =============================================================================
// Header Tests
// =============================================================================

func TestSessionUI_Header_Machine_Local(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTranslateSessionUIWithWriter(&buf, PersonalityMachine)

	ui.Header(SessionConfig{Backend: "openai", OutputDir: "./out"})

	want := "SESSION_START: mode=local backend=openai output=./out\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestSessionUI_Header_Machine_Server(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTranslateSessionUIWithWriter(&buf, PersonalityMachine)

	ui.Header(SessionConfig{
		ServerURL: "http://localhost:12220",
		TypeHint:  "escrow",
	})

	want := "SESSION_START: mode=server server=http://localhost:12220 type_hint=escrow\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestSessionUI_Header_Minimal(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTranslateSessionUIWithWriter(&buf, PersonalityMinimal)

	ui.Header(SessionConfig{OutputDir: "./artifacts"})

	out := buf.String()
	if !strings.Contains(out, "local pipeline") {
		t.Errorf("expected local mode note: %q", out)
	}
	if !strings.Contains(out, "./artifacts") {
		t.Errorf("expected output dir: %q", out)
	}
}

func TestSessionUI_Header_Full(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTranslateSessionUIWithWriter(&buf, PersonalityFull)

	ui.Header(SessionConfig{
		ServerURL: "http://localhost:12220",
		Backend:   "openai",
		TypeHint:  "token",
		OutputDir: "./out",
	})

	out := buf.String()
	for _, want := range []string{"Contract Translation Session", "http://localhost:12220", "openai", "token", "./out"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in header: %q", want, out)
		}
	}
}

// =============================================================================
// Prompt Tests
// =============================================================================

func TestSessionUI_Prompt_Machine(t *testing.T) {
	ui := NewTranslateSessionUIWithWriter(&bytes.Buffer{}, PersonalityMachine)

	if got := ui.Prompt(); got != "> " {
		t.Errorf("expected plain prompt, got %q", got)
	}
}

func TestSessionUI_Prompt_Full(t *testing.T) {
	ui := NewTranslateSessionUIWithWriter(&bytes.Buffer{}, PersonalityFull)

	if !strings.Contains(ui.Prompt(), ">") {
		t.Errorf("expected prompt marker, got %q", ui.Prompt())
	}
}

// =============================================================================
// Run Lifecycle Tests
// =============================================================================

func TestSessionUI_RunStarted_Machine(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTranslateSessionUIWithWriter(&buf, PersonalityMachine)

	ui.RunStarted("run-7")

	if buf.String() != "RUN_START: run-7\n" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestSessionUI_RunFinished_Machine(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTranslateSessionUIWithWriter(&buf, PersonalityMachine)

	ui.RunFinished(&datatypes.RunResult{
		RunID:      "run-7",
		Status:     datatypes.RunPartiallyFailed,
		DurationMs: 2148,
	})

	want := "RUN_END: id=run-7 status=partially_failed duration=2148ms\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestSessionUI_RunFinished_Minimal(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTranslateSessionUIWithWriter(&buf, PersonalityMinimal)

	ui.RunFinished(&datatypes.RunResult{
		RunID:      "run-8",
		Status:     datatypes.RunSucceeded,
		DurationMs: 900,
	})

	out := buf.String()
	if !strings.Contains(out, "run-8") || !strings.Contains(out, "succeeded") {
		t.Errorf("expected minimal run summary: %q", out)
	}
}

func TestSessionUI_ArtifactsSaved_Machine(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTranslateSessionUIWithWriter(&buf, PersonalityMachine)

	ui.ArtifactsSaved("./out/run-7", 6)

	if buf.String() != "ARTIFACTS: dir=./out/run-7 count=6\n" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestSessionUI_Error_Machine(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTranslateSessionUIWithWriter(&buf, PersonalityMachine)

	ui.Error(errors.New("document not found"))

	if buf.String() != "SESSION_ERROR: document not found\n" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

// =============================================================================
// SessionEnd Tests
// =============================================================================

func TestSessionUI_SessionEnd_Machine(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTranslateSessionUIWithWriter(&buf, PersonalityMachine)

	ui.SessionEnd(&SessionStats{
		RunCount:  3,
		Succeeded: 2,
		Failed:    1,
		Duration:  90 * time.Second,
	})

	want := "SESSION_END: runs=3 succeeded=2 failed=1 duration=1m30s\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestSessionUI_SessionEnd_Machine_NilStats(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTranslateSessionUIWithWriter(&buf, PersonalityMachine)

	ui.SessionEnd(nil)

	if buf.String() != "SESSION_END:\n" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestSessionUI_SessionEnd_Full(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTranslateSessionUIWithWriter(&buf, PersonalityFull)

	ui.SessionEnd(&SessionStats{
		RunCount:       2,
		Succeeded:      2,
		Refinements:    3,
		ArtifactsSaved: 12,
		Duration:       5 * time.Minute,
	})

	out := buf.String()
	if !strings.Contains(out, "Session Summary") {
		t.Errorf("expected summary header: %q", out)
	}
	if !strings.Contains(out, "2 translation runs") {
		t.Errorf("expected run count: %q", out)
	}
	if !strings.Contains(out, "solforge runs list") {
		t.Errorf("expected inspect hint: %q", out)
	}
}

func TestSessionUI_SessionEnd_Full_NilStats(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTranslateSessionUIWithWriter(&buf, PersonalityFull)

	ui.SessionEnd(nil)

	if !strings.Contains(buf.String(), "Goodbye") {
		t.Errorf("expected plain goodbye: %q", buf.String())
	}
}

// =============================================================================
// formatDuration Tests
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "500ms"},
		{5 * time.Second, "5.0s"},
		{60 * time.Second, "1m"},
		{90 * time.Second, "1m 30s"},
		{2 * time.Hour, "2h 0m"},
		{2*time.Hour + 15*time.Minute, "2h 15m"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
