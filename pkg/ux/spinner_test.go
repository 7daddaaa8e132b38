// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// NewSpinner Tests
// =============================================================================

func TestNewSpinner_ReturnsNonNil(t *testing.T) {
	spin := NewSpinner("Loading...")
	if spin == nil {
		t.Fatal("NewSpinner returned nil")
	}
}

func TestNewSpinner_SetsMessage(t *testing.T) {
	spin := NewSpinner("Processing document")
	if spin.message != "Processing document" {
		t.Errorf("expected message 'Processing document', got %q", spin.message)
	}
}

func TestNewSpinner_DefaultsToDotsType(t *testing.T) {
	spin := NewSpinner("Loading...")
	if spin.spinType != SpinnerDots {
		t.Errorf("expected SpinnerDots, got %v", spin.spinType)
	}
}

func TestNewSpinner_InitializesChannels(t *testing.T) {
	spin := NewSpinner("Loading...")
	if spin.stop == nil {
		t.Error("stop channel should be initialized")
	}
	if spin.done == nil {
		t.Error("done channel should be initialized")
	}
}

// =============================================================================
// WithType Tests
// =============================================================================

func TestSpinner_WithType_Compass(t *testing.T) {
	spin := NewSpinner("Loading...").WithType(SpinnerCompass)
	if spin.spinType != SpinnerCompass {
		t.Errorf("expected SpinnerCompass, got %v", spin.spinType)
	}
}

func TestSpinner_WithType_Hex(t *testing.T) {
	spin := NewSpinner("Loading...").WithType(SpinnerHex)
	if spin.spinType != SpinnerHex {
		t.Errorf("expected SpinnerHex, got %v", spin.spinType)
	}
}

func TestSpinner_WithType_Chaining(t *testing.T) {
	spin := NewSpinner("Loading...").WithType(SpinnerHex)
	if spin == nil {
		t.Error("WithType should return the spinner for chaining")
	}
}

// =============================================================================
// Start/Stop Tests (Machine Mode)
// =============================================================================

func TestSpinner_Start_MachineMode(t *testing.T) {
	withPersonality(t, PersonalityMachine)

	spin := NewSpinner("Generating contract...")
	output := captureStdout(func() {
		spin.Start()
	})

	if output != "PROGRESS: Generating contract...\n" {
		t.Errorf("expected 'PROGRESS: Generating contract...', got %q", output)
	}
}

func TestSpinner_Stop_MachineMode(t *testing.T) {
	withPersonality(t, PersonalityMachine)

	spin := NewSpinner("Processing...")
	spin.Start()
	spin.Stop() // Should not panic or hang
}

func TestSpinner_Start_AlreadyRunning(t *testing.T) {
	withPersonality(t, PersonalityMachine)

	spin := NewSpinner("Processing...")
	spin.Start()
	spin.Start() // Second start should be no-op
	spin.Stop()
}

func TestSpinner_Stop_NotRunning(t *testing.T) {
	withPersonality(t, PersonalityMachine)

	spin := NewSpinner("Processing...")
	spin.Stop() // Should not panic when not running
}

// =============================================================================
// Start/Stop Tests (Full Mode - Brief)
// =============================================================================

func TestSpinner_StartStop_FullMode(t *testing.T) {
	withPersonality(t, PersonalityFull)

	spin := NewSpinner("Processing...")
	spin.Start()

	// Give the animation goroutine a few frames
	time.Sleep(100 * time.Millisecond)

	spin.Stop()
}

// =============================================================================
// UpdateMessage Tests
// =============================================================================

func TestSpinner_UpdateMessage(t *testing.T) {
	spin := NewSpinner("Initial message")

	spin.UpdateMessage("Updated message")

	if spin.message != "Updated message" {
		t.Errorf("expected 'Updated message', got %q", spin.message)
	}
}

func TestSpinner_UpdateMessage_WhileRunning(t *testing.T) {
	withPersonality(t, PersonalityMachine)

	spin := NewSpinner("Initial")
	spin.Start()

	spin.UpdateMessage("Updated")

	if spin.message != "Updated" {
		t.Errorf("expected 'Updated', got %q", spin.message)
	}

	spin.Stop()
}

// =============================================================================
// StopWith* Tests
// =============================================================================

func TestSpinner_StopWithSuccess_MachineMode(t *testing.T) {
	withPersonality(t, PersonalityMachine)

	spin := NewSpinner("Processing...")
	spin.Start()

	output := captureStdout(func() {
		spin.StopWithSuccess("Done successfully")
	})

	if output != "OK: Done successfully\n" {
		t.Errorf("expected success message, got %q", output)
	}
}

func TestSpinner_StopWithError_MachineMode(t *testing.T) {
	withPersonality(t, PersonalityMachine)

	spin := NewSpinner("Processing...")
	spin.Start()

	output := captureStderr(func() {
		spin.StopWithError("Operation failed")
	})

	if output != "ERROR: Operation failed\n" {
		t.Errorf("expected error message, got %q", output)
	}
}

func TestSpinner_StopWithWarning_MachineMode(t *testing.T) {
	withPersonality(t, PersonalityMachine)

	spin := NewSpinner("Processing...")
	spin.Start()

	output := captureStderr(func() {
		spin.StopWithWarning("Completed with warnings")
	})

	if output != "WARN: Completed with warnings\n" {
		t.Errorf("expected warning message, got %q", output)
	}
}

// =============================================================================
// WithSpinner Tests
// =============================================================================

func TestWithSpinner_Success(t *testing.T) {
	withPersonality(t, PersonalityMachine)

	called := false
	err := WithSpinner("Processing", func() error {
		called = true
		return nil
	})

	if !called {
		t.Error("function should have been called")
	}
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestWithSpinner_Error(t *testing.T) {
	withPersonality(t, PersonalityMachine)

	testErr := errors.New("test error")
	err := WithSpinner("Processing", func() error {
		return testErr
	})

	if err != testErr {
		t.Errorf("expected test error, got %v", err)
	}
}

func TestWithSpinner_MachineMode_SuccessOutput(t *testing.T) {
	withPersonality(t, PersonalityMachine)

	output := captureStdout(func() {
		_ = WithSpinner("Test operation", func() error {
			return nil
		})
	})

	if !strings.Contains(output, "OK: Test operation") {
		t.Errorf("expected success line, got %q", output)
	}
}

// =============================================================================
// PhaseSpinner Tests
// =============================================================================

func TestNewPhaseSpinner_ReturnsNonNil(t *testing.T) {
	ps := NewPhaseSpinner("Running pipeline", 6)
	if ps == nil {
		t.Fatal("NewPhaseSpinner returned nil")
	}
}

func TestNewPhaseSpinner_SetsTotal(t *testing.T) {
	ps := NewPhaseSpinner("Running pipeline", 6)
	if ps.total != 6 {
		t.Errorf("expected total 6, got %d", ps.total)
	}
}

func TestNewPhaseSpinner_StartsAtZero(t *testing.T) {
	ps := NewPhaseSpinner("Running pipeline", 6)
	if ps.current != 0 {
		t.Errorf("expected current 0, got %d", ps.current)
	}
}

func TestPhaseSpinner_Advance_MachineMode(t *testing.T) {
	withPersonality(t, PersonalityMachine)

	ps := NewPhaseSpinner("Running pipeline", 6)

	output := captureStdout(func() {
		ps.Advance("document_processing")
	})

	if output != "PROGRESS: [1/6] document_processing\n" {
		t.Errorf("unexpected advance output: %q", output)
	}
	if ps.current != 1 {
		t.Errorf("expected current 1, got %d", ps.current)
	}
}

func TestPhaseSpinner_Advance_Multiple(t *testing.T) {
	withPersonality(t, PersonalityMachine)

	ps := NewPhaseSpinner("Running pipeline", 6)

	captureStdout(func() {
		for i := 0; i < 3; i++ {
			ps.Advance("phase")
		}
	})

	if ps.current != 3 {
		t.Errorf("expected current 3, got %d", ps.current)
	}
}

func TestPhaseSpinner_Advance_FullMode_UpdatesMessage(t *testing.T) {
	withPersonality(t, PersonalityFull)

	ps := NewPhaseSpinner("Running pipeline", 6)

	ps.Advance("schema_extraction")

	if ps.message != "[1/6] schema_extraction" {
		t.Errorf("expected progress message, got %q", ps.message)
	}
}

func TestPhaseSpinner_SetPhase(t *testing.T) {
	withPersonality(t, PersonalityFull)

	ps := NewPhaseSpinner("Running pipeline", 6)

	ps.SetPhase(4, "security_audit")

	if ps.current != 4 {
		t.Errorf("expected current 4, got %d", ps.current)
	}
	if ps.message != "[4/6] security_audit" {
		t.Errorf("expected progress message, got %q", ps.message)
	}
}

func TestPhaseSpinner_SetPhase_MachineMode_NoMessageChange(t *testing.T) {
	withPersonality(t, PersonalityMachine)

	ps := NewPhaseSpinner("Running pipeline", 6)

	ps.SetPhase(2, "solidity_generation")

	if ps.current != 2 {
		t.Errorf("expected current 2, got %d", ps.current)
	}
	if ps.message != "Running pipeline" {
		t.Errorf("machine mode should not rewrite message, got %q", ps.message)
	}
}

// =============================================================================
// SpinnerType Constants Tests
// =============================================================================

func TestSpinnerType_Constants(t *testing.T) {
	if SpinnerDots != 0 {
		t.Errorf("expected SpinnerDots = 0, got %d", SpinnerDots)
	}
	if SpinnerCompass != 1 {
		t.Errorf("expected SpinnerCompass = 1, got %d", SpinnerCompass)
	}
	if SpinnerHex != 2 {
		t.Errorf("expected SpinnerHex = 2, got %d", SpinnerHex)
	}
}

func TestSpinnerFrames_Exists(t *testing.T) {
	spinnerTypes := []SpinnerType{SpinnerDots, SpinnerCompass, SpinnerHex}
	for _, st := range spinnerTypes {
		frames := spinnerFrames[st]
		if len(frames) == 0 {
			t.Errorf("spinner type %d has no frames", st)
		}
	}
}
