// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"testing"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// =============================================================================
// SSE Parser Tests
// =============================================================================

func TestNewSSEParser(t *testing.T) {
	parser := NewSSEParser()
	if parser == nil {
		t.Fatal("NewSSEParser() returned nil")
	}
}

// -----------------------------------------------------------------------------
// ParseLine Tests - Data Lines
// -----------------------------------------------------------------------------

func TestSSEParser_ParseLine_StatusEnvelope(t *testing.T) {
	parser := NewSSEParser()

	env, err := parser.ParseLine(`data: {"id":"e1","type":"status","created_at":1700000000000,"hash":"ab12","message":"run accepted"}`)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env == nil {
		t.Fatal("expected envelope, got nil")
	}
	if env.Id != "e1" {
		t.Errorf("expected Id 'e1', got %q", env.Id)
	}
	if env.Type != EnvelopeStatus {
		t.Errorf("expected Type %v, got %v", EnvelopeStatus, env.Type)
	}
	if env.CreatedAt != 1700000000000 {
		t.Errorf("expected CreatedAt 1700000000000, got %d", env.CreatedAt)
	}
	if env.Hash != "ab12" {
		t.Errorf("expected wire hash preserved, got %q", env.Hash)
	}
	if env.Message != "run accepted" {
		t.Errorf("expected Message 'run accepted', got %q", env.Message)
	}
}

func TestSSEParser_ParseLine_PhaseCompleteEnvelope(t *testing.T) {
	parser := NewSSEParser()

	env, err := parser.ParseLine(`data: {"id":"e2","type":"phase_complete","hash":"cd34","prev_hash":"ab12","run_id":"run-1","event":{"kind":"phase_complete","run_id":"run-1","phase":1,"phase_name":"document_processing","phase_result":{"phase":1,"name":"document_processing","status":"ok","summary":"4312 chars normalized","duration_ms":120,"artifact":"normalized.txt"}}}`)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env == nil {
		t.Fatal("expected envelope, got nil")
	}
	if env.Type != EnvelopePhaseComplete {
		t.Errorf("expected Type %v, got %v", EnvelopePhaseComplete, env.Type)
	}
	if env.PrevHash != "ab12" {
		t.Errorf("expected PrevHash 'ab12', got %q", env.PrevHash)
	}
	if env.RunID != "run-1" {
		t.Errorf("expected RunID 'run-1', got %q", env.RunID)
	}
	if env.Event == nil {
		t.Fatal("expected wrapped event")
	}
	if env.Event.Kind != datatypes.EventPhaseComplete {
		t.Errorf("expected event kind phase_complete, got %v", env.Event.Kind)
	}
	if env.Event.Phase == nil || env.Event.Phase.Artifact != "normalized.txt" {
		t.Error("expected phase result with artifact 'normalized.txt'")
	}
}

func TestSSEParser_ParseLine_ErrorEnvelope(t *testing.T) {
	parser := NewSSEParser()

	env, err := parser.ParseLine(`data: {"id":"e3","type":"error","hash":"ef56","error":"schema extraction failed"}`)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Type != EnvelopeError {
		t.Errorf("expected Type %v, got %v", EnvelopeError, env.Type)
	}
	if env.Error != "schema extraction failed" {
		t.Errorf("expected Error text preserved, got %q", env.Error)
	}
	if !env.IsTerminal() {
		t.Error("error envelope should be terminal")
	}
}

func TestSSEParser_ParseLine_DoneEnvelope(t *testing.T) {
	parser := NewSSEParser()

	env, err := parser.ParseLine(`data: {"id":"e4","type":"done","hash":"0011","prev_hash":"ef56","run_id":"run-1"}`)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Type != EnvelopeDone {
		t.Errorf("expected Type %v, got %v", EnvelopeDone, env.Type)
	}
	if !env.IsTerminal() {
		t.Error("done envelope should be terminal")
	}
}

func TestSSEParser_ParseLine_DataWithoutSpace(t *testing.T) {
	parser := NewSSEParser()

	env, err := parser.ParseLine(`data:{"id":"e5","type":"status","hash":"aa"}`)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env == nil {
		t.Fatal("expected envelope, got nil")
	}
	if env.Type != EnvelopeStatus {
		t.Errorf("expected Type %v, got %v", EnvelopeStatus, env.Type)
	}
}

// -----------------------------------------------------------------------------
// ParseLine Tests - Framing Lines
// -----------------------------------------------------------------------------

func TestSSEParser_ParseLine_EmptyLine(t *testing.T) {
	parser := NewSSEParser()

	env, err := parser.ParseLine("")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env != nil {
		t.Errorf("expected nil for empty line, got %v", env)
	}
}

func TestSSEParser_ParseLine_CommentLine(t *testing.T) {
	parser := NewSSEParser()

	env, err := parser.ParseLine(": ping")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env != nil {
		t.Errorf("expected nil for comment line, got %v", env)
	}
}

func TestSSEParser_ParseLine_EventLine(t *testing.T) {
	parser := NewSSEParser()

	env, err := parser.ParseLine("event: phase_complete")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env != nil {
		t.Errorf("expected nil for event framing line, got %v", env)
	}
}

func TestSSEParser_ParseLine_WhitespaceOnly(t *testing.T) {
	parser := NewSSEParser()

	env, err := parser.ParseLine("   \t  ")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env != nil {
		t.Errorf("expected nil for whitespace line, got %v", env)
	}
}

// -----------------------------------------------------------------------------
// ParseLine Tests - Error Cases
// -----------------------------------------------------------------------------

func TestSSEParser_ParseLine_UnexpectedLine(t *testing.T) {
	parser := NewSSEParser()

	_, err := parser.ParseLine("bare text the stream never sends")

	if err == nil {
		t.Fatal("expected error for unexpected line")
	}
}

func TestSSEParser_ParseLine_MalformedJSON(t *testing.T) {
	parser := NewSSEParser()

	_, err := parser.ParseLine(`data: {"type":"status"`)

	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestSSEParser_ParseLine_MissingType(t *testing.T) {
	parser := NewSSEParser()

	_, err := parser.ParseLine(`data: {"id":"e1","hash":"ab"}`)

	if err == nil {
		t.Fatal("expected error for envelope without type")
	}
}

// -----------------------------------------------------------------------------
// ParseRawJSON Tests
// -----------------------------------------------------------------------------

func TestSSEParser_ParseRawJSON_PreservesWireFields(t *testing.T) {
	parser := NewSSEParser()

	env, err := parser.ParseRawJSON([]byte(`{"id":"e7","type":"refinement","created_at":1700000001234,"hash":"77","prev_hash":"66","run_id":"run-9"}`))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Id != "e7" || env.Hash != "77" || env.PrevHash != "66" {
		t.Errorf("wire fields not preserved: %+v", env)
	}
	if env.RunID != "run-9" {
		t.Errorf("expected RunID 'run-9', got %q", env.RunID)
	}
	if env.CreatedAt != 1700000001234 {
		t.Errorf("expected CreatedAt preserved, got %d", env.CreatedAt)
	}
}

func TestSSEParser_ParseRawJSON_MissingType(t *testing.T) {
	parser := NewSSEParser()

	_, err := parser.ParseRawJSON([]byte(`{"id":"e8"}`))

	if err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestSSEParser_ParseRawJSON_Malformed(t *testing.T) {
	parser := NewSSEParser()

	_, err := parser.ParseRawJSON([]byte(`not json`))

	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestSSEParser_ParseRawJSON_IndexNotOnWire(t *testing.T) {
	parser := NewSSEParser()

	env, err := parser.ParseRawJSON([]byte(`{"id":"e9","type":"status","hash":"aa"}`))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Index != 0 {
		t.Errorf("Index is client-assigned, expected zero value, got %d", env.Index)
	}
}
