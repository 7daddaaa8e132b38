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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/solforge/services/audit_engine"
	"github.com/AleutianAI/solforge/services/llm"
	"github.com/AleutianAI/solforge/services/translator/datatypes"
	"github.com/AleutianAI/solforge/services/translator/storage"
)

// rentalSource is already normalized: no CRLF, no trailing blanks, no blank
// runs. Phase 1 passes it through unchanged, which keeps the summary
// assertions exact.
const rentalSource = `Residential lease agreement between Alice and Bob.

The tenant shall pay 1200 USD monthly as rent for the apartment at
12 Harbor Lane. The landlord must return the security deposit within
30 days of termination. Either party may terminate the lease with 60
days of notice.`

// =============================================================================
// Test Fixtures
// =============================================================================

func staticCaps(t *testing.T) *llm.Capabilities {
	t.Helper()
	caps, err := llm.NewCapabilities("static")
	require.NoError(t, err)
	return caps
}

func newOrchestratorWith(t *testing.T, caps *llm.Capabilities, cfg Config) (*Orchestrator, *storage.Store) {
	t.Helper()

	store, err := storage.Open(storage.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	engine, err := audit_engine.NewEngine()
	require.NoError(t, err)

	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	orch, err := New(caps, engine, store, cfg)
	require.NoError(t, err)
	return orch, store
}

func newTestOrchestrator(t *testing.T, cfg Config) (*Orchestrator, *storage.Store) {
	t.Helper()
	return newOrchestratorWith(t, staticCaps(t), cfg)
}

// collectEvents drains the run's channel to close, failing the test if the
// stream never terminates.
func collectEvents(t *testing.T, events <-chan datatypes.Event) []datatypes.Event {
	t.Helper()

	var out []datatypes.Event
	timeout := time.After(30 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("event channel still open after %d events", len(out))
		}
	}
}

// finalResult asserts the stream terminated properly and returns its result.
func finalResult(t *testing.T, events []datatypes.Event) *datatypes.RunResult {
	t.Helper()

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Equal(t, datatypes.EventRunComplete, last.Kind)
	require.NotNil(t, last.Result)
	return last.Result
}

func eventKinds(events []datatypes.Event) []datatypes.EventKind {
	kinds := make([]datatypes.EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func intPtr(n int) *int { return &n }

// Function adapters for injecting capability failures.

type extractFunc func(context.Context, string, string) (datatypes.ContractSchema, error)

func (f extractFunc) Extract(ctx context.Context, text, typeHint string) (datatypes.ContractSchema, error) {
	return f(ctx, text, typeHint)
}

type generateFunc func(context.Context, datatypes.ContractSchema, []llm.Example) (datatypes.GeneratedCode, error)

func (f generateFunc) Generate(ctx context.Context, schema datatypes.ContractSchema, examples []llm.Example) (datatypes.GeneratedCode, error) {
	return f(ctx, schema, examples)
}

type refineFunc func(context.Context, datatypes.GeneratedCode, *datatypes.SecurityAuditReport) (datatypes.RefinementPatch, error)

func (f refineFunc) Refine(ctx context.Context, code datatypes.GeneratedCode, report *datatypes.SecurityAuditReport) (datatypes.RefinementPatch, error) {
	return f(ctx, code, report)
}

type fakeRetriever struct {
	query string
	k     int
	err   error
}

func (f *fakeRetriever) Retrieve(_ context.Context, text string, k int) ([]llm.Example, error) {
	f.query, f.k = text, k
	if f.err != nil {
		return nil, f.err
	}
	return []llm.Example{{Requirement: "pay rent monthly", Code: "contract R {}"}}, nil
}

type fakeChecker struct {
	result datatypes.CompileCheckResult
}

func (f *fakeChecker) Available() bool { return true }

func (f *fakeChecker) Check(_ context.Context, _ string) datatypes.CompileCheckResult {
	return f.result
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_RequiresCollaborators(t *testing.T) {
	store, err := storage.Open(storage.InMemoryConfig())
	require.NoError(t, err)
	defer store.Close()

	engine, err := audit_engine.NewEngine()
	require.NoError(t, err)

	caps := staticCaps(t)

	_, err = New(nil, engine, store, Config{})
	assert.ErrorContains(t, err, "capability set")

	_, err = New(&llm.Capabilities{Backend: "static"}, engine, store, Config{})
	assert.ErrorContains(t, err, "capability set")

	_, err = New(caps, nil, store, Config{})
	assert.ErrorContains(t, err, "audit engine")

	_, err = New(caps, engine, nil, Config{})
	assert.ErrorContains(t, err, "artifact store")
}

func TestNew_NormalizesConfig(t *testing.T) {
	orch, _ := newTestOrchestrator(t, Config{FewshotExamples: -1})

	assert.Equal(t, datatypes.DefaultCapabilityTimeout, orch.cfg.ExtractTimeout)
	assert.Equal(t, datatypes.DefaultCapabilityTimeout, orch.cfg.GenerateTimeout)
	assert.Zero(t, orch.cfg.FewshotExamples)
	assert.NotNil(t, orch.logger)
}

func TestRun_RejectsBadArguments(t *testing.T) {
	orch, _ := newTestOrchestrator(t, DefaultConfig())
	req := &datatypes.TranslateRequest{Source: "some agreement"}

	var nilCtx context.Context
	_, err := orch.Run(nilCtx, req)
	assert.ErrorIs(t, err, datatypes.ErrNilContext)

	_, err = orch.Run(context.Background(), nil)
	assert.ErrorContains(t, err, "request is required")

	oversized := &datatypes.TranslateRequest{Source: strings.Repeat("x", datatypes.MaxSourceBytes+1)}
	_, err = orch.Run(context.Background(), oversized)
	assert.ErrorContains(t, err, "exceeds")
}

// =============================================================================
// End-to-End: Static Backend
// =============================================================================

func TestRun_RentalEndToEnd(t *testing.T) {
	orch, store := newTestOrchestrator(t, DefaultConfig())

	events, err := orch.Run(context.Background(), &datatypes.TranslateRequest{Source: rentalSource})
	require.NoError(t, err)

	evs := collectEvents(t, events)
	result := finalResult(t, evs)

	// The rental template carries one medium raw-call finding, so the
	// stream is six phase pairs plus one (rejected) refinement iteration.
	assert.Equal(t, []datatypes.EventKind{
		datatypes.EventPhaseStarted, datatypes.EventPhaseComplete,
		datatypes.EventPhaseStarted, datatypes.EventPhaseComplete,
		datatypes.EventPhaseStarted, datatypes.EventPhaseComplete,
		datatypes.EventPhaseStarted, datatypes.EventPhaseComplete,
		datatypes.EventRefinement,
		datatypes.EventPhaseStarted, datatypes.EventPhaseComplete,
		datatypes.EventPhaseStarted, datatypes.EventPhaseComplete,
		datatypes.EventRunComplete,
	}, eventKinds(evs))
	for _, ev := range evs {
		assert.Equal(t, result.RunID, ev.RunID)
	}

	assert.Equal(t, datatypes.RunSucceeded, result.Status)
	require.Len(t, result.Phases, 6)
	for i, ph := range result.Phases {
		assert.Equal(t, datatypes.PhaseIndex(i+1), ph.Phase)
		assert.Equal(t, datatypes.PhaseOK, ph.Status, "phase %s", ph.Name)
		assert.Empty(t, ph.ErrorDetail)
	}

	assert.Equal(t, fmt.Sprintf("%d chars normalized", len(rentalSource)), result.Phases[0].Summary)
	assert.Equal(t, "rental schema: 2 parties, 2 conditions", result.Phases[1].Summary)
	assert.Contains(t, result.Phases[2].Summary, "bytes of solidity 0.8.20")
	assert.Equal(t, "1 findings, overall medium", result.Phases[3].Summary)
	assert.Equal(t, "contract RentalAgreement: 2 functions, 2 events", result.Phases[4].Summary)
	assert.Equal(t, "2 tool bindings", result.Phases[5].Summary)

	// The static refiner has no mitigation for a raw value call, so the
	// single iteration is recorded as a no-change rejection.
	require.Len(t, result.Refinements, 1)
	ref := result.Refinements[0]
	assert.Equal(t, 1, ref.Iteration)
	assert.Equal(t, datatypes.PatchModeFull, ref.Mode)
	assert.False(t, ref.Accepted)
	assert.Equal(t, "refiner proposed no change", ref.Detail)
	assert.Equal(t, datatypes.SeverityMedium, ref.SeverityAfter)

	ctx := context.Background()
	names, err := store.ListArtifacts(ctx, result.RunID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		datatypes.ArtifactNormalized,
		datatypes.ArtifactSchema,
		datatypes.ArtifactContract,
		datatypes.ArtifactAudit,
		datatypes.ArtifactInterface,
		datatypes.ArtifactToolServer,
		datatypes.ArtifactFinalCode,
		datatypes.ArtifactRunRecord,
	}, names)

	code, err := store.Get(ctx, result.RunID, datatypes.ArtifactContract)
	require.NoError(t, err)
	assert.Contains(t, string(code), "contract RentalAgreement")
	assert.Contains(t, string(code), "function payRent() external payable")

	// Rejected refinement leaves the final code identical to the original.
	final, err := store.Get(ctx, result.RunID, datatypes.ArtifactFinalCode)
	require.NoError(t, err)
	assert.Equal(t, code, final)

	raw, err := store.Get(ctx, result.RunID, datatypes.ArtifactSchema)
	require.NoError(t, err)
	var schema datatypes.ContractSchema
	require.NoError(t, json.Unmarshal(raw, &schema))
	assert.Equal(t, "rental", schema.ContractType)
	require.Len(t, schema.Parties, 2)
	assert.Equal(t, datatypes.Party{Role: "landlord", Identifier: "Alice"}, schema.Parties[0])
	assert.Equal(t, datatypes.Party{Role: "tenant", Identifier: "Bob"}, schema.Parties[1])
	assert.Equal(t, "1200", schema.Financial.Amount)
	assert.Equal(t, "USD", schema.Financial.Currency)
	assert.Equal(t, "monthly", schema.Financial.PaymentSchedule)

	raw, err = store.Get(ctx, result.RunID, datatypes.ArtifactAudit)
	require.NoError(t, err)
	var report datatypes.SecurityAuditReport
	require.NoError(t, json.Unmarshal(raw, &report))
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "SOL-CALL-001", report.Findings[0].RuleID)
	assert.Equal(t, datatypes.SeverityMedium, report.OverallSeverity)
	assert.False(t, report.Approved)

	rec, err := store.GetRunRecord(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.RunSucceeded, rec.Status)
	assert.Len(t, rec.Phases, 6)
	assert.Len(t, rec.Refinements, 1)
}

func TestRun_ConcurrentAuditAndInterface(t *testing.T) {
	orch, store := newTestOrchestrator(t, DefaultConfig())

	// Disabling refinement removes the order dependency between phases 4
	// and 5; the event stream must still read as strictly sequential.
	req := &datatypes.TranslateRequest{Source: rentalSource, MaxRefinements: intPtr(0)}
	events, err := orch.Run(context.Background(), req)
	require.NoError(t, err)

	evs := collectEvents(t, events)
	result := finalResult(t, evs)

	assert.Equal(t, []datatypes.EventKind{
		datatypes.EventPhaseStarted, datatypes.EventPhaseComplete,
		datatypes.EventPhaseStarted, datatypes.EventPhaseComplete,
		datatypes.EventPhaseStarted, datatypes.EventPhaseComplete,
		datatypes.EventPhaseStarted, datatypes.EventPhaseComplete,
		datatypes.EventPhaseStarted, datatypes.EventPhaseComplete,
		datatypes.EventPhaseStarted, datatypes.EventPhaseComplete,
		datatypes.EventRunComplete,
	}, eventKinds(evs))

	var lastPhase datatypes.PhaseIndex
	for _, ev := range evs[:len(evs)-1] {
		require.GreaterOrEqual(t, ev.PhaseIndex, lastPhase, "phase order regressed")
		lastPhase = ev.PhaseIndex
	}

	assert.Equal(t, datatypes.RunSucceeded, result.Status)
	require.Len(t, result.Phases, 6)
	assert.Equal(t, "1 findings, overall medium", result.Phases[3].Summary)
	assert.Empty(t, result.Refinements)

	_, err = store.Get(context.Background(), result.RunID, datatypes.ArtifactFinalCode)
	assert.ErrorIs(t, err, datatypes.ErrArtifactNotFound)
}

func TestRun_Deterministic(t *testing.T) {
	run := func() (*datatypes.RunResult, []byte) {
		orch, store := newTestOrchestrator(t, DefaultConfig())
		events, err := orch.Run(context.Background(), &datatypes.TranslateRequest{Source: rentalSource})
		require.NoError(t, err)
		result := finalResult(t, collectEvents(t, events))

		code, err := store.Get(context.Background(), result.RunID, datatypes.ArtifactContract)
		require.NoError(t, err)
		return result, code
	}

	first, firstCode := run()
	second, secondCode := run()

	assert.Equal(t, first.Status, second.Status)
	require.Equal(t, len(first.Phases), len(second.Phases))
	for i := range first.Phases {
		assert.Equal(t, first.Phases[i].Status, second.Phases[i].Status)
		assert.Equal(t, first.Phases[i].Summary, second.Phases[i].Summary)
	}
	assert.Equal(t, firstCode, secondCode)
}

// =============================================================================
// Degraded and Failed Runs
// =============================================================================

func TestRun_EmptyInputFailsPhaseOne(t *testing.T) {
	orch, store := newTestOrchestrator(t, DefaultConfig())

	events, err := orch.Run(context.Background(), &datatypes.TranslateRequest{Source: "   \n\n \t "})
	require.NoError(t, err)

	evs := collectEvents(t, events)
	result := finalResult(t, evs)

	assert.Equal(t, []datatypes.EventKind{
		datatypes.EventPhaseStarted, datatypes.EventPhaseComplete, datatypes.EventRunComplete,
	}, eventKinds(evs))

	assert.Equal(t, datatypes.RunFailed, result.Status)
	require.Len(t, result.Phases, 1)
	assert.Equal(t, datatypes.PhaseError, result.Phases[0].Status)
	assert.Equal(t, "input error: empty or unreadable input", result.Phases[0].ErrorDetail)
	assert.Nil(t, result.PhaseByIndex(datatypes.PhaseSchemaExtraction))

	// A dead-on-arrival run leaves no artifacts; the record alone survives
	// under its own key.
	names, err := store.ListArtifacts(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Empty(t, names)

	rec, err := store.GetRunRecord(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.RunFailed, rec.Status)
}

func TestRun_ExtractionTimeoutDegrades(t *testing.T) {
	caps := staticCaps(t)
	caps.Extractor = extractFunc(func(ctx context.Context, _, _ string) (datatypes.ContractSchema, error) {
		<-ctx.Done()
		return datatypes.ContractSchema{}, ctx.Err()
	})
	orch, store := newOrchestratorWith(t, caps, DefaultConfig())

	req := &datatypes.TranslateRequest{
		Source:           rentalSource,
		TypeHint:         "rental",
		ExtractTimeoutMs: 50,
	}
	events, err := orch.Run(context.Background(), req)
	require.NoError(t, err)

	result := finalResult(t, collectEvents(t, events))

	assert.Equal(t, datatypes.RunPartiallyFailed, result.Status)
	require.Len(t, result.Phases, 6)

	ph := result.PhaseByIndex(datatypes.PhaseSchemaExtraction)
	require.NotNil(t, ph)
	assert.Equal(t, datatypes.PhaseError, ph.Status)
	assert.Equal(t, "best-effort partial schema", ph.Summary)
	assert.Contains(t, ph.ErrorDetail, "schema extraction failed (static)")
	assert.Contains(t, ph.ErrorDetail, "deadline exceeded")
	assert.Empty(t, ph.Artifact)

	// The type hint seeds the partial schema, so generation still renders
	// the rental template and the rest of the pipeline completes.
	for _, idx := range []datatypes.PhaseIndex{
		datatypes.PhaseCodeGeneration,
		datatypes.PhaseSecurityAudit,
		datatypes.PhaseInterfaceExtraction,
		datatypes.PhaseScaffoldGeneration,
	} {
		res := result.PhaseByIndex(idx)
		require.NotNil(t, res, "phase %d missing", idx)
		assert.Equal(t, datatypes.PhaseOK, res.Status)
	}

	ctx := context.Background()
	code, err := store.Get(ctx, result.RunID, datatypes.ArtifactContract)
	require.NoError(t, err)
	assert.Contains(t, string(code), "contract RentalAgreement")

	_, err = store.Get(ctx, result.RunID, datatypes.ArtifactSchema)
	assert.ErrorIs(t, err, datatypes.ErrArtifactNotFound)
}

func TestRun_EmptySchemaIsNotAnError(t *testing.T) {
	// An extractor that finds nothing still succeeds: every schema field's
	// absence is representable, so phase 2 reports ok and the generator
	// falls back to the generic template.
	caps := staticCaps(t)
	caps.Extractor = extractFunc(func(context.Context, string, string) (datatypes.ContractSchema, error) {
		return datatypes.ContractSchema{}, nil
	})
	orch, store := newOrchestratorWith(t, caps, DefaultConfig())

	events, err := orch.Run(context.Background(), &datatypes.TranslateRequest{Source: rentalSource})
	require.NoError(t, err)

	result := finalResult(t, collectEvents(t, events))

	assert.Equal(t, datatypes.RunSucceeded, result.Status)
	require.Len(t, result.Phases, 6)
	for _, ph := range result.Phases {
		assert.Equal(t, datatypes.PhaseOK, ph.Status, "phase %d", ph.Phase)
	}

	ph := result.PhaseByIndex(datatypes.PhaseSchemaExtraction)
	require.NotNil(t, ph)
	assert.Equal(t, "unclassified schema: 0 parties, 0 conditions", ph.Summary)
	assert.Equal(t, datatypes.ArtifactSchema, ph.Artifact)

	ctx := context.Background()
	data, err := store.Get(ctx, result.RunID, datatypes.ArtifactSchema)
	require.NoError(t, err)
	var schema datatypes.ContractSchema
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Empty(t, schema.Parties)

	code, err := store.Get(ctx, result.RunID, datatypes.ArtifactContract)
	require.NoError(t, err)
	assert.Contains(t, string(code), "contract ConditionalAgreement")
}

func TestRun_GenerationFailureIsFatal(t *testing.T) {
	caps := staticCaps(t)
	caps.Generator = generateFunc(func(context.Context, datatypes.ContractSchema, []llm.Example) (datatypes.GeneratedCode, error) {
		return datatypes.GeneratedCode{}, errors.New("backend unreachable")
	})
	orch, store := newOrchestratorWith(t, caps, DefaultConfig())

	events, err := orch.Run(context.Background(), &datatypes.TranslateRequest{Source: rentalSource})
	require.NoError(t, err)

	result := finalResult(t, collectEvents(t, events))

	assert.Equal(t, datatypes.RunFailed, result.Status)
	require.Len(t, result.Phases, 3)

	ph := result.PhaseByIndex(datatypes.PhaseCodeGeneration)
	require.NotNil(t, ph)
	assert.Equal(t, datatypes.PhaseError, ph.Status)
	assert.Equal(t, "code generation failed (static): backend unreachable", ph.ErrorDetail)
	assert.Nil(t, result.PhaseByIndex(datatypes.PhaseSecurityAudit))
	assert.Nil(t, result.PhaseByIndex(datatypes.PhaseScaffoldGeneration))

	names, err := store.ListArtifacts(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		datatypes.ArtifactNormalized,
		datatypes.ArtifactSchema,
		datatypes.ArtifactRunRecord,
	}, names)
}

func TestRun_EmptyGeneratedSourceIsFatal(t *testing.T) {
	caps := staticCaps(t)
	caps.Generator = generateFunc(func(context.Context, datatypes.ContractSchema, []llm.Example) (datatypes.GeneratedCode, error) {
		return datatypes.GeneratedCode{Source: "   \n"}, nil
	})
	orch, _ := newOrchestratorWith(t, caps, DefaultConfig())

	events, err := orch.Run(context.Background(), &datatypes.TranslateRequest{Source: rentalSource})
	require.NoError(t, err)

	result := finalResult(t, collectEvents(t, events))
	assert.Equal(t, datatypes.RunFailed, result.Status)

	ph := result.PhaseByIndex(datatypes.PhaseCodeGeneration)
	require.NotNil(t, ph)
	assert.Contains(t, ph.ErrorDetail, "empty source")
}

func TestRun_CancellationStopsRun(t *testing.T) {
	extracting := make(chan struct{})
	caps := staticCaps(t)
	caps.Extractor = extractFunc(func(ctx context.Context, _, _ string) (datatypes.ContractSchema, error) {
		close(extracting)
		<-ctx.Done()
		return datatypes.ContractSchema{}, ctx.Err()
	})
	orch, store := newOrchestratorWith(t, caps, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	events, err := orch.Run(ctx, &datatypes.TranslateRequest{Source: rentalSource})
	require.NoError(t, err)

	<-extracting
	cancel()

	// The channel still closes; cancellation just truncates the stream.
	// No terminal event reaches a canceled consumer.
	evs := collectEvents(t, events)
	require.Len(t, evs, 3)
	assert.Equal(t, []datatypes.EventKind{
		datatypes.EventPhaseStarted, datatypes.EventPhaseComplete, datatypes.EventPhaseStarted,
	}, eventKinds(evs))
	runID := evs[0].RunID

	// The terminal record is still durable: persistence detaches from the
	// canceled context.
	bg := context.Background()
	rec, err := store.GetRunRecord(bg, runID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.RunFailed, rec.Status)
	require.Len(t, rec.Phases, 2)

	ph := rec.PhaseByIndex(datatypes.PhaseSchemaExtraction)
	require.NotNil(t, ph)
	assert.Equal(t, datatypes.PhaseError, ph.Status)
	assert.Equal(t, "canceled", ph.ErrorDetail)

	// Work persisted before the cancellation is never rolled back.
	data, err := store.Get(bg, runID, datatypes.ArtifactNormalized)
	require.NoError(t, err)
	assert.Equal(t, rentalSource, string(data))
}

func TestRun_StoreFailureFailsRun(t *testing.T) {
	store, err := storage.Open(storage.InMemoryConfig())
	require.NoError(t, err)

	engine, err := audit_engine.NewEngine()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	orch, err := New(staticCaps(t), engine, store, cfg)
	require.NoError(t, err)

	require.NoError(t, store.Close())

	events, err := orch.Run(context.Background(), &datatypes.TranslateRequest{Source: rentalSource})
	require.NoError(t, err)

	result := finalResult(t, collectEvents(t, events))

	// Phase 1 ran but its artifact could not be persisted; durability
	// before progression means that fails the phase, and phase 1 is fatal.
	assert.Equal(t, datatypes.RunFailed, result.Status)
	require.Len(t, result.Phases, 1)
	assert.Equal(t, datatypes.PhaseError, result.Phases[0].Status)
	assert.Contains(t, result.Phases[0].ErrorDetail, "persist artifact normalized.txt")
}

// =============================================================================
// Optional Collaborators
// =============================================================================

func TestRun_CompileCheckEvent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Checker = &fakeChecker{result: datatypes.CompileCheckResult{
		Available:       true,
		Compiler:        "solc",
		CompilerVersion: "0.8.20",
		Compiles:        true,
	}}
	orch, store := newTestOrchestrator(t, cfg)

	events, err := orch.Run(context.Background(), &datatypes.TranslateRequest{Source: rentalSource})
	require.NoError(t, err)

	evs := collectEvents(t, events)
	result := finalResult(t, evs)
	assert.Equal(t, datatypes.RunSucceeded, result.Status)

	kinds := eventKinds(evs)
	require.GreaterOrEqual(t, len(kinds), 2)
	assert.Equal(t, datatypes.EventCompileCheck, kinds[len(kinds)-2])

	checkEv := evs[len(evs)-2]
	require.NotNil(t, checkEv.CompileCheck)
	assert.True(t, checkEv.CompileCheck.Compiles)
	assert.Equal(t, "solc", checkEv.CompileCheck.Compiler)

	raw, err := store.Get(context.Background(), result.RunID, datatypes.ArtifactCompileCheck)
	require.NoError(t, err)
	var persisted datatypes.CompileCheckResult
	require.NoError(t, json.Unmarshal(raw, &persisted))
	assert.Equal(t, checkEv.CompileCheck.Compiler, persisted.Compiler)
}

func TestRun_FewshotRetrieval(t *testing.T) {
	ret := &fakeRetriever{}
	cfg := DefaultConfig()
	cfg.Retriever = ret
	cfg.FewshotExamples = 2
	orch, _ := newTestOrchestrator(t, cfg)

	events, err := orch.Run(context.Background(), &datatypes.TranslateRequest{Source: rentalSource})
	require.NoError(t, err)

	result := finalResult(t, collectEvents(t, events))
	assert.Equal(t, datatypes.RunSucceeded, result.Status)

	// The retriever sees the normalized document, not the raw request.
	assert.Equal(t, 2, ret.k)
	assert.Contains(t, ret.query, "between Alice and Bob")
}

func TestRun_FewshotRetrievalFailureTolerated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retriever = &fakeRetriever{err: errors.New("vector store down")}
	cfg.FewshotExamples = 3
	orch, _ := newTestOrchestrator(t, cfg)

	events, err := orch.Run(context.Background(), &datatypes.TranslateRequest{Source: rentalSource})
	require.NoError(t, err)

	result := finalResult(t, collectEvents(t, events))
	assert.Equal(t, datatypes.RunSucceeded, result.Status)
	ph := result.PhaseByIndex(datatypes.PhaseCodeGeneration)
	require.NotNil(t, ph)
	assert.Equal(t, datatypes.PhaseOK, ph.Status)
}
