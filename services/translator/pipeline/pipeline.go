// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline orchestrates the six-phase contract translation run.
//
// # Description
//
// A run moves a natural-language contract description through document
// processing, schema extraction, code generation, security audit, interface
// extraction, and tool-server scaffold generation. Run returns a single-
// consumer event channel: per-phase events in execution order, a terminal
// run_complete event wrapping the RunResult, then channel close.
//
// Phases 1 (document processing) and 3 (code generation) are fatal; the
// other four record their error and the run continues. Each phase's artifact
// is persisted before the next phase starts, so a crash or cancellation
// never loses completed work. Multiple runs execute fully in parallel; the
// only shared state is the append-only store keyed by run ID.
//
// # Observability
//
// Every run gets a root span and every phase a child span on the
// "translator.pipeline" tracer. Phase durations, error codes, finding
// counts, and capability latencies are recorded through the
// observability package when metrics are initialized.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/solforge/services/audit_engine"
	"github.com/AleutianAI/solforge/services/llm"
	"github.com/AleutianAI/solforge/services/translator/datatypes"
	"github.com/AleutianAI/solforge/services/translator/observability"
	"github.com/AleutianAI/solforge/services/translator/scaffold"
	"github.com/AleutianAI/solforge/services/translator/solidity"
	"github.com/AleutianAI/solforge/services/translator/storage"
)

// tracer is the package tracer for run and phase spans.
var tracer = otel.Tracer("translator.pipeline")

// eventBuffer is the event channel capacity. Emission blocks once the
// consumer falls this far behind, which keeps the pipeline from racing
// ahead of a slow stream writer unboundedly.
const eventBuffer = 16

// defaultFewshotExamples is how many retrieved examples accompany a
// generation prompt when a retriever is configured.
const defaultFewshotExamples = 3

// ExampleRetriever supplies (requirement, code) pairs for generation
// prompts. Implementations may be backed by a vector store; a nil retriever
// means prompts carry no examples.
type ExampleRetriever interface {
	Retrieve(ctx context.Context, text string, k int) ([]llm.Example, error)
}

// CompileChecker runs the advisory Solidity compile check. The result is
// informational only and never affects run status.
type CompileChecker interface {
	Available() bool
	Check(ctx context.Context, source string) datatypes.CompileCheckResult
}

// Config carries the orchestrator's tunables and optional collaborators.
type Config struct {
	// ExtractTimeout bounds the phase-2 capability call when the request
	// carries no override. Zero means datatypes.DefaultCapabilityTimeout.
	ExtractTimeout time.Duration

	// GenerateTimeout bounds the phase-3 capability call, same fallback.
	GenerateTimeout time.Duration

	// MaxRefinements bounds the audit-driven refinement loop when the
	// request carries no override. Zero disables refinement, which also
	// lets phases 4 and 5 run concurrently.
	MaxRefinements int

	// FewshotExamples is how many retrieved examples to request per
	// generation prompt. Only meaningful with a Retriever.
	FewshotExamples int

	// Retriever is the optional few-shot example source.
	Retriever ExampleRetriever

	// Checker is the optional advisory compile checker.
	Checker CompileChecker

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: 120s capability timeouts,
// refinement capped at 2 iterations, 3 few-shot examples when a retriever
// is configured.
func DefaultConfig() Config {
	return Config{
		ExtractTimeout:  datatypes.DefaultCapabilityTimeout,
		GenerateTimeout: datatypes.DefaultCapabilityTimeout,
		MaxRefinements:  datatypes.DefaultMaxRefinements,
		FewshotExamples: defaultFewshotExamples,
	}
}

// Orchestrator executes translation runs.
//
// Thread Safety: safe for concurrent Run calls; runs share no mutable state.
type Orchestrator struct {
	caps      *llm.Capabilities
	engine    *audit_engine.Engine
	store     *storage.Store
	cfg       Config
	retriever ExampleRetriever
	checker   CompileChecker
	logger    *slog.Logger
}

// New builds an orchestrator. The capability set, audit engine, and store
// are required; Config collaborators are optional.
func New(caps *llm.Capabilities, engine *audit_engine.Engine, store *storage.Store, cfg Config) (*Orchestrator, error) {
	if caps == nil || caps.Extractor == nil || caps.Generator == nil {
		return nil, errors.New("capability set with extractor and generator is required")
	}
	if engine == nil {
		return nil, errors.New("audit engine is required")
	}
	if store == nil {
		return nil, errors.New("artifact store is required")
	}

	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = datatypes.DefaultCapabilityTimeout
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = datatypes.DefaultCapabilityTimeout
	}
	if cfg.FewshotExamples < 0 {
		cfg.FewshotExamples = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		caps:      caps,
		engine:    engine,
		store:     store,
		cfg:       cfg,
		retriever: cfg.Retriever,
		checker:   cfg.Checker,
		logger:    logger,
	}, nil
}

// Run starts a translation run and returns its event channel.
//
// The channel is single-consumer and closed after the terminal run_complete
// event. Cancelling ctx stops event emission promptly and marks the run
// failed; artifacts already persisted are never deleted. An empty source is
// not rejected here: emptiness is a phase-1 outcome (InputError), so the
// caller still receives a streamed, recorded run. Oversized payloads are
// rejected before any phase executes.
func (o *Orchestrator) Run(ctx context.Context, req *datatypes.TranslateRequest) (<-chan datatypes.Event, error) {
	if ctx == nil {
		return nil, datatypes.ErrNilContext
	}
	if req == nil {
		return nil, errors.New("request is required")
	}
	if len(req.Source) > datatypes.MaxSourceBytes {
		return nil, fmt.Errorf("source exceeds %d bytes", datatypes.MaxSourceBytes)
	}

	req.EnsureDefaults()
	run := datatypes.NewTranslationRun(req)

	events := make(chan datatypes.Event, eventBuffer)
	go o.execute(ctx, run, req, events)
	return events, nil
}

// runState is the in-flight data handed from phase to phase. Phases 4 and 5
// touch disjoint fields, which is what lets them run concurrently.
type runState struct {
	normalized string
	sections   []string
	schema     datatypes.ContractSchema
	code       datatypes.GeneratedCode
	report     *datatypes.SecurityAuditReport
	iface      datatypes.InterfaceDescriptor
}

// execute drives one run to its terminal state and closes the event channel.
func (o *Orchestrator) execute(ctx context.Context, run *datatypes.TranslationRun, req *datatypes.TranslateRequest, events chan<- datatypes.Event) {
	defer close(events)

	ctx, span := tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("run.type_hint", run.TypeHint),
		attribute.Int("run.source_bytes", len(run.Source)),
	))
	defer span.End()

	if m := observability.DefaultMetrics; m != nil {
		m.RunStarted()
		defer m.RunEnded()
	}

	started := time.Now()
	run.Status = datatypes.RunRunning
	o.logger.Info("translation run started",
		"run_id", run.ID,
		"type_hint", run.TypeHint,
		"source_bytes", len(run.Source))

	result := &datatypes.RunResult{RunID: run.ID, StartedAt: started.UTC()}
	o.runPhases(ctx, run, req, events, result)

	status := o.finish(ctx, run, result, events, started)
	span.SetAttributes(attribute.String("run.status", string(status)))
	if status == datatypes.RunFailed {
		span.SetStatus(codes.Error, "run failed")
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

// runPhases executes the six phases in order, appending each PhaseResult to
// the run result. It returns early on a fatal phase error or cancellation;
// the caller finalizes either way.
func (o *Orchestrator) runPhases(ctx context.Context, run *datatypes.TranslationRun, req *datatypes.TranslateRequest, events chan<- datatypes.Event, result *datatypes.RunResult) {
	st := &runState{}

	// Phase 1: document processing. Fatal on empty or unreadable input.
	res := o.runPhase(ctx, run, events, datatypes.PhaseDocumentProcessing, func(ctx context.Context) (phaseOutput, error) {
		return o.processDocument(ctx, run, st)
	})
	result.Phases = append(result.Phases, res)
	if res.Status == datatypes.PhaseError || ctx.Err() != nil {
		return
	}

	// Phase 2: schema extraction. Non-fatal; a failure leaves a
	// best-effort partial schema for downstream phases.
	res = o.runPhase(ctx, run, events, datatypes.PhaseSchemaExtraction, func(ctx context.Context) (phaseOutput, error) {
		return o.extractSchema(ctx, req, st)
	})
	result.Phases = append(result.Phases, res)
	if ctx.Err() != nil {
		return
	}

	// Phase 3: code generation. Fatal; phases 4-6 need source to work on.
	res = o.runPhase(ctx, run, events, datatypes.PhaseCodeGeneration, func(ctx context.Context) (phaseOutput, error) {
		return o.generateCode(ctx, req, st)
	})
	result.Phases = append(result.Phases, res)
	if res.Status == datatypes.PhaseError || ctx.Err() != nil {
		return
	}

	// Phases 4 and 5 have no mutual order dependency. With refinement
	// disabled they run concurrently on the same generated code; with it
	// enabled, interface extraction waits for the loop to settle so it
	// sees the final source.
	bound := req.RefinementBound(o.cfg.MaxRefinements)
	if bound <= 0 {
		auditRes, ifaceRes := o.runAuditAndInterface(ctx, run, events, st)
		result.Phases = append(result.Phases, auditRes, ifaceRes)
	} else {
		res = o.runPhase(ctx, run, events, datatypes.PhaseSecurityAudit, func(ctx context.Context) (phaseOutput, error) {
			return o.auditCode(ctx, st)
		})
		result.Phases = append(result.Phases, res)
		if ctx.Err() != nil {
			return
		}
		if res.Status == datatypes.PhaseOK {
			result.Refinements = o.refineLoop(ctx, run, events, st, bound)
		}
		if ctx.Err() != nil {
			return
		}

		res = o.runPhase(ctx, run, events, datatypes.PhaseInterfaceExtraction, func(ctx context.Context) (phaseOutput, error) {
			return o.extractContractInterface(ctx, st)
		})
		result.Phases = append(result.Phases, res)
	}
	if ctx.Err() != nil {
		return
	}

	// Phase 6: scaffold generation. Non-fatal; an empty interface yields
	// an empty scaffold.
	res = o.runPhase(ctx, run, events, datatypes.PhaseScaffoldGeneration, func(ctx context.Context) (phaseOutput, error) {
		return o.generateScaffold(ctx, st)
	})
	result.Phases = append(result.Phases, res)

	o.compileCheck(ctx, run, events, st)
}

// phaseOutput is what a phase body hands back on success: a one-line
// summary, plus the artifact to persist. A body may set summary alongside
// an error to describe its degraded output.
type phaseOutput struct {
	summary  string
	artifact string
	data     []byte
}

// runPhase wraps one phase execution with its started/complete events.
func (o *Orchestrator) runPhase(ctx context.Context, run *datatypes.TranslationRun, events chan<- datatypes.Event, phase datatypes.PhaseIndex, body func(context.Context) (phaseOutput, error)) datatypes.PhaseResult {
	run.CurrentPhase = phase
	o.emit(ctx, events, datatypes.NewPhaseStartedEvent(run.ID, phase))
	res := o.executePhase(ctx, run.ID, phase, body)
	o.emit(ctx, events, datatypes.NewPhaseCompleteEvent(run.ID, res))
	return res
}

// executePhase runs one phase body inside its span, persists the artifact,
// and assembles the PhaseResult. Artifact persistence failures count as
// phase failures: durability before progression is the contract.
func (o *Orchestrator) executePhase(ctx context.Context, runID string, phase datatypes.PhaseIndex, body func(context.Context) (phaseOutput, error)) datatypes.PhaseResult {
	ctx, span := tracer.Start(ctx, "pipeline.phase."+phase.String(), trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("phase.index", int(phase)),
	))
	defer span.End()

	start := time.Now()
	out, err := body(ctx)
	if err == nil && out.artifact != "" {
		if perr := o.store.Put(ctx, runID, out.artifact, out.data); perr != nil {
			err = &persistError{artifact: out.artifact, cause: perr}
		}
	}
	duration := time.Since(start)

	res := datatypes.PhaseResult{
		Phase:      phase,
		Name:       phase.String(),
		Summary:    out.summary,
		DurationMs: duration.Milliseconds(),
	}
	if m := observability.DefaultMetrics; m != nil {
		m.RecordPhase(phase.String(), duration.Seconds())
	}

	if err != nil {
		res.Status = datatypes.PhaseError
		res.ErrorDetail = err.Error()
		if errors.Is(err, context.Canceled) {
			res.ErrorDetail = "canceled"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if m := observability.DefaultMetrics; m != nil {
			m.RecordPhaseError(phase.String(), errorCode(err))
		}
		o.logger.Warn("phase failed",
			"run_id", runID,
			"phase", phase.String(),
			"duration_ms", res.DurationMs,
			"error", err)
		return res
	}

	res.Status = datatypes.PhaseOK
	res.Artifact = out.artifact
	span.SetStatus(codes.Ok, "")
	o.logger.Info("phase complete",
		"run_id", runID,
		"phase", phase.String(),
		"duration_ms", res.DurationMs,
		"summary", out.summary)
	return res
}

// runAuditAndInterface executes phases 4 and 5 concurrently, then replays
// their events in canonical order so the stream is indistinguishable from
// sequential execution. Both artifacts are persisted before phase 6 starts.
func (o *Orchestrator) runAuditAndInterface(ctx context.Context, run *datatypes.TranslationRun, events chan<- datatypes.Event, st *runState) (datatypes.PhaseResult, datatypes.PhaseResult) {
	var auditRes, ifaceRes datatypes.PhaseResult

	run.CurrentPhase = datatypes.PhaseSecurityAudit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		auditRes = o.executePhase(gctx, run.ID, datatypes.PhaseSecurityAudit, func(ctx context.Context) (phaseOutput, error) {
			return o.auditCode(ctx, st)
		})
		return nil
	})
	g.Go(func() error {
		ifaceRes = o.executePhase(gctx, run.ID, datatypes.PhaseInterfaceExtraction, func(ctx context.Context) (phaseOutput, error) {
			return o.extractContractInterface(ctx, st)
		})
		return nil
	})
	// Bodies never return errors; Wait is the join point.
	_ = g.Wait()

	o.emit(ctx, events, datatypes.NewPhaseStartedEvent(run.ID, datatypes.PhaseSecurityAudit))
	o.emit(ctx, events, datatypes.NewPhaseCompleteEvent(run.ID, auditRes))
	run.CurrentPhase = datatypes.PhaseInterfaceExtraction
	o.emit(ctx, events, datatypes.NewPhaseStartedEvent(run.ID, datatypes.PhaseInterfaceExtraction))
	o.emit(ctx, events, datatypes.NewPhaseCompleteEvent(run.ID, ifaceRes))

	return auditRes, ifaceRes
}

// =============================================================================
// Phase Bodies
// =============================================================================

// processDocument is phase 1: normalize the raw text and derive the prompt
// sections. A sectioning failure degrades to the whole document.
func (o *Orchestrator) processDocument(_ context.Context, run *datatypes.TranslationRun, st *runState) (phaseOutput, error) {
	normalized, err := NormalizeText(run.Source)
	if err != nil {
		return phaseOutput{}, err
	}

	sections, err := SectionText(normalized)
	if err != nil {
		o.logger.Warn("sectioning failed, using whole document",
			"run_id", run.ID, "error", err)
		sections = []string{normalized}
	}

	st.normalized = normalized
	st.sections = sections
	return phaseOutput{
		summary:  fmt.Sprintf("%d chars normalized", len(normalized)),
		artifact: datatypes.ArtifactNormalized,
		data:     []byte(normalized),
	}, nil
}

// extractSchema is phase 2: call the extraction capability under its
// timeout and validate the output. On failure the type hint seeds a
// best-effort partial schema so generation still has something to render.
func (o *Orchestrator) extractSchema(ctx context.Context, req *datatypes.TranslateRequest, st *runState) (phaseOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, req.ExtractTimeout(o.cfg.ExtractTimeout))
	defer cancel()

	start := time.Now()
	schema, err := o.caps.Extractor.Extract(ctx, PromptWindow(st.sections, 0), req.TypeHint)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordCapability("extract", o.caps.Backend, time.Since(start).Seconds())
	}
	if err == nil {
		if verr := schema.Validate(); verr != nil {
			err = fmt.Errorf("schema rejected: %w", verr)
		}
	}
	if err != nil {
		st.schema = datatypes.ContractSchema{ContractType: strings.ToLower(strings.TrimSpace(req.TypeHint))}
		var xerr *datatypes.ExtractionError
		if !errors.As(err, &xerr) {
			err = &datatypes.ExtractionError{Backend: o.caps.Backend, Cause: err}
		}
		return phaseOutput{summary: "best-effort partial schema"}, err
	}

	st.schema = schema
	data, merr := json.MarshalIndent(schema, "", "  ")
	if merr != nil {
		return phaseOutput{}, &datatypes.ExtractionError{Backend: o.caps.Backend, Cause: merr}
	}
	return phaseOutput{
		summary:  schemaSummary(&schema),
		artifact: datatypes.ArtifactSchema,
		data:     data,
	}, nil
}

// generateCode is phase 3: gather few-shot examples, then call the
// generation capability under its timeout. Empty output is a failure; the
// run has nothing to audit or scaffold without source.
func (o *Orchestrator) generateCode(ctx context.Context, req *datatypes.TranslateRequest, st *runState) (phaseOutput, error) {
	examples := o.fewshotExamples(ctx, st)

	ctx, cancel := context.WithTimeout(ctx, req.GenerateTimeout(o.cfg.GenerateTimeout))
	defer cancel()

	start := time.Now()
	code, err := o.caps.Generator.Generate(ctx, st.schema, examples)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordCapability("generate", o.caps.Backend, time.Since(start).Seconds())
	}
	if err != nil {
		var gerr *datatypes.GenerationError
		if !errors.As(err, &gerr) {
			err = &datatypes.GenerationError{Backend: o.caps.Backend, Cause: err}
		}
		return phaseOutput{}, err
	}
	if strings.TrimSpace(code.Source) == "" {
		return phaseOutput{}, &datatypes.GenerationError{Backend: o.caps.Backend, Cause: errors.New("empty source")}
	}

	st.code = code
	return phaseOutput{
		summary:  codeSummary(&code),
		artifact: datatypes.ArtifactContract,
		data:     []byte(code.Source),
	}, nil
}

// auditCode is phase 4: scan the generated source. Unscannable code is a
// non-fatal phase error; a clean scan is a valid empty report.
func (o *Orchestrator) auditCode(_ context.Context, st *runState) (phaseOutput, error) {
	report, err := o.engine.Scan(st.code.Source)
	if err != nil {
		return phaseOutput{summary: "audit unavailable"}, err
	}

	st.report = report
	if m := observability.DefaultMetrics; m != nil {
		for _, f := range report.Findings {
			m.RecordFinding(string(f.Category), string(f.Severity))
		}
	}

	data, merr := json.MarshalIndent(report, "", "  ")
	if merr != nil {
		return phaseOutput{}, fmt.Errorf("marshal audit report: %w", merr)
	}
	return phaseOutput{
		summary:  fmt.Sprintf("%d findings, overall %s", len(report.Findings), report.OverallSeverity),
		artifact: datatypes.ArtifactAudit,
		data:     data,
	}, nil
}

// extractContractInterface is phase 5: parse the callable surface out of
// the final source. A parse failure leaves an empty interface, non-fatal.
func (o *Orchestrator) extractContractInterface(_ context.Context, st *runState) (phaseOutput, error) {
	iface, err := solidity.ExtractInterface(st.code.Source)
	if err != nil {
		st.iface = datatypes.InterfaceDescriptor{}
		return phaseOutput{summary: "empty interface"}, err
	}

	st.iface = iface
	data, merr := json.MarshalIndent(iface, "", "  ")
	if merr != nil {
		return phaseOutput{}, fmt.Errorf("marshal interface: %w", merr)
	}
	return phaseOutput{
		summary:  ifaceSummary(&iface),
		artifact: datatypes.ArtifactInterface,
		data:     data,
	}, nil
}

// generateScaffold is phase 6: render the Python tool server from the
// interface and schema.
func (o *Orchestrator) generateScaffold(ctx context.Context, st *runState) (phaseOutput, error) {
	scaf, err := scaffold.Generate(ctx, &st.iface, &st.schema)
	if err != nil {
		return phaseOutput{summary: "empty scaffold"}, err
	}

	return phaseOutput{
		summary:  scaffoldSummary(&scaf),
		artifact: datatypes.ArtifactToolServer,
		data:     []byte(scaf.Source),
	}, nil
}

// compileCheck runs the advisory solc check over the final code, persists
// the outcome, and emits a compile_check event. Skipped when no checker is
// configured, no compiler is on the host, or the run produced no code.
func (o *Orchestrator) compileCheck(ctx context.Context, run *datatypes.TranslationRun, events chan<- datatypes.Event, st *runState) {
	if o.checker == nil || !o.checker.Available() {
		return
	}
	if ctx.Err() != nil || strings.TrimSpace(st.code.Source) == "" {
		return
	}

	result := o.checker.Check(ctx, st.code.Source)
	if data, err := json.MarshalIndent(result, "", "  "); err == nil {
		if perr := o.store.Put(ctx, run.ID, datatypes.ArtifactCompileCheck, data); perr != nil {
			o.logger.Warn("persist compile check failed", "run_id", run.ID, "error", perr)
		}
	}
	o.logger.Info("compile check",
		"run_id", run.ID,
		"compiler", result.Compiler,
		"compiles", result.Compiles,
		"warnings", len(result.Warnings),
		"errors", len(result.Errors))
	o.emit(ctx, events, datatypes.NewCompileCheckEvent(run.ID, result))
}

// fewshotExamples retrieves generation examples, degrading to none on any
// failure. Retrieval is best-effort by design.
func (o *Orchestrator) fewshotExamples(ctx context.Context, st *runState) []llm.Example {
	if o.retriever == nil || o.cfg.FewshotExamples <= 0 {
		return nil
	}

	examples, err := o.retriever.Retrieve(ctx, PromptWindow(st.sections, 0), o.cfg.FewshotExamples)
	if err != nil {
		o.logger.Warn("fewshot retrieval failed, generating without examples", "error", err)
		return nil
	}
	return examples
}

// =============================================================================
// Termination
// =============================================================================

// finish computes the terminal status, persists the run record, and emits
// the run_complete event. Persistence uses a detached context: a canceled
// run must still leave its record behind, and already-written artifacts are
// never deleted.
func (o *Orchestrator) finish(ctx context.Context, run *datatypes.TranslationRun, result *datatypes.RunResult, events chan<- datatypes.Event, started time.Time) datatypes.RunStatus {
	finished := time.Now()
	result.FinishedAt = finished.UTC()
	result.DurationMs = finished.Sub(started).Milliseconds()
	result.Status = terminalStatus(result, ctx.Err() != nil)
	run.Status = result.Status

	persistCtx := context.WithoutCancel(ctx)
	// run.json accompanies the other artifacts. A run that produced none
	// keeps an empty artifact keyspace; the record is still durable under
	// its own key below.
	if hasArtifacts(result) {
		if data, err := json.Marshal(result); err == nil {
			if perr := o.store.Put(persistCtx, run.ID, datatypes.ArtifactRunRecord, data); perr != nil {
				o.logger.Error("persist run record artifact failed", "run_id", run.ID, "error", perr)
			}
		}
	}
	if err := o.store.PutRunRecord(persistCtx, result); err != nil {
		o.logger.Error("persist run record failed", "run_id", run.ID, "error", err)
	}

	if m := observability.DefaultMetrics; m != nil {
		m.RecordRun(string(result.Status))
		m.RecordRefinements(len(result.Refinements))
	}
	o.logger.Info("translation run finished",
		"run_id", run.ID,
		"status", string(result.Status),
		"phases", len(result.Phases),
		"refinements", len(result.Refinements),
		"duration_ms", result.DurationMs)

	o.emit(ctx, events, datatypes.NewRunCompleteEvent(*result))
	return result.Status
}

// hasArtifacts reports whether any phase wrote into the run's artifact
// keyspace.
func hasArtifacts(result *datatypes.RunResult) bool {
	for _, ph := range result.Phases {
		if ph.Artifact != "" {
			return true
		}
	}
	return false
}

// terminalStatus maps the recorded phases to the run's end state. A fatal
// phase error (1 or 3) or cancellation fails the run; any other phase error
// degrades it to partially_failed.
func terminalStatus(result *datatypes.RunResult, canceled bool) datatypes.RunStatus {
	if canceled {
		return datatypes.RunFailed
	}

	status := datatypes.RunSucceeded
	for _, ph := range result.Phases {
		if ph.Status != datatypes.PhaseError {
			continue
		}
		if ph.Phase == datatypes.PhaseDocumentProcessing || ph.Phase == datatypes.PhaseCodeGeneration {
			return datatypes.RunFailed
		}
		status = datatypes.RunPartiallyFailed
	}
	return status
}

// emit sends one event unless the consumer's context is gone. Returns false
// when the event was dropped due to cancellation.
func (o *Orchestrator) emit(ctx context.Context, events chan<- datatypes.Event, ev datatypes.Event) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// =============================================================================
// Error Mapping and Summaries
// =============================================================================

// persistError marks an artifact write failure so it maps to the storage
// error code rather than the phase's own taxonomy.
type persistError struct {
	artifact string
	cause    error
}

func (e *persistError) Error() string {
	return "persist artifact " + e.artifact + ": " + e.cause.Error()
}

func (e *persistError) Unwrap() error {
	return e.cause
}

// errorCode maps a phase error to its metrics label. Context outcomes win
// over the typed taxonomy so a timed-out extraction counts as a timeout.
func errorCode(err error) observability.ErrorCode {
	switch {
	case errors.Is(err, context.Canceled):
		return observability.ErrorCodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return observability.ErrorCodeTimeout
	}

	var (
		inputErr     *datatypes.InputError
		extractErr   *datatypes.ExtractionError
		generateErr  *datatypes.GenerationError
		auditErr     *datatypes.AuditUnavailableError
		interfaceErr *datatypes.InterfaceParseError
		persistErr   *persistError
	)
	switch {
	case errors.As(err, &inputErr):
		return observability.ErrorCodeInput
	case errors.As(err, &extractErr):
		return observability.ErrorCodeExtraction
	case errors.As(err, &generateErr):
		return observability.ErrorCodeGeneration
	case errors.As(err, &auditErr):
		return observability.ErrorCodeAudit
	case errors.As(err, &interfaceErr):
		return observability.ErrorCodeInterface
	case errors.As(err, &persistErr):
		return observability.ErrorCodeStorage
	default:
		return observability.ErrorCodeInternal
	}
}

func schemaSummary(s *datatypes.ContractSchema) string {
	ctype := s.ContractType
	if ctype == "" {
		ctype = "unclassified"
	}
	return fmt.Sprintf("%s schema: %d parties, %d conditions", ctype, len(s.Parties), len(s.Conditions))
}

func codeSummary(c *datatypes.GeneratedCode) string {
	if c.SolidityVersion == "" {
		return fmt.Sprintf("%d bytes of solidity", len(c.Source))
	}
	return fmt.Sprintf("%d bytes of solidity %s", len(c.Source), c.SolidityVersion)
}

func ifaceSummary(d *datatypes.InterfaceDescriptor) string {
	return fmt.Sprintf("%s %s: %d functions, %d events",
		d.Kind, d.ContractName, len(d.Functions), len(d.Events))
}

func scaffoldSummary(s *datatypes.ToolServerScaffold) string {
	if !s.SyntaxValid && s.SyntaxWarning != "" {
		return fmt.Sprintf("%d tool bindings (syntax warning: %s)", s.ToolCount, s.SyntaxWarning)
	}
	return fmt.Sprintf("%d tool bindings", s.ToolCount)
}
