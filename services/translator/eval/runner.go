// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package eval runs the translation pipeline over sampled corpus records
// and aggregates the outcomes. Batches are deterministic for a given
// (corpus, sample size, seed) triple, so two runs of the same scenario are
// comparable record for record.
package eval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/solforge/services/translator/dataset"
	"github.com/AleutianAI/solforge/services/translator/datatypes"
	"github.com/AleutianAI/solforge/services/translator/pipeline"
	"github.com/AleutianAI/solforge/services/translator/storage"
)

const tracerName = "solforge.translator.eval"

// -----------------------------------------------------------------------------
// Runner Options
// -----------------------------------------------------------------------------

// Option configures an evaluation run. Options are applied in order, so
// later options override earlier ones.
type Option func(*Config)

// Config holds the effective settings of one evaluation run.
type Config struct {
	// SampleSize is the number of corpus records to evaluate.
	SampleSize int

	// Seed drives deterministic sampling.
	Seed int64

	// Concurrency bounds the worker pool.
	Concurrency int

	// OutputDir receives the JSONL results file.
	OutputDir string

	// Backend labels the capability backend for results and sinks.
	Backend string

	// TypeHint is forwarded to every translation request.
	TypeHint string

	// MaxRefinements overrides the pipeline's refinement bound per
	// request; nil keeps the orchestrator default.
	MaxRefinements *int

	// RecordTimeout bounds a single record's pipeline run.
	RecordTimeout time.Duration

	// Sink optionally receives each result as it completes.
	Sink ResultSink
}

// DefaultConfig returns the settings used when no options are given.
func DefaultConfig() *Config {
	return &Config{
		SampleSize:    10,
		Seed:          1,
		Concurrency:   4,
		OutputDir:     "eval_results",
		Backend:       "static",
		RecordTimeout: 5 * time.Minute,
	}
}

// Validate rejects configs that cannot run.
func (c *Config) Validate() error {
	if c.SampleSize < 1 {
		return fmt.Errorf("sample size must be positive, got %d", c.SampleSize)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.RecordTimeout <= 0 {
		return fmt.Errorf("record timeout must be positive, got %v", c.RecordTimeout)
	}
	if c.OutputDir == "" {
		return errors.New("output directory must not be empty")
	}
	return nil
}

// WithSampleSize sets the number of records to evaluate. Non-positive
// values are ignored.
func WithSampleSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.SampleSize = n
		}
	}
}

// WithSeed sets the sampling seed.
func WithSeed(seed int64) Option {
	return func(c *Config) {
		c.Seed = seed
	}
}

// WithConcurrency sets the worker pool size. Non-positive values are
// ignored.
func WithConcurrency(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Concurrency = n
		}
	}
}

// WithOutputDir sets the results directory. Empty values are ignored.
func WithOutputDir(dir string) Option {
	return func(c *Config) {
		if dir != "" {
			c.OutputDir = dir
		}
	}
}

// WithBackend labels the capability backend. Empty values are ignored.
func WithBackend(name string) Option {
	return func(c *Config) {
		if name != "" {
			c.Backend = name
		}
	}
}

// WithTypeHint forwards a contract type hint on every request.
func WithTypeHint(hint string) Option {
	return func(c *Config) {
		c.TypeHint = hint
	}
}

// WithMaxRefinements overrides the refinement bound per request. Negative
// values are ignored; zero disables refinement.
func WithMaxRefinements(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxRefinements = &n
		}
	}
}

// WithRecordTimeout bounds a single record's run. Non-positive values are
// ignored.
func WithRecordTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.RecordTimeout = d
		}
	}
}

// WithSink attaches a result sink. Nil values are ignored.
func WithSink(sink ResultSink) Option {
	return func(c *Config) {
		if sink != nil {
			c.Sink = sink
		}
	}
}

// FromScenario maps a scenario file onto runner options.
func FromScenario(s *Scenario) []Option {
	opts := []Option{
		WithSampleSize(s.Dataset.SampleSize),
		WithSeed(s.Dataset.Seed),
		WithConcurrency(s.Run.Concurrency),
		WithOutputDir(s.Output.Dir),
		WithBackend(s.Run.Backend),
		WithTypeHint(s.Run.TypeHint),
	}
	if s.Run.MaxRefinements != nil {
		opts = append(opts, WithMaxRefinements(*s.Run.MaxRefinements))
	}
	if s.Run.TimeoutSeconds > 0 {
		opts = append(opts, WithRecordTimeout(time.Duration(s.Run.TimeoutSeconds)*time.Second))
	}
	return opts
}

// -----------------------------------------------------------------------------
// Runner
// -----------------------------------------------------------------------------

// Summary aggregates one evaluation batch.
type Summary struct {
	RunID           string                     `json:"run_id"`
	Backend         string                     `json:"backend"`
	Total           int                        `json:"total"`
	Succeeded       int                        `json:"succeeded"`
	PartiallyFailed int                        `json:"partially_failed"`
	Failed          int                        `json:"failed"`
	BySeverity      map[datatypes.Severity]int `json:"by_severity,omitempty"`
	MeanDurationMs  int64                      `json:"mean_duration_ms"`
	WallDurationMs  int64                      `json:"wall_duration_ms"`
	ResultsPath     string                     `json:"results_path"`

	// Results carries the per-record outcomes, in sample order. The JSONL
	// file is the durable copy; the slice is for in-process rendering.
	Results []datatypes.EvalResult `json:"-"`
}

// Runner executes evaluation batches against a pipeline orchestrator.
//
// Thread Safety: Safe for concurrent use.
type Runner struct {
	orch   *pipeline.Orchestrator
	corpus *dataset.Corpus
	store  *storage.Store
	logger *slog.Logger
}

// NewRunner wires the runner's collaborators. The store must be the one
// the orchestrator writes to: per-record enrichment reads run artifacts
// back out of it.
func NewRunner(orch *pipeline.Orchestrator, corpus *dataset.Corpus, store *storage.Store) (*Runner, error) {
	if orch == nil {
		return nil, errors.New("orchestrator is required")
	}
	if corpus == nil {
		return nil, errors.New("corpus is required")
	}
	if store == nil {
		return nil, errors.New("artifact store is required")
	}
	return &Runner{
		orch:   orch,
		corpus: corpus,
		store:  store,
		logger: slog.Default(),
	}, nil
}

// SetLogger replaces the runner's logger. Nil values are ignored.
func (r *Runner) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Run executes one evaluation batch: sample deterministically, run the
// pipeline per record under a bounded worker pool, write the JSONL results
// file, and return the aggregate summary. Pipeline failures are recorded
// per result; only infrastructure problems (sampling, output writes,
// cancellation) fail the batch.
func (r *Runner) Run(ctx context.Context, runID string, opts ...Option) (*Summary, error) {
	if ctx == nil {
		return nil, errors.New("context must not be nil")
	}
	if runID == "" {
		return nil, errors.New("run id must not be empty")
	}

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "eval.Runner.Run",
		trace.WithAttributes(attribute.String("eval.run_id", runID)),
	)
	defer span.End()

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid config")
		return nil, fmt.Errorf("validating config: %w", err)
	}

	span.SetAttributes(
		attribute.Int("eval.sample_size", cfg.SampleSize),
		attribute.Int("eval.concurrency", cfg.Concurrency),
		attribute.Int64("eval.seed", cfg.Seed),
		attribute.String("eval.backend", cfg.Backend),
	)

	indices, err := r.corpus.Sample(cfg.SampleSize, cfg.Seed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sampling failed")
		return nil, fmt.Errorf("sampling corpus: %w", err)
	}

	r.logger.Info("evaluation started",
		"run_id", runID,
		"sample_size", len(indices),
		"seed", cfg.Seed,
		"concurrency", cfg.Concurrency,
		"backend", cfg.Backend)

	started := time.Now()
	results := make([]datatypes.EvalResult, len(indices))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for pos, idx := range indices {
		g.Go(func() error {
			res := r.evaluateRecord(gctx, cfg, idx)
			res.EvalRunID = runID
			res.Backend = cfg.Backend
			results[pos] = res

			if cfg.Sink != nil {
				if err := cfg.Sink.Record(gctx, &res); err != nil {
					r.logger.Warn("result sink write failed",
						"run_id", runID, "record_index", idx, "error", err)
				}
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation interrupted")
		return nil, fmt.Errorf("evaluation interrupted: %w", err)
	}

	path, err := r.writeResults(runID, cfg, results)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "writing results failed")
		return nil, err
	}

	summary := summarize(runID, cfg.Backend, results)
	summary.WallDurationMs = time.Since(started).Milliseconds()
	summary.ResultsPath = path

	r.logger.Info("evaluation finished",
		"run_id", runID,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"partially_failed", summary.PartiallyFailed,
		"failed", summary.Failed,
		"results_path", path)

	span.SetAttributes(
		attribute.Int("eval.result.succeeded", summary.Succeeded),
		attribute.Int("eval.result.failed", summary.Failed),
	)
	span.SetStatus(codes.Ok, "evaluation completed")

	return summary, nil
}

// evaluateRecord runs the pipeline for one corpus record and distills the
// outcome. Never returns an error: failures are part of the result.
func (r *Runner) evaluateRecord(ctx context.Context, cfg *Config, index int) datatypes.EvalResult {
	result := datatypes.EvalResult{RecordIndex: index}
	rec := r.corpus.Record(index)

	runCtx, cancel := context.WithTimeout(ctx, cfg.RecordTimeout)
	defer cancel()

	req := &datatypes.TranslateRequest{
		Source:         rec.UserRequirement,
		TypeHint:       cfg.TypeHint,
		MaxRefinements: cfg.MaxRefinements,
	}
	req.EnsureDefaults()

	events, err := r.orch.Run(runCtx, req)
	if err != nil {
		result.Status = datatypes.RunFailed
		result.Error = err.Error()
		return result
	}

	var final *datatypes.RunResult
	for ev := range events {
		if ev.Kind == datatypes.EventRunComplete && ev.Result != nil {
			final = ev.Result
		}
	}
	if final == nil {
		// Channel closed without a terminal event: the run was canceled.
		result.Status = datatypes.RunFailed
		result.Error = "run canceled before completion"
		return result
	}

	result.RunID = final.RunID
	result.Status = final.Status
	result.DurationMs = final.DurationMs
	result.ScaffoldValid = scaffoldOK(final)
	if final.Status == datatypes.RunFailed {
		result.Error = firstError(final)
	}

	r.enrich(ctx, &result)
	return result
}

// enrich reads the run's audit and interface artifacts back out of the
// store. Missing artifacts (failed or degraded runs) leave zero values.
func (r *Runner) enrich(ctx context.Context, result *datatypes.EvalResult) {
	if data, err := r.store.Get(ctx, result.RunID, datatypes.ArtifactAudit); err == nil {
		var report datatypes.SecurityAuditReport
		if json.Unmarshal(data, &report) == nil {
			result.OverallSeverity = report.OverallSeverity
			result.FindingCounts = report.CountByCategory()
		}
	}
	if data, err := r.store.Get(ctx, result.RunID, datatypes.ArtifactInterface); err == nil {
		var iface datatypes.InterfaceDescriptor
		if json.Unmarshal(data, &iface) == nil {
			result.InterfaceFunctions = len(iface.Functions)
		}
	}
}

// scaffoldOK reads the scaffold outcome from phase 6. The phase folds the
// syntax check into its summary, so a warning marker means invalid.
func scaffoldOK(final *datatypes.RunResult) bool {
	for _, phase := range final.Phases {
		if phase.Phase == datatypes.PhaseScaffoldGeneration {
			return phase.Status == datatypes.PhaseOK &&
				!strings.Contains(phase.Summary, "syntax warning")
		}
	}
	return false
}

// firstError returns the first phase error detail of a failed run.
func firstError(final *datatypes.RunResult) string {
	for _, phase := range final.Phases {
		if phase.ErrorDetail != "" {
			return phase.ErrorDetail
		}
	}
	return ""
}

// writeResults writes one JSON line per result to <dir>/<runID>.jsonl.
func (r *Runner) writeResults(runID string, cfg *Config, results []datatypes.EvalResult) (string, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	path := filepath.Join(cfg.OutputDir, runID+".jsonl")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating results file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i := range results {
		if err := enc.Encode(&results[i]); err != nil {
			return "", fmt.Errorf("writing result %d: %w", i, err)
		}
	}
	return path, nil
}

// summarize tallies statuses, severities, and durations.
func summarize(runID, backend string, results []datatypes.EvalResult) *Summary {
	summary := &Summary{
		RunID:      runID,
		Backend:    backend,
		Total:      len(results),
		BySeverity: make(map[datatypes.Severity]int),
		Results:    results,
	}

	var totalMs int64
	for i := range results {
		switch results[i].Status {
		case datatypes.RunSucceeded:
			summary.Succeeded++
		case datatypes.RunPartiallyFailed:
			summary.PartiallyFailed++
		default:
			summary.Failed++
		}
		if results[i].OverallSeverity != "" {
			summary.BySeverity[results[i].OverallSeverity]++
		}
		totalMs += results[i].DurationMs
	}
	if len(results) > 0 {
		summary.MeanDurationMs = totalMs / int64(len(results))
	}
	return summary
}
