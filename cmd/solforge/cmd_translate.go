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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/solforge/pkg/ux"
	"github.com/AleutianAI/solforge/services/translator/datatypes"
	"github.com/AleutianAI/solforge/services/translator/pipeline"
	"github.com/AleutianAI/solforge/services/translator/storage"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// runTranslate is the entry point for `solforge translate [file]`.
//
// With a file argument (or piped stdin) it performs one translation run.
// With no argument on a TTY it starts an interactive session that runs
// one translation per submitted contract file path.
func runTranslate(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case len(args) > 0:
		runTranslateOnce(ctx, args[0])
	case !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()):
		runTranslateOnce(ctx, "-")
	default:
		runTranslateSession(ctx)
	}
}

// runTranslateOnce executes a single translation and exits non-zero when
// the run fails outright. Partial failures exit zero; the rendered phase
// output carries the detail.
func runTranslateOnce(ctx context.Context, sourcePath string) {
	source, err := readSource(sourcePath)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}

	result, err := translateSource(ctx, source, "")
	if err != nil {
		ux.Error(err.Error())
		if body := ExtractBody(err); body != "" {
			fmt.Fprintln(os.Stderr, body)
		}
		os.Exit(1)
	}
	if result != nil && result.Status == datatypes.RunFailed {
		os.Exit(1)
	}
}

// translateSource runs one translation through the configured mode and
// returns the terminal run result, nil when the stream ended without one.
// A non-empty requestID becomes the run ID; empty lets the pipeline or
// service assign one.
func translateSource(ctx context.Context, source, requestID string) (*datatypes.RunResult, error) {
	if translateServer != "" {
		return translateViaServer(ctx, source, requestID)
	}
	return translateLocally(ctx, source, requestID)
}

// =============================================================================
// Local Mode
// =============================================================================

// translateLocally runs the pipeline in-process against the local store,
// rendering events as they arrive and exporting artifacts afterwards.
func translateLocally(ctx context.Context, source, requestID string) (*datatypes.RunResult, error) {
	store, err := openArtifactStore(resolveStorePath(translateStorePath))
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Warn("Failed to close artifact store", "error", closeErr)
		}
	}()

	orch, err := buildOrchestrator(translateBackend, translateRulesPath, store)
	if err != nil {
		return nil, err
	}

	req := &datatypes.TranslateRequest{RequestID: requestID, Source: source, TypeHint: translateTypeHint}
	if translateMaxRefinements >= 0 {
		req.MaxRefinements = &translateMaxRefinements
	}

	result, err := runPipeline(ctx, orch, req, ux.NewRunRenderer())
	if err != nil || result == nil {
		return result, err
	}

	if translateOutputDir != "" {
		dir := filepath.Join(translateOutputDir, result.RunID)
		count, exportErr := exportArtifacts(ctx, store, result.RunID, dir)
		if exportErr != nil {
			ux.Warning(fmt.Sprintf("Artifact export incomplete: %v", exportErr))
		} else if count > 0 {
			ux.Info(fmt.Sprintf("Saved %d artifacts to %s", count, dir))
		}
	}
	return result, nil
}

// runPipeline drives one orchestrator run, dispatching each event to the
// renderer. Returns the terminal RunResult from the run_complete event.
func runPipeline(ctx context.Context, orch *pipeline.Orchestrator, req *datatypes.TranslateRequest, renderer ux.RunRenderer) (*datatypes.RunResult, error) {
	events, err := orch.Run(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("pipeline rejected the request: %w", err)
	}
	defer renderer.Finalize()

	renderer.OnStatus(ctx, fmt.Sprintf("run %s accepted", req.RequestID))

	var result *datatypes.RunResult
	for event := range events {
		switch event.Kind {
		case datatypes.EventPhaseStarted:
			renderer.OnPhaseStarted(ctx, event.PhaseIndex, event.PhaseName)
		case datatypes.EventPhaseComplete:
			renderer.OnPhaseComplete(ctx, event.Phase)
		case datatypes.EventRefinement:
			renderer.OnRefinement(ctx, event.Refinement)
		case datatypes.EventCompileCheck:
			renderer.OnCompileCheck(ctx, event.CompileCheck)
		case datatypes.EventRunComplete:
			result = event.Result
			renderer.OnRunComplete(ctx, event.Result)
		}
	}
	return result, nil
}

// =============================================================================
// Server Mode
// =============================================================================

// translateViaServer streams one run from a running translator service
// over SSE, verifying the event hash chain client-side.
func translateViaServer(ctx context.Context, source, requestID string) (*datatypes.RunResult, error) {
	req := datatypes.TranslateRequest{RequestID: requestID, Source: source, TypeHint: translateTypeHint}
	if translateMaxRefinements >= 0 {
		req.MaxRefinements = &translateMaxRefinements
	}
	body, err := json.Marshal(&req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := strings.TrimSuffix(translateServer, "/") + "/v1/translate"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	// No client timeout: a run legitimately takes minutes and the SSE
	// keep-alives hold the connection open. Cancellation comes from ctx.
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, NewServerError("POST /v1/translate", -1, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, NewServerError("POST /v1/translate", resp.StatusCode, string(respBody),
			errors.New(http.StatusText(resp.StatusCode)))
	}

	streamResult, err := ux.ProcessRunStream(ctx, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("run stream failed: %w", err)
	}
	if streamResult.Error != "" {
		return nil, fmt.Errorf("run failed: %s", streamResult.Error)
	}
	if streamResult.Integrity != nil && !streamResult.Integrity.IntegrityVerified {
		ux.Warning("Event chain verification failed; treat these results as untrusted")
	}
	return streamResult.Result, nil
}

// =============================================================================
// Interactive Session
// =============================================================================

// runTranslateSession runs the interactive loop: one translation per
// submitted contract file path, with session stats at the end.
func runTranslateSession(ctx context.Context) {
	ui := ux.NewTranslateSessionUI()
	ui.Header(ux.SessionConfig{
		ServerURL: translateServer,
		Backend:   translateBackend,
		TypeHint:  translateTypeHint,
		OutputDir: translateOutputDir,
	})

	reader := NewInputReader(ui.Prompt(), 50)
	stats := ux.SessionStats{}
	sessionStart := time.Now()
	var totalRunTime time.Duration

	for {
		line, err := reader.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				ui.Error(err)
			}
			break
		}
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		source, err := readSource(line)
		if err != nil {
			ui.Error(err)
			continue
		}

		requestID := uuid.New().String()
		ui.RunStarted(requestID)

		runStart := time.Now()
		stats.RunCount++
		result, err := translateSource(ctx, source, requestID)
		runTime := time.Since(runStart)
		totalRunTime += runTime
		if stats.RunCount == 1 {
			stats.FirstRunLatency = runTime
		}

		if err != nil {
			stats.Failed++
			ui.Error(err)
			continue
		}
		if result == nil {
			stats.Failed++
			ui.Error(errors.New("run ended without a result"))
			continue
		}

		ui.RunFinished(result)
		if result.Status == datatypes.RunSucceeded {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
		stats.Refinements += len(result.Refinements)

		if translateOutputDir != "" {
			dir := filepath.Join(translateOutputDir, result.RunID)
			if !reviewRunArtifacts(line, result.RunID, dir, ui) {
				continue
			}
			count := countSavedArtifacts(dir)
			if count > 0 {
				stats.ArtifactsSaved += count
				ui.ArtifactsSaved(dir, count)
			}
		}
	}

	stats.Duration = time.Since(sessionStart)
	if stats.RunCount > 0 {
		stats.AverageRunTime = totalRunTime / time.Duration(stats.RunCount)
	}
	ui.SessionEnd(&stats)
}

// reviewRunArtifacts gates exported artifacts on an audit review when the
// local run's audit did not approve the contract. Returns false when the
// user discarded the export directory. Server-mode runs and runs whose
// audit report cannot be loaded keep their artifacts untouched.
func reviewRunArtifacts(sourcePath, runID, dir string, ui ux.TranslateSessionUI) bool {
	if translateServer != "" {
		return true
	}
	report, err := loadAuditReport(runID)
	if err != nil || report == nil || report.Approved {
		return true
	}

	action, err := ux.PromptAuditReview(ux.AuditPromptOptions{
		ContractName: filepath.Base(sourcePath),
		Report:       report,
		ShowDiscard:  true,
	})
	if err != nil {
		ui.Error(err)
		return true
	}
	if action == ux.AuditActionDiscard {
		if err := os.RemoveAll(dir); err != nil {
			ui.Error(fmt.Errorf("failed to discard artifacts: %w", err))
			return true
		}
		ux.Muted(fmt.Sprintf("Discarded artifacts for run %s", runID))
		return false
	}
	return true
}

// loadAuditReport reads a run's persisted audit report from the local
// artifact store.
func loadAuditReport(runID string) (*datatypes.SecurityAuditReport, error) {
	var report datatypes.SecurityAuditReport
	err := withStore(resolveStorePath(translateStorePath), func(store *storage.Store) error {
		data, err := store.Get(context.Background(), runID, datatypes.ArtifactAudit)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &report)
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// countSavedArtifacts counts regular files in an export directory,
// zero when the directory does not exist.
func countSavedArtifacts(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() {
			count++
		}
	}
	return count
}

// =============================================================================
// Storage helper shared with runs commands
// =============================================================================

// withStore opens the store, runs fn, and closes it. Factored out so the
// translate and runs commands share lifecycle handling.
func withStore(path string, fn func(store *storage.Store) error) error {
	store, err := openArtifactStore(path)
	if err != nil {
		return fmt.Errorf("failed to open artifact store at %s: %w", path, err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Warn("Failed to close artifact store", "error", closeErr)
		}
	}()
	return fn(store)
}
