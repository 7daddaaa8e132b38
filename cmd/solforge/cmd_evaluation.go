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
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/solforge/services/translator/dataset"
	"github.com/AleutianAI/solforge/services/translator/datatypes"
	"github.com/AleutianAI/solforge/services/translator/eval"
	"github.com/AleutianAI/solforge/services/translator/storage"
	"github.com/spf13/cobra"
)

// runEvaluation is the entry point for `solforge eval run --config <yaml>`.
//
// Loads a scenario file, samples the corpus, runs the pipeline over each
// sampled record, and writes per-record results plus a summary under the
// scenario's output directory.
func runEvaluation(cmd *cobra.Command, _ []string) {
	// 1. Get the config file path from flags
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		slog.Error("Please provide a scenario file using --config (e.g., --config scenarios/crowdsale_static_v1.yaml)")
		return
	}

	// 2. Load and validate the scenario
	scenario, err := eval.LoadScenario(configPath)
	if err != nil {
		slog.Error("Failed to load scenario", "path", configPath, "error", err)
		return
	}

	// 3. Generate a unique run ID: {ScenarioID}_v{Version}_{Timestamp}
	runID := scenario.RunID(time.Now())

	fmt.Printf("\nStarting Evaluation Run: %s\n", runID)
	fmt.Printf("   Scenario:       %s (v%s)\n", scenario.Metadata.ID, scenario.Metadata.Version)
	fmt.Printf("   Dataset:        %s\n", scenario.Dataset.Path)
	fmt.Printf("   Sample:         %d records (seed %d)\n", scenario.Dataset.SampleSize, scenario.Dataset.Seed)
	fmt.Printf("   Backend:        %s\n", scenario.Run.Backend)
	fmt.Printf("   Concurrency:    %d\n", scenario.Run.Concurrency)
	fmt.Println("---------------------------------------------------")

	// 4. Build the corpus, store, and pipeline
	corpus, err := dataset.Load(scenario.Dataset.Path)
	if err != nil {
		slog.Error("Failed to load dataset", "path", scenario.Dataset.Path, "error", err)
		return
	}

	store, err := storage.Open(storage.Config{
		Path:       resolveStorePath(evalStorePath),
		SyncWrites: true,
	})
	if err != nil {
		slog.Error("Failed to open artifact store", "error", err)
		return
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Warn("Failed to close artifact store", "error", closeErr)
		}
	}()

	orch, err := buildOrchestrator(scenario.Run.Backend, evalRulesPath, store)
	if err != nil {
		slog.Error("Failed to build pipeline", "error", err)
		return
	}

	runner, err := eval.NewRunner(orch, corpus, store)
	if err != nil {
		slog.Error("Failed to create runner", "error", err)
		return
	}

	// 5. Assemble options from the scenario
	opts := evalOptions(scenario)

	if scenario.Output.Influx {
		sink, sinkErr := eval.NewInfluxSink()
		if sinkErr != nil {
			slog.Warn("Influx sink unavailable, results go to JSONL only", "error", sinkErr)
		} else {
			defer sink.Close()
			opts = append(opts, eval.WithSink(sink))
		}
	}

	// 6. Execute the batch
	summary, err := runner.Run(cmd.Context(), runID, opts...)
	if err != nil {
		slog.Error("Evaluation failed", "error", err)
		return
	}

	printEvalSummary(summary)
}

// evalOptions maps a scenario's run section onto runner options.
func evalOptions(scenario *eval.Scenario) []eval.Option {
	opts := []eval.Option{
		eval.WithSampleSize(scenario.Dataset.SampleSize),
		eval.WithSeed(scenario.Dataset.Seed),
		eval.WithBackend(scenario.Run.Backend),
		eval.WithConcurrency(scenario.Run.Concurrency),
		eval.WithOutputDir(scenario.Output.Dir),
	}
	if scenario.Run.TypeHint != "" {
		opts = append(opts, eval.WithTypeHint(scenario.Run.TypeHint))
	}
	if scenario.Run.MaxRefinements != nil {
		opts = append(opts, eval.WithMaxRefinements(*scenario.Run.MaxRefinements))
	}
	if scenario.Run.TimeoutSeconds > 0 {
		opts = append(opts, eval.WithRecordTimeout(time.Duration(scenario.Run.TimeoutSeconds)*time.Second))
	}
	return opts
}

// printEvalSummary renders the batch outcome.
func printEvalSummary(summary *eval.Summary) {
	fmt.Printf("\nEvaluation completed: %s\n", summary.RunID)
	fmt.Printf("   Total:            %d\n", summary.Total)
	fmt.Printf("   Succeeded:        %d\n", summary.Succeeded)
	fmt.Printf("   Partially failed: %d\n", summary.PartiallyFailed)
	fmt.Printf("   Failed:           %d\n", summary.Failed)
	fmt.Printf("   Mean run time:    %dms\n", summary.MeanDurationMs)
	fmt.Printf("   Wall time:        %dms\n", summary.WallDurationMs)
	if high := summary.BySeverity[datatypes.SeverityHigh]; high > 0 {
		fmt.Printf("   High findings:    %d\n", high)
	}
	fmt.Printf("   Results:          %s\n", summary.ResultsPath)

	if summary.Failed > 0 {
		os.Exit(1)
	}
}
