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
	"os"
	"path"

	"github.com/AleutianAI/solforge/cmd/solforge/gcs"
	"github.com/AleutianAI/solforge/pkg/ux"
	"github.com/AleutianAI/solforge/services/translator/datatypes"
	"github.com/AleutianAI/solforge/services/translator/storage"
	"github.com/spf13/cobra"
)

// runRunsList is the entry point for `solforge runs list`.
func runRunsList(cmd *cobra.Command, _ []string) {
	err := withStore(resolveStorePath(runsStorePath), func(store *storage.Store) error {
		runs, err := store.ListRuns(cmd.Context())
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			ux.Muted("No stored runs")
			return nil
		}

		machine := ux.GetPersonality().Level == ux.PersonalityMachine
		for _, run := range runs {
			if machine {
				fmt.Printf("RUN\t%s\t%s\t%dms\t%s\n", run.RunID, run.Status,
					run.DurationMs, run.FinishedAt.UTC().Format("2006-01-02T15:04:05Z"))
				continue
			}
			fmt.Printf("  %-38s %-18s %8dms  %s\n", run.RunID, run.Status,
				run.DurationMs, run.FinishedAt.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	})
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
}

// runRunsShow is the entry point for `solforge runs show <run_id>`.
func runRunsShow(cmd *cobra.Command, args []string) {
	runID := args[0]
	err := withStore(resolveStorePath(runsStorePath), func(store *storage.Store) error {
		result, err := store.GetRunRecord(cmd.Context(), runID)
		if err != nil {
			return err
		}

		ux.Title(fmt.Sprintf("Run %s", result.RunID))
		ux.Info(fmt.Sprintf("Status %s, %dms, finished %s", result.Status,
			result.DurationMs, result.FinishedAt.Local().Format("2006-01-02 15:04:05")))

		for _, phase := range result.Phases {
			icon := ux.IconSuccess
			if phase.Status == datatypes.PhaseError {
				icon = ux.IconError
			}
			ux.PhaseStatus(int(phase.Phase), 6, phase.Name, icon, phase.Summary)
		}
		for _, ref := range result.Refinements {
			detail := fmt.Sprintf("iteration %d (+%d/-%d lines)", ref.Iteration, ref.LinesAdded, ref.LinesRemoved)
			if !ref.Accepted {
				detail = fmt.Sprintf("iteration %d rejected: %s", ref.Iteration, ref.Detail)
			}
			ux.Muted("  " + detail)
		}

		artifacts, err := store.ListArtifacts(cmd.Context(), runID)
		if err != nil {
			return err
		}
		for _, name := range artifacts {
			ux.Muted("  artifact: " + name)
		}
		return nil
	})
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
}

// runRunsExport is the entry point for `solforge runs export <run_id>`.
//
// Writes the run's artifacts to --out, and uploads the exported directory
// to --gcs-bucket when one is given.
func runRunsExport(cmd *cobra.Command, args []string) {
	runID := args[0]
	outDir := runsExportDir
	if outDir == "" {
		outDir = runID
	}

	err := withStore(resolveStorePath(runsStorePath), func(store *storage.Store) error {
		count, err := exportArtifacts(cmd.Context(), store, runID, outDir)
		if err != nil {
			return err
		}
		ux.Success(fmt.Sprintf("Exported %d artifacts to %s", count, outDir))

		if runsExportBucket == "" {
			return nil
		}

		client, err := gcs.NewClient(cmd.Context(), runsExportBucket, runsSAKeyPath)
		if err != nil {
			return fmt.Errorf("GCS client: %w", err)
		}
		defer client.Close()

		uploaded, err := client.UploadDir(cmd.Context(), outDir, path.Join("runs", runID))
		if err != nil {
			return fmt.Errorf("GCS upload: %w", err)
		}
		ux.Success(fmt.Sprintf("Uploaded %d artifacts to gs://%s/runs/%s",
			uploaded, runsExportBucket, runID))
		return nil
	})
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
}
