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
	"github.com/AleutianAI/solforge/pkg/ux"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	personalityLevel string // UX personality level (full/standard/minimal/machine)

	// translate flags
	translateServer         string
	translateBackend        string
	translateTypeHint       string
	translateOutputDir      string
	translateStorePath      string
	translateRulesPath      string
	translateMaxRefinements int

	// scan flags
	scanRulesPath string

	// dataset flags
	datasetCorpusPath string
	datasetBucket     string
	datasetObject     string
	datasetSAKeyPath  string
	datasetSampleSize int
	datasetSampleSeed int64

	// eval flags
	evalStorePath string
	evalRulesPath string

	// runs flags
	runsStorePath    string
	runsExportDir    string
	runsExportBucket string
	runsSAKeyPath    string

	rootCmd = &cobra.Command{
		Use:   "solforge",
		Short: "A cli to translate contract documents into audited Solidity",
		Long: `Solforge turns natural-language contract descriptions into
				audited Solidity through a six-phase pipeline: document intake,
				schema extraction, code generation, security audit, interface
				extraction, and tool-server scaffolding.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize UX personality from flag or environment
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
		},
	}

	// --- Translate ---
	translateCmd = &cobra.Command{
		Use:   "translate [file]",
		Short: "Translate a contract description into audited Solidity",
		Long: `Runs the translation pipeline on a contract description. With a
				file argument (or piped stdin) it performs a single run; with no
				argument on a terminal it starts an interactive session.`,
		Args: cobra.MaximumNArgs(1),
		Run:  runTranslate, // Defined in cmd_translate.go
	}

	// --- Scan ---
	scanCmd = &cobra.Command{
		Use:   "scan [file.sol]",
		Short: "Scan Solidity source with the security pattern engine",
		Long: `Runs the local security pattern engine over a Solidity file and
				prints the findings. Exits 1 when anything of medium or higher
				severity is found.`,
		Args: cobra.ExactArgs(1),
		Run:  runScan, // Defined in cmd_scan.go
	}

	// --- Dataset ---
	datasetCmd = &cobra.Command{
		Use:   "dataset",
		Short: "Manage the example contract corpus",
	}
	datasetPullCmd = &cobra.Command{
		Use:   "pull",
		Short: "Download the corpus from Google Cloud Storage",
		Run:   runDatasetPull, // Defined in cmd_dataset.go
	}
	datasetSampleCmd = &cobra.Command{
		Use:   "sample",
		Short: "Print a deterministic sample of corpus records",
		Run:   runDatasetSample, // Defined in cmd_dataset.go
	}
	datasetStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print corpus size and the Solidity version histogram",
		Run:   runDatasetStats, // Defined in cmd_dataset.go
	}

	// --- Evaluation ---
	evalCmd = &cobra.Command{
		Use:   "eval",
		Short: "Run batch evaluation over the corpus",
	}
	evalRunCmd = &cobra.Command{
		Use:   "run",
		Short: "Run an evaluation scenario from a YAML file",
		Run:   runEvaluation, // Defined in cmd_evaluation.go
	}

	// --- Runs ---
	runsCmd = &cobra.Command{
		Use:   "runs",
		Short: "Inspect and export stored translation runs",
	}
	runsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored runs",
		Run:   runRunsList, // Defined in cmd_runs.go
	}
	runsShowCmd = &cobra.Command{
		Use:   "show [run_id]",
		Short: "Show one run's phases, refinements, and artifacts",
		Args:  cobra.ExactArgs(1),
		Run:   runRunsShow, // Defined in cmd_runs.go
	}
	runsExportCmd = &cobra.Command{
		Use:   "export [run_id]",
		Short: "Export a run's artifacts to a directory or GCS",
		Args:  cobra.ExactArgs(1),
		Run:   runRunsExport, // Defined in cmd_runs.go
	}
)

// init runs when the Go program starts
func init() {
	// Global UX personality flag
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default), standard, minimal, or machine (scripting)")

	rootCmd.AddCommand(translateCmd)
	translateCmd.Flags().StringVar(&translateServer, "server", "",
		"Stream from a running translator service instead of running locally (e.g., "+DefaultServerURL+")")
	translateCmd.Flags().StringVar(&translateBackend, "backend", "static",
		"Capability backend for local runs: openai or static")
	translateCmd.Flags().StringVar(&translateTypeHint, "type-hint", "",
		"Contract type hint forwarded to schema extraction (e.g., crowdsale, voting)")
	translateCmd.Flags().StringVarP(&translateOutputDir, "output", "o", "",
		"Directory to save run artifacts into (one subdirectory per run)")
	translateCmd.Flags().StringVar(&translateStorePath, "store", "",
		"Artifact store directory (default $TRANSLATOR_STORE_PATH or "+DefaultStorePath+")")
	translateCmd.Flags().StringVar(&translateRulesPath, "rules", "",
		"Security rules override YAML layered on the embedded rule set")
	translateCmd.Flags().IntVar(&translateMaxRefinements, "max-refinements", -1,
		"Cap on audit-driven refinement iterations (-1 uses the pipeline default)")

	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVar(&scanRulesPath, "rules", "",
		"Security rules override YAML layered on the embedded rule set")

	rootCmd.AddCommand(datasetCmd)
	datasetCmd.AddCommand(datasetPullCmd)
	datasetCmd.AddCommand(datasetSampleCmd)
	datasetCmd.AddCommand(datasetStatsCmd)
	datasetCmd.PersistentFlags().StringVar(&datasetCorpusPath, "corpus", "",
		"Corpus JSONL path (default $TRANSLATOR_CORPUS_PATH or "+DefaultCorpusPath+")")
	datasetPullCmd.Flags().StringVar(&datasetBucket, "bucket", "", "Source GCS bucket name")
	datasetPullCmd.Flags().StringVar(&datasetObject, "object", "dataset.jsonl",
		"Object path in the bucket; a trailing slash pulls the whole prefix")
	datasetPullCmd.Flags().StringVar(&datasetSAKeyPath, "sa-key", "",
		"Service account key file (default: application default credentials)")
	datasetSampleCmd.Flags().IntVar(&datasetSampleSize, "n", 5, "Number of records to sample")
	datasetSampleCmd.Flags().Int64Var(&datasetSampleSeed, "seed", 42, "Sampling seed")

	rootCmd.AddCommand(evalCmd)
	evalCmd.AddCommand(evalRunCmd)
	evalRunCmd.Flags().String("config", "", "Scenario YAML file (required)")
	evalRunCmd.Flags().StringVar(&evalStorePath, "store", "",
		"Artifact store directory (default $TRANSLATOR_STORE_PATH or "+DefaultStorePath+")")
	evalRunCmd.Flags().StringVar(&evalRulesPath, "rules", "",
		"Security rules override YAML layered on the embedded rule set")

	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.PersistentFlags().StringVar(&runsStorePath, "store", "",
		"Artifact store directory (default $TRANSLATOR_STORE_PATH or "+DefaultStorePath+")")
	runsExportCmd.Flags().StringVarP(&runsExportDir, "out", "o", "",
		"Export directory (default: the run ID)")
	runsExportCmd.Flags().StringVar(&runsExportBucket, "gcs-bucket", "",
		"Also upload the exported artifacts to this GCS bucket")
	runsExportCmd.Flags().StringVar(&runsSAKeyPath, "sa-key", "",
		"Service account key file (default: application default credentials)")
}
