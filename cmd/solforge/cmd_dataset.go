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
	"sort"
	"strings"

	"github.com/AleutianAI/solforge/cmd/solforge/gcs"
	"github.com/AleutianAI/solforge/pkg/ux"
	"github.com/AleutianAI/solforge/services/translator/dataset"
	"github.com/spf13/cobra"
)

// DefaultCorpusPath is where dataset pull lands the corpus and where the
// sample and stats subcommands look first.
const DefaultCorpusPath = "./data/dataset.jsonl"

// resolveCorpusPath picks the corpus file from the flag, the
// TRANSLATOR_CORPUS_PATH environment variable, or the default.
func resolveCorpusPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("TRANSLATOR_CORPUS_PATH"); env != "" {
		return env
	}
	return DefaultCorpusPath
}

// runDatasetPull downloads the example corpus from a GCS bucket.
func runDatasetPull(cmd *cobra.Command, _ []string) {
	ctx := cmd.Context()
	if datasetBucket == "" {
		ux.Error("Please provide the source bucket with --bucket")
		os.Exit(1)
	}

	client, err := gcs.NewClient(ctx, datasetBucket, datasetSAKeyPath)
	if err != nil {
		ux.Error(fmt.Sprintf("GCS client: %v", err))
		os.Exit(1)
	}
	defer client.Close()

	out := resolveCorpusPath(datasetCorpusPath)

	if strings.HasSuffix(datasetObject, "/") {
		count, err := client.DownloadPrefix(ctx, datasetObject, out)
		if err != nil {
			ux.Error(fmt.Sprintf("Download failed: %v", err))
			os.Exit(1)
		}
		ux.Success(fmt.Sprintf("Downloaded %d objects from gs://%s/%s to %s",
			count, datasetBucket, datasetObject, out))
		return
	}

	if err := client.DownloadFile(ctx, datasetObject, out); err != nil {
		ux.Error(fmt.Sprintf("Download failed: %v", err))
		os.Exit(1)
	}
	ux.Success(fmt.Sprintf("Downloaded gs://%s/%s to %s", datasetBucket, datasetObject, out))
}

// runDatasetSample prints a deterministic sample of corpus records.
// The same --seed always yields the same sample.
func runDatasetSample(cmd *cobra.Command, _ []string) {
	corpus, err := dataset.Load(resolveCorpusPath(datasetCorpusPath))
	if err != nil {
		ux.Error(fmt.Sprintf("Corpus load: %v", err))
		os.Exit(1)
	}

	records, err := corpus.SampleRecords(datasetSampleSize, datasetSampleSeed)
	if err != nil {
		ux.Error(fmt.Sprintf("Sampling: %v", err))
		os.Exit(1)
	}

	p := ux.GetPersonality()
	for i, rec := range records {
		if p.Level == ux.PersonalityMachine {
			fmt.Printf("RECORD\t%d\t%s\t%d\t%d\n", i, rec.Version,
				len(rec.UserRequirement), len(rec.Code))
			continue
		}
		ux.Title(fmt.Sprintf("Record %d (solidity %s)", i, rec.Version))
		fmt.Println(truncateForDisplay(rec.UserRequirement, 400))
	}
}

// runDatasetStats prints corpus size and the Solidity version histogram.
func runDatasetStats(cmd *cobra.Command, _ []string) {
	path := resolveCorpusPath(datasetCorpusPath)
	corpus, err := dataset.Load(path)
	if err != nil {
		ux.Error(fmt.Sprintf("Corpus load: %v", err))
		os.Exit(1)
	}

	stats := corpus.Stats()

	if ux.GetPersonality().Level == ux.PersonalityMachine {
		fmt.Printf("STATS: path=%s records=%d skipped=%d\n", path, stats.Records, stats.Skipped)
		for _, version := range sortedVersions(stats.Versions) {
			fmt.Printf("VERSION\t%s\t%d\n", version, stats.Versions[version])
		}
		return
	}

	ux.Title(fmt.Sprintf("Corpus %s", path))
	ux.Info(fmt.Sprintf("%d records (%d malformed lines skipped)", stats.Records, stats.Skipped))
	for _, version := range sortedVersions(stats.Versions) {
		fmt.Printf("  %-10s %s %d\n", version,
			ux.ProgressBar(stats.Versions[version], stats.Records, 30),
			stats.Versions[version])
	}
}

// sortedVersions returns histogram keys ordered by count descending,
// version string ascending as the tie-break.
func sortedVersions(histogram map[string]int) []string {
	versions := make([]string, 0, len(histogram))
	for v := range histogram {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		if histogram[versions[i]] != histogram[versions[j]] {
			return histogram[versions[i]] > histogram[versions[j]]
		}
		return versions[i] < versions[j]
	})
	return versions
}

// truncateForDisplay caps a string for terminal display.
func truncateForDisplay(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
