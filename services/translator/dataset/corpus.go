// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataset loads and samples the requirement/FSM/code corpus.
//
// The corpus is a JSONL file: one DatasetRecord per line. It is loaded
// once, is immutable afterwards, and sampling is deterministic given
// (corpus, n, seed), so evaluation runs are reproducible across process
// restarts.
package dataset

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"math/rand"
	"os"
	"sync"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// maxRecordLineBytes bounds a single corpus line. Records embed whole
// Solidity contracts, so the default bufio limit is far too small.
const maxRecordLineBytes = 4 * 1024 * 1024

// Corpus is an immutable, loaded dataset.
//
// Thread Safety: safe for concurrent use; nothing mutates after Load.
type Corpus struct {
	records []datatypes.DatasetRecord
	skipped int
	path    string
}

// Load reads a JSONL corpus from path.
//
// A missing or unreadable file returns LoadError. A line that fails to
// parse or lacks a required field is skipped with a warning and counted;
// malformed lines are never fatal.
func Load(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &datatypes.LoadError{Path: path, Cause: err}
	}
	defer f.Close()

	corpus := &Corpus{path: path}

	scanner := bufio.NewScanner(f)
	// Increase buffer for long lines; records embed full contracts.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxRecordLineBytes)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec datatypes.DatasetRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			corpus.skipped++
			slog.Warn("Skipping malformed corpus line",
				"path", path, "line", lineNum, "error", err)
			continue
		}
		if rec.UserRequirement == "" || rec.FSM == "" || rec.Version == "" || rec.Code == "" {
			corpus.skipped++
			slog.Warn("Skipping corpus line with missing required fields",
				"path", path, "line", lineNum)
			continue
		}

		corpus.records = append(corpus.records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, &datatypes.LoadError{Path: path, Cause: err}
	}

	slog.Info("Loaded corpus",
		"path", path, "records", len(corpus.records), "skipped", corpus.skipped)

	return corpus, nil
}

// Len returns the number of usable records.
func (c *Corpus) Len() int {
	return len(c.records)
}

// Record returns the record at index i. Panics on out-of-range access,
// like a slice; callers index from Sample output.
func (c *Corpus) Record(i int) datatypes.DatasetRecord {
	return c.records[i]
}

// Path returns the source path the corpus was loaded from.
func (c *Corpus) Path() string {
	return c.path
}

// Sample returns an ordered sequence of exactly n records, identified by
// corpus index.
//
// The selection is a seeded Fisher-Yates shuffle over the index space:
// deterministic given (corpus, n, seed) and stable across process
// restarts. n greater than the corpus size returns SampleSizeError and
// no records.
func (c *Corpus) Sample(n int, seed int64) ([]int, error) {
	if n > len(c.records) {
		return nil, &datatypes.SampleSizeError{Requested: n, Available: len(c.records)}
	}
	if n < 0 {
		return nil, &datatypes.SampleSizeError{Requested: n, Available: len(c.records)}
	}

	indices := make([]int, len(c.records))
	for i := range indices {
		indices[i] = i
	}

	rng := rand.New(rand.NewSource(seed))
	for i := len(indices) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		indices[i], indices[j] = indices[j], indices[i]
	}

	return indices[:n], nil
}

// SampleRecords is Sample with the records resolved.
func (c *Corpus) SampleRecords(n int, seed int64) ([]datatypes.DatasetRecord, error) {
	indices, err := c.Sample(n, seed)
	if err != nil {
		return nil, err
	}
	records := make([]datatypes.DatasetRecord, len(indices))
	for i, idx := range indices {
		records[i] = c.records[idx]
	}
	return records, nil
}

// Stats summarizes the corpus: usable records, malformed lines skipped at
// load, and a histogram of declared Solidity versions.
func (c *Corpus) Stats() datatypes.DatasetStats {
	stats := datatypes.DatasetStats{
		Records:  len(c.records),
		Skipped:  c.skipped,
		Versions: make(map[string]int),
	}
	for _, rec := range c.records {
		stats.Versions[rec.Version]++
	}
	return stats
}

// ExtractText is the pure projection of a record's requirement text.
func ExtractText(rec datatypes.DatasetRecord) string {
	return rec.UserRequirement
}

// Metadata is the pure projection of a record's non-text fields: the
// declared version, the reference code, and the ground-truth structure.
func Metadata(rec datatypes.DatasetRecord) datatypes.RecordMetadata {
	return datatypes.RecordMetadata{
		Version: rec.Version,
		Code:    rec.Code,
		FSM:     rec.FSM,
	}
}

// =============================================================================
// Process Default
// =============================================================================

var (
	defaultOnce   sync.Once
	defaultCorpus *Corpus
	defaultErr    error
)

// InitDefault loads the process-wide default corpus exactly once. Later
// calls return the first result regardless of path; there is no mutation
// API.
func InitDefault(path string) (*Corpus, error) {
	defaultOnce.Do(func() {
		defaultCorpus, defaultErr = Load(path)
	})
	return defaultCorpus, defaultErr
}

// Default returns the process-wide corpus, nil before InitDefault.
func Default() *Corpus {
	return defaultCorpus
}
