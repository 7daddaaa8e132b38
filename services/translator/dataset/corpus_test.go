// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// writeCorpus writes n well-formed records plus any raw extra lines.
func writeCorpus(t *testing.T, n int, extra ...string) string {
	t.Helper()

	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteString(fmt.Sprintf(
			`{"user_requirement":"requirement %d","FSM":"{}","version":"0.8.%d","code":"contract C%d {}"}`,
			i, i%3, i))
		sb.WriteString("\n")
	}
	for _, line := range extra {
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeCorpus(t, 5)

	corpus, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, corpus.Len())
	assert.Equal(t, path, corpus.Path())

	rec := corpus.Record(2)
	assert.Equal(t, "requirement 2", rec.UserRequirement)
	assert.Equal(t, "contract C2 {}", rec.Code)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.jsonl"))
	require.Error(t, err)

	var loadErr *datatypes.LoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestLoad_SkipsMalformedLines(t *testing.T) {
	path := writeCorpus(t, 3,
		`{not json at all`,
		`{"user_requirement":"","FSM":"{}","version":"0.8.0","code":"contract X {}"}`,
		`{"user_requirement":"has requirement but no code","FSM":"{}","version":"0.8.0","code":""}`,
		`{"user_requirement":"no fsm","version":"0.8.0","code":"contract X {}"}`,
		`{"user_requirement":"no version","FSM":"{}","code":"contract X {}"}`,
	)

	corpus, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, corpus.Len())
	assert.Equal(t, 5, corpus.Stats().Skipped)
}

func TestLoad_EmptyLinesIgnored(t *testing.T) {
	path := writeCorpus(t, 2, "", "")

	corpus, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, corpus.Len())
	assert.Equal(t, 0, corpus.Stats().Skipped)
}

// =============================================================================
// Sampling
// =============================================================================

func TestSample_Deterministic(t *testing.T) {
	corpus, err := Load(writeCorpus(t, 200))
	require.NoError(t, err)

	first, err := corpus.Sample(100, 42)
	require.NoError(t, err)
	second, err := corpus.Sample(100, 42)
	require.NoError(t, err)

	assert.Equal(t, first, second, "same (n, seed) must give the same sequence")
	assert.Len(t, first, 100)
}

func TestSample_SeedChangesSelection(t *testing.T) {
	corpus, err := Load(writeCorpus(t, 200))
	require.NoError(t, err)

	a, err := corpus.Sample(100, 42)
	require.NoError(t, err)
	b, err := corpus.Sample(100, 1)
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "different seeds should give different sequences")
}

func TestSample_TooLarge(t *testing.T) {
	corpus, err := Load(writeCorpus(t, 10))
	require.NoError(t, err)

	indices, err := corpus.Sample(100, 42)
	require.Error(t, err)
	assert.Nil(t, indices, "oversized request must return nothing")

	var sizeErr *datatypes.SampleSizeError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, 100, sizeErr.Requested)
	assert.Equal(t, 10, sizeErr.Available)
}

func TestSample_ExactCorpusSize(t *testing.T) {
	corpus, err := Load(writeCorpus(t, 10))
	require.NoError(t, err)

	indices, err := corpus.Sample(10, 7)
	require.NoError(t, err)
	assert.Len(t, indices, 10)

	// A full-size sample is a permutation: every index exactly once.
	seen := make(map[int]bool)
	for _, idx := range indices {
		assert.False(t, seen[idx], "index %d repeated", idx)
		seen[idx] = true
	}
}

func TestSampleRecords(t *testing.T) {
	corpus, err := Load(writeCorpus(t, 20))
	require.NoError(t, err)

	records, err := corpus.SampleRecords(5, 3)
	require.NoError(t, err)
	require.Len(t, records, 5)

	indices, err := corpus.Sample(5, 3)
	require.NoError(t, err)
	for i, idx := range indices {
		assert.Equal(t, corpus.Record(idx), records[i])
	}
}

// =============================================================================
// Projections and Stats
// =============================================================================

func TestProjections(t *testing.T) {
	rec := datatypes.DatasetRecord{
		UserRequirement: "a rental agreement",
		FSM:             `{"states":[]}`,
		Version:         "0.8.20",
		Code:            "contract R {}",
	}

	assert.Equal(t, "a rental agreement", ExtractText(rec))

	meta := Metadata(rec)
	assert.Equal(t, "0.8.20", meta.Version)
	assert.Equal(t, "contract R {}", meta.Code)
	assert.Equal(t, `{"states":[]}`, meta.FSM)
}

func TestStats_VersionHistogram(t *testing.T) {
	corpus, err := Load(writeCorpus(t, 6))
	require.NoError(t, err)

	stats := corpus.Stats()
	assert.Equal(t, 6, stats.Records)
	// Versions cycle 0.8.0, 0.8.1, 0.8.2 over 6 records.
	assert.Equal(t, 2, stats.Versions["0.8.0"])
	assert.Equal(t, 2, stats.Versions["0.8.1"])
	assert.Equal(t, 2, stats.Versions["0.8.2"])
}
