// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package e2e

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestRuns_ListShowExport covers the stored-run lifecycle: translate,
// list the run, show its phases, export its artifacts.
func TestRuns_ListShowExport(t *testing.T) {
	docPath := writeTempFile(t, "lease.txt", leaseDocument)
	storeDir := t.TempDir()

	output, exitCode := runCLI(t, "translate", docPath, "--backend", "static", "--store", storeDir)
	if exitCode != 0 {
		t.Fatalf("translate exited %d\nOutput: %s", exitCode, output)
	}

	// list
	listOut, exitCode := runCLI(t, "runs", "list", "--store", storeDir)
	if exitCode != 0 {
		t.Fatalf("runs list exited %d\nOutput: %s", exitCode, listOut)
	}
	lines := strings.Split(strings.TrimSpace(listOut), "\n")
	var runID string
	for _, line := range lines {
		if strings.HasPrefix(line, "RUN\t") {
			runID = strings.Split(line, "\t")[1]
		}
	}
	if runID == "" {
		t.Fatalf("No RUN line in runs list output\nOutput: %s", listOut)
	}

	// show
	showOut, exitCode := runCLI(t, "runs", "show", runID, "--store", storeDir)
	if exitCode != 0 {
		t.Fatalf("runs show exited %d\nOutput: %s", exitCode, showOut)
	}
	if !strings.Contains(showOut, "document_processing") {
		t.Errorf("Expected phase names in runs show\nOutput: %s", showOut)
	}
	if !strings.Contains(showOut, "contract.sol") {
		t.Errorf("Expected the contract artifact in runs show\nOutput: %s", showOut)
	}

	// export
	exportDir := filepath.Join(t.TempDir(), "export")
	exportOut, exitCode := runCLI(t, "runs", "export", runID, "--store", storeDir, "-o", exportDir)
	if exitCode != 0 {
		t.Fatalf("runs export exited %d\nOutput: %s", exitCode, exportOut)
	}
	entries, err := os.ReadDir(exportDir)
	if err != nil || len(entries) == 0 {
		t.Errorf("Expected exported artifacts in %s, got %v (err %v)", exportDir, entries, err)
	}
}

func TestRuns_ShowUnknownRun(t *testing.T) {
	output, exitCode := runCLI(t, "runs", "show", "no-such-run", "--store", t.TempDir())
	if exitCode == 0 {
		t.Errorf("Expected non-zero exit for an unknown run\nOutput: %s", output)
	}
}

func TestRuns_ListEmptyStore(t *testing.T) {
	output, exitCode := runCLI(t, "runs", "list", "--store", t.TempDir())
	if exitCode != 0 {
		t.Errorf("Expected exit 0 for an empty store, got %d\nOutput: %s", exitCode, output)
	}
}
