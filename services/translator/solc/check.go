// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package solc runs an advisory compilation check against generated Solidity
// using whichever compiler the host has: native solc first, then solcjs via
// npx. The check is purely informational. A missing compiler, a failed
// compile, and a timeout all produce a result, never an error, because
// translation quality must not depend on host tooling.
package solc

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

const (
	// probeTimeout bounds the --version probe at construction.
	probeTimeout = 5 * time.Second

	// compileTimeout bounds one compilation run.
	compileTimeout = 30 * time.Second

	// maxDiagnostics caps collected warning and error lines per run.
	maxDiagnostics = 50
)

// =============================================================================
// Checker
// =============================================================================

// Checker holds the compiler command resolved at construction. The zero
// value reports unavailable from every Check call.
type Checker struct {
	cmd      []string
	compiler string
	version  string
}

// NewChecker probes the host for a Solidity compiler. Probe failures are
// logged at debug and leave the checker in its unavailable state.
func NewChecker() *Checker {
	c := &Checker{}

	if version, ok := probe("solc"); ok {
		c.cmd = []string{"solc"}
		c.compiler = "solc"
		c.version = version
		slog.Debug("solidity compiler found", "compiler", "solc", "version", version)
		return c
	}
	if version, ok := probe("npx", "solcjs"); ok {
		c.cmd = []string{"npx", "solcjs"}
		c.compiler = "solcjs"
		c.version = version
		slog.Debug("solidity compiler found", "compiler", "solcjs", "version", version)
		return c
	}

	slog.Debug("no solidity compiler on host, compile checks disabled")
	return c
}

// Available reports whether a compiler was found.
func (c *Checker) Available() bool {
	return c != nil && len(c.cmd) > 0
}

// Check compiles the source with --bin --abi into a temp directory.
//
// # Description
//
// The version pragma is stripped first so the check works regardless of
// which compiler version the host carries. Compiler warnings survive into
// the result on success; stderr diagnostics survive on failure. Exceeding
// the subprocess timeout is reported as a failed compile.
//
// # Inputs
//
//   - ctx: Caller cancellation, tightened by the internal compile timeout.
//   - source: Solidity source text.
//
// # Outputs
//
//   - datatypes.CompileCheckResult: Available=false when no compiler was
//     found; Compiles meaningful only when Available.
func (c *Checker) Check(ctx context.Context, source string) datatypes.CompileCheckResult {
	if !c.Available() {
		return datatypes.CompileCheckResult{}
	}

	result := datatypes.CompileCheckResult{
		Available:       true,
		Compiler:        c.compiler,
		CompilerVersion: c.version,
	}

	dir, err := os.MkdirTemp("", "solforge-compile-*")
	if err != nil {
		result.Errors = []string{"temp dir: " + err.Error()}
		return result
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, "contract.sol")
	if err := os.WriteFile(srcPath, []byte(StripVersionPragma(source)), 0o600); err != nil {
		result.Errors = []string{"write source: " + err.Error()}
		return result
	}

	outDir := filepath.Join(dir, "out")
	args := append([]string{}, c.cmd[1:]...)
	if c.compiler == "solcjs" {
		args = append(args, "--bin", "--abi", "--output-dir", outDir, srcPath)
	} else {
		args = append(args, "--bin", "--abi", "-o", outDir, srcPath)
	}

	ctx, cancel := context.WithTimeout(ctx, compileTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.cmd[0], args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	result.Warnings = collectLines(stderr.String(), true)

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		result.Errors = []string{"compilation timed out after " + compileTimeout.String()}
	case runErr != nil:
		result.Errors = collectLines(stderr.String(), false)
		if len(result.Errors) == 0 {
			result.Errors = []string{runErr.Error()}
		}
	default:
		result.Compiles = true
	}
	return result
}

// =============================================================================
// Helpers
// =============================================================================

// StripVersionPragma removes pragma solidity lines so the advisory check is
// not hostage to a version mismatch between generator and host compiler.
func StripVersionPragma(source string) string {
	lines := strings.Split(source, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "pragma solidity") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// probe runs `name args... --version` and extracts the version string.
func probe(name string, args ...string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, append(args, "--version")...).Output()
	if err != nil {
		return "", false
	}
	return parseVersion(string(out)), true
}

// parseVersion prefers the "Version:" line solc prints, otherwise the first
// non-empty output line.
func parseVersion(out string) string {
	first := ""
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "Version:"); ok {
			return strings.TrimSpace(rest)
		}
		if first == "" {
			first = line
		}
	}
	return first
}

// collectLines filters stderr: warnings only when warningsOnly, otherwise
// every non-empty, non-warning line. Output is capped at maxDiagnostics.
func collectLines(stderr string, warningsOnly bool) []string {
	var out []string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		isWarning := strings.Contains(line, "Warning:")
		if warningsOnly != isWarning {
			continue
		}
		out = append(out, line)
		if len(out) >= maxDiagnostics {
			break
		}
	}
	return out
}
