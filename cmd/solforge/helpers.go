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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/solforge/services/audit_engine"
	"github.com/AleutianAI/solforge/services/llm"
	"github.com/AleutianAI/solforge/services/translator/datatypes"
	"github.com/AleutianAI/solforge/services/translator/pipeline"
	"github.com/AleutianAI/solforge/services/translator/solc"
	"github.com/AleutianAI/solforge/services/translator/storage"
)

// Constants for default connection settings
const (
	DefaultServerURL = "http://localhost:12220"
	DefaultStorePath = "./data/translator"
)

// resolveStorePath picks the artifact store directory from the flag, the
// TRANSLATOR_STORE_PATH environment variable, or the default, in that order.
func resolveStorePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("TRANSLATOR_STORE_PATH"); env != "" {
		return env
	}
	return DefaultStorePath
}

// readSource loads a contract description from a file, or from stdin when
// path is "-". Enforces the same size cap the service applies.
func readSource(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(io.LimitReader(os.Stdin, datatypes.MaxSourceBytes+1))
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read source %s: %w", path, err)
	}
	if len(data) > datatypes.MaxSourceBytes {
		return "", fmt.Errorf("source %s exceeds the %d byte limit", path, datatypes.MaxSourceBytes)
	}
	source := strings.TrimSpace(string(data))
	if source == "" {
		return "", fmt.Errorf("source %s is empty", path)
	}
	return source, nil
}

// openArtifactStore opens the BadgerDB artifact store at the given path.
// Synchronous writes are on so locally stored artifacts survive a crash.
func openArtifactStore(path string) (*storage.Store, error) {
	return storage.Open(storage.Config{
		Path:       path,
		SyncWrites: true,
	})
}

// buildAuditEngine creates the security pattern engine, layering the
// optional rules override file on top of the embedded rule set.
func buildAuditEngine(rulesPath string) (*audit_engine.Engine, error) {
	engine, err := audit_engine.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to create audit engine: %w", err)
	}
	if rulesPath != "" {
		if err := engine.LoadRulesFile(rulesPath); err != nil {
			return nil, fmt.Errorf("failed to load rules override %s: %w", rulesPath, err)
		}
	}
	return engine, nil
}

// buildOrchestrator wires a local pipeline from the named backend, the
// audit engine, and the store. The advisory compile checker is attached
// when solc or a docker fallback is on the PATH.
func buildOrchestrator(backend, rulesPath string, store *storage.Store) (*pipeline.Orchestrator, error) {
	caps, err := llm.NewCapabilities(backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create %q capabilities: %w", backend, err)
	}

	engine, err := buildAuditEngine(rulesPath)
	if err != nil {
		return nil, err
	}

	cfg := pipeline.DefaultConfig()
	if checker := solc.NewChecker(); checker.Available() {
		cfg.Checker = checker
	}

	return pipeline.New(caps, engine, store, cfg)
}

// exportArtifacts copies every stored artifact of a run into dir.
// Returns the number of files written.
func exportArtifacts(ctx context.Context, store *storage.Store, runID, dir string) (int, error) {
	names, err := store.ListArtifacts(ctx, runID)
	if err != nil {
		return 0, fmt.Errorf("failed to list artifacts for run %s: %w", runID, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	written := 0
	for _, name := range names {
		data, err := store.Get(ctx, runID, name)
		if err != nil {
			return written, fmt.Errorf("failed to read artifact %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return written, fmt.Errorf("failed to write artifact %s: %w", name, err)
		}
		written++
	}
	return written, nil
}
