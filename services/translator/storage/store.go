// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage persists run artifacts and run records in BadgerDB.
//
// The pipeline writes each phase's artifact here before starting the next
// phase, so a crash or cancellation never loses completed work. Keys are
// run-scoped:
//
//	run/<id>/artifact/<name>  - artifact bytes
//	run/<id>/record           - terminal RunResult (JSON)
//
// The store is append-oriented: the orchestrator never deletes; retention
// is external policy.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
// This package follows Apache 2.0 guidelines for attribution and usage.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// Config holds configuration for the artifact store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required for persistent databases.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes. The pipeline's durability
	// guarantee (artifact persisted before the next phase starts) holds
	// only when this is true.
	SyncWrites bool

	// Logger is the logger for BadgerDB operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Default: 5 minutes. Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	// Default: 0.5 (GC when 50% of value log is garbage).
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults: synchronous writes, 5-minute
// GC interval, 50% discard ratio.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration optimized for testing: in-memory
// mode, no sync, GC disabled.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
		GCInterval: 0, // disabled
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is the run-scoped artifact and record store.
//
// Thread Safety: safe for concurrent use; BadgerDB transactions provide
// isolation between parallel runs.
type Store struct {
	db       *badger.DB
	gcRunner *GCRunner
	path     string
	inMemory bool
}

// Open opens the artifact store with the given configuration and starts
// the GC runner when an interval is configured.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil) // Disable BadgerDB's internal logging
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	store := &Store{
		db:       db,
		path:     cfg.Path,
		inMemory: cfg.InMemory,
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := NewGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		store.gcRunner = runner
		runner.Start()
	}

	return store, nil
}

// Close stops the GC runner (if running) and closes the database.
func (s *Store) Close() error {
	if s.gcRunner != nil {
		s.gcRunner.Stop()
	}
	return s.db.Close()
}

// Path returns the database path, or empty string for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// InMemory returns true if this is an in-memory store.
func (s *Store) InMemory() bool {
	return s.inMemory
}

// =============================================================================
// Key Scheme
// =============================================================================

const (
	runKeyPrefix      = "run/"
	artifactKeyInfix  = "/artifact/"
	recordKeySuffix   = "/record"
	artifactScanLimit = 10000
)

func artifactKey(runID, name string) []byte {
	return []byte(runKeyPrefix + runID + artifactKeyInfix + name)
}

func recordKey(runID string) []byte {
	return []byte(runKeyPrefix + runID + recordKeySuffix)
}

// =============================================================================
// Artifacts
// =============================================================================

// Put writes one artifact under its run-scoped key. With SyncWrites
// enabled the write is durable when Put returns.
func (s *Store) Put(ctx context.Context, runID, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if runID == "" || name == "" {
		return errors.New("runID and artifact name are required")
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(artifactKey(runID, name), data)
	})
}

// Get reads one artifact. Returns datatypes.ErrArtifactNotFound when the
// run has no artifact of that name.
func (s *Store) Get(ctx context.Context, runID, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(artifactKey(runID, name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return datatypes.ErrArtifactNotFound
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ListArtifacts returns the artifact names stored for a run, in key order.
func (s *Store) ListArtifacts(ctx context.Context, runID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	prefix := []byte(runKeyPrefix + runID + artifactKeyInfix)
	var names []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			names = append(names, strings.TrimPrefix(key, string(prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// =============================================================================
// Run Records
// =============================================================================

// PutRunRecord persists the terminal RunResult for a run.
func (s *Store) PutRunRecord(ctx context.Context, result *datatypes.RunResult) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if result == nil || result.RunID == "" {
		return errors.New("run result with a run ID is required")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(result.RunID), data)
	})
}

// GetRunRecord loads the RunResult for a run. Returns
// datatypes.ErrRunNotFound when no record exists.
func (s *Store) GetRunRecord(ctx context.Context, runID string) (*datatypes.RunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	var result datatypes.RunResult
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(runID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return datatypes.ErrRunNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &result)
		})
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListRuns scans all run records, in run-ID key order. The scan is bounded
// to keep one handler call from loading an unbounded history.
func (s *Store) ListRuns(ctx context.Context) ([]datatypes.RunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	var results []datatypes.RunResult
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && len(results) < artifactScanLimit; it.Next() {
			item := it.Item()
			if !strings.HasSuffix(string(item.Key()), recordKeySuffix) {
				continue
			}
			var result datatypes.RunResult
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &result)
			}); err != nil {
				return err
			}
			results = append(results, result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
