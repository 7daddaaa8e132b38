// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package audit_engine

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ruleReloadDebounce is how long the watcher waits for writes to settle
// before reloading. Editors and config pushes produce bursts of events for
// a single logical save.
const ruleReloadDebounce = 200 * time.Millisecond

// RuleWatcher hot-reloads a rule override file into an Engine.
//
// The watcher observes the file's parent directory rather than the file
// itself: most editors replace files on save, which would silently detach
// an inode-level watch. Reload failures keep the previous rule set and log
// a warning; a broken override never degrades a running scanner.
type RuleWatcher struct {
	engine  *Engine
	watcher *fsnotify.Watcher
	path    string

	done     chan struct{}
	stopOnce sync.Once
}

// WatchRules starts hot reload of the override file at path.
//
// The file is loaded once up front so a bad path fails fast. The watch
// goroutine exits when ctx is canceled or Stop is called.
func (e *Engine) WatchRules(ctx context.Context, path string) (*RuleWatcher, error) {
	if err := e.LoadRulesFile(path); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	rw := &RuleWatcher{
		engine:  e,
		watcher: watcher,
		path:    path,
		done:    make(chan struct{}),
	}
	go rw.loop(ctx)

	return rw, nil
}

// Stop ends the watch. Safe to call more than once.
func (rw *RuleWatcher) Stop() {
	rw.stopOnce.Do(func() {
		close(rw.done)
		rw.watcher.Close()
	})
}

// loop debounces write events for the override file and reloads after the
// window expires.
func (rw *RuleWatcher) loop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	reload := func() {
		timer = nil
		timerC = nil
		if err := rw.engine.LoadRulesFile(rw.path); err != nil {
			slog.Warn("Rule override reload failed, keeping previous set",
				"path", rw.path, "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-rw.done:
			return

		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(rw.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(ruleReloadDebounce)
				timerC = timer.C
			} else {
				timer.Reset(ruleReloadDebounce)
			}

		case <-timerC:
			reload()

		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Rule watcher error", "error", err)
		}
	}
}
