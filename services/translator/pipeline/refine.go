// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
	"github.com/AleutianAI/solforge/services/translator/observability"
)

// refineLoop drives audit-driven refinement after phase 4.
//
// # Description
//
// While the report is unapproved at medium-or-worse severity and iterations
// remain, the refiner capability proposes a patch. A unified diff is applied
// hunk by hunk; anything else replaces the source outright. The refined code
// is re-scanned and kept only when its overall severity did not increase.
// A rejected or no-change iteration ends the loop: the refiner is
// deterministic given the same code and report, so retrying it would
// reproduce the outcome.
//
// Accepted iterations persist refined_<i>.sol (and refined_<i>.diff for diff
// patches) before mutating the in-flight code, and update st.report so phases
// 5/6 see the final code's audit.
func (o *Orchestrator) refineLoop(
	ctx context.Context,
	run *datatypes.TranslationRun,
	events chan<- datatypes.Event,
	st *runState,
	bound int,
) []datatypes.RefinementResult {
	var results []datatypes.RefinementResult

	if o.caps.Refiner == nil {
		o.logger.Warn("refiner capability not configured, skipping refinement",
			"run_id", run.ID)
		return nil
	}

	for iter := 1; iter <= bound; iter++ {
		if ctx.Err() != nil {
			break
		}
		report := st.report
		if report == nil || report.Approved || report.OverallSeverity.Rank() < datatypes.SeverityMedium.Rank() {
			break
		}

		start := time.Now()
		patch, err := o.caps.Refiner.Refine(ctx, st.code, report)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordCapability("refine", o.caps.Backend, time.Since(start).Seconds())
		}
		if err != nil {
			o.logger.Warn("refiner failed, keeping current code",
				"run_id", run.ID, "iteration", iter, "error", err)
			break
		}

		rr := datatypes.RefinementResult{Iteration: iter, Mode: patch.Mode}

		refined, added, removed, err := applyRefinementPatch(st.code.Source, patch)
		if err != nil {
			rr.SeverityAfter = report.OverallSeverity
			rr.Detail = "patch not applicable: " + err.Error()
			results = append(results, rr)
			o.emit(ctx, events, datatypes.NewRefinementEvent(run.ID, rr))
			break
		}
		rr.LinesAdded = added
		rr.LinesRemoved = removed

		if refined == st.code.Source {
			rr.SeverityAfter = report.OverallSeverity
			rr.Detail = "refiner proposed no change"
			results = append(results, rr)
			o.emit(ctx, events, datatypes.NewRefinementEvent(run.ID, rr))
			break
		}

		newReport, err := o.engine.Scan(refined)
		if err != nil {
			rr.SeverityAfter = report.OverallSeverity
			rr.Detail = "re-audit failed: " + err.Error()
			results = append(results, rr)
			o.emit(ctx, events, datatypes.NewRefinementEvent(run.ID, rr))
			break
		}

		rr.SeverityAfter = newReport.OverallSeverity
		rr.Accepted = newReport.OverallSeverity.Rank() <= report.OverallSeverity.Rank()

		if rr.Accepted {
			rr.Detail = patch.Explanation
			if perr := o.store.Put(ctx, run.ID, datatypes.RefinedCodeArtifact(iter), []byte(refined)); perr != nil {
				o.logger.Warn("persist refined code failed",
					"run_id", run.ID, "iteration", iter, "error", perr)
			}
			if patch.Mode == datatypes.PatchModeDiff {
				if perr := o.store.Put(ctx, run.ID, datatypes.RefinedDiffArtifact(iter), []byte(patch.Content)); perr != nil {
					o.logger.Warn("persist refinement diff failed",
						"run_id", run.ID, "iteration", iter, "error", perr)
				}
			}
			st.code.Source = refined
			st.report = newReport
		} else {
			rr.Detail = fmt.Sprintf("severity increased (%s -> %s), refinement rejected",
				report.OverallSeverity, newReport.OverallSeverity)
		}

		o.logger.Info("refinement iteration",
			"run_id", run.ID,
			"iteration", iter,
			"mode", string(rr.Mode),
			"accepted", rr.Accepted,
			"severity_after", string(rr.SeverityAfter))

		results = append(results, rr)
		o.emit(ctx, events, datatypes.NewRefinementEvent(run.ID, rr))

		if !rr.Accepted {
			break
		}
	}

	// The final code artifact exists whenever refinement ran, even when every
	// iteration was rejected, so callers need not reconstruct which source
	// phases 5/6 consumed.
	if len(results) > 0 {
		if perr := o.store.Put(ctx, run.ID, datatypes.ArtifactFinalCode, []byte(st.code.Source)); perr != nil {
			o.logger.Warn("persist final code failed", "run_id", run.ID, "error", perr)
		}
	}

	return results
}

// applyRefinementPatch resolves a refiner patch into full refined source
// plus diff stats against the previous source.
func applyRefinementPatch(source string, patch datatypes.RefinementPatch) (string, int, int, error) {
	switch patch.Mode {
	case datatypes.PatchModeDiff:
		return applyUnifiedDiff(source, patch.Content)
	case datatypes.PatchModeFull:
		if strings.TrimSpace(patch.Content) == "" {
			return "", 0, 0, errors.New("empty replacement source")
		}
		added, removed := lineDelta(source, patch.Content)
		return patch.Content, added, removed, nil
	default:
		return "", 0, 0, fmt.Errorf("unknown patch mode %q", patch.Mode)
	}
}

// applyUnifiedDiff parses a unified diff and applies the first file's hunks
// to the source.
func applyUnifiedDiff(source, patchText string) (string, int, int, error) {
	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(patchText)).ReadAllFiles()
	if err != nil {
		return "", 0, 0, fmt.Errorf("parse diff: %w", err)
	}
	if len(fileDiffs) == 0 {
		return "", 0, 0, errors.New("diff contains no files")
	}

	fd := fileDiffs[0]
	added, removed := hunkStats(fd)

	origLines := strings.Split(source, "\n")
	newLines := make([]string, 0, len(origLines)+added)

	origIdx := 0
	for _, hunk := range fd.Hunks {
		hunkStart := int(hunk.OrigStartLine) - 1
		if hunkStart < 0 || hunkStart > len(origLines) {
			return "", 0, 0, fmt.Errorf("hunk start line %d out of range", hunk.OrigStartLine)
		}
		if hunkStart < origIdx {
			return "", 0, 0, errors.New("overlapping hunks")
		}
		for origIdx < hunkStart {
			newLines = append(newLines, origLines[origIdx])
			origIdx++
		}

		for _, line := range strings.Split(string(hunk.Body), "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				newLines = append(newLines, line[1:])
			case strings.HasPrefix(line, "-"):
				if origIdx >= len(origLines) {
					return "", 0, 0, errors.New("hunk removes past end of source")
				}
				origIdx++
			case strings.HasPrefix(line, " "), line == "":
				if origIdx < len(origLines) {
					newLines = append(newLines, origLines[origIdx])
					origIdx++
				}
			}
		}
	}
	for origIdx < len(origLines) {
		newLines = append(newLines, origLines[origIdx])
		origIdx++
	}

	refined := strings.Join(newLines, "\n")
	if strings.TrimSpace(refined) == "" {
		return "", 0, 0, errors.New("diff removes all content")
	}
	return refined, added, removed, nil
}

// hunkStats counts added and removed lines across a file diff's hunks.
func hunkStats(fd *diff.FileDiff) (added, removed int) {
	for _, hunk := range fd.Hunks {
		for _, line := range strings.Split(string(hunk.Body), "\n") {
			if strings.HasPrefix(line, "+") {
				added++
			} else if strings.HasPrefix(line, "-") {
				removed++
			}
		}
	}
	return added, removed
}

// lineDelta approximates diff stats for a full-source replacement by
// multiset-comparing lines.
func lineDelta(oldSource, newSource string) (added, removed int) {
	counts := make(map[string]int)
	for _, line := range strings.Split(oldSource, "\n") {
		counts[line]++
	}
	for _, line := range strings.Split(newSource, "\n") {
		if counts[line] > 0 {
			counts[line]--
		} else {
			added++
		}
	}
	for _, rest := range counts {
		removed += rest
	}
	return added, removed
}
