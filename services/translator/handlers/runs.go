// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
	"github.com/AleutianAI/solforge/services/translator/storage"
)

// ListRuns handles GET /v1/runs.
//
// Returns every persisted run record with a count. Records are terminal
// summaries only; in-flight runs are not listed.
func ListRuns(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		runs, err := store.ListRuns(c.Request.Context())
		if err != nil {
			slog.Error("Failed to list runs", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"runs":  runs,
			"count": len(runs),
		})
	}
}

// GetRun handles GET /v1/runs/:id.
//
// Returns the RunResult for the given run, 404 when no record exists.
func GetRun(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		runID := c.Param("id")

		rec, err := store.GetRunRecord(c.Request.Context(), runID)
		if err != nil {
			if errors.Is(err, datatypes.ErrRunNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
				return
			}
			slog.Error("Failed to load run record", "runId", runID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run"})
			return
		}

		c.JSON(http.StatusOK, rec)
	}
}

// GetArtifact handles GET /v1/runs/:id/artifacts/:name.
//
// Streams the raw artifact bytes with a content type inferred from the
// artifact name. 404 when the run never produced that artifact.
func GetArtifact(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		runID := c.Param("id")
		name := c.Param("name")

		data, err := store.Get(c.Request.Context(), runID, name)
		if err != nil {
			if errors.Is(err, datatypes.ErrArtifactNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
				return
			}
			slog.Error("Failed to load artifact",
				"runId", runID,
				"artifact", name,
				"error", err,
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load artifact"})
			return
		}

		c.Data(http.StatusOK, artifactContentType(name), data)
	}
}

// ListArtifacts handles GET /v1/runs/:id/artifacts.
//
// Returns the artifact names stored for the run, in key order. An empty
// list for an existing run means every phase failed before producing
// output; an unknown run also returns an empty list, so callers that
// need existence checks should use GetRun.
func ListArtifacts(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		runID := c.Param("id")

		names, err := store.ListArtifacts(c.Request.Context(), runID)
		if err != nil {
			slog.Error("Failed to list artifacts", "runId", runID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list artifacts"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"run_id":    runID,
			"artifacts": names,
			"count":     len(names),
		})
	}
}

// artifactContentType maps an artifact name to its response content type.
func artifactContentType(name string) string {
	switch path.Ext(name) {
	case ".json":
		return "application/json"
	case ".py":
		return "text/x-python; charset=utf-8"
	default:
		// .sol, .txt, .diff ship as plain text.
		return "text/plain; charset=utf-8"
	}
}
