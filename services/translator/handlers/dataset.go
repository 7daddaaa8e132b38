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

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/solforge/services/translator/dataset"
	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// SampleRequest is the request body for POST /v1/dataset/sample.
type SampleRequest struct {
	// Size is the number of records to draw, without replacement.
	Size int `json:"size"`

	// Seed drives the deterministic shuffle. The same (corpus, size,
	// seed) triple always yields the same sample.
	Seed int64 `json:"seed"`
}

// DatasetStats handles GET /v1/dataset/stats.
//
// Returns record count, skipped-line count, and the Solidity version
// histogram for the loaded corpus. 503 when the service started without
// a corpus.
func DatasetStats(corpus *dataset.Corpus) gin.HandlerFunc {
	return func(c *gin.Context) {
		if corpus == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no corpus loaded"})
			return
		}

		c.JSON(http.StatusOK, corpus.Stats())
	}
}

// DatasetSample handles POST /v1/dataset/sample.
//
// # Description
//
// Draws a seeded deterministic sample from the loaded corpus and returns
// both the selected indices and the full records. Oversized requests are
// rejected whole rather than truncated, so batch evaluation over the
// response is always exactly the requested size.
//
// # Outputs
//
//   - 200: {"indices": [...], "records": [...], "seed": n}
//   - 400: invalid body, non-positive size, or size exceeding the corpus.
//   - 503: no corpus loaded.
func DatasetSample(corpus *dataset.Corpus) gin.HandlerFunc {
	return func(c *gin.Context) {
		if corpus == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no corpus loaded"})
			return
		}

		var req SampleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if req.Size <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "size must be positive"})
			return
		}

		indices, err := corpus.Sample(req.Size, req.Seed)
		if err != nil {
			var sizeErr *datatypes.SampleSizeError
			if errors.As(err, &sizeErr) {
				c.JSON(http.StatusBadRequest, gin.H{"error": sizeErr.Error()})
				return
			}
			slog.Error("Corpus sampling failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "sampling failed"})
			return
		}

		records := make([]datatypes.DatasetRecord, 0, len(indices))
		for _, idx := range indices {
			records = append(records, corpus.Record(idx))
		}

		c.JSON(http.StatusOK, gin.H{
			"indices": indices,
			"records": records,
			"seed":    req.Seed,
		})
	}
}
