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

	"github.com/AleutianAI/solforge/services/audit_engine"
	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// ScanRequest is the request body for POST /v1/scan.
type ScanRequest struct {
	// Code is the Solidity source to scan. Subject to the same size cap
	// as translation input.
	Code string `json:"code"`
}

// HandleScan handles POST /v1/scan.
//
// # Description
//
// Runs the security pattern engine directly over posted Solidity code,
// outside any pipeline run. The same rule set and structural detectors
// apply, so a scan here reproduces exactly what phase 4 would report for
// the same code. Nothing is persisted.
//
// # Outputs
//
//   - 200: the SecurityAuditReport JSON.
//   - 400: invalid body, empty/whitespace-only code, or oversized code.
//   - 500: scanner failure (sanitized).
func HandleScan(engine *audit_engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if len(req.Code) > datatypes.MaxSourceBytes {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "code exceeds maximum size",
			})
			return
		}

		report, err := engine.Scan(req.Code)
		if err != nil {
			var unavailable *datatypes.AuditUnavailableError
			if errors.As(err, &unavailable) {
				c.JSON(http.StatusBadRequest, gin.H{"error": unavailable.Error()})
				return
			}
			slog.Error("Direct scan failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "scan failed"})
			return
		}

		c.JSON(http.StatusOK, report)
	}
}
