// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/solforge/services/audit_engine"
	"github.com/AleutianAI/solforge/services/translator/dataset"
	"github.com/AleutianAI/solforge/services/translator/handlers"
	"github.com/AleutianAI/solforge/services/translator/pipeline"
	"github.com/AleutianAI/solforge/services/translator/storage"
)

// SetupRoutes registers every translator endpoint on the router.
//
// The orchestrator, store, and engine are required; registration panics
// when any of them is nil. The corpus may be nil: the dataset endpoints
// stay registered and answer 503 until a corpus is loaded.
func SetupRoutes(router *gin.Engine, orch *pipeline.Orchestrator, store *storage.Store,
	engine *audit_engine.Engine, corpus *dataset.Corpus) {

	if store == nil {
		panic("SetupRoutes: store must not be nil")
	}
	if engine == nil {
		panic("SetupRoutes: engine must not be nil")
	}

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	translate := handlers.NewTranslateHandler(orch)

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/translate", translate.HandleTranslateSSE)
		v1.GET("/translate/ws", translate.HandleTranslateWS)
		v1.POST("/scan", handlers.HandleScan(engine))

		// Run record and artifact retrieval routes
		runs := v1.Group("/runs")
		{
			runs.GET("", handlers.ListRuns(store))
			runs.GET("/:id", handlers.GetRun(store))
			runs.GET("/:id/artifacts", handlers.ListArtifacts(store))
			runs.GET("/:id/artifacts/:name", handlers.GetArtifact(store))
		}

		// Dataset inspection routes
		datasets := v1.Group("/dataset")
		{
			datasets.GET("/stats", handlers.DatasetStats(corpus))
			datasets.POST("/sample", handlers.DatasetSample(corpus))
		}
	}
}
