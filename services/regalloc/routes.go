// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package regalloc

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all regalloc routes with the router.
//
// Endpoints:
//
//	POST /v1/regalloc/allocate - Allocate registers for a schedule
//	POST /v1/regalloc/graph    - Render a schedule's conflict graph as DOT
//	GET  /v1/regalloc/runs     - List saved runs
//	GET  /v1/regalloc/runs/:id - Get a saved run
//	DELETE /v1/regalloc/runs/:id - Delete a saved run
//	GET  /v1/regalloc/health   - Health check
//
// Example:
//
//	handlers := regalloc.NewHandlers(regalloc.NewService(regalloc.DefaultServiceConfig()))
//	v1 := router.Group("/v1")
//	regalloc.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	ra := rg.Group("/regalloc")
	{
		ra.POST("/allocate", handlers.HandleAllocate)
		ra.POST("/graph", handlers.HandleGraph)

		ra.GET("/runs", handlers.HandleListRuns)
		ra.GET("/runs/:id", handlers.HandleGetRun)
		ra.DELETE("/runs/:id", handlers.HandleDeleteRun)

		ra.GET("/health", handlers.HandleHealth)
	}
}
