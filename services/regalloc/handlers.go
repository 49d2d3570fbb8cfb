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
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AleutianAI/regalloc/services/regalloc/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DefaultListLimit is the number of runs returned when no limit is given.
const DefaultListLimit = 20

// Handlers contains the HTTP handlers for the regalloc service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleAllocate handles POST /v1/regalloc/allocate.
//
// Description:
//
//	Allocates registers for the schedule in the request body.
//
// Request Body:
//
//	AllocateRequest
//
// Response:
//
//	200 OK: AllocateResponse
//	400 Bad Request: Malformed body, invalid parameters or invalid schedule
//	503 Service Unavailable: save requested without storage
//	500 Internal Server Error: Allocation failed
func (h *Handlers) HandleAllocate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAllocate")

	var req AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    CodeInvalidRequest,
			Details: err.Error(),
		})
		return
	}

	logger.Info("Allocating registers",
		"name", req.Schedule.Name,
		"variables", len(req.Schedule.Variables),
		"save", req.Save)

	resp, err := h.svc.Allocate(c.Request.Context(), req)
	if err != nil {
		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			logger.Error("Allocation failed", "error", err)
		} else {
			logger.Warn("Allocation rejected", "error", err, "code", code)
		}
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleGraph handles POST /v1/regalloc/graph.
//
// Description:
//
//	Renders the conflict graph of a schedule as Graphviz DOT.
//
// Response:
//
//	200 OK: text/vnd.graphviz body
//	400 Bad Request: Malformed body or invalid schedule
func (h *Handlers) HandleGraph(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGraph")

	var req GraphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    CodeInvalidRequest,
			Details: err.Error(),
		})
		return
	}

	dot, err := h.svc.Graph(c.Request.Context(), &req.Schedule, req.Colored)
	if err != nil {
		status, code := classify(err)
		logger.Warn("Graph failed", "error", err, "code", code)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	c.Data(http.StatusOK, "text/vnd.graphviz; charset=utf-8", []byte(dot))
}

// HandleListRuns handles GET /v1/regalloc/runs.
//
// Query Parameters:
//
//	limit: Maximum number of runs (optional, default 20)
//
// Response:
//
//	200 OK: RunsResponse
//	400 Bad Request: Invalid limit
//	503 Service Unavailable: Storage disabled
func (h *Handlers) HandleListRuns(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListRuns")

	limit := DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "limit must be a positive integer",
				Code:  CodeInvalidRequest,
			})
			return
		}
		limit = n
	}

	runs, err := h.svc.ListRuns(c.Request.Context(), limit)
	if err != nil {
		status, code := classify(err)
		logger.Warn("List runs failed", "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	if runs == nil {
		runs = []storage.RunSummary{}
	}

	c.JSON(http.StatusOK, RunsResponse{Runs: runs})
}

// HandleGetRun handles GET /v1/regalloc/runs/:id.
//
// Response:
//
//	200 OK: RunResponse
//	404 Not Found: Unknown run
//	503 Service Unavailable: Storage disabled
func (h *Handlers) HandleGetRun(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetRun")

	id := c.Param("id")
	rec, err := h.svc.GetRun(c.Request.Context(), id)
	if err != nil {
		status, code := classify(err)
		logger.Warn("Get run failed", "run_id", id, "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	c.JSON(http.StatusOK, RunResponse{Run: rec})
}

// HandleDeleteRun handles DELETE /v1/regalloc/runs/:id.
//
// Response:
//
//	204 No Content: Run deleted
//	404 Not Found: Unknown run
//	503 Service Unavailable: Storage disabled
func (h *Handlers) HandleDeleteRun(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDeleteRun")

	id := c.Param("id")
	if err := h.svc.DeleteRun(c.Request.Context(), id); err != nil {
		status, code := classify(err)
		logger.Warn("Delete run failed", "run_id", id, "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	c.Status(http.StatusNoContent)
}

// HandleHealth handles GET /v1/regalloc/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
		Storage: h.svc.StorageEnabled(),
	})
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
