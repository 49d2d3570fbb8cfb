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
	"github.com/AleutianAI/regalloc/services/regalloc/binding"
	"github.com/AleutianAI/regalloc/services/regalloc/config"
	"github.com/AleutianAI/regalloc/services/regalloc/driver"
	"github.com/AleutianAI/regalloc/services/regalloc/genalg"
	"github.com/AleutianAI/regalloc/services/regalloc/lifetime"
	"github.com/AleutianAI/regalloc/services/regalloc/schedule"
	"github.com/AleutianAI/regalloc/services/regalloc/storage"
)

// AllocateRequest is the request body for POST /v1/regalloc/allocate.
type AllocateRequest struct {
	// Schedule holds the variable lifetimes to allocate.
	Schedule schedule.Document `json:"schedule"`

	// Params overrides individual run parameters (optional).
	Params *RunOverrides `json:"params,omitempty"`

	// Arch maps colors onto a register file (optional).
	Arch string `json:"arch,omitempty" binding:"omitempty,oneof=x86_64 arm64 riscv64"`

	// Save persists the run. Requires storage.
	Save bool `json:"save,omitempty"`
}

// RunOverrides replaces the service's default run parameters field by field.
type RunOverrides struct {
	PopulationSize   *int          `json:"population_size,omitempty" binding:"omitempty,gte=1"`
	SelectionSize    *int          `json:"selection_size,omitempty" binding:"omitempty,gte=1"`
	Generations      *int          `json:"generations,omitempty" binding:"omitempty,gte=0"`
	MutationRatio    *genalg.Ratio `json:"mutation_ratio,omitempty"`
	CrossRatio       *genalg.Ratio `json:"cross_ratio,omitempty"`
	Seed             *uint64       `json:"seed,omitempty"`
	StallGenerations *int          `json:"stall_generations,omitempty" binding:"omitempty,gte=0"`
	Islands          *int          `json:"islands,omitempty" binding:"omitempty,gte=1"`
}

// Apply returns base with every set override replaced.
func (o *RunOverrides) Apply(base config.RunConfig) config.RunConfig {
	if o == nil {
		return base
	}
	if o.PopulationSize != nil {
		base.PopulationSize = *o.PopulationSize
	}
	if o.SelectionSize != nil {
		base.SelectionSize = *o.SelectionSize
	}
	if o.Generations != nil {
		base.Generations = *o.Generations
	}
	if o.MutationRatio != nil {
		base.MutationRatio = *o.MutationRatio
	}
	if o.CrossRatio != nil {
		base.CrossRatio = *o.CrossRatio
	}
	if o.Seed != nil {
		base.Seed = *o.Seed
	}
	if o.StallGenerations != nil {
		base.StallGenerations = *o.StallGenerations
	}
	if o.Islands != nil {
		base.Islands = *o.Islands
	}
	return base
}

// AllocateResponse is the response for POST /v1/regalloc/allocate.
type AllocateResponse struct {
	// RunID is set when the run was saved.
	RunID string `json:"run_id,omitempty"`

	Name string `json:"name,omitempty"`

	// Registers is the number of colors used by the winner.
	Registers uint16 `json:"registers"`

	// LowerBound is the maximum number of simultaneously live variables.
	LowerBound int `json:"lower_bound"`

	Seed        uint64 `json:"seed"`
	Generations int    `json:"generations"`
	Island      int    `json:"island"`
	ElapsedMS   int64  `json:"elapsed_ms"`

	Gene     []lifetime.VarID                `json:"gene"`
	Coloring map[lifetime.VarID]genalg.Color `json:"coloring"`

	// Rows renders each register's occupancy over the schedule.
	Rows []string `json:"rows"`

	// Utilization is the fraction of live cycles of each row, in row order.
	Utilization []float64 `json:"utilization"`

	Assignment *binding.Assignment `json:"assignment,omitempty"`

	History []genalg.GenerationStats `json:"history"`
	Islands []driver.IslandResult    `json:"islands,omitempty"`
}

// GraphRequest is the request body for POST /v1/regalloc/graph.
type GraphRequest struct {
	Schedule schedule.Document `json:"schedule"`

	// Colored runs an allocation with default parameters and fills each
	// vertex with its register color.
	Colored bool `json:"colored,omitempty"`
}

// RunsResponse is the response for GET /v1/regalloc/runs.
type RunsResponse struct {
	Runs []storage.RunSummary `json:"runs"`
}

// RunResponse is the response for GET /v1/regalloc/runs/:id.
type RunResponse struct {
	Run *storage.RunRecord `json:"run"`
}

// HealthResponse is the response for GET /v1/regalloc/health.
type HealthResponse struct {
	// Status is "healthy".
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`

	// Storage reports whether runs can be saved.
	Storage bool `json:"storage"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code.
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
