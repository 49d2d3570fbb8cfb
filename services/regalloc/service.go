// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package regalloc provides the register allocation service.
//
// The service exposes operations for:
//   - Allocating registers for a schedule of variable lifetimes
//   - Rendering the conflict graph of a schedule as Graphviz DOT
//   - Listing, retrieving and deleting saved runs
//
// An allocation flows through the subpackages in order:
//
//	schedule.Document ─► lifetime.Table ─► graph.Graph ─► driver.Run
//	                                                          │
//	        storage.RunStore ◄── binding.Bind / binding.Assign ◄┘
package regalloc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/regalloc/services/regalloc/binding"
	"github.com/AleutianAI/regalloc/services/regalloc/config"
	"github.com/AleutianAI/regalloc/services/regalloc/driver"
	"github.com/AleutianAI/regalloc/services/regalloc/genalg"
	"github.com/AleutianAI/regalloc/services/regalloc/graph"
	"github.com/AleutianAI/regalloc/services/regalloc/lifetime"
	"github.com/AleutianAI/regalloc/services/regalloc/schedule"
	"github.com/AleutianAI/regalloc/services/regalloc/storage"
	"github.com/AleutianAI/regalloc/services/regalloc/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ServiceVersion is the regalloc service version.
const ServiceVersion = "0.1.0"

// ServiceConfig configures the regalloc service.
type ServiceConfig struct {
	// Run holds the default run parameters. Requests may override them.
	Run config.RunConfig

	// MaxVariables caps the schedule size. 0 means no limit.
	// Default: 4096
	MaxVariables int

	// MaxCycles caps the schedule's cycle horizon. Register rows hold one
	// cell per cycle. 0 means no limit.
	// Default: 65536
	MaxCycles int
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Run:          config.DefaultRunConfig(),
		MaxVariables: 4096,
		MaxCycles:    65536,
	}
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithStore enables run persistence.
func WithStore(store *storage.RunStore) ServiceOption {
	return func(s *Service) {
		s.store = store
	}
}

// WithDriver replaces the default driver.
func WithDriver(d *driver.Driver) ServiceOption {
	return func(s *Service) {
		if d != nil {
			s.driver = d
		}
	}
}

// WithServiceLogger sets the service's logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service allocates registers for schedules.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	config ServiceConfig
	driver *driver.Driver
	store  *storage.RunStore
	logger *slog.Logger
}

// NewService creates a service. Without WithStore, saving is disabled.
func NewService(cfg ServiceConfig, opts ...ServiceOption) *Service {
	s := &Service{
		config: cfg,
		logger: slog.Default().With(slog.String("component", "regalloc")),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.driver == nil {
		s.driver = driver.New(driver.WithLogger(s.logger.With(slog.String("component", "driver"))))
	}
	return s
}

// StorageEnabled reports whether runs can be saved and listed.
func (s *Service) StorageEnabled() bool {
	return s.store != nil
}

// Allocate colors a schedule and maps the colors to registers.
//
// Description:
//
//	Builds the lifetime table and conflict graph of req.Schedule, runs the
//	driver with the service defaults overridden by req.Params, and binds
//	the winning coloring to register rows. The table's maximum pressure is
//	passed to the driver as the lower bound, so runs that reach it stop
//	early. When req.Save is set the run is persisted.
//
// Inputs:
//   - ctx: Cancellation and trace context.
//   - req: The allocation request.
//
// Outputs:
//   - *AllocateResponse: The winning allocation.
//   - error: *OperationError wrapping the failing component's error.
func (s *Service) Allocate(ctx context.Context, req AllocateRequest) (*AllocateResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "regalloc.Allocate",
		trace.WithAttributes(attribute.Int("variables", len(req.Schedule.Variables))),
	)
	defer span.End()

	fail := func(component, operation string, err error) (*AllocateResponse, error) {
		opErr := &OperationError{Component: component, Operation: operation, Err: err}
		telemetry.RecordError(span, opErr)
		return nil, opErr
	}

	if req.Save && s.store == nil {
		return fail("storage", "Save", ErrStorageDisabled)
	}

	runCfg := req.Params.Apply(s.config.Run)
	if err := runCfg.Validate(); err != nil {
		return fail("config", "Validate", err)
	}

	var file *binding.RegisterFile
	if req.Arch != "" {
		f, err := binding.RegisterFileFor(req.Arch)
		if err != nil {
			return fail("binding", "RegisterFileFor", err)
		}
		file = &f
	}

	table, g, err := s.buildGraph(&req.Schedule)
	if err != nil {
		return fail("schedule", "FromDocument", err)
	}

	params := driver.ParamsFromConfig(runCfg)
	params.LowerBound = table.MaxPressure()

	result, err := s.driver.Run(ctx, g, params)
	if err != nil {
		return fail("driver", "Run", err)
	}

	rows, err := binding.Bind(result.Coloring(), table)
	if err != nil {
		return fail("binding", "Bind", err)
	}

	resp := &AllocateResponse{
		Name:        req.Schedule.Name,
		Registers:   result.Phene(),
		LowerBound:  params.LowerBound,
		Seed:        result.Seed,
		Generations: result.Generations(),
		Island:      result.Island,
		ElapsedMS:   result.Elapsed.Milliseconds(),
		Gene:        result.Winner.Gene(),
		Coloring:    result.Coloring(),
		History:     result.History(),
		Islands:     result.Islands,
	}
	for _, row := range rows {
		resp.Rows = append(resp.Rows, row.String())
		resp.Utilization = append(resp.Utilization, row.Utilization())
	}
	if file != nil {
		a := binding.Assign(resp.Coloring, *file)
		resp.Assignment = &a
	}

	if req.Save {
		runCfg.Seed = result.Seed
		rec := &storage.RunRecord{
			Name:       req.Schedule.Name,
			Seed:       result.Seed,
			Params:     runCfg,
			Phene:      resp.Registers,
			LowerBound: resp.LowerBound,
			Gene:       resp.Gene,
			Coloring:   resp.Coloring,
			History:    resp.History,
			Horizon:    table.Horizon(),
			Variables:  sortedLifetimes(table),
			DurationMS: resp.ElapsedMS,
		}
		if err := s.store.Save(ctx, rec); err != nil {
			return fail("storage", "Save", err)
		}
		resp.RunID = rec.ID
		span.SetAttributes(attribute.String("run_id", rec.ID))
	}

	telemetry.SetSpanOK(span)
	telemetry.LoggerWithTrace(ctx, s.logger).Info("allocation complete",
		slog.String("name", resp.Name),
		slog.Int("variables", g.Len()),
		slog.Int("registers", int(resp.Registers)),
		slog.Int("lower_bound", resp.LowerBound),
		slog.String("run_id", resp.RunID),
	)
	return resp, nil
}

// Graph renders the conflict graph of doc as Graphviz DOT. With colored set,
// an allocation with the default parameters colors the vertices.
func (s *Service) Graph(ctx context.Context, doc *schedule.Document, colored bool) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "regalloc.Graph")
	defer span.End()

	table, g, err := s.buildGraph(doc)
	if err != nil {
		err = &OperationError{Component: "schedule", Operation: "FromDocument", Err: err}
		telemetry.RecordError(span, err)
		return "", err
	}

	var coloring map[graph.VarID]genalg.Color
	if colored {
		params := driver.ParamsFromConfig(s.config.Run)
		params.LowerBound = table.MaxPressure()
		result, err := s.driver.Run(ctx, g, params)
		if err != nil {
			err = &OperationError{Component: "driver", Operation: "Run", Err: err}
			telemetry.RecordError(span, err)
			return "", err
		}
		coloring = result.Coloring()
	}

	var sb strings.Builder
	if err := graph.WriteDOT(&sb, g, coloring); err != nil {
		return "", fmt.Errorf("write dot: %w", err)
	}
	telemetry.SetSpanOK(span)
	return sb.String(), nil
}

// ListRuns returns up to limit saved runs, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]storage.RunSummary, error) {
	if s.store == nil {
		return nil, &OperationError{Component: "storage", Operation: "List", Err: ErrStorageDisabled}
	}
	runs, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, &OperationError{Component: "storage", Operation: "List", Err: err}
	}
	return runs, nil
}

// GetRun returns one saved run.
func (s *Service) GetRun(ctx context.Context, id string) (*storage.RunRecord, error) {
	if s.store == nil {
		return nil, &OperationError{Component: "storage", Operation: "Get", Err: ErrStorageDisabled}
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, &OperationError{Component: "storage", Operation: "Get", Err: err}
	}
	return rec, nil
}

// DeleteRun removes one saved run.
func (s *Service) DeleteRun(ctx context.Context, id string) error {
	if s.store == nil {
		return &OperationError{Component: "storage", Operation: "Delete", Err: ErrStorageDisabled}
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return &OperationError{Component: "storage", Operation: "Delete", Err: err}
	}
	s.logger.Info("run deleted", slog.String("run_id", id))
	return nil
}

func (s *Service) buildGraph(doc *schedule.Document) (*lifetime.Table, *graph.Graph, error) {
	if s.config.MaxVariables > 0 && len(doc.Variables) > s.config.MaxVariables {
		return nil, nil, fmt.Errorf("%w: %d variables > %d", ErrScheduleTooLarge, len(doc.Variables), s.config.MaxVariables)
	}
	if s.config.MaxCycles > 0 && uint64(doc.Cycles) > uint64(s.config.MaxCycles) {
		return nil, nil, fmt.Errorf("%w: %d cycles > %d", ErrScheduleTooLarge, doc.Cycles, s.config.MaxCycles)
	}
	table, err := schedule.FromDocument(doc)
	if err != nil {
		return nil, nil, err
	}
	return table, graph.FromTable(table), nil
}

func sortedLifetimes(t *lifetime.Table) []lifetime.Lifetime {
	out := make([]lifetime.Lifetime, 0, t.Len())
	for _, id := range t.IDs() {
		lt, _ := t.Lifetime(id)
		out = append(out, lt)
	}
	return out
}
