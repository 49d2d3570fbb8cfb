// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the allocator's instruments. All use the "regalloc_" prefix.
//
// A nil *Metrics is valid; every Record method is then a no-op.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// RunsTotal counts allocation runs by status.
	RunsTotal metric.Int64Counter

	// GenerationsTotal counts completed generations across all islands.
	GenerationsTotal metric.Int64Counter

	// RunDuration records allocation run duration in seconds.
	RunDuration metric.Float64Histogram

	// BestPhene records the winning register count of each run.
	BestPhene metric.Int64Histogram

	// ErrorsTotal counts errors by operation.
	ErrorsTotal metric.Int64Counter
}

// NewMetrics registers every instrument with meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.RunsTotal, err = meter.Int64Counter(
		"regalloc_runs_total",
		metric.WithDescription("Total allocation runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create runs_total: %w", err)
	}

	m.GenerationsTotal, err = meter.Int64Counter(
		"regalloc_generations_total",
		metric.WithDescription("Total generations evolved"),
		metric.WithUnit("{generation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create generations_total: %w", err)
	}

	m.RunDuration, err = meter.Float64Histogram(
		"regalloc_run_duration_seconds",
		metric.WithDescription("Allocation run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30),
	)
	if err != nil {
		return nil, fmt.Errorf("create run_duration: %w", err)
	}

	m.BestPhene, err = meter.Int64Histogram(
		"regalloc_best_phene",
		metric.WithDescription("Registers used by the winning chromosome"),
		metric.WithUnit("{register}"),
		metric.WithExplicitBucketBoundaries(1, 2, 4, 8, 12, 16, 24, 32, 64),
	)
	if err != nil {
		return nil, fmt.Errorf("create best_phene: %w", err)
	}

	m.ErrorsTotal, err = meter.Int64Counter(
		"regalloc_errors_total",
		metric.WithDescription("Total errors by operation"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors_total: %w", err)
	}

	return m, nil
}

// NewGlobalMetrics registers the instruments on the global meter provider.
func NewGlobalMetrics() (*Metrics, error) {
	return NewMetrics(otel.Meter(TracerName))
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(ctx context.Context, status string, elapsed time.Duration, phene uint16, generations int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.RunsTotal.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.GenerationsTotal.Add(ctx, int64(generations))
	if status == "ok" {
		m.BestPhene.Record(ctx, int64(phene))
	}
}

// RecordError counts a failed operation.
func (m *Metrics) RecordError(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}
