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
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/regalloc/services/regalloc/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.TelemetryConfig{
		ServiceName:     "regalloc-test",
		TracesExporter:  "stdout",
		MetricsExporter: "none",
	})

	assert.Equal(t, "regalloc-test", cfg.ServiceName)
	assert.Equal(t, "stdout", cfg.TraceExporter)
	assert.Equal(t, "none", cfg.MetricExporter)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, Version, cfg.ServiceVersion)
}

func TestInit_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	_, err := Init(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestInit_None(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "none"

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_Prometheus(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	assert.NotNil(t, MetricsHandler())
}

func TestInit_PrometheusScrape(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	// A second Init registers the same collectors again.
	for i := 0; i < 2; i++ {
		shutdown, err := Init(context.Background(), cfg)
		require.NoError(t, err)
		defer func() { _ = shutdown(context.Background()) }()
	}

	m, err := NewGlobalMetrics()
	require.NoError(t, err)
	m.RecordRun(context.Background(), "ok", time.Millisecond, 2, 5)

	w := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "regalloc_runs")
}

func TestInit_Stdout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "stdout"
	cfg.MetricExporter = "stdout"

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	assert.Nil(t, MetricsHandler())
}

func TestInit_UnknownExporter(t *testing.T) {
	tests := []struct {
		name  string
		trace string
		meter string
	}{
		{"trace", "zipkin", "none"},
		{"metric", "none", "statsd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.TraceExporter = tt.trace
			cfg.MetricExporter = tt.meter

			_, err := Init(context.Background(), cfg)
			assert.ErrorIs(t, err, ErrUnknownExporter)
		})
	}
}

func newRecorder(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder, tp
}

func TestRecordError(t *testing.T) {
	recorder, tp := newRecorder(t)
	_, span := tp.Tracer(TracerName).Start(context.Background(), "op")

	RecordError(span, errors.New("boom"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)

	// Nil inputs are no-ops.
	RecordError(nil, errors.New("ignored"))
	RecordError(span, nil)
	SetSpanOK(nil)
}

func TestSetSpanOK(t *testing.T) {
	recorder, tp := newRecorder(t)
	_, span := tp.Tracer(TracerName).Start(context.Background(), "op")
	SetSpanOK(span)
	span.End()

	assert.Equal(t, codes.Ok, recorder.Ended()[0].Status().Code)
}

func TestLoggerWithTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	assert.Same(t, logger, LoggerWithTrace(context.Background(), logger))
	assert.Empty(t, TraceID(context.Background()))

	_, tp := newRecorder(t)
	ctx, span := tp.Tracer(TracerName).Start(context.Background(), "op")
	defer span.End()

	LoggerWithTrace(ctx, logger).Info("traced")
	out := buf.String()
	assert.True(t, strings.Contains(out, "trace_id="+TraceID(ctx)), out)
	assert.Contains(t, out, "span_id=")
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestMetrics_RecordRun(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewMetrics(mp.Meter(TracerName))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordRun(ctx, "ok", 250*time.Millisecond, 3, 40)
	m.RecordRun(ctx, "error", time.Millisecond, 0, 2)
	m.RecordError(ctx, "allocate")

	data := collect(t, reader)

	runs, ok := data["regalloc_runs_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	total := int64(0)
	for _, dp := range runs.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(2), total)

	gens, ok := data["regalloc_generations_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, gens.DataPoints, 1)
	assert.Equal(t, int64(42), gens.DataPoints[0].Value)

	phene, ok := data["regalloc_best_phene"].(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, phene.DataPoints, 1)
	assert.Equal(t, uint64(1), phene.DataPoints[0].Count)

	errs, ok := data["regalloc_errors_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), errs.DataPoints[0].Value)

	_, ok = data["regalloc_run_duration_seconds"].(metricdata.Histogram[float64])
	assert.True(t, ok)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRun(context.Background(), "ok", time.Second, 2, 1)
	m.RecordError(context.Background(), "allocate")
}
