// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates regalloc configuration.
package config

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/regalloc/services/regalloc/genalg"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig indicates a configuration that failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// configValidate is shared by every Validate call.
var configValidate = validator.New()

// Config is the root of regalloc.yaml.
type Config struct {
	Run       RunConfig       `yaml:"run" json:"run"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Server    ServerConfig    `yaml:"server" json:"server"`
}

// RunConfig holds the genetic algorithm parameters of one allocation run.
type RunConfig struct {
	// PopulationSize is both the initial population and the post-reduce size.
	PopulationSize int `yaml:"population_size" json:"population_size" validate:"gte=1,lte=100000"`

	// SelectionSize is the reproduction pool target per generation.
	SelectionSize int `yaml:"selection_size" json:"selection_size" validate:"gte=1,lte=100000"`

	// Generations is the maximum number of generations per island.
	Generations int `yaml:"generations" json:"generations" validate:"gte=0,lte=1000000"`

	MutationRatio genalg.Ratio `yaml:"mutation_ratio" json:"mutation_ratio"`
	CrossRatio    genalg.Ratio `yaml:"cross_ratio" json:"cross_ratio"`

	// Seed makes runs reproducible. 0 derives a seed from the clock.
	Seed uint64 `yaml:"seed" json:"seed"`

	// StallGenerations stops an island after this many generations without
	// improvement. 0 disables the check.
	StallGenerations int `yaml:"stall_generations" json:"stall_generations" validate:"gte=0"`

	// Islands is the number of independent populations searched concurrently.
	Islands int `yaml:"islands" json:"islands" validate:"gte=1,lte=256"`
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	ServiceName     string `yaml:"service_name" json:"service_name" validate:"required"`
	TracesExporter  string `yaml:"traces_exporter" json:"traces_exporter" validate:"oneof=otlp stdout none"`
	MetricsExporter string `yaml:"metrics_exporter" json:"metrics_exporter" validate:"oneof=prometheus stdout none"`
	OTLPEndpoint    string `yaml:"otlp_endpoint" json:"otlp_endpoint"`
}

// StorageConfig configures the run store.
type StorageConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Path     string `yaml:"path" json:"path" validate:"required_if=Enabled true InMemory false"`
	InMemory bool   `yaml:"in_memory" json:"in_memory"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json" json:"json"`
	Dir   string `yaml:"dir" json:"dir"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" json:"port" validate:"gte=1,lte=65535"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Run:       DefaultRunConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Storage: StorageConfig{
			Enabled: false,
			Path:    "~/.regalloc/runs",
		},
		Logging: LoggingConfig{Level: "info"},
		Server:  ServerConfig{Port: 8088},
	}
}

// DefaultRunConfig returns GA parameters that color typical basic-block
// schedules of a few hundred variables in well under a second.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		PopulationSize:   32,
		SelectionSize:    24,
		Generations:      200,
		MutationRatio:    genalg.Ratio{Num: 1, Den: 4},
		CrossRatio:       genalg.Ratio{Num: 3, Den: 4},
		StallGenerations: 40,
		Islands:          1,
	}
}

// DefaultTelemetryConfig discards traces and exposes metrics for Prometheus.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		ServiceName:     "regalloc",
		TracesExporter:  "none",
		MetricsExporter: "prometheus",
	}
}

// Validate checks struct tags and cross-field rules.
//
// Outputs:
//   - error: Wraps ErrInvalidConfig and the validator.ValidationErrors.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks the run parameters alone. Used for API request overrides.
func (r *RunConfig) Validate() error {
	if err := configValidate.Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
