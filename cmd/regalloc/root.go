// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/AleutianAI/regalloc/pkg/logging"
	"github.com/AleutianAI/regalloc/pkg/ux"
	"github.com/AleutianAI/regalloc/services/regalloc"
	"github.com/AleutianAI/regalloc/services/regalloc/config"
	"github.com/AleutianAI/regalloc/services/regalloc/storage"
	"github.com/spf13/cobra"
)

// app carries state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	logJSON    bool
	output     string
	storePath  string

	stdout io.Writer
	stderr io.Writer

	cfg     *config.Config
	logger  *logging.Logger
	printer *ux.Printer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "regalloc",
		Short: "Allocate registers by evolving conflict graph colorings",
		Long: `regalloc reads variable lifetimes, builds their conflict graph and runs a
genetic algorithm over vertex orderings. Each ordering is decoded greedily
into a proper coloring; fewer colors means fewer registers.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.logger != nil {
				return a.logger.Close()
			}
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to regalloc.yaml (defaults are used when empty)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.BoolVar(&a.logJSON, "log-json", false, "log JSON to stderr")
	pf.StringVar(&a.output, "output", "auto", "output style: auto, rich or plain")
	pf.StringVar(&a.storePath, "store", "", "run store directory; enables storage")

	root.AddCommand(
		newRunCmd(a),
		newGraphCmd(a),
		newRunsCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logJSON {
		cfg.Logging.JSON = true
	}
	if a.storePath != "" {
		cfg.Storage.Enabled = true
		cfg.Storage.InMemory = false
		cfg.Storage.Path = a.storePath
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.New(logging.Config{
		Level:   level,
		JSON:    cfg.Logging.JSON,
		LogDir:  cfg.Logging.Dir,
		Service: "regalloc",
		Output:  a.stderr,
	})
	slog.SetDefault(a.logger.Slog())
	a.printer = ux.NewPrinter(a.stdout, a.stderr, ux.ParseMode(a.output))
	return nil
}

// serviceConfig applies run to the default service limits.
func serviceConfig(run config.RunConfig) regalloc.ServiceConfig {
	cfg := regalloc.DefaultServiceConfig()
	cfg.Run = run
	return cfg
}

// openStore opens the configured on-disk run store.
func (a *app) openStore() (*storage.DB, *storage.RunStore, error) {
	sc := a.cfg.Storage
	if !sc.Enabled {
		return nil, nil, errors.New("run storage is disabled; use --store or storage.enabled")
	}
	if sc.InMemory {
		return nil, nil, errors.New("the run store is configured in memory; use --store or storage.path")
	}
	if sc.Path == "" {
		return nil, nil, errors.New("no run store configured; use --store or storage.path")
	}
	db, err := storage.Open(storage.FromConfig(sc, a.logger.Slog().With(slog.String("component", "badger"))))
	if err != nil {
		return nil, nil, err
	}
	return db, storage.NewRunStore(db), nil
}
