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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/AleutianAI/regalloc/pkg/ux"
	"github.com/AleutianAI/regalloc/services/regalloc"
	"github.com/AleutianAI/regalloc/services/regalloc/config"
	"github.com/AleutianAI/regalloc/services/regalloc/driver"
	"github.com/AleutianAI/regalloc/services/regalloc/genalg"
	"github.com/AleutianAI/regalloc/services/regalloc/graph"
	"github.com/AleutianAI/regalloc/services/regalloc/schedule"
	"github.com/AleutianAI/regalloc/services/regalloc/telemetry"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// watchDebounce batches the bursts of events editors emit on save.
const watchDebounce = 150 * time.Millisecond

type runOptions struct {
	population  int
	selection   int
	generations int
	islands     int
	stall       int
	seed        uint64
	mutation    string
	cross       string

	arch    string
	dotPath string
	save    bool
	watch   bool
	jsonOut bool

	progress bool
}

func newRunCmd(a *app) *cobra.Command {
	var ro runOptions
	cmd := &cobra.Command{
		Use:   "run SCHEDULE",
		Short: "Allocate registers for a schedule file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAllocate(cmd, args[0], &ro)
		},
	}

	f := cmd.Flags()
	f.IntVar(&ro.population, "population", 0, "population size")
	f.IntVar(&ro.selection, "selection", 0, "reproduction pool size")
	f.IntVar(&ro.generations, "generations", 0, "generation budget per island")
	f.IntVar(&ro.islands, "islands", 0, "independent populations run in parallel")
	f.IntVar(&ro.stall, "stall", 0, "stop an island after this many generations without improvement (0 disables)")
	f.Uint64Var(&ro.seed, "seed", 0, "base random seed (0 derives one from the clock)")
	f.StringVar(&ro.mutation, "mutation", "", "mutation probability as NUM/DEN")
	f.StringVar(&ro.cross, "cross", "", "crossover probability as NUM/DEN")
	f.StringVar(&ro.arch, "arch", "", "map registers onto a register file: arm64, riscv64 or x86_64")
	f.StringVar(&ro.dotPath, "dot", "", "write the colored conflict graph as Graphviz DOT to this file")
	f.BoolVar(&ro.save, "save", false, "save the run to the run store")
	f.BoolVar(&ro.watch, "watch", false, "re-run whenever the schedule file changes")
	f.BoolVar(&ro.jsonOut, "json", false, "print the allocation as JSON")
	return cmd
}

// applyFlags overrides run parameters with the flags that were set.
func (ro *runOptions) applyFlags(cmd *cobra.Command, rc *config.RunConfig) error {
	f := cmd.Flags()
	if f.Changed("population") {
		rc.PopulationSize = ro.population
	}
	if f.Changed("selection") {
		rc.SelectionSize = ro.selection
	}
	if f.Changed("generations") {
		rc.Generations = ro.generations
	}
	if f.Changed("islands") {
		rc.Islands = ro.islands
	}
	if f.Changed("stall") {
		rc.StallGenerations = ro.stall
	}
	if f.Changed("seed") {
		rc.Seed = ro.seed
	}
	if f.Changed("mutation") {
		r, err := parseRatio(ro.mutation)
		if err != nil {
			return fmt.Errorf("--mutation: %w", err)
		}
		rc.MutationRatio = r
	}
	if f.Changed("cross") {
		r, err := parseRatio(ro.cross)
		if err != nil {
			return fmt.Errorf("--cross: %w", err)
		}
		rc.CrossRatio = r
	}
	return rc.Validate()
}

// parseRatio parses "NUM/DEN".
func parseRatio(s string) (genalg.Ratio, error) {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return genalg.Ratio{}, fmt.Errorf("%w: %q is not NUM/DEN", genalg.ErrInvalidRatio, s)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(num), 10, 32)
	if err != nil {
		return genalg.Ratio{}, fmt.Errorf("%w: %q: %w", genalg.ErrInvalidRatio, s, err)
	}
	d, err := strconv.ParseUint(strings.TrimSpace(den), 10, 32)
	if err != nil {
		return genalg.Ratio{}, fmt.Errorf("%w: %q: %w", genalg.ErrInvalidRatio, s, err)
	}
	r := genalg.Ratio{Num: uint32(n), Den: uint32(d)}
	return r, r.Validate()
}

func (a *app) runAllocate(cmd *cobra.Command, path string, ro *runOptions) error {
	runCfg := a.cfg.Run
	if err := ro.applyFlags(cmd, &runCfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tcfg := telemetry.FromConfig(a.cfg.Telemetry)
	if tcfg.MetricExporter == "prometheus" {
		// Nothing scrapes a one-shot process.
		tcfg.MetricExporter = "none"
	}
	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	logger := a.logger.Slog()
	driverOpts := []driver.Option{driver.WithLogger(logger.With(slog.String("component", "driver")))}
	if !ro.jsonOut && a.printer.Mode() == ux.ModeRich {
		driverOpts = append(driverOpts, driver.WithProgress(a.progressLine(runCfg.Generations)))
		ro.progress = true
	}
	opts := []regalloc.ServiceOption{
		regalloc.WithDriver(driver.New(driverOpts...)),
		regalloc.WithServiceLogger(logger.With(slog.String("component", "regalloc"))),
	}
	if ro.save {
		db, store, err := a.openStore()
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, regalloc.WithStore(store))
	}
	svc := regalloc.NewService(serviceConfig(runCfg), opts...)

	if !ro.watch {
		return a.allocateFile(ctx, svc, path, ro)
	}
	return a.watchFile(ctx, svc, path, ro)
}

// progressLine redraws one stderr line with island 0's progress.
func (a *app) progressLine(total int) func(int, genalg.GenerationStats) {
	var mu sync.Mutex
	return func(island int, stats genalg.GenerationStats) {
		if island != 0 {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(a.stderr, "\r%s best %d", a.printer.ProgressBar(stats.Generation, total, 30), stats.Best)
	}
}

func (a *app) allocateFile(ctx context.Context, svc *regalloc.Service, path string, ro *runOptions) error {
	doc, table, err := schedule.LoadFile(path)
	if err != nil {
		return err
	}
	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	resp, err := svc.Allocate(ctx, regalloc.AllocateRequest{
		Schedule: *doc,
		Arch:     ro.arch,
		Save:     ro.save,
	})
	if ro.progress {
		fmt.Fprintln(a.stderr)
	}
	if err != nil {
		return err
	}

	if ro.dotPath != "" {
		f, err := os.Create(ro.dotPath)
		if err != nil {
			return fmt.Errorf("create dot file: %w", err)
		}
		werr := graph.WriteDOT(f, graph.FromTable(table), resp.Coloring)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return fmt.Errorf("write dot file: %w", werr)
		}
	}

	if ro.jsonOut {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	renderAllocation(a.printer, resp)
	if ro.dotPath != "" {
		a.printer.Success("wrote " + ro.dotPath)
	}
	return nil
}

// watchFile allocates once and again after every change to path until ctx
// is cancelled. Failed re-runs are reported and watching continues.
func (a *app) watchFile(ctx context.Context, svc *regalloc.Service, path string, ro *runOptions) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file on save.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	rerun := func() {
		if err := a.allocateFile(ctx, svc, abs, ro); err != nil && ctx.Err() == nil {
			a.printer.Error(err.Error())
		}
	}
	rerun()
	a.printer.Info("watching " + abs + " (Ctrl-C to stop)")

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				debounce = time.After(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.printer.Warning("watch error: " + err.Error())
		case <-debounce:
			debounce = nil
			rerun()
		}
	}
}
