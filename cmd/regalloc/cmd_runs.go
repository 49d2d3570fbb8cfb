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
	"encoding/json"
	"strconv"
	"time"

	"github.com/AleutianAI/regalloc/services/regalloc"
	"github.com/AleutianAI/regalloc/services/regalloc/binding"
	"github.com/AleutianAI/regalloc/services/regalloc/lifetime"
	"github.com/AleutianAI/regalloc/services/regalloc/storage"
	"github.com/spf13/cobra"
)

func newRunsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect saved runs",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, store, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				a.printer.Info("no saved runs")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID,
					r.CreatedAt.Local().Format(time.DateTime),
					r.Name,
					strconv.Itoa(r.Variables),
					strconv.Itoa(int(r.Phene)),
					strconv.Itoa(r.LowerBound),
					strconv.FormatUint(r.Seed, 10),
				})
			}
			a.printer.Table([]string{"ID", "CREATED", "NAME", "VARS", "REGS", "BOUND", "SEED"}, rows)
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum number of runs (0 for all)")

	var jsonOut bool
	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show one saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, store, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			rec, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}

			resp, err := recordResponse(rec)
			if err != nil {
				return err
			}
			renderAllocation(a.printer, resp)
			return nil
		},
	}
	show.Flags().BoolVar(&jsonOut, "json", false, "print the stored record as JSON")

	remove := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, store, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.printer.Success("deleted run " + args[0])
			return nil
		},
	}

	cmd.AddCommand(list, show, remove)
	return cmd
}

// recordResponse rebuilds the response of a saved run, including its
// register rows.
func recordResponse(rec *storage.RunRecord) (*regalloc.AllocateResponse, error) {
	table, err := lifetime.NewTable(rec.Horizon, rec.Variables)
	if err != nil {
		return nil, err
	}
	rows, err := binding.Bind(rec.Coloring, table)
	if err != nil {
		return nil, err
	}

	resp := &regalloc.AllocateResponse{
		RunID:       rec.ID,
		Name:        rec.Name,
		Registers:   rec.Phene,
		LowerBound:  rec.LowerBound,
		Seed:        rec.Seed,
		Generations: max(len(rec.History)-1, 0),
		ElapsedMS:   rec.DurationMS,
		Gene:        rec.Gene,
		Coloring:    rec.Coloring,
		History:     rec.History,
	}
	for _, row := range rows {
		resp.Rows = append(resp.Rows, row.String())
		resp.Utilization = append(resp.Utilization, row.Utilization())
	}
	return resp, nil
}
