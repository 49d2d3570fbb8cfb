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
	"fmt"
	"os"

	"github.com/AleutianAI/regalloc/services/regalloc"
	"github.com/AleutianAI/regalloc/services/regalloc/schedule"
	"github.com/spf13/cobra"
)

func newGraphCmd(a *app) *cobra.Command {
	var colored bool
	cmd := &cobra.Command{
		Use:   "graph SCHEDULE",
		Short: "Print the conflict graph of a schedule as Graphviz DOT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			doc, err := schedule.Parse(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			svc := regalloc.NewService(serviceConfig(a.cfg.Run))
			dot, err := svc.Graph(cmd.Context(), doc, colored)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(a.stdout, dot)
			return err
		},
	}
	cmd.Flags().BoolVar(&colored, "colored", false, "run an allocation and fill vertices with their register color")
	return cmd
}
