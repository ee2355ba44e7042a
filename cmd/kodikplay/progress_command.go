// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ManuGH/kodikplay/internal/session"
)

func newProgressCommand(ctx *commandContext) *cobra.Command {
	progressCmd := &cobra.Command{
		Use:   "progress",
		Short: "Inspect and edit saved playback progress",
	}

	progressCmd.AddCommand(&cobra.Command{
		Use:   "get <title-id>",
		Short: "Print the saved progress of a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withProgress(cmd.Context(), func(ps *session.ProgressStore) error {
				p, err := ps.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if p == nil {
					_, err := fmt.Fprintf(cmd.OutOrStdout(), "No progress saved for %s\n", args[0])
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			})
		},
	})

	progressCmd.AddCommand(&cobra.Command{
		Use:   "set <title-id> <provider> <dubber> <episode> <seconds>",
		Short: "Save progress for a title",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, t, err := parseProgressArgs(args[1:])
			if err != nil {
				return err
			}
			return ctx.withProgress(cmd.Context(), func(ps *session.ProgressStore) error {
				if err := ps.Checkpoint(cmd.Context(), args[0], sel, t); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Saved %s at %s %.1fs\n", args[0], sel, t)
				return err
			})
		},
	})

	progressCmd.AddCommand(&cobra.Command{
		Use:   "clear <title-id>",
		Short: "Delete the saved progress of a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withProgress(cmd.Context(), func(ps *session.ProgressStore) error {
				if err := ps.Clear(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", args[0])
				return err
			})
		},
	})

	return progressCmd
}

func parseProgressArgs(args []string) (session.Selection, float64, error) {
	var idx [3]int
	for i, name := range []string{"provider", "dubber", "episode"} {
		n, err := strconv.Atoi(args[i])
		if err != nil || n < 0 {
			return session.Selection{}, 0, fmt.Errorf("invalid %s index %q", name, args[i])
		}
		idx[i] = n
	}
	t, err := strconv.ParseFloat(args[3], 64)
	if err != nil || t < 0 {
		return session.Selection{}, 0, fmt.Errorf("invalid time %q", args[3])
	}
	return session.Selection{Provider: idx[0], Dubber: idx[1], Episode: idx[2]}, t, nil
}
