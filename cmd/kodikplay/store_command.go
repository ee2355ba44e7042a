// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ManuGH/kodikplay/internal/kv"
	"github.com/ManuGH/kodikplay/internal/persistence/sqlite"
)

func newStoreCommand(ctx *commandContext) *cobra.Command {
	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Maintain the local progress store",
	}

	var full bool
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Run an integrity check on the sqlite store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Store.Backend != kv.BackendSQLite {
				return fmt.Errorf("store verify needs the sqlite backend (configured: %s)", cfg.Store.Backend)
			}
			mode := "quick"
			if full {
				mode = "full"
			}
			path := filepath.Join(cfg.DataDir, kv.SQLiteFile)
			problems, err := sqlite.VerifyIntegrity(cmd.Context(), path, mode)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(problems) == 0 {
				_, err := fmt.Fprintf(out, "%s: ok\n", path)
				return err
			}
			for _, p := range problems {
				fmt.Fprintln(out, p)
			}
			return fmt.Errorf("%s: %d integrity problems", path, len(problems))
		},
	}
	verifyCmd.Flags().BoolVar(&full, "full", false, "Run the full integrity_check instead of quick_check")
	storeCmd.AddCommand(verifyCmd)

	return storeCmd
}
