// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/kodikplay/internal/extract"
	"github.com/ManuGH/kodikplay/internal/fetch"
)

const resolveConcurrency = 4

type resolveOutput struct {
	URL     string                `json:"url"`
	Sources []extract.MediaSource `json:"sources"`
	Error   string                `json:"error,omitempty"`
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "resolve <page-url>...",
		Short: "Resolve episode page URLs into playable sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "json" && output != "table" {
				return fmt.Errorf("unknown output format %q (json, table)", output)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			registry := newRegistry(cfg, fetch.New(cfg.FetchOptions()))

			out := make([]resolveOutput, len(args))
			var g errgroup.Group
			g.SetLimit(resolveConcurrency)
			for i, pageURL := range args {
				g.Go(func() error {
					sources, err := registry.Resolve(cmd.Context(), pageURL)
					out[i] = resolveOutput{URL: pageURL, Sources: sources}
					if out[i].Sources == nil {
						out[i].Sources = []extract.MediaSource{}
					}
					if err != nil {
						out[i].Error = err.Error()
					}
					return nil
				})
			}
			_ = g.Wait()

			if err := writeResolveOutput(cmd.OutOrStdout(), output, out); err != nil {
				return err
			}

			failed := 0
			for _, o := range out {
				if o.Error != "" {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d urls failed to resolve", failed, len(out))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format: json or table")
	return cmd
}

func writeResolveOutput(w io.Writer, format string, out []resolveOutput) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "table":
		var rows [][]string
		for _, o := range out {
			if o.Error != "" {
				rows = append(rows, []string{o.URL, "-", "error: " + o.Error})
				continue
			}
			if len(o.Sources) == 0 {
				rows = append(rows, []string{o.URL, "-", "no sources"})
				continue
			}
			for _, src := range o.Sources {
				rows = append(rows, []string{o.URL, strconv.Itoa(int(src.Quality)), src.URL})
			}
		}
		_, err := fmt.Fprintln(w, renderTable([]string{"Page", "Quality", "Source"}, rows, 1))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
