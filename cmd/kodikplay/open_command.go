// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ManuGH/kodikplay/internal/extract"
	"github.com/ManuGH/kodikplay/internal/fetch"
	"github.com/ManuGH/kodikplay/internal/library"
	"github.com/ManuGH/kodikplay/internal/session"
)

type openOutput struct {
	SessionID  string                `json:"sessionId"`
	Selection  session.Selection     `json:"selection"`
	Episode    string                `json:"episode"`
	PageURL    string                `json:"pageUrl"`
	StartTime  float64               `json:"startTime"`
	Generation uint64                `json:"generation"`
	Sources    []extract.MediaSource `json:"sources"`
	Skips      []session.SkipSegment `json:"skips"`
}

func newOpenCommand(ctx *commandContext) *cobra.Command {
	var provider, dubber, episode int

	cmd := &cobra.Command{
		Use:   "open <title-id> <records.json|->",
		Short: "Open a playback session from catalogue records and print its selection",
		Long: "Builds the provider/dubber/episode catalogue from a JSON array of video records, " +
			"restores saved progress, resolves the selected episode and prints the result.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			records, err := readRecords(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			registry := newRegistry(cfg, fetch.New(cfg.FetchOptions()))
			catalog := session.BuildCatalog(records, registry.Supported)
			if catalog.Empty() {
				return fmt.Errorf("no playable records for %s", args[0])
			}

			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			sess, err := session.Open(cmd.Context(), session.Config{
				TitleID:            args[0],
				Catalog:            catalog,
				Resolver:           registry,
				Progress:           session.NewProgressStore(library.New(store), cfg.Session.RewindOnSave),
				PreferredDubbers:   cfg.Session.PreferredDubbers,
				CheckpointInterval: cfg.Session.CheckpointInterval,
				AutoFallback:       cfg.Session.AutoFallback,
			})
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close(cmd.Context()) }()

			var patch session.SelectionPatch
			if cmd.Flags().Changed("provider") {
				patch.Provider = &provider
			}
			if cmd.Flags().Changed("dubber") {
				patch.Dubber = &dubber
			}
			if cmd.Flags().Changed("episode") {
				patch.Episode = &episode
			}
			if patch != (session.SelectionPatch{}) {
				if _, err := sess.Select(cmd.Context(), patch); err != nil {
					return err
				}
			}

			m := sess.Matrix()
			out := openOutput{
				SessionID:  sess.ID,
				Selection:  m.Selection(),
				StartTime:  sess.StartTime(),
				Generation: m.Generation(),
				Sources:    m.Sources(),
			}
			if ep, ok := m.Episode(); ok {
				out.Episode = ep.Number
				out.PageURL = ep.PageURL
				out.Skips = ep.Skips
			}
			if out.Sources == nil {
				out.Sources = []extract.MediaSource{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().IntVar(&provider, "provider", 0, "Provider index to select")
	cmd.Flags().IntVar(&dubber, "dubber", 0, "Dubber index to select")
	cmd.Flags().IntVar(&episode, "episode", 0, "Episode index to select")
	return cmd
}

func readRecords(stdin io.Reader, path string) ([]session.VideoRecord, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open records: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	var records []session.VideoRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}
