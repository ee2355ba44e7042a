// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ManuGH/kodikplay/internal/config"
	"github.com/ManuGH/kodikplay/internal/extract"
	"github.com/ManuGH/kodikplay/internal/extract/kodik"
	"github.com/ManuGH/kodikplay/internal/fetch"
	"github.com/ManuGH/kodikplay/internal/kv"
	"github.com/ManuGH/kodikplay/internal/library"
	xglog "github.com/ManuGH/kodikplay/internal/log"
	"github.com/ManuGH/kodikplay/internal/session"
	"github.com/ManuGH/kodikplay/internal/version"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string

	ctx := newCommandContext(&configFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:           "kodikplay",
		Short:         "Resolve Kodik episodes and track playback progress",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(newResolveCommand(ctx))
	rootCmd.AddCommand(newOpenCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newProgressCommand(ctx))
	rootCmd.AddCommand(newStoreCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	return cmd.Name() == "version" || cmd.Name() == "help"
}

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	loader     *config.Loader
	config     config.AppConfig
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

// ensureConfig loads configuration once and configures the global logger from it.
func (c *commandContext) ensureConfig() (config.AppConfig, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.loader = config.NewLoader(path, version.Version)
		cfg, err := c.loader.Load()
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Log.Level = strings.TrimSpace(*c.logLevelFlag)
		}
		xglog.Configure(xglog.Config{
			Level:   cfg.Log.Level,
			Service: cfg.Log.Service,
			Version: version.Version,
		})
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) openStore(ctx context.Context) (kv.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := kv.Open(ctx, cfg.KVConfig())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	return store, nil
}

// withProgress opens the store for the duration of fn.
func (c *commandContext) withProgress(ctx context.Context, fn func(*session.ProgressStore) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(session.NewProgressStore(library.New(store), cfg.Session.RewindOnSave))
}

// newRegistry wires every known extractor behind one fetcher.
func newRegistry(cfg config.AppConfig, fetcher fetch.Fetcher) *extract.Registry {
	logger := xglog.WithComponent("extract")
	return extract.NewRegistry(
		kodik.New(kodik.Options{
			Fetcher:   fetcher,
			Endpoints: kodik.NewEndpointResolver(cfg.Kodik.APIPath),
			Logger:    &logger,
		}),
	)
}
