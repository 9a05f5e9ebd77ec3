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
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/AleutianDocChat/pkg/logging"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/config"
	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, the webhook receiver and the event consumer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(false)
			if err != nil {
				return err
			}
			defer logger.Close()

			ctx, stop := signal.NotifyContext(runContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := orchestrator.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}
			slog.Info("Starting docchat",
				"version", version,
				"port", cfg.Server.Port,
				"llm_backend", cfg.LLM.Backend,
				"retrieval_backend", cfg.Retrieval.Backend,
				"channel_enabled", cfg.Channel.Enabled)
			return svc.Run(ctx)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the docchat version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docchat %s\n", version)
		},
	}
}

// loadConfig reads the configuration and installs the process logger.
// quiet keeps console logging at warn level for interactive commands.
func loadConfig(quiet bool) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	if quiet && level < logging.LevelWarn {
		level = logging.LevelWarn
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: orchestrator.ServiceName,
		JSON:    cfg.Logging.JSON,
	})
	slog.SetDefault(logger.Slog())
	return cfg, logger, nil
}

// runContext returns the command context, or Background when cobra was
// executed without one.
func runContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
