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
	"io"
	"strings"

	"github.com/AleutianAI/AleutianDocChat/services/orchestrator"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/pipeline"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question against the configured documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(true)
			if err != nil {
				return err
			}
			defer logger.Close()

			// The one-shot command never talks to the channel.
			cfg.Channel.Enabled = false
			cfg.Exemplars.Watch = false

			ctx := runContext(cmd)
			svc, err := orchestrator.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}
			defer svc.Close()

			question := strings.Join(args, " ")
			result, err := svc.Pipeline().Answer(ctx, uuid.NewString(), question)
			if err != nil {
				return fmt.Errorf("failed to answer: %w", err)
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

// printResult writes the answer followed by its numbered sources.
func printResult(w io.Writer, result *pipeline.Result) {
	fmt.Fprintln(w, strings.TrimSpace(result.Answer))
	if len(result.Citations) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for i, c := range result.Citations {
		if c.URI != "" {
			fmt.Fprintf(w, "  [%d] %s (%s)\n", i+1, c.Title, c.URI)
		} else {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, c.Title)
		}
	}
}
