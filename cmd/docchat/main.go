// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command docchat runs the document-grounded chat service.
//
// # Usage
//
//	# Serve the HTTP API and the Zalo webhook
//	docchat serve --config config.yaml
//
//	# Answer one question from the terminal
//	docchat ask "What is the refund policy?"
//
// Configuration is read from the YAML file and overlaid with environment
// variables; see services/orchestrator/config.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd is split out for tests.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "docchat",
		Short:        "Document-grounded question answering over HTTP and Zalo OA",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(), newAskCmd(), newVersionCmd())
	return root
}

var (
	configPath string
	logLevel   string

	rootCmd = newRootCmd()
)
