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
	"bytes"
	"testing"

	"github.com/AleutianAI/AleutianDocChat/services/llm"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "docchat dev\n", out.String())
}

func TestAskCommand_RequiresQuestion(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"ask"})

	assert.Error(t, root.Execute())
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "ask", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestPrintResult(t *testing.T) {
	var out bytes.Buffer
	printResult(&out, &pipeline.Result{
		Answer: "  Returns are accepted within 30 days.\n",
		Citations: []llm.Citation{
			llm.NewCitation("policy.pdf", "files/policy"),
			llm.NewCitation("", ""),
		},
	})

	want := "Returns are accepted within 30 days.\n" +
		"\n" +
		"Sources:\n" +
		"  [1] policy.pdf (files/policy)\n" +
		"  [2] Unknown\n"
	assert.Equal(t, want, out.String())
}

func TestPrintResult_NoCitations(t *testing.T) {
	var out bytes.Buffer
	printResult(&out, &pipeline.Result{Answer: "No sources here."})
	assert.Equal(t, "No sources here.\n", out.String())
}
