// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "FILE_SEARCH_STORE_ID",
		"WEAVIATE_SERVICE_URL", "LLM_BACKEND_TYPE", "REDIS_ADDR", "ZALO_TOKEN_FILE",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "GIN_MODE", "DOCCHAT_PORT",
	} {
		t.Setenv(key, "")
	}
	old := secretsDir
	secretsDir = t.TempDir()
	t.Cleanup(func() { secretsDir = old })
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_MatchesDocumentedValues(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 12210, cfg.Server.Port)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, float32(0), cfg.LLM.Temperature)
	assert.Equal(t, 1500, cfg.LLM.MaxOutputTokens)
	assert.Equal(t, 10, cfg.Session.MaxHistoryTurns)
	assert.Equal(t, 6, cfg.Session.ContextTurns)
	assert.Equal(t, 1000, cfg.Dedup.MaxProcessed)
	assert.Equal(t, 2000, cfg.Channel.MaxMessageLength)
	assert.Equal(t, 1, cfg.Pipeline.RefineBudget)
	assert.True(t, cfg.Pipeline.EnableAnalysis)
	assert.True(t, cfg.Pipeline.EnableExemplars)
	assert.True(t, cfg.Pipeline.EnableValidation)
}

func TestLoad_MissingGeminiKeyIsFatal(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, "retrieval:\n  file_search_store: stores/x\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestLoad_MissingFileSearchStoreIsFatal(t *testing.T) {
	isolateEnv(t)
	t.Setenv("GEMINI_API_KEY", "key")

	_, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestLoad_FileAndEnvOverlay(t *testing.T) {
	isolateEnv(t)
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("FILE_SEARCH_STORE_ID", "fileSearchStores/docs")
	t.Setenv("DOCCHAT_PORT", "8088")

	path := writeConfig(t, `
llm:
  call_timeout: 10s
pipeline:
  enable_validation: false
  refine_budget: 2
session:
  max_history_turns: 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "fileSearchStores/docs", cfg.Retrieval.FileSearchStore)
	assert.Equal(t, 10*time.Second, cfg.LLM.CallTimeout)
	assert.False(t, cfg.Pipeline.EnableValidation)
	assert.True(t, cfg.Pipeline.EnableAnalysis, "unset keys keep defaults")
	assert.Equal(t, 2, cfg.Pipeline.RefineBudget)
	assert.Equal(t, 4, cfg.Session.MaxHistoryTurns)
}

func TestLoad_SecretFile(t *testing.T) {
	isolateEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(secretsDir, "openai_api_key"), []byte("sk-test\n"), 0o600))

	cfg, err := Load(writeConfig(t, "llm:\n  backend: openai\nretrieval:\n  backend: weaviate\n  weaviate_url: http://localhost:8080\n"))
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLM.OpenAIAPIKey)
}

func TestLoad_RejectsOutOfRangeValues(t *testing.T) {
	isolateEnv(t)
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("FILE_SEARCH_STORE_ID", "s")

	tests := []struct {
		name string
		body string
	}{
		{"refine budget", "pipeline:\n  refine_budget: 9\n"},
		{"unknown backend", "llm:\n  backend: llama\n"},
		{"unknown dedup", "dedup:\n  backend: disk\n"},
		{"context larger than history", "session:\n  max_history_turns: 2\n  context_turns: 6\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoad_RedisDedupNeedsAddress(t *testing.T) {
	isolateEnv(t)
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("FILE_SEARCH_STORE_ID", "s")

	_, err := Load(writeConfig(t, "dedup:\n  backend: redis\n"))
	assert.ErrorIs(t, err, ErrMissingCredential)

	t.Setenv("REDIS_ADDR", "localhost:6379")
	cfg, err := Load(writeConfig(t, "dedup:\n  backend: redis\n"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", cfg.Dedup.RedisAddr)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	isolateEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
