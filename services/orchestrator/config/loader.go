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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no explicit config path is given.
const DefaultPath = "docchat.yaml"

var (
	// ErrMissingCredential reports a required credential or identifier that
	// was not provided.
	ErrMissingCredential = errors.New("missing required credential")

	// ErrInvalid reports a value that failed validation.
	ErrInvalid = errors.New("invalid configuration")
)

// secretsDir is where container runtimes mount secrets.
var secretsDir = "/run/secrets"

var validate = validator.New()

// Load builds the effective configuration.
//
// # Description
//
// Starts from Default, overlays the YAML file at path, then environment
// variables, then validates. A missing file is tolerated only when path is
// empty or DefaultPath.
//
// # Inputs
//
//   - path: YAML file path. Empty means DefaultPath.
//
// # Outputs
//
//   - *Config: Effective configuration.
//   - error: Wraps ErrMissingCredential or ErrInvalid on configuration errors,
//     or the I/O or parse error for the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != "" && path != DefaultPath
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(expandPath(path))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		slog.Info("Loaded configuration file", "path", path)
	case os.IsNotExist(err) && !explicit:
		slog.Info("No configuration file found, using defaults", "path", path)
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and backend-specific requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	switch c.LLM.Backend {
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrMissingCredential)
		}
	case "openai":
		if c.LLM.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrMissingCredential)
		}
	case "anthropic":
		if c.LLM.AnthropicAPIKey == "" {
			return fmt.Errorf("%w: ANTHROPIC_API_KEY is not set", ErrMissingCredential)
		}
	}

	switch c.Retrieval.Backend {
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			return fmt.Errorf("%w: gemini retrieval requires GEMINI_API_KEY", ErrMissingCredential)
		}
		if c.Retrieval.FileSearchStore == "" {
			return fmt.Errorf("%w: FILE_SEARCH_STORE_ID is not set", ErrMissingCredential)
		}
	case "weaviate":
		if !strings.HasPrefix(c.Retrieval.WeaviateURL, "http") {
			return fmt.Errorf("%w: weaviate retrieval requires retrieval.weaviate_url", ErrMissingCredential)
		}
	}

	if c.Dedup.Backend == "redis" && c.Dedup.RedisAddr == "" {
		return fmt.Errorf("%w: redis dedup requires dedup.redis_addr", ErrMissingCredential)
	}
	if c.Channel.Enabled && c.Channel.Bus == "redis" && c.Channel.RedisAddr == "" {
		return fmt.Errorf("%w: redis bus requires channel.redis_addr", ErrMissingCredential)
	}
	if c.Session.ContextTurns > 2*c.Session.MaxHistoryTurns {
		return fmt.Errorf("%w: session.context_turns exceeds stored history", ErrInvalid)
	}
	return nil
}

// applyEnv overlays environment variables and mounted secrets.
func applyEnv(cfg *Config) {
	cfg.LLM.GeminiAPIKey = firstNonEmpty(os.Getenv("GEMINI_API_KEY"), readSecret("gemini_api_key"), cfg.LLM.GeminiAPIKey)
	cfg.LLM.OpenAIAPIKey = firstNonEmpty(os.Getenv("OPENAI_API_KEY"), readSecret("openai_api_key"), cfg.LLM.OpenAIAPIKey)
	cfg.LLM.AnthropicAPIKey = firstNonEmpty(os.Getenv("ANTHROPIC_API_KEY"), readSecret("anthropic_api_key"), cfg.LLM.AnthropicAPIKey)

	cfg.Retrieval.FileSearchStore = firstNonEmpty(os.Getenv("FILE_SEARCH_STORE_ID"), cfg.Retrieval.FileSearchStore)
	cfg.Retrieval.WeaviateURL = strings.Trim(firstNonEmpty(os.Getenv("WEAVIATE_SERVICE_URL"), cfg.Retrieval.WeaviateURL), "\"' ")
	cfg.LLM.Backend = firstNonEmpty(os.Getenv("LLM_BACKEND_TYPE"), cfg.LLM.Backend)

	if redis := os.Getenv("REDIS_ADDR"); redis != "" {
		cfg.Dedup.RedisAddr = redis
		cfg.Channel.RedisAddr = redis
	}
	cfg.Channel.TokenFile = firstNonEmpty(os.Getenv("ZALO_TOKEN_FILE"), cfg.Channel.TokenFile)
	cfg.Telemetry.OTelEndpoint = firstNonEmpty(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), cfg.Telemetry.OTelEndpoint)
	cfg.Server.GinMode = firstNonEmpty(os.Getenv("GIN_MODE"), cfg.Server.GinMode)

	if port := os.Getenv("DOCCHAT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		} else {
			slog.Warn("Ignoring invalid DOCCHAT_PORT", "value", port)
		}
	}
}

// readSecret returns the trimmed content of /run/secrets/<name>, or "".
func readSecret(name string) string {
	content, err := os.ReadFile(filepath.Join(secretsDir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(content))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
