// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the docchat service configuration.
//
// Configuration comes from three layers, later layers winning:
//  1. Built-in defaults (Default).
//  2. A YAML file (docchat.yaml by default).
//  3. Environment variables and /run/secrets files for credentials.
//
// Load validates the result. Any error it returns is a configuration error and
// the process must not serve requests.
package config

import "time"

// Config is the root configuration document.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Session   SessionConfig   `yaml:"session"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Exemplars ExemplarsConfig `yaml:"exemplars"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Channel   ChannelConfig   `yaml:"channel"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port          int    `yaml:"port" validate:"min=1,max=65535"`
	GinMode       string `yaml:"gin_mode" validate:"omitempty,oneof=debug release test"`
	SessionCookie string `yaml:"session_cookie" validate:"required"`
}

// LLMConfig selects and tunes the answering backend.
type LLMConfig struct {
	Backend         string        `yaml:"backend" validate:"oneof=gemini openai anthropic"`
	Model           string        `yaml:"model"`
	Temperature     float32       `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxOutputTokens int           `yaml:"max_output_tokens" validate:"min=1"`
	CallTimeout     time.Duration `yaml:"call_timeout" validate:"min=0"`
	BaseURL         string        `yaml:"base_url"`

	// Credentials. Never read from YAML.
	GeminiAPIKey    string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
}

// RetrievalConfig selects where grounding context comes from.
type RetrievalConfig struct {
	Backend         string `yaml:"backend" validate:"oneof=gemini weaviate"`
	FileSearchStore string `yaml:"file_search_store"`
	WeaviateURL     string `yaml:"weaviate_url"`
	WeaviateClass   string `yaml:"weaviate_class"`
	Limit           int    `yaml:"limit" validate:"min=1,max=50"`
}

type SessionConfig struct {
	MaxHistoryTurns int `yaml:"max_history_turns" validate:"min=1"`
	ContextTurns    int `yaml:"context_turns" validate:"min=0"`
}

// PipelineConfig toggles the optional stages of the answer pipeline.
type PipelineConfig struct {
	EnableAnalysis   bool          `yaml:"enable_analysis"`
	EnableExemplars  bool          `yaml:"enable_exemplars"`
	EnableValidation bool          `yaml:"enable_validation"`
	RefineBudget     int           `yaml:"refine_budget" validate:"min=0,max=3"`
	Timeout          time.Duration `yaml:"timeout" validate:"min=0"`
	ExemplarK        int           `yaml:"exemplar_k" validate:"min=0,max=20"`
}

type ExemplarsConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// DedupConfig configures the inbound message deduplication guard.
type DedupConfig struct {
	Backend      string        `yaml:"backend" validate:"oneof=memory redis"`
	MaxProcessed int           `yaml:"max_processed" validate:"min=1"`
	Horizon      time.Duration `yaml:"horizon" validate:"min=0"`
	RedisAddr    string        `yaml:"redis_addr"`
}

// ChannelConfig configures the Zalo Official Account integration.
type ChannelConfig struct {
	Enabled          bool    `yaml:"enabled"`
	TokenFile        string  `yaml:"token_file"`
	SendURL          string  `yaml:"send_url" validate:"omitempty,url"`
	MaxMessageLength int     `yaml:"max_message_length" validate:"min=1"`
	RatePerSecond    float64 `yaml:"rate_per_second" validate:"gt=0"`
	Bus              string  `yaml:"bus" validate:"oneof=memory redis"`
	RedisAddr        string  `yaml:"redis_addr"`
	Stream           string  `yaml:"stream"`
	ConsumerGroup    string  `yaml:"consumer_group"`
	WelcomeMessage   string  `yaml:"welcome_message"`
}

type TelemetryConfig struct {
	OTelEndpoint  string `yaml:"otel_endpoint"`
	EnableMetrics bool   `yaml:"enable_metrics"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// DefaultWelcomeMessage greets a user who follows the Official Account.
const DefaultWelcomeMessage = "Xin chào! Tôi là trợ lý AI. Hãy đặt câu hỏi về tài liệu, tôi sẽ trả lời dựa trên nội dung tài liệu.\n\n" +
	"Hello! I am an AI assistant. Ask me anything about the documents and I will answer from their content."

// DefaultSendURL is the Zalo OA customer-service message endpoint.
const DefaultSendURL = "https://openapi.zalo.me/v3.0/oa/message/cs"

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:          12210,
			SessionCookie: "docchat_session",
		},
		LLM: LLMConfig{
			Backend:         "gemini",
			Model:           "gemini-2.5-flash",
			Temperature:     0,
			MaxOutputTokens: 1500,
			CallTimeout:     30 * time.Second,
		},
		Retrieval: RetrievalConfig{
			Backend:       "gemini",
			WeaviateClass: "Document",
			Limit:         5,
		},
		Session: SessionConfig{
			MaxHistoryTurns: 10,
			ContextTurns:    6,
		},
		Pipeline: PipelineConfig{
			EnableAnalysis:   true,
			EnableExemplars:  true,
			EnableValidation: true,
			RefineBudget:     1,
			Timeout:          2 * time.Minute,
			ExemplarK:        3,
		},
		Exemplars: ExemplarsConfig{
			Path:  "qa_examples.json",
			Watch: true,
		},
		Dedup: DedupConfig{
			Backend:      "memory",
			MaxProcessed: 1000,
			Horizon:      24 * time.Hour,
		},
		Channel: ChannelConfig{
			TokenFile:        "tokens.json",
			SendURL:          DefaultSendURL,
			MaxMessageLength: 2000,
			RatePerSecond:    5,
			Bus:              "memory",
			Stream:           "docchat.inbound",
			ConsumerGroup:    "docchat",
			WelcomeMessage:   DefaultWelcomeMessage,
		},
		Telemetry: TelemetryConfig{
			EnableMetrics: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
