// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm contains clients for the hosted answering services used by the
// document chat pipeline.
//
// Two capabilities are modeled separately:
//   - LLMClient: plain text generation from a prompt.
//   - GroundedClient: generation with a retrieval tool enabled, returning the
//     grounding citations alongside the text.
//
// Gemini implements both (File Search is the retrieval tool). OpenAI and
// Anthropic only implement LLMClient; grounding for those backends comes from
// the Weaviate search package.
package llm

import (
	"context"
	"fmt"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Deterministic returns params pinned to zero temperature with the given
// output budget. A non-positive maxTokens leaves the provider default.
func Deterministic(maxTokens int) GenerationParams {
	temp := float32(0)
	params := GenerationParams{Temperature: &temp}
	if maxTokens > 0 {
		params.MaxTokens = &maxTokens
	}
	return params
}

// WithTemperature returns a copy of p with the temperature replaced.
func (p GenerationParams) WithTemperature(t float32) GenerationParams {
	p.Temperature = &t
	return p
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Citation is one grounding source attached to a retrieval response.
type Citation struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// UnknownCitationTitle is used when a grounding chunk carries no title.
const UnknownCitationTitle = "Unknown"

// NewCitation builds a Citation, defaulting an empty title.
func NewCitation(title, uri string) Citation {
	if title == "" {
		title = UnknownCitationTitle
	}
	return Citation{Title: title, URI: uri}
}

// GroundedResponse is the text produced with retrieval enabled plus the
// citations extracted from the response metadata, in ranking order.
type GroundedResponse struct {
	Text      string
	Citations []Citation
}

// GroundedClient generates text with a document retrieval tool enabled.
//
// # Description
//
// Implementations must return an empty (non-nil) citation slice when the
// provider response carries no grounding metadata. Missing metadata is not
// an error.
type GroundedClient interface {
	GenerateGrounded(ctx context.Context, prompt string, params GenerationParams) (*GroundedResponse, error)
}

// APIError is returned when a provider answers with a non-success status.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}
