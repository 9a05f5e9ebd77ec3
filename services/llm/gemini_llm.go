// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// ErrNoCandidates is returned when Gemini answers without any candidate.
var ErrNoCandidates = errors.New("gemini returned no candidates")

// contentGenerator is the subset of *genai.Models used by GeminiClient.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey string
	Model  string

	// FileSearchStore is the File Search store queried by GenerateGrounded.
	// Required for grounded generation, unused by Generate.
	FileSearchStore string
}

// GeminiClient talks to the Gemini API through the genai SDK.
//
// # Description
//
// Generate issues a plain generation request. GenerateGrounded enables the
// File Search tool against the configured store and extracts grounding
// citations from the first candidate.
//
// # Thread Safety
//
// Safe for concurrent use; the underlying genai client is.
type GeminiClient struct {
	models          contentGenerator
	model           string
	fileSearchStore string
}

// NewGeminiClient creates a Gemini client.
//
// # Inputs
//
//   - ctx: Used only for client construction.
//   - cfg: API key is required. Model defaults to gemini-2.5-flash.
//
// # Outputs
//
//   - *GeminiClient: Ready client.
//   - error: Non-nil when the key is missing or the SDK rejects the config.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
		slog.Info("Gemini model not set, defaulting", "model", cfg.Model)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	slog.Info("Initializing Gemini client",
		"model", cfg.Model,
		"file_search_store_set", cfg.FileSearchStore != "")
	return &GeminiClient{
		models:          client.Models,
		model:           cfg.Model,
		fileSearchStore: cfg.FileSearchStore,
	}, nil
}

// Generate implements the LLMClient interface.
func (g *GeminiClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	slog.Debug("Generating text via Gemini", "model", g.model)
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), g.buildConfig(params, false))
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	candidate, err := firstCandidate(resp)
	if err != nil {
		return "", err
	}
	return candidateText(candidate), nil
}

// GenerateGrounded implements the GroundedClient interface using the File
// Search tool.
func (g *GeminiClient) GenerateGrounded(ctx context.Context, prompt string, params GenerationParams) (*GroundedResponse, error) {
	if g.fileSearchStore == "" {
		return nil, fmt.Errorf("gemini grounded generation requires a file search store")
	}
	slog.Debug("Generating grounded text via Gemini", "model", g.model)

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), g.buildConfig(params, true))
	if err != nil {
		return nil, fmt.Errorf("gemini grounded generate failed: %w", err)
	}
	candidate, err := firstCandidate(resp)
	if err != nil {
		return nil, err
	}

	return &GroundedResponse{
		Text:      candidateText(candidate),
		Citations: extractCitations(candidate),
	}, nil
}

func (g *GeminiClient) buildConfig(params GenerationParams, withFileSearch bool) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: params.Temperature,
		TopP:        params.TopP,
	}
	if params.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*params.MaxTokens)
	}
	if params.TopK != nil {
		topK := float32(*params.TopK)
		cfg.TopK = &topK
	}
	if len(params.Stop) > 0 {
		cfg.StopSequences = params.Stop
	}
	if withFileSearch {
		cfg.Tools = []*genai.Tool{{
			FileSearch: &genai.FileSearch{
				FileSearchStoreNames: []string{g.fileSearchStore},
			},
		}}
	}
	return cfg
}

func firstCandidate(resp *genai.GenerateContentResponse) (*genai.Candidate, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, ErrNoCandidates
	}
	return resp.Candidates[0], nil
}

// candidateText concatenates the text parts of a candidate.
func candidateText(c *genai.Candidate) string {
	if c.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range c.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// extractCitations reads grounding chunks in ranking order. File Search
// results arrive as retrieved contexts, web grounding as web chunks.
func extractCitations(c *genai.Candidate) []Citation {
	citations := []Citation{}
	if c.GroundingMetadata == nil {
		return citations
	}
	for _, chunk := range c.GroundingMetadata.GroundingChunks {
		if chunk == nil {
			continue
		}
		switch {
		case chunk.RetrievedContext != nil:
			citations = append(citations, NewCitation(chunk.RetrievedContext.Title, chunk.RetrievedContext.URI))
		case chunk.Web != nil:
			citations = append(citations, NewCitation(chunk.Web.Title, chunk.Web.URI))
		}
	}
	return citations
}

var (
	_ LLMClient      = (*GeminiClient)(nil)
	_ GroundedClient = (*GeminiClient)(nil)
)
