// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDocChat/services/llm"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/conversation"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/exemplars"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Config selects the optional stages and bounds the pipeline.
type Config struct {
	EnableAnalysis   bool
	EnableExemplars  bool
	EnableValidation bool

	// RefineBudget is the maximum number of validation passes.
	RefineBudget int
	ExemplarK    int

	// ContextTurns is how many recent turns are shown to the analysis and
	// generation stages.
	ContextTurns int

	// Timeout bounds the whole request. Exceeding it is a terminal failure.
	Timeout time.Duration

	// CallTimeout bounds each external call. Exceeding it is an upstream
	// failure recovered by the stage.
	CallTimeout time.Duration

	Temperature     float32
	MaxOutputTokens int
}

// DefaultConfig returns a configuration with every stage enabled.
func DefaultConfig() Config {
	return Config{
		EnableAnalysis:   true,
		EnableExemplars:  true,
		EnableValidation: true,
		RefineBudget:     1,
		ExemplarK:        3,
		ContextTurns:     6,
		Timeout:          2 * time.Minute,
		CallTimeout:      30 * time.Second,
		MaxOutputTokens:  1500,
	}
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Store    conversation.Store
	LLM      llm.LLMClient
	Grounder llm.GroundedClient

	// Exemplars may be nil, which disables exemplar selection.
	Exemplars *exemplars.Selector

	// Metrics may be nil.
	Metrics *observability.Metrics
}

// Result is one answered question.
type Result struct {
	Answer    string
	Citations []llm.Citation

	Analysis    datatypes.QueryAnalysis
	AnalysisRan bool
	Exemplars   []exemplars.Scored

	// Refinements counts validator substitutions.
	Refinements int

	// Fallbacks lists the stages that recovered from a failure.
	Fallbacks []string
}

// Pipeline answers questions for conversation sessions.
//
// # Thread Safety
//
// Safe for concurrent use. Stages within one request run sequentially;
// shared state lives in the Store.
type Pipeline struct {
	cfg       Config
	store     conversation.Store
	analyzer  *Analyzer
	retriever *Retriever
	generator *Generator
	validator *Validator
	selector  *exemplars.Selector
	metrics   *observability.Metrics
}

// New wires a Pipeline.
//
// # Outputs
//
//   - *Pipeline: Ready pipeline.
//   - error: Non-nil when Store, LLM or Grounder is missing.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("pipeline requires a session store")
	}
	if deps.LLM == nil {
		return nil, fmt.Errorf("pipeline requires an LLM client")
	}
	if deps.Grounder == nil {
		return nil, fmt.Errorf("pipeline requires a grounded retrieval client")
	}
	if cfg.RefineBudget < 0 {
		cfg.RefineBudget = 0
	}

	genParams := llm.GenerationParams{}.WithTemperature(cfg.Temperature)
	if cfg.MaxOutputTokens > 0 {
		maxTokens := cfg.MaxOutputTokens
		genParams.MaxTokens = &maxTokens
	}

	return &Pipeline{
		cfg:       cfg,
		store:     deps.Store,
		analyzer:  NewAnalyzer(deps.LLM, cfg.CallTimeout),
		retriever: NewRetriever(deps.Grounder, cfg.CallTimeout, cfg.MaxOutputTokens),
		generator: NewGenerator(deps.LLM, genParams, cfg.CallTimeout),
		validator: NewValidator(deps.LLM, cfg.CallTimeout),
		selector:  deps.Exemplars,
		metrics:   deps.Metrics,
	}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Answer runs the full pipeline for one question.
//
// # Description
//
// History shown to the model is read before the user turn is appended, so
// the in-flight question never appears twice. The assistant turn is
// appended only on success.
//
// # Inputs
//
//   - ctx: Request context. Cancellation is a terminal failure.
//   - sessionID: Conversation identity.
//   - question: Raw question text.
//
// # Outputs
//
//   - *Result: The final answer. nil on error.
//   - error: ErrEmptyQuestion, ErrNoAnswer, or a context error. Never a
//     recovered stage failure.
func (p *Pipeline) Answer(ctx context.Context, sessionID, question string) (*Result, error) {
	ctx, span := pipelineTracer.Start(ctx, "Pipeline.Answer")
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	result, err := p.run(ctx, sessionID, question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.RecordRequest(false)
		slog.Error("Answer pipeline failed", "session_id", sessionID, "error", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("pipeline.citations", len(result.Citations)),
		attribute.Int("pipeline.refinements", result.Refinements),
		attribute.StringSlice("pipeline.fallbacks", result.Fallbacks),
	)
	p.metrics.RecordRequest(true)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, sessionID, question string) (*Result, error) {
	history := conversation.FormatHistory(p.store.Recent(sessionID, p.cfg.ContextTurns))
	p.store.Append(sessionID, datatypes.RoleUser, question)

	result := &Result{Fallbacks: []string{}}

	// ===== Analyze =====
	result.Analysis = datatypes.DefaultQueryAnalysis(question)
	if p.cfg.EnableAnalysis {
		start := time.Now()
		analysis, err := p.analyzer.Analyze(ctx, question, history)
		p.metrics.ObserveStage(observability.StageAnalyze, time.Since(start))
		if terminal := ctx.Err(); terminal != nil {
			return nil, fmt.Errorf("analysis: %w", terminal)
		}
		if err != nil {
			p.fallback(result, observability.StageAnalyze, sessionID, err)
		}
		result.Analysis = analysis
		result.AnalysisRan = true
	}
	directive := BuildDirective(question, result.Analysis)

	// ===== Exemplars =====
	result.Exemplars = []exemplars.Scored{}
	if p.cfg.EnableExemplars && p.selector != nil && p.cfg.ExemplarK > 0 {
		start := time.Now()
		result.Exemplars = p.selector.TopK(question, p.cfg.ExemplarK)
		p.metrics.ObserveStage(observability.StageExemplars, time.Since(start))
	}

	// ===== Retrieve =====
	start := time.Now()
	retrieval, err := p.retriever.Retrieve(ctx, result.Analysis.EnhancedQuery)
	p.metrics.ObserveStage(observability.StageRetrieve, time.Since(start))
	if terminal := ctx.Err(); terminal != nil {
		return nil, fmt.Errorf("retrieval: %w", terminal)
	}
	if err != nil {
		p.fallback(result, observability.StageRetrieve, sessionID, err)
	}
	result.Citations = retrieval.Citations

	// ===== Generate =====
	start = time.Now()
	draft, err := p.generator.Generate(ctx, generationInput{
		Question:  question,
		History:   history,
		Context:   retrieval.Context,
		Directive: directive,
		Exemplars: result.Exemplars,
	})
	p.metrics.ObserveStage(observability.StageGenerate, time.Since(start))
	if terminal := ctx.Err(); terminal != nil {
		return nil, fmt.Errorf("generation: %w", terminal)
	}
	generated := err == nil
	if err != nil {
		if errors.Is(err, ErrNoAnswer) {
			return nil, err
		}
		p.fallback(result, observability.StageGenerate, sessionID, err)
	}
	result.Answer = draft

	// ===== Validate / Refine =====
	if generated && p.cfg.EnableValidation && p.cfg.RefineBudget > 0 {
		start = time.Now()
		refined, err := p.validator.Refine(ctx, question, draft, directive, p.cfg.RefineBudget)
		p.metrics.ObserveStage(observability.StageValidate, time.Since(start))
		if terminal := ctx.Err(); terminal != nil {
			return nil, fmt.Errorf("validation: %w", terminal)
		}
		if err != nil {
			p.fallback(result, observability.StageValidate, sessionID, err)
		}
		result.Answer = refined.Answer
		result.Refinements = refined.Replacements
		for i := 0; i < refined.Replacements; i++ {
			p.metrics.RecordRefinement()
		}
	}

	p.store.Append(sessionID, datatypes.RoleAssistant, result.Answer)
	return result, nil
}

func (p *Pipeline) fallback(result *Result, stage, sessionID string, err error) {
	slog.Warn("Pipeline stage recovered with fallback",
		"stage", stage,
		"session_id", sessionID,
		"error", err)
	p.metrics.RecordFallback(stage)
	result.Fallbacks = append(result.Fallbacks, stage)
}
