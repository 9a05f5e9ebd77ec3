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
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianDocChat/services/llm"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var pipelineTracer = otel.Tracer("docchat.pipeline")

const analysisMaxTokens = 512

// Analyzer classifies a question into a QueryAnalysis.
type Analyzer struct {
	client      llm.LLMClient
	callTimeout time.Duration
}

// NewAnalyzer creates an Analyzer. A non-positive callTimeout disables the
// per-call deadline.
func NewAnalyzer(client llm.LLMClient, callTimeout time.Duration) *Analyzer {
	return &Analyzer{client: client, callTimeout: callTimeout}
}

// Analyze classifies question at zero temperature.
//
// # Description
//
// The model answer may wrap the JSON payload in a fenced block; the fence is
// stripped before parsing. Unknown enum values are replaced by defaults.
//
// # Inputs
//
//   - ctx: Request context.
//   - question: Trimmed user question.
//   - history: Rendered recent turns, may be empty.
//
// # Outputs
//
//   - datatypes.QueryAnalysis: Always usable. On error it is
//     DefaultQueryAnalysis(question).
//   - error: Why the default was used. Never terminal.
func (a *Analyzer) Analyze(ctx context.Context, question, history string) (datatypes.QueryAnalysis, error) {
	ctx, span := pipelineTracer.Start(ctx, "Analyzer.Analyze")
	defer span.End()

	callCtx, cancel := withCallTimeout(ctx, a.callTimeout)
	defer cancel()

	raw, err := a.client.Generate(callCtx, buildAnalysisPrompt(question, history), llm.Deterministic(analysisMaxTokens))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis call failed")
		return datatypes.DefaultQueryAnalysis(question), fmt.Errorf("analysis call failed: %w", err)
	}

	analysis, err := parseAnalysis(raw, question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis parse failed")
		slog.Debug("Unparseable analysis payload", "raw_len", len(raw))
		return datatypes.DefaultQueryAnalysis(question), err
	}

	span.SetAttributes(
		attribute.String("analysis.intent", string(analysis.Intent)),
		attribute.String("analysis.scope", string(analysis.Scope)),
	)
	return analysis, nil
}

func parseAnalysis(raw, question string) (datatypes.QueryAnalysis, error) {
	var analysis datatypes.QueryAnalysis
	if err := json.Unmarshal([]byte(stripFence(raw)), &analysis); err != nil {
		return analysis, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	analysis.Normalize(question)
	return analysis, nil
}

// withCallTimeout bounds one external call. The parent deadline still
// applies when it is earlier.
func withCallTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
