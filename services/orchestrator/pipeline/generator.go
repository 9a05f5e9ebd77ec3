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
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDocChat/services/llm"
	"go.opentelemetry.io/otel/codes"
)

// Generator produces the draft answer.
type Generator struct {
	client      llm.LLMClient
	params      llm.GenerationParams
	callTimeout time.Duration
}

func NewGenerator(client llm.LLMClient, params llm.GenerationParams, callTimeout time.Duration) *Generator {
	return &Generator{client: client, params: params, callTimeout: callTimeout}
}

// Generate builds one prompt from the directive, context, history and
// exemplars and asks the model for a draft.
//
// # Outputs
//
//   - string: The draft. On upstream failure, the fixed apology in the
//     question's language.
//   - error: nil on success. ErrNoAnswer (terminal) when the model returned
//     only whitespace. Any other error is an upstream failure and the
//     returned apology may be used.
func (g *Generator) Generate(ctx context.Context, in generationInput) (string, error) {
	ctx, span := pipelineTracer.Start(ctx, "Generator.Generate")
	defer span.End()

	callCtx, cancel := withCallTimeout(ctx, g.callTimeout)
	defer cancel()

	out, err := g.client.Generate(callCtx, buildGenerationPrompt(in), g.params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return in.Directive.Language.Apology(), fmt.Errorf("generation call failed: %w", err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		span.SetStatus(codes.Error, ErrNoAnswer.Error())
		return "", ErrNoAnswer
	}
	return out, nil
}
