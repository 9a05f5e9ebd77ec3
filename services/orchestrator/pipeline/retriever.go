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
	"time"

	"github.com/AleutianAI/AleutianDocChat/services/llm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// RetrievalResult is the grounding context for one request.
type RetrievalResult struct {
	Context string

	// Citations in retrieval ranking order. Never nil.
	Citations []llm.Citation
}

// Retriever fetches grounding context through a retrieval-enabled backend.
type Retriever struct {
	grounder    llm.GroundedClient
	callTimeout time.Duration
	maxTokens   int
}

func NewRetriever(grounder llm.GroundedClient, callTimeout time.Duration, maxTokens int) *Retriever {
	return &Retriever{grounder: grounder, callTimeout: callTimeout, maxTokens: maxTokens}
}

// Retrieve runs the query at zero temperature so identical queries surface
// the same grounding.
//
// # Outputs
//
//   - RetrievalResult: Empty context and citations when err is non-nil.
//   - error: Upstream failure. Never terminal for the pipeline.
func (r *Retriever) Retrieve(ctx context.Context, query string) (RetrievalResult, error) {
	ctx, span := pipelineTracer.Start(ctx, "Retriever.Retrieve")
	defer span.End()

	callCtx, cancel := withCallTimeout(ctx, r.callTimeout)
	defer cancel()

	resp, err := r.grounder.GenerateGrounded(callCtx, query, llm.Deterministic(r.maxTokens))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return emptyRetrieval(), fmt.Errorf("retrieval failed: %w", err)
	}
	if resp == nil {
		return emptyRetrieval(), nil
	}

	result := RetrievalResult{Context: resp.Text, Citations: resp.Citations}
	if result.Citations == nil {
		result.Citations = []llm.Citation{}
	}
	span.SetAttributes(attribute.Int("retrieval.citations", len(result.Citations)))
	return result, nil
}

func emptyRetrieval() RetrievalResult {
	return RetrievalResult{Citations: []llm.Citation{}}
}
