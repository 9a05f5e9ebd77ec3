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
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDocChat/services/llm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	validationMaxTokens = 1024

	// MaxRefineBudget caps the number of validation passes per request.
	MaxRefineBudget = 3
)

// Verdict is the validator's critique of one answer.
type Verdict struct {
	IsValid bool
	Issues  []string

	// Refined is the proposed replacement. Empty when none was offered.
	Refined string
}

// Replaces reports whether the verdict should replace the answer it judged.
func (v Verdict) Replaces() bool {
	return !v.IsValid && v.Refined != ""
}

type verdictPayload struct {
	IsValid       *bool    `json:"is_valid"`
	Issues        []string `json:"issues"`
	RefinedAnswer string   `json:"refined_answer"`
}

// Validator critiques drafts against their directive.
type Validator struct {
	client      llm.LLMClient
	callTimeout time.Duration
}

func NewValidator(client llm.LLMClient, callTimeout time.Duration) *Validator {
	return &Validator{client: client, callTimeout: callTimeout}
}

// Validate asks the model whether answer satisfies the directive.
//
// # Description
//
// A missing is_valid field counts as valid. Any error means the caller
// keeps the answer it already has.
func (v *Validator) Validate(ctx context.Context, question, answer string, d Directive) (Verdict, error) {
	ctx, span := pipelineTracer.Start(ctx, "Validator.Validate")
	defer span.End()

	callCtx, cancel := withCallTimeout(ctx, v.callTimeout)
	defer cancel()

	raw, err := v.client.Generate(callCtx, buildValidationPrompt(question, answer, d), llm.Deterministic(validationMaxTokens))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation call failed")
		return Verdict{IsValid: true}, fmt.Errorf("validation call failed: %w", err)
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(stripFence(raw)), &payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation parse failed")
		return Verdict{IsValid: true}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	verdict := Verdict{
		IsValid: payload.IsValid == nil || *payload.IsValid,
		Issues:  payload.Issues,
		Refined: strings.TrimSpace(payload.RefinedAnswer),
	}
	if verdict.Issues == nil {
		verdict.Issues = []string{}
	}
	span.SetAttributes(
		attribute.Bool("validation.valid", verdict.IsValid),
		attribute.Int("validation.issues", len(verdict.Issues)),
	)
	return verdict, nil
}

// Refinement is the outcome of the refine loop.
type Refinement struct {
	Answer string

	// Replacements counts how many times the draft was substituted.
	Replacements int

	// Passes counts validation calls made.
	Passes int
}

// Refine moves a draft from drafted to finalized.
//
// # Description
//
// Each pass makes one validation call. A pass that judges the answer valid,
// offers no replacement, or fails finalizes the current answer. A pass that
// replaces it continues only while budget remains. With budget 1 this is a
// single validate-then-substitute step.
//
// # Inputs
//
//   - budget: Maximum validation passes, clamped to [0, MaxRefineBudget].
//     Zero finalizes the draft unchanged.
//
// # Outputs
//
//   - Refinement: Final answer and counters.
//   - error: The last validation error, if the loop ended on one. The
//     returned answer is still usable.
func (v *Validator) Refine(ctx context.Context, question, draft string, d Directive, budget int) (Refinement, error) {
	if budget > MaxRefineBudget {
		budget = MaxRefineBudget
	}
	result := Refinement{Answer: draft}
	for result.Passes < budget {
		verdict, err := v.Validate(ctx, question, result.Answer, d)
		result.Passes++
		if err != nil {
			return result, err
		}
		if !verdict.Replaces() {
			return result, nil
		}
		slog.Debug("Validator replaced answer",
			"pass", result.Passes,
			"issues", len(verdict.Issues))
		result.Answer = verdict.Refined
		result.Replacements++
	}
	return result, nil
}
