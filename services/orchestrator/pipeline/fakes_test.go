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
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianDocChat/services/llm"
)

type promptKind string

const (
	kindAnalysis   promptKind = "analysis"
	kindGeneration promptKind = "generation"
	kindValidation promptKind = "validation"
)

func classify(prompt string) promptKind {
	switch {
	case strings.HasPrefix(prompt, analysisHeader):
		return kindAnalysis
	case strings.HasPrefix(prompt, validationHeader):
		return kindValidation
	default:
		return kindGeneration
	}
}

type recordedCall struct {
	kind   promptKind
	prompt string
	params llm.GenerationParams
}

// fakeLLM answers each prompt kind with a scripted reply.
type fakeLLM struct {
	mu      sync.Mutex
	replies map[promptKind][]reply
	calls   []recordedCall
}

type reply struct {
	text string
	err  error
}

const defaultAnalysisJSON = "```json\n" + `{
  "intent": "list_names",
  "scope": "multiple_objects",
  "focus": "name_only",
  "expected_length": "short",
  "should_include": ["names"],
  "should_exclude": ["descriptions"],
  "enhanced_query": "fire-resistant materials listed in the documents"
}` + "\n```"

func newFakeLLM() *fakeLLM {
	return &fakeLLM{replies: map[promptKind][]reply{
		kindAnalysis:   {{text: defaultAnalysisJSON}},
		kindGeneration: {{text: "The materials are A, B and C."}},
		kindValidation: {{text: `{"is_valid": true, "issues": []}`}},
	}}
}

// script replaces the replies for kind. The last reply repeats.
func (f *fakeLLM) script(kind promptKind, replies ...reply) *fakeLLM {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[kind] = replies
	return f
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	kind := classify(prompt)

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{kind: kind, prompt: prompt, params: params})
	queue := f.replies[kind]
	var r reply
	if len(queue) > 0 {
		r = queue[0]
		if len(queue) > 1 {
			f.replies[kind] = queue[1:]
		}
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.text, r.err
}

func (f *fakeLLM) callsOf(kind promptKind) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, c := range f.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeLLM) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeGrounder returns a fixed grounded response.
type fakeGrounder struct {
	mu      sync.Mutex
	resp    *llm.GroundedResponse
	err     error
	queries []string
	params  []llm.GenerationParams
}

func newFakeGrounder() *fakeGrounder {
	return &fakeGrounder{resp: &llm.GroundedResponse{
		Text: "Section 4 lists A, B and C as fire-resistant materials.",
		Citations: []llm.Citation{
			{Title: "manual.pdf", URI: "store/manual.pdf"},
			{Title: "annex.pdf", URI: "store/annex.pdf"},
		},
	}}
}

func (g *fakeGrounder) GenerateGrounded(ctx context.Context, prompt string, params llm.GenerationParams) (*llm.GroundedResponse, error) {
	g.mu.Lock()
	g.queries = append(g.queries, prompt)
	g.params = append(g.params, params)
	g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.resp, g.err
}
