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
	"testing"

	"github.com/AleutianAI/AleutianDocChat/services/llm"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream unavailable")

// ===== Language =====

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     Language
	}{
		{"plain english", "What materials are listed?", LanguageEnglish},
		{"vietnamese", "Vật liệu nào chống cháy?", LanguageQuestion},
		{"accented latin", "Qu'est-ce que la sécurité?", LanguageQuestion},
		{"empty", "", LanguageEnglish},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.question))
		})
	}
	assert.Equal(t, apologyVietnamese, LanguageQuestion.Apology())
	assert.Equal(t, apologyEnglish, LanguageEnglish.Apology())
}

// ===== Fences =====

func TestStripFence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"json fence", "Here:\n```json\n{\"a\":1}\n```\nthanks", `{"a":1}`},
		{"bare fence", "```\n{\"a\":2}\n```", `{"a":2}`},
		{"no fence", "  {\"a\":3}  ", `{"a":3}`},
		{"unterminated", "```json\n{\"a\":4}", `{"a":4}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFence(tt.raw))
		})
	}
}

// ===== Directive =====

func TestBuildDirective_IsPure(t *testing.T) {
	a := datatypes.DefaultQueryAnalysis("q")
	a.Scope = datatypes.ScopeSingleObject
	assert.Equal(t, BuildDirective("q", a), BuildDirective("q", a))
	assert.Equal(t, BuildDirective("q", a).Render(), BuildDirective("q", a).Render())
}

func TestBuildDirective_ExclusivityFollowsScope(t *testing.T) {
	intents := []datatypes.Intent{
		datatypes.IntentListNames, datatypes.IntentDescribeProperty,
		datatypes.IntentExplainConcept, datatypes.IntentCompare, datatypes.IntentGeneral,
	}
	focuses := []datatypes.Focus{
		datatypes.FocusNameOnly, datatypes.FocusSpecificProperty,
		datatypes.FocusMultipleProperties, datatypes.FocusAllInfo,
	}
	for _, intent := range intents {
		for _, focus := range focuses {
			a := datatypes.DefaultQueryAnalysis("q")
			a.Intent, a.Focus = intent, focus

			a.Scope = datatypes.ScopeSingleObject
			single := BuildDirective("q", a)
			assert.True(t, single.Exclusive)
			assert.Contains(t, single.Render(), exclusivityClause, "%s/%s", intent, focus)

			a.Scope = datatypes.ScopeMultipleObjects
			multi := BuildDirective("q", a)
			assert.False(t, multi.Exclusive)
			assert.NotContains(t, multi.Render(), exclusivityClause, "%s/%s", intent, focus)
		}
	}
}

func TestBuildDirective_Templates(t *testing.T) {
	tests := []struct {
		intent datatypes.Intent
		focus  datatypes.Focus
		want   string
	}{
		{datatypes.IntentListNames, datatypes.FocusAllInfo, instructionListNames},
		{datatypes.IntentDescribeProperty, datatypes.FocusNameOnly, instructionNameOnly},
		{datatypes.IntentDescribeProperty, datatypes.FocusSpecificProperty, instructionProperty},
		{datatypes.IntentExplainConcept, datatypes.FocusAllInfo, instructionExplain},
		{datatypes.IntentCompare, datatypes.FocusAllInfo, instructionCompare},
		{datatypes.IntentGeneral, datatypes.FocusAllInfo, instructionGeneral},
		{datatypes.Intent("bogus"), datatypes.FocusAllInfo, instructionGeneral},
	}
	for _, tt := range tests {
		t.Run(string(tt.intent)+"/"+string(tt.focus), func(t *testing.T) {
			a := datatypes.DefaultQueryAnalysis("q")
			a.Intent, a.Focus = tt.intent, tt.focus
			assert.Equal(t, tt.want, BuildDirective("q", a).Instruction)
		})
	}
}

func TestDirectiveRender_GlobalRulesAndLanguage(t *testing.T) {
	a := datatypes.DefaultQueryAnalysis("q")
	a.ShouldExclude = []string{"other_properties"}

	english := BuildDirective("Which materials?", a).Render()
	assert.Contains(t, english, "Maximum length: 100 words.")
	assert.Contains(t, english, "INDEPENDENT")
	assert.Contains(t, english, "Do NOT include: other_properties")
	assert.Contains(t, english, "answer in English")

	native := BuildDirective("Vật liệu nào?", a).Render()
	assert.Contains(t, native, "answer in the same language as the question")
}

// ===== Analyzer =====

func TestAnalyzer_ParsesFencedJSON(t *testing.T) {
	fake := newFakeLLM()
	a := NewAnalyzer(fake, 0)

	got, err := a.Analyze(context.Background(), "List the fire-resistant materials mentioned", "")
	require.NoError(t, err)
	assert.Equal(t, datatypes.IntentListNames, got.Intent)
	assert.Equal(t, datatypes.FocusNameOnly, got.Focus)
	assert.Equal(t, []string{"names"}, got.ShouldInclude)
	assert.Equal(t, "fire-resistant materials listed in the documents", got.EnhancedQuery)

	calls := fake.callsOf(kindAnalysis)
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].params.Temperature)
	assert.Equal(t, float32(0), *calls[0].params.Temperature)
}

func TestAnalyzer_IncludesHistory(t *testing.T) {
	fake := newFakeLLM()
	_, err := NewAnalyzer(fake, 0).Analyze(context.Background(), "and the second one?", "User: first question\nAssistant: first answer")
	require.NoError(t, err)
	assert.Contains(t, fake.callsOf(kindAnalysis)[0].prompt, "User: first question")
}

func TestAnalyzer_NormalizesUnknownValues(t *testing.T) {
	fake := newFakeLLM().script(kindAnalysis, reply{text: `{"intent":"poem","scope":"everything","enhanced_query":""}`})

	got, err := NewAnalyzer(fake, 0).Analyze(context.Background(), "What is X?", "")
	require.NoError(t, err)
	assert.Equal(t, datatypes.IntentGeneral, got.Intent)
	assert.Equal(t, datatypes.ScopeMultipleObjects, got.Scope)
	assert.Equal(t, "What is X?", got.EnhancedQuery)
}

func TestAnalyzer_FallsBack(t *testing.T) {
	tests := []struct {
		name    string
		reply   reply
		wantErr error
	}{
		{"malformed", reply{text: "I think it is a list question."}, ErrMalformedResponse},
		{"upstream", reply{err: errUpstream}, errUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeLLM().script(kindAnalysis, tt.reply)
			got, err := NewAnalyzer(fake, 0).Analyze(context.Background(), "What is X?", "")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, datatypes.DefaultQueryAnalysis("What is X?"), got)
		})
	}
}

// ===== Retriever =====

func TestRetriever_ReturnsContextAndCitations(t *testing.T) {
	g := newFakeGrounder()
	got, err := NewRetriever(g, 0, 0).Retrieve(context.Background(), "fire materials")
	require.NoError(t, err)

	assert.Contains(t, got.Context, "Section 4")
	require.Len(t, got.Citations, 2)
	assert.Equal(t, "manual.pdf", got.Citations[0].Title)
	assert.Equal(t, []string{"fire materials"}, g.queries)
	require.NotNil(t, g.params[0].Temperature)
	assert.Equal(t, float32(0), *g.params[0].Temperature)
}

func TestRetriever_MissingMetadataIsEmpty(t *testing.T) {
	g := &fakeGrounder{resp: &llm.GroundedResponse{Text: "ctx"}}
	got, err := NewRetriever(g, 0, 0).Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.NotNil(t, got.Citations)
	assert.Empty(t, got.Citations)
}

func TestRetriever_FailureYieldsEmptyResult(t *testing.T) {
	g := &fakeGrounder{err: errUpstream}
	got, err := NewRetriever(g, 0, 0).Retrieve(context.Background(), "q")
	assert.ErrorIs(t, err, errUpstream)
	assert.Equal(t, "", got.Context)
	assert.NotNil(t, got.Citations)
	assert.Empty(t, got.Citations)
}

// ===== Generator =====

func TestGenerator_Apology(t *testing.T) {
	fake := newFakeLLM().script(kindGeneration, reply{err: errUpstream})
	gen := NewGenerator(fake, llm.GenerationParams{}, 0)

	a := datatypes.DefaultQueryAnalysis("q")
	out, err := gen.Generate(context.Background(), generationInput{
		Question:  "Vật liệu nào?",
		Directive: BuildDirective("Vật liệu nào?", a),
	})
	assert.ErrorIs(t, err, errUpstream)
	assert.Equal(t, apologyVietnamese, out)

	out, err = gen.Generate(context.Background(), generationInput{
		Question:  "Which material?",
		Directive: BuildDirective("Which material?", a),
	})
	assert.Error(t, err)
	assert.Equal(t, apologyEnglish, out)
}

func TestGenerator_EmptyOutputIsNoAnswer(t *testing.T) {
	fake := newFakeLLM().script(kindGeneration, reply{text: "  \n "})
	out, err := NewGenerator(fake, llm.GenerationParams{}, 0).Generate(context.Background(), generationInput{
		Question:  "q",
		Directive: BuildDirective("q", datatypes.DefaultQueryAnalysis("q")),
	})
	assert.ErrorIs(t, err, ErrNoAnswer)
	assert.Empty(t, out)
}

func TestGenerator_PromptWithoutContext(t *testing.T) {
	fake := newFakeLLM()
	_, err := NewGenerator(fake, llm.GenerationParams{}, 0).Generate(context.Background(), generationInput{
		Question:  "q",
		Directive: BuildDirective("q", datatypes.DefaultQueryAnalysis("q")),
	})
	require.NoError(t, err)
	assert.Contains(t, fake.callsOf(kindGeneration)[0].prompt, noContextNotice)
}

// ===== Validator =====

func TestValidator_MissingIsValidCountsAsValid(t *testing.T) {
	fake := newFakeLLM().script(kindValidation, reply{text: `{"issues": ["too long"], "refined_answer": "short"}`})
	v, err := NewValidator(fake, 0).Validate(context.Background(), "q", "draft", Directive{})
	require.NoError(t, err)
	assert.True(t, v.IsValid)
	assert.False(t, v.Replaces())
}

func TestValidator_Refine(t *testing.T) {
	invalid := reply{text: "```json\n{\"is_valid\": false, \"issues\": [\"extra info\"], \"refined_answer\": \"A, B and C.\"}\n```"}
	invalidAgain := reply{text: `{"is_valid": false, "issues": ["still long"], "refined_answer": "A, B, C."}`}
	valid := reply{text: `{"is_valid": true, "issues": []}`}
	noReplacement := reply{text: `{"is_valid": false, "issues": ["bad"], "refined_answer": "  "}`}

	tests := []struct {
		name             string
		budget           int
		replies          []reply
		wantAnswer       string
		wantReplacements int
		wantPasses       int
		wantErr          bool
	}{
		{"zero budget", 0, []reply{invalid}, "draft", 0, 0, false},
		{"valid draft", 1, []reply{valid}, "draft", 0, 1, false},
		{"single pass substitutes", 1, []reply{invalid, invalidAgain}, "A, B and C.", 1, 1, false},
		{"second pass substitutes again", 2, []reply{invalid, invalidAgain}, "A, B, C.", 2, 2, false},
		{"second pass accepts", 3, []reply{invalid, valid}, "A, B and C.", 1, 2, false},
		{"invalid without replacement", 1, []reply{noReplacement}, "draft", 0, 1, false},
		{"malformed keeps draft", 1, []reply{{text: "looks fine"}}, "draft", 0, 1, true},
		{"upstream keeps draft", 1, []reply{{err: errUpstream}}, "draft", 0, 1, true},
		{"budget clamped", 10, []reply{invalid, invalidAgain, invalid, invalidAgain, invalid}, "A, B and C.", MaxRefineBudget, MaxRefineBudget, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeLLM().script(kindValidation, tt.replies...)
			got, err := NewValidator(fake, 0).Refine(context.Background(), "q", "draft", Directive{}, tt.budget)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantAnswer, got.Answer)
			assert.Equal(t, tt.wantReplacements, got.Replacements)
			assert.Equal(t, tt.wantPasses, got.Passes)
			assert.Len(t, fake.callsOf(kindValidation), tt.wantPasses)
		})
	}
}
