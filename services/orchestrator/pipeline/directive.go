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
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/datatypes"
)

// MaxAnswerWords is the global length cap layered on every directive.
const MaxAnswerWords = 100

// =============================================================================
// Intent Templates
// =============================================================================

const (
	instructionListNames = `SPECIFIC INSTRUCTIONS (listing question):
- List ONLY the names that were asked for.
- Do NOT describe each item.
- Format: bullet points or a short inline list.
- Length: 1-2 sentences.`

	instructionNameOnly = `SPECIFIC INSTRUCTIONS (name question):
- Answer ONLY with the name or list of names.
- Do NOT add descriptions or properties.
- Length: 1-2 sentences.`

	instructionProperty = `SPECIFIC INSTRUCTIONS (property question):
- Describe ONLY the property that was asked about.
- Do NOT mention other properties.
- If ONE specific property is asked, answer about that property only.
- Length: 2-3 sentences.`

	instructionExplain = `SPECIFIC INSTRUCTIONS (explanation question):
- Explain the concept that was asked about.
- You may include an example if the documents contain one.
- Length: 3-4 sentences.
- Stay on the main concept.`

	instructionCompare = `SPECIFIC INSTRUCTIONS (comparison question):
- Compare the requested objects.
- Compare ONLY the aspect that was asked about, if one is given.
- Format: a table or a comparison list.
- Length: 3-5 sentences.`

	instructionGeneral = `SPECIFIC INSTRUCTIONS (general question):
- Answer the question directly.
- Be concise (2-4 sentences).
- Focus on the main information.
- Do NOT add information that was not asked for.`

	exclusivityClause = "NOTE: The question asks about ONE specific object. Answer ONLY about that object and do NOT mention or list other objects."
)

var globalRules = []string{
	"Each question is INDEPENDENT of unrelated earlier turns.",
	"Do NOT merge unrelated information.",
	"Do NOT add bonus information even if it appears in the documents.",
	fmt.Sprintf("Maximum length: %d words.", MaxAnswerWords),
}

// =============================================================================
// Directive
// =============================================================================

// Directive is the set of answer rules derived from a QueryAnalysis.
type Directive struct {
	Intent         datatypes.Intent
	Focus          datatypes.Focus
	ExpectedLength datatypes.ExpectedLength

	// Instruction is the fixed template selected by intent and focus.
	Instruction string

	// Exclusive is set for single_object scope and adds the exclusivity
	// clause.
	Exclusive bool

	Include  []string
	Exclude  []string
	Language Language
}

// BuildDirective derives the generation directive for a question.
//
// # Description
//
// Pure function of its inputs. The instruction template is chosen by intent,
// with describe_property split on focus=name_only. Unknown intents use the
// general template.
//
// # Inputs
//
//   - question: The user question. Only used for language selection.
//   - analysis: The (normalized) query analysis.
//
// # Outputs
//
//   - Directive: Ready to render.
func BuildDirective(question string, analysis datatypes.QueryAnalysis) Directive {
	return Directive{
		Intent:         analysis.Intent,
		Focus:          analysis.Focus,
		ExpectedLength: analysis.ExpectedLength,
		Instruction:    instructionFor(analysis.Intent, analysis.Focus),
		Exclusive:      analysis.Scope == datatypes.ScopeSingleObject,
		Include:        cloneStrings(analysis.ShouldInclude),
		Exclude:        cloneStrings(analysis.ShouldExclude),
		Language:       DetectLanguage(question),
	}
}

func instructionFor(intent datatypes.Intent, focus datatypes.Focus) string {
	switch intent {
	case datatypes.IntentListNames:
		return instructionListNames
	case datatypes.IntentDescribeProperty:
		if focus == datatypes.FocusNameOnly {
			return instructionNameOnly
		}
		return instructionProperty
	case datatypes.IntentExplainConcept:
		return instructionExplain
	case datatypes.IntentCompare:
		return instructionCompare
	default:
		return instructionGeneral
	}
}

// Render returns the directive as prompt text.
func (d Directive) Render() string {
	var sb strings.Builder
	sb.WriteString(d.Instruction)
	sb.WriteString("\n")
	if d.Exclusive {
		sb.WriteString("\n")
		sb.WriteString(exclusivityClause)
		sb.WriteString("\n")
	}
	if d.ExpectedLength != "" {
		fmt.Fprintf(&sb, "\nExpected length: %s\n", d.ExpectedLength)
	}
	if len(d.Include) > 0 {
		fmt.Fprintf(&sb, "Include: %s\n", strings.Join(d.Include, ", "))
	}
	if len(d.Exclude) > 0 {
		fmt.Fprintf(&sb, "Do NOT include: %s\n", strings.Join(d.Exclude, ", "))
	}
	fmt.Fprintf(&sb, "Language: answer in %s.\n", d.Language.Instruction())

	sb.WriteString("\nIMPORTANT:\n")
	for _, rule := range globalRules {
		sb.WriteString("- ")
		sb.WriteString(rule)
		sb.WriteString("\n")
	}
	return sb.String()
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
