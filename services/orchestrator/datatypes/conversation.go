// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"strings"
	"time"
)

// =============================================================================
// Turns
// =============================================================================

// Role identifies the author of a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Title returns the role name as rendered in prompt history lines.
func (r Role) Title() string {
	s := string(r)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Turn is one immutable message within a conversation session.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// =============================================================================
// Query Analysis
// =============================================================================

type Intent string

const (
	IntentListNames        Intent = "list_names"
	IntentDescribeProperty Intent = "describe_property"
	IntentExplainConcept   Intent = "explain_concept"
	IntentCompare          Intent = "compare"
	IntentGeneral          Intent = "general"
)

type Scope string

const (
	ScopeSingleObject    Scope = "single_object"
	ScopeMultipleObjects Scope = "multiple_objects"
)

type Focus string

const (
	FocusNameOnly           Focus = "name_only"
	FocusSpecificProperty   Focus = "specific_property"
	FocusMultipleProperties Focus = "multiple_properties"
	FocusAllInfo            Focus = "all_info"
)

type ExpectedLength string

const (
	LengthShort  ExpectedLength = "short"
	LengthMedium ExpectedLength = "medium"
	LengthLong   ExpectedLength = "long"
)

// QueryAnalysis is the structured classification of one question.
//
// # Description
//
// Produced fresh per request by the intent analyzer and consumed by the
// directive builder and generator. Never persisted.
type QueryAnalysis struct {
	Intent         Intent         `json:"intent"`
	Scope          Scope          `json:"scope"`
	Focus          Focus          `json:"focus"`
	ExpectedLength ExpectedLength `json:"expected_length"`
	ShouldInclude  []string       `json:"should_include"`
	ShouldExclude  []string       `json:"should_exclude"`
	EnhancedQuery  string         `json:"enhanced_query"`
}

// DefaultQueryAnalysis is the analysis used when classification fails or is
// disabled.
func DefaultQueryAnalysis(question string) QueryAnalysis {
	return QueryAnalysis{
		Intent:         IntentGeneral,
		Scope:          ScopeMultipleObjects,
		Focus:          FocusAllInfo,
		ExpectedLength: LengthMedium,
		ShouldInclude:  []string{"all"},
		ShouldExclude:  []string{},
		EnhancedQuery:  question,
	}
}

// Normalize replaces unknown enum values with the defaults and fills missing
// collections, so a partially valid model payload still yields a usable
// analysis.
func (a *QueryAnalysis) Normalize(question string) {
	def := DefaultQueryAnalysis(question)
	switch a.Intent {
	case IntentListNames, IntentDescribeProperty, IntentExplainConcept, IntentCompare, IntentGeneral:
	default:
		a.Intent = def.Intent
	}
	switch a.Scope {
	case ScopeSingleObject, ScopeMultipleObjects:
	default:
		a.Scope = def.Scope
	}
	switch a.Focus {
	case FocusNameOnly, FocusSpecificProperty, FocusMultipleProperties, FocusAllInfo:
	default:
		a.Focus = def.Focus
	}
	switch a.ExpectedLength {
	case LengthShort, LengthMedium, LengthLong:
	default:
		a.ExpectedLength = def.ExpectedLength
	}
	if a.ShouldInclude == nil {
		a.ShouldInclude = def.ShouldInclude
	}
	if a.ShouldExclude == nil {
		a.ShouldExclude = def.ShouldExclude
	}
	if strings.TrimSpace(a.EnhancedQuery) == "" {
		a.EnhancedQuery = question
	}
}
