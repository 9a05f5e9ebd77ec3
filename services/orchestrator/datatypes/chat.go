// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the docchat service.
//
// This file contains request and response types for the ask, history and
// clear endpoints. The conversation data model lives in conversation.go and
// the inbound channel payloads in webhook.go.
package datatypes

import (
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDocChat/services/llm"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxQuestionBytes is the maximum size of a single question.
	MaxQuestionBytes = 8 * 1024

	// ExampleAnswerPreviewRunes is how much of an exemplar answer is echoed
	// back in ask responses.
	ExampleAnswerPreviewRunes = 100
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
	_ = chatValidate.RegisterValidation("nonblank", validateNonBlank)
}

// validateMaxBytes checks byte length, not rune count.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxQuestionBytes
}

func validateNonBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// =============================================================================
// Ask
// =============================================================================

// AskRequest is the body of POST /v1/ask.
//
// # Description
//
// The session is implied by the caller's session cookie, never by the body.
// Message is accepted as an alias of Question for clients of the older web
// front end.
//
// # Validation
//
//   - Question: required, not blank after trimming, at most 8KB.
type AskRequest struct {
	Question string `json:"question" validate:"nonblank,maxbytes"`
	Message  string `json:"message,omitempty"`
}

// Normalize folds the Message alias into Question and trims it.
func (r *AskRequest) Normalize() {
	if strings.TrimSpace(r.Question) == "" {
		r.Question = r.Message
	}
	r.Question = strings.TrimSpace(r.Question)
}

// Validate validates the request after Normalize.
func (r *AskRequest) Validate() error {
	return chatValidate.Struct(r)
}

// SimilarExample is an exemplar echoed back in an ask response.
type SimilarExample struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Similarity string `json:"similarity"`
}

// AskResponse represents a successful answer.
//
// # Examples
//
//	{
//	    "request_id": "660f9500-f39c-52e5-b827-557766551111",
//	    "answer": "The fire-resistant materials are A, B and C.",
//	    "citations": [{"title": "manual.pdf", "uri": "..."}],
//	    "success": true
//	}
type AskResponse struct {
	RequestID        string           `json:"request_id"`
	Timestamp        int64            `json:"timestamp"`
	Answer           string           `json:"answer"`
	Citations        []llm.Citation   `json:"citations"`
	Success          bool             `json:"success"`
	QueryAnalysis    *QueryAnalysis   `json:"query_analysis,omitempty"`
	SimilarExamples  []SimilarExample `json:"similar_examples,omitempty"`
	ProcessingTimeMs int64            `json:"processing_time_ms,omitempty"`
}

// NewAskResponse creates a successful AskResponse with a fresh request ID.
// A nil citation slice is replaced by an empty one so clients always see an
// array.
func NewAskResponse(answer string, citations []llm.Citation) *AskResponse {
	if citations == nil {
		citations = []llm.Citation{}
	}
	return &AskResponse{
		RequestID: generateUUID(),
		Timestamp: time.Now().UnixMilli(),
		Answer:    answer,
		Citations: citations,
		Success:   true,
	}
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Success bool   `json:"success"`
}

// NewErrorResponse builds a failure payload.
func NewErrorResponse(msg string) ErrorResponse {
	return ErrorResponse{Error: msg, Success: false}
}

// =============================================================================
// History
// =============================================================================

// HistoryResponse is the body of GET /v1/history.
type HistoryResponse struct {
	SessionID string `json:"session_id"`
	History   []Turn `json:"history"`
	Success   bool   `json:"success"`
}

// ClearResponse acknowledges POST /v1/clear.
type ClearResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// PreviewAnswer truncates an exemplar answer for display.
func PreviewAnswer(answer string) string {
	runes := []rune(answer)
	if len(runes) <= ExampleAnswerPreviewRunes {
		return answer
	}
	return string(runes[:ExampleAnswerPreviewRunes]) + "..."
}

func generateUUID() string {
	return uuid.New().String()
}
