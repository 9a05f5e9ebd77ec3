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
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// =============================================================================
// Generic GraphQL Response Parser
// =============================================================================

// ParseGraphQLResponse parses a Weaviate GraphQL response into the target type.
//
// # Description
//
// Converts Weaviate's dynamic response (map[string]models.JSONObject) into a
// strongly-typed Go struct through a JSON round trip. The target type T must
// have json tags matching the expected response shape.
//
// # Inputs
//
//   - resp: The GraphQL response from the Weaviate client's Do() method.
//
// # Outputs
//
//   - *T: Pointer to the parsed struct.
//   - error: Non-nil if the response is nil, carries GraphQL errors, or
//     parsing fails.
//
// # Limitations
//
//   - Type mismatches on individual fields surface as parse errors, missing
//     fields as zero values.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	if len(resp.Errors) > 0 && resp.Errors[0] != nil {
		return nil, fmt.Errorf("graphql error: %s", resp.Errors[0].Message)
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}

// =============================================================================
// Document Search Response Types
// =============================================================================

// DocumentQueryResponse is the shape of a Get query against a document class.
// The class name is configurable, so results are keyed by it.
type DocumentQueryResponse struct {
	Get map[string][]DocumentResult `json:"Get"`
}

// Documents returns the results for className, or nil.
func (r *DocumentQueryResponse) Documents(className string) []DocumentResult {
	if r == nil || r.Get == nil {
		return nil
	}
	return r.Get[className]
}

// DocumentResult represents a single indexed chunk returned by a query.
type DocumentResult struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	Title      string `json:"title"`
	Additional struct {
		ID    string   `json:"id"`
		Score *float64 `json:"score,string"`
	} `json:"_additional"`
}

// DocumentHit is the API view of one search result.
type DocumentHit struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Source  string   `json:"source"`
	Content string   `json:"content"`
	Score   *float64 `json:"score,omitempty"`
}

// DocumentSearchResponse is the body of GET /v1/documents/search.
type DocumentSearchResponse struct {
	Query   string        `json:"query"`
	Results []DocumentHit `json:"results"`
	Total   int           `json:"total"`
	Success bool          `json:"success"`
}
