// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/datatypes"
	"github.com/gin-gonic/gin"
)

// maxSearchLimit caps the limit query parameter.
const maxSearchLimit = 50

// DocumentSearcher searches the indexed document chunks.
type DocumentSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]datatypes.DocumentHit, error)
}

// HandleDocumentSearch lists indexed chunks matching a keyword query.
//
// # Description
//
// GET /v1/documents/search?q=...&limit=N. Only available when documents are
// indexed in Weaviate; with the Gemini File Search backend the index lives
// inside the hosted service and searcher is nil.
//
// # Outputs
//
//   - 200 with datatypes.DocumentSearchResponse.
//   - 400 for a missing q or an invalid limit.
//   - 503 when no searchable index is configured.
//   - 500 when the search fails.
func HandleDocumentSearch(searcher DocumentSearcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		if searcher == nil {
			c.JSON(http.StatusServiceUnavailable, datatypes.NewErrorResponse("Document search is not available for this retrieval backend"))
			return
		}

		query := strings.TrimSpace(c.Query("q"))
		if query == "" {
			c.JSON(http.StatusBadRequest, datatypes.NewErrorResponse("Query parameter q is required"))
			return
		}
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > maxSearchLimit {
				c.JSON(http.StatusBadRequest, datatypes.NewErrorResponse("limit must be between 1 and 50"))
				return
			}
			limit = n
		}

		hits, err := searcher.Search(c.Request.Context(), query, limit)
		if err != nil {
			slog.Error("Document search failed", "query", query, "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.NewErrorResponse("Failed to search documents"))
			return
		}
		if hits == nil {
			hits = []datatypes.DocumentHit{}
		}
		c.JSON(http.StatusOK, datatypes.DocumentSearchResponse{
			Query:   query,
			Results: hits,
			Total:   len(hits),
			Success: true,
		})
	}
}
