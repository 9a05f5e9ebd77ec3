// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the gin handlers of the docchat HTTP API.
//
// Every handler is built by a factory that receives its collaborators and
// returns a gin.HandlerFunc. Failures are answered with
// datatypes.ErrorResponse.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/middleware"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/pipeline"
	"github.com/gin-gonic/gin"
)

// Answerer runs the answer pipeline for one session.
type Answerer interface {
	Answer(ctx context.Context, sessionID, question string) (*pipeline.Result, error)
}

// AskFailedMessage is returned on terminal pipeline failure. Internal error
// detail is logged, never returned.
const AskFailedMessage = "Failed to generate an answer, please try again"

// HandleAsk answers a question for the caller's session.
//
// # Description
//
// POST /v1/ask. The session is taken from the session middleware. The
// response carries the answer and citations, plus the query analysis and
// the exemplars used when those stages ran.
//
// # Outputs
//
//   - 200 with datatypes.AskResponse.
//   - 400 when the body is malformed or the question is blank or too large.
//   - 500 with {error, success:false} on terminal pipeline failure.
func HandleAsk(answerer Answerer) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()

		var req datatypes.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.NewErrorResponse("Invalid request body"))
			return
		}
		req.Normalize()
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.NewErrorResponse("Question cannot be empty or longer than 8KB"))
			return
		}

		sessionID := middleware.GetSessionID(c)
		result, err := answerer.Answer(c.Request.Context(), sessionID, req.Question)
		if err != nil {
			if errors.Is(err, pipeline.ErrEmptyQuestion) {
				c.JSON(http.StatusBadRequest, datatypes.NewErrorResponse("Question cannot be empty"))
				return
			}
			slog.Error("Ask failed", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.NewErrorResponse(AskFailedMessage))
			return
		}

		resp := datatypes.NewAskResponse(result.Answer, result.Citations)
		if result.AnalysisRan {
			analysis := result.Analysis
			resp.QueryAnalysis = &analysis
		}
		for _, ex := range result.Exemplars {
			resp.SimilarExamples = append(resp.SimilarExamples, datatypes.SimilarExample{
				Question:   ex.Question,
				Answer:     datatypes.PreviewAnswer(ex.Answer),
				Similarity: fmt.Sprintf("%.1f%%", ex.Score*100),
			})
		}
		resp.ProcessingTimeMs = time.Since(started).Milliseconds()
		c.JSON(http.StatusOK, resp)
	}
}
