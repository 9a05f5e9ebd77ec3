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
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/conversation"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/middleware"
	"github.com/gin-gonic/gin"
)

// HistoryClearedMessage acknowledges POST /v1/clear.
const HistoryClearedMessage = "History cleared"

// HandleHistory returns the caller's stored turns, oldest first. An unknown
// session is created empty.
func HandleHistory(store conversation.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := middleware.GetSessionID(c)
		c.JSON(http.StatusOK, datatypes.HistoryResponse{
			SessionID: sessionID,
			History:   store.GetOrCreate(sessionID),
			Success:   true,
		})
	}
}

// HandleClear empties the caller's history. Clearing an unknown session is
// not an error.
func HandleClear(store conversation.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := middleware.GetSessionID(c)
		store.Clear(sessionID)
		slog.Info("Cleared session history", "session_id", sessionID)
		c.JSON(http.StatusOK, datatypes.ClearResponse{Message: HistoryClearedMessage, Success: true})
	}
}
