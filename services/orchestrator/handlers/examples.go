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
	"fmt"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/exemplars"
	"github.com/gin-gonic/gin"
)

// maxListedExamples caps GET /v1/examples.
const maxListedExamples = 20

// ExampleCorpus is the exemplar store behind the examples endpoints.
type ExampleCorpus interface {
	All() []exemplars.Exemplar
	Reload() (int, error)
}

// HandleListExamples returns the first 20 exemplars and the corpus size.
func HandleListExamples(corpus ExampleCorpus) gin.HandlerFunc {
	return func(c *gin.Context) {
		all := corpus.All()
		listed := all
		if len(listed) > maxListedExamples {
			listed = listed[:maxListedExamples]
		}
		c.JSON(http.StatusOK, gin.H{
			"examples": listed,
			"total":    len(all),
			"success":  true,
		})
	}
}

// HandleReloadExamples re-reads the corpus file. On failure the previous
// corpus stays active.
func HandleReloadExamples(corpus ExampleCorpus) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := corpus.Reload()
		if err != nil {
			slog.Error("Exemplar reload failed", "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.NewErrorResponse(err.Error()))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": fmt.Sprintf("Reloaded %d examples", n),
			"success": true,
		})
	}
}
