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
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status            string `json:"status"`
	LLMBackend        string `json:"llm_backend"`
	GeminiInitialized bool   `json:"gemini_initialized"`
	RetrievalBackend  string `json:"retrieval_backend"`
	FileSearchStore   bool   `json:"file_search_store"`
	ExamplesLoaded    int    `json:"examples_loaded"`
	ChannelEnabled    bool   `json:"channel_enabled"`
	TokensFileExists  bool   `json:"tokens_file_exists"`
	SessionCount      int    `json:"session_count"`

	Stages StageStatus `json:"stages"`
}

// StageStatus reports which optional pipeline stages are enabled.
type StageStatus struct {
	Analysis     bool `json:"analysis"`
	Exemplars    bool `json:"exemplars"`
	Validation   bool `json:"validation"`
	RefineBudget int  `json:"refine_budget"`
}

// HealthReporter builds a fresh HealthStatus for each health request.
type HealthReporter func() HealthStatus

// HandleHealth reports liveness and the wiring of the service. It always
// answers 200 while the process serves requests.
func HandleHealth(report HealthReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := report()
		if status.Status == "" {
			status.Status = "healthy"
		}
		c.JSON(http.StatusOK, status)
	}
}
