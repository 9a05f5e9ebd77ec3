// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routes registers the docchat HTTP API on a gin engine.
package routes

import (
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/conversation"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators behind the route table.
//
// # Optional Fields
//
//   - Searcher: nil when documents are indexed inside the hosted service.
//     The search route then answers 503.
//   - Webhook, Delivery: nil when the channel integration is disabled. The
//     webhook and test-send routes are then not registered. The webhook is
//     also served at /webhook, the path registered with the Official
//     Account.
//   - EnableMetrics: registers GET /metrics.
type Deps struct {
	Answerer      handlers.Answerer
	Store         conversation.Store
	Examples      handlers.ExampleCorpus
	Searcher      handlers.DocumentSearcher
	Webhook       handlers.WebhookAcceptor
	Delivery      handlers.DeliveryClient
	Health        handlers.HealthReporter
	SessionCookie string
	EnableMetrics bool
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HandleHealth(deps.Health))
	if deps.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	if deps.Webhook != nil {
		router.POST("/webhook", handlers.HandleWebhook(deps.Webhook))
	}

	// API version 1 group
	v1 := router.Group("/v1")
	{
		// Web chat routes carry the session cookie.
		chat := v1.Group("", middleware.SessionMiddleware(deps.SessionCookie))
		{
			chat.POST("/ask", handlers.HandleAsk(deps.Answerer))
			chat.GET("/history", handlers.HandleHistory(deps.Store))
			chat.POST("/clear", handlers.HandleClear(deps.Store))
		}

		v1.GET("/examples", handlers.HandleListExamples(deps.Examples))
		v1.POST("/examples/reload", handlers.HandleReloadExamples(deps.Examples))
		v1.GET("/documents/search", handlers.HandleDocumentSearch(deps.Searcher))

		if deps.Webhook != nil {
			v1.POST("/webhook", handlers.HandleWebhook(deps.Webhook))
		}
		if deps.Delivery != nil {
			v1.POST("/channel/test-send", handlers.HandleTestSend(deps.Delivery))
		}
	}
}
