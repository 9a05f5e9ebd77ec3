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
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/channel"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/datatypes"
	"github.com/gin-gonic/gin"
)

// DefaultTestMessage is sent by test-send when no message is given.
const DefaultTestMessage = "Test message from DocChat"

// WebhookAcceptor accepts inbound channel events.
type WebhookAcceptor interface {
	Accept(ctx context.Context, event *datatypes.WebhookEvent) (channel.AcceptResult, error)
}

// DeliveryClient pushes one message to a channel user.
type DeliveryClient interface {
	Deliver(ctx context.Context, userID, text string) (*channel.DeliveryResult, error)
}

// HandleWebhook receives Zalo OA events.
//
// # Description
//
// POST /v1/webhook. The event is acknowledged as soon as the adapter has
// deduplicated and dispatched it; the answer is delivered asynchronously.
//
// # Outputs
//
//   - 200 with datatypes.WebhookAck for accepted, duplicate, empty and
//     unhandled events.
//   - 400 for a malformed body or a text event without a sender.
//   - 500 when the dedup guard or the dispatcher fails, so the platform
//     retries delivery of the event.
func HandleWebhook(acceptor WebhookAcceptor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var event datatypes.WebhookEvent
		if err := c.ShouldBindJSON(&event); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.NewErrorResponse("Invalid webhook payload"))
			return
		}

		result, err := acceptor.Accept(c.Request.Context(), &event)
		if err != nil {
			if errors.Is(err, channel.ErrMissingSender) {
				c.JSON(http.StatusBadRequest, datatypes.NewErrorResponse("User ID not found"))
				return
			}
			slog.Error("Webhook processing failed", "event_name", event.EventName, "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.NewErrorResponse("Failed to accept event"))
			return
		}
		c.JSON(http.StatusOK, datatypes.WebhookAck{Status: "success", Message: result.Message})
	}
}

// HandleTestSend pushes a message to a user through the delivery client.
//
// # Description
//
// POST /v1/channel/test-send. Reports the raw status and body of the send
// API. A rejected send is reported with success false rather than an HTTP
// error, so operators can read the platform's error code.
func HandleTestSend(client DeliveryClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.TestSendRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Validate() != nil {
			c.JSON(http.StatusBadRequest, datatypes.NewErrorResponse("user_id is required"))
			return
		}
		message := strings.TrimSpace(req.Message)
		if message == "" {
			message = DefaultTestMessage
		}

		result, err := client.Deliver(c.Request.Context(), req.UserID, message)
		if result == nil {
			slog.Error("Test send failed", "user_id", req.UserID, "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.NewErrorResponse(err.Error()))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status_code": result.StatusCode,
			"response":    result.Body,
			"success":     err == nil && result.StatusCode == http.StatusOK,
		})
	}
}
