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

// =============================================================================
// Zalo Official Account webhook payloads
// =============================================================================

// Webhook event kinds handled by the channel adapter. Other kinds are
// acknowledged and ignored.
const (
	EventUserSendText = "user_send_text"
	EventFollow       = "follow"
)

// WebhookEvent is the subset of a Zalo OA webhook payload the service reads.
//
// # Description
//
// Zalo delivers every event kind to the same endpoint. Text messages carry
// Message.MsgID (the deduplication key) and Message.Text; follow events carry
// Follower.ID. UserIDByApp, when present, is the identity that must be used
// for replies and takes precedence over Sender.ID and Follower.ID.
type WebhookEvent struct {
	EventName   string         `json:"event_name"`
	AppID       string         `json:"app_id,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	UserIDByApp string         `json:"user_id_by_app,omitempty"`
	Sender      WebhookParty   `json:"sender"`
	Recipient   WebhookParty   `json:"recipient"`
	Follower    WebhookParty   `json:"follower"`
	Message     WebhookMessage `json:"message"`
}

type WebhookParty struct {
	ID string `json:"id"`
}

type WebhookMessage struct {
	MsgID string `json:"msg_id"`
	Text  string `json:"text"`
}

// SenderIdentity returns the stable conversation identity for a text event.
func (e *WebhookEvent) SenderIdentity() string {
	if e.UserIDByApp != "" {
		return e.UserIDByApp
	}
	return e.Sender.ID
}

// FollowerIdentity returns the identity to greet for a follow event.
func (e *WebhookEvent) FollowerIdentity() string {
	if e.UserIDByApp != "" {
		return e.UserIDByApp
	}
	return e.Follower.ID
}

// WebhookAck is the acknowledgement body returned for every accepted event.
type WebhookAck struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TestSendRequest is the body of POST /v1/channel/test-send.
type TestSendRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	Message string `json:"message"`
}

// Validate validates the request.
func (r *TestSendRequest) Validate() error {
	return chatValidate.Struct(r)
}
