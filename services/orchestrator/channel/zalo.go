// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/observability"
	"golang.org/x/time/rate"
)

// Sender pushes text to a channel user.
type Sender interface {
	Send(ctx context.Context, userID, text string) error
}

// ZaloConfig configures a ZaloClient.
type ZaloConfig struct {
	SendURL string

	// MaxMessageLength is the per-message limit in characters. Longer
	// texts are split.
	MaxMessageLength int
	RatePerSecond    float64
	Timeout          time.Duration
}

type sendPayload struct {
	Recipient struct {
		UserID string `json:"user_id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
}

type sendResponse struct {
	Error   *int   `json:"error"`
	Message string `json:"message"`
}

// DeliveryResult is the raw outcome of one send request.
type DeliveryResult struct {
	StatusCode int
	Body       string
}

// ZaloClient sends customer-service messages through the OA API.
//
// # Thread Safety
//
// Safe for concurrent use. Sends share one rate limiter.
type ZaloClient struct {
	httpClient *http.Client
	sendURL    string
	tokens     TokenSource
	limiter    *rate.Limiter
	maxLen     int
	metrics    *observability.Metrics
}

// NewZaloClient creates a client. metrics may be nil.
func NewZaloClient(cfg ZaloConfig, tokens TokenSource, metrics *observability.Metrics) *ZaloClient {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = 2000
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	burst := int(cfg.RatePerSecond)
	if burst < 1 {
		burst = 1
	}
	return &ZaloClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		sendURL:    cfg.SendURL,
		tokens:     tokens,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
		maxLen:     cfg.MaxMessageLength,
		metrics:    metrics,
	}
}

// Send delivers text, split into as many messages as the length limit
// requires. It stops at the first failed part.
func (z *ZaloClient) Send(ctx context.Context, userID, text string) error {
	parts := splitMessage(text, z.maxLen)
	if len(parts) == 0 {
		return ErrEmptyMessage
	}
	for i, part := range parts {
		if _, err := z.Deliver(ctx, userID, part); err != nil {
			return fmt.Errorf("part %d/%d: %w", i+1, len(parts), err)
		}
	}
	if len(parts) > 1 {
		slog.Debug("Sent split message", "user_id", userID, "parts", len(parts))
	}
	return nil
}

// Deliver sends one message without splitting.
//
// # Outputs
//
//   - *DeliveryResult: Set whenever the API answered, even on error.
//   - error: ErrNoToken, a transport error, or *DeliveryError when the API
//     rejected the message.
func (z *ZaloClient) Deliver(ctx context.Context, userID, text string) (*DeliveryResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	token, err := z.tokens.Token()
	if err != nil {
		z.metrics.RecordDelivery(false)
		return nil, err
	}
	if err := z.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var payload sendPayload
	payload.Recipient.UserID = userID
	payload.Message.Text = text
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.sendURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", token)

	resp, err := z.httpClient.Do(req)
	if err != nil {
		z.metrics.RecordDelivery(false)
		return nil, fmt.Errorf("send request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		z.metrics.RecordDelivery(false)
		return nil, fmt.Errorf("failed to read send response: %w", err)
	}
	result := &DeliveryResult{StatusCode: resp.StatusCode, Body: string(respBody)}

	if resp.StatusCode != http.StatusOK {
		z.metrics.RecordDelivery(false)
		return result, &DeliveryError{UserID: userID, StatusCode: resp.StatusCode, Message: result.Body}
	}

	var parsed sendResponse
	if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Error != nil && *parsed.Error != 0 {
		z.metrics.RecordDelivery(false)
		return result, &DeliveryError{
			UserID:     userID,
			StatusCode: resp.StatusCode,
			Code:       *parsed.Error,
			Message:    parsed.Message,
		}
	}

	z.metrics.RecordDelivery(true)
	slog.Info("Delivered message", "user_id", userID, "chars", len([]rune(text)))
	return result, nil
}

// splitMessage cuts text into parts of at most limit runes, preferring a
// newline and then a space in the second half of each window.
func splitMessage(text string, limit int) []string {
	runes := []rune(strings.TrimSpace(text))
	parts := []string{}
	for len(runes) > limit {
		cut := limit
		if i := lastIndex(runes[:limit], '\n'); i >= limit/2 {
			cut = i + 1
		} else if i := lastIndex(runes[:limit], ' '); i >= limit/2 {
			cut = i + 1
		}
		if part := strings.TrimSpace(string(runes[:cut])); part != "" {
			parts = append(parts, part)
		}
		runes = runes[cut:]
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

func lastIndex(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

var _ Sender = (*ZaloClient)(nil)
