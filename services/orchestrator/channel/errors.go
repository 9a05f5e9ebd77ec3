// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package channel connects the answer pipeline to a Zalo Official Account.
//
// # Description
//
// Inbound webhooks are accepted by Adapter.Accept, which resolves the
// sender, drops duplicates through a dedup.Guard and hands the question to a
// Dispatcher. Adapter.Process runs the pipeline and pushes the answer back
// through a Sender. Delivery failures are logged and never retried.
package channel

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSender is returned for a text event without a sender identity.
	ErrMissingSender = errors.New("user ID not found")

	// ErrNoToken is returned when no OA access token is available.
	ErrNoToken = errors.New("no OA access token available")

	// ErrEmptyMessage is returned when asked to send blank text.
	ErrEmptyMessage = errors.New("message text is empty")
)

// DeliveryError is returned when the send API rejects a message.
type DeliveryError struct {
	UserID     string
	StatusCode int

	// Code is the API error code from the response body, 0 when the
	// failure was an HTTP status.
	Code    int
	Message string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed (status %d, code %d): %s", e.UserID, e.StatusCode, e.Code, e.Message)
}
