// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dedup provides at-most-once guards for inbound message identifiers.
//
// # Description
//
// A Guard remembers a bounded number of processed identifiers. When full, the
// oldest identifier is evicted first. An identifier evicted from the guard,
// or older than the configured horizon, may be processed again; this is the
// accepted duplicate-resurrection window and is bounded by MaxProcessed
// distinct identifiers or Horizon, whichever is reached first.
//
// Callers that need check-then-insert must use TryMark. Seen followed by Mark
// is not atomic as a pair.
package dedup

import "context"

const (
	// DefaultMaxProcessed is the default guard capacity.
	DefaultMaxProcessed = 1000
)

// Guard is the deduplication contract.
type Guard interface {
	// Seen reports whether id was marked and is still retained.
	Seen(ctx context.Context, id string) (bool, error)

	// Mark records id, evicting the oldest entry when at capacity.
	Mark(ctx context.Context, id string) error

	// TryMark atomically marks id if it is not retained.
	//
	// # Outputs
	//
	//   - bool: True if this call inserted id (the caller owns processing);
	//     false if id was already retained (the caller must drop the event).
	//   - error: Backend failure. With false the id state is unknown; with
	//     true the id was inserted and the caller still owns processing.
	TryMark(ctx context.Context, id string) (bool, error)

	// Len returns the number of retained identifiers.
	Len(ctx context.Context) (int, error)
}
