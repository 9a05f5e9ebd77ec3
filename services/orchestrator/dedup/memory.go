// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dedup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryGuard is an in-process FIFO Guard backed by an expirable LRU.
//
// # Description
//
// Identifiers are never read with Get, only with Peek, so the LRU recency
// order is the insertion order and capacity eviction drops the oldest mark.
// With a non-zero horizon, entries expire that long after they were marked.
//
// # Thread Safety
//
// Safe for concurrent use. The cache locks each call; mu additionally
// serializes TryMark so its check and insert are one step.
type MemoryGuard struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, time.Time]
}

// NewMemoryGuard creates a guard holding at most capacity identifiers.
// A zero horizon disables age-based expiry.
func NewMemoryGuard(capacity int, horizon time.Duration) *MemoryGuard {
	if capacity <= 0 {
		capacity = DefaultMaxProcessed
	}
	onEvict := func(id string, marked time.Time) {
		slog.Debug("Evicted processed message id", "msg_id", id, "marked", marked)
	}
	return &MemoryGuard{cache: expirable.NewLRU[string, time.Time](capacity, onEvict, horizon)}
}

func (g *MemoryGuard) Seen(_ context.Context, id string) (bool, error) {
	_, ok := g.cache.Peek(id)
	return ok, nil
}

func (g *MemoryGuard) Mark(ctx context.Context, id string) error {
	_, err := g.TryMark(ctx, id)
	return err
}

func (g *MemoryGuard) TryMark(_ context.Context, id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.cache.Peek(id); ok {
		return false, nil
	}
	g.cache.Add(id, time.Now())
	return true, nil
}

// Len counts retained identifiers, excluding expired entries not yet swept.
func (g *MemoryGuard) Len(_ context.Context) (int, error) {
	return len(g.cache.Keys()), nil
}

var _ Guard = (*MemoryGuard)(nil)
