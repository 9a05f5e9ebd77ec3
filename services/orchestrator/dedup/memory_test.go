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
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGuard_MarkThenSeen(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard(10, 0)

	seen, err := g.Seen(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, g.Mark(ctx, "m1"))
	seen, _ = g.Seen(ctx, "m1")
	assert.True(t, seen)
}

func TestMemoryGuard_TryMark(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard(10, 0)

	first, err := g.TryMark(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := g.TryMark(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestMemoryGuard_BoundedFIFOEviction(t *testing.T) {
	ctx := context.Background()
	const capacity = 5
	g := NewMemoryGuard(capacity, 0)

	for i := 0; i < 12; i++ {
		require.NoError(t, g.Mark(ctx, fmt.Sprintf("m%d", i)))
		n, _ := g.Len(ctx)
		assert.LessOrEqual(t, n, capacity)
	}

	// The five most recent survive, the rest were evicted oldest first.
	for i := 0; i < 12; i++ {
		seen, _ := g.Seen(ctx, fmt.Sprintf("m%d", i))
		assert.Equal(t, i >= 7, seen, "m%d", i)
	}
}

func TestMemoryGuard_RemarkDoesNotRefreshPosition(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard(2, 0)

	require.NoError(t, g.Mark(ctx, "a"))
	require.NoError(t, g.Mark(ctx, "b"))
	require.NoError(t, g.Mark(ctx, "a"))
	require.NoError(t, g.Mark(ctx, "c"))

	seenA, _ := g.Seen(ctx, "a")
	seenB, _ := g.Seen(ctx, "b")
	assert.False(t, seenA)
	assert.True(t, seenB)
}

func TestMemoryGuard_Horizon(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard(100, 200*time.Millisecond)

	require.NoError(t, g.Mark(ctx, "old"))
	time.Sleep(120 * time.Millisecond)
	require.NoError(t, g.Mark(ctx, "new"))
	time.Sleep(120 * time.Millisecond)

	seenOld, _ := g.Seen(ctx, "old")
	seenNew, _ := g.Seen(ctx, "new")
	assert.False(t, seenOld)
	assert.True(t, seenNew)

	n, _ := g.Len(ctx)
	assert.Equal(t, 1, n)

	// An expired id can be marked again.
	fresh, err := g.TryMark(ctx, "old")
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestMemoryGuard_ConcurrentTryMarkSingleWinner(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard(1000, 0)

	var winners int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := g.TryMark(ctx, "dup"); ok {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners)
}
