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
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the sorted set holding processed identifiers.
const DefaultRedisKey = "docchat:processed_messages"

// zsetCommander is the subset of redis.Cmdable used by RedisGuard.
type zsetCommander interface {
	ZAddNX(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZScore(ctx context.Context, key, member string) *redis.FloatCmd
	ZCard(ctx context.Context, key string) *redis.IntCmd
	ZRemRangeByRank(ctx context.Context, key string, start, stop int64) *redis.IntCmd
	ZRemRangeByScore(ctx context.Context, key, min, max string) *redis.IntCmd
}

// RedisGuard is a Guard shared by every replica through one Redis sorted set.
//
// # Description
//
// Members are message identifiers scored by their mark time in microseconds.
// ZADD NX makes TryMark atomic across replicas. After each insert the set is
// trimmed to the capacity by rank, so eviction is oldest first as with
// MemoryGuard.
//
// # Limitations
//
//   - Trimming happens after the insert, so the set may briefly hold
//     capacity+1 members while concurrent writers race.
type RedisGuard struct {
	client   zsetCommander
	key      string
	capacity int
	horizon  time.Duration
	now      func() time.Time
}

// NewRedisGuard creates a guard over client. A zero horizon disables
// age-based expiry.
func NewRedisGuard(client redis.Cmdable, key string, capacity int, horizon time.Duration) *RedisGuard {
	return newRedisGuard(client, key, capacity, horizon)
}

func newRedisGuard(client zsetCommander, key string, capacity int, horizon time.Duration) *RedisGuard {
	if key == "" {
		key = DefaultRedisKey
	}
	if capacity <= 0 {
		capacity = DefaultMaxProcessed
	}
	return &RedisGuard{client: client, key: key, capacity: capacity, horizon: horizon, now: time.Now}
}

func (g *RedisGuard) Seen(ctx context.Context, id string) (bool, error) {
	if err := g.expire(ctx); err != nil {
		return false, err
	}
	err := g.client.ZScore(ctx, g.key, id).Err()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("redis zscore failed: %w", err)
	}
	return true, nil
}

func (g *RedisGuard) Mark(ctx context.Context, id string) error {
	_, err := g.TryMark(ctx, id)
	return err
}

func (g *RedisGuard) TryMark(ctx context.Context, id string) (bool, error) {
	if err := g.expire(ctx); err != nil {
		return false, err
	}
	added, err := g.client.ZAddNX(ctx, g.key, redis.Z{
		Score:  float64(g.now().UnixMicro()),
		Member: id,
	}).Result()
	if err != nil {
		return false, fmt.Errorf("redis zadd failed: %w", err)
	}
	if added == 0 {
		return false, nil
	}
	// Keep the newest capacity members.
	// A failed trim leaves extra members until the next insert; the id is
	// marked either way.
	if err := g.client.ZRemRangeByRank(ctx, g.key, 0, int64(-g.capacity-1)).Err(); err != nil {
		slog.Warn("Redis dedup trim failed", "key", g.key, "error", err)
	}
	return true, nil
}

func (g *RedisGuard) Len(ctx context.Context) (int, error) {
	if err := g.expire(ctx); err != nil {
		return 0, err
	}
	n, err := g.client.ZCard(ctx, g.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcard failed: %w", err)
	}
	return int(n), nil
}

func (g *RedisGuard) expire(ctx context.Context) error {
	if g.horizon <= 0 {
		return nil
	}
	cutoff := g.now().Add(-g.horizon).UnixMicro()
	if err := g.client.ZRemRangeByScore(ctx, g.key, "-inf", "("+strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return fmt.Errorf("redis expire failed: %w", err)
	}
	return nil
}

var _ Guard = (*RedisGuard)(nil)
