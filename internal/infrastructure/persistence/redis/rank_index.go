package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/leaderboard"
	"github.com/ecolearn-hub/ecolearn-backend/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANK INDEX
// Implements leaderboard.RankIndex on a Redis sorted set. One ZADD per award
// keeps the index current; rank and top-N reads are O(log N) against the set.
//
// Tie-break: Redis orders equal scores lexicographically by member, so users
// with the same XP get a deterministic relative order.
// ══════════════════════════════════════════════════════════════════════════════

// keyRankIndex is the sorted set holding username -> XP.
const keyRankIndex = PrefixLeaderboard + "xp"

// RankIndex provides leaderboard rankings backed by a Redis sorted set.
// Writes go through a circuit breaker: when Redis is down the award pipeline
// fails the propagation fast instead of stalling on timeouts, and the
// reconciler converges the index later.
type RankIndex struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
}

// NewRankIndex creates a new RankIndex.
func NewRankIndex(cache *Cache) *RankIndex {
	return &RankIndex{
		cache:   cache,
		breaker: circuitbreaker.RankIndexBreaker(nil),
	}
}

// Upsert writes or updates the user's score in the index.
func (r *RankIndex) Upsert(ctx context.Context, username string, xp int64) error {
	if username == "" {
		return ErrCacheKeyEmpty
	}

	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.cache.Client().ZAdd(ctx, keyRankIndex, redis.Z{
			Score:  float64(xp),
			Member: username,
		}).Err()
	})
	if err != nil {
		return fmt.Errorf("rank_index: failed to upsert %s: %w", username, err)
	}

	return nil
}

// TopN returns the first n entries by descending XP. Ranks are assigned
// sequentially starting from 1.
func (r *RankIndex) TopN(ctx context.Context, n int) ([]leaderboard.Entry, error) {
	if n <= 0 {
		return []leaderboard.Entry{}, nil
	}

	members, err := r.cache.Client().ZRevRangeWithScores(ctx, keyRankIndex, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("rank_index: failed to read top %d: %w", n, err)
	}

	entries := make([]leaderboard.Entry, 0, len(members))
	for i, m := range members {
		username, ok := m.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, leaderboard.Entry{
			Username: username,
			XP:       int64(m.Score),
			Rank:     int64(i) + 1,
		})
	}

	return entries, nil
}

// RankOf returns the user's 1-based position.
func (r *RankIndex) RankOf(ctx context.Context, username string) (int64, error) {
	// ZRevRank is 0-based, highest score first.
	rank, err := r.cache.Client().ZRevRank(ctx, keyRankIndex, username).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, leaderboard.ErrNotRanked
		}
		return 0, fmt.Errorf("rank_index: failed to read rank of %s: %w", username, err)
	}

	return rank + 1, nil
}

// ScoreOf returns the user's XP as recorded in the index.
func (r *RankIndex) ScoreOf(ctx context.Context, username string) (int64, error) {
	score, err := r.cache.Client().ZScore(ctx, keyRankIndex, username).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, leaderboard.ErrNotRanked
		}
		return 0, fmt.Errorf("rank_index: failed to read score of %s: %w", username, err)
	}

	return int64(score), nil
}

// Remove deletes the user from the index.
func (r *RankIndex) Remove(ctx context.Context, username string) error {
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.cache.Client().ZRem(ctx, keyRankIndex, username).Err()
	})
	if err != nil {
		return fmt.Errorf("rank_index: failed to remove %s: %w", username, err)
	}
	return nil
}

// Size returns the number of indexed users.
func (r *RankIndex) Size(ctx context.Context) (int64, error) {
	return r.cache.Client().ZCard(ctx, keyRankIndex).Result()
}
