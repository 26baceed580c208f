package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// redisCheckpointPrefix keys individual checkpoint records.
	redisCheckpointPrefix = "checkpoint:"

	// redisChainPrefix keys the per-thread sorted set of checkpoint ids.
	// All members share score 0 so the set sorts lexically, which matches
	// the id ordering contract.
	redisChainPrefix = "checkpoint-chain:"
)

// RedisStore is a Redis implementation of Store[S].
//
// Each checkpoint is one JSON value under "checkpoint:<thread>:<id>"; a
// per-thread sorted set of ids ("checkpoint-chain:<thread>") gives range
// scans for GetLatest and List. Lexical member ordering equals issue
// ordering because checkpoint ids are fixed-width.
//
// Designed for deployments that already run Redis and want checkpoint
// history shared across processes without a relational database.
//
// Type parameter S is the snapshot type (must be JSON-serializable).
type RedisStore[S any] struct {
	client *redis.Client
	ids    *idSource
}

// NewRedisStore creates a Redis-backed checkpoint store.
//
// Example:
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	st := store.NewRedisStore[board.State](rdb)
func NewRedisStore[S any](client *redis.Client) *RedisStore[S] {
	return &RedisStore[S]{
		client: client,
		ids:    newIDSource(),
	}
}

func checkpointKey(threadID, checkpointID string) string {
	return redisCheckpointPrefix + threadID + ":" + checkpointID
}

func chainKey(threadID string) string {
	return redisChainPrefix + threadID
}

// Put persists a new checkpoint value and records its id in the thread chain.
func (r *RedisStore[S]) Put(ctx context.Context, threadID, parentID string, state S, meta StepMetadata) (string, error) {
	if threadID == "" {
		return "", ErrIdentityRequired
	}

	cp := Checkpoint[S]{
		ThreadID:           threadID,
		CheckpointID:       r.ids.next(),
		ParentCheckpointID: parentID,
		State:              state,
		Meta:               meta,
		CreatedAt:          time.Now().UTC(),
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	// Value first, then index: a crash between the two leaves an
	// unindexed value, never a dangling index entry.
	if err := r.client.Set(ctx, checkpointKey(threadID, cp.CheckpointID), data, 0).Err(); err != nil {
		return "", fmt.Errorf("failed to put checkpoint: %w", err)
	}
	if err := r.client.ZAdd(ctx, chainKey(threadID), redis.Z{Score: 0, Member: cp.CheckpointID}).Err(); err != nil {
		return "", fmt.Errorf("failed to index checkpoint: %w", err)
	}
	return cp.CheckpointID, nil
}

// GetLatest returns the checkpoint with the greatest id for the thread.
func (r *RedisStore[S]) GetLatest(ctx context.Context, threadID string) (Checkpoint[S], error) {
	var zero Checkpoint[S]

	ids, err := r.client.ZRevRangeByLex(ctx, chainKey(threadID), &redis.ZRangeBy{
		Min: "-", Max: "+", Offset: 0, Count: 1,
	}).Result()
	if err != nil {
		return zero, fmt.Errorf("failed to read checkpoint chain: %w", err)
	}
	if len(ids) == 0 {
		return zero, ErrNotFound
	}
	return r.Get(ctx, threadID, ids[0])
}

// Get is a point lookup by (threadID, checkpointID).
func (r *RedisStore[S]) Get(ctx context.Context, threadID, checkpointID string) (Checkpoint[S], error) {
	var zero Checkpoint[S]

	data, err := r.client.Get(ctx, checkpointKey(threadID, checkpointID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	var cp Checkpoint[S]
	if err := json.Unmarshal(data, &cp); err != nil {
		return zero, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return cp, nil
}

// List returns the thread's checkpoints ordered newest-first.
func (r *RedisStore[S]) List(ctx context.Context, threadID string) ([]Checkpoint[S], error) {
	ids, err := r.client.ZRevRangeByLex(ctx, chainKey(threadID), &redis.ZRangeBy{
		Min: "-", Max: "+",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint chain: %w", err)
	}

	out := make([]Checkpoint[S], 0, len(ids))
	for _, id := range ids {
		cp, err := r.Get(ctx, threadID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// Clear deletes a thread's checkpoints and chain, or every checkpoint key
// when threadID is empty.
func (r *RedisStore[S]) Clear(ctx context.Context, threadID string) error {
	if threadID != "" {
		ids, err := r.client.ZRange(ctx, chainKey(threadID), 0, -1).Result()
		if err != nil {
			return fmt.Errorf("failed to read checkpoint chain: %w", err)
		}
		keys := make([]string, 0, len(ids)+1)
		for _, id := range ids {
			keys = append(keys, checkpointKey(threadID, id))
		}
		keys = append(keys, chainKey(threadID))
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to clear thread checkpoints: %w", err)
		}
		return nil
	}

	for _, pattern := range []string{redisCheckpointPrefix + "*", redisChainPrefix + "*"} {
		keys, err := r.client.Keys(ctx, pattern).Result()
		if err != nil {
			return fmt.Errorf("failed to enumerate checkpoint keys: %w", err)
		}
		if len(keys) == 0 {
			continue
		}
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to clear checkpoints: %w", err)
		}
	}
	return nil
}

// Ping verifies the Redis connection is alive.
func (r *RedisStore[S]) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
