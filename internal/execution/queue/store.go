package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"weatherbench/internal/analytics"
)

// FragmentStore durably records per-unit fragments. Put is keyed by
// (run, unit): writing the same unit twice overwrites, which is what makes
// the aggregation idempotent under redelivery.
type FragmentStore interface {
	Put(ctx context.Context, runID, unitID string, frags analytics.Fragments) error
	Count(ctx context.Context, runID string) (int, error)
	List(ctx context.Context, runID string) ([]analytics.Fragments, error)
	Delete(ctx context.Context, runID string) error
}

// RedisStore keeps each run's fragments in one hash, field per unit.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a connected client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func runKey(runID string) string { return "weatherbench:run:" + runID + ":fragments" }

// Put implements FragmentStore.
func (s *RedisStore) Put(ctx context.Context, runID, unitID string, frags analytics.Fragments) error {
	body, err := json.Marshal(frags)
	if err != nil {
		return fmt.Errorf("queue: encode fragments: %w", err)
	}
	return s.client.HSet(ctx, runKey(runID), unitID, body).Err()
}

// Count implements FragmentStore.
func (s *RedisStore) Count(ctx context.Context, runID string) (int, error) {
	n, err := s.client.HLen(ctx, runKey(runID)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// List implements FragmentStore.
func (s *RedisStore) List(ctx context.Context, runID string) ([]analytics.Fragments, error) {
	values, err := s.client.HVals(ctx, runKey(runID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]analytics.Fragments, 0, len(values))
	for _, v := range values {
		var frags analytics.Fragments
		if err := json.Unmarshal([]byte(v), &frags); err != nil {
			return nil, fmt.Errorf("queue: decode fragments: %w", err)
		}
		out = append(out, frags)
	}
	return out, nil
}

// Delete implements FragmentStore.
func (s *RedisStore) Delete(ctx context.Context, runID string) error {
	return s.client.Del(ctx, runKey(runID)).Err()
}
