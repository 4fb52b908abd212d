package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"AutoMixFM/model"
)

const (
	mixStateKey = "automix:mixstate"
	mixStateTTL = 24 * time.Hour
)

// MixStateCache keeps the current mix state in Redis so status survives
// a server restart.
type MixStateCache struct {
	client *redis.Client
}

// NewMixStateCache wraps the shared Redis client. Call after ConnectRedis.
func NewMixStateCache() *MixStateCache {
	return &MixStateCache{client: RedisClient}
}

// SaveMixState stores the state as JSON with a rolling TTL.
func (c *MixStateCache) SaveMixState(ctx context.Context, state model.MixState) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal mix state: %w", err)
	}
	if err := c.client.Set(ctx, mixStateKey, data, mixStateTTL).Err(); err != nil {
		return fmt.Errorf("failed to save mix state: %w", err)
	}
	return nil
}

// LoadMixState returns the persisted state, or (nil, nil) when none is
// stored.
func (c *MixStateCache) LoadMixState(ctx context.Context) (*model.MixState, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}
	data, err := c.client.Get(ctx, mixStateKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mix state: %w", err)
	}
	var state model.MixState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mix state: %w", err)
	}
	return &state, nil
}
