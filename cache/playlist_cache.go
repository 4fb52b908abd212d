package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	playlistKey = "automix:playlist"
	playlistTTL = 24 * time.Hour
)

// cachedPlaylist is the stored form of a generated sequence: ordered
// track ids plus when it was produced. Tracks themselves live in the
// library; the cache only remembers the ordering.
type cachedPlaylist struct {
	TrackIDs    []string  `json:"trackIds"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// PlaylistCache remembers the most recently generated playlist so the
// client can regenerate the mix without re-running the sequencer.
type PlaylistCache struct {
	client *redis.Client
}

// NewPlaylistCache wraps the shared Redis client. Call after ConnectRedis.
func NewPlaylistCache() *PlaylistCache {
	return &PlaylistCache{client: RedisClient}
}

// SavePlaylist stores the ordered track ids with a rolling TTL.
func (c *PlaylistCache) SavePlaylist(ctx context.Context, trackIDs []string) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	data, err := json.Marshal(cachedPlaylist{
		TrackIDs:    trackIDs,
		GeneratedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal playlist: %w", err)
	}
	if err := c.client.Set(ctx, playlistKey, data, playlistTTL).Err(); err != nil {
		return fmt.Errorf("failed to save playlist: %w", err)
	}
	return nil
}

// LoadPlaylist returns the cached track ids, or (nil, nil) when nothing
// is cached.
func (c *PlaylistCache) LoadPlaylist(ctx context.Context) ([]string, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}
	data, err := c.client.Get(ctx, playlistKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist: %w", err)
	}
	var stored cachedPlaylist
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal playlist: %w", err)
	}
	return stored.TrackIDs, nil
}

// ClearPlaylist drops the cached playlist, typically alongside clearing
// the track pool.
func (c *PlaylistCache) ClearPlaylist(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	return c.client.Del(ctx, playlistKey).Err()
}
