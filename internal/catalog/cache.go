package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cbegin/stemdeck-go/internal/logger"
	"github.com/cbegin/stemdeck-go/internal/song"
)

const (
	keyPrefix = "stemdeck:"
	listKey   = keyPrefix + "songs"
)

func songKey(id string) string { return keyPrefix + "song:" + id }

// CachedSource serves List and Get from Redis, falling through to src on a
// miss. Redis failures are logged and bypass the cache.
type CachedSource struct {
	src Source
	rdb *redis.Client
	ttl time.Duration
}

func NewCachedSource(src Source, rdb *redis.Client, ttl time.Duration) *CachedSource {
	return &CachedSource{src: src, rdb: rdb, ttl: ttl}
}

func (c *CachedSource) List(ctx context.Context) ([]song.Summary, error) {
	var out []song.Summary
	if c.load(ctx, listKey, &out) {
		return out, nil
	}
	out, err := c.src.List(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, listKey, out)
	return out, nil
}

func (c *CachedSource) Get(ctx context.Context, id string) (song.Song, error) {
	var s song.Song
	if c.load(ctx, songKey(id), &s) {
		return s, nil
	}
	s, err := c.src.Get(ctx, id)
	if err != nil {
		return s, err
	}
	c.store(ctx, songKey(id), s)
	return s, nil
}

// Invalidate drops the cached listing and, when ids are given, those songs.
func (c *CachedSource) Invalidate(ctx context.Context, ids ...string) error {
	keys := []string{listKey}
	for _, id := range ids {
		keys = append(keys, songKey(id))
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *CachedSource) load(ctx context.Context, key string, v any) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		logger.Warnf("catalog: cache get %s: %v", key, err)
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Warnf("catalog: cache decode %s: %v", key, err)
		return false
	}
	return true
}

func (c *CachedSource) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Warnf("catalog: cache encode %s: %v", key, err)
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warnf("catalog: cache set %s: %v", key, err)
	}
}
