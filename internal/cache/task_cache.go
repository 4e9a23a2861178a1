package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	dom "taskapi/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	keyPagePrefix = "tasks:page:"
	keyGeneration = "tasks:gen"
)

// TaskCache caches task list pages in Redis.
type TaskCache struct {
	rdb *redis.Client
	ttl time.Duration
}

type cachedPage struct {
	Items []dom.Task `json:"items"`
	Total int64      `json:"total"`
}

// NewTaskCache returns a new TaskCache.
func NewTaskCache(rdb *redis.Client, ttl time.Duration) *TaskCache {
	return &TaskCache{rdb: rdb, ttl: ttl}
}

// Generation returns the current page generation; 0 before the first write.
func (c *TaskCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, keyGeneration).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// GetPage returns the cached page for key; ok is false on a miss.
func (c *TaskCache) GetPage(ctx context.Context, key string) ([]dom.Task, int64, bool, error) {
	b, err := c.rdb.Get(ctx, keyPagePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	var p cachedPage
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, 0, false, err
	}
	if p.Items == nil {
		p.Items = []dom.Task{}
	}
	return p.Items, p.Total, true, nil
}

// SetPage stores a page under key.
func (c *TaskCache) SetPage(ctx context.Context, key string, list []dom.Task, total int64) error {
	b, err := json.Marshal(cachedPage{Items: list, Total: total})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyPagePrefix+key, b, c.ttl).Err()
}

// InvalidateAll advances the generation, then removes every cached page.
// Pages filled concurrently under the old generation only wait for their TTL.
func (c *TaskCache) InvalidateAll(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, keyGeneration).Err(); err != nil {
		return err
	}
	iter := c.rdb.Scan(ctx, 0, keyPagePrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
