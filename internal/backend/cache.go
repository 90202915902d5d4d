package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gokatarajesh/ielts-practice/internal/exam"
)

const defaultCacheTTL = 10 * time.Minute

// RedisCache caches exam structures so concurrent sessions for the same exam
// do not refetch every section.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ StructureCache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) key(examID int64) string {
	return fmt.Sprintf("exam:structure:%d", examID)
}

func (c *RedisCache) Get(ctx context.Context, examID int64) ([]exam.Section, error) {
	data, err := c.client.Get(ctx, c.key(examID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	sections := []exam.Section{}
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("unmarshal structure: %w", err)
	}
	return sections, nil
}

func (c *RedisCache) Set(ctx context.Context, examID int64, sections []exam.Section) error {
	data, err := json.Marshal(sections)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(examID), data, c.ttl).Err()
}

