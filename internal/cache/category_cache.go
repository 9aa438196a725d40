package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/quickdesk/internal/domain"
)

const (
	categoriesKeyPrefix = "categories:all:"
	generationKey       = "categories:generation"
)

// CategoryCache stores the full category list under a generation number.
// Invalidate advances the generation, so a list read from the database
// before a write and stored afterwards lands under a generation nobody reads.
type CategoryCache interface {
	Get(ctx context.Context) (categories []domain.Category, generation int64, hit bool, err error)
	Set(ctx context.Context, generation int64, categories []domain.Category) error
	Invalidate(ctx context.Context) error
}

type redisCategoryCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisCategoryCache returns a Redis backed category cache.
func NewRedisCategoryCache(client redis.Cmdable, ttl time.Duration) CategoryCache {
	return &redisCategoryCache{client: client, ttl: ttl}
}

type cachedCategory struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func categoriesKey(generation int64) string {
	return categoriesKeyPrefix + strconv.FormatInt(generation, 10)
}

// Get reports a miss as (nil, generation, false, nil). The generation is
// what a following Set must be given.
func (c *redisCategoryCache) Get(ctx context.Context) ([]domain.Category, int64, bool, error) {
	generation, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, err
	}

	raw, err := c.client.Get(ctx, categoriesKey(generation)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, generation, false, nil
	}
	if err != nil {
		return nil, generation, false, err
	}

	var cached []cachedCategory
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, generation, false, fmt.Errorf("decode cached categories: %w", err)
	}
	categories := make([]domain.Category, len(cached))
	for i, item := range cached {
		categories[i] = domain.Category{ID: item.ID, Name: item.Name, CreatedAt: item.CreatedAt}
	}
	return categories, generation, true, nil
}

func (c *redisCategoryCache) Set(ctx context.Context, generation int64, categories []domain.Category) error {
	cached := make([]cachedCategory, len(categories))
	for i, category := range categories {
		cached[i] = cachedCategory{ID: category.ID, Name: category.Name, CreatedAt: category.CreatedAt}
	}
	raw, err := json.Marshal(cached)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, categoriesKey(generation), string(raw), c.ttl).Err()
}

// Invalidate advances the generation and drops the list stored under the
// previous one.
func (c *redisCategoryCache) Invalidate(ctx context.Context) error {
	generation, err := c.client.Incr(ctx, generationKey).Result()
	if err != nil {
		return err
	}
	return c.client.Del(ctx, categoriesKey(generation-1)).Err()
}
