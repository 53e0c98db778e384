package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheService provides JSON caching on top of Redis for read-mostly data:
// chapter texts, per-user stats and completed-verse sets
type CacheService struct {
	redis      *RedisCache
	ttl        time.Duration
	chapterTTL time.Duration
}

// NewCacheService creates a new cache service. ttl applies to per-user
// entries; chapterTTL applies to verse texts.
func NewCacheService(redis *RedisCache, ttl, chapterTTL time.Duration) *CacheService {
	return &CacheService{
		redis:      redis,
		ttl:        ttl,
		chapterTTL: chapterTTL,
	}
}

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyChapter is for ordered verse texts of one chapter
	CacheKeyChapter CacheKeyType = "chapter"
	// CacheKeyDaily is for one user's ledger row for a date
	CacheKeyDaily CacheKeyType = "daily"
	// CacheKeyMonth is for one user's ledger rows for a month
	CacheKeyMonth CacheKeyType = "month"
	// CacheKeyCompleted is for a user's completed-verse keys
	CacheKeyCompleted CacheKeyType = "completed"
	// CacheKeyProfile maps an identity provider subject to a profile id
	CacheKeyProfile CacheKeyType = "profile"
)

// GenerateCacheKey generates a cache key for a given type and parameters
// Format: <type>:<param1>:<param2>:...
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	parts := append([]string{string(keyType)}, params...)
	return strings.Join(parts, ":")
}

// ChapterKey returns chapter:<translation>:<book>:<chapter>
func (c *CacheService) ChapterKey(translation, book string, chapter int) string {
	return c.GenerateCacheKey(CacheKeyChapter, strings.ToLower(translation), book, strconv.Itoa(chapter))
}

// DailyKey returns daily:<user>:<date>
func (c *CacheService) DailyKey(userID, date string) string {
	return c.GenerateCacheKey(CacheKeyDaily, userID, date)
}

// MonthKey returns month:<user>:<yyyy-mm>
func (c *CacheService) MonthKey(userID, yearMonth string) string {
	return c.GenerateCacheKey(CacheKeyMonth, userID, yearMonth)
}

// CompletedKey returns completed:<user>
func (c *CacheService) CompletedKey(userID string) string {
	return c.GenerateCacheKey(CacheKeyCompleted, userID)
}

// ProfileKey returns profile:<authUserID>
func (c *CacheService) ProfileKey(authUserID string) string {
	return c.GenerateCacheKey(CacheKeyProfile, authUserID)
}

// Set stores a value in cache with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetChapter stores a value with the chapter TTL
func (c *CacheService) SetChapter(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, c.chapterTTL)
}

// SetWithTTL stores a value in cache with a custom TTL
func (c *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.redis.Set(ctx, key, data, ttl)
}

// Get retrieves a value from cache and deserializes it. A miss returns
// false with a nil error.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return true, nil
}

// Invalidate removes one or more keys from cache
func (c *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}

// InvalidatePattern removes all keys matching a pattern
// Pattern examples: "month:<user>:*", "chapter:nkrv:*"
func (c *CacheService) InvalidatePattern(ctx context.Context, pattern string) error {
	keys, err := c.redis.Scan(ctx, pattern)
	if err != nil {
		return fmt.Errorf("failed to find keys matching pattern: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	return c.redis.Del(ctx, keys...)
}

// InvalidateUserProgress drops the cached stats and completed set a new
// transcription makes stale
func (c *CacheService) InvalidateUserProgress(ctx context.Context, userID, date string) error {
	keys := []string{
		c.CompletedKey(userID),
		c.DailyKey(userID, date),
		c.MonthKey(userID, date[:min(len(date), 7)]),
	}
	if err := c.Invalidate(ctx, keys...); err != nil {
		return fmt.Errorf("failed to invalidate progress cache: %w", err)
	}
	return nil
}

// InvalidateTranslation drops every cached chapter of a translation
func (c *CacheService) InvalidateTranslation(ctx context.Context, translation string) error {
	return c.InvalidatePattern(ctx, c.GenerateCacheKey(CacheKeyChapter, strings.ToLower(translation), "*"))
}

// Exists checks if a key exists in cache
func (c *CacheService) Exists(ctx context.Context, key string) (bool, error) {
	return c.redis.Exists(ctx, key)
}
