// Package ratelimit provides the Redis-backed daily credit cap shared by
// every server instance.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default cap configuration values.
const (
	DefaultDailyLimit = 300
	DefaultKeyTTL     = 48 * time.Hour // a local date spans at most ~50h of UTC
	KeyPrefixDaily    = "credits:daily:"
)

// reserveScript seeds the counter from the ledger when absent, then adds
// the amount only if the new total stays within the limit.
// Returns {allowed, total}.
var reserveScript = redis.NewScript(`
	local key = KEYS[1]
	local amount = tonumber(ARGV[1])
	local limit = tonumber(ARGV[2])
	local ttl = tonumber(ARGV[3])
	local seed = tonumber(ARGV[4])

	redis.call('SET', key, seed, 'NX', 'EX', ttl)
	local current = tonumber(redis.call('GET', key) or '0')

	if current + amount > limit then
		return {0, current}
	end

	local total = redis.call('INCRBY', key, amount)
	redis.call('EXPIRE', key, ttl)
	return {1, total}
`)

// releaseScript undoes a reservation without going below zero
var releaseScript = redis.NewScript(`
	local key = KEYS[1]
	local amount = tonumber(ARGV[1])

	local current = tonumber(redis.call('GET', key) or '0')
	local remaining = current - amount
	if remaining < 0 then
		remaining = 0
	end
	if redis.call('EXISTS', key) == 1 then
		redis.call('SET', key, remaining, 'KEEPTTL')
	end
	return remaining
`)

// reconcileScript raises the counter to the ledger total, never lowering it
var reconcileScript = redis.NewScript(`
	local key = KEYS[1]
	local total = tonumber(ARGV[1])
	local ttl = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '-1')
	if total > current then
		redis.call('SET', key, total, 'EX', ttl)
		return total
	end
	return current
`)

// DailyCapConfig holds configuration for the tracker.
type DailyCapConfig struct {
	// Redis is the client shared by all instances. Required.
	Redis redis.Cmdable

	// Limit is the per-user, per-local-date credit cap. Default: 300.
	Limit int

	// KeyTTL bounds how long a day's counter lives. Default: 48h.
	KeyTTL time.Duration
}

// Validate checks if the configuration is valid.
func (c *DailyCapConfig) Validate() error {
	if c.Redis == nil {
		return errors.New("redis client is required")
	}
	if c.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if c.KeyTTL < 0 {
		return errors.New("key ttl cannot be negative")
	}
	return nil
}

// Reservation is the outcome of a Reserve call
type Reservation struct {
	Allowed bool
	Total   int // Counter after the reservation, or the current value when denied
	Limit   int
}

// DailyCapTracker enforces the daily cap with an atomic check-and-increment
// so concurrent sessions of one user cannot overshoot it
type DailyCapTracker struct {
	redis  redis.Cmdable
	limit  int
	keyTTL time.Duration
}

// NewDailyCapTracker creates a tracker with the given configuration.
func NewDailyCapTracker(cfg *DailyCapConfig) (*DailyCapTracker, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	limit := cfg.Limit
	if limit == 0 {
		limit = DefaultDailyLimit
	}
	keyTTL := cfg.KeyTTL
	if keyTTL == 0 {
		keyTTL = DefaultKeyTTL
	}

	return &DailyCapTracker{
		redis:  cfg.Redis,
		limit:  limit,
		keyTTL: keyTTL,
	}, nil
}

// Limit returns the configured cap
func (t *DailyCapTracker) Limit() int {
	return t.limit
}

// Key returns the counter key for a user and local date
func (t *DailyCapTracker) Key(userID, date string) string {
	return KeyPrefixDaily + userID + ":" + date
}

func (t *DailyCapTracker) ttlSeconds() int {
	if s := int(t.keyTTL.Seconds()); s > 0 {
		return s
	}
	return 1
}

// Reserve atomically adds amount to the day's counter if the total stays
// within the limit. seed is the ledger total, used only when the counter
// does not exist yet.
func (t *DailyCapTracker) Reserve(ctx context.Context, userID, date string, amount, seed int) (Reservation, error) {
	res := Reservation{Limit: t.limit}
	if amount <= 0 {
		res.Allowed = true
		res.Total = seed
		return res, nil
	}

	out, err := reserveScript.Run(ctx, t.redis, []string{t.Key(userID, date)},
		amount, t.limit, t.ttlSeconds(), seed).Int64Slice()
	if err != nil {
		return res, fmt.Errorf("failed to reserve daily credits: %w", err)
	}

	res.Allowed = out[0] == 1
	res.Total = int(out[1])
	return res, nil
}

// Release returns a reservation whose ledger write failed
func (t *DailyCapTracker) Release(ctx context.Context, userID, date string, amount int) error {
	if amount <= 0 {
		return nil
	}
	if err := releaseScript.Run(ctx, t.redis, []string{t.Key(userID, date)}, amount).Err(); err != nil {
		return fmt.Errorf("failed to release daily credits: %w", err)
	}
	return nil
}

// Reconcile raises the counter to the authoritative ledger total, which
// also accounts for uncapped awards
func (t *DailyCapTracker) Reconcile(ctx context.Context, userID, date string, ledgerTotal int) error {
	if err := reconcileScript.Run(ctx, t.redis, []string{t.Key(userID, date)},
		ledgerTotal, t.ttlSeconds()).Err(); err != nil {
		return fmt.Errorf("failed to reconcile daily credits: %w", err)
	}
	return nil
}

// Current returns the counter value. ok is false when no counter exists.
func (t *DailyCapTracker) Current(ctx context.Context, userID, date string) (total int, ok bool, err error) {
	total, err = t.redis.Get(ctx, t.Key(userID, date)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read daily credits: %w", err)
	}
	return total, true, nil
}
