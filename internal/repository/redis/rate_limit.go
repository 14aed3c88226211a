package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/port"
)

// SlidingWindowConfig defines configuration for the sliding window limiter.
type SlidingWindowConfig struct {
	KeyPrefix string
	TTL       time.Duration
}

// RateLimitRepository keeps one sorted set per throttled identifier, scored
// by attempt time. The login and refresh endpoints feed it identifiers
// shaped as "<rule>:<client-ip>"; the shape is opaque here.
//
// Members carry a random suffix so two attempts landing in the same
// nanosecond are both counted.
type RateLimitRepository struct {
	client *redis.Client
	cfg    SlidingWindowConfig
}

// NewRateLimitRepository constructs a repository using the provided Redis client and config.
func NewRateLimitRepository(client *redis.Client, cfg SlidingWindowConfig) *RateLimitRepository {
	return &RateLimitRepository{client: client, cfg: cfg}
}

// RecordAttempt stores one attempt at the given instant. The set expiry is
// refreshed in the same round trip so idle identifiers age out of Redis on
// their own.
func (r *RateLimitRepository) RecordAttempt(ctx context.Context, identifier string, at time.Time) error {
	key := r.key(identifier)
	member := fmt.Sprintf("%d:%s", at.UnixNano(), uuid.NewString())

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixNano()), Member: member})
	if r.cfg.TTL > 0 {
		pipe.Expire(ctx, key, r.cfg.TTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record attempt for %s: %w", identifier, err)
	}

	return nil
}

// CountAttempts returns how many attempts fall inside the window ending at
// the reference instant.
func (r *RateLimitRepository) CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	count, err := r.client.ZCount(ctx, r.key(identifier),
		score(reference.Add(-window)),
		score(reference),
	).Result()
	if err != nil {
		return 0, fmt.Errorf("count attempts for %s: %w", identifier, err)
	}

	return int(count), nil
}

// TrimWindow drops attempts that slid out of the window. The middleware
// calls it before every count so blocked identifiers do not accumulate
// stale members.
func (r *RateLimitRepository) TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error {
	if window <= 0 {
		return errors.New("window must be positive")
	}

	cutoff := "(" + score(reference.Add(-window))
	if err := r.client.ZRemRangeByScore(ctx, r.key(identifier), "-inf", cutoff).Err(); err != nil {
		return fmt.Errorf("trim window for %s: %w", identifier, err)
	}

	return nil
}

// OldestAttempt returns the earliest attempt still inside the window. The
// Retry-After hint on throttled responses is derived from it.
func (r *RateLimitRepository) OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if window <= 0 {
		return time.Time{}, false, errors.New("window must be positive")
	}

	members, err := r.client.ZRangeByScore(ctx, r.key(identifier), &redis.ZRangeBy{
		Min:   score(reference.Add(-window)),
		Max:   score(reference),
		Count: 1,
	}).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("oldest attempt for %s: %w", identifier, err)
	}
	if len(members) == 0 {
		return time.Time{}, false, nil
	}

	// The exact instant is the member's nanosecond prefix; the score is
	// a float64 and loses precision at nanosecond scale.
	nanos, _, _ := strings.Cut(members[0], ":")
	ts, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse attempt member %q: %w", members[0], err)
	}

	return time.Unix(0, ts), true, nil
}

func score(at time.Time) string {
	return strconv.FormatFloat(float64(at.UnixNano()), 'f', -1, 64)
}

func (r *RateLimitRepository) key(identifier string) string {
	if r.cfg.KeyPrefix == "" {
		return identifier
	}
	return r.cfg.KeyPrefix + ":" + identifier
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
