package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"loan-schedule-engine/internal/domain/loan"
	"loan-schedule-engine/internal/pkg/apperrors"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "schedule:"

type redisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ redisCmdable = (*redis.Client)(nil)

var _ loan.ScheduleCache = (*RedisScheduleCache)(nil)

// RedisScheduleCache keeps the JSON form of the latest schedule snapshot per
// loan. Entries expire after ttl; a zero ttl keeps them until invalidated.
type RedisScheduleCache struct {
	client redisCmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisScheduleCache(client redisCmdable, ttl time.Duration, logger *slog.Logger) *RedisScheduleCache {
	return &RedisScheduleCache{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "RedisScheduleCache"),
	}
}

func scheduleKey(loanID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, loanID)
}

func (c *RedisScheduleCache) Get(ctx context.Context, loanID int64) (*loan.ScheduleSnapshot, error) {
	raw, err := c.client.Get(ctx, scheduleKey(loanID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("reading cached schedule for loan %d: %w", loanID, err)
	}

	var snapshot loan.ScheduleSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		c.logger.WarnContext(ctx, "Discarding unreadable cached schedule", "loan_id", loanID, "error", err)
		return nil, apperrors.ErrCacheMiss
	}
	return &snapshot, nil
}

func (c *RedisScheduleCache) Set(ctx context.Context, snapshot *loan.ScheduleSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding schedule for loan %d: %w", snapshot.LoanID, err)
	}
	if err := c.client.Set(ctx, scheduleKey(snapshot.LoanID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("caching schedule for loan %d: %w", snapshot.LoanID, err)
	}
	c.logger.DebugContext(ctx, "Schedule cached", "loan_id", snapshot.LoanID, "ttl", c.ttl)
	return nil
}

func (c *RedisScheduleCache) Invalidate(ctx context.Context, loanID int64) error {
	if err := c.client.Del(ctx, scheduleKey(loanID)).Err(); err != nil {
		return fmt.Errorf("invalidating cached schedule for loan %d: %w", loanID, err)
	}
	return nil
}
