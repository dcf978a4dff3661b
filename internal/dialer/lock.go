package dialer

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"voiceagent-platform/pkg/utils"
)

// RunLock serializes dial runs per campaign. Only one runner may work a
// campaign's queue at a time; losers simply return and let the holder's
// continuation chain carry on.
type RunLock interface {
	Acquire(ctx context.Context, campaignID string) (bool, error)
	Release(ctx context.Context, campaignID string) error
}

// RedisRunLock backs RunLock with a TTL'd Redis slot, so a crashed runner's
// lock expires instead of wedging the campaign.
type RedisRunLock struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisRunLock(rdb *redis.Client, ttl time.Duration) *RedisRunLock {
	return &RedisRunLock{rdb: rdb, ttl: ttl}
}

func lockKey(campaignID string) string { return "dialer:run:" + campaignID }

func (l *RedisRunLock) Acquire(ctx context.Context, campaignID string) (bool, error) {
	return utils.AcquireRunLock(ctx, l.rdb, lockKey(campaignID), l.ttl)
}

func (l *RedisRunLock) Release(ctx context.Context, campaignID string) error {
	return utils.ReleaseRunLock(ctx, l.rdb, lockKey(campaignID))
}
