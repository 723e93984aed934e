package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/gstbill/internal/config"
)

const (
	keyIntegrationUser = "integration:user:%s"
	keyIntegrationSync = "integration:sync:lock:%s"
)

// IntegrationLimiter throttles integration calls per user and holds the
// per-user accounting sync lock. A nil limiter allows everything.
type IntegrationLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	rate    float64
	burst   int
	lockTTL time.Duration
}

func NewIntegrationLimiter(cfg config.Config, client *redis.Client) (*IntegrationLimiter, error) {
	limitCfg := cfg.RateLimit
	if client == nil {
		return nil, nil
	}
	if limitCfg.IntegrationRate <= 0 || limitCfg.IntegrationBurst <= 0 {
		return nil, ErrInvalidLimit
	}
	lockTTL := time.Duration(limitCfg.SyncLockTTL) * time.Second
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}

	return &IntegrationLimiter{
		enabled: limitCfg.Enabled,
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		rate:    limitCfg.IntegrationRate,
		burst:   limitCfg.IntegrationBurst,
		lockTTL: lockTTL,
	}, nil
}

func (l *IntegrationLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *IntegrationLimiter) AllowUser(ctx context.Context, userID string) (RateLimitResult, error) {
	if !l.Enabled() {
		return RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyIntegrationUser, strings.TrimSpace(userID)), l.rate, l.burst)
}

// TryLockSync succeeds trivially when Redis is not configured. The lock does
// not depend on the rate limit being enabled.
func (l *IntegrationLimiter) TryLockSync(ctx context.Context, userID string) (string, bool, error) {
	if l == nil || l.locker == nil {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, fmt.Sprintf(keyIntegrationSync, strings.TrimSpace(userID)), l.lockTTL)
}

func (l *IntegrationLimiter) ReleaseSync(ctx context.Context, userID, token string) error {
	if l == nil || l.locker == nil {
		return nil
	}
	return l.locker.Release(ctx, fmt.Sprintf(keyIntegrationSync, strings.TrimSpace(userID)), token)
}
