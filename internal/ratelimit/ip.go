package ratelimit

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/gstbill/internal/config"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// SensitiveRouteLimiter limits sensitive profile routes per client IP.
type SensitiveRouteLimiter gin.HandlerFunc

func NewSensitiveRouteLimiter(cfg config.Config, client *redis.Client) (SensitiveRouteLimiter, error) {
	handler, err := NewIPLimiter(cfg.RateLimit.ProfileRequests, cfg.RateLimit.ProfilePeriod, client)
	if err != nil {
		return nil, err
	}
	return SensitiveRouteLimiter(handler), nil
}

// NewIPLimiter builds a fixed-window limiter keyed by client IP. requests per
// period, with period as a duration string ("1m", "1h"). Redis is shared
// across replicas when available; otherwise counts are per process.
func NewIPLimiter(requests int64, period string, client *redis.Client) (gin.HandlerFunc, error) {
	duration, err := time.ParseDuration(period)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit period %q: %w", period, err)
	}
	if requests <= 0 {
		return nil, ErrInvalidLimit
	}
	rate := limiter.Rate{Period: duration, Limit: requests}

	var store limiter.Store
	if client != nil {
		store, err = sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "gstbill:ip"})
		if err != nil {
			return nil, err
		}
	} else {
		store = memory.NewStore()
	}

	return mgin.NewMiddleware(limiter.New(store, rate)), nil
}
