package ratelimit

import (
	integrationdomain "github.com/smallbiznis/gstbill/internal/integration/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewLocker),
	fx.Provide(NewIntegrationLimiter),
	fx.Provide(NewSensitiveRouteLimiter),
	fx.Provide(func(l *IntegrationLimiter) integrationdomain.SyncLocker { return l }),
)
