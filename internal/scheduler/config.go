package scheduler

import (
	"time"

	"github.com/smallbiznis/gstbill/internal/config"
)

// Config controls how often background jobs run and how long each may take.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: 15 * time.Minute,
		JobTimeout:  2 * time.Minute,
	}
}

func ProvideConfig(billing *config.BillingConfigHolder) Config {
	cfg := DefaultConfig()
	if billing != nil {
		cfg.RunInterval = billing.Get().OverdueSweepPeriod
	}
	return cfg
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
