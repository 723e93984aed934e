package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gstbill/internal/clock"
	"github.com/smallbiznis/gstbill/internal/config"
	invoicedomain "github.com/smallbiznis/gstbill/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/gstbill/internal/observability/metrics"
	"github.com/smallbiznis/gstbill/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobOverdueSweep = "overdue_sweep"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// jobLocker keeps two instances from running the same job at once.
type jobLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	InvoiceSvc invoicedomain.Service
	Clock      clock.Clock
	Billing    *config.BillingConfigHolder `optional:"true"`
	Locker     *ratelimit.Locker           `optional:"true"`
	Config     Config                      `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	invoiceSvc invoicedomain.Service
	billing    *config.BillingConfigHolder
	locker     jobLocker
	metrics    *obsmetrics.SweeperMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.InvoiceSvc == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		invoiceSvc: p.InvoiceSvc,
		billing:    p.Billing,
		metrics:    obsmetrics.Sweeper(),
	}
	if p.Locker != nil {
		s.locker = p.Locker
	}
	return s, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context, run *jobRun) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	if s.locker != nil {
		key := "gstbill:job:" + name
		token, ok, err := s.locker.TryLock(ctx, key, timeout)
		if err != nil {
			s.log.Warn("job lock unavailable, running unlocked", zap.String("job", name), zap.Error(err))
		} else if !ok {
			s.log.Debug("job already running elsewhere", zap.String("job", name))
			return nil
		} else {
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
					s.log.Warn("job lock release failed", zap.String("job", name), zap.Error(err))
				}
			}()
		}
	}

	run := s.newJobRun(name)
	s.logJobStart(run)
	s.metrics.IncRun(name)

	err := fn(ctx, run)
	s.metrics.ObserveDuration(name, s.clock.Now().Sub(start))
	if err != nil {
		run.IncError()
	}
	s.logJobFinish(run)
	if err == nil {
		return nil
	}

	s.metrics.IncError(name)
	// a deadline is a soft timeout; the next tick picks up the rest
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context, *jobRun) error
	}{
		{JobOverdueSweep, s.OverdueSweepJob},
	}

	for _, job := range jobs {
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	timer := time.NewTimer(s.interval())
	defer timer.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		timer.Reset(s.interval())

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// interval follows billing.overdueSweepPeriod so a config reload takes effect
// on the next tick.
func (s *Scheduler) interval() time.Duration {
	if s.billing != nil {
		if period := s.billing.Get().OverdueSweepPeriod; period > 0 {
			return period
		}
	}
	return s.cfg.RunInterval
}

func (s *Scheduler) OverdueSweepJob(ctx context.Context, run *jobRun) error {
	result, err := s.invoiceSvc.SweepOverdue(ctx)
	run.AddProcessed(result.Affected)
	s.metrics.AddAffected(JobOverdueSweep, result.Affected)
	return err
}
