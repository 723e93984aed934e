package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/gstbill/internal/clock"
	"github.com/smallbiznis/gstbill/internal/config"
	invoicedomain "github.com/smallbiznis/gstbill/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/gstbill/internal/observability/metrics"
	"go.uber.org/zap"
)

type stubInvoiceSvc struct {
	invoicedomain.Service
	calls int
	sweep func(ctx context.Context) (invoicedomain.SweepResult, error)
}

func (s *stubInvoiceSvc) SweepOverdue(ctx context.Context) (invoicedomain.SweepResult, error) {
	s.calls++
	return s.sweep(ctx)
}

type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	released int
}

func (f *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held {
		return "", false, nil
	}
	return "token", true, nil
}

func (f *fakeLocker) Release(ctx context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}

func newTestScheduler(t *testing.T, svc invoicedomain.Service) (*Scheduler, *prometheus.Registry) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	s, err := New(Params{
		Log:        zap.NewNop(),
		GenID:      node,
		InvoiceSvc: svc,
		Clock:      clock.NewFakeClock(time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	registry := prometheus.NewRegistry()
	s.metrics = obsmetrics.NewSweeperMetrics(registry)
	return s, registry
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Params{Log: zap.NewNop()}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRunOnceSweepsOverdueInvoices(t *testing.T) {
	svc := &stubInvoiceSvc{sweep: func(context.Context) (invoicedomain.SweepResult, error) {
		return invoicedomain.SweepResult{Affected: 3}, nil
	}}
	s, registry := newTestScheduler(t, svc)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if svc.calls != 1 {
		t.Fatalf("expected one sweep, got %d", svc.calls)
	}
	labels := map[string]string{"job": JobOverdueSweep}
	if got := getCounterValue(t, registry, "gstbill_job_runs_total", labels); got != 1 {
		t.Fatalf("expected 1 run, got %v", got)
	}
	if got := getCounterValue(t, registry, "gstbill_job_rows_affected_total", labels); got != 3 {
		t.Fatalf("expected 3 affected, got %v", got)
	}
}

func TestRunJobReturnsErrorsButSwallowsTimeouts(t *testing.T) {
	boom := errors.New("db down")
	svc := &stubInvoiceSvc{sweep: func(context.Context) (invoicedomain.SweepResult, error) {
		return invoicedomain.SweepResult{}, boom
	}}
	s, registry := newTestScheduler(t, svc)

	if err := s.RunOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}

	err := s.runJob(context.Background(), "slow_job", 5*time.Millisecond, func(ctx context.Context, run *jobRun) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected timeout to be swallowed, got %v", err)
	}
	if got := getCounterValue(t, registry, "gstbill_job_errors_total", map[string]string{"job": "slow_job"}); got != 1 {
		t.Fatalf("expected timeout counted as error, got %v", got)
	}
}

func TestRunJobSkipsWhenLockHeld(t *testing.T) {
	svc := &stubInvoiceSvc{sweep: func(context.Context) (invoicedomain.SweepResult, error) {
		return invoicedomain.SweepResult{}, nil
	}}
	s, _ := newTestScheduler(t, svc)
	locker := &fakeLocker{held: true}
	s.locker = locker

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if svc.calls != 0 {
		t.Fatalf("expected sweep to be skipped, got %d calls", svc.calls)
	}

	locker.held = false
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if svc.calls != 1 || locker.released != 1 {
		t.Fatalf("expected one locked run, calls=%d released=%d", svc.calls, locker.released)
	}
}

func TestIntervalFollowsBillingConfig(t *testing.T) {
	s, _ := newTestScheduler(t, &stubInvoiceSvc{})
	if got := s.interval(); got != DefaultConfig().RunInterval {
		t.Fatalf("expected default interval, got %v", got)
	}

	billing := config.DefaultBillingConfig()
	billing.OverdueSweepPeriod = 3 * time.Minute
	s.billing = config.NewStaticBillingConfigHolder(billing)
	if got := s.interval(); got != 3*time.Minute {
		t.Fatalf("expected 3m, got %v", got)
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
