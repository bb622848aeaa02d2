package cron

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/multierr"

	"github.com/angelmondragon/freshlane/pkg/logger"
	"github.com/angelmondragon/freshlane/pkg/metrics"
)

type fakeLock struct {
	held       bool
	acquireErr error
	releases   int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (c *countingJob) Name() string { return c.name }

func (c *countingJob) Run(context.Context) error {
	c.runs++
	return c.err
}

func newTestService(t *testing.T, lock Lock, reg prometheus.Registerer, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func TestRunOnceRunsEveryJobAndCombinesFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	ok := &countingJob{name: "ok"}
	bad := &countingJob{name: "bad", err: errors.New("boom")}
	after := &countingJob{name: "after"}
	lock := &fakeLock{}
	svc := newTestService(t, lock, reg, ok, bad, after)

	err := svc.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected combined error")
	}
	if n := len(multierr.Errors(err)); n != 1 {
		t.Fatalf("expected 1 failure, got %d", n)
	}
	if !errors.Is(err, bad.err) {
		t.Fatalf("failure should wrap job error: %v", err)
	}
	for _, job := range []*countingJob{ok, bad, after} {
		if job.runs != 1 {
			t.Fatalf("job %s ran %d times", job.name, job.runs)
		}
	}
	if lock.held || lock.releases != 1 {
		t.Fatalf("lock not released: held=%v releases=%d", lock.held, lock.releases)
	}
	if got := runCount(t, reg, "ok", "success"); got != 1 {
		t.Fatalf("expected ok success 1, got %v", got)
	}
	if got := runCount(t, reg, "bad", "failure"); got != 1 {
		t.Fatalf("expected bad failure 1, got %v", got)
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &countingJob{name: "job"}
	lock := &fakeLock{held: true}
	reg := prometheus.NewRegistry()
	svc := newTestService(t, lock, reg, job)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("skipped cycle should not fail: %v", err)
	}
	if job.runs != 0 {
		t.Fatal("job ran without the lock")
	}
	if lock.releases != 0 {
		t.Fatal("released a lock it never acquired")
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	skipped := 0.0
	for _, family := range families {
		if family.GetName() == "cron_cycles_skipped_total" {
			skipped = family.GetMetric()[0].GetCounter().GetValue()
		}
	}
	if skipped != 1 {
		t.Fatalf("expected one skipped cycle, got %v", skipped)
	}
}

func TestRunOnceSurfacesLockErrors(t *testing.T) {
	lock := &fakeLock{acquireErr: errors.New("redis down")}
	svc := newTestService(t, lock, nil, &countingJob{name: "job"})
	if err := svc.RunOnce(context.Background()); !errors.Is(err, lock.acquireErr) {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &countingJob{name: "job"}
	svc := newTestService(t, &fakeLock{}, nil, job)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("cancelled cycle should not start jobs, ran %d", job.runs)
	}
}

func TestNewServiceRequiresLoggerAndLock(t *testing.T) {
	if _, err := NewService(ServiceParams{Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected logger error")
	}
	if _, err := NewService(ServiceParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected lock error")
	}
}

func runCount(t *testing.T, reg *prometheus.Registry, job, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "cron_job_runs_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			if labelValue(m, "job") == job && labelValue(m, "outcome") == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelValue(m *dto.Metric, name string) string {
	for _, pair := range m.GetLabel() {
		if pair.GetName() == name {
			return pair.GetValue()
		}
	}
	return ""
}

type panickingJob struct{}

func (panickingJob) Name() string { return "explodes" }

func (panickingJob) Run(context.Context) error { panic("nil map write") }

type deadlineJob struct{ sawDeadline bool }

func (d *deadlineJob) Name() string { return "deadline" }

func (d *deadlineJob) Run(ctx context.Context) error {
	_, d.sawDeadline = ctx.Deadline()
	return nil
}

func TestRunOnceIsolatesPanickingJob(t *testing.T) {
	after := &countingJob{name: "after"}
	lock := &fakeLock{}
	svc := newTestService(t, lock, nil, panickingJob{}, after)

	err := svc.RunOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "explodes: panic: nil map write") {
		t.Fatalf("expected panic surfaced as error, got %v", err)
	}
	if after.runs != 1 {
		t.Fatalf("job after the panic should still run, ran %d", after.runs)
	}
	if lock.held {
		t.Fatal("lock should be released after a panic")
	}
}

func TestRunOnceBoundsEachJob(t *testing.T) {
	job := &deadlineJob{}
	svc := newTestService(t, &fakeLock{}, nil, job)
	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !job.sawDeadline {
		t.Fatal("job context should carry a deadline")
	}
}
