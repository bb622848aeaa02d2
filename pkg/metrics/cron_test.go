package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	end := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)

	m.ObserveRun("overdue-invoices", 250*time.Millisecond, end, nil)
	m.ObserveRun("overdue-invoices", 100*time.Millisecond, end.Add(time.Minute), errors.New("db down"))
	m.IncLockSkipped()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	success, err := findMetric(mfs, "cron_job_runs_total", map[string]string{"job": "overdue-invoices", "outcome": "success"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), success.GetCounter().GetValue())

	failure, err := findMetric(mfs, "cron_job_runs_total", map[string]string{"job": "overdue-invoices", "outcome": "failure"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), failure.GetCounter().GetValue())

	sum, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", "overdue-invoices")
	require.NoError(t, err)
	assert.InDelta(t, 0.35, sum, 1e-9)

	last, err := findMetric(mfs, "cron_job_last_success_timestamp_seconds", map[string]string{"job": "overdue-invoices"})
	require.NoError(t, err)
	assert.Equal(t, float64(end.Unix()), last.GetGauge().GetValue(), "a failed run keeps the previous success time")

	skipped := findMetricFamily(mfs, "cron_cycles_skipped_total")
	require.NotNil(t, skipped)
	assert.Equal(t, float64(1), skipped.GetMetric()[0].GetCounter().GetValue())
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveRun("job", time.Second, time.Now(), nil)
	m.IncLockSkipped()
	NewCronJobMetrics(nil).ObserveRun("", time.Second, time.Now(), errors.New("x"))
}
