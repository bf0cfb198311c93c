package jobguard

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Collector(t *testing.T) {
	source := healthyState()
	registry := newTestRegistry(source)

	job := NewJob(registry, `test.execute`, boolBody(true), &Config{
		Conditions: []Condition{ConditionHealthy},
		Limit:      LimitSingle,
	})

	_, err := job.Run(context.Background())
	require.NoError(t, err)

	source.set(func(s *Snapshot) { s.UnhealthyReasons = []string{`docker`} })
	_, err = job.Run(context.Background())
	require.NoError(t, err)

	collector := registry.Collector()

	const expected = `
# HELP jobguard_job_active_count In-flight invocations, awaiting or holding the job lock.
# TYPE jobguard_job_active_count gauge
jobguard_job_active_count{job="test.execute"} 0
# HELP jobguard_job_admissions_total Invocations whose body ran.
# TYPE jobguard_job_admissions_total counter
jobguard_job_admissions_total{job="test.execute"} 1
# HELP jobguard_job_rejections_total Invocations rejected by a gate.
# TYPE jobguard_job_rejections_total counter
jobguard_job_rejections_total{job="test.execute",reason="busy"} 0
jobguard_job_rejections_total{job="test.execute",reason="condition"} 1
jobguard_job_rejections_total{job="test.execute",reason="rate_limit"} 0
# HELP jobguard_job_throttled_total Invocations quietly skipped by the throttle modes.
# TYPE jobguard_job_throttled_total counter
jobguard_job_throttled_total{job="test.execute"} 0
`
	require.NoError(t, testutil.CollectAndCompare(collector, strings.NewReader(expected),
		`jobguard_job_active_count`,
		`jobguard_job_admissions_total`,
		`jobguard_job_rejections_total`,
		`jobguard_job_throttled_total`,
	))

	// the last-run timestamp only appears once a body has run
	require.Equal(t, 1, testutil.CollectAndCount(collector, `jobguard_job_last_run_timestamp_seconds`))
}

func TestRegistry_Collector_noLastRunBeforeFirstAdmission(t *testing.T) {
	registry := newTestRegistry(nil)
	registry.record(`test.idle`)

	collector := registry.Collector()
	require.Equal(t, 0, testutil.CollectAndCount(collector, `jobguard_job_last_run_timestamp_seconds`))
	require.Equal(t, 1, testutil.CollectAndCount(collector, `jobguard_job_active_count`))
}
