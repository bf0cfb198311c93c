package jobguard

import (
	"github.com/prometheus/client_golang/prometheus"
)

// registryCollector exposes registry diagnostics as Prometheus metrics.
type registryCollector struct {
	registry   *Registry
	active     *prometheus.Desc
	lastRun    *prometheus.Desc
	admissions *prometheus.Desc
	throttled  *prometheus.Desc
	rejections *prometheus.Desc
}

// Collector returns a prometheus.Collector over the registry, suitable for
// registration with the host daemon's metrics registry. Metrics are
// computed from [Registry.Snapshot] at scrape time.
func (x *Registry) Collector() prometheus.Collector {
	return &registryCollector{
		registry: x,
		active: prometheus.NewDesc(
			`jobguard_job_active_count`,
			`In-flight invocations, awaiting or holding the job lock.`,
			[]string{`job`}, nil,
		),
		lastRun: prometheus.NewDesc(
			`jobguard_job_last_run_timestamp_seconds`,
			`Most recent successful admission, as a unix timestamp.`,
			[]string{`job`}, nil,
		),
		admissions: prometheus.NewDesc(
			`jobguard_job_admissions_total`,
			`Invocations whose body ran.`,
			[]string{`job`}, nil,
		),
		throttled: prometheus.NewDesc(
			`jobguard_job_throttled_total`,
			`Invocations quietly skipped by the throttle modes.`,
			[]string{`job`}, nil,
		),
		rejections: prometheus.NewDesc(
			`jobguard_job_rejections_total`,
			`Invocations rejected by a gate.`,
			[]string{`job`, `reason`}, nil,
		),
	}
}

func (x *registryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- x.active
	ch <- x.lastRun
	ch <- x.admissions
	ch <- x.throttled
	ch <- x.rejections
}

func (x *registryCollector) Collect(ch chan<- prometheus.Metric) {
	for _, info := range x.registry.Snapshot() {
		ch <- prometheus.MustNewConstMetric(x.active, prometheus.GaugeValue, float64(info.ActiveCount), info.Name)
		if !info.LastRunAt.IsZero() {
			ch <- prometheus.MustNewConstMetric(x.lastRun, prometheus.GaugeValue, float64(info.LastRunAt.Unix()), info.Name)
		}
		ch <- prometheus.MustNewConstMetric(x.admissions, prometheus.CounterValue, float64(info.Stats.Admitted), info.Name)
		ch <- prometheus.MustNewConstMetric(x.throttled, prometheus.CounterValue, float64(info.Stats.Throttled), info.Name)
		ch <- prometheus.MustNewConstMetric(x.rejections, prometheus.CounterValue, float64(info.Stats.RejectedBusy), info.Name, `busy`)
		ch <- prometheus.MustNewConstMetric(x.rejections, prometheus.CounterValue, float64(info.Stats.RejectedRateLimit), info.Name, `rate_limit`)
		ch <- prometheus.MustNewConstMetric(x.rejections, prometheus.CounterValue, float64(info.Stats.RejectedCondition), info.Name, `condition`)
	}
}
