package api

import (
	"mspb-config/core/mfa"

	"github.com/prometheus/client_golang/prometheus"
)

type probeMetricsCollector struct {
	probe *mfa.Probe

	healthyDesc   *prometheus.Desc
	lastCheckDesc *prometheus.Desc
	ticksDesc     *prometheus.Desc
	failuresDesc  *prometheus.Desc
}

func newProbeMetricsCollector(probe *mfa.Probe) prometheus.Collector {
	return &probeMetricsCollector{
		probe: probe,
		healthyDesc: prometheus.NewDesc(
			"mspb_mfa_secret_service_healthy",
			"Whether the last MFA secret-service reachability probe succeeded (1) or failed (0).",
			nil,
			nil,
		),
		lastCheckDesc: prometheus.NewDesc(
			"mspb_mfa_secret_service_last_check_timestamp",
			"Unix timestamp of the last reachability probe; 0 before the first run.",
			nil,
			nil,
		),
		ticksDesc: prometheus.NewDesc(
			"mspb_mfa_secret_service_probe_ticks_total",
			"Total number of reachability probe runs.",
			nil,
			nil,
		),
		failuresDesc: prometheus.NewDesc(
			"mspb_mfa_secret_service_probe_failures_total",
			"Total number of failed reachability probe runs.",
			nil,
			nil,
		),
	}
}

func (c *probeMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.healthyDesc
	ch <- c.lastCheckDesc
	ch <- c.ticksDesc
	ch <- c.failuresDesc
}

func (c *probeMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	healthy, lastCheck, ticks, failures := c.probe.Snapshot()
	healthyVal := 0.0
	if healthy {
		healthyVal = 1.0
	}
	lastCheckVal := 0.0
	if !lastCheck.IsZero() {
		lastCheckVal = float64(lastCheck.Unix())
	}
	ch <- prometheus.MustNewConstMetric(c.healthyDesc, prometheus.GaugeValue, healthyVal)
	ch <- prometheus.MustNewConstMetric(c.lastCheckDesc, prometheus.GaugeValue, lastCheckVal)
	ch <- prometheus.MustNewConstMetric(c.ticksDesc, prometheus.CounterValue, float64(ticks))
	ch <- prometheus.MustNewConstMetric(c.failuresDesc, prometheus.CounterValue, float64(failures))
}
