// Package promstats exposes httpclient call counters as Prometheus metrics.
package promstats

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gaborage/apiclient/httpclient"
)

const namespace = "apiclient"

// Source is anything that can produce a stats snapshot, usually *httpclient.CallStats
// or an httpclient.Client.
type Source interface {
	Snapshot() httpclient.StatsSnapshot
}

// SourceFunc adapts a function to Source.
type SourceFunc func() httpclient.StatsSnapshot

// Snapshot calls f.
func (f SourceFunc) Snapshot() httpclient.StatsSnapshot {
	return f()
}

// ClientSource reads the counters of a built client.
func ClientSource(c httpclient.Client) Source {
	return SourceFunc(c.Stats)
}

// Collector is a prometheus.Collector reading a Source on every scrape.
// The counters are never reset so they map directly onto Prometheus counters.
type Collector struct {
	source Source

	calls       *prometheus.Desc
	attempts    *prometheus.Desc
	rateLimited *prometheus.Desc
}

// NewCollector creates a collector for source. constLabels is attached to every
// series, e.g. {"client": "acts"} when several clients are registered.
func NewCollector(source Source, constLabels prometheus.Labels) *Collector {
	return &Collector{
		source: source,
		calls: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "calls_total"),
			"Total number of API calls initiated",
			nil, constLabels,
		),
		attempts: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "attempts_total"),
			"Total number of HTTP attempts sent",
			nil, constLabels,
		),
		rateLimited: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "rate_limit_errors_total"),
			"Total number of 429 responses by attempt ordinal",
			[]string{"attempt"}, constLabels,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.calls
	ch <- c.attempts
	ch <- c.rateLimited
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.calls, prometheus.CounterValue, float64(snap.Calls))
	ch <- prometheus.MustNewConstMetric(c.attempts, prometheus.CounterValue, float64(snap.Attempts))
	for ordinal, n := range snap.RateLimitErrors {
		ch <- prometheus.MustNewConstMetric(c.rateLimited, prometheus.CounterValue, float64(n), strconv.Itoa(ordinal))
	}
}

// Register creates a collector for source and registers it with reg,
// or with prometheus.DefaultRegisterer when reg is nil.
func Register(reg prometheus.Registerer, source Source, constLabels prometheus.Labels) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := NewCollector(source, constLabels)
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}
