// Package metric provides Prometheus metrics for tokbroker.
package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TokenState is a point-in-time view of a kept token.
type TokenState struct {
	ExpiresAt time.Time
	Failures  int
	Valid     bool
}

// Collector exports the state of a token kept warm by an agent.
// Values are read from the state function at scrape time.
type Collector struct {
	state func() TokenState
	now   func() time.Time

	expiry   *prometheus.Desc
	valid    *prometheus.Desc
	failures *prometheus.Desc
}

// NewCollector creates a collector reading from state.
func NewCollector(state func() TokenState) *Collector {
	return &Collector{
		state: state,
		now:   time.Now,
		expiry: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "token", "expiry_seconds"),
			"Seconds until the kept token expires (negative once expired).",
			nil, nil,
		),
		valid: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "token", "valid"),
			"1 if the kept token is currently valid.",
			nil, nil,
		),
		failures: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "token", "consecutive_failures"),
			"Consecutive failed renewal attempts.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.expiry
	ch <- c.valid
	ch <- c.failures
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.state()

	var expiry float64
	if !st.ExpiresAt.IsZero() {
		expiry = st.ExpiresAt.Sub(c.now()).Seconds()
	}
	valid := 0.0
	if st.Valid {
		valid = 1
	}

	ch <- prometheus.MustNewConstMetric(c.expiry, prometheus.GaugeValue, expiry)
	ch <- prometheus.MustNewConstMetric(c.valid, prometheus.GaugeValue, valid)
	ch <- prometheus.MustNewConstMetric(c.failures, prometheus.GaugeValue, float64(st.Failures))
}
