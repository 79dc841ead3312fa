package client

import "github.com/prometheus/client_golang/prometheus"

// StatsSource is implemented by Manager and Rebinder
type StatsSource interface {
	Endpoint() Endpoint
	State() State
	Stats() Stats
}

// Collector exports StatsSource counters as Prometheus metrics
type Collector struct {
	sources []StatsSource

	connected       *prometheus.Desc
	connectAttempts *prometheus.Desc
	connects        *prometheus.Desc
	connectFailures *prometheus.Desc
	linesWritten    *prometheus.Desc
	writeFailures   *prometheus.Desc
	dropped         *prometheus.Desc
}

// NewCollector returns a collector over the given sources
func NewCollector(sources ...StatsSource) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("remotekeys", "client", name), help, []string{"endpoint"}, nil)
	}
	return &Collector{
		sources:         sources,
		connected:       desc("connected", "1 if the client holds a live connection"),
		connectAttempts: desc("connect_attempts_total", "Connect attempts made"),
		connects:        desc("connects_total", "Successful connects"),
		connectFailures: desc("connect_failures_total", "Failed connects"),
		linesWritten:    desc("lines_written_total", "Lines written and flushed"),
		writeFailures:   desc("write_failures_total", "Writes that failed and tore down the connection"),
		dropped:         desc("lines_dropped_total", "Lines that never reached the wire"),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connected
	ch <- c.connectAttempts
	ch <- c.connects
	ch <- c.connectFailures
	ch <- c.linesWritten
	ch <- c.writeFailures
	ch <- c.dropped
}

// Collect implements prometheus.Collector. Sources without an endpoint, such
// as a closed Rebinder, are skipped.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, src := range c.sources {
		if src.Endpoint() == (Endpoint{}) {
			continue
		}
		ep := src.Endpoint().String()
		s := src.Stats()

		up := 0.0
		if src.State() == Connected {
			up = 1
		}
		ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, up, ep)
		ch <- prometheus.MustNewConstMetric(c.connectAttempts, prometheus.CounterValue, float64(s.ConnectAttempts), ep)
		ch <- prometheus.MustNewConstMetric(c.connects, prometheus.CounterValue, float64(s.Connects), ep)
		ch <- prometheus.MustNewConstMetric(c.connectFailures, prometheus.CounterValue, float64(s.ConnectFailures), ep)
		ch <- prometheus.MustNewConstMetric(c.linesWritten, prometheus.CounterValue, float64(s.LinesWritten), ep)
		ch <- prometheus.MustNewConstMetric(c.writeFailures, prometheus.CounterValue, float64(s.WriteFailures), ep)
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.Dropped), ep)
	}
}
