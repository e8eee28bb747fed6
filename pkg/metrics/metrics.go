// Package metrics exposes the balancer's per-tick decision as Prometheus
// gauges, promoting prometheus/client_golang from an indirect dependency
// of the teacher's stack to a directly exercised one: every field of
// balancer.Output and balancer.Sample the overlay displays is also worth
// graphing over time.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ceralive/ceracoder/pkg/balancer"
)

// Collector holds the gauges the control loop updates once per tick.
type Collector struct {
	bitrate    prometheus.Gauge
	throughput prometheus.Gauge
	rtt        prometheus.Gauge
	rttThMin   prometheus.Gauge
	rttThMax   prometheus.Gauge
	bs         prometheus.Gauge
	bsTh1      prometheus.Gauge
	bsTh2      prometheus.Gauge
	bsTh3      prometheus.Gauge

	reloads prometheus.Counter
	drops   prometheus.Counter
}

// NewCollector builds and registers a Collector against reg. Passing
// prometheus.NewRegistry() (rather than the global DefaultRegisterer)
// keeps tests hermetic.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		bitrate:    gauge(reg, "ceracoder_bitrate_bps", "Current target encoder bitrate in bits per second."),
		throughput: gauge(reg, "ceracoder_throughput_bps", "Smoothed observed throughput in units of 1024 bits per second."),
		rtt:        gauge(reg, "ceracoder_rtt_ms", "Current round-trip time in milliseconds."),
		rttThMin:   gauge(reg, "ceracoder_rtt_threshold_min_ms", "Lower RTT threshold for the stable decision."),
		rttThMax:   gauge(reg, "ceracoder_rtt_threshold_max_ms", "Upper RTT threshold for the light-congestion decision."),
		bs:         gauge(reg, "ceracoder_buffer_size_packets", "Outstanding unacknowledged packets."),
		bsTh1:      gauge(reg, "ceracoder_buffer_threshold_1_packets", "Light-congestion buffer threshold."),
		bsTh2:      gauge(reg, "ceracoder_buffer_threshold_2_packets", "Heavy-congestion buffer threshold."),
		bsTh3:      gauge(reg, "ceracoder_buffer_threshold_3_packets", "Emergency buffer threshold."),
		reloads:    counter(reg, "ceracoder_reloads_total", "Number of config reloads applied."),
		drops:      counter(reg, "ceracoder_stream_drops_total", "Number of times the control loop exited due to a stalled or timed-out session."),
	}
	return c
}

func gauge(reg prometheus.Registerer, name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	reg.MustRegister(g)
	return g
}

func counter(reg prometheus.Registerer, name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	reg.MustRegister(c)
	return c
}

// Observe records one balancer.Output.
func (c *Collector) Observe(out balancer.Output) {
	c.bitrate.Set(float64(out.NewBitrate))
	c.throughput.Set(out.Throughput)
	c.rtt.Set(float64(out.RTT))
	c.rttThMin.Set(float64(out.RTTThMin))
	c.rttThMax.Set(float64(out.RTTThMax))
	c.bs.Set(float64(out.BS))
	c.bsTh1.Set(float64(out.BSTh1))
	c.bsTh2.Set(float64(out.BSTh2))
	c.bsTh3.Set(float64(out.BSTh3))
}

// IncReload records a config reload having been applied.
func (c *Collector) IncReload() { c.reloads.Inc() }

// IncDrop records a stalled/timed-out session exit.
func (c *Collector) IncDrop() { c.drops.Inc() }
