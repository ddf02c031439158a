// Package metrics publishes flock diagnostics to Prometheus.
package metrics

import (
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/simstate"
	"github.com/prometheus/client_golang/prometheus"
)

// Source is what the collector reads on every scrape. *flock.Flock
// satisfies it.
type Source interface {
	FrameRate() float64
	RenderRate() float64
	Size() int
	IsSimulationRunning() bool
	SimulationMode() simstate.Mode
}

var (
	tickRateDesc = prometheus.NewDesc(
		"geese_tick_rate",
		"Simulation ticks per second, averaged over the last refresh window",
		nil, nil,
	)
	renderRateDesc = prometheus.NewDesc(
		"geese_render_rate",
		"Rendered frames per second, averaged over the last refresh window",
		nil, nil,
	)
	flockSizeDesc = prometheus.NewDesc(
		"geese_flock_size",
		"Number of geese in the flock",
		nil, nil,
	)
	runningDesc = prometheus.NewDesc(
		"geese_simulation_running",
		"1 while the simulation goroutine is running",
		nil, nil,
	)
	modeDesc = prometheus.NewDesc(
		"geese_simulation_mode",
		"1 for the current simulation mode, 0 for the others",
		[]string{"mode"}, nil,
	)
)

// Collector reads a Source at scrape time, so values are never stale.
type Collector struct {
	source Source
}

func NewCollector(source Source) *Collector {
	return &Collector{source: source}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- tickRateDesc
	ch <- renderRateDesc
	ch <- flockSizeDesc
	ch <- runningDesc
	ch <- modeDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(tickRateDesc, prometheus.GaugeValue, c.source.FrameRate())
	ch <- prometheus.MustNewConstMetric(renderRateDesc, prometheus.GaugeValue, c.source.RenderRate())
	ch <- prometheus.MustNewConstMetric(flockSizeDesc, prometheus.GaugeValue, float64(c.source.Size()))
	ch <- prometheus.MustNewConstMetric(runningDesc, prometheus.GaugeValue, boolToFloat(c.source.IsSimulationRunning()))

	current := c.source.SimulationMode()
	for _, mode := range simstate.Modes() {
		ch <- prometheus.MustNewConstMetric(modeDesc, prometheus.GaugeValue, boolToFloat(mode == current), mode.String())
	}
}

// Register adds a Collector for source to reg.
func Register(reg prometheus.Registerer, source Source) error {
	return reg.Register(NewCollector(source))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
