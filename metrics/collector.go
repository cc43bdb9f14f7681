// Package metrics exports engine bookkeeping to Prometheus.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/buke/scriptx-go"
)

const namespace = "scriptx"

var labels = []string{"engine", "backend"}

// Collector reports Engine.Stats for a set of engines. Destroyed engines are
// dropped on the next collection.
type Collector struct {
	mu      sync.Mutex
	engines []*scriptx.Engine

	liveLocals    *prometheus.Desc
	liveGlobals   *prometheus.Desc
	liveFunctions *prometheus.Desc
	calls         *prometheus.Desc
	exceptions    *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector watching engines.
func NewCollector(engines ...*scriptx.Engine) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		engines:       engines,
		liveLocals:    desc("live_locals", "Local references currently held."),
		liveGlobals:   desc("live_globals", "Global references currently held."),
		liveFunctions: desc("live_functions", "Host functions not yet finalized."),
		calls:         desc("calls_total", "Function calls made through the engine."),
		exceptions:    desc("exceptions_total", "Script exceptions surfaced to the host."),
	}
}

// Add starts watching e.
func (c *Collector) Add(e *scriptx.Engine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engines = append(c.engines, e)
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.liveLocals
	ch <- c.liveGlobals
	ch <- c.liveFunctions
	ch <- c.calls
	ch <- c.exceptions
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	live := c.engines[:0]
	for _, e := range c.engines {
		if !e.IsDestroyed() {
			live = append(live, e)
		}
	}
	c.engines = live
	engines := append([]*scriptx.Engine(nil), live...)
	c.mu.Unlock()

	for _, e := range engines {
		s := e.Stats()
		ch <- prometheus.MustNewConstMetric(c.liveLocals, prometheus.GaugeValue, float64(s.LiveLocals), s.Name, s.Backend)
		ch <- prometheus.MustNewConstMetric(c.liveGlobals, prometheus.GaugeValue, float64(s.LiveGlobals), s.Name, s.Backend)
		ch <- prometheus.MustNewConstMetric(c.liveFunctions, prometheus.GaugeValue, float64(s.LiveFunctions), s.Name, s.Backend)
		ch <- prometheus.MustNewConstMetric(c.calls, prometheus.CounterValue, float64(s.Calls), s.Name, s.Backend)
		ch <- prometheus.MustNewConstMetric(c.exceptions, prometheus.CounterValue, float64(s.Exceptions), s.Name, s.Backend)
	}
}
