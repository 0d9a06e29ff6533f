// Package metrics is engine-wide Prometheus wiring that any subsystem (task
// system, messaging, service locator, land cache, sim thread) can record
// into; no package in this module imports it. It generalizes the teacher's pkg/metrics.go no-op/Prometheus split
// (there scoped to one cache instance, keyed by "shard") into a component-
// labeled sink reusable across the whole module, keyed by "component".
//
// A nil *prometheus.Registry disables metrics entirely (NewSink(nil)
// returns the no-op implementation); this mirrors the teacher's
// newMetricsSink(shardCount, reg) factory.
//
// © 2025 voxen-sub000 authors. MIT License.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink is the abstraction every subsystem programs against. Implementations
// must be safe for concurrent use.
type Sink interface {
	IncCounter(component string, name string, delta float64)
	SetGauge(component string, name string, value float64)
	ObserveHistogram(component string, name string, value float64)
}

// noop is used when the caller never opts into metrics collection.
type noop struct{}

func (noop) IncCounter(string, string, float64)      {}
func (noop) SetGauge(string, string, float64)        {}
func (noop) ObserveHistogram(string, string, float64) {}

// promSink lazily creates and caches Prometheus collectors per metric name,
// since the set of names used across subsystems is small and fixed but each
// subsystem only knows its own names.
type promSink struct {
	reg        *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewSink builds a metrics Sink. Passing a nil registry returns a no-op sink
// so hot paths never pay for metric bookkeeping unless the host opts in,
// exactly as in the teacher's cache package.
func NewSink(reg *prometheus.Registry) Sink {
	if reg == nil {
		return noop{}
	}
	return &promSink{
		reg:        reg,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func (p *promSink) counterVec(name string) *prometheus.CounterVec {
	if cv, ok := p.counters[name]; ok {
		return cv
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voxen",
		Name:      name,
		Help:      name + " (component-labeled counter)",
	}, []string{"component"})
	p.reg.MustRegister(cv)
	p.counters[name] = cv
	return cv
}

func (p *promSink) gaugeVec(name string) *prometheus.GaugeVec {
	if gv, ok := p.gauges[name]; ok {
		return gv
	}
	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "voxen",
		Name:      name,
		Help:      name + " (component-labeled gauge)",
	}, []string{"component"})
	p.reg.MustRegister(gv)
	p.gauges[name] = gv
	return gv
}

func (p *promSink) histogramVec(name string) *prometheus.HistogramVec {
	if hv, ok := p.histograms[name]; ok {
		return hv
	}
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "voxen",
		Name:      name,
		Help:      name + " (component-labeled histogram)",
		Buckets:   prometheus.DefBuckets,
	}, []string{"component"})
	p.reg.MustRegister(hv)
	p.histograms[name] = hv
	return hv
}

func (p *promSink) IncCounter(component, name string, delta float64) {
	p.counterVec(name).WithLabelValues(component).Add(delta)
}

func (p *promSink) SetGauge(component, name string, value float64) {
	p.gaugeVec(name).WithLabelValues(component).Set(value)
}

func (p *promSink) ObserveHistogram(component, name string, value float64) {
	p.histogramVec(name).WithLabelValues(component).Observe(value)
}

// ShardLabel is a small helper mirroring the teacher's strconv.Itoa(shard)
// label convention, for a subsystem that labels by shard index rather than
// by component name.
func ShardLabel(shard int) string { return strconv.Itoa(shard) }
