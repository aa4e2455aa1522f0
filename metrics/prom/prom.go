// Package prom exports fragcache signals to Prometheus.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/fragcache/boundary"
	"github.com/IvanBrykalov/fragcache/cache"
	"github.com/IvanBrykalov/fragcache/resolver"
)

// Adapter implements cache.Metrics, resolver.Observer and
// boundary.Observer. All Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	evicts   *prometheus.CounterVec
	sizeEnt  prometheus.Gauge
	sizeCost prometheus.Gauge

	resolutions *prometheus.CounterVec
	cancels     *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
}

// New constructs the adapter and registers its collectors.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		}, labels)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		})
	}

	a := &Adapter{
		hits:        counter("hits_total", "Memo hits"),
		misses:      counter("misses_total", "Memo misses"),
		evicts:      counterVec("evictions_total", "Memo evictions by reason", "reason"),
		sizeEnt:     gauge("size_entries", "Number of resident entries"),
		sizeCost:    gauge("size_cost", "Total resident cost"),
		resolutions: counterVec("resolutions_total", "Payload decodes by mode and outcome", "mode", "outcome"),
		cancels:     counterVec("stream_cancellations_total", "Payload streams cancelled by the decoder", "mode"),
		fallbacks:   counterVec("fallbacks_total", "Fallback panels rendered by error boundaries", "mode"),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt, a.sizeCost, a.resolutions, a.cancels, a.fallbacks)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) { a.evicts.WithLabelValues(r.String()).Inc() }

// Size updates gauges for the number of entries and total cost.
func (a *Adapter) Size(entries int, cost int64) {
	a.sizeEnt.Set(float64(entries))
	a.sizeCost.Set(float64(cost))
}

// Resolved counts one backend decode.
func (a *Adapter) Resolved(mode resolver.Mode, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	a.resolutions.WithLabelValues(mode.String(), outcome).Inc()
}

// StreamCanceled counts a cancelled payload stream.
func (a *Adapter) StreamCanceled(mode resolver.Mode) { a.cancels.WithLabelValues(mode.String()).Inc() }

// Fallback counts a fallback panel.
func (a *Adapter) Fallback(mode resolver.Mode) { a.fallbacks.WithLabelValues(mode.String()).Inc() }

var (
	_ cache.Metrics     = (*Adapter)(nil)
	_ resolver.Observer = (*Adapter)(nil)
	_ boundary.Observer = (*Adapter)(nil)
)
