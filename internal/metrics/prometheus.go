// Package metrics exposes scribe's counters in Prometheus format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"grimm.is/scribe/internal/nameindex"
	"grimm.is/scribe/internal/record"
)

const namespace = "scribe"

// Reload results used as the result label.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Registry holds all daemon metrics on a private prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	ReloadsTotal   *prometheus.CounterVec
	ReloadDuration prometheus.Histogram
	ReloadProgress prometheus.Gauge
	LastReload     prometheus.Gauge

	IndexEntries *prometheus.GaugeVec
	IndexBuckets *prometheus.GaugeVec
	ChainMax     *prometheus.GaugeVec

	LinesWritten *prometheus.CounterVec
	Started      prometheus.Gauge
}

// New creates a registry. counters is read at scrape time, so the event loop
// stays the only writer.
func New(counters *record.Counters) *Registry {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	r := &Registry{reg: reg}

	r.ReloadsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reloads_total",
		Help:      "Completed reload cycles by result",
	}, []string{"result"})

	r.ReloadDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reload_duration_seconds",
		Help:      "Time spent in a reload cycle",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	r.ReloadProgress = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reload_progress",
		Help:      "Progress of the current reload cycle (0-100)",
	})

	r.LastReload = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_reload_timestamp_seconds",
		Help:      "Unix time of the last successful reload",
	})

	r.IndexEntries = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "index_entries",
		Help:      "Entries in the live name index",
	}, []string{"table"})

	r.IndexBuckets = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "index_buckets",
		Help:      "Buckets in the live name index",
	}, []string{"table"})

	r.ChainMax = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "index_chain_max",
		Help:      "Longest bucket chain in the live name index",
	}, []string{"table"})

	r.LinesWritten = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "log_lines_total",
		Help:      "Lines appended per log file",
	}, []string{"log"})

	r.Started = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "start_time_seconds",
		Help:      "Unix time the daemon started",
	})

	if counters != nil {
		reg.MustRegister(NewCountersCollector(counters))
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return r
}

// Gatherer returns the underlying registry for the HTTP handler and tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Register adds an extra collector, such as a source drop counter.
func (r *Registry) Register(c prometheus.Collector) error {
	return r.reg.Register(c)
}

// RecordReload counts one finished reload cycle.
func (r *Registry) RecordReload(ok bool, took time.Duration, at time.Time) {
	result := ResultFailure
	if ok {
		result = ResultSuccess
		r.LastReload.Set(float64(at.Unix()))
	}
	r.ReloadsTotal.WithLabelValues(result).Inc()
	r.ReloadDuration.Observe(took.Seconds())
}

// SetIndex publishes the size of a freshly swapped index.
func (r *Registry) SetIndex(st nameindex.Stats) {
	r.IndexEntries.WithLabelValues("zones").Set(float64(st.ZoneEntries))
	r.IndexEntries.WithLabelValues("services").Set(float64(st.ServiceEntries))
	r.IndexBuckets.WithLabelValues("zones").Set(float64(st.ZoneBuckets))
	r.IndexBuckets.WithLabelValues("services").Set(float64(st.ServiceBuckets))
	r.ChainMax.WithLabelValues("zones").Set(float64(st.Zones.Max))
	r.ChainMax.WithLabelValues("services").Set(float64(st.Services.Max))
}
