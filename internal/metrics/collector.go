package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"grimm.is/scribe/internal/record"
)

// CountersCollector reads record.Counters on every scrape.
type CountersCollector struct {
	counters *record.Counters
	records  *prometheus.Desc
	invalid  *prometheus.Desc
}

// NewCountersCollector wraps c.
func NewCountersCollector(c *record.Counters) *CountersCollector {
	return &CountersCollector{
		counters: c,
		records: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "records_total"),
			"Resolved records by action",
			[]string{"action"}, nil,
		),
		invalid: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "invalid_records_total"),
			"Records dropped because they carried no action",
			nil, nil,
		),
	}
}

func (c *CountersCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.records
	ch <- c.invalid
}

func (c *CountersCollector) Collect(ch chan<- prometheus.Metric) {
	for _, a := range record.Actions() {
		ch <- prometheus.MustNewConstMetric(c.records, prometheus.CounterValue, float64(c.counters.Get(a)), a.String())
	}
	ch <- prometheus.MustNewConstMetric(c.invalid, prometheus.CounterValue, float64(c.counters.Invalid()))
}

// DropCounter exposes a source's drop count as scribe_source_dropped_total.
func DropCounter(source string, dropped func() uint64) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "source_dropped_total",
		Help:        "Events lost to full queues or kernel buffer overruns",
		ConstLabels: prometheus.Labels{"source": source},
	}, func() float64 { return float64(dropped()) })
}
