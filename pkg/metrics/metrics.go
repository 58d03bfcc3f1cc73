package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var HistogramBuckets = []float64{
	25, 50, 75, 100, 150, 200, 300, 400, 500,
	750, 1000, 1500, 2000,
	3000, 5000, 7500, 10000, 15000,
	30000, 60000,
}

// Metric describes the name, help text, type and labels of a collector.
type Metric struct {
	MetricCollector prometheus.Collector
	ID              string
	Name            string
	Description     string
	Type            string
	Args            []string
}

// NewMetric builds the prometheus.Collector matching Metric.Type.
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	var metric prometheus.Collector
	switch m.Type {
	case "counter_vec":
		metric = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "counter":
		metric = prometheus.NewCounter(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
		)
	case "gauge_vec":
		metric = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "gauge":
		metric = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
		)
	case "histogram_vec":
		metric = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
				Buckets:   HistogramBuckets,
			},
			m.Args,
		)
	case "histogram":
		metric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
				Buckets:   HistogramBuckets,
			},
		)
	}
	return metric
}

// CallbackOutcomes counts processed gateway callbacks partitioned by kind
// (stk, b2c_result, b2c_timeout) and outcome (applied, duplicate, not_found,
// discarded, error).
var CallbackOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: "mpesa_bridge",
		Name:      "callback_outcomes_total",
		Help:      "Processed gateway callbacks by kind and outcome.",
	},
	[]string{"kind", "outcome"},
)

// RetryQueueDepth tracks callback retry entries currently queued.
var RetryQueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: "mpesa_bridge",
		Name:      "retry_queue_depth",
		Help:      "Deferred callback retry entries in queued state.",
	},
)

func init() {
	prometheus.MustRegister(CallbackOutcomes, RetryQueueDepth)
}
