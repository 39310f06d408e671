// Package metrics exposes acquisition pipeline counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blethermo"

// Metrics groups the collectors updated by the scan loop and the debounce stage.
type Metrics struct {
	ScanCycles         prometheus.Counter
	AdapterErrors      prometheus.Counter
	ScanErrors         prometheus.Counter
	ReadingsEmitted    prometheus.Counter
	ReadingsAccepted   prometheus.Counter
	ReadingsSuppressed prometheus.Counter
	LogWrites          *prometheus.CounterVec
	Temperature        prometheus.Gauge
	Humidity           prometheus.Gauge
	LastAccepted       prometheus.Gauge

	reg prometheus.Registerer
}

// New creates the collectors and registers them on reg. A nil reg registers on
// a private registry, which keeps tests and embedded use isolated.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		ScanCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scanner", Name: "cycles_total",
			Help: "Scan cycles started.",
		}),
		AdapterErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scanner", Name: "adapter_errors_total",
			Help: "Cycles in which the BLE central manager could not be opened.",
		}),
		ScanErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scanner", Name: "scan_errors_total",
			Help: "Scans that ended with an adapter error or a recovered panic.",
		}),
		ReadingsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scanner", Name: "readings_emitted_total",
			Help: "Readings decoded from the target device and queued for debouncing.",
		}),
		ReadingsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "debounce", Name: "readings_accepted_total",
			Help: "Readings accepted by the debounce stage.",
		}),
		ReadingsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "debounce", Name: "readings_suppressed_total",
			Help: "Readings dropped as duplicates within the debounce interval.",
		}),
		LogWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "datalog", Name: "writes_total",
			Help: "Daily log writes by result.",
		}, []string{"result"}),
		Temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "temperature_celsius",
			Help: "Temperature of the last accepted reading.",
		}),
		Humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "humidity_percent",
			Help: "Relative humidity of the last accepted reading.",
		}),
		LastAccepted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_accepted_timestamp_seconds",
			Help: "Unix time at which the last reading was accepted.",
		}),
	}

	m.reg = reg
	reg.MustRegister(
		m.ScanCycles, m.AdapterErrors, m.ScanErrors, m.ReadingsEmitted,
		m.ReadingsAccepted, m.ReadingsSuppressed, m.LogWrites,
		m.Temperature, m.Humidity, m.LastAccepted,
	)
	return m
}

// ObserveLogWrite counts a daily log write outcome.
func (m *Metrics) ObserveLogWrite(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.LogWrites.WithLabelValues(result).Inc()
}

// WatchQueue exports the depth and the number of accepted sends of the
// pipeline queue name. Both are sampled on every scrape.
func (m *Metrics) WatchQueue(name string, depth func() int, sent func() int64) {
	labels := prometheus.Labels{"queue": name}
	m.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "queue", Name: "depth",
			Help:        "Messages buffered between pipeline stages.",
			ConstLabels: labels,
		}, func() float64 { return float64(depth()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "queue", Name: "sent_total",
			Help:        "Messages sent into a pipeline queue.",
			ConstLabels: labels,
		}, func() float64 { return float64(sent()) }),
	)
}

// Handler serves the collectors registered on g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
