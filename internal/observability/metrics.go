// Package observability holds tokenwatch's Prometheus instruments.
//
// All recorder methods are safe on a nil *Metrics so components can run
// without metrics in tests.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tokenwatch"

// Discovery fetch outcomes.
const (
	FetchOK        = "ok"
	FetchSkipped   = "skipped"
	FetchTransport = "transport_error"
	FetchStatus    = "status_error"
	FetchDecode    = "decode_error"
)

type Metrics struct {
	reg *prometheus.Registry

	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	fetched       prometheus.Counter

	notifications *prometheus.CounterVec
	notifyLatency prometheus.Histogram

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	matched       prometheus.Counter

	tracked   prometheus.Gauge
	lastCheck prometheus.Gauge
	evicted   prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "discovery", Name: "fetches_total",
			Help: "Discovery fetch attempts by result.",
		}, []string{"result"}),
		fetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "discovery", Name: "fetch_duration_seconds",
			Help:    "Latency of discovery HTTP calls.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		fetched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "discovery", Name: "entities_total",
			Help: "Entities returned by successful discovery fetches.",
		}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "notifier", Name: "notifications_total",
			Help: "Alert sends by result.",
		}, []string{"result"}),
		notifyLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "notifier", Name: "send_duration_seconds",
			Help:    "Latency of alert sends, including pacing waits.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "monitor", Name: "cycles_total",
			Help: "Monitor cycles by result (completed, skipped).",
		}, []string{"result"}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "monitor", Name: "cycle_duration_seconds",
			Help:    "Wall time of completed cycles.",
			Buckets: prometheus.DefBuckets,
		}),
		matched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "monitor", Name: "matched_total",
			Help: "Entities that passed the suffix and dedup filter.",
		}),
		tracked: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "seen", Name: "tracked",
			Help: "Identifiers currently held in the seen set.",
		}),
		lastCheck: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "monitor", Name: "last_check_timestamp_seconds",
			Help: "Unix time of the last completed cycle.",
		}),
		evicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "seen", Name: "evicted_total",
			Help: "Identifiers dropped by seen-set cleanup.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) ObserveFetch(result string, entities int, d time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(result).Inc()
	if result == FetchSkipped {
		return
	}
	m.fetchDuration.Observe(d.Seconds())
	if entities > 0 {
		m.fetched.Add(float64(entities))
	}
}

func (m *Metrics) ObserveNotify(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.notifications.WithLabelValues(result).Inc()
	m.notifyLatency.Observe(d.Seconds())
}

func (m *Metrics) ObserveCycle(matched, tracked, evicted int, at time.Time, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues("completed").Inc()
	m.cycleDuration.Observe(d.Seconds())
	m.matched.Add(float64(matched))
	m.tracked.Set(float64(tracked))
	if evicted > 0 {
		m.evicted.Add(float64(evicted))
	}
	m.lastCheck.Set(float64(at.Unix()))
}

func (m *Metrics) CycleSkipped() {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues("skipped").Inc()
}
