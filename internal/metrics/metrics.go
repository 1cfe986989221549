// Package metrics exposes runtime call counters and handle gauges to
// Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/xrstate/internal/handle"
	"github.com/banshee-data/xrstate/internal/session"
	"github.com/banshee-data/xrstate/internal/xrerr"
)

const namespace = "xrstate"

// Metrics holds the collectors for one runtime instance. It implements
// the xrapi Observer interface.
type Metrics struct {
	// Registry holds every collector below plus the Go and process
	// collectors.
	Registry *prometheus.Registry

	calls        *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
}

// New registers call metrics and gauges over inst.
func New(inst *session.Instance) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "calls_total",
				Help:      "Total number of API calls by function and result.",
			},
			[]string{"function", "result"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "call_duration_seconds",
				Help:      "Duration of API calls, including frame waits.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
			},
			[]string{"function"},
		),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.calls,
		m.callDuration,
	)

	table := inst.Handles()
	for _, kind := range []handle.Kind{
		handle.KindSession,
		handle.KindSpace,
		handle.KindHandTracker,
		handle.KindBodyTracker,
		handle.KindFacialTracker,
	} {
		reg.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "handles",
				Name:        "live",
				Help:        "Live handles by kind.",
				ConstLabels: prometheus.Labels{"kind": string(kind)},
			},
			func() float64 { return float64(table.Count(kind)) },
		))
	}
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "pending",
			Help:      "Events queued and not yet polled.",
		},
		func() float64 { return float64(inst.PendingEvents()) },
	))
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "lost",
			Help:      "Sessions that have been marked lost.",
		},
		func() float64 {
			n := 0
			for _, s := range inst.Sessions() {
				if s.Lost() {
					n++
				}
			}
			return float64(n)
		},
	))
	return m
}

// ObserveCall records one completed API call.
func (m *Metrics) ObserveCall(fn string, kind xrerr.Kind, elapsed time.Duration) {
	m.calls.WithLabelValues(fn, kind.String()).Inc()
	m.callDuration.WithLabelValues(fn).Observe(elapsed.Seconds())
}

// Handler returns an HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
