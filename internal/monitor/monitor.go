// Package monitor exports instrument exchange metrics to Prometheus
package monitor

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/speters/oszid/oszi"
)

const namespace = "oszi"

// Outcomes of an exchange as used in the outcome label
const (
	OutcomeOK           = "ok"
	OutcomeTimeout      = "timeout"
	OutcomeNotConnected = "not_connected"
	OutcomeMalformed    = "malformed"
	OutcomeOutOfRange   = "out_of_range"
	OutcomeError        = "error"
)

// Monitor is an oszi.Observer collecting metrics in its own registry
type Monitor struct {
	registry  *prometheus.Registry
	exchanges *prometheus.CounterVec
	bytes     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

func New() *Monitor {
	m := &Monitor{registry: prometheus.NewRegistry()}
	m.exchanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exchanges_total",
		Help:      "Exchanges with the instrument by kind and outcome.",
	}, []string{"kind", "outcome"})
	m.bytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "received_bytes_total",
		Help:      "Answer bytes received from the instrument.",
	}, []string{"kind"})
	m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "exchange_duration_seconds",
		Help:      "Time from sending a command until its answer was complete.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"kind"})

	m.registry.MustRegister(
		m.exchanges,
		m.bytes,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveExchange implements oszi.Observer
func (m *Monitor) ObserveExchange(x oszi.Exchange) {
	kind := string(x.Kind)
	m.exchanges.WithLabelValues(kind, Outcome(x.Err)).Inc()
	m.bytes.WithLabelValues(kind).Add(float64(x.Bytes))
	m.duration.WithLabelValues(kind).Observe(x.Duration.Seconds())
}

// WatchSession exports the connection state of s as oszi_connected
func (m *Monitor) WatchSession(s *oszi.Session) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connected",
		Help:      "1 if the instrument is connected and identified.",
	}, func() float64 {
		if s.IsConnected() {
			return 1
		}
		return 0
	}))
}

// Handler serves the registry in the Prometheus exposition format
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Outcome maps an exchange error to its outcome label
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, oszi.ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, oszi.ErrNotConnected):
		return OutcomeNotConnected
	case errors.Is(err, oszi.ErrMalformed):
		return OutcomeMalformed
	case errors.Is(err, oszi.ErrOutOfRange):
		return OutcomeOutOfRange
	}
	return OutcomeError
}
