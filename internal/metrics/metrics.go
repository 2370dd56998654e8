// Package metrics exposes the exchange's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tick outcomes.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeAborted = "aborted"
)

// Metrics owns a private registry so several instances can coexist in
// one process (tests build one per case).
type Metrics struct {
	registry           *prometheus.Registry
	ticks              *prometheus.CounterVec
	tickDuration       prometheus.Histogram
	instrumentFailures *prometheus.CounterVec
	ordersFilled       prometheus.Counter
	alertsFired        prometheus.Counter
	price              *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cogexchange_ticks_total",
			Help: "Completed tick cycles by outcome.",
		}, []string{"outcome"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cogexchange_tick_duration_seconds",
			Help:    "Wall time of one tick cycle.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		instrumentFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cogexchange_instrument_failures_total",
			Help: "Instruments whose update failed within a tick.",
		}, []string{"symbol"}),
		ordersFilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cogexchange_orders_filled_total",
			Help: "Conditional orders executed by the tick cycle.",
		}),
		alertsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cogexchange_alerts_fired_total",
			Help: "Price alerts fired.",
		}),
		price: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cogexchange_price",
			Help: "Current instrument price in spurs.",
		}, []string{"symbol"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ticks,
		m.tickDuration,
		m.instrumentFailures,
		m.ordersFilled,
		m.alertsFired,
		m.price,
	)
	return m
}

// ObserveTick records one finished cycle.
func (m *Metrics) ObserveTick(outcome string, d time.Duration) {
	m.ticks.WithLabelValues(outcome).Inc()
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) InstrumentFailed(symbol string) {
	m.instrumentFailures.WithLabelValues(symbol).Inc()
}

func (m *Metrics) OrdersFilled(n int) {
	m.ordersFilled.Add(float64(n))
}

func (m *Metrics) AlertsFired(n int) {
	m.alertsFired.Add(float64(n))
}

// SetPrice updates the price gauge for symbol.
func (m *Metrics) SetPrice(symbol string, price int64) {
	m.price.WithLabelValues(symbol).Set(float64(price))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
