package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lending"

// Metrics groups the collectors of the lending service. A nil *Metrics is a
// valid no-op, so tests and tools can skip registration.
type Metrics struct {
	transitions  *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	connections  prometheus.Gauge
	armedTimers  prometheus.Gauge
	overdueLoans prometheus.Gauge
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Borrow transactions entering each status.",
		}, []string{"status"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_deliveries_total",
			Help:      "Room event deliveries by event and result.",
		}, []string{"event", "result"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_connections",
			Help:      "Open realtime connections.",
		}),
		armedTimers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "expiry_timers",
			Help:      "Armed expiry timers of pending requests.",
		}),
		overdueLoans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overdue_loans",
			Help:      "Loans past their promised return time at the last check.",
		}),
	}

	reg.MustRegister(m.transitions, m.deliveries, m.connections, m.armedTimers, m.overdueLoans)

	return m
}

func (m *Metrics) ObserveTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// ObserveDelivery counts one delivery attempt to one room member
func (m *Metrics) ObserveDelivery(event string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.deliveries.WithLabelValues(event, result).Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

func (m *Metrics) SetArmedTimers(n int) {
	if m == nil {
		return
	}
	m.armedTimers.Set(float64(n))
}

func (m *Metrics) SetOverdueLoans(n int) {
	if m == nil {
		return
	}
	m.overdueLoans.Set(float64(n))
}
