package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Transport labels used by the dispatch metrics.
const (
	transportWS   = "websocket"
	transportSSE  = "sse"
	transportPoll = "poll"
)

// Metrics counts relay activity per transport.
type Metrics struct {
	dispatched *prometheus.CounterVec
	skipped    *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	sessions   prometheus.Gauge
}

// NewMetrics constructs and registers relay metrics on reg.
// A nil registerer leaves the metrics unregistered (handy in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stronghold",
			Subsystem: "relay",
			Name:      "events_dispatched_total",
			Help:      "Events delivered per transport.",
		}, []string{"transport"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stronghold",
			Subsystem: "relay",
			Name:      "events_skipped_total",
			Help:      "Events skipped because no channel was active.",
		}, []string{"transport"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stronghold",
			Subsystem: "relay",
			Name:      "events_dropped_total",
			Help:      "Events dropped under backpressure or buffer bounds.",
		}, []string{"transport"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stronghold",
			Subsystem: "relay",
			Name:      "live_sessions",
			Help:      "Sessions currently held by the registry.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.dispatched, m.skipped, m.dropped, m.sessions)
	}
	return m
}

func (m *Metrics) dispatchedTo(transport string) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(transport).Inc()
}

func (m *Metrics) skippedFor(transport string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(transport).Inc()
}

func (m *Metrics) droppedFrom(transport string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(transport).Inc()
}

func (m *Metrics) sessionDelta(d float64) {
	if m == nil {
		return
	}
	m.sessions.Add(d)
}
