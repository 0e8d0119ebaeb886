package bus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for casetrack_messages_total.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeUnknown  = "unknown"
)

// Metrics holds the dispatcher's Prometheus collectors.
type Metrics struct {
	messages *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "casetrack",
			Name:      "messages_total",
			Help:      "Bus messages handled, by type and outcome.",
		}, []string{"type", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "casetrack",
			Name:      "message_duration_seconds",
			Help:      "Time spent handling a bus message.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"type"}),
	}
	if reg != nil {
		reg.MustRegister(m.messages, m.duration)
	}
	return m
}

func (m *Metrics) observe(t Type, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(string(t), outcome).Inc()
	m.duration.WithLabelValues(string(t)).Observe(elapsed.Seconds())
}
