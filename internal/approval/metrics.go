package approval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Registrations *prometheus.CounterVec
	Reviews       *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	CleanedUp     prometheus.Counter
}

// NewMetrics registers the workflow counters on reg. A nil reg leaves them
// unregistered, which tests rely on.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "promptmarket",
			Subsystem: "approval",
			Name:      "registrations_total",
			Help:      "Registration attempts by outcome.",
		}, []string{"outcome"}),
		Reviews: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "promptmarket",
			Subsystem: "approval",
			Name:      "reviews_total",
			Help:      "Completed reviews by decision and channel.",
		}, []string{"decision", "channel"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "promptmarket",
			Subsystem: "approval",
			Name:      "notifications_total",
			Help:      "Notification attempts by email kind and result.",
		}, []string{"kind", "result"}),
		CleanedUp: f.NewCounter(prometheus.CounterOpts{
			Namespace: "promptmarket",
			Subsystem: "approval",
			Name:      "cleaned_up_total",
			Help:      "Promoted registrations deleted by cleanup.",
		}),
	}
}
