package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/splitledger/internal/domain"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Settlement metrics
	Settlements        *prometheus.CounterVec
	SettlementDuration *prometheus.HistogramVec
	SettlementSteps    *prometheus.CounterVec

	// Chain gateway metrics
	GatewayBreakerState *prometheus.GaugeVec

	// Outbox metrics
	EventsPublished prometheus.Counter
	EventsFailed    prometheus.Counter

	// Rate limiting metrics
	RateLimitedClients prometheus.Gauge
}

// New creates and registers all Prometheus metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates the metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Settlements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splitledger_settlements_total",
				Help: "Total settlement attempts by outcome status",
			},
			[]string{"status"},
		),
		SettlementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "splitledger_settlement_duration_seconds",
				Help:    "Duration of settlement attempts",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
		SettlementSteps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splitledger_settlement_steps_total",
				Help: "Settlement steps entered",
			},
			[]string{"step"},
		),

		GatewayBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "splitledger_chain_gateway_breaker_state",
				Help: "Chain gateway circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"breaker"},
		),

		EventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "splitledger_outbox_events_published_total",
			Help: "Total outbox events published",
		}),
		EventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "splitledger_outbox_events_failed_total",
			Help: "Total outbox events that failed to publish",
		}),

		RateLimitedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "splitledger_settle_rate_limited_clients",
			Help: "Clients currently tracked by the settlement rate limiter",
		}),
	}
}

// ObserveSettlement records a finished settlement attempt.
func (m *Metrics) ObserveSettlement(status domain.OutcomeStatus, duration time.Duration) {
	label := string(status)
	m.Settlements.WithLabelValues(label).Inc()
	m.SettlementDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveStep records that a settlement entered step.
func (m *Metrics) ObserveStep(step domain.SettlementStep) {
	m.SettlementSteps.WithLabelValues(step.String()).Inc()
}

// ObservePublish counts one outbox relay attempt.
func (m *Metrics) ObservePublish(err error) {
	if err != nil {
		m.EventsFailed.Inc()
		return
	}
	m.EventsPublished.Inc()
}

// SetBreakerState records the state of a named circuit breaker.
func (m *Metrics) SetBreakerState(name string, state int) {
	m.GatewayBreakerState.WithLabelValues(name).Set(float64(state))
}
