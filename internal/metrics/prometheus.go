package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventguard_events_published_total",
		Help: "Total number of domain events published, by event type",
	}, []string{"event_type"})

	handlerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventguard_event_handler_errors_total",
		Help: "Total number of event handler failures, by event type",
	}, []string{"event_type"})

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "eventguard_circuit_breaker_state",
		Help: "Circuit breaker state by breaker (active state=1; others 0)",
	}, []string{"breaker", "state"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventguard_circuit_breaker_trips_total",
		Help: "Total number of circuit breaker trips (transitions to open state)",
	}, []string{"breaker", "reason"})

	circuitBreakerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventguard_circuit_breaker_calls_total",
		Help: "Total number of guarded calls by outcome",
	}, []string{"breaker", "outcome"})
)

var circuitStates = []string{"CLOSED", "HALF_OPEN", "OPEN"}

// SetCircuitBreakerState records the active state for a breaker.
func SetCircuitBreakerState(breaker, state string) {
	for _, s := range circuitStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		circuitBreakerState.WithLabelValues(breaker, s).Set(value)
	}
}

// RecordCircuitBreakerTrip increments the trip counter when a breaker opens.
func RecordCircuitBreakerTrip(breaker, reason string) {
	circuitBreakerTrips.WithLabelValues(breaker, reason).Inc()
}

// RecordCircuitBreakerCall counts a call outcome (success, failure, ignored, reject).
func RecordCircuitBreakerCall(breaker, outcome string) {
	circuitBreakerCalls.WithLabelValues(breaker, outcome).Inc()
}
