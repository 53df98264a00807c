// Package handler implements the introspection HTTP endpoints: liveness,
// event bus metrics and history, circuit breaker state and Prometheus
// metrics, plus an endpoint to publish events onto the bus.
package handler
