// Package metrics provides the observability state behind the event bus and
// the circuit breakers.
//
// It contains:
//   - Store: published-event, per-type and handler-error counters for the bus
//   - Ring: a fixed-capacity, oldest-evicted buffer used for event history
//   - Collector: a channel-fed aggregator of breaker lifecycle notifications
//   - Prometheus instruments mirroring both
//
// The collector runs in a dedicated goroutine and never blocks the guarded
// call path: Emit drops the event when the buffer is full. On shutdown it
// drains whatever is still buffered.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, log)
//	collector.Start(ctx)
//	collector.Emit(metrics.BreakerEvent{
//		Type:    metrics.BreakerOpened,
//		Breaker: "ai.complete",
//		State:   "OPEN",
//	})
//	snap := collector.Snapshot()
package metrics
