// Package circuitbreaker implements the circuit breaker pattern for calls to
// an unreliable dependency such as an AI completion API.
//
// A breaker has three states:
//
//   - CLOSED: calls pass through, counted failures accumulate in a rolling window
//   - OPEN: calls are short-circuited to a fallback or an *OpenError
//   - HALF_OPEN: a single probe call tests whether the dependency recovered
//
// Errors are classified by the code carried in a *CodedError. Codes listed in
// Config.IgnoredErrorCodes (provider rate limits, for example) are returned to
// the caller without touching the breaker; every other error counts.
//
// Usage:
//
//	registry, _ := circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig())
//	complete, _ := circuitbreaker.Register(registry, "ai.complete", client.Complete)
//	complete.Fallback(func(ctx context.Context, req Request, err error) (Response, error) {
//	    return cannedResponse, nil
//	})
//	complete.On(circuitbreaker.EventOpen, func(n circuitbreaker.Notification) {
//	    log.Warn("breaker opened", "breaker", n.Breaker)
//	})
//	resp, err := complete.Fire(ctx, req)
package circuitbreaker
