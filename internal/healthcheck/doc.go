// Package healthcheck periodically pings the AI provider and announces
// changes in its availability on the event bus.
package healthcheck
