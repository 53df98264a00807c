// Package app assembles the event bus, the circuit breakers guarding the AI
// provider and the introspection server into one explicitly owned
// application context.
package app
