// Package httpserver wraps net/http's server with address validation and a
// context-driven graceful shutdown.
package httpserver
