// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including server settings, event history capacity, the shared circuit breaker
// settings and the AI provider connection.
package config
