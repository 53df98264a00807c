// Package ai adapts the external AI provider. OpenAIClient talks to the
// OpenAI API and tags failures with the provider's error code; WrapClient
// turns any Client into a GuardedClient with one circuit breaker per method.
package ai
