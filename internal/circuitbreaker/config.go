package circuitbreaker

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config is shared by every breaker a Registry creates.
type Config struct {
	// FailureThreshold is the number of counted failures inside RollingWindow
	// that opens the breaker.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive successful probes needed
	// to close a half-open breaker.
	SuccessThreshold int
	// Timeout is the OPEN -> HALF_OPEN cooldown. It does not bound call duration.
	Timeout       time.Duration
	RollingWindow time.Duration
	// IgnoredErrorCodes lists CodedError codes that say nothing about the
	// dependency's health, such as provider rate limits.
	IgnoredErrorCodes []string
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold:  5,
		SuccessThreshold:  1,
		Timeout:           30 * time.Second,
		RollingWindow:     60 * time.Second,
		IgnoredErrorCodes: []string{"rate_limit_exceeded", "insufficient_quota"},
	}
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.FailureThreshold, validation.Required, validation.Min(1)),
		validation.Field(&c.SuccessThreshold, validation.Required, validation.Min(1)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.RollingWindow, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.IgnoredErrorCodes, validation.Each(validation.Required)),
	)
}

func (c Config) ignoreSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.IgnoredErrorCodes))
	for _, code := range c.IgnoredErrorCodes {
		set[code] = struct{}{}
	}
	return set
}
