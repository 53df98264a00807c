package circuitbreaker

import (
	"errors"
	"fmt"
)

var (
	// ErrBreakerOpen is returned by Fire while the breaker short-circuits and
	// no fallback is registered.
	ErrBreakerOpen = errors.New("circuit breaker is open")

	// ErrDuplicateBreaker is returned when a Registry already holds the name.
	ErrDuplicateBreaker = errors.New("circuit breaker already registered")
)

// OpenError names the breaker that rejected a call.
type OpenError struct {
	Breaker string
	State   State
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is %s", e.Breaker, e.State)
}

func (e *OpenError) Is(target error) bool {
	return target == ErrBreakerOpen
}

// CodedError carries the error code the breaker classifies against its
// ignore-set. Dependencies report failures through it.
type CodedError struct {
	Code string
	Err  error
}

// NewCodedError wraps err with code.
func NewCodedError(code string, err error) *CodedError {
	return &CodedError{Code: code, Err: err}
}

func (e *CodedError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *CodedError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of the first CodedError in err's chain, or "".
func ErrorCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}
