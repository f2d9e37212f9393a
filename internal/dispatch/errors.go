package dispatch

import "fmt"

// Error taxonomy for the dispatch layer. Each kind has an exported predicate
// so the HTTP layer can map errors to status codes without string matching.
// Validation and ServiceUnavailable reject before admission; the rest are
// post-admission failures and always leave a usage record behind.

// validationError signals malformed caller input (400).
type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

// ErrValidation constructs a validation error.
func ErrValidation(format string, args ...any) error {
	return validationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err indicates malformed caller input.
func IsValidation(err error) bool {
	_, ok := err.(validationError)
	return ok
}

// overloadedError signals that no inference slot freed up in time (503).
type overloadedError struct{}

func (overloadedError) Error() string { return "overloaded: no inference slot available" }

// ErrOverloaded constructs an overloaded error.
func ErrOverloaded() error { return overloadedError{} }

// IsOverloaded reports whether err indicates slot-pool backpressure.
func IsOverloaded(err error) bool {
	_, ok := err.(overloadedError)
	return ok
}

// sessionBusyError signals a concurrent request on the same session (409).
type sessionBusyError struct{ sessionID string }

func (e sessionBusyError) Error() string {
	return "session busy: a request is already in flight for " + e.sessionID
}

// ErrSessionBusy constructs a session-busy error for the given session.
func ErrSessionBusy(sessionID string) error { return sessionBusyError{sessionID: sessionID} }

// IsSessionBusy reports whether err indicates per-session contention.
func IsSessionBusy(err error) bool {
	_, ok := err.(sessionBusyError)
	return ok
}

// inferenceTimeoutError signals the model exceeded the request timeout (502).
type inferenceTimeoutError struct{}

func (inferenceTimeoutError) Error() string { return "inference timed out" }

// ErrInferenceTimeout constructs an inference-timeout error.
func ErrInferenceTimeout() error { return inferenceTimeoutError{} }

// IsInferenceTimeout reports whether err indicates a generation timeout.
func IsInferenceTimeout(err error) bool {
	_, ok := err.(inferenceTimeoutError)
	return ok
}

// inferenceError signals a process-level generation failure (502).
type inferenceError struct{ cause error }

func (e inferenceError) Error() string { return "inference failed: " + e.cause.Error() }
func (e inferenceError) Unwrap() error { return e.cause }

// ErrInference wraps a process-level generation failure.
func ErrInference(cause error) error { return inferenceError{cause: cause} }

// IsInference reports whether err indicates a process-level failure.
func IsInference(err error) bool {
	_, ok := err.(inferenceError)
	return ok
}

// serviceUnavailableError signals the model process is not serving (503).
type serviceUnavailableError struct{ health string }

func (e serviceUnavailableError) Error() string {
	return "service unavailable: model process is " + e.health
}

// ErrServiceUnavailable constructs an unavailable error naming the health state.
func ErrServiceUnavailable(health string) error { return serviceUnavailableError{health: health} }

// IsServiceUnavailable reports whether err indicates an unhealthy process.
func IsServiceUnavailable(err error) bool {
	_, ok := err.(serviceUnavailableError)
	return ok
}
