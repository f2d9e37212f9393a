package supervisor

import (
	"fmt"
	"time"
)

// startupTimeoutError signals that the process never answered a health probe
// within the startup window.
type startupTimeoutError struct{ after time.Duration }

func (e startupTimeoutError) Error() string {
	return fmt.Sprintf("model process not ready within %s", e.after)
}

// IsStartupTimeout reports whether err is a startup-window timeout.
func IsStartupTimeout(err error) bool {
	_, ok := err.(startupTimeoutError)
	return ok
}

// startupFailedError carries a stderr tail from a process that exited before
// becoming ready.
type startupFailedError struct {
	msg    string
	stderr string
}

func (e startupFailedError) Error() string {
	if e.stderr == "" {
		return e.msg
	}
	return e.msg + "; stderr tail: " + e.stderr
}

// IsStartupFailed reports whether err indicates an early process exit.
func IsStartupFailed(err error) bool {
	_, ok := err.(startupFailedError)
	return ok
}
