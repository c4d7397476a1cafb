package health

import (
	"errors"
	"fmt"
	"time"
)

// ErrProbeUnreachable is matched by every error returned once a node could not
// be probed within the configured attempts
var ErrProbeUnreachable = errors.New("probe unreachable")

// Config controls a diagnostic probe. Every knob is supplied by the caller.
type Config struct {
	// Timeout bounds a single attempt (connect, write and read)
	Timeout time.Duration

	// Retries is the number of additional attempts after the first failure
	Retries int

	// RetryDelay is the fixed pause between attempts
	RetryDelay time.Duration

	// Command is the diagnostic command sent to the node (e.g. "mntr")
	Command string
}

// Validate checks that the probe can run with this configuration
func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("probe timeout must be positive")
	}
	if c.Retries < 0 {
		return fmt.Errorf("probe retries must not be negative")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("probe retry delay must not be negative")
	}
	if c.Command == "" {
		return fmt.Errorf("probe command is required")
	}
	return nil
}

// UnreachableError reports a node that failed every probe attempt
type UnreachableError struct {
	Endpoint string
	Attempts int
	Err      error // last underlying cause
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("failed to fetch metrics from %s after %d attempts: %v", e.Endpoint, e.Attempts, e.Err)
}

// Unwrap returns the last underlying cause
func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrProbeUnreachable) hold for every UnreachableError
func (e *UnreachableError) Is(target error) bool {
	return target == ErrProbeUnreachable
}
