package sched

import "errors"

// Error kinds recorded on failed execution results. Rate-limit denials are
// admission failures, not execution failures, and record no result at all.
const (
	// ErrorKindExecution: the collector returned (or panicked with) an error.
	ErrorKindExecution = "execution_error"
	// ErrorKindValidation: no collector is registered for the job's category
	// at dispatch time.
	ErrorKindValidation = "validation_error"
)

var (
	ErrStopped        = errors.New("scheduler stopped")
	ErrNotRunning     = errors.New("scheduler not running")
	ErrAlreadyRunning = errors.New("scheduler already running")
)
