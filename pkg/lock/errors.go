package lock

import "errors"

// Package-level errors.
var (
	// ErrRegionRequired is returned when Region is nil.
	ErrRegionRequired = errors.New("lock: region is required")

	// ErrReaderRequired is returned when Reader is nil.
	ErrReaderRequired = errors.New("lock: reader is required")

	// ErrActuatorRequired is returned when Actuator is nil.
	ErrActuatorRequired = errors.New("lock: actuator is required")

	// ErrFeedbackRequired is returned when Feedback is nil.
	ErrFeedbackRequired = errors.New("lock: feedback is required")

	// ErrAlreadyRunning is returned when Run is called on a running device.
	ErrAlreadyRunning = errors.New("lock: device already running")

	// ErrStopped is returned when Run is called after the device stopped.
	ErrStopped = errors.New("lock: device stopped")

	// ErrInitialLock is returned when the bolt cannot be locked at start.
	ErrInitialLock = errors.New("lock: initial lock failed")
)
