package lock

import (
	"time"

	"github.com/backkem/rfidlock/pkg/access"
	"github.com/backkem/rfidlock/pkg/device"
	"github.com/backkem/rfidlock/pkg/enroll"
	"github.com/backkem/rfidlock/pkg/identifier"
	"github.com/backkem/rfidlock/pkg/nvm"
	"github.com/pion/logging"
)

// Default timings of the reference device.
const (
	DefaultPollInterval = 15 * time.Millisecond
	DefaultSettleDelay  = 700 * time.Millisecond
	DefaultCommitHold   = 1200 * time.Millisecond
)

// Config holds all configuration for a lock Device.
type Config struct {
	// Storage - Required
	Region nvm.Region // Holds the trusted credential

	// Collaborators - Required
	Reader   device.Reader
	Actuator device.Actuator
	Feedback device.Feedback

	// Timing - Optional (uses defaults if zero)
	UnlockDuration     time.Duration // Lock open time after a grant (default: 3s)
	PollInterval       time.Duration // Reader poll interval when idle (default: 15ms)
	EnrollPollInterval time.Duration // Reader poll interval while enrolling (default: 10ms)
	SettleDelay        time.Duration // Pause after a decision before idle feedback (default: 700ms)
	CommitHold         time.Duration // Pause after enrollment before idle feedback (default: 1.2s)

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	// Callbacks - Optional
	OnStateChanged func(state State)
	OnEnrolled     func(id identifier.Identifier)
	OnDecision     func(d access.Decision, scanned identifier.Identifier)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Region == nil {
		return ErrRegionRequired
	}
	if c.Reader == nil {
		return ErrReaderRequired
	}
	if c.Actuator == nil {
		return ErrActuatorRequired
	}
	if c.Feedback == nil {
		return ErrFeedbackRequired
	}
	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *Config) applyDefaults() {
	if c.UnlockDuration <= 0 {
		c.UnlockDuration = access.DefaultUnlockDuration
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.EnrollPollInterval <= 0 {
		c.EnrollPollInterval = enroll.DefaultPollInterval
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.CommitHold <= 0 {
		c.CommitHold = DefaultCommitHold
	}
}
