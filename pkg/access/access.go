// Package access decides, for every presented card, whether to open the lock.
//
// A decision is a strict sequence: Idle, Evaluating, then exactly one of
// Granting or Denying, then Idle again. The next card is not read until the
// current decision, including the unlock hold, has finished, and cards
// tapped in the meantime are discarded rather than queued.
package access

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/backkem/rfidlock/pkg/device"
	"github.com/backkem/rfidlock/pkg/identifier"
	"github.com/pion/logging"
)

// DefaultUnlockDuration is how long the lock stays open after a grant.
const DefaultUnlockDuration = 3 * time.Second

var (
	// ErrTrustedRequired is returned when Config.Trusted is absent.
	ErrTrustedRequired = errors.New("access: trusted credential is required")

	// ErrReaderRequired is returned when Config.Reader is nil.
	ErrReaderRequired = errors.New("access: reader is required")

	// ErrActuatorRequired is returned when Config.Actuator is nil.
	ErrActuatorRequired = errors.New("access: actuator is required")

	// ErrFeedbackRequired is returned when Config.Feedback is nil.
	ErrFeedbackRequired = errors.New("access: feedback is required")
)

// State is the access controller state.
type State int

const (
	// StateIdle means the controller is waiting for a card.
	StateIdle State = iota

	// StateEvaluating means a card is being compared with the trusted one.
	StateEvaluating

	// StateGranting means the lock is held open.
	StateGranting

	// StateDenying means a non-matching card is being rejected.
	StateDenying
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateEvaluating:
		return "Evaluating"
	case StateGranting:
		return "Granting"
	case StateDenying:
		return "Denying"
	default:
		return "Unknown"
	}
}

// Decision is the outcome of evaluating one card.
type Decision int

const (
	// Denied leaves the lock shut.
	Denied Decision = iota

	// Granted opens the lock for UnlockDuration.
	Granted
)

// String returns "granted" or "denied".
func (d Decision) String() string {
	if d == Granted {
		return "granted"
	}
	return "denied"
}

// Config configures a Controller.
type Config struct {
	// Trusted is the enrolled credential. Required.
	Trusted identifier.Identifier

	Reader   device.Reader
	Actuator device.Actuator
	Feedback device.Feedback

	// UnlockDuration for a grant (default: 3s).
	UnlockDuration time.Duration

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	// Callbacks - Optional
	OnStateChanged func(State)
	OnDecision     func(d Decision, scanned identifier.Identifier)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Trusted.IsZero() {
		return ErrTrustedRequired
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

func (c *Config) applyDefaults() {
	if c.UnlockDuration <= 0 {
		c.UnlockDuration = DefaultUnlockDuration
	}
}

// Controller evaluates cards against the trusted credential.
type Controller struct {
	config Config
	log    logging.LeveledLogger

	mu    sync.Mutex
	state State
}

// New creates an access controller in StateIdle.
func New(config Config) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	c := &Controller{config: config, state: StateIdle}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("access")
	}
	return c, nil
}

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()

	if changed && c.config.OnStateChanged != nil {
		c.config.OnStateChanged(s)
	}
}

// Poll runs one non-blocking iteration: read the reader once and, if a card
// is present, evaluate it. ok is false when no card was read. Reader errors
// count as no card.
func (c *Controller) Poll(ctx context.Context) (d Decision, ok bool) {
	id, present, err := c.config.Reader.TryRead()
	if err != nil {
		if c.log != nil {
			c.log.Warnf("reader: %v", err)
		}
		return Denied, false
	}
	if !present || id.IsZero() {
		return Denied, false
	}
	return c.Evaluate(ctx, id), true
}

// Evaluate decides on scanned and drives the outputs. It returns once the
// controller is back in StateIdle.
func (c *Controller) Evaluate(ctx context.Context, scanned identifier.Identifier) Decision {
	c.setState(StateEvaluating)

	d := Denied
	if identifier.Equal(scanned, c.config.Trusted) {
		d = Granted
	}

	if d == Granted {
		c.grant(ctx, scanned)
	} else {
		c.deny(scanned)
	}

	if c.config.OnDecision != nil {
		c.config.OnDecision(d, scanned)
	}
	if n := device.Discard(c.config.Reader); n > 0 && c.log != nil {
		c.log.Debugf("dropped %d cards tapped during the decision", n)
	}
	c.setState(StateIdle)
	return d
}

func (c *Controller) grant(ctx context.Context, scanned identifier.Identifier) {
	c.setState(StateGranting)
	if c.log != nil {
		c.log.Infof("access granted fp=%s", scanned.Fingerprint())
	}
	c.config.Feedback.OnAccessGranted()

	if err := c.config.Actuator.UnlockFor(ctx, c.config.UnlockDuration); err != nil {
		if c.log != nil {
			c.log.Errorf("unlock: %v", err)
		}
		if err := c.config.Actuator.Lock(); err != nil && c.log != nil {
			c.log.Errorf("relock after failed unlock: %v", err)
		}
	}
}

func (c *Controller) deny(scanned identifier.Identifier) {
	c.setState(StateDenying)
	if c.log != nil {
		c.log.Infof("access denied fp=%s", scanned.Fingerprint())
	}
	c.config.Feedback.OnAccessDenied()
}
