// Package enroll captures the first presented card as the trusted credential.
//
// The controller runs only on a device with no stored credential. It prompts,
// waits for any card, saves it and reports it back. There is no confirmation
// step and no timeout: whoever taps first becomes the owner.
package enroll

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/backkem/rfidlock/pkg/device"
	"github.com/backkem/rfidlock/pkg/identifier"
	"github.com/pion/logging"
)

// DefaultPollInterval is the reader poll interval while waiting for a card.
const DefaultPollInterval = 10 * time.Millisecond

var (
	// ErrAlreadyEnrolled is returned by Run when a credential is already stored.
	ErrAlreadyEnrolled = errors.New("enroll: credential already enrolled")

	// ErrStoreRequired is returned when Config.Store is nil.
	ErrStoreRequired = errors.New("enroll: store is required")

	// ErrReaderRequired is returned when Config.Reader is nil.
	ErrReaderRequired = errors.New("enroll: reader is required")

	// ErrFeedbackRequired is returned when Config.Feedback is nil.
	ErrFeedbackRequired = errors.New("enroll: feedback is required")
)

// State is the enrollment progress.
type State int

const (
	// StateWaiting means no card has been captured yet.
	StateWaiting State = iota

	// StateCapturing means a card was read and is being persisted.
	StateCapturing

	// StateCommitted means the credential is stored. Terminal.
	StateCommitted
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateWaiting:
		return "Waiting"
	case StateCapturing:
		return "Capturing"
	case StateCommitted:
		return "Committed"
	default:
		return "Unknown"
	}
}

// Store is the part of the credential store enrollment needs.
type Store interface {
	// Load reads the stored credential, reporting false when none is valid.
	Load() (identifier.Identifier, bool)
	Save(id identifier.Identifier) error
}

// Config configures a Controller.
type Config struct {
	Store    Store
	Reader   device.Reader
	Feedback device.Feedback

	// PollInterval between reader polls (default: 10ms).
	PollInterval time.Duration

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	// OnStateChanged is called on every state transition. Optional.
	OnStateChanged func(State)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Store == nil {
		return ErrStoreRequired
	}
	if c.Reader == nil {
		return ErrReaderRequired
	}
	if c.Feedback == nil {
		return ErrFeedbackRequired
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
}

// Controller runs first-card enrollment.
type Controller struct {
	config Config
	log    logging.LeveledLogger

	mu    sync.Mutex
	state State
}

// New creates an enrollment controller in StateWaiting.
func New(config Config) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	c := &Controller{config: config, state: StateWaiting}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("enroll")
	}
	return c, nil
}

// State returns the current enrollment state.
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

// Run blocks until a card is captured and stored, then returns it.
// It returns ErrAlreadyEnrolled without touching the reader when the store
// already holds a valid credential.
// ctx only serves process shutdown; a cancelled Run returns ctx.Err() and
// leaves the store untouched.
func (c *Controller) Run(ctx context.Context) (identifier.Identifier, error) {
	if existing, ok := c.config.Store.Load(); ok {
		if c.log != nil {
			c.log.Warnf("refusing to enroll over stored credential fp=%s", existing.Fingerprint())
		}
		return identifier.Identifier{}, ErrAlreadyEnrolled
	}

	c.setState(StateWaiting)
	c.config.Feedback.OnEnrollmentPrompt()
	if c.log != nil {
		c.log.Info("no trusted credential, waiting for first card")
	}

	for {
		id, err := device.WaitForCard(ctx, c.config.Reader, c.config.PollInterval, c.readFailed)
		if err != nil {
			return identifier.Identifier{}, err
		}

		c.setState(StateCapturing)
		if err := c.config.Store.Save(id); err != nil {
			// An unsaved capture would be lost on reboot and must not open the door.
			if c.log != nil {
				c.log.Errorf("save credential fp=%s: %v", id.Fingerprint(), err)
			}
			c.setState(StateWaiting)
			continue
		}

		c.setState(StateCommitted)
		if c.log != nil {
			c.log.Infof("enrolled credential fp=%s len=%d", id.Fingerprint(), id.Len())
		}
		c.config.Feedback.OnEnrollmentCommitted(id)
		return id, nil
	}
}

func (c *Controller) readFailed(err error) {
	if c.log != nil {
		c.log.Warnf("reader: %v", err)
	}
}
