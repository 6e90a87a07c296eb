package device

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pion/logging"
)

// Servo angles of the reference wiring.
const (
	LockAngle   = 10
	UnlockAngle = 100
)

// ErrServoClosed is returned when the servo has been detached.
var ErrServoClosed = errors.New("device: servo detached")

// ServoConfig configures a simulated servo actuator.
type ServoConfig struct {
	// LockAngle and UnlockAngle default to the reference wiring.
	LockAngle   int
	UnlockAngle int

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	// OnMove is called after every position change. Optional.
	OnMove func(angle int)
}

func (c *ServoConfig) applyDefaults() {
	if c.LockAngle == 0 {
		c.LockAngle = LockAngle
	}
	if c.UnlockAngle == 0 {
		c.UnlockAngle = UnlockAngle
	}
}

// Servo is a simulated positional servo bolt.
type Servo struct {
	config ServoConfig
	log    logging.LeveledLogger

	mu       sync.Mutex
	angle    int
	unlocks  int
	detached bool
}

// NewServo creates a servo. The initial position is unknown until Lock.
func NewServo(config ServoConfig) *Servo {
	config.applyDefaults()
	s := &Servo{config: config, angle: -1}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("servo")
	}
	return s
}

// Lock moves to the lock angle.
func (s *Servo) Lock() error {
	return s.move(s.config.LockAngle)
}

// UnlockFor moves to the unlock angle, holds for d, then relocks.
// The bolt is relocked even if ctx ends the hold early.
func (s *Servo) UnlockFor(ctx context.Context, d time.Duration) error {
	if err := s.move(s.config.UnlockAngle); err != nil {
		return err
	}
	s.mu.Lock()
	s.unlocks++
	s.mu.Unlock()

	holdErr := Sleep(ctx, d)
	if err := s.Lock(); err != nil {
		return err
	}
	if holdErr != nil && s.log != nil {
		s.log.Debugf("unlock hold cut short: %v", holdErr)
	}
	return nil
}

// Angle returns the current position, -1 before the first move.
func (s *Servo) Angle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.angle
}

// Unlocks returns how many times the servo has been unlocked.
func (s *Servo) Unlocks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocks
}

// Detach releases the servo; further moves fail.
func (s *Servo) Detach() {
	s.mu.Lock()
	s.detached = true
	s.mu.Unlock()
}

func (s *Servo) move(angle int) error {
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return ErrServoClosed
	}
	s.angle = angle
	s.mu.Unlock()

	if s.log != nil {
		s.log.Infof("servo -> %d", angle)
	}
	if s.config.OnMove != nil {
		s.config.OnMove(angle)
	}
	return nil
}

var _ Actuator = (*Servo)(nil)
