package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/backkem/rfidlock/pkg/access"
	"github.com/backkem/rfidlock/pkg/device"
	"github.com/backkem/rfidlock/pkg/enroll"
	"github.com/backkem/rfidlock/pkg/identifier"
	"github.com/backkem/rfidlock/pkg/store"
	"github.com/pion/logging"
)

// Stats summarizes access decisions since the device started.
type Stats struct {
	Grants       uint64
	Denies       uint64
	LastDecision time.Time       // zero before the first decision
	LastOutcome  access.Decision // meaningful only if LastDecision is set
}

// Device is a running single-credential door lock.
// Run drives it from one goroutine; the accessors may be called from others.
type Device struct {
	config Config
	log    logging.LeveledLogger
	store  *store.Store

	mu      sync.RWMutex
	state   State
	trusted identifier.Identifier
	running bool
	stats   Stats
}

// New creates a device and loads the stored credential. The device starts
// in StateIdle if a credential is present and StateUninitialized otherwise.
func New(config Config) (*Device, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	d := &Device{config: config}
	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("lock")
	}

	st, err := store.New(store.Config{
		Region:        config.Region,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	d.store = st

	if id, ok := st.Load(); ok {
		d.trusted = id
		d.state = StateIdle
	} else {
		d.state = StateUninitialized
	}

	if d.log != nil {
		d.log.Infof("device created, state=%s", d.state)
	}
	return d, nil
}

// State returns the current device state.
func (d *Device) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Enrolled reports whether a trusted credential is stored.
func (d *Device) Enrolled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return !d.trusted.IsZero()
}

// TrustedFingerprint returns the log fingerprint of the trusted credential,
// or "" when none is enrolled.
func (d *Device) TrustedFingerprint() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.trusted.IsZero() {
		return ""
	}
	return d.trusted.Fingerprint()
}

// Stats returns a snapshot of the decision counters.
func (d *Device) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats
}

func (d *Device) setState(s State) {
	d.mu.Lock()
	changed := d.state != s
	d.state = s
	d.mu.Unlock()

	if !changed {
		return
	}
	if d.log != nil {
		d.log.Debugf("state -> %s", s)
	}
	if d.config.OnStateChanged != nil {
		d.config.OnStateChanged(s)
	}
}

// Run locks the bolt, enrolls a credential if none is stored and then
// serves access decisions until ctx is cancelled. It returns nil on
// cancellation and leaves the device in StateStopped.
func (d *Device) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	if !d.state.CanRun() {
		d.mu.Unlock()
		return ErrStopped
	}
	d.running = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
		d.setState(StateStopped)
		if d.log != nil {
			d.log.Info("device stopped")
		}
	}()

	if err := d.config.Actuator.Lock(); err != nil {
		return fmt.Errorf("%w: %v", ErrInitialLock, err)
	}

	if !d.Enrolled() {
		if err := d.enroll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		device.Discard(d.config.Reader)
	}

	return d.serve(ctx)
}

// enroll captures the first card and holds the confirmation feedback.
func (d *Device) enroll(ctx context.Context) error {
	ctrl, err := enroll.New(enroll.Config{
		Store:         d.store,
		Reader:        d.config.Reader,
		Feedback:      d.config.Feedback,
		PollInterval:  d.config.EnrollPollInterval,
		LoggerFactory: d.config.LoggerFactory,
	})
	if err != nil {
		return err
	}

	d.setState(StateEnrolling)
	id, err := ctrl.Run(ctx)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.trusted = id
	d.mu.Unlock()

	if d.config.OnEnrolled != nil {
		d.config.OnEnrolled(id)
	}
	return device.Sleep(ctx, d.config.CommitHold)
}

// serve runs the access loop.
func (d *Device) serve(ctx context.Context) error {
	d.mu.RLock()
	trusted := d.trusted
	d.mu.RUnlock()

	ctrl, err := access.New(access.Config{
		Trusted:        trusted,
		Reader:         d.config.Reader,
		Actuator:       d.config.Actuator,
		Feedback:       d.config.Feedback,
		UnlockDuration: d.config.UnlockDuration,
		LoggerFactory:  d.config.LoggerFactory,
		OnStateChanged: d.onAccessState,
		OnDecision:     d.onDecision,
	})
	if err != nil {
		return err
	}

	d.setState(StateIdle)
	d.config.Feedback.OnIdle()

	for ctx.Err() == nil {
		if _, ok := ctrl.Poll(ctx); ok {
			if device.Sleep(ctx, d.config.SettleDelay) != nil {
				break
			}
			// Taps during the settle delay belong to the finished decision.
			device.Discard(d.config.Reader)
			d.setState(StateIdle)
			d.config.Feedback.OnIdle()
			continue
		}
		if device.Sleep(ctx, d.config.PollInterval) != nil {
			break
		}
	}
	return nil
}

// onAccessState mirrors the controller's states. The device reports Idle
// itself once the settle delay is over.
func (d *Device) onAccessState(s access.State) {
	switch s {
	case access.StateEvaluating:
		d.setState(StateEvaluating)
	case access.StateGranting:
		d.setState(StateGranting)
	case access.StateDenying:
		d.setState(StateDenying)
	}
}

func (d *Device) onDecision(dec access.Decision, scanned identifier.Identifier) {
	d.mu.Lock()
	if dec == access.Granted {
		d.stats.Grants++
	} else {
		d.stats.Denies++
	}
	d.stats.LastDecision = time.Now()
	d.stats.LastOutcome = dec
	d.mu.Unlock()

	if d.config.OnDecision != nil {
		d.config.OnDecision(dec, scanned)
	}
}

