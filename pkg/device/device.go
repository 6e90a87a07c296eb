// Package device defines the external collaborators a lock controller talks
// to: the card reader, the lock actuator and the user feedback surface.
//
// Implementations live elsewhere (pkg/reader, pkg/feedback, Servo in this
// package); the controllers in pkg/enroll and pkg/access only see these
// interfaces.
package device

import (
	"context"
	"time"

	"github.com/backkem/rfidlock/pkg/identifier"
)

// Reader is a non-blocking proximity card reader.
type Reader interface {
	// TryRead returns the identifier of a card currently presented.
	// ok is false when no card is in the field. A non-nil error is a
	// transport failure; callers treat it as "no card".
	TryRead() (id identifier.Identifier, ok bool, err error)
}

// Discarder is implemented by readers that buffer presentations. Discard
// drops everything pending and returns how many were dropped.
type Discarder interface {
	Discard() int
}

// Discard drops presentations buffered by r while a controller was busy.
// Readers without a buffer are left alone.
func Discard(r Reader) int {
	if d, ok := r.(Discarder); ok {
		return d.Discard()
	}
	return 0
}

// Actuator drives the physical lock.
type Actuator interface {
	// Lock moves the bolt to the locked position.
	Lock() error

	// UnlockFor unlocks, holds for d and relocks before returning.
	// Relocking is the actuator's responsibility even when ctx is cancelled.
	UnlockFor(ctx context.Context, d time.Duration) error
}

// Feedback is the user-facing notification surface.
// Implementations must not block for long; the control loop waits on them.
type Feedback interface {
	OnIdle()
	OnEnrollmentPrompt()
	OnEnrollmentCommitted(id identifier.Identifier)
	OnAccessGranted()
	OnAccessDenied()
}

// ReadFailureFunc is notified of reader transport errors.
type ReadFailureFunc func(err error)

// WaitForCard polls r every interval until a card is presented or ctx is
// done. Reader errors are passed to onErr (may be nil) and polling continues.
func WaitForCard(ctx context.Context, r Reader, interval time.Duration, onErr ReadFailureFunc) (identifier.Identifier, error) {
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		id, ok, err := r.TryRead()
		switch {
		case err != nil:
			if onErr != nil {
				onErr(err)
			}
		case ok && !id.IsZero():
			return id, nil
		}

		select {
		case <-ctx.Done():
			return identifier.Identifier{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in that case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
