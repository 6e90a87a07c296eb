package device

import (
	"context"
	"sync"
	"time"

	"github.com/backkem/rfidlock/pkg/identifier"
)

// ReadStep is one scripted TryRead result.
type ReadStep struct {
	ID  identifier.Identifier
	Err error
}

// Card returns a step presenting raw as a card.
func Card(raw ...byte) ReadStep {
	return ReadStep{ID: identifier.MustNew(raw...)}
}

// NoCard returns an empty step.
func NoCard() ReadStep {
	return ReadStep{}
}

// ReadError returns a step failing with err.
func ReadError(err error) ReadStep {
	return ReadStep{Err: err}
}

// ScriptedReader replays a fixed sequence of reads, then reports no card.
// Useful for driving controllers in tests without hardware.
type ScriptedReader struct {
	mu    sync.Mutex
	steps []ReadStep
	reads int
}

// NewScriptedReader creates a reader that returns steps in order.
func NewScriptedReader(steps ...ReadStep) *ScriptedReader {
	return &ScriptedReader{steps: steps}
}

// Push appends more steps.
func (r *ScriptedReader) Push(steps ...ReadStep) {
	r.mu.Lock()
	r.steps = append(r.steps, steps...)
	r.mu.Unlock()
}

// TryRead implements Reader.
func (r *ScriptedReader) TryRead() (identifier.Identifier, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	if len(r.steps) == 0 {
		return identifier.Identifier{}, false, nil
	}
	step := r.steps[0]
	r.steps = r.steps[1:]
	if step.Err != nil {
		return identifier.Identifier{}, false, step.Err
	}
	return step.ID, !step.ID.IsZero(), nil
}

// Reads returns the number of TryRead calls.
func (r *ScriptedReader) Reads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

// Remaining returns the number of unconsumed steps.
func (r *ScriptedReader) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.steps)
}

// RecordingActuator records actuator calls.
type RecordingActuator struct {
	mu      sync.Mutex
	calls   []string
	holds   []time.Duration
	LockErr error
	// UnlockErr is returned by UnlockFor without holding.
	UnlockErr error
}

// Lock implements Actuator.
func (a *RecordingActuator) Lock() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, "lock")
	return a.LockErr
}

// UnlockFor implements Actuator. It records d and does not sleep.
func (a *RecordingActuator) UnlockFor(_ context.Context, d time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, "unlock")
	a.holds = append(a.holds, d)
	return a.UnlockErr
}

// Calls returns the recorded call names ("lock", "unlock") in order.
func (a *RecordingActuator) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

// Holds returns the durations passed to UnlockFor.
func (a *RecordingActuator) Holds() []time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]time.Duration(nil), a.holds...)
}

// Feedback event names recorded by RecordingFeedback.
const (
	EventIdle          = "idle"
	EventEnrollPrompt  = "enroll-prompt"
	EventEnrollCommit  = "enroll-commit"
	EventAccessGranted = "granted"
	EventAccessDenied  = "denied"
)

// RecordingFeedback records feedback notifications.
type RecordingFeedback struct {
	mu        sync.Mutex
	events    []string
	committed []identifier.Identifier
}

func (f *RecordingFeedback) record(ev string) {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
}

// OnIdle records EventIdle.
func (f *RecordingFeedback) OnIdle() { f.record(EventIdle) }

// OnEnrollmentPrompt records EventEnrollPrompt.
func (f *RecordingFeedback) OnEnrollmentPrompt() { f.record(EventEnrollPrompt) }

// OnAccessGranted records EventAccessGranted.
func (f *RecordingFeedback) OnAccessGranted() { f.record(EventAccessGranted) }

// OnAccessDenied records EventAccessDenied.
func (f *RecordingFeedback) OnAccessDenied() { f.record(EventAccessDenied) }

// OnEnrollmentCommitted records EventEnrollCommit and keeps id.
func (f *RecordingFeedback) OnEnrollmentCommitted(id identifier.Identifier) {
	f.mu.Lock()
	f.events = append(f.events, EventEnrollCommit)
	f.committed = append(f.committed, id)
	f.mu.Unlock()
}

// Events returns the recorded events in order.
func (f *RecordingFeedback) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// Count returns how often ev was recorded.
func (f *RecordingFeedback) Count(ev string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e == ev {
			n++
		}
	}
	return n
}

// Committed returns identifiers passed to OnEnrollmentCommitted.
func (f *RecordingFeedback) Committed() []identifier.Identifier {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]identifier.Identifier(nil), f.committed...)
}

var (
	_ Reader   = (*ScriptedReader)(nil)
	_ Actuator = (*RecordingActuator)(nil)
	_ Feedback = (*RecordingFeedback)(nil)
)
