package feedback

import (
	"github.com/backkem/rfidlock/pkg/device"
	"github.com/backkem/rfidlock/pkg/identifier"
)

// Multi forwards every notification to each output in order.
type Multi []device.Feedback

// NewMulti drops nil outputs.
func NewMulti(outputs ...device.Feedback) Multi {
	m := make(Multi, 0, len(outputs))
	for _, o := range outputs {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

// OnIdle forwards to every member.
func (m Multi) OnIdle() {
	for _, f := range m {
		f.OnIdle()
	}
}

// OnEnrollmentPrompt forwards to every member.
func (m Multi) OnEnrollmentPrompt() {
	for _, f := range m {
		f.OnEnrollmentPrompt()
	}
}

// OnEnrollmentCommitted forwards to every member.
func (m Multi) OnEnrollmentCommitted(id identifier.Identifier) {
	for _, f := range m {
		f.OnEnrollmentCommitted(id)
	}
}

// OnAccessGranted forwards to every member.
func (m Multi) OnAccessGranted() {
	for _, f := range m {
		f.OnAccessGranted()
	}
}

// OnAccessDenied forwards to every member.
func (m Multi) OnAccessDenied() {
	for _, f := range m {
		f.OnAccessDenied()
	}
}

var _ device.Feedback = Multi(nil)
