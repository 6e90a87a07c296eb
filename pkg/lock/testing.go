package lock

import (
	"time"

	"github.com/backkem/rfidlock/pkg/device"
	"github.com/backkem/rfidlock/pkg/nvm"
	"github.com/backkem/rfidlock/pkg/store"
)

// TestRig bundles in-memory collaborators for exercising a Device without
// hardware. Timings are shortened so a full enroll/grant cycle completes in
// a few milliseconds.
type TestRig struct {
	Region   *nvm.MemoryRegion
	Reader   *device.ScriptedReader
	Actuator *device.RecordingActuator
	Feedback *device.RecordingFeedback
}

// NewTestRig creates a rig with an erased region and a reader scripted with
// steps.
func NewTestRig(steps ...device.ReadStep) *TestRig {
	return &TestRig{
		Region:   nvm.NewMemoryRegion(store.MinRegionSize),
		Reader:   device.NewScriptedReader(steps...),
		Actuator: &device.RecordingActuator{},
		Feedback: &device.RecordingFeedback{},
	}
}

// Config returns a Config wired to the rig.
func (r *TestRig) Config() Config {
	return Config{
		Region:             r.Region,
		Reader:             r.Reader,
		Actuator:           r.Actuator,
		Feedback:           r.Feedback,
		UnlockDuration:     time.Millisecond,
		PollInterval:       time.Millisecond,
		EnrollPollInterval: time.Millisecond,
		SettleDelay:        time.Millisecond,
		CommitHold:         time.Millisecond,
	}
}
