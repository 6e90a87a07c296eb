package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/backkem/rfidlock/pkg/device"
	"github.com/backkem/rfidlock/pkg/identifier"
	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trusted = identifier.MustNew(0xDE, 0xAD, 0xBE, 0xEF)

type fixture struct {
	ctrl     *Controller
	reader   *device.ScriptedReader
	actuator *device.RecordingActuator
	feedback *device.RecordingFeedback
	states   []State
	outcomes []Decision
}

func newFixture(t *testing.T, steps ...device.ReadStep) *fixture {
	t.Helper()
	f := &fixture{
		reader:   device.NewScriptedReader(steps...),
		actuator: &device.RecordingActuator{},
		feedback: &device.RecordingFeedback{},
	}
	ctrl, err := New(Config{
		Trusted:        trusted,
		Reader:         f.reader,
		Actuator:       f.actuator,
		Feedback:       f.feedback,
		LoggerFactory:  logging.NewDefaultLoggerFactory(),
		OnStateChanged: func(s State) { f.states = append(f.states, s) },
		OnDecision:     func(d Decision, _ identifier.Identifier) { f.outcomes = append(f.outcomes, d) },
	})
	require.NoError(t, err)
	f.ctrl = ctrl
	return f
}

func TestConfigValidate(t *testing.T) {
	r := device.NewScriptedReader()
	a := &device.RecordingActuator{}
	fb := &device.RecordingFeedback{}

	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"no trusted", Config{Reader: r, Actuator: a, Feedback: fb}, ErrTrustedRequired},
		{"no reader", Config{Trusted: trusted, Actuator: a, Feedback: fb}, ErrReaderRequired},
		{"no actuator", Config{Trusted: trusted, Reader: r, Feedback: fb}, ErrActuatorRequired},
		{"no feedback", Config{Trusted: trusted, Reader: r, Actuator: a}, ErrFeedbackRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	c, err := New(Config{Trusted: trusted, Reader: r, Actuator: a, Feedback: fb})
	require.NoError(t, err)
	assert.Equal(t, DefaultUnlockDuration, c.config.UnlockDuration)
}

func TestEvaluateGrant(t *testing.T) {
	f := newFixture(t)

	d := f.ctrl.Evaluate(context.Background(), identifier.MustNew(0xDE, 0xAD, 0xBE, 0xEF))
	assert.Equal(t, Granted, d)
	assert.Equal(t, StateIdle, f.ctrl.State())
	assert.Equal(t, []State{StateEvaluating, StateGranting, StateIdle}, f.states)

	assert.Equal(t, []string{device.EventAccessGranted}, f.feedback.Events())
	assert.Equal(t, []string{"unlock"}, f.actuator.Calls())
	assert.Equal(t, []time.Duration{3 * time.Second}, f.actuator.Holds())
	assert.Equal(t, []Decision{Granted}, f.outcomes)
}

func TestEvaluateDeny(t *testing.T) {
	tests := []struct {
		name string
		id   identifier.Identifier
	}{
		{"one byte differs", identifier.MustNew(0xDE, 0xAD, 0xBE, 0xEE)},
		{"prefix", identifier.MustNew(0xDE, 0xAD, 0xBE)},
		{"extended", identifier.MustNew(0xDE, 0xAD, 0xBE, 0xEF, 0x00)},
		{"unrelated", identifier.MustNew(0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			d := f.ctrl.Evaluate(context.Background(), tt.id)

			assert.Equal(t, Denied, d)
			assert.Equal(t, []State{StateEvaluating, StateDenying, StateIdle}, f.states)
			assert.Equal(t, []string{device.EventAccessDenied}, f.feedback.Events())
			assert.Empty(t, f.actuator.Calls())
		})
	}
}

func TestGrantAndDenyAreExclusive(t *testing.T) {
	f := newFixture(t)
	cards := []identifier.Identifier{
		trusted,
		identifier.MustNew(0xDE, 0xAD),
		trusted,
		identifier.MustNew(0x00),
	}
	for _, id := range cards {
		f.ctrl.Evaluate(context.Background(), id)
	}

	assert.Equal(t, 2, f.feedback.Count(device.EventAccessGranted))
	assert.Equal(t, 2, f.feedback.Count(device.EventAccessDenied))
	assert.Len(t, f.actuator.Calls(), 2)
	assert.Equal(t, []Decision{Granted, Denied, Granted, Denied}, f.outcomes)
}

func TestPoll(t *testing.T) {
	errLink := errors.New("crc error")
	f := newFixture(t, device.NoCard(), device.ReadError(errLink), device.Card(0xDE, 0xAD, 0xBE, 0xEF), device.Card(0x99))

	_, ok := f.ctrl.Poll(context.Background())
	assert.False(t, ok)

	_, ok = f.ctrl.Poll(context.Background())
	assert.False(t, ok, "transport failure is no card")

	d, ok := f.ctrl.Poll(context.Background())
	require.True(t, ok)
	assert.Equal(t, Granted, d)

	d, ok = f.ctrl.Poll(context.Background())
	require.True(t, ok)
	assert.Equal(t, Denied, d)

	_, ok = f.ctrl.Poll(context.Background())
	assert.False(t, ok)
}

func TestGrantActuatorFailureRelocks(t *testing.T) {
	f := newFixture(t)
	f.actuator.UnlockErr = errors.New("servo stalled")

	d := f.ctrl.Evaluate(context.Background(), trusted)
	assert.Equal(t, Granted, d)
	assert.Equal(t, []string{"unlock", "lock"}, f.actuator.Calls())
	assert.Equal(t, StateIdle, f.ctrl.State())
}

func TestGrantFeedbackBeforeUnlock(t *testing.T) {
	var order []string
	fb := &orderFeedback{order: &order}
	act := &orderActuator{order: &order}

	c, err := New(Config{Trusted: trusted, Reader: device.NewScriptedReader(), Actuator: act, Feedback: fb})
	require.NoError(t, err)
	c.Evaluate(context.Background(), trusted)

	assert.Equal(t, []string{"feedback", "unlock"}, order)
}

type orderFeedback struct {
	device.RecordingFeedback
	order *[]string
}

func (f *orderFeedback) OnAccessGranted() { *f.order = append(*f.order, "feedback") }

type orderActuator struct {
	device.RecordingActuator
	order *[]string
}

func (a *orderActuator) UnlockFor(context.Context, time.Duration) error {
	*a.order = append(*a.order, "unlock")
	return nil
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "granted", Granted.String())
	assert.Equal(t, "denied", Denied.String())
	assert.Equal(t, "Granting", StateGranting.String())
	assert.Equal(t, "Unknown", State(-1).String())
}

// bufferingReader holds taps that arrived during a decision until Discard.
type bufferingReader struct {
	*device.ScriptedReader
	ctrl      *Controller
	discarded []State
}

func (r *bufferingReader) Discard() int {
	r.discarded = append(r.discarded, r.ctrl.State())
	n := r.Remaining()
	r.ScriptedReader = device.NewScriptedReader()
	return n
}

func TestTapsDuringDecisionDiscarded(t *testing.T) {
	r := &bufferingReader{ScriptedReader: device.NewScriptedReader(
		device.Card(0xDE, 0xAD, 0xBE, 0xEF),
		device.Card(0x01, 0x02),
		device.Card(0xDE, 0xAD, 0xBE, 0xEF),
	)}
	a := &device.RecordingActuator{}
	var outcomes []Decision
	ctrl, err := New(Config{
		Trusted:    trusted,
		Reader:     r,
		Actuator:   a,
		Feedback:   &device.RecordingFeedback{},
		OnDecision: func(d Decision, _ identifier.Identifier) { outcomes = append(outcomes, d) },
	})
	require.NoError(t, err)
	r.ctrl = ctrl

	d, ok := ctrl.Poll(context.Background())
	require.True(t, ok)
	assert.Equal(t, Granted, d)

	_, ok = ctrl.Poll(context.Background())
	assert.False(t, ok, "a card buffered during the unlock was evaluated")
	assert.Equal(t, []Decision{Granted}, outcomes)
	assert.Equal(t, []State{StateGranting}, r.discarded)
	assert.Equal(t, []string{"unlock"}, a.Calls())
}
