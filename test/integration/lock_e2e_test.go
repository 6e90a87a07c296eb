package integration

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backkem/rfidlock/examples/common"
	"github.com/backkem/rfidlock/pkg/device"
	"github.com/backkem/rfidlock/pkg/feedback"
	"github.com/backkem/rfidlock/pkg/identifier"
	"github.com/backkem/rfidlock/pkg/lock"
	"github.com/backkem/rfidlock/pkg/reader"
)

var (
	master = identifier.MustNew(0xDE, 0xAD, 0xBE, 0xEF)
	guest  = identifier.MustNew(0x04, 0x52, 0x1A, 0x7C, 0x33, 0x80, 0x01)
)

const waitTimeout = 2 * time.Second

// TestE2E_EnrollGrantDeny runs the reference scenario: a fresh lock trusts
// the first card, opens for it and stays shut for any other.
func TestE2E_EnrollGrantDeny(t *testing.T) {
	pair := NewTestPair(t)
	defer pair.Close()

	dev := pair.Lock.Lock
	require.False(t, dev.Enrolled(), "fresh lock should not be enrolled")

	pair.Present(master)
	pair.WaitReady(waitTimeout)
	assert.Equal(t, master.Fingerprint(), dev.TrustedFingerprint())

	pair.Present(master)
	pair.WaitFor("grant", waitTimeout, func() bool { return dev.Stats().Grants == 1 })
	pair.WaitReady(waitTimeout)

	pair.Present(guest)
	pair.WaitFor("deny", waitTimeout, func() bool { return dev.Stats().Denies == 1 })

	assert.Equal(t, 1, pair.Lock.Servo.Unlocks())
	assert.Equal(t, device.LockAngle, pair.Lock.Servo.Angle(), "servo left unlocked")

	require.NoError(t, pair.Close())
	assert.Equal(t, lock.StateStopped, dev.State())
}

// TestE2E_Discovery has the head find the lock through its advertisement.
func TestE2E_Discovery(t *testing.T) {
	config := DefaultTestPairConfig()
	config.Discover = true
	pair := NewTestPairWithConfig(t, config)
	defer pair.Close()

	assert.Equal(t, pair.Lock.Reader.LocalAddr().String(), pair.Head.Target())

	pair.Present(master)
	pair.WaitFor("enrollment", waitTimeout, pair.Lock.Lock.Enrolled)
	pair.WaitFor("re-advertisement", waitTimeout, func() bool {
		return len(pair.Servers.Registrations()) == 2
	})
}

// TestE2E_PersistenceAcrossRestart stores the credential in SQLite and
// checks a restarted lock skips enrollment and keeps trusting only the
// original card.
func TestE2E_PersistenceAcrossRestart(t *testing.T) {
	config := DefaultTestPairConfig()
	config.Options.Storage = common.StorageSQLite
	config.Options.StoragePath = filepath.Join(t.TempDir(), "lock.db")

	first := NewTestPairWithConfig(t, config)
	first.Present(master)
	first.WaitFor("enrollment", waitTimeout, first.Lock.Lock.Enrolled)
	require.NoError(t, first.Close())

	second := NewTestPairWithConfig(t, config)
	defer second.Close()

	dev := second.Lock.Lock
	require.True(t, dev.Enrolled(), "restarted lock lost its credential")

	// The first card after a restart is evaluated, not enrolled.
	second.Present(guest)
	second.WaitFor("deny", waitTimeout, func() bool { return dev.Stats().Denies == 1 })
	second.WaitReady(waitTimeout)
	second.Present(master)
	second.WaitFor("grant", waitTimeout, func() bool { return dev.Stats().Grants == 1 })

	assert.Equal(t, master.Fingerprint(), dev.TrustedFingerprint())
	assert.NotEqual(t, "No Master Found!", second.Lock.Panel.Screen().Lines[0],
		"restarted lock showed the enrollment prompt")
}

// TestE2E_LongUIDTruncated sends a 12-byte UID; only the first ten bytes
// are kept, so presenting those ten later is a match.
func TestE2E_LongUIDTruncated(t *testing.T) {
	pair := NewTestPair(t)
	defer pair.Close()

	long := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	head, err := reader.DialHead(pair.Head.Target(), "raw")
	require.NoError(t, err)
	defer head.Close()

	require.NoError(t, head.Present(long))
	dev := pair.Lock.Lock
	pair.WaitReady(waitTimeout)

	pair.Present(identifier.MustNew(long[:identifier.MaxLen]...))
	pair.WaitFor("grant", waitTimeout, func() bool { return dev.Stats().Grants == 1 })
}

// TestE2E_PanelScreens checks the operator-facing texts through a full
// cycle.
func TestE2E_PanelScreens(t *testing.T) {
	pair := NewTestPair(t)
	defer pair.Close()

	panel := pair.Lock.Panel
	pair.WaitFor("enrollment prompt", waitTimeout, func() bool {
		return panel.Screen().Lines[0] == "No Master Found!"
	})
	assert.Equal(t, feedback.LEDRed, panel.Screen().LED)

	pair.Present(master)
	pair.WaitFor("idle screen", waitTimeout, func() bool {
		return pair.Lock.Lock.Enrolled() && strings.TrimSpace(panel.Screen().Lines[1]) == "Scan Your Card"
	})
}
