// Package integration provides end-to-end tests that run a door lock and a
// reader head against each other over loopback UDP.
package integration

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/rfidlock/examples/common"
	"github.com/backkem/rfidlock/examples/doorlock"
	"github.com/backkem/rfidlock/examples/readerhead"
	"github.com/backkem/rfidlock/pkg/discovery"
	"github.com/backkem/rfidlock/pkg/identifier"
	"github.com/backkem/rfidlock/pkg/lock"
	"github.com/backkem/rfidlock/pkg/reader"
)

// TestPair holds a running door lock and a reader head connected to it.
//
// Example usage:
//
//	pair := NewTestPair(t)
//	defer pair.Close()
//	pair.Present(identifier.MustNew(0xDE, 0xAD, 0xBE, 0xEF))
type TestPair struct {
	// Lock is the door lock under test.
	Lock *doorlock.Device

	// Head reports cards to Lock.
	Head *readerhead.Sim

	// Servers records the lock's DNS-SD registrations.
	Servers *discovery.MockServerFactory

	t      *testing.T
	cancel context.CancelFunc
	errCh  chan error
	closed bool
}

// TestPairConfig configures the test pair creation.
type TestPairConfig struct {
	// Options for the lock.
	Options common.Options

	// Discover makes the head find the lock over (mock) DNS-SD instead of
	// dialing it directly.
	Discover bool

	// LoggerFactory for logging. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// DefaultTestPairConfig returns an in-memory lock with millisecond timings.
func DefaultTestPairConfig() TestPairConfig {
	o := common.DefaultOptions()
	o.DeviceName = "Test Door"
	o.UnlockDuration = time.Millisecond
	o.PollInterval = time.Millisecond
	o.SettleDelay = time.Millisecond
	o.CommitHold = time.Millisecond
	o.LogLevel = "disabled"
	return TestPairConfig{Options: o}
}

// NewTestPair starts a lock and connects a head to it.
func NewTestPair(t *testing.T) *TestPair {
	return NewTestPairWithConfig(t, DefaultTestPairConfig())
}

// NewTestPairWithConfig starts a lock with config and connects a head.
func NewTestPairWithConfig(t *testing.T, config TestPairConfig) *TestPair {
	t.Helper()

	loggerFactory := config.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = common.NewLoggerFactory("disabled")
	}

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	r, err := reader.NewNetReader(reader.NetReaderConfig{Conn: conn, LoggerFactory: loggerFactory})
	if err != nil {
		conn.Close()
		t.Fatalf("Failed to create reader: %v", err)
	}

	opts := config.Options
	opts.Discovery = config.Discover
	servers := &discovery.MockServerFactory{}

	door, err := doorlock.NewDeviceWithConfig(doorlock.Config{
		Options:       opts,
		Reader:        r,
		ServerFactory: servers,
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		r.Close()
		t.Fatalf("Failed to create lock: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &TestPair{
		Lock:    door,
		Servers: servers,
		t:       t,
		cancel:  cancel,
		errCh:   make(chan error, 1),
	}
	go func() { p.errCh <- door.Run(ctx) }()

	headOpts := readerhead.Options{
		Name:          "integration",
		LoggerFactory: loggerFactory,
	}
	if config.Discover {
		headOpts.MDNSResolver = p.resolverFromRegistrations()
		headOpts.DeviceName = opts.DeviceName
		headOpts.BrowseTimeout = time.Second
	} else {
		headOpts.LockAddr = conn.LocalAddr().String()
	}

	p.Head, err = readerhead.New(headOpts)
	if err != nil {
		p.Close()
		t.Fatalf("Failed to create head: %v", err)
	}
	if err := p.Head.Connect(ctx); err != nil {
		p.Close()
		t.Fatalf("Failed to connect head: %v", err)
	}

	return p
}

// resolverFromRegistrations waits for the lock's first advertisement and
// serves it from a mock resolver on loopback.
func (p *TestPair) resolverFromRegistrations() *discovery.MockMDNSResolver {
	p.t.Helper()

	p.WaitFor("advertisement", time.Second, func() bool {
		return len(p.Servers.Registrations()) > 0
	})

	reg := p.Servers.Registrations()[0]
	txt, err := discovery.ParseLockTXT(reg.TXT)
	if err != nil {
		p.Close()
		p.t.Fatalf("Advertised TXT does not parse: %v", err)
	}

	mock := discovery.NewMockMDNSResolver()
	mock.RegisterService(discovery.ServiceLock,
		discovery.MockLockService(reg.Instance, reg.Port, net.IPv4(127, 0, 0, 1), *txt))
	return mock
}

// Present sends id from the head.
func (p *TestPair) Present(id identifier.Identifier) {
	p.t.Helper()
	if err := p.Head.Present(id); err != nil {
		p.t.Fatalf("Failed to present %s: %v", id, err)
	}
}

// WaitReady waits until the lock is enrolled and back to Idle, the point
// from which the next presentation is evaluated.
func (p *TestPair) WaitReady(timeout time.Duration) {
	p.t.Helper()
	dev := p.Lock.Lock
	p.WaitFor("lock ready", timeout, func() bool {
		return dev.Enrolled() && dev.State() == lock.StateIdle
	})
}

// WaitFor polls cond until it holds or timeout passes.
func (p *TestPair) WaitFor(what string, timeout time.Duration, cond func() bool) {
	p.t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			p.Close()
			p.t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// Close stops the lock and closes the head. It returns the lock's Run
// error.
func (p *TestPair) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	p.cancel()
	var err error
	select {
	case err = <-p.errCh:
	case <-time.After(2 * time.Second):
		p.t.Error("lock did not stop")
	}
	if p.Head != nil {
		p.Head.Close()
	}
	return err
}
