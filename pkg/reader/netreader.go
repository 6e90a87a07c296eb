package reader

import (
	"errors"
	"net"
	"sync"

	"github.com/backkem/rfidlock/pkg/device"
	"github.com/backkem/rfidlock/pkg/identifier"
	"github.com/pion/logging"
)

// DefaultQueueSize is the number of presentations buffered between polls.
// Presentations still buffered when a decision ends are discarded.
const DefaultQueueSize = 8

// NetReaderConfig configures a NetReader.
type NetReaderConfig struct {
	// Conn receives frames. Required. Closed by NetReader.Close.
	Conn net.PacketConn

	// QueueSize bounds buffered presentations (default: 8). Frames arriving
	// while the queue is full are dropped.
	QueueSize int

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// ReaderStats counts link activity.
type ReaderStats struct {
	Frames    uint64
	Malformed uint64
	Dropped   uint64
	Discarded uint64
}

type presentation struct {
	id  identifier.Identifier
	err error
}

// NetReader implements device.Reader over a packet link. A background
// goroutine receives frames; TryRead never blocks.
type NetReader struct {
	conn  net.PacketConn
	log   logging.LeveledLogger
	queue chan presentation

	mu      sync.Mutex
	closed  bool
	failure error
	stats   ReaderStats
}

// NewNetReader starts receiving on config.Conn.
func NewNetReader(config NetReaderConfig) (*NetReader, error) {
	if config.Conn == nil {
		return nil, errors.New("reader: conn is required")
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}

	r := &NetReader{
		conn:  config.Conn,
		queue: make(chan presentation, config.QueueSize),
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("reader")
	}

	go r.receive()
	return r, nil
}

func (r *NetReader) receive() {
	buf := make([]byte, MaxFrameSize)
	for {
		n, from, err := r.conn.ReadFrom(buf)
		if err != nil {
			r.mu.Lock()
			closed := r.closed
			if !closed {
				r.failure = errors.Join(ErrClosed, err)
			}
			r.mu.Unlock()

			if !closed && r.log != nil {
				r.log.Warnf("link lost: %v", err)
			}
			return
		}
		r.handle(buf[:n], from)
	}
}

func (r *NetReader) handle(b []byte, from net.Addr) {
	frame, id, err := DecodeFrame(b)

	r.mu.Lock()
	r.stats.Frames++
	if err != nil {
		r.stats.Malformed++
	}
	r.mu.Unlock()

	if r.log != nil {
		switch {
		case err != nil:
			r.log.Warnf("frame from %v: %v", from, err)
		case identifier.Truncated(frame.UID):
			r.log.Debugf("uid of %d bytes from %v truncated to %d", len(frame.UID), from, identifier.MaxLen)
		default:
			r.log.Tracef("card fp=%s from %v head=%q", id.Fingerprint(), from, frame.Head)
		}
	}

	select {
	case r.queue <- presentation{id: id, err: err}:
	default:
		r.mu.Lock()
		r.stats.Dropped++
		r.mu.Unlock()
		if r.log != nil {
			r.log.Warnf("queue full, dropped frame from %v", from)
		}
	}
}

// TryRead implements device.Reader. It returns the oldest buffered
// presentation, or no card if none is pending.
func (r *NetReader) TryRead() (identifier.Identifier, bool, error) {
	select {
	case p := <-r.queue:
		if p.err != nil {
			return identifier.Identifier{}, false, p.err
		}
		return p.id, true, nil
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return identifier.Identifier{}, false, ErrClosed
	}
	if r.failure != nil {
		return identifier.Identifier{}, false, r.failure
	}
	return identifier.Identifier{}, false, nil
}

// Discard implements device.Discarder. It drops every buffered
// presentation, so cards tapped during a decision are never replayed.
func (r *NetReader) Discard() int {
	n := 0
drain:
	for {
		select {
		case <-r.queue:
			n++
		default:
			break drain
		}
	}
	if n == 0 {
		return 0
	}

	r.mu.Lock()
	r.stats.Discarded += uint64(n)
	r.mu.Unlock()
	if r.log != nil {
		r.log.Debugf("discarded %d presentations", n)
	}
	return n
}

// Stats returns a snapshot of the link counters.
func (r *NetReader) Stats() ReaderStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// LocalAddr returns the address heads should send to.
func (r *NetReader) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

// Close closes the link. The receiver exits once the conn reports the close.
func (r *NetReader) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	return r.conn.Close()
}

var (
	_ device.Reader    = (*NetReader)(nil)
	_ device.Discarder = (*NetReader)(nil)
)
