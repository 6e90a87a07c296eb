package reader

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/test"
)

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic delivery in a background goroutine.
	// Default: true
	AutoProcess bool

	// ProcessInterval is how often the auto-processor delivers packets.
	// Default: 1ms
	ProcessInterval time.Duration

	// DropRate is the probability of losing a frame (0.0 - 1.0).
	DropRate float64
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: 1 * time.Millisecond,
	}
}

// Pipe is an in-memory reader link between one Head and one NetReader.
// It wraps pion's test.Bridge; endpoint 0 is the lock, endpoint 1 the head.
type Pipe struct {
	bridge *test.Bridge

	mu              sync.Mutex
	closed          bool
	dropRate        float64
	rng             *rand.Rand
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewPipe creates a pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	p := &Pipe{
		bridge:          test.NewBridge(),
		dropRate:        config.DropRate,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}
	if p.processInterval <= 0 {
		p.processInterval = 1 * time.Millisecond
	}
	if p.autoProcess {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Pipe) run() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.processInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.bridge.Tick()
		}
	}
}

// Process delivers all queued frames. Only needed without AutoProcess.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.bridge.Tick()
		if n == 0 {
			return count
		}
		count += n
	}
}

// Connect builds a NetReader on the lock end and a Head on the other.
func (p *Pipe) Connect(headName string, loggerFactory logging.LoggerFactory) (*NetReader, *Head, error) {
	lockEnd := &pipePacketConn{conn: p.bridge.GetConn0(), local: PipeAddr{ID: 0}, peer: PipeAddr{ID: 1}}
	headEnd := &pipePacketConn{conn: p.bridge.GetConn1(), local: PipeAddr{ID: 1}, peer: PipeAddr{ID: 0}, pipe: p}

	r, err := NewNetReader(NetReaderConfig{Conn: lockEnd, LoggerFactory: loggerFactory})
	if err != nil {
		return nil, nil, err
	}
	return r, NewHead(headEnd, PipeAddr{ID: 0}, headName), nil
}

func (p *Pipe) drop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropRate > 0 && p.rng.Float64() < p.dropRate
}

// Close stops delivery and closes both endpoints.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	p.wg.Wait()

	err0 := p.bridge.GetConn0().Close()
	err1 := p.bridge.GetConn1().Close()
	if err0 != nil {
		return err0
	}
	return err1
}

// PipeAddr implements net.Addr for pipe endpoints.
type PipeAddr struct {
	ID int // 0 = lock, 1 = head
}

// Network returns "pipe".
func (a PipeAddr) Network() string { return "pipe" }

// String returns a string representation of the address.
func (a PipeAddr) String() string { return fmt.Sprintf("pipe:%d", a.ID) }

// pipePacketConn adapts one bridge endpoint to net.PacketConn.
type pipePacketConn struct {
	conn  net.Conn
	local PipeAddr
	peer  PipeAddr
	pipe  *Pipe
}

func (c *pipePacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	n, err := c.conn.Read(b)
	return n, c.peer, err
}

// WriteTo ignores addr; a pipe has exactly one peer.
func (c *pipePacketConn) WriteTo(b []byte, _ net.Addr) (int, error) {
	if c.pipe != nil && c.pipe.drop() {
		return len(b), nil
	}
	return c.conn.Write(b)
}

func (c *pipePacketConn) Close() error                       { return c.conn.Close() }
func (c *pipePacketConn) LocalAddr() net.Addr                { return c.local }
func (c *pipePacketConn) SetDeadline(t time.Time) error      { return c.conn.SetDeadline(t) }
func (c *pipePacketConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *pipePacketConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

var _ net.PacketConn = (*pipePacketConn)(nil)
