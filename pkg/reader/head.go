package reader

import (
	"errors"
	"fmt"
	"net"
)

// Head is the sending side of a reader link: it reports presented cards to
// a lock.
type Head struct {
	conn   net.PacketConn
	target net.Addr
	name   string
	owned  bool
}

// NewHead sends over conn to target. The caller keeps ownership of conn.
func NewHead(conn net.PacketConn, target net.Addr, name string) *Head {
	return &Head{conn: conn, target: target, name: name}
}

// DialHead opens a UDP socket and sends to addr ("host:port").
func DialHead(addr, name string) (*Head, error) {
	target, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("reader: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, err
	}
	return &Head{conn: conn, target: target, name: name, owned: true}, nil
}

// Present reports a card with the given UID.
func (h *Head) Present(uid []byte) error {
	if len(uid) == 0 {
		return errors.New("reader: empty uid")
	}
	b, err := EncodeFrame(Frame{UID: uid, Head: h.name})
	if err != nil {
		return err
	}
	return h.SendRaw(b)
}

// SendRaw sends b as a single datagram without encoding.
func (h *Head) SendRaw(b []byte) error {
	if len(b) > MaxFrameSize {
		return fmt.Errorf("reader: frame of %d bytes exceeds %d", len(b), MaxFrameSize)
	}
	_, err := h.conn.WriteTo(b, h.target)
	return err
}

// Target returns the lock address frames are sent to.
func (h *Head) Target() net.Addr {
	return h.target
}

// Close closes the socket if the head opened it.
func (h *Head) Close() error {
	if !h.owned {
		return nil
	}
	return h.conn.Close()
}
