package reader

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/backkem/rfidlock/pkg/identifier"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameCodec(t *testing.T) {
	b, err := EncodeFrame(Frame{UID: []byte{0xDE, 0xAD, 0xBE, 0xEF}, Head: "front"})
	require.NoError(t, err)

	// {1: h'DEADBEEF', 2: "front"}
	want := []byte{0xA2, 0x01, 0x44, 0xDE, 0xAD, 0xBE, 0xEF, 0x02, 0x65, 'f', 'r', 'o', 'n', 't'}
	assert.Equal(t, want, b)

	f, id, err := DecodeFrame(b)
	require.NoError(t, err)
	assert.Equal(t, "front", f.Head)
	assert.Equal(t, "DE AD BE EF", id.String())
}

func TestDecodeFrameErrors(t *testing.T) {
	emptyUID, err := cbor.Marshal(map[int][]byte{1: {}})
	require.NoError(t, err)
	noUID, err := cbor.Marshal(map[int]string{2: "x"})
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte{0xFF, 0x00, 0x13}},
		{"empty", nil},
		{"empty uid", emptyUID},
		{"missing uid", noUID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeFrame(tt.data)
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestDecodeFrameTruncates(t *testing.T) {
	uid := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	b, err := EncodeFrame(Frame{UID: uid})
	require.NoError(t, err)

	_, id, err := DecodeFrame(b)
	require.NoError(t, err)
	assert.Equal(t, identifier.MaxLen, id.Len())
	assert.Equal(t, uid[:10], id.Bytes())
}

// pollFor polls r until a card or error arrives.
func pollFor(t *testing.T, r *NetReader) (identifier.Identifier, error) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		id, ok, err := r.TryRead()
		if ok || err != nil {
			return id, err
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no presentation received")
	return identifier.Identifier{}, nil
}

func TestNetReaderUDP(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	r, err := NewNetReader(NetReaderConfig{Conn: conn})
	require.NoError(t, err)
	defer r.Close()

	id, ok, err := r.TryRead()
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, id.IsZero())

	head, err := DialHead(r.LocalAddr().String(), "test")
	require.NoError(t, err)
	defer head.Close()

	require.NoError(t, head.Present([]byte{0xDE, 0xAD, 0xBE, 0xEF}))
	got, err := pollFor(t, r)
	require.NoError(t, err)
	assert.Equal(t, "DE AD BE EF", got.String())

	require.NoError(t, head.SendRaw([]byte{0x00}))
	_, err = pollFor(t, r)
	assert.ErrorIs(t, err, ErrMalformedFrame)

	stats := r.Stats()
	assert.Equal(t, uint64(2), stats.Frames)
	assert.Equal(t, uint64(1), stats.Malformed)
}

func TestNetReaderClosed(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	r, err := NewNetReader(NetReaderConfig{Conn: conn})
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, ok, err := r.TryRead()
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNetReaderQueueOverflow(t *testing.T) {
	r := &NetReader{queue: make(chan presentation, 2)}
	frame, err := EncodeFrame(Frame{UID: []byte{1}})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		r.handle(frame, PipeAddr{ID: 1})
	}
	assert.Equal(t, ReaderStats{Frames: 5, Dropped: 3}, r.Stats())
}

func TestNetReaderDiscard(t *testing.T) {
	r := &NetReader{queue: make(chan presentation, 4)}
	frame, err := EncodeFrame(Frame{UID: []byte{1}})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		r.handle(frame, PipeAddr{ID: 1})
	}
	assert.Equal(t, 3, r.Discard())
	assert.Equal(t, 0, r.Discard())

	_, ok, err := r.TryRead()
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, ReaderStats{Frames: 3, Discarded: 3}, r.Stats())

	r.handle(frame, PipeAddr{ID: 1})
	id, ok, err := r.TryRead()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{1}, id.Bytes())
}

func TestNewNetReaderRequiresConn(t *testing.T) {
	_, err := NewNetReader(NetReaderConfig{})
	assert.Error(t, err)
}

func TestHeadRejects(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	h := NewHead(conn, conn.LocalAddr(), "")
	assert.Error(t, h.Present(nil))
	assert.Error(t, h.SendRaw(make([]byte, MaxFrameSize+1)))
	assert.NoError(t, h.Close())
}

func TestPipe(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	r, head, err := p.Connect("sim", nil)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, "pipe:0", head.Target().String())

	cards := [][]byte{{0x01}, {0xDE, 0xAD, 0xBE, 0xEF}}
	for _, uid := range cards {
		require.NoError(t, head.Present(uid))
	}
	for _, uid := range cards {
		got, err := pollFor(t, r)
		require.NoError(t, err)
		assert.Equal(t, uid, got.Bytes())
	}
}

func TestPipeManualProcess(t *testing.T) {
	p := NewPipeWithConfig(PipeConfig{AutoProcess: false})
	defer p.Close()

	r, head, err := p.Connect("sim", nil)
	require.NoError(t, err)

	require.NoError(t, head.Present([]byte{0x42}))
	assert.Equal(t, 1, p.Process())

	got, err := pollFor(t, r)
	require.NoError(t, err)
	assert.Equal(t, "42", got.String())
}

func TestPipeDropAll(t *testing.T) {
	p := NewPipeWithConfig(PipeConfig{AutoProcess: false, DropRate: 1})
	defer p.Close()

	r, head, err := p.Connect("sim", nil)
	require.NoError(t, err)

	require.NoError(t, head.Present([]byte{0x42}))
	assert.Equal(t, 0, p.Process())

	_, ok, err := r.TryRead()
	assert.False(t, ok)
	assert.False(t, errors.Is(err, ErrMalformedFrame))
}
