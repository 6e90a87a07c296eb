// Package reader carries card presentations from a remote reader head to the
// lock over a packet link.
//
// Each datagram is one CBOR-encoded Frame. The lock side (NetReader) turns
// received frames into device.Reader polls; the head side (Head) encodes and
// sends them.
package reader

import (
	"errors"
	"fmt"

	"github.com/backkem/rfidlock/pkg/identifier"
	"github.com/fxamacker/cbor/v2"
)

// MaxFrameSize bounds a single datagram.
const MaxFrameSize = 256

var (
	// ErrMalformedFrame is returned for datagrams that do not decode to a
	// frame with a non-empty UID.
	ErrMalformedFrame = errors.New("reader: malformed frame")

	// ErrClosed is returned after the reader's link is gone.
	ErrClosed = errors.New("reader: closed")
)

// Frame is one card presentation.
type Frame struct {
	UID  []byte `cbor:"1,keyasint"`
	Head string `cbor:"2,keyasint,omitempty"`
}

// EncodeFrame encodes f as a CBOR map.
func EncodeFrame(f Frame) ([]byte, error) {
	return cbor.Marshal(f)
}

// DecodeFrame decodes b and returns the carried identifier. UIDs longer than
// identifier.MaxLen are truncated.
func DecodeFrame(b []byte) (Frame, identifier.Identifier, error) {
	var f Frame
	if err := cbor.Unmarshal(b, &f); err != nil {
		return Frame{}, identifier.Identifier{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	id, err := identifier.New(f.UID)
	if err != nil {
		return f, identifier.Identifier{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return f, id, nil
}
