// Package nvm provides byte-addressed non-volatile regions.
//
// A Region models the EEPROM the lock controller keeps its trusted credential
// in: a fixed number of bytes, addressed by offset, that survive power loss.
// Implementations can use memory, a flat image file, or an SQLite database.
//
// Regions are accessed from the single control loop of the device and are not
// required to be safe for concurrent use, though all implementations here are.
package nvm

import (
	"errors"
	"fmt"
)

// Erased is the value a byte holds before it was ever written.
const Erased byte = 0xFF

// DefaultSize is the region size used when none is configured.
const DefaultSize = 64

var (
	// ErrOutOfRange is returned for offsets outside the region.
	ErrOutOfRange = errors.New("nvm: offset out of range")

	// ErrClosed is returned when using a region after Close.
	ErrClosed = errors.New("nvm: region closed")

	// ErrInvalidSize is returned when creating a region with size <= 0.
	ErrInvalidSize = errors.New("nvm: invalid region size")
)

// Region is a fixed-size non-volatile byte region.
type Region interface {
	// Size returns the number of addressable bytes.
	Size() int

	// Read returns the byte stored at offset.
	Read(offset int) (byte, error)

	// Write stores b at offset. A nil error means the byte survives
	// power loss.
	Write(offset int, b byte) error
}

// WriteCounter is implemented by regions that track physical writes.
// Used to check that callers avoid needless wear.
type WriteCounter interface {
	Writes() uint64
}

func checkOffset(offset, size int) error {
	if offset < 0 || offset >= size {
		return fmt.Errorf("%w: %d (size %d)", ErrOutOfRange, offset, size)
	}
	return nil
}
