package identifier

import "errors"

var (
	// ErrEmpty is returned when constructing an Identifier from zero bytes.
	ErrEmpty = errors.New("identifier: empty")

	// ErrInvalidHex is returned by ParseHex for malformed input.
	ErrInvalidHex = errors.New("identifier: invalid hex")
)
