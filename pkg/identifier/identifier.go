package identifier

import (
	"encoding/hex"
	"strings"
)

// MaxLen is the largest identifier the reader protocol produces.
const MaxLen = 10

// Identifier is a bounded card serial number. The zero value is absent.
type Identifier struct {
	b [MaxLen]byte
	n uint8
}

// New builds an Identifier from raw reader bytes. Input longer than MaxLen is
// truncated to its first MaxLen bytes.
func New(raw []byte) (Identifier, error) {
	if len(raw) == 0 {
		return Identifier{}, ErrEmpty
	}
	var id Identifier
	id.n = uint8(copy(id.b[:], raw))
	return id, nil
}

// MustNew is like New but panics on empty input. Intended for constants and tests.
func MustNew(raw ...byte) Identifier {
	id, err := New(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// Truncated reports whether New would drop bytes from raw.
func Truncated(raw []byte) bool {
	return len(raw) > MaxLen
}

// ParseHex parses the String form ("DE AD BE EF") or a plain hex string
// ("deadbeef"). Separators may be spaces, colons or dashes.
func ParseHex(s string) (Identifier, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "-", "").Replace(strings.TrimSpace(s))
	if clean == "" {
		return Identifier{}, ErrEmpty
	}
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return Identifier{}, ErrInvalidHex
	}
	return New(raw)
}

// Len returns the number of significant bytes (0 when absent).
func (id Identifier) Len() int {
	return int(id.n)
}

// IsZero reports whether the identifier is absent.
func (id Identifier) IsZero() bool {
	return id.n == 0
}

// Bytes returns a copy of the significant bytes.
func (id Identifier) Bytes() []byte {
	out := make([]byte, id.n)
	copy(out, id.b[:id.n])
	return out
}

// Slots returns all MaxLen fixed-width slots, unused trailing slots zero.
func (id Identifier) Slots() [MaxLen]byte {
	var out [MaxLen]byte
	copy(out[:], id.b[:id.n])
	return out
}

// Equal reports whether id and other are the same identifier.
func (id Identifier) Equal(other Identifier) bool {
	return Equal(id, other)
}

// Equal compares two identifiers byte for byte. Different lengths never match.
// This is not a constant-time comparison; card serials are not secrets.
func Equal(a, b Identifier) bool {
	if a.n != b.n {
		return false
	}
	for i := 0; i < int(a.n); i++ {
		if a.b[i] != b.b[i] {
			return false
		}
	}
	return true
}

// String renders the identifier as uppercase, space separated hex, e.g.
// "DE AD BE EF". Absent identifiers render as "".
func (id Identifier) String() string {
	if id.n == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(int(id.n) * 3)
	const hexChars = "0123456789ABCDEF"
	for i := 0; i < int(id.n); i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		c := id.b[i]
		sb.WriteByte(hexChars[c>>4])
		sb.WriteByte(hexChars[c&0x0F])
	}
	return sb.String()
}
