package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// TXT record keys.
const (
	TXTKeyVersion    = "ver"
	TXTKeyEnrolled   = "en"
	TXTKeyDeviceName = "dn"
)

// ProtocolVersion is the reader frame format version advertised in "ver".
const ProtocolVersion = 1

// MaxDeviceNameLength bounds the "dn" value.
const MaxDeviceNameLength = 32

// LockTXT holds the TXT records of a _rfidlock._udp instance.
type LockTXT struct {
	Version    int
	Enrolled   bool
	DeviceName string
}

// Validate checks the TXT values for errors.
func (t *LockTXT) Validate() error {
	if t.DeviceName == "" || len(t.DeviceName) > MaxDeviceNameLength {
		return ErrInvalidDeviceName
	}
	if strings.ContainsRune(t.DeviceName, '=') {
		return ErrInvalidDeviceName
	}
	return nil
}

// Encode returns the TXT records as key=value strings.
func (t *LockTXT) Encode() []string {
	version := t.Version
	if version == 0 {
		version = ProtocolVersion
	}
	en := "0"
	if t.Enrolled {
		en = "1"
	}
	return []string{
		TXTKeyVersion + "=" + strconv.Itoa(version),
		TXTKeyEnrolled + "=" + en,
		TXTKeyDeviceName + "=" + t.DeviceName,
	}
}

// ParseTXT splits key=value records into a map. Records without '=' map to "".
func ParseTXT(records []string) map[string]string {
	m := make(map[string]string, len(records))
	for _, r := range records {
		k, v, _ := strings.Cut(r, "=")
		m[k] = v
	}
	return m
}

// ParseLockTXT decodes the TXT records of a lock instance.
func ParseLockTXT(records []string) (*LockTXT, error) {
	m := ParseTXT(records)
	t := &LockTXT{DeviceName: m[TXTKeyDeviceName]}

	v, ok := m[TXTKeyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidTXTRecord, TXTKeyVersion)
	}
	version, err := strconv.Atoi(v)
	if err != nil || version <= 0 {
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyVersion, v)
	}
	t.Version = version

	switch m[TXTKeyEnrolled] {
	case "1":
		t.Enrolled = true
	case "0", "":
	default:
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyEnrolled, m[TXTKeyEnrolled])
	}
	return t, nil
}
