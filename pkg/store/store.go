// Package store keeps the single trusted credential in a non-volatile region.
//
// Layout (byte offsets into the region):
//
//	0      validity marker, Marker when a credential was written
//	1      identifier length, 1..identifier.MaxLen
//	2..11  identifier bytes, unused trailing slots zero
//
// Load never fails: a missing marker, an out-of-range length or an unreadable
// region all read as "no credential", which sends the device back to
// enrollment rather than towards a wrong lock decision.
package store

import (
	"errors"
	"fmt"

	"github.com/backkem/rfidlock/pkg/identifier"
	"github.com/backkem/rfidlock/pkg/nvm"
	"github.com/pion/logging"
)

// Region layout.
const (
	OffsetMarker = 0
	OffsetLength = 1
	OffsetData   = 2

	// Marker is the validity sentinel written at OffsetMarker.
	Marker byte = 0xA5

	// SlotCount is the number of fixed-width identifier slots.
	SlotCount = identifier.MaxLen

	// MinRegionSize is the smallest region that can hold the layout.
	MinRegionSize = OffsetData + SlotCount
)

var (
	// ErrRegionRequired is returned when no region is configured.
	ErrRegionRequired = errors.New("store: region is required")

	// ErrRegionTooSmall is returned when the region cannot hold the layout.
	ErrRegionTooSmall = errors.New("store: region too small")

	// ErrEmptyIdentifier is returned when saving an absent identifier.
	ErrEmptyIdentifier = errors.New("store: cannot save empty identifier")
)

// Config configures a Store.
type Config struct {
	// Region is the backing non-volatile region. Required.
	Region nvm.Region

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Store is the single-slot trusted credential store.
// It is owned by one control loop and is not safe for concurrent use.
type Store struct {
	region nvm.Region
	log    logging.LeveledLogger

	cached  identifier.Identifier
	present bool
}

// New creates a Store over the configured region. Nothing is read until Load.
func New(config Config) (*Store, error) {
	if config.Region == nil {
		return nil, ErrRegionRequired
	}
	if config.Region.Size() < MinRegionSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrRegionTooSmall, config.Region.Size(), MinRegionSize)
	}

	s := &Store{region: config.Region}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("store")
	}
	return s, nil
}

// Load reads the trusted credential from the region and caches it.
// It returns false when the region holds no valid credential.
func (s *Store) Load() (identifier.Identifier, bool) {
	id, reason := s.read()
	if reason != "" {
		if s.log != nil {
			s.log.Infof("no trusted credential: %s", reason)
		}
		s.cached, s.present = identifier.Identifier{}, false
		return identifier.Identifier{}, false
	}

	if s.log != nil {
		s.log.Debugf("loaded trusted credential fp=%s len=%d", id.Fingerprint(), id.Len())
	}
	s.cached, s.present = id, true
	return id, true
}

// read decodes the region. A non-empty reason means the credential is absent.
func (s *Store) read() (identifier.Identifier, string) {
	marker, err := s.region.Read(OffsetMarker)
	if err != nil {
		return identifier.Identifier{}, fmt.Sprintf("marker unreadable: %v", err)
	}
	if marker != Marker {
		return identifier.Identifier{}, fmt.Sprintf("marker 0x%02X", marker)
	}

	length, err := s.region.Read(OffsetLength)
	if err != nil {
		return identifier.Identifier{}, fmt.Sprintf("length unreadable: %v", err)
	}
	if length == 0 || int(length) > SlotCount {
		return identifier.Identifier{}, fmt.Sprintf("invalid length %d", length)
	}

	raw := make([]byte, length)
	for i := range raw {
		b, err := s.region.Read(OffsetData + i)
		if err != nil {
			return identifier.Identifier{}, fmt.Sprintf("slot %d unreadable: %v", i, err)
		}
		raw[i] = b
	}

	id, err := identifier.New(raw)
	if err != nil {
		return identifier.Identifier{}, err.Error()
	}
	return id, ""
}

// Save persists id as the trusted credential. Bytes that already hold the
// wanted value are not rewritten, so saving the same identifier twice does
// not touch the region the second time. There is no retry; a failed write is
// returned and the cache keeps its previous value.
func (s *Store) Save(id identifier.Identifier) error {
	if id.IsZero() {
		return ErrEmptyIdentifier
	}

	if err := s.update(OffsetMarker, Marker); err != nil {
		return err
	}
	if err := s.update(OffsetLength, byte(id.Len())); err != nil {
		return err
	}
	slots := id.Slots()
	for i, b := range slots {
		if err := s.update(OffsetData+i, b); err != nil {
			return err
		}
	}

	if s.log != nil {
		s.log.Infof("saved trusted credential fp=%s len=%d", id.Fingerprint(), id.Len())
	}
	s.cached, s.present = id, true
	return nil
}

// update writes b at offset only if the region holds a different value.
func (s *Store) update(offset int, b byte) error {
	current, err := s.region.Read(offset)
	if err == nil && current == b {
		return nil
	}
	if err := s.region.Write(offset, b); err != nil {
		return fmt.Errorf("store: write offset %d: %w", offset, err)
	}
	return nil
}

// Cached returns the credential seen by the last Load or Save.
func (s *Store) Cached() (identifier.Identifier, bool) {
	return s.cached, s.present
}
