package nvm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// FileRegion is a Region backed by a flat image file, one byte per offset.
// Every write is synced before Write returns.
type FileRegion struct {
	mu     sync.Mutex
	f      *os.File
	size   int
	writes uint64
	closed bool
}

// OpenFileRegion opens the image at path, creating an erased image of the
// given size if the file does not exist. An existing image shorter than size
// is extended with erased bytes; a longer one keeps its extra bytes but only
// the first size bytes are addressable.
func OpenFileRegion(path string, size int) (*FileRegion, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("nvm: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("nvm: stat %s: %w", path, err)
	}

	if existing := int(info.Size()); existing < size {
		pad := make([]byte, size-existing)
		for i := range pad {
			pad[i] = Erased
		}
		if _, err := f.WriteAt(pad, int64(existing)); err != nil {
			f.Close()
			return nil, fmt.Errorf("nvm: initialise %s: %w", path, err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, fmt.Errorf("nvm: sync %s: %w", path, err)
		}
	}

	return &FileRegion{f: f, size: size}, nil
}

// Size returns the number of addressable bytes.
func (r *FileRegion) Size() int {
	return r.size
}

// Read returns the byte at offset.
func (r *FileRegion) Read(offset int) (byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrClosed
	}
	if err := checkOffset(offset, r.size); err != nil {
		return 0, err
	}

	var buf [1]byte
	if _, err := r.f.ReadAt(buf[:], int64(offset)); err != nil {
		if errors.Is(err, io.EOF) {
			return Erased, nil
		}
		return 0, err
	}
	return buf[0], nil
}

// Write stores b at offset and syncs the file.
func (r *FileRegion) Write(offset int, b byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if err := checkOffset(offset, r.size); err != nil {
		return err
	}

	if _, err := r.f.WriteAt([]byte{b}, int64(offset)); err != nil {
		return err
	}
	if err := r.f.Sync(); err != nil {
		return err
	}
	r.writes++
	return nil
}

// Writes returns the number of bytes written since the region was opened.
func (r *FileRegion) Writes() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

// Close closes the image file.
func (r *FileRegion) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.f.Close()
}

// Verify FileRegion implements Region.
var _ Region = (*FileRegion)(nil)
