package nvm

import "sync"

// MemoryRegion is an in-memory Region.
// Useful for testing and development. Data is lost when the process exits.
type MemoryRegion struct {
	mu     sync.RWMutex
	data   []byte
	writes uint64
}

// NewMemoryRegion creates an erased in-memory region of the given size.
func NewMemoryRegion(size int) *MemoryRegion {
	if size <= 0 {
		size = DefaultSize
	}
	m := &MemoryRegion{data: make([]byte, size)}
	m.Erase()
	return m
}

// Size returns the number of addressable bytes.
func (m *MemoryRegion) Size() int {
	return len(m.data)
}

// Read returns the byte at offset.
func (m *MemoryRegion) Read(offset int) (byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := checkOffset(offset, len(m.data)); err != nil {
		return 0, err
	}
	return m.data[offset], nil
}

// Write stores b at offset.
func (m *MemoryRegion) Write(offset int, b byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkOffset(offset, len(m.data)); err != nil {
		return err
	}
	m.data[offset] = b
	m.writes++
	return nil
}

// Writes returns the number of Write calls that reached the region.
func (m *MemoryRegion) Writes() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Snapshot returns a copy of the region contents.
func (m *MemoryRegion) Snapshot() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

// Erase resets every byte to Erased. The write counter is not touched.
func (m *MemoryRegion) Erase() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.data {
		m.data[i] = Erased
	}
}

// Verify MemoryRegion implements Region.
var _ Region = (*MemoryRegion)(nil)
