package nvm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type regionFactory struct {
	name string
	open func(t *testing.T, size int) Region
}

func regionFactories() []regionFactory {
	return []regionFactory{
		{"memory", func(t *testing.T, size int) Region {
			return NewMemoryRegion(size)
		}},
		{"file", func(t *testing.T, size int) Region {
			r, err := OpenFileRegion(filepath.Join(t.TempDir(), "eeprom.bin"), size)
			require.NoError(t, err)
			t.Cleanup(func() { r.Close() })
			return r
		}},
		{"sqlite", func(t *testing.T, size int) Region {
			r, err := OpenSQLiteRegion(context.Background(), ":memory:", size)
			require.NoError(t, err)
			t.Cleanup(func() { r.Close() })
			return r
		}},
	}
}

func TestRegionStartsErased(t *testing.T) {
	for _, f := range regionFactories() {
		t.Run(f.name, func(t *testing.T) {
			r := f.open(t, 16)
			assert.Equal(t, 16, r.Size())
			for off := 0; off < r.Size(); off++ {
				b, err := r.Read(off)
				require.NoError(t, err)
				assert.Equal(t, Erased, b, "offset %d", off)
			}
		})
	}
}

func TestRegionReadWrite(t *testing.T) {
	for _, f := range regionFactories() {
		t.Run(f.name, func(t *testing.T) {
			r := f.open(t, 16)

			require.NoError(t, r.Write(0, 0xA5))
			require.NoError(t, r.Write(15, 0x00))
			require.NoError(t, r.Write(0, 0x5A))

			b, err := r.Read(0)
			require.NoError(t, err)
			assert.Equal(t, byte(0x5A), b)

			b, err = r.Read(15)
			require.NoError(t, err)
			assert.Equal(t, byte(0x00), b)

			if wc, ok := r.(WriteCounter); ok {
				assert.Equal(t, uint64(3), wc.Writes())
			}
		})
	}
}

func TestRegionOutOfRange(t *testing.T) {
	for _, f := range regionFactories() {
		t.Run(f.name, func(t *testing.T) {
			r := f.open(t, 4)

			_, err := r.Read(4)
			assert.ErrorIs(t, err, ErrOutOfRange)
			_, err = r.Read(-1)
			assert.ErrorIs(t, err, ErrOutOfRange)
			assert.ErrorIs(t, r.Write(4, 1), ErrOutOfRange)
		})
	}
}

func TestFileRegionSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.bin")

	r, err := OpenFileRegion(path, 12)
	require.NoError(t, err)
	require.NoError(t, r.Write(1, 0x04))
	require.NoError(t, r.Close())

	r, err = OpenFileRegion(path, 12)
	require.NoError(t, err)
	defer r.Close()

	b, err := r.Read(1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x04), b)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(12), info.Size())
}

func TestFileRegionGrowsShortImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.bin")
	require.NoError(t, os.WriteFile(path, []byte{0xA5, 0x02}, 0o600))

	r, err := OpenFileRegion(path, 8)
	require.NoError(t, err)
	defer r.Close()

	b, err := r.Read(0)
	require.NoError(t, err)
	assert.Equal(t, byte(0xA5), b)

	b, err = r.Read(7)
	require.NoError(t, err)
	assert.Equal(t, Erased, b)
}

func TestFileRegionClosed(t *testing.T) {
	r, err := OpenFileRegion(filepath.Join(t.TempDir(), "eeprom.bin"), 4)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	_, err = r.Read(0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, r.Write(0, 1), ErrClosed)
}

func TestSQLiteRegionSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nvm.db")

	r, err := OpenSQLiteRegion(ctx, path, 12)
	require.NoError(t, err)
	require.NoError(t, r.Write(2, 0xDE))
	require.NoError(t, r.Close())

	r, err = OpenSQLiteRegion(ctx, path, 12)
	require.NoError(t, err)
	defer r.Close()

	b, err := r.Read(2)
	require.NoError(t, err)
	assert.Equal(t, byte(0xDE), b)
}

func TestInvalidSize(t *testing.T) {
	_, err := OpenFileRegion(filepath.Join(t.TempDir(), "x.bin"), 0)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = OpenSQLiteRegion(context.Background(), ":memory:", -1)
	assert.ErrorIs(t, err, ErrInvalidSize)

	assert.Equal(t, DefaultSize, NewMemoryRegion(0).Size())
}

func TestMemoryRegionSnapshotAndErase(t *testing.T) {
	m := NewMemoryRegion(3)
	require.NoError(t, m.Write(1, 0x01))
	assert.Equal(t, []byte{0xFF, 0x01, 0xFF}, m.Snapshot())

	m.Erase()
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF}, m.Snapshot())
	assert.Equal(t, uint64(1), m.Writes())
}
