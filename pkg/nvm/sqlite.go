package nvm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteRegion is a Region stored in an SQLite database, one row per written
// offset. Offsets without a row read as Erased.
type SQLiteRegion struct {
	db     *sql.DB
	size   int
	mu     sync.Mutex
	writes uint64
}

// OpenSQLiteRegion opens (or creates) the database at path and prepares the
// region table. Use ":memory:" for a throwaway region.
func OpenSQLiteRegion(ctx context.Context, path string, size int) (*SQLiteRegion, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("nvm: failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and serialises
	// writes the way an EEPROM would.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("nvm: failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = FULL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("nvm: failed to set PRAGMA synchronous: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS nvm_region (
		addr INTEGER PRIMARY KEY,
		value INTEGER NOT NULL CHECK (value BETWEEN 0 AND 255),
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("nvm: failed to create schema: %w", err)
	}

	return &SQLiteRegion{db: db, size: size}, nil
}

// Size returns the number of addressable bytes.
func (r *SQLiteRegion) Size() int {
	return r.size
}

// Read returns the byte at offset.
func (r *SQLiteRegion) Read(offset int) (byte, error) {
	if err := checkOffset(offset, r.size); err != nil {
		return 0, err
	}

	const query = `SELECT value FROM nvm_region WHERE addr = ? LIMIT 1`
	var v int
	if err := r.db.QueryRow(query, offset).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Erased, nil
		}
		return 0, err
	}
	return byte(v), nil
}

// Write stores b at offset.
func (r *SQLiteRegion) Write(offset int, b byte) error {
	if err := checkOffset(offset, r.size); err != nil {
		return err
	}

	const query = `
		INSERT INTO nvm_region (addr, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(addr) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := r.db.Exec(query, offset, int(b)); err != nil {
		return err
	}

	r.mu.Lock()
	r.writes++
	r.mu.Unlock()
	return nil
}

// Writes returns the number of bytes written since the region was opened.
func (r *SQLiteRegion) Writes() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

// Close closes the database.
func (r *SQLiteRegion) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Verify SQLiteRegion implements Region.
var _ Region = (*SQLiteRegion)(nil)
