// Package storage implements the raw data layer of docgo: a single
// append-only data file addressed by opaque locators.
//
// The store knows nothing about documents. It hands out byte buffers for
// addresses and reports corruption when an address does not resolve to a
// complete buffer. Envelope validation (checksums) happens one layer up, in
// the document codec.
package storage

import (
	"errors"
)

var (
	// ErrCorruptData is returned when an address does not resolve to a
	// complete byte buffer (out of range, truncated file).
	ErrCorruptData = errors.New("storage: corrupt data")

	// ErrDatabaseLocked is returned when another process holds the data file.
	ErrDatabaseLocked = errors.New("storage: database file locked by another process")

	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("storage: store closed")
)

// Address is an opaque locator for a stored byte buffer.
type Address struct {
	Offset int64
	Length uint32
}

// IsZero reports whether the address is the zero locator.
func (a Address) IsZero() bool { return a.Offset == 0 && a.Length == 0 }

// Store maps addresses to raw byte buffers.
//
// Implementations must support concurrent readers. Append is serialized
// internally; callers coordinate writers at a higher level.
type Store interface {
	// Read returns the buffer at addr. Fails with ErrCorruptData when the
	// address is invalid or the underlying bytes are truncated.
	Read(addr Address) ([]byte, error)

	// Append stores data and returns its address.
	Append(data []byte) (Address, error)

	// Sync flushes buffered writes to stable storage.
	Sync() error

	// Size returns the current logical size of the store in bytes.
	Size() int64

	// Close releases all resources held by the store.
	Close() error
}
