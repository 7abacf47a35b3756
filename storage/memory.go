package storage

import (
	"sync"
)

// MemoryStore is an in-memory Store implementation.
//
// Used for ephemeral databases and tests. Thread-safe for concurrent reads
// and appends.
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Read returns the buffer at addr.
func (s *MemoryStore) Read(addr Address) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if addr.Offset < 0 || addr.Length == 0 || addr.Offset+int64(addr.Length) > int64(len(s.data)) {
		return nil, ErrCorruptData
	}

	buf := make([]byte, addr.Length)
	copy(buf, s.data[addr.Offset:addr.Offset+int64(addr.Length)])
	return buf, nil
}

// Append stores data and returns its address.
func (s *MemoryStore) Append(data []byte) (Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset := int64(len(s.data))
	s.data = append(s.data, data...)
	return Address{Offset: offset, Length: uint32(len(data))}, nil
}

// Sync is a no-op for the memory store.
func (s *MemoryStore) Sync() error { return nil }

// Size returns the current size of the store.
func (s *MemoryStore) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data))
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

// Corrupt flips a byte at the given offset. Test helper.
func (s *MemoryStore) Corrupt(offset int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset >= 0 && offset < int64(len(s.data)) {
		s.data[offset] ^= 0xFF
	}
}
