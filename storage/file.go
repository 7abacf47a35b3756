package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
)

// Options configures a file-backed store.
type Options struct {
	// SyncWrites forces an fsync after every append. Slow but durable.
	SyncWrites bool

	// Mmap enables the zero-copy mmap read path. Appends remain file-based;
	// the mapping is refreshed on Sync.
	Mmap bool
}

// DefaultOptions are the default file store options.
var DefaultOptions = Options{
	SyncWrites: false,
	Mmap:       false,
}

// FileStore is the file-backed Store implementation.
//
// Layout is a flat append-only log. Addresses are byte ranges into the file.
// A process-level flock guarantees single-process ownership of the file.
type FileStore struct {
	mu     sync.Mutex // serializes appends
	file   *os.File
	flk    *flock.Flock
	size   atomic.Int64
	m      *mapping // non-nil when the mmap read path is active
	mmapMu sync.RWMutex
	opts   Options
	closed atomic.Bool
}

var _ Store = (*FileStore)(nil)

// OpenFile opens (or creates) the data file at path.
// Fails with ErrDatabaseLocked when another process owns the file.
func OpenFile(path string, optFns ...func(o *Options)) (*FileStore, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("storage: create directory: %w", err)
	}

	flk := flock.New(path + ".lock")
	locked, err := flk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("storage: acquire file lock: %w", err)
	}
	if !locked {
		return nil, ErrDatabaseLocked
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600) //nolint:gosec // G304: path is configurable
	if err != nil {
		_ = flk.Unlock()
		return nil, fmt.Errorf("storage: open data file: %w", err)
	}

	st, err := file.Stat()
	if err != nil {
		_ = file.Close()
		_ = flk.Unlock()
		return nil, fmt.Errorf("storage: stat data file: %w", err)
	}

	s := &FileStore{
		file: file,
		flk:  flk,
		opts: opts,
	}
	s.size.Store(st.Size())

	if opts.Mmap && st.Size() > 0 {
		m, err := openMapping(path)
		if err != nil {
			_ = file.Close()
			_ = flk.Unlock()
			return nil, fmt.Errorf("storage: mmap data file: %w", err)
		}
		s.m = m
	}

	return s, nil
}

// Read returns the buffer at addr.
func (s *FileStore) Read(addr Address) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if addr.Offset < 0 || addr.Length == 0 || addr.Offset+int64(addr.Length) > s.size.Load() {
		return nil, ErrCorruptData
	}

	s.mmapMu.RLock()
	m := s.m
	s.mmapMu.RUnlock()

	if m != nil {
		data := m.bytes()
		if addr.Offset+int64(addr.Length) <= int64(len(data)) {
			// Copy out: the mapping may be refreshed while the caller still
			// holds the buffer.
			buf := make([]byte, addr.Length)
			copy(buf, data[addr.Offset:addr.Offset+int64(addr.Length)])
			return buf, nil
		}
		// Tail not mapped yet; fall through to the file read path.
	}

	buf := make([]byte, addr.Length)
	n, err := s.file.ReadAt(buf, addr.Offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	if n != int(addr.Length) {
		return nil, ErrCorruptData
	}

	return buf, nil
}

// Append stores data at the end of the file and returns its address.
func (s *FileStore) Append(data []byte) (Address, error) {
	if s.closed.Load() {
		return Address{}, ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	offset := s.size.Load()
	if _, err := s.file.WriteAt(data, offset); err != nil {
		return Address{}, fmt.Errorf("storage: append: %w", err)
	}
	s.size.Store(offset + int64(len(data)))

	if s.opts.SyncWrites {
		if err := s.file.Sync(); err != nil {
			return Address{}, fmt.Errorf("storage: sync: %w", err)
		}
	}

	return Address{Offset: offset, Length: uint32(len(data))}, nil
}

// Sync flushes the file and refreshes the mmap view when enabled.
func (s *FileStore) Sync() error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("storage: sync: %w", err)
	}

	if s.opts.Mmap {
		m, err := openMapping(s.file.Name())
		if err != nil {
			return fmt.Errorf("storage: remap data file: %w", err)
		}
		s.mmapMu.Lock()
		old := s.m
		s.m = m
		s.mmapMu.Unlock()
		if old != nil {
			_ = old.close()
		}
	}

	return nil
}

// Size returns the current size of the data file.
func (s *FileStore) Size() int64 { return s.size.Load() }

// Close releases the mapping, the file handle and the process lock.
func (s *FileStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mmapMu.Lock()
	if s.m != nil {
		_ = s.m.close()
		s.m = nil
	}
	s.mmapMu.Unlock()

	err := s.file.Close()
	if uerr := s.flk.Unlock(); err == nil {
		err = uerr
	}
	return err
}
