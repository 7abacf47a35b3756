//go:build unix

package storage

import (
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// mapping is a read-only memory mapping of the data file.
type mapping struct {
	data   []byte
	closed atomic.Bool
}

func openMapping(path string) (*mapping, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is configurable
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		return &mapping{}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	return &mapping{data: data}, nil
}

func (m *mapping) bytes() []byte { return m.data }

func (m *mapping) close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	return unix.Munmap(data)
}
