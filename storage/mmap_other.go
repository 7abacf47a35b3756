//go:build !unix

package storage

import "errors"

// mapping is unsupported on this platform; the file read path is used instead.
type mapping struct{}

func openMapping(string) (*mapping, error) {
	return nil, errors.New("storage: mmap not supported on this platform")
}

func (m *mapping) bytes() []byte { return nil }

func (m *mapping) close() error { return nil }
