package wal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// Replay reads the log at path and invokes fn for every entry after the last
// checkpoint marker, in sequence order.
//
// A torn tail (partial final entry from a crash mid-write) terminates replay
// silently. A checksum mismatch anywhere else is reported as corruption.
func Replay(path string, fn func(Entry) error) error {
	file, err := os.Open(path) //nolint:gosec // G304: path is configurable
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("wal: open for replay: %w", err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	c, compressed, _, err := readHeader(r)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil // empty or headerless file, nothing to replay
		}
		return err
	}

	// Two passes would be wasteful for large logs; instead buffer entries
	// since the last checkpoint marker and flush at EOF.
	var pending []Entry
	for {
		e, err := decodeEntry(r, c, compressed)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if e.Type == OpCheckpoint {
			pending = pending[:0]
			continue
		}
		pending = append(pending, e)
	}

	for _, e := range pending {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}
