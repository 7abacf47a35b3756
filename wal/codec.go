package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/docgo/codec"
)

// File layout:
//
//	| magic "DGWAL" | version (1B) | flags (1B) | codec name len (1B) | codec name |
//	| entry | entry | ...
//
// Entry layout:
//
//	| body length (4B LE) | crc32 IEEE of body (4B LE) | body |
//
// The body is the codec-encoded Entry, zstd-compressed when the compression
// flag is set. A torn tail (short read) terminates replay silently; a
// checksum mismatch is reported as corruption.

var walMagic = []byte("DGWAL")

const (
	walVersion = 1

	flagCompressed byte = 1 << 0

	entryHeaderSize = 8
)

// ErrCorruptEntry is returned when an entry fails checksum validation.
var ErrCorruptEntry = errors.New("wal: corrupt entry")

var (
	walZstdEncoder, _ = zstd.NewWriter(nil)
	walZstdDecoder, _ = zstd.NewReader(nil)
)

func writeHeader(w io.Writer, c codec.Codec, compressed bool) error {
	name := c.Name()
	buf := make([]byte, 0, len(walMagic)+3+len(name))
	buf = append(buf, walMagic...)
	buf = append(buf, walVersion)
	var flags byte
	if compressed {
		flags |= flagCompressed
	}
	buf = append(buf, flags, byte(len(name)))
	buf = append(buf, name...)
	_, err := w.Write(buf)
	return err
}

func readHeader(r io.Reader) (c codec.Codec, compressed bool, size int64, err error) {
	fixed := make([]byte, len(walMagic)+3)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, false, 0, fmt.Errorf("wal: read header: %w", err)
	}
	if string(fixed[:len(walMagic)]) != string(walMagic) {
		return nil, false, 0, errors.New("wal: bad magic")
	}
	if fixed[len(walMagic)] != walVersion {
		return nil, false, 0, fmt.Errorf("wal: unsupported version %d", fixed[len(walMagic)])
	}
	flags := fixed[len(walMagic)+1]
	nameLen := int(fixed[len(walMagic)+2])

	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, false, 0, fmt.Errorf("wal: read header: %w", err)
	}
	c, ok := codec.ByName(string(name))
	if !ok {
		return nil, false, 0, fmt.Errorf("wal: unknown codec %q", name)
	}

	return c, flags&flagCompressed != 0, int64(len(fixed) + nameLen), nil
}

func encodeEntry(c codec.Codec, e Entry, compressed bool) ([]byte, error) {
	body, err := c.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("wal: encode entry: %w", err)
	}
	if compressed {
		body = walZstdEncoder.EncodeAll(body, nil)
	}

	buf := make([]byte, entryHeaderSize+len(body))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(body)))
	binary.LittleEndian.PutUint32(buf[4:8], crc32.ChecksumIEEE(body))
	copy(buf[entryHeaderSize:], body)
	return buf, nil
}

// decodeEntry reads one entry from r. io.EOF (including a torn tail) is
// returned as io.EOF so replay can stop cleanly.
func decodeEntry(r io.Reader, c codec.Codec, compressed bool) (Entry, error) {
	header := make([]byte, entryHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Entry{}, io.EOF
		}
		return Entry{}, err
	}

	length := binary.LittleEndian.Uint32(header[0:4])
	sum := binary.LittleEndian.Uint32(header[4:8])

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Entry{}, io.EOF
		}
		return Entry{}, err
	}

	if crc32.ChecksumIEEE(body) != sum {
		return Entry{}, ErrCorruptEntry
	}

	if compressed {
		var err error
		body, err = walZstdDecoder.DecodeAll(body, nil)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
		}
	}

	var e Entry
	if err := c.Unmarshal(body, &e); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	return e, nil
}
