package document

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// Record envelope layout:
//
//	| payload length (4B LE) | crc32 IEEE of payload (4B LE) | payload |
//
// The checksum detects accidental storage corruption, not tampering.

// ErrCorruptRecord is returned when a record envelope fails validation.
var ErrCorruptRecord = errors.New("document: corrupt record")

// recordHeaderSize is the fixed size of the record envelope header.
const recordHeaderSize = 8

// EncodeRecord wraps an encoded document payload in the record envelope.
func EncodeRecord(payload []byte) []byte {
	buf := make([]byte, recordHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[4:8], crc32.ChecksumIEEE(payload))
	copy(buf[recordHeaderSize:], payload)
	return buf
}

// DecodeRecord validates the envelope and returns the payload.
// Truncated buffers and checksum mismatches fail with ErrCorruptRecord.
func DecodeRecord(buf []byte) ([]byte, error) {
	if len(buf) < recordHeaderSize {
		return nil, ErrCorruptRecord
	}

	length := binary.LittleEndian.Uint32(buf[0:4])
	sum := binary.LittleEndian.Uint32(buf[4:8])

	if uint32(len(buf)-recordHeaderSize) < length {
		return nil, ErrCorruptRecord
	}

	payload := buf[recordHeaderSize : recordHeaderSize+int(length)]
	if crc32.ChecksumIEEE(payload) != sum {
		return nil, ErrCorruptRecord
	}

	return payload, nil
}

// RecordSize returns the on-disk size of a record with the given payload length.
func RecordSize(payloadLen int) int {
	return recordHeaderSize + payloadLen
}
