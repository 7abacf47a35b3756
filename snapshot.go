package docgo

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/hupe1980/docgo/codec"
	"github.com/hupe1980/docgo/storage"
)

// Snapshot layout:
//
//	| magic "DGSNAP" | version (1B) | codec name len (1B) | codec name |
//	| body length (4B LE) | body | crc32 IEEE of body (4B LE) |
//
// The body is a codec-marshaled catalogState. Addresses point into the
// append-only data file, so a snapshot stays valid as long as the data file
// is never truncated.

var snapshotMagic = []byte("DGSNAP")

const snapshotVersion = 1

type catalogState struct {
	Collections []collectionState `json:"collections"`
}

type collectionState struct {
	Name    string   `json:"name"`
	Indexes []string `json:"indexes,omitempty"`
	Docs    []docRef `json:"docs"`
}

type docRef struct {
	ID     string `json:"id"`
	Offset int64  `json:"o"`
	Length uint32 `json:"l"`
}

// saveSnapshot persists the catalog to snapshotPath. Caller holds the
// exclusive lock.
func (db *DB) saveSnapshot(ctx context.Context) error {
	buf, err := encodeSnapshot(db.codec, db.snapshotState())
	if err != nil {
		return err
	}

	if err := db.ctl.WaitIO(ctx, len(buf)); err != nil {
		return err
	}

	// Temp-and-rename keeps the previous snapshot intact on a crash
	// mid-write.
	dir := filepath.Dir(db.snapshotPath)
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("snapshot: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("snapshot: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, db.snapshotPath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("snapshot: rename: %w", err)
	}
	return nil
}

// loadSnapshot rebuilds the catalog from snapshotPath. A missing file is a
// fresh database. Runs during Open, before any reader exists.
func (db *DB) loadSnapshot() error {
	buf, err := os.ReadFile(db.snapshotPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("snapshot: read: %w", err)
	}

	state, snapCodec, err := decodeSnapshot(buf)
	if err != nil {
		return err
	}
	// Persisted files are self-describing; adopt their codec so documents
	// written under it keep decoding.
	db.codec = snapCodec

	for _, cs := range state.Collections {
		col := db.catalog.GetOrCreate(cs.Name)
		for _, field := range cs.Indexes {
			col.EnsureIndex(field)
		}

		for _, ref := range cs.Docs {
			addr := storage.Address{Offset: ref.Offset, Length: ref.Length}

			if len(cs.Indexes) == 0 {
				// No secondary trees to fill; skip materialization.
				if err := col.Insert(ref.ID, nil, addr); err != nil {
					return translateError(err)
				}
				continue
			}

			doc, err := db.materialize(addr)
			if err != nil {
				return fmt.Errorf("snapshot: %q/%q: %w", cs.Name, ref.ID, err)
			}
			if err := col.Insert(ref.ID, doc, addr); err != nil {
				return translateError(err)
			}
		}
	}
	return nil
}

// snapshotState captures the catalog. Caller holds a lock excluding writers.
func (db *DB) snapshotState() catalogState {
	var state catalogState
	for _, name := range db.catalog.Names() {
		col, ok := db.catalog.Get(name)
		if !ok {
			continue
		}

		cs := collectionState{
			Name:    name,
			Indexes: col.IndexFields(),
			Docs:    make([]docRef, 0, col.Len()),
		}
		for e, err := range col.Entries() {
			if err != nil {
				continue
			}
			cs.Docs = append(cs.Docs, docRef{
				ID:     string(e.Key),
				Offset: e.Addr.Offset,
				Length: e.Addr.Length,
			})
		}
		state.Collections = append(state.Collections, cs)
	}
	return state
}

func encodeSnapshot(c codec.Codec, state catalogState) ([]byte, error) {
	body, err := c.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}

	name := c.Name()
	if len(name) > 255 {
		return nil, fmt.Errorf("snapshot: codec name too long: %q", name)
	}

	var buf bytes.Buffer
	buf.Write(snapshotMagic)
	buf.WriteByte(snapshotVersion)
	buf.WriteByte(byte(len(name)))
	buf.WriteString(name)

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	buf.Write(lenBuf[:])
	buf.Write(body)

	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc32.ChecksumIEEE(body))
	buf.Write(crcBuf[:])

	return buf.Bytes(), nil
}

func decodeSnapshot(buf []byte) (catalogState, codec.Codec, error) {
	var state catalogState

	headerLen := len(snapshotMagic) + 2
	if len(buf) < headerLen || !bytes.Equal(buf[:len(snapshotMagic)], snapshotMagic) {
		return state, nil, fmt.Errorf("%w: bad snapshot header", ErrCorruptData)
	}

	version := buf[len(snapshotMagic)]
	if version != snapshotVersion {
		return state, nil, fmt.Errorf("snapshot: unsupported version %d", version)
	}

	nameLen := int(buf[len(snapshotMagic)+1])
	rest := buf[headerLen:]
	if len(rest) < nameLen+4 {
		return state, nil, fmt.Errorf("%w: truncated snapshot", ErrCorruptData)
	}

	name := string(rest[:nameLen])
	snapCodec, ok := codec.ByName(name)
	if !ok {
		return state, nil, fmt.Errorf("snapshot: unknown codec %q", name)
	}
	rest = rest[nameLen:]

	bodyLen := binary.LittleEndian.Uint32(rest[:4])
	rest = rest[4:]
	if uint32(len(rest)) < bodyLen+4 {
		return state, nil, fmt.Errorf("%w: truncated snapshot", ErrCorruptData)
	}

	body := rest[:bodyLen]
	sum := binary.LittleEndian.Uint32(rest[bodyLen : bodyLen+4])
	if crc32.ChecksumIEEE(body) != sum {
		return state, nil, fmt.Errorf("%w: snapshot checksum mismatch", ErrCorruptData)
	}

	if err := snapCodec.Unmarshal(body, &state); err != nil {
		return state, nil, fmt.Errorf("%w: decode snapshot: %w", ErrCorruptData, err)
	}

	return state, snapCodec, nil
}
