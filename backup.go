package docgo

import (
	"context"
	"fmt"

	"github.com/hupe1980/docgo/blobstore"
	"github.com/hupe1980/docgo/storage"
)

// backupChunkSize bounds a single store read while copying the data file.
const backupChunkSize = 1 << 20

// Backup writes a consistent copy of the database to a blob store under the
// given name: the data file as <name>.db and the catalog snapshot as
// <name>.snapshot. Writers are blocked for the duration; readers queue
// behind the exclusive lock.
//
// Any blobstore.BlobStore works: local directory, memory, S3 or MinIO.
func (db *DB) Backup(ctx context.Context, bs blobstore.BlobStore, name string) error {
	if bs == nil || name == "" {
		return fmt.Errorf("%w: backup needs a blob store and a name", ErrInvalidArgument)
	}

	release := db.locker.AcquireExclusive()
	defer release()

	if db.closed.Load() {
		return ErrClosed
	}

	if err := db.store.Sync(); err != nil {
		return translateError(err)
	}

	snap, err := encodeSnapshot(db.codec, db.snapshotState())
	if err != nil {
		return err
	}

	// The data file can outgrow what a single Address describes, so the
	// copy runs in bounded chunks.
	var data []byte
	if size := db.store.Size(); size > 0 {
		data = make([]byte, 0, size)
		for off := int64(0); off < size; {
			n := min(int64(backupChunkSize), size-off)
			chunk, err := db.store.Read(storage.Address{Offset: off, Length: uint32(n)})
			if err != nil {
				return translateError(err)
			}
			data = append(data, chunk...)
			off += n
		}
	}

	if err := db.ctl.WaitIO(ctx, len(data)+len(snap)); err != nil {
		return err
	}

	if err := bs.Put(ctx, name+".db", data); err != nil {
		return fmt.Errorf("backup: upload data file: %w", err)
	}
	if err := bs.Put(ctx, name+".snapshot", snap); err != nil {
		return fmt.Errorf("backup: upload snapshot: %w", err)
	}

	db.logger.InfoContext(ctx, "backup complete",
		"name", name,
		"bytes", len(data)+len(snap),
	)
	return nil
}

// RestoreFiles downloads a backup into a directory suitable for Open. It
// refuses to overwrite an existing data file.
func RestoreFiles(ctx context.Context, bs blobstore.BlobStore, name, dir string) error {
	if bs == nil || name == "" || dir == "" {
		return fmt.Errorf("%w: restore needs a blob store, a name and a directory", ErrInvalidArgument)
	}

	local := blobstore.NewLocalStore(dir)
	for src, dst := range map[string]string{
		name + ".db":       dataFileName,
		name + ".snapshot": snapshotFileName,
	} {
		blob, err := bs.Open(ctx, src)
		if err != nil {
			return fmt.Errorf("restore: fetch %s: %w", src, err)
		}
		data, err := blobstore.ReadAll(blob)
		_ = blob.Close()
		if err != nil {
			return fmt.Errorf("restore: read %s: %w", src, err)
		}

		if existing, err := local.Open(ctx, dst); err == nil {
			_ = existing.Close()
			return fmt.Errorf("restore: %s already exists in %s", dst, dir)
		}
		if err := local.Put(ctx, dst, data); err != nil {
			return fmt.Errorf("restore: write %s: %w", dst, err)
		}
	}
	return nil
}
