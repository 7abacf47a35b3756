package docgo

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/hupe1980/docgo/codec"
	"github.com/hupe1980/docgo/document"
	"github.com/hupe1980/docgo/index"
	"github.com/hupe1980/docgo/internal/locker"
	"github.com/hupe1980/docgo/resource"
	"github.com/hupe1980/docgo/storage"
	"github.com/hupe1980/docgo/wal"
)

const (
	dataFileName     = "docgo.db"
	snapshotFileName = "docgo.snapshot"
)

// DB is an embedded, single-file document database.
//
// Reads are lazy streams: a scan holds the shared lock from its first pull
// until it is exhausted or abandoned, and materializes one document per
// element. Writers take the exclusive lock and go through the write-ahead
// log before touching the in-memory indexes.
type DB struct {
	locker   *locker.Locker
	store    storage.Store
	codec    codec.Codec
	catalog  *Catalog
	indexer  index.Indexer
	wal      *wal.WAL // nil when disabled
	signaler wal.CheckpointSignaler
	ctl      *resource.Controller
	logger   *Logger
	metrics  MetricsCollector

	snapshotPath string
	closed       atomic.Bool
}

// Open opens (or creates) a database in the given directory.
//
// The directory holds the data file, the snapshot and the write-ahead log.
// A process-level file lock guarantees single-process ownership; a second
// Open of the same directory fails with ErrDatabaseLocked.
func Open(dir string, optFns ...func(o *Options)) (*DB, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	store, err := storage.OpenFile(filepath.Join(dir, dataFileName), func(o *storage.Options) {
		o.Mmap = opts.Mmap
		o.SyncWrites = opts.SyncWrites
	})
	if err != nil {
		return nil, translateError(err)
	}

	db := newDB(store, opts)
	db.snapshotPath = filepath.Join(dir, snapshotFileName)

	if err := db.loadSnapshot(); err != nil {
		_ = store.Close()
		return nil, err
	}

	if !opts.DisableWAL {
		// The log lives next to the data file; the path option is not
		// overridable.
		walOpts := append(append([]func(o *wal.Options){}, opts.WALOptions...), func(o *wal.Options) {
			o.Path = dir
		})

		w, err := wal.New(db.codec, db.ctl, walOpts...)
		if err != nil {
			_ = store.Close()
			return nil, err
		}

		if err := db.replayWAL(w.FilePath()); err != nil {
			_ = w.Close()
			_ = store.Close()
			return nil, err
		}

		w.SetCheckpointCallback(func() error {
			return db.Checkpoint(context.Background())
		})
		db.wal = w
		db.signaler = w
	}

	return db, nil
}

// InMemory creates an ephemeral database backed by memory. No file lock, no
// write-ahead log, no snapshot. Useful for tests and caches.
func InMemory(optFns ...func(o *Options)) *DB {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return newDB(storage.NewMemoryStore(), opts)
}

func newDB(store storage.Store, opts Options) *DB {
	c := opts.Codec
	if c == nil {
		c = codec.Default
	}
	logger := opts.Logger
	if logger == nil {
		logger = NoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetricsCollector{}
	}
	indexer := opts.Indexer
	if indexer == nil {
		indexer = index.TreeIndexer{}
	}

	return &DB{
		locker:   locker.New(),
		store:    store,
		codec:    c,
		catalog:  NewCatalog(),
		indexer:  indexer,
		signaler: wal.NoopSignaler{},
		ctl:      resource.NewController(opts.Resource),
		logger:   logger,
		metrics:  metrics,
	}
}

// Insert adds a document to the collection. The document must carry a
// non-empty identifier in its "_id" field.
func (db *DB) Insert(ctx context.Context, collection string, doc document.Document) (err error) {
	start := time.Now()
	defer func() {
		db.metrics.RecordInsert(time.Since(start), err)
	}()

	id, ok := doc.ID()
	if collection == "" || !ok {
		err = fmt.Errorf("%w: insert needs a collection name and a document id", ErrInvalidArgument)
		return err
	}
	defer func() { db.logger.LogWrite(ctx, "insert", collection, id, err) }()

	payload, err := db.codec.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	release := db.locker.AcquireExclusive()
	defer release()

	if db.closed.Load() {
		err = ErrClosed
		return err
	}

	col := db.catalog.GetOrCreate(collection)
	if _, exists := col.Get(id); exists {
		err = fmt.Errorf("%w: %q", ErrDuplicateID, id)
		return err
	}

	// Append before logging. A failed append must not leave a replayable
	// entry behind; a failed log only strands unreferenced record bytes.
	addr, err := db.store.Append(document.EncodeRecord(payload))
	if err != nil {
		err = translateError(err)
		return err
	}

	if err = db.logWAL(wal.Entry{Type: wal.OpInsert, Collection: collection, DocID: id, Payload: payload}); err != nil {
		return err
	}

	err = translateError(col.Insert(id, doc, addr))
	return err
}

// Update replaces the document with the given identifier.
func (db *DB) Update(ctx context.Context, collection string, doc document.Document) (err error) {
	start := time.Now()
	defer func() {
		db.metrics.RecordUpdate(time.Since(start), err)
	}()

	id, ok := doc.ID()
	if collection == "" || !ok {
		err = fmt.Errorf("%w: update needs a collection name and a document id", ErrInvalidArgument)
		return err
	}
	defer func() { db.logger.LogWrite(ctx, "update", collection, id, err) }()

	payload, err := db.codec.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	release := db.locker.AcquireExclusive()
	defer release()

	if db.closed.Load() {
		err = ErrClosed
		return err
	}

	col, found := db.catalog.Get(collection)
	if !found {
		err = fmt.Errorf("%w: collection %q", ErrNotFound, collection)
		return err
	}

	entry, found := col.Get(id)
	if !found {
		err = fmt.Errorf("%w: %q", ErrNotFound, id)
		return err
	}

	// The previous document value is needed to unlink stale secondary
	// index entries.
	old, err := db.materialize(entry.Addr)
	if err != nil {
		return err
	}

	// Same ordering as Insert: append first so a failed append cannot be
	// resurrected from the log on the next open.
	addr, err := db.store.Append(document.EncodeRecord(payload))
	if err != nil {
		err = translateError(err)
		return err
	}

	if err = db.logWAL(wal.Entry{Type: wal.OpUpdate, Collection: collection, DocID: id, Payload: payload}); err != nil {
		return err
	}

	err = translateError(col.Update(id, old, doc, addr))
	return err
}

// Delete removes the document with the given identifier.
func (db *DB) Delete(ctx context.Context, collection, id string) (err error) {
	start := time.Now()
	defer func() {
		db.metrics.RecordDelete(time.Since(start), err)
	}()

	if collection == "" || id == "" {
		err = fmt.Errorf("%w: delete needs a collection name and a document id", ErrInvalidArgument)
		return err
	}
	defer func() { db.logger.LogWrite(ctx, "delete", collection, id, err) }()

	release := db.locker.AcquireExclusive()
	defer release()

	if db.closed.Load() {
		err = ErrClosed
		return err
	}

	col, found := db.catalog.Get(collection)
	if !found {
		err = fmt.Errorf("%w: collection %q", ErrNotFound, collection)
		return err
	}

	if _, found := col.Get(id); !found {
		err = fmt.Errorf("%w: %q", ErrNotFound, id)
		return err
	}

	if err = db.logWAL(wal.Entry{Type: wal.OpDelete, Collection: collection, DocID: id}); err != nil {
		return err
	}

	err = translateError(col.Delete(id))
	return err
}

// EnsureIndex creates a secondary index on a dotted field path and backfills
// it from the existing documents of the collection.
func (db *DB) EnsureIndex(ctx context.Context, collection, field string) error {
	if collection == "" || field == "" || field == document.IDField {
		return fmt.Errorf("%w: index needs a collection name and a non-id field", ErrInvalidArgument)
	}

	release := db.locker.AcquireExclusive()
	defer release()

	if db.closed.Load() {
		return ErrClosed
	}

	col := db.catalog.GetOrCreate(collection)
	if col.HasIndex(field) {
		return nil
	}
	col.EnsureIndex(field)

	for e, err := range col.Entries() {
		if err != nil {
			return translateError(err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := db.materialize(e.Addr)
		if err != nil {
			return err
		}
		col.IndexEntry(field, doc, e)
	}

	db.logger.InfoContext(ctx, "index created",
		"collection", collection,
		"field", field,
	)
	return nil
}

// DropCollection removes a collection and all its documents. The stored
// bytes become garbage reclaimed by the next checkpoint cycle.
func (db *DB) DropCollection(ctx context.Context, collection string) (err error) {
	if collection == "" {
		return fmt.Errorf("%w: drop needs a collection name", ErrInvalidArgument)
	}
	defer func() { db.logger.LogWrite(ctx, "drop", collection, "", err) }()

	release := db.locker.AcquireExclusive()
	defer release()

	if db.closed.Load() {
		return ErrClosed
	}

	if _, found := db.catalog.Get(collection); !found {
		err = fmt.Errorf("%w: collection %q", ErrNotFound, collection)
		return err
	}

	if err = db.logWAL(wal.Entry{Type: wal.OpDropCollection, Collection: collection}); err != nil {
		return err
	}

	db.catalog.Drop(collection)
	return nil
}

// Compact rebuilds the in-memory indexes without tombstoned entries.
func (db *DB) Compact() error {
	release := db.locker.AcquireExclusive()
	defer release()

	if db.closed.Load() {
		return ErrClosed
	}

	for _, name := range db.catalog.Names() {
		if col, ok := db.catalog.Get(name); ok {
			col.Compact()
		}
	}
	return nil
}

// Collections returns the collection names in sorted order.
func (db *DB) Collections() []string {
	release := db.locker.AcquireShared()
	defer release()
	return db.catalog.Names()
}

// Checkpoint persists a snapshot of the catalog and truncates the
// write-ahead log. Auto-checkpoints triggered by stream activity call this
// on a background worker.
func (db *DB) Checkpoint(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		db.metrics.RecordCheckpoint(time.Since(start), err)
		db.logger.LogCheckpoint(ctx, err)
	}()

	release := db.locker.AcquireExclusive()
	defer release()

	if db.closed.Load() {
		err = ErrClosed
		return err
	}

	if err = db.store.Sync(); err != nil {
		err = translateError(err)
		return err
	}

	if db.snapshotPath != "" {
		if err = db.saveSnapshot(ctx); err != nil {
			return err
		}
	}

	if db.wal != nil {
		if err = db.wal.Checkpoint(); err != nil {
			return err
		}
	}
	return nil
}

// Close checkpoints once more, drains background work and releases the data
// file. The database must not be used afterwards.
func (db *DB) Close() error {
	if db.closed.Load() {
		return nil
	}

	// Final checkpoint so the next Open starts from the snapshot instead of
	// a long replay.
	if db.snapshotPath != "" {
		_ = db.Checkpoint(context.Background())
	}

	release := db.locker.AcquireExclusive()
	if !db.closed.CompareAndSwap(false, true) {
		release()
		return nil
	}
	// Release before draining: a queued background checkpoint needs the lock
	// to observe the closed flag and bail out.
	release()

	var errs []error
	if db.wal != nil {
		if err := db.wal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	db.ctl.Drain()
	if err := db.store.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (db *DB) logWAL(e wal.Entry) error {
	if db.wal == nil {
		return nil
	}
	return db.wal.Log(e)
}

// materialize fetches and decodes one document. Storage and envelope
// failures surface as ErrCorruptData.
func (db *DB) materialize(addr storage.Address) (document.Document, error) {
	buf, err := db.store.Read(addr)
	if err != nil {
		return nil, translateError(err)
	}

	payload, err := document.DecodeRecord(buf)
	if err != nil {
		return nil, translateError(err)
	}

	var doc document.Document
	if err := db.codec.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode document: %w", ErrCorruptData, err)
	}

	db.metrics.RecordMaterialization()
	return doc, nil
}

// replayWAL applies the entries logged after the last checkpoint. Payloads
// are re-appended to the data file; superseded bytes become garbage that the
// next checkpoint cycle leaves behind.
func (db *DB) replayWAL(path string) error {
	return wal.Replay(path, func(e wal.Entry) error {
		switch e.Type {
		case wal.OpInsert, wal.OpUpdate:
			var doc document.Document
			if err := db.codec.Unmarshal(e.Payload, &doc); err != nil {
				return fmt.Errorf("%w: replay %q/%q: %w", ErrCorruptData, e.Collection, e.DocID, err)
			}

			addr, err := db.store.Append(document.EncodeRecord(e.Payload))
			if err != nil {
				return translateError(err)
			}

			col := db.catalog.GetOrCreate(e.Collection)
			if entry, ok := col.Get(e.DocID); ok {
				old, err := db.materialize(entry.Addr)
				if err != nil {
					return err
				}
				return translateError(col.Update(e.DocID, old, doc, addr))
			}
			return translateError(col.Insert(e.DocID, doc, addr))

		case wal.OpDelete:
			col, ok := db.catalog.Get(e.Collection)
			if !ok {
				return nil
			}
			if _, ok := col.Get(e.DocID); !ok {
				return nil
			}
			return translateError(col.Delete(e.DocID))

		case wal.OpDropCollection:
			db.catalog.Drop(e.Collection)
			return nil

		default:
			return nil
		}
	})
}
