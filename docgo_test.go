package docgo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docgo/blobstore"
	"github.com/hupe1980/docgo/document"
	"github.com/hupe1980/docgo/query"
	"github.com/hupe1980/docgo/storage"
	"github.com/hupe1980/docgo/wal"
)

// appendFailStore rejects every append while passing reads through.
type appendFailStore struct {
	storage.Store
	err error
}

func (s *appendFailStore) Append([]byte) (storage.Address, error) {
	return storage.Address{}, s.err
}

func TestWritePath(t *testing.T) {
	ctx := context.Background()

	t.Run("InsertAndFind", func(t *testing.T) {
		db := InMemory()
		defer db.Close()

		require.NoError(t, db.Insert(ctx, "users", document.Document{"_id": "u1", "name": "Ada"}))

		doc, err := db.FindByID(ctx, "users", "u1")
		require.NoError(t, err)
		assert.Equal(t, "Ada", doc["name"])
	})

	t.Run("InsertValidation", func(t *testing.T) {
		db := InMemory()
		defer db.Close()

		err := db.Insert(ctx, "", document.Document{"_id": "u1"})
		require.ErrorIs(t, err, ErrInvalidArgument)

		err = db.Insert(ctx, "users", document.Document{"name": "no id"})
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("InsertDuplicate", func(t *testing.T) {
		db := InMemory()
		defer db.Close()

		require.NoError(t, db.Insert(ctx, "users", document.Document{"_id": "u1"}))
		err := db.Insert(ctx, "users", document.Document{"_id": "u1"})
		require.ErrorIs(t, err, ErrDuplicateID)
	})

	t.Run("Update", func(t *testing.T) {
		db := InMemory()
		defer db.Close()

		require.NoError(t, db.Insert(ctx, "users", document.Document{"_id": "u1", "age": float64(30)}))
		require.NoError(t, db.Update(ctx, "users", document.Document{"_id": "u1", "age": float64(31)}))

		doc, err := db.FindByID(ctx, "users", "u1")
		require.NoError(t, err)
		assert.Equal(t, float64(31), doc["age"])

		err = db.Update(ctx, "users", document.Document{"_id": "missing"})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UpdateRelinksSecondaryIndex", func(t *testing.T) {
		db := InMemory()
		defer db.Close()

		require.NoError(t, db.Insert(ctx, "users", document.Document{"_id": "u1", "age": float64(30)}))
		require.NoError(t, db.EnsureIndex(ctx, "users", "age"))
		require.NoError(t, db.Update(ctx, "users", document.Document{"_id": "u1", "age": float64(50)}))

		docs, err := db.FindAll(ctx, "users", query.Eq("age", 30))
		require.NoError(t, err)
		assert.Empty(t, docs)

		docs, err = db.FindAll(ctx, "users", query.Eq("age", 50))
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})

	t.Run("Delete", func(t *testing.T) {
		db := InMemory()
		defer db.Close()

		require.NoError(t, db.Insert(ctx, "users", document.Document{"_id": "u1"}))
		require.NoError(t, db.Delete(ctx, "users", "u1"))

		_, err := db.FindByID(ctx, "users", "u1")
		require.ErrorIs(t, err, ErrNotFound)

		require.ErrorIs(t, db.Delete(ctx, "users", "u1"), ErrNotFound)
	})

	t.Run("DeleteThenReinsert", func(t *testing.T) {
		db := InMemory()
		defer db.Close()

		require.NoError(t, db.Insert(ctx, "users", document.Document{"_id": "u1", "v": float64(1)}))
		require.NoError(t, db.Delete(ctx, "users", "u1"))
		require.NoError(t, db.Insert(ctx, "users", document.Document{"_id": "u1", "v": float64(2)}))

		doc, err := db.FindByID(ctx, "users", "u1")
		require.NoError(t, err)
		assert.Equal(t, float64(2), doc["v"])
	})

	t.Run("DropCollection", func(t *testing.T) {
		db := InMemory()
		defer db.Close()

		require.NoError(t, db.Insert(ctx, "users", document.Document{"_id": "u1"}))
		require.NoError(t, db.DropCollection(ctx, "users"))
		assert.Empty(t, db.Collections())

		require.ErrorIs(t, db.DropCollection(ctx, "users"), ErrNotFound)
	})

	t.Run("Collections", func(t *testing.T) {
		db := InMemory()
		defer db.Close()

		require.NoError(t, db.Insert(ctx, "b", document.Document{"_id": "1"}))
		require.NoError(t, db.Insert(ctx, "a", document.Document{"_id": "1"}))
		assert.Equal(t, []string{"a", "b"}, db.Collections())
	})

	t.Run("Compact", func(t *testing.T) {
		db := InMemory()
		defer db.Close()

		for _, id := range []string{"u1", "u2", "u3"} {
			require.NoError(t, db.Insert(ctx, "users", document.Document{"_id": id}))
		}
		require.NoError(t, db.Delete(ctx, "users", "u2"))
		require.NoError(t, db.Compact())

		docs, err := db.FindAll(ctx, "users", query.All())
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("ReopenReplaysWAL", func(t *testing.T) {
		dir := t.TempDir()

		db, err := Open(dir, WithWALOptions(func(o *wal.Options) {
			o.DurabilityMode = wal.DurabilitySync
		}))
		require.NoError(t, err)
		require.NoError(t, db.Insert(ctx, "users", document.Document{"_id": "u1", "name": "Ada"}))
		require.NoError(t, db.Insert(ctx, "users", document.Document{"_id": "u2", "name": "Bob"}))
		require.NoError(t, db.Delete(ctx, "users", "u2"))

		// Abrupt close path: skip the final checkpoint so reopen relies on
		// the log alone.
		db.snapshotPath = ""
		require.NoError(t, db.Close())

		db, err = Open(dir)
		require.NoError(t, err)
		defer db.Close()

		doc, err := db.FindByID(ctx, "users", "u1")
		require.NoError(t, err)
		assert.Equal(t, "Ada", doc["name"])

		_, err = db.FindByID(ctx, "users", "u2")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("FailedAppendIsNotReplayed", func(t *testing.T) {
		dir := t.TempDir()

		db, err := Open(dir, WithWALOptions(func(o *wal.Options) {
			o.DurabilityMode = wal.DurabilitySync
		}))
		require.NoError(t, err)
		require.NoError(t, db.Insert(ctx, "users", document.Document{"_id": "u1"}))

		// A write rejected by the store must not leave a log entry that the
		// next open resurrects.
		boom := errors.New("device full")
		db.store = &appendFailStore{Store: db.store, err: boom}
		require.ErrorIs(t, db.Insert(ctx, "users", document.Document{"_id": "u2"}), boom)

		db.snapshotPath = ""
		require.NoError(t, db.Close())

		db, err = Open(dir)
		require.NoError(t, err)
		defer db.Close()

		_, err = db.FindByID(ctx, "users", "u1")
		require.NoError(t, err)

		_, err = db.FindByID(ctx, "users", "u2")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ReopenFromSnapshot", func(t *testing.T) {
		dir := t.TempDir()

		db, err := Open(dir)
		require.NoError(t, err)
		require.NoError(t, db.Insert(ctx, "users", document.Document{"_id": "u1", "age": float64(30)}))
		require.NoError(t, db.EnsureIndex(ctx, "users", "age"))
		require.NoError(t, db.Checkpoint(ctx))
		require.NoError(t, db.Close())

		db, err = Open(dir)
		require.NoError(t, err)
		defer db.Close()

		// The secondary index must survive the snapshot round trip.
		docs, err := db.FindAll(ctx, "users", query.Gte("age", 18))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, float64(30), docs[0]["age"])
	})

	t.Run("SecondOpenFailsLocked", func(t *testing.T) {
		dir := t.TempDir()

		db, err := Open(dir)
		require.NoError(t, err)
		defer db.Close()

		_, err = Open(dir)
		require.ErrorIs(t, err, ErrDatabaseLocked)
	})

	t.Run("ClosedDatabaseRejectsOperations", func(t *testing.T) {
		db := InMemory()
		require.NoError(t, db.Close())

		err := db.Insert(ctx, "users", document.Document{"_id": "u1"})
		require.ErrorIs(t, err, ErrClosed)

		var got error
		for _, err := range db.StreamDocuments(ctx, "users", query.All(), 0, -1) {
			got = err
		}
		require.ErrorIs(t, got, ErrClosed)
	})

	t.Run("CloseIsIdempotent", func(t *testing.T) {
		db := InMemory()
		require.NoError(t, db.Close())
		require.NoError(t, db.Close())
	})

	t.Run("WithoutWAL", func(t *testing.T) {
		dir := t.TempDir()

		db, err := Open(dir, WithoutWAL())
		require.NoError(t, err)
		require.NoError(t, db.Insert(ctx, "users", document.Document{"_id": "u1"}))
		require.NoError(t, db.Close()) // final checkpoint persists the snapshot

		db, err = Open(dir, WithoutWAL())
		require.NoError(t, err)
		defer db.Close()

		_, err = db.FindByID(ctx, "users", "u1")
		require.NoError(t, err)
	})
}

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		dir := t.TempDir()
		bs := blobstore.NewMemoryStore()

		db, err := Open(dir)
		require.NoError(t, err)
		require.NoError(t, db.Insert(ctx, "users", document.Document{"_id": "u1", "name": "Ada"}))
		require.NoError(t, db.Backup(ctx, bs, "nightly"))
		require.NoError(t, db.Close())

		names, err := bs.List(ctx, "nightly")
		require.NoError(t, err)
		assert.Equal(t, []string{"nightly.db", "nightly.snapshot"}, names)

		restoreDir := t.TempDir()
		require.NoError(t, RestoreFiles(ctx, bs, "nightly", restoreDir))

		restored, err := Open(restoreDir)
		require.NoError(t, err)
		defer restored.Close()

		doc, err := restored.FindByID(ctx, "users", "u1")
		require.NoError(t, err)
		assert.Equal(t, "Ada", doc["name"])
	})

	t.Run("MultiChunkDataFile", func(t *testing.T) {
		dir := t.TempDir()
		bs := blobstore.NewMemoryStore()

		db, err := Open(dir)
		require.NoError(t, err)

		// Grow the data file past a single backup chunk so the copy loop
		// has to stitch several reads together.
		blob := strings.Repeat("x", 300<<10)
		const n = 6
		for i := 1; i <= n; i++ {
			require.NoError(t, db.Insert(ctx, "blobs", document.Document{
				"_id":  fmt.Sprintf("b%d", i),
				"data": blob,
			}))
		}
		require.Greater(t, db.store.Size(), int64(backupChunkSize))

		require.NoError(t, db.Backup(ctx, bs, "big"))
		require.NoError(t, db.Close())

		restoreDir := t.TempDir()
		require.NoError(t, RestoreFiles(ctx, bs, "big", restoreDir))

		restored, err := Open(restoreDir)
		require.NoError(t, err)
		defer restored.Close()

		// The highest-address document lives past the first chunk; a short
		// copy would corrupt it.
		doc, err := restored.FindByID(ctx, "blobs", fmt.Sprintf("b%d", n))
		require.NoError(t, err)
		assert.Equal(t, blob, doc["data"])
	})

	t.Run("RefusesOverwrite", func(t *testing.T) {
		dir := t.TempDir()
		bs := blobstore.NewMemoryStore()

		db, err := Open(dir)
		require.NoError(t, err)
		require.NoError(t, db.Insert(ctx, "users", document.Document{"_id": "u1"}))
		require.NoError(t, db.Backup(ctx, bs, "snap"))
		require.NoError(t, db.Close())

		require.Error(t, RestoreFiles(ctx, bs, "snap", dir))
	})

	t.Run("Validation", func(t *testing.T) {
		db := InMemory()
		defer db.Close()

		require.ErrorIs(t, db.Backup(ctx, nil, "x"), ErrInvalidArgument)
		require.ErrorIs(t, db.Backup(ctx, blobstore.NewMemoryStore(), ""), ErrInvalidArgument)
	})
}

func TestCatalog(t *testing.T) {
	t.Run("GetOrCreateIsStable", func(t *testing.T) {
		c := NewCatalog()
		a := c.GetOrCreate("users")
		b := c.GetOrCreate("users")
		assert.Same(t, a, b)
	})

	t.Run("AbsentResolvesToNothing", func(t *testing.T) {
		c := NewCatalog()
		_, ok := c.Get("nope")
		assert.False(t, ok)
	})

	t.Run("Drop", func(t *testing.T) {
		c := NewCatalog()
		c.GetOrCreate("users")
		assert.True(t, c.Drop("users"))
		assert.False(t, c.Drop("users"))
	})
}
