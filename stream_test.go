package docgo

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docgo/document"
	"github.com/hupe1980/docgo/query"
	"github.com/hupe1980/docgo/storage"
)

func seedUsers(t *testing.T, db *DB, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		require.NoError(t, db.Insert(ctx, "users", document.Document{
			"_id":  fmt.Sprintf("u%02d", i),
			"n":    float64(i),
			"even": i%2 == 0,
		}))
	}
}

func collectIDs(t *testing.T, db *DB, q *query.Query, skip, limit int) []string {
	t.Helper()
	var out []string
	for doc, err := range db.StreamDocuments(context.Background(), "users", q, skip, limit) {
		require.NoError(t, err)
		id, _ := doc.ID()
		out = append(out, id)
	}
	return out
}

func TestStreamDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("AbsentCollectionIsEmpty", func(t *testing.T) {
		db := InMemory()
		defer db.Close()

		count := 0
		for _, err := range db.StreamDocuments(ctx, "ghosts", query.All(), 0, -1) {
			require.NoError(t, err)
			count++
		}
		assert.Zero(t, count)
	})

	t.Run("InvalidArgumentsFailBeforeIO", func(t *testing.T) {
		metrics := &BasicMetricsCollector{}
		db := InMemory(WithMetricsCollector(metrics))
		defer db.Close()
		seedUsers(t, db, 3)

		for _, tc := range []struct {
			collection string
			q          *query.Query
		}{
			{"", query.All()},
			{"users", nil},
		} {
			var got error
			for _, err := range db.StreamDocuments(ctx, tc.collection, tc.q, 0, -1) {
				got = err
			}
			require.ErrorIs(t, got, ErrInvalidArgument)
		}
		assert.Zero(t, metrics.Materializations.Load())
	})

	t.Run("MatchAllInIDOrder", func(t *testing.T) {
		db := InMemory()
		defer db.Close()
		seedUsers(t, db, 5)

		assert.Equal(t, []string{"u01", "u02", "u03", "u04", "u05"},
			collectIDs(t, db, query.All(), 0, -1))
	})

	t.Run("FullScanSkipLimitCountsMatchesOnly", func(t *testing.T) {
		db := InMemory()
		defer db.Close()
		seedUsers(t, db, 10) // evens: u02 u04 u06 u08 u10

		// Non-matching documents must consume no skip or limit budget.
		assert.Equal(t, []string{"u04", "u06"},
			collectIDs(t, db, query.Eq("even", true), 1, 2))
	})

	t.Run("FullScanSkipPastAllMatches", func(t *testing.T) {
		db := InMemory()
		defer db.Close()
		seedUsers(t, db, 4)

		assert.Empty(t, collectIDs(t, db, query.Eq("even", true), 5, -1))
	})

	t.Run("IndexSeekSlicing", func(t *testing.T) {
		db := InMemory()
		defer db.Close()
		seedUsers(t, db, 5)

		// Match-all runs as an index seek over the primary tree.
		assert.Equal(t, []string{"u02", "u03"},
			collectIDs(t, db, query.All(), 1, 2))
	})

	t.Run("ZeroLimitYieldsNothing", func(t *testing.T) {
		db := InMemory()
		defer db.Close()
		seedUsers(t, db, 5)

		assert.Empty(t, collectIDs(t, db, query.All(), 0, 0))
		assert.Empty(t, collectIDs(t, db, query.Eq("even", true), 0, 0))
	})

	t.Run("SecondaryIndexSeek", func(t *testing.T) {
		db := InMemory()
		defer db.Close()
		seedUsers(t, db, 5)
		require.NoError(t, db.EnsureIndex(ctx, "users", "n"))

		metrics := &BasicMetricsCollector{}
		db.metrics = metrics

		got := collectIDs(t, db, query.Gte("n", 4), 0, -1)
		assert.Equal(t, []string{"u04", "u05"}, got)
		// An index seek materializes only the yielded documents.
		assert.Equal(t, int64(2), metrics.Materializations.Load())
	})

	t.Run("FindOneMaterializesAtMostOne", func(t *testing.T) {
		metrics := &BasicMetricsCollector{}
		db := InMemory(WithMetricsCollector(metrics))
		defer db.Close()
		seedUsers(t, db, 100)

		doc, err := db.FindByID(ctx, "users", "u07")
		require.NoError(t, err)
		id, _ := doc.ID()
		assert.Equal(t, "u07", id)
		assert.Equal(t, int64(1), metrics.Materializations.Load())
	})

	t.Run("FindByIDMissing", func(t *testing.T) {
		db := InMemory()
		defer db.Close()
		seedUsers(t, db, 3)

		_, err := db.FindByID(ctx, "users", "nope")
		require.ErrorIs(t, err, ErrNotFound)

		_, err = db.FindByID(ctx, "users", "")
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("AbandonedStreamReleasesLock", func(t *testing.T) {
		db := InMemory()
		defer db.Close()
		seedUsers(t, db, 10)

		for doc, err := range db.StreamDocuments(ctx, "users", query.All(), 0, -1) {
			require.NoError(t, err)
			if id, _ := doc.ID(); id == "u03" {
				break
			}
		}

		release, ok := db.locker.TryAcquireExclusive()
		require.True(t, ok, "abandoned stream must release the shared lock")
		release()
	})

	t.Run("ExhaustedStreamReleasesLock", func(t *testing.T) {
		db := InMemory()
		defer db.Close()
		seedUsers(t, db, 3)

		collectIDs(t, db, query.All(), 0, -1)

		release, ok := db.locker.TryAcquireExclusive()
		require.True(t, ok)
		release()
	})

	t.Run("CorruptRecordStopsStream", func(t *testing.T) {
		db := InMemory()
		defer db.Close()
		seedUsers(t, db, 5)

		mem := db.store.(*storage.MemoryStore)
		// Find u03's record and flip a payload byte.
		col, _ := db.catalog.Get("users")
		entry, ok := col.Get("u03")
		require.True(t, ok)
		mem.Corrupt(entry.Addr.Offset + int64(entry.Addr.Length) - 1)

		var got []string
		var gotErr error
		for doc, err := range db.StreamDocuments(ctx, "users", query.All(), 0, -1) {
			if err != nil {
				gotErr = err
				break
			}
			id, _ := doc.ID()
			got = append(got, id)
		}
		require.ErrorIs(t, gotErr, ErrCorruptData)
		// Documents yielded before the corruption stay valid.
		assert.Equal(t, []string{"u01", "u02"}, got)

		release, ok := db.locker.TryAcquireExclusive()
		require.True(t, ok, "failed stream must release the shared lock")
		release()
	})

	t.Run("ContextCancellation", func(t *testing.T) {
		db := InMemory()
		defer db.Close()
		seedUsers(t, db, 10)

		cctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var got []string
		var gotErr error
		for doc, err := range db.StreamDocuments(cctx, "users", query.All(), 0, -1) {
			if err != nil {
				gotErr = err
				break
			}
			id, _ := doc.ID()
			got = append(got, id)
			if len(got) == 2 {
				cancel()
			}
		}
		require.ErrorIs(t, gotErr, context.Canceled)
		assert.Len(t, got, 2)
	})

	t.Run("CheckpointOpportunityPerElement", func(t *testing.T) {
		db := InMemory()
		defer db.Close()
		seedUsers(t, db, 7)

		sig := &countingSignaler{}
		db.signaler = sig

		collectIDs(t, db, query.All(), 0, -1)
		assert.Equal(t, int64(7), sig.n.Load())

		sig.n.Store(0)
		collectIDs(t, db, query.Eq("even", true), 0, 2)
		// Only yielded elements signal, not scanned-and-rejected ones.
		assert.Equal(t, int64(2), sig.n.Load())
	})
}

type countingSignaler struct {
	n atomic.Int64
}

func (s *countingSignaler) OnCheckpointOpportunity() { s.n.Add(1) }

func TestStreamIndexKeys(t *testing.T) {
	ctx := context.Background()

	t.Run("IndexSeekSkipsMaterialization", func(t *testing.T) {
		metrics := &BasicMetricsCollector{}
		db := InMemory(WithMetricsCollector(metrics))
		defer db.Close()
		seedUsers(t, db, 5)

		var keys []string
		for k, err := range db.StreamIndexKeys(ctx, "users", query.All(), 0, -1) {
			require.NoError(t, err)
			keys = append(keys, string(k))
		}
		assert.Equal(t, []string{"u01", "u02", "u03", "u04", "u05"}, keys)
		assert.Zero(t, metrics.Materializations.Load())
	})

	t.Run("SlicingIgnoresPredicate", func(t *testing.T) {
		metrics := &BasicMetricsCollector{}
		db := InMemory(WithMetricsCollector(metrics))
		defer db.Close()
		seedUsers(t, db, 6)

		// Key streams slice the traversal sequence itself; the predicate is
		// never re-evaluated and nothing is materialized.
		var keys []string
		for k, err := range db.StreamIndexKeys(ctx, "users", query.Eq("even", true), 1, 2) {
			require.NoError(t, err)
			keys = append(keys, string(k))
		}
		assert.Equal(t, []string{"u02", "u03"}, keys)
		assert.Zero(t, metrics.Materializations.Load())
	})

	t.Run("SecondaryIndexKeys", func(t *testing.T) {
		db := InMemory()
		defer db.Close()
		seedUsers(t, db, 5)
		require.NoError(t, db.EnsureIndex(ctx, "users", "n"))

		count := 0
		for _, err := range db.StreamIndexKeys(ctx, "users", query.Gte("n", 3), 0, -1) {
			require.NoError(t, err)
			count++
		}
		assert.Equal(t, 3, count)
	})
}
