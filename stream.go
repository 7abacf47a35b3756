package docgo

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/hupe1980/docgo/document"
	"github.com/hupe1980/docgo/index"
	"github.com/hupe1980/docgo/query"
)

// StreamDocuments executes a query lazily and yields matching documents one
// at a time.
//
// Nothing happens until the first pull: the shared lock is acquired, the
// execution mode is fixed, and documents are materialized per element from
// that point on. The lock is held for the whole lifetime of the stream and
// released when the stream is exhausted, abandoned (break) or fails. The
// sequence is single-pass.
//
// Skip and limit are mode-dependent. Under an index seek, every entry is a
// guaranteed match, so the slice is applied to the entry stream before any
// materialization. Under a full scan, only documents passing the predicate
// consume skip or limit budget. A negative limit means unlimited; a zero
// limit yields nothing.
//
// An absent collection is not an error: it yields an empty stream.
func (db *DB) StreamDocuments(ctx context.Context, collection string, q *query.Query, skip, limit int) iter.Seq2[document.Document, error] {
	return func(yield func(document.Document, error) bool) {
		start := time.Now()
		var streamErr error
		defer func() {
			db.metrics.RecordQuery(time.Since(start), streamErr)
		}()

		// Argument validation happens before the lock; a rejected stream has
		// no side effects.
		if collection == "" || q == nil {
			streamErr = fmt.Errorf("%w: stream needs a collection name and a query", ErrInvalidArgument)
			yield(nil, streamErr)
			return
		}
		if db.closed.Load() {
			streamErr = ErrClosed
			yield(nil, streamErr)
			return
		}

		release := db.locker.AcquireShared()
		defer release()

		col, ok := db.catalog.Get(collection)
		if !ok {
			return
		}

		mode, entries := db.indexer.Run(col, q)
		db.logger.LogQuery(ctx, collection, mode.String(), q.String(), nil)

		if mode == index.ModeIndexSeek {
			entries = index.Slice(entries, skip, limit)
		}

		toSkip := skip
		remaining := limit

		for e, entryErr := range entries {
			if err := ctx.Err(); err != nil {
				streamErr = err
				yield(nil, err)
				return
			}
			if entryErr != nil {
				streamErr = translateError(entryErr)
				yield(nil, streamErr)
				return
			}

			doc, err := db.materialize(e.Addr)
			if err != nil {
				streamErr = err
				yield(nil, err)
				return
			}

			if mode == index.ModeFullScan {
				// Only logical matches consume skip/limit budget.
				if !q.Match(doc) {
					continue
				}
				if toSkip > 0 {
					toSkip--
					continue
				}
				if remaining == 0 {
					return
				}
			}

			if !yield(doc, nil) {
				return
			}
			db.signaler.OnCheckpointOpportunity()

			if mode == index.ModeFullScan && remaining > 0 {
				remaining--
				if remaining == 0 {
					return
				}
			}
		}
	}
}

// StreamIndexKeys executes a query lazily and yields index keys instead of
// documents.
//
// No document is ever materialized and the predicate is never re-evaluated:
// keys are only meaningful relative to the index sequence the traversal
// produced, so skip/limit are always pure sequence slicing on the entry
// stream, regardless of execution mode. Lock lifetime and checkpoint
// signaling match StreamDocuments.
func (db *DB) StreamIndexKeys(ctx context.Context, collection string, q *query.Query, skip, limit int) iter.Seq2[index.Key, error] {
	return func(yield func(index.Key, error) bool) {
		start := time.Now()
		var streamErr error
		defer func() {
			db.metrics.RecordQuery(time.Since(start), streamErr)
		}()

		if collection == "" || q == nil {
			streamErr = fmt.Errorf("%w: stream needs a collection name and a query", ErrInvalidArgument)
			yield(nil, streamErr)
			return
		}
		if db.closed.Load() {
			streamErr = ErrClosed
			yield(nil, streamErr)
			return
		}

		release := db.locker.AcquireShared()
		defer release()

		col, ok := db.catalog.Get(collection)
		if !ok {
			return
		}

		mode, entries := db.indexer.Run(col, q)
		db.logger.LogQuery(ctx, collection, mode.String(), q.String(), nil)

		for e, entryErr := range index.Slice(entries, skip, limit) {
			if err := ctx.Err(); err != nil {
				streamErr = err
				yield(nil, err)
				return
			}
			if entryErr != nil {
				streamErr = translateError(entryErr)
				yield(nil, streamErr)
				return
			}

			if !yield(e.Key, nil) {
				return
			}
			db.signaler.OnCheckpointOpportunity()
		}
	}
}

// countDocuments counts matches without yielding them. Index-seek entries
// are guaranteed matches and are counted without materialization; full-scan
// candidates are materialized to test the predicate. A negative limit means
// unlimited.
func (db *DB) countDocuments(ctx context.Context, collection string, q *query.Query, skip, limit int) (n int, err error) {
	start := time.Now()
	defer func() {
		db.metrics.RecordQuery(time.Since(start), err)
	}()

	if collection == "" || q == nil {
		return 0, fmt.Errorf("%w: count needs a collection name and a query", ErrInvalidArgument)
	}
	if db.closed.Load() {
		return 0, ErrClosed
	}

	release := db.locker.AcquireShared()
	defer release()

	col, ok := db.catalog.Get(collection)
	if !ok {
		return 0, nil
	}

	mode, entries := db.indexer.Run(col, q)
	db.logger.LogQuery(ctx, collection, mode.String(), q.String(), nil)

	if mode == index.ModeIndexSeek {
		for _, entryErr := range index.Slice(entries, skip, limit) {
			if err := ctx.Err(); err != nil {
				return n, err
			}
			if entryErr != nil {
				return n, translateError(entryErr)
			}
			n++
		}
		return n, nil
	}

	toSkip := skip
	for e, entryErr := range entries {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if entryErr != nil {
			return n, translateError(entryErr)
		}

		doc, err := db.materialize(e.Addr)
		if err != nil {
			return n, err
		}
		if !q.Match(doc) {
			continue
		}
		if toSkip > 0 {
			toSkip--
			continue
		}
		n++
		if limit >= 0 && n >= limit {
			return n, nil
		}
	}
	return n, nil
}
