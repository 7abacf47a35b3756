package docgo

import (
	"context"
	"fmt"
	"iter"

	"github.com/hupe1980/docgo/document"
	"github.com/hupe1980/docgo/index"
	"github.com/hupe1980/docgo/query"
)

// FindByID returns the document with the given identifier.
func (db *DB) FindByID(ctx context.Context, collection, id string) (document.Document, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty document id", ErrInvalidArgument)
	}
	return db.FindOne(ctx, collection, query.ByID(id))
}

// FindOne returns the first document matching the query, or ErrNotFound.
// At most one document is materialized under an index seek.
func (db *DB) FindOne(ctx context.Context, collection string, q *query.Query) (document.Document, error) {
	for doc, err := range db.StreamDocuments(ctx, collection, q, 0, 1) {
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
	return nil, fmt.Errorf("%w: no match in %q", ErrNotFound, collection)
}

// FindAll drains the query stream into a slice.
func (db *DB) FindAll(ctx context.Context, collection string, q *query.Query) ([]document.Document, error) {
	var out []document.Document
	for doc, err := range db.StreamDocuments(ctx, collection, q, 0, -1) {
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// Find starts a fluent query against a collection.
//
//	docs, err := db.Find("users").
//		Where(query.Gte("age", 18)).
//		Skip(10).
//		Limit(5).
//		All(ctx)
func (db *DB) Find(collection string) *FindBuilder {
	return &FindBuilder{
		db:         db,
		collection: collection,
		q:          query.All(),
		limit:      -1,
	}
}

// FindBuilder accumulates query parameters before a terminal call executes
// the stream. Builders are cheap and single-use.
type FindBuilder struct {
	db         *DB
	collection string
	q          *query.Query
	skip       int
	limit      int
}

// Where sets the query predicate. Defaults to matching everything.
func (b *FindBuilder) Where(q *query.Query) *FindBuilder {
	b.q = q
	return b
}

// Skip drops the first n matches.
func (b *FindBuilder) Skip(n int) *FindBuilder {
	b.skip = n
	return b
}

// Limit caps the number of yielded matches. Negative means unlimited.
func (b *FindBuilder) Limit(n int) *FindBuilder {
	b.limit = n
	return b
}

// Stream returns the lazy document stream.
func (b *FindBuilder) Stream(ctx context.Context) iter.Seq2[document.Document, error] {
	return b.db.StreamDocuments(ctx, b.collection, b.q, b.skip, b.limit)
}

// Keys returns the lazy index-key stream.
func (b *FindBuilder) Keys(ctx context.Context) iter.Seq2[index.Key, error] {
	return b.db.StreamIndexKeys(ctx, b.collection, b.q, b.skip, b.limit)
}

// All drains the stream into a slice.
func (b *FindBuilder) All(ctx context.Context) ([]document.Document, error) {
	var out []document.Document
	for doc, err := range b.Stream(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// First returns the first match, or ErrNotFound.
func (b *FindBuilder) First(ctx context.Context) (document.Document, error) {
	for doc, err := range b.db.StreamDocuments(ctx, b.collection, b.q, b.skip, 1) {
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
	return nil, fmt.Errorf("%w: no match in %q", ErrNotFound, b.collection)
}

// Count returns the number of matches. Under an index seek nothing is
// materialized; under a full scan each candidate is materialized to test the
// predicate.
func (b *FindBuilder) Count(ctx context.Context) (int, error) {
	return b.db.countDocuments(ctx, b.collection, b.q, b.skip, b.limit)
}

// Exists reports whether at least one document matches.
func (b *FindBuilder) Exists(ctx context.Context) (bool, error) {
	n, err := b.db.countDocuments(ctx, b.collection, b.q, b.skip, 1)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
