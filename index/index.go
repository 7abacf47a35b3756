// Package index provides the index structures and the traversal component of
// docgo.
//
// The traversal component resolves a query into one of two execution modes:
//
//   - IndexSeek: a pre-built tree satisfies the predicate directly, so the
//     entry stream contains only guaranteed matches in key order.
//   - FullScan: every live entry of the collection is enumerated in primary
//     key order; the execution engine tests each materialized document
//     against the query predicate.
//
// Entry streams are lazy, single-pass iter.Seq2 sequences. Consumers may stop
// pulling at any point.
package index

import (
	"iter"

	"github.com/hupe1980/docgo/document"
	"github.com/hupe1980/docgo/query"
	"github.com/hupe1980/docgo/storage"
)

// Key is an index key: the primary identifier for the primary tree, or the
// order-preserving composite of indexed value and identifier for secondary
// trees.
type Key []byte

// Entry references one document from an index tree.
//
// Entries are ephemeral: they are produced during traversal and referenced
// transiently by the execution engine, never retained past materialization.
type Entry struct {
	// Key is the indexed value, used for index-only queries and logging.
	Key Key

	// Slot is the collection-local slot checked against the deleted bitmap.
	Slot uint32

	// Addr locates the document's raw bytes in storage.
	Addr storage.Address
}

// Mode is the execution mode chosen by the traversal component.
// It is fixed for the lifetime of one execution and must not change
// mid-stream.
type Mode uint8

const (
	// ModeIndexSeek answers the query from a tree; every entry is a match.
	ModeIndexSeek Mode = iota

	// ModeFullScan enumerates every live entry; the engine applies the
	// predicate after materialization.
	ModeFullScan
)

// String returns a string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeIndexSeek:
		return "IndexSeek"
	case ModeFullScan:
		return "FullScan"
	default:
		return "Unknown"
	}
}

// Indexer resolves a query against a collection into an execution mode and a
// lazy entry stream. The stream is single-pass.
type Indexer interface {
	Run(col *Collection, q *query.Query) (Mode, iter.Seq2[Entry, error])
}

// TreeIndexer is the default Indexer over the collection's B-trees.
type TreeIndexer struct{}

var _ Indexer = TreeIndexer{}

// Run decides the execution mode and returns the matching entry stream.
//
// IndexSeek is chosen when the query matches everything (primary tree in key
// order), targets the identifier field with equality, or targets a field with
// a secondary index and a range-friendly operator. Everything else falls back
// to a full scan in primary key order.
func (TreeIndexer) Run(col *Collection, q *query.Query) (Mode, iter.Seq2[Entry, error]) {
	if q.MatchAll() {
		return ModeIndexSeek, col.scanPrimary()
	}

	if q.Field() == document.IDField && q.Operator() == query.OpEq {
		if id, ok := q.Value().(string); ok {
			return ModeIndexSeek, col.seekPrimary(id)
		}
	}

	if col.HasIndex(q.Field()) {
		switch q.Operator() {
		case query.OpEq, query.OpGt, query.OpGte, query.OpLt, query.OpLte:
			if seq, ok := col.seekSecondary(q.Field(), q.Operator(), q.Value()); ok {
				return ModeIndexSeek, seq
			}
		}
	}

	return ModeFullScan, col.scanPrimary()
}
