package index

import (
	"bytes"
	"errors"
	"iter"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/btree"

	"github.com/hupe1980/docgo/document"
	"github.com/hupe1980/docgo/query"
	"github.com/hupe1980/docgo/storage"
)

var (
	// ErrDuplicateID is returned when inserting an identifier that already
	// exists in the collection.
	ErrDuplicateID = errors.New("index: duplicate document id")

	// ErrIDNotFound is returned when updating or deleting an identifier that
	// does not exist in the collection.
	ErrIDNotFound = errors.New("index: document id not found")
)

// btreeDegree is the branching factor of the in-memory trees.
const btreeDegree = 32

// Collection holds the index structures of one collection: the primary
// identifier tree, optional secondary field trees, and the deleted bitmap.
//
// Deletes are tombstones: the deleted bitmap marks slots whose tree entries
// are skipped during traversal. Compact rebuilds the trees without
// tombstoned entries.
//
// Mutations must be serialized by the caller (the database holds its
// exclusive lock during writes). Traversal is safe under the shared lock.
type Collection struct {
	name string

	mu        sync.RWMutex // protects the secondary tree map
	primary   *btree.BTreeG[Entry]
	secondary map[string]*btree.BTreeG[Entry]
	deleted   *roaring.Bitmap
	nextSlot  uint32
	live      int
}

func entryLess(a, b Entry) bool {
	return bytes.Compare(a.Key, b.Key) < 0
}

// NewCollection creates an empty collection.
func NewCollection(name string) *Collection {
	return &Collection{
		name:      name,
		primary:   btree.NewG(btreeDegree, entryLess),
		secondary: make(map[string]*btree.BTreeG[Entry]),
		deleted:   roaring.New(),
	}
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Len returns the number of live documents.
func (c *Collection) Len() int { return c.live }

// EnsureIndex creates an empty secondary tree for the field if one does not
// exist yet. Backfilling existing documents is the caller's responsibility.
func (c *Collection) EnsureIndex(field string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.secondary[field]; !ok {
		c.secondary[field] = btree.NewG(btreeDegree, entryLess)
	}
}

// HasIndex reports whether a secondary tree exists for the field.
func (c *Collection) HasIndex(field string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.secondary[field]
	return ok
}

// IndexFields returns the fields with secondary trees.
func (c *Collection) IndexFields() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fields := make([]string, 0, len(c.secondary))
	for f := range c.secondary {
		fields = append(fields, f)
	}
	return fields
}

// Insert registers a new document at addr.
func (c *Collection) Insert(id string, doc document.Document, addr storage.Address) error {
	if e, ok := c.primary.Get(Entry{Key: Key(id)}); ok && !c.deleted.Contains(e.Slot) {
		return ErrDuplicateID
	}

	slot := c.nextSlot
	c.nextSlot++

	c.primary.ReplaceOrInsert(Entry{Key: Key(id), Slot: slot, Addr: addr})
	c.indexSecondary(id, slot, doc, addr)
	c.live++
	return nil
}

// Update re-points an existing document to addr. The previous document value
// is needed to unlink stale secondary entries.
func (c *Collection) Update(id string, old, doc document.Document, addr storage.Address) error {
	e, ok := c.primary.Get(Entry{Key: Key(id)})
	if !ok || c.deleted.Contains(e.Slot) {
		return ErrIDNotFound
	}

	c.primary.ReplaceOrInsert(Entry{Key: Key(id), Slot: e.Slot, Addr: addr})

	c.mu.RLock()
	defer c.mu.RUnlock()
	for field, tree := range c.secondary {
		if v, ok := old.Lookup(field); ok {
			tree.Delete(Entry{Key: compositeKey(EncodeValue(v), id)})
		}
		if v, ok := doc.Lookup(field); ok {
			tree.ReplaceOrInsert(Entry{Key: compositeKey(EncodeValue(v), id), Slot: e.Slot, Addr: addr})
		}
	}
	return nil
}

// Delete tombstones the document. Tree entries remain until Compact.
func (c *Collection) Delete(id string) error {
	e, ok := c.primary.Get(Entry{Key: Key(id)})
	if !ok || c.deleted.Contains(e.Slot) {
		return ErrIDNotFound
	}
	c.deleted.Add(e.Slot)
	c.live--
	return nil
}

// Get returns the live primary entry for id.
func (c *Collection) Get(id string) (Entry, bool) {
	e, ok := c.primary.Get(Entry{Key: Key(id)})
	if !ok || c.deleted.Contains(e.Slot) {
		return Entry{}, false
	}
	return e, true
}

// IndexEntry backfills one document into the secondary tree for field.
// Used when an index is created on a non-empty collection.
func (c *Collection) IndexEntry(field string, doc document.Document, e Entry) {
	v, ok := doc.Lookup(field)
	if !ok {
		return
	}
	c.mu.RLock()
	tree, exists := c.secondary[field]
	c.mu.RUnlock()
	if !exists {
		return
	}
	tree.ReplaceOrInsert(Entry{Key: compositeKey(EncodeValue(v), string(e.Key)), Slot: e.Slot, Addr: e.Addr})
}

// Compact rebuilds the trees without tombstoned entries and clears the
// deleted bitmap.
func (c *Collection) Compact() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deleted.IsEmpty() {
		return
	}

	rebuild := func(tree *btree.BTreeG[Entry]) *btree.BTreeG[Entry] {
		next := btree.NewG(btreeDegree, entryLess)
		tree.Ascend(func(e Entry) bool {
			if !c.deleted.Contains(e.Slot) {
				next.ReplaceOrInsert(e)
			}
			return true
		})
		return next
	}

	c.primary = rebuild(c.primary)
	for field, tree := range c.secondary {
		c.secondary[field] = rebuild(tree)
	}
	c.deleted.Clear()
}

// Entries returns the live primary entries in identifier order.
func (c *Collection) Entries() iter.Seq2[Entry, error] {
	return c.scanPrimary()
}

func (c *Collection) indexSecondary(id string, slot uint32, doc document.Document, addr storage.Address) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for field, tree := range c.secondary {
		if v, ok := doc.Lookup(field); ok {
			tree.ReplaceOrInsert(Entry{Key: compositeKey(EncodeValue(v), id), Slot: slot, Addr: addr})
		}
	}
}

// scanPrimary yields every live primary entry in identifier order.
func (c *Collection) scanPrimary() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		c.primary.Ascend(func(e Entry) bool {
			if c.deleted.Contains(e.Slot) {
				return true
			}
			return yield(e, nil)
		})
	}
}

// seekPrimary yields the single live entry for id, if any.
func (c *Collection) seekPrimary(id string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		e, ok := c.primary.Get(Entry{Key: Key(id)})
		if !ok || c.deleted.Contains(e.Slot) {
			return
		}
		yield(e, nil)
	}
}

// seekSecondary yields the live entries of the field tree within the range
// implied by op and v, in key order.
func (c *Collection) seekSecondary(field string, op query.Operator, v any) (iter.Seq2[Entry, error], bool) {
	c.mu.RLock()
	tree, ok := c.secondary[field]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	enc := EncodeValue(v)
	typeTag := enc[0]

	var from, to Key // to is exclusive
	switch op {
	case query.OpEq:
		from, to = compositeLowerBound(enc), compositeUpperBound(enc)
	case query.OpGte:
		from, to = compositeLowerBound(enc), Key{typeTag + 1}
	case query.OpGt:
		from, to = compositeUpperBound(enc), Key{typeTag + 1}
	case query.OpLt:
		from, to = Key{typeTag}, compositeLowerBound(enc)
	case query.OpLte:
		from, to = Key{typeTag}, compositeUpperBound(enc)
	default:
		return nil, false
	}

	seq := func(yield func(Entry, error) bool) {
		tree.AscendGreaterOrEqual(Entry{Key: from}, func(e Entry) bool {
			if bytes.Compare(e.Key, to) >= 0 {
				return false
			}
			if c.deleted.Contains(e.Slot) {
				return true
			}
			return yield(e, nil)
		})
	}
	return seq, true
}
