package docgo

import (
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/docgo/index"
)

// Catalog maps collection names to their in-memory index structures.
//
// Reads resolve names under a read lock; an absent collection is not an
// error, it simply resolves to nothing. Creation is deduplicated so that
// concurrent first-writers of the same collection share one structure.
type Catalog struct {
	mu   sync.RWMutex
	cols map[string]*index.Collection
	sf   singleflight.Group
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		cols: make(map[string]*index.Collection),
	}
}

// Get resolves a collection by name.
func (c *Catalog) Get(name string) (*index.Collection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	col, ok := c.cols[name]
	return col, ok
}

// GetOrCreate resolves a collection, creating it on first use.
func (c *Catalog) GetOrCreate(name string) *index.Collection {
	if col, ok := c.Get(name); ok {
		return col
	}

	v, _, _ := c.sf.Do(name, func() (any, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if col, ok := c.cols[name]; ok {
			return col, nil
		}
		col := index.NewCollection(name)
		c.cols[name] = col
		return col, nil
	})
	return v.(*index.Collection)
}

// Drop removes a collection. Returns false when it did not exist.
func (c *Catalog) Drop(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cols[name]; !ok {
		return false
	}
	delete(c.cols, name)
	return true
}

// Names returns the collection names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.cols))
	for name := range c.cols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
