package blobstore

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// CachingStore layers a fast local store in front of a remote one.
//
// Reads hit the cache first and fall back to the remote store, populating the
// cache on the way. Writes go to both. Prefetch warms the cache for a set of
// blobs in parallel, e.g. before a restore.
type CachingStore struct {
	cache  BlobStore
	remote BlobStore

	// prefetchLimit bounds concurrent remote fetches to avoid FD exhaustion
	// or provider rate limits.
	prefetchLimit int
}

var _ BlobStore = (*CachingStore)(nil)

// NewCachingStore creates a caching store.
func NewCachingStore(cache, remote BlobStore) *CachingStore {
	return &CachingStore{
		cache:         cache,
		remote:        remote,
		prefetchLimit: 8,
	}
}

// Open opens a blob, preferring the cache.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	if b, err := s.cache.Open(ctx, name); err == nil {
		return b, nil
	}

	if err := s.fill(ctx, name); err != nil {
		return nil, err
	}
	return s.cache.Open(ctx, name)
}

// Put writes the blob to the remote store and the cache.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	if err := s.remote.Put(ctx, name, data); err != nil {
		return err
	}
	// Cache failures are not fatal; the blob is durable remotely.
	_ = s.cache.Put(ctx, name, data)
	return nil
}

// Delete removes the blob from both stores.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	_ = s.cache.Delete(ctx, name)
	return s.remote.Delete(ctx, name)
}

// List lists remote blobs; the remote store is the source of truth.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.remote.List(ctx, prefix)
}

// Prefetch warms the cache for the named blobs, fetching misses in parallel.
func (s *CachingStore) Prefetch(ctx context.Context, names []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.prefetchLimit)

	for _, name := range names {
		g.Go(func() error {
			if _, err := s.cache.Open(ctx, name); err == nil {
				return nil
			}
			err := s.fill(ctx, name)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

func (s *CachingStore) fill(ctx context.Context, name string) error {
	b, err := s.remote.Open(ctx, name)
	if err != nil {
		return err
	}
	defer b.Close()

	data, err := ReadAll(b)
	if err != nil {
		return err
	}
	return s.cache.Put(ctx, name, data)
}
