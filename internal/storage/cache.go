package storage

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultListingCacheSize bounds the browse cache; listings are small, so a
// few hundred directories cover a realistic stick.
const DefaultListingCacheSize = 256

// ListingCache memoises directory listings for browse requests. Entries are
// keyed by storage id and directory, and a storage's entries vanish when it
// leaves the registry.
type ListingCache struct {
	lru *lru.Cache[string, []FileLike]
}

// NewListingCache creates a cache holding up to size listings.
func NewListingCache(size int) (*ListingCache, error) {
	if size <= 0 {
		size = DefaultListingCacheSize
	}
	c, err := lru.New[string, []FileLike](size)
	if err != nil {
		return nil, err
	}
	return &ListingCache{lru: c}, nil
}

// Get returns the cached listing for one directory, if present.
func (c *ListingCache) Get(storageID, dir string) ([]FileLike, bool) {
	return c.lru.Get(listingKey(storageID, dir))
}

// Put stores one directory listing.
func (c *ListingCache) Put(storageID, dir string, entries []FileLike) {
	c.lru.Add(listingKey(storageID, dir), entries)
}

// DropStorage evicts every listing of one storage; the empty id drops all.
func (c *ListingCache) DropStorage(storageID string) {
	if storageID == "" {
		c.lru.Purge()
		return
	}
	prefix := storageID + "\x00"
	for _, key := range c.lru.Keys() {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			c.lru.Remove(key)
		}
	}
}

// Len reports how many listings are cached.
func (c *ListingCache) Len() int {
	return c.lru.Len()
}

// AttachTo wires the cache to registry notifications so stale listings
// disappear with their storage.
func (c *ListingCache) AttachTo(r *Registry) {
	r.Subscribe(func(n Notification) {
		if n.Type == StorageRemoved {
			c.DropStorage(n.StorageID)
		}
	})
}

func listingKey(storageID, dir string) string {
	return storageID + "\x00" + dir
}
