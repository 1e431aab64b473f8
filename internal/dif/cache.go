package dif

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of cached extraction results.
const DefaultCacheSize = 1024

type cacheKey struct {
	kind     Kind
	checksum string
}

// Cache holds extraction results keyed by content, so identical copies of a
// file (an archive member and its original) are parsed once. Safe for
// concurrent use. A nil *Cache disables caching.
type Cache struct {
	lru *lru.Cache[cacheKey, result]
}

// NewCache creates a cache holding up to size results.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[cacheKey, result](size)
	if err != nil {
		return nil, fmt.Errorf("dif: cache: %w", err)
	}
	return &Cache{lru: c}, nil
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

func (c *Cache) get(k Kind, sum string) (result, bool) {
	if c == nil || sum == "" {
		return result{}, false
	}
	return c.lru.Get(cacheKey{kind: k, checksum: sum})
}

func (c *Cache) add(k Kind, sum string, r result) {
	if c == nil || sum == "" {
		return
	}
	c.lru.Add(cacheKey{kind: k, checksum: sum}, r)
}
