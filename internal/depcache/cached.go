package depcache

import (
	"github.com/hashicorp/golang-lru/v2"
)

// CachedTable is a Table with an LRU read-through cache in front of the
// entry map, for tables read far more often than written (export lists,
// module metadata). The dependency-tracking contract is identical to the
// plain table; only value retrieval takes the fast path.
type CachedTable[K comparable, V any] struct {
	inner *Table[K, V]
	fast  *lru.Cache[K, V]
}

// NewCachedTable creates a cached table holding at most size hot values.
func NewCachedTable[K comparable, V any](name string, size int) (*CachedTable[K, V], error) {
	fast, err := lru.New[K, V](size)
	if err != nil {
		return nil, err
	}
	return &CachedTable[K, V]{inner: NewTable[K, V](name), fast: fast}, nil
}

// Name returns the table identifier.
func (c *CachedTable[K, V]) Name() string { return c.inner.Name() }

// Get returns the value for key without recording a dependency.
func (c *CachedTable[K, V]) Get(key K) (V, bool) {
	if v, ok := c.fast.Get(key); ok {
		return v, true
	}
	v, ok := c.inner.Get(key)
	if ok {
		c.fast.Add(key, v)
	}
	return v, ok
}

// GetTracked returns the value for key and records consumer as having read
// it. The consumer is recorded on cache hits too: the fast path must not
// lose dependency edges.
func (c *CachedTable[K, V]) GetTracked(key K, consumer K) (V, bool) {
	c.inner.recordRead(key, consumer)
	return c.Get(key)
}

// Add stores value under key and refreshes the cached copy.
func (c *CachedTable[K, V]) Add(key K, value V) {
	c.inner.Add(key, value)
	c.fast.Add(key, value)
}

// RemoveBatch deletes the entries for keys from the backing table and the
// cache. As with the plain table, read history survives removal.
func (c *CachedTable[K, V]) RemoveBatch(keys []K) {
	c.inner.RemoveBatch(keys)
	for _, k := range keys {
		c.fast.Remove(k)
	}
}

// Len returns the number of stored entries.
func (c *CachedTable[K, V]) Len() int { return c.inner.Len() }

// Range calls fn for every backing entry until fn returns false.
func (c *CachedTable[K, V]) Range(fn func(K, V) bool) { c.inner.Range(fn) }

// AddToTransaction stages keys of this table on tx and returns tx for
// chaining.
func (c *CachedTable[K, V]) AddToTransaction(tx *Transaction[K], keys []K) *Transaction[K] {
	tx.stage(c, keys)
	return tx
}

func (c *CachedTable[K, V]) drainReaders(keys []K) map[K]struct{} {
	return c.inner.drainReaders(keys)
}
