// Package depcache implements dependency-tracked cache tables: maps whose
// reads can be attributed to a consumer identity and whose invalidation
// sets are derived from that read history by transactions, never from
// diffing values.
package depcache

import "sync"

// Table is a goroutine-safe map from K to V instrumented with per-key read
// history. The key type doubles as the consumer identity, so an entry's
// own recomputation can register itself as a reader (a self-dependency).
type Table[K comparable, V any] struct {
	mu      sync.RWMutex
	name    string
	entries map[K]V
	readers map[K]map[K]struct{} // key -> consumers that read it this generation
}

// NewTable creates an empty table. The name identifies it in snapshots and
// traces.
func NewTable[K comparable, V any](name string) *Table[K, V] {
	return &Table[K, V]{
		name:    name,
		entries: make(map[K]V),
		readers: make(map[K]map[K]struct{}),
	}
}

// Name returns the table identifier.
func (t *Table[K, V]) Name() string { return t.name }

// Get returns the value for key without recording a dependency.
func (t *Table[K, V]) Get(key K) (V, bool) {
	t.mu.RLock()
	v, ok := t.entries[key]
	t.mu.RUnlock()
	return v, ok
}

// GetTracked returns the value for key and records consumer as having read
// it. The read is recorded even when the key is absent: a consumer that
// observed "missing" is stale the moment the key appears.
func (t *Table[K, V]) GetTracked(key K, consumer K) (V, bool) {
	t.mu.Lock()
	t.recordReadLocked(key, consumer)
	v, ok := t.entries[key]
	t.mu.Unlock()
	return v, ok
}

func (t *Table[K, V]) recordReadLocked(key K, consumer K) {
	set := t.readers[key]
	if set == nil {
		set = make(map[K]struct{})
		t.readers[key] = set
	}
	set[consumer] = struct{}{}
}

// recordRead registers a read of key by consumer without touching the
// entry. The cached table front end uses it on cache hits.
func (t *Table[K, V]) recordRead(key K, consumer K) {
	t.mu.Lock()
	t.recordReadLocked(key, consumer)
	t.mu.Unlock()
}

// Add stores value under key, overwriting any previous value. Writes carry
// no invalidation logic of their own.
func (t *Table[K, V]) Add(key K, value V) {
	t.mu.Lock()
	t.entries[key] = value
	t.mu.Unlock()
}

// RemoveBatch deletes the entries for keys. Read history is deliberately
// retained: consumers that read a removed key stay visible to the
// surrounding transaction, which is the only thing that clears history.
func (t *Table[K, V]) RemoveBatch(keys []K) {
	t.mu.Lock()
	for _, k := range keys {
		delete(t.entries, k)
	}
	t.mu.Unlock()
}

// Len returns the number of stored entries.
func (t *Table[K, V]) Len() int {
	t.mu.RLock()
	n := len(t.entries)
	t.mu.RUnlock()
	return n
}

// Range calls fn for every entry until fn returns false. The table lock is
// held for the duration; fn must not call back into the table.
func (t *Table[K, V]) Range(fn func(K, V) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for k, v := range t.entries {
		if !fn(k, v) {
			return
		}
	}
}

// AddToTransaction stages keys of this table on tx and returns tx for
// chaining.
func (t *Table[K, V]) AddToTransaction(tx *Transaction[K], keys []K) *Transaction[K] {
	tx.stage(t, keys)
	return tx
}

// drainReaders returns the consumers recorded for keys and clears that
// bookkeeping, starting a fresh read generation for them.
func (t *Table[K, V]) drainReaders(keys []K) map[K]struct{} {
	out := make(map[K]struct{})
	t.mu.Lock()
	for _, k := range keys {
		for c := range t.readers[k] {
			out[c] = struct{}{}
		}
		delete(t.readers, k)
	}
	t.mu.Unlock()
	return out
}
