// Package cache memoizes expensive computations keyed by a comparable value.
//
// Both cache types break recursion. A compute function may query the same
// cache again, which is how mutually dependent values are built up
// dynamic-programming style. What it may not do is ask for the key it is
// currently computing: Get panics with a *RecursionError when that happens,
// while GetOrNone reports the cycle by returning false.
//
// Each cache must only ever be used with one referentially transparent
// compute function per key. Caches are not safe for concurrent use.
package cache

import "fmt"

// RecursionError is the panic value raised by Get when computing a key
// (directly or transitively) requests that same key again.
type RecursionError struct {
	Key any
}

func (e *RecursionError) Error() string {
	return fmt.Sprintf("recursion detected: computing key %v requested the same key from the cache; use GetOrNone to handle this case", e.Key)
}

// Each key moves from absent to in progress (entry present, value nil) to
// present (value set). The value pointer never changes once set.
type entry[V any] struct {
	value *V
}

// Cache memoizes values that are expensive to copy. Get hands out pointers
// into the cache; a pointer stays valid for as long as the caller holds it,
// whatever happens to the cache afterwards.
type Cache[K comparable, V any] struct {
	entries map[K]*entry[V]
}

func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{entries: make(map[K]*entry[V])}
}

// Len returns the number of keys in the cache, including keys whose value is
// still being computed.
func (c *Cache[K, V]) Len() int {
	return len(c.entries)
}

// Get returns the cached value for key, running compute if the key has not
// been seen before.
//
// Get panics with a *RecursionError if this call originates from compute
// for the same key.
func (c *Cache[K, V]) Get(key K, compute func(K) V) *V {
	v, ok := c.GetOrNone(key, compute)
	if !ok {
		panic(&RecursionError{Key: key})
	}
	return v
}

// GetOrNone is Get for call sites that are intentionally recursive. It
// returns false iff this call (potentially transitively) originates from
// another request for the same key that has not finished yet.
func (c *Cache[K, V]) GetOrNone(key K, compute func(K) V) (*V, bool) {
	if c.entries == nil {
		c.entries = make(map[K]*entry[V])
	}

	e := lookup(c.entries, key, compute)

	if e.value == nil {
		return nil, false
	}
	return e.value, true
}

// lookup returns the entry for key, computing it first if the key is absent.
// A compute that panics leaves the key absent again rather than stuck in
// progress.
func lookup[K comparable, V any](entries map[K]*entry[V], key K, compute func(K) V) *entry[V] {
	if e, seen := entries[key]; seen {
		return e
	}

	e := &entry[V]{}
	entries[key] = e
	done := false
	defer func() {
		if !done {
			delete(entries, key)
		}
	}()
	out := compute(key)
	e.value = &out
	done = true
	return e
}

// CopyCache memoizes small values that are cheaper to return by copy.
type CopyCache[K comparable, V any] struct {
	entries map[K]*entry[V]
}

func NewCopy[K comparable, V any]() *CopyCache[K, V] {
	return &CopyCache[K, V]{entries: make(map[K]*entry[V])}
}

func (c *CopyCache[K, V]) Len() int {
	return len(c.entries)
}

// Get returns a copy of the cached value for key, running compute if the
// key has not been seen before. It panics with a *RecursionError on
// reentrant access to the same key.
func (c *CopyCache[K, V]) Get(key K, compute func(K) V) V {
	v, ok := c.GetOrNone(key, compute)
	if !ok {
		panic(&RecursionError{Key: key})
	}
	return v
}

// GetOrNone returns the zero value and false when key is still being
// computed further up the stack.
func (c *CopyCache[K, V]) GetOrNone(key K, compute func(K) V) (V, bool) {
	if c.entries == nil {
		c.entries = make(map[K]*entry[V])
	}

	e := lookup(c.entries, key, compute)

	if e.value == nil {
		var zero V
		return zero, false
	}
	return *e.value, true
}
