// Package nameindex maps addresses and (port, protocol) pairs to display names.
//
// An Index is built once from the backend definitions and never mutated. A
// reload builds a new Index and swaps it in, so lookups never see a partially
// built table.
package nameindex

import (
	"sort"

	"grimm.is/scribe/internal/errors"
)

const (
	// MaxBuckets bounds the allocation of a single table.
	MaxBuckets = 1 << 24
	// MinBuckets is used when the hint is zero, e.g. for an empty definition set.
	MinBuckets = 16
)

type entry[K, V any] struct {
	key K
	val V
}

// Table is a chained hash table. Chains keep insertion order, so Lookup
// returns the first value inserted for a key.
type Table[K, V any] struct {
	buckets [][]entry[K, V]
	hash    func(K) uint64
	equal   func(a, b K) bool
	n       int
}

// New creates a table with bucketHint buckets. A zero hint is raised to
// MinBuckets; a negative hint or one above MaxBuckets fails with KindResource.
func New[K, V any](bucketHint int, hash func(K) uint64, equal func(a, b K) bool) (*Table[K, V], error) {
	if bucketHint == 0 {
		bucketHint = MinBuckets
	}
	if bucketHint < 0 || bucketHint > MaxBuckets {
		return nil, errors.Attr(
			errors.Errorf(errors.KindResource, "cannot allocate hash table with %d buckets", bucketHint),
			"buckets", bucketHint)
	}
	if hash == nil || equal == nil {
		return nil, errors.New(errors.KindInternal, "hash table needs hash and equality functions")
	}
	return &Table[K, V]{
		buckets: make([][]entry[K, V], bucketHint),
		hash:    hash,
		equal:   equal,
	}, nil
}

func (t *Table[K, V]) bucket(k K) int {
	return int(t.hash(k) % uint64(len(t.buckets)))
}

// Insert appends k to its chain. Duplicate keys are kept; the first one wins on lookup.
func (t *Table[K, V]) Insert(k K, v V) {
	if t.buckets == nil {
		panic("nameindex: insert into destroyed table")
	}
	b := t.bucket(k)
	t.buckets[b] = append(t.buckets[b], entry[K, V]{key: k, val: v})
	t.n++
}

// Lookup returns the first value stored under k.
func (t *Table[K, V]) Lookup(k K) (V, bool) {
	var zero V
	if len(t.buckets) == 0 {
		return zero, false
	}
	for _, e := range t.buckets[t.bucket(k)] {
		if t.equal(e.key, k) {
			return e.val, true
		}
	}
	return zero, false
}

// Len returns the number of entries.
func (t *Table[K, V]) Len() int { return t.n }

// Buckets returns the number of buckets.
func (t *Table[K, V]) Buckets() int { return len(t.buckets) }

// Each calls fn for every entry, bucket by bucket.
func (t *Table[K, V]) Each(fn func(K, V)) {
	for _, chain := range t.buckets {
		for _, e := range chain {
			fn(e.key, e.val)
		}
	}
}

// Destroy releases the buckets. Lookups on a destroyed table miss.
func (t *Table[K, V]) Destroy() {
	t.buckets = nil
	t.n = 0
}

// ChainStats describes the chain-length distribution of a table.
type ChainStats struct {
	Buckets int
	Entries int
	Used    int // non-empty buckets
	Max     int
	Mean    float64 // over non-empty buckets
	// Histogram maps chain length to the number of buckets with that length.
	Histogram map[int]int
}

// ChainStats computes the chain-length distribution.
func (t *Table[K, V]) ChainStats() ChainStats {
	s := ChainStats{Buckets: len(t.buckets), Entries: t.n, Histogram: map[int]int{}}
	for _, chain := range t.buckets {
		l := len(chain)
		if l == 0 {
			continue
		}
		s.Used++
		s.Histogram[l]++
		if l > s.Max {
			s.Max = l
		}
	}
	if s.Used > 0 {
		s.Mean = float64(s.Entries) / float64(s.Used)
	}
	return s
}

// Lengths returns the histogram keys in ascending order.
func (s ChainStats) Lengths() []int {
	out := make([]int, 0, len(s.Histogram))
	for l := range s.Histogram {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}
