package nameindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/scribe/internal/errors"
)

func intHash(k int) uint64   { return uint64(k) }
func intEqual(a, b int) bool { return a == b }

func TestTableInsertLookup(t *testing.T) {
	tbl, err := New[int, string](4, intHash, intEqual)
	require.NoError(t, err)

	tbl.Insert(1, "one")
	tbl.Insert(5, "five") // same bucket as 1
	tbl.Insert(1, "uno")  // duplicate key, shadowed

	v, ok := tbl.Lookup(1)
	assert.True(t, ok)
	assert.Equal(t, "one", v, "first insert wins")

	v, ok = tbl.Lookup(5)
	assert.True(t, ok)
	assert.Equal(t, "five", v)

	_, ok = tbl.Lookup(9)
	assert.False(t, ok)

	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, 4, tbl.Buckets())
}

func TestTableBucketHint(t *testing.T) {
	tbl, err := New[int, int](0, intHash, intEqual)
	require.NoError(t, err)
	assert.Equal(t, MinBuckets, tbl.Buckets())

	_, err = New[int, int](-1, intHash, intEqual)
	require.Error(t, err)
	assert.Equal(t, errors.KindResource, errors.GetKind(err))

	_, err = New[int, int](MaxBuckets+1, intHash, intEqual)
	require.Error(t, err)
	assert.Equal(t, errors.KindResource, errors.GetKind(err))
	assert.Equal(t, MaxBuckets+1, errors.GetAttributes(err)["buckets"])

	_, err = New[int, int](8, nil, intEqual)
	assert.Equal(t, errors.KindInternal, errors.GetKind(err))
}

func TestTableChainStats(t *testing.T) {
	tbl, err := New[int, int](4, intHash, intEqual)
	require.NoError(t, err)
	for _, k := range []int{0, 4, 8, 1, 2} {
		tbl.Insert(k, k)
	}

	s := tbl.ChainStats()
	assert.Equal(t, 4, s.Buckets)
	assert.Equal(t, 5, s.Entries)
	assert.Equal(t, 3, s.Used)
	assert.Equal(t, 3, s.Max)
	assert.InDelta(t, 5.0/3.0, s.Mean, 1e-9)
	assert.Equal(t, map[int]int{1: 2, 3: 1}, s.Histogram)
	assert.Equal(t, []int{1, 3}, s.Lengths())
}

func TestTableDestroy(t *testing.T) {
	tbl, err := New[int, int](4, intHash, intEqual)
	require.NoError(t, err)
	tbl.Insert(1, 1)
	tbl.Destroy()

	_, ok := tbl.Lookup(1)
	assert.False(t, ok)
	assert.Zero(t, tbl.Len())
	assert.Panics(t, func() { tbl.Insert(2, 2) })
}

func TestTableLookupOnlyInserted(t *testing.T) {
	tbl, err := New[int, int](7, intHash, intEqual)
	require.NoError(t, err)
	inserted := map[int]bool{}
	for k := 0; k < 200; k += 3 {
		tbl.Insert(k, k*10)
		inserted[k] = true
	}
	for k := 0; k < 200; k++ {
		v, ok := tbl.Lookup(k)
		assert.Equal(t, inserted[k], ok, "key %d", k)
		if ok {
			assert.Equal(t, k*10, v)
		}
	}
}
