package lsm

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/btree-query-bench/containers/index"
)

func TestKeyEncodingPreservesOrder(t *testing.T) {
	keys := []int64{math.MinInt64, -1000, -1, 0, 1, 42, math.MaxInt64}
	for i, k := range keys {
		assert.Equal(t, k, decodeKey(encodeKey(k)))
		if i > 0 {
			assert.Equal(t, -1, bytes.Compare(encodeKey(keys[i-1]), encodeKey(k)), "%d < %d", keys[i-1], k)
		}
	}
}

func TestPebbleIndex(t *testing.T) {
	l, err := Open(t.TempDir(), zap.NewNop().Sugar())
	require.NoError(t, err)
	defer l.Close()

	for k := int64(-50); k < 50; k++ {
		require.NoError(t, l.Insert(k, []byte{byte(k + 50)}))
	}

	v, err := l.Get(-7)
	require.NoError(t, err)
	assert.Equal(t, []byte{43}, v)

	require.NoError(t, l.Delete(-7))
	_, err = l.Get(-7)
	require.ErrorIs(t, err, index.ErrNotFound)
	require.NoError(t, l.Delete(1000))

	require.NoError(t, l.Flush())

	it, err := l.Range(-9, -3)
	require.NoError(t, err)
	var keys []int64
	for it.Next() {
		keys = append(keys, it.Key())
	}
	require.NoError(t, it.Error())
	require.NoError(t, it.Close())
	assert.Equal(t, []int64{-9, -8, -6, -5, -4, -3}, keys)

	it, err = l.Range(45, math.MaxInt64)
	require.NoError(t, err)
	keys = keys[:0]
	for it.Next() {
		keys = append(keys, it.Key())
	}
	require.NoError(t, it.Close())
	assert.Equal(t, []int64{45, 46, 47, 48, 49}, keys)
}
