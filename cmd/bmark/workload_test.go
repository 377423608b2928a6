package main

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/btree-query-bench/containers/index"
	"github.com/btree-query-bench/containers/index/lsmtree"
	"github.com/btree-query-bench/containers/index/omapindex"
)

func TestRunSuite(t *testing.T) {
	suites := []Suite{
		{Name: "OrderedMap", Config: 4, Open: func() (index.Index, error) { return omapindex.New(4) }},
		{Name: "LSM-Tree", Config: 50, Open: func() (index.Index, error) { return lsmtree.NewLSM(50, 8) }},
	}
	for _, s := range suites {
		t.Run(s.Name, func(t *testing.T) {
			r := rand.New(rand.NewPCG(1, 1))
			res, idx, err := RunSuite(s, 2000, allWorkloads, r, zap.NewNop().Sugar())
			require.NoError(t, err)
			defer idx.Close()

			require.Len(t, res, 1+len(allWorkloads))
			assert.Equal(t, "Footprint_SteadyState", res[0].Operation)
			assert.Equal(t, "Workload_OLTP", res[1].Operation)
			assert.Equal(t, "Workload_Range", res[3].Operation)
			for _, row := range res {
				assert.Equal(t, s.Name, row.Name)
			}

			// Workload writes stay within the loaded key space.
			v, err := idx.Get(1999)
			require.NoError(t, err)
			assert.NotNil(t, v)
		})
	}
}

func TestExecuteWorkloadRejectsUnknown(t *testing.T) {
	x, err := omapindex.New(8)
	require.NoError(t, err)
	err = ExecuteWorkload(x, WorkloadType("batch"), 1, 10, rand.New(rand.NewPCG(1, 1)))
	require.Error(t, err)
}

func TestCacheWorkload(t *testing.T) {
	r := rand.New(rand.NewPCG(9, 9))
	small, err := CacheWorkload(10, 20000, 10000, r)
	require.NoError(t, err)
	big, err := CacheWorkload(1000, 20000, 10000, r)
	require.NoError(t, err)

	assert.Equal(t, 20000, small.Ops)
	assert.Greater(t, small.Hits, 0)
	assert.Greater(t, small.Evictions, 0)
	assert.Greater(t, big.HitRatio(), small.HitRatio())

	_, err = CacheWorkload(0, 10, 10, r)
	require.Error(t, err)
}

func TestGetDetailedMem(t *testing.T) {
	keep := make([][]byte, 1000)
	for i := range keep {
		keep[i] = make([]byte, 64)
	}
	assert.Positive(t, GetDetailedMem().HeapObjects)
	assert.Len(t, keep, 1000)
}
