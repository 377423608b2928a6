package main

import (
	"math/rand/v2"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/containers/index"
	"github.com/btree-query-bench/containers/lru"
)

type WorkloadType string

const (
	OLTP      WorkloadType = "oltp"  // 90% reads, 10% writes
	OLAP      WorkloadType = "olap"  // 10% reads, 90% writes
	Reporting WorkloadType = "range" // 100-key range scans
)

var allWorkloads = []WorkloadType{OLTP, OLAP, Reporting}

const rangeWidth = 100

var workloadValue = []byte("x")

// ExecuteWorkload runs ops operations of the given mix against idx with keys
// drawn uniformly from [0, keySpace). Misses are not errors.
func ExecuteWorkload(idx index.Index, wType WorkloadType, ops, keySpace int, r *rand.Rand) error {
	for range ops {
		choice := r.IntN(100)
		key := int64(r.IntN(keySpace))

		var err error
		switch wType {
		case OLTP:
			if choice < 90 {
				_, err = idx.Get(key)
			} else {
				err = idx.Insert(key, workloadValue)
			}
		case OLAP:
			if choice < 10 {
				_, err = idx.Get(key)
			} else {
				err = idx.Insert(key, workloadValue)
			}
		case Reporting:
			err = scan(idx, key, key+rangeWidth)
		default:
			return errors.Newf("unknown workload %q", wType)
		}
		if err != nil && !errors.Is(err, index.ErrNotFound) {
			return errors.Wrapf(err, "%s key %d", wType, key)
		}
	}
	return nil
}

// scan drains a range iterator.
func scan(idx index.Index, start, end int64) error {
	it, err := idx.Range(start, end)
	if err != nil {
		return err
	}
	for it.Next() {
	}
	if err := it.Error(); err != nil {
		it.Close()
		return err
	}
	return it.Close()
}

// CacheResult is the outcome of one cache suite run.
type CacheResult struct {
	Limit     int
	Ops       int
	Hits      int
	Evictions int
	LatencyNs int64
}

func (c CacheResult) HitRatio() float64 {
	if c.Ops == 0 {
		return 0
	}
	return float64(c.Hits) / float64(c.Ops)
}

// zipfExponent skews the key stream so a small hot set gets most requests.
const zipfExponent = 1.1

// CacheWorkload replays ops Zipf-distributed keys from [0, keySpace) against
// an LRU cache of the given limit, filling the cache on every miss.
func CacheWorkload(limit, ops, keySpace int, r *rand.Rand) (CacheResult, error) {
	c, err := lru.New[int64, int64](limit)
	if err != nil {
		return CacheResult{}, err
	}
	zipf := rand.NewZipf(r, zipfExponent, 1, uint64(keySpace-1))

	res := CacheResult{Limit: limit, Ops: ops}
	start := time.Now()
	for range ops {
		k := int64(zipf.Uint64())
		if _, ok := c.Get(k); ok {
			res.Hits++
			continue
		}
		if c.Set(k, k) {
			res.Evictions++
		}
	}
	if ops > 0 {
		res.LatencyNs = time.Since(start).Nanoseconds() / int64(ops)
	}
	return res, nil
}
