package main

import (
	"math/rand/v2"
	"runtime"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/btree-query-bench/containers/index"
)

// BenchResult is one CSV row.
type BenchResult struct {
	Name      string
	Config    string
	Operation string
	LatencyNs int64
	MemMB     uint64
	Objects   uint64
	HitRatio  float64 // set for cacheOperation rows only
}

type MemoryStats struct {
	AllocMB     uint64
	HeapObjects uint64
}

// GetDetailedMem forces a GC and samples live heap usage.
func GetDetailedMem() MemoryStats {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocMB:     m.Alloc / 1024 / 1024,
		HeapObjects: m.HeapObjects,
	}
}

// Suite describes one index configuration to benchmark.
type Suite struct {
	Name   string
	Config int
	Open   func() (index.Index, error)
}

// checker is implemented by indexes that can audit their own structure.
type checker interface {
	Check() error
}

// RunSuite bulk loads n keys, then runs each workload with n/2 operations
// (rangeOps for range scans), and audits the structure when it supports it.
// The returned index is still open so callers can read its stats.
func RunSuite(s Suite, n int, workloads []WorkloadType, r *rand.Rand, log *zap.SugaredLogger) ([]BenchResult, index.Index, error) {
	log.Infow("testing", "structure", s.Name, "config", s.Config)
	confStr := strconv.Itoa(s.Config)

	idx, err := s.Open()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%s(%d)", s.Name, s.Config)
	}

	// Pure insert (initial load).
	start := time.Now()
	for k := range n {
		if err := idx.Insert(int64(k), workloadValue); err != nil {
			idx.Close()
			return nil, nil, errors.Wrapf(err, "%s(%d) load", s.Name, s.Config)
		}
	}
	insertLatency := time.Since(start).Nanoseconds() / int64(n)

	// Memory right after the load, before any workload runs.
	stats := GetDetailedMem()
	results := []BenchResult{{
		Name:      s.Name,
		Config:    confStr,
		Operation: "Footprint_SteadyState",
		LatencyNs: insertLatency,
		MemMB:     stats.AllocMB,
		Objects:   stats.HeapObjects,
	}}

	for _, w := range workloads {
		ops := max(n/2, 1)
		if w == Reporting {
			ops = rangeOps
		}
		start := time.Now()
		if err := ExecuteWorkload(idx, w, ops, n, r); err != nil {
			idx.Close()
			return nil, nil, errors.Wrapf(err, "%s(%d)", s.Name, s.Config)
		}
		lat := time.Since(start).Nanoseconds() / int64(ops)
		mem := GetDetailedMem()
		results = append(results, BenchResult{
			Name:      s.Name,
			Config:    confStr,
			Operation: workloadColumn[w],
			LatencyNs: lat,
			MemMB:     mem.AllocMB,
			Objects:   mem.HeapObjects,
		})
		log.Debugw("workload done", "structure", s.Name, "workload", w, "nsPerOp", lat)
	}

	if c, ok := idx.(checker); ok {
		if err := c.Check(); err != nil {
			idx.Close()
			return nil, nil, errors.Wrapf(err, "%s(%d) check", s.Name, s.Config)
		}
	}
	return results, idx, nil
}

const rangeOps = 100

// cacheOperation names the rows produced by the LRU cache suite.
const cacheOperation = "Cache_Zipf"

var workloadColumn = map[WorkloadType]string{
	OLTP:      "Workload_OLTP",
	OLAP:      "Workload_OLAP",
	Reporting: "Workload_Range",
}
