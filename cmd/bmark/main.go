// Command bmark benchmarks the ordered map, the LSM tree built on it, the
// record file and pebble under OLTP, OLAP and range workloads, and measures
// the LRU cache under a Zipf key stream.
package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/btree-query-bench/containers/dbms/lsm"
	"github.com/btree-query-bench/containers/dbms/recfile"
	"github.com/btree-query-bench/containers/index"
	"github.com/btree-query-bench/containers/index/lsmtree"
	"github.com/btree-query-bench/containers/index/omapindex"
	"github.com/btree-query-bench/containers/internal/logging"
	"github.com/btree-query-bench/containers/omap"
)

// lsmMemtableOrder is the ordered map order used for LSM memtables.
const lsmMemtableOrder = omap.DefaultOrder

func main() {
	cfg, err := ParseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatalw("benchmark failed", "error", err)
	}
}

func run(cfg Config, log *zap.SugaredLogger) error {
	if err := os.MkdirAll(cfg.Out, 0755); err != nil {
		return errors.Wrap(err, "create output directory")
	}
	runID := uuid.NewString()
	log.Infow("run started", "run", runID, "scale", cfg.Scale, "out", cfg.Out)

	r := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	metrics := NewMetrics(runID)
	workloads := make([]WorkloadType, len(cfg.Workloads))
	for i, w := range cfg.Workloads {
		workloads[i] = WorkloadType(w)
	}

	scratch, err := os.MkdirTemp("", "bmark-")
	if err != nil {
		return errors.Wrap(err, "scratch directory")
	}
	defer os.RemoveAll(scratch)

	var results []BenchResult
	runOne := func(s Suite, after func(index.Index)) error {
		res, idx, err := RunSuite(s, cfg.Scale, workloads, r, log)
		if err != nil {
			return err
		}
		if after != nil {
			after(idx)
		}
		if err := idx.Close(); err != nil {
			return errors.Wrapf(err, "close %s(%d)", s.Name, s.Config)
		}
		results = append(results, res...)
		return nil
	}

	// 1. Sweep ordered map orders.
	for _, order := range cfg.Orders {
		s := Suite{Name: "OrderedMap", Config: order, Open: func() (index.Index, error) {
			return omapindex.New(order)
		}}
		if err := runOne(s, nil); err != nil {
			return err
		}
	}

	// 2. Sweep LSM thresholds.
	for _, t := range cfg.LSMThresholds {
		s := Suite{Name: "LSM-Tree", Config: t, Open: func() (index.Index, error) {
			return lsmtree.NewLSM(t, lsmMemtableOrder)
		}}
		if err := runOne(s, nil); err != nil {
			return err
		}
	}

	// 3. Record file, one per key index order.
	if cfg.RecFile {
		for _, order := range cfg.Orders {
			path := filepath.Join(scratch, "rec-"+strconv.Itoa(order)+".db")
			s := Suite{Name: "RecFile", Config: order, Open: func() (index.Index, error) {
				return recfile.Open(path, order, cfg.CachePages, log)
			}}
			err := runOne(s, func(idx index.Index) {
				st := idx.(*recfile.RecFile).Stats()
				log.Infow("record file", "order", order, "pages", st.Pages, "keys", st.Keys,
					"hits", st.Cache.Hits, "misses", st.Cache.Misses, "evictions", st.Cache.Evictions)
				metrics.ObservePager(strconv.Itoa(order), st.Cache)
			})
			if err != nil {
				return err
			}
		}
	}

	// 4. Pebble baseline.
	if cfg.Pebble {
		dir := filepath.Join(scratch, "pebble")
		s := Suite{Name: "Pebble", Config: 0, Open: func() (index.Index, error) {
			return lsm.Open(dir, log.Named("pebble"))
		}}
		err := runOne(s, func(idx index.Index) {
			m := idx.(*lsm.LSM).Metrics()
			metrics.ObservePebble(m.Flush.Count, m.Compact.Count, m.DiskSpaceUsage())
		})
		if err != nil {
			return err
		}
	}

	// 5. LRU cache under a skewed key stream.
	for _, limit := range cfg.CacheLimits {
		c, err := CacheWorkload(limit, cfg.Scale, cfg.Scale, r)
		if err != nil {
			return err
		}
		log.Infow("cache", "limit", limit, "hitRatio", c.HitRatio(), "evictions", c.Evictions)
		results = append(results, BenchResult{
			Name:      "LRU",
			Config:    strconv.Itoa(limit),
			Operation: cacheOperation,
			LatencyNs: c.LatencyNs,
			HitRatio:  c.HitRatio(),
		})
	}

	for _, res := range results {
		metrics.ObserveResult(res)
	}
	return writeOutputs(cfg, runID, results, metrics, log)
}

func writeOutputs(cfg Config, runID string, results []BenchResult, metrics *Metrics, log *zap.SugaredLogger) error {
	csvPath := filepath.Join(cfg.Out, runID+".csv")
	f, err := os.Create(csvPath)
	if err != nil {
		return errors.Wrap(err, "create csv")
	}
	if err := WriteCSV(f, results); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close csv")
	}
	log.Infow("results written", "csv", csvPath, "rows", len(results))

	promPath := filepath.Join(cfg.Out, runID+".prom")
	if err := metrics.WriteTextfile(promPath); err != nil {
		return err
	}

	if cfg.Plot {
		paths, err := PlotLatency(cfg.Out, runID, results)
		if err != nil {
			return err
		}
		log.Infow("charts written", "files", paths)
	}

	if cfg.DOT {
		if err := exportDOT(cfg.Out, runID, log); err != nil {
			return err
		}
	}
	log.Infow("benchmark complete", "run", runID)
	return nil
}

// exportDOT renders a small order-4 map and, if Graphviz is installed,
// converts it to PNG.
func exportDOT(dir, runID string, log *zap.SugaredLogger) error {
	m, err := omap.NewOrdered[int, struct{}](4)
	if err != nil {
		return err
	}
	for k := range 40 {
		m.Set(k, struct{}{})
	}

	dotPath := filepath.Join(dir, runID+"-omap.dot")
	f, err := os.Create(dotPath)
	if err != nil {
		return errors.Wrap(err, "create dot file")
	}
	if err := m.WriteDOT(f); err != nil {
		f.Close()
		return errors.Wrap(err, "write dot")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close dot file")
	}

	if _, err := exec.LookPath("dot"); err != nil {
		log.Infow("graphviz not installed, keeping DOT only", "dot", dotPath)
		return nil
	}
	pngPath := filepath.Join(dir, runID+"-omap.png")
	if err := exec.Command("dot", "-Tpng", dotPath, "-o", pngPath).Run(); err != nil {
		log.Warnw("graphviz failed", "error", err)
		return nil
	}
	log.Infow("tree exported", "png", pngPath)
	return nil
}
