package main

import (
	"cmp"
	"encoding/csv"
	"io"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/btree-query-bench/containers/dbms/pager"
)

var csvHeader = []string{"Structure", "Config", "TestType", "LatencyNs", "MemMB", "HeapObjects", "HitRatio"}

// WriteCSV writes the header and one row per result.
func WriteCSV(w io.Writer, results []BenchResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "csv header")
	}
	for _, res := range results {
		hit := ""
		if res.Operation == cacheOperation {
			hit = strconv.FormatFloat(res.HitRatio, 'f', 4, 64)
		}
		err := cw.Write([]string{
			res.Name,
			res.Config,
			res.Operation,
			strconv.FormatInt(res.LatencyNs, 10),
			strconv.FormatUint(res.MemMB, 10),
			strconv.FormatUint(res.Objects, 10),
			hit,
		})
		if err != nil {
			return errors.Wrap(err, "csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "csv flush")
}

// PlotLatency renders one bar chart per operation (ns/op by structure and
// config) into dir and returns the written paths.
func PlotLatency(dir, runID string, results []BenchResult) ([]string, error) {
	byOp := make(map[string][]BenchResult)
	for _, res := range results {
		byOp[res.Operation] = append(byOp[res.Operation], res)
	}
	ops := make([]string, 0, len(byOp))
	for op := range byOp {
		ops = append(ops, op)
	}
	slices.Sort(ops)

	var paths []string
	for _, op := range ops {
		rows := byOp[op]
		slices.SortStableFunc(rows, func(a, b BenchResult) int { return cmp.Compare(a.Name, b.Name) })

		values := make(plotter.Values, len(rows))
		labels := make([]string, len(rows))
		for i, res := range rows {
			values[i] = float64(res.LatencyNs)
			labels[i] = res.Name + "/" + res.Config
		}

		p := plot.New()
		p.Title.Text = op
		p.Y.Label.Text = "ns/op"
		bars, err := plotter.NewBarChart(values, vg.Points(18))
		if err != nil {
			return paths, errors.Wrapf(err, "plot %s", op)
		}
		p.Add(bars)
		p.NominalX(labels...)
		p.X.Tick.Label.Rotation = 0.6
		p.X.Tick.Label.XAlign = -1

		path := filepath.Join(dir, runID+"-"+op+".png")
		width := vg.Length(max(len(rows), 4)) * 0.9 * vg.Inch
		if err := p.Save(width, 5*vg.Inch, path); err != nil {
			return paths, errors.Wrapf(err, "save %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Metrics collects run results into a private Prometheus registry that is
// written out as a node_exporter textfile.
type Metrics struct {
	reg       *prometheus.Registry
	latency   *prometheus.GaugeVec
	heap      *prometheus.GaugeVec
	hitRatio  *prometheus.GaugeVec
	pageCache *prometheus.GaugeVec
	pebble    *prometheus.GaugeVec
}

func NewMetrics(runID string) *Metrics {
	labels := prometheus.Labels{"run": runID}
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		latency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "bmark_latency_ns",
			Help:        "Mean nanoseconds per operation.",
			ConstLabels: labels,
		}, []string{"structure", "config", "test"}),
		heap: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "bmark_heap_objects",
			Help:        "Live heap objects after the test.",
			ConstLabels: labels,
		}, []string{"structure", "config", "test"}),
		hitRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "bmark_cache_hit_ratio",
			Help:        "LRU hit ratio under a Zipf key stream.",
			ConstLabels: labels,
		}, []string{"limit"}),
		pageCache: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "bmark_page_cache_events",
			Help:        "Record file page cache events.",
			ConstLabels: labels,
		}, []string{"config", "event"}),
		pebble: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "bmark_pebble",
			Help:        "Pebble engine counters at the end of the suite.",
			ConstLabels: labels,
		}, []string{"counter"}),
	}
	m.reg.MustRegister(m.latency, m.heap, m.hitRatio, m.pageCache, m.pebble)
	return m
}

func (m *Metrics) ObserveResult(res BenchResult) {
	if res.Operation == cacheOperation {
		m.hitRatio.WithLabelValues(res.Config).Set(res.HitRatio)
	}
	m.latency.WithLabelValues(res.Name, res.Config, res.Operation).Set(float64(res.LatencyNs))
	m.heap.WithLabelValues(res.Name, res.Config, res.Operation).Set(float64(res.Objects))
}

func (m *Metrics) ObservePager(config string, st pager.Stats) {
	m.pageCache.WithLabelValues(config, "hit").Set(float64(st.Hits))
	m.pageCache.WithLabelValues(config, "miss").Set(float64(st.Misses))
	m.pageCache.WithLabelValues(config, "eviction").Set(float64(st.Evictions))
}

func (m *Metrics) ObservePebble(flushes, compactions int64, diskBytes uint64) {
	m.pebble.WithLabelValues("flushes").Set(float64(flushes))
	m.pebble.WithLabelValues("compactions").Set(float64(compactions))
	m.pebble.WithLabelValues("disk_bytes").Set(float64(diskBytes))
}

func (m *Metrics) WriteTextfile(path string) error {
	return errors.Wrap(prometheus.WriteToTextfile(path, m.reg), "write metrics")
}
