// Package lsmtree is an in-memory log-structured merge tree. The memtable is
// an omap.Map, so flushes and compactions read entries back already sorted
// instead of sorting a write log.
package lsmtree

import (
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/containers/index"
	"github.com/btree-query-bench/containers/omap"
)

// Ensure LSMTree implements the index.Index interface
var _ index.Index = (*LSMTree)(nil)

const (
	numLevels      = 5  // L0 to L4
	levelFanout    = 10 // segments per level before it is compacted
	bitsPerKey     = 10
	bloomHashCount = 3
)

var ErrInvalidThreshold = errors.New("lsmtree: threshold must be positive")

type Entry struct {
	Key int64
	Val []byte // nil = Tombstone
}

type Segment struct {
	Data   []Entry
	Filter *BloomFilter
}

func newSegment(data []Entry) Segment {
	filter := NewBloom(len(data)*bitsPerKey, bloomHashCount)
	for _, e := range data {
		filter.Add(e.Key)
	}
	return Segment{Data: data, Filter: filter}
}

// search returns the position of key, or of the first larger key.
func (s Segment) search(key int64) (int, bool) {
	return slices.BinarySearchFunc(s.Data, key, func(e Entry, k int64) int {
		switch {
		case e.Key < k:
			return -1
		case e.Key > k:
			return 1
		}
		return 0
	})
}

type LSMTree struct {
	memtable  *omap.Map[int64, []byte]
	levels    [][]Segment // newest segment first within each level
	threshold int         // memtable size that triggers a flush
	order     int
}

// NewLSM returns an empty tree that flushes its memtable every threshold
// writes. order is the order of the memtable map.
func NewLSM(threshold, order int) (*LSMTree, error) {
	if threshold < 1 {
		return nil, errors.Wrapf(ErrInvalidThreshold, "got %d", threshold)
	}
	mt, err := omap.NewOrdered[int64, []byte](order)
	if err != nil {
		return nil, err
	}
	return &LSMTree{
		memtable:  mt,
		levels:    make([][]Segment, numLevels),
		threshold: threshold,
		order:     order,
	}, nil
}

// --- WRITE OPERATIONS ---

func (l *LSMTree) Insert(k int64, v []byte) error {
	if v == nil {
		v = []byte{}
	}
	return l.put(k, v)
}

func (l *LSMTree) Delete(k int64) error {
	return l.put(k, nil)
}

func (l *LSMTree) put(k int64, v []byte) error {
	l.memtable.Set(k, v)
	if l.memtable.Len() >= l.threshold {
		return l.flush()
	}
	return nil
}

func (l *LSMTree) flush() error {
	data := make([]Entry, 0, l.memtable.Len())
	for k, v := range l.memtable.All() {
		data = append(data, Entry{k, v})
	}
	l.memtable.Clear()

	l.levels[0] = slices.Insert(l.levels[0], 0, newSegment(data))
	return l.checkCompaction(0)
}

func (l *LSMTree) checkCompaction(level int) error {
	if len(l.levels[level]) >= levelFanout && level < len(l.levels)-1 {
		return l.compactLevel(level)
	}
	return nil
}

// compactLevel merges every segment of level into one segment at the head of
// the next level. Replaying oldest to newest lets newer versions win.
func (l *LSMTree) compactLevel(level int) error {
	merged, err := omap.NewOrdered[int64, []byte](l.order)
	if err != nil {
		return errors.Wrapf(err, "lsmtree: compact level %d", level)
	}
	for _, s := range slices.Backward(l.levels[level]) {
		for _, e := range s.Data {
			merged.Set(e.Key, e.Val)
		}
	}

	data := make([]Entry, 0, merged.Len())
	for k, v := range merged.All() {
		data = append(data, Entry{k, v})
	}

	l.levels[level+1] = slices.Insert(l.levels[level+1], 0, newSegment(data))
	l.levels[level] = nil

	return l.checkCompaction(level + 1)
}

// --- READ OPERATIONS ---

func (l *LSMTree) Get(key int64) ([]byte, error) {
	if v, ok := l.memtable.Get(key); ok {
		if v == nil {
			return nil, index.ErrNotFound
		}
		return v, nil
	}

	for _, level := range l.levels {
		for _, s := range level {
			if !s.Filter.Test(key) {
				continue
			}
			if i, found := s.search(key); found {
				if s.Data[i].Val == nil {
					return nil, index.ErrNotFound
				}
				return s.Data[i].Val, nil
			}
		}
	}
	return nil, index.ErrNotFound
}

// Range replays every source overlapping [start, end] from oldest to newest
// into a scratch map and returns its live entries.
func (l *LSMTree) Range(start, end int64) (index.Iterator, error) {
	merged, err := omap.NewOrdered[int64, []byte](l.order)
	if err != nil {
		return nil, errors.Wrap(err, "lsmtree: range")
	}

	for _, level := range slices.Backward(l.levels) {
		for _, s := range slices.Backward(level) {
			i, _ := s.search(start)
			for ; i < len(s.Data) && s.Data[i].Key <= end; i++ {
				merged.Set(s.Data[i].Key, s.Data[i].Val)
			}
		}
	}
	for k, v := range l.memtable.Ascend(start) {
		if k > end {
			break
		}
		merged.Set(k, v)
	}

	var final []Entry
	for k, v := range merged.All() {
		if v != nil {
			final = append(final, Entry{k, v})
		}
	}
	return &LSMIterator{data: final, idx: -1}, nil
}

// Segments returns the number of segments held at each level.
func (l *LSMTree) Segments() []int {
	counts := make([]int, len(l.levels))
	for i, level := range l.levels {
		counts[i] = len(level)
	}
	return counts
}

// --- ITERATOR ---

type LSMIterator struct {
	data []Entry
	idx  int
}

func (it *LSMIterator) Next() bool    { it.idx++; return it.idx < len(it.data) }
func (it *LSMIterator) Key() int64    { return it.data[it.idx].Key }
func (it *LSMIterator) Value() []byte { return it.data[it.idx].Val }
func (it *LSMIterator) Error() error  { return nil }
func (it *LSMIterator) Close() error  { return nil }

func (l *LSMTree) Close() error { return nil }

// Check audits the memtable.
func (l *LSMTree) Check() error { return l.memtable.Check() }
