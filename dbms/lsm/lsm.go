// Package lsm wraps Pebble (CockroachDB's LSM storage engine) behind the
// common Index interface so it can be benchmarked alongside the in-memory
// ordered map and the record file.
package lsm

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/btree-query-bench/containers/index"
)

var _ index.Index = (*LSM)(nil)

type LSM struct {
	db  *pebble.DB
	log *zap.SugaredLogger
}

// Open opens (or creates) a Pebble database at the given directory path.
// Pebble's own log lines go to log.
func Open(dir string, log *zap.SugaredLogger) (*LSM, error) {
	opts := &pebble.Options{
		MemTableSize: 16 << 20,
		// Keep several memtables so one can be flushed while another is active.
		MemTableStopWritesThreshold: 4,
		// L0 compaction trigger.
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 12,
		Logger:                log,
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "lsm: open %s", dir)
	}
	log.Debugw("pebble opened", "dir", dir)
	return &LSM{db: db, log: log}, nil
}

// Close cleanly shuts down Pebble, flushing any in-memory state.
func (l *LSM) Close() error {
	m := l.db.Metrics()
	l.log.Debugw("pebble closing",
		"flushes", m.Flush.Count,
		"compactions", m.Compact.Count,
		"diskBytes", m.DiskSpaceUsage())
	return errors.Wrap(l.db.Close(), "lsm: close")
}

// Metrics returns Pebble's internal counters.
func (l *LSM) Metrics() *pebble.Metrics { return l.db.Metrics() }

// Flush forces the memtable to disk.
func (l *LSM) Flush() error {
	return errors.Wrap(l.db.Flush(), "lsm: flush")
}

// Insert inserts or updates the value for key.
func (l *LSM) Insert(key int64, value []byte) error {
	return errors.Wrap(l.db.Set(encodeKey(key), value, pebble.NoSync), "lsm: insert")
}

// Get retrieves the value for key, or index.ErrNotFound.
func (l *LSM) Get(key int64) ([]byte, error) {
	val, closer, err := l.db.Get(encodeKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, index.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "lsm: get")
	}
	// val is only valid until closer.Close(), so we copy it.
	result := append([]byte(nil), val...)
	if err := closer.Close(); err != nil {
		return nil, errors.Wrap(err, "lsm: get")
	}
	return result, nil
}

// Delete removes the key from the store.
func (l *LSM) Delete(key int64) error {
	return errors.Wrap(l.db.Delete(encodeKey(key), pebble.NoSync), "lsm: delete")
}

// Range returns an iterator over all keys in [start, end] inclusive.
func (l *LSM) Range(start, end int64) (index.Iterator, error) {
	iterOpts := &pebble.IterOptions{
		LowerBound: encodeKey(start),
	}
	// Pebble's UpperBound is exclusive; there is nothing past MaxInt64.
	if end < math.MaxInt64 {
		iterOpts.UpperBound = encodeKey(end + 1)
	}
	it, err := l.db.NewIter(iterOpts)
	if err != nil {
		return nil, errors.Wrap(err, "lsm: range")
	}
	it.First()
	return &rangeIterator{iter: it, first: true}, nil
}

// ─── Key encoding ─────────────────────────────────────────────────────────────

// encodeKey encodes an int64 as 8 big-endian bytes with the sign bit
// flipped, so byte order matches numeric order for negative keys too.
func encodeKey(k int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(k)^(1<<63))
	return b
}

func decodeKey(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

// ─── Range Iterator ───────────────────────────────────────────────────────────

type rangeIterator struct {
	iter  *pebble.Iterator
	first bool
	key   int64
	val   []byte
	err   error
}

func (it *rangeIterator) Next() bool {
	var valid bool
	if it.first {
		// iter.First() was already called in Range(); just check validity.
		it.first = false
		valid = it.iter.Valid()
	} else {
		valid = it.iter.Next()
	}
	if !valid {
		it.err = it.iter.Error()
		return false
	}
	k := it.iter.Key()
	if len(k) != 8 {
		it.err = errors.Newf("lsm: unexpected key length %d", len(k))
		return false
	}
	it.key = decodeKey(k)
	// Copy value, Pebble reuses the buffer on Next().
	it.val = append([]byte(nil), it.iter.Value()...)
	return true
}

func (it *rangeIterator) Key() int64    { return it.key }
func (it *rangeIterator) Value() []byte { return it.val }
func (it *rangeIterator) Error() error  { return it.err }
func (it *rangeIterator) Close() error  { return it.iter.Close() }
