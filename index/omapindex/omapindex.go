// Package omapindex adapts omap.Map to the index.Index interface.
package omapindex

import (
	"iter"

	"github.com/btree-query-bench/containers/index"
	"github.com/btree-query-bench/containers/omap"
)

var _ index.Index = (*OMapIndex)(nil)

type OMapIndex struct {
	m *omap.Map[int64, []byte]
}

// New returns an empty index backed by a map of the given order.
func New(order int) (*OMapIndex, error) {
	m, err := omap.NewOrdered[int64, []byte](order)
	if err != nil {
		return nil, err
	}
	return &OMapIndex{m: m}, nil
}

// Map exposes the underlying map, e.g. for structural checks.
func (x *OMapIndex) Map() *omap.Map[int64, []byte] { return x.m }

func (x *OMapIndex) Insert(key int64, value []byte) error {
	x.m.Set(key, value)
	return nil
}

func (x *OMapIndex) Get(key int64) ([]byte, error) {
	v, ok := x.m.Get(key)
	if !ok {
		return nil, index.ErrNotFound
	}
	return v, nil
}

func (x *OMapIndex) Delete(key int64) error {
	x.m.Delete(key)
	return nil
}

func (x *OMapIndex) Range(start, end int64) (index.Iterator, error) {
	next, stop := iter.Pull2(x.m.Ascend(start))
	return &Iterator{next: next, stop: stop, end: end}, nil
}

func (x *OMapIndex) Close() error { return nil }

// Check audits the underlying map.
func (x *OMapIndex) Check() error { return x.m.Check() }

// Iterator walks the leaf chain from the first key >= start and stops at the
// first key > end.
type Iterator struct {
	next func() (int64, []byte, bool)
	stop func()
	end  int64
	key  int64
	val  []byte
	done bool
}

func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	k, v, ok := it.next()
	if !ok || k > it.end {
		it.Close()
		return false
	}
	it.key, it.val = k, v
	return true
}

func (it *Iterator) Key() int64    { return it.key }
func (it *Iterator) Value() []byte { return it.val }
func (it *Iterator) Error() error  { return nil }

func (it *Iterator) Close() error {
	if !it.done {
		it.done = true
		it.stop()
	}
	return nil
}
