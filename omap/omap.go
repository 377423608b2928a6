// Package omap implements an in-memory ordered map as a B+ tree.
//
// Entries live in the leaves, which are linked left to right so a full
// ordered traversal never re-descends the tree. Internal nodes hold only
// separator keys: every key below children[i] is < keys[i] and every key
// below children[i+1] is >= keys[i].
//
// The comparator passed to New must define a strict total order over keys.
// Two distinct keys that compare equal are treated as the same key.
//
// A Map is not safe for concurrent use, and it must not be modified while
// one of its iterators is running.
package omap

import (
	"cmp"
	"iter"
	"slices"

	"github.com/cockroachdb/errors"
)

// DefaultOrder is a reasonable order for maps of small keys.
const DefaultOrder = 64

var (
	ErrInvalidOrder = errors.New("omap: order must be at least 3")
	ErrNilCompare   = errors.New("omap: nil compare function")
	ErrCorrupt      = errors.New("omap: corrupt tree")
)

type node[K, V any] struct {
	leaf     bool
	keys     []K
	values   []V           // Only populated if leaf == true
	children []*node[K, V] // Only populated if leaf == false
	next     *node[K, V]   // Next leaf, nil for the last one
}

// step records the child taken while descending through an internal node.
type step[K, V any] struct {
	n   *node[K, V]
	idx int
}

// Map is an ordered map with a fixed order (maximum fan-out).
type Map[K, V any] struct {
	cmp   func(a, b K) int
	order int

	minLeaf, maxLeaf int
	minNode, maxNode int

	root   *node[K, V]
	leaf0  *node[K, V]
	height int
	size   int

	path []step[K, V] // scratch space for Set and Delete
}

// New returns an empty map ordered by compare, which must return a negative
// number, zero or a positive number when a < b, a == b or a > b.
func New[K, V any](order int, compare func(a, b K) int) (*Map[K, V], error) {
	if order < 3 {
		return nil, errors.Wrapf(ErrInvalidOrder, "got order %d", order)
	}
	if compare == nil {
		return nil, ErrNilCompare
	}
	m := &Map[K, V]{
		cmp:     compare,
		order:   order,
		minLeaf: order / 2,
		maxLeaf: order,
		minNode: (order - 1) / 2,
		maxNode: order - 1,
	}
	m.Clear()
	return m, nil
}

// NewOrdered returns an empty map ordered by cmp.Compare.
func NewOrdered[K cmp.Ordered, V any](order int) (*Map[K, V], error) {
	return New[K, V](order, cmp.Compare[K])
}

// Clear removes all entries. The order is kept.
func (m *Map[K, V]) Clear() {
	m.root = &node[K, V]{leaf: true}
	m.leaf0 = m.root
	m.height = 1
	m.size = 0
	m.path = nil
}

func (m *Map[K, V]) Len() int    { return m.size }
func (m *Map[K, V]) Order() int  { return m.order }
func (m *Map[K, V]) Height() int { return m.height }

// route returns the index of the child of n whose range covers key.
func (m *Map[K, V]) route(n *node[K, V], key K) int {
	i, found := slices.BinarySearchFunc(n.keys, key, m.cmp)
	if found {
		i++
	}
	return i
}

func (m *Map[K, V]) findLeaf(key K) *node[K, V] {
	n := m.root
	for !n.leaf {
		n = n.children[m.route(n, key)]
	}
	return n
}

// descend is findLeaf that also records the internal nodes it went through,
// root first.
func (m *Map[K, V]) descend(key K) ([]step[K, V], *node[K, V]) {
	path := m.path[:0]
	n := m.root
	for !n.leaf {
		i := m.route(n, key)
		path = append(path, step[K, V]{n, i})
		n = n.children[i]
	}
	m.path = path
	return path, n
}

// Get returns the value stored for key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	leaf := m.findLeaf(key)
	if i, found := slices.BinarySearchFunc(leaf.keys, key, m.cmp); found {
		return leaf.values[i], true
	}
	var zero V
	return zero, false
}

// Has reports whether key is present.
func (m *Map[K, V]) Has(key K) bool {
	leaf := m.findLeaf(key)
	_, found := slices.BinarySearchFunc(leaf.keys, key, m.cmp)
	return found
}

// First returns the smallest entry.
func (m *Map[K, V]) First() (K, V, bool) {
	if m.size == 0 {
		var (
			k K
			v V
		)
		return k, v, false
	}
	return m.leaf0.keys[0], m.leaf0.values[0], true
}

// All returns an iterator over all entries in ascending key order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for n := m.leaf0; n != nil; n = n.next {
			for i := range n.keys {
				if !yield(n.keys[i], n.values[i]) {
					return
				}
			}
		}
	}
}

// Keys returns an iterator over all keys in ascending order.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for n := m.leaf0; n != nil; n = n.next {
			for _, k := range n.keys {
				if !yield(k) {
					return
				}
			}
		}
	}
}

// Values returns an iterator over all values in ascending key order.
func (m *Map[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for n := m.leaf0; n != nil; n = n.next {
			for _, v := range n.values {
				if !yield(v) {
					return
				}
			}
		}
	}
}

// Ascend returns an iterator over the entries with keys >= from, in
// ascending order.
func (m *Map[K, V]) Ascend(from K) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		n := m.findLeaf(from)
		i, _ := slices.BinarySearchFunc(n.keys, from, m.cmp)
		for ; n != nil; n, i = n.next, 0 {
			for ; i < len(n.keys); i++ {
				if !yield(n.keys[i], n.values[i]) {
					return
				}
			}
		}
	}
}
