package omap

import (
	"github.com/cockroachdb/errors"
)

// Check audits the whole tree and returns an error wrapping ErrCorrupt that
// describes the first broken invariant it finds. It runs in O(n).
func (m *Map[K, V]) Check() error {
	c := checker[K, V]{m: m}
	if err := c.walk(m.root, 1, nil, nil); err != nil {
		return err
	}
	if c.depth != m.height {
		return errors.Wrapf(ErrCorrupt, "leaves at depth %d, height is %d", c.depth, m.height)
	}
	if len(c.leaves) == 0 || m.leaf0 != c.leaves[0] {
		return errors.Wrap(ErrCorrupt, "leaf0 is not the leftmost leaf")
	}

	n := m.leaf0
	for i, leaf := range c.leaves {
		if n != leaf {
			return errors.Wrapf(ErrCorrupt, "leaf chain diverges at leaf %d", i)
		}
		n = n.next
	}
	if n != nil {
		return errors.Wrap(ErrCorrupt, "last leaf has a successor")
	}
	if c.count != m.size {
		return errors.Wrapf(ErrCorrupt, "counted %d entries, size is %d", c.count, m.size)
	}
	return nil
}

type checker[K, V any] struct {
	m      *Map[K, V]
	depth  int
	count  int
	leaves []*node[K, V]
}

// walk checks n and its subtree. Keys must fall in [lo, hi); nil bounds are
// open.
func (c *checker[K, V]) walk(n *node[K, V], depth int, lo, hi *K) error {
	m := c.m
	root := n == m.root

	for i, k := range n.keys {
		if i > 0 && m.cmp(n.keys[i-1], k) >= 0 {
			return errors.Wrapf(ErrCorrupt, "keys %v and %v out of order", n.keys[i-1], k)
		}
		if lo != nil && m.cmp(k, *lo) < 0 {
			return errors.Wrapf(ErrCorrupt, "key %v below separator %v", k, *lo)
		}
		if hi != nil && m.cmp(k, *hi) >= 0 {
			return errors.Wrapf(ErrCorrupt, "key %v not below separator %v", k, *hi)
		}
	}

	if n.leaf {
		if len(n.values) != len(n.keys) {
			return errors.Wrapf(ErrCorrupt, "leaf has %d keys and %d values", len(n.keys), len(n.values))
		}
		if len(n.keys) > m.maxLeaf || (!root && len(n.keys) < m.minLeaf) {
			return errors.Wrapf(ErrCorrupt, "leaf holds %d keys, want %d..%d", len(n.keys), m.minLeaf, m.maxLeaf)
		}
		if c.depth == 0 {
			c.depth = depth
		} else if c.depth != depth {
			return errors.Wrapf(ErrCorrupt, "leaves at depths %d and %d", c.depth, depth)
		}
		c.count += len(n.keys)
		c.leaves = append(c.leaves, n)
		return nil
	}

	if len(n.children) != len(n.keys)+1 {
		return errors.Wrapf(ErrCorrupt, "node has %d keys and %d children", len(n.keys), len(n.children))
	}
	if len(n.keys) > m.maxNode || (!root && len(n.keys) < m.minNode) || len(n.keys) == 0 {
		return errors.Wrapf(ErrCorrupt, "node holds %d keys, want %d..%d", len(n.keys), m.minNode, m.maxNode)
	}
	for i, child := range n.children {
		clo, chi := lo, hi
		if i > 0 {
			clo = &n.keys[i-1]
		}
		if i < len(n.keys) {
			chi = &n.keys[i]
		}
		if err := c.walk(child, depth+1, clo, chi); err != nil {
			return err
		}
	}
	return nil
}
