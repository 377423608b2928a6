package omap

import "slices"

// Set stores value under key. It reports whether key was newly inserted;
// an existing entry is overwritten in place.
func (m *Map[K, V]) Set(key K, value V) bool {
	path, leaf := m.descend(key)

	i, found := slices.BinarySearchFunc(leaf.keys, key, m.cmp)
	if found {
		leaf.values[i] = value
		return false
	}
	leaf.keys = slices.Insert(leaf.keys, i, key)
	leaf.values = slices.Insert(leaf.values, i, value)
	m.size++

	if len(leaf.keys) > m.maxLeaf {
		m.splitLeaf(path, leaf)
	}
	return true
}

// carve moves s[from:] into a new slice with room for limit+1 elements, and
// zeroes the moved tail of s.
func carve[T any](s []T, from, limit int) (kept, moved []T) {
	moved = append(make([]T, 0, limit+1), s[from:]...)
	clear(s[from:])
	return s[:from], moved
}

// splitLeaf keeps the first minLeaf entries in left and moves the rest to a
// new leaf linked right after it. The first key of the new leaf is copied up.
func (m *Map[K, V]) splitLeaf(path []step[K, V], left *node[K, V]) {
	right := &node[K, V]{leaf: true, next: left.next}
	left.keys, right.keys = carve(left.keys, m.minLeaf, m.maxLeaf)
	left.values, right.values = carve(left.values, m.minLeaf, m.maxLeaf)
	left.next = right

	m.insertChild(path, right.keys[0], right)
}

// insertChild inserts child right of the node reached through the last step
// of path, with key as their separator. Overflowing internal nodes are split
// on the way up; the middle key moves to the parent.
func (m *Map[K, V]) insertChild(path []step[K, V], key K, child *node[K, V]) {
	for d := len(path) - 1; d >= 0; d-- {
		n, i := path[d].n, path[d].idx

		n.keys = slices.Insert(n.keys, i, key)
		n.children = slices.Insert(n.children, i+1, child)
		if len(n.keys) <= m.maxNode {
			return
		}

		split := m.minNode + 1
		sibling := &node[K, V]{}
		key = n.keys[m.minNode]
		n.keys, sibling.keys = carve(n.keys, split, m.maxNode)
		n.children, sibling.children = carve(n.children, split, m.maxNode+1)
		var zero K
		n.keys[m.minNode] = zero
		n.keys = n.keys[:m.minNode]
		child = sibling
	}

	// The root was split, the tree grows in height.
	m.root = &node[K, V]{
		keys:     []K{key},
		children: []*node[K, V]{m.root, child},
	}
	m.height++
}
