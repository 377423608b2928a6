package omap

import "slices"

// Delete removes key and reports whether it was present.
func (m *Map[K, V]) Delete(key K) bool {
	path, leaf := m.descend(key)

	i, found := slices.BinarySearchFunc(leaf.keys, key, m.cmp)
	if !found {
		return false
	}
	leaf.keys = slices.Delete(leaf.keys, i, i+1)
	leaf.values = slices.Delete(leaf.values, i, i+1)
	m.size--

	if len(path) == 0 {
		return true
	}
	if i == 0 && len(leaf.keys) > 0 {
		fixSeparator(path, leaf.keys[0])
	}
	if len(leaf.keys) < m.minLeaf {
		m.rebalanceLeaf(path, leaf)
	}
	return true
}

// fixSeparator rewrites the separator bounding the end of path on its left.
// It sits in the deepest ancestor that was not entered through its first
// child; every ancestor below that one reaches the leaf through index 0.
func fixSeparator[K, V any](path []step[K, V], key K) {
	for d := len(path) - 1; d >= 0; d-- {
		if i := path[d].idx; i > 0 {
			path[d].n.keys[i-1] = key
			return
		}
	}
}

// removeChild drops children[i] and the separator on its left.
func removeChild[K, V any](n *node[K, V], i int) {
	n.keys = slices.Delete(n.keys, i-1, i)
	n.children = slices.Delete(n.children, i, i+1)
}

func siblings[K, V any](parent *node[K, V], i int) (left, right *node[K, V]) {
	if i > 0 {
		left = parent.children[i-1]
	}
	if i+1 < len(parent.children) {
		right = parent.children[i+1]
	}
	return left, right
}

// rebalanceLeaf fixes an underfull non-root leaf by borrowing one entry from
// a sibling with spare keys, or else by merging with a sibling.
func (m *Map[K, V]) rebalanceLeaf(path []step[K, V], leaf *node[K, V]) {
	parent, i := path[len(path)-1].n, path[len(path)-1].idx
	left, right := siblings(parent, i)

	switch {
	case left != nil && len(left.keys) > m.minLeaf:
		last := len(left.keys) - 1
		leaf.keys = slices.Insert(leaf.keys, 0, left.keys[last])
		leaf.values = slices.Insert(leaf.values, 0, left.values[last])
		left.keys = slices.Delete(left.keys, last, last+1)
		left.values = slices.Delete(left.values, last, last+1)
		parent.keys[i-1] = leaf.keys[0]
		return

	case right != nil && len(right.keys) > m.minLeaf:
		leaf.keys = append(leaf.keys, right.keys[0])
		leaf.values = append(leaf.values, right.values[0])
		right.keys = slices.Delete(right.keys, 0, 1)
		right.values = slices.Delete(right.values, 0, 1)
		parent.keys[i] = right.keys[0]
		return

	case left != nil:
		left.keys = append(left.keys, leaf.keys...)
		left.values = append(left.values, leaf.values...)
		left.next = leaf.next
		removeChild(parent, i)

	default:
		leaf.keys = append(leaf.keys, right.keys...)
		leaf.values = append(leaf.values, right.values...)
		leaf.next = right.next
		removeChild(parent, i+1)
	}

	if len(parent.keys) < m.minNode {
		m.rebalanceNode(path[:len(path)-1], parent)
	}
}

// rebalanceNode fixes an underfull internal node n, reached through path.
// Borrowing rotates a key through the parent; merging pulls the parent's
// separator down and may leave the parent underfull in turn.
func (m *Map[K, V]) rebalanceNode(path []step[K, V], n *node[K, V]) {
	for len(path) > 0 {
		parent, i := path[len(path)-1].n, path[len(path)-1].idx
		left, right := siblings(parent, i)

		switch {
		case left != nil && len(left.keys) > m.minNode:
			last := len(left.keys) - 1
			n.keys = slices.Insert(n.keys, 0, parent.keys[i-1])
			n.children = slices.Insert(n.children, 0, left.children[last+1])
			parent.keys[i-1] = left.keys[last]
			left.keys = slices.Delete(left.keys, last, last+1)
			left.children = slices.Delete(left.children, last+1, last+2)
			return

		case right != nil && len(right.keys) > m.minNode:
			n.keys = append(n.keys, parent.keys[i])
			n.children = append(n.children, right.children[0])
			parent.keys[i] = right.keys[0]
			right.keys = slices.Delete(right.keys, 0, 1)
			right.children = slices.Delete(right.children, 0, 1)
			return

		case left != nil:
			left.keys = append(left.keys, parent.keys[i-1])
			left.keys = append(left.keys, n.keys...)
			left.children = append(left.children, n.children...)
			removeChild(parent, i)

		default:
			n.keys = append(n.keys, parent.keys[i])
			n.keys = append(n.keys, right.keys...)
			n.children = append(n.children, right.children...)
			removeChild(parent, i+1)
		}

		if len(parent.keys) >= m.minNode {
			return
		}
		n = parent
		path = path[:len(path)-1]
	}

	// n is the root. Once it runs out of separators its only child takes
	// its place and the tree shrinks by one level.
	if !n.leaf && len(n.keys) == 0 {
		m.root = n.children[0]
		m.height--
	}
}
