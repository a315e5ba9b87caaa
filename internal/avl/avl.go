// Package avl implements a generic balanced ordered map, the Go
// equivalent of the "AVL tree: ordered map parameterized by a
// caller-supplied comparator and external node storage" contract in §6.
// Nodes are allocated from an arena.ObjectHeap rather than individually
// heap-allocated and pointer-linked, so the tree's memory is a single
// growable slice indexed by int32 ids (see internal/arena) instead of a
// scatter of *node pointers — the same re-architecture tsinfer's design
// notes call for (§9, "three AVL trees keyed on compound tuples → ordered
// maps with explicit comparator structs").
package avl

import "github.com/kentwait/tsinfer/internal/arena"

const nilID int32 = -1

type node[K any, V any] struct {
	key    K
	value  V
	left   int32
	right  int32
	parent int32
	height int8
}

// Tree is a balanced ordered map from K to V. The zero value is not
// usable; construct with New.
type Tree[K any, V any] struct {
	heap    *arena.ObjectHeap[node[K, V]]
	root    int32
	compare func(a, b K) int
	size    int
}

// New creates an empty tree ordered by compare, which must return a
// negative number, zero, or a positive number as a is less than, equal
// to, or greater than b — the usual comparator convention.
func New[K any, V any](compare func(a, b K) int) *Tree[K, V] {
	return &Tree[K, V]{
		heap:    arena.NewObjectHeap[node[K, V]](64),
		root:    nilID,
		compare: compare,
	}
}

// Len reports the number of entries in the tree.
func (t *Tree[K, V]) Len() int { return t.size }

// TotalMemory reports the node heap's backing footprint in bytes.
func (t *Tree[K, V]) TotalMemory() uint64 { return t.heap.TotalMemory() }

// Find returns the value stored under key and true, or the zero value
// and false if key is absent.
func (t *Tree[K, V]) Find(key K) (V, bool) {
	id := t.findNode(key)
	if id == nilID {
		var zero V
		return zero, false
	}
	return t.heap.Get(id).value, true
}

func (t *Tree[K, V]) findNode(key K) int32 {
	cur := t.root
	for cur != nilID {
		n := t.heap.Get(cur)
		c := t.compare(key, n.key)
		switch {
		case c == 0:
			return cur
		case c < 0:
			cur = n.left
		default:
			cur = n.right
		}
	}
	return nilID
}

// Insert adds key/value to the tree, or overwrites the value if key is
// already present. It reports whether a new entry was created.
func (t *Tree[K, V]) Insert(key K, value V) bool {
	if t.root == nilID {
		id := t.heap.Alloc()
		n := t.heap.Get(id)
		*n = node[K, V]{key: key, value: value, left: nilID, right: nilID, parent: nilID, height: 1}
		t.root = id
		t.size++
		return true
	}

	cur := t.root
	for {
		n := t.heap.Get(cur)
		c := t.compare(key, n.key)
		switch {
		case c == 0:
			n.value = value
			return false
		case c < 0:
			if n.left == nilID {
				id := t.heap.Alloc()
				child := t.heap.Get(id)
				*child = node[K, V]{key: key, value: value, left: nilID, right: nilID, parent: cur, height: 1}
				t.heap.Get(cur).left = id
				t.size++
				t.rebalanceUp(cur)
				return true
			}
			cur = n.left
		default:
			if n.right == nilID {
				id := t.heap.Alloc()
				child := t.heap.Get(id)
				*child = node[K, V]{key: key, value: value, left: nilID, right: nilID, parent: cur, height: 1}
				t.heap.Get(cur).right = id
				t.size++
				t.rebalanceUp(cur)
				return true
			}
			cur = n.right
		}
	}
}

// Delete removes key from the tree, reporting whether it was present.
func (t *Tree[K, V]) Delete(key K) bool {
	id := t.findNode(key)
	if id == nilID {
		return false
	}
	t.deleteNode(id)
	t.size--
	return true
}

func (t *Tree[K, V]) deleteNode(id int32) {
	n := t.heap.Get(id)
	if n.left != nilID && n.right != nilID {
		// Replace with in-order successor, then delete the successor
		// node (which has at most one child) in its original spot.
		succ := t.min(n.right)
		sn := t.heap.Get(succ)
		n.key, n.value = sn.key, sn.value
		t.deleteNode(succ)
		return
	}

	var child int32 = nilID
	if n.left != nilID {
		child = n.left
	} else if n.right != nilID {
		child = n.right
	}
	parent := n.parent
	if child != nilID {
		t.heap.Get(child).parent = parent
	}
	if parent == nilID {
		t.root = child
	} else {
		p := t.heap.Get(parent)
		if p.left == id {
			p.left = child
		} else {
			p.right = child
		}
	}
	t.heap.Free(id)
	if parent != nilID {
		t.rebalanceUp(parent)
	}
}

func (t *Tree[K, V]) min(id int32) int32 {
	for {
		n := t.heap.Get(id)
		if n.left == nilID {
			return id
		}
		id = n.left
	}
}

// InOrder visits every key/value pair in ascending key order, stopping
// early if visit returns false.
func (t *Tree[K, V]) InOrder(visit func(K, V) bool) {
	t.inOrder(t.root, visit)
}

func (t *Tree[K, V]) inOrder(id int32, visit func(K, V) bool) bool {
	if id == nilID {
		return true
	}
	n := t.heap.Get(id)
	if !t.inOrder(n.left, visit) {
		return false
	}
	if !visit(n.key, n.value) {
		return false
	}
	return t.inOrder(n.right, visit)
}

// Floor returns the entry with the largest key less than or equal to key,
// and true, or the zero value and false if no such entry exists. Used to
// find the nearest existing edge when deciding whether a new edge
// continues one already present for the same parent/child pair.
func (t *Tree[K, V]) Floor(key K) (K, V, bool) {
	cur := t.root
	best := nilID
	for cur != nilID {
		n := t.heap.Get(cur)
		c := t.compare(key, n.key)
		switch {
		case c == 0:
			return n.key, n.value, true
		case c < 0:
			cur = n.left
		default:
			best = cur
			cur = n.right
		}
	}
	if best == nilID {
		var zk K
		var zv V
		return zk, zv, false
	}
	n := t.heap.Get(best)
	return n.key, n.value, true
}

// Min returns the smallest key in the tree and true, or the zero value
// and false if the tree is empty.
func (t *Tree[K, V]) Min() (K, V, bool) {
	if t.root == nilID {
		var zk K
		var zv V
		return zk, zv, false
	}
	id := t.min(t.root)
	n := t.heap.Get(id)
	return n.key, n.value, true
}

func (t *Tree[K, V]) height(id int32) int8 {
	if id == nilID {
		return 0
	}
	return t.heap.Get(id).height
}

func (t *Tree[K, V]) updateHeight(id int32) {
	n := t.heap.Get(id)
	lh, rh := t.height(n.left), t.height(n.right)
	if lh > rh {
		n.height = lh + 1
	} else {
		n.height = rh + 1
	}
}

func (t *Tree[K, V]) balanceFactor(id int32) int {
	n := t.heap.Get(id)
	return int(t.height(n.left)) - int(t.height(n.right))
}

// rebalanceUp walks from id to the root, updating heights and rotating
// any node that becomes unbalanced. This is the standard AVL rebalancing
// pass run after every structural change.
func (t *Tree[K, V]) rebalanceUp(id int32) {
	for id != nilID {
		t.updateHeight(id)
		bf := t.balanceFactor(id)
		switch {
		case bf > 1:
			n := t.heap.Get(id)
			if t.balanceFactor(n.left) < 0 {
				t.rotateLeft(n.left)
			}
			id = t.rotateRight(id)
		case bf < -1:
			n := t.heap.Get(id)
			if t.balanceFactor(n.right) > 0 {
				t.rotateRight(n.right)
			}
			id = t.rotateLeft(id)
		}
		id = t.heap.Get(id).parent
	}
}

// rotateLeft performs a left rotation around id, returning the id of the
// node that takes id's place.
func (t *Tree[K, V]) rotateLeft(id int32) int32 {
	n := t.heap.Get(id)
	r := n.right
	rn := t.heap.Get(r)
	n.right = rn.left
	if rn.left != nilID {
		t.heap.Get(rn.left).parent = id
	}
	rn.parent = n.parent
	t.replaceChild(n.parent, id, r)
	rn.left = id
	n.parent = r
	t.updateHeight(id)
	t.updateHeight(r)
	return r
}

// rotateRight performs a right rotation around id, returning the id of
// the node that takes id's place.
func (t *Tree[K, V]) rotateRight(id int32) int32 {
	n := t.heap.Get(id)
	l := n.left
	ln := t.heap.Get(l)
	n.left = ln.right
	if ln.right != nilID {
		t.heap.Get(ln.right).parent = id
	}
	ln.parent = n.parent
	t.replaceChild(n.parent, id, l)
	ln.right = id
	n.parent = l
	t.updateHeight(id)
	t.updateHeight(l)
	return l
}

func (t *Tree[K, V]) replaceChild(parent, oldChild, newChild int32) {
	if parent == nilID {
		t.root = newChild
		return
	}
	p := t.heap.Get(parent)
	if p.left == oldChild {
		p.left = newChild
	} else {
		p.right = newChild
	}
}
