package treeseq

import (
	"github.com/kentwait/tsinfer/internal/avl"
	tsinfer "github.com/kentwait/tsinfer"
)

// leftKey orders edges by (left, parent_time ascending, parent, child) —
// the order the matcher walks edges-in during its left-to-right genome
// scan.
type leftKey struct {
	Left       tsinfer.SiteID
	ParentTime float64
	Parent     tsinfer.NodeID
	Child      tsinfer.NodeID
}

func compareLeftKey(a, b leftKey) int {
	if a.Left != b.Left {
		return int(a.Left) - int(b.Left)
	}
	if a.ParentTime != b.ParentTime {
		return cmpFloat(a.ParentTime, b.ParentTime)
	}
	if a.Parent != b.Parent {
		return int(a.Parent) - int(b.Parent)
	}
	return int(a.Child) - int(b.Child)
}

// rightKey orders edges by (right, parent_time descending, parent,
// child) — edges-out are detached in order of increasing right, oldest
// parents (largest time) first among ties.
type rightKey struct {
	Right      tsinfer.SiteID
	ParentTime float64
	Parent     tsinfer.NodeID
	Child      tsinfer.NodeID
}

func compareRightKey(a, b rightKey) int {
	if a.Right != b.Right {
		return int(a.Right) - int(b.Right)
	}
	if a.ParentTime != b.ParentTime {
		return cmpFloat(b.ParentTime, a.ParentTime) // descending
	}
	if a.Parent != b.Parent {
		return int(a.Parent) - int(b.Parent)
	}
	return int(a.Child) - int(b.Child)
}

// pathKey orders edges by (parent, child, left), letting add_path find
// in O(log n) whether a new path's head edge continues one already
// recorded for the same parent/child pair.
type pathKey struct {
	Parent tsinfer.NodeID
	Child  tsinfer.NodeID
	Left   tsinfer.SiteID
}

func comparePathKey(a, b pathKey) int {
	if a.Parent != b.Parent {
		return int(a.Parent) - int(b.Parent)
	}
	if a.Child != b.Child {
		return int(a.Child) - int(b.Child)
	}
	return int(a.Left) - int(b.Left)
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// edgeIndexes bundles the three AVL-ordered maps §4.2 requires, each
// keyed by a distinct compound tuple over the same underlying edges.
type edgeIndexes struct {
	left  *avl.Tree[leftKey, int32]
	right *avl.Tree[rightKey, int32]
	path  *avl.Tree[pathKey, int32]
}

func newEdgeIndexes() *edgeIndexes {
	return &edgeIndexes{
		left:  avl.New[leftKey, int32](compareLeftKey),
		right: avl.New[rightKey, int32](compareRightKey),
		path:  avl.New[pathKey, int32](comparePathKey),
	}
}

func (ix *edgeIndexes) insert(id int32, e edgeRecord) {
	ix.left.Insert(leftKey{e.Left, e.ParentTime, e.Parent, e.Child}, id)
	ix.right.Insert(rightKey{e.Right, e.ParentTime, e.Parent, e.Child}, id)
	ix.path.Insert(pathKey{e.Parent, e.Child, e.Left}, id)
}

// removeRightEntry deletes e's entry from the right index only, used
// when an edge's Right boundary is about to move (path extension) and
// must be reinserted under its new key.
func (ix *edgeIndexes) removeRightEntry(e edgeRecord) {
	ix.right.Delete(rightKey{e.Right, e.ParentTime, e.Parent, e.Child})
}

func (ix *edgeIndexes) insertRightEntry(id int32, e edgeRecord) {
	ix.right.Insert(rightKey{e.Right, e.ParentTime, e.Parent, e.Child}, id)
}

// removeEntries deletes all three of e's index entries, used before
// coalescing rewrites e.Parent and e.ParentTime (fields of every key) and
// reinserts it under insert.
func (ix *edgeIndexes) removeEntries(e edgeRecord) {
	ix.left.Delete(leftKey{e.Left, e.ParentTime, e.Parent, e.Child})
	ix.right.Delete(rightKey{e.Right, e.ParentTime, e.Parent, e.Child})
	ix.path.Delete(pathKey{e.Parent, e.Child, e.Left})
}

func (ix *edgeIndexes) totalMemory() uint64 {
	return ix.left.TotalMemory() + ix.right.TotalMemory() + ix.path.TotalMemory()
}

// findExtension reports the edge id and record of an existing edge for
// (parent, child) whose Right equals left, if one exists — the
// predecessor add_path's head edge would continue.
func (ix *edgeIndexes) findExtension(parent, child tsinfer.NodeID, left tsinfer.SiteID, get func(int32) edgeRecord) (int32, edgeRecord, bool) {
	key, id, ok := ix.path.Floor(pathKey{Parent: parent, Child: child, Left: left})
	if !ok || key.Parent != parent || key.Child != child {
		return 0, edgeRecord{}, false
	}
	e := get(id)
	if e.Right != left {
		return 0, edgeRecord{}, false
	}
	return id, e, true
}

// edgesWithLeft returns the ids of every edge whose Left equals site, in
// ascending (parent_time, parent, child) order.
func (ix *edgeIndexes) edgesWithLeft(site tsinfer.SiteID) []int32 {
	var out []int32
	ix.left.InOrder(func(k leftKey, id int32) bool {
		if k.Left < site {
			return true
		}
		if k.Left > site {
			return false
		}
		out = append(out, id)
		return true
	})
	return out
}

// edgesWithRight returns the ids of every edge whose Right equals site,
// in ascending (right, parent_time descending, parent, child) order.
func (ix *edgeIndexes) edgesWithRight(site tsinfer.SiteID) []int32 {
	var out []int32
	ix.right.InOrder(func(k rightKey, id int32) bool {
		if k.Right < site {
			return true
		}
		if k.Right > site {
			return false
		}
		out = append(out, id)
		return true
	})
	return out
}
