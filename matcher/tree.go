package matcher

import (
	tsinfer "github.com/kentwait/tsinfer"
	"github.com/kentwait/tsinfer/treeseq"
)

// qtree is the quintuply linked in-memory tree the matcher evolves one
// site at a time, mirroring tsinfer.h's ancestor_matcher_t parent/
// left_child/right_child/left_sib/right_sib arrays. Every array is
// indexed by NodeID and sized to the tree sequence's current node count.
type qtree struct {
	parent     []tsinfer.NodeID
	leftChild  []tsinfer.NodeID
	rightChild []tsinfer.NodeID
	leftSib    []tsinfer.NodeID
	rightSib   []tsinfer.NodeID
}

func newQTree(numNodes int) *qtree {
	t := &qtree{
		parent:     make([]tsinfer.NodeID, numNodes),
		leftChild:  make([]tsinfer.NodeID, numNodes),
		rightChild: make([]tsinfer.NodeID, numNodes),
		leftSib:    make([]tsinfer.NodeID, numNodes),
		rightSib:   make([]tsinfer.NodeID, numNodes),
	}
	t.resetAll()
	return t
}

func (t *qtree) numNodes() int { return len(t.parent) }

func (t *qtree) resetAll() {
	for i := range t.parent {
		t.parent[i] = tsinfer.NullNode
		t.leftChild[i] = tsinfer.NullNode
		t.rightChild[i] = tsinfer.NullNode
		t.leftSib[i] = tsinfer.NullNode
		t.rightSib[i] = tsinfer.NullNode
	}
}

// grow extends every array to n nodes, preserving existing entries and
// initializing the new slots as isolated roots.
func (t *qtree) grow(n int) {
	if n <= len(t.parent) {
		return
	}
	extend := func(s []tsinfer.NodeID) []tsinfer.NodeID {
		out := make([]tsinfer.NodeID, n)
		copy(out, s)
		for i := len(s); i < n; i++ {
			out[i] = tsinfer.NullNode
		}
		return out
	}
	t.parent = extend(t.parent)
	t.leftChild = extend(t.leftChild)
	t.rightChild = extend(t.rightChild)
	t.leftSib = extend(t.leftSib)
	t.rightSib = extend(t.rightSib)
}

func (t *qtree) isRoot(n tsinfer.NodeID) bool { return t.parent[n] == tsinfer.NullNode }

// detach removes child from its parent's sibling list, making it a root.
// A no-op if child is already a root.
func (t *qtree) detach(child tsinfer.NodeID) {
	p := t.parent[child]
	if p == tsinfer.NullNode {
		return
	}
	ls, rs := t.leftSib[child], t.rightSib[child]
	if ls != tsinfer.NullNode {
		t.rightSib[ls] = rs
	} else {
		t.leftChild[p] = rs
	}
	if rs != tsinfer.NullNode {
		t.leftSib[rs] = ls
	} else {
		t.rightChild[p] = ls
	}
	t.parent[child] = tsinfer.NullNode
	t.leftSib[child] = tsinfer.NullNode
	t.rightSib[child] = tsinfer.NullNode
}

// attach makes child the new rightmost child of parent. child must
// already be a root (detach it first if it has an existing parent).
func (t *qtree) attach(parent, child tsinfer.NodeID) {
	last := t.rightChild[parent]
	t.leftSib[child] = last
	t.rightSib[child] = tsinfer.NullNode
	if last != tsinfer.NullNode {
		t.rightSib[last] = child
	} else {
		t.leftChild[parent] = child
	}
	t.rightChild[parent] = child
	t.parent[child] = parent
}

// treeState is the matcher's per-call working state: the evolving tree,
// the ground-truth likelihood for every node, the tagged status used for
// compression bookkeeping, and the allele cache used to look up what a
// node copies at the site currently being processed.
type treeState struct {
	tree *qtree

	// current holds every node's actual likelihood; this is the value
	// the forward-pass recursion reads and writes. It is never itself
	// tagged or sentineled — the tagged likelihood type below exists
	// purely as a derived, per-site view for bookkeeping.
	current []float64

	status   []likelihood
	focalSet []tsinfer.NodeID

	pathCache      []tsinfer.Allele
	pathCacheValid []bool
}

func newTreeState(numNodes int) *treeState {
	ts := &treeState{
		tree:           newQTree(numNodes),
		current:        make([]float64, numNodes),
		status:         make([]likelihood, numNodes),
		pathCache:      make([]tsinfer.Allele, numNodes),
		pathCacheValid: make([]bool, numNodes),
	}
	ts.resetForCall()
	return ts
}

// ensureCapacity grows every backing array to at least n nodes, copying
// forward any state already present. The tree sequence only ever grows
// between matcher calls, so this is always an extension, never a shrink.
func (ts *treeState) ensureCapacity(n int) {
	if n <= len(ts.current) {
		return
	}
	ts.tree.grow(n)
	grownF := make([]float64, n)
	copy(grownF, ts.current)
	ts.current = grownF
	grownS := make([]likelihood, n)
	copy(grownS, ts.status)
	ts.status = grownS
	grownA := make([]tsinfer.Allele, n)
	copy(grownA, ts.pathCache)
	ts.pathCache = grownA
	grownV := make([]bool, n)
	copy(grownV, ts.pathCacheValid)
	ts.pathCacheValid = grownV
}

// resetForCall wipes the tree and likelihood state back to the uniform
// initial condition every find_path call starts from: no edges attached,
// every node an isolated root with implicit likelihood 1.
func (ts *treeState) resetForCall() {
	ts.tree.resetAll()
	for i := range ts.current {
		ts.current[i] = 1
		ts.status[i] = unsetLikelihood()
	}
	ts.focalSet = ts.focalSet[:0]
	ts.invalidatePathCache()
}

func (ts *treeState) invalidatePathCache() {
	for i := range ts.pathCacheValid {
		ts.pathCacheValid[i] = false
	}
}

// applyTopology detaches every edge leaving site and attaches every edge
// entering it, advancing the tree to the state valid at site. Any
// topology change invalidates the allele cache, since a node's copying
// parent may have changed.
func (ts *treeState) applyTopology(tb *treeseq.Builder, site tsinfer.SiteID) {
	leaving := tb.EdgesLeavingAt(site)
	entering := tb.EdgesEnteringAt(site)
	if len(leaving) == 0 && len(entering) == 0 {
		return
	}
	for _, e := range leaving {
		ts.tree.detach(e.Child)
	}
	for _, e := range entering {
		ts.tree.attach(e.Parent, e.Child)
	}
	ts.invalidatePathCache()
}

// alleleAt returns the allele node carries at site, walking up to the
// nearest ancestor with a recorded mutation (or to the root, whose
// allele is the ancestral state 0) and memoizing the result per node
// until the cache is invalidated, which FindPath does at every site and
// applyTopology does on every topology change.
func (ts *treeState) alleleAt(node tsinfer.NodeID, site tsinfer.SiteID, mutations []treeseq.MutationView) tsinfer.Allele {
	if ts.pathCacheValid[node] {
		return ts.pathCache[node]
	}
	var a tsinfer.Allele
	if ts.tree.isRoot(node) {
		a = 0
	} else {
		a = ts.alleleAt(ts.tree.parent[node], site, mutations)
	}
	for _, m := range mutations {
		if m.Node == node {
			a = m.DerivedState
		}
	}
	ts.pathCache[node] = a
	ts.pathCacheValid[node] = true
	return a
}

// recomputeStatus rebuilds the tagged likelihood/focal-set bookkeeping
// from ts.current and the current tree shape, in a top-down traversal so
// every node is compared against its parent's effective value.
// This is pure bookkeeping: PrintState reads it, and nothing it computes
// feeds back into ts.current.
func (ts *treeState) recomputeStatus() {
	for i := range ts.status {
		ts.status[i] = unsetLikelihood()
	}
	ts.focalSet = ts.focalSet[:0]
	for u := 0; u < ts.tree.numNodes(); u++ {
		n := tsinfer.NodeID(u)
		if ts.tree.isRoot(n) {
			ts.classifyRoot(n)
			ts.visitChildren(n)
		}
	}
}

func (ts *treeState) classifyRoot(n tsinfer.NodeID) {
	if ts.current[n] == 1 {
		ts.status[n] = nonzeroRootLikelihood()
	} else {
		ts.status[n] = valueLikelihood(ts.current[n])
	}
	ts.markFocal(n)
}

func (ts *treeState) visitChildren(parent tsinfer.NodeID) {
	// current holds every node's effective value, including a null
	// parent's (whose status carries no value of its own).
	parentValue := ts.current[parent]
	for c := ts.tree.leftChild[parent]; c != tsinfer.NullNode; c = ts.tree.rightSib[c] {
		if ts.current[c] == parentValue {
			ts.status[c] = nullLikelihood()
		} else {
			ts.status[c] = valueLikelihood(ts.current[c])
			ts.markFocal(c)
		}
		ts.visitChildren(c)
	}
}

func (ts *treeState) markFocal(n tsinfer.NodeID) {
	ts.focalSet = append(ts.focalSet, n)
}

// numFocal reports how many nodes currently carry an explicit (non-null)
// likelihood, for PrintState.
func (ts *treeState) numFocal() int { return len(ts.focalSet) }
