// Package treeseq is the append-only store of nodes, edges and mutations
// that backs the ancestral recombination graph, and the three sorted
// edge indexes the matcher walks during a genome scan (§4.2). It depends
// only on internal/arena and internal/avl, never on ancestorbuilder or
// matcher.
package treeseq

import tsinfer "github.com/kentwait/tsinfer"

// nodeRecord is one entry of the Nodes sub-structure: a node's time and
// flags. This realizes the TODO in the header this spec distills from
// ("introduce a nodes sub-struct analogous to sites").
type nodeRecord struct {
	time  float64
	flags uint32
}

// nodeTable is the Nodes sub-structure: a flat, append-only array of node
// records indexed by NodeID.
type nodeTable struct {
	items []nodeRecord
}

func (t *nodeTable) add(time float64, flags uint32) tsinfer.NodeID {
	id := tsinfer.NodeID(len(t.items))
	t.items = append(t.items, nodeRecord{time: time, flags: flags})
	return id
}

func (t *nodeTable) get(id tsinfer.NodeID) nodeRecord { return t.items[int(id)] }

func (t *nodeTable) len() int { return len(t.items) }

func (t *nodeTable) valid(id tsinfer.NodeID) bool {
	return int(id) >= 0 && int(id) < len(t.items)
}

func (t *nodeTable) totalMemory() uint64 {
	return uint64(len(t.items)) * uint64(16) // time float64 + flags uint32, rounded up
}

// edgeRecord is one arena-allocated edge. Left never changes after
// insertion. Right can grow when a later add_path call supplies a head
// edge that continues this one (same parent/child, new edge's left
// equals this edge's right) — the path index exists to find that
// predecessor in O(log n) instead of rescanning, and End is kept equal
// to Right at every such extension. TSI_RESOLVE_SHARED_RECOMBS
// coalescing never touches Left/Right/End: when two different children
// turn out to share an identical (parent, left, right) edge, only the
// first edge's Parent is rewritten, to a synthetic node standing in for
// the shared parent over that interval — the interval itself is
// unchanged, since what moves is which node the edge attaches to, not
// the span it covers. End is carried as a field distinct from Right so
// the matcher's tree-traversal code has its own name for "the boundary
// to walk to" independent of how that boundary was produced. ParentTime
// is the parent node's time, cached here so the left/right index
// comparators don't need a pointer back to the node table.
type edgeRecord struct {
	Left, Right, End tsinfer.SiteID
	Parent, Child    tsinfer.NodeID
	ParentTime       float64
}

// mutationRecord is one arena-allocated mutation list entry. Parent
// refers to the mutation this one is derived from in an external
// mutation-tree annotation; add_mutations always records NullMutation
// since that lineage information is produced outside this layer (§6's
// dump/restore format still needs the field to round-trip whatever a
// caller restores).
type mutationRecord struct {
	Site         tsinfer.SiteID
	Node         tsinfer.NodeID
	DerivedState tsinfer.Allele
	Parent       tsinfer.MutationID
}

// siteRecord is one entry of the tree sequence's Sites table: a genomic
// position, its per-site recombination rate, and the head of its
// mutation list (a slot id into the mutation arena, or -1 if empty).
type siteRecord struct {
	Position          float64
	RecombinationRate float64
	mutationHead      int32
	mutationTail      int32
}

type siteTable struct {
	items []siteRecord
}

func (t *siteTable) valid(s tsinfer.SiteID) bool {
	return int(s) >= 0 && int(s) < len(t.items)
}
