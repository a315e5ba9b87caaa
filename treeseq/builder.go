package treeseq

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/kentwait/tsinfer/internal/arena"
	tsinfer "github.com/kentwait/tsinfer"
	"github.com/pkg/errors"
)

// PathEdge is one caller-supplied edge in an add_path call: the interval
// it covers and the parent it copies from. Child is a separate parameter
// to AddPath since every edge in one call shares it.
type PathEdge struct {
	Left, Right tsinfer.SiteID
	Parent      tsinfer.NodeID
}

// Path flags controlling how AddPath treats its input.
const (
	// PathFlagNone requests the default behavior: a head edge that
	// continues a previously recorded edge for the same (parent, child)
	// pair is merged into it instead of stored separately.
	PathFlagNone = 0
	// PathFlagNoCompress skips that merge, always inserting a fresh
	// edge — for callers that already guarantee a minimal edge set and
	// want dump output to mirror exactly what was given. (RestoreEdges
	// does not go through AddPath at all.)
	PathFlagNoCompress = 1 << 0
)

type mutKey struct {
	site tsinfer.SiteID
	node tsinfer.NodeID
}

// sharedKey identifies a (parent, interval) pair that TSI_RESOLVE_SHARED_RECOMBS
// coalescing watches for repetition across different children.
type sharedKey struct {
	parent      tsinfer.NodeID
	left, right tsinfer.SiteID
}

// Builder is the append-only store of nodes, edges and mutations,
// maintaining the three AVL edge indexes §4.2 specifies.
type Builder struct {
	config *tsinfer.BuilderConfig

	nodes nodeTable
	sites siteTable
	edges *arena.ObjectHeap[edgeRecord]
	muts  *arena.ObjectHeap[mutationRecord]
	index *edgeIndexes

	mutationSeen map[mutKey]bool

	// lastNonSampleTime enforces the strictly-decreasing insertion-order
	// invariant on non-sample node times; nil until the first one is
	// added.
	lastNonSampleTime *float64

	// firstEdgeSeen and syntheticFor back TSI_RESOLVE_SHARED_RECOMBS:
	// the first time a (parent, left, right) triple is seen its edge id
	// is recorded here; the second time, a synthetic node is created
	// (recorded in syntheticFor) and the first edge's Parent is rewired
	// to it.
	firstEdgeSeen map[sharedKey]int32
	syntheticFor  map[sharedKey]tsinfer.NodeID

	diag *tsinfer.Diagnostics
}

// NewBuilder creates a tree sequence builder over numSites sites at the
// given strictly increasing positions and per-site recombination rates.
func NewBuilder(config *tsinfer.BuilderConfig, positions, recombinationRates []float64) (*Builder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(recombinationRates) != len(positions) {
		return nil, &tsinfer.OpError{Op: "treeseq.NewBuilder", Kind: tsinfer.ErrArgument,
			Err: errors.Errorf(tsinfer.DimensionMismatchError, "recombinationRates", len(recombinationRates), len(positions))}
	}
	sitesTbl := siteTable{items: make([]siteRecord, len(positions))}
	for i, pos := range positions {
		if i > 0 && pos <= positions[i-1] {
			return nil, &tsinfer.OpError{Op: "treeseq.NewBuilder", Kind: tsinfer.ErrArgument,
				Err: errors.Errorf(tsinfer.UnsortedSitesError, i, pos, positions[i-1])}
		}
		sitesTbl.items[i] = siteRecord{
			Position:          pos,
			RecombinationRate: recombinationRates[i],
			mutationHead:      -1,
			mutationTail:      -1,
		}
	}
	return &Builder{
		config:        config,
		sites:         sitesTbl,
		edges:         arena.NewObjectHeap[edgeRecord](config.EdgesChunkSize),
		muts:          arena.NewObjectHeap[mutationRecord](config.EdgesChunkSize),
		index:         newEdgeIndexes(),
		mutationSeen:  make(map[mutKey]bool),
		firstEdgeSeen: make(map[sharedKey]int32),
		syntheticFor:  make(map[sharedKey]tsinfer.NodeID),
		diag:          tsinfer.NewDiagnostics("treeseq.Builder"),
	}, nil
}

// NumSites reports the number of sites this builder was constructed
// over.
func (b *Builder) NumSites() int { return len(b.sites.items) }

// AddNode appends a node, returning its id. Non-sample node times must
// strictly decrease with insertion order; samples may repeat (typically
// all at time 0).
func (b *Builder) AddNode(time float64, isSample bool) (tsinfer.NodeID, error) {
	if !isSample {
		if b.lastNonSampleTime != nil && time >= *b.lastNonSampleTime {
			return tsinfer.NullNode, &tsinfer.OpError{Op: "Builder.AddNode", Kind: tsinfer.ErrArgument,
				Err: errors.Errorf(tsinfer.NodeTimeOrderError, time, *b.lastNonSampleTime)}
		}
		t := time
		b.lastNonSampleTime = &t
	}
	var flags uint32
	if isSample {
		flags = tsinfer.NodeFlagSample
	}
	return b.nodes.add(time, flags), nil
}

// AddPath appends a set of edges all sharing child, validating that they
// are sorted by Left, cover disjoint (here, contiguous) intervals, and
// that every parent's time exceeds child's.
func (b *Builder) AddPath(child tsinfer.NodeID, edges []PathEdge, flags int) error {
	if !b.nodes.valid(child) {
		return &tsinfer.OpError{Op: "Builder.AddPath", Kind: tsinfer.ErrArgument,
			Err: errors.Errorf(tsinfer.OutOfRangeNodeError, child, b.nodes.len())}
	}
	if len(edges) == 0 {
		return nil
	}
	childTime := b.nodes.get(child).time

	for i, e := range edges {
		if !b.nodes.valid(e.Parent) {
			return &tsinfer.OpError{Op: "Builder.AddPath", Kind: tsinfer.ErrArgument,
				Err: errors.Errorf(tsinfer.OutOfRangeNodeError, e.Parent, b.nodes.len())}
		}
		if !b.sites.valid(e.Left) || int(e.Right) < 0 || int(e.Right) > b.NumSites() {
			return &tsinfer.OpError{Op: "Builder.AddPath", Kind: tsinfer.ErrArgument,
				Err: errors.Errorf(tsinfer.OutOfRangeSiteError, e.Left, b.NumSites())}
		}
		if e.Left >= e.Right {
			return &tsinfer.OpError{Op: "Builder.AddPath", Kind: tsinfer.ErrArgument,
				Err: errors.Errorf("edge %d has left %d >= right %d", i, e.Left, e.Right)}
		}
		parentTime := b.nodes.get(e.Parent).time
		if parentTime <= childTime {
			return &tsinfer.OpError{Op: "Builder.AddPath", Kind: tsinfer.ErrArgument,
				Err: errors.Errorf(tsinfer.InvalidTimeOrderError, e.Parent, parentTime, child, childTime)}
		}
		if i > 0 {
			prev := edges[i-1]
			switch {
			case e.Left < prev.Right:
				return &tsinfer.OpError{Op: "Builder.AddPath", Kind: tsinfer.ErrArgument,
					Err: errors.Errorf(tsinfer.UnsortedEdgesError, child, i, e.Left, prev.Right)}
			case e.Left > prev.Right:
				return &tsinfer.OpError{Op: "Builder.AddPath", Kind: tsinfer.ErrArgument,
					Err: errors.Errorf(tsinfer.OverlappingIntervalError, child, prev.Left, prev.Right, e.Left, e.Right)}
			}
		}
	}

	rest := edges
	if flags&PathFlagNoCompress == 0 {
		if id, existing, ok := b.index.findExtension(edges[0].Parent, child, edges[0].Left, func(id int32) edgeRecord { return *b.edges.Get(id) }); ok {
			if b.config.ResolveSharedRecombs {
				// Once extended, the edge no longer has the triple it was
				// recorded under for coalescing.
				oldKey := sharedKey{existing.Parent, existing.Left, existing.Right}
				if firstID, seen := b.firstEdgeSeen[oldKey]; seen && firstID == id {
					delete(b.firstEdgeSeen, oldKey)
				}
			}
			b.index.removeRightEntry(existing)
			existing.Right = edges[0].Right
			existing.End = edges[0].Right
			*b.edges.Get(id) = existing
			b.index.insertRightEntry(id, existing)
			rest = edges[1:]
		}
	}

	for _, e := range rest {
		if _, err := b.insertEdge(e.Left, e.Right, e.Parent, child); err != nil {
			return err
		}
	}
	return nil
}

// insertEdge allocates one new edge and applies TSI_RESOLVE_SHARED_RECOMBS
// coalescing before inserting it into all three indexes. When a second
// child shares a (parent, left, right) triple with a previously-inserted
// edge, the existing edge is re-pointed at a new synthetic node (keeping
// its original child) and a second edge from parent to the synthetic
// node is inserted, so the synthetic node carries both children's paths
// without duplicating the parent-boundary attach/detach the matcher
// would otherwise repeat once per child.
func (b *Builder) insertEdge(left, right tsinfer.SiteID, parent, child tsinfer.NodeID) (int32, error) {
	parentTime := b.nodes.get(parent).time
	actualParent := parent

	if b.config.ResolveSharedRecombs {
		key := sharedKey{parent, left, right}
		if synthetic, ok := b.syntheticFor[key]; ok {
			actualParent = synthetic
		} else if firstID, ok := b.firstEdgeSeen[key]; ok {
			first := *b.edges.Get(firstID)
			oldestChildTime := childTimeOf(b, firstID)
			if t := b.nodes.get(child).time; t > oldestChildTime {
				oldestChildTime = t
			}
			// The synthetic node is a new non-sample node, so its time must
			// also fall below every non-sample node inserted so far.
			upper := parentTime
			if b.lastNonSampleTime != nil && *b.lastNonSampleTime < upper {
				upper = *b.lastNonSampleTime
			}
			if upper <= oldestChildTime {
				return 0, &tsinfer.OpError{Op: "Builder.AddPath", Kind: tsinfer.ErrArgument,
					Err: errors.Errorf("no synthetic node time above child time %g and below %g", oldestChildTime, upper)}
			}
			synthetic, err := b.AddNode(upper-syntheticTimeEpsilon(upper, oldestChildTime), false)
			if err != nil {
				return 0, err
			}

			b.index.removeEntries(first)
			first.Parent = synthetic
			first.ParentTime = b.nodes.get(synthetic).time
			*b.edges.Get(firstID) = first
			b.index.insert(firstID, first)

			parentEdgeID := b.edges.Alloc()
			parentEdgeRec := edgeRecord{Left: left, Right: right, End: right, Parent: parent, Child: synthetic, ParentTime: parentTime}
			*b.edges.Get(parentEdgeID) = parentEdgeRec
			b.index.insert(parentEdgeID, parentEdgeRec)

			b.syntheticFor[key] = synthetic
			actualParent = synthetic
			b.diag.Logf("resolved shared recombination at parent=%d [%d,%d) via synthetic node %d", parent, left, right, synthetic)
		} else {
			b.firstEdgeSeen[key] = -1 // placeholder until the edge id is known, filled below
		}
	}

	id := b.edges.Alloc()
	rec := edgeRecord{Left: left, Right: right, End: right, Parent: actualParent, Child: child, ParentTime: b.nodes.get(actualParent).time}
	*b.edges.Get(id) = rec
	b.index.insert(id, rec)

	if b.config.ResolveSharedRecombs && actualParent == parent {
		key := sharedKey{parent, left, right}
		if b.firstEdgeSeen[key] == -1 {
			b.firstEdgeSeen[key] = id
		}
	}
	return id, nil
}

// syntheticTimeEpsilon returns how far below parentTime a coalescing
// synthetic node is placed: half the gap to childTime, so the node's time
// falls strictly between the two.
func syntheticTimeEpsilon(parentTime, childTime float64) float64 {
	gap := parentTime - childTime
	if gap <= 0 {
		return parentTime / 2
	}
	return gap / 2
}

func childTimeOf(b *Builder, edgeID int32) float64 {
	return b.nodes.get(b.edges.Get(edgeID).Child).time
}

// AddMutations appends mutations on node at the given sites with the
// given derived states, each (site, node) pair required to be unique.
func (b *Builder) AddMutations(node tsinfer.NodeID, sites []tsinfer.SiteID, derivedStates []tsinfer.Allele) error {
	if !b.nodes.valid(node) {
		return &tsinfer.OpError{Op: "Builder.AddMutations", Kind: tsinfer.ErrArgument,
			Err: errors.Errorf(tsinfer.OutOfRangeNodeError, node, b.nodes.len())}
	}
	if len(derivedStates) != len(sites) {
		return &tsinfer.OpError{Op: "Builder.AddMutations", Kind: tsinfer.ErrArgument,
			Err: errors.Errorf(tsinfer.DimensionMismatchError, "derivedStates", len(derivedStates), len(sites))}
	}
	for i, s := range sites {
		if !b.sites.valid(s) {
			return &tsinfer.OpError{Op: "Builder.AddMutations", Kind: tsinfer.ErrArgument,
				Err: errors.Errorf(tsinfer.OutOfRangeSiteError, s, b.NumSites())}
		}
		key := mutKey{s, node}
		if b.mutationSeen[key] {
			return &tsinfer.OpError{Op: "Builder.AddMutations", Kind: tsinfer.ErrArgument,
				Err: errors.Errorf(tsinfer.DuplicateMutationError, s, node)}
		}
		b.mutationSeen[key] = true

		id := b.muts.Alloc()
		*b.muts.Get(id) = mutationRecord{Site: s, Node: node, DerivedState: derivedStates[i], Parent: tsinfer.NullMutation}

		// Insertion order within a site is recovered from the heap's own
		// monotonically increasing slot ids (mutations are never
		// freed), so head/tail need only bound the [head, tail] range;
		// no explicit Next link is required.
		site := &b.sites.items[s]
		if site.mutationHead == -1 {
			site.mutationHead = id
		}
		site.mutationTail = id
	}
	return nil
}

// GetNumNodes, GetNumEdges and GetNumMutations report current counts.
func (b *Builder) GetNumNodes() int      { return b.nodes.len() }
func (b *Builder) GetNumEdges() int      { return b.edges.Len() - b.edges.NumFree() }
func (b *Builder) GetNumMutations() int  { return b.muts.Len() - b.muts.NumFree() }

// DumpNodes returns every node in insertion order.
func (b *Builder) DumpNodes() []tsinfer.DumpedNode {
	out := make([]tsinfer.DumpedNode, b.nodes.len())
	for i, n := range b.nodes.items {
		out[i] = tsinfer.DumpedNode{Flags: n.flags, Time: n.time}
	}
	return out
}

// DumpEdges returns every edge sorted by (parent_time ascending, parent,
// child, left), per §4.2's canonical dump order.
func (b *Builder) DumpEdges() []tsinfer.DumpedEdge {
	n := b.edges.Len()
	out := make([]tsinfer.DumpedEdge, 0, n)
	type row struct {
		e  edgeRecord
		id int32
	}
	rows := make([]row, 0, n)
	for id := int32(0); id < int32(n); id++ {
		rows = append(rows, row{e: *b.edges.Get(id), id: id})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, c := rows[i].e, rows[j].e
		if a.ParentTime != c.ParentTime {
			return a.ParentTime < c.ParentTime
		}
		if a.Parent != c.Parent {
			return a.Parent < c.Parent
		}
		if a.Child != c.Child {
			return a.Child < c.Child
		}
		return a.Left < c.Left
	})
	for _, r := range rows {
		out = append(out, tsinfer.DumpedEdge{Left: r.e.Left, Right: r.e.Right, Parent: r.e.Parent, Child: r.e.Child})
	}
	return out
}

// DumpMutations returns every mutation ordered by (site, insertion
// order).
func (b *Builder) DumpMutations() []tsinfer.DumpedMutation {
	n := b.muts.Len()
	out := make([]tsinfer.DumpedMutation, 0, n)
	type row struct {
		m  mutationRecord
		id int32
	}
	rows := make([]row, 0, n)
	for id := int32(0); id < int32(n); id++ {
		rows = append(rows, row{m: *b.muts.Get(id), id: id})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].m.Site < rows[j].m.Site
	})
	for _, r := range rows {
		out = append(out, tsinfer.DumpedMutation{Site: r.m.Site, Node: r.m.Node, DerivedState: r.m.DerivedState, Parent: r.m.Parent})
	}
	return out
}

// RestoreNodes, RestoreEdges and RestoreMutations load arrays dumped by
// DumpNodes/DumpEdges/DumpMutations into a fresh builder, rebuilding the
// edge indexes from scratch. The builder must have been constructed with
// NewBuilder (so its Sites table already exists) before restoring.
func (b *Builder) RestoreNodes(nodes []tsinfer.DumpedNode) error {
	b.nodes.items = b.nodes.items[:0]
	b.lastNonSampleTime = nil
	for _, n := range nodes {
		b.nodes.items = append(b.nodes.items, nodeRecord{time: n.Time, flags: n.Flags})
		if !tsinfer.IsSample(n.Flags) {
			t := n.Time
			b.lastNonSampleTime = &t
		}
	}
	return nil
}

// RestoreEdges rebuilds the edge arena and all three indexes from a flat
// dump, bypassing add_path's merge/coalesce logic: this is a direct
// structural load, not a replay of incremental insertion.
func (b *Builder) RestoreEdges(edges []tsinfer.DumpedEdge) error {
	b.edges = arena.NewObjectHeap[edgeRecord](b.config.EdgesChunkSize)
	b.index = newEdgeIndexes()
	b.firstEdgeSeen = make(map[sharedKey]int32)
	b.syntheticFor = make(map[sharedKey]tsinfer.NodeID)
	for _, e := range edges {
		if !b.nodes.valid(e.Parent) {
			return &tsinfer.OpError{Op: "Builder.RestoreEdges", Kind: tsinfer.ErrArgument,
				Err: errors.Errorf(tsinfer.OutOfRangeNodeError, e.Parent, b.nodes.len())}
		}
		rec := edgeRecord{Left: e.Left, Right: e.Right, End: e.Right, Parent: e.Parent, Child: e.Child, ParentTime: b.nodes.get(e.Parent).time}
		id := b.edges.Alloc()
		*b.edges.Get(id) = rec
		b.index.insert(id, rec)
	}
	return nil
}

// RestoreMutations rebuilds the mutation arena and per-site mutation
// lists from a flat dump, preserving insertion order within each site as
// given.
func (b *Builder) RestoreMutations(mutations []tsinfer.DumpedMutation) error {
	b.muts = arena.NewObjectHeap[mutationRecord](b.config.EdgesChunkSize)
	b.mutationSeen = make(map[mutKey]bool)
	for i := range b.sites.items {
		b.sites.items[i].mutationHead = -1
		b.sites.items[i].mutationTail = -1
	}
	for _, m := range mutations {
		if !b.sites.valid(m.Site) {
			return &tsinfer.OpError{Op: "Builder.RestoreMutations", Kind: tsinfer.ErrArgument,
				Err: errors.Errorf(tsinfer.OutOfRangeSiteError, m.Site, b.NumSites())}
		}
		id := b.muts.Alloc()
		*b.muts.Get(id) = mutationRecord{Site: m.Site, Node: m.Node, DerivedState: m.DerivedState, Parent: m.Parent}
		b.mutationSeen[mutKey{m.Site, m.Node}] = true
		site := &b.sites.items[m.Site]
		if site.mutationHead == -1 {
			site.mutationHead = id
		}
		site.mutationTail = id
	}
	return nil
}

// GetTotalMemory reports the builder's total backing footprint across
// the node/site tables, the edge and mutation arenas, and the three
// indexes.
func (b *Builder) GetTotalMemory() uint64 {
	return b.nodes.totalMemory() +
		uint64(len(b.sites.items))*24 +
		b.edges.TotalMemory() +
		b.muts.TotalMemory() +
		b.index.totalMemory()
}

// PrintState writes a human-readable summary of the builder's state.
func (b *Builder) PrintState(w io.Writer) error {
	_, err := fmt.Fprintf(w, "treeseq.Builder[%s]: %d nodes, %d edges, %d mutations, %s\n",
		b.diag.ID(), b.GetNumNodes(), b.GetNumEdges(), b.GetNumMutations(), humanize.Bytes(b.GetTotalMemory()))
	return err
}
