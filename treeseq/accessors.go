package treeseq

import tsinfer "github.com/kentwait/tsinfer"

// EdgeView is a read-only snapshot of one edge, returned by the
// boundary-scan accessors the matcher drives its genome scan with.
type EdgeView struct {
	Left, Right tsinfer.SiteID
	Parent      tsinfer.NodeID
	Child       tsinfer.NodeID
}

// EdgesEnteringAt returns every edge whose Left equals site — the
// edges-in a caller walking the genome left to right attaches at site,
// per §4.2's left index.
func (b *Builder) EdgesEnteringAt(site tsinfer.SiteID) []EdgeView {
	ids := b.index.edgesWithLeft(site)
	out := make([]EdgeView, len(ids))
	for i, id := range ids {
		e := *b.edges.Get(id)
		out[i] = EdgeView{Left: e.Left, Right: e.End, Parent: e.Parent, Child: e.Child}
	}
	return out
}

// EdgesLeavingAt returns every edge whose effective right boundary (End)
// equals site — the edges-out detached before site is processed.
func (b *Builder) EdgesLeavingAt(site tsinfer.SiteID) []EdgeView {
	ids := b.index.edgesWithRight(site)
	out := make([]EdgeView, len(ids))
	for i, id := range ids {
		e := *b.edges.Get(id)
		out[i] = EdgeView{Left: e.Left, Right: e.End, Parent: e.Parent, Child: e.Child}
	}
	return out
}

// NodeTime returns node's time.
func (b *Builder) NodeTime(node tsinfer.NodeID) float64 { return b.nodes.get(node).time }

// NodeFlags returns node's flags bitfield.
func (b *Builder) NodeFlags(node tsinfer.NodeID) uint32 { return b.nodes.get(node).flags }

// SitePosition returns a site's genomic position.
func (b *Builder) SitePosition(s tsinfer.SiteID) float64 { return b.sites.items[s].Position }

// SiteRecombinationRate returns a site's per-site recombination rate, the
// matcher's rho at that site.
func (b *Builder) SiteRecombinationRate(s tsinfer.SiteID) float64 {
	return b.sites.items[s].RecombinationRate
}

// MutationView is a read-only snapshot of one mutation at a site.
type MutationView struct {
	Node         tsinfer.NodeID
	DerivedState tsinfer.Allele
}

// MutationsAt returns every mutation recorded at site, in insertion
// order. The scan walks the full [mutationHead, mutationTail] id range
// and filters by site, since mutations for different sites can be
// interleaved within that range (ids are assigned by global insertion
// order, not grouped per site) — acceptable here since a site's mutation
// count is small in practice.
func (b *Builder) MutationsAt(s tsinfer.SiteID) []MutationView {
	rec := b.sites.items[s]
	if rec.mutationHead == -1 {
		return nil
	}
	var out []MutationView
	for id := rec.mutationHead; id <= rec.mutationTail; id++ {
		m := b.muts.Get(id)
		if m.Site == s {
			out = append(out, MutationView{Node: m.Node, DerivedState: m.DerivedState})
		}
	}
	return out
}
