package matcher

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	tsinfer "github.com/kentwait/tsinfer"
	"github.com/kentwait/tsinfer/internal/arena"
	"github.com/kentwait/tsinfer/treeseq"
	"github.com/pkg/errors"
)

// PathSegment is one emitted edge of a matched path: the interval
// [Left, Right) over which the query copies from Parent.
type PathSegment struct {
	Left, Right tsinfer.SiteID
	Parent      tsinfer.NodeID
}

// siteTraceback is the compressed per-site traceback record (tsinfer.h's
// node_state_list_t): the set of nodes whose forward-pass update at this
// site was forced to the recombination floor rather than persisting
// their own value.
type siteTraceback struct {
	recombinationRequired map[tsinfer.NodeID]bool
	maxLikelihoodNode     tsinfer.NodeID
}

// AncestorMatcher solves the Li-Stephens copying HMM over a
// treeseq.Builder's accumulated tree sequence, reconstructing a piecewise
// copying path for each query haplotype (§4.3).
type AncestorMatcher struct {
	config  *tsinfer.MatcherConfig
	builder *treeseq.Builder

	state *treeState

	tracebackArena *arena.BlockAllocator

	callsServed         int
	totalTracebackBytes uint64

	diag *tsinfer.Diagnostics
}

// NewAncestorMatcher creates a matcher over builder's current (and future)
// tree sequence, using config's observation error and traceback arena
// sizing.
func NewAncestorMatcher(config *tsinfer.MatcherConfig, builder *treeseq.Builder) (*AncestorMatcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &AncestorMatcher{
		config:         config,
		builder:        builder,
		state:          newTreeState(builder.GetNumNodes()),
		tracebackArena: arena.NewBlockAllocator(config.TracebackChunkBytes, 0),
		diag:           tsinfer.NewDiagnostics("matcher.AncestorMatcher"),
	}, nil
}

// FindPath matches haplotype — whose length must equal the tree
// sequence's site count — against the copying HMM over [start, end),
// returning the alleles actually copied, the path as a sequence of
// segments, and the sites where the query's allele disagreed with what
// was copied.
func (m *AncestorMatcher) FindPath(start, end tsinfer.SiteID, haplotype []tsinfer.Allele) ([]tsinfer.Allele, []PathSegment, []tsinfer.SiteID, error) {
	const op = "AncestorMatcher.FindPath"
	numSites := m.builder.NumSites()
	if len(haplotype) != numSites {
		return nil, nil, nil, &tsinfer.OpError{Op: op, Kind: tsinfer.ErrArgument,
			Err: errors.Errorf(tsinfer.DimensionMismatchError, "haplotype", len(haplotype), numSites)}
	}
	if int(start) < 0 || int(end) > numSites || start > end {
		return nil, nil, nil, &tsinfer.OpError{Op: op, Kind: tsinfer.ErrArgument,
			Err: errors.Errorf("interval [%d, %d) out of range [0, %d)", start, end, numSites)}
	}
	if start == end {
		return nil, nil, nil, nil
	}

	m.tracebackArena.Reset()
	m.state.ensureCapacity(m.builder.GetNumNodes())
	m.state.resetForCall()

	tracebacks := make([]siteTraceback, numSites)
	// alleleAtSite[s][u] records every node's allele at site s, captured
	// during the forward pass's emission step — the traceback needs it
	// after the tree has moved on to later sites, when the live path
	// cache no longer reflects site s's topology.
	alleleAtSite := make([][]tsinfer.Allele, numSites)

	// Fast-forward topology through every site left of start: those
	// sites are not scored, but their edges must already be attached so
	// the tree is correct at start.
	for s := tsinfer.SiteID(0); s < start; s++ {
		m.state.applyTopology(m.builder, s)
	}

	for s := start; s < end; s++ {
		m.state.applyTopology(m.builder, s)
		// Cached alleles belong to the previous site.
		m.state.invalidatePathCache()

		mutations := m.builder.MutationsAt(s)
		n := m.state.tree.numNodes()

		alleles := make([]tsinfer.Allele, n)
		for u := 0; u < n; u++ {
			alleles[u] = m.state.alleleAt(tsinfer.NodeID(u), s, mutations)
		}
		alleleAtSite[s] = alleles

		rho := m.builder.SiteRecombinationRate(s)
		theta := m.config.ThetaAt(int(s))
		queryAllele := haplotype[s]

		recombRequired, maxNode, err := m.stepSite(n, rho, theta, queryAllele, alleles)
		if err != nil {
			return nil, nil, nil, &tsinfer.OpError{Op: op, Kind: tsinfer.ErrNumerical,
				Err: errors.Errorf(tsinfer.NoViableParentError, s)}
		}

		if err := m.recordTraceback(s, recombRequired); err != nil {
			return nil, nil, nil, err
		}
		tracebacks[s] = siteTraceback{recombinationRequired: recombRequired, maxLikelihoodNode: maxNode}

		m.state.recomputeStatus()
	}

	matched := make([]tsinfer.Allele, int(end-start))
	var mismatches []tsinfer.SiteID
	segments := m.traceback(start, end, tracebacks)

	for _, seg := range segments {
		for s := seg.Left; s < seg.Right; s++ {
			a := alleleAtSite[s][seg.Parent]
			matched[int(s-start)] = a
			if haplotype[s] != tsinfer.MissingAllele && a != haplotype[s] {
				mismatches = append(mismatches, s)
			}
		}
	}

	m.callsServed++
	return matched, segments, mismatches, nil
}

// stepSite performs the four-step forward-pass update for every node at
// one site, mutating ts.current in place and returning the set of nodes
// whose update was forced to the recombination floor plus the (lowest
// id, tie-broken) node achieving the post-normalization maximum.
func (m *AncestorMatcher) stepSite(n int, rho, theta float64, queryAllele tsinfer.Allele, alleles []tsinfer.Allele) (map[tsinfer.NodeID]bool, tsinfer.NodeID, error) {
	ts := m.state

	y := make([]float64, n)
	M := 0.0
	for u := 0; u < n; u++ {
		y[u] = ts.current[u] * (1 - rho)
		if y[u] > M {
			M = y[u]
		}
	}
	z := 0.0
	if n > 0 {
		z = rho / float64(n)
	}

	recombRequired := make(map[tsinfer.NodeID]bool, n)
	step1 := make([]float64, n)
	for u := 0; u < n; u++ {
		if M >= z && y[u] == M {
			step1[u] = M
		} else {
			step1[u] = z
			recombRequired[tsinfer.NodeID(u)] = true
		}
	}

	step2 := make([]float64, n)
	M2 := 0.0
	for u := 0; u < n; u++ {
		em := 1.0
		if queryAllele != tsinfer.MissingAllele {
			if alleles[u] == queryAllele {
				em = 1 - theta
			} else {
				em = theta
			}
		}
		step2[u] = step1[u] * em
		if step2[u] > M2 {
			M2 = step2[u]
		}
	}
	if M2 <= 0 {
		return nil, tsinfer.NullNode, errors.New("no viable parent")
	}

	maxNode := tsinfer.NullNode
	for u := 0; u < n; u++ {
		ts.current[u] = step2[u] / M2
		if maxNode == tsinfer.NullNode && ts.current[u] == 1 {
			maxNode = tsinfer.NodeID(u)
		}
	}
	return recombRequired, maxNode, nil
}

// recordTraceback writes the recombination-required node ids for site
// into the traceback arena, purely to account real bytes against
// TracebackChunkBytes and MeanTracebackSize; the decoded set used by
// traceback itself is kept independently (the arena's slice is only
// valid until its next growth, per BlockAllocator's contract).
func (m *AncestorMatcher) recordTraceback(site tsinfer.SiteID, recombRequired map[tsinfer.NodeID]bool) error {
	size := len(recombRequired) * 4
	buf, err := m.tracebackArena.Alloc(size, 4)
	if err != nil {
		return &tsinfer.OpError{Op: "AncestorMatcher.FindPath", Kind: tsinfer.ErrResource, Err: err}
	}
	i := 0
	for node := range recombRequired {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(node))
		i++
	}
	m.totalTracebackBytes += uint64(size)
	return nil
}

// traceback walks sites right to left starting from the maximum
// likelihood node at end-1. At a site where the current node's value was
// forced to the recombination floor, the segment using that node closes
// here and a new one opens using whichever node was best at the
// preceding site — the state the recombination must have jumped from.
func (m *AncestorMatcher) traceback(start, end tsinfer.SiteID, sites []siteTraceback) []PathSegment {
	cur := sites[end-1].maxLikelihoodNode
	segRight := end
	closedAtStart := false

	var reversed []PathSegment
	for s := end - 1; s >= start; s-- {
		if !sites[s].recombinationRequired[cur] {
			continue
		}
		reversed = append(reversed, PathSegment{Left: s, Right: segRight, Parent: cur})
		if s == start {
			closedAtStart = true
			break
		}
		cur = sites[s-1].maxLikelihoodNode
		segRight = s
	}
	if !closedAtStart {
		reversed = append(reversed, PathSegment{Left: start, Right: segRight, Parent: cur})
	}

	segments := make([]PathSegment, len(reversed))
	for i, seg := range reversed {
		segments[len(reversed)-1-i] = seg
	}
	return segments
}

// MeanTracebackSize reports the mean number of traceback bytes allocated
// per FindPath call served so far.
func (m *AncestorMatcher) MeanTracebackSize() float64 {
	if m.callsServed == 0 {
		return 0
	}
	return float64(m.totalTracebackBytes) / float64(m.callsServed)
}

// GetTotalMemory reports the matcher's current backing footprint: its
// per-call tree/likelihood state plus the traceback arena.
func (m *AncestorMatcher) GetTotalMemory() uint64 {
	n := uint64(m.state.tree.numNodes())
	treeBytes := n * 5 * 4   // five NodeID arrays
	likelihoodBytes := n * 8 // current []float64
	statusBytes := n * 16    // status []likelihood
	cacheBytes := n * 2      // pathCache + pathCacheValid
	return treeBytes + likelihoodBytes + statusBytes + cacheBytes + m.tracebackArena.TotalMemory()
}

// PrintState writes a human-readable summary of the matcher's state.
func (m *AncestorMatcher) PrintState(w io.Writer) error {
	_, err := fmt.Fprintf(w, "matcher.AncestorMatcher[%s]: %d nodes, %d focal, %d calls served, mean traceback %s, %s\n",
		m.diag.ID(), m.state.tree.numNodes(), m.state.numFocal(), m.callsServed,
		humanize.Bytes(uint64(m.MeanTracebackSize())), humanize.Bytes(m.GetTotalMemory()))
	return err
}
