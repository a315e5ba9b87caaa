package treeseq

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	tsinfer "github.com/kentwait/tsinfer"
)

// buildSampleTreeSequence constructs a builder with enough nodes, edges
// and mutations to exercise every dump/restore field, including a
// coalesced synthetic node.
func buildSampleTreeSequence(t *testing.T) *Builder {
	t.Helper()
	const numSites = 12
	b := newTestBuilder(t, true, numSites)

	root, err := b.AddNode(100, false)
	if err != nil {
		t.Fatalf("AddNode(root): %v", err)
	}
	mid, err := b.AddNode(50, false)
	if err != nil {
		t.Fatalf("AddNode(mid): %v", err)
	}

	var samples []tsinfer.NodeID
	for i := 0; i < 60; i++ {
		s, err := b.AddNode(0, true)
		if err != nil {
			t.Fatalf("AddNode(sample %d): %v", i, err)
		}
		samples = append(samples, s)
	}

	for i, s := range samples {
		parent := mid
		if i%2 == 0 {
			parent = root
		}
		if err := b.AddPath(s, []PathEdge{{Left: 0, Right: numSites / 2, Parent: parent}}, PathFlagNone); err != nil {
			t.Fatalf("AddPath(sample %d, first half): %v", i, err)
		}
		if err := b.AddPath(s, []PathEdge{{Left: numSites / 2, Right: numSites, Parent: root}}, PathFlagNone); err != nil {
			t.Fatalf("AddPath(sample %d, second half): %v", i, err)
		}
	}

	for site := 0; site < numSites; site++ {
		node := samples[site%len(samples)]
		if err := b.AddMutations(node, []tsinfer.SiteID{tsinfer.SiteID(site)}, []tsinfer.Allele{1}); err != nil {
			t.Fatalf("AddMutations(site %d): %v", site, err)
		}
	}

	if b.GetNumNodes() < 50 {
		t.Fatalf("expected at least 50 nodes, got %d", b.GetNumNodes())
	}
	return b
}

func TestRoundTrip_DumpRestoreDumpIsByteIdentical(t *testing.T) {
	orig := buildSampleTreeSequence(t)

	nodes := orig.DumpNodes()
	edges := orig.DumpEdges()
	muts := orig.DumpMutations()

	restored := newTestBuilder(t, true, orig.NumSites())
	if err := restored.RestoreNodes(nodes); err != nil {
		t.Fatalf("RestoreNodes: %v", err)
	}
	if err := restored.RestoreEdges(edges); err != nil {
		t.Fatalf("RestoreEdges: %v", err)
	}
	if err := restored.RestoreMutations(muts); err != nil {
		t.Fatalf("RestoreMutations: %v", err)
	}

	nodes2 := restored.DumpNodes()
	edges2 := restored.DumpEdges()
	muts2 := restored.DumpMutations()

	if diff := cmp.Diff(nodes, nodes2); diff != "" {
		t.Errorf("nodes mismatch after round trip (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(edges, edges2); diff != "" {
		t.Errorf("edges mismatch after round trip (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(muts, muts2); diff != "" {
		t.Errorf("mutations mismatch after round trip (-want +got):\n%s", diff)
	}

	if restored.GetNumNodes() != orig.GetNumNodes() {
		t.Errorf("node count mismatch: orig %d, restored %d", orig.GetNumNodes(), restored.GetNumNodes())
	}
	if restored.GetNumEdges() != orig.GetNumEdges() {
		t.Errorf("edge count mismatch: orig %d, restored %d", orig.GetNumEdges(), restored.GetNumEdges())
	}
	if restored.GetNumMutations() != orig.GetNumMutations() {
		t.Errorf("mutation count mismatch: orig %d, restored %d", orig.GetNumMutations(), restored.GetNumMutations())
	}
}
