// Command tsinfer-demo exercises the three core subsystems end to end
// over a small synthetic haplotype panel: it groups sites with
// ancestorbuilder, inserts the derived ancestor into a treeseq.Builder,
// then matches panel sample 0 against it with an AncestorMatcher.
// The iteration order over a real panel's many ancestors is left to an
// outer driver that this module does not provide; this binary drives
// exactly one ancestor and one sample to demonstrate the wiring.
package main

import (
	"flag"
	"log"
	"math/rand"
	"os"
	"time"

	tsinfer "github.com/kentwait/tsinfer"
	"github.com/kentwait/tsinfer/ancestorbuilder"
	"github.com/kentwait/tsinfer/matcher"
	"github.com/kentwait/tsinfer/treeseq"
)

func main() {
	numSamplesPtr := flag.Int("samples", 8, "number of panel haplotypes")
	numSitesPtr := flag.Int("sites", 12, "number of biallelic sites")
	thetaPtr := flag.Float64("theta", 0.01, "observation error rate")
	rhoPtr := flag.Float64("rho", 1e-4, "uniform per-site recombination rate")
	seedPtr := flag.Int64("seed", time.Now().UTC().UnixNano(), "random seed")
	printStatePtr := flag.Bool("print-state", true, "print component state after matching")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seedPtr))

	panel := randomPanel(rng, *numSamplesPtr, *numSitesPtr)
	ab := ancestorbuilder.NewBuilder(*numSamplesPtr, *numSitesPtr)
	for s := 0; s < *numSitesPtr; s++ {
		col := make([]tsinfer.Allele, *numSamplesPtr)
		freq := 0
		for i := 0; i < *numSamplesPtr; i++ {
			col[i] = panel[i][s]
			if col[i] == 1 {
				freq++
			}
		}
		if err := ab.AddSite(tsinfer.SiteID(s), freq, col); err != nil {
			log.Fatalf("ancestorbuilder.AddSite(%d): %v", s, err)
		}
	}

	focal := []tsinfer.SiteID{tsinfer.SiteID(*numSitesPtr / 2)}
	start, end, haplotype, err := ab.MakeAncestor(focal)
	if err != nil {
		log.Fatalf("ancestorbuilder.MakeAncestor: %v", err)
	}
	log.Printf("derived ancestor over focal site %d: interval [%d, %d)", focal[0], start, end)

	positions := make([]float64, *numSitesPtr)
	rates := make([]float64, *numSitesPtr)
	for i := range positions {
		positions[i] = float64(i)
		rates[i] = *rhoPtr
	}
	builder, err := treeseq.NewBuilder(tsinfer.DefaultBuilderConfig(), positions, rates)
	if err != nil {
		log.Fatalf("treeseq.NewBuilder: %v", err)
	}

	root, err := builder.AddNode(1, false)
	if err != nil {
		log.Fatalf("treeseq.AddNode(root): %v", err)
	}
	ancestorNode, err := builder.AddNode(0.5, false)
	if err != nil {
		log.Fatalf("treeseq.AddNode(ancestor): %v", err)
	}
	if err := builder.AddPath(ancestorNode, []treeseq.PathEdge{{Left: start, Right: end, Parent: root}}, treeseq.PathFlagNone); err != nil {
		log.Fatalf("treeseq.AddPath: %v", err)
	}
	var mutSites []tsinfer.SiteID
	var mutStates []tsinfer.Allele
	for s := start; s < end; s++ {
		if haplotype[s] == 1 {
			mutSites = append(mutSites, s)
			mutStates = append(mutStates, 1)
		}
	}
	if len(mutSites) > 0 {
		if err := builder.AddMutations(ancestorNode, mutSites, mutStates); err != nil {
			log.Fatalf("treeseq.AddMutations: %v", err)
		}
	}

	m, err := matcher.NewAncestorMatcher(tsinfer.UniformMatcherConfig(*thetaPtr), builder)
	if err != nil {
		log.Fatalf("matcher.NewAncestorMatcher: %v", err)
	}
	query := panel[0]
	_, segments, mismatches, err := m.FindPath(0, tsinfer.SiteID(*numSitesPtr), query)
	if err != nil {
		log.Fatalf("matcher.FindPath: %v", err)
	}
	log.Printf("matched sample 0 across %d segment(s), %d mismatch(es)", len(segments), len(mismatches))
	for _, seg := range segments {
		log.Printf("  [%d, %d) -> node %d", seg.Left, seg.Right, seg.Parent)
	}

	if *printStatePtr {
		if err := ab.PrintState(os.Stdout); err != nil {
			log.Fatalf("PrintState(ancestorbuilder): %v", err)
		}
		if err := builder.PrintState(os.Stdout); err != nil {
			log.Fatalf("PrintState(treeseq): %v", err)
		}
		if err := m.PrintState(os.Stdout); err != nil {
			log.Fatalf("PrintState(matcher): %v", err)
		}
	}
}

// randomPanel generates numSamples haplotypes over numSites biallelic
// sites, each site drawn with a random derived-allele count in
// [1, numSamples-1] so the
// panel exercises more than one frequency class.
func randomPanel(rng *rand.Rand, numSamples, numSites int) [][]tsinfer.Allele {
	panel := make([][]tsinfer.Allele, numSamples)
	for i := range panel {
		panel[i] = make([]tsinfer.Allele, numSites)
	}
	for s := 0; s < numSites; s++ {
		freq := 1 + rng.Intn(numSamples-1)
		carriers := rng.Perm(numSamples)[:freq]
		carrierSet := make(map[int]bool, freq)
		for _, c := range carriers {
			carrierSet[c] = true
		}
		for i := 0; i < numSamples; i++ {
			if carrierSet[i] {
				panel[i][s] = 1
			}
		}
	}
	return panel
}
