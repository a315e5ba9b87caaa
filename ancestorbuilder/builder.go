// Package ancestorbuilder groups sites by allele frequency and derives
// an ancestral haplotype for each equivalence class of focal sites
// sharing an identical genotype pattern (spec §4.1). It has no
// dependency on treeseq or matcher — per §2's dependency order it is the
// one independent leaf of the three subsystems.
package ancestorbuilder

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	tsinfer "github.com/kentwait/tsinfer"
	"github.com/pkg/errors"
)

// site holds one column of the genotype matrix together with its
// allele-frequency, the unit the builder groups by. Grounded on the
// teacher's site_t-adjacent pattern in tsinfer.h: a frequency paired with
// the raw genotype column.
type site struct {
	frequency int
	genotypes []tsinfer.Allele
}

// patternGroup is one (frequency, genotype pattern) equivalence class:
// every site in sites has an identical genotype column, and that column
// is genotypes. This is pattern_map_t from tsinfer.h.
type patternGroup struct {
	genotypes []tsinfer.Allele
	sites     []tsinfer.SiteID
}

// Builder groups sites by allele-frequency and, within each frequency
// class, by identical genotype column, forming one candidate ancestor
// per (frequency, pattern) group. The construction in MakeAncestor is
// pure: repeated calls with the same focal sites yield byte-identical
// output.
type Builder struct {
	numSamples int
	numSites   int
	sites      []site // indexed by SiteID; unset until AddSite

	// groupsByFrequency holds, for each observed frequency, the
	// distinct patterns seen at that frequency in first-sighted order
	// — the "ordered map" frequency_map[f] from tsinfer.h, realized as
	// an append-ordered slice plus an index for O(1) pattern lookup.
	groupsByFrequency map[int][]*patternGroup
	patternIndex      map[int]map[string]int

	added int // number of AddSite calls made so far, for diagnostics
}

// NewBuilder creates an ancestor builder for a panel of numSamples
// haplotypes over numSites biallelic sites.
func NewBuilder(numSamples, numSites int) *Builder {
	return &Builder{
		numSamples:        numSamples,
		numSites:          numSites,
		sites:             make([]site, numSites),
		groupsByFrequency: make(map[int][]*patternGroup),
		patternIndex:      make(map[int]map[string]int),
	}
}

// AddSite records site's full genotype column and its frequency (the
// count of 1-alleles across samples), grouping it with any previously
// added site sharing the same (frequency, pattern).
func (b *Builder) AddSite(s tsinfer.SiteID, frequency int, genotypes []tsinfer.Allele) error {
	if int(s) < 0 || int(s) >= b.numSites {
		return tsinferErr("Builder.AddSite", tsinfer.ErrArgument, tsinfer.OutOfRangeSiteError, s, b.numSites)
	}
	if len(genotypes) != b.numSamples {
		return tsinferErr("Builder.AddSite", tsinfer.ErrArgument,
			"genotype column for site %d has length %d, expected %d samples", s, len(genotypes), b.numSamples)
	}
	col := make([]tsinfer.Allele, b.numSamples)
	copy(col, genotypes)
	b.sites[s] = site{frequency: frequency, genotypes: col}
	b.added++

	key := patternKey(col)
	if b.patternIndex[frequency] == nil {
		b.patternIndex[frequency] = make(map[string]int)
	}
	if idx, ok := b.patternIndex[frequency][key]; ok {
		group := b.groupsByFrequency[frequency][idx]
		group.sites = append(group.sites, s)
		return nil
	}
	group := &patternGroup{genotypes: col, sites: []tsinfer.SiteID{s}}
	b.groupsByFrequency[frequency] = append(b.groupsByFrequency[frequency], group)
	b.patternIndex[frequency][key] = len(b.groupsByFrequency[frequency]) - 1
	return nil
}

// patternKey builds a stable identity key for a genotype column, the way
// the teacher's GenotypeSet keys sequences by their printed form.
func patternKey(genotypes []tsinfer.Allele) string {
	buf := make([]byte, len(genotypes))
	for i, a := range genotypes {
		buf[i] = byte(a) + 2 // keep -1/0/1 distinguishable and printable
	}
	return string(buf)
}

// groupFor returns the (frequency, pattern) group that focalSites
// belongs to, failing if the sites span more than one group or reference
// an unknown frequency.
func (b *Builder) groupFor(focalSites []tsinfer.SiteID) (*patternGroup, int, error) {
	if len(focalSites) == 0 {
		return nil, 0, tsinferErr("Builder.MakeAncestor", tsinfer.ErrArgument, "focal_sites must not be empty")
	}
	for _, s := range focalSites {
		if int(s) < 0 || int(s) >= b.numSites {
			return nil, 0, tsinferErr("Builder.MakeAncestor", tsinfer.ErrArgument, tsinfer.OutOfRangeSiteError, s, b.numSites)
		}
	}
	frequency := b.sites[focalSites[0]].frequency
	groups, ok := b.groupsByFrequency[frequency]
	if !ok {
		return nil, 0, tsinferErr("Builder.MakeAncestor", tsinfer.ErrArgument, tsinfer.UnknownFrequencyError, frequency)
	}
	key := patternKey(b.sites[focalSites[0]].genotypes)
	idx, ok := b.patternIndex[frequency][key]
	if !ok {
		return nil, 0, tsinferErr("Builder.MakeAncestor", tsinfer.ErrArgument, tsinfer.UnknownFrequencyError, frequency)
	}
	group := groups[idx]
	want := map[tsinfer.SiteID]bool{}
	for _, s := range group.sites {
		want[s] = true
	}
	for _, s := range focalSites {
		if b.sites[s].frequency != frequency || !want[s] {
			return nil, 0, tsinferErr("Builder.MakeAncestor", tsinfer.ErrArgument, tsinfer.MultipleGroupsError)
		}
	}
	return group, frequency, nil
}

// MakeAncestor derives the ancestral haplotype defined by focalSites, a
// set of sites sharing a single (frequency, pattern) group. It returns
// the half-open interval [start, end) the derivation is confident over;
// haplotype has length numSites with MissingAllele outside [start, end).
func (b *Builder) MakeAncestor(focalSites []tsinfer.SiteID) (start, end tsinfer.SiteID, haplotype []tsinfer.Allele, err error) {
	group, frequency, err := b.groupFor(focalSites)
	if err != nil {
		return 0, 0, nil, err
	}

	haplotype = make([]tsinfer.Allele, b.numSites)
	for i := range haplotype {
		haplotype[i] = tsinfer.MissingAllele
	}

	leftmost, rightmost := focalSites[0], focalSites[0]
	focal := map[tsinfer.SiteID]bool{}
	for _, s := range focalSites {
		focal[s] = true
		if s < leftmost {
			leftmost = s
		}
		if s > rightmost {
			rightmost = s
		}
		haplotype[s] = 1
	}

	// consensus is C from §4.1: the sample indices where the focal
	// pattern carries a 1-allele.
	consensus := make([]int, 0, frequency)
	for i, a := range group.genotypes {
		if a == 1 {
			consensus = append(consensus, i)
		}
	}

	active := append([]int(nil), consensus...)
	leftEnd := b.extend(active, int(leftmost)-1, -1, frequency, haplotype, focal)
	active = append([]int(nil), consensus...)
	rightEnd := b.extend(active, int(rightmost)+1, +1, frequency, haplotype, focal)

	start = tsinfer.SiteID(leftEnd + 1)
	end = tsinfer.SiteID(rightEnd) // rightEnd is exclusive already (first excluded site)

	return start, end, haplotype, nil
}

// extend walks from cur in the given direction (-1 or +1), filling
// haplotype with the majority allele of active at every visited site,
// shrinking active at sites whose frequency is at least the focal
// frequency, and stopping at the first site that would be ambiguous
// under ambiguityThreshold. It returns the last excluded site index: for
// the leftward walk that is the index just left of the returned
// boundary (so start = returned+1); for the rightward walk it is the
// index of the first excluded site (so end = returned).
func (b *Builder) extend(active []int, cur, dir, frequency int, haplotype []tsinfer.Allele, focal map[tsinfer.SiteID]bool) int {
	for cur >= 0 && cur < b.numSites {
		if focal[tsinfer.SiteID(cur)] {
			// Focal sites keep their fixed allele of 1 and do not
			// gate on ambiguity; they are already known-confident by
			// construction.
			cur += dir
			continue
		}
		s := b.sites[cur]
		if len(active) == 0 {
			return cur
		}

		count0, count1 := 0, 0
		for _, i := range active {
			if s.genotypes[i] == 1 {
				count1++
			} else {
				count0++
			}
		}
		minority, majority := count0, count1
		majorityAllele := tsinfer.Allele(1)
		if count0 >= count1 {
			minority, majority = count1, count0
			majorityAllele = 0
		}

		if s.frequency >= frequency {
			ratio := float64(minority) / float64(len(active))
			if ratio >= ambiguityThreshold(frequency) && majority > 0 {
				return cur
			}
		}

		haplotype[cur] = majorityAllele

		if s.frequency >= frequency {
			shrunk := active[:0:0]
			for _, i := range active {
				if s.genotypes[i] == majorityAllele {
					shrunk = append(shrunk, i)
				}
			}
			active = shrunk
		}
		cur += dir
	}
	// Ran off the end of the genome without finding an ambiguous site.
	if dir < 0 {
		return -1
	}
	return b.numSites
}

// ambiguityThreshold implements the spec's "frequency-dependent
// threshold": rarer focal patterns (small frequency) have less
// statistical power, so they tolerate less ambiguity before extension
// stops; the threshold approaches 0.5 (a plain tie) as frequency grows.
// This is a deliberately simple, documented resolution of an
// intentionally underspecified rule (see DESIGN.md).
func ambiguityThreshold(frequency int) float64 {
	if frequency <= 1 {
		return 1.0 // a single-sample consensus set can never be ambiguous
	}
	return 0.5 - 0.5/float64(frequency)
}

// GetTotalMemory reports the approximate number of bytes held by the
// builder's per-site genotype columns and pattern groups.
func (b *Builder) GetTotalMemory() uint64 {
	var total uint64
	for _, s := range b.sites {
		total += uint64(len(s.genotypes))
	}
	for _, groups := range b.groupsByFrequency {
		for _, g := range groups {
			total += uint64(len(g.genotypes)) + uint64(len(g.sites))*4
		}
	}
	return total
}

// PrintState writes a human-readable summary of the builder's state,
// mirroring the teacher's debug-dump style.
func (b *Builder) PrintState(w io.Writer) error {
	_, err := fmt.Fprintf(w, "ancestorbuilder: %d sites added, %d frequency classes, %s\n",
		b.added, len(b.groupsByFrequency), humanize.Bytes(b.GetTotalMemory()))
	return err
}

// tsinferErr builds a *tsinfer.OpError the way the root package's
// unexported newOpError does, since that helper is not reachable from
// outside the root package.
func tsinferErr(op string, kind tsinfer.ErrKind, format string, args ...interface{}) error {
	return &tsinfer.OpError{Op: op, Kind: kind, Err: errors.Errorf(format, args...)}
}
