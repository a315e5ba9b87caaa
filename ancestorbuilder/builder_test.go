package ancestorbuilder

import (
	"testing"

	tsinfer "github.com/kentwait/tsinfer"
)

func allele(v int8) tsinfer.Allele { return tsinfer.Allele(v) }

func column(vals ...int8) []tsinfer.Allele {
	col := make([]tsinfer.Allele, len(vals))
	for i, v := range vals {
		col[i] = allele(v)
	}
	return col
}

// TestBuilder_GroupsIdenticalPatterns is Scenario D: four samples, three
// sites with columns [1,1,0,0], [1,1,0,0], [1,0,0,0]. Sites 0 and 1 share
// an identical column at frequency 2 and must land in the same group;
// site 2 (frequency 1) must be its own group.
func TestBuilder_GroupsIdenticalPatterns(t *testing.T) {
	b := NewBuilder(4, 3)
	cols := [][]tsinfer.Allele{
		column(1, 1, 0, 0),
		column(1, 1, 0, 0),
		column(1, 0, 0, 0),
	}
	for i, col := range cols {
		freq := 0
		for _, a := range col {
			if a == 1 {
				freq++
			}
		}
		if err := b.AddSite(tsinfer.SiteID(i), freq, col); err != nil {
			t.Fatalf("AddSite(%d): %s", i, err)
		}
	}

	if len(b.groupsByFrequency[2]) != 1 {
		t.Fatalf("expected exactly one group at frequency 2, got %d", len(b.groupsByFrequency[2]))
	}
	group := b.groupsByFrequency[2][0]
	if len(group.sites) != 2 || group.sites[0] != 0 || group.sites[1] != 1 {
		t.Errorf("expected group at frequency 2 to contain sites [0 1], got %v", group.sites)
	}
	if len(b.groupsByFrequency[1]) != 1 {
		t.Fatalf("expected exactly one group at frequency 1, got %d", len(b.groupsByFrequency[1]))
	}
	if got := b.groupsByFrequency[1][0].sites; len(got) != 1 || got[0] != 2 {
		t.Errorf("expected group at frequency 1 to contain site [2], got %v", got)
	}

	// Sites sharing a group must make identical ancestors regardless of
	// which site in the group is named as focal.
	start0, end0, hap0, err := b.MakeAncestor([]tsinfer.SiteID{0})
	if err != nil {
		t.Fatalf("MakeAncestor([0]): %s", err)
	}
	start1, end1, hap1, err := b.MakeAncestor([]tsinfer.SiteID{1})
	if err != nil {
		t.Fatalf("MakeAncestor([1]): %s", err)
	}
	if start0 != start1 || end0 != end1 {
		t.Errorf("expected identical intervals for co-grouped focal sites, got [%d,%d) vs [%d,%d)", start0, end0, start1, end1)
	}
	for i := range hap0 {
		if hap0[i] != hap1[i] {
			t.Errorf("position %d: haplotypes diverge for co-grouped focal sites: %d vs %d", i, hap0[i], hap1[i])
		}
	}
}

func TestBuilder_MakeAncestorIsPure(t *testing.T) {
	b := NewBuilder(4, 3)
	cols := [][]tsinfer.Allele{
		column(1, 1, 0, 0),
		column(1, 1, 0, 0),
		column(1, 0, 0, 0),
	}
	for i, col := range cols {
		freq := 0
		for _, a := range col {
			if a == 1 {
				freq++
			}
		}
		if err := b.AddSite(tsinfer.SiteID(i), freq, col); err != nil {
			t.Fatalf("AddSite(%d): %s", i, err)
		}
	}
	s1, e1, h1, err := b.MakeAncestor([]tsinfer.SiteID{0, 1})
	if err != nil {
		t.Fatalf("MakeAncestor: %s", err)
	}
	s2, e2, h2, err := b.MakeAncestor([]tsinfer.SiteID{0, 1})
	if err != nil {
		t.Fatalf("MakeAncestor (repeat): %s", err)
	}
	if s1 != s2 || e1 != e2 {
		t.Errorf("expected identical interval across repeated calls, got [%d,%d) vs [%d,%d)", s1, e1, s2, e2)
	}
	for i := range h1 {
		if h1[i] != h2[i] {
			t.Errorf("position %d: haplotype differs across repeated calls", i)
		}
	}
}

func TestBuilder_FocalSitesAlwaysOne(t *testing.T) {
	b := NewBuilder(4, 3)
	cols := [][]tsinfer.Allele{
		column(1, 1, 0, 0),
		column(1, 1, 0, 0),
		column(1, 0, 0, 0),
	}
	for i, col := range cols {
		freq := 0
		for _, a := range col {
			if a == 1 {
				freq++
			}
		}
		if err := b.AddSite(tsinfer.SiteID(i), freq, col); err != nil {
			t.Fatalf("AddSite(%d): %s", i, err)
		}
	}
	start, end, hap, err := b.MakeAncestor([]tsinfer.SiteID{0, 1})
	if err != nil {
		t.Fatalf("MakeAncestor: %s", err)
	}
	if start > 0 || end <= 1 {
		t.Fatalf("expected interval to cover focal sites 0 and 1, got [%d,%d)", start, end)
	}
	if hap[0] != 1 || hap[1] != 1 {
		t.Errorf("expected focal sites fixed at allele 1, got %v %v", hap[0], hap[1])
	}
	for i := 0; i < int(start); i++ {
		if hap[i] != tsinfer.MissingAllele {
			t.Errorf("position %d outside [start,end) expected MissingAllele, got %d", i, hap[i])
		}
	}
	for i := int(end); i < len(hap); i++ {
		if hap[i] != tsinfer.MissingAllele {
			t.Errorf("position %d outside [start,end) expected MissingAllele, got %d", i, hap[i])
		}
	}
}

func TestBuilder_FocalSitesSpanningMultipleGroupsErrors(t *testing.T) {
	b := NewBuilder(4, 3)
	cols := [][]tsinfer.Allele{
		column(1, 1, 0, 0),
		column(1, 1, 0, 0),
		column(1, 0, 0, 0),
	}
	for i, col := range cols {
		freq := 0
		for _, a := range col {
			if a == 1 {
				freq++
			}
		}
		if err := b.AddSite(tsinfer.SiteID(i), freq, col); err != nil {
			t.Fatalf("AddSite(%d): %s", i, err)
		}
	}
	_, _, _, err := b.MakeAncestor([]tsinfer.SiteID{0, 2})
	if err == nil {
		t.Fatal("expected an error for focal sites spanning two frequency groups")
	}
	if kind, ok := tsinfer.Kind(err); !ok || kind != tsinfer.ErrArgument {
		t.Errorf("expected ErrArgument, got %v (ok=%v)", kind, ok)
	}
}

func TestBuilder_AddSiteRejectsOutOfRange(t *testing.T) {
	b := NewBuilder(2, 1)
	err := b.AddSite(5, 1, column(1, 0))
	if err == nil {
		t.Fatal("expected an error for an out-of-range site id")
	}
	if kind, ok := tsinfer.Kind(err); !ok || kind != tsinfer.ErrArgument {
		t.Errorf("expected ErrArgument, got %v (ok=%v)", kind, ok)
	}
}

func TestBuilder_AddSiteRejectsWrongLength(t *testing.T) {
	b := NewBuilder(3, 1)
	err := b.AddSite(0, 1, column(1, 0))
	if err == nil {
		t.Fatal("expected an error for a genotype column of the wrong length")
	}
}

func TestBuilder_UnknownFrequencyErrors(t *testing.T) {
	b := NewBuilder(4, 2)
	if err := b.AddSite(0, 2, column(1, 1, 0, 0)); err != nil {
		t.Fatalf("AddSite: %s", err)
	}
	_, _, _, err := b.MakeAncestor([]tsinfer.SiteID{1})
	if err == nil {
		t.Fatal("expected an error for a site that was never added")
	}
}

func TestAmbiguityThreshold_MonotoneTowardHalf(t *testing.T) {
	prev := ambiguityThreshold(2)
	for f := 3; f <= 100; f++ {
		cur := ambiguityThreshold(f)
		if cur < prev {
			t.Errorf("expected ambiguityThreshold to be non-decreasing in frequency, got %g at %d after %g", cur, f, prev)
		}
		if cur >= 0.5 {
			t.Errorf("expected ambiguityThreshold(%d) < 0.5, got %g", f, cur)
		}
		prev = cur
	}
}
