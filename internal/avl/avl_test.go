package avl

import (
	"math/rand"
	"sort"
	"testing"
)

func intCompare(a, b int) int { return a - b }

func TestTree_InsertFindInOrder(t *testing.T) {
	tr := New[int, string](intCompare)
	values := []int{5, 3, 8, 1, 4, 7, 9, 2, 6, 0}
	for _, v := range values {
		if !tr.Insert(v, "x") {
			t.Errorf("expected Insert(%d) to report a new entry", v)
		}
	}
	if tr.Len() != len(values) {
		t.Errorf("expected len %d, got %d", len(values), tr.Len())
	}
	for _, v := range values {
		if _, ok := tr.Find(v); !ok {
			t.Errorf("expected to find %d", v)
		}
	}
	if _, ok := tr.Find(42); ok {
		t.Errorf("expected not to find 42")
	}

	var seen []int
	tr.InOrder(func(k int, _ string) bool {
		seen = append(seen, k)
		return true
	})
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	if len(seen) != len(sorted) {
		t.Fatalf("expected %d entries in order, got %d", len(sorted), len(seen))
	}
	for i := range sorted {
		if seen[i] != sorted[i] {
			t.Errorf("position %d: expected %d, got %d", i, sorted[i], seen[i])
		}
	}
}

func TestTree_InsertOverwritesValue(t *testing.T) {
	tr := New[int, string](intCompare)
	tr.Insert(1, "a")
	if tr.Insert(1, "b") {
		t.Errorf("expected second Insert(1) to report no new entry")
	}
	v, ok := tr.Find(1)
	if !ok || v != "b" {
		t.Errorf("expected value %q, got %q (ok=%v)", "b", v, ok)
	}
	if tr.Len() != 1 {
		t.Errorf("expected len 1, got %d", tr.Len())
	}
}

func TestTree_DeleteMaintainsOrder(t *testing.T) {
	tr := New[int, int](intCompare)
	values := []int{10, 20, 30, 40, 50, 25, 26, 27, 5, 1}
	for _, v := range values {
		tr.Insert(v, v*v)
	}
	toDelete := []int{30, 1, 50, 26}
	for _, v := range toDelete {
		if !tr.Delete(v) {
			t.Errorf("expected Delete(%d) to find an entry", v)
		}
	}
	if tr.Delete(999) {
		t.Errorf("expected Delete(999) to report nothing deleted")
	}

	remaining := map[int]bool{}
	for _, v := range values {
		remaining[v] = true
	}
	for _, v := range toDelete {
		delete(remaining, v)
	}

	var seen []int
	tr.InOrder(func(k, v int) bool {
		if v != k*k {
			t.Errorf("key %d: expected value %d, got %d", k, k*k, v)
		}
		seen = append(seen, k)
		return true
	})
	if len(seen) != len(remaining) {
		t.Fatalf("expected %d remaining entries, got %d", len(remaining), len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i-1] >= seen[i] {
			t.Errorf("entries out of order at position %d: %d then %d", i, seen[i-1], seen[i])
		}
	}
	for k := range remaining {
		if _, ok := tr.Find(k); !ok {
			t.Errorf("expected remaining key %d to still be found", k)
		}
	}
}

func TestTree_RemainsBalancedUnderRandomOps(t *testing.T) {
	tr := New[int, int](intCompare)
	rng := rand.New(rand.NewSource(1))
	present := map[int]bool{}
	const n = 2000
	for i := 0; i < n; i++ {
		v := rng.Intn(500)
		if rng.Intn(3) == 0 && len(present) > 0 {
			// delete a random present key
			for k := range present {
				tr.Delete(k)
				delete(present, k)
				break
			}
			continue
		}
		tr.Insert(v, v)
		present[v] = true
	}
	if tr.Len() != len(present) {
		t.Fatalf("expected len %d, got %d", len(present), tr.Len())
	}
	var last int
	first := true
	count := 0
	tr.InOrder(func(k, _ int) bool {
		if !first && k <= last {
			t.Fatalf("entries out of order: %d then %d", last, k)
		}
		last = k
		first = false
		count++
		return true
	})
	if count != len(present) {
		t.Fatalf("expected %d entries from InOrder, got %d", len(present), count)
	}

	var height func(id int32) int
	height = func(id int32) int {
		if id == nilID {
			return 0
		}
		n := tr.heap.Get(id)
		lh, rh := height(n.left), height(n.right)
		if lh-rh > 1 || rh-lh > 1 {
			t.Fatalf("unbalanced at key %d: left height %d, right height %d", n.key, lh, rh)
		}
		if lh > rh {
			return lh + 1
		}
		return rh + 1
	}
	height(tr.root)
}

func TestTree_Floor(t *testing.T) {
	tr := New[int, string](intCompare)
	for _, v := range []int{10, 20, 30, 40} {
		tr.Insert(v, "x")
	}
	if _, _, ok := tr.Floor(5); ok {
		t.Errorf("expected no floor below the smallest key")
	}
	if k, _, ok := tr.Floor(25); !ok || k != 20 {
		t.Errorf("expected floor(25) == 20, got %d (ok=%v)", k, ok)
	}
	if k, _, ok := tr.Floor(30); !ok || k != 30 {
		t.Errorf("expected floor(30) == 30 (exact match), got %d (ok=%v)", k, ok)
	}
	if k, _, ok := tr.Floor(1000); !ok || k != 40 {
		t.Errorf("expected floor(1000) == 40, got %d (ok=%v)", k, ok)
	}
}

func TestTree_MinOnEmpty(t *testing.T) {
	tr := New[int, int](intCompare)
	if _, _, ok := tr.Min(); ok {
		t.Errorf("expected Min on empty tree to report false")
	}
}
