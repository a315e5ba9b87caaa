package arena

import "testing"

func TestBlockAllocator_AllocGrows(t *testing.T) {
	a := NewBlockAllocator(16, 0)
	b1, err := a.Alloc(10, 8)
	if err != nil {
		t.Fatalf("unexpected error allocating: %s", err)
	}
	if len(b1) != 10 {
		t.Errorf("expected length 10, got %d", len(b1))
	}
	b2, err := a.Alloc(20, 8)
	if err != nil {
		t.Fatalf("unexpected error growing: %s", err)
	}
	if len(b2) != 20 {
		t.Errorf("expected length 20, got %d", len(b2))
	}
	if a.TotalMemory() < 30 {
		t.Errorf("expected total memory at least 30, got %d", a.TotalMemory())
	}
}

func TestBlockAllocator_ResetReusesCapacity(t *testing.T) {
	a := NewBlockAllocator(64, 0)
	if _, err := a.Alloc(40, 8); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	capBefore := a.TotalMemory()
	a.Reset()
	if a.Used() != 0 {
		t.Errorf("expected 0 bytes used after reset, got %d", a.Used())
	}
	if a.TotalMemory() != capBefore {
		t.Errorf("expected capacity to survive reset, got %d want %d", a.TotalMemory(), capBefore)
	}
}

func TestBlockAllocator_MaxSizeExhausted(t *testing.T) {
	a := NewBlockAllocator(8, 16)
	if _, err := a.Alloc(16, 8); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if _, err := a.Alloc(1, 8); err == nil {
		t.Errorf("expected an error allocating past max size, instead got none")
	}
}

type edgeLike struct {
	Left, Right int32
	Parent      int32
}

func TestObjectHeap_AllocFreeReuse(t *testing.T) {
	h := NewObjectHeap[edgeLike](4)
	id1 := h.Alloc()
	h.Get(id1).Left = 7
	id2 := h.Alloc()
	if id2 == id1 {
		t.Errorf("expected distinct ids, got %d twice", id1)
	}
	h.Free(id1)
	id3 := h.Alloc()
	if id3 != id1 {
		t.Errorf("expected freed slot %d to be reused, got %d", id1, id3)
	}
	if h.Get(id3).Left != 0 {
		t.Errorf("expected reused slot to be zeroed, got %d", h.Get(id3).Left)
	}
}

func TestObjectHeap_GrowsPastChunk(t *testing.T) {
	h := NewObjectHeap[edgeLike](2)
	var ids []int32
	for i := 0; i < 10; i++ {
		ids = append(ids, h.Alloc())
	}
	if h.Len() != 10 {
		t.Errorf("expected 10 slots, got %d", h.Len())
	}
	for i, id := range ids {
		h.Get(id).Parent = int32(i)
	}
	for i, id := range ids {
		if got := h.Get(id).Parent; got != int32(i) {
			t.Errorf("slot %d: expected %d, got %d", id, i, got)
		}
	}
}
