package arena

// ObjectHeap is a typed pool of fixed-size slots, one type per heap, with
// an independent free list, per §6's "Object heap" contract. Slots are
// identified by a stable int32 id so holders of a heap-allocated object
// (an edge, an AVL node, a traceback record) can reference it without a
// pointer, which is what lets the backing slice grow and reallocate
// without invalidating references elsewhere in the tree sequence
// builder or matcher.
type ObjectHeap[T any] struct {
	slots     []T
	free      []int32
	chunkSize int
}

// NewObjectHeap creates an object heap that grows chunkSize slots at a
// time.
func NewObjectHeap[T any](chunkSize int) *ObjectHeap[T] {
	if chunkSize <= 0 {
		chunkSize = 256
	}
	return &ObjectHeap[T]{chunkSize: chunkSize}
}

// Alloc returns the id of a fresh zero-valued slot, reusing a freed slot
// when one is available, and growing the backing slice by chunkSize
// otherwise.
func (h *ObjectHeap[T]) Alloc() int32 {
	if n := len(h.free); n > 0 {
		id := h.free[n-1]
		h.free = h.free[:n-1]
		var zero T
		h.slots[id] = zero
		return id
	}
	if len(h.slots) == cap(h.slots) {
		grown := make([]T, len(h.slots), len(h.slots)+h.chunkSize)
		copy(grown, h.slots)
		h.slots = grown
	}
	h.slots = append(h.slots, *new(T))
	return int32(len(h.slots) - 1)
}

// Free returns id's slot to the free list. The slot's value is not
// required to be cleared again by Free; Alloc zeroes reused slots.
func (h *ObjectHeap[T]) Free(id int32) {
	h.free = append(h.free, id)
}

// Get returns a pointer to the object at id, for in-place mutation.
func (h *ObjectHeap[T]) Get(id int32) *T {
	return &h.slots[id]
}

// Len returns the number of slots ever allocated (including freed ones
// still counted against the backing array).
func (h *ObjectHeap[T]) Len() int {
	return len(h.slots)
}

// NumFree returns the number of slots currently on the free list.
func (h *ObjectHeap[T]) NumFree() int {
	return len(h.free)
}

// TotalMemory reports the heap's backing array capacity in bytes, the
// get_total_memory contribution for this heap.
func (h *ObjectHeap[T]) TotalMemory() uint64 {
	var zero T
	return uint64(cap(h.slots)) * uint64(sizeOf(zero))
}

// sizeOf approximates unsafe.Sizeof without importing unsafe at the call
// site, keeping the generic heap free of per-T special casing.
func sizeOf[T any](v T) uintptr {
	return sizeofImpl(v)
}
