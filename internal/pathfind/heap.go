package pathfind

// posIndex densely identifies a cell among materialised rooms:
// roomSlot*2500 + xx%50*50 + yy%50. Indices are only stable within one search.
type posIndex uint32

// costHeap is an indexed binary min-heap over position indices keyed by
// f-cost. A reverse slot table gives O(log n) decrease-key. Each index may
// appear at most once; update only ever lowers a priority.
type costHeap struct {
	priorities []Cost     // keyed by posIndex
	slots      []uint32   // posIndex -> 1-based heap slot, 0 = absent
	heap       []posIndex // 1-based, heap[0] unused
	size       int
}

func newCostHeap() costHeap {
	return costHeap{
		priorities: make([]Cost, maxPosIndex),
		slots:      make([]uint32, maxPosIndex),
		heap:       make([]posIndex, maxPosIndex+1),
	}
}

func (h *costHeap) len() int {
	return h.size
}

func (h *costHeap) priority(idx posIndex) Cost {
	return h.priorities[idx]
}

func (h *costHeap) insert(idx posIndex, priority Cost) {
	h.priorities[idx] = priority
	h.size++
	h.heap[h.size] = idx
	h.slots[idx] = uint32(h.size)
	h.bubbleUp(h.size)
}

func (h *costHeap) update(idx posIndex, priority Cost) {
	h.priorities[idx] = priority
	h.bubbleUp(int(h.slots[idx]))
}

func (h *costHeap) pop() (posIndex, Cost) {
	top := h.heap[1]
	h.slots[top] = 0
	if h.size > 1 {
		h.heap[1] = h.heap[h.size]
		h.slots[h.heap[1]] = 1
	}
	h.size--
	h.bubbleDown(1)
	return top, h.priorities[top]
}

func (h *costHeap) clear() {
	for i := 1; i <= h.size; i++ {
		h.slots[h.heap[i]] = 0
	}
	h.size = 0
}

func (h *costHeap) bubbleUp(slot int) {
	idx := h.heap[slot]
	priority := h.priorities[idx]
	for slot > 1 {
		parent := slot / 2
		if h.priorities[h.heap[parent]] <= priority {
			break
		}
		h.heap[slot] = h.heap[parent]
		h.slots[h.heap[slot]] = uint32(slot)
		slot = parent
	}
	h.heap[slot] = idx
	h.slots[idx] = uint32(slot)
}

func (h *costHeap) bubbleDown(slot int) {
	if h.size < 1 || slot > h.size {
		return
	}
	idx := h.heap[slot]
	priority := h.priorities[idx]
	for {
		child := slot * 2
		if child > h.size {
			break
		}
		if child+1 <= h.size && h.priorities[h.heap[child+1]] < h.priorities[h.heap[child]] {
			child++
		}
		if h.priorities[h.heap[child]] >= priority {
			break
		}
		h.heap[slot] = h.heap[child]
		h.slots[h.heap[slot]] = uint32(slot)
		slot = child
	}
	h.heap[slot] = idx
	h.slots[idx] = uint32(slot)
}
