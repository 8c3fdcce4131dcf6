package pathfind

import "math"

// openClosed tracks open/closed membership per position index. Generation
// markers make clearing between searches O(1): a slot is open when it holds
// the current marker, closed when it holds marker+1.
type openClosed struct {
	list   []uint32
	marker uint32
}

func newOpenClosed() openClosed {
	return openClosed{list: make([]uint32, maxPosIndex), marker: 1}
}

func (oc *openClosed) clear() {
	if oc.marker >= math.MaxUint32-2 {
		for i := range oc.list {
			oc.list[i] = 0
		}
		oc.marker = 1
		return
	}
	oc.marker += 2
}

func (oc *openClosed) isOpen(idx posIndex) bool {
	return oc.list[idx] == oc.marker
}

func (oc *openClosed) isClosed(idx posIndex) bool {
	return oc.list[idx] == oc.marker+1
}

func (oc *openClosed) open(idx posIndex) {
	oc.list[idx] = oc.marker
}

func (oc *openClosed) close(idx posIndex) {
	oc.list[idx] = oc.marker + 1
}
