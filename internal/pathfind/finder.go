// Package pathfind implements a shortest-path search engine over a room-tiled
// grid world: 256×256 rooms of 50×50 cells, searched with a weighted-A*/JPS
// hybrid over lazily materialised rooms.
package pathfind

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Finder runs searches against a terrain store. A Finder is single-threaded
// and non-reentrant: entering Search while one is in flight fails with
// ErrInUse. All transient state is recycled between searches.
type Finder struct {
	terrain *TerrainStore

	roomTable        []roomInfo
	reverseRoomTable []uint8 // map id -> room slot+1, 0 = not materialised
	blockedRooms     map[uint16]struct{}

	open    openClosed
	heap    costHeap
	parents []posIndex

	goals           []Goal
	lookTable       [3]Cost
	flee            bool
	heuristicWeight float64
	maxRooms        int
	rooms           RoomSource

	inUse bool
	fail  error // hard failure latched during expansion
}

// NewFinder creates a search instance bound to the given terrain store.
func NewFinder(terrain *TerrainStore) *Finder {
	return &Finder{
		terrain:          terrain,
		roomTable:        make([]roomInfo, 0, MaxRooms),
		reverseRoomTable: make([]uint8, MapArea),
		blockedRooms:     make(map[uint16]struct{}),
		open:             newOpenClosed(),
		heap:             newCostHeap(),
		parents:          make([]posIndex, maxPosIndex),
	}
}

// reset recycles all per-search state and installs the request parameters.
func (f *Finder) reset(req *Request, opts Options) {
	for i := range f.roomTable {
		f.reverseRoomTable[f.roomTable[i].pos.ID()] = 0
	}
	f.roomTable = f.roomTable[:0]
	clear(f.blockedRooms)
	f.open.clear()
	f.heap.clear()
	f.fail = nil

	f.goals = append(f.goals[:0], req.Goals...)
	f.lookTable = [3]Cost{opts.PlainCost, Obstacle, opts.SwampCost}
	f.flee = opts.Flee
	f.heuristicWeight = opts.HeuristicWeight
	f.maxRooms = opts.MaxRooms
	f.rooms = req.Rooms
}

// roomIndexFromPos returns the slot+1 of the room at map position mp,
// materialising it if needed and possible. 0 means the room is unavailable
// (limit reached, blocked, or a latched hard failure).
func (f *Finder) roomIndexFromPos(mp MapPosition) uint8 {
	id := mp.ID()
	if ri := f.reverseRoomTable[id]; ri != 0 {
		return ri
	}
	if f.fail != nil {
		return 0
	}
	if len(f.roomTable) >= f.maxRooms {
		return 0
	}
	if _, blocked := f.blockedRooms[id]; blocked {
		return 0
	}
	terrain := f.terrain.room(id)
	if terrain == nil {
		f.fail = fmt.Errorf("room %s: %w", FormatRoomName(mp), ErrTerrainMissing)
		return 0
	}

	var matrix []byte
	if f.rooms != nil {
		decision, err := f.rooms.Room(mp.XX, mp.YY)
		if err != nil {
			f.fail = fmt.Errorf("room callback for %s: %w", FormatRoomName(mp), err)
			return 0
		}
		if decision.Blocked {
			f.blockedRooms[id] = struct{}{}
			return 0
		}
		if len(decision.CostMatrix) >= RoomArea {
			matrix = make([]byte, RoomArea)
			copy(matrix, decision.CostMatrix)
		}
	}

	f.roomTable = append(f.roomTable, roomInfo{terrain: terrain, costMatrix: matrix, pos: mp})
	ri := uint8(len(f.roomTable))
	f.reverseRoomTable[id] = ri
	return ri
}

// indexFromPos converts a world position to its dense index, materialising
// the room if needed. ok is false when the room is unavailable.
func (f *Finder) indexFromPos(pos WorldPosition) (posIndex, bool) {
	ri := f.roomIndexFromPos(pos.Map())
	if ri == 0 {
		return 0, false
	}
	return posIndex(ri-1)*RoomArea + posIndex(pos.XX%RoomSize)*RoomSize + posIndex(pos.YY%RoomSize), true
}

func (f *Finder) posFromIndex(idx posIndex) WorldPosition {
	slot := idx / RoomArea
	info := &f.roomTable[slot]
	coord := uint32(idx - slot*RoomArea)
	return WorldPosition{
		XX: coord/RoomSize + uint32(info.pos.XX)*RoomSize,
		YY: coord%RoomSize + uint32(info.pos.YY)*RoomSize,
	}
}

// look resolves the movement cost of a cell: cost-matrix override first,
// terrain baseline otherwise. Unavailable rooms and off-world cells are
// obstacles.
func (f *Finder) look(pos WorldPosition) Cost {
	if pos.XX >= WorldSize || pos.YY >= WorldSize {
		return Obstacle
	}
	ri := f.roomIndexFromPos(pos.Map())
	if ri == 0 {
		return Obstacle
	}
	room := &f.roomTable[ri-1]
	if room.costMatrix != nil {
		if c := room.costMatrix[pos.XX%RoomSize*RoomSize+pos.YY%RoomSize]; c != matrixDeferToTerrain {
			if c == matrixObstacle {
				return Obstacle
			}
			return Cost(c)
		}
	}
	class := terrainAt(room.terrain, pos.XX%RoomSize, pos.YY%RoomSize)
	if class > TerrainSwamp {
		return Obstacle
	}
	return f.lookTable[class]
}

// heuristic returns the extremum of goal distances in the Chebyshev metric.
// Seek mode: min over goals of max(0, dist−range); zero iff within range of
// some goal. Flee mode: max over goals of max(0, range−dist); zero iff
// outside every goal's range.
func (f *Finder) heuristic(pos WorldPosition) Cost {
	if f.flee {
		var ret Cost
		for _, g := range f.goals {
			dist := pos.RangeTo(g.Pos)
			if dist < g.Range && g.Range-dist > ret {
				ret = g.Range - dist
			}
		}
		return ret
	}
	ret := Cost(math.MaxUint32)
	for _, g := range f.goals {
		dist := pos.RangeTo(g.Pos)
		if dist > g.Range {
			if dist-g.Range < ret {
				ret = dist - g.Range
			}
		} else {
			ret = 0
		}
	}
	return ret
}

// weighted scales a heuristic value by the search weight, truncating and
// clamping into the cost range.
func (f *Finder) weighted(h Cost) Cost {
	v := float64(h) * f.heuristicWeight
	if v >= math.MaxUint32 {
		return math.MaxUint32
	}
	return Cost(v)
}

// pushNode inserts node into the open set with the given g-cost, or lowers
// its priority if it is already open with a worse one.
func (f *Finder) pushNode(parent posIndex, node WorldPosition, g Cost) {
	idx, ok := f.indexFromPos(node)
	if !ok {
		return
	}
	if f.open.isClosed(idx) {
		return
	}
	fCost := g + f.weighted(f.heuristic(node))

	if f.open.isOpen(idx) {
		if f.heap.priority(idx) > fCost {
			f.heap.update(idx, fCost)
			f.parents[idx] = parent
		}
	} else {
		f.heap.insert(idx, fCost)
		f.open.open(idx)
		f.parents[idx] = parent
	}
}

// astar expands all eight neighbours of pos. Used to seed the search at the
// origin and to step across room borders, where JPS jumping is not legal.
func (f *Finder) astar(idx posIndex, pos WorldPosition, g Cost) {
	for dir := Top; dir <= TopLeft; dir++ {
		neighbor := pos.InDirection(dir)

		// Border cells only permit portal steps: crossing to the adjacent
		// row/column of the next room, never sliding along or wrapping
		// around the edge.
		switch {
		case pos.XX%RoomSize == 0:
			if (neighbor.XX%RoomSize == RoomSize-1 && pos.YY != neighbor.YY) || pos.XX == neighbor.XX {
				continue
			}
		case pos.XX%RoomSize == RoomSize-1:
			if (neighbor.XX%RoomSize == 0 && pos.YY != neighbor.YY) || pos.XX == neighbor.XX {
				continue
			}
		case pos.YY%RoomSize == 0:
			if (neighbor.YY%RoomSize == RoomSize-1 && pos.XX != neighbor.XX) || pos.YY == neighbor.YY {
				continue
			}
		case pos.YY%RoomSize == RoomSize-1:
			if (neighbor.YY%RoomSize == 0 && pos.XX != neighbor.XX) || pos.YY == neighbor.YY {
				continue
			}
		}

		nCost := f.look(neighbor)
		if nCost == Obstacle {
			continue
		}
		f.pushNode(idx, neighbor, g+nCost)
	}
}

// Search runs one shortest-path query. The context is polled once per
// expansion alongside req.Abort; cancellation surfaces as StatusInterrupted.
func (f *Finder) Search(ctx context.Context, req *Request) (Result, error) {
	if f.inUse {
		return Result{Status: StatusInUse}, ErrInUse
	}
	f.inUse = true
	defer func() { f.inUse = false }()

	opts, err := req.Opts.normalized()
	if err != nil {
		return Result{Status: StatusError}, err
	}
	origin := req.Origin
	if origin.XX >= WorldSize || origin.YY >= WorldSize {
		return Result{Status: StatusError}, fmt.Errorf("%w: origin off-grid", ErrInvalidArgument)
	}
	for _, g := range req.Goals {
		if g.Pos.XX >= WorldSize || g.Pos.YY >= WorldSize {
			return Result{Status: StatusError}, fmt.Errorf("%w: goal off-grid", ErrInvalidArgument)
		}
	}

	f.reset(req, opts)

	if f.heuristic(origin) == 0 {
		return Result{Status: StatusSamePosition}, nil
	}

	if f.roomIndexFromPos(origin.Map()) == 0 {
		// A callback failure is a hard error; an absent or blocked origin
		// room is InvalidStart.
		if f.fail != nil && !errors.Is(f.fail, ErrTerrainMissing) {
			return Result{Status: StatusError}, f.fail
		}
		return Result{Status: StatusInvalidStart}, nil
	}

	minNode, _ := f.indexFromPos(origin)
	minH := Cost(math.MaxUint32)
	minG := Cost(math.MaxUint32)
	opsRemaining := opts.MaxOps

	f.astar(minNode, origin, 0)
	if f.fail != nil {
		return Result{Status: StatusError}, f.fail
	}

	for f.heap.len() > 0 && opsRemaining > 0 {
		idx, fCost := f.heap.pop()
		f.open.close(idx)

		pos := f.posFromIndex(idx)
		h := f.heuristic(pos)
		g := fCost - f.weighted(h)

		if h == 0 {
			minNode, minH, minG = idx, 0, g
			break
		}
		if h < minH {
			minNode, minH, minG = idx, h, g
		}
		// uint64 math keeps the comparison exact when the no-goal heuristic
		// collapses to the maximum.
		if uint64(g)+uint64(h) > uint64(opts.MaxCost) {
			break
		}

		f.jps(idx, pos, g)
		opsRemaining--

		if f.fail != nil {
			return Result{Status: StatusError}, f.fail
		}
		if req.Abort != nil && req.Abort() {
			return Result{Status: StatusInterrupted}, nil
		}
		if ctx != nil && ctx.Err() != nil {
			return Result{Status: StatusInterrupted}, nil
		}
	}

	path, err := f.reconstruct(minNode, origin)
	if err != nil {
		return Result{Status: StatusError}, err
	}

	return Result{
		Path:       path,
		Ops:        opts.MaxOps - opsRemaining,
		Cost:       minG,
		Incomplete: minH != 0,
		Status:     StatusSuccess,
	}, nil
}

// reconstruct walks the parent chain from node back to the origin, filling
// the gap between consecutive jump endpoints with interpolated cells. The
// emitted order is goal→origin and excludes the origin itself.
func (f *Finder) reconstruct(node posIndex, origin WorldPosition) ([]RoomPos, error) {
	path := make([]RoomPos, 0, 32)
	budget := len(f.roomTable) * RoomArea

	idx := node
	pos := f.posFromIndex(idx)
	for pos != origin {
		if budget--; budget < 0 {
			return nil, fmt.Errorf("path reconstruction exceeded %d steps: malformed parent chain", len(f.roomTable)*RoomArea)
		}
		path = append(path, pos.RoomPos())
		idx = f.parents[idx]
		next := f.posFromIndex(idx)
		if next.RangeTo(pos) > 1 {
			dir := pos.DirectionTo(next)
			for {
				pos = pos.InDirection(dir)
				path = append(path, pos.RoomPos())
				if budget--; budget < 0 {
					return nil, fmt.Errorf("path reconstruction exceeded %d steps: malformed parent chain", len(f.roomTable)*RoomArea)
				}
				if pos.RangeTo(next) <= 1 {
					break
				}
			}
		}
		pos = next
	}
	return path, nil
}
