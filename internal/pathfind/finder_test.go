package pathfind

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// packRoom builds a packed terrain blob from a per-cell class function.
func packRoom(t testing.TB, classAt func(x, y int) byte) []byte {
	t.Helper()
	cells := make([]byte, RoomArea)
	for y := 0; y < RoomSize; y++ {
		for x := 0; x < RoomSize; x++ {
			cells[y*RoomSize+x] = classAt(x, y)
		}
	}
	bits, err := PackTerrain(cells)
	require.NoError(t, err)
	return bits
}

func allPlain(x, y int) byte { return TerrainPlain }

// storeWith loads the given rooms (name -> class function) into a fresh store.
func storeWith(t testing.TB, rooms map[string]func(x, y int) byte) *TerrainStore {
	t.Helper()
	terrain := make([]TerrainRoom, 0, len(rooms))
	for name, classAt := range rooms {
		pos, err := ParseRoomName(name)
		require.NoError(t, err)
		terrain = append(terrain, TerrainRoom{Pos: pos, Bits: packRoom(t, classAt)})
	}
	store := NewTerrainStore()
	require.Equal(t, len(rooms), store.LoadTerrain(terrain))
	return store
}

func mustWorld(t testing.TB, x, y int, room string) WorldPosition {
	t.Helper()
	pos, err := RoomPos{X: x, Y: y, Room: room}.World()
	require.NoError(t, err)
	return pos
}

// assertUnitSteps checks that the emitted goal→origin path is a chain of
// single steps ending adjacent to the origin.
func assertUnitSteps(t testing.TB, origin WorldPosition, path []RoomPos) {
	t.Helper()
	prev := NullPosition()
	for i, step := range path {
		world, err := step.World()
		require.NoError(t, err)
		if !prev.IsNull() {
			require.LessOrEqual(t, prev.RangeTo(world), Cost(1), "step %d not adjacent", i)
		}
		prev = world
	}
	if len(path) > 0 {
		require.Equal(t, Cost(1), prev.RangeTo(origin), "path does not end at the origin")
	}
}

func TestSearchStraightLine(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{"W0N0": allPlain})
	f := NewFinder(store)

	origin := mustWorld(t, 25, 25, "W0N0")
	goal := mustWorld(t, 25, 27, "W0N0")
	res, err := f.Search(context.Background(), &Request{
		Origin: origin,
		Goals:  []Goal{{Pos: goal}},
		Opts:   DefaultOptions(),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.False(t, res.Incomplete)
	assert.Equal(t, Cost(2), res.Cost)
	require.Len(t, res.Path, 2)
	assert.Equal(t, RoomPos{X: 25, Y: 27, Room: "W0N0"}, res.Path[0])
	assert.Equal(t, RoomPos{X: 25, Y: 26, Room: "W0N0"}, res.Path[1])
	assert.GreaterOrEqual(t, res.Ops, uint32(1))
	assertUnitSteps(t, origin, res.Path)
}

func TestSearchSamePosition(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{"W0N0": allPlain})
	f := NewFinder(store)

	origin := mustWorld(t, 25, 25, "W0N0")
	res, err := f.Search(context.Background(), &Request{
		Origin: origin,
		Goals:  []Goal{{Pos: origin}},
		Opts:   DefaultOptions(),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSamePosition, res.Status)
	assert.Empty(t, res.Path)
	assert.Equal(t, uint32(0), res.Ops)
}

func TestSearchFlee(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{"W0N0": allPlain})
	f := NewFinder(store)

	origin := mustWorld(t, 25, 25, "W0N0")
	opts := DefaultOptions()
	opts.Flee = true
	res, err := f.Search(context.Background(), &Request{
		Origin: origin,
		Goals:  []Goal{{Pos: origin, Range: 5}},
		Opts:   opts,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.False(t, res.Incomplete)
	require.NotEmpty(t, res.Path)
	final, err := res.Path[0].World()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, final.RangeTo(origin), Cost(5))
	assert.Equal(t, Cost(5), res.Cost)
	assertUnitSteps(t, origin, res.Path)
}

func TestSearchInvalidStart(t *testing.T) {
	f := NewFinder(NewTerrainStore())

	res, err := f.Search(context.Background(), &Request{
		Origin: mustWorld(t, 25, 25, "W0N0"),
		Goals:  []Goal{{Pos: mustWorld(t, 25, 27, "W0N0")}},
		Opts:   DefaultOptions(),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusInvalidStart, res.Status)
	assert.Empty(t, res.Path)
}

func TestSearchCrossesBorderAwayFromMissingRoom(t *testing.T) {
	// E0N0 is absent; a search that stays west of it must not notice.
	store := storeWith(t, map[string]func(x, y int) byte{
		"W0N0": allPlain,
		"W1N0": allPlain,
	})
	f := NewFinder(store)

	origin := mustWorld(t, 0, 25, "W0N0")
	goal := mustWorld(t, 25, 25, "W1N0")
	res, err := f.Search(context.Background(), &Request{
		Origin: origin,
		Goals:  []Goal{{Pos: goal}},
		Opts:   DefaultOptions(),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.False(t, res.Incomplete)
	assert.Equal(t, Cost(25), res.Cost)
	assert.Len(t, res.Path, 25)
	assertUnitSteps(t, origin, res.Path)
	for _, step := range res.Path {
		assert.Contains(t, []string{"W0N0", "W1N0"}, step.Room)
	}
}

func TestSearchMissingReachableRoomFails(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{"W0N0": allPlain})
	f := NewFinder(store)

	res, err := f.Search(context.Background(), &Request{
		Origin: mustWorld(t, 25, 25, "W0N0"),
		Goals:  []Goal{{Pos: mustWorld(t, 25, 25, "W1N0")}},
		Opts:   DefaultOptions(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTerrainMissing)
	assert.Equal(t, StatusError, res.Status)
}

func TestSearchCostMatrixStrip(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{"W0N0": allPlain})
	f := NewFinder(store)

	matrix := make([]byte, RoomArea)
	for i := range matrix {
		matrix[i] = matrixObstacle
	}
	for i := 5; i <= 45; i++ {
		matrix[i*RoomSize+i] = 1 // diagonal strip, cell index xx*50+yy
	}
	mapPos, err := ParseRoomName("W0N0")
	require.NoError(t, err)

	origin := mustWorld(t, 10, 10, "W0N0")
	goal := mustWorld(t, 15, 15, "W0N0")
	res, err := f.Search(context.Background(), &Request{
		Origin: origin,
		Goals:  []Goal{{Pos: goal}},
		Opts:   DefaultOptions(),
		Rooms:  FixedMatrixTable{mapPos: matrix},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.False(t, res.Incomplete)
	assert.Equal(t, Cost(5), res.Cost)
	require.Len(t, res.Path, 5)
	for i, step := range res.Path {
		assert.Equal(t, RoomPos{X: 15 - i, Y: 15 - i, Room: "W0N0"}, step)
	}
}

func TestSearchCostMatrixBlocksSingleCell(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{"W0N0": allPlain})
	f := NewFinder(store)

	matrix := make([]byte, RoomArea)
	matrix[3*RoomSize+7] = matrixObstacle // blocks (x=3, y=7), not (x=7, y=3)
	mapPos, err := ParseRoomName("W0N0")
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.HeuristicWeight = 1.0
	origin := mustWorld(t, 3, 5, "W0N0")
	res, err := f.Search(context.Background(), &Request{
		Origin: origin,
		Goals:  []Goal{{Pos: mustWorld(t, 3, 9, "W0N0")}},
		Opts:   opts,
		Rooms:  FixedMatrixTable{mapPos: matrix},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.False(t, res.Incomplete)
	assert.Equal(t, Cost(4), res.Cost)
	assert.NotContains(t, res.Path, RoomPos{X: 3, Y: 7, Room: "W0N0"})
	assertUnitSteps(t, origin, res.Path)
}

func TestSearchMaxOpsBudget(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{"W0N0": allPlain})
	f := NewFinder(store)

	opts := DefaultOptions()
	opts.MaxOps = 1
	res, err := f.Search(context.Background(), &Request{
		Origin: mustWorld(t, 5, 25, "W0N0"),
		Goals:  []Goal{{Pos: mustWorld(t, 45, 25, "W0N0")}},
		Opts:   opts,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.True(t, res.Incomplete)
	assert.Equal(t, uint32(1), res.Ops)
	assert.NotEmpty(t, res.Path)
}

func TestSearchMaxCostBudget(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{"W0N0": allPlain})
	f := NewFinder(store)

	opts := DefaultOptions()
	opts.MaxCost = 5
	res, err := f.Search(context.Background(), &Request{
		Origin: mustWorld(t, 5, 25, "W0N0"),
		Goals:  []Goal{{Pos: mustWorld(t, 45, 25, "W0N0")}},
		Opts:   opts,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.True(t, res.Incomplete)
}

func TestSearchZeroGoalsSeek(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{"W0N0": allPlain})
	f := NewFinder(store)

	res, err := f.Search(context.Background(), &Request{
		Origin: mustWorld(t, 25, 25, "W0N0"),
		Opts:   DefaultOptions(),
	})
	require.NoError(t, err)

	// With no goals the heuristic collapses and the search yields on the
	// first pop with nothing to report.
	assert.Equal(t, StatusSuccess, res.Status)
	assert.True(t, res.Incomplete)
	assert.Empty(t, res.Path)
}

func TestSearchZeroGoalsFlee(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{"W0N0": allPlain})
	f := NewFinder(store)

	opts := DefaultOptions()
	opts.Flee = true
	res, err := f.Search(context.Background(), &Request{
		Origin: mustWorld(t, 25, 25, "W0N0"),
		Opts:   opts,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSamePosition, res.Status)
}

func TestSearchMultiGoalPicksNearest(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{"W0N0": allPlain})
	f := NewFinder(store)

	origin := mustWorld(t, 25, 25, "W0N0")
	near := mustWorld(t, 25, 30, "W0N0")
	far := mustWorld(t, 25, 5, "W0N0")
	res, err := f.Search(context.Background(), &Request{
		Origin: origin,
		Goals:  []Goal{{Pos: far}, {Pos: near, Range: 1}},
		Opts:   DefaultOptions(),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.False(t, res.Incomplete)
	final, err := res.Path[0].World()
	require.NoError(t, err)
	assert.LessOrEqual(t, final.RangeTo(near), Cost(1))
}

func TestSearchBlockedRoomMemoised(t *testing.T) {
	// The unreachable goal makes the search drain all of W0N0, so the room
	// beyond each of its four edges gets probed across the border; those
	// need terrain even though the callback blocks them. The corner rooms
	// are loaded too.
	rooms := map[string]func(x, y int) byte{"W0N0": allPlain}
	for _, name := range []string{"W1N0", "E0N0", "W0N1", "W0S0", "W1N1", "W1S0", "E0N1", "E0S0"} {
		rooms[name] = allPlain
	}
	store := storeWith(t, rooms)
	f := NewFinder(store)

	calls := map[string]int{}
	source := RoomSourceFunc(func(xx, yy uint8) (RoomDecision, error) {
		name := FormatRoomName(MapPosition{XX: xx, YY: yy})
		calls[name]++
		return RoomDecision{Blocked: name != "W0N0"}, nil
	})

	res, err := f.Search(context.Background(), &Request{
		Origin: mustWorld(t, 5, 25, "W0N0"),
		Goals:  []Goal{{Pos: mustWorld(t, 25, 25, "W1N0")}},
		Opts:   DefaultOptions(),
		Rooms:  source,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.True(t, res.Incomplete)
	for _, step := range res.Path {
		assert.Equal(t, "W0N0", step.Room)
	}
	assert.Equal(t, 1, calls["W1N0"], "blocked decision must be memoised")
	for name, n := range calls {
		assert.Equal(t, 1, n, "room %s asked more than once", name)
	}
}

func TestSearchRoomCallbackError(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{
		"W0N0": allPlain,
		"W1N0": allPlain,
	})
	f := NewFinder(store)

	boom := errors.New("boom")
	source := RoomSourceFunc(func(xx, yy uint8) (RoomDecision, error) {
		if FormatRoomName(MapPosition{XX: xx, YY: yy}) == "W1N0" {
			return RoomDecision{}, boom
		}
		return RoomDecision{}, nil
	})

	res, err := f.Search(context.Background(), &Request{
		Origin: mustWorld(t, 5, 25, "W0N0"),
		Goals:  []Goal{{Pos: mustWorld(t, 25, 25, "W1N0")}},
		Opts:   DefaultOptions(),
		Rooms:  source,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusError, res.Status)
}

func TestSearchOriginRoomBlocked(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{"W0N0": allPlain})
	f := NewFinder(store)

	source := RoomSourceFunc(func(xx, yy uint8) (RoomDecision, error) {
		return RoomDecision{Blocked: true}, nil
	})
	res, err := f.Search(context.Background(), &Request{
		Origin: mustWorld(t, 25, 25, "W0N0"),
		Goals:  []Goal{{Pos: mustWorld(t, 25, 27, "W0N0")}},
		Opts:   DefaultOptions(),
		Rooms:  source,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusInvalidStart, res.Status)
}

func TestSearchInUseGuard(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{"W0N0": allPlain})
	f := NewFinder(store)

	var innerRes Result
	innerErr := error(nil)
	innerRan := false
	req := &Request{
		Origin: mustWorld(t, 5, 25, "W0N0"),
		Goals:  []Goal{{Pos: mustWorld(t, 45, 25, "W0N0")}},
		Opts:   DefaultOptions(),
		Abort: func() bool {
			if !innerRan {
				innerRan = true
				innerRes, innerErr = f.Search(context.Background(), &Request{
					Origin: mustWorld(t, 5, 25, "W0N0"),
					Goals:  []Goal{{Pos: mustWorld(t, 45, 25, "W0N0")}},
					Opts:   DefaultOptions(),
				})
			}
			return false
		},
	}

	res, err := f.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)

	require.True(t, innerRan)
	assert.ErrorIs(t, innerErr, ErrInUse)
	assert.Equal(t, StatusInUse, innerRes.Status)
}

func TestSearchAbortCallback(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{"W0N0": allPlain})
	f := NewFinder(store)

	res, err := f.Search(context.Background(), &Request{
		Origin: mustWorld(t, 5, 25, "W0N0"),
		Goals:  []Goal{{Pos: mustWorld(t, 45, 25, "W0N0")}},
		Opts:   DefaultOptions(),
		Abort:  func() bool { return true },
	})
	require.NoError(t, err)
	assert.Equal(t, StatusInterrupted, res.Status)
	assert.Empty(t, res.Path)
}

func TestSearchContextCancelled(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{"W0N0": allPlain})
	f := NewFinder(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := f.Search(ctx, &Request{
		Origin: mustWorld(t, 5, 25, "W0N0"),
		Goals:  []Goal{{Pos: mustWorld(t, 45, 25, "W0N0")}},
		Opts:   DefaultOptions(),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusInterrupted, res.Status)
}

func TestSearchMaxRoomsLimit(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{
		"W0N0": allPlain,
		"W1N0": allPlain,
	})
	f := NewFinder(store)

	opts := DefaultOptions()
	opts.MaxRooms = 1
	res, err := f.Search(context.Background(), &Request{
		Origin: mustWorld(t, 5, 25, "W0N0"),
		Goals:  []Goal{{Pos: mustWorld(t, 25, 25, "W1N0")}},
		Opts:   opts,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.True(t, res.Incomplete)
	for _, step := range res.Path {
		assert.Equal(t, "W0N0", step.Room)
	}
}

func TestSearchInvalidArguments(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{"W0N0": allPlain})
	f := NewFinder(store)
	origin := mustWorld(t, 25, 25, "W0N0")
	goal := mustWorld(t, 25, 27, "W0N0")

	tests := []struct {
		name string
		req  Request
	}{
		{"zero max rooms", Request{Origin: origin, Goals: []Goal{{Pos: goal}}, Opts: Options{MaxRooms: 0, PlainCost: 1}}},
		{"max rooms above cap", Request{Origin: origin, Goals: []Goal{{Pos: goal}}, Opts: Options{MaxRooms: 65}}},
		{"origin off grid", Request{Origin: WorldPosition{WorldSize, 0}, Goals: []Goal{{Pos: goal}}, Opts: DefaultOptions()}},
		{"goal off grid", Request{Origin: origin, Goals: []Goal{{Pos: WorldPosition{0, WorldSize}}}, Opts: DefaultOptions()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.Search(context.Background(), &tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Equal(t, -1, StatusCode(res, err))
		})
	}
}

func TestSearchDeterminism(t *testing.T) {
	scatter := func(x, y int) byte {
		if x > 9 && x < 41 && y > 9 && y < 41 && (x*31+y*17)%7 == 0 {
			return TerrainWall
		}
		return TerrainPlain
	}
	store := storeWith(t, map[string]func(x, y int) byte{"W0N0": scatter})
	f := NewFinder(store)

	run := func() (Result, error) {
		return f.Search(context.Background(), &Request{
			Origin: mustWorld(t, 5, 5, "W0N0"),
			Goals:  []Goal{{Pos: mustWorld(t, 44, 44, "W0N0")}},
			Opts:   DefaultOptions(),
		})
	}

	first, err := run()
	require.NoError(t, err)
	second, err := run()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// No emitted cell may be a wall.
	for _, step := range first.Path {
		assert.NotEqual(t, TerrainWall, scatter(step.X, step.Y), "wall cell %v in path", step)
	}
}

func TestSearchSwampCostAccounting(t *testing.T) {
	// A swamp band across the corridor: crossing it must be charged at the
	// swamp rate.
	banded := func(x, y int) byte {
		if x == 20 {
			return TerrainSwamp
		}
		return TerrainPlain
	}
	store := storeWith(t, map[string]func(x, y int) byte{"W0N0": banded})
	f := NewFinder(store)

	opts := DefaultOptions()
	opts.HeuristicWeight = 1.0
	origin := mustWorld(t, 15, 25, "W0N0")
	res, err := f.Search(context.Background(), &Request{
		Origin: origin,
		Goals:  []Goal{{Pos: mustWorld(t, 25, 25, "W0N0")}},
		Opts:   opts,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.False(t, res.Incomplete)
	// 9 plain steps plus one swamp step.
	assert.Equal(t, Cost(9+5), res.Cost)
	assert.Len(t, res.Path, 10)
	assertUnitSteps(t, origin, res.Path)

	sum := Cost(0)
	for _, step := range res.Path {
		if step.X == 20 {
			sum += DefaultSwampCost
		} else {
			sum += DefaultPlainCost
		}
	}
	assert.Equal(t, res.Cost, sum)
}

func TestSearchCrossRoomStraight(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{
		"W0N0": allPlain,
		"E0N0": allPlain,
	})
	f := NewFinder(store)

	origin := mustWorld(t, 25, 25, "W0N0")
	goal := mustWorld(t, 25, 25, "E0N0")
	res, err := f.Search(context.Background(), &Request{
		Origin: origin,
		Goals:  []Goal{{Pos: goal}},
		Opts:   DefaultOptions(),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.False(t, res.Incomplete)
	assert.Equal(t, Cost(50), res.Cost)
	assert.Len(t, res.Path, 50)
	assertUnitSteps(t, origin, res.Path)
	assert.Equal(t, RoomPos{X: 25, Y: 25, Room: "E0N0"}, res.Path[0])
}

func TestSearchReusableAcrossRuns(t *testing.T) {
	store := storeWith(t, map[string]func(x, y int) byte{"W0N0": allPlain})
	f := NewFinder(store)

	for i := 0; i < 3; i++ {
		res, err := f.Search(context.Background(), &Request{
			Origin: mustWorld(t, 25, 25, "W0N0"),
			Goals:  []Goal{{Pos: mustWorld(t, 25+i, 27+i, "W0N0")}},
			Opts:   DefaultOptions(),
		})
		require.NoError(t, err, "run %d", i)
		require.Equal(t, StatusSuccess, res.Status, "run %d", i)
		require.False(t, res.Incomplete, "run %d", i)
	}
}

func TestStatusCodeMapping(t *testing.T) {
	assert.Equal(t, 0, StatusCode(Result{Status: StatusSuccess}, nil))
	assert.Equal(t, 0, StatusCode(Result{Status: StatusSamePosition}, nil))
	assert.Equal(t, -2, StatusCode(Result{Status: StatusInvalidStart}, nil))
	assert.Equal(t, -3, StatusCode(Result{Status: StatusInterrupted}, nil))
	assert.Equal(t, -4, StatusCode(Result{Status: StatusError}, fmt.Errorf("x")), "plain errors map to the internal code")
	assert.Equal(t, -5, StatusCode(Result{Status: StatusInUse}, ErrInUse))
	assert.Equal(t, -1, StatusCode(Result{Status: StatusError}, fmt.Errorf("bad: %w", ErrInvalidArgument)))
}
