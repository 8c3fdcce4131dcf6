package pathfind

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel errors surfaced by Search.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInUse           = errors.New("finder already in use")
	ErrTerrainMissing  = errors.New("terrain not loaded")
)

// Goal is a target position with a Chebyshev acceptance radius.
type Goal struct {
	Pos   WorldPosition
	Range Cost
}

// Options tune a single search. Use DefaultOptions as the base; MaxRooms
// outside [1,64] and non-finite heuristic weights are rejected.
type Options struct {
	PlainCost       Cost
	SwampCost       Cost
	MaxRooms        int
	MaxOps          uint32
	MaxCost         Cost // 0 means unset (no limit)
	Flee            bool
	HeuristicWeight float64
}

// DefaultOptions returns the documented search defaults.
func DefaultOptions() Options {
	return Options{
		PlainCost:       DefaultPlainCost,
		SwampCost:       DefaultSwampCost,
		MaxRooms:        DefaultMaxRooms,
		MaxOps:          DefaultMaxOps,
		HeuristicWeight: DefaultHeuristicWeight,
	}
}

// normalized validates o and fills unset fields with defaults.
func (o Options) normalized() (Options, error) {
	if o.PlainCost == 0 {
		o.PlainCost = DefaultPlainCost
	}
	if o.SwampCost == 0 {
		o.SwampCost = DefaultSwampCost
	}
	if o.PlainCost >= Obstacle || o.SwampCost >= Obstacle {
		return o, fmt.Errorf("%w: terrain cost above obstacle threshold", ErrInvalidArgument)
	}
	if o.MaxRooms < 1 || o.MaxRooms > MaxRooms {
		return o, fmt.Errorf("%w: max rooms %d outside [1,%d]", ErrInvalidArgument, o.MaxRooms, MaxRooms)
	}
	if o.MaxOps == 0 {
		o.MaxOps = DefaultMaxOps
	}
	if o.MaxCost == 0 {
		o.MaxCost = math.MaxUint32
	}
	if o.HeuristicWeight == 0 {
		o.HeuristicWeight = DefaultHeuristicWeight
	}
	if math.IsNaN(o.HeuristicWeight) || math.IsInf(o.HeuristicWeight, 0) || o.HeuristicWeight < 0 {
		return o, fmt.Errorf("%w: heuristic weight %v", ErrInvalidArgument, o.HeuristicWeight)
	}
	return o, nil
}

// Request is one search invocation.
type Request struct {
	Origin WorldPosition
	Goals  []Goal
	Opts   Options
	// Rooms, when set, is consulted once per freshly materialised room.
	Rooms RoomSource
	// Abort, when set, is polled once per expansion; returning true stops
	// the search with StatusInterrupted.
	Abort func() bool
}

// Status is the outcome of a search.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusSamePosition
	StatusInvalidStart
	StatusInterrupted
	StatusError
	StatusInUse
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusSamePosition:
		return "SamePosition"
	case StatusInvalidStart:
		return "InvalidStart"
	case StatusInterrupted:
		return "Interrupted"
	case StatusError:
		return "Error"
	case StatusInUse:
		return "InUse"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Code maps a status to the integer code used at the interop boundary.
// Argument validation failures map to -1 separately (see StatusCode).
func (s Status) Code() int {
	switch s {
	case StatusSuccess, StatusSamePosition:
		return 0
	case StatusInvalidStart:
		return -2
	case StatusInterrupted:
		return -3
	case StatusInUse:
		return -5
	}
	return -4
}

// StatusCode folds a Search result pair into the interop code: validation
// failures become -1, everything else follows Status.Code.
func StatusCode(res Result, err error) int {
	if errors.Is(err, ErrInvalidArgument) {
		return -1
	}
	if errors.Is(err, ErrInUse) {
		return -5
	}
	return res.Status.Code()
}

// RoomPos is a room-local cell reference as used by the external API.
type RoomPos struct {
	X, Y int
	Room string
}

// World converts r to an absolute world position, validating the local
// coordinates and the room name.
func (r RoomPos) World() (WorldPosition, error) {
	if r.X < 0 || r.X >= RoomSize || r.Y < 0 || r.Y >= RoomSize {
		return WorldPosition{}, fmt.Errorf("%w: local coordinates (%d,%d)", ErrInvalidArgument, r.X, r.Y)
	}
	pos, err := ParseRoomName(r.Room)
	if err != nil {
		return WorldPosition{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return WorldPosition{
		XX: uint32(pos.XX)*RoomSize + uint32(r.X),
		YY: uint32(pos.YY)*RoomSize + uint32(r.Y),
	}, nil
}

// RoomPos converts an absolute world position back to the external form.
func (p WorldPosition) RoomPos() RoomPos {
	return RoomPos{
		X:    int(p.XX % RoomSize),
		Y:    int(p.YY % RoomSize),
		Room: FormatRoomName(p.Map()),
	}
}

// Result is the outcome of one search. Path is emitted in goal→origin order
// and excludes the origin.
type Result struct {
	Path       []RoomPos
	Ops        uint32
	Cost       Cost
	Incomplete bool
	Status     Status
}
