package pathfind

// roomInfo is one materialised room, held for the lifetime of a search.
type roomInfo struct {
	terrain    []byte
	costMatrix []byte // nil when the room has no override
	pos        MapPosition
}

// RoomDecision is what a RoomSource returns for a freshly seen room.
type RoomDecision struct {
	// Blocked excludes the room from the search entirely.
	Blocked bool
	// CostMatrix overrides per-cell costs when it holds at least 2500 bytes
	// (cell index xx*50+yy). The engine copies it; the caller may reuse the
	// buffer immediately.
	CostMatrix []byte
}

// RoomSource supplies per-room decisions as the search materialises rooms.
// Room is invoked at most once per map position per search.
type RoomSource interface {
	Room(xx, yy uint8) (RoomDecision, error)
}

// RoomSourceFunc adapts a function to the RoomSource interface.
type RoomSourceFunc func(xx, yy uint8) (RoomDecision, error)

func (f RoomSourceFunc) Room(xx, yy uint8) (RoomDecision, error) {
	return f(xx, yy)
}

// FixedMatrixTable is a pre-materialised RoomSource backed by a table of cost
// matrices. Rooms absent from the table get terrain costs only.
type FixedMatrixTable map[MapPosition][]byte

func (t FixedMatrixTable) Room(xx, yy uint8) (RoomDecision, error) {
	return RoomDecision{CostMatrix: t[MapPosition{XX: xx, YY: yy}]}, nil
}
