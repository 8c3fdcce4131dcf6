package pathfind

// World grid dimensions.
const (
	RoomSize  = 50                  // cells per room edge
	RoomArea  = RoomSize * RoomSize // 2500
	MapSize   = 256                 // rooms per map edge
	MapArea   = MapSize * MapSize   // 65536
	WorldSize = MapSize * RoomSize  // 12800 cells per world edge
)

// Terrain is packed two cells per byte, low nibble first, cell index yy*50+xx.
const TerrainPackedBytes = RoomArea / 2

// Terrain classes stored per cell in packed terrain blobs.
const (
	TerrainPlain byte = 0
	TerrainWall  byte = 1
	TerrainSwamp byte = 2
)

// Cost is a movement cost or a cost total. Cell costs live in the 16-bit
// domain; f/g totals use the full 32-bit range.
type Cost uint32

// Obstacle is the impassable sentinel, the maximum of the cell-cost domain.
const Obstacle Cost = 0xFFFF

// Cost matrix cell values.
const (
	matrixDeferToTerrain byte = 0
	matrixObstacle       byte = 0xFF
)

// MaxRooms is the hard cap on rooms materialised by a single search.
const MaxRooms = 64

const maxPosIndex = MaxRooms * RoomArea

// Search option defaults.
const (
	DefaultPlainCost       Cost = 1
	DefaultSwampCost       Cost = 5
	DefaultMaxRooms             = 16
	DefaultMaxOps               = 20000
	DefaultHeuristicWeight      = 1.2
)
