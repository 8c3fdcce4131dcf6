package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/wayfinder/internal/pathfind"
)

// TerrainRepository persists packed room terrain blobs.
type TerrainRepository struct {
	pool *pgxpool.Pool
}

// NewTerrainRepository creates a terrain repository over the given pool.
func NewTerrainRepository(pool *pgxpool.Pool) *TerrainRepository {
	return &TerrainRepository{pool: pool}
}

// UpsertRoom stores the packed terrain for a room, replacing any prior blob.
// The room name is validated and the map coordinates derived from it.
func (r *TerrainRepository) UpsertRoom(ctx context.Context, roomName string, terrain []byte) error {
	pos, err := pathfind.ParseRoomName(roomName)
	if err != nil {
		return fmt.Errorf("upserting room: %w", err)
	}
	if len(terrain) < pathfind.TerrainPackedBytes {
		return fmt.Errorf("upserting room %s: terrain blob too short (%d bytes)", roomName, len(terrain))
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO rooms (room_name, map_x, map_y, terrain, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (room_name) DO UPDATE
		 SET terrain = EXCLUDED.terrain, updated_at = EXCLUDED.updated_at`,
		pathfind.FormatRoomName(pos), int16(pos.XX), int16(pos.YY), terrain[:pathfind.TerrainPackedBytes], time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upserting room %s: %w", roomName, err)
	}
	return nil
}

// GetRoom returns the packed terrain for a room.
// Returns nil, nil if the room is not stored.
func (r *TerrainRepository) GetRoom(ctx context.Context, roomName string) ([]byte, error) {
	pos, err := pathfind.ParseRoomName(roomName)
	if err != nil {
		return nil, fmt.Errorf("getting room: %w", err)
	}

	var terrain []byte
	err = r.pool.QueryRow(ctx,
		`SELECT terrain FROM rooms WHERE room_name = $1`, pathfind.FormatRoomName(pos),
	).Scan(&terrain)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying room %s: %w", roomName, err)
	}
	return terrain, nil
}

// LoadAll loads every stored room in a form ready for the terrain store.
func (r *TerrainRepository) LoadAll(ctx context.Context) ([]pathfind.TerrainRoom, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT map_x, map_y, terrain FROM rooms ORDER BY map_y, map_x`)
	if err != nil {
		return nil, fmt.Errorf("loading rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]pathfind.TerrainRoom, 0, 256)
	for rows.Next() {
		var (
			mapX, mapY int16
			terrain    []byte
		)
		if err := rows.Scan(&mapX, &mapY, &terrain); err != nil {
			return nil, fmt.Errorf("scanning room row: %w", err)
		}
		rooms = append(rooms, pathfind.TerrainRoom{
			Pos:  pathfind.MapPosition{XX: uint8(mapX), YY: uint8(mapY)},
			Bits: terrain,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating room rows: %w", err)
	}
	return rooms, nil
}

// Count returns the number of stored rooms.
func (r *TerrainRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM rooms`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rooms: %w", err)
	}
	return n, nil
}

// DeleteAll removes every stored room.
func (r *TerrainRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM rooms`); err != nil {
		return fmt.Errorf("deleting rooms: %w", err)
	}
	return nil
}
